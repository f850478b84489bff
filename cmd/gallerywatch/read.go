package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nao1215/gallerywatch/internal/config"
	"github.com/nao1215/gallerywatch/internal/database"
	"github.com/nao1215/gallerywatch/internal/eventloop"
	"github.com/nao1215/gallerywatch/internal/model"
	"github.com/nao1215/gallerywatch/internal/pagination"
)

const readHelp = `Commands:
  n        next gallery
  p        previous gallery
  s        toggle shuffled image order
  m <i>    mark image <i> (0-based, as displayed) as the reading position
  r        reload the current page
  i        show position in the library
  h        show this help
  q        quit`

// NewReadCmd creates the read command.
func NewReadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "read",
		Short: "Page through the galleries stored in the library",
		Long: `Read opens the library one gallery at a time and takes commands from stdin.

Each gallery opens at its last read image. Mark a new reading position with
"m <i>"; it is stored in the library and used the next time the gallery opens.

` + readHelp + `

Examples:
  # Read every stored gallery
  gallerywatch read

  # Read one site, 10 galleries per library page, starting on page 3
  gallerywatch read --site allporncomic -n 10 --page 3`,
		Args: cobra.NoArgs,
		RunE: runReadCmd,
	}

	cmd.Flags().StringP("site", "s", "",
		"Only read galleries of this site")
	cmd.Flags().IntP("page-size", "n", config.DefaultPageSize,
		"Number of galleries per library page")
	cmd.Flags().Int("page", 1,
		"Library page to start on")
	cmd.Flags().Int64("id", 0,
		"Open the gallery with this library ID when it is on the start page")
	cmd.Flags().Bool("shuffle", false,
		"Start with shuffled image order")

	return cmd
}

func runReadCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if cfg.Site, err = flags.GetString("site"); err != nil {
		return err
	}
	if cfg.PageSize, err = flags.GetInt("page-size"); err != nil {
		return err
	}
	startPage, err := flags.GetInt("page")
	if err != nil {
		return err
	}
	activeID, err := flags.GetInt64("id")
	if err != nil {
		return err
	}
	shuffle, err := flags.GetBool("shuffle")
	if err != nil {
		return err
	}

	if err := cfg.ValidateCommon(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := setupLogger(cfg, cmd.ErrOrStderr())
	slog.SetDefault(logger)

	db, err := openLibrary(cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	total, err := db.CountRecords(ctx, cfg.Site)
	if err != nil {
		return err
	}
	if clamped := clampStartPage(startPage, total, cfg.PageSize); clamped != startPage {
		fmt.Fprintf(cmd.ErrOrStderr(), "library has %d page(s); starting on page %d\n", maxPage(total, cfg.PageSize), clamped)
		startPage = clamped
	}

	searcher := database.NewSearcher(db,
		database.WithSite(cfg.Site),
		database.WithStartPage(startPage),
		database.WithLogger(logger),
	)

	r := newReader(cmd.OutOrStdout(), searcher, db, cfg.PageSize, logger)
	return r.run(ctx, cmd.InOrStdin(), activeID, shuffle)
}

// reader connects stdin commands to a pagination engine running on its
// own event loop.
type reader struct {
	out      io.Writer
	searcher *database.Searcher
	loop     *eventloop.Loop
	engine   *pagination.Engine
	logger   *slog.Logger

	// settled receives a value whenever the engine shows a gallery or
	// reports a failed fetch.
	settled chan struct{}
}

func newReader(out io.Writer, searcher *database.Searcher, store pagination.Store, pageSize int, logger *slog.Logger) *reader {
	r := &reader{
		out:      out,
		searcher: searcher,
		loop:     eventloop.New(),
		logger:   logger,
		settled:  make(chan struct{}, 1),
	}
	r.engine = pagination.New(searcher, store, r.loop, pageSize,
		pagination.WithLogger(logger),
		pagination.WithImagesFunc(r.show),
		pagination.WithNotifier(pagination.NotifierFunc(r.notify)),
	)
	return r
}

// run starts the engine and processes commands until "q", EOF or ctx ends.
func (r *reader) run(ctx context.Context, in io.Reader, activeID int64, shuffle bool) error {
	loopErr := make(chan error, 1)
	go func() { loopErr <- r.loop.Run(ctx) }()
	defer func() {
		// Searches still in flight post to the loop; let them land first.
		r.searcher.Wait()
		r.loop.Close()
		<-r.loop.Done()
		if err := <-loopErr; err != nil && !errors.Is(err, context.Canceled) {
			r.logger.Debug("reader loop stopped", "error", err)
		}
	}()

	if err := r.command(ctx, func() pagination.Move { return r.engine.Start(ctx, activeID) }); err != nil {
		return err
	}
	if shuffle {
		if err := r.loop.Do(ctx, func() { r.engine.SetShuffle(true) }); err != nil {
			return err
		}
	}

	fmt.Fprintln(r.out, `Type "h" for help.`)

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		var err error
		switch fields[0] {
		case "n":
			err = r.move(ctx, "next", func() pagination.Move { return r.engine.LoadNext(ctx) })
		case "p":
			err = r.move(ctx, "previous", func() pagination.Move { return r.engine.LoadPrevious(ctx) })
		case "r":
			err = r.command(ctx, func() pagination.Move { return r.engine.Refresh(ctx) })
		case "s":
			err = r.loop.Do(ctx, func() {
				r.engine.SetShuffle(!r.engine.Shuffled())
				fmt.Fprintf(r.out, "shuffle %s\n", onOff(r.engine.Shuffled()))
			})
		case "m":
			err = r.mark(ctx, fields[1:])
		case "i":
			err = r.loop.Do(ctx, r.info)
		case "h", "?":
			fmt.Fprintln(r.out, readHelp)
		case "q":
			return nil
		default:
			fmt.Fprintf(r.out, "unknown command %q; type \"h\" for help\n", fields[0])
		}
		if err != nil {
			return err
		}
	}
	return scanner.Err()
}

// command runs fn on the loop and, when it started a fetch, waits for the
// result to be shown.
func (r *reader) command(ctx context.Context, fn func() pagination.Move) error {
	r.drain()

	var mv pagination.Move
	if err := r.loop.Do(ctx, func() { mv = fn() }); err != nil {
		return err
	}
	if mv == pagination.MoveBusy {
		fmt.Fprintln(r.out, "still loading; try again")
	}
	if mv != pagination.MoveFetch {
		return nil
	}

	select {
	case <-r.settled:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// move is command with a notice at either end of the library.
func (r *reader) move(ctx context.Context, direction string, fn func() pagination.Move) error {
	var none bool
	err := r.command(ctx, func() pagination.Move {
		mv := fn()
		none = mv == pagination.MoveNone
		return mv
	})
	if err == nil && none {
		fmt.Fprintf(r.out, "no %s gallery\n", direction)
	}
	return err
}

func (r *reader) mark(ctx context.Context, args []string) error {
	if len(args) != 1 {
		fmt.Fprintln(r.out, "usage: m <image index>")
		return nil
	}
	idx, err := strconv.Atoi(args[0])
	if err != nil {
		fmt.Fprintf(r.out, "invalid image index %q\n", args[0])
		return nil
	}

	var saveErr error
	if err := r.loop.Do(ctx, func() { saveErr = r.engine.SaveCurrentPosition(ctx, idx) }); err != nil {
		return err
	}
	switch {
	case errors.Is(saveErr, pagination.ErrNoActiveRecord):
		fmt.Fprintln(r.out, "no gallery open")
	case errors.Is(saveErr, pagination.ErrInvalidImageIndex):
		fmt.Fprintf(r.out, "image %d is out of range\n", idx)
	case saveErr != nil:
		return saveErr
	default:
		fmt.Fprintf(r.out, "reading position saved at image %d\n", idx)
	}
	return nil
}

// show prints the gallery the engine opened. It runs on the loop.
func (r *reader) show(rec *model.ContentRecord, images []string, startIndex int) {
	defer r.signal()

	if rec == nil {
		fmt.Fprintln(r.out, "library is empty")
		return
	}

	state := r.engine.State()
	fmt.Fprintf(r.out, "\n#%d %s\n", rec.ID, rec.Title)
	fmt.Fprintf(r.out, "  site:  %s\n", rec.Site)
	fmt.Fprintf(r.out, "  url:   %s\n", rec.URL)
	fmt.Fprintf(r.out, "  page:  %d/%d (%d of %d on this page)\n",
		state.Page, state.MaxPage, state.Index+1, len(state.Records))
	if len(images) == 0 {
		fmt.Fprintln(r.out, "  no images")
		return
	}
	fmt.Fprintf(r.out, "  image: %d/%d %s\n", startIndex+1, len(images), images[startIndex])
}

// notify prints a failed fetch. It runs on the loop.
func (r *reader) notify(message string) {
	defer r.signal()
	fmt.Fprintf(r.out, "could not load library page: %s\n", message)
}

// info prints the pagination state. It runs on the loop.
func (r *reader) info() {
	state := r.engine.State()
	fmt.Fprintf(r.out, "page %d/%d, %d galleries, shuffle %s\n",
		state.Page, state.MaxPage, state.TotalSelected, onOff(r.engine.Shuffled()))
}

func (r *reader) signal() {
	select {
	case r.settled <- struct{}{}:
	default:
	}
}

func (r *reader) drain() {
	select {
	case <-r.settled:
	default:
	}
}

// maxPage returns the number of library pages, at least one.
func maxPage(total, pageSize int) int {
	return max((total+pageSize-1)/pageSize, 1)
}

// clampStartPage keeps a requested start page within the library.
func clampStartPage(requested, total, pageSize int) int {
	return min(max(requested, 1), maxPage(total, pageSize))
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

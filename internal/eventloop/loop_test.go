package eventloop

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestLoopOrder(t *testing.T) {
	t.Parallel()

	l := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx) //nolint:errcheck // Returns when ctx is cancelled

	var got []int
	for i := range 100 {
		l.Post(func() { got = append(got, i) })
	}
	if err := l.Do(ctx, func() {}); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if len(got) != 100 {
		t.Fatalf("expected 100 tasks, got %d", len(got))
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("expected task %d at position %d, got %d", i, i, v)
		}
	}
}

func TestLoopConcurrentPost(t *testing.T) {
	t.Parallel()

	l := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx) //nolint:errcheck // Returns when ctx is cancelled

	counter := 0
	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				l.Post(func() { counter++ })
			}
		}()
	}
	wg.Wait()

	var got int
	if err := l.Do(ctx, func() { got = counter }); err != nil {
		t.Fatal(err)
	}
	if got != 500 {
		t.Errorf("expected 500, got %d", got)
	}
}

func TestLoopClose(t *testing.T) {
	t.Parallel()

	l := New()
	ran := false
	l.Post(func() { ran = true })
	l.Close()

	if err := l.Run(context.Background()); err != nil {
		t.Fatalf("expected nil after Close, got %v", err)
	}
	if !ran {
		t.Error("expected queued task to run before Run returned")
	}
	if l.Post(func() {}) {
		t.Error("expected Post to fail after Close")
	}
	if err := l.Do(context.Background(), func() {}); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
	select {
	case <-l.Done():
	default:
		t.Error("expected Done to be closed")
	}
}

func TestLoopContextCancel(t *testing.T) {
	t.Parallel()

	l := New()
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- l.Run(ctx) }()

	cancel()
	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestLoopDoContextDeadline(t *testing.T) {
	t.Parallel()

	// Not running: Do can only return through its own context.
	l := New()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if err := l.Do(ctx, func() {}); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected DeadlineExceeded, got %v", err)
	}
}

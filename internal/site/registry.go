package site

import (
	"errors"
	"log/slog"
	"net/url"
	"sort"
	"strings"

	"github.com/nao1215/gallerywatch/internal/config"
)

// Registry maps site names to compiled profiles. It is built once at
// startup and passed to whoever needs a profile.
type Registry struct {
	profiles map[string]*Profile
}

// NewRegistry compiles every site of the rules file.
// Sites that fail validation are logged and left out; their errors are
// joined into the returned error. The registry is usable even when the
// error is non-nil.
func NewRegistry(cf *config.File, logger *slog.Logger) (*Registry, error) {
	if logger == nil {
		logger = slog.Default()
	}

	r := &Registry{profiles: make(map[string]*Profile)}
	if cf == nil {
		return r, nil
	}

	var errs []error
	for _, name := range cf.SiteNames() {
		rules, _ := cf.GetSiteConfig(name)
		p, err := NewProfile(name, rules)
		if err != nil {
			logger.Warn("site not registered", "site", name, "error", err)
			errs = append(errs, err)
			continue
		}
		r.profiles[name] = p
		logger.Debug("site registered", "site", name, "domain", p.DomainFilter(),
			"patterns", len(p.galleryPatterns))
	}
	return r, errors.Join(errs...)
}

// Register adds a profile, replacing any previous one with the same name.
func (r *Registry) Register(p *Profile) {
	r.profiles[p.Name()] = p
}

// Lookup returns the profile with the given name.
func (r *Registry) Lookup(name string) (*Profile, bool) {
	p, ok := r.profiles[name]
	return p, ok
}

// ForURL returns the profile whose domain filter is contained in the URL's
// host. When several match, the longest domain filter wins.
func (r *Registry) ForURL(rawURL string) (*Profile, bool) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return nil, false
	}
	host := strings.ToLower(u.Hostname())

	var best *Profile
	for _, name := range r.Names() {
		p := r.profiles[name]
		if !strings.Contains(host, strings.ToLower(p.domainFilter)) {
			continue
		}
		if best == nil || len(p.domainFilter) > len(best.domainFilter) {
			best = p
		}
	}
	return best, best != nil
}

// Names returns the registered site names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.profiles))
	for name := range r.profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered sites.
func (r *Registry) Len() int {
	return len(r.profiles)
}

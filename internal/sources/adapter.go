// Package sources defines the adapter contract for external listing sites,
// the registry the orchestrator iterates, and the concrete HTML adapters.
package sources

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"

	"propwatch/server/internal/models"
)

// Adapter produces raw candidate records from one external site. FetchPage
// is called with sequential 1-based page numbers; implementations must not
// panic past their boundary and should return an empty slice on a page with
// no recognizable listings.
type Adapter interface {
	Name() string
	FetchPage(ctx context.Context, page int) ([]models.RawListing, error)
}

// Registry is an explicit mapping from source identity to adapter, built
// once at startup and iterated in registration order.
type Registry struct {
	order    []string
	adapters map[string]Adapter
	skipped  int
	logger   *logrus.Logger
}

// NewRegistry returns an empty registry.
func NewRegistry(logger *logrus.Logger) *Registry {
	if logger == nil {
		logger = logrus.New()
	}
	return &Registry{
		adapters: make(map[string]Adapter),
		logger:   logger,
	}
}

// Register adds an adapter under its name. Registering the same name twice
// is an error.
func (r *Registry) Register(a Adapter) error {
	name := a.Name()
	if name == "" {
		return fmt.Errorf("adapter has no name")
	}
	if _, exists := r.adapters[name]; exists {
		return fmt.Errorf("adapter %q already registered", name)
	}
	r.adapters[name] = a
	r.order = append(r.order, name)
	return nil
}

// Adapters returns the registered adapters in registration order.
func (r *Registry) Adapters() []Adapter {
	out := make([]Adapter, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.adapters[name])
	}
	return out
}

// Len returns the number of registered adapters.
func (r *Registry) Len() int { return len(r.order) }

// Skipped returns how many source specs failed to build.
func (r *Registry) Skipped() int { return r.skipped }

// SourceSpec describes one source entry from the catalog.
type SourceSpec struct {
	Name string `yaml:"name"`
	Kind string `yaml:"kind"`
	URL  string `yaml:"url"`
}

// BuildRegistry constructs adapters for every spec. A spec that fails to
// build is logged and skipped; it does not prevent the remaining sources
// from registering.
func BuildRegistry(specs []SourceSpec, client *Client, logger *logrus.Logger) *Registry {
	registry := NewRegistry(logger)
	for _, spec := range specs {
		adapter, err := buildAdapter(spec, client, logger)
		if err == nil {
			err = registry.Register(adapter)
		}
		if err != nil {
			registry.skipped++
			logger.WithError(err).WithFields(logrus.Fields{
				"source": spec.Name,
				"kind":   spec.Kind,
			}).Error("Skipping source")
		}
	}
	return registry
}

func buildAdapter(spec SourceSpec, client *Client, logger *logrus.Logger) (Adapter, error) {
	if spec.Name == "" {
		return nil, fmt.Errorf("source has no name")
	}
	if _, err := url.ParseRequestURI(spec.URL); err != nil {
		return nil, fmt.Errorf("invalid start URL %q: %w", spec.URL, err)
	}
	switch strings.ToLower(spec.Kind) {
	case "agency", "":
		return NewAgencyAdapter(spec.Name, spec.URL, client, logger), nil
	case "kyero":
		return NewKyeroAdapter(spec.Name, spec.URL, client, logger), nil
	default:
		return nil, fmt.Errorf("unknown source kind %q", spec.Kind)
	}
}

// pageURL applies the common pagination patterns: appending ?page=N or
// &page=N depending on whether the start URL already carries a query.
func pageURL(start string, page int) string {
	if page <= 1 {
		return start
	}
	if strings.Contains(start, "?") {
		return fmt.Sprintf("%s&page=%d", start, page)
	}
	return fmt.Sprintf("%s?page=%d", start, page)
}

// absoluteLink resolves href against base, returning href untouched when it
// is already absolute.
func absoluteLink(base, href string) string {
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	b, err := url.Parse(base)
	if err != nil {
		return href
	}
	h, err := url.Parse(href)
	if err != nil {
		return href
	}
	return b.ResolveReference(h).String()
}

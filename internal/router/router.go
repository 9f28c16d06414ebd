package router

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"example.com/backstage/services/logrouter/internal/metrics"
	"example.com/backstage/services/logrouter/internal/models"
)

// DateLayout is the date suffix of a daily index name
const DateLayout = "2006-01-02"

// IndexStore is the subset of the document store the router needs
type IndexStore interface {
	IndexExists(ctx context.Context, name string) (bool, error)
	CreateIndex(ctx context.Context, name string, settings models.IndexSettings) (bool, error)
}

// ProvisionWarning reports an index that could not be confirmed or created.
// Writes to the index are still attempted.
type ProvisionWarning struct {
	Index string
	Err   error
}

func (w *ProvisionWarning) Error() string {
	return fmt.Sprintf("provisioning index %s: %v", w.Index, w.Err)
}

func (w *ProvisionWarning) Unwrap() error {
	return w.Err
}

// Router maps documents onto daily indices and makes sure they exist
type Router struct {
	prefix   string
	settings models.IndexSettings
	store    IndexStore
	known    KnownIndices
	metrics  *metrics.Metrics
	clock    func() time.Time
	group    singleflight.Group
}

// Option configures a Router
type Option func(*Router)

// WithKnownIndices replaces the default in-memory cache
func WithKnownIndices(known KnownIndices) Option {
	return func(r *Router) { r.known = known }
}

// WithMetrics records index creation counts
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Router) { r.metrics = m }
}

// WithClock overrides the processing clock
func WithClock(clock func() time.Time) Option {
	return func(r *Router) { r.clock = clock }
}

// NewRouter creates a router. store may be nil, in which case
// EnsureExists only consults the cache.
func NewRouter(prefix string, settings models.IndexSettings, store IndexStore, opts ...Option) *Router {
	r := &Router{
		prefix:   prefix,
		settings: settings,
		store:    store,
		known:    NewMemoryIndices(),
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// IndexFor returns the daily index for a service and event time.
// A zero event time routes to the processing date.
func (r *Router) IndexFor(service string, eventTime time.Time) models.IndexTarget {
	if eventTime.IsZero() {
		eventTime = r.clock()
	}
	name := fmt.Sprintf("%s-%s-%s", r.prefix, strings.ToLower(service), eventTime.UTC().Format(DateLayout))
	return models.IndexTarget{Name: name, Settings: r.settings}
}

// EnsureExists makes sure the target index exists before writing.
// It returns nil or a *ProvisionWarning.
func (r *Router) EnsureExists(ctx context.Context, target models.IndexTarget) error {
	if r.known.Known(ctx, target.Name) {
		return nil
	}
	if r.store == nil {
		return nil
	}

	_, err, _ := r.group.Do(target.Name, func() (interface{}, error) {
		// another caller may have finished while we waited
		if r.known.Known(ctx, target.Name) {
			return nil, nil
		}
		return nil, r.provision(ctx, target)
	})
	if err != nil {
		r.metrics.IncrementCounter(metrics.ProvisionErrors)
		log.Warn().Err(err).Str("index", target.Name).Msg("Failed to provision index")
		return &ProvisionWarning{Index: target.Name, Err: err}
	}
	return nil
}

func (r *Router) provision(ctx context.Context, target models.IndexTarget) error {
	exists, err := r.store.IndexExists(ctx, target.Name)
	if err != nil {
		return err
	}
	if exists {
		r.known.MarkKnown(ctx, target.Name)
		return nil
	}

	created, err := r.store.CreateIndex(ctx, target.Name, target.Settings)
	if err != nil {
		return err
	}
	if created {
		r.metrics.IncrementCounter(metrics.IndicesCreated)
		log.Info().Str("index", target.Name).Msg("Created index")
	}
	r.known.MarkKnown(ctx, target.Name)
	return nil
}

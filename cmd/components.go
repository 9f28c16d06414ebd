package cmd

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"example.com/backstage/services/logrouter/config"
	"example.com/backstage/services/logrouter/internal/bulk"
	"example.com/backstage/services/logrouter/internal/cache"
	"example.com/backstage/services/logrouter/internal/metrics"
	"example.com/backstage/services/logrouter/internal/models"
	"example.com/backstage/services/logrouter/internal/pipeline"
	"example.com/backstage/services/logrouter/internal/router"
	"example.com/backstage/services/logrouter/internal/store"
	"example.com/backstage/services/logrouter/internal/tracing"
)

// pruner drops cached index names older than a cut-off
type pruner interface {
	Prune(before time.Time) int
}

// components is the wired pipeline shared by every command
type components struct {
	pipeline *pipeline.Pipeline
	metrics  *metrics.Metrics
	tracer   *tracing.Tracer
	known    pruner
	closers  []func() error
}

func buildComponents(ctx context.Context, cfg config.Config) (*components, error) {
	c := &components{metrics: metrics.NewMetrics()}

	tracer, err := tracing.NewTracer(cfg.Tracing)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize tracer, continuing without tracing")
	}
	c.tracer = tracer

	memory := router.NewMemoryIndices()
	var known router.KnownIndices = memory
	c.known = memory
	if cfg.Redis.Enabled {
		client, err := cache.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize Redis cache, continuing with process-local cache")
		} else {
			shared := cache.NewRedisIndices(client, memory, cfg.Redis.TTL)
			known = shared
			c.known = shared
			c.closers = append(c.closers, shared.Close)
		}
	}

	var (
		indexStore router.IndexStore
		bulkStore  bulk.Store
	)
	if cfg.StoreEnabled() {
		client, err := store.NewClientFromConfig(ctx, cfg.Store)
		if err != nil {
			return nil, err
		}
		indexStore = client
		bulkStore = client
		c.metrics.SetHealth("store", true)
	} else {
		log.Warn().Msg("No document store endpoint configured, documents will not be written")
	}

	settings := models.IndexSettings{Shards: cfg.Index.Shards, Replicas: cfg.Index.Replicas}
	r := router.NewRouter(cfg.Index.Prefix, settings, indexStore,
		router.WithKnownIndices(known),
		router.WithMetrics(c.metrics),
	)
	w := bulk.NewWriter(bulkStore, cfg.Store.Timeout, c.metrics)

	c.pipeline = pipeline.New(r, w,
		pipeline.WithWorkers(cfg.Pipeline.Workers),
		pipeline.WithMetrics(c.metrics),
		pipeline.WithTracer(c.tracer),
	)
	return c, nil
}

// prune drops cached names for days outside the retention window
func (c *components) prune(retentionDays int, now time.Time) int {
	cutoff := now.UTC().AddDate(0, 0, -retentionDays)
	return c.known.Prune(cutoff)
}

func (c *components) close() {
	for _, closeFn := range c.closers {
		if err := closeFn(); err != nil {
			log.Warn().Err(err).Msg("Failed to close resource")
		}
	}
	c.tracer.Shutdown(5 * time.Second)
}

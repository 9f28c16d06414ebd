package pipeline

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"example.com/backstage/services/logrouter/internal/bulk"
	"example.com/backstage/services/logrouter/internal/decoder"
	"example.com/backstage/services/logrouter/internal/metrics"
	"example.com/backstage/services/logrouter/internal/models"
	"example.com/backstage/services/logrouter/internal/normalize"
	"example.com/backstage/services/logrouter/internal/router"
	"example.com/backstage/services/logrouter/internal/tracing"
)

// DefaultWorkers is the decode and normalize concurrency per invocation
const DefaultWorkers = 8

// Pipeline runs subscription batches from input records through to the store
type Pipeline struct {
	normalizer *normalize.Normalizer
	router     *router.Router
	writer     *bulk.Writer
	workers    int
	metrics    *metrics.Metrics
	tracer     *tracing.Tracer
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithWorkers sets the per-invocation concurrency
func WithWorkers(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithMetrics records pipeline counters
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithTracer reports each invocation as a transaction
func WithTracer(t *tracing.Tracer) Option {
	return func(p *Pipeline) { p.tracer = t }
}

// New creates a pipeline
func New(r *router.Router, w *bulk.Writer, opts ...Option) *Pipeline {
	p := &Pipeline{
		normalizer: normalize.NewNormalizer(),
		router:     r,
		writer:     w,
		workers:    DefaultWorkers,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type recordResult struct {
	docs []models.IndexedDocument
	err  error
}

// Process decodes, normalizes, routes, and bulk-writes one invocation's
// records. It never fails; every outcome is reflected in the summary.
func (p *Pipeline) Process(ctx context.Context, records []models.InputRecord) models.Summary {
	start := time.Now()
	ctx, txn := p.tracer.Start(ctx, "process")

	summary := models.Summary{ProcessedRecords: len(records)}
	results := p.decodeAll(ctx, records)

	var (
		docs    []models.IndexedDocument
		targets []models.IndexTarget
		seen    = map[string]bool{}
	)
	for i, res := range results {
		if res.err != nil {
			summary.FailedRecords++
			logDecodeFailure(records[i], res.err)
			continue
		}
		for _, doc := range res.docs {
			if !seen[doc.Target.Name] {
				seen[doc.Target.Name] = true
				targets = append(targets, doc.Target)
			}
			docs = append(docs, doc)
		}
	}

	endSegment := tracing.Segment(ctx, "provision")
	for _, target := range targets {
		// warnings are logged by the router; the write is still attempted
		_ = p.router.EnsureExists(ctx, target)
	}
	endSegment()

	var writeErr error
	if len(docs) > 0 {
		endSegment = tracing.Segment(ctx, "bulk")
		result, err := p.writer.Write(ctx, docs)
		endSegment()

		summary.DocumentsIndexed = result.SuccessCount
		summary.DocumentErrors = result.ErrorCount
		if err != nil {
			writeErr = err
			summary.TransportError = err.Error()
		}
	}

	p.metrics.IncrementCounterBy(metrics.RecordsProcessed, int64(summary.ProcessedRecords))
	p.metrics.IncrementCounterBy(metrics.RecordsFailed, int64(summary.FailedRecords))
	p.metrics.IncrementCounterBy(metrics.DocumentsIndexed, int64(summary.DocumentsIndexed))
	p.metrics.IncrementCounterBy(metrics.DocumentErrors, int64(summary.DocumentErrors))
	p.metrics.RecordTimer(metrics.Invocation, time.Since(start))

	tracing.Finish(txn, map[string]interface{}{
		"processedRecords": summary.ProcessedRecords,
		"documentsIndexed": summary.DocumentsIndexed,
		"documentErrors":   summary.DocumentErrors,
		"failedRecords":    summary.FailedRecords,
		"indices":          len(targets),
	}, writeErr)

	log.Info().
		Int("processed_records", summary.ProcessedRecords).
		Int("documents_indexed", summary.DocumentsIndexed).
		Int("document_errors", summary.DocumentErrors).
		Int("failed_records", summary.FailedRecords).
		Int("indices", len(targets)).
		Dur("duration", time.Since(start)).
		Msg("Processed batch")

	return summary
}

// decodeAll decodes and normalizes records concurrently; results keep input order
func (p *Pipeline) decodeAll(ctx context.Context, records []models.InputRecord) []recordResult {
	defer tracing.Segment(ctx, "decode")()

	results := make([]recordResult, len(records))

	var g errgroup.Group
	g.SetLimit(p.workers)
	for i := range records {
		g.Go(func() error {
			results[i] = p.decodeRecord(records[i])
			return nil
		})
	}
	g.Wait()

	return results
}

func (p *Pipeline) decodeRecord(record models.InputRecord) recordResult {
	batch, err := decoder.Decode(record.Data)
	if err != nil {
		return recordResult{err: err}
	}

	service := normalize.ServiceName(batch.LogGroup)
	docs := make([]models.IndexedDocument, 0, len(batch.LogEvents))
	for _, event := range batch.LogEvents {
		docs = append(docs, models.IndexedDocument{
			RecordID: record.ID,
			Target:   p.router.IndexFor(service, event.Time()),
			Document: p.normalizer.Normalize(batch, event, service),
		})
	}
	return recordResult{docs: docs}
}

func logDecodeFailure(record models.InputRecord, err error) {
	entry := log.Warn().Err(err).Str("record_id", record.ID)
	var decodeErr *decoder.DecodeError
	if errors.As(err, &decodeErr) {
		entry = entry.Str("stage", decodeErr.Stage)
	}
	entry.Msg("Failed to decode record")
}

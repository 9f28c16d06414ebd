package tracing

import (
	"context"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"example.com/backstage/services/logrouter/config"
)

// Tracer wraps a New Relic application. A nil or disabled Tracer
// turns every call into a no-op.
type Tracer struct {
	app *newrelic.Application
}

// NewTracer creates a tracer; without a license key tracing is disabled
func NewTracer(cfg config.TracingConfig) (*Tracer, error) {
	if cfg.LicenseKey == "" {
		log.Debug().Msg("New Relic license key not provided, tracing will be disabled")
		return &Tracer{}, nil
	}

	app, err := newrelic.NewApplication(
		newrelic.ConfigAppName(cfg.AppName),
		newrelic.ConfigLicense(cfg.LicenseKey),
		newrelic.ConfigDistributedTracerEnabled(cfg.DistribTracing),
		newrelic.ConfigAppLogForwardingEnabled(cfg.LogEnabled),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to initialize New Relic")
	}

	return &Tracer{app: app}, nil
}

// Enabled reports whether transactions are being reported
func (t *Tracer) Enabled() bool {
	return t != nil && t.app != nil
}

// Start begins a transaction and attaches it to the context
func (t *Tracer) Start(ctx context.Context, name string) (context.Context, *newrelic.Transaction) {
	if !t.Enabled() {
		return ctx, nil
	}
	txn := t.app.StartTransaction(name)
	return newrelic.NewContext(ctx, txn), txn
}

// Segment times a named step of the transaction carried by ctx.
// Call the returned func to end it.
func Segment(ctx context.Context, name string) func() {
	txn := newrelic.FromContext(ctx)
	if txn == nil {
		return func() {}
	}
	seg := txn.StartSegment(name)
	return seg.End
}

// Finish records attributes and an optional error, then ends the transaction
func Finish(txn *newrelic.Transaction, attrs map[string]interface{}, err error) {
	if txn == nil {
		return
	}
	for k, v := range attrs {
		txn.AddAttribute(k, v)
	}
	if err != nil {
		txn.NoticeError(err)
	}
	txn.End()
}

// Shutdown flushes pending data
func (t *Tracer) Shutdown(timeout time.Duration) {
	if !t.Enabled() {
		return
	}
	t.app.Shutdown(timeout)
	log.Info().Msg("New Relic tracer shutdown")
}

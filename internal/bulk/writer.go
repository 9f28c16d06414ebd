package bulk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"example.com/backstage/services/logrouter/internal/metrics"
	"example.com/backstage/services/logrouter/internal/models"
	"example.com/backstage/services/logrouter/internal/store"
)

// DefaultTimeout bounds a single bulk call
const DefaultTimeout = 30 * time.Second

// Store submits NDJSON bulk bodies
type Store interface {
	Bulk(ctx context.Context, body []byte) (*store.BulkResponse, error)
}

// TransportError means the bulk call as a whole did not succeed
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return "bulk write failed: " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Writer submits documents in one bulk request per call
type Writer struct {
	store   Store
	timeout time.Duration
	metrics *metrics.Metrics
}

// NewWriter creates a writer. A nil store makes Write a no-op.
func NewWriter(s Store, timeout time.Duration, m *metrics.Metrics) *Writer {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Writer{store: s, timeout: timeout, metrics: m}
}

// Write sends the documents in a single bulk call without retrying.
// The result always accounts for every document.
func (w *Writer) Write(ctx context.Context, docs []models.IndexedDocument) (models.BulkWriteResult, error) {
	if len(docs) == 0 {
		return models.BulkWriteResult{}, nil
	}
	if w.store == nil {
		log.Warn().Int("documents", len(docs)).Msg("No document store configured, skipping bulk write")
		return models.BulkWriteResult{}, nil
	}

	body, err := EncodeNDJSON(docs)
	if err != nil {
		return models.BulkWriteResult{ErrorCount: len(docs)}, &TransportError{Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	stop := w.metrics.Time(metrics.BulkWrite)
	res, err := w.store.Bulk(ctx, body)
	stop()
	w.metrics.RecordResult(metrics.BulkWrite, err)

	if err != nil {
		log.Error().Err(err).Int("documents", len(docs)).Msg("Bulk write failed")
		return models.BulkWriteResult{ErrorCount: len(docs)}, &TransportError{Err: err}
	}

	result := tally(docs, res)
	if result.ErrorCount > 0 {
		log.Warn().
			Int("succeeded", result.SuccessCount).
			Int("failed", result.ErrorCount).
			Msg("Bulk write had item failures")
	}
	return result, nil
}

// EncodeNDJSON renders the action and source line pairs of a bulk body
func EncodeNDJSON(docs []models.IndexedDocument) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for _, doc := range docs {
		action := map[string]map[string]string{"index": {"_index": doc.Target.Name}}
		if err := enc.Encode(action); err != nil {
			return nil, errors.Wrap(err, "failed to encode bulk action")
		}
		if err := enc.Encode(doc.Document); err != nil {
			return nil, errors.Wrapf(err, "failed to encode document %s", doc.RecordID)
		}
	}
	return buf.Bytes(), nil
}

func tally(docs []models.IndexedDocument, res *store.BulkResponse) models.BulkWriteResult {
	if !res.Errors {
		return models.BulkWriteResult{SuccessCount: len(docs)}
	}

	var result models.BulkWriteResult
	for i, doc := range docs {
		if i >= len(res.Items) {
			result.ErrorCount++
			result.Failures = append(result.Failures, models.ItemFailure{
				Index: doc.Target.Name,
				Error: "missing from bulk response",
			})
			continue
		}

		item, ok := firstItem(res.Items[i])
		if !ok || item.Status >= 400 {
			result.ErrorCount++
			result.Failures = append(result.Failures, failure(doc, item))
			continue
		}
		result.SuccessCount++
	}
	return result
}

func firstItem(entry map[string]store.BulkItemResult) (store.BulkItemResult, bool) {
	for _, item := range entry {
		return item, true
	}
	return store.BulkItemResult{}, false
}

func failure(doc models.IndexedDocument, item store.BulkItemResult) models.ItemFailure {
	f := models.ItemFailure{Index: item.Index, Status: item.Status}
	if f.Index == "" {
		f.Index = doc.Target.Name
	}
	if item.Error != nil {
		f.Error = fmt.Sprintf("%s: %s", item.Error.Type, item.Error.Reason)
	}
	return f
}

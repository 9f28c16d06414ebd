package pipeline

import (
	"context"
	"encoding/json"

	"github.com/aws/aws-lambda-go/events"
	"github.com/rs/zerolog/log"

	"example.com/backstage/services/logrouter/internal/decoder"
	"example.com/backstage/services/logrouter/internal/metrics"
	"example.com/backstage/services/logrouter/internal/models"
	"example.com/backstage/services/logrouter/internal/normalize"
	"example.com/backstage/services/logrouter/internal/tracing"
)

// Keys added when several events collapse into one Firehose document
const (
	FieldEventCount         = "event_count"
	FieldAdditionalMessages = "additional_messages"
)

// Transform handles a Firehose data transformation invocation. Each
// input record yields exactly one output record with the same ID.
func (p *Pipeline) Transform(ctx context.Context, event events.KinesisFirehoseEvent) events.KinesisFirehoseResponse {
	_, txn := p.tracer.Start(ctx, "transform")

	out := events.KinesisFirehoseResponse{
		Records: make([]events.KinesisFirehoseResponseRecord, 0, len(event.Records)),
	}

	counts := map[string]int{}
	for _, record := range event.Records {
		res := p.transformRecord(record)
		counts[res.Result]++
		out.Records = append(out.Records, res)
	}

	p.metrics.IncrementCounterBy(metrics.RecordsProcessed, int64(len(event.Records)))
	p.metrics.IncrementCounterBy(metrics.RecordsFailed, int64(counts[events.KinesisFirehoseTransformedStateProcessingFailed]))

	tracing.Finish(txn, map[string]interface{}{
		"records":  len(event.Records),
		"ok":       counts[events.KinesisFirehoseTransformedStateOk],
		"dropped":  counts[events.KinesisFirehoseTransformedStateDropped],
		"failed":   counts[events.KinesisFirehoseTransformedStateProcessingFailed],
		"delivery": event.DeliveryStreamArn,
	}, nil)

	log.Info().
		Int("records", len(event.Records)).
		Int("ok", counts[events.KinesisFirehoseTransformedStateOk]).
		Int("dropped", counts[events.KinesisFirehoseTransformedStateDropped]).
		Int("failed", counts[events.KinesisFirehoseTransformedStateProcessingFailed]).
		Msg("Transformed records")

	return out
}

func (p *Pipeline) transformRecord(record events.KinesisFirehoseEventRecord) events.KinesisFirehoseResponseRecord {
	echo := func(result string) events.KinesisFirehoseResponseRecord {
		return events.KinesisFirehoseResponseRecord{RecordID: record.RecordID, Result: result, Data: record.Data}
	}

	batch, err := decoder.DecodePayload(record.Data)
	if err != nil {
		log.Warn().Err(err).Str("record_id", record.RecordID).Msg("Failed to decode record")
		return echo(events.KinesisFirehoseTransformedStateProcessingFailed)
	}
	if len(batch.LogEvents) == 0 {
		return echo(events.KinesisFirehoseTransformedStateDropped)
	}

	doc := p.Merge(batch)
	data, err := json.Marshal(doc)
	if err != nil {
		log.Warn().Err(err).Str("record_id", record.RecordID).Msg("Failed to encode document")
		return echo(events.KinesisFirehoseTransformedStateProcessingFailed)
	}

	return events.KinesisFirehoseResponseRecord{
		RecordID: record.RecordID,
		Result:   events.KinesisFirehoseTransformedStateOk,
		Data:     append(data, '\n'),
	}
}

// Merge normalizes a batch into a single document. Extra events are
// summarized by count and raw message on the first one.
func (p *Pipeline) Merge(batch models.LogBatch) models.Document {
	service := normalize.ServiceName(batch.LogGroup)
	doc := p.normalizer.Normalize(batch, batch.LogEvents[0], service)
	if len(batch.LogEvents) == 1 {
		return doc
	}

	additional := make([]string, 0, len(batch.LogEvents)-1)
	for _, event := range batch.LogEvents[1:] {
		additional = append(additional, event.Message)
	}
	doc[FieldEventCount] = len(batch.LogEvents)
	doc[FieldAdditionalMessages] = additional
	return doc
}

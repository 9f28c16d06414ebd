package normalize

import (
	"github.com/rs/zerolog/log"

	"example.com/backstage/services/logrouter/internal/classify"
	"example.com/backstage/services/logrouter/internal/models"
)

// Normalizer turns decoded log records into documents
type Normalizer struct{}

// NewNormalizer creates a new normalizer
func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

// Normalize builds the document for one record of a batch.
// service is the name derived from the batch's log group.
func (n *Normalizer) Normalize(batch models.LogBatch, record models.LogRecord, service string) models.Document {
	doc := models.Document{}

	res := classify.Classify(record.Message)
	if res.Err != nil {
		log.Debug().
			Err(res.Err).
			Str("log_group", batch.LogGroup).
			Str("event_id", record.ID).
			Msg("structured message did not parse, treating as text")
	}

	level := ""
	if res.Structured {
		flat := Flatten(res.Fields)
		fields := Resolve(flat)

		// extras first; canonical and required fields overwrite them
		for k, v := range flat {
			doc[k] = v
		}
		for k, v := range fields {
			doc[k] = v
		}

		if explicit, ok := fields[FieldLogLevel]; ok {
			level = classify.NormalizeLevel(explicit)
		}
	}
	if level == "" {
		level = classify.DetectLevel(record.Message)
	}

	if service == "" {
		service = UnknownService
	}

	doc[models.FieldTimestamp] = Timestamp(record.TimestampMillis)
	doc[models.FieldLogGroup] = batch.LogGroup
	doc[models.FieldLogStream] = batch.LogStream
	doc[models.FieldService] = service
	doc[models.FieldAccount] = batch.Owner
	doc[models.FieldRawMessage] = record.Message
	doc[models.FieldEventID] = record.ID
	doc[models.FieldLevel] = level

	return doc
}

package pipeline

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/backstage/services/logrouter/internal/bulk"
	"example.com/backstage/services/logrouter/internal/models"
	"example.com/backstage/services/logrouter/internal/router"
)

func payload(t *testing.T, batch models.LogBatch, compress bool) []byte {
	t.Helper()
	data, err := base64.StdEncoding.DecodeString(encode(t, batch, compress))
	require.NoError(t, err)
	return data
}

func TestTransform(t *testing.T) {
	p := New(router.NewRouter("logs", models.IndexSettings{Shards: 1}, nil), bulk.NewWriter(nil, 0, nil))

	single := payload(t, gatewayBatch(models.LogRecord{ID: "1", TimestampMillis: ms(2024, 1, 15), Message: `{"level":"error","msg":"boom"}`}), true)
	multi := payload(t, gatewayBatch(
		models.LogRecord{ID: "a", TimestampMillis: ms(2024, 1, 15), Message: "first"},
		models.LogRecord{ID: "b", TimestampMillis: ms(2024, 1, 15), Message: "second"},
		models.LogRecord{ID: "c", TimestampMillis: ms(2024, 1, 15), Message: "third"},
	), false)
	control := payload(t, models.LogBatch{MessageType: models.MessageTypeControl}, true)
	garbage := []byte("not an envelope")

	res := p.Transform(context.Background(), events.KinesisFirehoseEvent{
		Records: []events.KinesisFirehoseEventRecord{
			{RecordID: "id-1", Data: single},
			{RecordID: "id-2", Data: multi},
			{RecordID: "id-3", Data: control},
			{RecordID: "id-4", Data: garbage},
		},
	})

	require.Len(t, res.Records, 4)
	for i, id := range []string{"id-1", "id-2", "id-3", "id-4"} {
		assert.Equal(t, id, res.Records[i].RecordID)
	}

	assert.Equal(t, events.KinesisFirehoseTransformedStateOk, res.Records[0].Result)
	assert.Equal(t, byte('\n'), res.Records[0].Data[len(res.Records[0].Data)-1])
	var doc map[string]any
	require.NoError(t, json.Unmarshal(res.Records[0].Data, &doc))
	assert.Equal(t, "ERROR", doc["level"])
	assert.Equal(t, "boom", doc["parsed_message"])
	assert.NotContains(t, doc, FieldEventCount)

	assert.Equal(t, events.KinesisFirehoseTransformedStateOk, res.Records[1].Result)
	doc = nil
	require.NoError(t, json.Unmarshal(res.Records[1].Data, &doc))
	assert.Equal(t, "a", doc["event_id"])
	assert.Equal(t, float64(3), doc[FieldEventCount])
	assert.Equal(t, []any{"second", "third"}, doc[FieldAdditionalMessages])

	assert.Equal(t, events.KinesisFirehoseTransformedStateDropped, res.Records[2].Result)
	assert.Equal(t, control, res.Records[2].Data)

	assert.Equal(t, events.KinesisFirehoseTransformedStateProcessingFailed, res.Records[3].Result)
	assert.Equal(t, garbage, res.Records[3].Data)
}

func TestTransformEmpty(t *testing.T) {
	p := New(router.NewRouter("logs", models.IndexSettings{}, nil), bulk.NewWriter(nil, 0, nil))
	res := p.Transform(context.Background(), events.KinesisFirehoseEvent{})
	assert.Empty(t, res.Records)
}

package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/backstage/services/logrouter/config"
	"example.com/backstage/services/logrouter/internal/decoder"
	"example.com/backstage/services/logrouter/internal/models"
)

type recordingProcessor struct {
	records []models.InputRecord
}

func (r *recordingProcessor) Process(ctx context.Context, records []models.InputRecord) models.Summary {
	r.records = records
	return models.Summary{ProcessedRecords: len(records), FailedRecords: 1}
}

func testConfig() config.Config {
	return config.Config{
		Environment: "test",
		Logging:     config.LoggingConfig{Level: "info", Format: "json"},
		Store:       config.StoreConfig{Timeout: time.Second},
		Index:       config.IndexConfig{Prefix: "logs", Shards: 1},
		Pipeline:    config.PipelineConfig{Workers: 2},
		Cache:       config.CacheConfig{PruneInterval: time.Hour, RetentionDays: 2},
	}
}

func TestReplay(t *testing.T) {
	event := `{"Records":[{"eventID":"shard-1:1","kinesis":{"data":"AAAA"}},{"eventID":"shard-1:2","kinesis":{"data":"BBBB"}}]}`
	p := &recordingProcessor{}
	var out bytes.Buffer

	require.NoError(t, replay(context.Background(), strings.NewReader(event), p, &out))

	assert.Equal(t, []models.InputRecord{{ID: "shard-1:1", Data: "AAAA"}, {ID: "shard-1:2", Data: "BBBB"}}, p.records)
	var summary models.Summary
	require.NoError(t, json.Unmarshal(out.Bytes(), &summary))
	assert.Equal(t, 2, summary.ProcessedRecords)
	assert.Equal(t, 1, summary.FailedRecords)
}

func TestReplayInvalidEvent(t *testing.T) {
	err := replay(context.Background(), strings.NewReader(`{"Records":`), &recordingProcessor{}, &bytes.Buffer{})
	assert.ErrorContains(t, err, "invalid Kinesis event")
}

func TestRouterHandlerWithoutStore(t *testing.T) {
	c, err := buildComponents(context.Background(), testConfig())
	require.NoError(t, err)
	defer c.close()

	data, err := decoder.Encode(models.LogBatch{
		MessageType: models.MessageTypeData,
		LogGroup:    "/aws/ecs/gateway-prod/application",
		LogEvents:   []models.LogRecord{{ID: "1", TimestampMillis: 1700000000000, Message: "hello"}},
	}, true)
	require.NoError(t, err)

	ctx := lambdacontext.NewContext(context.Background(), &lambdacontext.LambdaContext{AwsRequestID: "req-1"})
	assert.Equal(t, "req-1", requestID(ctx))

	event := models.KinesisEvent{Records: []models.KinesisEventRecord{
		{EventID: "a", Kinesis: models.KinesisRecord{Data: data}},
		{EventID: "b", Kinesis: models.KinesisRecord{Data: "!!!"}},
	}}
	summary, err := routerHandler(c.pipeline)(ctx, event)
	require.NoError(t, err)
	assert.Equal(t, models.Summary{ProcessedRecords: 2, FailedRecords: 1}, summary)
}

func TestTransformHandler(t *testing.T) {
	c, err := buildComponents(context.Background(), testConfig())
	require.NoError(t, err)
	defer c.close()

	res, err := transformHandler(c.pipeline)(context.Background(), events.KinesisFirehoseEvent{
		Records: []events.KinesisFirehoseEventRecord{{RecordID: "x", Data: []byte("junk")}},
	})
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	assert.Equal(t, events.KinesisFirehoseTransformedStateProcessingFailed, res.Records[0].Result)
}

func TestPruneUsesRetentionWindow(t *testing.T) {
	c, err := buildComponents(context.Background(), testConfig())
	require.NoError(t, err)
	defer c.close()

	now := time.Date(2024, 1, 15, 6, 0, 0, 0, time.UTC)

	known, ok := c.known.(interface {
		MarkKnown(context.Context, string)
	})
	require.True(t, ok)
	known.MarkKnown(context.Background(), "logs-a-2024-01-12")
	known.MarkKnown(context.Background(), "logs-a-2024-01-13")
	known.MarkKnown(context.Background(), "logs-a-2024-01-14")

	assert.Equal(t, 1, c.prune(2, now))
}

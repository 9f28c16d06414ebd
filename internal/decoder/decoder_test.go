package decoder

import (
	"encoding/base64"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/backstage/services/logrouter/internal/models"
)

func sampleBatch() models.LogBatch {
	return models.LogBatch{
		LogGroup:    "/aws/ecs/gateway-prod/application",
		LogStream:   "ecs/gateway/abc",
		Owner:       "123456789012",
		MessageType: "DATA_MESSAGE",
		LogEvents: []models.LogRecord{
			{ID: "1", TimestampMillis: 1700000000000, Message: "hello"},
			{ID: "2", TimestampMillis: 1700000000001, Message: `{"level":"error"}`},
		},
	}
}

func TestDecodeCompressed(t *testing.T) {
	data, err := Encode(sampleBatch(), true)
	require.NoError(t, err)

	batch, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, "/aws/ecs/gateway-prod/application", batch.LogGroup)
	assert.Equal(t, "123456789012", batch.Owner)
	require.Len(t, batch.LogEvents, 2)
	assert.Equal(t, int64(1700000000001), batch.LogEvents[1].TimestampMillis)
}

func TestDecodeRawFallback(t *testing.T) {
	data, err := Encode(sampleBatch(), false)
	require.NoError(t, err)

	batch, err := Decode(data)
	require.NoError(t, err)
	assert.Len(t, batch.LogEvents, 2)
}

func TestDecodeControlMessage(t *testing.T) {
	for _, mt := range []string{"CONTROL_MESSAGE", "CONTROL"} {
		b := sampleBatch()
		b.MessageType = mt
		data, err := Encode(b, true)
		require.NoError(t, err)

		batch, err := Decode(data)
		require.NoError(t, err, mt)
		assert.Empty(t, batch.LogEvents, mt)
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name  string
		data  string
		stage string
	}{
		{"bad base64", "%%%not-base64", StageBase64},
		{"plain text", base64.StdEncoding.EncodeToString([]byte("hello world")), StageProbe},
		{"broken json", base64.StdEncoding.EncodeToString([]byte(`{"logGroup": `)), StageJSON},
		{"corrupt gzip", base64.StdEncoding.EncodeToString([]byte{0x1f, 0x8b, 0x00, 0x01, 0x02}), StageGunzip},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.data)
			require.Error(t, err)

			var decodeErr *DecodeError
			require.True(t, errors.As(err, &decodeErr))
			assert.Equal(t, tt.stage, decodeErr.Stage)
		})
	}
}

func TestProbe(t *testing.T) {
	assert.Equal(t, Compressed, Probe([]byte{0x1f, 0x8b, 0x08}))
	assert.Equal(t, Raw, Probe([]byte("  {\"a\":1}")))
	assert.Equal(t, Invalid, Probe([]byte("[1,2]")))
	assert.Equal(t, Invalid, Probe(nil))
	assert.Equal(t, "compressed", Compressed.String())
}

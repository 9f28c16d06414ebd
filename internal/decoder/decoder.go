package decoder

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"

	"example.com/backstage/services/logrouter/internal/models"
)

// Outcome is the result of probing a decoded payload
type Outcome int

const (
	// Invalid payloads are neither gzip nor JSON text
	Invalid Outcome = iota
	// Compressed payloads start with the gzip magic bytes
	Compressed
	// Raw payloads are uncompressed JSON text
	Raw
)

func (o Outcome) String() string {
	switch o {
	case Compressed:
		return "compressed"
	case Raw:
		return "raw"
	default:
		return "invalid"
	}
}

// Decode stages reported in DecodeError
const (
	StageBase64 = "base64"
	StageProbe  = "probe"
	StageGunzip = "gunzip"
	StageJSON   = "json"
)

// DecodeError reports a malformed transport envelope. It only affects the record it came from.
type DecodeError struct {
	Stage string
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode envelope (%s): %v", e.Stage, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Probe decides how a base64-decoded payload should be read
func Probe(payload []byte) Outcome {
	if len(payload) >= 2 && payload[0] == 0x1f && payload[1] == 0x8b {
		return Compressed
	}
	trimmed := bytes.TrimLeft(payload, " \t\r\n")
	if len(trimmed) > 0 && trimmed[0] == '{' {
		return Raw
	}
	return Invalid
}

// Decode turns a base64, optionally gzip-compressed, envelope into a LogBatch.
// Control messages decode to a batch with no records.
func Decode(data string) (models.LogBatch, error) {
	payload, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return models.LogBatch{}, &DecodeError{Stage: StageBase64, Err: err}
	}
	return DecodePayload(payload)
}

// DecodePayload decodes an envelope whose base64 layer is already removed
func DecodePayload(payload []byte) (models.LogBatch, error) {
	var (
		text []byte
		err  error
	)
	switch Probe(payload) {
	case Compressed:
		text, err = gunzip(payload)
		if err != nil {
			return models.LogBatch{}, &DecodeError{Stage: StageGunzip, Err: err}
		}
	case Raw:
		text = payload
	default:
		return models.LogBatch{}, &DecodeError{Stage: StageProbe, Err: errors.New("payload is neither gzip nor JSON")}
	}

	var batch models.LogBatch
	if err := json.Unmarshal(text, &batch); err != nil {
		return models.LogBatch{}, &DecodeError{Stage: StageJSON, Err: err}
	}

	if batch.IsControl() {
		batch.LogEvents = nil
	}

	return batch, nil
}

func gunzip(payload []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Wrap(err, "open gzip stream")
	}
	defer zr.Close()

	text, err := io.ReadAll(zr)
	if err != nil {
		return nil, errors.Wrap(err, "read gzip stream")
	}
	return text, nil
}

// Encode produces the envelope form Decode accepts. Used by tests and replay tooling.
func Encode(batch models.LogBatch, compress bool) (string, error) {
	text, err := json.Marshal(batch)
	if err != nil {
		return "", errors.Wrap(err, "marshal envelope")
	}
	if !compress {
		return base64.StdEncoding.EncodeToString(text), nil
	}

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(text); err != nil {
		return "", errors.Wrap(err, "compress envelope")
	}
	if err := zw.Close(); err != nil {
		return "", errors.Wrap(err, "compress envelope")
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

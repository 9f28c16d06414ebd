package models

import (
	"fmt"
	"time"
)

// Message types carried by a CloudWatch Logs subscription envelope
const (
	MessageTypeData    = "DATA"
	MessageTypeControl = "CONTROL"
)

// Canonical document keys that every document carries
const (
	FieldTimestamp  = "@timestamp"
	FieldLogGroup   = "log_group"
	FieldLogStream  = "log_stream"
	FieldService    = "service"
	FieldAccount    = "aws_account"
	FieldRawMessage = "raw_message"
	FieldEventID    = "event_id"
	FieldLevel      = "level"
)

// InputRecord is one transport-delivered record holding a base64 envelope
type InputRecord struct {
	ID   string
	Data string
}

// KinesisEvent is the batch a Kinesis Data Streams trigger delivers.
// Data stays a string so base64 decoding can fail per record.
type KinesisEvent struct {
	Records []KinesisEventRecord `json:"Records"`
}

// KinesisEventRecord is one record of a KinesisEvent
type KinesisEventRecord struct {
	AwsRegion      string        `json:"awsRegion"`
	EventID        string        `json:"eventID"`
	EventName      string        `json:"eventName"`
	EventSource    string        `json:"eventSource"`
	EventSourceArn string        `json:"eventSourceARN"`
	Kinesis        KinesisRecord `json:"kinesis"`
}

// KinesisRecord is the stream payload of a KinesisEventRecord
type KinesisRecord struct {
	ApproximateArrivalTimestamp float64 `json:"approximateArrivalTimestamp"`
	Data                        string  `json:"data"`
	PartitionKey                string  `json:"partitionKey"`
	SequenceNumber              string  `json:"sequenceNumber"`
}

// InputRecords converts the event into pipeline input records
func (e KinesisEvent) InputRecords() []InputRecord {
	records := make([]InputRecord, 0, len(e.Records))
	for _, r := range e.Records {
		records = append(records, InputRecord{ID: r.EventID, Data: r.Kinesis.Data})
	}
	return records
}

// LogBatch is one decoded CloudWatch Logs envelope
type LogBatch struct {
	LogGroup            string      `json:"logGroup"`
	LogStream           string      `json:"logStream"`
	Owner               string      `json:"owner"`
	MessageType         string      `json:"messageType"`
	SubscriptionFilters []string    `json:"subscriptionFilters"`
	LogEvents           []LogRecord `json:"logEvents"`
}

// IsControl reports whether the envelope is a control message
func (b LogBatch) IsControl() bool {
	return b.MessageType == MessageTypeControl || b.MessageType == "CONTROL_MESSAGE"
}

// LogRecord is one line of log output
type LogRecord struct {
	ID              string `json:"id"`
	TimestampMillis int64  `json:"timestamp"`
	Message         string `json:"message"`
}

// Bounds of the epoch milliseconds that render as a four-digit ISO-8601 year
var (
	MinTimestampMillis = time.Date(0, time.January, 1, 0, 0, 0, 0, time.UTC).UnixMilli()
	MaxTimestampMillis = time.Date(9999, time.December, 31, 23, 59, 59, 999e6, time.UTC).UnixMilli()
)

// ValidMillis reports whether ms lies within the renderable range
func ValidMillis(ms int64) bool {
	return ms >= MinTimestampMillis && ms <= MaxTimestampMillis
}

// Time returns the event time, or the zero time when the upstream omitted it
// or sent a value outside the renderable range
func (r LogRecord) Time() time.Time {
	if r.TimestampMillis == 0 || !ValidMillis(r.TimestampMillis) {
		return time.Time{}
	}
	return time.UnixMilli(r.TimestampMillis).UTC()
}

// Document is a normalized log document keyed by canonical field names
type Document map[string]any

// IndexSettings defines shard and replica counts for a created index
type IndexSettings struct {
	Shards   int `json:"number_of_shards"`
	Replicas int `json:"number_of_replicas"`
}

// IndexTarget identifies a destination index
type IndexTarget struct {
	Name     string
	Settings IndexSettings
}

// IndexedDocument pairs a document with its destination index
type IndexedDocument struct {
	RecordID string
	Target   IndexTarget
	Document Document
}

// ItemFailure is a per-document failure reported by the store
type ItemFailure struct {
	Index  string `json:"index"`
	Status int    `json:"status"`
	Error  string `json:"error"`
}

// BulkWriteResult aggregates the outcome of one bulk write
type BulkWriteResult struct {
	SuccessCount int           `json:"successCount"`
	ErrorCount   int           `json:"errorCount"`
	Failures     []ItemFailure `json:"failures,omitempty"`
}

// Summary is returned for every invocation
type Summary struct {
	ProcessedRecords int    `json:"processedRecords"`
	DocumentsIndexed int    `json:"documentsIndexed"`
	DocumentErrors   int    `json:"documentErrors"`
	FailedRecords    int    `json:"failedRecords"`
	TransportError   string `json:"transportError,omitempty"`
}

// FirehoseRequest is the body Firehose posts to an HTTP endpoint destination
type FirehoseRequest struct {
	RequestID string                  `json:"requestId" binding:"required"`
	Timestamp int64                   `json:"timestamp"`
	Records   []FirehoseRequestRecord `json:"records"`
}

// FirehoseRequestRecord is one base64 record of a FirehoseRequest
type FirehoseRequestRecord struct {
	Data string `json:"data"`
}

// FirehoseResponse acknowledges a FirehoseRequest
type FirehoseResponse struct {
	RequestID    string `json:"requestId"`
	Timestamp    int64  `json:"timestamp"`
	ErrorMessage string `json:"errorMessage,omitempty"`
}

// InputRecords converts the request into pipeline input records
func (r FirehoseRequest) InputRecords() []InputRecord {
	records := make([]InputRecord, 0, len(r.Records))
	for i, rec := range r.Records {
		records = append(records, InputRecord{ID: fmt.Sprintf("%s-%d", r.RequestID, i), Data: rec.Data})
	}
	return records
}

package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/elastic/go-elasticsearch/v7/esapi"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"example.com/backstage/services/logrouter/config"
	"example.com/backstage/services/logrouter/internal/models"
)

const alreadyExists = "resource_already_exists_exception"

// Client issues index and bulk requests to the document store
type Client struct {
	transport esapi.Transport
}

// NewClient creates a client over any esapi transport
func NewClient(transport esapi.Transport) *Client {
	return &Client{transport: transport}
}

// NewClientFromConfig builds a signed client from store configuration.
// When signing is enabled, configured static keys take precedence over
// the default AWS credential chain.
func NewClientFromConfig(ctx context.Context, cfg config.StoreConfig) (*Client, error) {
	var provider aws.CredentialsProvider
	switch {
	case !cfg.Sign:
	case cfg.AccessKey != "":
		provider = StaticCredentials(cfg.AccessKey, cfg.SecretKey, cfg.SessionToken)
	default:
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
		if err != nil {
			return nil, errors.Wrap(err, "failed to load AWS configuration")
		}
		provider = awsCfg.Credentials
	}

	transport, err := NewSignedTransport(TransportOptions{
		Endpoint:    cfg.Endpoint,
		Region:      cfg.Region,
		Service:     cfg.Service,
		Timeout:     cfg.Timeout,
		Credentials: provider,
		Username:    cfg.Username,
		Password:    cfg.Password,
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("endpoint", cfg.Endpoint).
		Str("region", cfg.Region).
		Bool("signed", cfg.Sign).
		Msg("Document store client configured")

	return NewClient(transport), nil
}

// StaticCredentials is a convenience for fixed access keys
func StaticCredentials(accessKey, secretKey, sessionToken string) aws.CredentialsProvider {
	return credentials.NewStaticCredentialsProvider(accessKey, secretKey, sessionToken)
}

// StatusError reports an unexpected response status
type StatusError struct {
	Op     string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: unexpected status %d", e.Op, e.Status)
	}
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Op, e.Status, e.Body)
}

// IndexExists reports whether the index is present
func (c *Client) IndexExists(ctx context.Context, name string) (bool, error) {
	res, err := esapi.IndicesExistsRequest{Index: []string{name}}.Do(ctx, c.transport)
	if err != nil {
		return false, errors.Wrapf(err, "failed to check index %s", name)
	}
	defer drain(res)

	switch res.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, &StatusError{Op: "index exists " + name, Status: res.StatusCode}
	}
}

// CreateIndex creates the index with the given settings. It returns
// false without error when the index already exists.
func (c *Client) CreateIndex(ctx context.Context, name string, settings models.IndexSettings) (bool, error) {
	body, err := json.Marshal(map[string]any{"settings": settings})
	if err != nil {
		return false, errors.Wrap(err, "failed to encode index settings")
	}

	res, err := esapi.IndicesCreateRequest{
		Index: name,
		Body:  bytes.NewReader(body),
	}.Do(ctx, c.transport)
	if err != nil {
		return false, errors.Wrapf(err, "failed to create index %s", name)
	}
	defer drain(res)

	if !res.IsError() {
		return true, nil
	}

	text := readBody(res)
	if strings.Contains(text, alreadyExists) {
		return false, nil
	}
	return false, &StatusError{Op: "create index " + name, Status: res.StatusCode, Body: text}
}

// BulkItemError is the error object of a failed bulk item
type BulkItemError struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

// BulkItemResult is one entry of a bulk response
type BulkItemResult struct {
	Index  string         `json:"_index"`
	ID     string         `json:"_id"`
	Status int            `json:"status"`
	Error  *BulkItemError `json:"error,omitempty"`
}

// BulkResponse is the decoded body of a bulk call
type BulkResponse struct {
	Took   int                         `json:"took"`
	Errors bool                        `json:"errors"`
	Items  []map[string]BulkItemResult `json:"items"`
}

// Bulk submits an NDJSON body. Any non-2xx status is an error.
func (c *Client) Bulk(ctx context.Context, body []byte) (*BulkResponse, error) {
	res, err := esapi.BulkRequest{Body: bytes.NewReader(body)}.Do(ctx, c.transport)
	if err != nil {
		return nil, errors.Wrap(err, "bulk request failed")
	}
	defer drain(res)

	if res.IsError() {
		return nil, &StatusError{Op: "bulk", Status: res.StatusCode, Body: readBody(res)}
	}

	var out BulkResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, errors.Wrap(err, "failed to decode bulk response")
	}
	return &out, nil
}

func readBody(res *esapi.Response) string {
	data, err := io.ReadAll(io.LimitReader(res.Body, 4096))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func drain(res *esapi.Response) {
	if res == nil || res.Body == nil {
		return
	}
	io.Copy(io.Discard, res.Body)
	res.Body.Close()
}

package store

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/pkg/errors"
)

// emptyPayloadHash is the SHA-256 of an empty body
const emptyPayloadHash = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"

const ndjsonContentType = "application/x-ndjson"

// SignedTransport performs esapi requests against a single endpoint,
// signing them with SigV4 when credentials are configured
type SignedTransport struct {
	endpoint    *url.URL
	client      *http.Client
	credentials aws.CredentialsProvider
	signer      *v4.Signer
	service     string
	region      string
	username    string
	password    string
	now         func() time.Time
}

// TransportOptions configures a SignedTransport
type TransportOptions struct {
	Endpoint    string
	Region      string
	Service     string
	Timeout     time.Duration
	Credentials aws.CredentialsProvider
	Username    string
	Password    string
	HTTPClient  *http.Client
}

// NewSignedTransport creates a transport for the given endpoint.
// A bare host name is treated as https.
func NewSignedTransport(opts TransportOptions) (*SignedTransport, error) {
	endpoint, err := ParseEndpoint(opts.Endpoint)
	if err != nil {
		return nil, err
	}

	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
			},
		}
	}

	service := opts.Service
	if service == "" {
		service = "es"
	}

	return &SignedTransport{
		endpoint:    endpoint,
		client:      client,
		credentials: opts.Credentials,
		signer:      v4.NewSigner(),
		service:     service,
		region:      opts.Region,
		username:    opts.Username,
		password:    opts.Password,
		now:         time.Now,
	}, nil
}

// ParseEndpoint normalizes a configured endpoint into a base URL
func ParseEndpoint(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, errors.New("document store endpoint is empty")
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	endpoint, err := url.Parse(raw)
	if err != nil {
		return nil, errors.Wrap(err, "invalid document store endpoint")
	}
	if endpoint.Host == "" {
		return nil, errors.Errorf("invalid document store endpoint %q", raw)
	}
	endpoint.Path = strings.TrimSuffix(endpoint.Path, "/")
	return endpoint, nil
}

// Perform implements esapi.Transport
func (t *SignedTransport) Perform(req *http.Request) (*http.Response, error) {
	// Point the relative esapi request at the endpoint
	req.URL.Scheme = t.endpoint.Scheme
	req.URL.Host = t.endpoint.Host
	req.URL.Path = t.endpoint.Path + req.URL.Path
	req.Host = t.endpoint.Host

	// esapi sends bulk bodies as application/json
	if strings.HasSuffix(req.URL.Path, "/_bulk") {
		req.Header.Set("Content-Type", ndjsonContentType)
	}

	// Buffer the body once so it can be hashed and replayed
	payloadHash := emptyPayloadHash
	if req.Body != nil {
		body, err := io.ReadAll(req.Body)
		req.Body.Close()
		if err != nil {
			return nil, errors.Wrap(err, "failed to read request body")
		}
		sum := sha256.Sum256(body)
		payloadHash = hex.EncodeToString(sum[:])

		req.Body = io.NopCloser(bytes.NewReader(body))
		req.ContentLength = int64(len(body))
		req.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(body)), nil
		}
	}

	if t.username != "" {
		req.SetBasicAuth(t.username, t.password)
	}

	if t.credentials != nil {
		if err := t.sign(req.Context(), req, payloadHash); err != nil {
			return nil, err
		}
	}

	return t.client.Do(req)
}

func (t *SignedTransport) sign(ctx context.Context, req *http.Request, payloadHash string) error {
	creds, err := t.credentials.Retrieve(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to retrieve signing credentials")
	}

	req.Header.Set("X-Amz-Content-Sha256", payloadHash)
	if err := t.signer.SignHTTP(ctx, creds, req, payloadHash, t.service, t.region, t.now()); err != nil {
		return errors.Wrap(err, "failed to sign request")
	}
	return nil
}

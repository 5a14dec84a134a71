package actions

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type Request struct {
	Method string
	URL    string
	Body   map[string]any
}

// Transport delivers a request to an action endpoint. Non-2xx statuses are
// replies, not errors; an error means no usable reply was received.
type Transport interface {
	Do(ctx context.Context, req Request) (Reply, error)
}

const defaultTransportTimeout = 30 * time.Second

type HTTPTransport struct {
	client *http.Client
}

type HTTPTransportOption func(*HTTPTransport)

func WithHTTPClient(client *http.Client) HTTPTransportOption {
	return func(t *HTTPTransport) { t.client = client }
}

func WithTimeout(timeout time.Duration) HTTPTransportOption {
	return func(t *HTTPTransport) {
		if timeout > 0 {
			t.client.Timeout = timeout
		}
	}
}

var _ Transport = (*HTTPTransport)(nil)

func NewHTTPTransport(opts ...HTTPTransportOption) *HTTPTransport {
	t := &HTTPTransport{client: &http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
		Timeout:   defaultTransportTimeout,
	}}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *HTTPTransport) Do(ctx context.Context, req Request) (Reply, error) {
	body, err := json.Marshal(req.Body)
	if err != nil {
		return Reply{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	method := req.Method
	if method == "" {
		method = http.MethodPost
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, bytes.NewReader(body))
	if err != nil {
		return Reply{}, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return Reply{}, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Reply{}, fmt.Errorf("failed to read response: %w", err)
	}

	reply, err := DecodeReply(resp.StatusCode, data)
	if err != nil {
		logger.Debug("undecodable reply", "status", resp.StatusCode, "url", req.URL)
		return Reply{}, err
	}
	return reply, nil
}

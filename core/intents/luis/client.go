// Package luis classifies utterances with a LUIS style prediction endpoint:
// the utterance is appended to the endpoint URL and the reply carries
// prediction.topIntent.
package luis

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/koscakluka/voiceforms/core/intents"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const noneIntent = "None"

type Client struct {
	endpoint   string
	httpClient *http.Client
	aliases    map[string]string
}

type ClientOption func(*Client)

func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = client }
}

// WithAliases maps predicted labels onto catalog intent names.
func WithAliases(aliases map[string]string) ClientOption {
	return func(c *Client) {
		for label, intent := range aliases {
			c.aliases[label] = intent
		}
	}
}

var _ intents.Classifier = (*Client)(nil)

func NewClient(endpoint string, opts ...ClientOption) (*Client, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("luis endpoint not configured")
	}
	c := &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		aliases:    map[string]string{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type predictionResponse struct {
	Prediction struct {
		TopIntent string `json:"topIntent"`
	} `json:"prediction"`
}

func (c *Client) Classify(ctx context.Context, utterance string) (string, error) {
	ctx, span := tracer.Start(ctx, "classify utterance")
	defer span.End()

	label, err := c.predict(ctx, utterance)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	span.SetAttributes(attribute.String("intent.label", label))

	if label == "" || strings.EqualFold(label, noneIntent) {
		return "", intents.ErrNoIntent
	}
	if alias, ok := c.aliases[label]; ok {
		return alias, nil
	}
	return label, nil
}

func (c *Client) predict(ctx context.Context, utterance string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+url.QueryEscape(utterance), nil)
	if err != nil {
		return "", fmt.Errorf("failed to create prediction request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send prediction request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read prediction response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		logger.Debug("prediction request rejected", "status", resp.StatusCode, "body", string(body))
		return "", fmt.Errorf("prediction failed with status %d", resp.StatusCode)
	}

	var prediction predictionResponse
	if err := json.Unmarshal(body, &prediction); err != nil {
		return "", fmt.Errorf("failed to decode prediction: %w", err)
	}
	return prediction.Prediction.TopIntent, nil
}

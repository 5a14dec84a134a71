// Package groq classifies utterances with a Groq hosted chat model, using
// structured output restricted to the catalog's intent names.
package groq

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/koscakluka/voiceforms/core/intents"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	defaultURL   = "https://api.groq.com/openai/v1/chat/completions"
	defaultModel = "openai/gpt-oss-20b"
	noneIntent   = "none"
)

//go:embed classifierInstr.tmpl
var classifierSystemPrompt string

type classification struct {
	Intent string `json:"intent" jsonschema:"title=Intent,description=The intent the command asks for"`
}

type Classifier struct {
	apiKey     string
	url        string
	model      string
	names      []string
	httpClient *http.Client
}

type ClassifierOption func(*Classifier)

func WithURL(url string) ClassifierOption {
	return func(c *Classifier) { c.url = url }
}

func WithModel(model string) ClassifierOption {
	return func(c *Classifier) {
		if model != "" {
			c.model = model
		}
	}
}

func WithHTTPClient(client *http.Client) ClassifierOption {
	return func(c *Classifier) { c.httpClient = client }
}

var _ intents.Classifier = (*Classifier)(nil)

// NewClassifier builds a classifier that only ever answers with one of
// names.
func NewClassifier(apiKey string, names []string, opts ...ClassifierOption) (*Classifier, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("groq api key not found")
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("no intents to classify into")
	}

	c := &Classifier{
		apiKey:     apiKey,
		url:        defaultURL,
		model:      defaultModel,
		names:      slices.Clone(names),
		httpClient: &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Classifier) Classify(ctx context.Context, utterance string) (string, error) {
	ctx, span := tracer.Start(ctx, "classify utterance")
	defer span.End()
	span.SetAttributes(attribute.String("request.model", c.model))

	if strings.TrimSpace(utterance) == "" {
		return "", intents.ErrNoIntent
	}

	result, err := c.prompt(ctx, utterance)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	span.SetAttributes(attribute.String("intent.label", result.Intent))

	if result.Intent == noneIntent || !slices.Contains(c.names, result.Intent) {
		logger.Debug("utterance matched no intent", "label", result.Intent)
		return "", intents.ErrNoIntent
	}
	return result.Intent, nil
}

// schema restricts the intent field to the known names.
func (c *Classifier) schema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{DoNotReference: true}
	schema := reflector.Reflect(&classification{})
	if property, ok := schema.Properties.Get("intent"); ok {
		for _, name := range c.names {
			property.Enum = append(property.Enum, name)
		}
		property.Enum = append(property.Enum, noneIntent)
	}
	return schema
}

func (c *Classifier) systemPrompt() string {
	var prompt strings.Builder
	prompt.WriteString(classifierSystemPrompt)
	for _, name := range c.names {
		fmt.Fprintf(&prompt, "- %s\n", name)
	}
	return prompt.String()
}

func (c *Classifier) prompt(ctx context.Context, utterance string) (*classification, error) {
	reqBody := requestBody{
		Model: c.model,
		Messages: []message{
			{Role: roleSystem, Content: c.systemPrompt()},
			{Role: roleUser, Content: utterance},
		},
		ResponseFormat: &responseFormat{
			Type: "json_schema",
			JSONSchema: &jsonSchema{
				Name:   "classification",
				Schema: c.schema(),
				Strict: true,
			},
		},
	}

	requestBodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("error marshalling JSON: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewBuffer(requestBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("error creating HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error sending request: %w", err)
	}
	defer resp.Body.Close()

	respBodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("non-OK HTTP status: %s: %s", resp.Status, strings.TrimSpace(string(respBodyBytes)))
	}

	var responseBody responseBody
	if err := json.Unmarshal(respBodyBytes, &responseBody); err != nil {
		return nil, fmt.Errorf("error unmarshalling response: %w", err)
	}
	if len(responseBody.Choices) == 0 {
		return nil, fmt.Errorf("no choices in response")
	}

	content := responseBody.Choices[0].Message.Content
	if split := strings.Split(content, "```"); len(split) > 1 {
		content = strings.TrimPrefix(split[1], "json")
	}

	var result classification
	if err := json.Unmarshal([]byte(content), &result); err != nil {
		return nil, fmt.Errorf("error unmarshalling classification: %w", err)
	}
	return &result, nil
}

const (
	roleSystem = "system"
	roleUser   = "user"
)

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type requestBody struct {
	Model          string          `json:"model"`
	Messages       []message       `json:"messages"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type       string      `json:"type"`
	JSONSchema *jsonSchema `json:"json_schema,omitempty"`
}

type jsonSchema struct {
	Name   string             `json:"name"`
	Schema *jsonschema.Schema `json:"schema"`
	Strict bool               `json:"strict"`
}

type responseBody struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role,omitempty"`
			Content string `json:"content,omitempty"`
		} `json:"message"`
	} `json:"choices"`
}

// Package deepgram synthesizes speech through the Deepgram speak endpoint.
package deepgram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/koscakluka/voiceforms/core/audio"
	"github.com/koscakluka/voiceforms/core/texttospeech"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const defaultSpeakURL = "https://api.deepgram.com/v1/speak"

type TextToSpeechClient struct {
	apiKey     string
	speakURL   string
	voice      Voice
	encoding   audio.EncodingInfo
	httpClient *http.Client
}

type TextToSpeechOption func(*TextToSpeechClient)

func WithSpeakURL(speakURL string) TextToSpeechOption {
	return func(c *TextToSpeechClient) { c.speakURL = speakURL }
}

func WithVoice(voice Voice) TextToSpeechOption {
	return func(c *TextToSpeechClient) { c.voice = voice }
}

func WithEncodingInfo(encodingInfo audio.EncodingInfo) TextToSpeechOption {
	return func(c *TextToSpeechClient) {
		if !encodingInfo.IsZero() {
			c.encoding = encodingInfo
		}
	}
}

func WithHTTPClient(client *http.Client) TextToSpeechOption {
	return func(c *TextToSpeechClient) { c.httpClient = client }
}

var _ texttospeech.Synthesizer = (*TextToSpeechClient)(nil)

func NewTextToSpeechClient(apiKey string, opts ...TextToSpeechOption) (*TextToSpeechClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("deepgram api key not found")
	}

	client := &TextToSpeechClient{
		apiKey:     apiKey,
		speakURL:   defaultSpeakURL,
		voice:      defaultVoice,
		encoding:   audio.GetDefaultEncodingInfo(),
		httpClient: &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
	}
	for _, opt := range opts {
		opt(client)
	}

	if !slices.Contains(GetAvailableVoices(), client.voice) {
		return nil, fmt.Errorf("invalid voice %q", client.voice)
	}
	if client.encoding.Format != audio.EncodingLinear16 &&
		client.encoding.Format != audio.EncodingMulaw &&
		client.encoding.Format != audio.EncodingALaw {
		return nil, fmt.Errorf("unsupported encoding %q", client.encoding.Format)
	}

	return client, nil
}

func (c *TextToSpeechClient) SetVoice(voice Voice) error {
	if !slices.Contains(GetAvailableVoices(), voice) {
		return fmt.Errorf("invalid voice %q", voice)
	}
	c.voice = voice
	return nil
}

func (c *TextToSpeechClient) EncodingInfo() audio.EncodingInfo {
	return c.encoding
}

type speakRequest struct {
	Text string `json:"text"`
}

type speakError struct {
	ErrCode string `json:"err_code"`
	ErrMsg  string `json:"err_msg"`
}

// Synthesize returns raw audio without a container in the client's encoding.
func (c *TextToSpeechClient) Synthesize(ctx context.Context, text string) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "synthesize speech")
	defer span.End()
	span.SetAttributes(
		attribute.String("tts.voice", string(c.voice)),
		attribute.Int("tts.text_length", len(text)),
	)

	if strings.TrimSpace(text) == "" {
		return nil, texttospeech.ErrEmptyText
	}

	audioData, err := c.speak(ctx, text)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("tts.audio_bytes", len(audioData)))
	return audioData, nil
}

func (c *TextToSpeechClient) speak(ctx context.Context, text string) ([]byte, error) {
	speakURL, err := url.Parse(c.speakURL)
	if err != nil {
		return nil, fmt.Errorf("invalid speak url: %w", err)
	}
	query := speakURL.Query()
	query.Set("model", string(c.voice))
	query.Set("encoding", c.encoding.Format.Name())
	query.Set("sample_rate", strconv.Itoa(c.encoding.SampleRate))
	query.Set("container", "none")
	speakURL.RawQuery = query.Encode()

	body, err := json.Marshal(speakRequest{Text: text})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal speak request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, speakURL.String(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create speak request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send speak request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read speak response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr speakError
		if err := json.Unmarshal(data, &apiErr); err == nil && apiErr.ErrMsg != "" {
			return nil, fmt.Errorf("deepgram speak failed with status %d: %s", resp.StatusCode, apiErr.ErrMsg)
		}
		logger.Debug("unexpected speak error body", "status", resp.StatusCode, "body", string(data))
		return nil, fmt.Errorf("deepgram speak failed with status %d", resp.StatusCode)
	}

	return data, nil
}

// Package deepgram recognizes microphone speech through the Deepgram live
// transcription websocket.
package deepgram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/koscakluka/voiceforms/core/audio"
	"github.com/koscakluka/voiceforms/core/speechtotext"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const defaultListenURL = "wss://api.deepgram.com/v1/listen"

// AudioInput is the capture side of an audio device.
type AudioInput interface {
	StartCapture(ctx context.Context, onAudio func(audio []byte)) error
	StopCapture() error
	EncodingInfo() audio.EncodingInfo
}

type Recognizer struct {
	apiKey    string
	listenURL string
	model     string
	input     AudioInput
	dialer    *websocket.Dialer
}

type RecognizerOption func(*Recognizer)

func WithListenURL(listenURL string) RecognizerOption {
	return func(r *Recognizer) { r.listenURL = listenURL }
}

func WithModel(model string) RecognizerOption {
	return func(r *Recognizer) { r.model = model }
}

var _ speechtotext.Recognizer = (*Recognizer)(nil)

func NewRecognizer(apiKey string, input AudioInput, opts ...RecognizerOption) (*Recognizer, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("deepgram api key not found")
	}
	if input == nil {
		return nil, fmt.Errorf("%w: no audio input configured", audio.ErrDeviceUnavailable)
	}

	r := &Recognizer{
		apiKey:    apiKey,
		listenURL: defaultListenURL,
		model:     "nova-3",
		input:     input,
		dialer:    websocket.DefaultDialer,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

func (r *Recognizer) RecognizeOnce(ctx context.Context, opts ...speechtotext.RecognitionOption) (speechtotext.Recognition, error) {
	ctx, span := tracer.Start(ctx, "recognize once")
	defer span.End()

	options := speechtotext.NewRecognitionOptions(opts...)
	utterances := make(chan string, 1)
	speechStarted := make(chan struct{}, 1)

	s := newStream(options, func(utterance string) {
		select {
		case utterances <- utterance:
		default:
		}
	})
	s.onSpeechStarted = func() {
		select {
		case speechStarted <- struct{}{}:
		default:
		}
	}

	closed, err := r.open(ctx, s)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return speechtotext.Recognition{}, err
	}
	defer r.close(s, closed)

	silence := time.NewTimer(options.SilenceTimeout)
	defer silence.Stop()

	for {
		select {
		case utterance := <-utterances:
			span.SetAttributes(attribute.Int("recognition.length", len(utterance)))
			return speechtotext.Recognition{Text: utterance}, nil
		case <-speechStarted:
			silence.Stop()
		case <-silence.C:
			return speechtotext.Recognition{Cancelled: true, Reason: "no speech detected"}, nil
		case <-closed:
			return speechtotext.Recognition{Cancelled: true, Reason: "connection closed"}, nil
		case <-ctx.Done():
			return speechtotext.Recognition{Cancelled: true, Reason: "cancelled"}, nil
		}
	}
}

func (r *Recognizer) RecognizeContinuous(ctx context.Context, opts ...speechtotext.RecognitionOption) error {
	ctx, span := tracer.Start(ctx, "recognize continuous")
	defer span.End()

	s := newStream(speechtotext.NewRecognitionOptions(opts...), nil)
	closed, err := r.open(ctx, s)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	defer r.close(s, closed)

	select {
	case <-ctx.Done():
	case <-closed:
	}
	return nil
}

// open dials the websocket, starts the reader and then the microphone. The
// returned channel closes when the reader stops.
func (r *Recognizer) open(ctx context.Context, s *stream) (<-chan struct{}, error) {
	encoding, err := convertEncoding(r.input.EncodingInfo())
	if err != nil {
		return nil, fmt.Errorf("invalid encoding: %w", err)
	}

	conn, err := r.connectWebsocket(ctx, connectionOptions{
		sampleRate:        encoding.SampleRate,
		encoding:          encoding.Format,
		language:          s.options.Language,
		interimResults:    s.options.InterimCallback != nil,
		detectSpeechStart: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open websocket: %w", err)
	}
	s.conn = conn

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		s.readAndProcessMessages()
	}()

	if err := r.input.StartCapture(ctx, func(frame []byte) {
		if err := s.sendAudio(frame); err != nil {
			logger.Debug("dropped audio frame", "error", err)
		}
	}); err != nil {
		_ = conn.Close()
		<-closed
		return nil, fmt.Errorf("failed to start audio capture: %w", err)
	}

	return closed, nil
}

func (r *Recognizer) close(s *stream, closed <-chan struct{}) {
	if err := r.input.StopCapture(); err != nil {
		logger.Warn("failed to stop audio capture", "error", err)
	}
	if err := s.closeStream(); err != nil {
		logger.Debug("failed to request stream close", "error", err)
	}

	select {
	case <-closed:
	case <-time.After(2 * time.Second):
	}
	_ = s.conn.Close()
}

type connectionOptions struct {
	sampleRate int
	encoding   string
	language   string

	detectSpeechStart bool
	interimResults    bool
}

func (r *Recognizer) connectWebsocket(ctx context.Context, options connectionOptions) (*websocket.Conn, error) {
	listenURL, err := url.Parse(r.listenURL)
	if err != nil {
		return nil, fmt.Errorf("invalid listen url: %w", err)
	}

	queryParams := listenURL.Query()
	queryParams.Set("encoding", options.encoding)
	queryParams.Set("sample_rate", strconv.Itoa(options.sampleRate))
	queryParams.Set("channels", "1")
	queryParams.Set("model", r.model)
	queryParams.Set("language", options.language)
	queryParams.Set("smart_format", "true")
	queryParams.Set("utterance_end_ms", "1000")
	queryParams.Set("interim_results", "true")
	queryParams.Set("endpointing", "300")
	if options.detectSpeechStart {
		queryParams.Set("vad_events", "true")
	}
	listenURL.RawQuery = queryParams.Encode()

	conn, _, err := r.dialer.DialContext(ctx, listenURL.String(),
		http.Header{"Authorization": {"Token " + r.apiKey}})
	if err != nil {
		return nil, fmt.Errorf("failed to open socket connection to deepgram: %w", err)
	}
	return conn, nil
}

var errStreamClosed = errors.New("stream closed")

type stream struct {
	conn   *websocket.Conn
	connMu sync.Mutex
	closed bool

	options speechtotext.RecognitionOptions

	accumulatedTranscript string
	unendedSegment        bool

	onUtterance     func(string)
	onSpeechStarted func()
}

func newStream(options speechtotext.RecognitionOptions, onUtterance func(string)) *stream {
	return &stream{options: options, onUtterance: onUtterance}
}

func (s *stream) sendAudio(frame []byte) error {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	if s.closed || s.conn == nil {
		return errStreamClosed
	}
	if err := s.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		return fmt.Errorf("failed to write to deepgram client: %w", err)
	}
	return nil
}

func (s *stream) closeStream() error {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	if s.closed || s.conn == nil {
		return nil
	}
	s.closed = true
	if err := s.conn.WriteJSON(controlMessage{Type: closeStreamType}); err != nil {
		return fmt.Errorf("failed to close deepgram stream: %w", err)
	}
	return nil
}

func (s *stream) readAndProcessMessages() {
	for {
		msgType, msg, err := s.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				logger.Debug("deepgram websocket read ended", "error", err)
			}
			return
		}
		if msgType != websocket.BinaryMessage {
			s.processMessage(msg)
		}
	}
}

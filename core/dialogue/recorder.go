package dialogue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/koscakluka/voiceforms/core/speechtotext"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const DefaultContinuousTimeout = 60 * time.Second

// Recorder captures answers from a recognizer. At most one recording is
// active at a time: starting a capture cancels and waits out the previous
// one.
type Recorder struct {
	recognizer speechtotext.Recognizer

	mu         sync.Mutex
	cancel     context.CancelFunc
	done       chan struct{}
	generation uint64
}

func NewRecorder(recognizer speechtotext.Recognizer) *Recorder {
	return &Recorder{recognizer: recognizer}
}

var errNoRecognizer = errors.New("no speech recognizer configured")

// begin cancels any in-flight recording and registers a new one. The
// returned finish must be called once the recording has returned.
func (r *Recorder) begin(ctx context.Context, timeout time.Duration) (context.Context, func()) {
	r.mu.Lock()
	previousCancel, previousDone := r.cancel, r.done

	var recordingCtx context.Context
	var cancel context.CancelFunc
	if timeout > 0 {
		recordingCtx, cancel = context.WithTimeout(ctx, timeout)
	} else {
		recordingCtx, cancel = context.WithCancel(ctx)
	}
	done := make(chan struct{})
	r.generation++
	generation := r.generation
	r.cancel, r.done = cancel, done
	r.mu.Unlock()

	if previousCancel != nil {
		previousCancel()
		<-previousDone
	}

	return recordingCtx, func() {
		cancel()
		r.mu.Lock()
		if r.generation == generation {
			r.cancel, r.done = nil, nil
		}
		r.mu.Unlock()
		close(done)
	}
}

// Stop cancels the active recording. It reports whether anything was
// recording; calling it when idle is a no-op.
func (r *Recorder) Stop() bool {
	r.mu.Lock()
	cancel := r.cancel
	r.mu.Unlock()

	if cancel == nil {
		return false
	}
	cancel()
	return true
}

func (r *Recorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cancel != nil
}

// CaptureOnce makes a single recognition attempt.
func (r *Recorder) CaptureOnce(ctx context.Context, opts ...speechtotext.RecognitionOption) (speechtotext.Recognition, error) {
	if r.recognizer == nil {
		return speechtotext.Recognition{}, errNoRecognizer
	}

	ctx, span := tracer.Start(ctx, "capture single answer")
	defer span.End()

	recordingCtx, finish := r.begin(ctx, 0)
	defer finish()

	recognition, err := r.recognizer.RecognizeOnce(recordingCtx, opts...)
	if err != nil {
		err = fmt.Errorf("failed to recognize speech: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return speechtotext.Recognition{}, err
	}
	if recordingCtx.Err() != nil && !recognition.Recognized() {
		recognition.Cancelled = true
	}
	span.SetAttributes(attribute.Bool("recognition.recognized", recognition.Recognized()))
	return recognition, nil
}

// CaptureContinuous joins every recognized fragment until Stop is called or
// timeout elapses, whichever comes first, and returns the joined text, which
// may be empty.
func (r *Recorder) CaptureContinuous(ctx context.Context, timeout time.Duration, onFragment func(string)) (string, error) {
	if r.recognizer == nil {
		return "", errNoRecognizer
	}
	if timeout <= 0 {
		timeout = DefaultContinuousTimeout
	}

	ctx, span := tracer.Start(ctx, "capture continuous answer")
	defer span.End()

	recordingCtx, finish := r.begin(ctx, timeout)
	defer finish()

	var (
		mu      sync.Mutex
		settled bool
		answer  strings.Builder
	)
	appendFragment := func(fragment string) {
		fragment = strings.TrimSpace(fragment)
		if fragment == "" {
			return
		}
		mu.Lock()
		if settled {
			mu.Unlock()
			return
		}
		if answer.Len() > 0 {
			answer.WriteString(" ")
		}
		answer.WriteString(fragment)
		mu.Unlock()

		if onFragment != nil {
			onFragment(fragment)
		}
	}

	err := r.recognizer.RecognizeContinuous(recordingCtx, speechtotext.WithFragmentCallback(appendFragment))

	mu.Lock()
	settled = true
	text := answer.String()
	mu.Unlock()

	stoppedBy := "stream_ended"
	switch {
	case errors.Is(recordingCtx.Err(), context.DeadlineExceeded):
		stoppedBy = "timeout"
	case recordingCtx.Err() != nil:
		stoppedBy = "stopped"
	}
	span.SetAttributes(
		attribute.String("recording.stopped_by", stoppedBy),
		attribute.Int("recording.length", len(text)),
	)

	if err != nil && text == "" {
		err = fmt.Errorf("failed to recognize speech: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	return text, nil
}

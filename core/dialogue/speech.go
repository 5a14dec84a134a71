package dialogue

import (
	"context"
	"fmt"

	"github.com/koscakluka/voiceforms/core/texttospeech"
	"go.opentelemetry.io/otel/codes"
)

// AudioOutput plays a complete clip and returns once it has been heard.
type AudioOutput interface {
	Play(ctx context.Context, audio []byte) error
}

// speechOutput synthesizes and plays text. Missing collaborators make it a
// no-op so the controller can run headless.
type speechOutput struct {
	synthesizer texttospeech.Synthesizer
	output      AudioOutput
}

func (s *speechOutput) Speak(ctx context.Context, text string) error {
	if s.synthesizer == nil || text == "" {
		return nil
	}

	ctx, span := tracer.Start(ctx, "speak")
	defer span.End()

	audio, err := s.synthesizer.Synthesize(ctx, text)
	if err != nil {
		err = fmt.Errorf("failed to synthesize speech: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	if s.output == nil {
		return nil
	}
	if err := s.output.Play(ctx, audio); err != nil {
		err = fmt.Errorf("failed to play speech: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

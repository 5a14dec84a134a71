// Package texttospeech turns the engine's spoken messages and question
// prompts into audio.
package texttospeech

import (
	"context"
	"errors"
)

var ErrEmptyText = errors.New("nothing to synthesize")

// Synthesizer produces a complete audio clip for text.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// Package speechtotext defines how the dialogue engine asks for user speech.
package speechtotext

import (
	"context"
	"errors"
)

// ErrNoSpeech is returned by recognizers that finished listening without
// hearing anything they could transcribe.
var ErrNoSpeech = errors.New("no speech recognized")

// Recognition is the outcome of a single recognition attempt. Cancelled is
// set when the attempt ended without usable speech.
type Recognition struct {
	Text      string
	Cancelled bool
	Reason    string
}

func (r Recognition) Recognized() bool { return !r.Cancelled && r.Text != "" }

type Recognizer interface {
	// RecognizeOnce listens for one utterance and returns its transcript.
	RecognizeOnce(ctx context.Context, opts ...RecognitionOption) (Recognition, error)
	// RecognizeContinuous keeps transcribing until ctx is done, passing every
	// finalized fragment to the fragment callback. Cancelling ctx is the stop
	// signal; it returns nil in that case.
	RecognizeContinuous(ctx context.Context, opts ...RecognitionOption) error
}

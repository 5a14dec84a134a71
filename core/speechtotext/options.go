package speechtotext

import (
	"time"

	"github.com/koscakluka/voiceforms/core/audio"
)

type RecognitionOptions struct {
	// FragmentCallback receives every finalized transcript fragment.
	FragmentCallback func(fragment string)
	// InterimCallback receives mutable, not yet finalized transcripts.
	InterimCallback func(transcript string)

	SpeechStartedCallback func()
	SpeechEndedCallback   func()

	// Language is a BCP-47 tag, en-US when empty.
	Language string
	// SilenceTimeout bounds how long RecognizeOnce waits for speech to start.
	SilenceTimeout time.Duration

	EncodingInfo audio.EncodingInfo
}

type RecognitionOption func(*RecognitionOptions)

func NewRecognitionOptions(opts ...RecognitionOption) RecognitionOptions {
	options := RecognitionOptions{
		Language:       "en-US",
		SilenceTimeout: 10 * time.Second,
		EncodingInfo:   audio.GetDefaultEncodingInfo(),
	}
	for _, opt := range opts {
		opt(&options)
	}
	return options
}

func WithFragmentCallback(callback func(fragment string)) RecognitionOption {
	return func(o *RecognitionOptions) {
		o.FragmentCallback = callback
	}
}

func WithInterimCallback(callback func(transcript string)) RecognitionOption {
	return func(o *RecognitionOptions) {
		o.InterimCallback = callback
	}
}

func WithSpeechStartedCallback(callback func()) RecognitionOption {
	return func(o *RecognitionOptions) {
		o.SpeechStartedCallback = callback
	}
}

func WithSpeechEndedCallback(callback func()) RecognitionOption {
	return func(o *RecognitionOptions) {
		o.SpeechEndedCallback = callback
	}
}

func WithLanguage(language string) RecognitionOption {
	return func(o *RecognitionOptions) {
		if language != "" {
			o.Language = language
		}
	}
}

func WithSilenceTimeout(timeout time.Duration) RecognitionOption {
	return func(o *RecognitionOptions) {
		if timeout > 0 {
			o.SilenceTimeout = timeout
		}
	}
}

func WithEncodingInfo(encodingInfo audio.EncodingInfo) RecognitionOption {
	return func(o *RecognitionOptions) {
		if encodingInfo.IsZero() {
			return
		}
		o.EncodingInfo = encodingInfo
	}
}

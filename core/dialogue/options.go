package dialogue

import (
	"time"

	"github.com/koscakluka/voiceforms/core/events"
	"github.com/koscakluka/voiceforms/core/intents"
	"github.com/koscakluka/voiceforms/core/speechtotext"
	"github.com/koscakluka/voiceforms/core/texttospeech"
)

type ControllerOption func(*Controller)

func WithRecognizer(recognizer speechtotext.Recognizer) ControllerOption {
	return func(c *Controller) { c.recorder = NewRecorder(recognizer) }
}

func WithSynthesizer(synthesizer texttospeech.Synthesizer) ControllerOption {
	return func(c *Controller) { c.speech.synthesizer = synthesizer }
}

func WithAudioOutput(output AudioOutput) ControllerOption {
	return func(c *Controller) { c.speech.output = output }
}

// WithClassifier enables Listen.
func WithClassifier(classifier intents.Classifier) ControllerOption {
	return func(c *Controller) { c.classifier = classifier }
}

// WithContinuousTimeout bounds multi line answers. Defaults to
// [DefaultContinuousTimeout].
func WithContinuousTimeout(timeout time.Duration) ControllerOption {
	return func(c *Controller) {
		if timeout > 0 {
			c.continuousTimeout = timeout
		}
	}
}

// WithFollowUpChaining controls whether a successful intent with a next
// intent starts that intent right away. Enabled by default.
func WithFollowUpChaining(enabled bool) ControllerOption {
	return func(c *Controller) { c.followUp = enabled }
}

type callbacks struct {
	onEvent           func(events.Event)
	onStateChanged    func(from, to State)
	onQuestionAsked   func(key, prompt string)
	onAnswerRecorded  func(key, answer string)
	onAnswerPrefilled func(key, answer string)
	onTranscript      func(fragment string)
	onIntentCompleted func(intent string, success bool, message string)
	onMessageSpoken   func(message string)
	onViewChanged     func(view string)
}

// WithEventCallback receives every dialogue event.
func WithEventCallback(callback func(events.Event)) ControllerOption {
	return func(c *Controller) { c.callbacks.onEvent = callback }
}

func WithStateChangedCallback(callback func(from, to State)) ControllerOption {
	return func(c *Controller) { c.callbacks.onStateChanged = callback }
}

// WithQuestionAskedCallback is called before a question prompt is played.
func WithQuestionAskedCallback(callback func(key, prompt string)) ControllerOption {
	return func(c *Controller) { c.callbacks.onQuestionAsked = callback }
}

func WithAnswerRecordedCallback(callback func(key, answer string)) ControllerOption {
	return func(c *Controller) { c.callbacks.onAnswerRecorded = callback }
}

// WithAnswerPrefilledCallback is called for answers taken from storage
// instead of being asked.
func WithAnswerPrefilledCallback(callback func(key, answer string)) ControllerOption {
	return func(c *Controller) { c.callbacks.onAnswerPrefilled = callback }
}

// WithTranscriptCallback receives recognized speech: whole single shot
// answers and each fragment of a continuous one.
func WithTranscriptCallback(callback func(transcript string)) ControllerOption {
	return func(c *Controller) { c.callbacks.onTranscript = callback }
}

func WithIntentCompletedCallback(callback func(intent string, success bool, message string)) ControllerOption {
	return func(c *Controller) { c.callbacks.onIntentCompleted = callback }
}

func WithMessageSpokenCallback(callback func(message string)) ControllerOption {
	return func(c *Controller) { c.callbacks.onMessageSpoken = callback }
}

func WithViewChangedCallback(callback func(view string)) ControllerOption {
	return func(c *Controller) { c.callbacks.onViewChanged = callback }
}

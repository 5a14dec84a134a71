package dialogue

import "github.com/koscakluka/voiceforms/core/events"

type eventEmitter func(events.Event)

func newCallbackEventEmitter(opts callbacks) eventEmitter {
	return func(event events.Event) {
		if opts.onEvent != nil {
			opts.onEvent(event)
		}

		switch typedEvent := event.(type) {
		case events.StateChanged:
			if opts.onStateChanged != nil {
				opts.onStateChanged(parseState(typedEvent.From), parseState(typedEvent.To))
			}
		case events.QuestionAsked:
			if opts.onQuestionAsked != nil {
				opts.onQuestionAsked(typedEvent.Key, typedEvent.Prompt)
			}
		case events.AnswerRecorded:
			if opts.onAnswerRecorded != nil {
				opts.onAnswerRecorded(typedEvent.Key, typedEvent.Answer)
			}
		case events.AnswerPrefilled:
			if opts.onAnswerPrefilled != nil {
				opts.onAnswerPrefilled(typedEvent.Key, typedEvent.Answer)
			}
		case events.UserTranscriptSegment:
			if opts.onTranscript != nil {
				opts.onTranscript(typedEvent.Segment)
			}
		case events.UserTranscriptFinal:
			if opts.onTranscript != nil {
				opts.onTranscript(typedEvent.Transcript)
			}
		case events.IntentCompleted:
			if opts.onIntentCompleted != nil {
				opts.onIntentCompleted(typedEvent.Intent, typedEvent.Success, typedEvent.Message)
			}
		case events.MessageSpoken:
			if opts.onMessageSpoken != nil {
				opts.onMessageSpoken(typedEvent.Message)
			}
		case events.ViewChanged:
			if opts.onViewChanged != nil {
				opts.onViewChanged(typedEvent.View)
			}
		}
	}
}

func parseState(name string) State {
	for state := StateIdle; state <= StateExecuting; state++ {
		if state.String() == name {
			return state
		}
	}
	return StateIdle
}

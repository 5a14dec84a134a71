package dialogue

import "fmt"

type State int

const (
	StateIdle State = iota
	// StateListening waits for the utterance that names an intent.
	StateListening
	StateAwaitingQuestionPlayback
	StateAwaitingAnswer
	StateAdvancing
	StateExecuting
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateListening:
		return "listening"
	case StateAwaitingQuestionPlayback:
		return "awaiting_question_playback"
	case StateAwaitingAnswer:
		return "awaiting_answer"
	case StateAdvancing:
		return "advancing"
	case StateExecuting:
		return "executing"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

type inputKind int

const (
	inputNone inputKind = iota
	inputListen
	inputIntentSelected
	inputIntentWithoutQuestions
	// inputRejected refuses an intent before it starts.
	inputRejected
	inputPlaybackComplete
	inputAnswerCaptured
	inputCaptureFailed
	inputRetry
	inputMoreQuestions
	inputPrefilled
	inputQuestionsExhausted
	inputDispatchSettled
	inputAbort
)

type commandKind int

const (
	cmdNone commandKind = iota
	cmdRecognizeIntent
	cmdPlayQuestion
	cmdCapture
	cmdAdvance
	cmdDispatch
	cmdSpeak
	cmdSuspend
)

// next is the controller's transition table. ok is false when the state does
// not admit the input.
func next(state State, in inputKind) (State, commandKind, bool) {
	if in == inputAbort {
		return StateIdle, cmdSpeak, state != StateIdle
	}

	switch state {
	case StateIdle, StateListening:
		switch in {
		case inputListen:
			if state == StateIdle {
				return StateListening, cmdRecognizeIntent, true
			}
		case inputIntentSelected:
			return StateAwaitingQuestionPlayback, cmdPlayQuestion, true
		case inputIntentWithoutQuestions:
			return StateExecuting, cmdDispatch, true
		case inputRejected:
			return StateIdle, cmdSpeak, true
		case inputCaptureFailed:
			if state == StateListening {
				return StateIdle, cmdSuspend, true
			}
		}

	case StateAwaitingQuestionPlayback:
		if in == inputPlaybackComplete {
			return StateAwaitingAnswer, cmdCapture, true
		}

	case StateAwaitingAnswer:
		switch in {
		case inputAnswerCaptured:
			return StateAdvancing, cmdAdvance, true
		case inputCaptureFailed:
			return StateAwaitingAnswer, cmdSuspend, true
		case inputRetry:
			return StateAwaitingAnswer, cmdCapture, true
		}

	case StateAdvancing:
		switch in {
		case inputMoreQuestions:
			return StateAwaitingQuestionPlayback, cmdPlayQuestion, true
		case inputPrefilled:
			return StateAdvancing, cmdAdvance, true
		case inputQuestionsExhausted:
			return StateExecuting, cmdDispatch, true
		}

	case StateExecuting:
		if in == inputDispatchSettled {
			return StateIdle, cmdSpeak, true
		}
	}

	return state, cmdNone, false
}

package events

const (
	// KindStateChanged identifies a controller state transition.
	KindStateChanged Kind = "dialogue.state_changed"
	// KindIntentStarted identifies the start of an intent's question loop.
	KindIntentStarted Kind = "dialogue.intent_started"
	// KindIntentCompleted identifies the settled action of an intent.
	KindIntentCompleted Kind = "dialogue.intent_completed"
)

// StateChanged carries a controller state transition.
type StateChanged struct {
	Base
	From string `json:"from"`
	To   string `json:"to"`
}

// NewStateChanged creates a state changed event.
func NewStateChanged(from, to string) StateChanged {
	return StateChanged{Base: NewBase(KindStateChanged), From: from, To: to}
}

// IntentStarted marks a new session for an intent.
type IntentStarted struct {
	Base
	SessionID string `json:"session_id"`
	Intent    string `json:"intent"`
}

// NewIntentStarted creates an intent started event.
func NewIntentStarted(sessionID, intent string) IntentStarted {
	return IntentStarted{Base: NewBase(KindIntentStarted), SessionID: sessionID, Intent: intent}
}

// IntentCompleted carries the outcome of an intent's action.
type IntentCompleted struct {
	Base
	Intent   string `json:"intent"`
	ActionID string `json:"action_id"`
	Success  bool   `json:"success"`
	Message  string `json:"message"`
}

// NewIntentCompleted creates an intent completed event.
func NewIntentCompleted(intent, actionID string, success bool, message string) IntentCompleted {
	return IntentCompleted{
		Base:     NewBase(KindIntentCompleted),
		Intent:   intent,
		ActionID: actionID,
		Success:  success,
		Message:  message,
	}
}

// Package responses picks the single message spoken after an action settles.
package responses

import (
	"net/http"

	"github.com/koscakluka/voiceforms/core/actions"
)

// Outcome is the message to speak and whether the action succeeded.
type Outcome struct {
	Message string
	Success bool
	Reason  actions.Reason
}

// MessageSource resolves the success message of an action id.
type MessageSource interface {
	Response(actionID string) (string, bool)
}

type Interpreter struct {
	messages MessageSource
}

func NewInterpreter(messages MessageSource) *Interpreter {
	return &Interpreter{messages: messages}
}

// Interpret applies, in order: the dispatcher's own failure, the reply's
// error field, a keyed message map on an error status, and finally the
// configured success message of actionID. An error status without a keyed
// message still ends in the success message.
func (i *Interpreter) Interpret(actionID string, result actions.Result) Outcome {
	if reason, message, failed := result.Failure(); failed {
		return Outcome{Message: message, Reason: reason}
	}

	reply, _ := result.Reply()
	if reply.Error != "" {
		return Outcome{Message: reply.Error, Reason: actions.ReasonValidationFailure}
	}
	if nested, ok := reply.Field("error"); ok && nested != "" {
		return Outcome{Message: nested, Reason: actions.ReasonValidationFailure}
	}

	if reply.Status >= http.StatusBadRequest && reply.Fields != nil {
		if first := reply.Fields.Oldest(); first != nil {
			return Outcome{Message: actions.FormatValue(first.Value), Reason: actions.ReasonValidationFailure}
		}
	}

	message, _ := i.messages.Response(actionID)
	return Outcome{Message: message, Success: true}
}

// Package actions turns a completed answer set into a call to the intent's
// backend endpoint and reports what happened as a tagged Result.
package actions

import "fmt"

// Reason classifies why an action did not succeed.
type Reason string

const (
	ReasonRecognitionFailure     Reason = "recognition_failure"
	ReasonMissingCredential      Reason = "missing_credential"
	ReasonValidationFailure      Reason = "validation_failure"
	ReasonTransportFailure       Reason = "transport_failure"
	ReasonUnsupportedEnvironment Reason = "unsupported_environment"
)

const (
	MessageMissingToken     = "Missing access token. Please login and try again"
	MessageEmptyCode        = "Verification code cannot be empty. Please try again"
	MessageTransportFailure = "Some required fields are missing"
	MessageUnsupported      = "Unsupported action"

	MessageUnsupportedEnvironment = "This environment does not support saving your details"
)

// Result is either a success carrying the endpoint reply or a failure
// produced before or instead of a reply.
type Result struct {
	failed  bool
	reply   Reply
	reason  Reason
	message string
}

func Success(reply Reply) Result {
	return Result{reply: reply}
}

func Failure(reason Reason, message string) Result {
	return Result{failed: true, reason: reason, message: message}
}

func (r Result) Failed() bool { return r.failed }

// Reply returns the endpoint reply of a successful result.
func (r Result) Reply() (Reply, bool) {
	return r.reply, !r.failed
}

// Failure returns the reason and message of a failed result.
func (r Result) Failure() (Reason, string, bool) {
	return r.reason, r.message, r.failed
}

func (r Result) String() string {
	if r.failed {
		return fmt.Sprintf("failure(%s: %s)", r.reason, r.message)
	}
	return fmt.Sprintf("success(status %d)", r.reply.Status)
}

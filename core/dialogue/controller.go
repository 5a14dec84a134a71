// Package dialogue runs the question and answer loop of an intent: it asks
// each question, records the spoken answer, dispatches the completed answer
// set and speaks the outcome.
//
// The Controller is a finite state machine. Every change of state goes
// through a single transition function; the blocking work between states
// (playback, capture, dispatch) runs outside the state lock. Start, Listen and
// Retry block until the conversation completes or suspends waiting for a
// retry. Only one call drives the machine at a time, follow-up intents
// included; any other gets ErrBusy.
package dialogue

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"
	"sync"
	"time"

	"github.com/koscakluka/voiceforms/core/actions"
	"github.com/koscakluka/voiceforms/core/audio"
	"github.com/koscakluka/voiceforms/core/catalog"
	"github.com/koscakluka/voiceforms/core/events"
	"github.com/koscakluka/voiceforms/core/intents"
	"github.com/koscakluka/voiceforms/core/persistence"
	"github.com/koscakluka/voiceforms/core/responses"
	"github.com/koscakluka/voiceforms/core/session"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrBusy          = errors.New("dialogue is busy")
	ErrUnknownIntent = catalog.ErrUnknownIntent
	ErrNoClassifier  = errors.New("no intent classifier configured")
)

const (
	MessageRecognitionFailed  = "Speech was cancelled or could not be recognized. Ensure your microphone is working properly and try again by clicking on the microphone button"
	MessageCaptureUnavailable = "Speech recognition is not available on this device"
)

// Dispatcher runs the action of a completed intent.
type Dispatcher interface {
	Dispatch(ctx context.Context, intent catalog.Intent, answers map[string]string) actions.Result
}

var _ Dispatcher = (*actions.Dispatcher)(nil)

type Controller struct {
	catalog     *catalog.Catalog
	dispatcher  Dispatcher
	interpreter *responses.Interpreter
	credentials *persistence.Credentials
	classifier  intents.Classifier
	recorder    *Recorder
	speech      speechOutput

	continuousTimeout time.Duration
	followUp          bool

	callbacks callbacks
	emit      eventEmitter

	recognitionFailures metric.Int64Counter

	mu            sync.Mutex
	driving       bool
	state         State
	session       *session.Session
	intent        catalog.Intent
	awaitingRetry bool
	view          actions.View
}

// NewController builds a controller over a validated catalog. A nil
// credentials helper behaves as storage that is not supported.
func NewController(cat *catalog.Catalog, dispatcher Dispatcher, credentials *persistence.Credentials, opts ...ControllerOption) *Controller {
	if credentials == nil {
		credentials = persistence.NewCredentials(persistence.UnsupportedStore{})
	}

	c := &Controller{
		catalog:           cat,
		dispatcher:        dispatcher,
		interpreter:       responses.NewInterpreter(cat),
		credentials:       credentials,
		recorder:          NewRecorder(nil),
		continuousTimeout: DefaultContinuousTimeout,
		followUp:          true,
		state:             StateIdle,
		session:           session.New(),
		view:              actions.ViewPreLogin,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.emit = newCallbackEventEmitter(c.callbacks)

	var err error
	c.recognitionFailures, err = meter.Int64Counter("voiceforms.recognition.failures",
		metric.WithDescription("Captures that produced no usable speech"),
		metric.WithUnit("{failure}"))
	if err != nil {
		logger.Warn("failed to create recognition failure counter", "error", err)
	}
	return c
}

// Start runs the named intent from its first question. Intents that need a
// login speak their unauthorized message instead when nobody is logged in.
func (c *Controller) Start(ctx context.Context, intentName string) error {
	ctx, span := tracer.Start(ctx, "start intent")
	defer span.End()
	span.SetAttributes(attribute.String("intent.name", intentName))

	if err := c.start(ctx, intentName); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

func (c *Controller) start(ctx context.Context, intentName string) error {
	if err := c.claim("start " + intentName); err != nil {
		return err
	}
	defer c.release()

	if state := c.State(); state != StateIdle {
		return fmt.Errorf("%w: cannot start %q while %s", ErrBusy, intentName, state)
	}

	intent, err := c.catalog.Intent(intentName)
	if err != nil {
		return err
	}

	cmd, err := c.apply(c.selectIntent(ctx, intent))
	if err != nil {
		return err
	}
	return c.drive(ctx, cmd)
}

// Listen recognizes one utterance, classifies it into an intent and starts
// that intent.
func (c *Controller) Listen(ctx context.Context) error {
	if c.classifier == nil {
		return ErrNoClassifier
	}

	ctx, span := tracer.Start(ctx, "listen for intent")
	defer span.End()

	if err := c.claim("listen"); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	defer c.release()

	cmd, err := c.apply(input{kind: inputListen})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return c.drive(ctx, cmd)
}

// Retry captures the current question again after a failed capture.
func (c *Controller) Retry(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "retry answer")
	defer span.End()

	if err := c.claim("retry"); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	defer c.release()

	cmd, err := c.apply(input{kind: inputRetry})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return c.drive(ctx, cmd)
}

// Abandon drops a conversation that is waiting for a retry.
func (c *Controller) Abandon(ctx context.Context) error {
	if err := c.claim("abandon"); err != nil {
		return err
	}
	defer c.release()

	c.mu.Lock()
	awaitingRetry := c.awaitingRetry
	c.mu.Unlock()
	if !awaitingRetry {
		return fmt.Errorf("%w: nothing to abandon", ErrBusy)
	}

	cmd, err := c.apply(input{kind: inputAbort})
	if err != nil {
		return err
	}
	return c.drive(ctx, cmd)
}

// StopRecording ends the active recording, if any. A continuous answer
// advances with what was heard so far. Session state is never touched here.
func (c *Controller) StopRecording() bool {
	return c.recorder.Stop()
}

// ChangeView records a login view toggle and forwards it to observers.
func (c *Controller) ChangeView(view actions.View) {
	c.mu.Lock()
	c.view = view
	c.mu.Unlock()
	c.emit(events.NewViewChanged(string(view)))
}

// RestoreView announces the view matching the persisted credentials, so a
// restart with a stored token and phone resumes logged in.
func (c *Controller) RestoreView(ctx context.Context) actions.View {
	view := actions.ViewPreLogin
	loggedIn, err := c.credentials.LoggedIn(ctx)
	if err != nil {
		logger.Warn("failed to restore login view", "error", err)
	}
	if loggedIn {
		view = actions.ViewPostLogin
	}
	c.ChangeView(view)
	return view
}

// claim makes the caller the only driver of the state machine until release.
// Every transition out of Idle, Listening or a suspended answer happens
// under a claim.
func (c *Controller) claim(request string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.driving {
		return fmt.Errorf("%w: cannot %s while %s", ErrBusy, request, c.state)
	}
	c.driving = true
	return nil
}

func (c *Controller) release() {
	c.mu.Lock()
	c.driving = false
	c.mu.Unlock()
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

type Snapshot struct {
	State         State           `json:"state"`
	Session       session.Session `json:"session"`
	AwaitingRetry bool            `json:"awaiting_retry"`
	Recording     bool            `json:"recording"`
	View          actions.View    `json:"view"`
	LoggedIn      bool            `json:"logged_in"`
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	snapshot := Snapshot{
		State:         c.state,
		Session:       c.session.Snapshot(),
		AwaitingRetry: c.awaitingRetry && !c.driving,
		View:          c.view,
		LoggedIn:      c.view == actions.ViewPostLogin,
	}
	c.mu.Unlock()
	snapshot.Recording = c.recorder.Recording()
	return snapshot
}

type input struct {
	kind    inputKind
	intent  catalog.Intent
	answer  string
	source  string
	message string
	outcome responses.Outcome
}

type command struct {
	kind     commandKind
	message  string
	followUp string
}

// apply is the only place the state changes.
func (c *Controller) apply(in input) (command, error) {
	c.mu.Lock()
	from := c.state
	to, kind, ok := next(from, in.kind)
	if !ok || (in.kind == inputRetry && !c.awaitingRetry) {
		c.mu.Unlock()
		return command{}, fmt.Errorf("%w: request not accepted while %s", ErrBusy, from)
	}

	cmd := command{kind: kind, message: in.message}
	var pending []events.Event

	switch in.kind {
	case inputIntentSelected, inputIntentWithoutQuestions:
		c.intent = in.intent
		c.session.Begin(in.intent)
		c.awaitingRetry = false
		pending = append(pending, events.NewIntentStarted(c.session.ID, in.intent.Name))

	case inputAnswerCaptured, inputPrefilled:
		question, err := c.session.Record(in.answer)
		if err != nil {
			logger.Error("answer without an open question", "error", err)
			break
		}
		c.awaitingRetry = false
		if in.kind == inputPrefilled {
			pending = append(pending, events.NewAnswerPrefilled(question.Key, in.source, in.answer))
		} else {
			pending = append(pending, events.NewAnswerRecorded(question.Key, in.answer))
		}

	case inputCaptureFailed:
		c.awaitingRetry = to == StateAwaitingAnswer
		cmd.message = MessageRecognitionFailed
		pending = append(pending, events.NewRecognitionFailed(in.message))

	case inputRetry:
		c.awaitingRetry = false

	case inputDispatchSettled:
		pending = append(pending, events.NewIntentCompleted(c.intent.Name, c.intent.ActionID, in.outcome.Success, in.outcome.Message))
		cmd.message = in.outcome.Message
		if in.outcome.Success && c.followUp {
			cmd.followUp = c.intent.NextIntent
		}
		c.reset()

	case inputAbort:
		c.reset()
	}

	c.state = to
	c.mu.Unlock()

	c.emit(events.NewStateChanged(from.String(), to.String()))
	for _, event := range pending {
		c.emit(event)
	}
	return cmd, nil
}

func (c *Controller) reset() {
	c.session.Reset()
	c.intent = catalog.Intent{}
	c.awaitingRetry = false
}

func (c *Controller) drive(ctx context.Context, cmd command) error {
	for cmd.kind != cmdNone {
		in := c.execute(ctx, cmd)
		if in.kind == inputNone {
			return nil
		}

		var err error
		if cmd, err = c.apply(in); err != nil {
			return err
		}
	}
	return nil
}

func (c *Controller) execute(ctx context.Context, cmd command) input {
	switch cmd.kind {
	case cmdRecognizeIntent:
		return c.recognizeIntent(ctx)
	case cmdPlayQuestion:
		return c.playQuestion(ctx)
	case cmdCapture:
		return c.capture(ctx)
	case cmdAdvance:
		return c.advance(ctx)
	case cmdDispatch:
		return c.dispatch(ctx)
	case cmdSpeak:
		c.say(ctx, cmd.message)
		if cmd.followUp != "" && ctx.Err() == nil {
			return c.startFollowUp(ctx, cmd.followUp)
		}
	case cmdSuspend:
		c.say(ctx, cmd.message)
	}
	return input{kind: inputNone}
}

func (c *Controller) selectIntent(ctx context.Context, intent catalog.Intent) input {
	if intent.RequiresAuth {
		loggedIn, err := c.credentials.LoggedIn(ctx)
		if err != nil {
			logger.Warn("failed to check login", "intent", intent.Name, "error", err)
			return input{kind: inputRejected, message: actions.MessageUnsupportedEnvironment}
		}
		if !loggedIn {
			return input{kind: inputRejected, message: intent.UnauthorizedMessage}
		}
	}

	if intent.IsPureAction() {
		return input{kind: inputIntentWithoutQuestions, intent: intent}
	}
	return input{kind: inputIntentSelected, intent: intent}
}

func (c *Controller) startFollowUp(ctx context.Context, intentName string) input {
	intent, err := c.catalog.Intent(intentName)
	if err != nil {
		logger.Error("follow up intent missing", "intent", intentName, "error", err)
		return input{kind: inputNone}
	}
	return c.selectIntent(ctx, intent)
}

func (c *Controller) recognizeIntent(ctx context.Context) input {
	recognition, err := c.recorder.CaptureOnce(ctx)
	if ctx.Err() != nil {
		return input{kind: inputAbort}
	}
	if err != nil {
		return c.captureError(err)
	}
	if !recognition.Recognized() {
		return c.captureFailed(recognition.Reason)
	}
	c.emit(events.NewUserTranscriptFinal(recognition.Text))

	intentName, err := c.classifier.Classify(ctx, recognition.Text)
	if err != nil {
		return c.captureFailed(fmt.Sprintf("could not classify %q: %v", recognition.Text, err))
	}

	intent, err := c.catalog.Intent(intentName)
	if err != nil {
		return c.captureFailed(err.Error())
	}
	return c.selectIntent(ctx, intent)
}

func (c *Controller) playQuestion(ctx context.Context) input {
	c.mu.Lock()
	question, err := c.session.Current()
	intentName, index := c.session.ActiveIntent, c.session.QuestionIndex
	c.mu.Unlock()
	if err != nil {
		logger.Error("no question to play", "error", err)
		return input{kind: inputAbort}
	}

	c.emit(events.NewQuestionAsked(intentName, index, question.Key, question.Prompt))
	if err := c.speech.Speak(ctx, question.Prompt); err != nil {
		if ctx.Err() != nil {
			return input{kind: inputAbort}
		}
		logger.Warn("failed to play question", "key", question.Key, "error", err)
	}
	return input{kind: inputPlaybackComplete}
}

func (c *Controller) capture(ctx context.Context) input {
	c.mu.Lock()
	question, err := c.session.Current()
	c.mu.Unlock()
	if err != nil {
		logger.Error("no question to answer", "error", err)
		return input{kind: inputAbort}
	}

	if question.MultiLine {
		answer, err := c.recorder.CaptureContinuous(ctx, c.continuousTimeout, func(fragment string) {
			c.emit(events.NewUserTranscriptSegment(fragment))
		})
		if ctx.Err() != nil {
			return input{kind: inputAbort}
		}
		if err != nil {
			return c.captureError(err)
		}
		return input{kind: inputAnswerCaptured, answer: answer}
	}

	recognition, err := c.recorder.CaptureOnce(ctx)
	if ctx.Err() != nil {
		return input{kind: inputAbort}
	}
	if err != nil {
		return c.captureError(err)
	}
	if !recognition.Recognized() {
		return c.captureFailed(recognition.Reason)
	}
	c.emit(events.NewUserTranscriptFinal(recognition.Text))
	return input{kind: inputAnswerCaptured, answer: recognition.Text}
}

func (c *Controller) captureError(err error) input {
	if errors.Is(err, audio.ErrDeviceUnavailable) || errors.Is(err, errNoRecognizer) {
		logger.Warn("speech capture unavailable", "error", err)
		return input{kind: inputAbort, message: MessageCaptureUnavailable}
	}
	return c.captureFailed(err.Error())
}

func (c *Controller) captureFailed(reason string) input {
	if reason == "" {
		reason = "speech was not recognized"
	}
	if c.recognitionFailures != nil {
		c.recognitionFailures.Add(context.Background(), 1)
	}
	return input{kind: inputCaptureFailed, message: reason}
}

// advance answers prefilled questions from storage. A question is only
// skipped when a non-empty value is stored under its prefill key.
func (c *Controller) advance(ctx context.Context) input {
	c.mu.Lock()
	done := c.session.Done()
	question, _ := c.session.Current()
	c.mu.Unlock()

	if done {
		return input{kind: inputQuestionsExhausted}
	}
	if question.Prefill == "" {
		return input{kind: inputMoreQuestions}
	}

	value, _, err := c.credentials.Store().Get(ctx, question.Prefill)
	if err != nil {
		logger.Warn("failed to read prefill", "key", question.Prefill, "error", err)
		return input{kind: inputAbort, message: actions.MessageUnsupportedEnvironment}
	}
	if strings.TrimSpace(value) == "" {
		return input{kind: inputMoreQuestions}
	}
	return input{kind: inputPrefilled, answer: value, source: question.Prefill}
}

func (c *Controller) dispatch(ctx context.Context) input {
	c.mu.Lock()
	intent := c.intent
	answers := maps.Clone(c.session.Answers)
	c.mu.Unlock()

	result := c.dispatcher.Dispatch(ctx, intent, answers)
	outcome := c.interpreter.Interpret(intent.ActionID, result)
	logger.Info("intent completed", "intent", intent.Name, "success", outcome.Success, "reason", string(outcome.Reason))
	return input{kind: inputDispatchSettled, outcome: outcome}
}

func (c *Controller) say(ctx context.Context, message string) {
	if message == "" {
		return
	}
	c.emit(events.NewMessageSpoken(message))
	if err := c.speech.Speak(ctx, message); err != nil {
		logger.Warn("failed to speak message", "error", err)
	}
}

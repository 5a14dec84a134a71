package actions

import (
	"context"
	"strings"

	"github.com/koscakluka/voiceforms/core/catalog"
	"github.com/koscakluka/voiceforms/core/persistence"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
)

const (
	ActionCreateProfile  = "CREATE:PROFILE"
	ActionCreateBlogPost = "CREATE:BLOG:POST"
	ActionRegisterPhone  = "REGISTER:PHONE"
	ActionLoginWithPhone = "LOGIN:WITH:PHONE"
	ActionVerifyPhone    = "VERIFY:PHONE"
	ActionLogout         = "LOGOUT"
)

// View names the presentation state toggled by login and logout.
type View string

const (
	ViewPreLogin  View = "pre_login"
	ViewPostLogin View = "post_login"
)

// Call is one completed answer set for an intent.
type Call struct {
	Intent  catalog.Intent
	Answers map[string]string
}

type Handler interface {
	Handle(ctx context.Context, call Call) Result
}

type HandlerFunc func(ctx context.Context, call Call) Result

func (f HandlerFunc) Handle(ctx context.Context, call Call) Result { return f(ctx, call) }

type Dispatcher struct {
	transport   Transport
	credentials *persistence.Credentials
	handlers    map[string]Handler

	viewCallback func(View)

	dispatches metric.Int64Counter
}

type DispatcherOption func(*Dispatcher)

// WithHandler registers or replaces the handler for an action id.
func WithHandler(actionID string, handler Handler) DispatcherOption {
	return func(d *Dispatcher) { d.handlers[actionID] = handler }
}

// WithViewCallback receives the login view toggles produced by verification
// and logout.
func WithViewCallback(callback func(View)) DispatcherOption {
	return func(d *Dispatcher) { d.viewCallback = callback }
}

func NewDispatcher(transport Transport, credentials *persistence.Credentials, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		transport:   transport,
		credentials: credentials,
		handlers:    map[string]Handler{},
	}
	d.handlers[ActionCreateProfile] = HandlerFunc(d.Submit)
	d.handlers[ActionCreateBlogPost] = HandlerFunc(d.Submit)
	d.handlers[ActionRegisterPhone] = HandlerFunc(d.rememberPhoneAndSubmit)
	d.handlers[ActionLoginWithPhone] = HandlerFunc(d.rememberPhoneAndSubmit)
	d.handlers[ActionVerifyPhone] = HandlerFunc(d.verify)
	d.handlers[ActionLogout] = HandlerFunc(d.logout)

	for _, opt := range opts {
		opt(d)
	}

	var err error
	d.dispatches, err = meter.Int64Counter("voiceforms.action.dispatches",
		metric.WithDescription("Completed answer sets dispatched to an action"),
		metric.WithUnit("{dispatch}"))
	if err != nil {
		logger.Warn("failed to create dispatch counter", "error", err)
	}
	return d
}

// Dispatch runs the handler registered for the intent's action id.
func (d *Dispatcher) Dispatch(ctx context.Context, intent catalog.Intent, answers map[string]string) Result {
	ctx, span := tracer.Start(ctx, "dispatch action")
	defer span.End()
	span.SetAttributes(
		attribute.String("action.id", intent.ActionID),
		attribute.String("intent.name", intent.Name),
	)

	handler, ok := d.handlers[intent.ActionID]
	var result Result
	if !ok {
		result = Failure(ReasonValidationFailure, MessageUnsupported)
	} else {
		result = handler.Handle(ctx, Call{Intent: intent, Answers: answers})
	}

	outcome := "success"
	if reason, message, failed := result.Failure(); failed {
		outcome = string(reason)
		span.SetStatus(codes.Error, message)
	}
	if d.dispatches != nil {
		d.dispatches.Add(ctx, 1, metric.WithAttributes(
			attribute.String("action.id", intent.ActionID),
			attribute.String("outcome", outcome),
		))
	}
	return result
}

// Submit sends the projected answers to the intent's endpoint, attaching the
// access token when the intent requires it.
func (d *Dispatcher) Submit(ctx context.Context, call Call) Result {
	payload := Project(call.Intent, call.Answers)

	if call.Intent.RequiresAuth {
		token, err := d.credentials.AccessToken(ctx)
		if err != nil {
			return storageFailure(ctx, err)
		}
		if token == "" {
			return Failure(ReasonMissingCredential, MessageMissingToken)
		}
		payload[tokenField] = token
	}

	reply, err := d.transport.Do(ctx, Request{
		Method: call.Intent.Method,
		URL:    call.Intent.Endpoint,
		Body:   payload,
	})
	if err != nil {
		logger.Warn("action transport failed", "action", call.Intent.ActionID, "error", err)
		return Failure(ReasonTransportFailure, MessageTransportFailure)
	}
	return Success(reply)
}

func (d *Dispatcher) rememberPhoneAndSubmit(ctx context.Context, call Call) Result {
	if err := d.credentials.SetPhone(ctx, NormalizePhone(call.Answers[persistence.KeyPhone])); err != nil {
		return storageFailure(ctx, err)
	}
	return d.Submit(ctx, call)
}

func (d *Dispatcher) verify(ctx context.Context, call Call) Result {
	if strings.TrimSpace(call.Answers["auth_code"]) == "" {
		return Failure(ReasonValidationFailure, MessageEmptyCode)
	}

	result := d.Submit(ctx, call)
	reply, ok := result.Reply()
	if !ok {
		return result
	}

	token, ok := reply.Field(persistence.KeyAccessToken)
	if !ok || token == "" {
		return result
	}

	phone, ok := reply.Field(persistence.KeyPhone)
	if !ok {
		current, err := d.credentials.Phone(ctx)
		if err != nil {
			return storageFailure(ctx, err)
		}
		phone = current
	}
	if err := d.credentials.Save(ctx, phone, token); err != nil {
		return storageFailure(ctx, err)
	}
	d.changeView(ViewPostLogin)
	return result
}

func (d *Dispatcher) logout(ctx context.Context, _ Call) Result {
	if err := d.credentials.Clear(ctx); err != nil {
		return storageFailure(ctx, err)
	}
	d.changeView(ViewPreLogin)
	return Success(Reply{})
}

func (d *Dispatcher) changeView(view View) {
	if d.viewCallback != nil {
		d.viewCallback(view)
	}
}

func storageFailure(ctx context.Context, err error) Result {
	logger.WarnContext(ctx, "credential storage failed", "error", err)
	return Failure(ReasonUnsupportedEnvironment, MessageUnsupportedEnvironment)
}

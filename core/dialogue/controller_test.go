package dialogue

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/koscakluka/voiceforms/core/actions"
	"github.com/koscakluka/voiceforms/core/catalog"
	"github.com/koscakluka/voiceforms/core/events"
	"github.com/koscakluka/voiceforms/core/intents"
	"github.com/koscakluka/voiceforms/core/persistence"
)

const (
	blogPostSuccess = "I started building your blog post page. You will be notified once the build is completed"
	registerSuccess = "I sent a one time four digit verification code to your phone, once you receive it please click on the mic button on this page and say 'Verify' and then read the four digit code one digit at a time"
	verifySuccess   = "You are now logged in. The following voice commands are now available. 'Create Profile', 'Create Blog Post'"
	logoutSuccess   = "You are now logged out. You can login again by saying 'Login'"
)

func waitFor(t *testing.T, condition func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !condition() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestBlogPostAsksEveryQuestionThenDispatchesOnce(t *testing.T) {
	recognizer := newRecognizerStub("My first post")
	recognizer.fragments = [][]string{{"It was a long day.", "Then it rained."}}

	var asked []string
	f := newFixture(t, loggedInStore(t), recognizer,
		WithContinuousTimeout(30*time.Millisecond),
		WithQuestionAskedCallback(func(key, _ string) { asked = append(asked, key) }),
	)

	if err := f.controller.Start(context.Background(), "create_blog_post"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if !slices.Equal(asked, []string{"title", "description"}) {
		t.Fatalf("expected questions [title description], got %v", asked)
	}

	requests := f.transport.sent()
	if len(requests) != 1 {
		t.Fatalf("expected exactly one dispatch, got %d", len(requests))
	}
	if requests[0].URL != "https://api.about-me.website/create-blog-post" {
		t.Fatalf("unexpected endpoint %q", requests[0].URL)
	}
	sent := body(t, requests[0])
	if sent["title"] != "My first post" {
		t.Fatalf("expected title %q, got %v", "My first post", sent["title"])
	}
	if sent["description"] != "It was a long day. Then it rained." {
		t.Fatalf("expected joined description, got %v", sent["description"])
	}
	if sent["token"] != "tok" {
		t.Fatalf("expected access token in body, got %v", sent["token"])
	}

	if !f.synthesizer.said(blogPostSuccess) {
		t.Fatalf("expected success message to be spoken, got %v", f.synthesizer.spoken())
	}
	if f.output.played.Load() == 0 {
		t.Fatalf("expected synthesized audio to be played")
	}

	snapshot := f.controller.Snapshot()
	if snapshot.State != StateIdle {
		t.Fatalf("expected idle after dispatch, got %s", snapshot.State)
	}
	if snapshot.Session.Active() {
		t.Fatalf("expected session to be reset, got %+v", snapshot.Session)
	}
}

func TestContinuousTimeoutRecordsEmptyAnswer(t *testing.T) {
	f := newFixture(t, loggedInStore(t), newRecognizerStub("Untitled"),
		WithContinuousTimeout(20*time.Millisecond))

	if err := f.controller.Start(context.Background(), "create_blog_post"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	requests := f.transport.sent()
	if len(requests) != 1 {
		t.Fatalf("expected one dispatch, got %d", len(requests))
	}
	if description := body(t, requests[0])["description"]; description != "" {
		t.Fatalf("expected empty description, got %v", description)
	}
}

func TestStopRecordingEndsContinuousAnswer(t *testing.T) {
	recognizer := newRecognizerStub("Title")
	recognizer.fragments = [][]string{{"hello world"}}

	heard := make(chan string, 4)
	f := newFixture(t, loggedInStore(t), recognizer,
		WithContinuousTimeout(time.Minute),
		WithTranscriptCallback(func(transcript string) { heard <- transcript }),
	)

	done := make(chan error, 1)
	go func() { done <- f.controller.Start(context.Background(), "create_blog_post") }()

	for transcript := range heard {
		if transcript == "hello world" {
			break
		}
	}
	if !f.controller.StopRecording() {
		t.Fatalf("expected an active recording to be stopped")
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("expected Start to return after the recording was stopped")
	}

	requests := f.transport.sent()
	if len(requests) != 1 {
		t.Fatalf("expected one dispatch, got %d", len(requests))
	}
	if description := body(t, requests[0])["description"]; description != "hello world" {
		t.Fatalf("expected description %q, got %v", "hello world", description)
	}
}

func TestStopRecordingWhenIdleIsNoop(t *testing.T) {
	f := newFixture(t, persistence.NewMemoryStore(), newRecognizerStub())

	if f.controller.StopRecording() {
		t.Fatalf("expected nothing to stop")
	}
	if state := f.controller.State(); state != StateIdle {
		t.Fatalf("expected idle, got %s", state)
	}
}

func TestVerifySkipsStoredPhone(t *testing.T) {
	recognizer := newRecognizerStub("1234")

	var prefilled []string
	f := newFixture(t, loggedInStore(t), recognizer,
		WithAnswerPrefilledCallback(func(key, answer string) { prefilled = append(prefilled, key+"="+answer) }),
	)
	f.transport.replies = []string{`{"data":{"access_token":"fresh","phone":"+15550111"}}`}

	if err := f.controller.Start(context.Background(), "verify"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if calls := recognizer.onceCalls.Load(); calls != 1 {
		t.Fatalf("expected only the code to be captured, got %d captures", calls)
	}
	if !slices.Equal(prefilled, []string{"phone=+15550100"}) {
		t.Fatalf("expected stored phone to be prefilled, got %v", prefilled)
	}

	requests := f.transport.sent()
	if len(requests) != 1 {
		t.Fatalf("expected one dispatch, got %d", len(requests))
	}
	sent := body(t, requests[0])
	if sent["auth_code"] != "1234" || sent["phone"] != "+15550100" {
		t.Fatalf("unexpected verify body %v", sent)
	}

	credentials := persistence.NewCredentials(f.store)
	token, _ := credentials.AccessToken(context.Background())
	phone, _ := credentials.Phone(context.Background())
	if token != "fresh" || phone != "+15550111" {
		t.Fatalf("expected server credentials to be saved, got token %q phone %q", token, phone)
	}
	if !slices.Contains(*f.views, string(actions.ViewPostLogin)) {
		t.Fatalf("expected post login view, got %v", *f.views)
	}
	if !f.synthesizer.said(verifySuccess) {
		t.Fatalf("expected verify success message, got %v", f.synthesizer.spoken())
	}
}

func TestVerifyAsksPhoneWhenNoneStored(t *testing.T) {
	recognizer := newRecognizerStub("1234", "555.0100")
	f := newFixture(t, persistence.NewMemoryStore(), recognizer)

	if err := f.controller.Start(context.Background(), "verify"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if calls := recognizer.onceCalls.Load(); calls != 2 {
		t.Fatalf("expected both questions to be captured, got %d captures", calls)
	}
	requests := f.transport.sent()
	if len(requests) != 1 {
		t.Fatalf("expected one dispatch, got %d", len(requests))
	}
	if phone := body(t, requests[0])["phone"]; phone != "555.0100" {
		t.Fatalf("expected spoken phone, got %v", phone)
	}
}

func TestRegisterChainsIntoVerify(t *testing.T) {
	recognizer := newRecognizerStub("555.0100", "1234")

	var started []string
	f := newFixture(t, persistence.NewMemoryStore(), recognizer,
		WithEventCallback(func(event events.Event) {
			if e, ok := event.(events.IntentStarted); ok {
				started = append(started, e.Intent)
			}
		}),
	)
	f.transport.replies = []string{
		`{"message":"code sent"}`,
		`{"data":{"access_token":"tok"}}`,
	}

	if err := f.controller.Start(context.Background(), "register"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if !slices.Equal(started, []string{"register", "verify"}) {
		t.Fatalf("expected register then verify, got %v", started)
	}
	if calls := recognizer.onceCalls.Load(); calls != 2 {
		t.Fatalf("expected the verify phone question to be skipped, got %d captures", calls)
	}

	requests := f.transport.sent()
	if len(requests) != 2 {
		t.Fatalf("expected two dispatches, got %d", len(requests))
	}
	if phone := body(t, requests[0])["phone"]; phone != "555.0100" {
		t.Fatalf("expected register body to carry spoken phone, got %v", phone)
	}
	if phone := body(t, requests[1])["phone"]; phone != "5550100" {
		t.Fatalf("expected verify to reuse normalized phone, got %v", phone)
	}

	spoken := f.synthesizer.spoken()
	registerAt := slices.Index(spoken, registerSuccess)
	verifyAt := slices.Index(spoken, verifySuccess)
	if registerAt < 0 || verifyAt < registerAt {
		t.Fatalf("expected register then verify messages, got %v", spoken)
	}

	loggedIn, _ := persistence.NewCredentials(f.store).LoggedIn(context.Background())
	if !loggedIn {
		t.Fatalf("expected to be logged in after verify")
	}
}

func TestFollowUpChainingCanBeDisabled(t *testing.T) {
	f := newFixture(t, persistence.NewMemoryStore(), newRecognizerStub("5550100"),
		WithFollowUpChaining(false))

	if err := f.controller.Start(context.Background(), "login"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	requests := f.transport.sent()
	if len(requests) != 1 {
		t.Fatalf("expected only the login dispatch, got %d", len(requests))
	}
	if requests[0].Method != "PUT" {
		t.Fatalf("expected login to use PUT, got %q", requests[0].Method)
	}
	if state := f.controller.State(); state != StateIdle {
		t.Fatalf("expected idle, got %s", state)
	}
}

func TestCaptureFailureSuspendsUntilRetry(t *testing.T) {
	recognizer := newRecognizerStub()
	f := newFixture(t, persistence.NewMemoryStore(), recognizer, WithFollowUpChaining(false))
	ctx := context.Background()

	if err := f.controller.Start(ctx, "register"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	snapshot := f.controller.Snapshot()
	if snapshot.State != StateAwaitingAnswer || !snapshot.AwaitingRetry {
		t.Fatalf("expected suspended awaiting answer, got %+v", snapshot)
	}
	if snapshot.Session.ActiveIntent != "register" || snapshot.Session.QuestionIndex != 0 {
		t.Fatalf("expected session to keep its place, got %+v", snapshot.Session)
	}
	if !f.synthesizer.said(MessageRecognitionFailed) {
		t.Fatalf("expected recognition failure message, got %v", f.synthesizer.spoken())
	}

	if err := f.controller.Start(ctx, "login"); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy while suspended, got %v", err)
	}

	recognizer.mu.Lock()
	recognizer.once = append(recognizer.once, speechtotextRecognition("5550100"))
	recognizer.mu.Unlock()

	if err := f.controller.Retry(ctx); err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if len(f.transport.sent()) != 1 {
		t.Fatalf("expected dispatch after retry, got %d", len(f.transport.sent()))
	}
	if snapshot := f.controller.Snapshot(); snapshot.State != StateIdle || snapshot.AwaitingRetry {
		t.Fatalf("expected idle after retry, got %+v", snapshot)
	}
}

func TestRetryWhenIdleIsRejected(t *testing.T) {
	f := newFixture(t, persistence.NewMemoryStore(), newRecognizerStub())

	if err := f.controller.Retry(context.Background()); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
}

func TestAbandonDropsSuspendedConversation(t *testing.T) {
	f := newFixture(t, persistence.NewMemoryStore(), newRecognizerStub())
	ctx := context.Background()

	if err := f.controller.Abandon(ctx); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy with nothing to abandon, got %v", err)
	}

	if err := f.controller.Start(ctx, "register"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if err := f.controller.Abandon(ctx); err != nil {
		t.Fatalf("expected abandon to succeed, got %v", err)
	}

	snapshot := f.controller.Snapshot()
	if snapshot.State != StateIdle || snapshot.AwaitingRetry || snapshot.Session.Active() {
		t.Fatalf("expected a clean idle controller, got %+v", snapshot)
	}
	if len(f.transport.sent()) != 0 {
		t.Fatalf("expected no dispatch")
	}
}

func TestStartWhileBusyIsRejected(t *testing.T) {
	recognizer := newRecognizerStub("5550100")
	recognizer.block = make(chan struct{})
	f := newFixture(t, persistence.NewMemoryStore(), recognizer, WithFollowUpChaining(false))

	done := make(chan error, 1)
	go func() { done <- f.controller.Start(context.Background(), "register") }()

	waitFor(t, func() bool { return f.controller.State() == StateAwaitingAnswer })

	if err := f.controller.Start(context.Background(), "login"); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}

	close(recognizer.block)
	if err := <-done; err != nil {
		t.Fatalf("expected first conversation to finish, got %v", err)
	}
	if len(f.transport.sent()) != 1 {
		t.Fatalf("expected only the first intent to dispatch, got %d", len(f.transport.sent()))
	}
}

func TestUnknownIntent(t *testing.T) {
	f := newFixture(t, persistence.NewMemoryStore(), newRecognizerStub())

	if err := f.controller.Start(context.Background(), "order_pizza"); !errors.Is(err, ErrUnknownIntent) {
		t.Fatalf("expected ErrUnknownIntent, got %v", err)
	}
	if state := f.controller.State(); state != StateIdle {
		t.Fatalf("expected idle, got %s", state)
	}
}

func TestProtectedIntentRequiresLogin(t *testing.T) {
	recognizer := newRecognizerStub()
	f := newFixture(t, persistence.NewMemoryStore(), recognizer)

	if err := f.controller.Start(context.Background(), "create_profile"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	expected := "You must be a registered user and logged in before you can start creating your profile"
	if !f.synthesizer.said(expected) {
		t.Fatalf("expected unauthorized message, got %v", f.synthesizer.spoken())
	}
	if recognizer.onceCalls.Load() != 0 || len(f.transport.sent()) != 0 {
		t.Fatalf("expected no capture and no dispatch")
	}
	if snapshot := f.controller.Snapshot(); snapshot.State != StateIdle || snapshot.Session.Active() {
		t.Fatalf("expected idle without a session, got %+v", snapshot)
	}
}

func TestLogoutClearsCredentials(t *testing.T) {
	f := newFixture(t, loggedInStore(t), newRecognizerStub())

	if err := f.controller.Start(context.Background(), "logout"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	loggedIn, _ := persistence.NewCredentials(f.store).LoggedIn(context.Background())
	if loggedIn {
		t.Fatalf("expected credentials to be cleared")
	}
	if !slices.Equal(*f.views, []string{string(actions.ViewPreLogin)}) {
		t.Fatalf("expected pre login view, got %v", *f.views)
	}
	if !f.synthesizer.said(logoutSuccess) {
		t.Fatalf("expected logout message, got %v", f.synthesizer.spoken())
	}
	if len(f.transport.sent()) != 0 {
		t.Fatalf("expected logout to make no request")
	}
}

func TestTransportFailureSpeaksGenericMessage(t *testing.T) {
	var (
		mu        sync.Mutex
		completed []bool
	)
	f := newFixture(t, loggedInStore(t), newRecognizerStub("Title"),
		WithContinuousTimeout(10*time.Millisecond),
		WithIntentCompletedCallback(func(_ string, success bool, _ string) {
			mu.Lock()
			defer mu.Unlock()
			completed = append(completed, success)
		}),
	)
	f.transport.err = errors.New("connection refused")

	if err := f.controller.Start(context.Background(), "create_blog_post"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if !f.synthesizer.said(actions.MessageTransportFailure) {
		t.Fatalf("expected generic failure message, got %v", f.synthesizer.spoken())
	}
	mu.Lock()
	defer mu.Unlock()
	if !slices.Equal(completed, []bool{false}) {
		t.Fatalf("expected one failed completion, got %v", completed)
	}
}

func TestUnsupportedStorageAbortsPrefill(t *testing.T) {
	f := newFixture(t, persistence.UnsupportedStore{}, newRecognizerStub("1234"))

	if err := f.controller.Start(context.Background(), "verify"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if !f.synthesizer.said(actions.MessageUnsupportedEnvironment) {
		t.Fatalf("expected unsupported environment message, got %v", f.synthesizer.spoken())
	}
	if len(f.transport.sent()) != 0 {
		t.Fatalf("expected no dispatch")
	}
	if state := f.controller.State(); state != StateIdle {
		t.Fatalf("expected idle, got %s", state)
	}
}

func TestMissingRecognizerAbortsCapture(t *testing.T) {
	synthesizer := &synthesizerStub{}
	transport := &transportStub{}
	controller := NewController(catalog.Default(), actions.NewDispatcher(transport, nil), nil,
		WithSynthesizer(synthesizer))

	if err := controller.Start(context.Background(), "register"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !synthesizer.said(MessageCaptureUnavailable) {
		t.Fatalf("expected capture unavailable message, got %v", synthesizer.spoken())
	}
	if snapshot := controller.Snapshot(); snapshot.State != StateIdle || snapshot.AwaitingRetry {
		t.Fatalf("expected idle, got %+v", snapshot)
	}
}

func TestListenClassifiesAndStarts(t *testing.T) {
	classifier := intents.ClassifierFunc(func(_ context.Context, utterance string) (string, error) {
		if utterance == "I want to register" {
			return "register", nil
		}
		return "", intents.ErrNoIntent
	})
	f := newFixture(t, persistence.NewMemoryStore(), newRecognizerStub("I want to register", "5550100"),
		WithClassifier(classifier), WithFollowUpChaining(false))

	if err := f.controller.Listen(context.Background()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	requests := f.transport.sent()
	if len(requests) != 1 || requests[0].URL != "https://api.about-me.website/register-phone" {
		t.Fatalf("expected register dispatch, got %+v", requests)
	}
}

func TestListenWithoutSpeechGoesIdle(t *testing.T) {
	classifier := intents.ClassifierFunc(func(context.Context, string) (string, error) {
		return "register", nil
	})
	f := newFixture(t, persistence.NewMemoryStore(), newRecognizerStub(), WithClassifier(classifier))

	if err := f.controller.Listen(context.Background()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !f.synthesizer.said(MessageRecognitionFailed) {
		t.Fatalf("expected recognition failure message, got %v", f.synthesizer.spoken())
	}
	if snapshot := f.controller.Snapshot(); snapshot.State != StateIdle || snapshot.AwaitingRetry {
		t.Fatalf("expected idle without retry, got %+v", snapshot)
	}
}

func TestListenWithoutClassifier(t *testing.T) {
	f := newFixture(t, persistence.NewMemoryStore(), newRecognizerStub())

	if err := f.controller.Listen(context.Background()); !errors.Is(err, ErrNoClassifier) {
		t.Fatalf("expected ErrNoClassifier, got %v", err)
	}
}

func TestStateChangesAreReported(t *testing.T) {
	var transitions []string
	f := newFixture(t, persistence.NewMemoryStore(), newRecognizerStub("5550100"),
		WithFollowUpChaining(false),
		WithStateChangedCallback(func(from, to State) {
			transitions = append(transitions, from.String()+">"+to.String())
		}),
	)

	if err := f.controller.Start(context.Background(), "register"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	expected := []string{
		"idle>awaiting_question_playback",
		"awaiting_question_playback>awaiting_answer",
		"awaiting_answer>advancing",
		"advancing>executing",
		"executing>idle",
	}
	if !slices.Equal(transitions, expected) {
		t.Fatalf("expected %v, got %v", expected, transitions)
	}
}

func waitClosed(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting")
	}
}

func TestListenRejectedWhileStartChecksLogin(t *testing.T) {
	classifier := intents.ClassifierFunc(func(context.Context, string) (string, error) {
		return "register", nil
	})
	store := newGatedStore(loggedInStore(t))
	recognizer := newRecognizerStub("My first post")
	f := newFixture(t, store, recognizer,
		WithClassifier(classifier), WithContinuousTimeout(10*time.Millisecond))

	done := make(chan error, 1)
	go func() { done <- f.controller.Start(context.Background(), "create_blog_post") }()
	waitClosed(t, store.entered)

	if err := f.controller.Listen(context.Background()); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
	close(store.open)

	if err := <-done; err != nil {
		t.Fatalf("expected blog post to finish, got %v", err)
	}
	if f.synthesizer.said(MessageRecognitionFailed) {
		t.Fatalf("expected no recognition failure, got %v", f.synthesizer.spoken())
	}
	if calls := recognizer.onceCalls.Load(); calls != 1 {
		t.Fatalf("expected only the title capture, got %d", calls)
	}
	if peak := recognizer.maxActive.Load(); peak != 1 {
		t.Fatalf("expected one capture at a time, got %d", peak)
	}
	requests := f.transport.sent()
	if len(requests) != 1 || requests[0].URL != "https://api.about-me.website/create-blog-post" {
		t.Fatalf("expected only the blog post dispatch, got %+v", requests)
	}
}

func TestStartRejectedWhileListening(t *testing.T) {
	classifier := intents.ClassifierFunc(func(context.Context, string) (string, error) {
		return "register", nil
	})
	recognizer := newRecognizerStub("I want to register", "5550100")
	recognizer.block = make(chan struct{})
	f := newFixture(t, loggedInStore(t), recognizer,
		WithClassifier(classifier), WithFollowUpChaining(false))

	done := make(chan error, 1)
	go func() { done <- f.controller.Listen(context.Background()) }()
	waitFor(t, func() bool { return f.controller.State() == StateListening })

	for _, intent := range []string{"create_blog_post", "logout"} {
		if err := f.controller.Start(context.Background(), intent); !errors.Is(err, ErrBusy) {
			t.Fatalf("expected ErrBusy for %s, got %v", intent, err)
		}
	}

	close(recognizer.block)
	if err := <-done; err != nil {
		t.Fatalf("expected listen to finish, got %v", err)
	}
	requests := f.transport.sent()
	if len(requests) != 1 || requests[0].URL != "https://api.about-me.website/register-phone" {
		t.Fatalf("expected only the register dispatch, got %+v", requests)
	}
	loggedIn, _ := persistence.NewCredentials(f.store).LoggedIn(context.Background())
	if !loggedIn {
		t.Fatalf("expected rejected logout not to run")
	}
}

func TestStartRejectedBeforeFollowUp(t *testing.T) {
	recognizer := newRecognizerStub("555.0100", "1234")
	f := newFixture(t, persistence.NewMemoryStore(), recognizer)
	f.transport.replies = []string{
		`{"message":"code sent"}`,
		`{"data":{"access_token":"tok"}}`,
	}
	f.synthesizer.holdOn(registerSuccess)

	done := make(chan error, 1)
	go func() { done <- f.controller.Start(context.Background(), "register") }()
	waitClosed(t, f.synthesizer.held)

	if state := f.controller.State(); state != StateIdle {
		t.Fatalf("expected idle while the outcome plays, got %s", state)
	}
	if err := f.controller.Start(context.Background(), "login"); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}

	close(f.synthesizer.resume)
	if err := <-done; err != nil {
		t.Fatalf("expected register and verify to finish, got %v", err)
	}
	requests := f.transport.sent()
	if len(requests) != 2 || requests[1].URL != "https://api.about-me.website/verify-phone" {
		t.Fatalf("expected register then verify, got %+v", requests)
	}
	if !f.synthesizer.said(verifySuccess) {
		t.Fatalf("expected verify success message, got %v", f.synthesizer.spoken())
	}
}

const cascadeCatalog = `
intents:
  - name: confirm_identity
    action_id: CREATE:BLOG:POST
    endpoint: https://example.test/confirm
    questions:
      - key: note
        prompt: Anything to add?
      - key: phone
        prompt: What is your phone number?
        prefill: phone
      - key: access_token
        prompt: What is your access token?
        prefill: access_token
responses:
  CREATE:BLOG:POST: Confirmed
`

func TestPrefillCascadeEndsInDispatch(t *testing.T) {
	cat, err := catalog.Parse([]byte(cascadeCatalog), "yaml")
	if err != nil {
		t.Fatalf("expected catalog to parse, got %v", err)
	}

	var (
		asked       []string
		prefilled   []string
		transitions []string
	)
	recognizer := newRecognizerStub("Nothing else")
	f := newCatalogFixture(t, cat, loggedInStore(t), recognizer,
		WithQuestionAskedCallback(func(key, _ string) { asked = append(asked, key) }),
		WithAnswerPrefilledCallback(func(key, _ string) { prefilled = append(prefilled, key) }),
		WithStateChangedCallback(func(from, to State) {
			transitions = append(transitions, from.String()+">"+to.String())
		}),
	)

	if err := f.controller.Start(context.Background(), "confirm_identity"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if !slices.Equal(asked, []string{"note"}) {
		t.Fatalf("expected only note to be asked, got %v", asked)
	}
	if !slices.Equal(prefilled, []string{"phone", "access_token"}) {
		t.Fatalf("expected both prefills, got %v", prefilled)
	}
	expected := []string{
		"idle>awaiting_question_playback",
		"awaiting_question_playback>awaiting_answer",
		"awaiting_answer>advancing",
		"advancing>advancing",
		"advancing>advancing",
		"advancing>executing",
		"executing>idle",
	}
	if !slices.Equal(transitions, expected) {
		t.Fatalf("expected %v, got %v", expected, transitions)
	}

	requests := f.transport.sent()
	if len(requests) != 1 {
		t.Fatalf("expected one dispatch, got %d", len(requests))
	}
	sent := body(t, requests[0])
	if sent["note"] != "Nothing else" || sent["phone"] != "+15550100" || sent["access_token"] != "tok" {
		t.Fatalf("unexpected body %v", sent)
	}
	if !f.synthesizer.said("Confirmed") {
		t.Fatalf("expected success message, got %v", f.synthesizer.spoken())
	}
}

func TestRestoreViewFromStoredCredentials(t *testing.T) {
	f := newFixture(t, loggedInStore(t), newRecognizerStub())

	if view := f.controller.RestoreView(context.Background()); view != actions.ViewPostLogin {
		t.Fatalf("expected post login view, got %q", view)
	}
	if !slices.Equal(*f.views, []string{string(actions.ViewPostLogin)}) {
		t.Fatalf("expected post login to be announced, got %v", *f.views)
	}
	if snapshot := f.controller.Snapshot(); snapshot.View != actions.ViewPostLogin || !snapshot.LoggedIn {
		t.Fatalf("expected logged in snapshot, got %+v", snapshot)
	}

	if err := f.controller.Start(context.Background(), "logout"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if snapshot := f.controller.Snapshot(); snapshot.View != actions.ViewPreLogin || snapshot.LoggedIn {
		t.Fatalf("expected logged out snapshot, got %+v", snapshot)
	}
}

func TestRestoreViewWithoutCredentials(t *testing.T) {
	f := newFixture(t, persistence.NewMemoryStore(), newRecognizerStub())

	if view := f.controller.RestoreView(context.Background()); view != actions.ViewPreLogin {
		t.Fatalf("expected pre login view, got %q", view)
	}
	if snapshot := f.controller.Snapshot(); snapshot.LoggedIn {
		t.Fatalf("expected logged out snapshot, got %+v", snapshot)
	}
}

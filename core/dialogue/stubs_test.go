package dialogue

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/koscakluka/voiceforms/core/actions"
	"github.com/koscakluka/voiceforms/core/catalog"
	"github.com/koscakluka/voiceforms/core/persistence"
	"github.com/koscakluka/voiceforms/core/speechtotext"
)

type recognizerStub struct {
	mu        sync.Mutex
	once      []speechtotext.Recognition
	fragments [][]string
	block     chan struct{}

	onceCalls       atomic.Int32
	continuousCalls atomic.Int32
	active          atomic.Int32
	maxActive       atomic.Int32
}

func newRecognizerStub(answers ...string) *recognizerStub {
	r := &recognizerStub{}
	for _, answer := range answers {
		r.once = append(r.once, speechtotext.Recognition{Text: answer})
	}
	return r
}

func (r *recognizerStub) enter() {
	active := r.active.Add(1)
	for {
		current := r.maxActive.Load()
		if active <= current || r.maxActive.CompareAndSwap(current, active) {
			return
		}
	}
}

func (r *recognizerStub) leave() { r.active.Add(-1) }

func (r *recognizerStub) RecognizeOnce(ctx context.Context, _ ...speechtotext.RecognitionOption) (speechtotext.Recognition, error) {
	r.enter()
	defer r.leave()
	r.onceCalls.Add(1)

	if r.block != nil {
		select {
		case <-r.block:
		case <-ctx.Done():
			return speechtotext.Recognition{Cancelled: true, Reason: "cancelled"}, nil
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.once) == 0 {
		return speechtotext.Recognition{Cancelled: true, Reason: "no speech detected"}, nil
	}
	recognition := r.once[0]
	r.once = r.once[1:]
	return recognition, nil
}

func (r *recognizerStub) RecognizeContinuous(ctx context.Context, opts ...speechtotext.RecognitionOption) error {
	r.enter()
	defer r.leave()
	r.continuousCalls.Add(1)

	options := speechtotext.NewRecognitionOptions(opts...)
	r.mu.Lock()
	var fragments []string
	if len(r.fragments) > 0 {
		fragments = r.fragments[0]
		r.fragments = r.fragments[1:]
	}
	r.mu.Unlock()

	for _, fragment := range fragments {
		if options.FragmentCallback != nil {
			options.FragmentCallback(fragment)
		}
	}
	<-ctx.Done()
	return nil
}

type synthesizerStub struct {
	mu    sync.Mutex
	texts []string

	// hold pauses synthesis of one text until resume is closed.
	hold   string
	held   chan struct{}
	resume chan struct{}
}

func (s *synthesizerStub) holdOn(text string) {
	s.hold = text
	s.held = make(chan struct{})
	s.resume = make(chan struct{})
}

func (s *synthesizerStub) Synthesize(ctx context.Context, text string) ([]byte, error) {
	s.mu.Lock()
	s.texts = append(s.texts, text)
	s.mu.Unlock()

	if s.hold != "" && text == s.hold {
		close(s.held)
		select {
		case <-s.resume:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return []byte(text), nil
}

func (s *synthesizerStub) spoken() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.texts...)
}

func (s *synthesizerStub) said(text string) bool {
	for _, spoken := range s.spoken() {
		if spoken == text {
			return true
		}
	}
	return false
}

type audioOutputStub struct {
	played atomic.Int32
}

func (a *audioOutputStub) Play(context.Context, []byte) error {
	a.played.Add(1)
	return nil
}

type transportStub struct {
	mu       sync.Mutex
	requests []actions.Request
	replies  []string
	err      error
}

func (t *transportStub) Do(_ context.Context, req actions.Request) (actions.Reply, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.requests = append(t.requests, req)
	if t.err != nil {
		return actions.Reply{}, t.err
	}
	body := `{}`
	if len(t.replies) > 0 {
		body = t.replies[0]
		t.replies = t.replies[1:]
	}
	return actions.DecodeReply(200, []byte(body))
}

func (t *transportStub) sent() []actions.Request {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]actions.Request(nil), t.requests...)
}

type fixture struct {
	controller  *Controller
	store       persistence.Store
	recognizer  *recognizerStub
	synthesizer *synthesizerStub
	output      *audioOutputStub
	transport   *transportStub
	views       *[]string
}

// gatedStore blocks every read until open is closed.
type gatedStore struct {
	persistence.Store
	entered chan struct{}
	open    chan struct{}
	once    sync.Once
}

func newGatedStore(store persistence.Store) *gatedStore {
	return &gatedStore{Store: store, entered: make(chan struct{}), open: make(chan struct{})}
}

func (g *gatedStore) Get(ctx context.Context, key string) (string, bool, error) {
	g.once.Do(func() { close(g.entered) })
	select {
	case <-g.open:
	case <-ctx.Done():
		return "", false, ctx.Err()
	}
	return g.Store.Get(ctx, key)
}

func newFixture(t *testing.T, store persistence.Store, recognizer *recognizerStub, opts ...ControllerOption) *fixture {
	t.Helper()
	return newCatalogFixture(t, catalog.Default(), store, recognizer, opts...)
}

func newCatalogFixture(t *testing.T, cat *catalog.Catalog, store persistence.Store, recognizer *recognizerStub, opts ...ControllerOption) *fixture {
	t.Helper()

	f := &fixture{
		store:       store,
		recognizer:  recognizer,
		synthesizer: &synthesizerStub{},
		output:      &audioOutputStub{},
		transport:   &transportStub{},
		views:       &[]string{},
	}

	credentials := persistence.NewCredentials(store)
	var controller *Controller
	dispatcher := actions.NewDispatcher(f.transport, credentials,
		actions.WithViewCallback(func(view actions.View) { controller.ChangeView(view) }))

	var viewsMu sync.Mutex
	opts = append([]ControllerOption{
		WithRecognizer(recognizer),
		WithSynthesizer(f.synthesizer),
		WithAudioOutput(f.output),
		WithViewChangedCallback(func(view string) {
			viewsMu.Lock()
			defer viewsMu.Unlock()
			*f.views = append(*f.views, view)
		}),
	}, opts...)
	controller = NewController(cat, dispatcher, credentials, opts...)
	f.controller = controller
	return f
}

func loggedInStore(t *testing.T) persistence.Store {
	t.Helper()
	store := persistence.NewMemoryStore()
	if err := persistence.NewCredentials(store).Save(context.Background(), "+15550100", "tok"); err != nil {
		t.Fatalf("failed to seed credentials: %v", err)
	}
	return store
}

func body(t *testing.T, req actions.Request) map[string]any {
	t.Helper()
	data, err := json.Marshal(req.Body)
	if err != nil {
		t.Fatalf("failed to marshal body: %v", err)
	}
	decoded := map[string]any{}
	_ = json.Unmarshal(data, &decoded)
	return decoded
}

func speechtotextRecognition(text string) speechtotext.Recognition {
	return speechtotext.Recognition{Text: text}
}

package audioselect

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"
)

type shownMessage struct {
	text     string
	controls *Controls
}

type fakeSurface struct {
	mu       sync.Mutex
	next     MessageRef
	messages map[MessageRef]shownMessage
	shows    int
	deleted  []MessageRef
	showErr  error
}

func newFakeSurface() *fakeSurface {
	return &fakeSurface{messages: make(map[MessageRef]shownMessage)}
}

func (f *fakeSurface) Show(_ context.Context, ref MessageRef, text string, controls *Controls) (MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.showErr != nil {
		return 0, f.showErr
	}
	f.shows++
	if ref == 0 {
		f.next++
		ref = f.next
	}
	f.messages[ref] = shownMessage{text: text, controls: controls}
	return ref, nil
}

func (f *fakeSurface) Delete(_ context.Context, ref MessageRef) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.messages, ref)
	f.deleted = append(f.deleted, ref)
	return nil
}

func (f *fakeSurface) message(ref MessageRef) (shownMessage, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.messages[ref]
	return m, ok
}

func (f *fakeSurface) showCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.shows
}

type fakeListeners struct {
	mu          sync.Mutex
	deliver     func(Command)
	actorID     int64
	namespace   string
	listened    chan struct{}
	unlistens   int
	listenErr   error
	unlistenErr error
}

func newFakeListeners() *fakeListeners {
	return &fakeListeners{listened: make(chan struct{}, 1)}
}

func (f *fakeListeners) Listen(namespace string, actorID int64, deliver func(Command)) error {
	if f.listenErr != nil {
		return f.listenErr
	}
	f.mu.Lock()
	f.deliver = deliver
	f.actorID = actorID
	f.namespace = namespace
	f.mu.Unlock()
	f.listened <- struct{}{}
	return nil
}

func (f *fakeListeners) Unlisten(namespace string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unlistens++
	return f.unlistenErr
}

// send delivers a command and returns the acknowledgement text.
func (f *fakeListeners) send(verb Verb, arg string) string {
	f.mu.Lock()
	deliver := f.deliver
	ns := f.namespace
	actor := f.actorID
	f.mu.Unlock()

	var acked string
	deliver(Command{
		ActorID:   actor,
		Namespace: ns,
		Verb:      verb,
		Arg:       arg,
		Ack: func(text string) error {
			acked = text
			return nil
		},
	})
	return acked
}

func (f *fakeListeners) unlistenCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.unlistens
}

type runResult struct {
	res Result
	err error
}

func threeAudio() []Candidate {
	return []Candidate{
		{ID: 0, Category: "video", Title: "Main"},
		{ID: 1, Category: CategoryAudio, Title: "A", Language: "eng"},
		{ID: 2, Category: CategoryAudio, Title: "B", Language: "jpn"},
		{ID: 3, Category: CategoryAudio, Language: "fre"},
		{ID: 4, Category: "subtitle", Title: "Subs"},
	}
}

func fixedClock() func() time.Time {
	t0 := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return func() time.Time { return t0 }
}

func startSession(t *testing.T, ctx context.Context, opts Options, candidates []Candidate) (*Session, *fakeSurface, *fakeListeners, <-chan runResult) {
	t.Helper()
	surface := newFakeSurface()
	listeners := newFakeListeners()
	if opts.Now == nil {
		opts.Now = fixedClock()
	}
	s := NewSession(42, surface, listeners, opts)
	out := make(chan runResult, 1)
	go func() {
		res, err := s.Run(ctx, candidates)
		out <- runResult{res: res, err: err}
	}()
	select {
	case <-listeners.listened:
	case <-time.After(2 * time.Second):
		t.Fatal("listener was not registered")
	}
	deadline := time.Now().Add(2 * time.Second)
	for surface.showCount() < 2 {
		if time.Now().After(deadline) {
			t.Fatal("initial views were not rendered")
		}
		time.Sleep(time.Millisecond)
	}
	return s, surface, listeners, out
}

func waitResult(t *testing.T, out <-chan runResult) runResult {
	t.Helper()
	select {
	case r := <-out:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("session did not resolve")
	}
	return runResult{}
}

func TestRunDoneReturnsCurrentOrder(t *testing.T) {
	s, surface, listeners, out := startSession(t, context.Background(), Options{}, threeAudio())

	if listeners.actorID != 42 || !strings.HasPrefix(listeners.namespace, NamespacePrefix) {
		t.Fatalf("listener scope = %d %q", listeners.actorID, listeners.namespace)
	}

	listeners.send(VerbDown, "1")
	listeners.send(VerbUp, "3")
	listeners.send(VerbSwap, "1")
	listeners.send(VerbDone, "")

	r := waitResult(t, out)
	if r.err != nil {
		t.Fatalf("Run error: %v", r.err)
	}
	if r.res.Outcome != OutcomeDone {
		t.Fatalf("outcome = %s, want done", r.res.Outcome)
	}
	if want := []int{2, 1, 3}; !reflect.DeepEqual(r.res.Order, want) {
		t.Fatalf("order = %v, want %v", r.res.Order, want)
	}
	if len(r.res.Items) != 3 || r.res.Items[2].Language != "jpn" || r.res.Items[3].Title != "" {
		t.Fatalf("items = %+v", r.res.Items)
	}
	if !s.Completed() || s.Cancelled() {
		t.Fatalf("flags completed=%v cancelled=%v", s.Completed(), s.Cancelled())
	}
	if got := listeners.unlistenCount(); got != 1 {
		t.Fatalf("unlisten count = %d, want 1", got)
	}
	if len(surface.deleted) != 2 {
		t.Fatalf("deleted = %v, want control and preview", surface.deleted)
	}
}

func TestRunRendersControlsAndPreview(t *testing.T) {
	_, surface, listeners, out := startSession(t, context.Background(), Options{}, threeAudio())

	control, ok := surface.message(1)
	if !ok {
		t.Fatal("control surface not rendered")
	}
	if !strings.Contains(control.text, "Audio Streams: 3") {
		t.Fatalf("control text = %q", control.text)
	}
	if control.controls == nil || len(control.controls.Rows) != 4 {
		t.Fatalf("control rows = %+v", control.controls)
	}
	first := control.controls.Rows[0]
	if first[0].Text != "eng | A" || first[0].Payload() != "none|1" || first[3].Payload() != "down|1" {
		t.Fatalf("first row = %+v", first)
	}
	if third := control.controls.Rows[2]; third[0].Text != "fre | No Title" {
		t.Fatalf("default title not applied: %+v", third[0])
	}
	footer := control.controls.Rows[3]
	if len(footer) != 2 || footer[0].Payload() != "done" || footer[1].Payload() != "cancel" {
		t.Fatalf("footer = %+v", footer)
	}

	preview, ok := surface.message(2)
	if !ok {
		t.Fatal("preview not rendered")
	}
	want := "<b>STREAMS ORDER</b>\neng | A\njpn | B\nfre | No Title\n\nTime Out: 3m"
	if preview.text != want {
		t.Fatalf("preview = %q, want %q", preview.text, want)
	}
	if preview.controls != nil {
		t.Fatal("preview must not carry controls")
	}

	listeners.send(VerbCancel, "")
	waitResult(t, out)
}

func TestRunNoopCommandsDoNotRerender(t *testing.T) {
	_, surface, listeners, out := startSession(t, context.Background(), Options{}, threeAudio())
	base := surface.showCount()

	if ack := listeners.send(VerbNone, "1"); ack != labelNotice {
		t.Fatalf("label ack = %q", ack)
	}
	listeners.send(VerbUp, "1")
	listeners.send(VerbSwap, "1")
	listeners.send(VerbDown, "3")
	listeners.send(VerbUp, "99")
	listeners.send(VerbDown, "abc")
	listeners.send(VerbSwap, "")
	listeners.send(Verb("jump"), "2")

	if got := surface.showCount(); got != base {
		t.Fatalf("shows = %d, want %d (no re-render)", got, base)
	}

	listeners.send(VerbDown, "1")
	if got := surface.showCount(); got != base+2 {
		t.Fatalf("shows after move = %d, want %d", got, base+2)
	}
	preview, _ := surface.message(2)
	if !strings.HasPrefix(preview.text, "<b>STREAMS ORDER</b>\njpn | B\neng | A") {
		t.Fatalf("preview not updated: %q", preview.text)
	}

	listeners.send(VerbDone, "")
	r := waitResult(t, out)
	if want := []int{2, 1, 3}; !reflect.DeepEqual(r.res.Order, want) {
		t.Fatalf("order = %v, want %v", r.res.Order, want)
	}
}

func TestRunCancel(t *testing.T) {
	s, surface, listeners, out := startSession(t, context.Background(), Options{}, threeAudio())

	listeners.send(VerbDown, "1")
	listeners.send(VerbCancel, "")

	r := waitResult(t, out)
	if r.err != nil {
		t.Fatalf("Run error: %v", r.err)
	}
	if r.res.Outcome != OutcomeCancelled || r.res.Order != nil || r.res.Items != nil {
		t.Fatalf("result = %+v, want bare cancelled", r.res)
	}
	if !s.Cancelled() {
		t.Fatal("session not marked cancelled")
	}
	control, _ := surface.message(1)
	if control.text != CancelledNotice || control.controls != nil {
		t.Fatalf("control surface = %+v, want cancelled notice without buttons", control)
	}
	if got := listeners.unlistenCount(); got != 1 {
		t.Fatalf("unlisten count = %d, want 1", got)
	}
}

func TestRunTimeout(t *testing.T) {
	s, surface, listeners, out := startSession(t, context.Background(), Options{Timeout: 30 * time.Millisecond}, threeAudio())

	r := waitResult(t, out)
	if r.err != nil {
		t.Fatalf("timeout must not be an error: %v", r.err)
	}
	if r.res.Outcome != OutcomeCancelled {
		t.Fatalf("outcome = %s, want cancelled", r.res.Outcome)
	}
	if !s.Cancelled() || s.Completed() {
		t.Fatalf("flags completed=%v cancelled=%v", s.Completed(), s.Cancelled())
	}
	control, _ := surface.message(1)
	if control.text != CancelledNotice {
		t.Fatalf("control text = %q", control.text)
	}
	if got := listeners.unlistenCount(); got != 1 {
		t.Fatalf("unlisten count = %d, want 1", got)
	}

	// Late commands must not block once the session has resolved.
	done := make(chan struct{})
	go func() {
		listeners.send(VerbDone, "")
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("late delivery blocked")
	}
}

func TestRunContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	_, _, listeners, out := startSession(t, ctx, Options{}, threeAudio())
	cancel()

	r := waitResult(t, out)
	if !errors.Is(r.err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", r.err)
	}
	if got := listeners.unlistenCount(); got != 1 {
		t.Fatalf("unlisten count = %d, want 1", got)
	}
}

func TestRunNotApplicable(t *testing.T) {
	surface := newFakeSurface()
	listeners := newFakeListeners()
	s := NewSession(1, surface, listeners, Options{})

	res, err := s.Run(context.Background(), []Candidate{
		{ID: 0, Category: "video"},
		{ID: 1, Category: CategoryAudio},
		{ID: 1, Category: CategoryAudio},
	})
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if res.Outcome != OutcomeNotApplicable {
		t.Fatalf("outcome = %s", res.Outcome)
	}
	if surface.showCount() != 0 || len(listeners.listened) != 0 || listeners.unlistenCount() != 0 {
		t.Fatal("no surface or listener expected")
	}
	if _, err := s.Run(context.Background(), nil); !errors.Is(err, ErrSessionUsed) {
		t.Fatalf("second Run err = %v", err)
	}
}

func TestRunListenFailure(t *testing.T) {
	surface := newFakeSurface()
	listeners := newFakeListeners()
	listeners.listenErr = errors.New("registry closed")
	s := NewSession(1, surface, listeners, Options{})

	_, err := s.Run(context.Background(), threeAudio())
	if err == nil || !strings.Contains(err.Error(), "registry closed") {
		t.Fatalf("err = %v", err)
	}
	if surface.showCount() != 0 || listeners.unlistenCount() != 0 {
		t.Fatal("nothing should be rendered or released")
	}
}

func TestRunRenderFailureReleasesListener(t *testing.T) {
	surface := newFakeSurface()
	surface.showErr = errors.New("chat not found")
	listeners := newFakeListeners()
	s := NewSession(1, surface, listeners, Options{})

	_, err := s.Run(context.Background(), threeAudio())
	if err == nil || !strings.Contains(err.Error(), "chat not found") {
		t.Fatalf("err = %v", err)
	}
	if got := listeners.unlistenCount(); got != 1 {
		t.Fatalf("unlisten count = %d, want 1", got)
	}
}

func TestRunUnlistenFailurePropagates(t *testing.T) {
	_, _, listeners, out := startSession(t, context.Background(), Options{}, threeAudio())
	listeners.mu.Lock()
	listeners.unlistenErr = errors.New("not registered")
	listeners.mu.Unlock()

	listeners.send(VerbDone, "")
	r := waitResult(t, out)
	if r.err == nil || !strings.Contains(r.err.Error(), "not registered") {
		t.Fatalf("err = %v", r.err)
	}
}

func TestRefreshRewritesPreviewOnlyWhenTextChanges(t *testing.T) {
	var (
		mu  sync.Mutex
		now = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	)
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	opts := Options{RefreshInterval: 5 * time.Millisecond, Now: clock}
	_, surface, listeners, out := startSession(t, context.Background(), opts, threeAudio())
	base := surface.showCount()

	time.Sleep(40 * time.Millisecond)
	if got := surface.showCount(); got != base {
		t.Fatalf("shows = %d, want %d while clock is frozen", got, base)
	}

	mu.Lock()
	now = now.Add(61 * time.Second)
	mu.Unlock()

	deadline := time.Now().Add(time.Second)
	for surface.showCount() == base && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	preview, _ := surface.message(2)
	if !strings.HasSuffix(preview.text, "Time Out: 1m, 59s") {
		t.Fatalf("preview = %q", preview.text)
	}

	listeners.send(VerbCancel, "")
	waitResult(t, out)
}

func TestPreviewEscapesLabels(t *testing.T) {
	got := previewText([]int{5}, map[int]Item{5: {ID: 5, Title: "<Director's>"}}, 0)
	if !strings.Contains(got, "und | &lt;Director&#39;s&gt;") || !strings.HasSuffix(got, "Time Out: 0s") {
		t.Fatalf("preview = %q", got)
	}
}

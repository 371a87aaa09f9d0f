package bot

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/m3rciful/encoderbot/core/telegram/callbacks"
	"github.com/m3rciful/encoderbot/internal/audioselect"
	"github.com/m3rciful/encoderbot/internal/thumbnail"

	tele "gopkg.in/telebot.v4"
)

const probeJSON = `{"streams": [
    {"index": 0, "codec_name": "h264", "codec_type": "video"},
    {"index": 1, "codec_name": "aac", "codec_type": "audio", "tags": {"language": "jpn", "title": "Japanese"}},
    {"index": 2, "codec_name": "eac3", "codec_type": "audio", "tags": {"language": "eng"}}
]}`

// fakeClient records Bot API calls made outside the update context.
type fakeClient struct {
	mu      sync.Mutex
	nextID  int
	sent    []interface{}
	edited  []tele.Editable
	deleted []tele.Editable
	opts    []*tele.SendOptions
	editErr error
	file    string
}

func (f *fakeClient) Send(_ tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.sent = append(f.sent, what)
	f.record(opts)
	return &tele.Message{ID: 100 + f.nextID}, nil
}

func (f *fakeClient) Edit(msg tele.Editable, _ interface{}, opts ...interface{}) (*tele.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edited = append(f.edited, msg)
	f.record(opts)
	return &tele.Message{}, f.editErr
}

func (f *fakeClient) Delete(msg tele.Editable) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, msg)
	return nil
}

func (f *fakeClient) File(*tele.File) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(f.file)), nil
}

func (f *fakeClient) record(opts []interface{}) {
	for _, o := range opts {
		if so, ok := o.(*tele.SendOptions); ok {
			f.opts = append(f.opts, so)
		}
	}
}

// fakeContext implements the parts of tele.Context the handlers touch.
type fakeContext struct {
	tele.Context
	update    tele.Update
	store     map[string]interface{}
	replies   []interface{}
	sent      []interface{}
	responses []*tele.CallbackResponse
	deleted   bool
}

func newFakeContext(upd tele.Update) *fakeContext {
	return &fakeContext{update: upd, store: make(map[string]interface{})}
}

func (f *fakeContext) Update() tele.Update { return f.update }

func (f *fakeContext) Message() *tele.Message {
	if f.update.Callback != nil {
		return f.update.Callback.Message
	}
	return f.update.Message
}

func (f *fakeContext) Callback() *tele.Callback { return f.update.Callback }

func (f *fakeContext) Sender() *tele.User {
	switch {
	case f.update.Callback != nil:
		return f.update.Callback.Sender
	case f.update.Message != nil:
		return f.update.Message.Sender
	}
	return nil
}

func (f *fakeContext) Chat() *tele.Chat {
	if msg := f.Message(); msg != nil {
		return msg.Chat
	}
	return nil
}

func (f *fakeContext) Get(key string) interface{} { return f.store[key] }

func (f *fakeContext) Set(key string, v interface{}) { f.store[key] = v }

func (f *fakeContext) Send(what interface{}, _ ...interface{}) error {
	f.sent = append(f.sent, what)
	return nil
}

func (f *fakeContext) Reply(what interface{}, _ ...interface{}) error {
	f.replies = append(f.replies, what)
	return nil
}

func (f *fakeContext) Respond(resp ...*tele.CallbackResponse) error {
	if len(resp) == 0 {
		f.responses = append(f.responses, nil)
		return nil
	}
	f.responses = append(f.responses, resp[0])
	return nil
}

func (f *fakeContext) Delete() error {
	f.deleted = true
	return nil
}

func (f *fakeContext) lastReply() string {
	if len(f.replies) == 0 {
		return ""
	}
	s, _ := f.replies[len(f.replies)-1].(string)
	return s
}

func messageUpdate(userID int64, msg *tele.Message) tele.Update {
	msg.Sender = &tele.User{ID: userID}
	msg.Chat = &tele.Chat{ID: userID}
	return tele.Update{ID: 1, Message: msg}
}

func callbackUpdate(userID int64, data string) tele.Update {
	return tele.Update{ID: 2, Callback: &tele.Callback{
		ID:      "cb",
		Data:    data,
		Sender:  &tele.User{ID: userID},
		Message: &tele.Message{ID: 9, Chat: &tele.Chat{ID: userID}},
	}}
}

func newTestApp(client *fakeClient) (*App, *thumbnail.MemoryStore) {
	store := thumbnail.NewMemoryStore()
	cfg := &Config{AudioSelect: AudioSelectConfig{TimeoutSeconds: 180}}
	a := New(cfg, store, nil)
	a.client = func(tele.Context) botClient { return client }
	return a, store
}

func TestListenFiltersActor(t *testing.T) {
	a, _ := newTestApp(&fakeClient{})
	ns := audioselect.NewNamespace()

	var got []audioselect.Command
	if err := a.listeners.Listen(ns, 7, func(cmd audioselect.Command) { got = append(got, cmd) }); err != nil {
		t.Fatalf("Listen: %v", err)
	}
	h, ok := a.registry.GetCallback(ns)
	if !ok {
		t.Fatalf("callback %s not registered", ns)
	}

	if err := h(newFakeContext(callbackUpdate(8, "\f"+ns+"|up|2"))); err != nil {
		t.Fatalf("foreign press: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("foreign press delivered: %+v", got)
	}

	c := newFakeContext(callbackUpdate(7, "\f"+ns+"|up|2"))
	if err := h(c); err != nil {
		t.Fatalf("press: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("delivered %d commands, want 1", len(got))
	}
	cmd := got[0]
	if cmd.Verb != audioselect.VerbUp || cmd.Arg != "2" || cmd.ActorID != 7 || cmd.Namespace != ns {
		t.Fatalf("command = %+v", cmd)
	}
	if err := cmd.Ack("hello"); err != nil {
		t.Fatalf("Ack: %v", err)
	}
	if !callbacks.Answered(c) || len(c.responses) != 1 || c.responses[0].Text != "hello" {
		t.Fatalf("responses = %+v", c.responses)
	}
}

func TestListenTwiceFails(t *testing.T) {
	a, _ := newTestApp(&fakeClient{})
	ns := audioselect.NewNamespace()
	noop := func(audioselect.Command) {}

	if err := a.listeners.Listen(ns, 1, noop); err != nil {
		t.Fatalf("Listen: %v", err)
	}
	if err := a.listeners.Listen(ns, 1, noop); !errors.Is(err, audioselect.ErrListenerExists) {
		t.Fatalf("second Listen err = %v", err)
	}
	if err := a.listeners.Unlisten(ns); err != nil {
		t.Fatalf("Unlisten: %v", err)
	}
	if err := a.listeners.Unlisten(ns); err == nil {
		t.Fatalf("second Unlisten should fail")
	}
}

func TestChatSurfaceShow(t *testing.T) {
	client := &fakeClient{}
	s := newChatSurface(client, &tele.Chat{ID: 42}, "audiosel_abc")

	controls := &audioselect.Controls{Rows: [][]audioselect.Button{{
		{Text: "eng", Verb: audioselect.VerbNone, ItemID: 2, HasItem: true},
		{Text: "↑", Verb: audioselect.VerbUp, ItemID: 2, HasItem: true},
	}, {
		{Text: "Done", Verb: audioselect.VerbDone},
	}}}
	ref, err := s.Show(context.Background(), 0, "text", controls)
	if err != nil {
		t.Fatalf("Show: %v", err)
	}
	if ref != 101 {
		t.Fatalf("ref = %d, want 101", ref)
	}
	kb := client.opts[0].ReplyMarkup.InlineKeyboard
	if len(kb) != 2 || len(kb[0]) != 2 {
		t.Fatalf("keyboard = %+v", kb)
	}
	if kb[0][1].Unique != "audiosel_abc" || kb[0][1].Data != "up|2" || kb[1][0].Data != "done" {
		t.Fatalf("buttons = %+v", kb)
	}

	client.editErr = &tele.Error{Code: 400, Description: "Bad Request: message is not modified"}
	if _, err := s.Show(context.Background(), ref, "text", nil); err != nil {
		t.Fatalf("edit not modified: %v", err)
	}
	msg, ok := client.edited[0].(tele.StoredMessage)
	if !ok || msg.MessageID != "101" || msg.ChatID != 42 {
		t.Fatalf("edited = %+v", client.edited)
	}
	if kb := client.opts[1].ReplyMarkup.InlineKeyboard; kb == nil || len(kb) != 0 {
		t.Fatalf("edit without controls should clear the keyboard, got %+v", kb)
	}

	client.editErr = errors.New("telegram: chat not found")
	if _, err := s.Show(context.Background(), ref, "text", nil); err == nil {
		t.Fatalf("edit error swallowed")
	}
}

func TestMapArgs(t *testing.T) {
	if got, want := mapArgs([]int{2, 1}), "-map 0:v? -map 0:2 -map 0:1 -map 0:s?"; got != want {
		t.Fatalf("mapArgs = %q, want %q", got, want)
	}
}

func TestOrderSummary(t *testing.T) {
	res := audioselect.Result{
		Outcome: audioselect.OutcomeDone,
		Order:   []int{2, 1},
		Items: map[int]audioselect.Item{
			1: {ID: 1, Language: "jpn", Title: "<Japanese>"},
			2: {ID: 2, Language: "eng"},
		},
	}
	got := orderSummary(res)
	for _, want := range []string{
		"1. eng | No Title (#2)",
		"2. jpn | &lt;Japanese&gt; (#1)",
		"<code>-map 0:v? -map 0:2 -map 0:1 -map 0:s?</code>",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("summary %q misses %q", got, want)
		}
	}
}

func TestIsThumbCaption(t *testing.T) {
	cases := map[string]bool{
		"/thumb":             true,
		" /SetThumb now":     true,
		"/thumb@encoder_bot": true,
		"thumb":              false,
		"/thumbnails":        false,
		"":                   false,
	}
	for caption, want := range cases {
		if got := isThumbCaption(caption); got != want {
			t.Fatalf("isThumbCaption(%q) = %v, want %v", caption, got, want)
		}
	}
}

func TestThumbPromptFlow(t *testing.T) {
	client := &fakeClient{}
	a, store := newTestApp(client)

	press := newFakeContext(callbackUpdate(5, "\fset_thumb"))
	if err := a.handleSetThumb(press); err != nil {
		t.Fatalf("set_thumb: %v", err)
	}
	if !callbacks.Answered(press) {
		t.Fatalf("set_thumb not answered")
	}
	if len(client.sent) != 1 || client.sent[0] != thumbPrompt {
		t.Fatalf("prompt = %+v", client.sent)
	}
	if st := a.fsm.GetState(5); st != stateThumbAwaitPhoto {
		t.Fatalf("state = %q", st)
	}

	text := newFakeContext(messageUpdate(5, &tele.Message{Text: "hi"}))
	if err := a.handleAwaitPhoto(text); err != nil {
		t.Fatalf("await text: %v", err)
	}
	if text.lastReply() != thumbNeedPhoto {
		t.Fatalf("reply = %q", text.lastReply())
	}

	photo := newFakeContext(messageUpdate(5, &tele.Message{
		Photo: &tele.Photo{File: tele.File{FileID: "AgAD-photo"}},
	}))
	if err := a.handleAwaitPhoto(photo); err != nil {
		t.Fatalf("await photo: %v", err)
	}
	if photo.lastReply() != thumbSaved {
		t.Fatalf("reply = %q", photo.lastReply())
	}
	if id, ok, _ := store.Get(context.Background(), 5); !ok || id != "AgAD-photo" {
		t.Fatalf("stored = %q, %v", id, ok)
	}
	if a.fsm.InProgress(5) {
		t.Fatalf("state not cleared")
	}
}

func TestHandlePhoto(t *testing.T) {
	client := &fakeClient{}
	a, store := newTestApp(client)

	plain := newFakeContext(messageUpdate(3, &tele.Message{
		Photo: &tele.Photo{File: tele.File{FileID: "ignored"}},
	}))
	if err := a.handlePhoto(plain); err != nil {
		t.Fatalf("plain photo: %v", err)
	}
	if _, ok, _ := store.Get(context.Background(), 3); ok {
		t.Fatalf("uncaptioned photo saved")
	}

	captioned := newFakeContext(messageUpdate(3, &tele.Message{
		Caption: "/thumb",
		Photo:   &tele.Photo{File: tele.File{FileID: "captioned"}},
	}))
	if err := a.handlePhoto(captioned); err != nil {
		t.Fatalf("captioned photo: %v", err)
	}
	if id, _, _ := store.Get(context.Background(), 3); id != "captioned" {
		t.Fatalf("stored = %q", id)
	}

	reply := newFakeContext(messageUpdate(3, &tele.Message{
		ReplyTo: &tele.Message{ID: 77, Text: thumbPrompt},
		Photo:   &tele.Photo{File: tele.File{FileID: "replied"}},
	}))
	if err := a.handlePhoto(reply); err != nil {
		t.Fatalf("reply photo: %v", err)
	}
	if id, _, _ := store.Get(context.Background(), 3); id != "replied" {
		t.Fatalf("stored = %q", id)
	}
}

func TestThumbShowAndDelete(t *testing.T) {
	a, store := newTestApp(&fakeClient{})

	empty := newFakeContext(messageUpdate(4, &tele.Message{Text: "/thumb"}))
	if err := a.handleThumb(empty); err != nil {
		t.Fatalf("thumb: %v", err)
	}
	if empty.lastReply() != thumbMissing {
		t.Fatalf("reply = %q", empty.lastReply())
	}

	fileID := "AgAD-old"
	_ = store.Set(context.Background(), 4, &fileID)
	show := newFakeContext(messageUpdate(4, &tele.Message{Text: "/thumb"}))
	if err := a.handleThumb(show); err != nil {
		t.Fatalf("thumb: %v", err)
	}
	photo, ok := show.sent[0].(*tele.Photo)
	if !ok || photo.FileID != fileID || photo.Caption != thumbCurrent {
		t.Fatalf("sent = %+v", show.sent)
	}

	del := newFakeContext(callbackUpdate(4, "\fdel_thumb"))
	if err := a.handleDelThumb(del); err != nil {
		t.Fatalf("del_thumb: %v", err)
	}
	if _, ok, _ := store.Get(context.Background(), 4); ok {
		t.Fatalf("thumbnail not deleted")
	}
	if len(del.responses) != 1 || del.responses[0].Text != thumbDeleted || !del.responses[0].ShowAlert {
		t.Fatalf("responses = %+v", del.responses)
	}
	if !del.deleted {
		t.Fatalf("menu message not deleted")
	}
}

func TestAudioSelReorders(t *testing.T) {
	client := &fakeClient{file: probeJSON}
	a, _ := newTestApp(client)

	cmd := newFakeContext(messageUpdate(11, &tele.Message{
		Text:    "/audiosel",
		ReplyTo: &tele.Message{ID: 3, Document: &tele.Document{File: tele.File{FileID: "doc"}}},
	}))
	done := make(chan error, 1)
	go func() { done <- a.handleAudioSel(cmd) }()

	ns := waitForSession(t, a)
	h, _ := a.registry.GetCallback(ns)
	for _, payload := range []string{"down|1", "done"} {
		if err := h(newFakeContext(callbackUpdate(11, "\f"+ns+"|"+payload))); err != nil {
			t.Fatalf("press %s: %v", payload, err)
		}
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("audiosel: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("session did not finish")
	}
	if !strings.Contains(cmd.lastReply(), "-map 0:v? -map 0:2 -map 0:1 -map 0:s?") {
		t.Fatalf("reply = %q", cmd.lastReply())
	}
	if n := a.registry.CountCallbacks(audioselect.NamespacePrefix); n != 0 {
		t.Fatalf("open sessions = %d after done", n)
	}
}

func TestAudioSelWithoutDocument(t *testing.T) {
	a, _ := newTestApp(&fakeClient{})
	c := newFakeContext(messageUpdate(1, &tele.Message{Text: "/audiosel"}))
	if err := a.handleAudioSel(c); err != nil {
		t.Fatalf("audiosel: %v", err)
	}
	if c.lastReply() != audioselUsage {
		t.Fatalf("reply = %q", c.lastReply())
	}
}

func TestAudioSelSingleAudio(t *testing.T) {
	client := &fakeClient{file: `{"streams": [{"index": 0, "codec_type": "video"}, {"index": 1, "codec_type": "audio"}]}`}
	a, _ := newTestApp(client)
	c := newFakeContext(messageUpdate(1, &tele.Message{
		ReplyTo: &tele.Message{Document: &tele.Document{File: tele.File{FileID: "doc"}}},
	}))
	if err := a.handleAudioSel(c); err != nil {
		t.Fatalf("audiosel: %v", err)
	}
	if c.lastReply() != notEnoughAudio {
		t.Fatalf("reply = %q", c.lastReply())
	}
	if len(client.sent) != 0 {
		t.Fatalf("rendered %d messages for a single audio stream", len(client.sent))
	}
}

func waitForSession(t *testing.T, a *App) string {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		for _, key := range a.registry.ListCallbacks() {
			if strings.HasPrefix(key, audioselect.NamespacePrefix) {
				return key
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("no session registered")
	return ""
}

func TestThumbHandlersWithoutSender(t *testing.T) {
	a, store := newTestApp(&fakeClient{})
	anonymous := func(msg *tele.Message) *fakeContext {
		msg.Chat = &tele.Chat{ID: -100}
		return newFakeContext(tele.Update{ID: 3, Message: msg})
	}

	if err := a.handleThumb(anonymous(&tele.Message{Text: "/thumb"})); err != nil {
		t.Fatalf("thumb: %v", err)
	}
	photo := &tele.Photo{File: tele.File{FileID: "channel-photo"}}
	if err := a.handleThumb(anonymous(&tele.Message{Caption: "/thumb", Photo: photo})); err != nil {
		t.Fatalf("thumb with photo: %v", err)
	}
	if err := a.handleSetThumbCommand(anonymous(&tele.Message{Text: "/setthumb"})); err != nil {
		t.Fatalf("setthumb: %v", err)
	}
	if err := a.handleAwaitPhoto(anonymous(&tele.Message{Photo: photo})); err != nil {
		t.Fatalf("await photo: %v", err)
	}
	if _, ok, _ := store.Get(context.Background(), 0); ok {
		t.Fatalf("anonymous photo stored")
	}

	del := newFakeContext(tele.Update{ID: 4, Callback: &tele.Callback{
		ID:      "cb",
		Data:    "\fdel_thumb",
		Message: &tele.Message{ID: 9, Chat: &tele.Chat{ID: -100}},
	}})
	if err := a.handleDelThumb(del); err != nil {
		t.Fatalf("del_thumb: %v", err)
	}
	if !callbacks.Answered(del) || del.deleted {
		t.Fatalf("answered = %v, deleted = %v", callbacks.Answered(del), del.deleted)
	}
}

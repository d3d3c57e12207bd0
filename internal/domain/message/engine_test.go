package message

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"smartmsg/internal/common"
)

// fakeTransport records calls and returns scripted results.
type fakeTransport struct {
	calls []string

	editErr   error
	sendErr   error
	deleteErr error

	lastSent *Rendered
	nextID   int
}

func (f *fakeTransport) handle(chatID int64, hasMedia bool) MessageHandle {
	f.nextID++
	return MessageHandle{ChatID: chatID, MessageID: f.nextID, HasMedia: hasMedia}
}

func (f *fakeTransport) Send(ctx context.Context, chatID int64, msg *Rendered) (MessageHandle, error) {
	f.calls = append(f.calls, "send")
	f.lastSent = msg
	if f.sendErr != nil {
		return MessageHandle{}, f.sendErr
	}
	return f.handle(chatID, msg.HasMedia()), nil
}

func (f *fakeTransport) Edit(ctx context.Context, chatID int64, messageID int, msg *Rendered) (MessageHandle, error) {
	f.calls = append(f.calls, "edit")
	f.lastSent = msg
	if f.editErr != nil {
		return MessageHandle{}, f.editErr
	}
	return MessageHandle{ChatID: chatID, MessageID: messageID, HasMedia: msg.HasMedia()}, nil
}

func (f *fakeTransport) Reply(ctx context.Context, chatID int64, replyTo int, msg *Rendered) (MessageHandle, error) {
	f.calls = append(f.calls, "reply")
	f.lastSent = msg
	return f.handle(chatID, msg.HasMedia()), nil
}

func (f *fakeTransport) Delete(ctx context.Context, chatID int64, messageID int) error {
	f.calls = append(f.calls, "delete")
	return f.deleteErr
}

func (f *fakeTransport) SendDocument(ctx context.Context, chatID int64, path, caption string, layout *InlineLayout) (MessageHandle, error) {
	f.calls = append(f.calls, "document")
	return f.handle(chatID, true), nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEngine(t *testing.T) (*Engine, *fakeTransport) {
	t.Helper()
	root := t.TempDir()
	writeTemplate(t, root, "bot", "user", "en", "welcome", welcomeJSON)
	transport := &fakeTransport{}
	return NewEngine(NewStore(root), transport, testLogger()), transport
}

func greetingParams() RenderParams {
	return RenderParams{
		Module:   "bot",
		Role:     "user",
		Lang:     "en",
		File:     "welcome",
		BlockKey: "greeting",
		Context:  map[string]string{"username": "Ana"},
	}
}

func TestRenderGreeting(t *testing.T) {
	engine, _ := newTestEngine(t)

	rendered, err := engine.Render(context.Background(), greetingParams())
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if rendered.Text != "Hello, Ana!" {
		t.Fatalf("unexpected text: %q", rendered.Text)
	}
	if rendered.HasMedia() {
		t.Fatal("greeting has no media")
	}
	if rendered.Inline == nil || len(rendered.Inline.Rows) != 1 || len(rendered.Inline.Rows[0]) != 1 {
		t.Fatalf("unexpected layout: %+v", rendered.Inline)
	}
	button := rendered.Inline.Rows[0][0]
	if button.Type != ControlCallback || button.Text != "Start" || button.Data != "start" {
		t.Fatalf("unexpected button: %+v", button)
	}
}

func TestRenderMissingContext(t *testing.T) {
	engine, _ := newTestEngine(t)

	params := greetingParams()
	params.Context = nil
	_, err := engine.Render(context.Background(), params)
	var missing *common.MissingContextKeyError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingContextKeyError, got %v", err)
	}
}

func TestRenderExtraControls(t *testing.T) {
	engine, _ := newTestEngine(t)

	params := greetingParams()
	params.ExtraControls = [][]ControlSpec{{{Type: ControlCallback, Text: "Back", Data: "back"}}}
	params.ExtraPosition = PositionTop

	rendered, err := engine.Render(context.Background(), params)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if len(rendered.Inline.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rendered.Inline.Rows))
	}
	if rendered.Inline.Rows[0][0].Text != "Back" || rendered.Inline.Rows[1][0].Text != "Start" {
		t.Fatalf("extra row not on top: %+v", rendered.Inline.Rows)
	}
}

func TestRenderReplyKeyboardBlock(t *testing.T) {
	root := t.TempDir()
	writeTemplate(t, root, "bot", "user", "en", "menu", menuJSON)
	engine := NewEngine(NewStore(root), &fakeTransport{}, testLogger())

	rendered, err := engine.Render(context.Background(), RenderParams{
		Module: "bot", Role: "user", Lang: "en", File: "menu", BlockKey: "main",
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if rendered.Inline != nil {
		t.Fatal("plain rows must not build an inline keyboard")
	}
	if rendered.Reply == nil {
		t.Fatal("expected a reply keyboard")
	}
	if !rendered.Reply.Resize || rendered.Reply.OneTime {
		t.Fatalf("keyboard flags not carried: %+v", rendered.Reply)
	}
	if rendered.Reply.Rows[0][0].Text != "Help" || rendered.Reply.Rows[1][0].Text != "Settings" {
		t.Fatalf("order not preserved: %+v", rendered.Reply.Rows)
	}
}

func TestRenderOverrideBlock(t *testing.T) {
	transport := &fakeTransport{}
	engine := NewEngine(NewStore(t.TempDir()), transport, testLogger())

	rendered, err := engine.Render(context.Background(), RenderParams{
		OverrideBlock: &TemplateBlock{Text: "raw text"},
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if rendered.Text != "raw text" || rendered.Inline != nil {
		t.Fatalf("unexpected render: %+v", rendered)
	}
}

func TestRenderCustomLayout(t *testing.T) {
	engine, _ := newTestEngine(t)

	custom, err := BuildInline([][]ControlSpec{{{Type: ControlCallback, Text: "Only", Data: "only"}}})
	if err != nil {
		t.Fatalf("BuildInline: %v", err)
	}
	params := greetingParams()
	params.CustomInline = custom

	rendered, err := engine.Render(context.Background(), params)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if rendered.Inline != custom {
		t.Fatal("custom layout must bypass the keyboard build")
	}
}

func TestSendDispatchesNewMessage(t *testing.T) {
	engine, transport := newTestEngine(t)

	handle, err := engine.Send(context.Background(), Target{ChatID: 7}, greetingParams())
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if handle.ChatID != 7 || handle.MessageID == 0 {
		t.Fatalf("unexpected handle: %+v", handle)
	}
	if len(transport.calls) != 1 || transport.calls[0] != "send" {
		t.Fatalf("unexpected calls: %v", transport.calls)
	}
	if transport.lastSent.Text != "Hello, Ana!" {
		t.Fatalf("unexpected text sent: %q", transport.lastSent.Text)
	}
}

func TestEditRequiresMessageID(t *testing.T) {
	engine, _ := newTestEngine(t)

	_, err := engine.Edit(context.Background(), Target{ChatID: 7}, greetingParams())
	var validation *common.ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestReplyThreadsMessage(t *testing.T) {
	engine, transport := newTestEngine(t)

	if _, err := engine.Reply(context.Background(), Target{ChatID: 7}, 42, greetingParams()); err != nil {
		t.Fatalf("Reply: %v", err)
	}
	if len(transport.calls) != 1 || transport.calls[0] != "reply" {
		t.Fatalf("unexpected calls: %v", transport.calls)
	}
}

func TestSmartEditOrSendCompatibleEdits(t *testing.T) {
	engine, transport := newTestEngine(t)

	prev := MessageHandle{ChatID: 7, MessageID: 10, HasMedia: false}
	handle, err := engine.SmartEditOrSend(context.Background(), prev, greetingParams())
	if err != nil {
		t.Fatalf("SmartEditOrSend: %v", err)
	}
	if len(transport.calls) != 1 || transport.calls[0] != "edit" {
		t.Fatalf("expected a bare edit, got %v", transport.calls)
	}
	if handle.MessageID != 10 {
		t.Fatalf("edit should keep the message id, got %+v", handle)
	}
}

func TestSmartEditOrSendIncompatibleResends(t *testing.T) {
	engine, transport := newTestEngine(t)

	// Previous message carried media, the greeting block does not.
	prev := MessageHandle{ChatID: 7, MessageID: 10, HasMedia: true}
	handle, err := engine.SmartEditOrSend(context.Background(), prev, greetingParams())
	if err != nil {
		t.Fatalf("SmartEditOrSend: %v", err)
	}
	want := []string{"delete", "send"}
	if len(transport.calls) != 2 || transport.calls[0] != want[0] || transport.calls[1] != want[1] {
		t.Fatalf("expected %v, got %v", want, transport.calls)
	}
	if handle.MessageID == 10 {
		t.Fatal("expected a fresh message id")
	}
}

func TestSmartEditOrSendFallsBackOnNotEditable(t *testing.T) {
	engine, transport := newTestEngine(t)
	transport.editErr = &common.NotEditableError{ChatID: 7, MessageID: 10, Reason: "message can't be edited"}

	prev := MessageHandle{ChatID: 7, MessageID: 10}
	if _, err := engine.SmartEditOrSend(context.Background(), prev, greetingParams()); err != nil {
		t.Fatalf("SmartEditOrSend: %v", err)
	}
	want := []string{"edit", "delete", "send"}
	if len(transport.calls) != 3 {
		t.Fatalf("expected %v, got %v", want, transport.calls)
	}
	for i := range want {
		if transport.calls[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, transport.calls)
		}
	}
}

func TestSmartEditOrSendSurfacesFinalError(t *testing.T) {
	engine, transport := newTestEngine(t)
	transport.editErr = &common.NotEditableError{ChatID: 7, MessageID: 10, Reason: "message can't be edited"}
	transport.sendErr = &common.DispatchError{Op: "send", ChatID: 7, Message: "flood wait"}

	prev := MessageHandle{ChatID: 7, MessageID: 10}
	_, err := engine.SmartEditOrSend(context.Background(), prev, greetingParams())

	var dispatch *common.DispatchError
	if !errors.As(err, &dispatch) {
		t.Fatalf("expected the final DispatchError, got %v", err)
	}
	var notEditable *common.NotEditableError
	if errors.As(err, &notEditable) {
		t.Fatal("discarded edit error must not surface")
	}
	// The fallback send happens exactly once.
	sends := 0
	for _, call := range transport.calls {
		if call == "send" {
			sends++
		}
	}
	if sends != 1 {
		t.Fatalf("expected exactly one fallback send, got %d (%v)", sends, transport.calls)
	}
}

func TestSmartEditOrSendPropagatesTransientEditError(t *testing.T) {
	engine, transport := newTestEngine(t)
	transport.editErr = &common.DispatchError{Op: "edit", ChatID: 7, Message: "timeout"}

	prev := MessageHandle{ChatID: 7, MessageID: 10}
	_, err := engine.SmartEditOrSend(context.Background(), prev, greetingParams())
	var dispatch *common.DispatchError
	if !errors.As(err, &dispatch) {
		t.Fatalf("expected DispatchError, got %v", err)
	}
	if len(transport.calls) != 1 {
		t.Fatalf("a transient edit failure must not trigger the fallback: %v", transport.calls)
	}
}

func TestSmartEditOrSendIgnoresDeleteFailure(t *testing.T) {
	engine, transport := newTestEngine(t)
	transport.deleteErr = &common.DispatchError{Op: "delete", ChatID: 7, Message: "too old"}

	prev := MessageHandle{ChatID: 7, MessageID: 10, HasMedia: true}
	if _, err := engine.SmartEditOrSend(context.Background(), prev, greetingParams()); err != nil {
		t.Fatalf("delete failure must not fail the dispatch: %v", err)
	}
	if transport.calls[len(transport.calls)-1] != "send" {
		t.Fatalf("expected the send to proceed: %v", transport.calls)
	}
}

func TestSendDocumentBypassesTemplates(t *testing.T) {
	transport := &fakeTransport{}
	engine := NewEngine(NewStore(t.TempDir()), transport, testLogger())

	handle, err := engine.SendDocument(context.Background(), Target{ChatID: 7}, "/tmp/report.pdf", "Monthly report", nil)
	if err != nil {
		t.Fatalf("SendDocument: %v", err)
	}
	if !handle.HasMedia {
		t.Fatalf("documents carry media: %+v", handle)
	}
	if len(transport.calls) != 1 || transport.calls[0] != "document" {
		t.Fatalf("unexpected calls: %v", transport.calls)
	}
}

package message

import (
	"context"
	"errors"
	"log/slog"

	"smartmsg/internal/common"
)

// RenderParams describes one render call. Module/Role/Lang/File/BlockKey
// address the template block; Namespace scopes media lookups. OverrideBlock
// skips the store lookup, CustomInline/CustomReply skip the keyboard build.
type RenderParams struct {
	Module    string
	Role      string
	Namespace string
	Lang      string
	File      string
	BlockKey  string

	Context map[string]string

	ExtraControls [][]ControlSpec
	ExtraPosition RowPosition

	OverrideBlock *TemplateBlock
	CustomInline  *InlineLayout
	CustomReply   *ReplyLayout
}

func (p RenderParams) ref() BlockRef {
	return BlockRef{Module: p.Module, Role: p.Role, Lang: p.Lang, File: p.File, Key: p.BlockKey}
}

// Engine orchestrates the template store, context formatter, and keyboard
// builder into rendered messages, and executes dispatch decisions against
// the transport.
type Engine struct {
	store     *Store
	transport Transport
	logger    *slog.Logger
}

// NewEngine creates a dispatch engine. The logger is required plumbing, not
// ambient state; pass slog.Default() if nothing better is available.
func NewEngine(store *Store, transport Transport, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{store: store, transport: transport, logger: logger}
}

// Render resolves the template block, substitutes context into text and
// caption, resolves the media path, and assembles the keyboard. The result
// is built fresh on every call; only the template shell behind it is cached.
func (e *Engine) Render(ctx context.Context, params RenderParams) (*Rendered, error) {
	block := params.OverrideBlock
	if block == nil {
		var err error
		block, err = e.store.Resolve(ctx, params.ref())
		if err != nil {
			return nil, err
		}
	}

	text, err := Format(block.Text, params.Context)
	if err != nil {
		return nil, err
	}
	caption, err := Format(block.Caption, params.Context)
	if err != nil {
		return nil, err
	}

	rendered := &Rendered{Text: text, Caption: caption}
	if block.Media != "" {
		rendered.MediaPath = e.store.MediaPath(params.Module, params.Namespace, params.Role, params.Lang, block.Media)
	}

	switch {
	case params.CustomInline != nil:
		rendered.Inline = params.CustomInline
	case params.CustomReply != nil:
		rendered.Reply = params.CustomReply
	case len(block.Buttons) > 0 || len(params.ExtraControls) > 0:
		position := params.ExtraPosition
		if position == "" {
			position = PositionBottom
		}
		if rowsAreReply(block.Buttons) {
			layout, err := BuildReply(block.Buttons, block.Resize, block.OneTime)
			if err != nil {
				return nil, err
			}
			for _, row := range params.ExtraControls {
				if err := layout.MergeExtra(row, position); err != nil {
					return nil, err
				}
			}
			rendered.Reply = layout
		} else {
			layout, err := BuildInline(block.Buttons)
			if err != nil {
				return nil, err
			}
			for _, row := range params.ExtraControls {
				if err := layout.MergeExtra(row, position); err != nil {
					return nil, err
				}
			}
			rendered.Inline = layout
		}
	}

	return rendered, nil
}

// Send renders the block and delivers it as a new message. It never assumes
// a prior message exists.
func (e *Engine) Send(ctx context.Context, target Target, params RenderParams) (MessageHandle, error) {
	rendered, err := e.Render(ctx, params)
	if err != nil {
		return MessageHandle{}, err
	}
	handle, err := e.transport.Send(ctx, target.ChatID, rendered)
	if err != nil {
		return MessageHandle{}, err
	}
	e.logger.Info("message sent", "chat_id", handle.ChatID, "message_id", handle.MessageID, "block", params.BlockKey)
	return handle, nil
}

// Edit renders the block and replaces the target message in place. The
// transport's NotEditableError passes through untouched so callers (and
// SmartEditOrSend) can react to it.
func (e *Engine) Edit(ctx context.Context, target Target, params RenderParams) (MessageHandle, error) {
	if target.MessageID == 0 {
		return MessageHandle{}, common.NewValidationError("edit requires an existing message id")
	}
	rendered, err := e.Render(ctx, params)
	if err != nil {
		return MessageHandle{}, err
	}
	return e.transport.Edit(ctx, target.ChatID, target.MessageID, rendered)
}

// Reply renders the block and delivers it threaded under replyTo.
func (e *Engine) Reply(ctx context.Context, target Target, replyTo int, params RenderParams) (MessageHandle, error) {
	rendered, err := e.Render(ctx, params)
	if err != nil {
		return MessageHandle{}, err
	}
	return e.transport.Reply(ctx, target.ChatID, replyTo, rendered)
}

// SmartEditOrSend edits the previous message in place when the new content
// is media-compatible with it (both carry media or neither does), and falls
// back to a fresh send otherwise. The fallback deletes the superseded
// message best-effort and is attempted at most once per call — a structural
// incompatibility is never masked by an edit retry loop. The error of a
// discarded edit attempt is logged, not surfaced; the caller sees only the
// final transport error.
func (e *Engine) SmartEditOrSend(ctx context.Context, prev MessageHandle, params RenderParams) (MessageHandle, error) {
	rendered, err := e.Render(ctx, params)
	if err != nil {
		return MessageHandle{}, err
	}

	if prev.MessageID != 0 && prev.HasMedia == rendered.HasMedia() {
		handle, err := e.transport.Edit(ctx, prev.ChatID, prev.MessageID, rendered)
		if err == nil {
			return handle, nil
		}
		var notEditable *common.NotEditableError
		if !errors.As(err, &notEditable) {
			return MessageHandle{}, err
		}
		e.logger.Warn("edit rejected, resending",
			"chat_id", prev.ChatID,
			"message_id", prev.MessageID,
			"reason", notEditable.Reason,
		)
	}

	if prev.MessageID != 0 {
		if err := e.transport.Delete(ctx, prev.ChatID, prev.MessageID); err != nil {
			e.logger.Warn("failed to delete superseded message",
				"chat_id", prev.ChatID,
				"message_id", prev.MessageID,
				"error", err,
			)
		}
	}

	return e.transport.Send(ctx, prev.ChatID, rendered)
}

// SendDocument delivers a raw file, bypassing template resolution entirely.
func (e *Engine) SendDocument(ctx context.Context, target Target, path, caption string, layout *InlineLayout) (MessageHandle, error) {
	handle, err := e.transport.SendDocument(ctx, target.ChatID, path, caption, layout)
	if err != nil {
		return MessageHandle{}, err
	}
	e.logger.Info("document sent", "chat_id", handle.ChatID, "message_id", handle.MessageID, "path", path)
	return handle, nil
}

package message

import "context"

// Transport is the external messaging endpoint. Implementations live in
// infra/ (Telegram). The engine issues each call independently; ordering of
// concurrent dispatches to the same chat is the transport's concern.
type Transport interface {
	// Send delivers a new message to a chat.
	Send(ctx context.Context, chatID int64, msg *Rendered) (MessageHandle, error)

	// Edit replaces the content of an existing message in place. Returns
	// NotEditableError when the endpoint rejects the edit.
	Edit(ctx context.Context, chatID int64, messageID int, msg *Rendered) (MessageHandle, error)

	// Reply delivers a new message threaded under replyTo.
	Reply(ctx context.Context, chatID int64, replyTo int, msg *Rendered) (MessageHandle, error)

	// Delete removes a message. Best effort — superseded messages that
	// cannot be deleted are simply left behind.
	Delete(ctx context.Context, chatID int64, messageID int) error

	// SendDocument delivers a raw file with an optional caption and
	// keyboard, bypassing the template pipeline entirely.
	SendDocument(ctx context.Context, chatID int64, path, caption string, layout *InlineLayout) (MessageHandle, error)
}

package telegram

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"

	"smartmsg/internal/common"
	"smartmsg/internal/domain/message"
)

var _ message.Transport = (*Bot)(nil)

// Bot implements message.Transport on the Telegram Bot API. All outgoing
// calls are paced with a shared token bucket so the bot stays under
// Telegram's global send limit regardless of worker concurrency.
type Bot struct {
	api     *tgbotapi.BotAPI
	limiter *rate.Limiter
	media   *mediaCache
	logger  *slog.Logger
}

// New connects to the Telegram Bot API. messagesPerSecond caps outgoing
// calls bot-wide; Telegram documents roughly 30/s for bots.
func New(token string, messagesPerSecond float64, logger *slog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	if messagesPerSecond <= 0 {
		messagesPerSecond = 30
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Bot{
		api:     api,
		limiter: rate.NewLimiter(rate.Limit(messagesPerSecond), 1),
		media:   newMediaCache(),
		logger:  logger,
	}, nil
}

// Username returns the authorized bot account name.
func (b *Bot) Username() string {
	return b.api.Self.UserName
}

// Send delivers a new message, as text or as a photo with caption depending
// on the rendered content.
func (b *Bot) Send(ctx context.Context, chatID int64, msg *message.Rendered) (message.MessageHandle, error) {
	return b.deliver(ctx, chatID, 0, msg)
}

// Reply delivers a new message threaded under replyTo.
func (b *Bot) Reply(ctx context.Context, chatID int64, replyTo int, msg *message.Rendered) (message.MessageHandle, error) {
	return b.deliver(ctx, chatID, replyTo, msg)
}

func (b *Bot) deliver(ctx context.Context, chatID int64, replyTo int, msg *message.Rendered) (message.MessageHandle, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return message.MessageHandle{}, err
	}

	markup, err := markupFor(msg)
	if err != nil {
		return message.MessageHandle{}, err
	}

	if msg.HasMedia() {
		file, checksum, err := b.media.requestFile(msg.MediaPath)
		if err != nil {
			return message.MessageHandle{}, &common.DispatchError{Op: "send", ChatID: chatID, Message: err.Error()}
		}
		photo := tgbotapi.NewPhoto(chatID, file)
		photo.Caption = msg.Caption
		photo.ReplyToMessageID = replyTo
		photo.ReplyMarkup = markup

		sent, err := b.api.Send(photo)
		if err != nil {
			return message.MessageHandle{}, classify("send", chatID, 0, err)
		}
		b.media.remember(msg.MediaPath, checksum, &sent)
		return message.MessageHandle{ChatID: chatID, MessageID: sent.MessageID, HasMedia: true}, nil
	}

	text := tgbotapi.NewMessage(chatID, msg.Text)
	text.ReplyToMessageID = replyTo
	text.ReplyMarkup = markup

	sent, err := b.api.Send(text)
	if err != nil {
		return message.MessageHandle{}, classify("send", chatID, 0, err)
	}
	return message.MessageHandle{ChatID: chatID, MessageID: sent.MessageID}, nil
}

// Edit replaces an existing message in place: caption for media messages,
// text otherwise. Telegram's "message is not modified" rejection means the
// content already matches, which is success here, not failure.
func (b *Bot) Edit(ctx context.Context, chatID int64, messageID int, msg *message.Rendered) (message.MessageHandle, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return message.MessageHandle{}, err
	}

	inline, err := inlineMarkup(msg.Inline)
	if err != nil {
		return message.MessageHandle{}, err
	}

	var sent tgbotapi.Message
	if msg.HasMedia() {
		edit := tgbotapi.NewEditMessageCaption(chatID, messageID, msg.Caption)
		edit.ReplyMarkup = inline
		sent, err = b.api.Send(edit)
	} else {
		edit := tgbotapi.NewEditMessageText(chatID, messageID, msg.Text)
		edit.ReplyMarkup = inline
		sent, err = b.api.Send(edit)
	}
	if err != nil {
		if isNotModified(err) {
			return message.MessageHandle{ChatID: chatID, MessageID: messageID, HasMedia: msg.HasMedia()}, nil
		}
		return message.MessageHandle{}, classify("edit", chatID, messageID, err)
	}
	return message.MessageHandle{ChatID: chatID, MessageID: sent.MessageID, HasMedia: msg.HasMedia()}, nil
}

// Delete removes a message.
func (b *Bot) Delete(ctx context.Context, chatID int64, messageID int) error {
	if err := b.limiter.Wait(ctx); err != nil {
		return err
	}
	if _, err := b.api.Request(tgbotapi.NewDeleteMessage(chatID, messageID)); err != nil {
		return classify("delete", chatID, messageID, err)
	}
	return nil
}

// SendDocument delivers a raw file with an optional caption and keyboard.
func (b *Bot) SendDocument(ctx context.Context, chatID int64, path, caption string, layout *message.InlineLayout) (message.MessageHandle, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return message.MessageHandle{}, err
	}

	doc := tgbotapi.NewDocument(chatID, tgbotapi.FilePath(path))
	doc.Caption = caption
	if layout != nil {
		inline, err := inlineMarkup(layout)
		if err != nil {
			return message.MessageHandle{}, err
		}
		doc.ReplyMarkup = inline
	}

	sent, err := b.api.Send(doc)
	if err != nil {
		return message.MessageHandle{}, classify("send document", chatID, 0, err)
	}
	return message.MessageHandle{ChatID: chatID, MessageID: sent.MessageID, HasMedia: true}, nil
}

// notEditableReasons are the Telegram rejections that mean "this message
// cannot be edited into that content", as opposed to transient failures.
var notEditableReasons = []string{
	"message can't be edited",
	"message to edit not found",
	"there is no text in the message to edit",
}

func classify(op string, chatID int64, messageID int, err error) error {
	reason := err.Error()
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		reason = apiErr.Message
	}
	if op == "edit" {
		lower := strings.ToLower(reason)
		for _, marker := range notEditableReasons {
			if strings.Contains(lower, marker) {
				return &common.NotEditableError{ChatID: chatID, MessageID: messageID, Reason: reason}
			}
		}
	}
	return &common.DispatchError{Op: op, ChatID: chatID, Message: reason}
}

func isNotModified(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "message is not modified")
}

package telegram

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"smartmsg/internal/common"
	"smartmsg/internal/domain/message"
)

// markupFor picks the keyboard attached to a rendered message. tgbotapi
// takes ReplyMarkup as an untyped field, so this returns any.
func markupFor(msg *message.Rendered) (any, error) {
	if msg.Inline != nil {
		markup, err := inlineMarkup(msg.Inline)
		if err != nil {
			return nil, err
		}
		if markup == nil {
			return nil, nil
		}
		return *markup, nil
	}
	if msg.Reply != nil {
		return replyMarkup(msg.Reply), nil
	}
	return nil, nil
}

// inlineMarkup converts a core inline layout to a Telegram keyboard. The
// layouts were validated at build time, so an unknown variant reaching this
// point is a programming error and still fails loudly.
//
// The tgbotapi release in use predates Bot API 6.0 web_app buttons, so
// webapp controls go out as url buttons; Telegram opens the link in the
// in-app browser either way.
func inlineMarkup(layout *message.InlineLayout) (*tgbotapi.InlineKeyboardMarkup, error) {
	if layout == nil || len(layout.Rows) == 0 {
		return nil, nil
	}

	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(layout.Rows))
	for _, row := range layout.Rows {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, spec := range row {
			switch spec.Type {
			case message.ControlCallback:
				buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(spec.Text, spec.Data))
			case message.ControlURL, message.ControlWebApp:
				buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonURL(spec.Text, spec.Data))
			case message.ControlSwitchInline:
				buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonSwitch(spec.Text, spec.Data))
			default:
				return nil, &common.UnsupportedControlTypeError{Type: string(spec.Type)}
			}
		}
		rows = append(rows, buttons)
	}

	markup := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &markup, nil
}

// replyMarkup converts a core reply layout to a Telegram reply keyboard.
// Reply webapp buttons degrade to plain text buttons on this API version.
func replyMarkup(layout *message.ReplyLayout) tgbotapi.ReplyKeyboardMarkup {
	rows := make([][]tgbotapi.KeyboardButton, 0, len(layout.Rows))
	for _, row := range layout.Rows {
		buttons := make([]tgbotapi.KeyboardButton, 0, len(row))
		for _, spec := range row {
			buttons = append(buttons, tgbotapi.NewKeyboardButton(spec.Text))
		}
		rows = append(rows, buttons)
	}

	markup := tgbotapi.NewReplyKeyboard(rows...)
	markup.ResizeKeyboard = layout.Resize
	markup.OneTimeKeyboard = layout.OneTime
	return markup
}

// Package keyboard builds Telegram reply markups.
package keyboard

import tele "gopkg.in/telebot.v4"

// InlineBtn describes one inline button. Unique becomes the callback key and
// Data its payload.
type InlineBtn struct {
	Text   string
	Unique string
	Data   string
}

// ForceReply returns a markup asking the client to reply to the message.
func ForceReply(placeholder string) *tele.ReplyMarkup {
	return &tele.ReplyMarkup{ForceReply: true, Placeholder: placeholder}
}

// InlineButtons places each button on its own row.
func InlineButtons(buttons ...InlineBtn) *tele.ReplyMarkup {
	rows := make([][]InlineBtn, 0, len(buttons))
	for _, b := range buttons {
		rows = append(rows, []InlineBtn{b})
	}
	return InlineButtonsRows(rows...)
}

// InlineButtonsRows builds an inline keyboard from rows of buttons. Empty
// rows are skipped.
func InlineButtonsRows(rows ...[]InlineBtn) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}
	inline := make([][]tele.InlineButton, 0, len(rows))
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		r := make([]tele.InlineButton, len(row))
		for j, btn := range row {
			r[j] = *markup.Data(btn.Text, btn.Unique, btn.Data).Inline()
		}
		inline = append(inline, r)
	}
	markup.InlineKeyboard = inline
	return markup
}

// RemoveInline returns a markup that clears the inline keyboard of an edited message.
func RemoveInline() *tele.ReplyMarkup {
	return &tele.ReplyMarkup{InlineKeyboard: [][]tele.InlineButton{}}
}

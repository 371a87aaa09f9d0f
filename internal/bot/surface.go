package bot

import (
	"context"
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/m3rciful/encoderbot/core/telegram/keyboard"
	"github.com/m3rciful/encoderbot/internal/audioselect"

	tele "gopkg.in/telebot.v4"
)

// botClient is the part of the Bot API the handlers call directly, when they
// need the sent message back or a file download.
type botClient interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
	Edit(msg tele.Editable, what interface{}, opts ...interface{}) (*tele.Message, error)
	Delete(msg tele.Editable) error
	File(file *tele.File) (io.ReadCloser, error)
}

// chatSurface renders reorder session views as HTML messages in one chat.
type chatSurface struct {
	api       botClient
	chat      *tele.Chat
	namespace string
}

var _ audioselect.Surface = (*chatSurface)(nil)

func newChatSurface(api botClient, chat *tele.Chat, namespace string) *chatSurface {
	return &chatSurface{api: api, chat: chat, namespace: namespace}
}

// Show sends a new message for a zero ref and edits ref otherwise.
func (s *chatSurface) Show(_ context.Context, ref audioselect.MessageRef, text string, controls *audioselect.Controls) (audioselect.MessageRef, error) {
	opts := &tele.SendOptions{ParseMode: tele.ModeHTML}
	if controls != nil {
		opts.ReplyMarkup = s.markup(controls)
	} else if ref != 0 {
		opts.ReplyMarkup = keyboard.RemoveInline()
	}

	if ref == 0 {
		msg, err := s.api.Send(s.chat, text, opts)
		if err != nil {
			return 0, err
		}
		return audioselect.MessageRef(msg.ID), nil
	}

	if _, err := s.api.Edit(s.stored(ref), text, opts); err != nil && !isNotModified(err) {
		return ref, err
	}
	return ref, nil
}

// Delete removes the message behind ref.
func (s *chatSurface) Delete(_ context.Context, ref audioselect.MessageRef) error {
	return s.api.Delete(s.stored(ref))
}

func (s *chatSurface) stored(ref audioselect.MessageRef) tele.StoredMessage {
	return tele.StoredMessage{MessageID: strconv.Itoa(int(ref)), ChatID: s.chat.ID}
}

func (s *chatSurface) markup(controls *audioselect.Controls) *tele.ReplyMarkup {
	rows := make([][]keyboard.InlineBtn, 0, len(controls.Rows))
	for _, row := range controls.Rows {
		btns := make([]keyboard.InlineBtn, 0, len(row))
		for _, b := range row {
			btns = append(btns, keyboard.InlineBtn{Text: b.Text, Unique: s.namespace, Data: b.Payload()})
		}
		rows = append(rows, btns)
	}
	return keyboard.InlineButtonsRows(rows...)
}

// isNotModified matches Telegram's answer to an edit that changes nothing.
func isNotModified(err error) bool {
	var apiErr *tele.Error
	if errors.As(err, &apiErr) {
		return strings.Contains(strings.ToLower(apiErr.Description), "message is not modified")
	}
	return strings.Contains(strings.ToLower(err.Error()), "message is not modified")
}

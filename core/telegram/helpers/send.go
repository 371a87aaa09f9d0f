package helpers

import (
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/m3rciful/encoderbot/core/logger"
	"github.com/m3rciful/encoderbot/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

var globalDispatcher atomic.Pointer[sender.Dispatcher]

// SetDispatcher wires the asynchronous sender used by the send helpers.
// A nil dispatcher makes the helpers send inline.
func SetDispatcher(d *sender.Dispatcher) {
	globalDispatcher.Store(d)
}

func sendAsync(c tele.Context, action, endpoint string, run func() error) error {
	disp := globalDispatcher.Load()
	if disp == nil {
		return run()
	}

	ctx := BuildContext(c)
	err := disp.Enqueue(ctx, action, endpoint, run)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sender.ErrQueueFull), errors.Is(err, sender.ErrQueueClosed):
		logger.Warn(ctx, "tg.sender", "queue.fallback",
			slog.String("action", action),
			slog.String("endpoint", endpoint),
			slog.String("err", err.Error()),
		)
		return run()
	default:
		return err
	}
}

func htmlOptions(markup []*tele.ReplyMarkup) *tele.SendOptions {
	opts := &tele.SendOptions{ParseMode: tele.ModeHTML}
	if len(markup) > 0 {
		opts.ReplyMarkup = markup[0]
	}
	return opts
}

// SendHTML sends an HTML message to the current chat through the dispatcher.
func SendHTML(c tele.Context, text string, markup ...*tele.ReplyMarkup) error {
	opts := htmlOptions(markup)
	return sendAsync(c, "send.html", "sendMessage", func() error {
		return c.Send(text, opts)
	})
}

// ReplyHTML replies to the current message with HTML text through the dispatcher.
func ReplyHTML(c tele.Context, text string, markup ...*tele.ReplyMarkup) error {
	opts := htmlOptions(markup)
	return sendAsync(c, "reply.html", "sendMessage", func() error {
		return c.Reply(text, opts)
	})
}

// EditOrSendHTML edits the message the callback belongs to, or sends a new one.
func EditOrSendHTML(c tele.Context, text string, markup ...*tele.ReplyMarkup) error {
	return c.EditOrSend(text, htmlOptions(markup))
}

package router

import (
	"time"

	tg "github.com/m3rciful/encoderbot/core/telegram"
	"github.com/m3rciful/encoderbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// FSM is the part of a conversation state manager the message routes need.
type FSM interface {
	InProgress(userID int64) bool
	ManagerHandler(c tele.Context) error
}

// MessageOptions supplies handlers for updates no command or FSM step claims.
type MessageOptions struct {
	UnknownText tele.HandlerFunc
	// Photo handles photos outside of an FSM step.
	Photo tele.HandlerFunc
}

// MessageRoutes builds the text and photo routes. An active FSM step takes
// precedence; text then falls back to command lookup (aliases) and the
// registry text fallback.
func MessageRoutes(fsm FSM, reg *tg.Registry, opts MessageOptions) []tg.Route {
	inStep := func(c tele.Context) bool {
		u := c.Sender()
		return fsm != nil && u != nil && fsm.InProgress(u.ID)
	}

	text := func(c tele.Context) error {
		start := startOf(c)
		if inStep(c) {
			return handleWithSummary(c, "fsm", start, func() error { return fsm.ManagerHandler(c) })
		}
		if reg != nil {
			if key, cmd, ok := reg.LookupCommand(c.Text()); ok && cmd.Handler != nil && !cmd.AdminOnly {
				return handleWithSummary(c, normalizeHandlerName(key), start, func() error { return cmd.Handler(c) })
			}
			if fb := reg.TextFallback(); fb != nil {
				return handleWithSummary(c, "fallback", start, func() error { return fb(c) })
			}
		}
		if opts.UnknownText != nil {
			return handleWithSummary(c, "unknown_text", start, func() error { return opts.UnknownText(c) })
		}
		logHandlerSummary(c, "unknown_text", start, "skip", nil)
		return nil
	}

	photo := func(c tele.Context) error {
		start := startOf(c)
		if inStep(c) {
			return handleWithSummary(c, "fsm_photo", start, func() error { return fsm.ManagerHandler(c) })
		}
		if opts.Photo != nil {
			return handleWithSummary(c, "photo", start, func() error { return opts.Photo(c) })
		}
		logHandlerSummary(c, "photo", start, "skip", nil)
		return nil
	}

	wrap := func(h tele.HandlerFunc) tele.HandlerFunc {
		return middleware.RecoverMiddleware(middleware.LoggerMiddleware(h))
	}
	return []tg.Route{
		{Endpoint: tele.OnText, Handler: wrap(text)},
		{Endpoint: tele.OnPhoto, Handler: wrap(photo)},
	}
}

// startOf returns when the logging middleware first saw the update.
func startOf(c tele.Context) time.Time {
	if t, ok := c.Get("update_start").(time.Time); ok {
		return t
	}
	return time.Now()
}

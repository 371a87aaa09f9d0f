package router

import (
	"log/slog"
	"time"

	"github.com/m3rciful/encoderbot/core/logger"
	tg "github.com/m3rciful/encoderbot/core/telegram"
	"github.com/m3rciful/encoderbot/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/encoderbot/core/telegram/helpers"
	"github.com/m3rciful/encoderbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// CallbackRoute dispatches every callback query through the registry. Handlers
// may answer the query themselves with callbacks.Answer; otherwise an empty
// answer is sent once they return so the client stops its spinner.
func CallbackRoute(reg *tg.Registry) tg.Route {
	handler := func(c tele.Context) error {
		start := time.Now()
		cb := c.Callback()
		if cb == nil {
			return nil
		}

		key, _ := callbacks.Parse(cb)
		name := "callback." + normalizeHandlerName(key)
		extras := []slog.Attr{slog.String("cb_key", key)}

		h, ok := reg.GetCallback(key)
		if !ok {
			h = reg.CallbackNotFound()
			extras = append(extras, slog.String("reason", "not_found"))
		}

		err := handleWithSummary(c, name, start, func() error {
			if h == nil {
				return nil
			}
			return h(c)
		}, extras...)

		if !callbacks.Answered(c) {
			if aerr := callbacks.Answer(c, nil); aerr != nil {
				logger.Debug(tghelpers.BuildContext(c), "tg", "callback.answer",
					slog.String("cb_key", key),
					slog.String("err", aerr.Error()),
				)
			}
		}
		return err
	}
	return tg.Route{
		Endpoint: tele.OnCallback,
		Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(handler)),
	}
}

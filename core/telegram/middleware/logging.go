package middleware

import (
	"log/slog"
	"sync"
	"time"

	coreconfig "github.com/m3rciful/encoderbot/core/config"
	"github.com/m3rciful/encoderbot/core/logger"
	"github.com/m3rciful/encoderbot/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/encoderbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// UpdateOther labels updates that are neither messages, callbacks nor inline queries.
const UpdateOther = "other"

// UpdateKind classifies upd for rate limiting and metrics.
func UpdateKind(upd tele.Update) string {
	switch {
	case upd.Callback != nil:
		return coreconfig.UpdateCallback
	case upd.Message != nil:
		return coreconfig.UpdateMessage
	case upd.Query != nil:
		return coreconfig.UpdateInlineQuery
	default:
		return UpdateOther
	}
}

// seenUpdates remembers recently logged update ids; the logger wraps both the
// global chain and individual routes.
type seenUpdates struct {
	mu   sync.Mutex
	ids  map[int]time.Time
	keep time.Duration
}

var recent = &seenUpdates{ids: make(map[int]time.Time), keep: 10 * time.Second}

func (s *seenUpdates) firstTime(id int, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, ts := range s.ids {
		if now.Sub(ts) > s.keep {
			delete(s.ids, k)
		}
	}
	if _, ok := s.ids[id]; ok {
		return false
	}
	s.ids[id] = now
	return true
}

// LoggerMiddleware stores the request context (rid and update ids) on the
// update and logs one sampled receipt line per update.
func LoggerMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		if _, ok := tghelpers.ContextFrom(c); ok {
			return next(c)
		}

		upd := c.Update()
		var chatID, userID int64
		if chat := c.Chat(); chat != nil {
			chatID = chat.ID
		}
		user := c.Sender()
		if user != nil {
			userID = user.ID
		}
		rid := logger.BuildRID(upd.ID, chatID, userID)
		c.Set("rid", rid)
		c.Set("update_start", time.Now())

		ctx := logger.WithRID(logger.Background(), rid)
		ctx = logger.WithUpdateMeta(ctx, upd.ID, userID, chatID)
		ctx = logger.WithLogger(ctx, logger.Component("tg"))
		tghelpers.StoreContext(c, ctx)

		if logger.ShouldSampleDebug() && recent.firstTime(upd.ID, time.Now()) {
			attrs := []slog.Attr{
				slog.String("status", "ok"),
				slog.String("kind", UpdateKind(upd)),
			}
			if user != nil && user.Username != "" {
				attrs = append(attrs, slog.String("username", logger.SanitizeLimit(user.Username, 64)))
			}
			switch {
			case upd.Callback != nil:
				key, payload := callbacks.Parse(upd.Callback)
				attrs = append(attrs, slog.String("cb_key", logger.SanitizeLimit(key, 128)))
				if payload != "" {
					attrs = append(attrs, slog.String("payload", logger.SanitizeLimit(payload, 256)))
				}
			case upd.Message != nil:
				if t := c.Text(); t != "" {
					attrs = append(attrs, slog.String("payload", logger.SanitizeLimit(t, 256)))
				}
				if upd.Message.Photo != nil {
					attrs = append(attrs, slog.Bool("photo", true))
				}
			}
			logger.Debug(ctx, "tg", "update.received", attrs...)
		}

		return next(c)
	}
}

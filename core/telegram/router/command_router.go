package router

import (
	"context"
	"log/slog"

	"github.com/m3rciful/encoderbot/core/logger"
	tg "github.com/m3rciful/encoderbot/core/telegram"
	"github.com/m3rciful/encoderbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// CommandRouteOptions configures how commands are wrapped.
type CommandRouteOptions struct {
	AdminID       int64
	OnAdminReject tele.HandlerFunc
}

// CommandRoutes wraps every registered command with recover, logging, the
// per-handler summary and, for admin-only commands, the admin check.
func CommandRoutes(reg *tg.Registry, opts CommandRouteOptions) []tg.Route {
	if reg == nil {
		return nil
	}
	admin := middleware.AdminOnlyMiddleware(middleware.AdminOptions{
		AdminID:  opts.AdminID,
		OnReject: opts.OnAdminReject,
	})

	routes := make([]tg.Route, 0, len(reg.Commands()))
	for name, def := range reg.Commands() {
		h := summarized(normalizeHandlerName(name), def.Handler)
		if def.AdminOnly {
			h = admin(h)
		}
		h = middleware.LoggerMiddleware(h)
		h = middleware.RecoverMiddleware(h)
		routes = append(routes, tg.Route{Endpoint: name, Handler: h})
	}

	logger.Info(context.Background(), "tg.wire", "complete",
		slog.Int("commands", len(reg.Commands())),
		slog.Int("callbacks", len(reg.ListCallbacks())),
	)
	return routes
}

func summarized(name string, h tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		return handleWithSummary(c, name, startOf(c), func() error { return h(c) })
	}
}

package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/m3rciful/encoderbot/core/logger"
	"github.com/m3rciful/encoderbot/core/telegram/callbacks"

	tele "gopkg.in/telebot.v4"
)

const wireComponent = "tg.wire"

// StaleButtonNotice answers presses of buttons whose callback is gone.
const StaleButtonNotice = "This button is no longer active"

// ErrCallbackExists is returned when a callback key is registered twice.
var ErrCallbackExists = errors.New("telegram: callback already registered")

// Command represents a bot command with its handler, description and metadata.
type Command struct {
	Handler     tele.HandlerFunc
	Description string
	AdminOnly   bool
	Hidden      bool
	Aliases     []string
}

// Registry holds bot commands and callbacks. Commands are registered during
// wiring; callbacks may come and go while the bot runs.
type Registry struct {
	commands map[string]Command

	mu               sync.RWMutex
	callbacks        map[string]tele.HandlerFunc
	callbackNotFound tele.HandlerFunc
	textFallback     tele.HandlerFunc
}

// NewRegistry creates an empty Registry with default fallbacks.
func NewRegistry() *Registry {
	return &Registry{
		commands:  make(map[string]Command),
		callbacks: make(map[string]tele.HandlerFunc),
		callbackNotFound: func(c tele.Context) error {
			return callbacks.Answer(c, &tele.CallbackResponse{Text: StaleButtonNotice})
		},
	}
}

// RegisterCommand adds a new command. Names must start with a slash.
func (r *Registry) RegisterCommand(name string, cmd Command) {
	ctx := context.Background()
	switch {
	case name == "" || cmd.Handler == nil || cmd.Description == "":
		logger.Warn(ctx, wireComponent, "register.command.skip",
			slog.String("name", name),
			slog.String("reason", "invalid"),
		)
		return
	case name[0] != '/':
		logger.Warn(ctx, wireComponent, "register.command.skip",
			slog.String("name", name),
			slog.String("reason", "no_slash_prefix"),
		)
		return
	}
	if _, exists := r.commands[name]; exists {
		logger.Warn(ctx, wireComponent, "register.command.duplicate", slog.String("name", name))
		return
	}
	r.commands[name] = cmd
}

// ListCommands returns the menu entries sorted by name. visibleOnly drops
// hidden and admin-only commands.
func (r *Registry) ListCommands(visibleOnly bool) []tele.Command {
	list := make([]tele.Command, 0, len(r.commands))
	for name, meta := range r.commands {
		if visibleOnly && (meta.Hidden || meta.AdminOnly) {
			continue
		}
		list = append(list, tele.Command{Text: strings.TrimPrefix(name, "/"), Description: meta.Description})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Text < list[j].Text })
	return list
}

// LookupCommand finds a command by name or alias and returns its canonical key.
func (r *Registry) LookupCommand(name string) (string, Command, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", Command{}, false
	}
	if !strings.HasPrefix(name, "/") {
		name = "/" + name
	}
	// "/cmd@botname args" -> "/cmd"
	if i := strings.IndexAny(name, " @"); i > 0 {
		name = name[:i]
	}
	if cmd, ok := r.commands[name]; ok {
		return name, cmd, true
	}
	for key, cmd := range r.commands {
		for _, alias := range cmd.Aliases {
			if alias == name || "/"+alias == name {
				return key, cmd, true
			}
		}
	}
	return "", Command{}, false
}

// Commands returns all registered commands.
func (r *Registry) Commands() map[string]Command {
	return r.commands
}

// RegisterCallback maps key to handler. It fails when key is taken.
func (r *Registry) RegisterCallback(key string, handler tele.HandlerFunc) error {
	if key == "" || handler == nil {
		logger.Warn(context.Background(), wireComponent, "register.callback.skip",
			slog.String("key", key),
			slog.Bool("handler_nil", handler == nil),
		)
		return errors.New("telegram: invalid callback registration")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.callbacks[key]; exists {
		return fmt.Errorf("%w: %s", ErrCallbackExists, key)
	}
	r.callbacks[key] = handler
	return nil
}

// UnregisterCallback removes the handler for key. Removing an unknown key is
// an error so double releases surface.
func (r *Registry) UnregisterCallback(key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.callbacks[key]; !ok {
		return fmt.Errorf("telegram: callback not registered: %s", key)
	}
	delete(r.callbacks, key)
	return nil
}

// GetCallback returns the handler registered for key.
func (r *Registry) GetCallback(key string) (tele.HandlerFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.callbacks[key]
	return h, ok
}

// ListCallbacks returns sorted keys.
func (r *Registry) ListCallbacks() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.callbacks))
	for k := range r.callbacks {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// CountCallbacks returns how many registered keys start with prefix.
func (r *Registry) CountCallbacks(prefix string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for k := range r.callbacks {
		if strings.HasPrefix(k, prefix) {
			n++
		}
	}
	return n
}

// SetCallbackNotFound replaces the fallback handler for unknown callbacks.
func (r *Registry) SetCallbackNotFound(h tele.HandlerFunc) {
	if h == nil {
		return
	}
	r.mu.Lock()
	r.callbackNotFound = h
	r.mu.Unlock()
}

// CallbackNotFound returns the current fallback callback handler.
func (r *Registry) CallbackNotFound() tele.HandlerFunc {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.callbackNotFound
}

// SetTextFallback sets the handler for text that matches no command.
func (r *Registry) SetTextFallback(h tele.HandlerFunc) {
	r.mu.Lock()
	r.textFallback = h
	r.mu.Unlock()
}

// TextFallback returns the current text fallback handler.
func (r *Registry) TextFallback() tele.HandlerFunc {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.textFallback
}

// InitBotCommands publishes the visible commands to the Telegram command menu.
func InitBotCommands(bot *tele.Bot, reg *Registry) {
	list := reg.ListCommands(true)
	if err := bot.SetCommands(list); err != nil {
		logger.Error(context.Background(), wireComponent, "register.commands.set_failed",
			slog.String("err", err.Error()),
		)
		return
	}
	logger.Debug(context.Background(), wireComponent, "register.commands.set",
		slog.Int("commands", len(list)),
	)
}

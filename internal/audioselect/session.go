package audioselect

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/m3rciful/encoderbot/core/logger"
	"github.com/m3rciful/encoderbot/internal/metrics"
)

const component = "service.audioselect"

// NamespacePrefix starts every session namespace.
const NamespacePrefix = "audiosel_"

// DefaultTimeout bounds how long a session waits for the user.
const DefaultTimeout = 180 * time.Second

// ErrSessionUsed is returned when Run is called twice on the same session.
var ErrSessionUsed = errors.New("audioselect: session already used")

// Options tune a session. Zero values select defaults.
type Options struct {
	Timeout time.Duration
	// RefreshInterval re-renders the preview countdown periodically; 0 disables it.
	RefreshInterval time.Duration
	// Namespace overrides the generated callback namespace.
	Namespace string
	Metrics   *metrics.Metrics
	Now       func() time.Time
}

type envelope struct {
	cmd     Command
	handled chan struct{}
}

// Session reorders the audio streams of one interaction. It is not safe for
// concurrent use: Run is called once and all commands are applied on its goroutine.
type Session struct {
	actorID   int64
	namespace string
	surface   Surface
	listeners Listeners
	opts      Options

	items     map[int]Item
	order     *Order
	createdAt time.Time
	completed bool
	cancelled bool
	used      bool

	controlRef  MessageRef
	previewRef  MessageRef
	previewText string

	cmds chan envelope
	done chan struct{}
}

// NewSession prepares a session for actorID rendering through surface.
func NewSession(actorID int64, surface Surface, listeners Listeners, opts Options) *Session {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	ns := opts.Namespace
	if ns == "" {
		ns = NewNamespace()
	}
	return &Session{
		actorID:   actorID,
		namespace: ns,
		surface:   surface,
		listeners: listeners,
		opts:      opts,
		items:     make(map[int]Item),
		cmds:      make(chan envelope),
		done:      make(chan struct{}),
	}
}

// NewNamespace returns a fresh session namespace: the prefix and ten hex digits.
func NewNamespace() string {
	return NamespacePrefix + strings.ReplaceAll(uuid.NewString(), "-", "")[:10]
}

// Namespace returns the callback namespace the session listens on.
func (s *Session) Namespace() string {
	return s.namespace
}

// Completed reports whether the session was resolved with done.
func (s *Session) Completed() bool {
	return s.completed
}

// Cancelled reports whether the session was cancelled or timed out.
func (s *Session) Cancelled() bool {
	return s.cancelled
}

// Run captures the audio candidates and waits until the actor confirms, cancels
// or the timeout elapses. Fewer than two audio candidates yield OutcomeNotApplicable
// without rendering anything.
func (s *Session) Run(ctx context.Context, candidates []Candidate) (res Result, err error) {
	if s.used {
		return Result{}, ErrSessionUsed
	}
	s.used = true

	s.capture(candidates)
	if s.order.Len() < 2 {
		logger.Info(ctx, component, "session.skip",
			slog.String("status", "skip"),
			slog.Int("audio_streams", s.order.Len()),
		)
		s.opts.Metrics.SessionSkipped(string(OutcomeNotApplicable))
		return Result{Outcome: OutcomeNotApplicable}, nil
	}

	s.createdAt = s.opts.Now()
	if err := s.listeners.Listen(s.namespace, s.actorID, s.deliver); err != nil {
		return Result{}, fmt.Errorf("audioselect: register listener: %w", err)
	}
	s.opts.Metrics.SessionOpened()
	logger.Info(ctx, component, "session.open",
		slog.String("namespace", s.namespace),
		slog.Int64("actor_id", s.actorID),
		slog.Int("audio_streams", s.order.Len()),
		slog.Duration("timeout", s.opts.Timeout),
	)

	defer close(s.done)
	defer func() {
		outcome := string(res.Outcome)
		if uerr := s.listeners.Unlisten(s.namespace); uerr != nil {
			err = errors.Join(err, fmt.Errorf("audioselect: unregister listener: %w", uerr))
		}
		if err != nil {
			outcome = "error"
		}
		took := s.opts.Now().Sub(s.createdAt)
		s.opts.Metrics.SessionClosed(outcome, took)
		logger.Info(ctx, component, "session.close",
			slog.String("status", logger.Status(err)),
			slog.String("namespace", s.namespace),
			slog.String("outcome", outcome),
			slog.Duration("duration", logger.RoundMS(took)),
		)
	}()

	if err := s.render(ctx); err != nil {
		return Result{}, err
	}
	if err := s.wait(ctx); err != nil {
		return Result{}, err
	}
	return s.resolve(ctx), nil
}

func (s *Session) capture(candidates []Candidate) {
	ids := make([]int, 0, len(candidates))
	for _, c := range candidates {
		if c.Category != CategoryAudio {
			continue
		}
		if _, seen := s.items[c.ID]; seen {
			continue
		}
		s.items[c.ID] = Item{ID: c.ID, Title: c.Title, Language: c.Language}
		ids = append(ids, c.ID)
	}
	s.order = NewOrder(ids)
}

// deliver hands cmd to the Run goroutine and returns once it has been applied,
// so the interaction is acknowledged before the listener returns.
func (s *Session) deliver(cmd Command) {
	env := envelope{cmd: cmd, handled: make(chan struct{})}
	select {
	case s.cmds <- env:
	case <-s.done:
		return
	}
	select {
	case <-env.handled:
	case <-s.done:
	}
}

func (s *Session) wait(ctx context.Context) error {
	timer := time.NewTimer(s.opts.Timeout - s.opts.Now().Sub(s.createdAt))
	defer timer.Stop()

	var refresh <-chan time.Time
	if s.opts.RefreshInterval > 0 {
		ticker := time.NewTicker(s.opts.RefreshInterval)
		defer ticker.Stop()
		refresh = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("audioselect: wait: %w", ctx.Err())
		case <-timer.C:
			s.cancelled = true
			logger.Warn(ctx, component, "session.timeout",
				slog.String("status", "cancelled"),
				slog.String("namespace", s.namespace),
			)
			return nil
		case <-refresh:
			if err := s.renderPreview(ctx); err != nil {
				logger.Warn(ctx, component, "preview.refresh",
					slog.String("status", "fail"),
					slog.String("err", err.Error()),
				)
			}
		case env := <-s.cmds:
			terminal := s.apply(ctx, env.cmd)
			close(env.handled)
			if terminal {
				return nil
			}
		}
	}
}

// apply executes one command and reports whether it ended the session.
func (s *Session) apply(ctx context.Context, cmd Command) bool {
	s.opts.Metrics.Command(string(cmd.Verb))
	logger.Debug(ctx, component, "command.received",
		slog.String("namespace", s.namespace),
		slog.String("verb", string(cmd.Verb)),
		slog.String("arg", logger.SanitizeLimit(cmd.Arg, 32)),
	)

	switch cmd.Verb {
	case VerbCancel:
		s.cancelled = true
		s.ack(ctx, cmd, "")
		return true
	case VerbDone:
		s.completed = true
		s.ack(ctx, cmd, "")
		return true
	case VerbNone:
		s.ack(ctx, cmd, labelNotice)
		return false
	case VerbUp, VerbSwap, VerbDown:
		s.ack(ctx, cmd, "")
	default:
		s.ack(ctx, cmd, "")
		logger.Warn(ctx, component, "command.unknown_verb",
			slog.String("status", "skip"),
			slog.String("verb", logger.SanitizeLimit(string(cmd.Verb), 32)),
		)
		return false
	}

	id, err := strconv.Atoi(cmd.Arg)
	if err != nil {
		logger.Error(ctx, component, "command.invalid_id",
			slog.String("status", "skip"),
			slog.String("verb", string(cmd.Verb)),
			slog.String("arg", logger.SanitizeLimit(cmd.Arg, 32)),
		)
		return false
	}

	var moved bool
	switch cmd.Verb {
	case VerbSwap:
		moved, err = s.order.Swap(id)
	case VerbUp:
		moved, err = s.order.Up(id)
	case VerbDown:
		moved, err = s.order.Down(id)
	}
	if err != nil {
		logger.Error(ctx, component, "command.unknown_item",
			slog.String("status", "skip"),
			slog.String("verb", string(cmd.Verb)),
			slog.Int("item_id", id),
			slog.Any("order", s.order.IDs()),
		)
		return false
	}
	if !moved {
		logger.Debug(ctx, component, "command.noop",
			slog.String("verb", string(cmd.Verb)),
			slog.Int("item_id", id),
		)
		return false
	}

	if err := s.render(ctx); err != nil {
		logger.Warn(ctx, component, "render.failed",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
	}
	return false
}

func (s *Session) ack(ctx context.Context, cmd Command, text string) {
	if cmd.Ack == nil {
		return
	}
	if err := cmd.Ack(text); err != nil {
		logger.Warn(ctx, component, "command.ack",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
	}
}

func (s *Session) render(ctx context.Context) error {
	order := s.order.IDs()
	ref, err := s.surface.Show(ctx, s.controlRef, controlText(len(order)), buildControls(order, s.items))
	if err != nil {
		return fmt.Errorf("audioselect: render controls: %w", err)
	}
	s.controlRef = ref
	return s.renderPreview(ctx)
}

func (s *Session) renderPreview(ctx context.Context) error {
	text := previewText(s.order.IDs(), s.items, s.remaining())
	if s.previewRef != 0 && text == s.previewText {
		return nil
	}
	ref, err := s.surface.Show(ctx, s.previewRef, text, nil)
	if err != nil {
		return fmt.Errorf("audioselect: render preview: %w", err)
	}
	s.previewRef = ref
	s.previewText = text
	return nil
}

func (s *Session) remaining() time.Duration {
	left := s.opts.Timeout - s.opts.Now().Sub(s.createdAt)
	if left < 0 {
		return 0
	}
	return left
}

// resolve removes or replaces the views once the wait is over.
func (s *Session) resolve(ctx context.Context) Result {
	if s.cancelled {
		if s.controlRef != 0 {
			if _, err := s.surface.Show(ctx, s.controlRef, CancelledNotice, nil); err != nil {
				logger.Warn(ctx, component, "resolve.notice",
					slog.String("status", "fail"),
					slog.String("err", err.Error()),
				)
			}
		}
		return Result{Outcome: OutcomeCancelled}
	}

	for _, ref := range []MessageRef{s.controlRef, s.previewRef} {
		if ref == 0 {
			continue
		}
		if err := s.surface.Delete(ctx, ref); err != nil {
			logger.Warn(ctx, component, "resolve.delete",
				slog.String("status", "fail"),
				slog.String("err", err.Error()),
			)
		}
	}

	items := make(map[int]Item, len(s.items))
	for id, it := range s.items {
		items[id] = it
	}
	order := s.order.IDs()
	logger.Info(ctx, component, "session.done",
		slog.String("namespace", s.namespace),
		slog.Any("order", order),
	)
	return Result{Outcome: OutcomeDone, Order: order, Items: items}
}

package audioselect

import (
	"context"
	"errors"
	"strconv"
	"strings"
)

// ErrListenerExists is returned by Listeners when a namespace is already taken.
var ErrListenerExists = errors.New("audioselect: listener already registered")

// CategoryAudio marks candidates that take part in a reorder session.
const CategoryAudio = "audio"

// Candidate is a stream offered to the session. Only audio candidates are kept.
type Candidate struct {
	ID       int
	Category string
	Title    string
	Language string
}

// Item is the captured, immutable view of a selectable stream.
type Item struct {
	ID       int
	Title    string
	Language string
}

// Outcome tells how a session was resolved.
type Outcome string

const (
	// OutcomeDone means the user confirmed the order.
	OutcomeDone Outcome = "done"
	// OutcomeCancelled means the user cancelled or the session timed out.
	OutcomeCancelled Outcome = "cancelled"
	// OutcomeNotApplicable means there were fewer than two audio streams.
	OutcomeNotApplicable Outcome = "not_applicable"
)

// Result is returned by Session.Run. Order and Items are only set for OutcomeDone.
type Result struct {
	Outcome Outcome
	Order   []int
	Items   map[int]Item
}

// Verb is the action carried by a command.
type Verb string

const (
	VerbNone   Verb = "none"
	VerbUp     Verb = "up"
	VerbSwap   Verb = "swap"
	VerbDown   Verb = "down"
	VerbDone   Verb = "done"
	VerbCancel Verb = "cancel"
)

// Command is an inbound interaction addressed to a session.
// Arg holds the raw item id and may be empty or malformed.
type Command struct {
	ActorID   int64
	Namespace string
	Verb      Verb
	Arg       string
	// Ack answers the interaction; text may be empty.
	Ack func(text string) error
}

// Button is a single control of the control surface.
type Button struct {
	Text    string
	Verb    Verb
	ItemID  int
	HasItem bool
}

// Payload encodes the button action as "verb" or "verb|id".
func (b Button) Payload() string {
	if !b.HasItem {
		return string(b.Verb)
	}
	return string(b.Verb) + "|" + strconv.Itoa(b.ItemID)
}

// ParsePayload splits a payload produced by Button.Payload.
func ParsePayload(payload string) (Verb, string) {
	verb, arg, _ := strings.Cut(strings.TrimSpace(payload), "|")
	return Verb(strings.TrimSpace(verb)), strings.TrimSpace(arg)
}

// Controls is the rendered control surface, row by row.
type Controls struct {
	Rows [][]Button
}

// MessageRef identifies a rendered message. The zero value means "not rendered yet".
type MessageRef int

// Surface renders and removes the session views.
type Surface interface {
	// Show creates a message when ref is zero, otherwise edits it in place.
	// A nil controls value renders the message without buttons.
	Show(ctx context.Context, ref MessageRef, text string, controls *Controls) (MessageRef, error)
	Delete(ctx context.Context, ref MessageRef) error
}

// Listeners registers the transient command listener of a session.
// Implementations deliver only commands of actorID within namespace.
type Listeners interface {
	Listen(namespace string, actorID int64, deliver func(Command)) error
	Unlisten(namespace string) error
}

package middleware

import tele "gopkg.in/telebot.v4"

const (
	messagesKey = "messages"
	keyboardKey = "kb"
)

// UpdateCounter records handled updates by kind.
type UpdateCounter interface {
	Update(kind string)
}

// countingContext counts successful outgoing messages and keyboard usage
// for the handler summary line.
type countingContext struct{ tele.Context }

func (m countingContext) count(opts []interface{}) {
	n, _ := m.Get(messagesKey).(int)
	m.Set(messagesKey, n+1)
	if hasKeyboard(opts) {
		m.Set(keyboardKey, true)
	}
}

func hasKeyboard(opts []interface{}) bool {
	for _, o := range opts {
		switch v := o.(type) {
		case *tele.SendOptions:
			if v != nil && v.ReplyMarkup != nil {
				return true
			}
		case *tele.ReplyMarkup:
			if v != nil {
				return true
			}
		}
	}
	return false
}

// Send proxies tele.Context.Send.
func (m countingContext) Send(what interface{}, opts ...interface{}) error {
	err := m.Context.Send(what, opts...)
	if err == nil {
		m.count(opts)
	}
	return err
}

// Reply proxies tele.Context.Reply.
func (m countingContext) Reply(what interface{}, opts ...interface{}) error {
	err := m.Context.Reply(what, opts...)
	if err == nil {
		m.count(opts)
	}
	return err
}

// Edit proxies tele.Context.Edit.
func (m countingContext) Edit(what interface{}, opts ...interface{}) error {
	err := m.Context.Edit(what, opts...)
	if err == nil {
		m.count(opts)
	}
	return err
}

// EditOrSend proxies tele.Context.EditOrSend.
func (m countingContext) EditOrSend(what interface{}, opts ...interface{}) error {
	err := m.Context.EditOrSend(what, opts...)
	if err == nil {
		m.count(opts)
	}
	return err
}

// MessageMetricsMiddleware counts the update by kind and instruments the
// context so the router can report how many messages a handler sent.
// counter may be nil.
func MessageMetricsMiddleware(counter UpdateCounter) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			if counter != nil {
				counter.Update(UpdateKind(c.Update()))
			}
			c.Set(messagesKey, 0)
			c.Set(keyboardKey, false)
			return next(countingContext{Context: c})
		}
	}
}

// GetCounters returns the message count and keyboard flag of the update.
func GetCounters(c tele.Context) (int, bool) {
	msgs, _ := c.Get(messagesKey).(int)
	kb, _ := c.Get(keyboardKey).(bool)
	return msgs, kb
}

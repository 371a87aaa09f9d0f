// Package callbacks decodes inline button data and tracks whether a callback
// query was already answered.
package callbacks

import (
	"strings"

	tele "gopkg.in/telebot.v4"
)

const answeredKey = "cb_answered"

// ParseData splits Telebot's "\f<unique>|<payload>" encoding. The payload may be empty.
func ParseData(data string) (unique, payload string) {
	data = strings.TrimPrefix(data, "\f")
	data = strings.TrimPrefix(data, `\f`)
	unique, payload, _ = strings.Cut(data, "|")
	return strings.TrimSpace(unique), payload
}

// Parse returns the unique key and payload of cb. Telebot fills Unique only
// when it routed the callback to a handler of its own.
func Parse(cb *tele.Callback) (unique, payload string) {
	if cb == nil {
		return "", ""
	}
	if cb.Unique != "" {
		return cb.Unique, cb.Data
	}
	return ParseData(cb.Data)
}

// Key returns the unique key of the current callback.
func Key(c tele.Context) string {
	k, _ := Parse(c.Callback())
	return k
}

// Payload returns the payload of the current callback.
func Payload(c tele.Context) string {
	_, p := Parse(c.Callback())
	return p
}

// Answer responds to the callback query and marks it answered so the router
// does not send an empty answer afterwards. A nil resp sends an empty answer.
func Answer(c tele.Context, resp *tele.CallbackResponse) error {
	c.Set(answeredKey, true)
	if resp == nil {
		return c.Respond()
	}
	return c.Respond(resp)
}

// Answered reports whether Answer was called for the current update.
func Answered(c tele.Context) bool {
	v, _ := c.Get(answeredKey).(bool)
	return v
}

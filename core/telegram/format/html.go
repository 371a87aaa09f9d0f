package format

import "html"

// Bold wraps already escaped text into an HTML <b> element.
func Bold(text string) string {
	return "<b>" + text + "</b>"
}

// Escape escapes text for Telegram HTML parse mode.
func Escape(text string) string {
	return html.EscapeString(text)
}

// OrDefault returns fallback when s is empty.
func OrDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

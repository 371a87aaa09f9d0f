package audioselect

import (
	"strconv"
	"strings"
	"time"

	"github.com/m3rciful/encoderbot/core/telegram/format"
)

// CancelledNotice replaces the controls of a cancelled or timed out session.
const CancelledNotice = "Task has been cancelled!"

const (
	labelNotice = "This is just a label"

	defaultLanguage = "und"
	defaultTitle    = "No Title"
)

// Label renders the item as "language | title" with defaults for missing tags.
func (it Item) Label() string {
	return format.OrDefault(it.Language, defaultLanguage) + " | " + format.OrDefault(it.Title, defaultTitle)
}

func controlText(count int) string {
	return format.Bold("CHOOSE AUDIO STREAM TO SWAP") + "\n\n" +
		format.Bold("Audio Streams: "+strconv.Itoa(count))
}

func previewText(order []int, items map[int]Item, remaining time.Duration) string {
	var b strings.Builder
	b.WriteString(format.Bold("STREAMS ORDER"))
	for _, id := range order {
		b.WriteString("\n")
		b.WriteString(format.Escape(items[id].Label()))
	}
	b.WriteString("\n\nTime Out: ")
	b.WriteString(format.Duration(remaining))
	return b.String()
}

// buildControls lays out one row per item (label, up, swap, down) and a footer row.
func buildControls(order []int, items map[int]Item) *Controls {
	rows := make([][]Button, 0, len(order)+1)
	for _, id := range order {
		rows = append(rows, []Button{
			{Text: items[id].Label(), Verb: VerbNone, ItemID: id, HasItem: true},
			{Text: "▲", Verb: VerbUp, ItemID: id, HasItem: true},
			{Text: "⇅", Verb: VerbSwap, ItemID: id, HasItem: true},
			{Text: "▼", Verb: VerbDown, ItemID: id, HasItem: true},
		})
	}
	rows = append(rows, []Button{
		{Text: "Done", Verb: VerbDone},
		{Text: "Cancel", Verb: VerbCancel},
	})
	return &Controls{Rows: rows}
}

package bot

import (
	"strconv"

	"github.com/m3rciful/encoderbot/core/telegram/format"
	tghelpers "github.com/m3rciful/encoderbot/core/telegram/helpers"
	"github.com/m3rciful/encoderbot/internal/audioselect"

	tele "gopkg.in/telebot.v4"
)

func (a *App) handleSessions(c tele.Context) error {
	n := a.registry.CountCallbacks(audioselect.NamespacePrefix)
	return tghelpers.ReplyHTML(c, format.Bold("Open reorder sessions: ")+strconv.Itoa(n))
}

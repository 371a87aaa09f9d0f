package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/m3rciful/encoderbot/core/logger"
	"github.com/m3rciful/encoderbot/core/telegram/format"
	tghelpers "github.com/m3rciful/encoderbot/core/telegram/helpers"
	"github.com/m3rciful/encoderbot/internal/audioselect"
	"github.com/m3rciful/encoderbot/internal/probe"

	tele "gopkg.in/telebot.v4"
)

const (
	audioselUsage   = "Reply to an ffprobe JSON file (<code>ffprobe -show_streams -of json</code>) with /audiosel."
	notEnoughAudio  = "Not enough audio streams"
	unreadableProbe = "Could not read the stream list from that file."
	sessionFailed   = "Something went wrong, please try again."

	maxProbeFileSize = 4 << 20
)

func (a *App) handleStart(c tele.Context) error {
	return tghelpers.ReplyHTML(c, format.Bold("Encoder bot")+"\n\n"+
		audioselUsage+"\n"+
		"Use /thumb to manage your custom thumbnail.")
}

func (a *App) handleAudioSel(c tele.Context) error {
	msg := c.Message()
	if msg == nil || msg.ReplyTo == nil || msg.ReplyTo.Document == nil || c.Sender() == nil {
		return tghelpers.ReplyHTML(c, audioselUsage)
	}
	doc := msg.ReplyTo.Document
	if doc.FileSize > maxProbeFileSize {
		return tghelpers.ReplyHTML(c, unreadableProbe)
	}

	ctx, cancel := context.WithCancel(tghelpers.BuildContext(c))
	defer cancel()
	defer context.AfterFunc(a.baseContext(), cancel)()

	api := a.client(c)
	streams, err := fetchStreams(api, doc)
	switch {
	case errors.Is(err, probe.ErrNoStreams):
		return tghelpers.ReplyHTML(c, notEnoughAudio)
	case err != nil:
		logger.Warn(ctx, "service.audioselect", "probe.read",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
		return tghelpers.ReplyHTML(c, unreadableProbe)
	}

	ns := audioselect.NewNamespace()
	sess := audioselect.NewSession(c.Sender().ID, newChatSurface(api, c.Chat(), ns), a.listeners, audioselect.Options{
		Timeout:         a.cfg.AudioSelect.Timeout(),
		RefreshInterval: a.cfg.AudioSelect.Refresh(),
		Namespace:       ns,
		Metrics:         a.metrics,
	})
	res, err := sess.Run(ctx, audioselect.CandidatesFromStreams(streams))
	if err != nil {
		if ctx.Err() == nil {
			_ = tghelpers.ReplyHTML(c, sessionFailed)
		}
		return fmt.Errorf("audiosel: %w", err)
	}

	switch res.Outcome {
	case audioselect.OutcomeNotApplicable:
		return tghelpers.ReplyHTML(c, notEnoughAudio)
	case audioselect.OutcomeCancelled:
		return tghelpers.ReplyHTML(c, audioselect.CancelledNotice)
	default:
		return tghelpers.ReplyHTML(c, orderSummary(res))
	}
}

func fetchStreams(api botClient, doc *tele.Document) ([]probe.Stream, error) {
	rc, err := api.File(&doc.File)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", doc.FileID, err)
	}
	defer rc.Close()
	return probe.Parse(rc)
}

// orderSummary lists the chosen order and the matching ffmpeg -map arguments.
func orderSummary(res audioselect.Result) string {
	var b strings.Builder
	b.WriteString(format.Bold("AUDIO STREAMS ORDER"))
	for i, id := range res.Order {
		fmt.Fprintf(&b, "\n%d. %s (#%d)", i+1, format.Escape(res.Items[id].Label()), id)
	}
	b.WriteString("\n\n<code>")
	b.WriteString(mapArgs(res.Order))
	b.WriteString("</code>")
	return b.String()
}

// mapArgs keeps video and subtitles and maps audio streams in order.
func mapArgs(order []int) string {
	args := []string{"-map 0:v?"}
	for _, id := range order {
		args = append(args, "-map 0:"+strconv.Itoa(id))
	}
	args = append(args, "-map 0:s?")
	return strings.Join(args, " ")
}

package bot

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/m3rciful/encoderbot/core/logger"
	"github.com/m3rciful/encoderbot/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/encoderbot/core/telegram/helpers"
	"github.com/m3rciful/encoderbot/core/telegram/keyboard"
	"github.com/m3rciful/encoderbot/core/telegram/state"

	tele "gopkg.in/telebot.v4"
)

const (
	setThumbKey = "set_thumb"
	delThumbKey = "del_thumb"

	stateThumbAwaitPhoto state.State = "thumb_await_photo"
	thumbPromptKey                   = "thumb_prompt_id"

	thumbPrompt    = "Send me a photo to set as your custom thumbnail."
	thumbSaved     = "Custom thumbnail saved!"
	thumbDeleted   = "Thumbnail deleted!"
	thumbMissing   = "You have no custom thumbnail yet."
	thumbCurrent   = "Your current thumbnail"
	thumbNeedPhoto = "Please send a photo, or /thumb to start over."
)

func thumbMarkup() *tele.ReplyMarkup {
	return keyboard.InlineButtons(
		keyboard.InlineBtn{Text: "Set/Replace Thumbnail", Unique: setThumbKey},
		keyboard.InlineBtn{Text: "Delete Thumbnail", Unique: delThumbKey},
	)
}

// handleThumb shows the current thumbnail with the set and delete buttons.
// Telegram may route a photo captioned /thumb here instead of to the photo route.
func (a *App) handleThumb(c tele.Context) error {
	if msg := c.Message(); msg != nil && msg.Photo != nil {
		return a.saveThumb(c, msg.Photo)
	}
	user := c.Sender()
	if user == nil {
		return nil
	}
	ctx := tghelpers.BuildContext(c)
	a.fsm.ClearState(user.ID)

	fileID, found, err := a.thumbs.Get(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("thumb: %w", err)
	}
	if !found {
		return tghelpers.ReplyHTML(c, thumbMissing, thumbMarkup())
	}
	photo := &tele.Photo{File: tele.File{FileID: fileID}, Caption: thumbCurrent}
	return c.Send(photo, thumbMarkup())
}

// handleSetThumbCommand saves a photo captioned /setthumb, otherwise prompts for one.
func (a *App) handleSetThumbCommand(c tele.Context) error {
	if msg := c.Message(); msg != nil && msg.Photo != nil {
		return a.saveThumb(c, msg.Photo)
	}
	return a.promptThumb(c)
}

func (a *App) handleSetThumb(c tele.Context) error {
	if err := callbacks.Answer(c, nil); err != nil {
		logger.Debug(tghelpers.BuildContext(c), "tg", "callback.answer", slog.String("err", err.Error()))
	}
	return a.promptThumb(c)
}

func (a *App) promptThumb(c tele.Context) error {
	user := c.Sender()
	if user == nil {
		return nil
	}
	prompt, err := a.client(c).Send(c.Chat(), thumbPrompt, keyboard.ForceReply("Photo"))
	if err != nil {
		return fmt.Errorf("thumb prompt: %w", err)
	}
	a.fsm.SetState(user.ID, stateThumbAwaitPhoto)
	a.fsm.SetTemp(user.ID, thumbPromptKey, prompt.ID)
	return nil
}

func (a *App) handleDelThumb(c tele.Context) error {
	user := c.Sender()
	if user == nil {
		return callbacks.Answer(c, nil)
	}
	ctx := tghelpers.BuildContext(c)
	if err := a.thumbs.Set(ctx, user.ID, nil); err != nil {
		if aerr := callbacks.Answer(c, &tele.CallbackResponse{Text: "Could not delete the thumbnail", ShowAlert: true}); aerr != nil {
			logger.Debug(ctx, "tg", "callback.answer", slog.String("err", aerr.Error()))
		}
		return fmt.Errorf("thumb delete: %w", err)
	}
	if err := callbacks.Answer(c, &tele.CallbackResponse{Text: thumbDeleted, ShowAlert: true}); err != nil {
		logger.Debug(ctx, "tg", "callback.answer", slog.String("err", err.Error()))
	}
	return c.Delete()
}

// handlePhoto saves photos captioned /thumb or /setthumb, or sent as a reply
// to the thumbnail prompt. Other photos are ignored.
func (a *App) handlePhoto(c tele.Context) error {
	msg := c.Message()
	if msg == nil || msg.Photo == nil || c.Sender() == nil {
		return nil
	}
	if !isThumbCaption(msg.Caption) && !a.repliesToPrompt(c.Sender().ID, msg) {
		return nil
	}
	return a.saveThumb(c, msg.Photo)
}

// handleAwaitPhoto runs for every message of a user in stateThumbAwaitPhoto.
func (a *App) handleAwaitPhoto(c tele.Context) error {
	msg := c.Message()
	if msg == nil || msg.Photo == nil {
		return tghelpers.ReplyHTML(c, thumbNeedPhoto)
	}
	return a.saveThumb(c, msg.Photo)
}

func (a *App) saveThumb(c tele.Context, photo *tele.Photo) error {
	user := c.Sender()
	if user == nil {
		return nil
	}
	ctx := tghelpers.BuildContext(c)
	userID := user.ID
	fileID := photo.FileID
	if err := a.thumbs.Set(ctx, userID, &fileID); err != nil {
		return fmt.Errorf("thumb save: %w", err)
	}
	a.fsm.Clear(userID)
	return tghelpers.ReplyHTML(c, thumbSaved)
}

func (a *App) repliesToPrompt(userID int64, msg *tele.Message) bool {
	if msg.ReplyTo == nil {
		return false
	}
	if id, ok := a.fsm.GetTemp(userID, thumbPromptKey); ok {
		if promptID, _ := id.(int); promptID == msg.ReplyTo.ID {
			return true
		}
	}
	return msg.ReplyTo.Text == thumbPrompt
}

func isThumbCaption(caption string) bool {
	cmd, _, _ := strings.Cut(strings.TrimSpace(caption), " ")
	cmd, _, _ = strings.Cut(cmd, "@")
	switch strings.ToLower(cmd) {
	case "/thumb", "/setthumb":
		return true
	}
	return false
}

package bot

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/m3rciful/encoderbot/core/logger"
	tg "github.com/m3rciful/encoderbot/core/telegram"
	"github.com/m3rciful/encoderbot/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/encoderbot/core/telegram/helpers"
	"github.com/m3rciful/encoderbot/internal/audioselect"

	tele "gopkg.in/telebot.v4"
)

// registryListeners registers session listeners as scoped callbacks in the
// bot registry, keyed by the session namespace.
type registryListeners struct {
	reg *tg.Registry
}

var _ audioselect.Listeners = registryListeners{}

// Listen routes callbacks of namespace pressed by actorID to deliver.
// Presses by anyone else are answered with an empty response and dropped.
func (l registryListeners) Listen(namespace string, actorID int64, deliver func(audioselect.Command)) error {
	err := l.reg.RegisterCallback(namespace, func(c tele.Context) error {
		ctx := tghelpers.BuildContext(c)
		if u := c.Sender(); u == nil || u.ID != actorID {
			logger.Debug(ctx, "service.audioselect", "command.foreign_actor",
				slog.String("namespace", namespace),
			)
			return nil
		}
		verb, arg := audioselect.ParsePayload(callbacks.Payload(c))
		deliver(audioselect.Command{
			ActorID:   actorID,
			Namespace: namespace,
			Verb:      verb,
			Arg:       arg,
			Ack:       ackFunc(c),
		})
		return nil
	})
	if errors.Is(err, tg.ErrCallbackExists) {
		return fmt.Errorf("%w: %s", audioselect.ErrListenerExists, namespace)
	}
	return err
}

// Unlisten drops the callback registered for namespace.
func (l registryListeners) Unlisten(namespace string) error {
	return l.reg.UnregisterCallback(namespace)
}

func ackFunc(c tele.Context) func(string) error {
	return func(text string) error {
		if text == "" {
			return callbacks.Answer(c, nil)
		}
		return callbacks.Answer(c, &tele.CallbackResponse{Text: text})
	}
}

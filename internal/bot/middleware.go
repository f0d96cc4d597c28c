package bot

import (
	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"rewardhub/internal/config"
)

const (
	msgAdminsOnly    = "❌ Permission denied: administrators only"
	msgInternalError = "❌ Internal error, please try again later"
)

// input is the command text, or the button data for a callback.
func input(c tele.Context) string {
	if cb := c.Callback(); cb != nil {
		return cb.Data
	}
	return c.Text()
}

// answer replies to a command, or shows an alert for a button press so
// the client stops its spinner.
func answer(c tele.Context, msg string) error {
	if c.Callback() != nil {
		return c.Respond(&tele.CallbackResponse{Text: msg, ShowAlert: true})
	}
	return c.Reply(msg)
}

// AdminMiddleware passes only configured admin accounts. Updates without
// a sender, such as channel posts, are dropped.
func AdminMiddleware(cfg *config.Config) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			sender := c.Sender()
			if sender == nil {
				return nil
			}
			if cfg.IsTelegramAdmin(sender.ID) {
				return next(c)
			}
			log.Warn().
				Int64("telegram_id", sender.ID).
				Str("input", input(c)).
				Msg("Rejected review action from non-admin")
			return answer(c, msgAdminsOnly)
		}
	}
}

// LoggingMiddleware logs every update at debug level.
func LoggingMiddleware() tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			ev := log.Debug().Str("input", input(c)).Bool("callback", c.Callback() != nil)
			if sender := c.Sender(); sender != nil {
				ev = ev.Int64("telegram_id", sender.ID).Str("username", sender.Username)
			}
			if chat := c.Chat(); chat != nil {
				ev = ev.Int64("chat_id", chat.ID)
			}
			ev.Msg("Telegram update")
			return next(c)
		}
	}
}

// RecoveryMiddleware turns a handler panic into an error message.
func RecoveryMiddleware() tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					log.Error().Interface("panic", r).Str("input", input(c)).Msg("Recovered from panic in bot handler")
					err = answer(c, msgInternalError)
				}
			}()
			return next(c)
		}
	}
}

package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"rewardhub/internal/model"
	"rewardhub/internal/service"
)

// Callback data prefixes
const (
	CallbackApprove = "wd_approve:" // wd_approve:<request id>
	CallbackReject  = "wd_reject:"  // wd_reject:<request id>
)

const pendingLimit = 10

// actorFor maps a Telegram admin to a service actor.
func actorFor(sender *tele.User) model.Actor {
	return model.Actor{ID: fmt.Sprintf("telegram:%d", sender.ID), IsAdmin: true}
}

// handlePending lists the oldest pending requests, one message each with
// decision buttons.
func (b *Bot) handlePending(c tele.Context) error {
	ctx, cancel := b.context()
	defer cancel()

	reqs, err := b.reviewer.ListAll(ctx, actorFor(c.Sender()), model.WithdrawalPending, pendingLimit)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list pending withdrawals")
		return c.Send(describeError(err))
	}
	if len(reqs) == 0 {
		return c.Send("✅ No pending withdrawal requests")
	}

	for _, req := range reqs {
		if err := c.Send(FormatRequest(req), BuildDecisionPanel(req.ID)); err != nil {
			return err
		}
	}
	return nil
}

// handleDecision handles /approve <id> and /reject <id>.
func (b *Bot) handleDecision(status model.WithdrawalStatus) tele.HandlerFunc {
	return func(c tele.Context) error {
		args := c.Args()
		if len(args) != 1 {
			return c.Reply(fmt.Sprintf("❌ Usage: /%s <request id>", verb(status)))
		}
		msg, _ := b.decide(c.Sender(), args[0], status)
		return c.Reply(msg)
	}
}

// handleCallback handles the inline decision buttons.
func (b *Bot) handleCallback(c tele.Context) error {
	cb := c.Callback()
	if cb == nil {
		return nil
	}

	// Telebot v3 may add a \f prefix to callback data
	data := strings.TrimPrefix(cb.Data, "\f")

	var (
		id     string
		status model.WithdrawalStatus
	)
	switch {
	case strings.HasPrefix(data, CallbackApprove):
		id, status = strings.TrimPrefix(data, CallbackApprove), model.WithdrawalApproved
	case strings.HasPrefix(data, CallbackReject):
		id, status = strings.TrimPrefix(data, CallbackReject), model.WithdrawalRejected
	default:
		return c.Respond()
	}

	msg, ok := b.decide(c.Sender(), id, status)
	if !ok {
		return c.Respond(&tele.CallbackResponse{Text: msg, ShowAlert: true})
	}
	_ = c.Respond(&tele.CallbackResponse{Text: msg})
	return c.Edit(msg)
}

// decide applies a decision and returns the message for the admin.
func (b *Bot) decide(sender *tele.User, id string, status model.WithdrawalStatus) (string, bool) {
	ctx, cancel := b.context()
	defer cancel()

	actor := actorFor(sender)
	req, err := b.reviewer.SetStatus(ctx, actor, id, status)
	if err != nil {
		log.Warn().
			Err(err).
			Str("admin", actor.ID).
			Str("request_id", id).
			Str("status", string(status)).
			Msg("Withdrawal decision failed")
		return describeError(err), false
	}

	log.Info().
		Str("admin", actor.ID).
		Str("request_id", req.ID).
		Str("status", string(req.Status)).
		Str("operation", "withdrawal_decision").
		Msg("Admin operation executed")

	return FormatDecision(req), true
}

func verb(status model.WithdrawalStatus) string {
	if status == model.WithdrawalApproved {
		return "approve"
	}
	return "reject"
}

// describeError turns a service error into a short admin-facing message.
func describeError(err error) string {
	switch {
	case errors.Is(err, service.ErrInvalidTransition):
		return "⚠️ This request has already been decided"
	case errors.Is(err, service.ErrNotFound):
		return "❌ Request not found"
	case errors.Is(err, service.ErrValidation):
		return "❌ " + err.Error()
	case errors.Is(err, service.ErrForbidden), errors.Is(err, service.ErrUnauthenticated):
		return "❌ Permission denied"
	}
	return "❌ Something went wrong, please try again"
}

// BuildDecisionPanel creates the approve / reject buttons for a request.
func BuildDecisionPanel(requestID string) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}
	approve := markup.Data("✅ Approve", CallbackApprove+requestID)
	reject := markup.Data("❌ Reject", CallbackReject+requestID)
	markup.Inline(markup.Row(approve, reject))
	return markup
}

// FormatRequest renders a withdrawal request for review.
func FormatRequest(req *model.WithdrawalRequest) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "💸 Withdrawal request\n")
	sb.WriteString("━━━━━━━━━━━━━━━\n")
	fmt.Fprintf(&sb, "🆔 %s\n", req.ID)
	fmt.Fprintf(&sb, "👤 %s\n", req.Username)
	fmt.Fprintf(&sb, "🎁 %s (%s)\n", req.RewardName, req.Category)
	fmt.Fprintf(&sb, "💰 %d coins\n", req.CoinAmount)

	meta := req.Metadata
	for _, f := range []struct{ label, value string }{
		{"Player username", meta.PlayerUsername},
		{"Player ID", meta.PlayerID},
		{"Email", meta.Email},
		{"Phone", meta.PhoneNumber},
	} {
		if f.value != "" {
			fmt.Fprintf(&sb, "• %s: %s\n", f.label, f.value)
		}
	}
	fmt.Fprintf(&sb, "🕒 %s", req.CreatedAt.UTC().Format("2006-01-02 15:04 MST"))
	return sb.String()
}

// FormatDecision renders the outcome of a decision.
func FormatDecision(req *model.WithdrawalRequest) string {
	icon := "✅"
	if req.Status == model.WithdrawalRejected {
		icon = "❌"
	}
	return fmt.Sprintf("%s Request %s %s\n👤 %s · 🎁 %s · 💰 %d coins",
		icon, req.ID, req.Status, req.Username, req.RewardName, req.CoinAmount)
}

// messageSender is the part of tele.Bot the notifier needs.
type messageSender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// Notifier pushes withdrawal events to every configured admin chat.
type Notifier struct {
	sender   messageSender
	adminIDs []int64
}

var _ service.Notifier = (*Notifier)(nil)

// WithdrawalRequested sends a new request with decision buttons.
func (n *Notifier) WithdrawalRequested(ctx context.Context, req *model.WithdrawalRequest) error {
	return n.broadcast(ctx, FormatRequest(req), BuildDecisionPanel(req.ID))
}

// WithdrawalDecided sends the outcome of a decision.
func (n *Notifier) WithdrawalDecided(ctx context.Context, req *model.WithdrawalRequest) error {
	return n.broadcast(ctx, FormatDecision(req))
}

// broadcast sends to every admin at once and stops waiting when ctx is
// done. Sends still in flight finish in the background.
func (n *Notifier) broadcast(ctx context.Context, msg string, opts ...interface{}) error {
	results := make(chan error, len(n.adminIDs))
	for _, id := range n.adminIDs {
		id := id
		go func() {
			if _, err := n.sender.Send(&tele.User{ID: id}, msg, opts...); err != nil {
				results <- fmt.Errorf("notify admin %d: %w", id, err)
				return
			}
			results <- nil
		}()
	}

	var errs []error
	for range n.adminIDs {
		select {
		case err := <-results:
			if err != nil {
				errs = append(errs, err)
			}
		case <-ctx.Done():
			return errors.Join(append(errs, ctx.Err())...)
		}
	}
	return errors.Join(errs...)
}

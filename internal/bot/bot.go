// Package bot provides the Telegram admin bot used to review withdrawal
// requests.
package bot

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"rewardhub/internal/config"
	"rewardhub/internal/model"
)

const pollTimeout = 10 * time.Second

// Reviewer lists and decides withdrawal requests.
type Reviewer interface {
	ListAll(ctx context.Context, actor model.Actor, status model.WithdrawalStatus, limit int) ([]*model.WithdrawalRequest, error)
	SetStatus(ctx context.Context, actor model.Actor, requestID string, status model.WithdrawalStatus) (*model.WithdrawalRequest, error)
}

// Bot wraps the telebot instance with application dependencies.
type Bot struct {
	bot      *tele.Bot
	cfg      *config.Config
	reviewer Reviewer
	timeout  time.Duration
}

// Dependencies holds all the dependencies needed by the bot.
type Dependencies struct {
	Config *config.Config
	// Offline skips the getMe call, for tests.
	Offline bool
}

// New creates a new Bot instance. Review commands are registered once a
// Reviewer is attached with HandleReviews.
func New(deps *Dependencies) (*Bot, error) {
	if deps.Config.Telegram.Token == "" {
		return nil, fmt.Errorf("bot token is required")
	}

	pref := tele.Settings{
		Token:   deps.Config.Telegram.Token,
		Poller:  &tele.LongPoller{Timeout: pollTimeout},
		Client:  &http.Client{Timeout: pollTimeout + 10*time.Second},
		Offline: deps.Offline,
	}

	teleBot, err := tele.NewBot(pref)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	b := &Bot{
		bot:     teleBot,
		cfg:     deps.Config,
		timeout: 10 * time.Second,
	}
	b.registerMiddleware()
	return b, nil
}

// HandleReviews attaches the withdrawal reviewer and registers the
// admin commands.
func (b *Bot) HandleReviews(r Reviewer) {
	b.reviewer = r
	b.registerHandlers()
}

func (b *Bot) registerMiddleware() {
	b.bot.Use(RecoveryMiddleware())
	b.bot.Use(LoggingMiddleware())
}

func (b *Bot) registerHandlers() {
	b.bot.Handle("/start", b.handleStart)

	adminGroup := b.bot.Group()
	adminGroup.Use(AdminMiddleware(b.cfg))
	adminGroup.Handle("/pending", b.handlePending)
	adminGroup.Handle("/approve", b.handleDecision(model.WithdrawalApproved))
	adminGroup.Handle("/reject", b.handleDecision(model.WithdrawalRejected))
	adminGroup.Handle(tele.OnCallback, b.handleCallback)
}

// Notifier returns the admin notifier backed by this bot.
func (b *Bot) Notifier() *Notifier {
	return &Notifier{sender: b.bot, adminIDs: b.cfg.Telegram.AdminIDs}
}

// Start starts the bot polling. It blocks until Stop is called.
func (b *Bot) Start() {
	log.Info().Int("admins", len(b.cfg.Telegram.AdminIDs)).Msg("Starting admin bot...")
	b.bot.Start()
}

// Stop stops the bot gracefully.
func (b *Bot) Stop() {
	log.Info().Msg("Stopping admin bot...")
	b.bot.Stop()
}

func (b *Bot) context() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), b.timeout)
}

func (b *Bot) handleStart(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	if !b.cfg.IsTelegramAdmin(sender.ID) {
		return c.Send(fmt.Sprintf("👋 This bot is for reward administrators.\nYour Telegram ID is %d.", sender.ID))
	}
	return c.Send(helpText)
}

const helpText = "🛠 Withdrawal review\n" +
	"━━━━━━━━━━━━━━━\n" +
	"/pending - list pending requests\n" +
	"/approve <id> - approve a request\n" +
	"/reject <id> - reject a request"

package bot

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	tele "gopkg.in/telebot.v3"
	"pgregory.net/rapid"

	"rewardhub/internal/config"
)

// fakeContext records what handlers send back.
type fakeContext struct {
	tele.Context
	sender    *tele.User
	text      string
	args      []string
	callback  *tele.Callback
	replies   []string
	sent      []string
	markups   []*tele.ReplyMarkup
	responses []*tele.CallbackResponse
	edits     []string
}

func (c *fakeContext) Sender() *tele.User { return c.sender }
func (c *fakeContext) Chat() *tele.Chat { return nil }
func (c *fakeContext) Text() string { return c.text }
func (c *fakeContext) Args() []string { return c.args }
func (c *fakeContext) Callback() *tele.Callback { return c.callback }

func (c *fakeContext) Reply(what interface{}, _ ...interface{}) error {
	c.replies = append(c.replies, what.(string))
	return nil
}

func (c *fakeContext) Send(what interface{}, opts ...interface{}) error {
	c.sent = append(c.sent, what.(string))
	for _, o := range opts {
		if m, ok := o.(*tele.ReplyMarkup); ok {
			c.markups = append(c.markups, m)
		}
	}
	return nil
}

func (c *fakeContext) Respond(resp ...*tele.CallbackResponse) error {
	c.responses = append(c.responses, resp...)
	return nil
}

func (c *fakeContext) Edit(what interface{}, _ ...interface{}) error {
	c.edits = append(c.edits, what.(string))
	return nil
}

func drawAdmins(t *rapid.T) []int64 {
	n := rapid.IntRange(1, 10).Draw(t, "numAdmins")
	ids := make([]int64, n)
	for i := range ids {
		ids[i] = rapid.Int64Range(1, 1000000000).Draw(t, "adminID")
	}
	return ids
}

// A Telegram user is an admin if and only if their ID is configured.
func TestTelegramAdminCheckProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		adminIDs := drawAdmins(t)
		cfg := &config.Config{Telegram: config.TelegramConfig{AdminIDs: adminIDs}}

		userID := rapid.Int64Range(1, 1000000000).Draw(t, "userID")
		expected := false
		for _, id := range adminIDs {
			if id == userID {
				expected = true
				break
			}
		}

		if got := cfg.IsTelegramAdmin(userID); got != expected {
			t.Fatalf("userID=%d adminIDs=%v expected=%v got=%v", userID, adminIDs, expected, got)
		}

		known := adminIDs[rapid.IntRange(0, len(adminIDs)-1).Draw(t, "adminIndex")]
		if !cfg.IsTelegramAdmin(known) {
			t.Fatalf("known admin %d not recognized", known)
		}
	})
}

// The admin middleware runs the handler only for configured admins and
// replies with a permission error otherwise.
func TestAdminMiddlewareProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		adminIDs := drawAdmins(t)
		cfg := &config.Config{Telegram: config.TelegramConfig{AdminIDs: adminIDs}}

		var senderID int64
		if rapid.Bool().Draw(t, "isAdmin") {
			senderID = adminIDs[rapid.IntRange(0, len(adminIDs)-1).Draw(t, "adminIndex")]
		} else {
			senderID = rapid.Int64Range(1, 1000000000).Draw(t, "senderID")
		}

		called := false
		h := AdminMiddleware(cfg)(func(tele.Context) error {
			called = true
			return nil
		})

		c := &fakeContext{sender: &tele.User{ID: senderID}, text: "/pending"}
		if err := h(c); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if called != cfg.IsTelegramAdmin(senderID) {
			t.Fatalf("sender %d: handler called=%v", senderID, called)
		}
		if !called && len(c.replies) != 1 {
			t.Fatalf("non-admin got %d replies", len(c.replies))
		}
	})
}

func TestAdminMiddlewareIgnoresMissingSender(t *testing.T) {
	cfg := &config.Config{Telegram: config.TelegramConfig{AdminIDs: []int64{1}}}
	h := AdminMiddleware(cfg)(func(tele.Context) error {
		t.Fatal("handler must not run")
		return nil
	})
	assert.NoError(t, h(&fakeContext{}))
}

func TestAdminMiddlewareAlertsOnCallback(t *testing.T) {
	cfg := &config.Config{Telegram: config.TelegramConfig{AdminIDs: []int64{1}}}
	h := AdminMiddleware(cfg)(func(tele.Context) error {
		t.Fatal("handler must not run")
		return nil
	})

	c := &fakeContext{sender: &tele.User{ID: 2}, callback: &tele.Callback{Data: CallbackApprove + "x"}}
	assert.NoError(t, h(c))
	assert.Empty(t, c.replies)
	if assert.Len(t, c.responses, 1) {
		assert.Equal(t, msgAdminsOnly, c.responses[0].Text)
		assert.True(t, c.responses[0].ShowAlert)
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	h := RecoveryMiddleware()(func(tele.Context) error {
		panic("boom")
	})

	c := &fakeContext{sender: &tele.User{ID: 1}}
	assert.NoError(t, h(c))
	assert.Equal(t, []string{msgInternalError}, c.replies)

	cb := &fakeContext{sender: &tele.User{ID: 1}, callback: &tele.Callback{Data: CallbackReject + "x"}}
	assert.NoError(t, h(cb))
	assert.Len(t, cb.responses, 1)

	sentinel := errors.New("sentinel")
	h = LoggingMiddleware()(func(tele.Context) error { return sentinel })
	assert.ErrorIs(t, h(c), sentinel)
}

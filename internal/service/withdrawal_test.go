package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"rewardhub/internal/model"
)

func TestNotifyOutlivesCallerWithDeadline(t *testing.T) {
	s := &WithdrawalService{}
	parent, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	s.notify(parent, &model.WithdrawalRequest{ID: "req-1"}, func(ctx context.Context, _ *model.WithdrawalRequest) error {
		called = true
		assert.NoError(t, ctx.Err())
		deadline, ok := ctx.Deadline()
		assert.True(t, ok)
		assert.WithinDuration(t, time.Now().Add(notifyTimeout), deadline, time.Second)
		return errors.New("chat unreachable")
	})
	assert.True(t, called)
}

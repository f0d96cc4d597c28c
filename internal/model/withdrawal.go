package model

import "time"

// WithdrawalStatus is the lifecycle state of a withdrawal request.
type WithdrawalStatus string

const (
	WithdrawalPending  WithdrawalStatus = "pending"
	WithdrawalApproved WithdrawalStatus = "approved"
	WithdrawalRejected WithdrawalStatus = "rejected"
)

// Valid reports whether s is a known status.
func (s WithdrawalStatus) Valid() bool {
	switch s {
	case WithdrawalPending, WithdrawalApproved, WithdrawalRejected:
		return true
	}
	return false
}

// Terminal reports whether no further transition is allowed from s.
func (s WithdrawalStatus) Terminal() bool {
	return s == WithdrawalApproved || s == WithdrawalRejected
}

// CanTransition reports whether a request may move from s to next.
// Only pending requests can be decided, and only to a terminal status.
func (s WithdrawalStatus) CanTransition(next WithdrawalStatus) bool {
	return s == WithdrawalPending && next.Terminal()
}

// WithdrawalRequest is a user's ask to convert coins into a reward.
// Username and RewardName are snapshots taken at creation.
type WithdrawalRequest struct {
	ID         string             `db:"id" json:"id"`
	UserID     string             `db:"user_id" json:"userId"`
	Username   string             `db:"username" json:"username"`
	RewardID   string             `db:"reward_id" json:"rewardId"`
	RewardName string             `db:"reward_name" json:"rewardName"`
	Category   RewardCategory     `db:"category" json:"category"`
	CoinAmount int64              `db:"coin_amount" json:"coinAmount"`
	Status     WithdrawalStatus   `db:"status" json:"status"`
	Metadata   RedemptionMetadata `json:"metadata"`
	CreatedAt  time.Time          `db:"created_at" json:"createdAt"`
	DecidedAt  *time.Time         `db:"decided_at" json:"decidedAt,omitempty"`
	DecidedBy  *string            `db:"decided_by" json:"decidedBy,omitempty"`
}

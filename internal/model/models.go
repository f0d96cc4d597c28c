// Package model defines the data models for the rewards service.
package model

import "time"

// User represents an account that earns and spends coins.
type User struct {
	ID            string    `db:"id" json:"id"`
	Username      string    `db:"username" json:"username"`
	Email         string    `db:"email" json:"email"`
	PasswordHash  string    `db:"password_hash" json:"-"`
	Coins         int64     `db:"coins" json:"coins"`
	ReferralCode  string    `db:"referral_code" json:"referralCode"`
	ReferredBy    *string   `db:"referred_by" json:"referredBy,omitempty"`
	ReferralCount int       `db:"referral_count" json:"referralCount"`
	IsAdmin       bool      `db:"is_admin" json:"isAdmin"`
	CreatedAt     time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time `db:"updated_at" json:"updatedAt"`
}

// Transaction is one journal row recorded alongside every balance change.
type Transaction struct {
	ID          int64     `db:"id" json:"id"`
	UserID      string    `db:"user_id" json:"userId"`
	Amount      int64     `db:"amount" json:"amount"`
	Type        string    `db:"type" json:"type"`
	Description *string   `db:"description" json:"description,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
}

// Transaction types for categorizing balance changes.
const (
	TxTypeInitial     = "initial"      // Starting balance on registration
	TxTypeReferral    = "referral"     // Bonus paid to a referred user
	TxTypeInviter     = "inviter"      // Bonus paid to the referrer
	TxTypeTask        = "task"         // Task completion reward
	TxTypeAd          = "ad"           // Popup ad view reward
	TxTypeWithdrawal  = "withdrawal"   // Coins spent on a withdrawal request
	TxTypeAdminCredit = "admin_credit" // Admin added coins
	TxTypeAdminDebit  = "admin_debit"  // Admin removed coins
)

// Settings is the singleton row of admin-controlled system settings.
type Settings struct {
	MinWithdrawalCoins        int64     `db:"min_withdrawal_coins" json:"minWithdrawalCoins"`
	ReferralReward            int64     `db:"referral_reward" json:"referralReward"`
	InviterReward             int64     `db:"inviter_reward" json:"inviterReward"`
	MinReferralsForWithdrawal int       `db:"min_referrals_for_withdrawal" json:"minReferralsForWithdrawal"`
	UpdatedAt                 time.Time `db:"updated_at" json:"updatedAt"`
}

// Analytics aggregates dashboard counters for admins.
type Analytics struct {
	TotalUsers         int64 `json:"totalUsers"`
	TotalCoins         int64 `json:"totalCoins"`
	TotalWithdrawals   int64 `json:"totalWithdrawals"`
	PendingWithdrawals int64 `json:"pendingWithdrawals"`
	CompletedTasks     int64 `json:"completedTasks"`
	TotalAdsViewed     int64 `json:"totalAdsViewed"`
}

// BalanceMismatch reports a user whose balance disagrees with the journal.
type BalanceMismatch struct {
	UserID     string `json:"userId"`
	Coins      int64  `json:"coins"`
	JournalSum int64  `json:"journalSum"`
}

// Actor identifies who performs a privileged operation.
type Actor struct {
	ID      string
	IsAdmin bool
}

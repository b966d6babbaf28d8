// Package model defines the data models for the lucky-draw coin economy.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// User represents an account that holds coins and draw statistics.
// The ID is issued by the external identity provider.
type User struct {
	ID                  string          `db:"id" json:"id"`
	Email               *string         `db:"email" json:"email,omitempty"`
	FirstName           *string         `db:"first_name" json:"firstName,omitempty"`
	LastName            *string         `db:"last_name" json:"lastName,omitempty"`
	ProfileImageURL     *string         `db:"profile_image_url" json:"profileImageUrl,omitempty"`
	CoinBalance         int64           `db:"coin_balance" json:"coinBalance"`
	TotalParticipations int64           `db:"total_participations" json:"totalParticipations"`
	TotalWins           int64           `db:"total_wins" json:"totalWins"`
	TotalEarnings       decimal.Decimal `db:"total_earnings" json:"totalEarnings"`
	CurrentStreak       int             `db:"current_streak" json:"currentStreak"`
	LastCheckIn         *time.Time      `db:"last_check_in" json:"lastCheckIn,omitempty"`
	IsVIP               bool            `db:"is_vip" json:"isVip"`
	CreatedAt           time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt           time.Time       `db:"updated_at" json:"updatedAt"`
}

// DisplayName returns the user's full name, or fallback when no name is known.
func (u *User) DisplayName(fallback string) string {
	var first, last string
	if u.FirstName != nil {
		first = *u.FirstName
	}
	if u.LastName != nil {
		last = *u.LastName
	}
	switch {
	case first == "" && last == "":
		return fallback
	case first == "":
		return fallback + " " + last
	case last == "":
		return first
	default:
		return first + " " + last
	}
}

// UserStatsDelta describes increments applied to a user's aggregate stats.
type UserStatsDelta struct {
	Participations int64
	Wins           int64
	Earnings       decimal.Decimal
}

// Draw represents a time-boxed lucky draw.
type Draw struct {
	ID                  int64           `db:"id" json:"id"`
	Title               string          `db:"title" json:"title"`
	Description         *string         `db:"description" json:"description,omitempty"`
	PrizeAmount         decimal.Decimal `db:"prize_amount" json:"prizeAmount"`
	EntryFee            int64           `db:"entry_fee" json:"entryFee"`
	MaxParticipants     *int64          `db:"max_participants" json:"maxParticipants,omitempty"`
	CurrentParticipants int64           `db:"current_participants" json:"currentParticipants"`
	DrawTime            time.Time       `db:"draw_time" json:"drawTime"`
	IsActive            bool            `db:"is_active" json:"isActive"`
	IsCompleted         bool            `db:"is_completed" json:"isCompleted"`
	WinnerID            *string         `db:"winner_id" json:"winnerId,omitempty"`
	PrizeImageURL       *string         `db:"prize_image_url" json:"prizeImageUrl,omitempty"`
	CreatedAt           time.Time       `db:"created_at" json:"createdAt"`
}

// IsFull reports whether the draw has reached its participant cap.
// A draw without a cap is never full.
func (d *Draw) IsFull() bool {
	return d.MaxParticipants != nil && d.CurrentParticipants >= *d.MaxParticipants
}

// IsOpenAt reports whether new entries are accepted at the given instant.
func (d *Draw) IsOpenAt(now time.Time) bool {
	return d.IsActive && !d.IsCompleted && now.Before(d.DrawTime)
}

// Participation is one paid entry of a user into a draw.
type Participation struct {
	ID             int64     `db:"id" json:"id"`
	UserID         string    `db:"user_id" json:"userId"`
	DrawID         int64     `db:"draw_id" json:"drawId"`
	CoinsSpent     int64     `db:"coins_spent" json:"coinsSpent"`
	ParticipatedAt time.Time `db:"participated_at" json:"participatedAt"`
}

// Transaction is an append-only coin ledger entry.
// Amount is always the unsigned magnitude; the direction follows from Type.
type Transaction struct {
	ID            int64     `db:"id" json:"id"`
	UserID        string    `db:"user_id" json:"userId"`
	Type          string    `db:"type" json:"type"`
	Amount        int64     `db:"amount" json:"amount"`
	Description   string    `db:"description" json:"description"`
	RelatedDrawID *int64    `db:"related_draw_id" json:"relatedDrawId,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"createdAt"`
}

// SignedAmount returns the balance effect of the transaction.
func (t *Transaction) SignedAmount() int64 {
	if IsDebitType(t.Type) {
		return -t.Amount
	}
	return t.Amount
}

// Winner is the announcement record created when a draw is settled.
type Winner struct {
	ID                  int64           `db:"id" json:"id"`
	UserID              string          `db:"user_id" json:"userId"`
	DrawID              int64           `db:"draw_id" json:"drawId"`
	PrizeAmount         decimal.Decimal `db:"prize_amount" json:"prizeAmount"`
	AnnouncedAt         time.Time       `db:"announced_at" json:"announcedAt"`
	CelebrationVideoURL *string         `db:"celebration_video_url" json:"celebrationVideoUrl,omitempty"`
	StatsApplied        bool            `db:"stats_applied" json:"-"`
}

// WinnerDetail is a Winner joined with its user and draw.
type WinnerDetail struct {
	Winner
	User User `json:"user"`
	Draw Draw `json:"draw"`
}

// Transaction types for categorizing balance changes.
const (
	TxTypePurchase   = "purchase"    // Coins bought through the payment stand-in
	TxTypeSpend      = "spend"       // Draw entry fee
	TxTypeEarn       = "earn"        // Coins granted by the platform
	TxTypeDailyBonus = "daily_bonus" // Daily check-in reward
)

// IsDebitType reports whether a transaction type decreases the balance.
func IsDebitType(txType string) bool {
	return txType == TxTypeSpend
}

// IsCreditType reports whether a transaction type increases the balance.
func IsCreditType(txType string) bool {
	switch txType {
	case TxTypePurchase, TxTypeEarn, TxTypeDailyBonus:
		return true
	}
	return false
}

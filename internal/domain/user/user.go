package user

import (
	"strings"
	"time"
)

type SubscriptionStatus string

const (
	SubscriptionNone      SubscriptionStatus = ""
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
	SubscriptionExpired   SubscriptionStatus = "expired"
	SubscriptionUnpaid    SubscriptionStatus = "unpaid"
	SubscriptionPaused    SubscriptionStatus = "paused"
)

// ParseSubscriptionStatus normalizes billing spellings ("canceled", "past_due", ...).
func ParseSubscriptionStatus(raw string) (SubscriptionStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "active", "on_trial", "trialing":
		return SubscriptionActive, true
	case "cancelled", "canceled":
		return SubscriptionCancelled, true
	case "expired":
		return SubscriptionExpired, true
	case "unpaid", "past_due":
		return SubscriptionUnpaid, true
	case "paused":
		return SubscriptionPaused, true
	case "":
		return SubscriptionNone, true
	default:
		return SubscriptionNone, false
	}
}

// User is the per-user root record. The subscription columns are written by the billing
// webhook and corrected lazily at read time. EndsAt is kept exactly as billing sent it and
// parsed on read.
type User struct {
	ID                 string             `gorm:"column:id;primaryKey;size:191" json:"id"`
	Email              string             `gorm:"column:email;size:320;index" json:"email"`
	IsPremium          bool               `gorm:"column:is_premium;not null;default:false" json:"isPremium"`
	SubscriptionStatus SubscriptionStatus `gorm:"column:subscription_status;size:32" json:"subscriptionStatus,omitempty"`
	EndsAt             *string            `gorm:"column:ends_at;size:64" json:"endsAt,omitempty"`
	PremiumSince       *time.Time         `gorm:"column:premium_since" json:"premiumSince,omitempty"`
	CreatedAt          time.Time          `gorm:"not null" json:"createdAt"`
	UpdatedAt          time.Time          `gorm:"not null" json:"updatedAt"`
}

func (User) TableName() string { return "users" }

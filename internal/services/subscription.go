package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/yungbote/coursehub-backend/internal/data/repos"
	types "github.com/yungbote/coursehub-backend/internal/domain"
	"github.com/yungbote/coursehub-backend/internal/observability"
	"github.com/yungbote/coursehub-backend/internal/platform/apierr"
	"github.com/yungbote/coursehub-backend/internal/platform/logger"
	"go.opentelemetry.io/otel/attribute"
)

// Billing event types accepted by ApplyBillingEvent. The "subscription_" prefix used by the
// billing provider is optional.
const (
	BillingSubscriptionCreated        = "subscription_created"
	BillingSubscriptionUpdated        = "subscription_updated"
	BillingSubscriptionResumed        = "subscription_resumed"
	BillingSubscriptionUnpaused       = "subscription_unpaused"
	BillingSubscriptionPaymentSuccess = "subscription_payment_success"
	BillingSubscriptionCancelled      = "subscription_cancelled"
	BillingSubscriptionExpired        = "subscription_expired"
	BillingSubscriptionPaymentFailed  = "subscription_payment_failed"
	BillingSubscriptionPaused         = "subscription_paused"
)

var ErrUnknownBillingEvent = errors.New("unknown billing event")

type BillingEvent struct {
	Type   string `json:"type"`
	UserID string `json:"userId"`
	Email  string `json:"email"`
	// Status is the provider's subscription status. Only consulted for created/updated.
	Status string `json:"status"`
	EndsAt string `json:"endsAt"`
}

// Subscription is the caller-facing view. IsPremium is the effective value after lazy
// expiry, not the raw column.
type Subscription struct {
	UserID             string                   `json:"userId"`
	IsPremium          bool                     `json:"isPremium"`
	SubscriptionStatus types.SubscriptionStatus `json:"subscriptionStatus"`
	EndsAt             *string                  `json:"endsAt"`
	PremiumSince       *time.Time               `json:"premiumSince"`
}

type SubscriptionService interface {
	IsUserPremium(ctx context.Context, userID string) bool
	GetSubscription(ctx context.Context, userID string) (*Subscription, error)
	EnsureUser(ctx context.Context, userID, email string) (*types.User, error)
	ApplyBillingEvent(ctx context.Context, ev BillingEvent) (*Subscription, error)
}

type subscriptionService struct {
	log   *logger.Logger
	users repos.UserRepo
	now   func() time.Time
}

func NewSubscriptionService(log *logger.Logger, users repos.UserRepo) SubscriptionService {
	return NewSubscriptionServiceWithClock(log, users, nil)
}

func NewSubscriptionServiceWithClock(log *logger.Logger, users repos.UserRepo, now func() time.Time) SubscriptionService {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &subscriptionService{
		log:   log.With("service", "SubscriptionService"),
		users: users,
		now:   now,
	}
}

var endsAtLayouts = []string{
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseEndsAt parses the billing provider's end-of-period timestamp. Layouts without a zone
// are read as UTC.
func ParseEndsAt(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, fmt.Errorf("empty endsAt")
	}
	for _, layout := range endsAtLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized endsAt %q", raw)
}

func (s *subscriptionService) IsUserPremium(ctx context.Context, userID string) bool {
	ctx, span := observability.Tracer().Start(ctx, "SubscriptionService.IsUserPremium")
	defer span.End()

	result, premium := s.resolve(ctx, strings.TrimSpace(userID))
	span.SetAttributes(attribute.String("premium.result", result))
	observability.Current().IncPremiumCheck(result)
	return premium
}

func (s *subscriptionService) resolve(ctx context.Context, userID string) (string, bool) {
	if userID == "" {
		return "absent", false
	}
	u, err := s.users.GetByID(ctx, nil, userID)
	if err != nil {
		s.log.Error("premium check read failed", "user_id", userID, "error", err)
		return "error", false
	}
	if u == nil {
		return "absent", false
	}
	if !u.IsPremium {
		return "free", false
	}
	if u.SubscriptionStatus != types.SubscriptionCancelled || u.EndsAt == nil || strings.TrimSpace(*u.EndsAt) == "" {
		return "premium", true
	}

	endsAt, err := ParseEndsAt(*u.EndsAt)
	if err != nil {
		s.log.Warn("unparseable subscription endsAt, keeping stored premium flag", "user_id", userID, "ends_at", *u.EndsAt, "error", err)
		return "grace_unparsed", true
	}
	now := s.now()
	if !now.After(endsAt) {
		return "grace", true
	}
	if err := s.users.MarkExpired(ctx, nil, userID, now); err != nil {
		s.log.Error("lazy expiry write failed", "user_id", userID, "error", err)
		return "error", false
	}
	observability.Current().IncLazyExpiry()
	s.log.Info("subscription lazily expired", "user_id", userID, "ends_at", *u.EndsAt)
	return "expired", false
}

func (s *subscriptionService) GetSubscription(ctx context.Context, userID string) (*Subscription, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, apierr.BadRequest("missing_user", "userId is required")
	}
	premium := s.IsUserPremium(ctx, userID)
	u, err := s.users.GetByID(ctx, nil, userID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return &Subscription{UserID: userID}, nil
	}
	return &Subscription{
		UserID:             u.ID,
		IsPremium:          premium,
		SubscriptionStatus: u.SubscriptionStatus,
		EndsAt:             u.EndsAt,
		PremiumSince:       u.PremiumSince,
	}, nil
}

func (s *subscriptionService) EnsureUser(ctx context.Context, userID, email string) (*types.User, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, apierr.BadRequest("missing_user", "userId is required")
	}
	return s.users.EnsureUser(ctx, nil, userID, strings.TrimSpace(email))
}

func normalizeBillingType(raw string) string {
	t := strings.ToLower(strings.TrimSpace(raw))
	if t == "" {
		return ""
	}
	if !strings.HasPrefix(t, "subscription_") {
		t = "subscription_" + t
	}
	return t
}

// premiumForStatus reports whether a subscription in status still grants access. Cancelled
// subscriptions stay premium until endsAt passes, which IsUserPremium enforces lazily.
func premiumForStatus(st types.SubscriptionStatus) bool {
	return st == types.SubscriptionActive || st == types.SubscriptionCancelled
}

func (s *subscriptionService) ApplyBillingEvent(ctx context.Context, ev BillingEvent) (*Subscription, error) {
	ctx, span := observability.Tracer().Start(ctx, "SubscriptionService.ApplyBillingEvent")
	defer span.End()

	evType := normalizeBillingType(ev.Type)
	span.SetAttributes(attribute.String("billing.event", evType))

	var status types.SubscriptionStatus
	switch evType {
	case BillingSubscriptionCreated, BillingSubscriptionUpdated:
		st, ok := types.ParseSubscriptionStatus(ev.Status)
		if !ok {
			observability.Current().IncBillingEvent(evType, "rejected")
			return nil, apierr.BadRequest("invalid_status", fmt.Sprintf("unknown subscription status %q", ev.Status))
		}
		if st == types.SubscriptionNone {
			st = types.SubscriptionActive
		}
		status = st
	case BillingSubscriptionResumed, BillingSubscriptionUnpaused, BillingSubscriptionPaymentSuccess:
		status = types.SubscriptionActive
	case BillingSubscriptionCancelled:
		status = types.SubscriptionCancelled
	case BillingSubscriptionExpired:
		status = types.SubscriptionExpired
	case BillingSubscriptionPaymentFailed:
		status = types.SubscriptionUnpaid
	case BillingSubscriptionPaused:
		status = types.SubscriptionPaused
	default:
		observability.Current().IncBillingEvent("unknown", "rejected")
		return nil, apierr.New(http.StatusBadRequest, "unknown_event", fmt.Errorf("%w: %q", ErrUnknownBillingEvent, ev.Type))
	}

	u, err := s.lookupBillingUser(ctx, ev)
	if err != nil {
		observability.Current().IncBillingEvent(evType, "error")
		return nil, err
	}

	premium := premiumForStatus(status)
	upd := repos.SubscriptionUpdate{
		IsPremium:          premium,
		SubscriptionStatus: status,
		EndsAt:             u.EndsAt,
		PremiumSince:       u.PremiumSince,
	}
	if endsAt := strings.TrimSpace(ev.EndsAt); endsAt != "" {
		upd.EndsAt = &endsAt
	} else if status == types.SubscriptionActive {
		upd.EndsAt = nil
	}
	if premium && upd.PremiumSince == nil {
		now := s.now()
		upd.PremiumSince = &now
	}
	if err := s.users.UpdateSubscription(ctx, nil, u.ID, upd); err != nil {
		observability.Current().IncBillingEvent(evType, "error")
		s.log.Error("billing update failed", "user_id", u.ID, "event", evType, "error", err)
		return nil, err
	}
	observability.Current().IncBillingEvent(evType, "applied")
	s.log.Info("billing event applied", "user_id", u.ID, "event", evType, "status", string(status), "is_premium", premium)

	return &Subscription{
		UserID:             u.ID,
		IsPremium:          premium,
		SubscriptionStatus: status,
		EndsAt:             upd.EndsAt,
		PremiumSince:       upd.PremiumSince,
	}, nil
}

// lookupBillingUser resolves the event's user by id (creating the record on first contact)
// or, failing that, by email.
func (s *subscriptionService) lookupBillingUser(ctx context.Context, ev BillingEvent) (*types.User, error) {
	userID := strings.TrimSpace(ev.UserID)
	email := strings.TrimSpace(ev.Email)
	if userID != "" {
		return s.users.EnsureUser(ctx, nil, userID, email)
	}
	if email == "" {
		return nil, apierr.BadRequest("missing_user", "billing event carries neither userId nor email")
	}
	u, err := s.users.GetByEmail(ctx, nil, email)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, apierr.NotFound("user_not_found", "no user with that email")
	}
	return u, nil
}

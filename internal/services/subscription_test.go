package services

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/yungbote/coursehub-backend/internal/data/repos"
	"github.com/yungbote/coursehub-backend/internal/data/repos/testutil"
	types "github.com/yungbote/coursehub-backend/internal/domain"
	"github.com/yungbote/coursehub-backend/internal/platform/apierr"
	"gorm.io/gorm"
)

type clock struct{ t time.Time }

func (c *clock) Now() time.Time { return c.t }

type subFixture struct {
	db    *gorm.DB
	users repos.UserRepo
	clock *clock
	svc   SubscriptionService
}

func newSubFixture(t *testing.T) *subFixture {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	f := &subFixture{
		db:    db,
		users: repos.NewUserRepo(db, log),
		clock: &clock{t: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)},
	}
	f.svc = NewSubscriptionServiceWithClock(log, f.users, f.clock.Now)
	return f
}

func (f *subFixture) seed(t *testing.T, u *types.User) *types.User {
	t.Helper()
	return testutil.SeedUser(t, context.Background(), f.db, u)
}

func TestIsUserPremium_StoredStates(t *testing.T) {
	f := newSubFixture(t)
	ctx := context.Background()

	free := f.seed(t, &types.User{Email: "free@example.com"})
	active := f.seed(t, &types.User{Email: "active@example.com", IsPremium: true, SubscriptionStatus: types.SubscriptionActive})
	stale := f.seed(t, &types.User{Email: "stale@example.com", IsPremium: false, SubscriptionStatus: types.SubscriptionActive})

	cases := []struct {
		name   string
		userID string
		want   bool
	}{
		{"absent", "user_missing", false},
		{"blank", "  ", false},
		{"free", free.ID, false},
		{"active", active.ID, true},
		{"stored flag wins over status", stale.ID, false},
	}
	for _, tc := range cases {
		if got := f.svc.IsUserPremium(ctx, tc.userID); got != tc.want {
			t.Fatalf("%s: want=%v got=%v", tc.name, tc.want, got)
		}
	}
}

func TestIsUserPremium_CancelledGracePeriod(t *testing.T) {
	f := newSubFixture(t)
	ctx := context.Background()

	ends := "2026-03-20T00:00:00Z"
	u := f.seed(t, &types.User{IsPremium: true, SubscriptionStatus: types.SubscriptionCancelled, EndsAt: &ends})

	if !f.svc.IsUserPremium(ctx, u.ID) {
		t.Fatalf("before endsAt: want premium")
	}
	stored, _ := f.users.GetByID(ctx, nil, u.ID)
	if stored.SubscriptionStatus != types.SubscriptionCancelled || !stored.IsPremium {
		t.Fatalf("grace read must not write: got status=%q premium=%v", stored.SubscriptionStatus, stored.IsPremium)
	}

	f.clock.t = time.Date(2026, 3, 21, 0, 0, 0, 0, time.UTC)
	if f.svc.IsUserPremium(ctx, u.ID) {
		t.Fatalf("after endsAt: want not premium")
	}
	stored, _ = f.users.GetByID(ctx, nil, u.ID)
	if stored.IsPremium {
		t.Fatalf("lazy expiry: want isPremium=false")
	}
	if stored.SubscriptionStatus != types.SubscriptionExpired {
		t.Fatalf("lazy expiry status: want=%q got=%q", types.SubscriptionExpired, stored.SubscriptionStatus)
	}
	if f.svc.IsUserPremium(ctx, u.ID) {
		t.Fatalf("after lazy expiry: want not premium")
	}
}

func TestIsUserPremium_EndsAtLayouts(t *testing.T) {
	f := newSubFixture(t)
	ctx := context.Background()

	cases := []struct {
		endsAt string
		want   bool
	}{
		{"2026-03-11", true},
		{"2026-03-09", false},
		{"2026-03-10 12:00:01", true},
		{"2026-03-10T11:59:59.5Z", false},
		{"next tuesday", true},
	}
	for _, tc := range cases {
		ends := tc.endsAt
		u := f.seed(t, &types.User{IsPremium: true, SubscriptionStatus: types.SubscriptionCancelled, EndsAt: &ends})
		if got := f.svc.IsUserPremium(ctx, u.ID); got != tc.want {
			t.Fatalf("endsAt=%q: want=%v got=%v", tc.endsAt, tc.want, got)
		}
	}
}

type failingUsers struct {
	repos.UserRepo
	err error
}

func (f failingUsers) GetByID(ctx context.Context, tx *gorm.DB, userID string) (*types.User, error) {
	return nil, f.err
}

func TestIsUserPremium_ReadErrorFailsClosed(t *testing.T) {
	svc := NewSubscriptionService(testutil.Logger(t), failingUsers{err: errors.New("connection refused")})
	if svc.IsUserPremium(context.Background(), "user_1") {
		t.Fatalf("read error: want not premium")
	}
}

func TestApplyBillingEvent_Lifecycle(t *testing.T) {
	f := newSubFixture(t)
	ctx := context.Background()

	sub, err := f.svc.ApplyBillingEvent(ctx, BillingEvent{Type: "subscription_created", UserID: "user_billing", Email: "b@example.com", Status: "active"})
	if err != nil {
		t.Fatalf("created: %v", err)
	}
	if !sub.IsPremium || sub.SubscriptionStatus != types.SubscriptionActive {
		t.Fatalf("created: want active premium got %+v", sub)
	}
	if sub.PremiumSince == nil || !sub.PremiumSince.Equal(f.clock.t) {
		t.Fatalf("created premiumSince: want=%v got=%v", f.clock.t, sub.PremiumSince)
	}
	since := *sub.PremiumSince

	f.clock.t = f.clock.t.Add(24 * time.Hour)
	sub, err = f.svc.ApplyBillingEvent(ctx, BillingEvent{Type: "cancelled", UserID: "user_billing", EndsAt: "2026-04-01T00:00:00Z"})
	if err != nil {
		t.Fatalf("cancelled: %v", err)
	}
	if !sub.IsPremium || sub.SubscriptionStatus != types.SubscriptionCancelled {
		t.Fatalf("cancelled: want cancelled premium got %+v", sub)
	}
	if sub.PremiumSince == nil || !sub.PremiumSince.Equal(since) {
		t.Fatalf("premiumSince must be kept: want=%v got=%v", since, sub.PremiumSince)
	}
	if !f.svc.IsUserPremium(ctx, "user_billing") {
		t.Fatalf("cancelled within period: want premium")
	}

	f.clock.t = time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC)
	got, err := f.svc.GetSubscription(ctx, "user_billing")
	if err != nil {
		t.Fatalf("GetSubscription: %v", err)
	}
	if got.IsPremium || got.SubscriptionStatus != types.SubscriptionExpired {
		t.Fatalf("after period: want expired got %+v", got)
	}

	sub, err = f.svc.ApplyBillingEvent(ctx, BillingEvent{Type: "subscription_payment_failed", Email: "B@example.com"})
	if err != nil {
		t.Fatalf("payment_failed by email: %v", err)
	}
	if sub.IsPremium || sub.SubscriptionStatus != types.SubscriptionUnpaid {
		t.Fatalf("payment_failed: want unpaid got %+v", sub)
	}
}

func TestApplyBillingEvent_Rejects(t *testing.T) {
	f := newSubFixture(t)
	ctx := context.Background()

	_, err := f.svc.ApplyBillingEvent(ctx, BillingEvent{Type: "order_refunded", UserID: "u"})
	if !errors.Is(err, ErrUnknownBillingEvent) || apierr.StatusOf(err) != http.StatusBadRequest {
		t.Fatalf("unknown event: want 400 ErrUnknownBillingEvent got %v", err)
	}
	_, err = f.svc.ApplyBillingEvent(ctx, BillingEvent{Type: "paused"})
	if apierr.StatusOf(err) != http.StatusBadRequest {
		t.Fatalf("no user: want=400 got=%d", apierr.StatusOf(err))
	}
	_, err = f.svc.ApplyBillingEvent(ctx, BillingEvent{Type: "paused", Email: "nobody@example.com"})
	if apierr.StatusOf(err) != http.StatusNotFound {
		t.Fatalf("unknown email: want=404 got=%d", apierr.StatusOf(err))
	}
	_, err = f.svc.ApplyBillingEvent(ctx, BillingEvent{Type: "updated", UserID: "u", Status: "weird"})
	if apierr.StatusOf(err) != http.StatusBadRequest {
		t.Fatalf("bad status: want=400 got=%d", apierr.StatusOf(err))
	}
}

func TestParseEndsAt(t *testing.T) {
	got, err := ParseEndsAt("2026-05-01 08:30:00")
	if err != nil {
		t.Fatalf("ParseEndsAt: %v", err)
	}
	want := time.Date(2026, 5, 1, 8, 30, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("ParseEndsAt: want=%v got=%v", want, got)
	}
	if _, err := ParseEndsAt(""); err == nil {
		t.Fatalf("empty: want error")
	}
}

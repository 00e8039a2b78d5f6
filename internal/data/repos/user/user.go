package user

import (
	"context"
	"strings"
	"time"

	types "github.com/yungbote/coursehub-backend/internal/domain"
	"github.com/yungbote/coursehub-backend/internal/platform/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SubscriptionUpdate is a full replacement of the billing-owned columns.
type SubscriptionUpdate struct {
	IsPremium          bool
	SubscriptionStatus types.SubscriptionStatus
	EndsAt             *string
	PremiumSince       *time.Time
}

type UserRepo interface {
	GetByID(ctx context.Context, tx *gorm.DB, userID string) (*types.User, error)
	GetByEmail(ctx context.Context, tx *gorm.DB, email string) (*types.User, error)
	EnsureUser(ctx context.Context, tx *gorm.DB, userID, email string) (*types.User, error)
	UpdateSubscription(ctx context.Context, tx *gorm.DB, userID string, upd SubscriptionUpdate) error
	MarkExpired(ctx context.Context, tx *gorm.DB, userID string, now time.Time) error
}

type userRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUserRepo(db *gorm.DB, baseLog *logger.Logger) UserRepo {
	repoLog := baseLog.With("repo", "UserRepo")
	return &userRepo{db: db, log: repoLog}
}

func (ur *userRepo) GetByID(ctx context.Context, tx *gorm.DB, userID string) (*types.User, error) {
	transaction := tx
	if transaction == nil {
		transaction = ur.db
	}
	if strings.TrimSpace(userID) == "" {
		return nil, nil
	}
	var rows []*types.User
	if err := transaction.WithContext(ctx).
		Where("id = ?", userID).
		Limit(1).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (ur *userRepo) GetByEmail(ctx context.Context, tx *gorm.DB, email string) (*types.User, error) {
	transaction := tx
	if transaction == nil {
		transaction = ur.db
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, nil
	}
	var rows []*types.User
	if err := transaction.WithContext(ctx).
		Where("LOWER(email) = ?", email).
		Order("created_at ASC").
		Limit(1).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// EnsureUser creates the free-tier record on first sign-in. An existing row keeps its
// subscription columns; only a missing email is filled in.
func (ur *userRepo) EnsureUser(ctx context.Context, tx *gorm.DB, userID, email string) (*types.User, error) {
	transaction := tx
	if transaction == nil {
		transaction = ur.db
	}
	now := time.Now().UTC()
	row := &types.User{
		ID:        userID,
		Email:     strings.TrimSpace(email),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := transaction.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).
		Create(row).Error; err != nil {
		return nil, err
	}
	got, err := ur.GetByID(ctx, transaction, userID)
	if err != nil || got == nil {
		return got, err
	}
	if got.Email == "" && row.Email != "" {
		if err := transaction.WithContext(ctx).
			Model(&types.User{}).
			Where("id = ?", userID).
			Updates(map[string]any{"email": row.Email, "updated_at": now}).Error; err != nil {
			return nil, err
		}
		got.Email = row.Email
	}
	return got, nil
}

func (ur *userRepo) UpdateSubscription(ctx context.Context, tx *gorm.DB, userID string, upd SubscriptionUpdate) error {
	transaction := tx
	if transaction == nil {
		transaction = ur.db
	}
	res := transaction.WithContext(ctx).
		Model(&types.User{}).
		Where("id = ?", userID).
		Updates(map[string]any{
			"is_premium":          upd.IsPremium,
			"subscription_status": string(upd.SubscriptionStatus),
			"ends_at":             upd.EndsAt,
			"premium_since":       upd.PremiumSince,
			"updated_at":          time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// MarkExpired is the lazy-expiry correction applied when a cancelled subscription's end
// date has passed.
func (ur *userRepo) MarkExpired(ctx context.Context, tx *gorm.DB, userID string, now time.Time) error {
	transaction := tx
	if transaction == nil {
		transaction = ur.db
	}
	return transaction.WithContext(ctx).
		Model(&types.User{}).
		Where("id = ?", userID).
		Updates(map[string]any{
			"is_premium":          false,
			"subscription_status": string(types.SubscriptionExpired),
			"updated_at":          now.UTC(),
		}).Error
}

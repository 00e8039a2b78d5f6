package progress

import (
	"context"
	"time"

	"github.com/google/uuid"
	types "github.com/yungbote/coursehub-backend/internal/domain"
	"github.com/yungbote/coursehub-backend/internal/platform/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CourseProgressRepo interface {
	Get(ctx context.Context, tx *gorm.DB, userID, courseID string) (*types.CourseProgress, error)
	ListByUser(ctx context.Context, tx *gorm.DB, userID string) ([]*types.CourseProgress, error)
	// ListRecent returns rows with nonzero progress accessed at or after since, most recent first.
	ListRecent(ctx context.Context, tx *gorm.DB, userID string, since time.Time, limit int) ([]*types.CourseProgress, error)
	Upsert(ctx context.Context, tx *gorm.DB, row *types.CourseProgress) error
	DeleteByCourse(ctx context.Context, tx *gorm.DB, userID, courseID string) (int64, error)
	DeleteByUser(ctx context.Context, tx *gorm.DB, userID string) (int64, error)
}

type courseProgressRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCourseProgressRepo(db *gorm.DB, baseLog *logger.Logger) CourseProgressRepo {
	return &courseProgressRepo{db: db, log: baseLog.With("repo", "CourseProgressRepo")}
}

func (r *courseProgressRepo) Get(ctx context.Context, tx *gorm.DB, userID, courseID string) (*types.CourseProgress, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	if userID == "" || courseID == "" {
		return nil, nil
	}
	var rows []*types.CourseProgress
	if err := t.WithContext(ctx).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		Limit(1).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *courseProgressRepo) ListByUser(ctx context.Context, tx *gorm.DB, userID string) ([]*types.CourseProgress, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	var out []*types.CourseProgress
	if userID == "" {
		return out, nil
	}
	if err := t.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("last_accessed_at DESC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *courseProgressRepo) ListRecent(ctx context.Context, tx *gorm.DB, userID string, since time.Time, limit int) ([]*types.CourseProgress, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	var out []*types.CourseProgress
	if userID == "" {
		return out, nil
	}
	q := t.WithContext(ctx).
		Where("user_id = ? AND last_accessed_at >= ? AND progress_percentage > 0", userID, since.UTC()).
		Order("last_accessed_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *courseProgressRepo) Upsert(ctx context.Context, tx *gorm.DB, row *types.CourseProgress) error {
	t := tx
	if t == nil {
		t = r.db
	}
	if row == nil || row.UserID == "" || row.CourseID == "" {
		return nil
	}
	now := time.Now().UTC()
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = now
	}
	if row.StartedAt.IsZero() {
		row.StartedAt = now
	}
	if row.LastAccessedAt.IsZero() {
		row.LastAccessedAt = now
	}
	row.UpdatedAt = now
	return t.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "course_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"total_lessons",
				"completed_lessons",
				"progress_percentage",
				"last_accessed_at",
				"completed_at",
				"current_lesson_id",
				"updated_at",
			}),
		}).
		Create(row).Error
}

func (r *courseProgressRepo) DeleteByCourse(ctx context.Context, tx *gorm.DB, userID, courseID string) (int64, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	if userID == "" || courseID == "" {
		return 0, nil
	}
	res := t.WithContext(ctx).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		Delete(&types.CourseProgress{})
	return res.RowsAffected, res.Error
}

func (r *courseProgressRepo) DeleteByUser(ctx context.Context, tx *gorm.DB, userID string) (int64, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	if userID == "" {
		return 0, nil
	}
	res := t.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&types.CourseProgress{})
	return res.RowsAffected, res.Error
}

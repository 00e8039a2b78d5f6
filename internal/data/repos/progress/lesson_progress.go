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

type LessonProgressRepo interface {
	Get(ctx context.Context, tx *gorm.DB, userID, courseID, lessonID string) (*types.LessonProgress, error)
	ListByCourse(ctx context.Context, tx *gorm.DB, userID, courseID string) ([]*types.LessonProgress, error)
	ListByUser(ctx context.Context, tx *gorm.DB, userID string) ([]*types.LessonProgress, error)
	Upsert(ctx context.Context, tx *gorm.DB, row *types.LessonProgress) error
	DeleteByCourse(ctx context.Context, tx *gorm.DB, userID, courseID string) (int64, error)
	DeleteByUser(ctx context.Context, tx *gorm.DB, userID string) (int64, error)
}

type lessonProgressRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewLessonProgressRepo(db *gorm.DB, baseLog *logger.Logger) LessonProgressRepo {
	return &lessonProgressRepo{db: db, log: baseLog.With("repo", "LessonProgressRepo")}
}

func (r *lessonProgressRepo) Get(ctx context.Context, tx *gorm.DB, userID, courseID, lessonID string) (*types.LessonProgress, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	if userID == "" || courseID == "" || lessonID == "" {
		return nil, nil
	}
	var rows []*types.LessonProgress
	if err := t.WithContext(ctx).
		Where("user_id = ? AND course_id = ? AND lesson_id = ?", userID, courseID, lessonID).
		Limit(1).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *lessonProgressRepo) ListByCourse(ctx context.Context, tx *gorm.DB, userID, courseID string) ([]*types.LessonProgress, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	var out []*types.LessonProgress
	if userID == "" || courseID == "" {
		return out, nil
	}
	if err := t.WithContext(ctx).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		Order("lesson_id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *lessonProgressRepo) ListByUser(ctx context.Context, tx *gorm.DB, userID string) ([]*types.LessonProgress, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	var out []*types.LessonProgress
	if userID == "" {
		return out, nil
	}
	if err := t.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("course_id ASC, lesson_id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// Upsert writes the full row keyed by (user, course, lesson). Merging partial updates is
// the caller's job.
func (r *lessonProgressRepo) Upsert(ctx context.Context, tx *gorm.DB, row *types.LessonProgress) error {
	t := tx
	if t == nil {
		t = r.db
	}
	if row == nil || row.UserID == "" || row.CourseID == "" || row.LessonID == "" {
		return nil
	}
	now := time.Now().UTC()
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = now
	}
	if row.LastAccessedAt.IsZero() {
		row.LastAccessedAt = now
	}
	row.UpdatedAt = now
	return t.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "course_id"}, {Name: "lesson_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"completed",
				"completed_at",
				"watch_time",
				"total_duration",
				"progress_percentage",
				"last_accessed_at",
				"metadata",
				"updated_at",
			}),
		}).
		Create(row).Error
}

func (r *lessonProgressRepo) DeleteByCourse(ctx context.Context, tx *gorm.DB, userID, courseID string) (int64, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	if userID == "" || courseID == "" {
		return 0, nil
	}
	res := t.WithContext(ctx).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		Delete(&types.LessonProgress{})
	return res.RowsAffected, res.Error
}

func (r *lessonProgressRepo) DeleteByUser(ctx context.Context, tx *gorm.DB, userID string) (int64, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	if userID == "" {
		return 0, nil
	}
	res := t.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&types.LessonProgress{})
	return res.RowsAffected, res.Error
}

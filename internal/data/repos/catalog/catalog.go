package catalog

import (
	"context"
	"strings"
	"time"

	types "github.com/yungbote/coursehub-backend/internal/domain"
	"github.com/yungbote/coursehub-backend/internal/platform/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CatalogRepo interface {
	GetByID(ctx context.Context, tx *gorm.DB, id string) (*types.CatalogItem, error)
	GetBySlug(ctx context.Context, tx *gorm.DB, kind types.ContentKind, slug string) (*types.CatalogItem, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, ids []string) ([]*types.CatalogItem, error)
	// Upsert replaces the item and its full lesson list.
	Upsert(ctx context.Context, tx *gorm.DB, item *types.CatalogItem) error
}

type catalogRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCatalogRepo(db *gorm.DB, baseLog *logger.Logger) CatalogRepo {
	return &catalogRepo{db: db, log: baseLog.With("repo", "CatalogRepo")}
}

func orderedLessons(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC")
}

func (r *catalogRepo) GetByID(ctx context.Context, tx *gorm.DB, id string) (*types.CatalogItem, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	if strings.TrimSpace(id) == "" {
		return nil, nil
	}
	var rows []*types.CatalogItem
	if err := t.WithContext(ctx).
		Preload("Lessons", orderedLessons).
		Where("id = ?", id).
		Limit(1).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *catalogRepo) GetBySlug(ctx context.Context, tx *gorm.DB, kind types.ContentKind, slug string) (*types.CatalogItem, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return nil, nil
	}
	q := t.WithContext(ctx).Preload("Lessons", orderedLessons).Where("slug = ?", slug)
	if kind != "" {
		q = q.Where("kind = ?", string(kind))
	}
	var rows []*types.CatalogItem
	if err := q.Limit(1).Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *catalogRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []string) ([]*types.CatalogItem, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	var out []*types.CatalogItem
	if len(ids) == 0 {
		return out, nil
	}
	if err := t.WithContext(ctx).
		Preload("Lessons", orderedLessons).
		Where("id IN ?", ids).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *catalogRepo) Upsert(ctx context.Context, tx *gorm.DB, item *types.CatalogItem) error {
	t := tx
	if t == nil {
		t = r.db
	}
	if item == nil || item.ID == "" {
		return nil
	}
	now := time.Now().UTC()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	item.UpdatedAt = now

	lessons := item.Lessons
	head := *item
	head.Lessons = nil

	return t.WithContext(ctx).Transaction(func(inner *gorm.DB) error {
		if err := inner.
			Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "id"}},
				DoUpdates: clause.AssignmentColumns([]string{"kind", "slug", "title", "description", "image_url", "is_free", "updated_at"}),
			}).
			Create(&head).Error; err != nil {
			return err
		}
		if err := inner.Where("course_id = ?", item.ID).Delete(&types.CatalogLesson{}).Error; err != nil {
			return err
		}
		if len(lessons) == 0 {
			return nil
		}
		for i := range lessons {
			lessons[i].CourseID = item.ID
		}
		return inner.Create(&lessons).Error
	})
}

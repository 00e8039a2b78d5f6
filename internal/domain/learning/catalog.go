package learning

import "time"

type ContentKind string

const (
	KindCourse     ContentKind = "course"
	KindProduct    ContentKind = "product"
	KindWorkshop   ContentKind = "workshop"
	KindRepository ContentKind = "repository"
)

func ParseContentKind(raw string) (ContentKind, bool) {
	switch ContentKind(raw) {
	case KindCourse, KindProduct, KindWorkshop, KindRepository:
		return ContentKind(raw), true
	}
	switch raw {
	case "courses":
		return KindCourse, true
	case "products":
		return KindProduct, true
	case "workshops":
		return KindWorkshop, true
	case "repositories", "repos":
		return KindRepository, true
	}
	return "", false
}

// CatalogItem is an editorial content entry. Courses own an ordered lesson list.
type CatalogItem struct {
	ID          string          `gorm:"column:id;primaryKey;size:191" json:"id" yaml:"id"`
	Kind        ContentKind     `gorm:"column:kind;size:32;not null;index" json:"kind" yaml:"kind"`
	Slug        string          `gorm:"column:slug;size:191;not null;uniqueIndex" json:"slug" yaml:"slug"`
	Title       string          `gorm:"column:title;not null" json:"title" yaml:"title"`
	Description string          `gorm:"column:description" json:"description,omitempty" yaml:"description"`
	ImageURL    string          `gorm:"column:image_url" json:"imageUrl,omitempty" yaml:"imageUrl"`
	IsFree      bool            `gorm:"column:is_free;not null;default:false" json:"isFree" yaml:"isFree"`
	Lessons     []CatalogLesson `gorm:"foreignKey:CourseID;references:ID" json:"lessons,omitempty" yaml:"lessons"`
	CreatedAt   time.Time       `gorm:"not null" json:"createdAt" yaml:"-"`
	UpdatedAt   time.Time       `gorm:"not null" json:"updatedAt" yaml:"-"`
}

func (CatalogItem) TableName() string { return "catalog_items" }

type CatalogLesson struct {
	ID              string   `gorm:"column:id;primaryKey;size:191" json:"id" yaml:"id"`
	CourseID        string   `gorm:"column:course_id;size:191;not null;index:idx_catalog_lesson_order,priority:1" json:"courseId" yaml:"-"`
	Position        int      `gorm:"column:position;not null;index:idx_catalog_lesson_order,priority:2" json:"position" yaml:"position"`
	Title           string   `gorm:"column:title;not null" json:"title" yaml:"title"`
	Slug            string   `gorm:"column:slug;size:191" json:"slug,omitempty" yaml:"slug"`
	VideoID         string   `gorm:"column:video_id" json:"videoId,omitempty" yaml:"videoId"`
	DurationSeconds *float64 `gorm:"column:duration_seconds" json:"durationSeconds,omitempty" yaml:"durationSeconds"`
}

func (CatalogLesson) TableName() string { return "catalog_lessons" }

// LessonIDs returns the lesson ids in course order.
func (c *CatalogItem) LessonIDs() []string {
	if c == nil {
		return nil
	}
	out := make([]string, 0, len(c.Lessons))
	for _, l := range c.Lessons {
		out = append(out, l.ID)
	}
	return out
}

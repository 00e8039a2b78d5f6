package learning

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// LessonProgress is one row per (user, course, lesson).
type LessonProgress struct {
	ID                 uuid.UUID      `gorm:"type:uuid;primaryKey" json:"-"`
	UserID             string         `gorm:"column:user_id;size:191;not null;uniqueIndex:idx_lesson_progress_key,priority:1" json:"-"`
	CourseID           string         `gorm:"column:course_id;size:191;not null;uniqueIndex:idx_lesson_progress_key,priority:2" json:"courseId"`
	LessonID           string         `gorm:"column:lesson_id;size:191;not null;uniqueIndex:idx_lesson_progress_key,priority:3" json:"lessonId"`
	Completed          bool           `gorm:"column:completed;not null;default:false" json:"completed"`
	CompletedAt        *time.Time     `gorm:"column:completed_at" json:"completedAt"`
	WatchTime          float64        `gorm:"column:watch_time;not null;default:0" json:"watchTime"`
	TotalDuration      *float64       `gorm:"column:total_duration" json:"totalDuration"`
	ProgressPercentage int            `gorm:"column:progress_percentage;not null;default:0" json:"progressPercentage"`
	LastAccessedAt     time.Time      `gorm:"column:last_accessed_at;not null" json:"lastAccessedAt"`
	Metadata           datatypes.JSON `gorm:"column:metadata" json:"metadata,omitempty"`
	CreatedAt          time.Time      `gorm:"not null" json:"createdAt"`
	UpdatedAt          time.Time      `gorm:"not null" json:"updatedAt"`
}

func (LessonProgress) TableName() string { return "lesson_progress" }

// CourseProgress is derived from the course's LessonProgress rows on every write.
type CourseProgress struct {
	ID                 uuid.UUID  `gorm:"type:uuid;primaryKey" json:"-"`
	UserID             string     `gorm:"column:user_id;size:191;not null;uniqueIndex:idx_course_progress_key,priority:1" json:"-"`
	CourseID           string     `gorm:"column:course_id;size:191;not null;uniqueIndex:idx_course_progress_key,priority:2" json:"courseId"`
	TotalLessons       int        `gorm:"column:total_lessons;not null;default:0" json:"totalLessons"`
	CompletedLessons   int        `gorm:"column:completed_lessons;not null;default:0" json:"completedLessons"`
	ProgressPercentage int        `gorm:"column:progress_percentage;not null;default:0" json:"progressPercentage"`
	StartedAt          time.Time  `gorm:"column:started_at;not null" json:"startedAt"`
	LastAccessedAt     time.Time  `gorm:"column:last_accessed_at;not null;index" json:"lastAccessedAt"`
	CompletedAt        *time.Time `gorm:"column:completed_at" json:"completedAt"`
	CurrentLessonID    string     `gorm:"column:current_lesson_id;size:191" json:"currentLessonId"`
	CreatedAt          time.Time  `gorm:"not null" json:"createdAt"`
	UpdatedAt          time.Time  `gorm:"not null" json:"updatedAt"`
}

func (CourseProgress) TableName() string { return "course_progress" }

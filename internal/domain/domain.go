package domain

import (
	"github.com/yungbote/coursehub-backend/internal/domain/learning"
	"github.com/yungbote/coursehub-backend/internal/domain/user"
)

type User = user.User
type SubscriptionStatus = user.SubscriptionStatus

const (
	SubscriptionNone      = user.SubscriptionNone
	SubscriptionActive    = user.SubscriptionActive
	SubscriptionCancelled = user.SubscriptionCancelled
	SubscriptionExpired   = user.SubscriptionExpired
	SubscriptionUnpaid    = user.SubscriptionUnpaid
	SubscriptionPaused    = user.SubscriptionPaused
)

var ParseSubscriptionStatus = user.ParseSubscriptionStatus

type LessonProgress = learning.LessonProgress
type CourseProgress = learning.CourseProgress

type ContentKind = learning.ContentKind
type CatalogItem = learning.CatalogItem
type CatalogLesson = learning.CatalogLesson

const (
	KindCourse     = learning.KindCourse
	KindProduct    = learning.KindProduct
	KindWorkshop   = learning.KindWorkshop
	KindRepository = learning.KindRepository
)

var ParseContentKind = learning.ParseContentKind

// Models lists every persisted model in migration order.
func Models() []any {
	return []any{
		&User{},
		&CatalogItem{},
		&CatalogLesson{},
		&CourseProgress{},
		&LessonProgress{},
	}
}

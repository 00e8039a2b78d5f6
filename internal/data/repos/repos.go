package repos

import (
	"github.com/yungbote/coursehub-backend/internal/data/repos/catalog"
	"github.com/yungbote/coursehub-backend/internal/data/repos/progress"
	"github.com/yungbote/coursehub-backend/internal/data/repos/user"
	"github.com/yungbote/coursehub-backend/internal/platform/logger"
	"gorm.io/gorm"
)

type UserRepo = user.UserRepo
type SubscriptionUpdate = user.SubscriptionUpdate

type LessonProgressRepo = progress.LessonProgressRepo
type CourseProgressRepo = progress.CourseProgressRepo

type CatalogRepo = catalog.CatalogRepo

func NewUserRepo(db *gorm.DB, baseLog *logger.Logger) UserRepo { return user.NewUserRepo(db, baseLog) }

func NewLessonProgressRepo(db *gorm.DB, baseLog *logger.Logger) LessonProgressRepo {
	return progress.NewLessonProgressRepo(db, baseLog)
}
func NewCourseProgressRepo(db *gorm.DB, baseLog *logger.Logger) CourseProgressRepo {
	return progress.NewCourseProgressRepo(db, baseLog)
}

func NewCatalogRepo(db *gorm.DB, baseLog *logger.Logger) CatalogRepo {
	return catalog.NewCatalogRepo(db, baseLog)
}

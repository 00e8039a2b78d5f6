package app

import (
	"github.com/yungbote/coursehub-backend/internal/data/repos"
	"github.com/yungbote/coursehub-backend/internal/platform/logger"
	"gorm.io/gorm"
)

type Repos struct {
	User           repos.UserRepo
	LessonProgress repos.LessonProgressRepo
	CourseProgress repos.CourseProgressRepo
	Catalog        repos.CatalogRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		User:           repos.NewUserRepo(db, log),
		LessonProgress: repos.NewLessonProgressRepo(db, log),
		CourseProgress: repos.NewCourseProgressRepo(db, log),
		Catalog:        repos.NewCatalogRepo(db, log),
	}
}

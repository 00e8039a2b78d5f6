package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/yungbote/coursehub-backend/internal/access"
	"github.com/yungbote/coursehub-backend/internal/data/repos"
	types "github.com/yungbote/coursehub-backend/internal/domain"
	"github.com/yungbote/coursehub-backend/internal/platform/apierr"
	"github.com/yungbote/coursehub-backend/internal/platform/logger"
	"gopkg.in/yaml.v3"
)

// CatalogFile is the editorial export format read by Import.
type CatalogFile struct {
	Items []types.CatalogItem `yaml:"items"`
}

type CatalogService interface {
	GetByID(ctx context.Context, id string) (*types.CatalogItem, error)
	GetBySlug(ctx context.Context, kind types.ContentKind, slug string) (*types.CatalogItem, error)
	// LessonPosition returns the course and the zero-based position of lessonID in it, or -1
	// when the lesson is not part of the course.
	LessonPosition(ctx context.Context, courseSlug, lessonID string) (*types.CatalogItem, int, error)
	Import(ctx context.Context, r io.Reader) (int, error)
}

type catalogService struct {
	log     *logger.Logger
	catalog repos.CatalogRepo
}

func NewCatalogService(log *logger.Logger, catalog repos.CatalogRepo) CatalogService {
	return &catalogService{
		log:     log.With("service", "CatalogService"),
		catalog: catalog,
	}
}

func (s *catalogService) GetByID(ctx context.Context, id string) (*types.CatalogItem, error) {
	item, err := s.catalog.GetByID(ctx, nil, strings.TrimSpace(id))
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, apierr.NotFound("content_not_found", "content not found")
	}
	return item, nil
}

func (s *catalogService) GetBySlug(ctx context.Context, kind types.ContentKind, slug string) (*types.CatalogItem, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return nil, apierr.BadRequest("missing_slug", "slug is required")
	}
	item, err := s.catalog.GetBySlug(ctx, nil, kind, slug)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, apierr.NotFound("content_not_found", "content not found")
	}
	return item, nil
}

func (s *catalogService) LessonPosition(ctx context.Context, courseSlug, lessonID string) (*types.CatalogItem, int, error) {
	course, err := s.GetBySlug(ctx, types.KindCourse, courseSlug)
	if err != nil {
		return nil, -1, err
	}
	return course, access.LessonIndex(strings.TrimSpace(lessonID), course.LessonIDs()), nil
}

func (s *catalogService) Import(ctx context.Context, r io.Reader) (int, error) {
	var file CatalogFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return 0, nil
		}
		return 0, fmt.Errorf("decode catalog: %w", err)
	}

	for i := range file.Items {
		if err := normalizeCatalogItem(&file.Items[i]); err != nil {
			return 0, fmt.Errorf("catalog item %d: %w", i, err)
		}
	}
	n := 0
	for i := range file.Items {
		item := &file.Items[i]
		if err := s.catalog.Upsert(ctx, nil, item); err != nil {
			return n, fmt.Errorf("upsert %s: %w", item.ID, err)
		}
		n++
	}
	s.log.Info("catalog imported", "items", n)
	return n, nil
}

func normalizeCatalogItem(item *types.CatalogItem) error {
	item.ID = strings.TrimSpace(item.ID)
	item.Slug = strings.TrimSpace(item.Slug)
	item.Title = strings.TrimSpace(item.Title)
	if item.ID == "" || item.Slug == "" {
		return errors.New("id and slug are required")
	}
	kind, ok := types.ParseContentKind(strings.ToLower(strings.TrimSpace(string(item.Kind))))
	if !ok {
		return fmt.Errorf("unknown kind %q", item.Kind)
	}
	item.Kind = kind
	if kind != types.KindCourse && len(item.Lessons) > 0 {
		return fmt.Errorf("%s %q cannot have lessons", kind, item.Slug)
	}

	sort.SliceStable(item.Lessons, func(i, j int) bool {
		return item.Lessons[i].Position < item.Lessons[j].Position
	})
	seen := make(map[string]struct{}, len(item.Lessons))
	for i := range item.Lessons {
		l := &item.Lessons[i]
		l.ID = strings.TrimSpace(l.ID)
		if l.ID == "" {
			return fmt.Errorf("lesson %d of %q has no id", i, item.Slug)
		}
		if _, dup := seen[l.ID]; dup {
			return fmt.Errorf("duplicate lesson %q in %q", l.ID, item.Slug)
		}
		seen[l.ID] = struct{}{}
		l.CourseID = item.ID
		l.Position = i
	}
	return nil
}

package services

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/guitarprime/api/model"
	"github.com/guitarprime/api/policy"
)

// CourseService manages courses and their module composition. Visibility
// follows the policy layer: unapproved courses exist only for admins and
// their owning coach.
type CourseService struct {
	db *gorm.DB
}

func NewCourseService(db *gorm.DB) *CourseService {
	return &CourseService{db: db}
}

type CourseInput struct {
	ThemeID     uint   `json:"theme_id" validate:"required"`
	Title       string `json:"title" validate:"required,min=2,max=255"`
	Description string `json:"description" validate:"max=10000"`
	CoverImage  string `json:"cover_image" validate:"omitempty,url"`
	IsFree      bool   `json:"is_free"`
	Price       *int64 `json:"price" validate:"omitempty,min=0"`
}

// visibleCourses scopes a query to courses the caller may see.
func visibleCourses(q *gorm.DB, user *model.User) *gorm.DB {
	switch {
	case user != nil && user.HasRole(model.RoleAdmin):
		return q
	case user != nil && user.HasRole(model.RoleCoach):
		return q.Where("is_approved = ? OR coach_id = ?", true, user.ID)
	default:
		return q.Where("is_approved = ?", true)
	}
}

func (s *CourseService) List(ctx context.Context, user *model.User, themeID uint) ([]model.Course, error) {
	q := visibleCourses(s.db.WithContext(ctx), user).Preload("Theme")
	if themeID != 0 {
		q = q.Where("theme_id = ?", themeID)
	}
	var courses []model.Course
	if err := q.Order("created_at DESC").Find(&courses).Error; err != nil {
		return nil, fmt.Errorf("failed to list courses: %w", err)
	}
	return courses, nil
}

func (s *CourseService) Get(ctx context.Context, user *model.User, id uint) (*model.Course, error) {
	var course model.Course
	err := s.db.WithContext(ctx).Preload("Theme").First(&course, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load course: %w", err)
	}
	if !policy.CourseView(user, &course) {
		return nil, ErrForbidden
	}
	return &course, nil
}

// Modules returns the course's modules in pivot order.
func (s *CourseService) Modules(ctx context.Context, courseID uint) ([]model.Module, error) {
	var modules []model.Module
	err := s.db.WithContext(ctx).
		Joins("JOIN course_module_map ON course_module_map.module_id = modules.id").
		Where("course_module_map.course_id = ?", courseID).
		Order("course_module_map.sort_order ASC").
		Find(&modules).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list course modules: %w", err)
	}
	return modules, nil
}

// Create inserts an unapproved course owned by the caller. Admins may create
// on behalf of a coach by passing coachID; everyone else owns what they make.
func (s *CourseService) Create(ctx context.Context, user *model.User, input CourseInput, coachID uint) (*model.Course, error) {
	if !policy.CourseCreate(user) {
		return nil, ErrForbidden
	}
	owner := user.ID
	if coachID != 0 && user.HasRole(model.RoleAdmin) {
		owner = coachID
	}
	course := &model.Course{
		ThemeID:     input.ThemeID,
		CoachID:     owner,
		Title:       input.Title,
		Description: input.Description,
		CoverImage:  input.CoverImage,
		IsFreeFlag:  input.IsFree,
		Price:       input.Price,
	}
	if err := s.db.WithContext(ctx).Create(course).Error; err != nil {
		return nil, fmt.Errorf("failed to create course: %w", err)
	}
	return course, nil
}

func (s *CourseService) Update(ctx context.Context, user *model.User, id uint, input CourseInput) (*model.Course, error) {
	var course model.Course
	err := s.db.WithContext(ctx).First(&course, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load course: %w", err)
	}
	if !policy.CourseUpdate(user, &course) {
		return nil, ErrForbidden
	}

	updates := map[string]interface{}{
		"theme_id":    input.ThemeID,
		"title":       input.Title,
		"description": input.Description,
		"cover_image": input.CoverImage,
		"is_free":     input.IsFree,
		"price":       input.Price,
	}
	if err := s.db.WithContext(ctx).Model(&course).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to update course: %w", err)
	}
	return &course, nil
}

func (s *CourseService) Delete(ctx context.Context, user *model.User, id uint) error {
	var course model.Course
	err := s.db.WithContext(ctx).First(&course, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to load course: %w", err)
	}
	if !policy.CourseDelete(user, &course) {
		return ErrForbidden
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("course_id = ?", id).Delete(&model.CourseModule{}).Error; err != nil {
			return fmt.Errorf("failed to detach modules: %w", err)
		}
		if err := tx.Delete(&course).Error; err != nil {
			return fmt.Errorf("failed to delete course: %w", err)
		}
		return nil
	})
}

// Approve publishes a course to the catalog.
func (s *CourseService) Approve(ctx context.Context, user *model.User, id uint) (*model.Course, error) {
	var course model.Course
	err := s.db.WithContext(ctx).First(&course, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load course: %w", err)
	}
	if !policy.CourseApprove(user, &course) {
		return nil, ErrForbidden
	}
	if err := s.db.WithContext(ctx).Model(&course).Update("is_approved", true).Error; err != nil {
		return nil, fmt.Errorf("failed to approve course: %w", err)
	}
	return &course, nil
}

// SyncModules replaces the course's module composition with exactly the given
// ordered list: listed modules get sort_order = position+1, unlisted modules
// are detached. The swap is a single transaction so no intermediate ordering
// is ever visible.
func (s *CourseService) SyncModules(ctx context.Context, user *model.User, courseID uint, moduleIDs []uint) ([]model.Module, error) {
	var course model.Course
	err := s.db.WithContext(ctx).First(&course, courseID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load course: %w", err)
	}
	if !policy.CourseUpdate(user, &course) {
		return nil, ErrForbidden
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(moduleIDs) > 0 {
			var count int64
			if err := tx.Model(&model.Module{}).Where("id IN ?", moduleIDs).Count(&count).Error; err != nil {
				return fmt.Errorf("failed to check modules: %w", err)
			}
			if count != int64(len(moduleIDs)) {
				return ErrNotFound
			}
		}

		if err := tx.Where("course_id = ?", courseID).Delete(&model.CourseModule{}).Error; err != nil {
			return fmt.Errorf("failed to clear module order: %w", err)
		}
		for i, moduleID := range moduleIDs {
			pivot := model.CourseModule{
				CourseID: courseID,
				ModuleID: moduleID,
				Order:    i + 1,
			}
			if err := tx.Create(&pivot).Error; err != nil {
				return fmt.Errorf("failed to attach module %d: %w", moduleID, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Modules(ctx, courseID)
}

package services

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/guitarprime/api/model"
	"github.com/guitarprime/api/policy"
)

// ThemeService manages the top-level catalog grouping. Themes are public to
// browse; only admins shape them.
type ThemeService struct {
	db *gorm.DB
}

func NewThemeService(db *gorm.DB) *ThemeService {
	return &ThemeService{db: db}
}

type ThemeInput struct {
	Name        string `json:"name" validate:"required,min=2,max=255"`
	Description string `json:"description" validate:"max=5000"`
	CoverImage  string `json:"cover_image" validate:"omitempty,url"`
}

func (s *ThemeService) List(ctx context.Context) ([]model.Theme, error) {
	var themes []model.Theme
	if err := s.db.WithContext(ctx).Order("name ASC").Find(&themes).Error; err != nil {
		return nil, fmt.Errorf("failed to list themes: %w", err)
	}
	return themes, nil
}

// Get returns a theme with its courses, filtered to what the caller may see:
// unapproved courses only show for admins and their owning coach.
func (s *ThemeService) Get(ctx context.Context, user *model.User, id uint) (*model.Theme, error) {
	var theme model.Theme
	err := s.db.WithContext(ctx).First(&theme, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load theme: %w", err)
	}

	courses := s.db.WithContext(ctx).Where("theme_id = ?", id)
	switch {
	case user != nil && user.HasRole(model.RoleAdmin):
		// all courses
	case user != nil && user.HasRole(model.RoleCoach):
		courses = courses.Where("is_approved = ? OR coach_id = ?", true, user.ID)
	default:
		courses = courses.Where("is_approved = ?", true)
	}
	if err := courses.Order("created_at DESC").Find(&theme.Courses).Error; err != nil {
		return nil, fmt.Errorf("failed to load theme courses: %w", err)
	}
	return &theme, nil
}

func (s *ThemeService) Create(ctx context.Context, user *model.User, input ThemeInput) (*model.Theme, error) {
	if !policy.ThemeCreate(user) {
		return nil, ErrForbidden
	}
	theme := &model.Theme{
		Name:        input.Name,
		Description: input.Description,
		CoverImage:  input.CoverImage,
	}
	if err := s.db.WithContext(ctx).Create(theme).Error; err != nil {
		return nil, fmt.Errorf("failed to create theme: %w", err)
	}
	return theme, nil
}

func (s *ThemeService) Update(ctx context.Context, user *model.User, id uint, input ThemeInput) (*model.Theme, error) {
	var theme model.Theme
	err := s.db.WithContext(ctx).First(&theme, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load theme: %w", err)
	}
	if !policy.ThemeUpdate(user, &theme) {
		return nil, ErrForbidden
	}

	updates := map[string]interface{}{
		"name":        input.Name,
		"description": input.Description,
		"cover_image": input.CoverImage,
	}
	if err := s.db.WithContext(ctx).Model(&theme).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to update theme: %w", err)
	}
	return &theme, nil
}

func (s *ThemeService) Delete(ctx context.Context, user *model.User, id uint) error {
	if !policy.ThemeDelete(user, nil) {
		return ErrForbidden
	}
	result := s.db.WithContext(ctx).Delete(&model.Theme{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete theme: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"gorm.io/gorm"

	"github.com/guitarprime/api/model"
	"github.com/guitarprime/api/policy"
	"github.com/guitarprime/api/services/storage"
)

// ModuleService manages standalone lesson modules. A module can live in many
// courses at once; deleting it cascades through pivot rows and attachments.
type ModuleService struct {
	db   *gorm.DB
	disk storage.Disk
}

func NewModuleService(db *gorm.DB, disk storage.Disk) *ModuleService {
	return &ModuleService{db: db, disk: disk}
}

type ModuleInput struct {
	Title       string `json:"title" validate:"required,min=2,max=255"`
	Description string `json:"description" validate:"max=10000"`
	Difficulty  string `json:"difficulty" validate:"required,oneof=easy medium hard"`
	VideoURL    string `json:"video_url" validate:"omitempty,url"`
	IsFree      bool   `json:"is_free"`
	Price       *int64 `json:"price" validate:"omitempty,min=0"`
}

// List returns browsable modules, optionally filtered by a title search.
// Guests only see free modules; any authenticated user may browse the full
// catalog (consuming the payload is the entitlement engine's call, not the
// catalog's).
func (s *ModuleService) List(ctx context.Context, user *model.User, search string) ([]model.Module, error) {
	q := s.db.WithContext(ctx)
	if user == nil {
		q = q.Where("is_free = ?", true)
	}
	if search != "" {
		q = q.Where("LOWER(title) LIKE ?", "%"+strings.ToLower(search)+"%")
	}
	var modules []model.Module
	if err := q.Order("created_at DESC").Find(&modules).Error; err != nil {
		return nil, fmt.Errorf("failed to list modules: %w", err)
	}
	return modules, nil
}

func (s *ModuleService) Get(ctx context.Context, user *model.User, id uint) (*model.Module, error) {
	var mod model.Module
	err := s.db.WithContext(ctx).Preload("Attachments").First(&mod, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load module: %w", err)
	}
	if !policy.ModuleView(user, &mod) {
		return nil, ErrForbidden
	}
	return &mod, nil
}

func (s *ModuleService) Create(ctx context.Context, user *model.User, input ModuleInput) (*model.Module, error) {
	if !policy.ModuleCreate(user) {
		return nil, ErrForbidden
	}
	coachID := user.ID
	mod := &model.Module{
		CoachID:     &coachID,
		Title:       input.Title,
		Description: input.Description,
		Difficulty:  input.Difficulty,
		VideoURL:    input.VideoURL,
		IsFreeFlag:  input.IsFree,
		Price:       input.Price,
	}
	if err := s.db.WithContext(ctx).Create(mod).Error; err != nil {
		return nil, fmt.Errorf("failed to create module: %w", err)
	}
	return mod, nil
}

func (s *ModuleService) Update(ctx context.Context, user *model.User, id uint, input ModuleInput) (*model.Module, error) {
	var mod model.Module
	err := s.db.WithContext(ctx).First(&mod, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load module: %w", err)
	}
	if !policy.ModuleUpdate(user, &mod) {
		return nil, ErrForbidden
	}

	updates := map[string]interface{}{
		"title":       input.Title,
		"description": input.Description,
		"difficulty":  input.Difficulty,
		"video_url":   input.VideoURL,
		"is_free":     input.IsFree,
		"price":       input.Price,
	}
	if err := s.db.WithContext(ctx).Model(&mod).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to update module: %w", err)
	}
	return &mod, nil
}

// Delete removes a module, its pivot rows, and its attachments. Attachment
// storage objects are cleaned up best-effort; a missing or unreachable object
// never blocks the delete.
func (s *ModuleService) Delete(ctx context.Context, user *model.User, id uint) error {
	var mod model.Module
	err := s.db.WithContext(ctx).Preload("Attachments").First(&mod, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to load module: %w", err)
	}
	if !policy.ModuleDelete(user, &mod) {
		return ErrForbidden
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("module_id = ?", id).Delete(&model.CourseModule{}).Error; err != nil {
			return fmt.Errorf("failed to detach module: %w", err)
		}
		if err := tx.Where("module_id = ?", id).Delete(&model.Attachment{}).Error; err != nil {
			return fmt.Errorf("failed to delete attachments: %w", err)
		}
		if err := tx.Delete(&mod).Error; err != nil {
			return fmt.Errorf("failed to delete module: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, att := range mod.Attachments {
		if err := s.disk.Delete(ctx, att.Path); err != nil {
			log.Printf("[WARN] failed to remove stored object %s for attachment %d: %v", att.Path, att.ID, err)
		}
	}
	return nil
}

package services

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/guitarprime/api/model"
)

// AccessService is the entitlement engine. It answers one question: may this
// user consume this content? Checks run in a fixed precedence and the first
// grant wins:
//
//	admin > free content > coach ownership > completed purchase > deny
//
// A nil user is a guest and can only reach free content.
type AccessService struct {
	db *gorm.DB
}

func NewAccessService(db *gorm.DB) *AccessService {
	return &AccessService{db: db}
}

// CanAccessCourse reports whether user may consume course content.
func (s *AccessService) CanAccessCourse(ctx context.Context, user *model.User, course *model.Course) (bool, error) {
	if user != nil && user.HasRole(model.RoleAdmin) {
		return true, nil
	}
	if course.IsFree() {
		return true, nil
	}
	if user == nil {
		return false, nil
	}
	if user.HasRole(model.RoleCoach) && course.CoachID == user.ID {
		return true, nil
	}
	return s.HasPurchased(ctx, user.ID, model.PurchasableCourse, course.ID)
}

// CanAccessModule reports whether user may consume module content. A module
// is reachable through a direct purchase, through ownership, or through any
// purchased or owned course that contains it.
func (s *AccessService) CanAccessModule(ctx context.Context, user *model.User, mod *model.Module) (bool, error) {
	if user != nil && user.HasRole(model.RoleAdmin) {
		return true, nil
	}
	if mod.IsFree() {
		return true, nil
	}
	if user == nil {
		return false, nil
	}
	if user.HasRole(model.RoleCoach) {
		if mod.OwnedBy(user.ID) {
			return true, nil
		}
		owns, err := s.moduleInOwnedCourse(ctx, user.ID, mod.ID)
		if err != nil {
			return false, err
		}
		if owns {
			return true, nil
		}
	}

	purchased, err := s.HasPurchased(ctx, user.ID, model.PurchasableModule, mod.ID)
	if err != nil {
		return false, err
	}
	if purchased {
		return true, nil
	}
	return s.moduleInPurchasedCourse(ctx, user.ID, mod.ID)
}

// HasPurchased reports whether the user holds a completed purchase for the
// exact content item.
func (s *AccessService) HasPurchased(ctx context.Context, userID uint, kind model.PurchasableKind, purchasableID uint) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&model.Purchase{}).
		Where("user_id = ? AND purchasable_type = ? AND purchasable_id = ? AND status = ?",
			userID, kind, purchasableID, model.StatusCompleted).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check purchase: %w", err)
	}
	return count > 0, nil
}

// moduleInOwnedCourse reports whether the module sits in any course the coach
// owns.
func (s *AccessService) moduleInOwnedCourse(ctx context.Context, coachID, moduleID uint) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&model.CourseModule{}).
		Joins("JOIN courses ON courses.id = course_module_map.course_id AND courses.deleted_at IS NULL").
		Where("course_module_map.module_id = ? AND courses.coach_id = ?", moduleID, coachID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check course ownership: %w", err)
	}
	return count > 0, nil
}

// moduleInPurchasedCourse reports whether the module sits in any course the
// user holds a completed purchase for.
func (s *AccessService) moduleInPurchasedCourse(ctx context.Context, userID, moduleID uint) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&model.CourseModule{}).
		Joins("JOIN purchases ON purchases.purchasable_id = course_module_map.course_id AND purchases.deleted_at IS NULL").
		Where("course_module_map.module_id = ?", moduleID).
		Where("purchases.user_id = ? AND purchases.purchasable_type = ? AND purchases.status = ?",
			userID, model.PurchasableCourse, model.StatusCompleted).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check course purchase: %w", err)
	}
	return count > 0, nil
}

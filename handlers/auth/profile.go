package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/guitarprime/api/utils/middleware"
	"github.com/guitarprime/api/utils/response"
	"github.com/guitarprime/api/utils/validation"
)

// Profile returns the authenticated user's own record.
func (h *AuthHandler) Profile(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)
	if user == nil {
		return response.Unauthorized(c, "Authentication required")
	}
	return response.Success(c, toUserResponse(user))
}

// UpdateProfileRequest carries the editable profile fields.
type UpdateProfileRequest struct {
	Name   string `json:"name" validate:"omitempty,min=2,max=255"`
	Avatar string `json:"avatar" validate:"omitempty,url"`
}

// UpdateProfile lets a user edit their own name and avatar. Email, role, and
// password have their own flows.
func (h *AuthHandler) UpdateProfile(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)
	if user == nil {
		return response.Unauthorized(c, "Authentication required")
	}

	var req UpdateProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	updates := map[string]interface{}{}
	if req.Name != "" {
		updates["name"] = validation.SanitizeString(req.Name)
	}
	if req.Avatar != "" {
		updates["avatar"] = req.Avatar
	}
	if len(updates) > 0 {
		if err := h.db.Model(user).Updates(updates).Error; err != nil {
			return response.InternalServerError(c, "Failed to update profile")
		}
	}
	return response.Success(c, toUserResponse(user))
}

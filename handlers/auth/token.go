package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/guitarprime/api/model"
	authutil "github.com/guitarprime/api/utils/auth"
	"github.com/guitarprime/api/utils/middleware"
	"github.com/guitarprime/api/utils/response"
)

// RefreshRequest carries a refresh token
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// Refresh exchanges a valid refresh token for a new access token.
func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	var req RefreshRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if req.RefreshToken == "" {
		return response.BadRequest(c, "Refresh token is required")
	}

	claims, err := h.jwtManager.ValidateToken(req.RefreshToken)
	if err != nil {
		return response.Unauthorized(c, "Invalid refresh token")
	}

	revoked, err := h.blacklistService.IsTokenRevoked(c.Context(), claims.ID)
	if err != nil {
		return response.InternalServerError(c, "Failed to check token")
	}
	if revoked {
		return response.Unauthorized(c, "Refresh token has been revoked")
	}

	// the token version check invalidates tokens minted before a forced
	// logout-everywhere
	var user model.User
	if err := h.db.First(&user, claims.UserID).Error; err != nil {
		return response.Unauthorized(c, "User no longer exists")
	}
	if user.TokenVersion != claims.TokenVersion {
		return response.Unauthorized(c, "Refresh token is no longer valid")
	}

	accessToken, _, err := h.jwtManager.RefreshAccessToken(req.RefreshToken, user.TokenVersion)
	if err != nil {
		return response.Unauthorized(c, "Invalid refresh token")
	}
	return response.Success(c, fiber.Map{
		"access_token": accessToken,
		"expires_in":   24 * 60 * 60,
	})
}

// Logout revokes the presented access token.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)
	claims, _ := c.Locals("claims").(*authutil.Claims)
	if user == nil || claims == nil {
		return response.Unauthorized(c, "Authentication required")
	}

	if err := h.blacklistService.RevokeToken(c.Context(), claims.ID, user.ID, claims.ExpiresAt.Time, "logout"); err != nil {
		return response.InternalServerError(c, "Failed to revoke token")
	}
	return response.SuccessWithMessage(c, "Logged out", nil)
}

// LogoutEverywhere bumps the user's token version, invalidating every token
// issued so far.
func (h *AuthHandler) LogoutEverywhere(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)
	if user == nil {
		return response.Unauthorized(c, "Authentication required")
	}

	if err := h.db.Model(user).Update("token_version", user.TokenVersion+1).Error; err != nil {
		return response.InternalServerError(c, "Failed to revoke sessions")
	}
	if err := h.blacklistService.RevokeAllUserTokens(c.Context(), user.ID); err != nil {
		return response.InternalServerError(c, "Failed to revoke sessions")
	}
	return response.SuccessWithMessage(c, "Logged out everywhere", nil)
}

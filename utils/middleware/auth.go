package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/guitarprime/api/model"
	"github.com/guitarprime/api/utils/auth"
	"github.com/guitarprime/api/utils/response"
	"gorm.io/gorm"
)

// AuthMiddleware handles JWT authentication
type AuthMiddleware struct {
	jwtManager       *auth.JWTManager
	blacklistService *auth.BlacklistService
	db               *gorm.DB
}

// NewAuthMiddleware creates a new auth middleware
func NewAuthMiddleware(jwtManager *auth.JWTManager, db *gorm.DB) *AuthMiddleware {
	return &AuthMiddleware{
		jwtManager:       jwtManager,
		blacklistService: auth.NewBlacklistService(db),
		db:               db,
	}
}

// CurrentUser returns the authenticated user stored by Required/Optional, or
// nil for a guest request.
func CurrentUser(c *fiber.Ctx) *model.User {
	user, _ := c.Locals("user").(*model.User)
	return user
}

func (m *AuthMiddleware) resolveUser(c *fiber.Ctx, tokenString string) (*model.User, *auth.Claims, error) {
	claims, err := m.jwtManager.ValidateToken(tokenString)
	if err != nil {
		return nil, nil, err
	}

	if claims.TokenType != "access" {
		return nil, nil, auth.ErrInvalidToken
	}

	isRevoked, err := m.blacklistService.IsTokenRevoked(c.Context(), claims.ID)
	if err != nil {
		return nil, nil, err
	}
	if isRevoked {
		return nil, nil, auth.ErrInvalidToken
	}

	var user model.User
	if err := m.db.First(&user, claims.UserID).Error; err != nil {
		return nil, nil, err
	}

	// Token version mismatch means all tokens were revoked
	if user.TokenVersion != claims.TokenVersion {
		return nil, nil, auth.ErrInvalidToken
	}

	return &user, claims, nil
}

func bearerToken(c *fiber.Ctx) (string, bool) {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return "", false
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", false
	}
	return parts[1], true
}

// Required is middleware that requires a valid JWT token
func (m *AuthMiddleware) Required() fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString, ok := bearerToken(c)
		if !ok {
			return response.Unauthorized(c, "Missing or malformed authorization token")
		}

		user, claims, err := m.resolveUser(c, tokenString)
		if err != nil {
			if err == auth.ErrExpiredToken {
				return response.Unauthorized(c, "Token has expired")
			}
			return response.Unauthorized(c, "Invalid token")
		}

		c.Locals("user", user)
		c.Locals("user_id", user.ID)
		c.Locals("user_role", user.Role)
		c.Locals("claims", claims)
		c.Locals("token_jti", claims.ID)

		return c.Next()
	}
}

// Optional is middleware that allows requests with or without a token. The
// guest paths (theme browsing, free module discovery) rely on this.
func (m *AuthMiddleware) Optional() fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString, ok := bearerToken(c)
		if !ok {
			return c.Next()
		}

		user, claims, err := m.resolveUser(c, tokenString)
		if err != nil {
			return c.Next()
		}

		c.Locals("user", user)
		c.Locals("user_id", user.ID)
		c.Locals("user_role", user.Role)
		c.Locals("claims", claims)
		c.Locals("token_jti", claims.ID)

		return c.Next()
	}
}

// RequireRole is middleware that requires one of the given roles
func (m *AuthMiddleware) RequireRole(roles ...model.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user := CurrentUser(c)
		if user == nil {
			return response.Forbidden(c, "Access denied")
		}

		if user.HasAnyRole(roles...) {
			return c.Next()
		}

		return response.Forbidden(c, "Insufficient permissions")
	}
}

// Package theme exposes the catalog's theme endpoints. Browsing is public;
// mutations are admin-only and enforced in the service layer.
package theme

import (
	"github.com/gofiber/fiber/v2"

	"github.com/guitarprime/api/handlers"
	"github.com/guitarprime/api/services"
	"github.com/guitarprime/api/utils/middleware"
	"github.com/guitarprime/api/utils/response"
	"github.com/guitarprime/api/utils/validation"
)

type ThemeHandler struct {
	themes    *services.ThemeService
	validator *validation.Validator
}

func NewThemeHandler(themes *services.ThemeService) *ThemeHandler {
	return &ThemeHandler{themes: themes, validator: validation.NewValidator()}
}

func (h *ThemeHandler) List(c *fiber.Ctx) error {
	themes, err := h.themes.List(c.Context())
	if err != nil {
		return handlers.ServiceError(c, err)
	}
	return response.Success(c, themes)
}

func (h *ThemeHandler) Get(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return response.BadRequest(c, "Invalid theme id")
	}
	theme, err := h.themes.Get(c.Context(), middleware.CurrentUser(c), uint(id))
	if err != nil {
		return handlers.ServiceError(c, err)
	}
	return response.Success(c, theme)
}

func (h *ThemeHandler) Create(c *fiber.Ctx) error {
	var input services.ThemeInput
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(input); err != nil {
		return response.ValidationError(c, err)
	}

	theme, err := h.themes.Create(c.Context(), middleware.CurrentUser(c), input)
	if err != nil {
		return handlers.ServiceError(c, err)
	}
	return response.Created(c, theme)
}

func (h *ThemeHandler) Update(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return response.BadRequest(c, "Invalid theme id")
	}
	var input services.ThemeInput
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(input); err != nil {
		return response.ValidationError(c, err)
	}

	theme, err := h.themes.Update(c.Context(), middleware.CurrentUser(c), uint(id), input)
	if err != nil {
		return handlers.ServiceError(c, err)
	}
	return response.Success(c, theme)
}

func (h *ThemeHandler) Delete(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return response.BadRequest(c, "Invalid theme id")
	}
	if err := h.themes.Delete(c.Context(), middleware.CurrentUser(c), uint(id)); err != nil {
		return handlers.ServiceError(c, err)
	}
	return response.NoContent(c)
}

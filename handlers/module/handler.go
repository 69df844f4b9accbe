// Package module exposes module endpoints. The metadata view is open to the
// catalog rules; the content view (video URL, attachments) goes through the
// entitlement engine on every request.
package module

import (
	"github.com/gofiber/fiber/v2"

	"github.com/guitarprime/api/handlers"
	"github.com/guitarprime/api/model"
	"github.com/guitarprime/api/services"
	"github.com/guitarprime/api/utils/middleware"
	"github.com/guitarprime/api/utils/response"
	"github.com/guitarprime/api/utils/validation"
)

type ModuleHandler struct {
	modules   *services.ModuleService
	access    *services.AccessService
	validator *validation.Validator
}

func NewModuleHandler(modules *services.ModuleService, access *services.AccessService) *ModuleHandler {
	return &ModuleHandler{
		modules:   modules,
		access:    access,
		validator: validation.NewValidator(),
	}
}

// MetadataView strips the protected payload from a module for callers who
// may browse but not consume.
func MetadataView(mod *model.Module) fiber.Map {
	return fiber.Map{
		"id":          mod.ID,
		"title":       mod.Title,
		"description": mod.Description,
		"difficulty":  mod.Difficulty,
		"is_free":     mod.IsFree(),
		"price":       mod.Price,
		"coach_id":    mod.CoachID,
		"created_at":  mod.CreatedAt,
		"updated_at":  mod.UpdatedAt,
	}
}

func (h *ModuleHandler) List(c *fiber.Ctx) error {
	modules, err := h.modules.List(c.Context(), middleware.CurrentUser(c), c.Query("search"))
	if err != nil {
		return handlers.ServiceError(c, err)
	}
	views := make([]fiber.Map, len(modules))
	for i := range modules {
		views[i] = MetadataView(&modules[i])
	}
	return response.Success(c, views)
}

// Get returns the module. Entitled callers get the full payload (video URL,
// attachments); everyone else gets metadata only, evaluated fresh because
// entitlements change out-of-band via webhooks.
func (h *ModuleHandler) Get(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return response.BadRequest(c, "Invalid module id")
	}
	user := middleware.CurrentUser(c)

	mod, err := h.modules.Get(c.Context(), user, uint(id))
	if err != nil {
		return handlers.ServiceError(c, err)
	}
	entitled, err := h.access.CanAccessModule(c.Context(), user, mod)
	if err != nil {
		return handlers.ServiceError(c, err)
	}

	if !entitled {
		view := MetadataView(mod)
		view["can_access"] = false
		return response.Success(c, view)
	}
	return response.Success(c, fiber.Map{
		"module":     mod,
		"can_access": true,
	})
}

func (h *ModuleHandler) Create(c *fiber.Ctx) error {
	var input services.ModuleInput
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(input); err != nil {
		return response.ValidationError(c, err)
	}

	mod, err := h.modules.Create(c.Context(), middleware.CurrentUser(c), input)
	if err != nil {
		return handlers.ServiceError(c, err)
	}
	return response.Created(c, mod)
}

func (h *ModuleHandler) Update(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return response.BadRequest(c, "Invalid module id")
	}
	var input services.ModuleInput
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(input); err != nil {
		return response.ValidationError(c, err)
	}

	mod, err := h.modules.Update(c.Context(), middleware.CurrentUser(c), uint(id), input)
	if err != nil {
		return handlers.ServiceError(c, err)
	}
	return response.Success(c, mod)
}

func (h *ModuleHandler) Delete(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return response.BadRequest(c, "Invalid module id")
	}
	if err := h.modules.Delete(c.Context(), middleware.CurrentUser(c), uint(id)); err != nil {
		return handlers.ServiceError(c, err)
	}
	return response.NoContent(c)
}

// Package course exposes course endpoints, including the entitlement-gated
// content view and module composition.
package course

import (
	"github.com/gofiber/fiber/v2"

	"github.com/guitarprime/api/handlers"
	module_handlers "github.com/guitarprime/api/handlers/module"
	"github.com/guitarprime/api/services"
	"github.com/guitarprime/api/utils/middleware"
	"github.com/guitarprime/api/utils/response"
	"github.com/guitarprime/api/utils/validation"
)

type CourseHandler struct {
	courses   *services.CourseService
	access    *services.AccessService
	validator *validation.Validator
}

func NewCourseHandler(courses *services.CourseService, access *services.AccessService) *CourseHandler {
	return &CourseHandler{
		courses:   courses,
		access:    access,
		validator: validation.NewValidator(),
	}
}

func (h *CourseHandler) List(c *fiber.Ctx) error {
	themeID := c.QueryInt("theme_id", 0)
	courses, err := h.courses.List(c.Context(), middleware.CurrentUser(c), uint(themeID))
	if err != nil {
		return handlers.ServiceError(c, err)
	}
	return response.Success(c, courses)
}

// Get returns course metadata plus whether the caller is entitled to consume
// the content. The metadata view never leaks purchased-only fields.
func (h *CourseHandler) Get(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return response.BadRequest(c, "Invalid course id")
	}
	user := middleware.CurrentUser(c)

	course, err := h.courses.Get(c.Context(), user, uint(id))
	if err != nil {
		return handlers.ServiceError(c, err)
	}
	entitled, err := h.access.CanAccessCourse(c.Context(), user, course)
	if err != nil {
		return handlers.ServiceError(c, err)
	}
	return response.Success(c, fiber.Map{
		"course":     course,
		"can_access": entitled,
	})
}

// Modules returns the course's ordered modules as metadata only. The video
// URL and attachments are protected payload; consuming them goes through the
// module endpoint, which checks entitlement per request.
func (h *CourseHandler) Modules(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return response.BadRequest(c, "Invalid course id")
	}
	user := middleware.CurrentUser(c)

	if _, err := h.courses.Get(c.Context(), user, uint(id)); err != nil {
		return handlers.ServiceError(c, err)
	}
	modules, err := h.courses.Modules(c.Context(), uint(id))
	if err != nil {
		return handlers.ServiceError(c, err)
	}
	views := make([]fiber.Map, len(modules))
	for i := range modules {
		views[i] = module_handlers.MetadataView(&modules[i])
	}
	return response.Success(c, views)
}

type createCourseRequest struct {
	services.CourseInput
	CoachID uint `json:"coach_id"` // admin-only override
}

func (h *CourseHandler) Create(c *fiber.Ctx) error {
	var req createCourseRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req.CourseInput); err != nil {
		return response.ValidationError(c, err)
	}

	course, err := h.courses.Create(c.Context(), middleware.CurrentUser(c), req.CourseInput, req.CoachID)
	if err != nil {
		return handlers.ServiceError(c, err)
	}
	return response.Created(c, course)
}

func (h *CourseHandler) Update(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return response.BadRequest(c, "Invalid course id")
	}
	var input services.CourseInput
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(input); err != nil {
		return response.ValidationError(c, err)
	}

	course, err := h.courses.Update(c.Context(), middleware.CurrentUser(c), uint(id), input)
	if err != nil {
		return handlers.ServiceError(c, err)
	}
	return response.Success(c, course)
}

func (h *CourseHandler) Delete(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return response.BadRequest(c, "Invalid course id")
	}
	if err := h.courses.Delete(c.Context(), middleware.CurrentUser(c), uint(id)); err != nil {
		return handlers.ServiceError(c, err)
	}
	return response.NoContent(c)
}

func (h *CourseHandler) Approve(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return response.BadRequest(c, "Invalid course id")
	}
	course, err := h.courses.Approve(c.Context(), middleware.CurrentUser(c), uint(id))
	if err != nil {
		return handlers.ServiceError(c, err)
	}
	return response.Success(c, course)
}

type syncModulesRequest struct {
	ModuleIDs []uint `json:"module_ids"`
}

// SyncModules replaces the course's module list and ordering in one shot.
func (h *CourseHandler) SyncModules(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return response.BadRequest(c, "Invalid course id")
	}
	var req syncModulesRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	modules, err := h.courses.SyncModules(c.Context(), middleware.CurrentUser(c), uint(id), req.ModuleIDs)
	if err != nil {
		return handlers.ServiceError(c, err)
	}
	return response.Success(c, modules)
}

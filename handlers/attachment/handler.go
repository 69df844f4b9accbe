// Package attachment exposes upload, rename, delete, and the entitlement-
// gated download endpoint for module attachments.
package attachment

import (
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/guitarprime/api/handlers"
	"github.com/guitarprime/api/services"
	"github.com/guitarprime/api/utils/middleware"
	"github.com/guitarprime/api/utils/response"
)

type AttachmentHandler struct {
	attachments *services.AttachmentService
	access      *services.AccessService
}

func NewAttachmentHandler(attachments *services.AttachmentService, access *services.AccessService) *AttachmentHandler {
	return &AttachmentHandler{attachments: attachments, access: access}
}

// maxAttachmentSize bounds uploads at 100 MB.
const maxAttachmentSize = 100 << 20

// Upload stores a multipart file as an attachment of the module in the path.
func (h *AttachmentHandler) Upload(c *fiber.Ctx) error {
	moduleID, err := c.ParamsInt("id")
	if err != nil || moduleID <= 0 {
		return response.BadRequest(c, "Invalid module id")
	}

	file, err := c.FormFile("file")
	if err != nil {
		return response.BadRequest(c, "Missing file upload")
	}
	if file.Size > maxAttachmentSize {
		return response.BadRequest(c, "File is too large")
	}
	name := c.FormValue("name", file.Filename)

	src, err := file.Open()
	if err != nil {
		return response.BadRequest(c, "Unreadable file upload")
	}
	defer src.Close()

	attachment, err := h.attachments.Upload(c.Context(), middleware.CurrentUser(c), uint(moduleID), name, file.Filename, src, file.Size)
	if err != nil {
		return handlers.ServiceError(c, err)
	}
	return response.Created(c, attachment)
}

type renameRequest struct {
	Name string `json:"name"`
}

func (h *AttachmentHandler) Rename(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return response.BadRequest(c, "Invalid attachment id")
	}
	var req renameRequest
	if err := c.BodyParser(&req); err != nil || req.Name == "" {
		return response.BadRequest(c, "A non-empty name is required")
	}

	attachment, err := h.attachments.Rename(c.Context(), middleware.CurrentUser(c), uint(id), req.Name)
	if err != nil {
		return handlers.ServiceError(c, err)
	}
	return response.Success(c, attachment)
}

func (h *AttachmentHandler) Delete(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return response.BadRequest(c, "Invalid attachment id")
	}
	if err := h.attachments.Delete(c.Context(), middleware.CurrentUser(c), uint(id)); err != nil {
		return handlers.ServiceError(c, err)
	}
	return response.NoContent(c)
}

// Download streams the attachment to an entitled caller. The entitlement
// check runs against the owning module on every request.
func (h *AttachmentHandler) Download(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return response.BadRequest(c, "Invalid attachment id")
	}
	user := middleware.CurrentUser(c)

	_, mod, err := h.attachments.Describe(c.Context(), uint(id))
	if err != nil {
		return handlers.ServiceError(c, err)
	}
	entitled, err := h.access.CanAccessModule(c.Context(), user, mod)
	if err != nil {
		return handlers.ServiceError(c, err)
	}
	if !entitled {
		return response.Forbidden(c, "Purchase required to download this attachment")
	}

	download, _, err := h.attachments.Fetch(c.Context(), uint(id))
	if err != nil {
		return handlers.ServiceError(c, err)
	}

	c.Set(fiber.HeaderContentType, download.MimeType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", download.Name))
	return c.Send(download.Data)
}

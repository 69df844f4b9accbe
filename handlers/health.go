// Package handlers holds the HTTP layer shared pieces; each resource's
// endpoints live in their own subpackage.
package handlers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/guitarprime/api/database"
	"github.com/guitarprime/api/services"
	"github.com/guitarprime/api/services/payment"
	"github.com/guitarprime/api/utils/response"
)

// ServiceError translates domain errors into HTTP responses. Anything
// unrecognized is a 500 with a generic message; details stay in the logs.
func ServiceError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrNotFound):
		return response.NotFound(c, "Resource not found")
	case errors.Is(err, services.ErrForbidden):
		return response.Forbidden(c, "You are not allowed to perform this action")
	case errors.Is(err, services.ErrFreeContent):
		return response.UnprocessableEntity(c, "Content is free, no purchase needed")
	case errors.Is(err, services.ErrAlreadyPurchased):
		return response.Conflict(c, "Content already purchased")
	case errors.Is(err, services.ErrUnknownProvider):
		return response.BadRequest(c, "Unknown payment provider")
	case errors.Is(err, services.ErrNotPending):
		return response.UnprocessableEntity(c, "Purchase is not pending")
	case errors.Is(err, services.ErrProviderMismatch):
		return response.BadRequest(c, "Purchase belongs to a different payment provider")
	case errors.Is(err, payment.ErrInvalidSignature):
		return response.UnprocessableEntity(c, "Payment signature verification failed")
	default:
		return response.InternalServerError(c, "Something went wrong")
	}
}

// HealthHandler reports service liveness and database reachability.
type HealthHandler struct {
	storage database.Storage
}

func NewHealthHandler(storage database.Storage) *HealthHandler {
	return &HealthHandler{storage: storage}
}

func (h *HealthHandler) Check(c *fiber.Ctx) error {
	status := "ok"
	dbStatus := "ok"
	if err := h.storage.HealthCheck(); err != nil {
		status = "degraded"
		dbStatus = err.Error()
	}
	return response.Success(c, fiber.Map{
		"status":    status,
		"database":  dbStatus,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// Package purchase exposes the paywall endpoints: starting a checkout, the
// synchronous completion paths (Stripe return, Razorpay verify), cancel, and
// purchase history.
package purchase

import (
	"github.com/gofiber/fiber/v2"

	"github.com/guitarprime/api/handlers"
	"github.com/guitarprime/api/model"
	"github.com/guitarprime/api/policy"
	"github.com/guitarprime/api/services"
	"github.com/guitarprime/api/utils/middleware"
	"github.com/guitarprime/api/utils/response"
	"github.com/guitarprime/api/utils/validation"
)

type PurchaseHandler struct {
	purchases *services.PurchaseService
	validator *validation.Validator
}

func NewPurchaseHandler(purchases *services.PurchaseService) *PurchaseHandler {
	return &PurchaseHandler{purchases: purchases, validator: validation.NewValidator()}
}

// List returns the caller's own purchase history.
func (h *PurchaseHandler) List(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)
	if !policy.PurchaseViewAny(user) {
		return response.Forbidden(c, "Only students have a purchase history")
	}
	purchases, err := h.purchases.List(c.Context(), user.ID)
	if err != nil {
		return handlers.ServiceError(c, err)
	}
	return response.Success(c, purchases)
}

func (h *PurchaseHandler) Get(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return response.BadRequest(c, "Invalid purchase id")
	}
	purchase, err := h.purchases.Get(c.Context(), middleware.CurrentUser(c), uint(id))
	if err != nil {
		return handlers.ServiceError(c, err)
	}
	return response.Success(c, purchase)
}

type createRequest struct {
	PurchasableType string `json:"purchasable_type" validate:"required,oneof=course module"`
	PurchasableID   uint   `json:"purchasable_id" validate:"required"`
	Provider        string `json:"provider" validate:"required,oneof=stripe razorpay"`
}

// Create starts a purchase and returns the provider checkout payload.
func (h *PurchaseHandler) Create(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)
	if !policy.PurchaseCreate(user) {
		return response.Forbidden(c, "Only students can purchase content")
	}

	var req createRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	result, err := h.purchases.Create(c.Context(), user,
		model.PurchasableKind(req.PurchasableType), req.PurchasableID,
		model.PaymentProvider(req.Provider))
	if err != nil {
		return handlers.ServiceError(c, err)
	}
	return response.Created(c, result)
}

// Success is the Stripe return path: the browser lands here with the session
// id and the purchase is confirmed against the provider.
func (h *PurchaseHandler) Success(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return response.BadRequest(c, "Invalid purchase id")
	}
	sessionID := c.Query("session_id")
	if sessionID == "" {
		return response.BadRequest(c, "Missing session_id")
	}

	purchase, err := h.purchases.ConfirmStripeReturn(c.Context(), middleware.CurrentUser(c), uint(id), sessionID)
	if err != nil {
		return handlers.ServiceError(c, err)
	}
	return response.Success(c, purchase)
}

type verifyRequest struct {
	RazorpayOrderID   string `json:"razorpay_order_id" validate:"required"`
	RazorpayPaymentID string `json:"razorpay_payment_id" validate:"required"`
	RazorpaySignature string `json:"razorpay_signature" validate:"required"`
}

// Verify is the Razorpay callback path: the checkout widget posts the signed
// result and the purchase completes if the signature holds.
func (h *PurchaseHandler) Verify(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return response.BadRequest(c, "Invalid purchase id")
	}
	var req verifyRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	purchase, err := h.purchases.VerifyRazorpay(c.Context(), middleware.CurrentUser(c), uint(id),
		req.RazorpayOrderID, req.RazorpayPaymentID, req.RazorpaySignature)
	if err != nil {
		return handlers.ServiceError(c, err)
	}
	return response.Success(c, purchase)
}

// Cancel abandons a pending purchase.
func (h *PurchaseHandler) Cancel(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return response.BadRequest(c, "Invalid purchase id")
	}
	purchase, err := h.purchases.Cancel(c.Context(), middleware.CurrentUser(c), uint(id))
	if err != nil {
		return handlers.ServiceError(c, err)
	}
	return response.Success(c, purchase)
}

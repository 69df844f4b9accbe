// Package webhook receives provider callbacks. The handler only verifies the
// signature on the raw body and enqueues the event; the queue worker mutates
// purchases out-of-band, so the provider gets its 200 immediately and can
// retry safely.
package webhook

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/guitarprime/api/services/payment"
	"github.com/guitarprime/api/services/queue"
	"github.com/guitarprime/api/utils/response"
)

// Signature header names the providers use.
const (
	stripeSignatureHeader   = "Stripe-Signature"
	razorpaySignatureHeader = "X-Razorpay-Signature"
)

type WebhookHandler struct {
	stripe   payment.Provider
	razorpay payment.Provider
	queue    *queue.WebhookQueue
}

func NewWebhookHandler(stripe, razorpay payment.Provider, q *queue.WebhookQueue) *WebhookHandler {
	return &WebhookHandler{stripe: stripe, razorpay: razorpay, queue: q}
}

// handle runs the shared flow: verify against the raw body, enqueue if the
// event type matters, 200 otherwise. A bad signature is a 400 so the
// provider's dashboard surfaces the misconfiguration.
func (h *WebhookHandler) handle(c *fiber.Ctx, provider payment.Provider, signature string) error {
	if signature == "" {
		return response.BadRequest(c, "Missing signature header")
	}

	// Body() is the raw payload; signature verification must see the exact
	// bytes the provider signed.
	event, err := provider.HandleWebhook(c.Body(), signature)
	if err != nil {
		if errors.Is(err, payment.ErrInvalidSignature) || errors.Is(err, payment.ErrSecretNotConfigured) {
			log.Printf("[WARN] webhook: rejected %s payload: %v", provider.Name(), err)
			return response.BadRequest(c, "Invalid webhook signature")
		}
		log.Printf("[WARN] webhook: malformed %s payload: %v", provider.Name(), err)
		return response.BadRequest(c, "Malformed webhook payload")
	}
	if event == nil {
		// verified but irrelevant event type
		return response.Success(c, fiber.Map{"received": true})
	}

	if err := h.queue.Enqueue(c.Context(), *event); err != nil {
		// Let the provider retry rather than dropping a completion.
		log.Printf("[ERROR] webhook: failed to enqueue %s event: %v", provider.Name(), err)
		return response.InternalServerError(c, "Failed to queue webhook")
	}
	return response.Success(c, fiber.Map{"received": true})
}

func (h *WebhookHandler) Stripe(c *fiber.Ctx) error {
	return h.handle(c, h.stripe, c.Get(stripeSignatureHeader))
}

func (h *WebhookHandler) Razorpay(c *fiber.Ctx) error {
	return h.handle(c, h.razorpay, c.Get(razorpaySignatureHeader))
}

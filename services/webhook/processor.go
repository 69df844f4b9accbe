// Package webhook turns verified provider events into purchase completions.
// The HTTP layer only verifies signatures and enqueues; the worker here does
// the actual state change, so provider retries and slow databases never hold
// a webhook response open.
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/guitarprime/api/model"
	"github.com/guitarprime/api/services"
	"github.com/guitarprime/api/services/payment"
	"github.com/guitarprime/api/services/queue"
)

// Processor applies one verified webhook event to the purchase it references.
// Events that cannot be acted on (unknown correlation id, missing purchase,
// payment not captured) are logged and dropped; only infrastructure errors
// propagate so the queue can retry them.
type Processor struct {
	purchases *services.PurchaseService
}

func NewProcessor(purchases *services.PurchaseService) *Processor {
	return &Processor{purchases: purchases}
}

func (p *Processor) Process(ctx context.Context, job *queue.Job) error {
	switch job.Event.Provider {
	case model.ProviderStripe:
		return p.processStripe(ctx, job.Event)
	case model.ProviderRazorpay:
		return p.processRazorpay(ctx, job.Event)
	default:
		log.Printf("[WARN] webhook: unknown provider %q, dropping job", job.Event.Provider)
		return nil
	}
}

// processStripe completes a purchase from a checkout.session.completed event.
// The session id is the correlation key; payment_status must be "paid".
func (p *Processor) processStripe(ctx context.Context, event payment.WebhookEvent) error {
	var session struct {
		ID            string `json:"id"`
		PaymentStatus string `json:"payment_status"`
		PaymentIntent string `json:"payment_intent"`
	}
	if err := json.Unmarshal(event.Payload, &session); err != nil {
		log.Printf("[WARN] webhook: malformed stripe session payload, dropping: %v", err)
		return nil
	}
	if session.ID == "" {
		log.Printf("[WARN] webhook: stripe event without session id, dropping")
		return nil
	}

	purchase, err := p.purchases.FindByCorrelationID(ctx, model.ProviderStripe, session.ID)
	if errors.Is(err, services.ErrNotFound) {
		log.Printf("[WARN] webhook: no purchase for stripe session %s, dropping", session.ID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("lookup purchase for session %s: %w", session.ID, err)
	}
	if purchase.IsCompleted() {
		log.Printf("[INFO] webhook: purchase %d already completed, skipping", purchase.ID)
		return nil
	}
	if session.PaymentStatus != "paid" {
		// Not captured yet; a later event or the reconciler settles it.
		log.Printf("[WARN] webhook: stripe session %s not paid (status=%s), purchase %d stays pending",
			session.ID, session.PaymentStatus, purchase.ID)
		return nil
	}

	paymentID := session.PaymentIntent
	if paymentID == "" {
		paymentID = session.ID
	}
	if err := p.purchases.MarkCompleted(ctx, purchase.ID, paymentID, model.ProviderStripe, "webhook_completed", map[string]interface{}{
		"stripe_payment_intent": session.PaymentIntent,
		"payment_status":        session.PaymentStatus,
	}); err != nil {
		return fmt.Errorf("complete purchase %d: %w", purchase.ID, err)
	}
	log.Printf("[INFO] webhook: purchase %d completed from stripe session %s", purchase.ID, session.ID)
	return nil
}

// processRazorpay completes a purchase from a payment.captured event. The
// payment entity's order id is the correlation key.
func (p *Processor) processRazorpay(ctx context.Context, event payment.WebhookEvent) error {
	var pay struct {
		ID      string `json:"id"`
		OrderID string `json:"order_id"`
		Status  string `json:"status"`
	}
	if err := json.Unmarshal(event.Payload, &pay); err != nil {
		log.Printf("[WARN] webhook: malformed razorpay payment payload, dropping: %v", err)
		return nil
	}
	if pay.OrderID == "" {
		log.Printf("[WARN] webhook: razorpay event without order id, dropping")
		return nil
	}

	purchase, err := p.purchases.FindByCorrelationID(ctx, model.ProviderRazorpay, pay.OrderID)
	if errors.Is(err, services.ErrNotFound) {
		log.Printf("[WARN] webhook: no purchase for razorpay order %s, dropping", pay.OrderID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("lookup purchase for order %s: %w", pay.OrderID, err)
	}
	if purchase.IsCompleted() {
		log.Printf("[INFO] webhook: purchase %d already completed, skipping", purchase.ID)
		return nil
	}
	if pay.Status != "captured" {
		log.Printf("[WARN] webhook: razorpay payment %s not captured (status=%s), purchase %d stays pending",
			pay.ID, pay.Status, purchase.ID)
		return nil
	}

	if err := p.purchases.MarkCompleted(ctx, purchase.ID, pay.ID, model.ProviderRazorpay, "webhook_completed", map[string]interface{}{
		"razorpay_payment_id": pay.ID,
		"payment_status":      pay.Status,
	}); err != nil {
		return fmt.Errorf("complete purchase %d: %w", purchase.ID, err)
	}
	log.Printf("[INFO] webhook: purchase %d completed from razorpay order %s", purchase.ID, pay.OrderID)
	return nil
}

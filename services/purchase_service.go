package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/guitarprime/api/model"
	"github.com/guitarprime/api/policy"
	"github.com/guitarprime/api/services/payment"
)

// PurchaseService orchestrates the purchase lifecycle: it creates pending
// purchases, hands off to a payment provider, and completes purchases from
// the synchronous return paths. Webhook completion goes through the same
// MarkCompleted so every path is idempotent.
type PurchaseService struct {
	db        *gorm.DB
	providers map[model.PaymentProvider]payment.Provider
	currency  string
}

func NewPurchaseService(db *gorm.DB, currency string, providers ...payment.Provider) *PurchaseService {
	m := make(map[model.PaymentProvider]payment.Provider, len(providers))
	for _, p := range providers {
		m[p.Name()] = p
	}
	return &PurchaseService{db: db, providers: m, currency: currency}
}

// CreatePurchaseResult pairs the persisted purchase with the provider's
// checkout payload for the client.
type CreatePurchaseResult struct {
	Purchase *model.Purchase   `json:"purchase"`
	Checkout *payment.Checkout `json:"checkout"`
}

// loadPurchasable fetches the content item being bought. Unapproved courses
// are invisible to buyers, so they come back as not found.
func (s *PurchaseService) loadPurchasable(ctx context.Context, kind model.PurchasableKind, id uint) (model.Purchasable, error) {
	switch kind {
	case model.PurchasableCourse:
		var course model.Course
		err := s.db.WithContext(ctx).Where("is_approved = ?", true).First(&course, id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load course: %w", err)
		}
		return &course, nil
	case model.PurchasableModule:
		var mod model.Module
		err := s.db.WithContext(ctx).First(&mod, id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load module: %w", err)
		}
		return &mod, nil
	default:
		return nil, fmt.Errorf("invalid purchasable type %q", kind)
	}
}

// Create starts a purchase: it persists a pending record, then asks the
// provider for a checkout. If the provider call fails the purchase is marked
// failed so the attempt stays auditable.
func (s *PurchaseService) Create(ctx context.Context, user *model.User, kind model.PurchasableKind, purchasableID uint, providerName model.PaymentProvider) (*CreatePurchaseResult, error) {
	provider, ok := s.providers[providerName]
	if !ok {
		return nil, ErrUnknownProvider
	}

	item, err := s.loadPurchasable(ctx, kind, purchasableID)
	if err != nil {
		return nil, err
	}
	if item.IsFree() {
		return nil, ErrFreeContent
	}

	owned, err := NewAccessService(s.db).HasPurchased(ctx, user.ID, kind, purchasableID)
	if err != nil {
		return nil, err
	}
	if owned {
		return nil, ErrAlreadyPurchased
	}

	amountMinor := *item.PriceMinor()
	purchase := &model.Purchase{
		UserID:          user.ID,
		PurchasableType: kind,
		PurchasableID:   purchasableID,
		Amount:          float64(amountMinor) / 100,
		Currency:        s.currency,
		PaymentProvider: providerName,
		Status:          model.StatusPending,
	}
	if err := s.db.WithContext(ctx).Create(purchase).Error; err != nil {
		return nil, fmt.Errorf("failed to create purchase: %w", err)
	}

	checkout, err := provider.CreatePayment(ctx, payment.CreatePaymentRequest{
		PurchaseID:    purchase.ID,
		UserID:        user.ID,
		UserName:      user.Name,
		UserEmail:     user.Email,
		Kind:          kind,
		PurchasableID: purchasableID,
		Title:         item.PurchasableTitle(),
		Description:   item.PurchasableDescription(),
		AmountMinor:   amountMinor,
		Currency:      s.currency,
	})
	if err != nil {
		s.db.WithContext(ctx).Model(purchase).Update("status", model.StatusFailed)
		s.appendEvent(ctx, purchase.ID, providerName, "checkout_failed", map[string]interface{}{
			"error": err.Error(),
		})
		return nil, fmt.Errorf("provider checkout failed: %w", err)
	}

	// The session/order id is the correlation key webhooks look up by.
	correlationID := checkout.SessionID
	eventKind := "session_created"
	if providerName == model.ProviderRazorpay {
		correlationID = checkout.OrderID
		eventKind = "order_created"
	}
	updates := map[string]interface{}{"checkout_session_id": correlationID}
	if len(checkout.Metadata) > 0 {
		merged, err := mergeMetadata(purchase.Metadata, checkout.Metadata)
		if err != nil {
			return nil, err
		}
		updates["metadata"] = merged
		purchase.Metadata = merged
	}
	if err := s.db.WithContext(ctx).Model(purchase).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to attach checkout to purchase: %w", err)
	}
	purchase.CheckoutSessionID = &correlationID
	s.appendEvent(ctx, purchase.ID, providerName, eventKind, map[string]interface{}{
		"correlation_id": correlationID,
	})

	return &CreatePurchaseResult{Purchase: purchase, Checkout: checkout}, nil
}

// Get returns a purchase visible to the caller. Visibility follows the
// purchase policy (owner, admin, or coach); everyone else gets forbidden, not
// not-found, because the id was valid.
func (s *PurchaseService) Get(ctx context.Context, user *model.User, id uint) (*model.Purchase, error) {
	var purchase model.Purchase
	err := s.db.WithContext(ctx).Preload("Events").First(&purchase, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load purchase: %w", err)
	}
	if !policy.PurchaseView(user, &purchase) {
		return nil, ErrForbidden
	}
	return &purchase, nil
}

// canActOnPurchase gates the mutation paths. The view policy lets coaches see
// purchase records, but acting on one stays with the owner or an admin.
func canActOnPurchase(user *model.User, purchase *model.Purchase) bool {
	return purchase.UserID == user.ID || user.HasRole(model.RoleAdmin)
}

// List returns the caller's own purchases, newest first.
func (s *PurchaseService) List(ctx context.Context, userID uint) ([]model.Purchase, error) {
	var purchases []model.Purchase
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&purchases).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list purchases: %w", err)
	}
	return purchases, nil
}

// FindByCorrelationID looks a purchase up by its provider correlation key
// (Stripe checkout session id, Razorpay order id).
func (s *PurchaseService) FindByCorrelationID(ctx context.Context, provider model.PaymentProvider, correlationID string) (*model.Purchase, error) {
	var purchase model.Purchase
	err := s.db.WithContext(ctx).
		Where("payment_provider = ? AND checkout_session_id = ?", provider, correlationID).
		First(&purchase).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find purchase: %w", err)
	}
	return &purchase, nil
}

// MarkCompleted transitions a purchase to completed. It is safe to call from
// every completion path concurrently: an already-completed purchase is a
// no-op, and the partial unique index on completed purchases turns a lost
// race into a no-op too.
func (s *PurchaseService) MarkCompleted(ctx context.Context, purchaseID uint, paymentID string, provider model.PaymentProvider, eventKind string, extra map[string]interface{}) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var purchase model.Purchase
		if err := tx.First(&purchase, purchaseID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("failed to load purchase: %w", err)
		}
		if purchase.IsCompleted() {
			return nil
		}

		merged, err := mergeMetadata(purchase.Metadata, extra)
		if err != nil {
			return err
		}
		updates := map[string]interface{}{
			"status":   model.StatusCompleted,
			"metadata": merged,
		}
		if paymentID != "" {
			updates["payment_id"] = paymentID
		}
		if err := tx.Model(&purchase).Updates(updates).Error; err != nil {
			return fmt.Errorf("failed to complete purchase: %w", err)
		}

		payload, _ := json.Marshal(extra)
		event := model.PurchaseEvent{
			PurchaseID: purchaseID,
			Provider:   provider,
			Kind:       eventKind,
			Payload:    datatypes.JSON(payload),
		}
		if err := tx.Create(&event).Error; err != nil {
			return fmt.Errorf("failed to record purchase event: %w", err)
		}
		return nil
	})
	if err != nil && isDuplicateCompletion(err) {
		// A concurrent completion won; the outcome the caller wanted holds.
		log.Printf("[INFO] purchase %d already completed by concurrent path", purchaseID)
		return nil
	}
	return err
}

// isDuplicateCompletion recognizes a violation of the one-completed-purchase
// unique index, in postgres and sqlite wording alike.
func isDuplicateCompletion(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "uq_purchases_one_completed") ||
		strings.Contains(msg, "UNIQUE constraint failed: purchases")
}

// ConfirmStripeReturn handles the browser landing on the success URL. The
// session is re-queried server-side; the purchase completes only if Stripe
// says it is paid. An unpaid session leaves the purchase pending for the
// webhook to settle.
func (s *PurchaseService) ConfirmStripeReturn(ctx context.Context, user *model.User, purchaseID uint, sessionID string) (*model.Purchase, error) {
	purchase, err := s.Get(ctx, user, purchaseID)
	if err != nil {
		return nil, err
	}
	if !canActOnPurchase(user, purchase) {
		return nil, ErrForbidden
	}
	if purchase.PaymentProvider != model.ProviderStripe {
		return nil, ErrProviderMismatch
	}
	if purchase.IsCompleted() {
		return purchase, nil
	}
	if purchase.CheckoutSessionID == nil || *purchase.CheckoutSessionID != sessionID {
		return nil, ErrNotFound
	}

	provider, ok := s.providers[model.ProviderStripe]
	if !ok {
		return nil, ErrUnknownProvider
	}
	info, err := provider.RetrievePayment(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve session: %w", err)
	}
	if info.Paid {
		// payment_id holds the payment intent; the session id is already
		// stored as the correlation key.
		paymentID := info.PaymentID
		if paymentID == "" {
			paymentID = sessionID
		}
		if err := s.MarkCompleted(ctx, purchase.ID, paymentID, model.ProviderStripe, "return_confirmed", map[string]interface{}{
			"payment_status": info.Status,
		}); err != nil {
			return nil, err
		}
	} else {
		log.Printf("[WARN] stripe session %s not paid yet (status=%s), purchase %d stays pending", sessionID, info.Status, purchase.ID)
	}
	return s.Get(ctx, user, purchaseID)
}

// VerifyRazorpay handles the checkout widget callback: the client posts the
// order id, payment id, and signature, and the purchase completes only if the
// signature checks out against the key secret.
func (s *PurchaseService) VerifyRazorpay(ctx context.Context, user *model.User, purchaseID uint, orderID, paymentID, signature string) (*model.Purchase, error) {
	purchase, err := s.Get(ctx, user, purchaseID)
	if err != nil {
		return nil, err
	}
	if !canActOnPurchase(user, purchase) {
		return nil, ErrForbidden
	}
	if purchase.PaymentProvider != model.ProviderRazorpay {
		return nil, ErrProviderMismatch
	}
	if purchase.IsCompleted() {
		return purchase, nil
	}
	if purchase.CheckoutSessionID == nil || *purchase.CheckoutSessionID != orderID {
		return nil, ErrNotFound
	}

	provider, ok := s.providers[model.ProviderRazorpay]
	if !ok {
		return nil, ErrUnknownProvider
	}
	verifier, ok := provider.(payment.SignatureVerifier)
	if !ok {
		return nil, ErrUnknownProvider
	}
	if !verifier.VerifyPaymentSignature(orderID, paymentID, signature) {
		// A forged or corrupted callback fails the purchase; a genuine
		// capture can still be settled later by the webhook.
		s.db.WithContext(ctx).Model(purchase).Update("status", model.StatusFailed)
		s.appendEvent(ctx, purchase.ID, model.ProviderRazorpay, "verification_failed", map[string]interface{}{
			"razorpay_payment_id": paymentID,
		})
		return nil, payment.ErrInvalidSignature
	}

	if err := s.MarkCompleted(ctx, purchase.ID, paymentID, model.ProviderRazorpay, "verified", map[string]interface{}{
		"razorpay_payment_id": paymentID,
		"razorpay_signature":  signature,
	}); err != nil {
		return nil, err
	}
	return s.Get(ctx, user, purchaseID)
}

// Cancel abandons a pending purchase. Completed purchases are immutable.
func (s *PurchaseService) Cancel(ctx context.Context, user *model.User, purchaseID uint) (*model.Purchase, error) {
	purchase, err := s.Get(ctx, user, purchaseID)
	if err != nil {
		return nil, err
	}
	if !canActOnPurchase(user, purchase) {
		return nil, ErrForbidden
	}
	if !purchase.IsPending() {
		return nil, ErrNotPending
	}
	if err := s.db.WithContext(ctx).Model(purchase).Update("status", model.StatusCancelled).Error; err != nil {
		return nil, fmt.Errorf("failed to cancel purchase: %w", err)
	}
	s.appendEvent(ctx, purchase.ID, purchase.PaymentProvider, "cancelled", nil)
	purchase.Status = model.StatusCancelled
	return purchase, nil
}

// ReconcileStalePending sweeps pending Stripe purchases older than minAge:
// sessions that turn out paid are completed, anything older than expireAfter
// is cancelled. Razorpay pending purchases rely on webhooks alone because an
// order id cannot be re-queried for payment status directly.
func (s *PurchaseService) ReconcileStalePending(ctx context.Context, minAge, expireAfter time.Duration) (completed, cancelled int, err error) {
	provider, ok := s.providers[model.ProviderStripe]
	if !ok {
		return 0, 0, nil
	}

	var stale []model.Purchase
	cutoff := time.Now().Add(-minAge)
	err = s.db.WithContext(ctx).
		Where("payment_provider = ? AND status = ? AND created_at < ? AND checkout_session_id IS NOT NULL",
			model.ProviderStripe, model.StatusPending, cutoff).
		Find(&stale).Error
	if err != nil {
		return 0, 0, fmt.Errorf("failed to load stale purchases: %w", err)
	}

	for i := range stale {
		p := &stale[i]
		info, err := provider.RetrievePayment(ctx, *p.CheckoutSessionID)
		if err != nil {
			log.Printf("[WARN] reconcile: failed to retrieve session %s: %v", *p.CheckoutSessionID, err)
			continue
		}
		switch {
		case info.Paid:
			paymentID := info.PaymentID
			if paymentID == "" {
				paymentID = *p.CheckoutSessionID
			}
			if err := s.MarkCompleted(ctx, p.ID, paymentID, model.ProviderStripe, "reconciled", map[string]interface{}{
				"payment_status": info.Status,
			}); err != nil {
				log.Printf("[ERROR] reconcile: failed to complete purchase %d: %v", p.ID, err)
				continue
			}
			completed++
		case time.Since(p.CreatedAt) > expireAfter:
			if err := s.db.WithContext(ctx).Model(p).Update("status", model.StatusCancelled).Error; err != nil {
				log.Printf("[ERROR] reconcile: failed to cancel purchase %d: %v", p.ID, err)
				continue
			}
			s.appendEvent(ctx, p.ID, model.ProviderStripe, "reconcile_expired", nil)
			cancelled++
		}
	}
	return completed, cancelled, nil
}

// appendEvent records a purchase lifecycle event. Event writes never fail the
// surrounding operation.
func (s *PurchaseService) appendEvent(ctx context.Context, purchaseID uint, provider model.PaymentProvider, kind string, payload map[string]interface{}) {
	raw, _ := json.Marshal(payload)
	event := model.PurchaseEvent{
		PurchaseID: purchaseID,
		Provider:   provider,
		Kind:       kind,
		Payload:    datatypes.JSON(raw),
	}
	if err := s.db.WithContext(ctx).Create(&event).Error; err != nil {
		log.Printf("[WARN] failed to record purchase event %s for purchase %d: %v", kind, purchaseID, err)
	}
}

// mergeMetadata overlays extra keys onto the existing metadata JSON, keeping
// unrelated keys from earlier steps.
func mergeMetadata(existing datatypes.JSON, extra map[string]interface{}) (datatypes.JSON, error) {
	merged := map[string]interface{}{}
	if len(existing) > 0 {
		if err := json.Unmarshal(existing, &merged); err != nil {
			return nil, fmt.Errorf("failed to decode purchase metadata: %w", err)
		}
	}
	for k, v := range extra {
		merged[k] = v
	}
	raw, err := json.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("failed to encode purchase metadata: %w", err)
	}
	return datatypes.JSON(raw), nil
}

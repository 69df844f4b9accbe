// Package payment wraps the two payment integrations behind one narrow
// interface. The rest of the system depends only on Provider; the Stripe and
// Razorpay clients are thin HTTP wrappers and never touch the database.
package payment

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/guitarprime/api/model"
)

var (
	// ErrSecretNotConfigured means the webhook secret is missing; the
	// webhook must be rejected before any state is touched.
	ErrSecretNotConfigured = errors.New("webhook secret not configured")
	// ErrInvalidSignature means the payload failed signature verification.
	ErrInvalidSignature = errors.New("invalid webhook signature")
)

// DefaultTimeout is the HTTP client timeout for provider API calls
const DefaultTimeout = 30 * time.Second

// CreatePaymentRequest carries everything a provider needs to start a
// checkout for a pending purchase.
type CreatePaymentRequest struct {
	PurchaseID    uint
	UserID        uint
	UserName      string
	UserEmail     string
	Kind          model.PurchasableKind
	PurchasableID uint
	Title         string
	Description   string
	AmountMinor   int64 // minor units (cents/paise)
	Currency      string
}

// Prefill carries customer fields for an embedded checkout widget.
type Prefill struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Checkout is the provider-specific payload returned from CreatePayment.
// Stripe fills CheckoutURL/SessionID (hosted redirect); Razorpay fills
// OrderID and the widget options. Metadata is merged into the purchase
// record's metadata by the orchestrator.
type Checkout struct {
	CheckoutURL string                 `json:"checkout_url,omitempty"`
	SessionID   string                 `json:"session_id,omitempty"`
	OrderID     string                 `json:"order_id,omitempty"`
	AmountMinor int64                  `json:"amount,omitempty"`
	Currency    string                 `json:"currency,omitempty"`
	KeyID       string                 `json:"key_id,omitempty"`
	Name        string                 `json:"name,omitempty"`
	Description string                 `json:"description,omitempty"`
	Prefill     *Prefill               `json:"prefill,omitempty"`
	Metadata    map[string]interface{} `json:"-"`
}

// PaymentInfo is the result of re-querying a payment/session. PaymentID is
// the provider's final payment id (Stripe payment intent, Razorpay payment
// entity id), distinct from the checkout correlation id.
type PaymentInfo struct {
	Status    string
	Paid      bool
	PaymentID string
	Raw       json.RawMessage
}

// WebhookEvent is a verified, filtered provider event carrying the object the
// completion task needs (checkout session for Stripe, payment entity for
// Razorpay).
type WebhookEvent struct {
	Provider model.PaymentProvider `json:"provider"`
	Type     string                `json:"type"`
	Payload  json.RawMessage       `json:"payload"`
}

// Provider is the narrow interface the purchase orchestrator and webhook
// handlers depend on.
type Provider interface {
	Name() model.PaymentProvider

	// CreatePayment starts a checkout for a pending purchase.
	CreatePayment(ctx context.Context, req CreatePaymentRequest) (*Checkout, error)

	// RetrievePayment re-queries the provider for a payment/session status.
	RetrievePayment(ctx context.Context, id string) (*PaymentInfo, error)

	// HandleWebhook verifies the raw payload's signature and filters event
	// types. It returns (nil, nil) for valid events the system ignores, and
	// ErrInvalidSignature/ErrSecretNotConfigured before anything else when
	// the payload cannot be trusted.
	HandleWebhook(payload []byte, signature string) (*WebhookEvent, error)

	// VerifyWebhookSignature checks the raw payload against the signature.
	VerifyWebhookSignature(payload []byte, signature string) bool
}

// SignatureVerifier is implemented by providers that support a synchronous
// client-side verification path (Razorpay's checkout callback).
type SignatureVerifier interface {
	VerifyPaymentSignature(orderID, paymentID, signature string) bool
}

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: DefaultTimeout}
}

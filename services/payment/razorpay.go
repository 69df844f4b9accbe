package payment

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/guitarprime/api/model"
)

const (
	razorpayAPIBase = "https://api.razorpay.com/v1"

	// EventPaymentCaptured is the only Razorpay event the system acts on.
	EventPaymentCaptured = "payment.captured"
)

// RazorpayConfig holds the key pair and webhook secret for the Razorpay
// client. Name is shown in the checkout widget.
type RazorpayConfig struct {
	KeyID         string
	KeySecret     string
	WebhookSecret string
	Name          string
}

// RazorpayProvider implements Provider over Razorpay Orders. Unlike Stripe's
// hosted redirect, Razorpay checkout runs client-side, so CreatePayment
// returns widget options and the client posts the signed result back through
// the verify endpoint.
type RazorpayProvider struct {
	cfg    RazorpayConfig
	client *http.Client
}

func NewRazorpayProvider(cfg RazorpayConfig) *RazorpayProvider {
	return &RazorpayProvider{cfg: cfg, client: newHTTPClient()}
}

func (p *RazorpayProvider) Name() model.PaymentProvider {
	return model.ProviderRazorpay
}

// CreatePayment creates a Razorpay order for the purchase and returns the
// options the frontend checkout widget needs.
func (p *RazorpayProvider) CreatePayment(ctx context.Context, req CreatePaymentRequest) (*Checkout, error) {
	payload := map[string]interface{}{
		"amount":   req.AmountMinor,
		"currency": strings.ToUpper(req.Currency),
		"receipt":  fmt.Sprintf("purchase_%d", req.PurchaseID),
		"notes": map[string]string{
			"purchase_id":      strconv.FormatUint(uint64(req.PurchaseID), 10),
			"user_id":          strconv.FormatUint(uint64(req.UserID), 10),
			"purchasable_type": string(req.Kind),
			"purchasable_id":   strconv.FormatUint(uint64(req.PurchasableID), 10),
		},
	}

	var order struct {
		ID       string `json:"id"`
		Amount   int64  `json:"amount"`
		Currency string `json:"currency"`
	}
	if err := p.do(ctx, http.MethodPost, "/orders", payload, &order); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	return &Checkout{
		OrderID:     order.ID,
		AmountMinor: order.Amount,
		Currency:    order.Currency,
		KeyID:       p.cfg.KeyID,
		Name:        p.cfg.Name,
		Description: req.Title,
		Prefill:     &Prefill{Name: req.UserName, Email: req.UserEmail},
		Metadata: map[string]interface{}{
			"razorpay_order_id": order.ID,
		},
	}, nil
}

// RetrievePayment fetches a payment entity and reports whether it was
// captured.
func (p *RazorpayProvider) RetrievePayment(ctx context.Context, paymentID string) (*PaymentInfo, error) {
	raw, err := p.doRaw(ctx, http.MethodGet, "/payments/"+url.PathEscape(paymentID), nil)
	if err != nil {
		return nil, fmt.Errorf("retrieve payment: %w", err)
	}
	var pay struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(raw, &pay); err != nil {
		return nil, fmt.Errorf("decode payment: %w", err)
	}
	return &PaymentInfo{
		Status:    pay.Status,
		Paid:      pay.Status == "captured",
		PaymentID: pay.ID,
		Raw:       raw,
	}, nil
}

// VerifyPaymentSignature checks the checkout callback signature: an
// HMAC-SHA256 of "<order_id>|<payment_id>" under the key secret.
func (p *RazorpayProvider) VerifyPaymentSignature(orderID, paymentID, signature string) bool {
	if p.cfg.KeySecret == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(p.cfg.KeySecret))
	mac.Write([]byte(orderID + "|" + paymentID))
	expected := hex.EncodeToString(mac.Sum(nil))
	return subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) == 1
}

// VerifyWebhookSignature checks the raw payload against the X-Razorpay-Signature
// header: an HMAC-SHA256 of the body under the webhook secret.
func (p *RazorpayProvider) VerifyWebhookSignature(payload []byte, signature string) bool {
	if p.cfg.WebhookSecret == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(p.cfg.WebhookSecret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) == 1
}

// HandleWebhook verifies the signature, then keeps only payment.captured
// events. The returned payload is the payment entity.
func (p *RazorpayProvider) HandleWebhook(payload []byte, signature string) (*WebhookEvent, error) {
	if p.cfg.WebhookSecret == "" {
		return nil, ErrSecretNotConfigured
	}
	if !p.VerifyWebhookSignature(payload, signature) {
		return nil, ErrInvalidSignature
	}

	var event struct {
		Event   string `json:"event"`
		Payload struct {
			Payment struct {
				Entity json.RawMessage `json:"entity"`
			} `json:"payment"`
		} `json:"payload"`
	}
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("decode razorpay event: %w", err)
	}
	if event.Event != EventPaymentCaptured {
		return nil, nil
	}
	return &WebhookEvent{
		Provider: model.ProviderRazorpay,
		Type:     event.Event,
		Payload:  event.Payload.Payment.Entity,
	}, nil
}

func (p *RazorpayProvider) do(ctx context.Context, method, path string, payload interface{}, out interface{}) error {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	raw, err := p.doRequest(ctx, method, path, body, true)
	if err != nil {
		return err
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func (p *RazorpayProvider) doRaw(ctx context.Context, method, path string, body io.Reader) ([]byte, error) {
	return p.doRequest(ctx, method, path, body, false)
}

func (p *RazorpayProvider) doRequest(ctx context.Context, method, path string, body io.Reader, jsonBody bool) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, razorpayAPIBase+path, body)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(p.cfg.KeyID, p.cfg.KeySecret)
	if jsonBody {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Error struct {
				Code        string `json:"code"`
				Description string `json:"description"`
			} `json:"error"`
		}
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error.Description != "" {
			return nil, fmt.Errorf("razorpay API %d: %s", resp.StatusCode, apiErr.Error.Description)
		}
		return nil, fmt.Errorf("razorpay API %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	return raw, nil
}

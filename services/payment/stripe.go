package payment

import (
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
	"time"

	"github.com/guitarprime/api/model"
)

const (
	stripeAPIBase = "https://api.stripe.com/v1"

	// EventCheckoutSessionCompleted is the only Stripe event the system
	// acts on; everything else is acknowledged and dropped.
	EventCheckoutSessionCompleted = "checkout.session.completed"

	// stripeSignatureTolerance bounds how stale a signed webhook may be.
	stripeSignatureTolerance = 5 * time.Minute
)

// StripeConfig holds the keys and URLs the Stripe client needs. FrontendURL
// is where the browser lands after checkout; the frontend then calls the API
// with the session id to confirm.
type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	FrontendURL   string
}

// StripeProvider implements Provider over Stripe Checkout Sessions.
type StripeProvider struct {
	cfg    StripeConfig
	client *http.Client
	now    func() time.Time
}

func NewStripeProvider(cfg StripeConfig) *StripeProvider {
	return &StripeProvider{
		cfg:    cfg,
		client: newHTTPClient(),
		now:    time.Now,
	}
}

func (p *StripeProvider) Name() model.PaymentProvider {
	return model.ProviderStripe
}

// CreatePayment creates a hosted Checkout Session and returns its redirect
// URL. The purchase id travels in the session metadata and the success URL so
// both the webhook and the browser return can find the purchase. Stripe
// redirects the bare browser, so both URLs point at frontend pages; the
// frontend confirms through the authenticated success endpoint.
func (p *StripeProvider) CreatePayment(ctx context.Context, req CreatePaymentRequest) (*Checkout, error) {
	frontend := strings.TrimRight(p.cfg.FrontendURL, "/")
	successURL := fmt.Sprintf("%s/purchases/%d/success?session_id={CHECKOUT_SESSION_ID}",
		frontend, req.PurchaseID)
	cancelURL := fmt.Sprintf("%s/purchases/%d/cancelled", frontend, req.PurchaseID)

	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("payment_method_types[0]", "card")
	form.Set("line_items[0][quantity]", "1")
	form.Set("line_items[0][price_data][currency]", strings.ToLower(req.Currency))
	form.Set("line_items[0][price_data][unit_amount]", strconv.FormatInt(req.AmountMinor, 10))
	form.Set("line_items[0][price_data][product_data][name]", req.Title)
	if req.Description != "" {
		form.Set("line_items[0][price_data][product_data][description]", req.Description)
	}
	form.Set("success_url", successURL)
	form.Set("cancel_url", cancelURL)
	form.Set("customer_email", req.UserEmail)
	form.Set("metadata[purchase_id]", strconv.FormatUint(uint64(req.PurchaseID), 10))
	form.Set("metadata[user_id]", strconv.FormatUint(uint64(req.UserID), 10))
	form.Set("metadata[purchasable_type]", string(req.Kind))
	form.Set("metadata[purchasable_id]", strconv.FormatUint(uint64(req.PurchasableID), 10))

	var session struct {
		ID  string `json:"id"`
		URL string `json:"url"`
	}
	if err := p.do(ctx, http.MethodPost, "/checkout/sessions", form, &session); err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}

	return &Checkout{
		CheckoutURL: session.URL,
		SessionID:   session.ID,
		Metadata: map[string]interface{}{
			"stripe_session_id": session.ID,
		},
	}, nil
}

// RetrievePayment fetches a Checkout Session and reports whether it is paid.
func (p *StripeProvider) RetrievePayment(ctx context.Context, sessionID string) (*PaymentInfo, error) {
	var session struct {
		ID            string `json:"id"`
		PaymentStatus string `json:"payment_status"`
		PaymentIntent string `json:"payment_intent"`
	}
	raw, err := p.doRaw(ctx, http.MethodGet, "/checkout/sessions/"+url.PathEscape(sessionID), nil)
	if err != nil {
		return nil, fmt.Errorf("retrieve checkout session: %w", err)
	}
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, fmt.Errorf("decode checkout session: %w", err)
	}
	return &PaymentInfo{
		Status:    session.PaymentStatus,
		Paid:      session.PaymentStatus == "paid",
		PaymentID: session.PaymentIntent,
		Raw:       raw,
	}, nil
}

// VerifyWebhookSignature implements Stripe's signed-event scheme: the header
// carries a timestamp and one or more v1 signatures, each an HMAC-SHA256 of
// "<timestamp>.<payload>" under the webhook secret.
func (p *StripeProvider) VerifyWebhookSignature(payload []byte, header string) bool {
	if p.cfg.WebhookSecret == "" {
		return false
	}
	var timestamp int64
	var signatures []string
	for _, part := range strings.Split(header, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			ts, err := strconv.ParseInt(kv[1], 10, 64)
			if err != nil {
				return false
			}
			timestamp = ts
		case "v1":
			signatures = append(signatures, kv[1])
		}
	}
	if timestamp == 0 || len(signatures) == 0 {
		return false
	}
	age := p.now().Unix() - timestamp
	if age < 0 {
		age = -age
	}
	if age > int64(stripeSignatureTolerance.Seconds()) {
		return false
	}

	mac := hmac.New(sha256.New, []byte(p.cfg.WebhookSecret))
	fmt.Fprintf(mac, "%d.", timestamp)
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	for _, sig := range signatures {
		if subtle.ConstantTimeCompare([]byte(expected), []byte(sig)) == 1 {
			return true
		}
	}
	return false
}

// HandleWebhook verifies the signature, then keeps only
// checkout.session.completed events. The returned payload is the session
// object from data.object.
func (p *StripeProvider) HandleWebhook(payload []byte, signature string) (*WebhookEvent, error) {
	if p.cfg.WebhookSecret == "" {
		return nil, ErrSecretNotConfigured
	}
	if !p.VerifyWebhookSignature(payload, signature) {
		return nil, ErrInvalidSignature
	}

	var event struct {
		Type string `json:"type"`
		Data struct {
			Object json.RawMessage `json:"object"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("decode stripe event: %w", err)
	}
	if event.Type != EventCheckoutSessionCompleted {
		return nil, nil
	}
	return &WebhookEvent{
		Provider: model.ProviderStripe,
		Type:     event.Type,
		Payload:  event.Data.Object,
	}, nil
}

func (p *StripeProvider) do(ctx context.Context, method, path string, form url.Values, out interface{}) error {
	raw, err := p.doRaw(ctx, method, path, form)
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

func (p *StripeProvider) doRaw(ctx context.Context, method, path string, form url.Values) ([]byte, error) {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, stripeAPIBase+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+p.cfg.SecretKey)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
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
				Message string `json:"message"`
				Type    string `json:"type"`
			} `json:"error"`
		}
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error.Message != "" {
			return nil, fmt.Errorf("stripe API %d: %s", resp.StatusCode, apiErr.Error.Message)
		}
		return nil, fmt.Errorf("stripe API %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	return raw, nil
}

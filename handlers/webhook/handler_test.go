package webhook

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/guitarprime/api/services/payment"
	"github.com/guitarprime/api/services/queue"
)

const (
	stripeSecret   = "whsec_stripe"
	razorpaySecret = "whsec_razorpay"
)

func newTestApp(t *testing.T) (*fiber.App, *queue.WebhookQueue) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	q := queue.NewWebhookQueue(client)

	stripe := payment.NewStripeProvider(payment.StripeConfig{
		SecretKey:     "sk_test",
		WebhookSecret: stripeSecret,
		FrontendURL:   "http://localhost:3000",
	})
	razorpay := payment.NewRazorpayProvider(payment.RazorpayConfig{
		KeyID:         "rzp_test",
		KeySecret:     "secret",
		WebhookSecret: razorpaySecret,
	})
	handler := NewWebhookHandler(stripe, razorpay, q)

	app := fiber.New()
	app.Post("/webhooks/stripe", handler.Stripe)
	app.Post("/webhooks/razorpay", handler.Razorpay)
	return app, q
}

func stripeHeader(payload []byte) string {
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(stripeSecret))
	fmt.Fprintf(mac, "%d.", ts)
	mac.Write(payload)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func razorpayHeader(payload []byte) string {
	mac := hmac.New(sha256.New, []byte(razorpaySecret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func post(t *testing.T, app *fiber.App, path string, payload []byte, header, value string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if header != "" {
		req.Header.Set(header, value)
	}
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	return resp
}

func TestStripeWebhookEnqueues(t *testing.T) {
	app, q := newTestApp(t)

	payload := []byte(`{"type":"checkout.session.completed","data":{"object":{"id":"cs_123","payment_status":"paid"}}}`)
	resp := post(t, app, "/webhooks/stripe", payload, "Stripe-Signature", stripeHeader(payload))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	depth, err := q.Depth(t.Context())
	if err != nil {
		t.Fatalf("Depth: %v", err)
	}
	if depth != 1 {
		t.Errorf("queue depth = %d, want 1", depth)
	}
}

func TestStripeWebhookIgnoredEventIsAcknowledged(t *testing.T) {
	app, q := newTestApp(t)

	payload := []byte(`{"type":"invoice.paid","data":{"object":{}}}`)
	resp := post(t, app, "/webhooks/stripe", payload, "Stripe-Signature", stripeHeader(payload))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	depth, _ := q.Depth(t.Context())
	if depth != 0 {
		t.Errorf("queue depth = %d, want 0 (ignored event)", depth)
	}
}

func TestStripeWebhookRejectsBadSignature(t *testing.T) {
	app, q := newTestApp(t)

	payload := []byte(`{"type":"checkout.session.completed","data":{"object":{"id":"cs_123"}}}`)

	resp := post(t, app, "/webhooks/stripe", payload, "Stripe-Signature", "t=1,v1=deadbeef")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("forged signature: status = %d, want 400", resp.StatusCode)
	}

	resp = post(t, app, "/webhooks/stripe", payload, "", "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("missing signature: status = %d, want 400", resp.StatusCode)
	}

	depth, _ := q.Depth(t.Context())
	if depth != 0 {
		t.Errorf("queue depth = %d, want 0 (nothing trusted)", depth)
	}
}

func TestRazorpayWebhookEnqueues(t *testing.T) {
	app, q := newTestApp(t)

	payload := []byte(`{"event":"payment.captured","payload":{"payment":{"entity":{"id":"pay_1","order_id":"order_1","status":"captured"}}}}`)
	resp := post(t, app, "/webhooks/razorpay", payload, "X-Razorpay-Signature", razorpayHeader(payload))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	depth, _ := q.Depth(t.Context())
	if depth != 1 {
		t.Errorf("queue depth = %d, want 1", depth)
	}
}

func TestRazorpayWebhookRejectsBadSignature(t *testing.T) {
	app, q := newTestApp(t)

	payload := []byte(`{"event":"payment.captured","payload":{"payment":{"entity":{"id":"pay_1"}}}}`)
	resp := post(t, app, "/webhooks/razorpay", payload, "X-Razorpay-Signature", "deadbeef")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}

	depth, _ := q.Depth(t.Context())
	if depth != 0 {
		t.Errorf("queue depth = %d, want 0", depth)
	}
}

package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/guitarprime/api/model"
)

func stripeSign(secret string, ts int64, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", ts)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func newTestStripe(secret string, now time.Time) *StripeProvider {
	p := NewStripeProvider(StripeConfig{SecretKey: "sk_test", WebhookSecret: secret, FrontendURL: "http://localhost:3000"})
	p.now = func() time.Time { return now }
	return p
}

func TestStripeVerifyWebhookSignature(t *testing.T) {
	now := time.Unix(1700000000, 0)
	payload := []byte(`{"type":"checkout.session.completed"}`)
	secret := "whsec_test"

	p := newTestStripe(secret, now)

	header := fmt.Sprintf("t=%d,v1=%s", now.Unix(), stripeSign(secret, now.Unix(), payload))
	if !p.VerifyWebhookSignature(payload, header) {
		t.Error("valid signature should verify")
	}

	if p.VerifyWebhookSignature(payload, fmt.Sprintf("t=%d,v1=deadbeef", now.Unix())) {
		t.Error("wrong signature should fail")
	}

	if p.VerifyWebhookSignature([]byte(`{"tampered":true}`), header) {
		t.Error("tampered payload should fail")
	}

	stale := now.Unix() - 600
	staleHeader := fmt.Sprintf("t=%d,v1=%s", stale, stripeSign(secret, stale, payload))
	if p.VerifyWebhookSignature(payload, staleHeader) {
		t.Error("signature outside tolerance should fail")
	}

	if p.VerifyWebhookSignature(payload, "") {
		t.Error("empty header should fail")
	}
	if p.VerifyWebhookSignature(payload, "v1=abc") {
		t.Error("header without timestamp should fail")
	}

	// additional v1 entries are tried until one matches
	multi := fmt.Sprintf("t=%d,v1=deadbeef,v1=%s", now.Unix(), stripeSign(secret, now.Unix(), payload))
	if !p.VerifyWebhookSignature(payload, multi) {
		t.Error("second v1 signature should verify")
	}
}

func TestStripeHandleWebhook(t *testing.T) {
	now := time.Unix(1700000000, 0)
	secret := "whsec_test"
	p := newTestStripe(secret, now)

	sign := func(payload []byte) string {
		return fmt.Sprintf("t=%d,v1=%s", now.Unix(), stripeSign(secret, now.Unix(), payload))
	}

	payload := []byte(`{"type":"checkout.session.completed","data":{"object":{"id":"cs_123","payment_status":"paid"}}}`)
	event, err := p.HandleWebhook(payload, sign(payload))
	if err != nil {
		t.Fatalf("HandleWebhook: %v", err)
	}
	if event == nil {
		t.Fatal("expected event for checkout.session.completed")
	}
	if event.Provider != model.ProviderStripe || event.Type != EventCheckoutSessionCompleted {
		t.Errorf("unexpected event %+v", event)
	}

	ignored := []byte(`{"type":"invoice.paid","data":{"object":{}}}`)
	event, err = p.HandleWebhook(ignored, sign(ignored))
	if err != nil {
		t.Fatalf("HandleWebhook ignored event: %v", err)
	}
	if event != nil {
		t.Error("ignored event type should return nil event")
	}

	if _, err := p.HandleWebhook(payload, "t=1,v1=bad"); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("expected ErrInvalidSignature, got %v", err)
	}

	noSecret := newTestStripe("", now)
	if _, err := noSecret.HandleWebhook(payload, sign(payload)); !errors.Is(err, ErrSecretNotConfigured) {
		t.Errorf("expected ErrSecretNotConfigured, got %v", err)
	}
}

func razorpaySign(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestRazorpayVerifyPaymentSignature(t *testing.T) {
	p := NewRazorpayProvider(RazorpayConfig{KeyID: "rzp_test", KeySecret: "secret123"})

	sig := razorpaySign("secret123", []byte("order_abc|pay_xyz"))
	if !p.VerifyPaymentSignature("order_abc", "pay_xyz", sig) {
		t.Error("valid payment signature should verify")
	}
	if p.VerifyPaymentSignature("order_abc", "pay_other", sig) {
		t.Error("signature for a different payment should fail")
	}
	if p.VerifyPaymentSignature("order_abc", "pay_xyz", "deadbeef") {
		t.Error("wrong signature should fail")
	}

	empty := NewRazorpayProvider(RazorpayConfig{KeyID: "rzp_test"})
	if empty.VerifyPaymentSignature("order_abc", "pay_xyz", sig) {
		t.Error("missing key secret should never verify")
	}
}

func TestRazorpayHandleWebhook(t *testing.T) {
	secret := "whsec_rzp"
	p := NewRazorpayProvider(RazorpayConfig{KeyID: "rzp_test", KeySecret: "k", WebhookSecret: secret})

	payload := []byte(`{"event":"payment.captured","payload":{"payment":{"entity":{"id":"pay_123","order_id":"order_abc","status":"captured"}}}}`)
	event, err := p.HandleWebhook(payload, razorpaySign(secret, payload))
	if err != nil {
		t.Fatalf("HandleWebhook: %v", err)
	}
	if event == nil {
		t.Fatal("expected event for payment.captured")
	}
	if event.Provider != model.ProviderRazorpay || event.Type != EventPaymentCaptured {
		t.Errorf("unexpected event %+v", event)
	}

	ignored := []byte(`{"event":"payment.authorized","payload":{"payment":{"entity":{}}}}`)
	event, err = p.HandleWebhook(ignored, razorpaySign(secret, ignored))
	if err != nil {
		t.Fatalf("HandleWebhook ignored event: %v", err)
	}
	if event != nil {
		t.Error("ignored event type should return nil event")
	}

	if _, err := p.HandleWebhook(payload, "deadbeef"); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("expected ErrInvalidSignature, got %v", err)
	}

	noSecret := NewRazorpayProvider(RazorpayConfig{KeyID: "rzp_test", KeySecret: "k"})
	if _, err := noSecret.HandleWebhook(payload, razorpaySign(secret, payload)); !errors.Is(err, ErrSecretNotConfigured) {
		t.Errorf("expected ErrSecretNotConfigured, got %v", err)
	}
}

package payment

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"testing"
)

// captureTransport records the form Stripe would receive and answers with a
// canned session so no test touches the network.
type captureTransport struct {
	form url.Values
}

func (c *captureTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	body, err := io.ReadAll(req.Body)
	if err != nil {
		return nil, err
	}
	c.form, err = url.ParseQuery(string(body))
	if err != nil {
		return nil, err
	}
	return &http.Response{
		StatusCode: http.StatusOK,
		Header:     make(http.Header),
		Body:       io.NopCloser(strings.NewReader(`{"id":"cs_test_1","url":"https://checkout.stripe.com/pay/cs_test_1"}`)),
	}, nil
}

// Stripe redirects a bare browser after checkout, so the return URLs must be
// frontend pages, never the token-protected API routes.
func TestStripeCheckoutReturnURLs(t *testing.T) {
	p := NewStripeProvider(StripeConfig{SecretKey: "sk_test", FrontendURL: "https://app.example.com/"})
	transport := &captureTransport{}
	p.client = &http.Client{Transport: transport}

	checkout, err := p.CreatePayment(context.Background(), CreatePaymentRequest{
		PurchaseID:  42,
		UserID:      7,
		UserEmail:   "student@example.com",
		Title:       "Advanced Bends",
		AmountMinor: 9999,
		Currency:    "USD",
	})
	if err != nil {
		t.Fatalf("CreatePayment: %v", err)
	}
	if checkout.SessionID != "cs_test_1" {
		t.Errorf("session id = %q, want cs_test_1", checkout.SessionID)
	}

	success := transport.form.Get("success_url")
	want := "https://app.example.com/purchases/42/success?session_id={CHECKOUT_SESSION_ID}"
	if success != want {
		t.Errorf("success_url = %q, want %q", success, want)
	}
	cancel := transport.form.Get("cancel_url")
	if cancel != "https://app.example.com/purchases/42/cancelled" {
		t.Errorf("cancel_url = %q", cancel)
	}
	for _, u := range []string{success, cancel} {
		if strings.Contains(u, "/api/v1/") {
			t.Errorf("return URL points at the API, not the frontend: %q", u)
		}
	}
}

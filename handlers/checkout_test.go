package handlers_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/stripe/stripe-go/v82"

	"rabisk.app/cloud/internal/testutil"
)

func TestCreateCheckout_InvalidPlan(t *testing.T) {
	server, _ := testutil.NewServer(t)

	tests := []struct {
		name string
		body interface{}
	}{
		{name: "unknown plan", body: map[string]string{"plan": "enterprise"}},
		{name: "empty plan", body: map[string]string{"plan": ""}},
		{name: "wrong shape", body: "not json at all"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := testutil.PostJSON(t, server, "/create-checkout", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("Expected status 400, got %d", w.Code)
			}
		})
	}
}

func TestCreateCheckout_Lifetime(t *testing.T) {
	server, _ := testutil.NewServer(t)

	var got *stripe.CheckoutSessionParams
	server.CreateSession = func(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
		got = params
		return &stripe.CheckoutSession{ID: "cs_new", URL: "https://checkout.stripe.com/pay/cs_new"}, nil
	}

	w := testutil.PostJSON(t, server, "/create-checkout", map[string]string{"plan": "lifetime"})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp map[string]string
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp["url"] != "https://checkout.stripe.com/pay/cs_new" {
		t.Errorf("Expected checkout URL in response, got %q", resp["url"])
	}

	if got == nil {
		t.Fatalf("Expected Stripe to be called")
	}
	if *got.Mode != string(stripe.CheckoutSessionModePayment) {
		t.Errorf("Expected payment mode for lifetime, got %q", *got.Mode)
	}
	if *got.LineItems[0].Price != "price_lifetime_test" {
		t.Errorf("Expected lifetime price, got %q", *got.LineItems[0].Price)
	}
	if got.Metadata["plan"] != "lifetime" {
		t.Errorf("Expected plan metadata on the session, got %v", got.Metadata)
	}
}

func TestCreateCheckout_Subscription(t *testing.T) {
	server, _ := testutil.NewServer(t)

	var got *stripe.CheckoutSessionParams
	server.CreateSession = func(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
		got = params
		return &stripe.CheckoutSession{ID: "cs_sub", URL: "https://checkout.stripe.com/pay/cs_sub"}, nil
	}

	w := testutil.PostJSON(t, server, "/create-checkout", map[string]string{"plan": "subscription"})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if *got.Mode != string(stripe.CheckoutSessionModeSubscription) {
		t.Errorf("Expected subscription mode, got %q", *got.Mode)
	}
	if *got.LineItems[0].Price != "price_subscription_test" {
		t.Errorf("Expected subscription price, got %q", *got.LineItems[0].Price)
	}
}

func TestCreateCheckout_StripeError(t *testing.T) {
	server, _ := testutil.NewServer(t)
	server.CreateSession = func(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
		return nil, errors.New("stripe is down")
	}

	w := testutil.PostJSON(t, server, "/create-checkout", map[string]string{"plan": "lifetime"})
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("Expected status 500, got %d", w.Code)
	}

	var resp map[string]string
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp["error"] != "failed to create payment" {
		t.Errorf("Expected generic error message, got %q", resp["error"])
	}
}

func TestCreateCheckout_MissingPrice(t *testing.T) {
	server, _ := testutil.NewServer(t)
	server.Config.PriceSubscription = ""

	called := false
	server.CreateSession = func(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
		called = true
		return nil, nil
	}

	w := testutil.PostJSON(t, server, "/create-checkout", map[string]string{"plan": "subscription"})
	if w.Code != http.StatusInternalServerError {
		t.Errorf("Expected status 500 for unconfigured price, got %d", w.Code)
	}
	if called {
		t.Errorf("Expected Stripe not to be called without a price")
	}
}

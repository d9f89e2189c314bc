package testutil

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v82"

	"rabisk.app/cloud/handlers"
	"rabisk.app/cloud/internal/config"
	"rabisk.app/cloud/models"
	"rabisk.app/cloud/storage"
)

const WebhookSecret = "whsec_test"

// TestConfig returns a config suitable for handler tests: real webhook
// secret for signing, prices for both plans, and a tiny validation delay so
// the timing tests stay fast.
func TestConfig() *config.Config {
	return &config.Config{
		Port:                  "0",
		DatabaseURL:           ":memory:",
		StripeSecretKey:       "sk_test_123",
		StripeWebhookSecret:   WebhookSecret,
		PriceLifetime:         "price_lifetime_test",
		PriceSubscription:     "price_subscription_test",
		FrontendURL:           "https://rabisk.example",
		AllowedOrigins:        []string{"https://rabisk.example"},
		ValidateNotFoundDelay: 5 * time.Millisecond,
	}
}

// NewServer wires a handler server over fresh in-memory storage.
func NewServer(t *testing.T) (*handlers.Server, *storage.MemoryStorage) {
	t.Helper()
	store := storage.NewMemoryStorage()
	server := handlers.NewServer(TestConfig(), store, nil)
	return server, store
}

// SeedAccessKey inserts a key row directly into storage.
func SeedAccessKey(t *testing.T, store storage.Storage, key, plan, email string, active bool) *models.AccessKey {
	t.Helper()

	now := time.Now()
	ak := &models.AccessKey{
		ID:               uuid.Must(uuid.NewRandom()).String(),
		Key:              key,
		Email:            email,
		Plan:             plan,
		StripeSessionID:  "cs_seed_" + key,
		StripeCustomerID: "cus_seed",
		IsActive:         active,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := store.InsertKey(context.Background(), ak); err != nil {
		t.Fatalf("Failed to seed access key %s: %v", key, err)
	}
	return ak
}

// CheckoutCompletedPayload builds a checkout.session.completed event body
// the way Stripe delivers it.
func CheckoutCompletedPayload(t *testing.T, eventID, sessionID, plan, email, customerID string) []byte {
	t.Helper()

	session := map[string]interface{}{
		"id":             sessionID,
		"payment_status": "paid",
	}
	if plan != "" {
		session["metadata"] = map[string]string{"plan": plan}
	}
	if email != "" {
		session["customer_details"] = map[string]string{"email": email}
	}
	if customerID != "" {
		session["customer"] = customerID
	}

	return EventPayload(t, eventID, "checkout.session.completed", session)
}

// EventPayload builds a raw Stripe event body for any event type.
func EventPayload(t *testing.T, eventID, eventType string, object map[string]interface{}) []byte {
	t.Helper()

	payload, err := json.Marshal(map[string]interface{}{
		"id":          eventID,
		"type":        eventType,
		"api_version": stripe.APIVersion,
		"data":        map[string]interface{}{"object": object},
	})
	if err != nil {
		t.Fatalf("Failed to marshal event payload: %v", err)
	}
	return payload
}

// StripeSignature computes a v1 signature header over the raw payload, the
// same scheme webhook.ConstructEvent verifies.
func StripeSignature(payload []byte, secret string, at time.Time) string {
	ts := at.Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts, payload)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

// PostWebhook sends a signed webhook request through the full router.
func PostWebhook(t *testing.T, server *handlers.Server, payload []byte, secret string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Stripe-Signature", StripeSignature(payload, secret, time.Now()))

	w := httptest.NewRecorder()
	server.ServeHTTP(w, req)
	return w
}

// PostJSON sends a JSON request through the full router.
func PostJSON(t *testing.T, server *handlers.Server, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("Failed to marshal request body: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	server.ServeHTTP(w, req)
	return w
}

// FlakyStorage wraps a Storage and lets tests force failures on specific
// operations.
type FlakyStorage struct {
	storage.Storage

	InsertErr error
	FindErr   error
	ExistsErr error
}

func (f *FlakyStorage) InsertKey(ctx context.Context, key *models.AccessKey) error {
	if f.InsertErr != nil {
		return f.InsertErr
	}
	return f.Storage.InsertKey(ctx, key)
}

func (f *FlakyStorage) FindKeyBySession(ctx context.Context, sessionID string) (*models.AccessKey, error) {
	if f.FindErr != nil {
		return nil, f.FindErr
	}
	return f.Storage.FindKeyBySession(ctx, sessionID)
}

func (f *FlakyStorage) FindKeyByValue(ctx context.Context, key string) (*models.AccessKey, error) {
	if f.FindErr != nil {
		return nil, f.FindErr
	}
	return f.Storage.FindKeyByValue(ctx, key)
}

func (f *FlakyStorage) KeyValueExists(ctx context.Context, key string) (bool, error) {
	if f.ExistsErr != nil {
		return false, f.ExistsErr
	}
	return f.Storage.KeyValueExists(ctx, key)
}

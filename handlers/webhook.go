package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"

	"rabisk.app/cloud/internal/issuance"
	"rabisk.app/cloud/internal/logger"
	"rabisk.app/cloud/models"
)

const maxWebhookBody = int64(65536)

// Webhook receives signed Stripe events. The signature is checked against
// the raw bytes exactly as received; the body must never be parsed or
// re-serialized before verification.
func (s *Server) Webhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBody)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		logger.Error("Failed to read webhook payload", map[string]interface{}{
			"error": err.Error(),
		})
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	event, err := webhook.ConstructEvent(payload, r.Header.Get("Stripe-Signature"), s.Config.StripeWebhookSecret)
	if err != nil {
		logger.Error("Webhook signature verification failed", map[string]interface{}{
			"error": err.Error(),
		})
		writeError(w, http.StatusBadRequest, "invalid signature")
		return
	}

	switch event.Type {
	case "checkout.session.completed":
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			logger.Error("Failed to unmarshal checkout session", map[string]interface{}{
				"error":    err.Error(),
				"event_id": event.ID,
			})
			writeError(w, http.StatusBadRequest, "malformed event")
			return
		}

		outcome, accessKey, err := s.Issuer.HandleCompletedCheckout(ctx, issuance.CompletedCheckout{
			SessionID:  sess.ID,
			Plan:       sess.Metadata["plan"],
			Email:      sessionEmail(&sess),
			CustomerID: sessionCustomerID(&sess),
		})
		if err != nil {
			logger.Error("Failed to process completed checkout", map[string]interface{}{
				"error":      err.Error(),
				"session_id": sess.ID,
				"event_id":   event.ID,
			})
			// Non-2xx asks Stripe to redeliver; a paid key must not be lost.
			writeError(w, http.StatusInternalServerError, "failed to process event")
			return
		}

		if outcome == issuance.OutcomeIssued {
			s.notifyPurchase(accessKey)
		}

	default:
		logger.Info("Ignoring unhandled event type", map[string]interface{}{
			"event_type": event.Type,
			"event_id":   event.ID,
		})
	}

	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}

func sessionEmail(sess *stripe.CheckoutSession) string {
	if sess.CustomerDetails != nil && sess.CustomerDetails.Email != "" {
		return sess.CustomerDetails.Email
	}
	return sess.CustomerEmail
}

func sessionCustomerID(sess *stripe.CheckoutSession) string {
	if sess.Customer != nil {
		return sess.Customer.ID
	}
	return ""
}

// notifyPurchase mails the freshly minted key. Failure is logged and
// swallowed: the key is already persisted and the webhook must still ack.
func (s *Server) notifyPurchase(accessKey *models.AccessKey) {
	if !s.Mailer.Configured() || accessKey.Email == "" {
		return
	}

	body := fmt.Sprintf(`Hello,

Thank you for your purchase! Your access key is ready.

Access key: %s
Plan: %s

Enter the key in the app to unlock your access. If you have any questions,
just reply to this email.

The Rabisk Team`, accessKey.Key, accessKey.Plan)

	if err := s.Mailer.Send(accessKey.Email, "Your Rabisk access key", body); err != nil {
		logger.Error("Failed to send purchase email", map[string]interface{}{
			"error":      err.Error(),
			"email":      accessKey.Email,
			"session_id": accessKey.StripeSessionID,
		})
		return
	}

	logger.Info("Purchase email sent", map[string]interface{}{
		"email":      accessKey.Email,
		"session_id": accessKey.StripeSessionID,
	})
}

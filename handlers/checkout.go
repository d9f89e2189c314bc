package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/stripe/stripe-go/v82"

	"rabisk.app/cloud/internal/logger"
	"rabisk.app/cloud/models"
)

type CheckoutRequest struct {
	Plan string `json:"plan"`
}

type CheckoutResponse struct {
	URL string `json:"url"`
}

// CreateCheckout opens a hosted Stripe checkout session for the requested
// plan. Thin glue around the collaborator; no state of our own.
func (s *Server) CreateCheckout(w http.ResponseWriter, r *http.Request) {
	var req CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid plan")
		return
	}

	var priceID string
	var mode stripe.CheckoutSessionMode
	switch req.Plan {
	case models.PlanLifetime:
		priceID = s.Config.PriceLifetime
		mode = stripe.CheckoutSessionModePayment
	case models.PlanSubscription:
		priceID = s.Config.PriceSubscription
		mode = stripe.CheckoutSessionModeSubscription
	default:
		writeError(w, http.StatusBadRequest, "invalid plan")
		return
	}

	if priceID == "" {
		logger.Error("No price configured for plan", map[string]interface{}{
			"plan": req.Plan,
		})
		writeError(w, http.StatusInternalServerError, "failed to create payment")
		return
	}

	params := &stripe.CheckoutSessionParams{
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{Price: stripe.String(priceID), Quantity: stripe.Int64(1)},
		},
		Mode:       stripe.String(string(mode)),
		SuccessURL: stripe.String(s.Config.FrontendURL + "/thanks?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:  stripe.String(s.Config.FrontendURL + "/#plans"),
	}
	params.AddMetadata("plan", req.Plan)

	sess, err := s.CreateSession(params)
	if err != nil {
		logger.Error("Failed to create checkout session", map[string]interface{}{
			"error": err.Error(),
			"plan":  req.Plan,
		})
		writeError(w, http.StatusInternalServerError, "failed to create payment")
		return
	}

	logger.Info("Checkout session created", map[string]interface{}{
		"session_id": sess.ID,
		"plan":       req.Plan,
	})

	writeJSON(w, http.StatusOK, CheckoutResponse{URL: sess.URL})
}

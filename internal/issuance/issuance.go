package issuance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"rabisk.app/cloud/internal/keygen"
	"rabisk.app/cloud/internal/logger"
	"rabisk.app/cloud/models"
	"rabisk.app/cloud/storage"
)

type Outcome int

const (
	// OutcomeIssued means a fresh access key was minted and persisted.
	OutcomeIssued Outcome = iota
	// OutcomeDuplicate means the checkout was already processed, either by
	// an earlier delivery or by a concurrent one that won the insert race.
	OutcomeDuplicate
)

// CompletedCheckout carries the fields the pipeline needs out of a verified
// checkout.session.completed event. Email and CustomerID may be empty.
type CompletedCheckout struct {
	SessionID  string
	Plan       string
	Email      string
	CustomerID string
}

var ErrMissingSessionID = errors.New("issuance: completed checkout has no session id")

type Service struct {
	store storage.Storage
}

func NewService(store storage.Storage) *Service {
	return &Service{store: store}
}

// HandleCompletedCheckout mints exactly one access key per checkout session,
// no matter how many times Stripe delivers the event. The duplicate
// pre-check is a fast path; correctness comes from the unique index on
// stripe_session_id, which settles concurrent deliveries at insert time.
func (s *Service) HandleCompletedCheckout(ctx context.Context, checkout CompletedCheckout) (Outcome, *models.AccessKey, error) {
	if checkout.SessionID == "" {
		return 0, nil, ErrMissingSessionID
	}

	existing, err := s.store.FindKeyBySession(ctx, checkout.SessionID)
	if err != nil {
		return 0, nil, fmt.Errorf("issuance: duplicate pre-check: %w", err)
	}
	if existing != nil {
		logger.Info("Checkout already processed, ignoring redelivery", map[string]interface{}{
			"session_id": checkout.SessionID,
		})
		return OutcomeDuplicate, existing, nil
	}

	for attempt := 0; attempt < keygen.MaxAttempts; attempt++ {
		key, err := keygen.Generate(ctx, s.store.KeyValueExists)
		if err != nil {
			return 0, nil, err
		}

		now := time.Now()
		accessKey := &models.AccessKey{
			ID:               uuid.Must(uuid.NewRandom()).String(),
			Key:              key,
			Email:            checkout.Email,
			Plan:             models.NormalizePlan(checkout.Plan),
			StripeSessionID:  checkout.SessionID,
			StripeCustomerID: checkout.CustomerID,
			IsActive:         true,
			CreatedAt:        now,
			UpdatedAt:        now,
		}

		err = s.store.InsertKey(ctx, accessKey)
		switch {
		case err == nil:
			logger.Info("Access key issued", map[string]interface{}{
				"access_key": accessKey.Key,
				"plan":       accessKey.Plan,
				"session_id": accessKey.StripeSessionID,
			})
			return OutcomeIssued, accessKey, nil

		case errors.Is(err, storage.ErrDuplicateSession):
			// A concurrent delivery won the race between the pre-check and
			// this insert. Its row is the authoritative one.
			winner, findErr := s.store.FindKeyBySession(ctx, checkout.SessionID)
			if findErr != nil {
				return 0, nil, fmt.Errorf("issuance: fetch winning row: %w", findErr)
			}
			logger.Info("Concurrent delivery already inserted this checkout", map[string]interface{}{
				"session_id": checkout.SessionID,
			})
			return OutcomeDuplicate, winner, nil

		case errors.Is(err, storage.ErrDuplicateKey):
			// Generator race: another request inserted this key value after
			// our pre-check. Redraw within the shared budget.
			logger.Warn("Key collided at insert time, redrawing", map[string]interface{}{
				"attempt": attempt + 1,
			})
			continue

		default:
			return 0, nil, fmt.Errorf("issuance: insert access key: %w", err)
		}
	}

	return 0, nil, keygen.ErrExhausted
}

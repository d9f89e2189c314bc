package keygen

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

const (
	// 6 random bytes encode to 12 uppercase hex characters, plenty of
	// headroom against collisions in a table of millions of rows.
	keyBytes = 6

	// MaxAttempts bounds both the pre-insert redraw loop here and the
	// insert-time retry loop in the issuance pipeline.
	MaxAttempts = 10
)

// ErrExhausted means no unused key was found within the attempt budget.
// Callers must surface this as a hard failure, never fall back to a
// predictable value.
var ErrExhausted = errors.New("keygen: could not find unused key within attempt budget")

// ExistsFunc reports whether a candidate key is already taken in storage.
type ExistsFunc func(ctx context.Context, key string) (bool, error)

// Generate draws random candidates until one is not present in storage.
// The existence check is only an optimization to avoid insert failures;
// the unique index on the key column is the actual uniqueness guarantee.
func Generate(ctx context.Context, exists ExistsFunc) (string, error) {
	for attempt := 0; attempt < MaxAttempts; attempt++ {
		key, err := Random()
		if err != nil {
			return "", err
		}

		taken, err := exists(ctx, key)
		if err != nil {
			return "", fmt.Errorf("keygen: check candidate: %w", err)
		}
		if !taken {
			return key, nil
		}
	}

	return "", ErrExhausted
}

// Random draws one fixed-width candidate from the crypto random source.
func Random() (string, error) {
	buf := make([]byte, keyBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("keygen: read random bytes: %w", err)
	}
	return strings.ToUpper(hex.EncodeToString(buf)), nil
}

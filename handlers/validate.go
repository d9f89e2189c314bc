package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"rabisk.app/cloud/internal/logger"
)

type ValidateRequest struct {
	Key string `json:"key"`
}

type ValidateResponse struct {
	Valid       bool   `json:"valid"`
	Plan        string `json:"plan,omitempty"`
	MaskedEmail string `json:"masked_email,omitempty"`
	Error       string `json:"error,omitempty"`
}

// ValidateKey answers whether a submitted key grants access. Read-only, and
// deliberately stingy with information: misses get a uniform shape after an
// artificial delay, inactive keys reveal neither plan nor email.
func (s *Server) ValidateKey(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req ValidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Key) == "" {
		writeJSON(w, http.StatusBadRequest, ValidateResponse{Valid: false, Error: "invalid request"})
		return
	}

	// Keys are case-insensitive for callers but stored canonically.
	clean := strings.ToUpper(strings.TrimSpace(req.Key))

	accessKey, err := s.Storage.FindKeyByValue(ctx, clean)
	if err != nil {
		logger.Error("Key lookup failed", map[string]interface{}{
			"error": err.Error(),
		})
		writeJSON(w, http.StatusInternalServerError, ValidateResponse{Valid: false, Error: "internal error"})
		return
	}

	if accessKey == nil {
		// Equalize the miss path's latency against the hit path so timing
		// reveals nothing to someone enumerating keys.
		time.Sleep(s.NotFoundDelay)
		writeJSON(w, http.StatusNotFound, ValidateResponse{Valid: false, Error: "invalid key"})
		return
	}

	if !accessKey.IsActive {
		writeJSON(w, http.StatusForbidden, ValidateResponse{Valid: false, Error: "key expired"})
		return
	}

	writeJSON(w, http.StatusOK, ValidateResponse{
		Valid:       true,
		Plan:        accessKey.Plan,
		MaskedEmail: maskEmail(accessKey.Email),
	})
}

// maskEmail keeps at most the first three characters of the local part and
// the full domain: "alice@example.com" becomes "ali***@example.com".
func maskEmail(email string) string {
	at := strings.Index(email, "@")
	if at < 0 {
		return ""
	}

	local := email[:at]
	if len(local) > 3 {
		local = local[:3]
	}
	return local + "***@" + email[at+1:]
}

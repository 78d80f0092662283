package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/HanTheDev/oncoassist/internal/auth"
	"github.com/HanTheDev/oncoassist/internal/db"
	"github.com/HanTheDev/oncoassist/internal/quota"
)

type countResponse struct {
	Count int64 `json:"count"`
}

// GetSessionQueryCount reports the anonymous counter for this browser.
// Read failures report zero, matching how the gate treats them.
func (h *Handler) GetSessionQueryCount(w http.ResponseWriter, r *http.Request) {
	id := anonymousIdentity(r)

	n, err := h.gate.Bind(w, r).Count(r.Context(), id)
	if err != nil {
		h.logger.Warn("Failed to read session query count", zap.Error(err))
		n = 0
	}

	writeJSON(w, http.StatusOK, countResponse{Count: n})
}

// SetSessionQueryCount overwrites the anonymous counter (last write wins).
func (h *Handler) SetSessionQueryCount(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Count *int64 `json:"count"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, 4096)).Decode(&req); err != nil || req.Count == nil || *req.Count < 0 {
		writeError(w, http.StatusBadRequest, "count must be a non-negative integer")
		return
	}

	id := anonymousIdentity(r)
	if err := h.gate.Bind(w, r).SetCount(r.Context(), id, *req.Count); err != nil {
		h.logger.Error("Failed to write session query count", zap.Error(err))
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *Handler) GetUserQueryCount(w http.ResponseWriter, r *http.Request) {
	var user quota.Authenticated
	switch id := auth.IdentityFromContext(r.Context()).(type) {
	case quota.Authenticated:
		user = id
	case quota.Anonymous:
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	n, err := h.gate.Bind(w, r).Count(r.Context(), user)
	if errors.Is(err, db.ErrNotFound) {
		// Token outlived its account.
		n, err = 0, nil
	}
	if err != nil {
		h.logger.Error("Error fetching query count", zap.Int64("user_id", user.UserID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to fetch query count")
		return
	}

	writeJSON(w, http.StatusOK, countResponse{Count: n})
}

// anonymousIdentity returns the caller's anonymous identity. Signed-in
// callers still carry their browser's anonymous counter, which is what
// the session endpoints expose.
func anonymousIdentity(r *http.Request) quota.Anonymous {
	switch id := auth.IdentityFromContext(r.Context()).(type) {
	case quota.Anonymous:
		return id
	case quota.Authenticated:
		if c, err := r.Cookie(auth.AnonymousCookieName); err == nil {
			return quota.Anonymous{SessionToken: c.Value}
		}
	}
	return quota.Anonymous{}
}

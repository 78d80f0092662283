// Package admin exposes operator endpoints for inspecting and resetting
// usage counters.
package admin

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/HanTheDev/oncoassist/internal/db"
	"github.com/HanTheDev/oncoassist/internal/models"
)

type UsageStore interface {
	GetUsageSummary(ctx context.Context, userID int64) (*models.UsageSummary, error)
	SetQueryCount(ctx context.Context, userID int64, n int64) error
}

// SessionResetter clears a server-side anonymous counter.
type SessionResetter interface {
	Reset(ctx context.Context, sessionToken string) error
}

type AdminHandler struct {
	store    UsageStore
	sessions SessionResetter
	token    string
	logger   *zap.Logger
}

// NewAdminHandler builds the admin API. sessions may be nil when anonymous
// counters live in cookies; session resets then answer 404.
func NewAdminHandler(store UsageStore, sessions SessionResetter, token string, logger *zap.Logger) *AdminHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdminHandler{store: store, sessions: sessions, token: token, logger: logger}
}

func (h *AdminHandler) RegisterRoutes(router *mux.Router) {
	r := router.PathPrefix("/admin").Subrouter()
	r.Use(h.requireToken)

	r.HandleFunc("/users/{id}/usage", h.GetUserUsage).Methods(http.MethodGet)
	r.HandleFunc("/users/{id}/usage", h.ResetUserUsage).Methods(http.MethodDelete)
	r.HandleFunc("/sessions/{token}/usage", h.ResetSessionUsage).Methods(http.MethodDelete)
}

func (h *AdminHandler) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		given, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if h.token == "" || !ok || subtle.ConstantTimeCompare([]byte(given), []byte(h.token)) != 1 {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func userID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	return id, err == nil && id > 0
}

func (h *AdminHandler) GetUserUsage(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid user ID")
		return
	}

	summary, err := h.store.GetUsageSummary(r.Context(), id)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			writeError(w, http.StatusNotFound, "User not found")
			return
		}
		h.logger.Error("Failed to load usage", zap.Int64("user_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to get usage")
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

func (h *AdminHandler) ResetUserUsage(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid user ID")
		return
	}

	if err := h.store.SetQueryCount(r.Context(), id, 0); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			writeError(w, http.StatusNotFound, "User not found")
			return
		}
		h.logger.Error("Failed to reset usage", zap.Int64("user_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to reset usage")
		return
	}

	h.logger.Info("User usage reset", zap.Int64("user_id", id))
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) ResetSessionUsage(w http.ResponseWriter, r *http.Request) {
	if h.sessions == nil {
		writeError(w, http.StatusNotFound, "Anonymous counters are not stored server-side")
		return
	}

	token := mux.Vars(r)["token"]
	if _, err := uuid.Parse(token); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid session token")
		return
	}

	if err := h.sessions.Reset(r.Context(), token); err != nil {
		h.logger.Error("Failed to reset session usage", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to reset usage")
		return
	}

	h.logger.Info("Session usage reset")
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

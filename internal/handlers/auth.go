package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/mail"
	"strings"

	"go.uber.org/zap"

	"github.com/HanTheDev/oncoassist/internal/auth"
	"github.com/HanTheDev/oncoassist/internal/db"
	"github.com/HanTheDev/oncoassist/internal/models"
)

type statusUser struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type statusResponse struct {
	IsLoggedIn bool        `json:"isLoggedIn"`
	User       *statusUser `json:"user"`
}

func (h *Handler) AuthStatus(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusOK, statusResponse{})
		return
	}

	writeJSON(w, http.StatusOK, statusResponse{
		IsLoggedIn: true,
		User:       &statusUser{Name: claims.Name, Email: claims.Email},
	})
}

type credentials struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func decodeCredentials(r *http.Request) (credentials, error) {
	var c credentials
	err := json.NewDecoder(io.LimitReader(r.Body, 4096)).Decode(&c)
	c.Email = strings.ToLower(strings.TrimSpace(c.Email))
	c.Name = strings.TrimSpace(c.Name)
	return c, err
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	req, err := decodeCredentials(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request")
		return
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		writeError(w, http.StatusBadRequest, "A valid email is required")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooShort) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, "Invalid password")
		return
	}

	user := &models.User{Name: req.Name, Email: req.Email, PasswordHash: hash}
	if err := h.store.CreateUser(r.Context(), user); err != nil {
		if errors.Is(err, db.ErrDuplicateEmail) {
			writeError(w, http.StatusConflict, "Email already registered")
			return
		}
		h.logger.Error("Failed to create user", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to create account")
		return
	}

	h.logger.Info("User registered", zap.Int64("user_id", user.ID))
	h.issueToken(w, user, http.StatusCreated)
}

func (h *Handler) Token(w http.ResponseWriter, r *http.Request) {
	req, err := decodeCredentials(r)
	if err != nil || req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Invalid request")
		return
	}

	user, err := h.store.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		if !errors.Is(err, db.ErrNotFound) {
			h.logger.Error("User lookup failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "Failed to sign in")
			return
		}
		writeError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}
	if !auth.CheckPassword(user.PasswordHash, req.Password) {
		writeError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}

	h.issueToken(w, user, http.StatusOK)
}

func (h *Handler) issueToken(w http.ResponseWriter, user *models.User, status int) {
	token, err := auth.GenerateToken(user.ID, user.Name, user.Email, h.jwtSecret)
	if err != nil {
		h.logger.Error("Token generation failed", zap.Int64("user_id", user.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	h.auth.SetSessionCookie(w, token)
	writeJSON(w, status, map[string]any{
		"token": token,
		"user":  statusUser{Name: user.Name, Email: user.Email},
	})
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.auth.ClearSessionCookie(w)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": "1.0.0",
	})
}

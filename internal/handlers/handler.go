// Package handlers serves the chat, analysis, usage and account endpoints.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/HanTheDev/oncoassist/internal/auth"
	"github.com/HanTheDev/oncoassist/internal/inference"
	"github.com/HanTheDev/oncoassist/internal/llm"
	"github.com/HanTheDev/oncoassist/internal/models"
	"github.com/HanTheDev/oncoassist/internal/quota"
)

const limitExceededMessage = "Query limit exceeded. Please sign up to continue."

// Store is the persistence the handlers need beyond the usage counter.
type Store interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	LogQuery(ctx context.Context, q *models.Query) error
	LogAnalysis(ctx context.Context, a *models.Analysis) error
}

type ChatClient interface {
	Stream(ctx context.Context, messages []llm.Message, onDelta func(string) error) error
}

type Classifier interface {
	Predict(ctx context.Context, t inference.CancerType, image []byte, contentType string) ([]float64, error)
}

type Options struct {
	Gate           *quota.Gate
	Store          Store
	Chat           ChatClient
	Classifier     Classifier
	Auth           *auth.Middleware
	JWTSecret      string
	MaxUploadBytes int64
	Logger         *zap.Logger
}

type Handler struct {
	gate       *quota.Gate
	store      Store
	chat       ChatClient
	classifier Classifier
	auth       *auth.Middleware
	jwtSecret  string
	maxUpload  int64
	logger     *zap.Logger
}

func NewHandler(opts Options) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	maxUpload := opts.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = 10 << 20
	}
	return &Handler{
		gate:       opts.Gate,
		store:      opts.Store,
		chat:       opts.Chat,
		classifier: opts.Classifier,
		auth:       opts.Auth,
		jwtSecret:  opts.JWTSecret,
		maxUpload:  maxUpload,
		logger:     logger,
	}
}

func (h *Handler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/health", h.Health).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/chat", h.Chat).Methods(http.MethodPost)
	api.HandleFunc("/analyze/{type}", h.Analyze).Methods(http.MethodPost)

	api.HandleFunc("/session/query-count", h.GetSessionQueryCount).Methods(http.MethodGet)
	api.HandleFunc("/session/query-count", h.SetSessionQueryCount).Methods(http.MethodPost)
	api.HandleFunc("/user/query-count", h.GetUserQueryCount).Methods(http.MethodGet)

	api.HandleFunc("/auth/status", h.AuthStatus).Methods(http.MethodGet)
	api.HandleFunc("/auth/register", h.Register).Methods(http.MethodPost)
	api.HandleFunc("/auth/token", h.Token).Methods(http.MethodPost)
	api.HandleFunc("/auth/logout", h.Logout).Methods(http.MethodPost)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func limitExceeded(w http.ResponseWriter) {
	writeError(w, http.StatusTooManyRequests, limitExceededMessage)
}

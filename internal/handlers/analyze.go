package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/HanTheDev/oncoassist/internal/auth"
	"github.com/HanTheDev/oncoassist/internal/inference"
	"github.com/HanTheDev/oncoassist/internal/models"
	"github.com/HanTheDev/oncoassist/internal/quota"
)

func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	cancerType, ok := inference.ParseCancerType(mux.Vars(r)["type"])
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid cancer type. Supported types: brain, breast, skin")
		return
	}

	id := auth.IdentityFromContext(ctx)
	meter := h.gate.Bind(w, r)

	decision := meter.Authorize(ctx, id, quota.OpImageAnalysis)
	if !decision.Allowed() {
		limitExceeded(w)
		return
	}

	image, contentType, status, msg := h.readImage(w, r)
	if status != 0 {
		writeError(w, status, msg)
		return
	}

	// Charged before the classifier runs: a model failure still counts.
	if receipt := meter.RecordUsage(ctx, decision); receipt.Denied {
		limitExceeded(w)
		return
	}

	probabilities, err := h.classifier.Predict(ctx, cancerType, image, contentType)
	if err != nil {
		h.logger.Error("Image analysis failed", zap.String("type", string(cancerType)), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to analyze image")
		return
	}

	result, err := inference.Assess(cancerType, probabilities)
	if err != nil {
		h.logger.Error("Unusable prediction", zap.String("type", string(cancerType)), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to analyze image")
		return
	}

	h.recordAnalysis(ctx, id, cancerType, result)

	writeJSON(w, http.StatusOK, result)
}

// readImage pulls the "image" field out of a multipart form. A non-zero
// status means the request is rejected with msg.
func (h *Handler) readImage(w http.ResponseWriter, r *http.Request) ([]byte, string, int, string) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)

	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, "", http.StatusRequestEntityTooLarge, "Image too large"
		}
		return nil, "", http.StatusBadRequest, "No image provided"
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("image")
	if err != nil {
		return nil, "", http.StatusBadRequest, "No image provided"
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil || len(data) == 0 {
		return nil, "", http.StatusBadRequest, "No image provided"
	}

	return data, header.Header.Get("Content-Type"), 0, ""
}

func (h *Handler) recordAnalysis(ctx context.Context, id quota.Identity, t inference.CancerType, result inference.Result) {
	switch id := id.(type) {
	case quota.Authenticated:
		a := &models.Analysis{
			UserID:     id.UserID,
			Type:       string(t),
			Result:     result.HasCancer,
			Confidence: result.Confidence,
			RiskLevel:  string(result.RiskLevel),
		}
		if err := h.store.LogAnalysis(ctx, a); err != nil {
			h.logger.Error("Failed to store analysis", zap.Int64("user_id", id.UserID), zap.Error(err))
		}
	case quota.Anonymous:
	}
}

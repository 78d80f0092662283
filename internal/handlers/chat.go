package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/HanTheDev/oncoassist/internal/auth"
	"github.com/HanTheDev/oncoassist/internal/llm"
	"github.com/HanTheDev/oncoassist/internal/models"
	"github.com/HanTheDev/oncoassist/internal/quota"
)

const maxChatBodyBytes = 1 << 20

type chatRequest struct {
	Messages []llm.Message `json:"messages"`
}

// Chat streams an LLM answer using the AI SDK data stream line format:
// text parts as `0:"..."`, an error part as `3:"..."`, and a closing
// `d:{...}` finish part.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req chatRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxChatBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request")
		return
	}
	if len(req.Messages) == 0 || req.Messages[len(req.Messages)-1].Content == "" {
		writeError(w, http.StatusBadRequest, "At least one message is required")
		return
	}
	for _, m := range req.Messages {
		if m.Role != "user" && m.Role != "assistant" {
			writeError(w, http.StatusBadRequest, "Message role must be user or assistant")
			return
		}
	}

	id := auth.IdentityFromContext(ctx)
	meter := h.gate.Bind(w, r)

	decision := meter.Authorize(ctx, id, quota.OpChat)
	if !decision.Allowed() {
		limitExceeded(w)
		return
	}
	// Charged before the provider call: a failed completion still counts.
	if receipt := meter.RecordUsage(ctx, decision); receipt.Denied {
		limitExceeded(w)
		return
	}

	h.recordChatTurn(ctx, id, req.Messages[len(req.Messages)-1].Content)

	flusher, _ := w.(http.Flusher)
	started := false
	start := func() {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("X-Vercel-AI-Data-Stream", "v1")
		w.WriteHeader(http.StatusOK)
		started = true
	}

	err := h.chat.Stream(ctx, req.Messages, func(delta string) error {
		if !started {
			start()
		}
		if err := writeStreamPart(w, '0', delta); err != nil {
			return err
		}
		if flusher != nil {
			flusher.Flush()
		}
		return nil
	})

	if err != nil {
		h.logger.Error("Chat completion failed",
			zap.String("identity", id.Kind()),
			zap.Bool("streaming", started),
			zap.Error(err),
		)
		if !started {
			writeError(w, http.StatusInternalServerError, "Failed to generate response")
			return
		}
		writeStreamPart(w, '3', "An error occurred while generating the response.")
		return
	}

	if !started {
		start()
	}
	fmt.Fprint(w, `d:{"finishReason":"stop"}`+"\n")
	if flusher != nil {
		flusher.Flush()
	}
}

func writeStreamPart(w io.Writer, code byte, text string) error {
	encoded, err := json.Marshal(text)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%c:%s\n", code, encoded)
	return err
}

// recordChatTurn keeps the history of authenticated users. Failures are
// logged only.
func (h *Handler) recordChatTurn(ctx context.Context, id quota.Identity, content string) {
	switch id := id.(type) {
	case quota.Authenticated:
		q := &models.Query{UserID: id.UserID, Type: string(quota.OpChat), Content: content}
		if err := h.store.LogQuery(ctx, q); err != nil {
			h.logger.Error("Failed to store chat query", zap.Int64("user_id", id.UserID), zap.Error(err))
		}
	case quota.Anonymous:
	}
}

// Command devbackend stands in for the LLM provider and the image
// classification service during local development.
package main

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/HanTheDev/oncoassist/internal/inference"
)

func main() {
	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	port := os.Getenv("DEVBACKEND_PORT")
	if port == "" {
		port = "9000"
	}

	router := mux.NewRouter()
	router.HandleFunc("/predict/{type}", predict(logger)).Methods(http.MethodPost)
	router.HandleFunc("/chat/completions", completions(logger)).Methods(http.MethodPost)

	logger.Info("Dev backend starting", zap.String("port", port))
	if err := http.ListenAndServe(":"+port, router); err != nil {
		logger.Fatal("Dev backend failed", zap.Error(err))
	}
}

// predict answers with probabilities derived from the image digest, so the
// same upload always yields the same verdict.
func predict(logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, ok := inference.ParseCancerType(mux.Vars(r)["type"])
		if !ok {
			http.Error(w, "unknown model", http.StatusNotFound)
			return
		}

		image, err := io.ReadAll(io.LimitReader(r.Body, 32<<20))
		if err != nil || len(image) == 0 {
			http.Error(w, "empty image", http.StatusBadRequest)
			return
		}

		sum := sha256.Sum256(image)
		p := float64(binary.BigEndian.Uint16(sum[:2])) / 65535

		logger.Info("Prediction served",
			zap.String("type", string(t)),
			zap.String("size", r.URL.Query().Get("size")),
			zap.Int("bytes", len(image)),
			zap.Float64("cancer_probability", p),
		)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string][]float64{"probabilities": {1 - p, p}})
	}
}

// completions streams an OpenAI-style chunked reply that echoes the last
// user message word by word.
func completions(logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
		if err != nil || !gjson.ValidBytes(body) {
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}

		var question string
		gjson.GetBytes(body, "messages").ForEach(func(_, m gjson.Result) bool {
			if m.Get("role").String() == "user" {
				question = m.Get("content").String()
			}
			return true
		})

		flusher, _ := w.(http.Flusher)
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")

		reply := fmt.Sprintf("This is a development reply to: %s. Please consult a healthcare professional.", question)
		for i, word := range strings.Fields(reply) {
			if i > 0 {
				word = " " + word
			}
			chunk, _ := json.Marshal(map[string]any{
				"choices": []map[string]any{{"delta": map[string]string{"content": word}}},
			})
			fmt.Fprintf(w, "data: %s\n\n", chunk)
			if flusher != nil {
				flusher.Flush()
			}
			time.Sleep(20 * time.Millisecond)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")

		logger.Info("Completion served", zap.String("model", gjson.GetBytes(body, "model").String()))
	}
}

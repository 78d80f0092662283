// Package llm streams chat completions from an OpenAI-compatible provider.
package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/HanTheDev/oncoassist/internal/metrics"
)

// SystemPrompt frames every conversation.
const SystemPrompt = `You are a helpful AI assistant specializing in cancer-related information.
Provide accurate, compassionate, and educational responses about cancer types,
symptoms, treatments, prevention, and support resources.

Always clarify that you're providing general information and not medical advice.
Encourage users to consult healthcare professionals for diagnosis and treatment.

Be empathetic when discussing sensitive topics and provide evidence-based information.`

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// APIError is a non-2xx answer from the provider.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("llm provider returned %d: %s", e.StatusCode, e.Body)
}

type Client struct {
	baseURL    string
	apiKey     string
	model      string
	timeout    time.Duration
	httpClient *http.Client
	logger     *zap.Logger
}

func NewClient(cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		timeout: timeout,
		httpClient: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		logger: logger,
	}
}

type completionRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
}

// Stream sends the conversation and calls onDelta for every content chunk
// in order. It returns once the provider sends [DONE] or closes the stream.
func (c *Client) Stream(ctx context.Context, messages []Message, onDelta func(string) error) error {
	start := time.Now()
	err := c.stream(ctx, messages, onDelta)

	result := "ok"
	if err != nil {
		result = "error"
	}
	metrics.CollaboratorRequests.WithLabelValues("llm", result).Inc()
	metrics.CollaboratorLatency.WithLabelValues("llm").Observe(time.Since(start).Seconds())
	return err
}

func (c *Client) stream(ctx context.Context, messages []Message, onDelta func(string) error) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(completionRequest{
		Model:    c.model,
		Messages: append([]Message{{Role: "system", Content: SystemPrompt}}, messages...),
		Stream:   true,
	})
	if err != nil {
		return fmt.Errorf("encode completion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("llm request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}

	return readEvents(resp.Body, onDelta)
}

// readEvents walks a server-sent event stream of completion chunks.
func readEvents(r io.Reader, onDelta func(string) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "[DONE]" {
			return nil
		}
		if !gjson.Valid(payload) {
			continue
		}

		chunk := gjson.Parse(payload)
		if msg := chunk.Get("error.message"); msg.Exists() {
			return errors.New("llm stream error: " + msg.String())
		}
		content := chunk.Get("choices.0.delta.content").String()
		if content == "" {
			continue
		}
		if err := onDelta(content); err != nil {
			return err
		}
	}
	return scanner.Err()
}

// Package inference talks to the image classification service and turns
// its probabilities into a risk report.
package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/HanTheDev/oncoassist/internal/metrics"
)

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Predict sends the raw image to the classifier for t and returns its
// [normal, cancer] probabilities. Resizing and normalisation happen on
// the service side; size tells it the edge length the model was trained on.
func (c *Client) Predict(ctx context.Context, t CancerType, image []byte, contentType string) ([]float64, error) {
	start := time.Now()
	probs, err := c.predict(ctx, t, image, contentType)

	result := "ok"
	if err != nil {
		result = "error"
	}
	metrics.CollaboratorRequests.WithLabelValues("inference", result).Inc()
	metrics.CollaboratorLatency.WithLabelValues("inference").Observe(time.Since(start).Seconds())
	return probs, err
}

func (c *Client) predict(ctx context.Context, t CancerType, image []byte, contentType string) ([]float64, error) {
	endpoint := fmt.Sprintf("%s/predict/%s?size=%s", c.baseURL, t, strconv.Itoa(t.InputSize()))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(image))
	if err != nil {
		return nil, err
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach %s model: %w", t, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s model returned %d: %s", t, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var result struct {
		Probabilities []float64 `json:"probabilities"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decode %s prediction: %w", t, err)
	}

	return result.Probabilities, nil
}

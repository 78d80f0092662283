// Package cache remembers classifier output for images it has already seen.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/HanTheDev/oncoassist/internal/inference"
	"github.com/HanTheDev/oncoassist/internal/metrics"
)

type Predictor interface {
	Predict(ctx context.Context, t inference.CancerType, image []byte, contentType string) ([]float64, error)
}

// PredictionCache wraps a Predictor with an exact-match cache keyed by
// model and image digest. Cache errors never fail a prediction.
type PredictionCache struct {
	next   Predictor
	redis  *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewPredictionCache(next Predictor, client *redis.Client, ttl time.Duration, logger *zap.Logger) *PredictionCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PredictionCache{next: next, redis: client, ttl: ttl, logger: logger}
}

func key(t inference.CancerType, image []byte) string {
	return fmt.Sprintf("prediction:%s:%x", t, sha256.Sum256(image))
}

func (c *PredictionCache) Predict(ctx context.Context, t inference.CancerType, image []byte, contentType string) ([]float64, error) {
	k := key(t, image)

	if probs, ok := c.get(ctx, k); ok {
		metrics.PredictionCache.WithLabelValues("hit").Inc()
		return probs, nil
	}
	metrics.PredictionCache.WithLabelValues("miss").Inc()

	probs, err := c.next.Predict(ctx, t, image, contentType)
	if err != nil {
		return nil, err
	}

	encoded, _ := json.Marshal(probs)
	if err := c.redis.Set(ctx, k, encoded, c.ttl).Err(); err != nil {
		c.logger.Warn("Failed to cache prediction", zap.String("type", string(t)), zap.Error(err))
	}
	return probs, nil
}

func (c *PredictionCache) get(ctx context.Context, k string) ([]float64, bool) {
	raw, err := c.redis.Get(ctx, k).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("Prediction cache lookup failed", zap.Error(err))
		}
		return nil, false
	}

	var probs []float64
	if err := json.Unmarshal(raw, &probs); err != nil || len(probs) < 2 {
		return nil, false
	}
	return probs, true
}

package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HanTheDev/oncoassist/internal/inference"
)

type countingPredictor struct {
	calls int
	probs []float64
	err   error
}

func (p *countingPredictor) Predict(ctx context.Context, t inference.CancerType, image []byte, contentType string) ([]float64, error) {
	p.calls++
	return p.probs, p.err
}

func setup(t *testing.T, next Predictor) (*PredictionCache, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewPredictionCache(next, client, time.Hour, nil), mr
}

func TestPredictionCache_HitSkipsClassifier(t *testing.T) {
	inner := &countingPredictor{probs: []float64{0.3, 0.7}}
	c, _ := setup(t, inner)
	ctx := context.Background()
	image := []byte("scan-bytes")

	first, err := c.Predict(ctx, inference.Skin, image, "image/png")
	require.NoError(t, err)
	second, err := c.Predict(ctx, inference.Skin, image, "image/png")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.calls)
}

func TestPredictionCache_KeyedByModel(t *testing.T) {
	inner := &countingPredictor{probs: []float64{0.9, 0.1}}
	c, _ := setup(t, inner)
	ctx := context.Background()

	_, err := c.Predict(ctx, inference.Brain, []byte("x"), "")
	require.NoError(t, err)
	_, err = c.Predict(ctx, inference.Breast, []byte("x"), "")
	require.NoError(t, err)

	assert.Equal(t, 2, inner.calls)
}

func TestPredictionCache_ErrorsAreNotCached(t *testing.T) {
	inner := &countingPredictor{err: errors.New("model offline")}
	c, mr := setup(t, inner)
	ctx := context.Background()

	_, err := c.Predict(ctx, inference.Brain, []byte("x"), "")
	assert.Error(t, err)
	assert.Empty(t, mr.Keys())
}

func TestPredictionCache_ExpiresAfterTTL(t *testing.T) {
	inner := &countingPredictor{probs: []float64{0.5, 0.5}}
	c, mr := setup(t, inner)
	ctx := context.Background()

	_, err := c.Predict(ctx, inference.Skin, []byte("x"), "")
	require.NoError(t, err)
	mr.FastForward(2 * time.Hour)
	_, err = c.Predict(ctx, inference.Skin, []byte("x"), "")
	require.NoError(t, err)

	assert.Equal(t, 2, inner.calls)
}

func TestPredictionCache_RedisDownFallsThrough(t *testing.T) {
	inner := &countingPredictor{probs: []float64{0.2, 0.8}}
	c, mr := setup(t, inner)
	mr.Close()

	probs, err := c.Predict(context.Background(), inference.Skin, []byte("x"), "")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.2, 0.8}, probs)
}

package inference

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCancerType(t *testing.T) {
	for _, s := range []string{"brain", "breast", "skin"} {
		ct, ok := ParseCancerType(s)
		assert.True(t, ok)
		assert.Equal(t, CancerType(s), ct)
	}

	_, ok := ParseCancerType("lung")
	assert.False(t, ok)
	_, ok = ParseCancerType("Brain")
	assert.False(t, ok)
}

func TestInputSize(t *testing.T) {
	assert.Equal(t, 256, Brain.InputSize())
	assert.Equal(t, 299, Breast.InputSize())
	assert.Equal(t, 224, Skin.InputSize())
}

func TestRiskLevelFor(t *testing.T) {
	tests := []struct {
		p    float64
		want RiskLevel
	}{
		{0, RiskLow},
		{0.59, RiskLow},
		{0.6, RiskMedium},
		{0.79, RiskMedium},
		{0.8, RiskHigh},
		{1, RiskHigh},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RiskLevelFor(tt.p), "p=%v", tt.p)
	}
}

func TestAssess(t *testing.T) {
	t.Run("negative result", func(t *testing.T) {
		res, err := Assess(Skin, []float64{0.7, 0.3})
		require.NoError(t, err)

		assert.False(t, res.HasCancer)
		assert.InDelta(t, 30.0, res.Confidence, 1e-9)
		assert.Equal(t, RiskLow, res.RiskLevel)
		assert.Contains(t, res.Details, "low probability (30.00%)")
		assert.Len(t, res.Recommendations, 5)
		assert.Equal(t, "Continue regular skin self-exams", res.Recommendations[3])
	})

	t.Run("positive but low risk bucket", func(t *testing.T) {
		res, err := Assess(Brain, []float64{0.45, 0.55})
		require.NoError(t, err)

		assert.True(t, res.HasCancer)
		assert.Equal(t, RiskLow, res.RiskLevel)
		assert.Contains(t, res.Details, "brain tissue")
	})

	t.Run("high risk", func(t *testing.T) {
		res, err := Assess(Breast, []float64{0.1, 0.9})
		require.NoError(t, err)

		assert.Equal(t, RiskHigh, res.RiskLevel)
		assert.Len(t, res.Recommendations, 6)
		assert.Equal(t, "Prepare for a biopsy procedure", res.Recommendations[4])
	})

	t.Run("malformed", func(t *testing.T) {
		_, err := Assess(Skin, []float64{1})
		assert.ErrorIs(t, err, ErrMalformedPrediction)

		_, err = Assess(Skin, []float64{0, 1.5})
		assert.ErrorIs(t, err, ErrMalformedPrediction)
	})
}

func TestClient_Predict(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/predict/breast", r.URL.Path)
		assert.Equal(t, "299", r.URL.Query().Get("size"))
		assert.Equal(t, "image/png", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "png-bytes", string(body))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"probabilities":[0.25,0.75]}`))
	}))
	defer srv.Close()

	probs, err := NewClient(srv.URL+"/", 0).Predict(context.Background(), Breast, []byte("png-bytes"), "image/png")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.25, 0.75}, probs)
}

func TestClient_PredictErrors(t *testing.T) {
	t.Run("server error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "model not loaded", http.StatusInternalServerError)
		}))
		defer srv.Close()

		_, err := NewClient(srv.URL, 0).Predict(context.Background(), Skin, []byte("x"), "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "model not loaded")
	})

	t.Run("bad json", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "application/octet-stream", r.Header.Get("Content-Type"))
			w.Write([]byte(`nope`))
		}))
		defer srv.Close()

		_, err := NewClient(srv.URL, 0).Predict(context.Background(), Skin, []byte("x"), "")
		assert.Error(t, err)
	})

	t.Run("unreachable", func(t *testing.T) {
		_, err := NewClient("http://127.0.0.1:1", 0).Predict(context.Background(), Skin, []byte("x"), "")
		assert.Error(t, err)
	})
}

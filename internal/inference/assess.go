package inference

import (
	"errors"
	"fmt"
)

// CancerType selects the classifier.
type CancerType string

const (
	Brain  CancerType = "brain"
	Breast CancerType = "breast"
	Skin   CancerType = "skin"
)

// SupportedTypes lists the classifiers in display order.
var SupportedTypes = []CancerType{Brain, Breast, Skin}

func ParseCancerType(s string) (CancerType, bool) {
	for _, t := range SupportedTypes {
		if string(t) == s {
			return t, true
		}
	}
	return "", false
}

// InputSize is the square edge in pixels the classifier expects.
func (t CancerType) InputSize() int {
	switch t {
	case Brain:
		return 256
	case Breast:
		return 299
	default:
		return 224
	}
}

type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// RiskLevelFor buckets the cancer probability.
func RiskLevelFor(p float64) RiskLevel {
	switch {
	case p < 0.6:
		return RiskLow
	case p < 0.8:
		return RiskMedium
	default:
		return RiskHigh
	}
}

type Result struct {
	HasCancer       bool      `json:"hasCancer"`
	Confidence      float64   `json:"confidence"`
	Details         string    `json:"details"`
	RiskLevel       RiskLevel `json:"riskLevel"`
	Recommendations []string  `json:"recommendations"`
}

var ErrMalformedPrediction = errors.New("inference: expected [normal, cancer] probabilities")

// Assess turns the classifier output [p_normal, p_cancer] into a report.
func Assess(t CancerType, probabilities []float64) (Result, error) {
	if len(probabilities) < 2 {
		return Result{}, ErrMalformedPrediction
	}
	p := probabilities[1]
	if p < 0 || p > 1 {
		return Result{}, fmt.Errorf("%w: cancer probability %v out of range", ErrMalformedPrediction, p)
	}

	hasCancer := p > 0.5
	risk := RiskLevelFor(p)

	return Result{
		HasCancer:       hasCancer,
		Confidence:      p * 100,
		Details:         details(t, hasCancer, p),
		RiskLevel:       risk,
		Recommendations: recommendations(t, risk),
	}, nil
}

var baseRecommendations = []string{
	"Consult with a healthcare professional for a comprehensive evaluation",
	"Maintain a healthy lifestyle with proper diet and exercise",
	"Stay informed about cancer screening guidelines",
}

var typeRecommendations = map[CancerType]map[RiskLevel][]string{
	Brain: {
		RiskLow: {
			"Consider a follow-up scan in 6-12 months",
			"Monitor for any new or worsening neurological symptoms",
		},
		RiskMedium: {
			"Schedule a consultation with a neurologist",
			"Consider an MRI with contrast for more detailed imaging",
			"Discuss potential biopsy options if recommended",
		},
		RiskHigh: {
			"Seek immediate consultation with a neurosurgeon",
			"Prepare for additional diagnostic procedures",
			"Discuss treatment options including surgery, radiation, and chemotherapy",
		},
	},
	Breast: {
		RiskLow: {
			"Continue regular breast self-exams",
			"Maintain routine mammogram schedule",
		},
		RiskMedium: {
			"Schedule a follow-up with a breast specialist",
			"Consider additional imaging such as ultrasound or MRI",
			"Discuss biopsy options with your healthcare provider",
		},
		RiskHigh: {
			"Seek immediate consultation with a breast cancer specialist",
			"Prepare for a biopsy procedure",
			"Discuss treatment planning including surgery options",
		},
	},
	Skin: {
		RiskLow: {
			"Continue regular skin self-exams",
			"Use sun protection and avoid excessive UV exposure",
		},
		RiskMedium: {
			"Schedule an appointment with a dermatologist",
			"Consider dermoscopy or other specialized skin imaging",
			"Discuss potential biopsy options",
		},
		RiskHigh: {
			"Seek immediate consultation with a dermatologist or skin cancer specialist",
			"Prepare for a biopsy procedure",
			"Monitor the lesion for any changes while awaiting your appointment",
		},
	},
}

func recommendations(t CancerType, risk RiskLevel) []string {
	out := make([]string, 0, len(baseRecommendations)+3)
	out = append(out, baseRecommendations...)
	return append(out, typeRecommendations[t][risk]...)
}

var positiveDetails = map[CancerType]string{
	Brain: "Analysis shows potential abnormalities in the brain tissue. The AI model has detected patterns that may indicate the presence of a tumor. " +
		"The specific location and characteristics of the abnormality would require further evaluation by a specialist.",
	Breast: "Mammogram analysis indicates potential dense tissue areas that may require further investigation. " +
		"The AI model has identified patterns consistent with potential malignancy. Additional imaging and possibly a biopsy would be needed for a definitive diagnosis.",
	Skin: "The skin lesion shows irregular borders and color variations. The AI model has detected features that are consistent with potential melanoma or other skin cancers. " +
		"The ABCDE criteria (Asymmetry, Border irregularity, Color variation, Diameter, Evolution) suggest further evaluation is warranted.",
}

func details(t CancerType, hasCancer bool, p float64) string {
	if !hasCancer {
		return fmt.Sprintf("The analysis indicates a low probability (%.2f%%) of cancer. "+
			"However, regular monitoring and following standard screening guidelines is still recommended.", p*100)
	}
	return positiveDetails[t]
}

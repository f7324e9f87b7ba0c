package classify

import (
	"fmt"
	"log/slog"
	"math"
	"strconv"

	"github.com/veil-waf/phishguard/internal/model"
)

// Scorer runs the full cascade for one URL:
// normalize → numeric features + lexical vector → assemble → infer → assess.
// It holds only read-only artifacts and is safe for concurrent use.
type Scorer struct {
	art    *Artifacts
	logger *slog.Logger
}

// NewScorer creates a scorer over already-loaded artifacts.
func NewScorer(art *Artifacts, logger *slog.Logger) *Scorer {
	return &Scorer{art: art, logger: logger}
}

// Vectorize builds the combined feature row for a normalized URL.
func (s *Scorer) Vectorize(normalized string, f Features) (model.SparseVector, error) {
	if s.art == nil || s.art.Vectorizer == nil {
		return model.SparseVector{}, ErrVectorizerUnavailable
	}
	if s.art.Classifier == nil {
		return model.SparseVector{}, ErrClassifierUnavailable
	}

	lexical, err := s.art.Vectorizer.Transform(normalized)
	if err != nil {
		return model.SparseVector{}, fmt.Errorf("vectorize %q: %w", normalized, err)
	}
	numeric := f.Values()

	x, err := Assemble(lexical, numeric, s.art.Classifier)
	if err != nil {
		return model.SparseVector{}, err
	}
	s.logger.Debug("feature vector assembled",
		"lexical", lexical.Width, "numeric", len(numeric), "total", x.Width)
	return x, nil
}

// Score classifies rawURL. Any artifact, vectorization or inference failure
// is returned; there is no fallback prediction.
func (s *Scorer) Score(rawURL string) (*Prediction, error) {
	normalized := Normalize(rawURL)
	features := ExtractFeatures(normalized)

	x, err := s.Vectorize(normalized, features)
	if err != nil {
		return nil, err
	}
	if s.art.Labels == nil {
		return nil, ErrLabelEncoderUnavailable
	}

	predIdx, err := s.art.Classifier.Predict(x)
	if err != nil {
		return nil, &InferenceError{Err: err}
	}
	proba, err := s.art.Classifier.PredictProba(x)
	if err != nil {
		return nil, &InferenceError{Err: err}
	}

	classes := s.art.Labels.Classes()
	if len(proba) != len(classes) {
		return nil, &InferenceError{Err: fmt.Errorf("classifier returned %d probabilities for %d classes", len(proba), len(classes))}
	}

	label := s.labelFor(predIdx, classes)

	probs := make(map[string]float64, len(classes))
	for i, c := range classes {
		probs[c] = proba[i]
	}

	phishingProb, ok := probs[PhishingLabel]
	if !ok {
		phishingProb = probs[label]
	}
	score := int(math.RoundToEven(phishingProb * 100))
	isPhishing := label == PhishingLabel

	pred := &Prediction{
		URL:           rawURL,
		Normalized:    normalized,
		Label:         label,
		IsPhishing:    isPhishing,
		Score:         score,
		Confidence:    proba[model.Argmax(proba)],
		Probabilities: probs,
		Features:      features,
		Risk:          AssessRisk(score, isPhishing, features),
	}

	s.logger.Info("url scored",
		"normalized", normalized,
		"prediction", label,
		"score", score,
		"severity", pred.Risk.Severity,
	)
	return pred, nil
}

// labelFor resolves a class index, falling back to positional lookup and
// finally to the index itself.
func (s *Scorer) labelFor(idx int, classes []string) string {
	if label, err := s.art.Labels.InverseTransform(idx); err == nil {
		return label
	}
	if idx >= 0 && idx < len(classes) {
		return classes[idx]
	}
	return strconv.Itoa(idx)
}

package classify

import (
	"errors"
	"fmt"
)

var (
	// ErrVectorizerUnavailable is returned when the lexical vectorizer was
	// never loaded.
	ErrVectorizerUnavailable = errors.New("lexical vectorizer unavailable")
	// ErrClassifierUnavailable is returned when the classifier was never loaded.
	ErrClassifierUnavailable = errors.New("classifier unavailable")
	// ErrLabelEncoderUnavailable is returned when the label encoder was never loaded.
	ErrLabelEncoderUnavailable = errors.New("label encoder unavailable")
)

// ArtifactLoadError reports a trained artifact that could not be read or decoded.
type ArtifactLoadError struct {
	Artifact string
	Path     string
	Err      error
}

func (e *ArtifactLoadError) Error() string {
	return fmt.Sprintf("load %s artifact %q: %v", e.Artifact, e.Path, e.Err)
}

func (e *ArtifactLoadError) Unwrap() error { return e.Err }

// DimensionMismatchError reports an assembled vector whose width differs
// from the width the classifier was trained on.
type DimensionMismatchError struct {
	Expected int
	Got      int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("feature count mismatch: expected %d, got %d (difference %d)",
		e.Expected, e.Got, e.Expected-e.Got)
}

// InferenceError wraps a failure raised by the classifier itself.
type InferenceError struct {
	Err error
}

func (e *InferenceError) Error() string { return "inference failed: " + e.Err.Error() }

func (e *InferenceError) Unwrap() error { return e.Err }

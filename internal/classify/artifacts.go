package classify

import (
	"log/slog"
	"sync"

	"github.com/veil-waf/phishguard/internal/model"
)

// Artifacts is the immutable set of trained components shared by every
// scoring call.
type Artifacts struct {
	Classifier Classifier
	Vectorizer Vectorizer
	Labels     LabelEncoder
}

// ArtifactPaths locates the artifact files on disk.
type ArtifactPaths struct {
	Model      string
	Vectorizer string
	Labels     string
}

// LoadArtifacts reads all three artifacts. The first failure is returned as
// *ArtifactLoadError.
func LoadArtifacts(paths ArtifactPaths, logger *slog.Logger) (*Artifacts, error) {
	clf, err := model.LoadBooster(paths.Model)
	if err != nil {
		return nil, &ArtifactLoadError{Artifact: "classifier", Path: paths.Model, Err: err}
	}
	width, _ := clf.ExpectedWidth()
	logger.Info("classifier loaded", "path", paths.Model, "expected_features", width, "classes", clf.NumClass())

	vec, err := model.LoadTFIDF(paths.Vectorizer)
	if err != nil {
		return nil, &ArtifactLoadError{Artifact: "vectorizer", Path: paths.Vectorizer, Err: err}
	}
	logger.Info("vectorizer loaded", "path", paths.Vectorizer, "features", vec.Width())

	labels, err := model.LoadLabelEncoder(paths.Labels)
	if err != nil {
		return nil, &ArtifactLoadError{Artifact: "labels", Path: paths.Labels, Err: err}
	}
	logger.Info("label encoder loaded", "path", paths.Labels, "classes", labels.Classes())

	if width > 0 && vec.Width()+NumFeatures != width {
		logger.Warn("artifact widths disagree; every prediction will fail",
			"lexical", vec.Width(), "numeric", NumFeatures, "expected", width)
	}

	return &Artifacts{Classifier: clf, Vectorizer: vec, Labels: labels}, nil
}

// ArtifactStore loads artifacts at most once, even under concurrent first
// use, and hands out the same handle (or the same error) afterwards.
type ArtifactStore struct {
	paths  ArtifactPaths
	logger *slog.Logger

	once sync.Once
	art  *Artifacts
	err  error
}

// NewArtifactStore creates a store for the given paths. Nothing is read
// until Load is called.
func NewArtifactStore(paths ArtifactPaths, logger *slog.Logger) *ArtifactStore {
	return &ArtifactStore{paths: paths, logger: logger}
}

// Load returns the artifacts, reading them on the first call.
func (s *ArtifactStore) Load() (*Artifacts, error) {
	s.once.Do(func() {
		s.art, s.err = LoadArtifacts(s.paths, s.logger)
	})
	return s.art, s.err
}

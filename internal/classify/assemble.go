package classify

import "github.com/veil-waf/phishguard/internal/model"

// Vectorizer is a fitted lexical transform with a fixed output width.
type Vectorizer interface {
	Transform(doc string) (model.SparseVector, error)
	Width() int
}

// Classifier is a trained model over combined lexical+numeric rows.
// ExpectedWidth reports the declared input width when the model has one.
type Classifier interface {
	Predict(x model.SparseVector) (int, error)
	PredictProba(x model.SparseVector) ([]float64, error)
	ExpectedWidth() (int, bool)
}

// LabelEncoder maps class indices to their labels.
type LabelEncoder interface {
	InverseTransform(idx int) (string, error)
	Classes() []string
}

// Assemble concatenates the lexical columns with the numeric row, lexical
// first. When clf declares an input width the result must match it exactly;
// a mismatch is returned as *DimensionMismatchError and never padded or
// truncated.
func Assemble(lexical model.SparseVector, numeric []float64, clf Classifier) (model.SparseVector, error) {
	combined := model.HStack(lexical, model.NewSparseFromDense(numeric))
	if clf == nil {
		return combined, nil
	}
	if want, ok := clf.ExpectedWidth(); ok && want != combined.Width {
		return model.SparseVector{}, &DimensionMismatchError{Expected: want, Got: combined.Width}
	}
	return combined, nil
}

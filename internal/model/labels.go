package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// LabelEncoder maps class indices produced by the classifier back to labels.
type LabelEncoder struct {
	classes []string
}

type labelFile struct {
	Classes []string `json:"classes"`
}

// NewLabelEncoder builds an encoder over the ordered class labels.
func NewLabelEncoder(classes []string) *LabelEncoder {
	cp := make([]string, len(classes))
	copy(cp, classes)
	return &LabelEncoder{classes: cp}
}

// LoadLabelEncoder reads a label encoder artifact from disk.
func LoadLabelEncoder(path string) (*LabelEncoder, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f labelFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode labels: %w", err)
	}
	if len(f.Classes) == 0 {
		return nil, errors.New("label encoder has no classes")
	}
	seen := make(map[string]bool, len(f.Classes))
	for _, c := range f.Classes {
		if seen[c] {
			return nil, fmt.Errorf("duplicate class label %q", c)
		}
		seen[c] = true
	}
	return NewLabelEncoder(f.Classes), nil
}

// InverseTransform returns the label for class index idx.
func (le *LabelEncoder) InverseTransform(idx int) (string, error) {
	if idx < 0 || idx >= len(le.classes) {
		return "", fmt.Errorf("class index %d not in encoder (%d classes)", idx, len(le.classes))
	}
	return le.classes[idx], nil
}

// Classes returns a copy of the ordered class labels.
func (le *LabelEncoder) Classes() []string {
	out := make([]string, len(le.classes))
	copy(out, le.classes)
	return out
}

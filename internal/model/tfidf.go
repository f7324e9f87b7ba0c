package model

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"regexp"
	"strings"
	"unicode"
)

// Analyzer names accepted in a vectorizer artifact.
const (
	AnalyzerWord   = "word"
	AnalyzerChar   = "char"
	AnalyzerCharWB = "char_wb"
)

var (
	wordTokenRE   = regexp.MustCompile(`\b\w\w+\b`)
	whiteSpacesRE = regexp.MustCompile(`\s\s+`)
)

// TFIDF is a fitted term-frequency/inverse-document-frequency vectorizer.
// The vocabulary and idf weights are fixed at load time.
type TFIDF struct {
	analyzer    string
	minN, maxN  int
	lowercase   bool
	sublinearTF bool
	norm        string
	vocabulary  map[string]int
	idf         []float64
}

// TFIDFConfig is the on-disk shape of a vectorizer artifact.
type TFIDFConfig struct {
	Analyzer    string         `json:"analyzer"`
	NgramRange  [2]int         `json:"ngram_range"`
	Lowercase   *bool          `json:"lowercase,omitempty"`
	SublinearTF bool           `json:"sublinear_tf"`
	Norm        *string        `json:"norm,omitempty"`
	Vocabulary  map[string]int `json:"vocabulary"`
	IDF         []float64      `json:"idf"`
}

// NewTFIDF validates cfg and returns a ready vectorizer. Missing optional
// fields take scikit-learn defaults: word analyzer, unigrams, lowercasing and
// l2 normalization.
func NewTFIDF(cfg TFIDFConfig) (*TFIDF, error) {
	t := &TFIDF{
		analyzer:    cfg.Analyzer,
		minN:        cfg.NgramRange[0],
		maxN:        cfg.NgramRange[1],
		lowercase:   true,
		sublinearTF: cfg.SublinearTF,
		norm:        "l2",
		vocabulary:  cfg.Vocabulary,
		idf:         cfg.IDF,
	}
	if t.analyzer == "" {
		t.analyzer = AnalyzerWord
	}
	switch t.analyzer {
	case AnalyzerWord, AnalyzerChar, AnalyzerCharWB:
	default:
		return nil, fmt.Errorf("unknown analyzer %q", t.analyzer)
	}
	if t.minN == 0 && t.maxN == 0 {
		t.minN, t.maxN = 1, 1
	}
	if t.minN < 1 || t.maxN < t.minN {
		return nil, fmt.Errorf("invalid ngram_range [%d, %d]", t.minN, t.maxN)
	}
	if cfg.Lowercase != nil {
		t.lowercase = *cfg.Lowercase
	}
	if cfg.Norm != nil {
		t.norm = *cfg.Norm
	}
	switch t.norm {
	case "l1", "l2", "":
	default:
		return nil, fmt.Errorf("unknown norm %q", t.norm)
	}
	if len(t.idf) == 0 {
		return nil, fmt.Errorf("vectorizer has empty idf")
	}
	for term, idx := range t.vocabulary {
		if idx < 0 || idx >= len(t.idf) {
			return nil, fmt.Errorf("vocabulary term %q has index %d outside width %d", term, idx, len(t.idf))
		}
	}
	return t, nil
}

// LoadTFIDF reads a vectorizer artifact from disk.
func LoadTFIDF(path string) (*TFIDF, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg TFIDFConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("decode tfidf: %w", err)
	}
	return NewTFIDF(cfg)
}

// Width is the number of lexical columns the vectorizer produces.
func (t *TFIDF) Width() int { return len(t.idf) }

// Transform maps a document onto the fitted vocabulary.
func (t *TFIDF) Transform(doc string) (SparseVector, error) {
	if t.lowercase {
		doc = strings.ToLower(doc)
	}

	counts := make(map[int]float64)
	for _, term := range t.analyze(doc) {
		if idx, ok := t.vocabulary[term]; ok {
			counts[idx]++
		}
	}

	for idx, tf := range counts {
		if t.sublinearTF {
			tf = 1 + math.Log(tf)
		}
		counts[idx] = tf * t.idf[idx]
	}

	var total float64
	switch t.norm {
	case "l2":
		for _, x := range counts {
			total += x * x
		}
		total = math.Sqrt(total)
	case "l1":
		for _, x := range counts {
			total += math.Abs(x)
		}
	}
	if total > 0 {
		for idx := range counts {
			counts[idx] /= total
		}
	}

	return NewSparseFromMap(t.Width(), counts)
}

func (t *TFIDF) analyze(doc string) []string {
	switch t.analyzer {
	case AnalyzerChar:
		return charNgrams(doc, t.minN, t.maxN)
	case AnalyzerCharWB:
		return charWBNgrams(doc, t.minN, t.maxN)
	default:
		return wordNgrams(wordTokenRE.FindAllString(doc, -1), t.minN, t.maxN)
	}
}

func wordNgrams(tokens []string, minN, maxN int) []string {
	if maxN == 1 {
		return tokens
	}
	var out []string
	for n := minN; n <= maxN; n++ {
		for i := 0; i+n <= len(tokens); i++ {
			out = append(out, strings.Join(tokens[i:i+n], " "))
		}
	}
	return out
}

func charNgrams(doc string, minN, maxN int) []string {
	text := []rune(whiteSpacesRE.ReplaceAllString(doc, " "))
	var out []string
	for n := minN; n <= maxN; n++ {
		for i := 0; i+n <= len(text); i++ {
			out = append(out, string(text[i:i+n]))
		}
	}
	return out
}

// charWBNgrams builds n-grams inside word boundaries, padding each word with
// one space on either side. A word shorter than n is emitted once.
func charWBNgrams(doc string, minN, maxN int) []string {
	var out []string
	for _, word := range strings.FieldsFunc(doc, unicode.IsSpace) {
		w := []rune(" " + word + " ")
		for n := minN; n <= maxN; n++ {
			offset := 0
			out = append(out, string(w[offset:min(offset+n, len(w))]))
			for offset+n < len(w) {
				offset++
				out = append(out, string(w[offset:offset+n]))
			}
			if offset == 0 {
				break
			}
		}
	}
	return out
}

package classify

import (
	"errors"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"sync"
	"testing"

	"github.com/veil-waf/phishguard/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeVectorizer struct {
	width int
	err   error
}

func (v fakeVectorizer) Transform(string) (model.SparseVector, error) {
	if v.err != nil {
		return model.SparseVector{}, v.err
	}
	return model.SparseVector{Width: v.width, Indices: []int{0}, Values: []float64{1}}, nil
}

func (v fakeVectorizer) Width() int { return v.width }

type fakeClassifier struct {
	width    int
	pred     int
	proba    []float64
	probaErr error
}

func (c fakeClassifier) Predict(model.SparseVector) (int, error) { return c.pred, nil }

func (c fakeClassifier) PredictProba(model.SparseVector) ([]float64, error) {
	return c.proba, c.probaErr
}

func (c fakeClassifier) ExpectedWidth() (int, bool) { return c.width, c.width > 0 }

// brokenEncoder cannot invert indices but still lists its classes.
type brokenEncoder struct{ classes []string }

func (e brokenEncoder) InverseTransform(int) (string, error) { return "", errors.New("not fitted") }
func (e brokenEncoder) Classes() []string                    { return e.classes }

func newFakeScorer(clf Classifier, labels LabelEncoder) *Scorer {
	return NewScorer(&Artifacts{
		Classifier: clf,
		Vectorizer: fakeVectorizer{width: 3},
		Labels:     labels,
	}, discardLogger())
}

func TestAssemble(t *testing.T) {
	lexical := model.SparseVector{Width: 5, Indices: []int{1}, Values: []float64{0.7}}

	x, err := Assemble(lexical, make([]float64, 5), fakeClassifier{width: 10})
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if x.Width != 10 {
		t.Errorf("width = %d, want 10", x.Width)
	}

	numeric := []float64{0, 2, 0, 0}
	_, err = Assemble(lexical, numeric, fakeClassifier{width: 10})
	var dm *DimensionMismatchError
	if !errors.As(err, &dm) {
		t.Fatalf("err = %v, want *DimensionMismatchError", err)
	}
	if dm.Expected != 10 || dm.Got != 9 {
		t.Errorf("mismatch = %+v, want expected 10 got 9", dm)
	}

	// Without a declared width nothing is enforced.
	if _, err := Assemble(lexical, numeric, fakeClassifier{}); err != nil {
		t.Errorf("undeclared width: %v", err)
	}
}

func TestAssemble_LexicalColumnsFirst(t *testing.T) {
	lexical := model.SparseVector{Width: 2, Indices: []int{1}, Values: []float64{0.5}}
	x, err := Assemble(lexical, []float64{3, 0, 4}, nil)
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{0, 0.5, 3, 0, 4}
	if !slices.Equal(x.Dense(), want) {
		t.Errorf("combined = %v, want %v", x.Dense(), want)
	}
}

func TestScore_ProbabilitiesAndRounding(t *testing.T) {
	s := newFakeScorer(
		fakeClassifier{width: 3 + NumFeatures, pred: 0, proba: []float64{0.875, 0.125}},
		model.NewLabelEncoder([]string{"legitimate", "phishing"}),
	)
	p, err := s.Score("https://www.google.com/")
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if p.Normalized != "google.com" {
		t.Errorf("Normalized = %q", p.Normalized)
	}
	if p.Label != "legitimate" || p.IsPhishing {
		t.Errorf("label = %q phishing = %v", p.Label, p.IsPhishing)
	}
	// 12.5 rounds half to even.
	if p.Score != 12 {
		t.Errorf("Score = %d, want 12", p.Score)
	}
	if p.Confidence != 0.875 {
		t.Errorf("Confidence = %v, want 0.875", p.Confidence)
	}
	var sum float64
	for _, c := range []string{"legitimate", "phishing"} {
		v, ok := p.Probabilities[c]
		if !ok {
			t.Errorf("missing probability for %q", c)
		}
		sum += v
	}
	if math.Abs(sum-1) > 1e-6 {
		t.Errorf("probabilities sum to %v", sum)
	}
	if p.Features.HasHTTPS != 0 {
		t.Errorf("has_https = %d, want 0", p.Features.HasHTTPS)
	}
	if p.Risk.Severity != SeverityLow {
		t.Errorf("severity = %s, want low", p.Risk.Severity)
	}
}

func TestScore_PhishingProbabilityFallsBackToPredictedLabel(t *testing.T) {
	s := newFakeScorer(
		fakeClassifier{pred: 1, proba: []float64{0.2, 0.8}},
		model.NewLabelEncoder([]string{"benign", "malicious"}),
	)
	p, err := s.Score("example.com")
	if err != nil {
		t.Fatal(err)
	}
	if p.Score != 80 || p.Label != "malicious" || p.IsPhishing {
		t.Errorf("got score=%d label=%q phishing=%v", p.Score, p.Label, p.IsPhishing)
	}
	if p.Risk.Severity != SeverityCritical {
		t.Errorf("severity = %s", p.Risk.Severity)
	}
}

func TestScore_LabelFallbacks(t *testing.T) {
	classes := []string{"legitimate", "phishing"}

	s := newFakeScorer(fakeClassifier{pred: 1, proba: []float64{0.3, 0.7}}, brokenEncoder{classes})
	p, err := s.Score("example.com")
	if err != nil {
		t.Fatal(err)
	}
	if p.Label != "phishing" || !p.IsPhishing || p.Score != 70 {
		t.Errorf("positional fallback: label=%q phishing=%v score=%d", p.Label, p.IsPhishing, p.Score)
	}

	s = newFakeScorer(fakeClassifier{pred: 5, proba: []float64{0.6, 0.4}}, brokenEncoder{classes})
	p, err = s.Score("example.com")
	if err != nil {
		t.Fatal(err)
	}
	if p.Label != "5" || p.Score != 40 {
		t.Errorf("index fallback: label=%q score=%d", p.Label, p.Score)
	}
}

func TestScore_Errors(t *testing.T) {
	labels := model.NewLabelEncoder([]string{"legitimate", "phishing"})

	t.Run("no artifacts", func(t *testing.T) {
		_, err := NewScorer(nil, discardLogger()).Score("example.com")
		if !errors.Is(err, ErrVectorizerUnavailable) {
			t.Errorf("err = %v, want ErrVectorizerUnavailable", err)
		}
	})

	t.Run("no classifier", func(t *testing.T) {
		s := NewScorer(&Artifacts{Vectorizer: fakeVectorizer{width: 3}, Labels: labels}, discardLogger())
		if _, err := s.Score("example.com"); !errors.Is(err, ErrClassifierUnavailable) {
			t.Errorf("err = %v, want ErrClassifierUnavailable", err)
		}
	})

	t.Run("no labels", func(t *testing.T) {
		s := newFakeScorer(fakeClassifier{proba: []float64{1, 0}}, nil)
		if _, err := s.Score("example.com"); !errors.Is(err, ErrLabelEncoderUnavailable) {
			t.Errorf("err = %v, want ErrLabelEncoderUnavailable", err)
		}
	})

	t.Run("dimension mismatch", func(t *testing.T) {
		s := newFakeScorer(fakeClassifier{width: 99, proba: []float64{1, 0}}, labels)
		_, err := s.Score("example.com")
		var dm *DimensionMismatchError
		if !errors.As(err, &dm) || dm.Got != 3+NumFeatures {
			t.Errorf("err = %v, want mismatch with got %d", err, 3+NumFeatures)
		}
	})

	t.Run("vectorizer failure", func(t *testing.T) {
		boom := errors.New("boom")
		s := NewScorer(&Artifacts{
			Classifier: fakeClassifier{proba: []float64{1, 0}},
			Vectorizer: fakeVectorizer{err: boom},
			Labels:     labels,
		}, discardLogger())
		if _, err := s.Score("example.com"); !errors.Is(err, boom) {
			t.Errorf("err = %v, want wrapped boom", err)
		}
	})

	t.Run("inference failure", func(t *testing.T) {
		s := newFakeScorer(fakeClassifier{probaErr: errors.New("nan in margin")}, labels)
		_, err := s.Score("example.com")
		var ie *InferenceError
		if !errors.As(err, &ie) {
			t.Errorf("err = %v, want *InferenceError", err)
		}
	})

	t.Run("probability count", func(t *testing.T) {
		s := newFakeScorer(fakeClassifier{proba: []float64{0.2, 0.3, 0.5}}, labels)
		_, err := s.Score("example.com")
		var ie *InferenceError
		if !errors.As(err, &ie) {
			t.Errorf("err = %v, want *InferenceError", err)
		}
	})
}

// testArtifacts builds a tiny real vectorizer and booster whose single tree
// splits on has_ip.
func testArtifacts(t *testing.T) *Artifacts {
	t.Helper()
	vec, err := model.NewTFIDF(model.TFIDFConfig{
		Analyzer:   model.AnalyzerWord,
		Vocabulary: map[string]int{"google": 0, "com": 1, "malware": 2, "exe": 3, "verify": 4},
		IDF:        []float64{1, 1, 2, 2, 2},
	})
	if err != nil {
		t.Fatal(err)
	}
	hasIP := slices.Index(FeatureNames[:], "has_ip")
	lo, hi := -2.0, 2.0
	clf, err := model.NewBooster(model.BoosterConfig{
		NumFeatures: vec.Width() + NumFeatures,
		Trees: []model.TreeNode{{
			NodeID: 0, Split: "f" + strconv.Itoa(vec.Width()+hasIP), SplitCondition: 0.5,
			Yes: 1, No: 2, Missing: 1,
			Children: []model.TreeNode{{NodeID: 1, Leaf: &lo}, {NodeID: 2, Leaf: &hi}},
		}},
	})
	if err != nil {
		t.Fatal(err)
	}
	return &Artifacts{
		Classifier: clf,
		Vectorizer: vec,
		Labels:     model.NewLabelEncoder([]string{"legitimate", "phishing"}),
	}
}

func TestScore_EndToEnd(t *testing.T) {
	s := NewScorer(testArtifacts(t), discardLogger())

	p, err := s.Score("http://192.168.1.1/malware.exe")
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if p.Normalized != "192.168.1.1/malware.exe" {
		t.Errorf("Normalized = %q", p.Normalized)
	}
	if p.Features.HasIP != 1 {
		t.Errorf("has_ip = %d, want 1", p.Features.HasIP)
	}
	if p.Label != "phishing" || !p.IsPhishing || p.Score != 88 {
		t.Errorf("label=%q phishing=%v score=%d, want phishing/true/88", p.Label, p.IsPhishing, p.Score)
	}
	if p.Risk.Severity != SeverityCritical {
		t.Errorf("severity = %s", p.Risk.Severity)
	}
	if !slices.Contains(p.Risk.RiskFactors, "Uses IP address instead of domain name") {
		t.Errorf("risk factors %v lack IP entry", p.Risk.RiskFactors)
	}

	g, err := s.Score("https://www.google.com/")
	if err != nil {
		t.Fatal(err)
	}
	if g.Normalized != "google.com" || g.Features.HasHTTPS != 0 {
		t.Errorf("google: normalized=%q has_https=%d", g.Normalized, g.Features.HasHTTPS)
	}
	if g.Label != "legitimate" || g.Score != 12 {
		t.Errorf("google: label=%q score=%d", g.Label, g.Score)
	}

	b, err := s.Score("http://secure-login-bank.ml/verify")
	if err != nil {
		t.Fatal(err)
	}
	f := b.Features
	if f.AbnormalTLD != 1 || f.HasLogin != 1 || f.HasBanking != 1 || f.HasVerify != 1 {
		t.Errorf("bank: abnormal=%d login=%d banking=%d verify=%d", f.AbnormalTLD, f.HasLogin, f.HasBanking, f.HasVerify)
	}
	if len(b.Risk.RiskFactors) < 3 {
		t.Errorf("bank: risk factors %v, want at least 3", b.Risk.RiskFactors)
	}
}

func TestScore_ConcurrentCallsAgree(t *testing.T) {
	s := NewScorer(testArtifacts(t), discardLogger())
	want, err := s.Score("http://paypal-verify.tk/login")
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 32)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := s.Score("http://paypal-verify.tk/login")
			if err != nil {
				errs <- err
				return
			}
			if got.Score != want.Score || got.Label != want.Label {
				errs <- errors.New("concurrent result differs")
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestArtifactStore(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) string {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
			t.Fatal(err)
		}
		return p
	}
	paths := ArtifactPaths{
		Model: write("model.json", `{"objective":"binary:logistic","num_features":35,
			"trees":[{"nodeid":0,"leaf":0.1}]}`),
		Vectorizer: write("tfidf.json", `{"vocabulary":{"login":0,"bank":1},"idf":[1,1]}`),
		Labels:     write("labels.json", `{"classes":["legitimate","phishing"]}`),
	}

	store := NewArtifactStore(paths, discardLogger())
	var wg sync.WaitGroup
	results := make([]*Artifacts, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			art, err := store.Load()
			if err != nil {
				t.Error(err)
			}
			results[i] = art
		}(i)
	}
	wg.Wait()
	for _, art := range results[1:] {
		if art != results[0] {
			t.Fatal("store returned different handles")
		}
	}

	p, err := NewScorer(results[0], discardLogger()).Score("secure-bank-login.example")
	if err != nil {
		t.Fatalf("Score with loaded artifacts: %v", err)
	}
	if p.Score != 52 {
		t.Errorf("Score = %d, want 52", p.Score)
	}
}

func TestArtifactStore_LoadFailure(t *testing.T) {
	store := NewArtifactStore(ArtifactPaths{
		Model:      filepath.Join(t.TempDir(), "missing.json"),
		Vectorizer: "unused",
		Labels:     "unused",
	}, discardLogger())

	_, err := store.Load()
	var le *ArtifactLoadError
	if !errors.As(err, &le) || le.Artifact != "classifier" {
		t.Fatalf("err = %v, want classifier *ArtifactLoadError", err)
	}
	if _, again := store.Load(); again != err {
		t.Errorf("second Load returned %v, want cached %v", again, err)
	}
}

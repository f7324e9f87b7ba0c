package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
)

// Objectives supported by the tree ensemble.
const (
	ObjectiveBinaryLogistic = "binary:logistic"
	ObjectiveMultiSoftprob  = "multi:softprob"
)

// TreeNode is one node of a dumped regression tree. Leaves carry Leaf;
// split nodes carry Split, SplitCondition and child ids.
type TreeNode struct {
	NodeID         int        `json:"nodeid"`
	Split          string     `json:"split,omitempty"`
	SplitCondition float64    `json:"split_condition,omitempty"`
	Yes            int        `json:"yes,omitempty"`
	No             int        `json:"no,omitempty"`
	Missing        int        `json:"missing,omitempty"`
	Leaf           *float64   `json:"leaf,omitempty"`
	Children       []TreeNode `json:"children,omitempty"`
}

// BoosterConfig is the on-disk shape of a classifier artifact.
type BoosterConfig struct {
	Objective   string     `json:"objective"`
	NumClass    int        `json:"num_class"`
	NumFeatures int        `json:"num_features"`
	BaseScore   *float64   `json:"base_score,omitempty"`
	Trees       []TreeNode `json:"trees"`
}

// flatNode is a compiled tree node addressed by node id.
type flatNode struct {
	leaf      bool
	value     float64
	feature   int
	threshold float32
	yes       int
	no        int
	missing   int
}

// Booster is a gradient-boosted tree ensemble producing class probabilities.
type Booster struct {
	objective   string
	numClass    int
	numFeatures int
	baseMargin  float64
	trees       [][]flatNode
}

// NewBooster compiles cfg into an evaluable ensemble.
func NewBooster(cfg BoosterConfig) (*Booster, error) {
	b := &Booster{
		objective:   cfg.Objective,
		numClass:    cfg.NumClass,
		numFeatures: cfg.NumFeatures,
	}
	if b.objective == "" {
		b.objective = ObjectiveBinaryLogistic
	}

	base := 0.5
	if cfg.BaseScore != nil {
		base = *cfg.BaseScore
	}

	switch b.objective {
	case ObjectiveBinaryLogistic:
		if b.numClass == 0 {
			b.numClass = 2
		}
		if b.numClass != 2 {
			return nil, fmt.Errorf("%s requires 2 classes, got %d", b.objective, b.numClass)
		}
		if base <= 0 || base >= 1 {
			return nil, fmt.Errorf("base_score %v outside (0,1)", base)
		}
		b.baseMargin = math.Log(base / (1 - base))
	case ObjectiveMultiSoftprob:
		if b.numClass < 2 {
			return nil, fmt.Errorf("%s requires num_class >= 2, got %d", b.objective, b.numClass)
		}
		b.baseMargin = base
	default:
		return nil, fmt.Errorf("unsupported objective %q", b.objective)
	}
	if b.numFeatures < 0 {
		return nil, fmt.Errorf("negative num_features %d", b.numFeatures)
	}
	if len(cfg.Trees) == 0 {
		return nil, errors.New("booster has no trees")
	}

	for i, root := range cfg.Trees {
		flat, err := compileTree(root)
		if err != nil {
			return nil, fmt.Errorf("tree %d: %w", i, err)
		}
		b.trees = append(b.trees, flat)
	}
	return b, nil
}

// LoadBooster reads a classifier artifact from disk.
func LoadBooster(path string) (*Booster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg BoosterConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("decode booster: %w", err)
	}
	return NewBooster(cfg)
}

func compileTree(root TreeNode) ([]flatNode, error) {
	nodes := make(map[int]TreeNode)
	maxID := 0
	var walk func(n TreeNode) error
	walk = func(n TreeNode) error {
		if n.NodeID < 0 {
			return fmt.Errorf("negative node id %d", n.NodeID)
		}
		if _, dup := nodes[n.NodeID]; dup {
			return fmt.Errorf("duplicate node id %d", n.NodeID)
		}
		nodes[n.NodeID] = n
		maxID = max(maxID, n.NodeID)
		for _, c := range n.Children {
			if err := walk(c); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(root); err != nil {
		return nil, err
	}
	if root.NodeID != 0 {
		return nil, fmt.Errorf("root node id is %d, want 0", root.NodeID)
	}

	flat := make([]flatNode, maxID+1)
	for id, n := range nodes {
		if n.Leaf != nil {
			flat[id] = flatNode{leaf: true, value: *n.Leaf}
			continue
		}
		feature, err := parseFeature(n.Split)
		if err != nil {
			return nil, fmt.Errorf("node %d: %w", id, err)
		}
		// Branches must point at direct children so traversal always terminates.
		direct := make(map[int]bool, len(n.Children))
		for _, c := range n.Children {
			direct[c.NodeID] = true
		}
		for _, child := range []int{n.Yes, n.No, n.Missing} {
			if !direct[child] {
				return nil, fmt.Errorf("node %d references missing child %d", id, child)
			}
		}
		flat[id] = flatNode{
			feature:   feature,
			threshold: float32(n.SplitCondition),
			yes:       n.Yes,
			no:        n.No,
			missing:   n.Missing,
		}
	}
	return flat, nil
}

// parseFeature accepts "f12" or "12".
func parseFeature(split string) (int, error) {
	idx, err := strconv.Atoi(strings.TrimPrefix(split, "f"))
	if err != nil || idx < 0 {
		return 0, fmt.Errorf("invalid split feature %q", split)
	}
	return idx, nil
}

// ExpectedWidth reports the declared input width, if the artifact has one.
func (b *Booster) ExpectedWidth() (int, bool) {
	return b.numFeatures, b.numFeatures > 0
}

// NumClass is the number of classes the ensemble scores.
func (b *Booster) NumClass() int { return b.numClass }

// PredictProba returns one probability per class.
func (b *Booster) PredictProba(x SparseVector) ([]float64, error) {
	if want, ok := b.ExpectedWidth(); ok && x.Width != want {
		return nil, fmt.Errorf("input has %d columns, booster expects %d", x.Width, want)
	}

	switch b.objective {
	case ObjectiveBinaryLogistic:
		margin := b.baseMargin
		for _, t := range b.trees {
			margin += evalTree(t, x)
		}
		p := 1 / (1 + math.Exp(-margin))
		return []float64{1 - p, p}, nil
	default:
		margins := make([]float64, b.numClass)
		for k := range margins {
			margins[k] = b.baseMargin
		}
		for i, t := range b.trees {
			margins[i%b.numClass] += evalTree(t, x)
		}
		return softmax(margins), nil
	}
}

// Predict returns the index of the most probable class.
func (b *Booster) Predict(x SparseVector) (int, error) {
	proba, err := b.PredictProba(x)
	if err != nil {
		return 0, err
	}
	return Argmax(proba), nil
}

func evalTree(t []flatNode, x SparseVector) float64 {
	id := 0
	for {
		n := t[id]
		if n.leaf {
			return n.value
		}
		v, ok := x.Lookup(n.feature)
		switch {
		case !ok:
			id = n.missing
		// Thresholds are stored as float32 and inputs are cast before comparing.
		case float32(v) < n.threshold:
			id = n.yes
		default:
			id = n.no
		}
	}
}

func softmax(z []float64) []float64 {
	hi := z[0]
	for _, v := range z[1:] {
		hi = max(hi, v)
	}
	out := make([]float64, len(z))
	var sum float64
	for i, v := range z {
		out[i] = math.Exp(v - hi)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

// Argmax returns the index of the largest value; ties go to the lowest index.
func Argmax(xs []float64) int {
	best := 0
	for i, v := range xs {
		if v > xs[best] {
			best = i
		}
	}
	return best
}

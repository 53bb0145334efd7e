package ensemble

import (
	"fmt"
	"io/ioutil"
	"math"
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

// Supported XGBoost objectives
const (
	BinaryLogistic = "binary:logistic"
	MultiSoftprob  = "multi:softprob"
	MultiSoftmax   = "multi:softmax"
)

type (
	//Model is a gradient boosted tree ensemble evaluated from an XGBoost JSON
	//dump. It is immutable once loaded and safe for concurrent use.
	Model struct {
		objective    string
		numClass     int
		baseMargin   float64
		featureNames []string
		trees        []*node
		treeClass    []int
	}

	//node is a split or a leaf of a regression tree
	node struct {
		leaf      float64
		isLeaf    bool
		feature   int
		threshold float64
		yes       *node
		no        *node
		missing   *node
	}

	//artifact is the on-disk representation of a Model
	artifact struct {
		Objective    string     `json:"objective"`
		NumClass     int        `json:"num_class"`
		BaseScore    *float64   `json:"base_score"`
		FeatureNames []string   `json:"feature_names"`
		Trees        []*rawNode `json:"trees"`
	}

	//rawNode mirrors a node of xgboost's dump_model(dump_format="json")
	rawNode struct {
		NodeID         int        `json:"nodeid"`
		Split          string     `json:"split"`
		SplitCondition *float64   `json:"split_condition"`
		Yes            int        `json:"yes"`
		No             int        `json:"no"`
		Missing        int        `json:"missing"`
		Leaf           *float64   `json:"leaf"`
		Children       []*rawNode `json:"children"`
	}
)

// Load reads a classifier artifact from path
func Load(path string) (*Model, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read classifier artifact: %w", err)
	}
	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// Parse decodes a classifier artifact
func Parse(data []byte) (*Model, error) {
	var art artifact
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(data, &art); err != nil {
		return nil, fmt.Errorf("failed to decode classifier artifact: %w", err)
	}

	if len(art.FeatureNames) == 0 {
		return nil, fmt.Errorf("classifier artifact lists no feature names")
	}
	if len(art.Trees) == 0 {
		return nil, fmt.Errorf("classifier artifact contains no trees")
	}

	baseScore := 0.5
	if art.BaseScore != nil {
		baseScore = *art.BaseScore
	}

	m := &Model{
		objective:    art.Objective,
		featureNames: art.FeatureNames,
	}

	switch art.Objective {
	case BinaryLogistic:
		if baseScore <= 0 || baseScore >= 1 {
			return nil, fmt.Errorf("base_score %v outside (0, 1) for %s", baseScore, BinaryLogistic)
		}
		m.numClass = 2
		m.baseMargin = math.Log(baseScore / (1 - baseScore))
	case MultiSoftprob, MultiSoftmax:
		if art.NumClass < 2 {
			return nil, fmt.Errorf("num_class must be at least 2 for %s", art.Objective)
		}
		if len(art.Trees)%art.NumClass != 0 {
			return nil, fmt.Errorf("%d trees do not divide evenly into %d classes", len(art.Trees), art.NumClass)
		}
		m.numClass = art.NumClass
		m.baseMargin = baseScore
	default:
		return nil, fmt.Errorf("unsupported objective %q", art.Objective)
	}

	featureIndex := make(map[string]int, len(art.FeatureNames))
	for i, name := range art.FeatureNames {
		featureIndex[name] = i
	}

	for i, raw := range art.Trees {
		tree, err := buildTree(raw, featureIndex, len(art.FeatureNames))
		if err != nil {
			return nil, fmt.Errorf("tree %d: %w", i, err)
		}
		m.trees = append(m.trees, tree)
		if m.objective == BinaryLogistic {
			m.treeClass = append(m.treeClass, 0)
		} else {
			m.treeClass = append(m.treeClass, i%m.numClass)
		}
	}

	return m, nil
}

// buildTree links a dumped tree through its yes/no/missing node ids
func buildTree(raw *rawNode, featureIndex map[string]int, width int) (*node, error) {
	if raw == nil {
		return nil, fmt.Errorf("empty node")
	}
	if raw.Leaf != nil {
		return &node{leaf: *raw.Leaf, isLeaf: true}, nil
	}
	if raw.SplitCondition == nil {
		return nil, fmt.Errorf("node %d has neither a leaf value nor a split condition", raw.NodeID)
	}

	feature, err := resolveFeature(raw.Split, featureIndex, width)
	if err != nil {
		return nil, fmt.Errorf("node %d: %w", raw.NodeID, err)
	}

	children := make(map[int]*node, len(raw.Children))
	for _, child := range raw.Children {
		built, err := buildTree(child, featureIndex, width)
		if err != nil {
			return nil, err
		}
		children[child.NodeID] = built
	}

	n := &node{feature: feature, threshold: *raw.SplitCondition}
	var ok bool
	if n.yes, ok = children[raw.Yes]; !ok {
		return nil, fmt.Errorf("node %d: yes branch %d not among children", raw.NodeID, raw.Yes)
	}
	if n.no, ok = children[raw.No]; !ok {
		return nil, fmt.Errorf("node %d: no branch %d not among children", raw.NodeID, raw.No)
	}
	if n.missing, ok = children[raw.Missing]; !ok {
		n.missing = n.yes
	}
	return n, nil
}

// resolveFeature accepts either a feature name or xgboost's positional fN form
func resolveFeature(split string, featureIndex map[string]int, width int) (int, error) {
	if idx, ok := featureIndex[split]; ok {
		return idx, nil
	}
	if strings.HasPrefix(split, "f") {
		idx, err := strconv.Atoi(split[1:])
		if err == nil && idx >= 0 && idx < width {
			return idx, nil
		}
	}
	return 0, fmt.Errorf("unknown split feature %q", split)
}

// NumFeatures returns the row width the model expects
func (m *Model) NumFeatures() int {
	return len(m.featureNames)
}

// NumClasses returns the number of class probabilities produced per row
func (m *Model) NumClasses() int {
	return m.numClass
}

// NumTrees returns the number of boosted trees
func (m *Model) NumTrees() int {
	return len(m.trees)
}

// Objective returns the xgboost objective the model was trained with
func (m *Model) Objective() string {
	return m.objective
}

// FeatureNames returns the column names the model was trained on
func (m *Model) FeatureNames() []string {
	return append([]string(nil), m.featureNames...)
}

// ScoreClasses returns the per-class probabilities of every row
func (m *Model) ScoreClasses(rows [][]float64) ([][]float64, error) {
	out := make([][]float64, len(rows))
	for r, row := range rows {
		if len(row) != len(m.featureNames) {
			return nil, fmt.Errorf("row %d has %d columns, model expects %d", r, len(row), len(m.featureNames))
		}
		out[r] = m.score(row)
	}
	return out, nil
}

func (m *Model) score(row []float64) []float64 {
	if m.objective == BinaryLogistic {
		margin := m.baseMargin
		for _, tree := range m.trees {
			margin += tree.eval(row)
		}
		p := 1 / (1 + math.Exp(-margin))
		return []float64{1 - p, p}
	}

	margins := make([]float64, m.numClass)
	for i := range margins {
		margins[i] = m.baseMargin
	}
	for i, tree := range m.trees {
		margins[m.treeClass[i]] += tree.eval(row)
	}
	return softmax(margins)
}

func (n *node) eval(row []float64) float64 {
	for !n.isLeaf {
		x := row[n.feature]
		switch {
		case math.IsNaN(x):
			n = n.missing
		case x < n.threshold:
			n = n.yes
		default:
			n = n.no
		}
	}
	return n.leaf
}

func softmax(margins []float64) []float64 {
	max := margins[0]
	for _, v := range margins[1:] {
		if v > max {
			max = v
		}
	}
	var sum float64
	out := make([]float64, len(margins))
	for i, v := range margins {
		out[i] = math.Exp(v - max)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

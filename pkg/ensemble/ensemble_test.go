package ensemble

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

func testingRow(majorityS, origPkts float64) []float64 {
	row := make([]float64, 22)
	row[0] = origPkts
	row[18] = majorityS
	return row
}

func TestBinaryLogistic(t *testing.T) {
	m, err := LoadTestingModel()
	require.NoError(t, err)
	assert.Equal(t, 22, m.NumFeatures())
	assert.Equal(t, 2, m.NumClasses())
	assert.Equal(t, 2, m.NumTrees())
	assert.Equal(t, BinaryLogistic, m.Objective())

	scores, err := m.ScoreClasses([][]float64{
		testingRow(1, 0.5),
		testingRow(0, 0.5),
		testingRow(1, -1),
		testingRow(0, math.NaN()),
	})
	require.NoError(t, err)
	require.Len(t, scores, 4)

	expected := []float64{
		sigmoid(2.0 + 0.3),
		sigmoid(-1.0 + 0.3),
		sigmoid(2.0 - 0.5),
		sigmoid(-1.0 - 0.5), // NaN follows the missing branch
	}
	for i, p := range expected {
		require.Len(t, scores[i], 2)
		assert.InDelta(t, p, scores[i][1], 1e-12, "row %d", i)
		assert.InDelta(t, 1.0, scores[i][0]+scores[i][1], 1e-12, "row %d", i)
	}
}

func TestBaseScoreShiftsMargin(t *testing.T) {
	m, err := Parse([]byte(`{
		"objective": "binary:logistic",
		"base_score": 0.8,
		"feature_names": ["x"],
		"trees": [{"nodeid": 0, "leaf": 0}]
	}`))
	require.NoError(t, err)
	scores, err := m.ScoreClasses([][]float64{{1}})
	require.NoError(t, err)
	assert.InDelta(t, 0.8, scores[0][1], 1e-12)
}

const multiclassArtifact = `{
    "objective": "multi:softprob",
    "num_class": 3,
    "feature_names": ["a", "b"],
    "trees": [
        {"nodeid": 0, "split": "a", "split_condition": 1, "yes": 1, "no": 2, "missing": 2,
         "children": [{"nodeid": 1, "leaf": 1.0}, {"nodeid": 2, "leaf": -1.0}]},
        {"nodeid": 0, "split": "b", "split_condition": 1, "yes": 1, "no": 2, "missing": 2,
         "children": [{"nodeid": 1, "leaf": -1.0}, {"nodeid": 2, "leaf": 1.0}]},
        {"nodeid": 0, "leaf": 0.1},
        {"nodeid": 0, "split": "a", "split_condition": 1, "yes": 1, "no": 2,
         "children": [{"nodeid": 1, "leaf": 0.5}, {"nodeid": 2, "leaf": 0.0}]},
        {"nodeid": 0, "leaf": 0.0},
        {"nodeid": 0, "split": "b", "split_condition": 5, "yes": 1, "no": 2,
         "children": [{"nodeid": 1, "leaf": 0.0}, {"nodeid": 2, "leaf": 3.0}]}
    ]
}`

func TestMultiSoftprob(t *testing.T) {
	m, err := Parse([]byte(multiclassArtifact))
	require.NoError(t, err)
	assert.Equal(t, 3, m.NumClasses())
	assert.Equal(t, []string{"a", "b"}, m.FeatureNames())

	scores, err := m.ScoreClasses([][]float64{{0, 0}, {2, 2}, {2, 9}})
	require.NoError(t, err)

	// margins per class, trees i and i+3 belong to class i
	margins := [][]float64{
		{1.0 + 0.5, -1.0 + 0.0, 0.1 + 0.0},
		{-1.0 + 0.0, 1.0 + 0.0, 0.1 + 0.0},
		{-1.0 + 0.0, 1.0 + 0.0, 0.1 + 3.0},
	}
	for r, row := range margins {
		var sum float64
		for _, v := range row {
			sum += math.Exp(v)
		}
		var total float64
		for c, v := range row {
			assert.InDelta(t, math.Exp(v)/sum, scores[r][c], 1e-12, "row %d class %d", r, c)
			total += scores[r][c]
		}
		assert.InDelta(t, 1.0, total, 1e-12)
	}
}

func TestScoreClassesRejectsWrongWidth(t *testing.T) {
	m, err := LoadTestingModel()
	require.NoError(t, err)
	_, err = m.ScoreClasses([][]float64{make([]float64, 21)})
	assert.Error(t, err)
}

func TestParseRejectsBrokenArtifacts(t *testing.T) {
	cases := map[string]string{
		"not json":         `{`,
		"no features":      `{"objective": "binary:logistic", "trees": [{"nodeid": 0, "leaf": 1}]}`,
		"no trees":         `{"objective": "binary:logistic", "feature_names": ["x"], "trees": []}`,
		"bad objective":    `{"objective": "reg:squarederror", "feature_names": ["x"], "trees": [{"nodeid": 0, "leaf": 1}]}`,
		"bad base score":   `{"objective": "binary:logistic", "base_score": 1, "feature_names": ["x"], "trees": [{"nodeid": 0, "leaf": 1}]}`,
		"too few classes":  `{"objective": "multi:softprob", "num_class": 1, "feature_names": ["x"], "trees": [{"nodeid": 0, "leaf": 1}]}`,
		"uneven trees":     `{"objective": "multi:softprob", "num_class": 2, "feature_names": ["x"], "trees": [{"nodeid": 0, "leaf": 1}]}`,
		"unknown feature":  `{"objective": "binary:logistic", "feature_names": ["x"], "trees": [{"nodeid": 0, "split": "y", "split_condition": 1, "yes": 1, "no": 2, "children": [{"nodeid": 1, "leaf": 0}, {"nodeid": 2, "leaf": 1}]}]}`,
		"feature index":    `{"objective": "binary:logistic", "feature_names": ["x"], "trees": [{"nodeid": 0, "split": "f3", "split_condition": 1, "yes": 1, "no": 2, "children": [{"nodeid": 1, "leaf": 0}, {"nodeid": 2, "leaf": 1}]}]}`,
		"dangling branch":  `{"objective": "binary:logistic", "feature_names": ["x"], "trees": [{"nodeid": 0, "split": "x", "split_condition": 1, "yes": 1, "no": 7, "children": [{"nodeid": 1, "leaf": 0}, {"nodeid": 2, "leaf": 1}]}]}`,
		"no split or leaf": `{"objective": "binary:logistic", "feature_names": ["x"], "trees": [{"nodeid": 0, "split": "x"}]}`,
	}
	for name, artifact := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(artifact))
			assert.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flowguard_model.json")
	require.NoError(t, os.WriteFile(path, []byte(TestingArtifact), 0644))
	m, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, m.NumTrees())

	_, err = Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

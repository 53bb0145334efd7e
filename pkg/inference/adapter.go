package inference

import (
	"fmt"
	"math"

	"github.com/activecm/flowguard/util"
)

// ConfidencePlaces is the number of decimal places confidences are reported with
const ConfidencePlaces = 4

type (
	//Classifier is a pre-trained model able to score class probabilities.
	//ScoreClasses receives a batch of rows and returns one row of per-class
	//probabilities for each.
	Classifier interface {
		ScoreClasses(rows [][]float64) ([][]float64, error)
	}

	//PredictionResult is the label chosen for a single flow and the
	//probability the classifier assigned to it
	PredictionResult struct {
		Label      string  `json:"label"`
		Confidence float64 `json:"confidence"`
	}

	//InferenceError reports a failed classifier invocation
	InferenceError struct {
		Message string
		Err     error
	}

	//Adapter turns classifier scores into predictions
	Adapter struct {
		classifier Classifier
		labels     *LabelTable
	}
)

func (e *InferenceError) Error() string {
	return "inference failed: " + e.Message
}

func (e *InferenceError) Unwrap() error {
	return e.Err
}

// NewAdapter wraps a loaded classifier and its label table
func NewAdapter(classifier Classifier, labels *LabelTable) *Adapter {
	return &Adapter{
		classifier: classifier,
		labels:     labels,
	}
}

// Loaded reports whether a classifier is available
func (a *Adapter) Loaded() bool {
	return a != nil && a.classifier != nil
}

// Labels returns the label table in use
func (a *Adapter) Labels() *LabelTable {
	return a.labels
}

// Predict scores a single feature vector. The most probable class wins, with
// ties going to the lowest class index. Inference is deterministic so failures
// are never retried.
func (a *Adapter) Predict(vector []float64) (result PredictionResult, err error) {
	if !a.Loaded() {
		return result, &InferenceError{Message: "no classifier loaded"}
	}

	defer func() {
		if r := recover(); r != nil {
			err = &InferenceError{Message: fmt.Sprint(r)}
		}
	}()

	scores, err := a.classifier.ScoreClasses([][]float64{vector})
	if err != nil {
		return result, &InferenceError{Message: err.Error(), Err: err}
	}
	if len(scores) != 1 {
		return result, &InferenceError{Message: fmt.Sprintf("expected scores for 1 row, got %d", len(scores))}
	}

	probs := scores[0]
	if len(probs) != a.labels.Len() {
		return result, &InferenceError{Message: fmt.Sprintf(
			"classifier returned %d class probabilities, label table has %d classes",
			len(probs), a.labels.Len(),
		)}
	}

	best := -1
	for i, p := range probs {
		if math.IsNaN(p) || p < 0 || p > 1 {
			return result, &InferenceError{Message: fmt.Sprintf("class %d has invalid probability %v", i, p)}
		}
		if best == -1 || p > probs[best] {
			best = i
		}
	}

	label, err := a.labels.Decode(best)
	if err != nil {
		return result, &InferenceError{Message: err.Error(), Err: err}
	}

	return PredictionResult{
		Label:      label,
		Confidence: util.RoundTo(probs[best], ConfidencePlaces),
	}, nil
}

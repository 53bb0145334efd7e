package normalizer

import (
	"fmt"

	"github.com/activecm/flowguard/pkg/features"
	"github.com/activecm/flowguard/pkg/flow"
)

type (
	//Normalizer maps raw flow records onto the numeric vector the classifier
	//was trained on. It holds no per-request state and is safe for
	//concurrent use.
	Normalizer struct {
		numerical   []string
		categorical []string
		scalerType  features.ScalerType
		params      map[string]features.ScaleParams
		encoderType features.EncoderType
		vocab       map[string]map[string]int // value -> position in the fitted vocabulary
		vocabSize   map[string]int
		columns     []string // output column order
		permutation []int    // output column i is internal column permutation[i]
		numWidth    int
		catWidth    int
	}

	//BucketedRecord holds the feature values of one record after the history
	//and duration fields have been bucketed, keyed by feature name
	BucketedRecord struct {
		Numeric     map[string]float64
		Categorical map[string]string
	}
)

// New builds a Normalizer from a validated feature configuration
func New(conf *features.Configuration) (*Normalizer, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}

	n := &Normalizer{
		numerical:   append([]string(nil), conf.NumericalFeatures...),
		categorical: append([]string(nil), conf.CategoricalFeatures...),
		scalerType:  conf.Scaler.Type,
		params:      make(map[string]features.ScaleParams, len(conf.NumericalFeatures)),
		encoderType: conf.Encoder.Type,
		vocab:       make(map[string]map[string]int, len(conf.CategoricalFeatures)),
		vocabSize:   make(map[string]int, len(conf.CategoricalFeatures)),
		columns:     append([]string(nil), conf.OutputColumnOrder...),
	}

	for _, name := range n.numerical {
		n.params[name] = conf.Scaler.Params[name]
	}

	for _, name := range n.categorical {
		values := conf.Vocabulary(name)
		index := make(map[string]int, len(values))
		for i, v := range values {
			index[v] = i
		}
		n.vocab[name] = index
		n.vocabSize[name] = len(values)
	}

	// the scaling and encoding steps emit their columns in feature order,
	// which is not the order the classifier expects. Resolve every output
	// column by name once so each request only does index lookups.
	internal := append(conf.NumericColumns(), conf.CategoricalColumns()...)
	n.numWidth = len(conf.NumericColumns())
	n.catWidth = len(internal) - n.numWidth

	position := make(map[string]int, len(internal))
	for i, col := range internal {
		position[col] = i
	}
	n.permutation = make([]int, len(n.columns))
	for i, col := range n.columns {
		idx, ok := position[col]
		if !ok {
			return nil, fmt.Errorf("output column %q is not produced by any feature", col)
		}
		n.permutation[i] = idx
	}

	return n, nil
}

// Columns returns the output column order
func (n *Normalizer) Columns() []string {
	return append([]string(nil), n.columns...)
}

// Width returns the length of the vectors produced by Normalize
func (n *Normalizer) Width() int {
	return len(n.columns)
}

// Normalize validates rec and converts it into the classifier's feature vector
func (n *Normalizer) Normalize(rec *flow.Record) ([]float64, error) {
	bucketed, err := n.Bucket(rec)
	if err != nil {
		return nil, err
	}
	numeric, err := n.ScaleNumerical(bucketed)
	if err != nil {
		return nil, err
	}
	categorical, err := n.EncodeCategorical(bucketed)
	if err != nil {
		return nil, err
	}
	return n.Assemble(numeric, categorical)
}

// Bucket extracts the fields the configuration needs from rec, replacing the
// history string and the duration with their bucket labels where those are
// configured as categorical features
func (n *Normalizer) Bucket(rec *flow.Record) (*BucketedRecord, error) {
	if err := rec.Validate(); err != nil {
		return nil, err
	}

	out := &BucketedRecord{
		Numeric:     make(map[string]float64, len(n.numerical)),
		Categorical: make(map[string]string, len(n.categorical)),
	}

	for _, name := range n.numerical {
		value, err := numericField(rec, name)
		if err != nil {
			return nil, err
		}
		out.Numeric[name] = value
	}

	for _, name := range n.categorical {
		value, err := categoricalField(rec, name)
		if err != nil {
			return nil, err
		}
		out.Categorical[name] = value
	}

	return out, nil
}

func numericField(rec *flow.Record, name string) (float64, error) {
	var count *int64
	switch name {
	case features.Duration:
		if rec.Duration == nil {
			return 0, &features.MissingFeatureError{Feature: name}
		}
		return *rec.Duration, nil
	case features.OrigPkts:
		count = rec.OrigPkts
	case features.OrigBytes:
		count = rec.OrigBytes
	case features.OrigIPBytes:
		count = rec.OrigIPBytes
	case features.RespBytes:
		count = rec.RespBytes
	default:
		return 0, fmt.Errorf("unsupported numerical feature %q", name)
	}
	if count == nil {
		return 0, &features.MissingFeatureError{Feature: name}
	}
	return float64(*count), nil
}

func categoricalField(rec *flow.Record, name string) (string, error) {
	switch name {
	case features.Proto:
		return requireString(rec.Protocol, name)
	case features.ConnState:
		return requireString(rec.ConnState, name)
	case features.Service:
		return requireString(rec.Service, name)
	case features.HistoryBucket:
		history, err := requireString(rec.History, "history")
		if err != nil {
			return "", err
		}
		return BucketHistory(history), nil
	case features.DurationBucket:
		if rec.Duration == nil {
			return "", &features.MissingFeatureError{Feature: features.Duration}
		}
		return BucketDuration(*rec.Duration), nil
	}
	return "", fmt.Errorf("unsupported categorical feature %q", name)
}

func requireString(value *string, name string) (string, error) {
	if value == nil {
		return "", &features.MissingFeatureError{Feature: name}
	}
	return *value, nil
}

// ScaleNumerical applies the fitted scaling transform to each numerical
// feature in configuration order
func (n *Normalizer) ScaleNumerical(b *BucketedRecord) ([]float64, error) {
	out := make([]float64, 0, n.numWidth)
	for _, name := range n.numerical {
		raw, ok := b.Numeric[name]
		if !ok {
			return nil, &features.MissingFeatureError{Feature: name}
		}
		out = append(out, scale(raw, n.scalerType, n.params[name]))
	}
	return out, nil
}

func scale(x float64, scalerType features.ScalerType, p features.ScaleParams) float64 {
	var scaled float64
	switch scalerType {
	case features.StandardScaler:
		s := p.Scale
		if s == 0 {
			s = 1
		}
		scaled = (x - p.Mean) / s
	case features.MinMaxScaler:
		r := p.Max - p.Min
		if r == 0 {
			r = 1
		}
		scaled = (x - p.Min) / r
	default:
		scaled = x
	}

	if len(p.Clip) == 2 {
		if scaled < p.Clip[0] {
			scaled = p.Clip[0]
		} else if scaled > p.Clip[1] {
			scaled = p.Clip[1]
		}
	}
	return scaled
}

// EncodeCategorical expands each categorical feature, in configuration order,
// against its fitted vocabulary. Values outside the vocabulary are rejected.
func (n *Normalizer) EncodeCategorical(b *BucketedRecord) ([]float64, error) {
	out := make([]float64, 0, n.catWidth)
	for _, name := range n.categorical {
		value, ok := b.Categorical[name]
		if !ok {
			return nil, &features.MissingFeatureError{Feature: name}
		}
		idx, ok := n.vocab[name][value]
		if !ok {
			return nil, &features.UnknownCategoryError{Feature: name, Value: value}
		}

		if n.encoderType == features.OrdinalEncoder {
			out = append(out, float64(idx))
			continue
		}
		block := make([]float64, n.vocabSize[name])
		block[idx] = 1
		out = append(out, block...)
	}
	return out, nil
}

// Assemble concatenates the scaled and encoded blocks and reorders the result
// by column name into the output column order
func (n *Normalizer) Assemble(numeric, categorical []float64) ([]float64, error) {
	if len(numeric) != n.numWidth {
		return nil, fmt.Errorf("expected %d numeric values, got %d", n.numWidth, len(numeric))
	}
	if len(categorical) != n.catWidth {
		return nil, fmt.Errorf("expected %d categorical values, got %d", n.catWidth, len(categorical))
	}

	internal := make([]float64, 0, n.numWidth+n.catWidth)
	internal = append(internal, numeric...)
	internal = append(internal, categorical...)

	out := make([]float64, len(n.permutation))
	for i, idx := range n.permutation {
		out[i] = internal[idx]
	}
	return out, nil
}

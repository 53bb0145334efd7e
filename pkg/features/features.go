package features

import (
	"fmt"
	"sort"
)

// Raw numeric fields a configuration may name as numerical features
const (
	Duration    = "duration"
	OrigPkts    = "orig_pkts"
	OrigBytes   = "orig_bytes"
	OrigIPBytes = "orig_ip_bytes"
	RespBytes   = "resp_bytes"
)

// Categorical features a configuration may name. The bucket features are
// derived from the raw history string and duration respectively.
const (
	Proto          = "proto"
	ConnState      = "conn_state"
	Service        = "service"
	HistoryBucket  = "history_bucket"
	DurationBucket = "duration_bucket"
)

var numericSources = map[string]struct{}{
	Duration: {}, OrigPkts: {}, OrigBytes: {}, OrigIPBytes: {}, RespBytes: {},
}

var categoricalSources = map[string]struct{}{
	Proto: {}, ConnState: {}, Service: {}, HistoryBucket: {}, DurationBucket: {},
}

// ScalerType selects the transform fitted to the numerical features
type ScalerType string

// EncoderType selects the expansion fitted to the categorical features
type EncoderType string

const (
	//StandardScaler computes (x - mean) / scale
	StandardScaler ScalerType = "standard"
	//MinMaxScaler computes (x - min) / (max - min)
	MinMaxScaler ScalerType = "minmax"
	//NoScaler passes values through unchanged
	NoScaler ScalerType = "none"

	//OneHotEncoder emits one column per vocabulary entry
	OneHotEncoder EncoderType = "onehot"
	//OrdinalEncoder emits the vocabulary index in a single column
	OrdinalEncoder EncoderType = "ordinal"
)

type (
	//Configuration is the frozen preprocessing artifact produced at training
	//time. It is loaded once at startup and shared read-only afterwards.
	Configuration struct {
		NumericalFeatures   []string   `json:"numerical_features"`
		CategoricalFeatures []string   `json:"categorical_features"`
		OutputColumnOrder   []string   `json:"feature_names_out"`
		Scaler              ScalerCfg  `json:"scaler"`
		Encoder             EncoderCfg `json:"encoder"`
		Labels              []string   `json:"labels"`
	}

	//ScalerCfg holds the fitted numeric scaling parameters
	ScalerCfg struct {
		Type   ScalerType             `json:"type"`
		Params map[string]ScaleParams `json:"params"`
	}

	//ScaleParams are the fitted parameters for a single numeric feature.
	//Clip is optional and, when present, holds [lower, upper] bounds applied
	//after scaling.
	ScaleParams struct {
		Mean  float64   `json:"mean"`
		Scale float64   `json:"scale"`
		Min   float64   `json:"min"`
		Max   float64   `json:"max"`
		Clip  []float64 `json:"clip,omitempty"`
	}

	//EncoderCfg holds the fitted vocabularies of the categorical features
	EncoderCfg struct {
		Type       EncoderType         `json:"type"`
		Categories map[string][]string `json:"categories"`
	}
)

// IsNumericSource reports whether name is a numeric field the normalizer can read
func IsNumericSource(name string) bool {
	_, ok := numericSources[name]
	return ok
}

// IsCategoricalSource reports whether name is a categorical field the normalizer can produce
func IsCategoricalSource(name string) bool {
	_, ok := categoricalSources[name]
	return ok
}

// Vocabulary returns the fitted vocabulary of a categorical feature
func (c *Configuration) Vocabulary(feature string) []string {
	return c.Encoder.Categories[feature]
}

// NumericColumns returns the names of the columns produced by numeric scaling,
// in scaling order
func (c *Configuration) NumericColumns() []string {
	return append([]string(nil), c.NumericalFeatures...)
}

// CategoricalColumns returns the names of the columns produced by categorical
// encoding, in encoding order
func (c *Configuration) CategoricalColumns() []string {
	var cols []string
	for _, feature := range c.CategoricalFeatures {
		if c.Encoder.Type == OrdinalEncoder {
			cols = append(cols, feature)
			continue
		}
		for _, value := range c.Encoder.Categories[feature] {
			cols = append(cols, OneHotColumn(feature, value))
		}
	}
	return cols
}

// OneHotColumn names the one-hot column for a feature value
func OneHotColumn(feature, value string) string {
	return feature + "_" + value
}

// Validate checks that the artifact is internally consistent. Any error here
// means the artifact cannot be served.
func (c *Configuration) Validate() error {
	if len(c.NumericalFeatures)+len(c.CategoricalFeatures) == 0 {
		return fmt.Errorf("no features configured")
	}

	switch c.Scaler.Type {
	case StandardScaler, MinMaxScaler, NoScaler:
	default:
		return fmt.Errorf("unsupported scaler type %q", c.Scaler.Type)
	}

	switch c.Encoder.Type {
	case OneHotEncoder, OrdinalEncoder:
	default:
		return fmt.Errorf("unsupported encoder type %q", c.Encoder.Type)
	}

	seen := make(map[string]struct{})
	for _, name := range c.NumericalFeatures {
		if !IsNumericSource(name) {
			return fmt.Errorf("unknown numerical feature %q", name)
		}
		if _, ok := seen[name]; ok {
			return fmt.Errorf("duplicate feature %q", name)
		}
		seen[name] = struct{}{}

		params, ok := c.Scaler.Params[name]
		if !ok && c.Scaler.Type != NoScaler {
			return fmt.Errorf("no scaler parameters for numerical feature %q", name)
		}
		if len(params.Clip) != 0 && (len(params.Clip) != 2 || params.Clip[0] > params.Clip[1]) {
			return fmt.Errorf("invalid clip bounds for numerical feature %q", name)
		}
	}

	for _, name := range c.CategoricalFeatures {
		if !IsCategoricalSource(name) {
			return fmt.Errorf("unknown categorical feature %q", name)
		}
		if _, ok := seen[name]; ok {
			return fmt.Errorf("duplicate feature %q", name)
		}
		seen[name] = struct{}{}

		vocab := c.Encoder.Categories[name]
		if len(vocab) == 0 {
			return fmt.Errorf("no fitted vocabulary for categorical feature %q", name)
		}
		values := make(map[string]struct{}, len(vocab))
		for _, v := range vocab {
			if _, ok := values[v]; ok {
				return fmt.Errorf("duplicate value %q in vocabulary of %q", v, name)
			}
			values[v] = struct{}{}
		}
	}

	return c.validateColumnOrder()
}

// validateColumnOrder ensures the output column order names exactly the
// columns the scaling and encoding steps produce
func (c *Configuration) validateColumnOrder() error {
	produced := append(c.NumericColumns(), c.CategoricalColumns()...)
	producedSet := make(map[string]struct{}, len(produced))
	for _, col := range produced {
		if _, ok := producedSet[col]; ok {
			return fmt.Errorf("column %q is produced more than once", col)
		}
		producedSet[col] = struct{}{}
	}

	ordered := make(map[string]struct{}, len(c.OutputColumnOrder))
	for _, col := range c.OutputColumnOrder {
		if _, ok := ordered[col]; ok {
			return fmt.Errorf("column %q appears twice in the output column order", col)
		}
		if _, ok := producedSet[col]; !ok {
			return fmt.Errorf("output column %q is not produced by any feature", col)
		}
		ordered[col] = struct{}{}
	}

	var missing []string
	for _, col := range produced {
		if _, ok := ordered[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("output column order is missing columns %v", missing)
	}
	return nil
}

package features

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTestingArtifact(t *testing.T) {
	conf, err := LoadTestingConfiguration()
	require.NoError(t, err)

	assert.Equal(t, []string{OrigPkts, OrigIPBytes}, conf.NumericalFeatures)
	assert.Equal(t, []string{Proto, ConnState, HistoryBucket}, conf.CategoricalFeatures)
	assert.Equal(t, StandardScaler, conf.Scaler.Type)
	assert.Equal(t, OneHotEncoder, conf.Encoder.Type)
	assert.Equal(t, []string{"tcp", "udp"}, conf.Vocabulary(Proto))
	assert.Len(t, conf.OutputColumnOrder, 22)
	assert.Equal(t, []string{"benign", "malicious"}, conf.Labels)
}

func TestCategoricalColumns(t *testing.T) {
	conf := &Configuration{
		CategoricalFeatures: []string{Proto, Service},
		Encoder: EncoderCfg{
			Type: OneHotEncoder,
			Categories: map[string][]string{
				Proto:   {"tcp", "udp"},
				Service: {"-", "dns"},
			},
		},
	}
	assert.Equal(t, []string{"proto_tcp", "proto_udp", "service_-", "service_dns"}, conf.CategoricalColumns())

	conf.Encoder.Type = OrdinalEncoder
	assert.Equal(t, []string{"proto", "service"}, conf.CategoricalColumns())
}

func TestParseDefaults(t *testing.T) {
	conf, err := Parse([]byte(`{
		"numerical_features": ["duration"],
		"categorical_features": ["proto"],
		"feature_names_out": ["proto_tcp", "duration"],
		"scaler": {"params": {"duration": {"mean": 1, "scale": 2}}},
		"encoder": {"categories": {"proto": ["tcp"]}}
	}`))
	require.NoError(t, err)
	assert.Equal(t, StandardScaler, conf.Scaler.Type)
	assert.Equal(t, OneHotEncoder, conf.Encoder.Type)
}

func TestValidateRejectsBrokenArtifacts(t *testing.T) {
	base := func() *Configuration {
		conf, err := LoadTestingConfiguration()
		require.NoError(t, err)
		return conf
	}

	cases := []struct {
		name   string
		mutate func(*Configuration)
	}{
		{"unknown numerical feature", func(c *Configuration) {
			c.NumericalFeatures = append(c.NumericalFeatures, "resp_pkts")
		}},
		{"unknown categorical feature", func(c *Configuration) {
			c.CategoricalFeatures = append(c.CategoricalFeatures, "local_orig")
		}},
		{"missing scaler params", func(c *Configuration) {
			delete(c.Scaler.Params, OrigPkts)
		}},
		{"bad clip bounds", func(c *Configuration) {
			p := c.Scaler.Params[OrigPkts]
			p.Clip = []float64{5, 1}
			c.Scaler.Params[OrigPkts] = p
		}},
		{"missing vocabulary", func(c *Configuration) {
			delete(c.Encoder.Categories, ConnState)
		}},
		{"duplicate vocabulary value", func(c *Configuration) {
			c.Encoder.Categories[Proto] = []string{"tcp", "tcp"}
		}},
		{"output column not produced", func(c *Configuration) {
			c.OutputColumnOrder = append(c.OutputColumnOrder, "proto_icmp")
		}},
		{"output column missing", func(c *Configuration) {
			c.OutputColumnOrder = c.OutputColumnOrder[1:]
		}},
		{"duplicate output column", func(c *Configuration) {
			c.OutputColumnOrder[1] = c.OutputColumnOrder[0]
		}},
		{"unsupported scaler", func(c *Configuration) {
			c.Scaler.Type = "robust"
		}},
		{"unsupported encoder", func(c *Configuration) {
			c.Encoder.Type = "target"
		}},
		{"no features", func(c *Configuration) {
			c.NumericalFeatures = nil
			c.CategoricalFeatures = nil
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			conf := base()
			tc.mutate(conf)
			assert.Error(t, conf.Validate())
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "flowguard_preprocessing.json")
	require.NoError(t, os.WriteFile(path, []byte(TestingArtifact), 0644))

	conf, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{OrigPkts, OrigIPBytes}, conf.NumericalFeatures)

	_, err = Load(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))
	_, err = Load(path)
	assert.Error(t, err)
}

func TestErrorMessages(t *testing.T) {
	var err error = &UnknownCategoryError{Feature: Proto, Value: "quic"}
	assert.Equal(t, `unknown category "quic" for feature proto`, err.Error())

	var unknown *UnknownCategoryError
	assert.True(t, errors.As(err, &unknown))

	err = &MissingFeatureError{Feature: OrigPkts}
	assert.Equal(t, "missing required feature orig_pkts", err.Error())

	err = &ValidationError{Field: OrigPkts, Reason: "must not be negative"}
	assert.Equal(t, "invalid value for orig_pkts: must not be negative", err.Error())
}

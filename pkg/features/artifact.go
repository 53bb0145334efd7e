package features

import (
	"fmt"
	"io/ioutil"

	jsoniter "github.com/json-iterator/go"
)

// Load reads and validates the preprocessing artifact at path
func Load(path string) (*Configuration, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read preprocessing artifact: %w", err)
	}
	conf, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return conf, nil
}

// Parse decodes and validates a preprocessing artifact. A missing scaler or
// encoder type defaults to standard scaling and one-hot encoding.
func Parse(data []byte) (*Configuration, error) {
	conf := new(Configuration)
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(data, conf); err != nil {
		return nil, fmt.Errorf("failed to decode preprocessing artifact: %w", err)
	}

	if conf.Scaler.Type == "" {
		conf.Scaler.Type = StandardScaler
	}
	if conf.Encoder.Type == "" {
		conf.Encoder.Type = OneHotEncoder
	}

	if err := conf.Validate(); err != nil {
		return nil, fmt.Errorf("invalid preprocessing artifact: %w", err)
	}
	return conf, nil
}

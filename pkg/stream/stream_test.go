package stream

import (
	"errors"
	"testing"

	"github.com/activecm/flowguard/pkg/classify"
	"github.com/activecm/flowguard/pkg/features"
	"github.com/activecm/flowguard/pkg/flow"
	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubClassifier struct {
	result classify.Result
	err    error
	got    *flow.Record
}

func (s *stubClassifier) Classify(rec *flow.Record) (classify.Result, error) {
	s.got = rec
	return s.result, s.err
}

func decodeMap(t *testing.T, payload []byte) map[string]interface{} {
	var out map[string]interface{}
	require.NoError(t, jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(payload, &out))
	return out
}

func TestProcess(t *testing.T) {
	t.Run("prediction", func(t *testing.T) {
		stub := &stubClassifier{result: classify.Result{Label: "malicious", Confidence: 0.9, Malicious: true}}

		payload, err := process(stub, []byte(`{"uid":"C1","proto":"tcp","conn_state":"SF","history":"S","orig_pkts":5,"orig_ip_bytes":400}`))
		require.NoError(t, err)

		require.NotNil(t, stub.got)
		assert.Equal(t, "tcp", *stub.got.Protocol)
		assert.Equal(t, map[string]interface{}{
			"uid":        "C1",
			"label":      "malicious",
			"confidence": 0.9,
			"malicious":  true,
		}, decodeMap(t, payload))
	})

	t.Run("zero confidence is still reported", func(t *testing.T) {
		stub := &stubClassifier{result: classify.Result{Label: "benign"}}

		payload, err := process(stub, []byte(`{}`))
		require.NoError(t, err)
		out := decodeMap(t, payload)
		assert.Contains(t, out, "confidence")
		assert.NotContains(t, out, "uid")
	})

	t.Run("rejected record", func(t *testing.T) {
		stub := &stubClassifier{err: &features.UnknownCategoryError{Feature: "proto", Value: "quic"}}

		payload, err := process(stub, []byte(`{"uid":"C2","proto":"quic"}`))
		require.NoError(t, err)
		assert.Equal(t, map[string]interface{}{
			"uid":    "C2",
			"error":  classify.KindUnknownCategory,
			"detail": `unknown category "quic" for feature proto`,
		}, decodeMap(t, payload))
	})

	t.Run("malformed payload", func(t *testing.T) {
		stub := &stubClassifier{}

		payload, err := process(stub, []byte(`not json`))
		require.NoError(t, err)
		assert.Nil(t, stub.got)

		out := decodeMap(t, payload)
		assert.Equal(t, classify.KindValidation, out["error"])
		assert.Contains(t, out["detail"], "malformed JSON record")
	})

	t.Run("internal failure", func(t *testing.T) {
		stub := &stubClassifier{err: errors.New("boom")}

		payload, err := process(stub, []byte(`{"uid":"C3"}`))
		require.NoError(t, err)
		assert.Equal(t, classify.KindInternal, decodeMap(t, payload)["error"])
	})
}

package flow

import (
	"math"

	"github.com/activecm/flowguard/pkg/features"
	jsoniter "github.com/json-iterator/go"
)

// Body names the whole payload in validation errors raised while decoding
const Body = "body"

// Record is a single connection summary as it arrives from a caller or a Zeek
// conn log. Pointer fields distinguish an absent value from a zero value.
// UID, Source, Destination and TimeStamp identify the flow and never feed the
// classifier.
type Record struct {
	UID         string  `json:"uid,omitempty"`
	Source      string  `json:"id.orig_h,omitempty"`
	Destination string  `json:"id.resp_h,omitempty"`
	TimeStamp   float64 `json:"ts,omitempty"`

	Protocol    *string  `json:"proto"`
	ConnState   *string  `json:"conn_state"`
	History     *string  `json:"history"`
	Service     *string  `json:"service,omitempty"`
	Duration    *float64 `json:"duration,omitempty"`
	OrigPkts    *int64   `json:"orig_pkts"`
	OrigBytes   *int64   `json:"orig_bytes,omitempty"`
	OrigIPBytes *int64   `json:"orig_ip_bytes"`
	RespBytes   *int64   `json:"resp_bytes,omitempty"`
}

// Validate checks the numeric invariants of the record. A nil record is a
// validation error. Fields that are not
// present are not checked here; whether they are required depends on the
// active feature configuration.
func (r *Record) Validate() error {
	if r == nil {
		return &features.ValidationError{Field: Body, Reason: "record is null"}
	}
	if r.Duration != nil {
		if math.IsNaN(*r.Duration) || math.IsInf(*r.Duration, 0) {
			return &features.ValidationError{Field: features.Duration, Reason: "must be a finite number"}
		}
		if *r.Duration < 0 {
			return &features.ValidationError{Field: features.Duration, Reason: "must not be negative"}
		}
	}

	counts := []struct {
		name  string
		value *int64
	}{
		{features.OrigPkts, r.OrigPkts},
		{features.OrigBytes, r.OrigBytes},
		{features.OrigIPBytes, r.OrigIPBytes},
		{features.RespBytes, r.RespBytes},
	}
	for _, c := range counts {
		if c.value != nil && *c.value < 0 {
			return &features.ValidationError{Field: c.name, Reason: "must not be negative"}
		}
	}
	return nil
}

// String returns a pointer to s
func String(s string) *string { return &s }

// Int returns a pointer to i
func Int(i int64) *int64 { return &i }

// Float returns a pointer to f
func Float(f float64) *float64 { return &f }

// Decode reads a JSON encoded record. Malformed payloads are reported as a
// ValidationError so that callers can treat them like any other bad record.
func Decode(data []byte) (*Record, error) {
	rec := new(Record)
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(data, rec); err != nil {
		return nil, &features.ValidationError{Field: Body, Reason: "malformed JSON record: " + err.Error()}
	}
	return rec, nil
}

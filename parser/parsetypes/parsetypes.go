package parsetypes

import (
	"strings"

	"github.com/activecm/flowguard/pkg/flow"
)

// BroData holds a line of a bro log which can be classified
type BroData interface {
	// ConvertFromJSON fixes up fields whose JSON form differs from the TSV form
	ConvertFromJSON()
	// ToRecord converts the line into a flow record
	ToRecord() *flow.Record
}

// NewBroDataFactory creates a new BroData based on the string
// which appears in that log's objType field. Rotated and sensor
// specific names such as conn_eth0 or conn.00:00:00-01:00:00.log
// map to the same type. Unsupported logs return nil.
func NewBroDataFactory(fileType string) func() BroData {
	if strings.HasPrefix(fileType, "conn") && !strings.HasPrefix(fileType, "conn_long") &&
		!strings.HasPrefix(fileType, "conn-summary") {
		return func() BroData {
			return NewConn()
		}
	}
	return nil
}

// Zeek field types named in the #types header of TSV logs. Only the types
// which can appear in a conn log are parsed, any other type fails the line.
// See https://docs.zeek.org/en/master/script-reference/types.html
const (
	// Bool is written T or F
	Bool = "bool"

	// Count is an unsigned 64 bit integer
	Count = "count"

	// Int is a signed 64 bit integer
	Int = "int"

	// Double is a floating point number, optionally in e notation
	Double = "double"

	// Time is an absolute time in epoch seconds
	Time = "time"

	// Interval is a relative time in seconds
	Interval = "interval"

	// String holds characters with non-printable bytes escaped
	String = "string"

	// Port is a transport port number
	Port = "port"

	// Addr is an IPv4 or IPv6 address
	Addr = "addr"

	// Enum is one of a fixed set of identifiers, e.g. the protocol
	Enum = "enum"

	// StringSet is an unordered collection of strings, e.g. tunnel parents
	StringSet = "set[string]"

	// EnumSet is an unordered collection of enum values
	EnumSet = "set[enum]"

	// StringVector is an ordered collection of strings
	StringVector = "vector[string]"
)

package parsetypes

import (
	"strconv"
	"time"

	"github.com/activecm/flowguard/pkg/flow"
)

// Unset is the placeholder Zeek writes for string fields without a value
const Unset = "-"

// unsetNumber marks numeric fields missing from the log line
const unsetNumber = -1

type (
	// Conn provides a data structure for zeek's connection data
	Conn struct {
		// TimeStamp of this connection
		TimeStamp float64 `bro:"ts" brotype:"time" json:"-"`
		// TimeStampGeneric is used when reading from json files
		TimeStampGeneric interface{} `json:"ts"`
		// UID is the Unique Id for this connection (generated by Zeek)
		UID string `bro:"uid" brotype:"string" json:"uid"`
		// Source is the source address for this connection
		Source string `bro:"id.orig_h" brotype:"addr" json:"id.orig_h"`
		// SourcePort is the source port of this connection
		SourcePort int `bro:"id.orig_p" brotype:"port" json:"id.orig_p"`
		// Destination is the destination of the connection
		Destination string `bro:"id.resp_h" brotype:"addr" json:"id.resp_h"`
		// DestinationPort is the port at the destination host
		DestinationPort int `bro:"id.resp_p" brotype:"port" json:"id.resp_p"`
		// Proto is the string protocol identifier for this connection
		Proto string `bro:"proto" brotype:"enum" json:"proto"`
		// Service describes the service of this connection if there was one
		Service string `bro:"service" brotype:"string" json:"service"`
		// Duration is the length of the connection
		Duration float64 `bro:"duration" brotype:"interval" json:"duration"`
		// OrigBytes is the payload bytes sent by the originator
		OrigBytes int64 `bro:"orig_bytes" brotype:"count" json:"orig_bytes"`
		// RespBytes is the payload bytes sent by the responder
		RespBytes int64 `bro:"resp_bytes" brotype:"count" json:"resp_bytes"`
		// ConnState has data describing the state of a connection
		ConnState string `bro:"conn_state" brotype:"string" json:"conn_state"`
		// LocalOrigin denotes that the connection originated locally
		LocalOrigin bool `bro:"local_orig" brotype:"bool" json:"local_orig"`
		// LocalResponse denotes that the connection responded locally
		LocalResponse bool `bro:"local_resp" brotype:"bool" json:"local_resp"`
		// MissedBytes is the number of bytes missed by content gaps
		MissedBytes int64 `bro:"missed_bytes" brotype:"count" json:"missed_bytes"`
		// History is the state history of the connection
		History string `bro:"history" brotype:"string" json:"history"`
		// OrigPackets is the number of packets sent by the originator
		OrigPackets int64 `bro:"orig_pkts" brotype:"count" json:"orig_pkts"`
		// OrigIPBytes is the number of IP level bytes sent by the originator
		OrigIPBytes int64 `bro:"orig_ip_bytes" brotype:"count" json:"orig_ip_bytes"`
		// RespPackets is the number of packets sent by the responder
		RespPackets int64 `bro:"resp_pkts" brotype:"count" json:"resp_pkts"`
		// RespIPBytes is the number of IP level bytes sent by the responder
		RespIPBytes int64 `bro:"resp_ip_bytes" brotype:"count" json:"resp_ip_bytes"`
		// TunnelParents lists tunnel parents
		TunnelParents []string `bro:"tunnel_parents" brotype:"set[string]" json:"tunnel_parents"`
	}
)

// NewConn returns a Conn whose fields all read as unset until a log line
// fills them in
func NewConn() *Conn {
	return &Conn{
		Proto:       Unset,
		Service:     Unset,
		ConnState:   Unset,
		History:     Unset,
		Duration:    unsetNumber,
		OrigBytes:   unsetNumber,
		RespBytes:   unsetNumber,
		MissedBytes: unsetNumber,
		OrigPackets: unsetNumber,
		OrigIPBytes: unsetNumber,
		RespPackets: unsetNumber,
		RespIPBytes: unsetNumber,
	}
}

// ConvertFromJSON performs any extra conversions necessary when reading from JSON
func (line *Conn) ConvertFromJSON() {
	line.TimeStamp = convertTimestamp(line.TimeStampGeneric)
}

// ToRecord converts the log line into a flow record. Numeric fields missing
// from the log are left absent. Missing string fields keep Zeek's unset
// placeholder.
func (line *Conn) ToRecord() *flow.Record {
	rec := &flow.Record{
		UID:         line.UID,
		Source:      line.Source,
		Destination: line.Destination,
		TimeStamp:   line.TimeStamp,
		Protocol:    flow.String(line.Proto),
		ConnState:   flow.String(line.ConnState),
		History:     flow.String(line.History),
		Service:     flow.String(line.Service),
	}
	if line.Duration >= 0 {
		rec.Duration = flow.Float(line.Duration)
	}
	rec.OrigPkts = count(line.OrigPackets)
	rec.OrigBytes = count(line.OrigBytes)
	rec.OrigIPBytes = count(line.OrigIPBytes)
	rec.RespBytes = count(line.RespBytes)
	return rec
}

func count(v int64) *int64 {
	if v < 0 {
		return nil
	}
	return flow.Int(v)
}

// convertTimestamp reads Zeek JSON timestamps, written either as epoch
// seconds or as ISO8601 strings
func convertTimestamp(timestamp interface{}) float64 {
	switch ts := timestamp.(type) {
	case float64:
		return ts
	case string:
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			return float64(t.UnixNano()) / float64(time.Second)
		}
		if f, err := strconv.ParseFloat(ts, 64); err == nil {
			return f
		}
	}
	return 0
}

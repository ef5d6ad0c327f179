// Package connlog reads the newline-JSON connection log produced by the
// external connection-analyzer tool (conventionally "bro"/Zeek).
package connlog

import (
	"bufio"
	"encoding/json"
	"io"
	"math"
	"net"

	"github.com/rs/zerolog/log"

	"github.com/starfys/pcapfeatures/slices"
)

// TransportProtocol mirrors the external analyzer's "proto" field.
type TransportProtocol string

const (
	TransportUnknown TransportProtocol = "unknown_transport"
	TransportTCP     TransportProtocol = "tcp"
	TransportUDP     TransportProtocol = "udp"
	TransportICMP    TransportProtocol = "icmp"
)

// Code returns the IANA IP next-header code for the transport protocol.
func (t TransportProtocol) Code() uint8 {
	switch t {
	case TransportTCP:
		return 6
	case TransportUDP:
		return 17
	case TransportICMP:
		return 1
	default:
		return 0
	}
}

// ConnState is the connection's terminal state, as reported by the
// external analyzer. Only retained as an optional summary field; it plays
// no role in flow association.
type ConnState string

// Connection is one record of the external analyzer's connection log.
// Only the first seven fields (through TransProtocol) are required for
// flow association; the rest are optional summary counters
// carried through for completeness.
type Connection struct {
	TimestampNS   uint64            `json:"-"`
	UID           string            `json:"uid"`
	OrigIP        net.IP            `json:"-"`
	RespIP        net.IP            `json:"-"`
	OrigPort      uint16            `json:"id.orig_p"`
	RespPort      uint16            `json:"id.resp_p"`
	TransProtocol TransportProtocol `json:"proto"`
	Service       *string           `json:"service"`
	DurationNS    uint64            `json:"-"`
	OrigBytes     *int64            `json:"orig_bytes"`
	RespBytes     *int64            `json:"resp_bytes"`
	ConnState     *ConnState        `json:"conn_state"`
	MissedBytes   *int64            `json:"missed_bytes"`
	History       string            `json:"history"`
	OrigPkts      *int64            `json:"orig_pkts"`
	OrigIPBytes   *int64            `json:"orig_ip_bytes"`
	RespPkts      *int64            `json:"resp_pkts"`
	RespIPBytes   *int64            `json:"resp_ip_bytes"`
}

// wireConnection mirrors the literal on-disk JSON shape, including the
// float-seconds timestamp fields and the dotted "id.*" endpoint keys the
// external analyzer emits. Connection itself uses richer Go types
// (net.IP, nanosecond integers) so wireConnection exists purely to decode.
type wireConnection struct {
	Timestamp     float64           `json:"ts"`
	UID           string            `json:"uid"`
	OrigIP        net.IP            `json:"id.orig_h"`
	RespIP        net.IP            `json:"id.resp_h"`
	OrigPort      uint16            `json:"id.orig_p"`
	RespPort      uint16            `json:"id.resp_p"`
	TransProtocol TransportProtocol `json:"proto"`
	Service       *string           `json:"service"`
	Duration      float64           `json:"duration"`
	OrigBytes     *int64            `json:"orig_bytes"`
	RespBytes     *int64            `json:"resp_bytes"`
	ConnState     *ConnState        `json:"conn_state"`
	MissedBytes   *int64            `json:"missed_bytes"`
	History       string            `json:"history"`
	OrigPkts      *int64            `json:"orig_pkts"`
	OrigIPBytes   *int64            `json:"orig_ip_bytes"`
	RespPkts      *int64            `json:"resp_pkts"`
	RespIPBytes   *int64            `json:"resp_ip_bytes"`
}

// parseBroTimestamp converts the analyzer's floating-point Unix-seconds
// timestamp into nanoseconds, preserving microsecond resolution:
// round(ts*1e6)*1000.
func parseBroTimestamp(ts float64) uint64 {
	micros := math.Round(ts * 1e6)
	return uint64(micros) * 1000
}

func (w wireConnection) toConnection() Connection {
	return Connection{
		TimestampNS:   parseBroTimestamp(w.Timestamp),
		UID:           w.UID,
		OrigIP:        w.OrigIP,
		RespIP:        w.RespIP,
		OrigPort:      w.OrigPort,
		RespPort:      w.RespPort,
		TransProtocol: w.TransProtocol,
		Service:       w.Service,
		DurationNS:    parseBroTimestamp(w.Duration),
		OrigBytes:     w.OrigBytes,
		RespBytes:     w.RespBytes,
		ConnState:     w.ConnState,
		MissedBytes:   w.MissedBytes,
		History:       w.History,
		OrigPkts:      w.OrigPkts,
		OrigIPBytes:   w.OrigIPBytes,
		RespPkts:      w.RespPkts,
		RespIPBytes:   w.RespIPBytes,
	}
}

// LoadConnections reads newline-delimited JSON connection records from r.
// Lines that fail to parse are skipped with a logged warning; the
// returned slice preserves file order.
func LoadConnections(r io.Reader) ([]Connection, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 8*1024*1024)

	var wires []wireConnection
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var w wireConnection
		if err := json.Unmarshal(line, &w); err != nil {
			log.Warn().Err(err).Msg("connlog: skipping unparseable connection log line")
			continue
		}
		wires = append(wires, w)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return slices.Map(wires, wireConnection.toConnection), nil
}

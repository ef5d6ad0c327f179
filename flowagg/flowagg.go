// Package flowagg associates decoded packets with connection-log flows
// under a temporal grace-period policy.
package flowagg

import (
	"net"
	"sort"

	"github.com/rs/zerolog/log"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/starfys/pcapfeatures/connlog"
	"github.com/starfys/pcapfeatures/netdecode"
)

const (
	// DefaultGraceBeforeNS and DefaultGraceAfterNS are the default grace
	// periods applied when Options does not override them.
	DefaultGraceBeforeNS uint64 = 1_000_000_000
	DefaultGraceAfterNS  uint64 = 5_000_000_000
)

// Options configures an Aggregator.
type Options struct {
	GraceBeforeNS uint64
	GraceAfterNS  uint64
}

func NewOptions() Options {
	return Options{
		GraceBeforeNS: DefaultGraceBeforeNS,
		GraceAfterNS:  DefaultGraceAfterNS,
	}
}

type Option func(*Options)

func WithGraceBeforeNS(ns uint64) Option {
	return func(o *Options) { o.GraceBeforeNS = ns }
}

func WithGraceAfterNS(ns uint64) Option {
	return func(o *Options) { o.GraceAfterNS = ns }
}

// PacketKey is the canonical, direction-agnostic five-tuple used to
// associate packets with connections. The endpoint stored in
// the _A fields is always the one with the numerically smaller port;
// ties preserve input order.
type PacketKey struct {
	IPA, IPB       string
	TransportProto uint8
	PortA, PortB   uint16
}

// NewPacketKey canonicalizes (ipA, ipB, proto, portA, portB) so that a
// packet and its reply produce an equal key.
func NewPacketKey(ipA, ipB net.IP, proto uint8, portA, portB uint16) PacketKey {
	if portA > portB {
		ipA, ipB = ipB, ipA
		portA, portB = portB, portA
	}
	return PacketKey{
		IPA:            ipA.String(),
		IPB:            ipB.String(),
		TransportProto: proto,
		PortA:          portA,
		PortB:          portB,
	}
}

func packetKeyFromPacket(p netdecode.Packet) PacketKey {
	return NewPacketKey(p.SrcIP, p.DstIP, p.TransportProtocol, p.SrcPort, p.DstPort)
}

func packetKeyFromConnection(c connlog.Connection) PacketKey {
	return NewPacketKey(c.OrigIP, c.RespIP, c.TransProtocol.Code(), c.OrigPort, c.RespPort)
}

// FlowPeriod is the time window, and identifying UID, of one connection.
type FlowPeriod struct {
	StartNS uint64
	EndNS   uint64
	UID     string
}

func flowPeriodFromConnection(c connlog.Connection) FlowPeriod {
	return FlowPeriod{StartNS: c.TimestampNS, EndNS: c.TimestampNS + c.DurationNS, UID: c.UID}
}

// Aggregator maps packets to the UID of the connection they belong to,
// under an endpoint-key match plus a temporal grace-period policy.
type Aggregator struct {
	opts          Options
	connectionMap map[PacketKey][]FlowPeriod
	data          map[string][]netdecode.StrippedPacket
}

// NewAggregator builds the PacketKey -> []FlowPeriod index from conns. The
// resulting map is read-only for the remainder of the aggregator's life
// and safe to share across goroutines without locking once built.
func NewAggregator(conns []connlog.Connection, opts ...Option) *Aggregator {
	o := NewOptions()
	for _, opt := range opts {
		opt(&o)
	}

	connectionMap := make(map[PacketKey][]FlowPeriod)
	for _, c := range conns {
		key := packetKeyFromConnection(c)
		connectionMap[key] = append(connectionMap[key], flowPeriodFromConnection(c))
	}

	return &Aggregator{
		opts:          o,
		connectionMap: connectionMap,
		data:          make(map[string][]netdecode.StrippedPacket),
	}
}

// timeDifference classifies a packet's timestamp against one FlowPeriod.
// kind is 0 for no match, 1 for After, 2 for Before; delta is the absolute
// distance used to rank candidates of the same kind.
type timeDifference struct {
	uid   string
	kind  int // 0 = none, 1 = after, 2 = before
	delta uint64
}

const (
	kindNone = iota
	kindAfter
	kindBefore
)

// classify returns the relationship of timestampNS to period: exact,
// slightly after, or slightly before. Once the exact-match window is
// ruled out, timestampNS lies strictly on one side of [start, end]: the
// After branch only applies past end, the Before branch only applies
// ahead of start.
func classify(timestampNS uint64, period FlowPeriod, graceBefore, graceAfter uint64) (exact bool, td timeDifference) {
	if timestampNS >= period.StartNS && timestampNS <= period.EndNS {
		return true, timeDifference{uid: period.UID}
	}
	if timestampNS > period.EndNS && timestampNS < period.EndNS+graceAfter {
		return false, timeDifference{uid: period.UID, kind: kindAfter, delta: (period.EndNS + graceAfter) - timestampNS}
	}
	if timestampNS < period.StartNS && timestampNS+graceBefore > period.StartNS {
		return false, timeDifference{uid: period.UID, kind: kindBefore, delta: (timestampNS + graceBefore) - period.StartNS}
	}
	return false, timeDifference{}
}

// lessCandidate orders candidates so that every After sorts ahead of every
// Before regardless of magnitude, and otherwise by smaller delta.
func lessCandidate(a, b timeDifference) bool {
	if a.kind != b.kind {
		return a.kind == kindAfter
	}
	return a.delta < b.delta
}

// LoadPackets ingests packets, assigning each to a connection UID or
// dropping it with a logged warning.
func (a *Aggregator) LoadPackets(packets []netdecode.Packet) {
	for _, p := range packets {
		key := packetKeyFromPacket(p)
		periods, ok := a.connectionMap[key]
		if !ok {
			log.Warn().Msg("flowagg: no connection matches packet's endpoint key")
			continue
		}

		var exactUID string
		foundExact := false
		var candidates []timeDifference

		for _, period := range periods {
			exact, td := classify(p.TimestampNS, period, a.opts.GraceBeforeNS, a.opts.GraceAfterNS)
			if exact {
				exactUID = td.uid
				foundExact = true
				break
			}
			if td.kind != kindNone {
				candidates = append(candidates, td)
			}
		}

		var uid string
		switch {
		case foundExact:
			uid = exactUID
		case len(candidates) > 0:
			sort.Slice(candidates, func(i, j int) bool { return lessCandidate(candidates[i], candidates[j]) })
			uid = candidates[0].uid
		default:
			log.Warn().Msg("flowagg: packet matches no connection within the grace period")
			continue
		}

		a.data[uid] = append(a.data[uid], p.Strip())
	}
}

// Flows returns the final UID -> packets mapping, each bucket sorted by
// ascending timestamp.
func (a *Aggregator) Flows() map[string][]netdecode.StrippedPacket {
	for uid := range a.data {
		bucket := a.data[uid]
		sort.SliceStable(bucket, func(i, j int) bool { return bucket[i].TimestampNS < bucket[j].TimestampNS })
		a.data[uid] = bucket
	}
	return a.data
}

// FlowUIDs returns the set of UIDs with at least one associated packet, in
// deterministic sorted order (useful for callers that need to iterate
// results reproducibly, e.g. tests and the dataset driver).
func (a *Aggregator) FlowUIDs() []string {
	uids := maps.Keys(a.data)
	slices.Sort(uids)
	return uids
}

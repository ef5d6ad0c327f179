// Package features derives per-packet and per-flow ML feature vectors from
// flow-aggregated packets.
package features

import (
	"github.com/starfys/pcapfeatures/netdecode"
	"github.com/starfys/pcapfeatures/sets"
)

// PacketDirection classifies a packet relative to an inferred client/server
// relationship.
type PacketDirection int

const (
	Unknown PacketDirection = iota
	FromClient
	ToClient
)

// Ephemeral port ranges used by the Ephemeral direction-inference
// strategy.
const (
	MinIANAEphemeralPort  uint16 = 49152
	MaxIANAEphemeralPort  uint16 = 65535
	MinLinuxEphemeralPort uint16 = 32768
	MaxLinuxEphemeralPort uint16 = 61000
)

// Strategy is one direction-inference heuristic. Methods return ok=false
// when the strategy cannot decide.
type Strategy interface {
	infer(srcPort, dstPort uint16) (dir PacketDirection, ok bool)
	isEphemeral() bool
}

// ServerPort infers direction from a single known server port.
type ServerPort uint16

func (s ServerPort) infer(srcPort, dstPort uint16) (PacketDirection, bool) {
	switch uint16(s) {
	case dstPort:
		return FromClient, true
	case srcPort:
		return ToClient, true
	default:
		return Unknown, false
	}
}
func (s ServerPort) isEphemeral() bool { return false }

// ServerPorts infers direction from a set of known server ports.
type ServerPorts sets.Set[uint16]

func (s ServerPorts) infer(srcPort, dstPort uint16) (PacketDirection, bool) {
	set := sets.Set[uint16](s)
	if set.Contains(dstPort) {
		return FromClient, true
	}
	if set.Contains(srcPort) {
		return ToClient, true
	}
	return Unknown, false
}
func (s ServerPorts) isEphemeral() bool { return false }

// Ephemeral infers direction by assuming whichever port lies in a known
// ephemeral range belongs to the client. Checked against the IANA dynamic
// range first, then the common Linux ephemeral range.
type Ephemeral struct{}

func (Ephemeral) infer(srcPort, dstPort uint16) (PacketDirection, bool) {
	if inRange(srcPort, MinIANAEphemeralPort, MaxIANAEphemeralPort) {
		return FromClient, true
	}
	if inRange(dstPort, MinIANAEphemeralPort, MaxIANAEphemeralPort) {
		return ToClient, true
	}
	if inRange(srcPort, MinLinuxEphemeralPort, MaxLinuxEphemeralPort) {
		return FromClient, true
	}
	if inRange(dstPort, MinLinuxEphemeralPort, MaxLinuxEphemeralPort) {
		return ToClient, true
	}
	return Unknown, false
}
func (Ephemeral) isEphemeral() bool { return true }

func inRange(port, lo, hi uint16) bool {
	return port >= lo && port <= hi
}

// InferDirection tries each strategy in order, returning the first
// decision. An Ephemeral strategy's result is memoized across repeated
// occurrences in the list.
func InferDirection(srcPort, dstPort uint16, strategies []Strategy) PacketDirection {
	var ephemeralResult *PacketDirection
	for _, s := range strategies {
		if s.isEphemeral() {
			if ephemeralResult != nil {
				// Memoized: reuse the first Ephemeral evaluation's result
				// rather than recomputing. A decisive result short-circuits;
				// an Unknown result falls through to later strategies, same
				// as the first occurrence would have.
				if *ephemeralResult != Unknown {
					return *ephemeralResult
				}
				continue
			}
			dir, ok := s.infer(srcPort, dstPort)
			result := Unknown
			if ok {
				result = dir
			}
			ephemeralResult = &result
			if ok {
				return dir
			}
			continue
		}
		if dir, ok := s.infer(srcPort, dstPort); ok {
			return dir
		}
	}
	return Unknown
}

// PacketFeatures is one packet's derived per-packet feature set.
type PacketFeatures struct {
	PayloadLength      int
	InterarrivalTimeNS uint64
	Direction          PacketDirection
}

// FromStrippedPackets walks packets (assumed already sorted by timestamp)
// computing per-direction inter-arrival time.
func FromStrippedPackets(packets []netdecode.StrippedPacket, strategies []Strategy) []PacketFeatures {
	var lastFromClient, lastToClient *uint64
	out := make([]PacketFeatures, 0, len(packets))

	for _, p := range packets {
		dir := InferDirection(p.SrcPort, p.DstPort, strategies)

		var iat uint64
		switch dir {
		case FromClient:
			if lastFromClient != nil {
				iat = p.TimestampNS - *lastFromClient
			}
			ts := p.TimestampNS
			lastFromClient = &ts
		case ToClient:
			if lastToClient != nil {
				iat = p.TimestampNS - *lastToClient
			}
			ts := p.TimestampNS
			lastToClient = &ts
		default:
			iat = 0
		}

		out = append(out, PacketFeatures{
			PayloadLength:      p.PayloadLength,
			InterarrivalTimeNS: iat,
			Direction:          dir,
		})
	}

	return out
}

// FlowFeatures holds three integer histograms over one flow's packets.
type FlowFeatures struct {
	PayloadLengthFreqBins          []uint64
	InterarrivalFreqFromClientBins []uint64
	InterarrivalFreqToClientBins   []uint64
}

// Empty returns an all-zero FlowFeatures with the given bin counts, the
// identity element for Add.
func Empty(numPayloadBins, numFromClientBins, numToClientBins int) FlowFeatures {
	return FlowFeatures{
		PayloadLengthFreqBins:          make([]uint64, numPayloadBins),
		InterarrivalFreqFromClientBins: make([]uint64, numFromClientBins),
		InterarrivalFreqToClientBins:   make([]uint64, numToClientBins),
	}
}

// Generate histograms a flow's packet features against the given
// ascending bin-edge vectors. A value that exceeds every edge falls into
// no bin (callers should include a sentinel edge large enough to catch
// everything they care about).
func Generate(packetFeatures []PacketFeatures, payloadBins []int, iatFromClientBins, iatToClientBins []uint64) FlowFeatures {
	ff := Empty(len(payloadBins), len(iatFromClientBins), len(iatToClientBins))

	for _, pf := range packetFeatures {
		for idx, edge := range payloadBins {
			if pf.PayloadLength < edge {
				ff.PayloadLengthFreqBins[idx]++
				break
			}
		}
		if pf.Direction == FromClient {
			for idx, edge := range iatFromClientBins {
				if pf.InterarrivalTimeNS < edge {
					ff.InterarrivalFreqFromClientBins[idx]++
					break
				}
			}
		}
		if pf.Direction == ToClient {
			for idx, edge := range iatToClientBins {
				if pf.InterarrivalTimeNS < edge {
					ff.InterarrivalFreqToClientBins[idx]++
					break
				}
			}
		}
	}

	return ff
}

// Add elementwise-sums two FlowFeatures. Both must have identical bin
// counts.
func (ff FlowFeatures) Add(other FlowFeatures) FlowFeatures {
	out := FlowFeatures{
		PayloadLengthFreqBins:          make([]uint64, len(ff.PayloadLengthFreqBins)),
		InterarrivalFreqFromClientBins: make([]uint64, len(ff.InterarrivalFreqFromClientBins)),
		InterarrivalFreqToClientBins:   make([]uint64, len(ff.InterarrivalFreqToClientBins)),
	}
	for i := range ff.PayloadLengthFreqBins {
		out.PayloadLengthFreqBins[i] = ff.PayloadLengthFreqBins[i] + other.PayloadLengthFreqBins[i]
	}
	for i := range ff.InterarrivalFreqFromClientBins {
		out.InterarrivalFreqFromClientBins[i] = ff.InterarrivalFreqFromClientBins[i] + other.InterarrivalFreqFromClientBins[i]
	}
	for i := range ff.InterarrivalFreqToClientBins {
		out.InterarrivalFreqToClientBins[i] = ff.InterarrivalFreqToClientBins[i] + other.InterarrivalFreqToClientBins[i]
	}
	return out
}

// NormalizedFlowFeatures is FlowFeatures with each histogram divided by its
// own sum. Serialized with the compact field names the dataset output
// format uses.
type NormalizedFlowFeatures struct {
	PayloadLengthFreqBins          []float64 `json:"pl"`
	InterarrivalFreqFromClientBins []float64 `json:"iaf"`
	InterarrivalFreqToClientBins   []float64 `json:"iat"`
}

// Normalize divides each histogram by its own sum; an all-zero histogram
// stays all zero rather than producing NaN.
func (ff FlowFeatures) Normalize() NormalizedFlowFeatures {
	return NormalizedFlowFeatures{
		PayloadLengthFreqBins:          normalizeBins(ff.PayloadLengthFreqBins),
		InterarrivalFreqFromClientBins: normalizeBins(ff.InterarrivalFreqFromClientBins),
		InterarrivalFreqToClientBins:   normalizeBins(ff.InterarrivalFreqToClientBins),
	}
}

func normalizeBins(bins []uint64) []float64 {
	var sum uint64
	for _, c := range bins {
		sum += c
	}
	divisor := float64(sum)
	if sum == 0 {
		divisor = 1.0
	}

	out := make([]float64, len(bins))
	for i, c := range bins {
		out[i] = float64(c) / divisor
	}
	return out
}

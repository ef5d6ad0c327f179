// Package netdecode decodes individual pcap records into normalized packet
// records, and computes Shannon entropy over application-layer payloads.
package netdecode

import (
	"math"
	"net"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/pkg/errors"
)

// Sentinel errors, one per decode stage that can fail a record. A failure
// at any stage abandons that record only; callers should skip and
// continue.
var (
	ErrInvalidEthernetHeader = errors.New("netdecode: invalid ethernet header")
	ErrInvalidIPv4Header     = errors.New("netdecode: invalid ipv4 header")
	ErrInvalidIPv6Header     = errors.New("netdecode: invalid ipv6 header")
	ErrInvalidInternetLayer  = errors.New("netdecode: unsupported ethertype")
	ErrInvalidTCPHeader      = errors.New("netdecode: invalid tcp header")
	ErrInvalidUDPHeader      = errors.New("netdecode: invalid udp header")
	ErrInvalidTransportLayer = errors.New("netdecode: unsupported transport protocol")
)

// Packet is a fully addressed, decoded packet.
type Packet struct {
	SrcIP              net.IP
	DstIP              net.IP
	TransportProtocol  uint8
	SrcPort            uint16
	DstPort            uint16
	PayloadLength      int
	Entropy            float64
	TimestampNS        uint64
}

// StrippedPacket is a Packet with its addressing fields removed, retained
// once flow association has already keyed it to a UID; keeping the
// addresses past that point only wastes bucket memory.
type StrippedPacket struct {
	TransportProtocol uint8
	PayloadLength     int
	Entropy           float64
	TimestampNS       uint64
	SrcPort           uint16
	DstPort           uint16
}

// Strip drops the addressing fields from p.
func (p Packet) Strip() StrippedPacket {
	return StrippedPacket{
		TransportProtocol: p.TransportProtocol,
		PayloadLength:     p.PayloadLength,
		Entropy:           p.Entropy,
		TimestampNS:       p.TimestampNS,
		SrcPort:           p.SrcPort,
		DstPort:           p.DstPort,
	}
}

// FromRecordBytes decodes one pcap record's raw bytes (an Ethernet frame)
// into a Packet, tagging it with the record's already-known timestamp.
// Ethernet -> IPv4/IPv6 -> TCP/UDP; anything else fails the record.
func FromRecordBytes(data []byte, timestampNS uint64) (Packet, error) {
	var eth layers.Ethernet
	if err := eth.DecodeFromBytes(data, gopacket.NilDecodeFeedback); err != nil {
		return Packet{}, errors.Wrap(ErrInvalidEthernetHeader, err.Error())
	}

	var srcIP, dstIP net.IP
	var transProto uint8
	var payload []byte

	switch eth.EthernetType {
	case layers.EthernetTypeIPv4:
		var ip4 layers.IPv4
		if err := ip4.DecodeFromBytes(eth.Payload, gopacket.NilDecodeFeedback); err != nil {
			return Packet{}, errors.Wrap(ErrInvalidIPv4Header, err.Error())
		}
		srcIP, dstIP = ip4.SrcIP, ip4.DstIP
		transProto = uint8(ip4.Protocol)
		payload = ip4.Payload
	case layers.EthernetTypeIPv6:
		var ip6 layers.IPv6
		if err := ip6.DecodeFromBytes(eth.Payload, gopacket.NilDecodeFeedback); err != nil {
			return Packet{}, errors.Wrap(ErrInvalidIPv6Header, err.Error())
		}
		srcIP, dstIP = ip6.SrcIP, ip6.DstIP
		transProto = uint8(ip6.NextHeader)
		payload = ip6.Payload
	default:
		return Packet{}, ErrInvalidInternetLayer
	}

	var srcPort, dstPort uint16
	var appPayload []byte

	switch layers.IPProtocol(transProto) {
	case layers.IPProtocolTCP:
		var tcp layers.TCP
		if err := tcp.DecodeFromBytes(payload, gopacket.NilDecodeFeedback); err != nil {
			return Packet{}, errors.Wrap(ErrInvalidTCPHeader, err.Error())
		}
		srcPort, dstPort = uint16(tcp.SrcPort), uint16(tcp.DstPort)
		appPayload = tcp.Payload
	case layers.IPProtocolUDP:
		var udp layers.UDP
		if err := udp.DecodeFromBytes(payload, gopacket.NilDecodeFeedback); err != nil {
			return Packet{}, errors.Wrap(ErrInvalidUDPHeader, err.Error())
		}
		srcPort, dstPort = uint16(udp.SrcPort), uint16(udp.DstPort)
		appPayload = udp.Payload
	default:
		return Packet{}, ErrInvalidTransportLayer
	}

	return Packet{
		SrcIP:             srcIP,
		DstIP:             dstIP,
		TransportProtocol: transProto,
		SrcPort:           srcPort,
		DstPort:           dstPort,
		PayloadLength:     len(appPayload),
		Entropy:           ShannonEntropy(appPayload),
		TimestampNS:       timestampNS,
	}, nil
}

// ShannonEntropy returns the Shannon entropy, in bits/byte, of payload's
// byte-value distribution. Empty and constant-value payloads return 0.
func ShannonEntropy(payload []byte) float64 {
	if len(payload) == 0 {
		return 0
	}

	var freq [256]int
	for _, b := range payload {
		freq[b]++
	}

	total := float64(len(payload))
	var sum float64
	for _, f := range freq {
		if f == 0 {
			continue
		}
		p := float64(f) / total
		sum += p * math.Log2(p)
	}

	return math.Abs(sum)
}

package netdecode

import (
	"math"
	"net"
	"testing"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShannonEntropyEmpty(t *testing.T) {
	assert.Equal(t, 0.0, ShannonEntropy(nil))
	assert.Equal(t, 0.0, ShannonEntropy([]byte{}))
}

func TestShannonEntropySingleByte(t *testing.T) {
	assert.Equal(t, 0.0, ShannonEntropy([]byte{7}))
	assert.Equal(t, 0.0, ShannonEntropy([]byte{7, 7, 7, 7, 7}))
}

func TestShannonEntropyUniformPowerOfTwo(t *testing.T) {
	for k := 1; k <= 7; k++ {
		n := 1 << uint(k)
		payload := make([]byte, n)
		for i := 0; i < n; i++ {
			payload[i] = byte(i)
		}
		got := ShannonEntropy(payload)
		assert.InDelta(t, float64(k), got, 1e-9)
	}
}

func TestShannonEntropyBounded(t *testing.T) {
	payload := []byte("the quick brown fox jumps over the lazy dog")
	got := ShannonEntropy(payload)
	assert.GreaterOrEqual(t, got, 0.0)
	assert.LessOrEqual(t, got, 8.0)
	assert.False(t, math.IsNaN(got))
}

func buildEthernetIPv4TCP(t *testing.T, payload []byte) []byte {
	t.Helper()

	eth := layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0, 1, 2, 3, 4, 5},
		DstMAC:       net.HardwareAddr{6, 7, 8, 9, 10, 11},
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip4 := layers.IPv4{
		Version:  4,
		IHL:      5,
		TTL:      64,
		Protocol: layers.IPProtocolTCP,
		SrcIP:    net.IPv4(10, 0, 0, 1),
		DstIP:    net.IPv4(10, 0, 0, 2),
	}
	tcp := layers.TCP{
		SrcPort: 51000,
		DstPort: 443,
		SYN:     true,
		Window:  65535,
	}
	require.NoError(t, tcp.SetNetworkLayerForChecksum(&ip4))

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{ComputeChecksums: true, FixLengths: true}
	require.NoError(t, gopacket.SerializeLayers(buf, opts, &eth, &ip4, &tcp, gopacket.Payload(payload)))
	return buf.Bytes()
}

func TestFromRecordBytesTCP(t *testing.T) {
	payload := []byte("hello world")
	raw := buildEthernetIPv4TCP(t, payload)

	pkt, err := FromRecordBytes(raw, 12345)
	require.NoError(t, err)

	assert.Equal(t, uint16(51000), pkt.SrcPort)
	assert.Equal(t, uint16(443), pkt.DstPort)
	assert.Equal(t, len(payload), pkt.PayloadLength)
	assert.Equal(t, uint64(12345), pkt.TimestampNS)
	assert.True(t, pkt.SrcIP.Equal(net.IPv4(10, 0, 0, 1)))
	assert.True(t, pkt.DstIP.Equal(net.IPv4(10, 0, 0, 2)))
}

func TestFromRecordBytesInvalidEthertype(t *testing.T) {
	eth := layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0, 1, 2, 3, 4, 5},
		DstMAC:       net.HardwareAddr{6, 7, 8, 9, 10, 11},
		EthernetType: layers.EthernetTypeARP,
	}
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true}
	require.NoError(t, gopacket.SerializeLayers(buf, opts, &eth, gopacket.Payload([]byte{1, 2, 3})))

	_, err := FromRecordBytes(buf.Bytes(), 0)
	assert.ErrorIs(t, err, ErrInvalidInternetLayer)
}

func TestStrip(t *testing.T) {
	p := Packet{
		SrcIP: net.IPv4(1, 2, 3, 4), DstIP: net.IPv4(5, 6, 7, 8),
		TransportProtocol: 6, SrcPort: 1, DstPort: 2,
		PayloadLength: 10, Entropy: 3.5, TimestampNS: 99,
	}
	sp := p.Strip()
	assert.Equal(t, p.TransportProtocol, sp.TransportProtocol)
	assert.Equal(t, p.PayloadLength, sp.PayloadLength)
	assert.Equal(t, p.Entropy, sp.Entropy)
	assert.Equal(t, p.TimestampNS, sp.TimestampNS)
	assert.Equal(t, p.SrcPort, sp.SrcPort)
	assert.Equal(t, p.DstPort, sp.DstPort)
}

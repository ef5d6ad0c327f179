package pcap

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type wireRecord struct {
	sec, frac, inclLen, origLen uint32
	data                        []byte
}

func buildFile(order binary.ByteOrder, magic uint32, recs []wireRecord) []byte {
	buf := &bytes.Buffer{}
	_ = binary.Write(buf, binary.LittleEndian, magic)
	_ = binary.Write(buf, order, uint16(2))
	_ = binary.Write(buf, order, uint16(4))
	_ = binary.Write(buf, order, int32(0))
	_ = binary.Write(buf, order, uint32(0))
	_ = binary.Write(buf, order, uint32(262144))
	_ = binary.Write(buf, order, uint32(LinkEthernet))
	for _, rec := range recs {
		_ = binary.Write(buf, order, rec.sec)
		_ = binary.Write(buf, order, rec.frac)
		_ = binary.Write(buf, order, rec.inclLen)
		_ = binary.Write(buf, order, rec.origLen)
		buf.Write(rec.data)
	}
	return buf.Bytes()
}

// TestReaderFourWayMatrix rebuilds the same three records under all four
// magic numbers (micro/nano resolution x native/swapped byte order) and
// checks that every variant reproduces identical nanosecond timestamps.
func TestReaderFourWayMatrix(t *testing.T) {
	type variant struct {
		name     string
		order    binary.ByteOrder
		magic    uint32
		fracMult uint64
	}
	variants := []variant{
		{"micro-native", binary.LittleEndian, magicMicroNative, 1000},
		{"micro-swapped", binary.BigEndian, magicMicroSwap, 1000},
		{"nano-native", binary.LittleEndian, magicNanoNative, 1},
		{"nano-swapped", binary.BigEndian, magicNanoSwap, 1},
	}

	wire := []wireRecord{
		{sec: 1000, frac: 500, inclLen: 3, origLen: 3, data: []byte{1, 2, 3}},
		{sec: 1000, frac: 750, inclLen: 2, origLen: 5, data: []byte{4, 5}},
		{sec: 1001, frac: 0, inclLen: 0, origLen: 0, data: nil},
	}

	for _, v := range variants {
		t.Run(v.name, func(t *testing.T) {
			raw := buildFile(v.order, v.magic, wire)
			r, err := NewReader(bytes.NewReader(raw))
			require.NoError(t, err)
			assert.Equal(t, uint32(LinkEthernet), r.Header.Network)

			var got []Record
			for {
				rec, err := r.Next()
				if err == io.EOF {
					break
				}
				require.NoError(t, err)
				got = append(got, rec)
			}
			require.Len(t, got, 3)

			for i, w := range wire {
				wantTS := uint64(w.sec)*1_000_000_000 + uint64(w.frac)*v.fracMult
				assert.Equal(t, wantTS, got[i].TimestampNS)
				assert.Equal(t, w.data, got[i].Data)
				assert.Equal(t, w.origLen, got[i].OriginalLength)
			}
		})
	}
}

func TestReaderInvalidMagic(t *testing.T) {
	raw := []byte{0x00, 0x00, 0x00, 0x00}
	_, err := NewReader(bytes.NewReader(raw))
	assert.ErrorIs(t, err, ErrInvalidFormat)
}

func TestReaderTruncatedHeader(t *testing.T) {
	raw := []byte{0xd4, 0xc3, 0xb2, 0xa1, 0x02, 0x00}
	_, err := NewReader(bytes.NewReader(raw))
	require.Error(t, err)
}

func TestReaderTruncatedRecord(t *testing.T) {
	raw := buildFile(binary.LittleEndian, magicMicroNative, []wireRecord{
		{sec: 1, frac: 1, inclLen: 10, origLen: 10, data: []byte{1, 2, 3}},
	})
	// Drop the record's payload and the tail of its header.
	raw = raw[:len(raw)-5]
	r, err := NewReader(bytes.NewReader(raw))
	require.NoError(t, err)
	_, err = r.Next()
	assert.Error(t, err)
}

package pcap

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/pkg/errors"
)

// Minimal pcap-ng support: only Enhanced Packet Blocks are
// surfaced as Records; every other block type (Section Header, Interface
// Description, Name Resolution, ...) is read and discarded. Interface
// Description Blocks are tracked only far enough to resolve each
// interface's timestamp resolution (the `if_tsresol` option), since
// pcap-ng allows each interface its own resolution.
const (
	ngBlockSectionHeader    uint32 = 0x0a0d0d0a
	ngBlockInterfaceDesc    uint32 = 0x00000001
	ngBlockEnhancedPacket   uint32 = 0x00000006
	ngByteOrderMagic        uint32 = 0x1a2b3c4d
	ngOptionEndOfOpt        uint16 = 0
	ngOptionIfTsresol       uint16 = 9
	ngDefaultTsresolDivisor        = 1_000_000 // microseconds, pcap-ng default
)

// NGReader decodes an enhanced-packet subset of the pcap-ng format. It is
// single-pass and not safe for concurrent use.
type NGReader struct {
	src   io.Reader
	order binary.ByteOrder
	// tsDivisor maps interface ID to the divisor that converts its raw
	// 64-bit timestamp counter into nanoseconds: ns = raw * (1e9 / divisor).
	tsDivisor map[uint32]uint64
	done      bool
}

// NewNGReader reads the leading Section Header Block to establish byte
// order, then returns a reader ready to yield Enhanced Packet Block
// Records via Next.
func NewNGReader(src io.Reader) (*NGReader, error) {
	r := &NGReader{src: src, tsDivisor: make(map[uint32]uint64)}

	blockType, body, order, err := r.readFirstBlock(src)
	if err != nil {
		return nil, err
	}
	if blockType != ngBlockSectionHeader {
		return nil, errors.Wrap(ErrInvalidFormat, "pcap-ng: missing section header block")
	}
	r.order = order
	_ = body

	return r, nil
}

// readFirstBlock reads the very first block without knowing the byte order
// yet, deriving it from the byte-order-magic field that a Section Header
// Block always carries at a fixed offset.
func (r *NGReader) readFirstBlock(src io.Reader) (uint32, []byte, binary.ByteOrder, error) {
	var hdr [8]byte
	if _, err := io.ReadFull(src, hdr[:]); err != nil {
		return 0, nil, nil, truncatedOrWrap(err)
	}

	blockType := binary.LittleEndian.Uint32(hdr[0:4])
	if blockType != ngBlockSectionHeader {
		return 0, nil, nil, errors.Wrap(ErrInvalidFormat, "pcap-ng: missing section header block")
	}
	totalLen := binary.LittleEndian.Uint32(hdr[4:8])
	if totalLen < 12 {
		return 0, nil, nil, ErrTruncated
	}

	// 8 bytes (block type + total length) already consumed; the rest of
	// the block, including the trailing total-length repeat, is totalLen-8.
	body := make([]byte, totalLen-8)
	if _, err := io.ReadFull(src, body); err != nil {
		return 0, nil, nil, truncatedOrWrap(err)
	}

	magic := binary.LittleEndian.Uint32(body[0:4])
	var order binary.ByteOrder = binary.LittleEndian
	if magic != ngByteOrderMagic {
		order = binary.BigEndian
		if order.Uint32(body[0:4]) != ngByteOrderMagic {
			return 0, nil, nil, errors.Wrap(ErrInvalidFormat, "pcap-ng: bad byte-order magic")
		}
	}

	return blockType, body, order, nil
}

// Next returns the next Enhanced Packet Block as a Record, skipping any
// other block types. Returns io.EOF when the stream is exhausted.
func (r *NGReader) Next() (Record, error) {
	if r.done {
		return Record{}, io.EOF
	}

	for {
		var hdr [8]byte
		if _, err := io.ReadFull(r.src, hdr[:]); err != nil {
			r.done = true
			if err == io.EOF {
				return Record{}, io.EOF
			}
			return Record{}, truncatedOrWrap(err)
		}
		blockType := r.order.Uint32(hdr[0:4])
		totalLen := r.order.Uint32(hdr[4:8])
		if totalLen < 12 {
			r.done = true
			return Record{}, ErrTruncated
		}

		body := make([]byte, totalLen-8)
		if _, err := io.ReadFull(r.src, body); err != nil {
			r.done = true
			return Record{}, truncatedOrWrap(err)
		}

		switch blockType {
		case ngBlockInterfaceDesc:
			r.trackInterface(body)
		case ngBlockEnhancedPacket:
			rec, ok := r.decodeEnhancedPacket(body)
			if ok {
				return rec, nil
			}
			// Malformed enhanced packet block: skip and keep scanning,
			// same as any other block this minimal decoder cannot
			// interpret.
		default:
			// Section header, name resolution, etc: not surfaced.
		}
	}
}

// trackInterface records the timestamp divisor declared by an interface's
// if_tsresol option, defaulting to microsecond resolution when absent.
func (r *NGReader) trackInterface(body []byte) {
	ifaceID := uint32(len(r.tsDivisor))
	divisor := uint64(ngDefaultTsresolDivisor)

	if len(body) >= 8 {
		opts := body[8:]
		for len(opts) >= 4 {
			optCode := r.order.Uint16(opts[0:2])
			optLen := r.order.Uint16(opts[2:4])
			if optCode == ngOptionEndOfOpt {
				break
			}
			padded := int(optLen)
			if padded%4 != 0 {
				padded += 4 - padded%4
			}
			if len(opts) < 4+padded {
				break
			}
			if optCode == ngOptionIfTsresol && optLen >= 1 {
				divisor = tsresolDivisor(opts[4])
			}
			opts = opts[4+padded:]
		}
	}

	r.tsDivisor[ifaceID] = divisor
}

// tsresolDivisor interprets an if_tsresol byte: if the high bit is set, the
// remaining bits are a power of two; otherwise they are a power of ten.
func tsresolDivisor(b byte) uint64 {
	exp := uint(b &^ 0x80)
	if b&0x80 != 0 {
		return uint64(math.Pow(2, float64(exp)))
	}
	return uint64(math.Pow(10, float64(exp)))
}

func (r *NGReader) decodeEnhancedPacket(body []byte) (Record, bool) {
	if len(body) < 20 {
		return Record{}, false
	}
	ifaceID := r.order.Uint32(body[0:4])
	tsHigh := r.order.Uint32(body[4:8])
	tsLow := r.order.Uint32(body[8:12])
	capLen := r.order.Uint32(body[12:16])
	origLen := r.order.Uint32(body[16:20])

	if uint32(len(body)) < 20+capLen {
		return Record{}, false
	}
	data := make([]byte, capLen)
	copy(data, body[20:20+capLen])

	divisor, ok := r.tsDivisor[ifaceID]
	if !ok {
		divisor = ngDefaultTsresolDivisor
	}
	raw := uint64(tsHigh)<<32 | uint64(tsLow)
	tsNS := raw * (1_000_000_000 / divisor)

	return Record{TimestampNS: tsNS, Data: data, OriginalLength: origLen}, true
}

// Package pcap implements a reader for the classic libpcap capture file
// format, detecting byte order and timestamp resolution from the file's
// magic number rather than delegating to libpcap itself.
package pcap

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// Sentinel errors returned by Reader. Wrap with errors.Wrap for context;
// callers should match with errors.Is.
var (
	// ErrInvalidFormat is returned when the first four bytes of the stream
	// do not match any of the known pcap magic numbers.
	ErrInvalidFormat = errors.New("pcap: invalid magic number")
	// ErrTruncated is returned when a header or record is cut short.
	ErrTruncated = errors.New("pcap: truncated capture file")
)

// The two "native" magic values are read with the local
// machine's byte order assumption of little-endian, which is what every
// actual pcap producer and consumer on record uses; "swapped" files are
// simply the same bytes in the other order.
const (
	magicMicroNative uint32 = 0xa1b2c3d4
	magicMicroSwap   uint32 = 0xd4c3b2a1
	magicNanoNative  uint32 = 0xa1b23c4d
	magicNanoSwap    uint32 = 0x4d3cb2a1
)

// LinkEthernet is the only link type this package is required to support.
const LinkEthernet = 1

// FileHeader is the classic pcap global header.
type FileHeader struct {
	VersionMajor uint16
	VersionMinor uint16
	ThisZone     int32
	SigFigs      uint32
	SnapLen      uint32
	Network      uint32
}

// Record is one captured packet plus its record metadata. Data is the raw
// captured bytes (possibly truncated relative to OriginalLength if the
// capture's snaplen was smaller than the packet).
type Record struct {
	TimestampNS    uint64
	Data           []byte
	OriginalLength uint32
}

// Reader decodes a classic libpcap stream into a lazy sequence of Records.
// It is single-pass and not safe for concurrent use.
type Reader struct {
	src     io.Reader
	order   binary.ByteOrder
	nanoRes bool
	Header  FileHeader
	done    bool
}

// NewReader reads and validates the global file header from src, detecting
// byte order and timestamp resolution from the magic number. It returns
// ErrInvalidFormat if the magic does not match a known sentinel, or
// ErrTruncated if the stream ends before the header is fully read.
func NewReader(src io.Reader) (*Reader, error) {
	var magicBuf [4]byte
	if _, err := io.ReadFull(src, magicBuf[:]); err != nil {
		return nil, truncatedOrWrap(err)
	}

	var order binary.ByteOrder
	var nanoRes bool
	switch binary.LittleEndian.Uint32(magicBuf[:]) {
	case magicMicroNative:
		order, nanoRes = binary.LittleEndian, false
	case magicNanoNative:
		order, nanoRes = binary.LittleEndian, true
	case magicMicroSwap:
		order, nanoRes = binary.BigEndian, false
	case magicNanoSwap:
		order, nanoRes = binary.BigEndian, true
	default:
		return nil, ErrInvalidFormat
	}

	r := &Reader{src: src, order: order, nanoRes: nanoRes}

	var hdrBuf [20]byte
	if _, err := io.ReadFull(src, hdrBuf[:]); err != nil {
		return nil, truncatedOrWrap(err)
	}
	r.Header = FileHeader{
		VersionMajor: order.Uint16(hdrBuf[0:2]),
		VersionMinor: order.Uint16(hdrBuf[2:4]),
		ThisZone:     int32(order.Uint32(hdrBuf[4:8])),
		SigFigs:      order.Uint32(hdrBuf[8:12]),
		SnapLen:      order.Uint32(hdrBuf[12:16]),
		Network:      order.Uint32(hdrBuf[16:20]),
	}

	return r, nil
}

// Next returns the next Record in the stream. It returns io.EOF (unwrapped,
// so callers may compare with ==) once the stream is exhausted cleanly.
// A record header cut short by end-of-file is reported as ErrTruncated,
// since a pcap writer never ends mid-record.
func (r *Reader) Next() (Record, error) {
	if r.done {
		return Record{}, io.EOF
	}

	var recHdr [16]byte
	if _, err := io.ReadFull(r.src, recHdr[:]); err != nil {
		r.done = true
		if err == io.EOF {
			return Record{}, io.EOF
		}
		return Record{}, truncatedOrWrap(err)
	}

	tsSec := r.order.Uint32(recHdr[0:4])
	tsFrac := r.order.Uint32(recHdr[4:8])
	inclLen := r.order.Uint32(recHdr[8:12])
	origLen := r.order.Uint32(recHdr[12:16])

	data := make([]byte, inclLen)
	if _, err := io.ReadFull(r.src, data); err != nil {
		r.done = true
		return Record{}, truncatedOrWrap(err)
	}

	mult := uint64(1000)
	if r.nanoRes {
		mult = 1
	}
	ts := uint64(tsSec)*1_000_000_000 + uint64(tsFrac)*mult

	return Record{TimestampNS: ts, Data: data, OriginalLength: origLen}, nil
}

func truncatedOrWrap(err error) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return errors.Wrap(ErrTruncated, err.Error())
	}
	return err
}

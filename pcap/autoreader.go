package pcap

import (
	"bufio"
	"encoding/binary"
	"io"
)

// RecordReader is the common surface of Reader and NGReader: a lazy,
// single-pass sequence of Records terminated by io.EOF.
type RecordReader interface {
	Next() (Record, error)
}

// Open peeks the stream's leading magic number and returns whichever of
// Reader or NGReader understands it, so callers need not know the
// on-disk format in advance. The returned RecordReader reads
// from a buffered view of src that still contains the peeked bytes, so src
// itself must not be consumed elsewhere afterward.
func Open(src io.Reader) (RecordReader, error) {
	br := bufio.NewReaderSize(src, 32)
	peek, err := br.Peek(4)
	if err != nil {
		return nil, truncatedOrWrap(err)
	}

	if binary.LittleEndian.Uint32(peek) == ngBlockSectionHeader {
		return NewNGReader(br)
	}
	return NewReader(br)
}

package protoio

import (
	"hash/crc32"
	"io"
)

// Writer appends length-prefixed, checksummed entries to a stream. Entries
// are opaque byte slices, normally protobuf wire encoded records.
type Writer struct {
	out       io.Writer
	headerBuf []byte
	count     int
}

func NewWriter(out io.Writer) *Writer {
	return &Writer{
		out:       out,
		headerBuf: make([]byte, headerSize),
	}
}

// Append writes a single entry and returns the number of bytes written.
func (w *Writer) Append(entry []byte) (int, error) {
	if len(entry) > MaxEntrySize {
		return 0, errEntryTooLarge
	}

	if err := encodeHeader(&entryHeader{
		dataSize: uint32(len(entry)),
		crc:      crc32.ChecksumIEEE(entry),
	}, w.headerBuf); err != nil {
		return 0, err
	}

	n1, err := w.out.Write(w.headerBuf)
	if err != nil {
		return 0, err
	}

	n2, err := w.out.Write(entry)
	if err != nil {
		return 0, err
	}

	w.count++

	return n1 + n2, nil
}

// Count returns the number of entries written so far.
func (w *Writer) Count() int {
	return w.count
}

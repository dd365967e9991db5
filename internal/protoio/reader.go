package protoio

import (
	"errors"
	"fmt"
	"hash/crc32"
	"io"
)

// Reader reads entries written by Writer one by one.
type Reader struct {
	in        io.Reader
	headerBuf [headerSize]byte
}

func NewReader(in io.Reader) *Reader {
	return &Reader{in: in}
}

// ReadNext returns the next entry. io.EOF is returned when the stream ends
// on an entry boundary, io.ErrUnexpectedEOF when it ends in the middle.
func (r *Reader) ReadNext() ([]byte, error) {
	var h entryHeader

	if _, err := io.ReadFull(r.in, r.headerBuf[:]); err != nil {
		return nil, err
	}

	if err := decodeHeader(&h, r.headerBuf[:]); err != nil {
		return nil, fmt.Errorf("failed to decode header: %w", err)
	}

	buf := make([]byte, h.dataSize)

	if _, err := io.ReadFull(r.in, buf); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.ErrUnexpectedEOF
		}

		return nil, err
	}

	if crc32.ChecksumIEEE(buf) != h.crc {
		return nil, errChecksumMismatch
	}

	return buf, nil
}

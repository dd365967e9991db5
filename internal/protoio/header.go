package protoio

import (
	"encoding/binary"
	"errors"
)

const (
	entrySeparator uint16 = 0xAFAF
	headerSize     int    = 10

	// MaxEntrySize limits the size of a single entry. Entries come from the
	// network, so the reader must not trust the size in the header blindly.
	MaxEntrySize = 1 << 20
)

var (
	errWrongSeparator    = errors.New("separator mismatch")
	errInvalidHeaderSize = errors.New("invalid header size")
	errChecksumMismatch  = errors.New("checksum mismatch")
	errEntryTooLarge     = errors.New("entry too large")
)

type entryHeader struct {
	dataSize uint32
	crc      uint32
}

func encodeHeader(h *entryHeader, b []byte) error {
	if len(b) < headerSize {
		return errInvalidHeaderSize
	}

	binary.LittleEndian.PutUint16(b[0:2], entrySeparator)
	binary.LittleEndian.PutUint32(b[2:6], h.dataSize)
	binary.LittleEndian.PutUint32(b[6:10], h.crc)

	return nil
}

func decodeHeader(h *entryHeader, b []byte) error {
	if len(b) < headerSize {
		return errInvalidHeaderSize
	}

	if binary.LittleEndian.Uint16(b[0:2]) != entrySeparator {
		return errWrongSeparator
	}

	h.dataSize = binary.LittleEndian.Uint32(b[2:6])
	h.crc = binary.LittleEndian.Uint32(b[6:10])

	if h.dataSize > MaxEntrySize {
		return errEntryTooLarge
	}

	return nil
}

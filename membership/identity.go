package membership

import (
	"encoding/binary"

	"github.com/twmb/murmur3"
)

// Key is the identity of a member. Two members with equal keys are the same
// peer regardless of their domain, activity, id or properties.
type Key struct {
	HostName   string
	Port       int
	RemoteHost string
}

func (m *Member) Key() Key {
	return Key{
		HostName:   m.hostName,
		Port:       m.port,
		RemoteHost: m.remoteHost,
	}
}

// Equals returns true if both members have the same identity.
func (m *Member) Equals(other *Member) bool {
	if m == nil || other == nil {
		return false
	}

	return m.Key() == other.Key()
}

// Hash64 returns a hash of the member identity. It covers exactly the fields
// compared by Equals.
func (m *Member) Hash64() uint64 {
	return m.Key().Hash64()
}

func (k Key) Hash64() uint64 {
	var port [8]byte

	binary.LittleEndian.PutUint64(port[:], uint64(k.Port))

	h := murmur3.New64()
	writeField(h, []byte(k.HostName))
	writeField(h, port[:])
	writeField(h, []byte(k.RemoteHost))

	return h.Sum64()
}

type byteWriter interface {
	Write([]byte) (int, error)
}

// writeField writes a length-prefixed field so that adjacent fields cannot
// be shifted into each other.
func writeField(w byteWriter, b []byte) {
	var size [binary.MaxVarintLen64]byte

	n := binary.PutUvarint(size[:], uint64(len(b)))
	w.Write(size[:n]) //nolint:errcheck
	w.Write(b)        //nolint:errcheck
}

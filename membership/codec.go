package membership

import (
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/maxpoletaev/peerdir/internal/protoio"
)

// Field numbers of the member record. The layout is compatible with a
// protobuf message, so other implementations can decode it with a schema.
const (
	fieldHostName    protowire.Number = 1
	fieldPort        protowire.Number = 2
	fieldActive      protowire.Number = 3
	fieldDomain      protowire.Number = 4
	fieldRemoteHost  protowire.Number = 5
	fieldID          protowire.Number = 6
	fieldProperty    protowire.Number = 7
	fieldSuspendedAt protowire.Number = 8
	fieldSuspendFor  protowire.Number = 9
	fieldAddrIP      protowire.Number = 10
	fieldAddrHost    protowire.Number = 11

	fieldPropKey   protowire.Number = 1
	fieldPropValue protowire.Number = 2
)

// wrongType is returned in place of a protowire error code when a field has
// an unexpected wire type.
const wrongType = -100

var errWrongWireType = errors.New("unexpected wire type")

// MarshalBinary encodes the member including its suspension window and the
// resolved address, so that decoding does not need to resolve it again.
func (m *Member) MarshalBinary() ([]byte, error) {
	var b []byte

	b = appendString(b, fieldHostName, m.hostName)
	b = protowire.AppendTag(b, fieldPort, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(m.port))
	b = protowire.AppendTag(b, fieldActive, protowire.VarintType)
	b = protowire.AppendVarint(b, protowire.EncodeBool(m.active))
	b = appendString(b, fieldDomain, m.domain)
	b = appendString(b, fieldRemoteHost, m.remoteHost)
	b = appendString(b, fieldID, m.id)
	b = appendProperties(b, m.props)

	if since, d := m.live.window(); !since.IsZero() {
		b = protowire.AppendTag(b, fieldSuspendedAt, protowire.VarintType)
		b = protowire.AppendVarint(b, protowire.EncodeZigZag(since.UnixNano()))
		b = protowire.AppendTag(b, fieldSuspendFor, protowire.VarintType)
		b = protowire.AppendVarint(b, protowire.EncodeZigZag(int64(d)))
	}

	if m.addr.IP != nil {
		b = protowire.AppendTag(b, fieldAddrIP, protowire.BytesType)
		b = protowire.AppendBytes(b, m.addr.IP)
	}

	b = appendString(b, fieldAddrHost, m.addr.Host)

	return b, nil
}

// UnmarshalBinary replaces the content of the member with the decoded one.
// The time source of the member, if any, is preserved. It must not be called
// on a member shared with other goroutines.
func (m *Member) UnmarshalBinary(b []byte) error {
	var (
		decoded       = Member{active: true, props: &Properties{}}
		suspendedAt   int64
		suspendFor    int64
		haveSuspended bool
	)

	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}

		b = b[n:]

		switch num {
		case fieldHostName, fieldDomain, fieldRemoteHost, fieldID, fieldAddrHost:
			s, n := consumeString(typ, b)
			if n < 0 {
				return fieldError(num, n)
			}

			b = b[n:]

			switch num {
			case fieldHostName:
				decoded.hostName = s
			case fieldDomain:
				decoded.domain = s
			case fieldRemoteHost:
				decoded.remoteHost = s
			case fieldID:
				decoded.id = s
			case fieldAddrHost:
				decoded.addr.Host = s
			}

		case fieldPort, fieldActive, fieldSuspendedAt, fieldSuspendFor:
			v, n := consumeVarint(typ, b)
			if n < 0 {
				return fieldError(num, n)
			}

			b = b[n:]

			switch num {
			case fieldPort:
				decoded.port = int(v)
			case fieldActive:
				decoded.active = protowire.DecodeBool(v)
			case fieldSuspendedAt:
				suspendedAt = protowire.DecodeZigZag(v)
				haveSuspended = true
			case fieldSuspendFor:
				suspendFor = protowire.DecodeZigZag(v)
			}

		case fieldProperty:
			if typ != protowire.BytesType {
				return fieldError(num, wrongType)
			}

			entry, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return fieldError(num, n)
			}

			b = b[n:]

			if err := decodeProperty(decoded.props, entry); err != nil {
				return err
			}

		case fieldAddrIP:
			if typ != protowire.BytesType {
				return fieldError(num, wrongType)
			}

			ip, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return fieldError(num, n)
			}

			b = b[n:]
			decoded.addr.IP = append(net.IP(nil), ip...)

		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return fieldError(num, n)
			}

			b = b[n:]
		}
	}

	decoded.addr.Port = decoded.port

	m.hostName = decoded.hostName
	m.port = decoded.port
	m.addr = decoded.addr
	m.active = decoded.active
	m.domain = decoded.domain
	m.props = decoded.props
	m.remoteHost = decoded.remoteHost
	m.id = decoded.id

	if m.live == nil {
		m.live = &liveness{}
	}

	if haveSuspended {
		m.live.restore(time.Unix(0, suspendedAt), time.Duration(suspendFor))
	} else {
		m.live.reset()
	}

	return nil
}

// EncodeMembers writes the members to w as a stream of framed records.
func EncodeMembers(w io.Writer, members []*Member) error {
	pw := protoio.NewWriter(w)

	for _, m := range members {
		data, err := m.MarshalBinary()
		if err != nil {
			return fmt.Errorf("failed to encode member %s: %w", m.Addr(), err)
		}

		if _, err := pw.Append(data); err != nil {
			return fmt.Errorf("failed to write member %s: %w", m.Addr(), err)
		}
	}

	return nil
}

// DecodeMembers reads all members written by EncodeMembers.
func DecodeMembers(r io.Reader, opts ...Option) ([]*Member, error) {
	pr := protoio.NewReader(r)
	members := make([]*Member, 0)

	for {
		data, err := pr.ReadNext()
		if errors.Is(err, io.EOF) {
			return members, nil
		} else if err != nil {
			return nil, fmt.Errorf("failed to read member: %w", err)
		}

		m := blank(opts...)

		if err := m.UnmarshalBinary(data); err != nil {
			return nil, fmt.Errorf("failed to decode member: %w", err)
		}

		members = append(members, m)
	}
}

// blank returns an empty member to decode into. Only the clock option is
// relevant since decoding never resolves addresses.
func blank(opts ...Option) *Member {
	o := options{clock: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	return &Member{live: &liveness{clock: o.clock}}
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}

	b = protowire.AppendTag(b, num, protowire.BytesType)

	return protowire.AppendString(b, s)
}

func appendProperties(b []byte, props *Properties) []byte {
	props.Range(func(k, v string) bool {
		var entry []byte

		entry = protowire.AppendTag(entry, fieldPropKey, protowire.BytesType)
		entry = protowire.AppendString(entry, k)
		entry = protowire.AppendTag(entry, fieldPropValue, protowire.BytesType)
		entry = protowire.AppendString(entry, v)

		b = protowire.AppendTag(b, fieldProperty, protowire.BytesType)
		b = protowire.AppendBytes(b, entry)

		return true
	})

	return b
}

func decodeProperty(props *Properties, b []byte) error {
	var key, value string

	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}

		b = b[n:]

		switch num {
		case fieldPropKey, fieldPropValue:
			s, n := consumeString(typ, b)
			if n < 0 {
				return fieldError(num, n)
			}

			b = b[n:]

			if num == fieldPropKey {
				key = s
			} else {
				value = s
			}

		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return fieldError(num, n)
			}

			b = b[n:]
		}
	}

	props.Set(key, value)

	return nil
}

func consumeString(typ protowire.Type, b []byte) (string, int) {
	if typ != protowire.BytesType {
		return "", wrongType
	}

	return protowire.ConsumeString(b)
}

func consumeVarint(typ protowire.Type, b []byte) (uint64, int) {
	if typ != protowire.VarintType {
		return 0, wrongType
	}

	return protowire.ConsumeVarint(b)
}

func fieldError(num protowire.Number, n int) error {
	if n == wrongType {
		return fmt.Errorf("field %d: %w", num, errWrongWireType)
	}

	return fmt.Errorf("field %d: %w", num, protowire.ParseError(n))
}

package membership

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/hashicorp/memberlist"
)

// FromNode creates a member from a memberlist node. Nodes running Delegate
// advertise their member record as metadata, which is decoded as is. For other
// nodes the member is built from the gossip address and the node name.
func FromNode(n *memberlist.Node, opts ...Option) (*Member, error) {
	if len(n.Meta) > 0 {
		m := blank(opts...)
		if err := m.UnmarshalBinary(n.Meta); err != nil {
			return nil, fmt.Errorf("failed to decode node metadata: %w", err)
		}

		if m.ID() == "" {
			m.SetID(n.Name)
		}

		return m, nil
	}

	var host string
	if n.Addr != nil {
		host = n.Addr.String()
	}

	m, err := New(host, int(n.Port), opts...)
	if err != nil {
		return nil, err
	}

	m.SetID(n.Name)

	return m, nil
}

// Delegate exposes the directory to memberlist: the local member record is
// advertised as node metadata and the whole directory is exchanged during
// push/pull state synchronization. No broadcasts are queued, changes of the
// local record reach peers through memberlist metadata updates.
type Delegate struct {
	local  *Member
	dir    *Directory
	logger log.Logger
	opts   []Option
}

var _ memberlist.Delegate = (*Delegate)(nil)

func NewDelegate(local *Member, dir *Directory, logger log.Logger, opts ...Option) *Delegate {
	return &Delegate{
		local:  local,
		dir:    dir,
		logger: logger,
		opts:   opts,
	}
}

// NodeMeta advertises the local member record. When the record does not fit,
// it is advertised without properties so that peers still learn the
// clustering port instead of falling back to the gossip one.
func (d *Delegate) NodeMeta(limit int) []byte {
	meta, err := d.local.MarshalBinary()
	if err != nil {
		level.Error(d.logger).Log("msg", "failed to encode node metadata", "err", err)
		return nil
	}

	if len(meta) <= limit {
		return meta
	}

	level.Error(d.logger).Log(
		"msg", "node metadata exceeds the limit, advertising without properties",
		"size", len(meta),
		"limit", limit,
	)

	meta, err = compact(d.local).MarshalBinary()
	if err != nil {
		level.Error(d.logger).Log("msg", "failed to encode node metadata", "err", err)
		return nil
	}

	if len(meta) > limit {
		level.Error(d.logger).Log(
			"msg", "node metadata exceeds the limit and will not be advertised",
			"size", len(meta),
			"limit", limit,
		)

		return nil
	}

	return meta
}

// NotifyMsg is a no-op: member records travel as node metadata and during
// push/pull synchronization, user messages are never sent.
func (d *Delegate) NotifyMsg([]byte) {}

func (d *Delegate) GetBroadcasts(overhead, limit int) [][]byte {
	return nil
}

func (d *Delegate) LocalState(join bool) []byte {
	buf := &bytes.Buffer{}

	if err := d.dir.Encode(buf); err != nil {
		level.Error(d.logger).Log("msg", "failed to encode local state", "err", err)
		return nil
	}

	return buf.Bytes()
}

func (d *Delegate) MergeRemoteState(buf []byte, join bool) {
	members, err := DecodeMembers(bytes.NewReader(buf), d.opts...)
	if err != nil {
		level.Warn(d.logger).Log("msg", "failed to decode remote state", "err", err)
		return
	}

	for _, m := range members {
		d.merge(m)
	}
}

// merge refreshes the metadata of a known member. Members are added and
// removed only by memberlist join and leave events, so a peer with a stale
// view cannot bring back a member that has left. The suspension window of a
// known member is local knowledge and is kept.
func (d *Delegate) merge(m *Member) {
	if m.Equals(d.local) {
		return
	}

	err := d.dir.Update(m.Key(), func(curr *Member) *Member {
		return refreshed(curr, m)
	})
	if err != nil {
		level.Debug(d.logger).Log("msg", "skipping member from remote state", "addr", m.Addr(), "err", err)
	}
}

// EventDelegate keeps the directory in sync with memberlist node events.
type EventDelegate struct {
	dir    *Directory
	logger log.Logger
	opts   []Option
}

var _ memberlist.EventDelegate = (*EventDelegate)(nil)

func NewEventDelegate(dir *Directory, logger log.Logger, opts ...Option) *EventDelegate {
	return &EventDelegate{
		dir:    dir,
		logger: logger,
		opts:   opts,
	}
}

func (e *EventDelegate) NotifyJoin(n *memberlist.Node) {
	m, err := FromNode(n, e.opts...)
	if err != nil {
		level.Error(e.logger).Log("msg", "failed to create member", "node", n.Name, "err", err)
		return
	}

	if e.dir.Add(m) {
		level.Info(e.logger).Log("msg", "member joined", "member", m)
	}
}

func (e *EventDelegate) NotifyLeave(n *memberlist.Node) {
	m, err := FromNode(n, e.opts...)
	if err != nil {
		level.Error(e.logger).Log("msg", "failed to create member", "node", n.Name, "err", err)
		return
	}

	if e.dir.Remove(m.Key()) {
		level.Info(e.logger).Log("msg", "member left", "member", m)
	}
}

func (e *EventDelegate) NotifyUpdate(n *memberlist.Node) {
	m, err := FromNode(n, e.opts...)
	if err != nil {
		level.Error(e.logger).Log("msg", "failed to create member", "node", n.Name, "err", err)
		return
	}

	err = e.dir.Update(m.Key(), func(curr *Member) *Member {
		return refreshed(curr, m)
	})
	if errors.Is(err, ErrMemberNotFound) {
		e.dir.Add(m)
	}
}

// refreshed returns a copy of curr carrying the gossiped metadata of m. The
// copy shares the suspension window of curr.
func refreshed(curr, m *Member) *Member {
	next := *curr

	next.SetActive(m.IsActive())
	next.SetDomain(m.Domain())
	next.SetProperties(m.Properties().Clone())

	if m.ID() != "" {
		next.SetID(m.ID())
	}

	return &next
}

// compact returns a copy of the member without properties.
func compact(m *Member) *Member {
	c := *m
	c.SetProperties(nil)

	return &c
}

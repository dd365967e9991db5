package membership

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"golang.org/x/exp/maps"
)

// Directory is a set of members keyed by their identity. It is safe for
// concurrent use. Members returned by the directory are shared and treated as
// immutable apart from their suspension window: changes go through Update.
type Directory struct {
	mut     sync.RWMutex
	members map[Key]*Member
	logger  log.Logger
}

func NewDirectory(logger log.Logger) *Directory {
	return &Directory{
		members: make(map[Key]*Member),
		logger:  logger,
	}
}

// Add stores the member unless a member with the same identity is already
// known. It returns true if the member has been added.
func (d *Directory) Add(m *Member) bool {
	d.mut.Lock()
	defer d.mut.Unlock()

	key := m.Key()
	if _, found := d.members[key]; found {
		return false
	}

	d.members[key] = m

	level.Debug(d.logger).Log("msg", "member added", "member", m)

	return true
}

// Put stores the member replacing the one with the same identity, if any.
func (d *Directory) Put(m *Member) {
	d.mut.Lock()
	defer d.mut.Unlock()

	d.members[m.Key()] = m
}

// Update replaces the stored member with the one returned by f, which gets the
// current record. Readers holding the old record never observe a change, so f
// must return a modified copy rather than changing its argument in place.
// The returned member must keep the identity of the stored one.
func (d *Directory) Update(key Key, f func(curr *Member) *Member) error {
	d.mut.Lock()
	defer d.mut.Unlock()

	curr, found := d.members[key]
	if !found {
		return ErrMemberNotFound
	}

	next := f(curr)
	if next.Key() != key {
		return fmt.Errorf("member %s: %w", next.Addr(), ErrIdentityChanged)
	}

	d.members[key] = next

	return nil
}

func (d *Directory) Get(key Key) (*Member, bool) {
	d.mut.RLock()
	defer d.mut.RUnlock()

	m, found := d.members[key]

	return m, found
}

// Remove evicts the member. It returns false if there was no such member.
func (d *Directory) Remove(key Key) bool {
	d.mut.Lock()
	defer d.mut.Unlock()

	m, found := d.members[key]
	if !found {
		return false
	}

	delete(d.members, key)

	level.Debug(d.logger).Log("msg", "member removed", "member", m)

	return true
}

func (d *Directory) Len() int {
	d.mut.RLock()
	defer d.mut.RUnlock()

	return len(d.members)
}

// Members returns all known members in no particular order.
func (d *Directory) Members() []*Member {
	d.mut.RLock()
	defer d.mut.RUnlock()

	return maps.Values(d.members)
}

// Encode writes all members with EncodeMembers while holding the directory
// lock, so that concurrent updates do not interleave with encoding.
func (d *Directory) Encode(w io.Writer) error {
	d.mut.RLock()
	defer d.mut.RUnlock()

	return EncodeMembers(w, maps.Values(d.members))
}

// Live returns active members that are not suspended. Suspension windows that
// have elapsed are cleared along the way.
func (d *Directory) Live() []*Member {
	d.mut.RLock()
	defer d.mut.RUnlock()

	live := make([]*Member, 0, len(d.members))

	for _, m := range d.members {
		if m.IsActive() && !m.IsSuspended() {
			live = append(live, m)
		}
	}

	return live
}

// Suspend suspends the member with the given identity for duration d.
func (d *Directory) Suspend(key Key, dur time.Duration) error {
	m, found := d.Get(key)
	if !found {
		return ErrMemberNotFound
	}

	m.Suspend(dur)

	level.Info(d.logger).Log(
		"msg", "member suspended",
		"member", m,
		"duration", dur,
	)

	return nil
}

package membership

import (
	"context"
	"fmt"
	"time"
)

const (
	// PropRemoteHost overrides the host name returned by HostName. It is for
	// display only and does not take part in the member identity.
	PropRemoteHost = "remoteHost"

	// PropSubDomain is the routing hint read by the transport layer.
	PropSubDomain = "sub-domain"
)

// Member is a single peer of the cluster. It is a mutable record without
// internal synchronization, except for the suspension window which lives in
// its own locked cell. Containers sharing a member between goroutines must
// not call the other setters on it: Directory.Update swaps in a modified copy
// instead.
type Member struct {
	hostName   string
	port       int
	addr       Addr
	active     bool
	domain     string
	props      *Properties
	remoteHost string
	id         string
	live       *liveness
}

type Option func(*options)

type options struct {
	resolver Resolver
	clock    func() time.Time
}

// WithResolver sets the resolver used to look up the member address.
func WithResolver(r Resolver) Option {
	return func(o *options) {
		o.resolver = r
	}
}

// WithClock sets the time source of the suspension timer.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.clock = now
	}
}

// New creates a member and resolves its address right away. An error of type
// *AddressResolutionError is returned when the address cannot be resolved.
func New(hostName string, port int, opts ...Option) (*Member, error) {
	return Resolve(context.Background(), hostName, port, opts...)
}

// Resolve is like New but allows to cancel the address lookup.
func Resolve(ctx context.Context, hostName string, port int, opts ...Option) (*Member, error) {
	o := options{
		resolver: defaultResolver,
		clock:    time.Now,
	}

	for _, opt := range opts {
		opt(&o)
	}

	addr, err := resolveAddr(ctx, o.resolver, hostName, port)
	if err != nil {
		return nil, err
	}

	m := &Member{
		hostName: hostName,
		port:     port,
		addr:     addr,
		active:   true,
		props:    &Properties{},
		live:     &liveness{clock: o.clock},
	}

	return m, nil
}

// HostName returns the host name for display. The remoteHost property takes
// precedence over the host the member was created with.
func (m *Member) HostName() string {
	if host, ok := m.props.Get(PropRemoteHost); ok {
		return host
	}

	return m.hostName
}

// RawHostName returns the host the member was created with.
func (m *Member) RawHostName() string {
	return m.hostName
}

func (m *Member) Port() int {
	return m.port
}

// Addr returns the address resolved at construction time.
func (m *Member) Addr() Addr {
	return m.addr
}

func (m *Member) IsActive() bool {
	return m.active
}

func (m *Member) SetActive(active bool) {
	m.active = active
}

func (m *Member) Domain() string {
	return m.domain
}

func (m *Member) SetDomain(domain string) {
	m.domain = domain
}

// Properties returns the property bag of the member. Changes made to the
// returned value are visible through the member.
func (m *Member) Properties() *Properties {
	return m.props
}

// SetProperties replaces the whole property bag. A nil value resets it.
func (m *Member) SetProperties(props *Properties) {
	if props == nil {
		props = &Properties{}
	}

	m.props = props
}

// RemoteHost returns the identity override set by the transport layer. It is
// unrelated to the remoteHost property.
func (m *Member) RemoteHost() string {
	return m.remoteHost
}

func (m *Member) SetRemoteHost(host string) {
	m.remoteHost = host
}

func (m *Member) ID() string {
	return m.id
}

func (m *Member) SetID(id string) {
	m.id = id
}

// Suspend marks the member as unreachable for the given duration starting
// now. Any previous window is overwritten.
func (m *Member) Suspend(d time.Duration) {
	m.live.suspend(d)
}

// IsSuspended reports whether the suspension window is still open. A window
// that has elapsed is cleared by this call.
func (m *Member) IsSuspended() bool {
	return m.live.check()
}

// Resume clears the suspension window.
func (m *Member) Resume() {
	m.live.reset()
}

// SuspendedUntil returns the end of the suspension window without expiring it.
func (m *Member) SuspendedUntil() (time.Time, bool) {
	return m.live.until()
}

// Status returns StatusSuspended while the suspension window is open.
func (m *Member) Status() Status {
	if m.IsSuspended() {
		return StatusSuspended
	}

	return StatusActive
}

func (m *Member) String() string {
	subDomain, _ := m.props.Get(PropSubDomain)

	return fmt.Sprintf(
		"Host:%s, Port: %d, Domain: %s, Sub-domain:%s, Active:%t",
		m.hostName, m.port, m.domain, subDomain, m.active,
	)
}

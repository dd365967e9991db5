package faildetector

import (
	"context"
	"fmt"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/go-kit/log"
	"github.com/hashicorp/memberlist"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maxpoletaev/peerdir/membership"
)

type mockProber struct {
	mut    sync.Mutex
	failed map[membership.Key]bool
	probed []membership.Key
}

func newMockProber() *mockProber {
	return &mockProber{failed: make(map[membership.Key]bool)}
}

func (p *mockProber) Fail(m *membership.Member) {
	p.mut.Lock()
	p.failed[m.Key()] = true
	p.mut.Unlock()
}

func (p *mockProber) Probe(ctx context.Context, m *membership.Member) error {
	p.mut.Lock()
	defer p.mut.Unlock()

	p.probed = append(p.probed, m.Key())

	if p.failed[m.Key()] {
		return assert.AnError
	}

	return nil
}

func (p *mockProber) GetProbed() []membership.Key {
	p.mut.Lock()
	defer p.mut.Unlock()

	return p.probed
}

func newMember(t *testing.T, host string, port int) *membership.Member {
	m, err := membership.New(host, port)
	require.NoError(t, err)

	return m
}

func newDirectory(members ...*membership.Member) *membership.Directory {
	dir := membership.NewDirectory(log.NewNopLogger())
	for _, m := range members {
		dir.Add(m)
	}

	return dir
}

func newDetector(t *testing.T, members Memberlist, prober Prober, logger log.Logger, opts ...Option) *Detector {
	d, err := New(members, prober, logger, opts...)
	require.NoError(t, err)

	return d
}

func TestDetector_SuspendsFailedMembers(t *testing.T) {
	healthy := newMember(t, "10.0.0.1", 4000)
	faulty := newMember(t, "10.0.0.2", 4000)

	prober := newMockProber()
	prober.Fail(faulty)

	d := newDetector(t, newDirectory(healthy, faulty), prober, log.NewNopLogger(), WithSuspendFor(time.Hour))

	suspended := d.probeRound(context.Background())
	assert.Equal(t, 1, suspended)
	assert.True(t, faulty.IsSuspended())
	assert.False(t, healthy.IsSuspended())
	assert.Len(t, prober.GetProbed(), 2)
}

func TestDetector_SkipsSelfInactiveAndSuspended(t *testing.T) {
	self := newMember(t, "10.0.0.1", 4000)
	inactive := newMember(t, "10.0.0.2", 4000)
	suspended := newMember(t, "10.0.0.3", 4000)
	target := newMember(t, "10.0.0.4", 4000)

	inactive.SetActive(false)
	suspended.Suspend(time.Hour)

	prober := newMockProber()
	dir := newDirectory(self, inactive, suspended, target)
	d := newDetector(t, dir, prober, log.NewNopLogger(), WithSelf(self.Key()))

	d.probeRound(context.Background())
	assert.Equal(t, []membership.Key{target.Key()}, prober.GetProbed())
}

func TestDetector_Fanout(t *testing.T) {
	dir := newDirectory(
		newMember(t, "10.0.0.1", 4000),
		newMember(t, "10.0.0.2", 4000),
		newMember(t, "10.0.0.3", 4000),
	)

	prober := newMockProber()
	d := newDetector(t, dir, prober, log.NewNopLogger(), WithFanout(2))

	d.probeRound(context.Background())
	assert.Len(t, prober.GetProbed(), 2)
}

func TestDetector_CanceledRoundSuspendsNothing(t *testing.T) {
	faulty := newMember(t, "10.0.0.2", 4000)

	prober := newMockProber()
	prober.Fail(faulty)

	d := newDetector(t, newDirectory(faulty), prober, log.NewNopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Equal(t, 0, d.probeRound(ctx))
	assert.False(t, faulty.IsSuspended())
}

func TestDetector_RunLoop(t *testing.T) {
	faulty := newMember(t, "10.0.0.2", 4000)

	prober := newMockProber()
	prober.Fail(faulty)

	d := newDetector(t,
		newDirectory(faulty), prober, log.NewNopLogger(),
		WithProbeInterval(10*time.Millisecond),
		WithSuspendFor(time.Hour),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		d.RunLoop(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return faulty.IsSuspended()
	}, time.Second, 10*time.Millisecond)

	cancel()
	<-done

	assert.Len(t, prober.GetProbed(), 1)
}

func TestNew_InvalidOptions(t *testing.T) {
	tests := map[string]Option{
		"zero interval":     WithProbeInterval(0),
		"negative interval": WithProbeInterval(-time.Second),
		"zero timeout":      WithProbeTimeout(0),
		"zero suspension":   WithSuspendFor(0),
		"zero fanout":       WithFanout(0),
		"negative fanout":   WithFanout(-1),
	}

	for name, opt := range tests {
		t.Run(name, func(t *testing.T) {
			d, err := New(newDirectory(), newMockProber(), log.NewNopLogger(), opt)
			require.ErrorIs(t, err, ErrInvalidOption)
			assert.Nil(t, d)
		})
	}
}

func TestDetector_RoundDuringGossipUpdates(t *testing.T) {
	faulty := newMember(t, "10.0.0.2", 4000)
	dir := newDirectory(faulty)
	events := membership.NewEventDelegate(dir, log.NewNopLogger())

	nodes := make([]*memberlist.Node, 100)

	for i := range nodes {
		update := newMember(t, "10.0.0.2", 4000)
		update.SetDomain(fmt.Sprintf("domain-%d", i))
		update.Properties().Set(membership.PropSubDomain, fmt.Sprintf("sub-%d", i))

		meta, err := update.MarshalBinary()
		require.NoError(t, err)

		nodes[i] = &memberlist.Node{Name: "node-b", Addr: net.ParseIP("10.0.0.2"), Port: 7946, Meta: meta}
	}

	prober := newMockProber()
	prober.Fail(faulty)

	d := newDetector(t, dir, prober, log.NewLogfmtLogger(io.Discard), WithSuspendFor(time.Nanosecond))

	var wg sync.WaitGroup

	wg.Add(2)

	go func() {
		defer wg.Done()

		for _, n := range nodes {
			events.NotifyUpdate(n)
		}
	}()

	go func() {
		defer wg.Done()

		for i := 0; i < 100; i++ {
			d.probeRound(context.Background())
		}
	}()

	wg.Wait()

	m, ok := dir.Get(faulty.Key())
	require.True(t, ok)
	assert.Equal(t, "domain-99", m.Domain())
	assert.NotEmpty(t, prober.GetProbed())
}

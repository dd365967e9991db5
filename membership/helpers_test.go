package membership

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

type fakeResolver struct {
	hosts map[string][]net.IPAddr
	err   error
	calls int
}

func (r *fakeResolver) LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error) {
	r.calls++

	if r.err != nil {
		return nil, r.err
	}

	return r.hosts[host], nil
}

func testResolver() *fakeResolver {
	return &fakeResolver{
		hosts: map[string][]net.IPAddr{
			"node1": {{IP: net.ParseIP("10.0.0.1")}},
			"node2": {{IP: net.ParseIP("10.0.0.2")}},
			"h":     {{IP: net.ParseIP("10.0.0.3")}},
			"dual":  {{IP: net.ParseIP("fd00::1")}, {IP: net.ParseIP("10.0.0.4")}},
		},
	}
}

func newTestMember(t *testing.T, host string, port int, opts ...Option) *Member {
	opts = append([]Option{WithResolver(testResolver())}, opts...)

	m, err := New(host, port, opts...)
	require.NoError(t, err)

	return m
}

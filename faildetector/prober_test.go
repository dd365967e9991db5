package faildetector

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/maxpoletaev/peerdir/faildetector/service"
	"github.com/maxpoletaev/peerdir/membership"
)

const testService = "peerdir"

func startServer(t *testing.T, register func(*grpc.Server)) *membership.Member {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := grpc.NewServer()
	register(srv)

	go srv.Serve(lis) //nolint:errcheck
	t.Cleanup(srv.Stop)

	addr := lis.Addr().(*net.TCPAddr)

	return newMember(t, addr.IP.String(), addr.Port)
}

func probe(t *testing.T, m *membership.Member) error {
	p := NewGRPCProber(testService)
	t.Cleanup(func() { p.Close() }) //nolint:errcheck

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	return p.Probe(ctx, m)
}

func TestGRPCProber_Serving(t *testing.T) {
	local := newMember(t, "127.0.0.1", 1)

	target := startServer(t, func(srv *grpc.Server) {
		grpc_health_v1.RegisterHealthServer(srv, service.New(local, testService))
	})

	require.NoError(t, probe(t, target))
}

func TestGRPCProber_NotServing(t *testing.T) {
	local := newMember(t, "127.0.0.1", 1)
	local.Suspend(time.Hour)

	target := startServer(t, func(srv *grpc.Server) {
		grpc_health_v1.RegisterHealthServer(srv, service.New(local, testService))
	})

	require.ErrorIs(t, probe(t, target), errNotServing)
}

func TestGRPCProber_Unimplemented(t *testing.T) {
	target := startServer(t, func(srv *grpc.Server) {})

	require.NoError(t, probe(t, target))
}

func TestGRPCProber_Unreachable(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	addr := lis.Addr().(*net.TCPAddr)
	require.NoError(t, lis.Close())

	target := newMember(t, addr.IP.String(), addr.Port)

	assert.Error(t, probe(t, target))
}

func TestGRPCProber_ReusesConnections(t *testing.T) {
	p := NewGRPCProber(testService)
	defer p.Close() //nolint:errcheck

	c1, err := p.conn("127.0.0.1:1")
	require.NoError(t, err)

	c2, err := p.conn("127.0.0.1:1")
	require.NoError(t, err)

	assert.Same(t, c1, c2)
	require.NoError(t, p.Close())
	assert.Empty(t, p.conns)
}

package faildetector

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hashicorp/go-multierror"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/maxpoletaev/peerdir/internal/grpcutil"
	"github.com/maxpoletaev/peerdir/membership"
)

var errNotServing = errors.New("member is not serving")

// GRPCProber probes members with the standard gRPC health check. A member
// that responds but does not implement the health service is considered
// reachable.
type GRPCProber struct {
	mut      sync.Mutex
	conns    map[string]*grpc.ClientConn
	service  string
	dialOpts []grpc.DialOption
}

func NewGRPCProber(service string, dialOpts ...grpc.DialOption) *GRPCProber {
	opts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}

	return &GRPCProber{
		conns:    make(map[string]*grpc.ClientConn),
		service:  service,
		dialOpts: append(opts, dialOpts...),
	}
}

func (p *GRPCProber) conn(addr string) (*grpc.ClientConn, error) {
	p.mut.Lock()
	defer p.mut.Unlock()

	if conn, ok := p.conns[addr]; ok {
		return conn, nil
	}

	conn, err := grpc.Dial(addr, p.dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("grpc dial failed: %w", err)
	}

	p.conns[addr] = conn

	return conn, nil
}

func (p *GRPCProber) Probe(ctx context.Context, member *membership.Member) error {
	conn, err := p.conn(member.Addr().String())
	if err != nil {
		return err
	}

	client := grpc_health_v1.NewHealthClient(conn)

	resp, err := client.Check(ctx, &grpc_health_v1.HealthCheckRequest{
		Service: p.service,
	})
	if err != nil {
		if grpcutil.IsUnimplemented(err) {
			return nil
		}

		return fmt.Errorf("health check failed: %w", err)
	}

	if resp.Status != grpc_health_v1.HealthCheckResponse_SERVING {
		return fmt.Errorf("%w: %s", errNotServing, resp.Status)
	}

	return nil
}

// Close closes all cached connections.
func (p *GRPCProber) Close() error {
	p.mut.Lock()
	defer p.mut.Unlock()

	var errs *multierror.Error

	for addr, conn := range p.conns {
		if err := conn.Close(); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", addr, err))
		}

		delete(p.conns, addr)
	}

	return errs.ErrorOrNil()
}

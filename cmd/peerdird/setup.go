package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"sort"
	"sync"
	"time"

	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/hashicorp/memberlist"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/maxpoletaev/peerdir/faildetector"
	"github.com/maxpoletaev/peerdir/faildetector/service"
	"github.com/maxpoletaev/peerdir/membership"
)

type shutdownFunc func(ctx context.Context) error

var noopShutdown = func(ctx context.Context) error { return nil }

func setupLogger() (kitlog.Logger, shutdownFunc) {
	logger := kitlog.NewLogfmtLogger(kitlog.NewSyncWriter(os.Stderr))
	logger = kitlog.With(logger, "ts", kitlog.DefaultTimestampUTC)

	if !opts.Verbose {
		logger = level.NewFilter(logger, level.AllowInfo())
	}

	return logger, noopShutdown
}

func setupLocalMember(ctx context.Context) (*membership.Member, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	local, err := membership.Resolve(ctx, opts.Node.Host, opts.Node.Port)
	if err != nil {
		return nil, err
	}

	local.SetID(opts.Node.ID)
	local.SetDomain(opts.Node.Domain)

	// Flags come as a map, sort the keys to keep the advertised order stable.
	keys := make([]string, 0, len(opts.Node.Properties))
	for k := range opts.Node.Properties {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	for _, k := range keys {
		local.Properties().Set(k, opts.Node.Properties[k])
	}

	return local, nil
}

func setupGRPCServer(wg *sync.WaitGroup, local *membership.Member, logger kitlog.Logger) (*grpc.Server, shutdownFunc) {
	grpcServer := grpc.NewServer()

	healthService := service.New(local, opts.GRPC.Service)
	grpc_health_v1.RegisterHealthServer(grpcServer, healthService)

	wg.Add(1)

	go func() {
		defer wg.Done()

		listener, err := net.Listen("tcp", opts.GRPC.BindAddr)
		if err != nil {
			panic(fmt.Sprintf("failed to create GRPC listener: %v", err))
		}

		if err := grpcServer.Serve(listener); err != nil {
			panic(fmt.Sprintf("failed to start GRPC server: %v", err))
		}
	}()

	shutdown := func(ctx context.Context) error {
		logger.Log("msg", "shutting down GRPC server")
		grpcServer.GracefulStop()
		return nil
	}

	return grpcServer, shutdown
}

func setupGossip(local *membership.Member, dir *membership.Directory, logger kitlog.Logger) (*memberlist.Memberlist, shutdownFunc, error) {
	conf := memberlist.DefaultLANConfig()
	conf.Name = local.Addr().String()
	conf.BindAddr = opts.Gossip.BindAddr
	conf.BindPort = opts.Gossip.BindPort
	conf.Delegate = membership.NewDelegate(local, dir, logger)
	conf.Events = membership.NewEventDelegate(dir, logger)
	conf.LogOutput = kitlog.NewStdlibAdapter(level.Debug(logger))

	if local.ID() != "" {
		conf.Name = local.ID()
	}

	ml, err := memberlist.Create(conf)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create memberlist: %w", err)
	}

	shutdown := func(ctx context.Context) error {
		logger.Log("msg", "leaving cluster")

		timeout := 5 * time.Second
		if deadline, ok := ctx.Deadline(); ok {
			timeout = time.Until(deadline)
		}

		if err := ml.Leave(timeout); err != nil {
			return fmt.Errorf("failed to leave cluster: %w", err)
		}

		return ml.Shutdown()
	}

	return ml, shutdown, nil
}

func setupDetector(wg *sync.WaitGroup, local *membership.Member, dir *membership.Directory, logger kitlog.Logger) (shutdownFunc, error) {
	prober := faildetector.NewGRPCProber(opts.GRPC.Service)

	detector, err := faildetector.New(
		dir, prober, logger,
		faildetector.WithSelf(local.Key()),
		faildetector.WithFanout(opts.Detector.Fanout),
		faildetector.WithProbeInterval(time.Millisecond*time.Duration(opts.Detector.ProbeInterval)),
		faildetector.WithProbeTimeout(time.Millisecond*time.Duration(opts.Detector.ProbeTimeout)),
		faildetector.WithSuspendFor(time.Millisecond*time.Duration(opts.Detector.SuspendFor)),
	)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	wg.Add(1)

	go func() {
		defer wg.Done()
		detector.RunLoop(ctx)
	}()

	return func(ctx context.Context) error {
		logger.Log("msg", "stopping failure detector")
		cancel()
		return prober.Close()
	}, nil
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/hashicorp/memberlist"
	"github.com/jessevdk/go-flags"

	"github.com/maxpoletaev/peerdir/membership"
)

func join(ctx context.Context, ml *memberlist.Memberlist, logger kitlog.Logger, addrs []string) {
	var (
		backoff = 1 * time.Second
		max     = 30 * time.Second
	)

	for {
		n, err := ml.Join(addrs)
		if err == nil {
			level.Info(logger).Log("msg", "joined cluster", "contacted", n)
			return
		}

		level.Error(logger).Log(
			"msg", "failed to join cluster",
			"addrs", fmt.Sprint(addrs),
			"err", err,
		)

		backoff = backoff * 2
		if backoff > max {
			backoff = max
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
			continue
		}
	}
}

func main() {
	p := flags.NewParser(&opts, flags.Default)

	if _, err := p.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); !ok || flagsErr.Type != flags.ErrHelp {
			fmt.Println("cli error:", err)
		}

		os.Exit(2)
	}

	wg := sync.WaitGroup{}
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, syscall.SIGINT, syscall.SIGTERM)

	logger, closeLogger := setupLogger()

	local, err := setupLocalMember(context.Background())
	if err != nil {
		level.Error(logger).Log("msg", "failed to create local member", "err", err)
		os.Exit(1)
	}

	dir := membership.NewDirectory(logger)
	dir.Add(local)

	_, closeGRPCServer := setupGRPCServer(&wg, local, logger)

	ml, closeGossip, err := setupGossip(local, dir, logger)
	if err != nil {
		level.Error(logger).Log("msg", "failed to start gossip", "err", err)
		os.Exit(1)
	}

	closeDetector, err := setupDetector(&wg, local, dir, logger)
	if err != nil {
		level.Error(logger).Log("msg", "failed to start failure detector", "err", err)
		os.Exit(1)
	}

	// Components must be shut down in a particular order.
	shutdownOrder := []shutdownFunc{
		closeDetector,
		closeGossip,
		closeGRPCServer,
		closeLogger,
	}

	joinCtx, cancelJoin := context.WithCancel(context.Background())
	if addrs := parseAddrs(opts.Gossip.Join); len(addrs) > 0 {
		go join(joinCtx, ml, logger, addrs)
	}

	level.Info(logger).Log("msg", "node started", "member", local)

	// Block until we receive a signal to shut down.
	<-interrupt
	cancelJoin()
	level.Info(logger).Log("msg", "received interrupt signal, shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, f := range shutdownOrder {
		if err := f(ctx); err != nil {
			level.Error(logger).Log("msg", "failed to shutdown component", "err", err)
		}
	}

	// Wait for all components to finish background tasks.
	wg.Wait()
}

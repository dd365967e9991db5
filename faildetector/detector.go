package faildetector

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"golang.org/x/sync/errgroup"

	"github.com/maxpoletaev/peerdir/membership"
)

// Detector periodically probes random members and suspends the ones that do
// not respond. Suspended members are skipped until their suspension window
// elapses, after which they are probed again.
type Detector struct {
	members       Memberlist
	prober        Prober
	logger        log.Logger
	self          *membership.Key
	probeInterval time.Duration
	probeTimeout  time.Duration
	suspendFor    time.Duration
	fanout        int
}

// ErrInvalidOption is returned by New when a detector option is out of range.
var ErrInvalidOption = errors.New("invalid detector option")

func New(members Memberlist, prober Prober, logger log.Logger, opts ...Option) (*Detector, error) {
	d := &Detector{
		members:       members,
		prober:        prober,
		logger:        logger,
		probeInterval: 1 * time.Second,
		probeTimeout:  2 * time.Second,
		suspendFor:    30 * time.Second,
		fanout:        3,
	}

	for _, opt := range opts {
		opt(d)
	}

	if err := d.validate(); err != nil {
		return nil, err
	}

	return d, nil
}

func (d *Detector) validate() error {
	switch {
	case d.probeInterval <= 0:
		return fmt.Errorf("%w: probe interval must be positive, got %s", ErrInvalidOption, d.probeInterval)
	case d.probeTimeout <= 0:
		return fmt.Errorf("%w: probe timeout must be positive, got %s", ErrInvalidOption, d.probeTimeout)
	case d.suspendFor <= 0:
		return fmt.Errorf("%w: suspension must be positive, got %s", ErrInvalidOption, d.suspendFor)
	case d.fanout < 1:
		return fmt.Errorf("%w: fanout must be at least 1, got %d", ErrInvalidOption, d.fanout)
	}

	return nil
}

func (d *Detector) RunLoop(ctx context.Context) {
	level.Info(d.logger).Log(
		"msg", "failure detector loop started",
		"probe_interval", d.probeInterval,
		"suspend_for", d.suspendFor,
	)

	ticker := time.NewTicker(d.probeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			d.probeRound(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// pickTargets returns up to fanout random live members. Inactive members are
// not expected to respond, suspended ones are left alone until their window
// elapses.
func (d *Detector) pickTargets() []*membership.Member {
	members := d.members.Live()

	rand.Shuffle(len(members), func(i, j int) {
		members[i], members[j] = members[j], members[i]
	})

	targets := make([]*membership.Member, 0, d.fanout)

	for _, m := range members {
		if len(targets) == d.fanout {
			break
		}

		if d.self != nil && m.Key() == *d.self {
			continue
		}

		targets = append(targets, m)
	}

	return targets
}

// probeRound probes the selected members concurrently and returns the number
// of members that have been suspended.
func (d *Detector) probeRound(ctx context.Context) int {
	targets := d.pickTargets()
	failed := make([]bool, len(targets))

	ctx, cancel := context.WithTimeout(ctx, d.probeTimeout)
	defer cancel()

	errg := errgroup.Group{}

	for i, m := range targets {
		i, m := i, m

		errg.Go(func() error {
			if err := d.prober.Probe(ctx, m); err != nil {
				level.Debug(d.logger).Log("msg", "member check failed", "addr", m.Addr(), "err", err)
				failed[i] = true
			}

			return nil
		})
	}

	_ = errg.Wait()

	// The whole round has been interrupted, the members are not to blame.
	if ctx.Err() == context.Canceled {
		return 0
	}

	var suspended int

	for i, m := range targets {
		if !failed[i] {
			continue
		}

		m.Suspend(d.suspendFor)
		suspended++

		level.Warn(d.logger).Log(
			"msg", "member suspended",
			"addr", m.Addr(),
			"duration", d.suspendFor,
		)
	}

	return suspended
}

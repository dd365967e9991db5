package faildetector

import (
	"time"

	"github.com/maxpoletaev/peerdir/membership"
)

type Option func(*Detector)

func WithProbeInterval(t time.Duration) Option {
	return func(d *Detector) {
		d.probeInterval = t
	}
}

func WithProbeTimeout(t time.Duration) Option {
	return func(d *Detector) {
		d.probeTimeout = t
	}
}

// WithSuspendFor sets how long a member stays suspended after a failed probe.
func WithSuspendFor(t time.Duration) Option {
	return func(d *Detector) {
		d.suspendFor = t
	}
}

// WithFanout sets the number of members probed in a single round.
func WithFanout(n int) Option {
	return func(d *Detector) {
		d.fanout = n
	}
}

// WithSelf excludes the local member from probing.
func WithSelf(key membership.Key) Option {
	return func(d *Detector) {
		d.self = &key
	}
}

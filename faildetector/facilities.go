package faildetector

import (
	"context"

	"github.com/maxpoletaev/peerdir/membership"
)

type Memberlist interface {
	// Live returns members that are active and not suspended.
	Live() []*membership.Member
}

// Prober checks whether a member is reachable. A nil error means it is.
type Prober interface {
	Probe(ctx context.Context, member *membership.Member) error
}

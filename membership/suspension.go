package membership

import (
	"sync"
	"time"
)

// liveness holds the suspension window of a member. The window is never
// expired in the background: an elapsed window is cleared by the first check
// that observes it. Copies of a member made by the directory share the same
// cell. Read methods treat a nil cell as no window.
type liveness struct {
	mut      sync.Mutex
	clock    func() time.Time
	since    time.Time
	duration time.Duration
}

func (l *liveness) now() time.Time {
	if l.clock == nil {
		return time.Now()
	}

	return l.clock()
}

func (l *liveness) suspend(d time.Duration) {
	now := l.now()

	l.mut.Lock()
	defer l.mut.Unlock()

	l.since = now
	l.duration = d
}

func (l *liveness) check() bool {
	if l == nil {
		return false
	}

	now := l.now()

	l.mut.Lock()
	defer l.mut.Unlock()

	if l.since.IsZero() {
		return false
	}

	if now.Sub(l.since) >= l.duration {
		l.since = time.Time{}
		l.duration = 0

		return false
	}

	return true
}

func (l *liveness) reset() {
	l.mut.Lock()
	defer l.mut.Unlock()

	l.since = time.Time{}
	l.duration = 0
}

func (l *liveness) until() (time.Time, bool) {
	if l == nil {
		return time.Time{}, false
	}

	l.mut.Lock()
	defer l.mut.Unlock()

	if l.since.IsZero() {
		return time.Time{}, false
	}

	return l.since.Add(l.duration), true
}

// window returns the raw suspension fields, used by the codec.
func (l *liveness) window() (time.Time, time.Duration) {
	if l == nil {
		return time.Time{}, 0
	}

	l.mut.Lock()
	defer l.mut.Unlock()

	return l.since, l.duration
}

func (l *liveness) restore(since time.Time, d time.Duration) {
	l.mut.Lock()
	defer l.mut.Unlock()

	l.since = since
	l.duration = d
}

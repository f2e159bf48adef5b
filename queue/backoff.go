package queue

import (
	"math/rand/v2"
	"time"

	"github.com/xraph/tether/netmon"
)

// Backoff computes retry spacing from the attempt count and link quality.
//
// The delay doubles per attempt and is scaled by the link-class multiplier
// (a retry on a 2G link waits three times longer than on 4G), capped at Max.
// A random slack of up to Jitter is added on top so that queued items
// recovering at the same moment do not all fire at once.
type Backoff struct {
	Base   time.Duration
	Max    time.Duration
	Jitter time.Duration
}

// maxShift bounds the exponential term; beyond this the delay has long
// since hit Max and shifting further would overflow.
const maxShift = 20

// Delay returns the wait before the next attempt. Ignoring jitter, the
// delay is monotonically non-decreasing in the attempt count.
func (b Backoff) Delay(attempts int, link netmon.LinkClass) time.Duration {
	shift := attempts
	if shift < 0 {
		shift = 0
	}
	if shift > maxShift {
		shift = maxShift
	}

	d := b.Base * (1 << shift) * time.Duration(link.Multiplier())
	if d > b.Max || d < 0 {
		d = b.Max
	}

	if b.Jitter > 0 {
		d += time.Duration(rand.Int64N(int64(b.Jitter)))
	}
	return d
}

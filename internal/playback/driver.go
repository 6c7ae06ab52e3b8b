package playback

import (
	"context"
	"time"

	"github.com/EyasDmour/vehicle-tracker/internal/timeutil"
)

// Driver feeds wall-clock ticks into a session. Production wires it to a
// RealClock ticker; tests feed synthetic deltas through a MockClock or call
// Session.Tick directly.
type Driver struct {
	session *Session
	clock   timeutil.Clock
	ticker  timeutil.Ticker
	last    time.Time
}

// NewDriver creates a driver ticking the session every interval. The ticker
// starts here, not in Run, so a caller that advances a mock clock right
// after starting Run cannot slip in before the ticker is registered.
func NewDriver(session *Session, clock timeutil.Clock, interval time.Duration) *Driver {
	return &Driver{
		session: session,
		clock:   clock,
		ticker:  clock.NewTicker(interval),
		last:    clock.Now(),
	}
}

// Run ticks the session until ctx is cancelled. Each tick advances the
// session by the measured wall-clock delta since the previous tick, so a
// slow consumer skews smoothness but never playback speed.
func (d *Driver) Run(ctx context.Context) {
	defer d.ticker.Stop()

	for {
		select {
		case <-d.ticker.C():
			now := d.clock.Now()
			d.session.Tick(now.Sub(d.last))
			d.last = now
		case <-ctx.Done():
			return
		}
	}
}

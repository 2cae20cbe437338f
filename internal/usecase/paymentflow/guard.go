package paymentflow

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/simaogato/roomsplit-payments/internal/domain"
)

const (
	// DefaultCancelTimeout bounds the detached cancel issued on abandonment
	DefaultCancelTimeout = 10 * time.Second

	// DefaultBackgroundThreshold is how long the flow may stay backgrounded before it counts as abandoned
	DefaultBackgroundThreshold = 5 * time.Minute
)

// Guard cancels a transaction left awaiting confirmation when the flow is torn down.
//
// The guard keeps a reference to the controller and reads its live snapshot only at the
// teardown instant, never a value captured at registration. Teardown takes effect once.
// A cancel is never issued while a gateway call is in flight: if the user leaves during
// Initiating or Confirming, the guard lets that call settle and cancels only if it leaves
// a transaction awaiting confirmation.
type Guard struct {
	Controller          *Controller
	Logger              *log.Logger
	CancelTimeout       time.Duration
	BackgroundThreshold time.Duration

	wg       sync.WaitGroup
	mu       sync.Mutex
	timer    *time.Timer
	issued   bool
	tornDown bool
}

// NewGuard creates a guard bound to the controller
func NewGuard(controller *Controller) *Guard {
	return &Guard{
		Controller:          controller,
		Logger:              log.Default(),
		CancelTimeout:       DefaultCancelTimeout,
		BackgroundThreshold: DefaultBackgroundThreshold,
	}
}

// Teardown reports that the user is leaving the flow (back navigation, unmount, signal).
// Logic:
//  1. Only the first call takes effect; the controller refuses new transactions afterwards
//  2. AwaitingConfirmation: issue one cancel in the background and return true without waiting
//  3. Initiating or Confirming: return false and follow the call until it settles
//  4. Any other state: nothing to cancel
func (g *Guard) Teardown(reason string) bool {
	g.mu.Lock()
	if g.tornDown {
		g.mu.Unlock()
		return false
	}
	g.tornDown = true
	g.stopTimerLocked()
	g.mu.Unlock()

	g.Controller.detach()

	return g.abandon(reason, true)
}

// abandon cancels the open transaction if the flow is awaiting confirmation.
// With follow set, an in-flight call is tracked and re-checked once it settles.
func (g *Guard) abandon(reason string, follow bool) bool {
	snap, changed := g.Controller.watch()

	if snap.State == domain.FlowStateAwaitingConfirmation {
		if g.issueCancel(reason) {
			return true
		}
		// a confirm got in first
		snap, changed = g.Controller.watch()
	}

	if follow && (snap.State == domain.FlowStateInitiating || snap.State == domain.FlowStateConfirming) {
		g.wg.Add(1)
		go g.followInFlight(reason, changed)
	}
	return false
}

func (g *Guard) followInFlight(reason string, changed <-chan struct{}) {
	defer g.wg.Done()

	for {
		<-changed

		var snap Snapshot
		snap, changed = g.Controller.watch()
		switch snap.State {
		case domain.FlowStateInitiating, domain.FlowStateConfirming:
			continue
		case domain.FlowStateAwaitingConfirmation:
			if g.issueCancel(reason) {
				return
			}
			continue
		}
		return
	}
}

func (g *Guard) issueCancel(reason string) bool {
	id, err := g.Controller.beginCancel()
	if err != nil {
		// lost the race against a confirm or an explicit cancel
		return false
	}

	g.logger().Printf("flow abandoned (%s), cancelling transaction %s", reason, id)

	g.mu.Lock()
	g.issued = true
	g.mu.Unlock()

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), g.cancelTimeout())
		defer cancel()

		g.Controller.finishCancel(ctx, id)
	}()

	return true
}

// Issued reports whether this guard has issued an abandonment cancel
func (g *Guard) Issued() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.issued
}

// Backgrounded starts the abandonment countdown for an app sent to the background.
// If Foregrounded is not called within BackgroundThreshold, a transaction awaiting
// confirmation at that instant is cancelled. The flow itself stays usable, so a guard
// whose countdown found nothing to cancel still protects transactions opened later.
func (g *Guard) Backgrounded() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.tornDown {
		return
	}
	if g.timer != nil {
		g.timer.Stop()
	}

	threshold := g.BackgroundThreshold
	if threshold <= 0 {
		threshold = DefaultBackgroundThreshold
	}
	g.timer = time.AfterFunc(threshold, func() {
		g.abandon("backgrounded", false)
	})
}

// Foregrounded stops a pending background countdown
func (g *Guard) Foregrounded() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.stopTimerLocked()
}

// Wait blocks until an issued cancel, and any in-flight call followed after teardown,
// has settled or ctx is done.
// Teardown itself never waits; this is for callers that must outlive the cancel,
// such as a process about to exit.
func (g *Guard) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// stopTimerLocked cancels the background countdown; callers hold mu
func (g *Guard) stopTimerLocked() {
	if g.timer != nil {
		g.timer.Stop()
		g.timer = nil
	}
}

func (g *Guard) cancelTimeout() time.Duration {
	if g.CancelTimeout <= 0 {
		return DefaultCancelTimeout
	}
	return g.CancelTimeout
}

func (g *Guard) logger() *log.Logger {
	if g.Logger == nil {
		return log.Default()
	}
	return g.Logger
}

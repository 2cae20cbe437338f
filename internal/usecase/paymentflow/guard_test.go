package paymentflow

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/simaogato/roomsplit-payments/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestGuard(c *Controller) *Guard {
	g := NewGuard(c)
	g.Logger = log.New(io.Discard, "", 0)
	return g
}

func waitGuard(t *testing.T, g *Guard) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, g.Wait(ctx))
}

func TestGuard_TeardownWhileAwaitingCancelsExactlyOnce(t *testing.T) {
	gateway := new(MockGateway)
	c := newTestController(t, gateway)
	guard := newTestGuard(c)

	t1 := uuid.New()
	initiateWith(t, c, gateway, t1)
	gateway.On("Cancel", mock.Anything, t1).Return(nil).Once()

	assert.True(t, guard.Teardown("back navigation"))
	assert.False(t, guard.Teardown("unmount"))
	waitGuard(t, guard)

	assert.True(t, guard.Issued())
	assert.Equal(t, domain.FlowStateCancelled, c.Snapshot().State)
	gateway.AssertNumberOfCalls(t, "Cancel", 1)
	gateway.AssertExpectations(t)
}

func TestGuard_ReadsLiveStateNotRegistrationState(t *testing.T) {
	gateway := new(MockGateway)
	c := newTestController(t, gateway)

	// Registered before any transaction exists
	guard := newTestGuard(c)

	t1 := uuid.New()
	initiateWith(t, c, gateway, t1)
	gateway.On("Confirm", mock.Anything, t1, "BCA").Return(nil).Once()
	_, err := c.Confirm(context.Background())
	require.NoError(t, err)
	require.NoError(t, c.Reset())

	t2 := uuid.New()
	initiateWith(t, c, gateway, t2)
	gateway.On("Cancel", mock.Anything, t2).Return(nil).Once()

	assert.True(t, guard.Teardown("unmount"))
	waitGuard(t, guard)

	gateway.AssertCalled(t, "Cancel", mock.Anything, t2)
	gateway.AssertNotCalled(t, "Cancel", mock.Anything, t1)
	gateway.AssertNumberOfCalls(t, "Cancel", 1)
}

func TestGuard_TeardownDoesNotBlockOnCancel(t *testing.T) {
	gateway := new(MockGateway)
	c := newTestController(t, gateway)
	guard := newTestGuard(c)

	t1 := uuid.New()
	initiateWith(t, c, gateway, t1)

	release := make(chan struct{})
	gateway.On("Cancel", mock.Anything, t1).Run(func(args mock.Arguments) {
		<-release
	}).Return(nil).Once()

	returned := make(chan bool, 1)
	go func() {
		returned <- guard.Teardown("app closed")
	}()

	select {
	case issued := <-returned:
		assert.True(t, issued)
	case <-time.After(time.Second):
		t.Fatal("Teardown blocked on the gateway cancel")
	}

	assert.Equal(t, domain.FlowStateCancelling, c.Snapshot().State)

	close(release)
	waitGuard(t, guard)
	assert.Equal(t, domain.FlowStateCancelled, c.Snapshot().State)
}

func TestGuard_CancelFailureIsSwallowed(t *testing.T) {
	gateway := new(MockGateway)
	c := newTestController(t, gateway)
	guard := newTestGuard(c)

	t1 := uuid.New()
	initiateWith(t, c, gateway, t1)
	gateway.On("Cancel", mock.Anything, t1).Return(errors.New("offline")).Once()

	assert.True(t, guard.Teardown("back"))
	waitGuard(t, guard)

	snap := c.Snapshot()
	assert.Equal(t, domain.FlowStateCancelled, snap.State)
	assert.True(t, domain.IsKind(snap.LastError, domain.KindBestEffort))
	gateway.AssertNumberOfCalls(t, "Cancel", 1)
}

func TestGuard_NoCancelWhileConfirmInFlight(t *testing.T) {
	gateway := new(MockGateway)
	c := newTestController(t, gateway)
	guard := newTestGuard(c)

	t1 := uuid.New()
	initiateWith(t, c, gateway, t1)

	started := make(chan struct{})
	release := make(chan struct{})
	gateway.On("Confirm", mock.Anything, t1, "BCA").Run(func(args mock.Arguments) {
		close(started)
		<-release
	}).Return(nil).Once()

	done := make(chan Snapshot, 1)
	go func() {
		snap, _ := c.Confirm(context.Background())
		done <- snap
	}()
	<-started

	assert.Equal(t, domain.FlowStateConfirming, c.Snapshot().State)
	assert.False(t, guard.Teardown("back navigation"))

	close(release)
	snap := <-done
	waitGuard(t, guard)

	assert.Equal(t, domain.FlowStateConfirmed, snap.State)
	gateway.AssertNotCalled(t, "Cancel", mock.Anything, mock.Anything)
}

func TestGuard_ConfirmFailureAfterTeardownIsCancelledOnceSettled(t *testing.T) {
	gateway := new(MockGateway)
	c := newTestController(t, gateway)
	guard := newTestGuard(c)

	t1 := uuid.New()
	initiateWith(t, c, gateway, t1)

	started := make(chan struct{})
	release := make(chan struct{})
	gateway.On("Confirm", mock.Anything, t1, "BCA").Run(func(args mock.Arguments) {
		close(started)
		<-release
	}).Return(errors.New("gateway timeout")).Once()
	gateway.On("Cancel", mock.Anything, t1).Return(nil).Once()

	done := make(chan struct{})
	go func() {
		_, _ = c.Confirm(context.Background())
		close(done)
	}()
	<-started

	assert.False(t, guard.Teardown("back navigation"))
	time.Sleep(20 * time.Millisecond)
	gateway.AssertNotCalled(t, "Cancel", mock.Anything, mock.Anything)

	close(release)
	<-done
	waitGuard(t, guard)

	assert.True(t, guard.Issued())
	assert.Equal(t, domain.FlowStateCancelled, c.Snapshot().State)
	gateway.AssertNumberOfCalls(t, "Cancel", 1)
}

func TestGuard_InitiateSettlingAfterTeardownIsCancelled(t *testing.T) {
	gateway := new(MockGateway)
	c := newTestController(t, gateway)
	guard := newTestGuard(c)

	t1 := uuid.New()
	started := make(chan struct{})
	release := make(chan struct{})
	gateway.On("Initiate", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		close(started)
		<-release
	}).Return(&domain.InitiateResult{ID: t1, ReferenceNumber: "PAY-1"}, nil).Once()
	gateway.On("Cancel", mock.Anything, t1).Return(nil).Once()

	done := make(chan struct{})
	go func() {
		_, _ = c.Initiate(context.Background())
		close(done)
	}()
	<-started

	assert.Equal(t, domain.FlowStateInitiating, c.Snapshot().State)
	assert.False(t, guard.Teardown("unmount"))
	gateway.AssertNotCalled(t, "Cancel", mock.Anything, mock.Anything)

	close(release)
	<-done
	waitGuard(t, guard)

	assert.Equal(t, domain.FlowStateCancelled, c.Snapshot().State)
	gateway.AssertNumberOfCalls(t, "Cancel", 1)
}

func TestGuard_FailedInitiateAfterTeardownNeedsNoCancel(t *testing.T) {
	gateway := new(MockGateway)
	c := newTestController(t, gateway)
	guard := newTestGuard(c)

	started := make(chan struct{})
	release := make(chan struct{})
	gateway.On("Initiate", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		close(started)
		<-release
	}).Return(nil, errors.New("network down")).Once()

	done := make(chan struct{})
	go func() {
		_, _ = c.Initiate(context.Background())
		close(done)
	}()
	<-started

	assert.False(t, guard.Teardown("unmount"))

	close(release)
	<-done
	waitGuard(t, guard)

	assert.False(t, guard.Issued())
	assert.Equal(t, domain.FlowStateSelectingBank, c.Snapshot().State)
	gateway.AssertNotCalled(t, "Cancel", mock.Anything, mock.Anything)
}

func TestGuard_TeardownRefusesNewTransactions(t *testing.T) {
	gateway := new(MockGateway)
	c := newTestController(t, gateway)
	guard := newTestGuard(c)

	assert.False(t, guard.Teardown("unmount"))

	_, err := c.Initiate(context.Background())

	assert.ErrorIs(t, err, domain.ErrFlowTornDown)
	assert.Equal(t, domain.FlowStateSelectingBank, c.Snapshot().State)
	gateway.AssertNotCalled(t, "Initiate", mock.Anything, mock.Anything)
}

func TestGuard_NoSecondCancelAfterExplicitCancel(t *testing.T) {
	gateway := new(MockGateway)
	c := newTestController(t, gateway)
	guard := newTestGuard(c)

	t1 := uuid.New()
	initiateWith(t, c, gateway, t1)

	started := make(chan struct{})
	release := make(chan struct{})
	gateway.On("Cancel", mock.Anything, t1).Run(func(args mock.Arguments) {
		close(started)
		<-release
	}).Return(nil).Once()

	done := make(chan struct{})
	go func() {
		_, _ = c.Cancel(context.Background())
		close(done)
	}()
	<-started

	assert.False(t, guard.Teardown("back navigation"))

	close(release)
	<-done
	waitGuard(t, guard)

	gateway.AssertNumberOfCalls(t, "Cancel", 1)
}

func TestGuard_BackgroundedPastThreshold(t *testing.T) {
	gateway := new(MockGateway)
	c := newTestController(t, gateway)
	guard := newTestGuard(c)
	guard.BackgroundThreshold = 20 * time.Millisecond

	t1 := uuid.New()
	initiateWith(t, c, gateway, t1)
	gateway.On("Cancel", mock.Anything, t1).Return(nil).Once()

	guard.Backgrounded()

	assert.Eventually(t, guard.Issued, time.Second, 5*time.Millisecond)
	waitGuard(t, guard)
	assert.Equal(t, domain.FlowStateCancelled, c.Snapshot().State)
}

func TestGuard_BackgroundThresholdWithNothingOpenKeepsGuardArmed(t *testing.T) {
	gateway := new(MockGateway)
	c := newTestController(t, gateway)
	guard := newTestGuard(c)
	guard.BackgroundThreshold = 10 * time.Millisecond

	// Countdown expires while the user is still choosing a bank
	guard.Backgrounded()
	time.Sleep(50 * time.Millisecond)
	guard.Foregrounded()
	assert.False(t, guard.Issued())

	t1 := uuid.New()
	initiateWith(t, c, gateway, t1)
	gateway.On("Cancel", mock.Anything, t1).Return(nil).Once()

	assert.True(t, guard.Teardown("back navigation"))
	waitGuard(t, guard)

	assert.Equal(t, domain.FlowStateCancelled, c.Snapshot().State)
	gateway.AssertNumberOfCalls(t, "Cancel", 1)
}

func TestGuard_ForegroundedBeforeThreshold(t *testing.T) {
	gateway := new(MockGateway)
	c := newTestController(t, gateway)
	guard := newTestGuard(c)
	guard.BackgroundThreshold = 50 * time.Millisecond

	initiateWith(t, c, gateway, uuid.New())

	guard.Backgrounded()
	guard.Foregrounded()
	time.Sleep(100 * time.Millisecond)

	assert.False(t, guard.Issued())
	assert.Equal(t, domain.FlowStateAwaitingConfirmation, c.Snapshot().State)
	gateway.AssertNotCalled(t, "Cancel", mock.Anything, mock.Anything)
}

// countingGateway records how many calls overlap and which IDs were confirmed or cancelled
type countingGateway struct {
	inFlight    atomic.Int32
	maxInFlight atomic.Int32

	mu        sync.Mutex
	initiated []uuid.UUID
	touched   []uuid.UUID
}

func (g *countingGateway) enter() func() {
	n := g.inFlight.Add(1)
	for {
		peak := g.maxInFlight.Load()
		if n <= peak || g.maxInFlight.CompareAndSwap(peak, n) {
			break
		}
	}
	time.Sleep(time.Millisecond)
	return func() { g.inFlight.Add(-1) }
}

func (g *countingGateway) Initiate(ctx context.Context, req domain.InitiateRequest) (*domain.InitiateResult, error) {
	defer g.enter()()
	id := uuid.New()
	g.mu.Lock()
	g.initiated = append(g.initiated, id)
	g.mu.Unlock()
	return &domain.InitiateResult{ID: id, ReferenceNumber: "PAY-" + id.String()[:8]}, nil
}

func (g *countingGateway) Confirm(ctx context.Context, id uuid.UUID, bankName string) error {
	defer g.enter()()
	g.mu.Lock()
	g.touched = append(g.touched, id)
	g.mu.Unlock()
	return nil
}

func (g *countingGateway) Cancel(ctx context.Context, id uuid.UUID) error {
	defer g.enter()()
	g.mu.Lock()
	g.touched = append(g.touched, id)
	g.mu.Unlock()
	return nil
}

func TestController_ConcurrentActionsNeverOverlapGatewayCalls(t *testing.T) {
	gateway := &countingGateway{}
	catalog := new(MockCatalog)
	catalog.On("ListEnabledBanks", mock.Anything, testRoomID).Return(testBanks, nil)

	c, err := NewController(gateway, catalog, testInput())
	require.NoError(t, err)
	c.Logger = log.New(io.Discard, "", 0)
	_, err = c.LoadBanks(context.Background())
	require.NoError(t, err)

	for round := 0; round < 20; round++ {
		var wg sync.WaitGroup
		actions := []func(){
			func() { _, _ = c.Initiate(context.Background()) },
			func() { _, _ = c.Confirm(context.Background()) },
			func() { _, _ = c.Cancel(context.Background()) },
			func() { _, _ = c.Initiate(context.Background()) },
			func() { _, _ = c.Confirm(context.Background()) },
		}
		for _, action := range actions {
			wg.Add(1)
			go func(fn func()) {
				defer wg.Done()
				fn()
			}(action)
		}
		wg.Wait()

		// Drive whatever is left to a terminal state so the next round starts fresh
		if c.Snapshot().State == domain.FlowStateAwaitingConfirmation {
			_, _ = c.Cancel(context.Background())
		}
		_ = c.Reset()
	}

	assert.LessOrEqual(t, gateway.maxInFlight.Load(), int32(1))

	initiated := make(map[uuid.UUID]int)
	for _, id := range gateway.initiated {
		initiated[id]++
	}
	closing := make(map[uuid.UUID]int)
	for _, id := range gateway.touched {
		_, ok := initiated[id]
		assert.True(t, ok, "confirm/cancel issued for unknown transaction %s", id)
		closing[id]++
	}
	for id, n := range closing {
		assert.Equal(t, 1, n, "transaction %s was confirmed or cancelled more than once", id)
	}
}

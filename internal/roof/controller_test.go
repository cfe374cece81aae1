package roof

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/sweeney/roof-driver/internal/engine"
	"github.com/sweeney/roof-driver/internal/gpio"
	"github.com/sweeney/roof-driver/internal/lights"
	"github.com/sweeney/roof-driver/internal/park"
	"github.com/sweeney/roof-driver/internal/pinmap"
)

// Pin assignments shared by the controller tests.
const (
	pinOpen   = 17
	pinClose  = 27
	pinAbort  = 22
	pinLock   = 23
	pinAux    = 24
	pinOpened = 5
	pinClosed = 6
	pinLocked = 13
	pinAuxSt  = 19
)

func testPins(t *testing.T) *pinmap.Map {
	t.Helper()
	m, err := pinmap.New(
		[]pinmap.OutputDef{
			{Func: pinmap.OutOpen, Pin: pinOpen, ActiveHigh: true, Pulse: pinmap.Pulse100},
			{Func: pinmap.OutClose, Pin: pinClose, ActiveHigh: true, Pulse: pinmap.Pulse100},
			{Func: pinmap.OutAbort, Pin: pinAbort, ActiveHigh: true, Pulse: pinmap.Pulse100},
			{Func: pinmap.OutLock, Pin: pinLock, ActiveHigh: true, Pulse: pinmap.NoLimit},
			{Func: pinmap.OutAux, Pin: pinAux, ActiveHigh: true, Pulse: pinmap.NoLimit},
		},
		[]pinmap.InputDef{
			{Func: pinmap.InOpened, Pin: pinOpened, ActiveHigh: true},
			{Func: pinmap.InClosed, Pin: pinClosed, ActiveHigh: true},
			{Func: pinmap.InLocked, Pin: pinLocked, ActiveHigh: true},
			{Func: pinmap.InAuxState, Pin: pinAuxSt, ActiveHigh: true},
		},
	)
	if err != nil {
		t.Fatalf("build map: %v", err)
	}
	return m
}

type harness struct {
	ctl   *Controller
	fake  *gpio.Fake
	store *park.Store
	t0    time.Time
}

// newHarness builds a connected controller over a fake session with the
// roof parked at the closed limit.
func newHarness(t *testing.T) *harness {
	t.Helper()
	fake := gpio.NewFake()
	fake.SetLevel(pinClosed, gpio.High)

	store := park.NewStore(filepath.Join(t.TempDir(), "park.json"))
	ctl := New(engine.New(testPins(t)), store, Config{
		Timeout:    15 * time.Second,
		IdlePoll:   time.Second,
		ActivePoll: 500 * time.Millisecond,
	})
	ctl.logf = func(string, ...interface{}) {}

	if err := ctl.Connect(fake); err != nil {
		t.Fatalf("connect: %v", err)
	}
	return &harness{
		ctl:   ctl,
		fake:  fake,
		store: store,
		t0:    time.Date(2026, 3, 1, 22, 0, 0, 0, time.UTC),
	}
}

// at returns a time d after the harness epoch.
func (h *harness) at(d time.Duration) time.Time {
	return h.t0.Add(d)
}

func eventKinds(events []Event) []EventKind {
	kinds := make([]EventKind, len(events))
	for i, e := range events {
		kinds[i] = e.Kind
	}
	return kinds
}

func TestOpenCycle(t *testing.T) {
	h := newHarness(t)

	if err := h.ctl.RequestMove(DirectionOpen, h.t0); err != nil {
		t.Fatalf("request open: %v", err)
	}
	if h.ctl.State() != Opening {
		t.Fatalf("state: got %s, want OPENING", h.ctl.State())
	}
	// The open relay was pulsed: assert then release.
	ops := h.fake.WritesTo(pinOpen)
	if len(ops) != 2 || ops[0].Level != gpio.High || ops[1].Level != gpio.Low {
		t.Fatalf("open relay writes: got %v", ops)
	}

	// Mid-travel tick: still opening, faster polling, OPENING event drains.
	h.fake.SetLevel(pinClosed, gpio.Low)
	res := h.ctl.Tick(h.at(2 * time.Second))
	if res.State != Opening {
		t.Errorf("state: got %s, want OPENING", res.State)
	}
	if res.NextPoll != 500*time.Millisecond {
		t.Errorf("next poll: got %v, want 500ms while moving", res.NextPoll)
	}
	if kinds := eventKinds(res.Events); len(kinds) != 1 || kinds[0] != EventOpening {
		t.Errorf("events: got %v, want [OPENING]", kinds)
	}
	if res.Lights.Aggregate != lights.Busy {
		t.Errorf("aggregate light: got %s, want BUSY", res.Lights.Aggregate)
	}

	// Limit switch trips: move completes.
	h.fake.SetLevel(pinOpened, gpio.High)
	res = h.ctl.Tick(h.at(4 * time.Second))
	if res.State != Idle {
		t.Errorf("state: got %s, want IDLE", res.State)
	}
	if kinds := eventKinds(res.Events); len(kinds) != 1 || kinds[0] != EventOpened {
		t.Errorf("events: got %v, want [OPENED]", kinds)
	}
	if res.NextPoll != time.Second {
		t.Errorf("next poll: got %v, want 1s when idle", res.NextPoll)
	}
	if res.Lights.Opened != lights.Ok || res.Lights.Aggregate != lights.Ok {
		t.Errorf("lights: got %+v", res.Lights)
	}
	// Park state records the roof away from the closed limit.
	if got := h.store.Load(); got != park.Unparked {
		t.Errorf("park state: got %s, want UNPARKED", got)
	}

	c := h.ctl.Counters()
	if c.Moves != 1 || c.Opened != 1 {
		t.Errorf("counters: got %+v", c)
	}
}

func TestCloseCycle(t *testing.T) {
	h := newHarness(t)
	// Start from the opened limit.
	h.fake.SetLevel(pinClosed, gpio.Low)
	h.fake.SetLevel(pinOpened, gpio.High)

	if err := h.ctl.RequestMove(DirectionClose, h.t0); err != nil {
		t.Fatalf("request close: %v", err)
	}
	if h.ctl.State() != Closing {
		t.Fatalf("state: got %s, want CLOSING", h.ctl.State())
	}

	h.fake.SetLevel(pinOpened, gpio.Low)
	h.fake.SetLevel(pinClosed, gpio.High)
	res := h.ctl.Tick(h.at(3 * time.Second))
	if kinds := eventKinds(res.Events); len(kinds) != 2 || kinds[0] != EventClosing || kinds[1] != EventClosed {
		t.Errorf("events: got %v, want [CLOSING CLOSED]", kinds)
	}
	if got := h.store.Load(); got != park.Parked {
		t.Errorf("park state: got %s, want PARKED", got)
	}
}

func TestMoveTimeout(t *testing.T) {
	h := newHarness(t)

	if err := h.ctl.RequestMove(DirectionOpen, h.t0); err != nil {
		t.Fatalf("request open: %v", err)
	}
	h.fake.SetLevel(pinClosed, gpio.Low)

	// One tick short of the deadline: still opening.
	res := h.ctl.Tick(h.at(14 * time.Second))
	if res.State != Opening {
		t.Fatalf("state at 14s: got %s, want OPENING", res.State)
	}

	// Deadline reached with no limit switch: soft failure.
	res = h.ctl.Tick(h.at(15 * time.Second))
	if res.State != Idle {
		t.Errorf("state: got %s, want IDLE after timeout", res.State)
	}
	var timeout *Event
	for i := range res.Events {
		if res.Events[i].Kind == EventTimeout {
			timeout = &res.Events[i]
		}
	}
	if timeout == nil {
		t.Fatalf("events: got %v, want TIMEOUT", eventKinds(res.Events))
	}
	if timeout.Detail != "OPEN" {
		t.Errorf("timeout detail: got %q, want OPEN", timeout.Detail)
	}
	// The expired direction alerts on the matching light.
	if res.Lights.Opened != lights.Alert || res.Lights.Aggregate != lights.Alert {
		t.Errorf("lights after timeout: got %+v", res.Lights)
	}
	if h.ctl.Counters().Timeouts != 1 {
		t.Errorf("timeout counter: got %d, want 1", h.ctl.Counters().Timeouts)
	}
}

func TestRequestMoveWhileBusyIsAccepted(t *testing.T) {
	h := newHarness(t)

	if err := h.ctl.RequestMove(DirectionOpen, h.t0); err != nil {
		t.Fatal(err)
	}
	h.fake.SetLevel(pinClosed, gpio.Low)

	// A second request while moving is accepted but does nothing.
	if err := h.ctl.RequestMove(DirectionOpen, h.at(time.Second)); err != nil {
		t.Errorf("second request: got %v, want nil", err)
	}
	if got := len(h.fake.WritesTo(pinOpen)); got != 2 {
		t.Errorf("open relay writes: got %d, want 2 (single pulse)", got)
	}
	if h.ctl.Counters().Moves != 1 {
		t.Errorf("moves counter: got %d, want 1", h.ctl.Counters().Moves)
	}
}

func TestRequestMoveAlreadyAtLimit(t *testing.T) {
	h := newHarness(t)

	err := h.ctl.RequestMove(DirectionClose, h.t0)
	if !errors.Is(err, ErrAlreadyAtLimit) {
		t.Fatalf("got %v, want ErrAlreadyAtLimit", err)
	}
	if len(h.fake.WritesTo(pinClose)) != 0 {
		t.Error("no relay pulse expected")
	}
	// Confirming the closed limit refreshes the park state.
	if got := h.store.Load(); got != park.Parked {
		t.Errorf("park state: got %s, want PARKED", got)
	}
}

func TestRequestMoveBlockedByLock(t *testing.T) {
	h := newHarness(t)
	h.fake.SetLevel(pinLocked, gpio.High)

	err := h.ctl.RequestMove(DirectionOpen, h.t0)
	if !errors.Is(err, engine.ErrLocked) {
		t.Fatalf("got %v, want ErrLocked", err)
	}
	if len(h.fake.WritesTo(pinOpen)) != 0 {
		t.Error("no relay pulse expected while locked")
	}
}

func TestAbortMidTravel(t *testing.T) {
	h := newHarness(t)

	if err := h.ctl.RequestMove(DirectionOpen, h.t0); err != nil {
		t.Fatal(err)
	}
	h.fake.SetLevel(pinClosed, gpio.Low) // roof left the closed limit

	if err := h.ctl.Abort(h.at(2 * time.Second)); err != nil {
		t.Fatalf("abort: %v", err)
	}
	if h.ctl.State() != Idle {
		t.Errorf("state: got %s, want IDLE after abort", h.ctl.State())
	}
	ops := h.fake.WritesTo(pinAbort)
	if len(ops) != 2 {
		t.Errorf("abort relay writes: got %v, want a pulse", ops)
	}
	// Roof is stranded between limits: park state is forgotten.
	if got := h.store.Load(); got != park.Unknown {
		t.Errorf("park state: got %s, want UNKNOWN", got)
	}

	res := h.ctl.Tick(h.at(3 * time.Second))
	kinds := eventKinds(res.Events)
	if len(kinds) != 2 || kinds[0] != EventOpening || kinds[1] != EventAborted {
		t.Errorf("events: got %v, want [OPENING ABORTED]", kinds)
	}
	if h.ctl.Counters().Aborts != 1 {
		t.Errorf("abort counter: got %d, want 1", h.ctl.Counters().Aborts)
	}
}

func TestAbortIdleIsNoOp(t *testing.T) {
	h := newHarness(t)

	if err := h.ctl.Abort(h.t0); err != nil {
		t.Fatalf("abort: %v", err)
	}
	if len(h.fake.WritesTo(pinAbort)) != 0 {
		t.Error("stationary roof should not pulse the abort relay")
	}
	if h.ctl.Counters().Aborts != 0 {
		t.Error("no abort should be counted")
	}
}

func TestAbortReturnsIdleEvenWhenRelayFails(t *testing.T) {
	h := newHarness(t)

	if err := h.ctl.RequestMove(DirectionOpen, h.t0); err != nil {
		t.Fatal(err)
	}
	h.fake.SetLevel(pinClosed, gpio.Low)
	h.fake.WriteErr[pinAbort] = errors.New("relay stuck")

	err := h.ctl.Abort(h.at(time.Second))
	if err == nil {
		t.Error("expected relay error to surface")
	}
	if h.ctl.State() != Idle {
		t.Errorf("state: got %s, want IDLE regardless of relay failure", h.ctl.State())
	}
}

func TestSetLockBypassesInterlock(t *testing.T) {
	h := newHarness(t)
	h.fake.SetLevel(pinLocked, gpio.High) // already locked

	// Releasing the lock must work even while the lock reads engaged.
	if err := h.ctl.SetLock(false, h.t0); err != nil {
		t.Fatalf("set lock off: %v", err)
	}
	ops := h.fake.WritesTo(pinLock)
	if len(ops) != 1 || ops[0].Level != gpio.Low {
		t.Errorf("lock relay writes: got %v", ops)
	}

	res := h.ctl.Tick(h.at(time.Second))
	if kinds := eventKinds(res.Events); len(kinds) != 1 || kinds[0] != EventLockOff {
		t.Errorf("events: got %v, want [LOCK_OFF]", kinds)
	}
}

func TestSetAux(t *testing.T) {
	h := newHarness(t)

	if err := h.ctl.SetAux(true, h.t0); err != nil {
		t.Fatalf("set aux: %v", err)
	}
	ops := h.fake.WritesTo(pinAux)
	if len(ops) != 1 || ops[0].Level != gpio.High {
		t.Errorf("aux relay writes: got %v", ops)
	}
	res := h.ctl.Tick(h.at(time.Second))
	if kinds := eventKinds(res.Events); len(kinds) != 1 || kinds[0] != EventAuxOn {
		t.Errorf("events: got %v, want [AUX_ON]", kinds)
	}
}

func TestTickReflectsSwitches(t *testing.T) {
	h := newHarness(t)
	h.fake.SetLevel(pinLocked, gpio.High)
	h.fake.SetLevel(pinAuxSt, gpio.High)

	res := h.ctl.Tick(h.t0)
	if !res.Closed || res.Opened {
		t.Errorf("switches: opened=%v closed=%v", res.Opened, res.Closed)
	}
	if !res.Locked || !res.Aux {
		t.Errorf("switches: locked=%v aux=%v", res.Locked, res.Aux)
	}
	if res.Lights.Locked != lights.Alert || res.Lights.Closed != lights.Ok {
		t.Errorf("lights: got %+v", res.Lights)
	}
}

func TestReadFailureKeepsLastKnownState(t *testing.T) {
	h := newHarness(t)

	res := h.ctl.Tick(h.t0)
	if !res.Closed {
		t.Fatal("setup: roof should read closed")
	}

	h.fake.FailReads(pinClosed)
	res = h.ctl.Tick(h.at(time.Second))
	if !res.Closed {
		t.Error("failed read should keep the last known switch state")
	}
}

func TestConsecutiveFaultsForceReset(t *testing.T) {
	h := newHarness(t)

	for _, pin := range []int{pinOpened, pinClosed, pinLocked, pinAuxSt} {
		h.fake.FailReads(pin)
	}

	// 4 failed reads per tick; the count passes 10 on the third tick.
	res := h.ctl.Tick(h.at(1 * time.Second))
	if res.ResetNeeded {
		t.Fatal("reset should not trigger after 4 failures")
	}
	res = h.ctl.Tick(h.at(2 * time.Second))
	if res.ResetNeeded {
		t.Fatal("reset should not trigger after 8 failures")
	}
	res = h.ctl.Tick(h.at(3 * time.Second))
	if !res.ResetNeeded {
		t.Fatal("reset should trigger after 11 failures")
	}

	// Reconnect with a fresh session clears the streak.
	fresh := gpio.NewFake()
	fresh.SetLevel(pinClosed, gpio.High)
	if err := h.ctl.Reconnect(fresh); err != nil {
		t.Fatalf("reconnect: %v", err)
	}
	res = h.ctl.Tick(h.at(4 * time.Second))
	if res.ResetNeeded {
		t.Error("fresh session should not need a reset")
	}
	if h.ctl.Counters().Resets != 1 {
		t.Errorf("reset counter: got %d, want 1", h.ctl.Counters().Resets)
	}
}

func TestSingleGoodReadClearsFaultStreak(t *testing.T) {
	h := newHarness(t)

	for _, pin := range []int{pinOpened, pinClosed, pinLocked, pinAuxSt} {
		h.fake.FailReads(pin)
	}
	h.ctl.Tick(h.at(1 * time.Second))
	h.ctl.Tick(h.at(2 * time.Second))

	// One switch recovers: the streak resets before reaching the threshold.
	h.fake.ClearReadFailure(pinClosed)
	res := h.ctl.Tick(h.at(3 * time.Second))
	if res.ResetNeeded {
		t.Error("a successful read should clear the failure streak")
	}
}

func TestConnectSeedsFromParkStateWhenSwitchesUnreadable(t *testing.T) {
	store := park.NewStore(filepath.Join(t.TempDir(), "park.json"))
	if err := store.Save(true); err != nil {
		t.Fatal(err)
	}

	fake := gpio.NewFake()
	fake.FailReads(pinOpened)
	fake.FailReads(pinClosed)

	ctl := New(engine.New(testPins(t)), store, Config{})
	ctl.logf = func(string, ...interface{}) {}
	if err := ctl.Connect(fake); err != nil {
		t.Fatalf("connect: %v", err)
	}

	// Saved park state says closed; a close request is already at limit.
	err := ctl.RequestMove(DirectionClose, time.Now())
	if !errors.Is(err, ErrAlreadyAtLimit) {
		t.Errorf("got %v, want ErrAlreadyAtLimit from seeded park state", err)
	}
}

func TestTickWithoutSessionIsInert(t *testing.T) {
	h := newHarness(t)
	if err := h.ctl.Disconnect(); err != nil {
		t.Fatalf("disconnect: %v", err)
	}

	res := h.ctl.Tick(h.t0)
	if res.State != Idle {
		t.Errorf("state: got %s, want IDLE", res.State)
	}
	if res.ResetNeeded {
		t.Error("disconnected controller should not request a reset")
	}
}

func TestDefaultConfigValues(t *testing.T) {
	ctl := New(engine.New(testPins(t)), park.NewStore(filepath.Join(t.TempDir(), "p.json")), Config{})
	if ctl.cfg.Timeout != 15*time.Second {
		t.Errorf("timeout: got %v, want 15s", ctl.cfg.Timeout)
	}
	if ctl.cfg.IdlePoll != time.Second {
		t.Errorf("idle poll: got %v, want 1s", ctl.cfg.IdlePoll)
	}
	if ctl.cfg.ActivePoll != 500*time.Millisecond {
		t.Errorf("active poll: got %v, want 500ms", ctl.cfg.ActivePoll)
	}
}

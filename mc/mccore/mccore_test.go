package mccore_test

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/ldowney/slaprint/mc/block"
	"github.com/ldowney/slaprint/mc/cmdmap"
	"github.com/ldowney/slaprint/mc/limits"
	"github.com/ldowney/slaprint/mc/mccore"
	"github.com/ldowney/slaprint/mc/statemachine"
	"github.com/ldowney/slaprint/mc/status"
)

type fakePulser struct{}

func (fakePulser) SetDirection(axis block.Axis, reverse bool) {}
func (fakePulser) Pulse(axis block.Axis)                      {}

func neverHit() bool { return false }

func newTestCore(t *testing.T) *mccore.Core {
	t.Helper()
	pair := &limits.Pair{Z: limits.New(neverHit), R: limits.New(neverHit)}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return mccore.New(fakePulser{}, pair, 8, 4, 4, log)
}

func configureAxis(t *testing.T, c *mccore.Core, axis block.Axis) {
	t.Helper()
	s := c.ZSettings
	if axis == block.AxisR {
		s = c.RSettings
	}
	if err := s.SetStepAngle(1800); err != nil {
		t.Fatal(err)
	}
	if err := s.SetUnitsPerRevolution(8000); err != nil {
		t.Fatal(err)
	}
	if err := s.SetMicrosteppingMode(4); err != nil {
		t.Fatal(err)
	}
	if err := s.SetMaxJerk(2_000_000_000); err != nil {
		t.Fatal(err)
	}
	if err := s.SetSpeed(6000); err != nil {
		t.Fatal(err)
	}
}

// waitForState drives the mainline directly from the test goroutine
// (only mc/stepgen's DDA goroutines run concurrently, touching only
// their own Generator state) until c reaches want or timeout elapses.
func waitForState(t *testing.T, c *mccore.Core, want statemachine.State, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		c.Step()
		if c.State() == want {
			return
		}
		time.Sleep(50 * time.Microsecond)
	}
	t.Fatalf("timed out waiting for state %v, last state %v", want, c.State())
}

func TestDispatchUnknownEventForState(t *testing.T) {
	c := newTestCore(t)
	// MoveZAxisRequested is a recognized event but Disabled has no row
	// for it.
	code := c.Dispatch(cmdmap.MoveZAxisRequested, cmdmap.Mapped{})
	if code != status.CommandUnknown {
		t.Fatalf("expected CommandUnknown, got %v", code)
	}
	if c.State() != statemachine.Disabled {
		t.Fatalf("expected state to stay Disabled, got %v", c.State())
	}
}

func TestHomeAlreadyAtLimitSkipsMotion(t *testing.T) {
	c := newTestCore(t)
	configureAxis(t, c, block.AxisZ)

	c.Dispatch(cmdmap.EnableRequested, cmdmap.Mapped{})
	if c.State() != statemachine.Ready {
		t.Fatalf("expected Ready after enable, got %v", c.State())
	}

	c.Limits.Z.SetLevelFunc(func() bool { return true })

	c.Dispatch(cmdmap.HomeZAxisRequested, cmdmap.Mapped{Parameter: 5000})
	if c.State() != statemachine.ReadyForAction {
		t.Fatalf("expected homing already at limit to land ReadyForAction directly, got %v", c.State())
	}
	if c.Ring.Available() != c.Ring.Size() {
		t.Fatalf("expected no block queued when already at limit, available=%d size=%d",
			c.Ring.Available(), c.Ring.Size())
	}
}

func TestEnableConfigureMoveCompletes(t *testing.T) {
	c := newTestCore(t)
	configureAxis(t, c, block.AxisZ)

	c.Dispatch(cmdmap.EnableRequested, cmdmap.Mapped{})

	done := make(chan struct{})
	defer close(done)
	go c.ZGen.Run(done)
	go c.RGen.Run(done)

	if code := c.Dispatch(cmdmap.MoveZAxisRequested, cmdmap.Mapped{Parameter: 50}); code != status.Success {
		t.Fatalf("expected QueueLine success, got status %v", code)
	}
	if c.State() != statemachine.MovingAxis {
		t.Fatalf("expected MovingAxis, got %v", c.State())
	}

	waitForState(t, c, statemachine.ReadyForAction, 2*time.Second)

	if c.Ring.Available() != c.Ring.Size() {
		t.Fatalf("expected the ring fully drained after motion completed")
	}
}

func TestPauseResumeReturnsToMoving(t *testing.T) {
	c := newTestCore(t)
	configureAxis(t, c, block.AxisZ)
	c.Dispatch(cmdmap.EnableRequested, cmdmap.Mapped{})

	done := make(chan struct{})
	defer close(done)
	go c.ZGen.Run(done)
	go c.RGen.Run(done)

	// A long move gives the pause plenty of room to land mid-flight
	// rather than racing the block to completion.
	c.Dispatch(cmdmap.MoveZAxisRequested, cmdmap.Mapped{Parameter: 200000})
	if c.State() != statemachine.MovingAxis {
		t.Fatalf("expected MovingAxis, got %v", c.State())
	}

	// Let a few segments run before asking to pause.
	for i := 0; i < 20; i++ {
		c.Step()
		time.Sleep(50 * time.Microsecond)
	}

	c.Dispatch(cmdmap.PauseRequested, cmdmap.Mapped{})
	if c.State() != statemachine.MovingAxisDeceleratingForPause {
		t.Fatalf("expected MovingAxisDeceleratingForPause, got %v", c.State())
	}

	waitForState(t, c, statemachine.MovingAxisPaused, 2*time.Second)

	c.Dispatch(cmdmap.ResumeRequested, cmdmap.Mapped{})
	if c.State() != statemachine.MovingAxis {
		t.Fatalf("expected resume to return to MovingAxis, got %v", c.State())
	}
}

func TestResetClearsRingAndEvents(t *testing.T) {
	c := newTestCore(t)
	configureAxis(t, c, block.AxisZ)
	c.Dispatch(cmdmap.EnableRequested, cmdmap.Mapped{})
	c.Dispatch(cmdmap.MoveZAxisRequested, cmdmap.Mapped{Parameter: 500})

	if c.Ring.Available() == c.Ring.Size() {
		t.Fatal("expected a block queued before reset")
	}

	c.Dispatch(cmdmap.ResetRequested, cmdmap.Mapped{})
	if c.State() != statemachine.Disabled {
		t.Fatalf("expected Disabled immediately after reset, got %v", c.State())
	}

	// The reinitialization itself is deferred to the top of the next
	// Step, per spec.md's "takes effect before any pending commands
	// are processed".
	c.Step()
	if c.Ring.Available() != c.Ring.Size() {
		t.Fatalf("expected ring cleared after reset took effect, available=%d size=%d",
			c.Ring.Available(), c.Ring.Size())
	}
}

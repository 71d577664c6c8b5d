package sequencer

import (
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/ldowney/slaprint/hs/layersettings"
	"github.com/ldowney/slaprint/hs/status"
	"github.com/ldowney/slaprint/hs/timerqueue"
	"github.com/ldowney/slaprint/mc/frame"
	mcstatus "github.com/ldowney/slaprint/mc/status"
)

// fakeBus answers every status read with Success and never actually
// parks a batch anywhere; it immediately signals motion-complete for
// every batch it sees, as if every MC action finished instantly.
type fakeBus struct {
	mu   sync.Mutex
	sent [][]frame.Frame
	irq  chan struct{}
}

func newFakeBus() *fakeBus { return &fakeBus{irq: make(chan struct{}, 64)} }

func (f *fakeBus) WriteFrames(frames []frame.Frame) error {
	f.mu.Lock()
	f.sent = append(f.sent, frames)
	f.mu.Unlock()
	f.irq <- struct{}{}
	return nil
}

func (f *fakeBus) ReadStatus() (mcstatus.Code, error) { return mcstatus.Success, nil }
func (f *fakeBus) Notify() <-chan struct{}            { return f.irq }

type fakeSink struct {
	mu   sync.Mutex
	last status.Snapshot
}

func (s *fakeSink) Publish(snap status.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = snap
}

func (s *fakeSink) State() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last.State
}

type fakeImages struct{}

func (fakeImages) SetImage(int) {}
func (fakeImages) ShowBlack()    {}

func shortConfig() Config {
	return Config{
		MinTimeout:          time.Second,
		TimeoutMarginFactor: 2,
		JamMaxRetries:       2,
		JamSearchDegrees:    400,
	}
}

// manualBus never acknowledges a batch on its own, so a sequencer
// built on it parks deterministically in whatever state it first
// reaches, independent of goroutine scheduling — needed for the door
// test, which must observe a specific in-flight state rather than
// race an auto-completing bus through the whole print.
type manualBus struct {
	mu   sync.Mutex
	sent [][]frame.Frame
	irq  chan struct{}
}

func newManualBus() *manualBus { return &manualBus{irq: make(chan struct{})} }

func (m *manualBus) WriteFrames(frames []frame.Frame) error {
	m.mu.Lock()
	m.sent = append(m.sent, frames)
	m.mu.Unlock()
	return nil
}
func (m *manualBus) ReadStatus() (mcstatus.Code, error) { return mcstatus.Success, nil }
func (m *manualBus) Notify() <-chan struct{}            { return m.irq }

func testResolver() *layersettings.Resolver {
	base := layersettings.NewBase()
	base.Set(layersettings.Model, "modelExposure", 0.001)
	base.Set(layersettings.Model, layersettings.NamePressWaitSec, 0.001)
	base.Set(layersettings.Model, layersettings.NamePreExposureDelaySec, 0.001)
	return layersettings.NewResolver(base, layersettings.NewOverlay())
}

func newTestSequencer(t *testing.T) (*Sequencer, *fakeBus, *fakeSink) {
	t.Helper()
	bus := newFakeBus()
	sink := &fakeSink{}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	seq := New(bus, bus, timerqueue.New(16), testResolver(), fakeImages{}, sink,
		func(int) layersettings.LayerClass { return layersettings.Model },
		shortConfig(), log)
	return seq, bus, sink
}

func waitForState(t *testing.T, seq *Sequencer, want State, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if seq.State() == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for state %v, currently %v", want, seq.State())
}

func TestSinglelLayerPrintReachesComplete(t *testing.T) {
	seq, _, sink := newTestSequencer(t)
	go seq.Run()
	defer seq.Stop()

	seq.StartPrint("job-1", 1)

	// Supply the rotation pulse separation is waiting for as soon as
	// it can plausibly have been requested; a missed pulse here would
	// route the sequencer into Unjamming instead of Approaching.
	go func() {
		for i := 0; i < 50; i++ {
			seq.NotifyRotationPulse()
			time.Sleep(2 * time.Millisecond)
		}
	}()

	waitForState(t, seq, Complete, 2*time.Second)

	if sink.State() != Complete.String() {
		t.Fatalf("expected sink to report %v, got %v", Complete, sink.State())
	}
}

func TestJamDetectedWhenNoRotationSeen(t *testing.T) {
	seq, _, _ := newTestSequencer(t)
	go seq.Run()
	defer seq.Stop()

	seq.StartPrint("job-2", 1)

	waitForState(t, seq, Jammed, 2*time.Second)
}

func TestDoorOpenSavesAndRestoresDeepHistory(t *testing.T) {
	// Built on manualBus rather than the auto-completing fakeBus: a
	// print with no artificial delays would race straight through to
	// Complete before the test could observe it mid-Homing, since
	// nothing here paces the state machine against wall-clock time.
	bus := newManualBus()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	seq := New(bus, bus, timerqueue.New(16), testResolver(), fakeImages{}, &fakeSink{},
		func(int) layersettings.LayerClass { return layersettings.Model },
		shortConfig(), log)
	go seq.Run()
	defer seq.Stop()

	seq.StartPrint("job-3", 1)
	waitForState(t, seq, Homing, time.Second)

	seq.NotifyDoorOpened()
	waitForState(t, seq, DoorOpen, time.Second)

	seq.NotifyDoorClosed()
	waitForState(t, seq, Homing, time.Second)
}

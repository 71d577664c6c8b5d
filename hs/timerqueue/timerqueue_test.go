package timerqueue

import (
	"testing"
	"time"
)

func TestOneShotFires(t *testing.T) {
	q := New(4)
	q.Start(Exposure, 10*time.Millisecond)

	select {
	case f := <-q.Fired():
		if f.Kind != Exposure {
			t.Fatalf("expected Exposure, got %v", f.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for timer to fire")
	}
}

func TestRestartBumpsSequence(t *testing.T) {
	q := New(4)
	q.Start(PressWait, time.Hour)
	firstSeq := q.Current(PressWait)

	q.Start(PressWait, 10*time.Millisecond)
	secondSeq := q.Current(PressWait)

	if secondSeq == firstSeq {
		t.Fatal("expected sequence to change on restart")
	}

	select {
	case f := <-q.Fired():
		if f.Seq != secondSeq {
			t.Fatalf("expected firing to carry latest seq %d, got %d", secondSeq, f.Seq)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for timer to fire")
	}
}

func TestStopCancelsOneShot(t *testing.T) {
	q := New(4)
	q.Start(PreExposureDelay, 20*time.Millisecond)
	q.Stop(PreExposureDelay)

	select {
	case f := <-q.Fired():
		t.Fatalf("expected no firing after Stop, got %v", f)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRepeatingFiresMultipleTimes(t *testing.T) {
	q := New(4)
	q.StartRepeating(Temperature, 10*time.Millisecond)
	defer q.Stop(Temperature)

	for i := 0; i < 3; i++ {
		select {
		case f := <-q.Fired():
			if f.Kind != Temperature {
				t.Fatalf("expected Temperature, got %v", f.Kind)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for firing %d", i)
		}
	}
}

func TestStopAllCancelsEverything(t *testing.T) {
	q := New(4)
	q.Start(Exposure, time.Hour)
	q.StartRepeating(Temperature, time.Hour)
	q.StopAll()

	select {
	case f := <-q.Fired():
		t.Fatalf("expected no firing after StopAll, got %v", f)
	case <-time.After(50 * time.Millisecond):
	}
}

package builder

import (
	"testing"

	"github.com/ldowney/slaprint/hs/layersettings"
	"github.com/ldowney/slaprint/mc/frame"
)

func lastFrame(b Batch) frame.Frame { return b[len(b)-1] }

func TestPressSkipsMoveWhenDepthZero(t *testing.T) {
	b := Press(layersettings.CurrentLayerSettings{PressSpeed: 100})
	if len(b) != 2 {
		t.Fatalf("expected speed-setting + interrupt only, got %d frames: %+v", len(b), b)
	}
	if lastFrame(b).Action != frame.CmdInterrupt {
		t.Fatalf("expected trailing interrupt, got %+v", lastFrame(b))
	}
}

func TestPressIncludesMoveWhenDepthNonZero(t *testing.T) {
	b := Press(layersettings.CurrentLayerSettings{PressSpeed: 100, PressDepth: 50})
	if len(b) != 3 {
		t.Fatalf("expected speed-setting + move + interrupt, got %d frames: %+v", len(b), b)
	}
	move := b[1]
	if move.Register != frame.ZActionReg || move.Action != frame.ActionMove || move.Parameter != -50 {
		t.Fatalf("expected Z move of -50, got %+v", move)
	}
}

func TestSeparateBuildsRAndZMotion(t *testing.T) {
	cls := layersettings.CurrentLayerSettings{
		SeparationRJerk:    2.0,
		SeparationRRPM:     30,
		SeparationRotation: 60,
		SeparationZJerk:    3.0,
		SeparationZSpeed:   40,
		SeparationZLift:    1000,
	}
	b := Separate(cls)
	if len(b) != 7 {
		t.Fatalf("expected 7 frames, got %d: %+v", len(b), b)
	}
	rotate := b[2]
	if rotate.Register != frame.RActionReg || rotate.Action != frame.ActionMove || rotate.Parameter != -60000 {
		t.Fatalf("expected R move of -60000 millideg, got %+v", rotate)
	}
	if b[5].Register != frame.ZActionReg || b[5].Parameter != 1000 {
		t.Fatalf("expected Z lift of 1000, got %+v", b[5])
	}
	if lastFrame(b).Action != frame.CmdInterrupt {
		t.Fatal("expected trailing interrupt")
	}
}

func TestApproachHomesWhenRequested(t *testing.T) {
	cls := layersettings.CurrentLayerSettings{SeparationRotation: 60}
	b := Approach(cls, true)
	rotate := b[2]
	if rotate.Action != frame.ActionHome || rotate.Parameter != 120000 {
		t.Fatalf("expected R home of 120000 millideg, got %+v", rotate)
	}
}

func TestApproachMovesWhenNotHoming(t *testing.T) {
	cls := layersettings.CurrentLayerSettings{SeparationRotation: 60}
	b := Approach(cls, false)
	rotate := b[2]
	if rotate.Action != frame.ActionMove || rotate.Parameter != 60000 {
		t.Fatalf("expected R move of 60000 millideg, got %+v", rotate)
	}
}

func TestPauseAndInspectSkipsZWhenCannotInspect(t *testing.T) {
	cls := layersettings.CurrentLayerSettings{SeparationRotation: 60, CanInspect: false}
	b := PauseAndInspect(cls, JerkSpeed{RJerk: 1, RSpeed: 2, ZJerk: 3, ZSpeed: 4})
	for _, f := range b {
		if f.Register == frame.ZActionReg {
			t.Fatalf("expected no Z motion when CanInspect is false, got %+v", b)
		}
	}
}

func TestPauseAndInspectIncludesZWhenCanInspect(t *testing.T) {
	cls := layersettings.CurrentLayerSettings{
		SeparationRotation:      60,
		CanInspect:              true,
		InspectionHeightMicrons: 5000,
	}
	b := PauseAndInspect(cls, JerkSpeed{RJerk: 1, RSpeed: 2, ZJerk: 3, ZSpeed: 4})
	found := false
	for _, f := range b {
		if f.Register == frame.ZActionReg && f.Action == frame.ActionMove && f.Parameter == 5000 {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a Z move of 5000, got %+v", b)
	}
}

func TestGoHomeOmitsBackoffWhenZero(t *testing.T) {
	b := GoHome(HomeParams{RHomeMaxDegrees: 360, ZHomeMaxMicrons: -1000}, true)
	// R jerk, R speed, R home, Z jerk, Z speed, Z home, interrupt = 7
	if len(b) != 7 {
		t.Fatalf("expected 7 frames with no backoff, got %d: %+v", len(b), b)
	}
	if lastFrame(b).Action != frame.CmdInterrupt {
		t.Fatal("expected trailing interrupt")
	}
}

func TestGoHomeIncludesBackoffWhenNonZero(t *testing.T) {
	b := GoHome(HomeParams{RHomeMaxDegrees: 360, RBackoffDegrees: 60, ZHomeMaxMicrons: -1000}, false)
	if len(b) != 7 {
		t.Fatalf("expected 7 frames with backoff and no interrupt, got %d: %+v", len(b), b)
	}
	if lastFrame(b).Action == frame.CmdInterrupt {
		t.Fatal("expected no trailing interrupt")
	}
}

func TestCalibrateHasNoInterrupt(t *testing.T) {
	b := Calibrate(Calibration{ZStepAngleMdeg: 1800, RStepAngleMdeg: 1800})
	for _, f := range b {
		if f.Action == frame.CmdInterrupt {
			t.Fatal("expected Calibrate to never request an interrupt")
		}
	}
	if lastFrame(b).Action != frame.CmdEnable {
		t.Fatalf("expected trailing enable, got %+v", lastFrame(b))
	}
}

func TestClearPendingCommandsWithInterrupt(t *testing.T) {
	b := ClearPendingCommands(true)
	if len(b) != 2 || b[0].Action != frame.CmdClear || b[1].Action != frame.CmdInterrupt {
		t.Fatalf("unexpected batch: %+v", b)
	}
}

package layersettings

import (
	"errors"
	"testing"
)

// scenario 6: base modelExposure=5.0, layerThickness=25; overlay maps
// layer 11 -> modelExposure=3.3, layerThickness=20; layer 12 ->
// modelExposure=5.1; layer 13 -> layerThickness=-15.
func TestResolverScenario6(t *testing.T) {
	base := NewBase()
	base.Set(Model, exposureSettingName(Model), 5.0)
	base.Set(Model, NameLayerThickness, 25)

	overlay := NewOverlay()
	csv := "Layer,modelExposure,layerThickness\r" +
		"11,3.3,20\r" +
		"12,5.1,\r" +
		"13,,-15\r"
	if err := overlay.Load(csv); err != nil {
		t.Fatalf("unexpected Load error: %v", err)
	}

	r := NewResolver(base, overlay)

	cases := []struct {
		name   string
		layer  int
		getter func() float64
		want   float64
	}{
		{"double layer 10", 10, func() float64 { return r.GetDouble(Model, 10, exposureSettingName(Model)) }, 5.0},
		{"double layer 11", 11, func() float64 { return r.GetDouble(Model, 11, exposureSettingName(Model)) }, 3.3},
		{"int layer 11", 11, func() float64 { return float64(r.GetInt(Model, 11, NameLayerThickness)) }, 20},
		{"int layer 12", 12, func() float64 { return float64(r.GetInt(Model, 12, NameLayerThickness)) }, 25},
		{"int layer 13", 13, func() float64 { return float64(r.GetInt(Model, 13, NameLayerThickness)) }, -15},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := c.getter(); got != c.want {
				t.Fatalf("got %v, want %v", got, c.want)
			}
		})
	}
}

func TestOverlayDuplicateColumnFailsClosed(t *testing.T) {
	o := NewOverlay()
	err := o.Load("Layer,modelExposure,modelExposure\r11,3.3,1.0\r")
	if !errors.Is(err, ErrDuplicateColumn) {
		t.Fatalf("expected ErrDuplicateColumn, got %v", err)
	}
	if o.Loaded() {
		t.Fatal("expected overlay empty after failed load")
	}
}

func TestOverlayDuplicateLayerFailsClosed(t *testing.T) {
	o := NewOverlay()
	err := o.Load("Layer,modelExposure\r11,3.3\r11,4.0\r")
	if !errors.Is(err, ErrDuplicateLayer) {
		t.Fatalf("expected ErrDuplicateLayer, got %v", err)
	}
	if o.Loaded() {
		t.Fatal("expected overlay empty after failed load")
	}
}

func TestOverlaySkipsCommentRows(t *testing.T) {
	o := NewOverlay()
	// a blank layer cell and a non-numeric one are both skipped.
	err := o.Load("Layer,modelExposure\r,3.3\r# comment,1.0\r11,2.0\r")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !o.Loaded() {
		t.Fatal("expected at least one valid row")
	}
	if v := o.GetDouble(11, "modelExposure", -1); v != 2.0 {
		t.Fatalf("expected layer 11 override 2.0, got %v", v)
	}
}

func TestResolveProducesFullSettingSet(t *testing.T) {
	base := NewBase()
	base.Set(First, "firstExposure", 30.0)
	base.Set(First, NamePressDepth, 1.5)
	base.Set(First, NameCanInspect, 1)

	overlay := NewOverlay()
	r := NewResolver(base, overlay)

	s := r.Resolve(First, 1)
	if s.ExposureSec != 30.0 {
		t.Fatalf("expected first-layer exposure 30.0, got %v", s.ExposureSec)
	}
	if s.PressDepth != 1.5 {
		t.Fatalf("expected press depth 1.5, got %v", s.PressDepth)
	}
	if !s.CanInspect {
		t.Fatal("expected CanInspect true")
	}
}

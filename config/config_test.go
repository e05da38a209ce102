package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if errs := Validate(cfg); len(errs) != 0 {
		t.Fatalf("Expected default config to validate, got %v", errs)
	}
	if got := cfg.Distances.FeedToFinda; got < 42.84 || got > 42.86 {
		t.Errorf("Expected derived feed_to_finda 42.85, got %f", got)
	}
	if cfg.Idler.Limits.MaxStepFrequency != 40000 {
		t.Errorf("Expected axis max step frequency inherited, got %d", cfg.Idler.Limits.MaxStepFrequency)
	}
	if cfg.ButtonCount() != 3 {
		t.Errorf("Expected 3 buttons, got %d", cfg.ButtonCount())
	}
}

func TestSlotPositions(t *testing.T) {
	cfg := Default()

	sel := cfg.SelectorSlotPositions()
	wantSel := []float64{1, 15, 29, 43, 57, 71}
	if len(sel) != len(wantSel) {
		t.Fatalf("Expected %d selector positions, got %d", len(wantSel), len(sel))
	}
	for i := range wantSel {
		if sel[i] != wantSel[i] {
			t.Errorf("selector slot %d: expected %.1f, got %.1f", i, wantSel[i], sel[i])
		}
	}

	idl := cfg.IdlerSlotPositions()
	wantIdl := []float64{218, 178, 138, 98, 58, 18}
	for i := range wantIdl {
		if idl[i] != wantIdl[i] {
			t.Errorf("idler slot %d: expected %.1f, got %.1f", i, wantIdl[i], idl[i])
		}
	}
}

func TestMicrosteps(t *testing.T) {
	tests := []struct {
		mres MRes
		want uint32
	}{
		{MRes256, 256},
		{MRes16, 16},
		{MRes8, 8},
		{MRes1, 1},
	}
	for _, tt := range tests {
		if got := tt.mres.Microsteps(); got != tt.want {
			t.Errorf("MRes %d: expected %d microsteps, got %d", tt.mres, tt.want, got)
		}
	}
}

func TestLoadOverlaysDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "unit.yaml")
	data := `
tool_count: 4
sensors:
  finda_debounce_ms: 20
distances:
  cutting_edge_to_finda_midpoint: 20
pulley:
  feedrate: 60
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.ToolCount != 4 {
		t.Errorf("Expected tool_count 4, got %d", cfg.ToolCount)
	}
	if cfg.Sensors.FindaDebounceMs != 20 {
		t.Errorf("Expected finda debounce 20, got %d", cfg.Sensors.FindaDebounceMs)
	}
	if cfg.Sensors.ButtonsDebounceMs != 100 {
		t.Errorf("Expected untouched buttons debounce 100, got %d", cfg.Sensors.ButtonsDebounceMs)
	}
	if cfg.Pulley.Feedrate != 60 || cfg.Pulley.Axis.IRun != 20 {
		t.Errorf("Expected pulley feedrate override only, got %+v", cfg.Pulley)
	}
	if cfg.Distances.FeedToFinda != 40 {
		t.Errorf("Expected feed_to_finda recomputed to 40, got %f", cfg.Distances.FeedToFinda)
	}
	if len(cfg.SelectorSlotPositions()) != 5 {
		t.Errorf("Expected 5 selector positions for 4 tools")
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Expected error for missing file")
	}
	if _, err := Parse([]byte("tool_count: [")); err == nil {
		t.Error("Expected error for malformed YAML")
	}
}

func TestValidateReportsFields(t *testing.T) {
	cfg := Default()
	cfg.ToolCount = 0
	cfg.Selector.Axis.IRun = 40
	cfg.Motion.MinStepRate = 50000
	cfg.Sensors.ButtonADCLimits = [][2]uint16{{0, 50}, {40, 100}}
	cfg.Idler.Feedrate = 0

	errs := Validate(cfg)
	want := []string{"tool_count", "selector.axis", "motion", "sensors.button_adc_limits[1]", "idler.feedrate"}
	for _, field := range want {
		found := false
		for _, e := range errs {
			if e.Field == field {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("Expected validation error for %s, got %v", field, errs)
		}
	}
}

func TestDumpContainsKeys(t *testing.T) {
	out, err := Dump(Default())
	if err != nil {
		t.Fatalf("Dump failed: %v", err)
	}
	for _, key := range []string{"tool_count: 5", "finda_debounce_ms: 100", "steps_per_unit"} {
		if !strings.Contains(string(out), key) {
			t.Errorf("Expected dump to contain %q", key)
		}
	}
}

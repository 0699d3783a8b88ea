package sim

import (
	"math"
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultDerivedCoefficients(t *testing.T) {
	p := DefaultParams()

	cases := []struct {
		name string
		got  float64
		want float64
	}{
		{"friction mass 1", p.Friction(1), 0.998},
		{"friction mass 2.25", p.Friction(2.25), 0.99925},
		{"gravity mass 1", p.Gravity(1), 0.6},
		{"gravity capped", p.Gravity(5), 1.2},
		{"bounce mass 1", p.Bounce(1), 0.765},
		{"momentum mass 1", p.MomentumScale(1), 0.9},
	}
	for _, c := range cases {
		if math.Abs(c.got-c.want) > 1e-9 {
			t.Errorf("%s: got %.6f want %.6f", c.name, c.got, c.want)
		}
	}
}

func TestLoadParamsEmptyPath(t *testing.T) {
	p, err := LoadParams("")
	if err != nil {
		t.Fatalf("Empty path should load defaults: %v", err)
	}
	if p != DefaultParams() {
		t.Error("Empty path should return the default tuning unchanged")
	}
}

func TestLoadParamsOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	data := []byte("gravity_base: 1.2\nmax_balls: 8\nspawn_x_max: 300\n")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	p, err := LoadParams(path)
	if err != nil {
		t.Fatalf("LoadParams failed: %v", err)
	}

	if p.GravityBase != 1.2 {
		t.Errorf("gravity_base override lost: %.2f", p.GravityBase)
	}
	if p.MaxBalls != 8 {
		t.Errorf("max_balls override lost: %d", p.MaxBalls)
	}
	if p.SpawnXMax != 300 {
		t.Errorf("spawn_x_max override lost: %.1f", p.SpawnXMax)
	}

	// Everything the file does not mention keeps its default.
	d := DefaultParams()
	if p.Restitution != d.Restitution || p.TickMs != d.TickMs || p.BounceBase != d.BounceBase {
		t.Error("Unmentioned knobs should keep their defaults")
	}
}

func TestLoadParamsZeroedKnobsInheritDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	data := []byte("restitution: 0\ntick_ms: 0\n")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	p, err := LoadParams(path)
	if err != nil {
		t.Fatalf("LoadParams failed: %v", err)
	}

	// Explicit zeros would stall the simulation, so they fall back.
	if p.Restitution != Restitution {
		t.Errorf("Zeroed restitution should inherit default: %.2f", p.Restitution)
	}
	if p.TickMs != TickMillis {
		t.Errorf("Zeroed tick_ms should inherit default: %d", p.TickMs)
	}
}

func TestLoadParamsMissingFile(t *testing.T) {
	p, err := LoadParams(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Error("Missing tuning file should error")
	}
	if p != DefaultParams() {
		t.Error("On error the defaults should come back")
	}
}

func TestLoadParamsRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	if err := os.WriteFile(path, []byte("gravity_base: [not a number\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadParams(path); err == nil {
		t.Error("Malformed YAML should error")
	}
}

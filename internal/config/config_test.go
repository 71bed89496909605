package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/thermlab/thermctl/internal/plant"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "node.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadPlantConfigFillsDefaults(t *testing.T) {
	path := writeConfig(t, `peer_addr = "localhost:9500"`)
	cfg, err := LoadPlantConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Name != "plant" {
		t.Fatalf("name = %q, want default plant", cfg.Name)
	}
	if cfg.PeerAddr != "localhost:9500" {
		t.Fatalf("peer_addr = %q, file value lost", cfg.PeerAddr)
	}
	if got := cfg.TickInterval().Milliseconds(); got != 50 {
		t.Fatalf("tick interval = %dms, want default 50", got)
	}
	if cfg.Physics != plant.DefaultPhysics() {
		t.Fatalf("physics = %+v, want package defaults", cfg.Physics)
	}
}

func TestLoadPlantConfigOverridesPhysics(t *testing.T) {
	path := writeConfig(t, `
name = "bench-a"
[physics]
ambient = 20.0
max_temperature = 60.0
heating_rate = 0.5
cooling_rate = 0.01
thermal_mass = 0.9
noise_range = 0.0
`)
	cfg, err := LoadPlantConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Physics.Ambient != 20.0 || cfg.Physics.MaxTemperature != 60.0 {
		t.Fatalf("physics not taken from file: %+v", cfg.Physics)
	}
}

func TestLoadPlantConfigRejectsBadPhysics(t *testing.T) {
	path := writeConfig(t, `
[physics]
ambient = 25.0
max_temperature = 100.0
heating_rate = 0.8
cooling_rate = 0.02
thermal_mass = 1.5
noise_range = 0.3
`)
	if _, err := LoadPlantConfig(path); err == nil {
		t.Fatalf("thermal_mass 1.5 accepted")
	}
}

func TestLoadControllerConfigFillsDefaults(t *testing.T) {
	path := writeConfig(t, ``)
	cfg, err := LoadControllerConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Control.Target != 50 || cfg.Control.Band != 1 {
		t.Fatalf("control defaults = %+v", cfg.Control)
	}
	if cfg.Sandbox.Entry != "main" {
		t.Fatalf("entry = %q, want default main", cfg.Sandbox.Entry)
	}
	if cfg.Sandbox.StackBytes != 16*1024 || cfg.Sandbox.HeapBytes != 64*1024 {
		t.Fatalf("sandbox budgets = %+v", cfg.Sandbox)
	}
	if got := cfg.RetryInterval().Seconds(); got != 5 {
		t.Fatalf("retry interval = %vs, want 5", got)
	}
}

func TestLoadControllerConfigSandboxSection(t *testing.T) {
	path := writeConfig(t, `
[sandbox]
module_path = "control.wasm"
heap_bytes = 131072
watch = true
`)
	cfg, err := LoadControllerConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Sandbox.ModulePath != "control.wasm" || !cfg.Sandbox.Watch {
		t.Fatalf("sandbox section not taken from file: %+v", cfg.Sandbox)
	}
	if cfg.Sandbox.HeapBytes != 128*1024 {
		t.Fatalf("heap_bytes = %d, file value lost", cfg.Sandbox.HeapBytes)
	}
}

func TestLoadControllerConfigRejectsBadBudgets(t *testing.T) {
	path := writeConfig(t, `
[sandbox]
module_path = "control.wasm"
stack_bytes = -1
`)
	if _, err := LoadControllerConfig(path); err == nil {
		t.Fatalf("negative stack budget accepted")
	}
}

func TestLoadMissingFileFails(t *testing.T) {
	if _, err := LoadPlantConfig(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Fatalf("missing file accepted")
	}
}

func TestTemplatesRoundTrip(t *testing.T) {
	dir := t.TempDir()

	plantPath := filepath.Join(dir, "plant.toml")
	if err := WriteTemplate(plantPath, "plant", false); err != nil {
		t.Fatalf("write plant template: %v", err)
	}
	if _, err := LoadPlantConfig(plantPath); err != nil {
		t.Fatalf("plant template does not load: %v", err)
	}

	ctrlPath := filepath.Join(dir, "controller.toml")
	if err := WriteTemplate(ctrlPath, "controller", false); err != nil {
		t.Fatalf("write controller template: %v", err)
	}
	if _, err := LoadControllerConfig(ctrlPath); err != nil {
		t.Fatalf("controller template does not load: %v", err)
	}

	if err := WriteTemplate(plantPath, "plant", false); err == nil {
		t.Fatalf("overwrite of existing config allowed without force")
	}
	if err := WriteTemplate(plantPath, "plant", true); err != nil {
		t.Fatalf("forced overwrite failed: %v", err)
	}
	if _, err := Template("mystery"); err == nil {
		t.Fatalf("unknown template kind accepted")
	}
}

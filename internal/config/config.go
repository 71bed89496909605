// Package config loads the TOML files driving the plant and controller
// binaries. Loaders fill defaults before validating, so a minimal file
// naming only the peer addresses is enough to bring a node up.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/thermlab/thermctl/internal/plant"
)

// Node carries the fields every binary shares.
type Node struct {
	Name        string `toml:"name"`
	ListenAddr  string `toml:"listen_addr"`
	PeerAddr    string `toml:"peer_addr"`
	MetricsAddr string `toml:"metrics_addr"`
	RecordPath  string `toml:"record_path"`
	LogLevel    string `toml:"log_level"`
	GuardWaitMS int    `toml:"guard_wait_ms"`
}

// GuardWait is the bounded wait applied to the state bridge guard. Zero
// selects the bridge's default.
func (n Node) GuardWait() time.Duration {
	return time.Duration(n.GuardWaitMS) * time.Millisecond
}

// PlantConfig drives plantctl.
type PlantConfig struct {
	Node
	TickIntervalMS int           `toml:"tick_interval_ms"`
	Seed           int64         `toml:"seed"`
	Physics        plant.Physics `toml:"physics"`
}

func (c PlantConfig) TickInterval() time.Duration {
	return time.Duration(c.TickIntervalMS) * time.Millisecond
}

// ControlConfig is the native fallback law and its cadence.
type ControlConfig struct {
	Target     float64 `toml:"target"`
	Band       float64 `toml:"band"`
	IntervalMS int     `toml:"interval_ms"`
}

// SandboxConfig selects and budgets the control program. An empty
// module_path keeps the node on the native fallback law.
type SandboxConfig struct {
	ModulePath      string `toml:"module_path"`
	Entry           string `toml:"entry"`
	StackBytes      int    `toml:"stack_bytes"`
	HeapBytes       int    `toml:"heap_bytes"`
	Watch           bool   `toml:"watch"`
	RetryIntervalMS int    `toml:"retry_interval_ms"`
}

// ControllerConfig drives controlctl.
type ControllerConfig struct {
	Node
	SendIntervalMS int           `toml:"send_interval_ms"`
	Control        ControlConfig `toml:"control"`
	Sandbox        SandboxConfig `toml:"sandbox"`
}

func (c ControllerConfig) SendInterval() time.Duration {
	return time.Duration(c.SendIntervalMS) * time.Millisecond
}

func (c ControllerConfig) ControlInterval() time.Duration {
	return time.Duration(c.Control.IntervalMS) * time.Millisecond
}

func (c ControllerConfig) RetryInterval() time.Duration {
	return time.Duration(c.Sandbox.RetryIntervalMS) * time.Millisecond
}

func LoadPlantConfig(path string) (PlantConfig, error) {
	var cfg PlantConfig
	cfg.Physics = plant.DefaultPhysics()
	if err := loadToml(path, &cfg); err != nil {
		return PlantConfig{}, err
	}
	if cfg.Name == "" {
		cfg.Name = "plant"
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":9401"
	}
	if cfg.PeerAddr == "" {
		cfg.PeerAddr = "localhost:9402"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.TickIntervalMS == 0 {
		cfg.TickIntervalMS = 50
	}
	if err := ValidatePlantConfig(cfg); err != nil {
		return PlantConfig{}, err
	}
	return cfg, nil
}

func LoadControllerConfig(path string) (ControllerConfig, error) {
	var cfg ControllerConfig
	if err := loadToml(path, &cfg); err != nil {
		return ControllerConfig{}, err
	}
	if cfg.Name == "" {
		cfg.Name = "controller"
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":9402"
	}
	if cfg.PeerAddr == "" {
		cfg.PeerAddr = "localhost:9401"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.SendIntervalMS == 0 {
		cfg.SendIntervalMS = 100
	}
	if cfg.Control.Target == 0 {
		cfg.Control.Target = 50
	}
	if cfg.Control.Band == 0 {
		cfg.Control.Band = 1
	}
	if cfg.Control.IntervalMS == 0 {
		cfg.Control.IntervalMS = 100
	}
	if cfg.Sandbox.Entry == "" {
		cfg.Sandbox.Entry = "main"
	}
	if cfg.Sandbox.StackBytes == 0 {
		cfg.Sandbox.StackBytes = 16 * 1024
	}
	if cfg.Sandbox.HeapBytes == 0 {
		cfg.Sandbox.HeapBytes = 64 * 1024
	}
	if cfg.Sandbox.RetryIntervalMS == 0 {
		cfg.Sandbox.RetryIntervalMS = 5000
	}
	if err := ValidateControllerConfig(cfg); err != nil {
		return ControllerConfig{}, err
	}
	return cfg, nil
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

func ValidatePlantConfig(cfg PlantConfig) error {
	if err := validateNode(cfg.Node, "plant"); err != nil {
		return err
	}
	if cfg.TickIntervalMS < 0 {
		return fmt.Errorf("plant config negative tick_interval_ms")
	}
	if err := cfg.Physics.Validate(); err != nil {
		return fmt.Errorf("plant config invalid: %w", err)
	}
	return nil
}

func ValidateControllerConfig(cfg ControllerConfig) error {
	if err := validateNode(cfg.Node, "controller"); err != nil {
		return err
	}
	if cfg.Control.Band < 0 {
		return fmt.Errorf("controller config negative control band")
	}
	if cfg.SendIntervalMS < 0 || cfg.Control.IntervalMS < 0 {
		return fmt.Errorf("controller config negative interval")
	}
	if cfg.Sandbox.ModulePath != "" {
		if cfg.Sandbox.StackBytes <= 0 || cfg.Sandbox.HeapBytes <= 0 {
			return fmt.Errorf("controller config sandbox budgets must be positive")
		}
	}
	return nil
}

func validateNode(n Node, kind string) error {
	if strings.TrimSpace(n.Name) == "" {
		return fmt.Errorf("%s config missing name", kind)
	}
	if strings.TrimSpace(n.ListenAddr) == "" {
		return fmt.Errorf("%s config missing listen_addr", kind)
	}
	if strings.TrimSpace(n.PeerAddr) == "" {
		return fmt.Errorf("%s config missing peer_addr", kind)
	}
	if n.GuardWaitMS < 0 {
		return fmt.Errorf("%s config negative guard_wait_ms", kind)
	}
	return nil
}

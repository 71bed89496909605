package config

import (
	"fmt"
	"os"
	"strings"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "plant":
		return plantTemplate, nil
	case "controller":
		return controllerTemplate, nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const plantTemplate = `name = "plant"
listen_addr = ":9401"
peer_addr = "localhost:9402"
metrics_addr = ""
record_path = ""
log_level = "info"
tick_interval_ms = 50
seed = 1

[physics]
ambient = 25.0
max_temperature = 100.0
heating_rate = 0.8
cooling_rate = 0.02
thermal_mass = 0.95
noise_range = 0.3
`

const controllerTemplate = `name = "controller"
listen_addr = ":9402"
peer_addr = "localhost:9401"
metrics_addr = ""
record_path = ""
log_level = "info"
send_interval_ms = 100

[control]
target = 50.0
band = 1.0
interval_ms = 100

[sandbox]
module_path = ""
entry = "main"
stack_bytes = 16384
heap_bytes = 65536
watch = false
retry_interval_ms = 5000
`

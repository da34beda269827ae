package infra

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const validYAML = `
app:
  name: "test"
  version: "0.0.1"
trading:
  mode: "paper"
dca:
  timeframe: "1h"
  atr_length: 14
  atr_deviation: 0.5
  num_orders: 5
  volume_scale: 1.5
  step_scale: 1.2
  max_total_allocation_pct: 50
monitor:
  sample_interval_sec: 30
  load_threshold: 80
logging:
  level: "debug"
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Trading.Mode != "paper" {
		t.Errorf("mode = %s", cfg.Trading.Mode)
	}
	if cfg.DCA.NumOrders != 5 || cfg.DCA.Timeframe != "1h" {
		t.Errorf("dca config = %+v", cfg.DCA)
	}
	if cfg.Monitor.LoadThreshold != 80 {
		t.Errorf("load threshold = %v", cfg.Monitor.LoadThreshold)
	}
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		replace [2]string
	}{
		{"Bad Timeframe", [2]string{`timeframe: "1h"`, `timeframe: "3h"`}},
		{"Bad Mode", [2]string{`mode: "paper"`, `mode: "demo"`}},
		{"Num Orders Out Of Range", [2]string{"num_orders: 5", "num_orders: 25"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			content := strings.Replace(validYAML, tt.replace[0], tt.replace[1], 1)
			if _, err := LoadConfig(writeConfig(t, content)); err == nil {
				t.Error("invalid config accepted")
			}
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("missing file accepted")
	}
}

func TestEnvOverridesSecrets(t *testing.T) {
	t.Setenv("LIQD_BYBIT_KEY", "env-key")
	t.Setenv("LIQD_BYBIT_SECRET", "env-secret")

	cfg, err := LoadConfig(writeConfig(t, validYAML))
	if err != nil {
		t.Fatal(err)
	}

	if cfg.API.Bybit.AccessKey != "env-key" {
		t.Errorf("access key = %s, want env override", cfg.API.Bybit.AccessKey)
	}
	if cfg.API.Bybit.SecretKey != "env-secret" {
		t.Errorf("secret key = %s, want env override", cfg.API.Bybit.SecretKey)
	}
}

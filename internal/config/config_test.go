package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNewConfigDefaults(t *testing.T) {
	config, err := NewConfig([]string{"-d", "postgres://localhost/dastarhan", "-p", "http://localhost:9090"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if config.Address != ":8080" {
		t.Errorf("expected default address :8080, got %q", config.Address)
	}
	if config.AutoAccept {
		t.Error("auto-accept should be off by default")
	}
	if config.AutoAcceptMinutes != 20 {
		t.Errorf("expected default auto-accept minutes 20, got %d", config.AutoAcceptMinutes)
	}
	if config.VerifyInterval != time.Minute {
		t.Errorf("expected default verify interval 1m, got %s", config.VerifyInterval)
	}
}

func TestNewConfigFlags(t *testing.T) {
	config, err := NewConfig([]string{
		"-a", ":9000",
		"-d", "postgres://localhost/dastarhan",
		"-p", "http://gateway:8081",
		"-auto-accept",
		"-auto-accept-minutes", "30",
		"-verify-interval", "15s",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if config.Address != ":9000" {
		t.Errorf("expected address :9000, got %q", config.Address)
	}
	if !config.AutoAccept {
		t.Error("expected auto-accept on")
	}
	if config.AutoAcceptMinutes != 30 {
		t.Errorf("expected auto-accept minutes 30, got %d", config.AutoAcceptMinutes)
	}
	if config.VerifyInterval != 15*time.Second {
		t.Errorf("expected verify interval 15s, got %s", config.VerifyInterval)
	}
}

func TestNewConfigEnvOverridesFlags(t *testing.T) {
	t.Setenv("RUN_ADDRESS", ":7070")
	t.Setenv("VERIFY_INTERVAL", "45s")

	config, err := NewConfig([]string{
		"-a", ":9000",
		"-d", "postgres://localhost/dastarhan",
		"-p", "http://gateway:8081",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if config.Address != ":7070" {
		t.Errorf("expected env address :7070, got %q", config.Address)
	}
	if config.VerifyInterval != 45*time.Second {
		t.Errorf("expected env verify interval 45s, got %s", config.VerifyInterval)
	}
}

func TestNewConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
address: ":6060"
database_uri: "postgres://localhost/dastarhan"
payment_gateway_address: "http://gateway:8081"
auto_accept: true
auto_accept_minutes: 25
verify_interval: "2m"
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	t.Setenv("CONFIG_FILE", path)

	config, err := NewConfig(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if config.Address != ":6060" {
		t.Errorf("expected file address :6060, got %q", config.Address)
	}
	if !config.AutoAccept {
		t.Error("expected auto-accept on from file")
	}
	if config.AutoAcceptMinutes != 25 {
		t.Errorf("expected auto-accept minutes 25, got %d", config.AutoAcceptMinutes)
	}
	if config.VerifyInterval != 2*time.Minute {
		t.Errorf("expected verify interval 2m, got %s", config.VerifyInterval)
	}
}

func TestNewConfigFlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
address: ":6060"
database_uri: "postgres://localhost/dastarhan"
payment_gateway_address: "http://gateway:8081"
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	t.Setenv("CONFIG_FILE", path)

	config, err := NewConfig([]string{"-a", ":9000"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if config.Address != ":9000" {
		t.Errorf("expected flag address :9000, got %q", config.Address)
	}
}

func TestNewConfigValidation(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{
			name: "missing database URI",
			args: []string{"-p", "http://gateway:8081"},
		},
		{
			name: "invalid gateway address",
			args: []string{"-d", "postgres://localhost/dastarhan", "-p", "not a uri"},
		},
		{
			name: "zero auto-accept minutes",
			args: []string{"-d", "postgres://localhost/dastarhan", "-p", "http://gateway:8081", "-auto-accept-minutes", "0"},
		},
		{
			name: "negative verify interval",
			args: []string{"-d", "postgres://localhost/dastarhan", "-p", "http://gateway:8081", "-verify-interval", "-1s"},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if _, err := NewConfig(test.args); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}

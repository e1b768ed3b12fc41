package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFindConfig_Explicit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.yaml")
	os.WriteFile(path, []byte("listen:\n  port: 9999\n"), 0600)

	got, err := FindConfig(path)
	if err != nil {
		t.Fatalf("FindConfig(%q) error: %v", path, err)
	}
	if got != path {
		t.Errorf("FindConfig(%q) = %q, want %q", path, got, path)
	}
}

func TestFindConfig_ExplicitMissing(t *testing.T) {
	_, err := FindConfig("/nonexistent/config.yaml")
	if err == nil {
		t.Fatal("FindConfig with missing explicit path should error")
	}
}

func TestFindConfig_CWD(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	os.WriteFile(path, []byte("listen:\n  port: 8080\n"), 0600)

	orig, _ := os.Getwd()
	os.Chdir(dir)
	defer os.Chdir(orig)

	got, err := FindConfig("")
	if err != nil {
		t.Fatalf("FindConfig(\"\") error: %v", err)
	}
	if got != "config.yaml" {
		t.Errorf("FindConfig(\"\") = %q, want %q", got, "config.yaml")
	}
}

func TestLoad_ExpandsEnvVars(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	os.WriteFile(path, []byte("mqtt:\n  broker_url: ${PIPELINED_TEST_BROKER}\n  enabled: true\n"), 0600)
	os.Setenv("PIPELINED_TEST_BROKER", "mqtt://broker.example:1883")
	defer os.Unsetenv("PIPELINED_TEST_BROKER")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.MQTT.BrokerURL != "mqtt://broker.example:1883" {
		t.Errorf("broker_url = %q, want %q", cfg.MQTT.BrokerURL, "mqtt://broker.example:1883")
	}
}

func TestLoad_AppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	os.WriteFile(path, []byte("data_dir: /tmp/pipelined-data\n"), 0600)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Listen.Port != 8080 {
		t.Errorf("Listen.Port = %d, want 8080", cfg.Listen.Port)
	}
	if cfg.Store.Dir != filepath.Join("/tmp/pipelined-data", "files") {
		t.Errorf("Store.Dir = %q, want derived from data_dir", cfg.Store.Dir)
	}
	if cfg.Observer.QueueCapacity != 10 {
		t.Errorf("Observer.QueueCapacity = %d, want 10", cfg.Observer.QueueCapacity)
	}
}

func TestValidate_ListenPortOutOfRange(t *testing.T) {
	cfg := Default()
	cfg.Listen.Port = 70000

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for out-of-range listen.port")
	}
}

func TestValidate_MQTTEnabledRequiresBrokerURL(t *testing.T) {
	cfg := Default()
	cfg.MQTT.Enabled = true
	cfg.MQTT.BrokerURL = ""

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for mqtt enabled without broker_url")
	}
}

func TestValidate_MQTTDisabledSkipsValidation(t *testing.T) {
	cfg := Default()
	cfg.MQTT.Enabled = false
	cfg.MQTT.BrokerURL = ""

	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mqtt should skip validation, got: %v", err)
	}
}

func TestValidate_HistoryDriverInvalid(t *testing.T) {
	cfg := Default()
	cfg.History.Driver = "postgres"

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unsupported history.driver")
	}
}

func TestValidate_ObserverQueueCapacityZero(t *testing.T) {
	cfg := Default()
	cfg.Observer.QueueCapacity = 0

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for zero observer.queue_capacity")
	}
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default() config should validate, got: %v", err)
	}
}

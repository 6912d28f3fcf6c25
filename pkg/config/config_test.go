package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

type testConfig struct {
	Name string `yaml:"name"`
	Port int    `yaml:"port"`
}

func (c *testConfig) Validate() error {
	if c.Port <= 0 {
		return errors.New("port must be positive")
	}
	return nil
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := writeConfig(t, "name: from-file\n")

	cfg := testConfig{Name: "default", Port: 8080}
	if err := Load(path, &cfg); err != nil {
		t.Fatalf("Load() = %v", err)
	}
	if cfg.Name != "from-file" {
		t.Errorf("Name = %q, want from-file", cfg.Name)
	}
	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want default 8080 kept", cfg.Port)
	}
}

func TestLoad_ExpandsEnv(t *testing.T) {
	t.Setenv("TEST_CONFIG_NAME", "expanded")
	path := writeConfig(t, "name: ${TEST_CONFIG_NAME}\nport: 9090\n")

	var cfg testConfig
	if err := Load(path, &cfg); err != nil {
		t.Fatalf("Load() = %v", err)
	}
	if cfg.Name != "expanded" {
		t.Errorf("Name = %q, want expanded", cfg.Name)
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	path := writeConfig(t, "port: -1\n")

	cfg := testConfig{Port: 8080}
	if err := Load(path, &cfg); err == nil {
		t.Error("Load() = nil, want validation error")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	var cfg testConfig
	if err := Load(filepath.Join(t.TempDir(), "nope.yaml"), &cfg); err == nil {
		t.Error("Load() = nil, want error for missing file")
	}
}

func TestLoadOptional_MissingFileKeepsDefaults(t *testing.T) {
	cfg := testConfig{Name: "default", Port: 8080}
	if err := LoadOptional(filepath.Join(t.TempDir(), "nope.yaml"), &cfg); err != nil {
		t.Fatalf("LoadOptional() = %v", err)
	}
	if cfg.Name != "default" || cfg.Port != 8080 {
		t.Errorf("cfg = %+v, want defaults kept", cfg)
	}

	bad := testConfig{}
	if err := LoadOptional(filepath.Join(t.TempDir(), "nope.yaml"), &bad); err == nil {
		t.Error("LoadOptional() = nil, want validation error on bad defaults")
	}
}

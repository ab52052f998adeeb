package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
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

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_ExpandsEnv(t *testing.T) {
	t.Setenv("FLASHDESK_TEST_NAME", "desk")
	path := writeFile(t, "name: ${FLASHDESK_TEST_NAME}\nport: 9000\n")

	cfg := testConfig{}
	if err := Load(path, &cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Name != "desk" || cfg.Port != 9000 {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoad_Validates(t *testing.T) {
	path := writeFile(t, "port: 0\n")
	err := Load(path, &testConfig{})
	if err == nil || !strings.Contains(err.Error(), "port must be positive") {
		t.Errorf("err = %v", err)
	}
}

func TestLoad_KeepsDefaultsForAbsentKeys(t *testing.T) {
	path := writeFile(t, "name: other\n")
	cfg := testConfig{Port: 8080}
	if err := Load(path, &cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != 8080 || cfg.Name != "other" {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoadOptional_MissingFile(t *testing.T) {
	cfg := testConfig{Name: "default", Port: 8080}
	if err := LoadOptional(filepath.Join(t.TempDir(), "absent.yaml"), &cfg); err != nil {
		t.Fatalf("LoadOptional: %v", err)
	}
	if cfg.Name != "default" {
		t.Errorf("defaults changed: %+v", cfg)
	}

	if err := LoadOptional(filepath.Join(t.TempDir(), "absent.yaml"), &testConfig{}); err == nil {
		t.Error("invalid defaults should still fail validation")
	}
}

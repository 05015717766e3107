package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ehr/patientdata/internal/platform/db"
)

// clearEnv blanks every key; viper ignores empty variables.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
	}
}

func setCredentials(t *testing.T) {
	t.Helper()
	t.Setenv("DB_USERNAME", "rapport")
	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("DB_DSN", "dbhost:1521/RAPPORT")
}

// emptyConfig writes a settings file with no entries.
func emptyConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "empty.env")
	if err := os.WriteFile(path, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_RequiresCredentials(t *testing.T) {
	clearEnv(t)

	_, err := Load(emptyConfig(t))
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
	for _, k := range []string{"DB_USERNAME", "DB_PASSWORD", "DB_DSN"} {
		if !strings.Contains(err.Error(), k) {
			t.Errorf("expected error to name %s, got %q", k, err)
		}
	}
}

func TestLoad_NamesOnlyMissingKeys(t *testing.T) {
	clearEnv(t)
	t.Setenv("DB_USERNAME", "rapport")
	t.Setenv("DB_PASSWORD", "secret")

	_, err := Load(emptyConfig(t))
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
	if strings.Contains(err.Error(), "DB_USERNAME") {
		t.Errorf("did not expect DB_USERNAME in %q", err)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	setCredentials(t)

	cfg, err := Load(emptyConfig(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DBDriver != db.DriverOracle {
		t.Errorf("expected default driver oracle, got %s", cfg.DBDriver)
	}
	if cfg.Env != "development" {
		t.Errorf("expected default env development, got %s", cfg.Env)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("expected default log level info, got %s", cfg.LogLevel)
	}
	if cfg.Port != "8000" {
		t.Errorf("expected default port 8000, got %s", cfg.Port)
	}
}

func TestLoad_DefaultFileMayBeAbsent(t *testing.T) {
	clearEnv(t)
	setCredentials(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DBUsername != "rapport" {
		t.Errorf("expected env credentials, got %s", cfg.DBUsername)
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	clearEnv(t)
	setCredentials(t)

	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	if err == nil {
		t.Fatal("expected error for a missing settings file")
	}
	if errors.Is(err, ErrNotConfigured) {
		t.Errorf("a missing file is not a missing configuration: %v", err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected os.ErrNotExist, got %v", err)
	}
}

func TestLoad_MalformedFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	content := "DB_USERNAME: rapport\nDB_PASSWORD: secret\nDB_DSN: [dbhost:1521/RAPPORT\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected parse error")
	}
	if errors.Is(err, ErrNotConfigured) {
		t.Errorf("a malformed file is not a missing configuration: %v", err)
	}
	if !strings.Contains(err.Error(), path) {
		t.Errorf("expected error to name %s, got %q", path, err)
	}
}

func TestLoad_FromFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "rapport.env")
	content := "DB_USERNAME=fileuser\nDB_PASSWORD=filepass\nDB_DSN=filehost/RAPPORT\nDB_DRIVER=pgx\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DBUsername != "fileuser" || cfg.DBDSN != "filehost/RAPPORT" {
		t.Errorf("expected values from file, got %+v", cfg)
	}
	if cfg.DBDriver != "pgx" {
		t.Errorf("expected driver pgx, got %s", cfg.DBDriver)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "rapport.env")
	os.WriteFile(path, []byte("DB_USERNAME=fileuser\nDB_PASSWORD=filepass\nDB_DSN=filehost/RAPPORT\n"), 0o600)
	t.Setenv("DB_USERNAME", "envuser")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DBUsername != "envuser" {
		t.Errorf("expected env to win, got %s", cfg.DBUsername)
	}
}

func TestConfig_IsDev(t *testing.T) {
	c := &Config{Env: "development"}
	if !c.IsDev() {
		t.Error("expected IsDev() to return true for development")
	}

	c.Env = "production"
	if c.IsDev() {
		t.Error("expected IsDev() to return false for production")
	}
}

func TestValidate(t *testing.T) {
	c := &Config{Env: "development", DBDriver: db.DriverOracle}
	if err := c.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	c.Env = "qa"
	if err := c.Validate(); err == nil {
		t.Error("expected error for unknown ENV")
	}

	c = &Config{Env: "production", DBDriver: "sqlmock"}
	if err := c.Validate(); err == nil {
		t.Error("expected error when the dialect cannot be inferred")
	}
	c.DBDialect = "postgres"
	if err := c.Validate(); err != nil {
		t.Errorf("unexpected error with explicit dialect: %v", err)
	}
}

func TestValidateServe_RequiresSigningKeyOutsideDev(t *testing.T) {
	c := &Config{Env: "production", DBDriver: db.DriverPgx, Port: "8000"}
	if err := c.ValidateServe(); err == nil {
		t.Error("expected error without AUTH_SIGNING_KEY in production")
	}

	c.AuthSigningKey = "k"
	if err := c.ValidateServe(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	dev := &Config{Env: "development", DBDriver: db.DriverPgx, Port: "8000"}
	if err := dev.ValidateServe(); err != nil {
		t.Errorf("development should not need a signing key: %v", err)
	}
}

func TestCredentials(t *testing.T) {
	c := &Config{DBUsername: "u", DBPassword: "p", DBDSN: "h/s", DBDriver: "postgres", DBDialect: "postgres"}
	got := c.Credentials()
	want := db.Credentials{Username: "u", Password: "p", Locator: "h/s", Driver: "postgres", Dialect: db.DialectPostgres}
	if got != want {
		t.Errorf("Credentials() = %+v, want %+v", got, want)
	}
}

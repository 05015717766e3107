package main

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ehr/patientdata/internal/config"
	"github.com/ehr/patientdata/internal/domain/patient"
)

var basicInfoColumns = []string{"F001", "F002", "F003", "F004", "F005", "F006", "F007", "F008", "F010",
	"F016", "F017", "F018", "F019", "UPDDT", "F023"}

func basicRow(id string) []driver.Value {
	return []driver.Value{
		id, "ﾀﾛｳ", "ﾔﾏﾀﾞ ﾀﾛｳ", "太郎", "山田 太郎", "1",
		time.Date(1980, 4, 1, 0, 0, 0, 0, time.UTC), "A", nil,
		nil, nil, nil, nil, nil, nil,
	}
}

// mockEnv points the configuration at a fresh sqlmock DSN.
func mockEnv(t *testing.T) sqlmock.Sqlmock {
	t.Helper()
	dsn := "cli_" + t.Name()
	_, mock, err := sqlmock.NewWithDSN(dsn, sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Setenv("DB_USERNAME", "rapport")
	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("DB_DSN", dsn)
	t.Setenv("DB_DRIVER", "sqlmock")
	t.Setenv("DB_DIALECT", "postgres")
	t.Setenv("ENV", "development")
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("LOG_FILE", "")
	return mock
}

// emptyConfig writes a settings file with no entries so only the
// environment applies.
func emptyConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "none.env")
	if err := os.WriteFile(path, nil, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	a := newApp()
	cmd := newRootCmd(a)
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append(args, "--config", emptyConfig(t)))
	err := a.execute(cmd)
	return out.String(), err
}

func TestExitCode(t *testing.T) {
	if got := exitCode(fmt.Errorf("load: %w", config.ErrNotConfigured)); got != 2 {
		t.Errorf("exitCode(not configured) = %d, want 2", got)
	}
	if got := exitCode(errors.New("ORA-12541: TNS:no listener")); got != 1 {
		t.Errorf("exitCode(other) = %d, want 1", got)
	}
}

func TestDefaultExportPath(t *testing.T) {
	if got := defaultExportPath([]string{"0000000001"}); got != "patient_0000000001.json" {
		t.Errorf("single id: got %s", got)
	}
	if got := defaultExportPath([]string{"1", "2"}); got != "all_patients.json" {
		t.Errorf("several ids: got %s", got)
	}
}

func TestGet_NotConfigured(t *testing.T) {
	for _, k := range []string{"DB_USERNAME", "DB_PASSWORD", "DB_DSN"} {
		t.Setenv(k, "")
	}

	_, err := execute(t, "get", "0000000001")

	if !errors.Is(err, config.ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
	if exitCode(err) != 2 {
		t.Errorf("expected exit code 2")
	}
}

func TestGet_BasicSection(t *testing.T) {
	mock := mockEnv(t)
	mock.ExpectPing()
	mock.ExpectQuery(regexp.QuoteMeta(`FROM TTPT01 WHERE F001 = $1`)).
		WithArgs("0000000001").
		WillReturnRows(sqlmock.NewRows(basicInfoColumns).AddRow(basicRow("0000000001")...))
	mock.ExpectClose()

	out, err := execute(t, "get", "0000000001", "--section", "basic")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var info patient.BasicInfo
	if err := json.Unmarshal([]byte(out), &info); err != nil {
		t.Fatalf("expected JSON on stdout, got %q", out)
	}
	if info.PatientID != "0000000001" || *info.KanjiFullName != "山田 太郎" {
		t.Errorf("unexpected basic info %+v", info)
	}
	if !strings.Contains(out, "\"生年月日\": \"1980-04-01T00:00:00\"") {
		t.Errorf("expected indented ISO birth date, got %s", out)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestGet_UnknownSection(t *testing.T) {
	mockEnv(t)

	_, err := execute(t, "get", "0000000001", "--section", "billing")

	if err == nil || !strings.Contains(err.Error(), "unknown section") {
		t.Fatalf("expected unknown section error, got %v", err)
	}
}

func TestSearch_InvalidLimit(t *testing.T) {
	mock := mockEnv(t)
	mock.ExpectPing()
	mock.ExpectClose()

	_, err := execute(t, "search", "YAMADA", "--limit", "0")

	if !errors.Is(err, patient.ErrQuery) {
		t.Fatalf("expected ErrQuery, got %v", err)
	}
	if exitCode(err) != 1 {
		t.Errorf("expected exit code 1")
	}
}

func TestExport_SingleToYAML(t *testing.T) {
	mock := mockEnv(t)
	id := "0000000001"
	mock.ExpectPing()
	mock.ExpectQuery(`FROM TTPT01`).WithArgs(id).
		WillReturnRows(sqlmock.NewRows(basicInfoColumns).AddRow(basicRow(id)...))
	mock.ExpectQuery(`FROM TTPT02`).WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"F001", "F002", "F003", "F004", "F005", "UPDDT"}))
	mock.ExpectQuery(`FROM TTPT11`).WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"F001", "F002", "F003", "F004", "F005", "F006", "F007", "F008", "F009", "UPDDT"}))
	mock.ExpectQuery(`FROM TTBY01`).WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"F001", "F002", "F003", "F004", "F005", "F006", "F007", "F008", "UPDDT"}))
	mock.ExpectClose()

	path := filepath.Join(t.TempDir(), "patient.yaml")
	out, err := execute(t, "export", id, "--out", path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if strings.TrimSpace(out) != path {
		t.Errorf("expected the written path on stdout, got %q", out)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if !strings.HasPrefix(string(data), "基本情報:") {
		t.Errorf("expected YAML export, got:\n%s", data)
	}
}

func expectUnknownPatient(mock sqlmock.Sqlmock, id string) {
	mock.ExpectQuery(`FROM TTPT01`).WithArgs(id).WillReturnRows(sqlmock.NewRows(basicInfoColumns))
	mock.ExpectQuery(`FROM TTPT02`).WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"F001", "F002", "F003", "F004", "F005", "UPDDT"}))
	mock.ExpectQuery(`FROM TTPT11`).WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"F001", "F002", "F003", "F004", "F005", "F006", "F007", "F008", "F009", "UPDDT"}))
	mock.ExpectQuery(`FROM TTBY01`).WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"F001", "F002", "F003", "F004", "F005", "F006", "F007", "F008", "UPDDT"}))
}

func TestExport_BatchKeepsArgumentOrder(t *testing.T) {
	mock := mockEnv(t)
	mock.ExpectPing()
	expectUnknownPatient(mock, "0000000003")
	expectUnknownPatient(mock, "0000000001")
	mock.ExpectClose()

	path := filepath.Join(t.TempDir(), "all_patients.json")
	if _, err := execute(t, "export", "0000000003", "0000000001", "--out", path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	first, second := bytes.Index(data, []byte(`"0000000003"`)), bytes.Index(data, []byte(`"0000000001"`))
	if first < 0 || second < 0 || first > second {
		t.Errorf("expected ids in argument order, got:\n%s", data)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestRoot_MissingConfigFile(t *testing.T) {
	mockEnv(t)
	a := newApp()
	cmd := newRootCmd(a)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"get", "0000000001", "--config", filepath.Join(t.TempDir(), "missing.env")})

	err := a.execute(cmd)

	if err == nil {
		t.Fatal("expected error for a missing settings file")
	}
	if exitCode(err) != 1 {
		t.Errorf("expected exit code 1, got %d: %v", exitCode(err), err)
	}
}

type recordingCloser struct{ closed int }

func (c *recordingCloser) Close() error {
	c.closed++
	return nil
}

func TestExecute_ClosesLogFileOnFailure(t *testing.T) {
	closer := &recordingCloser{}
	a := &app{logger: zerolog.Nop(), logCloser: closer}
	root := &cobra.Command{
		Use:           "patient-data",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return errors.New("ORA-12541: TNS:no listener")
		},
	}
	root.SetArgs([]string{})

	err := a.execute(root)

	if err == nil || !strings.Contains(err.Error(), "ORA-12541") {
		t.Fatalf("expected the command error, got %v", err)
	}
	if closer.closed != 1 {
		t.Errorf("expected the log file closed once, got %d", closer.closed)
	}
	if err := a.execute(root); err == nil || closer.closed != 1 {
		t.Errorf("expected a second run not to close again, closed %d", closer.closed)
	}
}

func TestNewServer_Health(t *testing.T) {
	mock := mockEnv(t)
	mock.ExpectPing()
	mock.ExpectPing()
	mock.ExpectClose()

	cfg, err := config.Load(emptyConfig(t))
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	e, err := newServer(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("newServer: %v", err)
	}

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected a request id header")
	}
}

func TestNewServer_PatientRoute(t *testing.T) {
	mock := mockEnv(t)
	mock.ExpectPing()
	mock.ExpectQuery(`FROM TTPT01`).WithArgs("0000000404").WillReturnRows(sqlmock.NewRows(basicInfoColumns))
	mock.ExpectClose()

	cfg, _ := config.Load(emptyConfig(t))
	e, err := newServer(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("newServer: %v", err)
	}

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/patients/0000000404/basic", nil))

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestNewServer_RequiresTokenOutsideDevelopment(t *testing.T) {
	mockEnv(t)
	t.Setenv("ENV", "production")
	t.Setenv("AUTH_SIGNING_KEY", "server-key")

	cfg, _ := config.Load(emptyConfig(t))
	e, err := newServer(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("newServer: %v", err)
	}

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/patients/0000000001", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

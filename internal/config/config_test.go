package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
)

func writeSettings(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "settings.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write settings file: %v", err)
	}
	return path
}

func TestLoad_SettingsFile(t *testing.T) {
	path := writeSettings(t, `
fixed_monthly_charges = "540000"
expense_budget_validation = true
currency = "XOF"
`)
	t.Setenv("BOOKS_SETTINGS", path)
	t.Setenv("DATABASE_URL", "postgres://localhost/test")
	t.Setenv("SERVER_PORT", "9090")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ServerPort != "9090" {
		t.Errorf("expected port 9090, got %s", cfg.ServerPort)
	}
	if !cfg.Settings.FixedMonthlyCharges.Equal(decimal.RequireFromString("540000")) {
		t.Errorf("expected charges 540000, got %s", cfg.Settings.FixedMonthlyCharges)
	}
	if !cfg.Settings.ExpenseBudgetValidation {
		t.Error("expected budget validation on")
	}
	if cfg.Settings.Currency != "XOF" {
		t.Errorf("expected currency XOF, got %s", cfg.Settings.Currency)
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv("BOOKS_SETTINGS", filepath.Join(t.TempDir(), "absent.toml"))
	t.Setenv("SERVER_PORT", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ServerPort != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.ServerPort)
	}
	if !cfg.Settings.ExpenseBudgetValidation {
		t.Error("validation must default to on")
	}
	if !cfg.Settings.FixedMonthlyCharges.IsZero() {
		t.Errorf("expected zero charges, got %s", cfg.Settings.FixedMonthlyCharges)
	}
	if cfg.Settings.Currency != "XOF" {
		t.Errorf("expected default currency XOF, got %s", cfg.Settings.Currency)
	}
}

func TestLoad_InvalidCharges(t *testing.T) {
	path := writeSettings(t, `fixed_monthly_charges = "not-a-number"`)
	t.Setenv("BOOKS_SETTINGS", path)

	if _, err := Load(); err == nil {
		t.Error("expected error for unparseable charges")
	}
}

func TestLoad_NegativeCharges(t *testing.T) {
	path := writeSettings(t, `fixed_monthly_charges = "-100"`)
	t.Setenv("BOOKS_SETTINGS", path)

	if _, err := Load(); err == nil {
		t.Error("expected error for negative charges")
	}
}

func TestLoad_OmittedValidationKeyKeepsDefault(t *testing.T) {
	// A file that only adjusts charges must not flip validation off.
	path := writeSettings(t, `
fixed_monthly_charges = "250000"
currency = "XOF"
`)
	t.Setenv("BOOKS_SETTINGS", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.Settings.ExpenseBudgetValidation {
		t.Error("omitted expense_budget_validation key must leave validation on")
	}
	if !cfg.Settings.FixedMonthlyCharges.Equal(decimal.RequireFromString("250000")) {
		t.Errorf("expected charges 250000, got %s", cfg.Settings.FixedMonthlyCharges)
	}
}

func TestLoad_ValidationCanBeDisabled(t *testing.T) {
	path := writeSettings(t, `
fixed_monthly_charges = "0"
expense_budget_validation = false
`)
	t.Setenv("BOOKS_SETTINGS", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Settings.ExpenseBudgetValidation {
		t.Error("expected validation off")
	}
}

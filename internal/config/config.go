package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/shopspring/decimal"

	"tradebooks/internal/core"
)

// Config is everything the binaries need, assembled once at startup.
// Connection and serving parameters come from the environment; business
// settings come from a TOML file so operators can adjust charges without
// touching deployment env vars.
type Config struct {
	DatabaseURL    string
	ServerPort     string
	AllowedOrigins string
	Settings       core.Settings
}

// fileSettings mirrors the TOML settings file. ExpenseBudgetValidation is a
// pointer so an omitted key keeps the default (on) and only an explicit
// `expense_budget_validation = false` disables it.
type fileSettings struct {
	FixedMonthlyCharges     string `toml:"fixed_monthly_charges"`
	ExpenseBudgetValidation *bool  `toml:"expense_budget_validation"`
	Currency                string `toml:"currency"`
}

// DefaultSettingsPath is used when BOOKS_SETTINGS is not set.
const DefaultSettingsPath = "tradebooks.toml"

// Load reads the environment and the settings file. A missing settings file
// is not an error: validation defaults to on with zero fixed charges.
func Load() (Config, error) {
	cfg := Config{
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		ServerPort:     os.Getenv("SERVER_PORT"),
		AllowedOrigins: os.Getenv("ALLOWED_ORIGINS"),
		Settings: core.Settings{
			FixedMonthlyCharges:     decimal.Zero,
			ExpenseBudgetValidation: true,
			Currency:                "XOF",
		},
	}
	if cfg.ServerPort == "" {
		cfg.ServerPort = "8080"
	}

	path := os.Getenv("BOOKS_SETTINGS")
	if path == "" {
		path = DefaultSettingsPath
	}
	settings, err := loadSettingsFile(path)
	if err != nil {
		return Config{}, err
	}
	if settings != nil {
		cfg.Settings = *settings
	}
	return cfg, nil
}

func loadSettingsFile(path string) (*core.Settings, error) {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read settings file %s: %w", path, err)
	}

	var fs fileSettings
	if err := toml.Unmarshal(raw, &fs); err != nil {
		return nil, fmt.Errorf("failed to parse settings file %s: %w", path, err)
	}

	charges := decimal.Zero
	if fs.FixedMonthlyCharges != "" {
		charges, err = decimal.NewFromString(fs.FixedMonthlyCharges)
		if err != nil {
			return nil, fmt.Errorf("fixed_monthly_charges %q: %w", fs.FixedMonthlyCharges, err)
		}
		if charges.IsNegative() {
			return nil, fmt.Errorf("fixed_monthly_charges %q must not be negative", fs.FixedMonthlyCharges)
		}
	}

	currency := fs.Currency
	if currency == "" {
		currency = "XOF"
	}

	validation := true
	if fs.ExpenseBudgetValidation != nil {
		validation = *fs.ExpenseBudgetValidation
	}

	return &core.Settings{
		FixedMonthlyCharges:     charges,
		ExpenseBudgetValidation: validation,
		Currency:                currency,
	}, nil
}

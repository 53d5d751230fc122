package config

import (
	"errors"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
	DB struct {
		DSN string `yaml:"dsn"`
	} `yaml:"db"`
	Ledger struct {
		HoldDays             int   `yaml:"hold_days"`
		MinWithdrawal        int64 `yaml:"min_withdrawal"`
		DefaultCommissionBps int32 `yaml:"default_commission_bps"`
	} `yaml:"ledger"`
	Worker struct {
		IntervalSeconds int64 `yaml:"interval_seconds"`
	} `yaml:"worker"`
}

func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		path = "configs/config.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	applyEnvOverrides(&cfg)
	applyDefaults(&cfg)

	if cfg.Server.Addr == "" {
		return nil, errors.New("server.addr is required")
	}
	if cfg.DB.DSN == "" {
		return nil, errors.New("db.dsn is required")
	}
	if cfg.Ledger.HoldDays < 0 {
		return nil, errors.New("ledger.hold_days must not be negative")
	}
	if cfg.Ledger.MinWithdrawal <= 0 {
		return nil, errors.New("ledger.min_withdrawal must be positive")
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Ledger.HoldDays == 0 {
		cfg.Ledger.HoldDays = 30
	}
	if cfg.Ledger.MinWithdrawal == 0 {
		cfg.Ledger.MinWithdrawal = 10000
	}
	if cfg.Ledger.DefaultCommissionBps == 0 {
		cfg.Ledger.DefaultCommissionBps = 2000
	}
	if cfg.Worker.IntervalSeconds == 0 {
		cfg.Worker.IntervalSeconds = 300
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SERVER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("DB_DSN"); v != "" {
		cfg.DB.DSN = v
	}
	if v := os.Getenv("LEDGER_HOLD_DAYS"); v != "" {
		cfg.Ledger.HoldDays = atoiOr(cfg.Ledger.HoldDays, v)
	}
	if v := os.Getenv("LEDGER_MIN_WITHDRAWAL"); v != "" {
		cfg.Ledger.MinWithdrawal = atoi64Or(cfg.Ledger.MinWithdrawal, v)
	}
	if v := os.Getenv("LEDGER_DEFAULT_COMMISSION_BPS"); v != "" {
		cfg.Ledger.DefaultCommissionBps = int32(atoiOr(int(cfg.Ledger.DefaultCommissionBps), v))
	}
	if v := os.Getenv("WORKER_INTERVAL_SECONDS"); v != "" {
		cfg.Worker.IntervalSeconds = atoi64Or(cfg.Worker.IntervalSeconds, v)
	}
}

func atoiOr(fallback int, v string) int {
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func atoi64Or(fallback int64, v string) int64 {
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return i
}

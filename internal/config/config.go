package config

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Backup struct {
		Enabled       bool   `yaml:"enabled"`
		IntervalHours int    `yaml:"interval_hours"`
		Path          string `yaml:"path"`
		RetentionDays int    `yaml:"retention_days"`
	} `yaml:"backup"`

	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`

	Monitoring struct {
		HealthCheckPort   int  `yaml:"health_check_port"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`

	Export struct {
		Timezone     string `yaml:"timezone"`
		ProdID       string `yaml:"prod_id"`
		OutputDir    string `yaml:"output_dir"`
		DefaultStart string `yaml:"default_start"`
		DefaultEnd   string `yaml:"default_end"`
	} `yaml:"export"`

	Google struct {
		Enabled          bool    `yaml:"enabled"`
		CredentialsFile  string  `yaml:"credentials_file"`
		TokenFile        string  `yaml:"token_file"`
		CalendarID       string  `yaml:"calendar_id"`
		InsertsPerSecond float64 `yaml:"inserts_per_second"`
	} `yaml:"google"`

	Schedule struct {
		DefaultTimeFormat string `yaml:"default_time_format"` // "24" or "12"
	} `yaml:"schedule"`
}

func Load(path string) (*Config, error) {
	if path == "" {
		path = "configs/config.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Support ${ENV_VAR} placeholders in YAML config.
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	if cfg.Database.Path == "" {
		cfg.Database.Path = "data/dienstplan.db"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Export.Timezone == "" {
		cfg.Export.Timezone = "Europe/Berlin"
	}
	if cfg.Export.ProdID == "" {
		cfg.Export.ProdID = "-//Dienstplan//DE"
	}
	if cfg.Export.OutputDir == "" {
		cfg.Export.OutputDir = "exports"
	}
	if cfg.Export.DefaultStart == "" {
		cfg.Export.DefaultStart = "08:00"
	}
	if cfg.Export.DefaultEnd == "" {
		cfg.Export.DefaultEnd = "17:00"
	}
	if cfg.Google.InsertsPerSecond <= 0 {
		cfg.Google.InsertsPerSecond = 5
	}
	if cfg.Schedule.DefaultTimeFormat != "12" {
		cfg.Schedule.DefaultTimeFormat = "24"
	}

	if err = os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Location resolves the configured export timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Export.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c *Config) BackupInterval() time.Duration {
	if c.Backup.IntervalHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.Backup.IntervalHours) * time.Hour
}

package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/tinytelemetry/chanlog/internal/logparse"
	"github.com/tinytelemetry/chanlog/internal/model"
)

const (
	defaultAPIAddr           = "127.0.0.1:3000"
	defaultRetentionInterval = time.Hour
	defaultBackupInterval    = 6 * time.Hour
	defaultBackupKeep        = 24
)

// appConfig is internal runtime configuration.
type appConfig struct {
	DBPath            string        `mapstructure:"db-path"`
	Timezone          string        `mapstructure:"timezone"`
	QueryTimeout      time.Duration `mapstructure:"query-timeout"`
	DBLevel           string        `mapstructure:"db-level"`
	ConsoleLevel      string        `mapstructure:"console-level"`
	Interpolate       bool          `mapstructure:"interpolate"`
	Environment       string        `mapstructure:"environment"`
	SiteID            int64         `mapstructure:"site-id"`
	NetworkID         int64         `mapstructure:"network-id"`
	APIAddr           string        `mapstructure:"api-addr"`
	LogRetention      int           `mapstructure:"log-retention"`
	RetentionInterval time.Duration `mapstructure:"retention-interval"`
	DiagnosticsPath   string        `mapstructure:"diagnostics-path"`
	DiagnosticsFormat string        `mapstructure:"diagnostics-format"`
	DiagnosticsLevel  string        `mapstructure:"diagnostics-level"`
	BackupDir         string        `mapstructure:"backup-dir"`
	BackupInterval    time.Duration `mapstructure:"backup-interval"`
	BackupKeep        int           `mapstructure:"backup-keep"`
	ConfigPath        string        `mapstructure:"-"`

	dbLevel      model.Level
	consoleLevel model.Level
}

// loadConfig merges defaults, the optional config file, CHANLOG_* env vars
// and any changed flags in flags (bound by their long name).
func loadConfig(configPath string, flags *pflag.FlagSet) (appConfig, error) {
	var cfg appConfig

	home, err := os.UserHomeDir()
	if err != nil {
		return cfg, fmt.Errorf("finding home directory: %w", err)
	}

	defaultDBPath := filepath.Join(home, ".local", "share", "chanlog", "chanlog.duckdb")

	v := viper.New()
	v.SetEnvPrefix("CHANLOG")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	v.SetDefault("db-path", defaultDBPath)
	v.SetDefault("timezone", model.DefaultTimezone)
	v.SetDefault("query-timeout", model.DefaultQueryTimeout)
	v.SetDefault("db-level", model.DefaultDatabaseLevel.String())
	v.SetDefault("console-level", model.DefaultConsoleLevel.String())
	v.SetDefault("interpolate", true)
	v.SetDefault("environment", "")
	v.SetDefault("site-id", 0)
	v.SetDefault("network-id", 0)
	v.SetDefault("api-addr", defaultAPIAddr)
	v.SetDefault("log-retention", model.DefaultPurgeDays)
	v.SetDefault("retention-interval", defaultRetentionInterval)
	v.SetDefault("diagnostics-path", "")
	v.SetDefault("diagnostics-format", "text")
	v.SetDefault("diagnostics-level", "info")
	v.SetDefault("backup-dir", "")
	v.SetDefault("backup-interval", defaultBackupInterval)
	v.SetDefault("backup-keep", defaultBackupKeep)

	if flags != nil {
		for _, key := range []string{"db-path", "timezone", "api-addr", "backup-dir", "backup-keep"} {
			if f := flags.Lookup(key); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return cfg, fmt.Errorf("binding flag %s: %w", key, err)
				}
			}
		}
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigFile(filepath.Join(home, ".config", "chanlog", "config.yml"))
	}

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFound) && !os.IsNotExist(err) {
			return cfg, err
		}
	} else {
		cfg.ConfigPath = v.ConfigFileUsed()
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, err
	}

	if cfg.dbLevel, err = logparse.ParseLevel(cfg.DBLevel); err != nil {
		return cfg, fmt.Errorf("invalid db-level: %w", err)
	}
	if cfg.consoleLevel, err = logparse.ParseLevel(cfg.ConsoleLevel); err != nil {
		return cfg, fmt.Errorf("invalid console-level: %w", err)
	}
	if cfg.LogRetention < 0 {
		return cfg, fmt.Errorf("invalid log-retention: %d", cfg.LogRetention)
	}

	// Expand ~ in paths
	cfg.DBPath = expandHome(cfg.DBPath, home)
	cfg.DiagnosticsPath = expandHome(cfg.DiagnosticsPath, home)
	cfg.BackupDir = expandHome(cfg.BackupDir, home)

	return cfg, nil
}

func expandHome(path, home string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(home, path[2:])
	}
	return path
}

// Package config is the ambient configuration layer: CLI flags and
// environment variables bound through viper, a local .env loaded via
// godotenv in dev, XDG-resolved fallback directories when the container's
// fixed paths aren't writable, and an optional scriptd.yaml file merged
// onto the built-in defaults with mergo.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"github.com/adrg/xdg"
	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds every ambient setting the daemon needs at startup (§6).
type Config struct {
	ScriptRoot      string `mapstructure:"script_root"`
	DatabaseURL     string `mapstructure:"database_url"`
	LogRoot         string `mapstructure:"log_root"`
	BackupRoot      string `mapstructure:"backup_root"`
	HTTPAddr        string `mapstructure:"http_addr"`
	InterpreterPath string `mapstructure:"interpreter_path"`
	DaemonLogFile   string `mapstructure:"daemon_log_file"`
	Debug           bool   `mapstructure:"debug"`
}

// Defaults returns the built-in defaults (spec.md §6: SCRIPT_ROOT defaults
// to /scripts, logs/backups live under fixed /data paths).
func Defaults() Config {
	return Config{
		ScriptRoot:      "/scripts",
		DatabaseURL:     "sqlite:///data/scriptd.db",
		LogRoot:         "/data/logs",
		BackupRoot:      "/data/backups",
		HTTPAddr:        ":8080",
		InterpreterPath: "python3",
		DaemonLogFile:   "/data/logs/scriptd.log",
	}
}

// XDGFallback returns defaults rooted under the user's XDG data/state/config
// directories, used when the fixed /data, /scripts paths aren't writable
// (e.g. running outside a container, §2's [ADD] ambient stack note).
func XDGFallback() Config {
	dataHome := xdg.DataHome
	return Config{
		ScriptRoot:      filepath.Join(dataHome, "scriptd", "scripts"),
		DatabaseURL:     "sqlite://" + filepath.Join(dataHome, "scriptd", "scriptd.db"),
		LogRoot:         filepath.Join(dataHome, "scriptd", "logs"),
		BackupRoot:      filepath.Join(dataHome, "scriptd", "backups"),
		HTTPAddr:        ":8080",
		InterpreterPath: "python3",
		DaemonLogFile:   filepath.Join(dataHome, "scriptd", "logs", "scriptd.log"),
	}
}

// Load builds the effective configuration: defaults, overlaid by an
// optional scriptd.yaml at yamlPath, overlaid by environment variables and
// flags already bound onto v. A local .env file (if present at envFile) is
// loaded into the process environment first so its values are visible to
// viper's env binding.
func Load(v *viper.Viper, yamlPath, envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("load .env file: %w", err)
		}
	}

	cfg := Defaults()
	if !pathsWritable(cfg) {
		cfg = XDGFallback()
	}

	if yamlPath != "" {
		if fileCfg, err := loadYAMLFile(yamlPath); err == nil {
			if err := mergo.Merge(&cfg, fileCfg, mergo.WithOverride); err != nil {
				return Config{}, fmt.Errorf("merge scriptd.yaml: %w", err)
			}
		} else if !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("read scriptd.yaml: %w", err)
		}
	}

	bindEnvAndFlags(v)
	var fromViper Config
	if err := v.Unmarshal(&fromViper); err != nil {
		return Config{}, fmt.Errorf("unmarshal viper config: %w", err)
	}
	// viper reports every bound key, set or not, so an empty-string field
	// here is indistinguishable from "set to empty" — overlay only the
	// fields an env var or flag actually populated.
	overlayNonEmpty(&cfg, fromViper)

	return cfg, nil
}

// bindEnvAndFlags wires the fixed environment variable names from §6 onto v.
func bindEnvAndFlags(v *viper.Viper) {
	v.SetEnvPrefix("SCRIPTD")
	_ = v.BindEnv("script_root", "SCRIPT_ROOT")
	_ = v.BindEnv("database_url", "DATABASE_URL")
	_ = v.BindEnv("log_root", "LOG_ROOT")
	_ = v.BindEnv("backup_root", "BACKUP_ROOT")
	_ = v.BindEnv("http_addr", "HTTP_ADDR")
	_ = v.BindEnv("interpreter_path", "INTERPRETER_PATH")
	_ = v.BindEnv("daemon_log_file", "DAEMON_LOG_FILE")
	_ = v.BindEnv("debug", "SCRIPTD_DEBUG")
}

// overlayNonEmpty copies every non-zero field of override onto dst,
// avoiding mergo's struct-wide semantics for a handful of scalar fields
// where "unset" and "zero value" are indistinguishable otherwise.
func overlayNonEmpty(dst *Config, override Config) {
	if override.ScriptRoot != "" {
		dst.ScriptRoot = override.ScriptRoot
	}
	if override.DatabaseURL != "" {
		dst.DatabaseURL = override.DatabaseURL
	}
	if override.LogRoot != "" {
		dst.LogRoot = override.LogRoot
	}
	if override.BackupRoot != "" {
		dst.BackupRoot = override.BackupRoot
	}
	if override.HTTPAddr != "" {
		dst.HTTPAddr = override.HTTPAddr
	}
	if override.InterpreterPath != "" {
		dst.InterpreterPath = override.InterpreterPath
	}
	if override.DaemonLogFile != "" {
		dst.DaemonLogFile = override.DaemonLogFile
	}
	if override.Debug {
		dst.Debug = true
	}
}

func loadYAMLFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// pathsWritable reports whether the fixed container paths in cfg can be
// created, used to decide whether to fall back to XDG directories.
func pathsWritable(cfg Config) bool {
	probe := filepath.Dir(cfg.LogRoot)
	if err := os.MkdirAll(probe, 0o755); err != nil {
		return false
	}
	return true
}

package main

import (
	"log/slog"

	"github.com/spf13/viper"

	"github.com/scriptd/scriptd/internal/config"
	"github.com/scriptd/scriptd/internal/logger"
)

// loadConfig builds the effective Config from flags, env, and the optional
// scriptd.yaml, and installs the daemon logger as the package-level default
// (internal/logger.Init) so every component's logger.Info/Warn/Error calls
// land somewhere before bootstrap.Start runs.
func loadConfig() (config.Config, error) {
	v := viper.New()
	cfg, err := config.Load(v, cfgFile, envFile)
	if err != nil {
		return config.Config{}, err
	}
	if debug {
		cfg.Debug = true
	}

	l := logger.New(logger.Config{
		FilePath:   cfg.DaemonLogFile,
		AlsoStdout: true,
		Debug:      cfg.Debug,
	})
	logger.Init(l)
	slog.SetDefault(l)

	return cfg, nil
}

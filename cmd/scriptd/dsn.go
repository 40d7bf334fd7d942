package main

import "github.com/scriptd/scriptd/internal/config"

// dsnPathFromConfig strips config's "sqlite://" URL scheme, leaving the
// plain filesystem path store.Open expects. Mirrors internal/bootstrap's
// unexported dsnPath: both sides of the store.Open call need it and
// neither package imports the other.
func dsnPathFromConfig(cfg config.Config) string {
	const prefix = "sqlite://"
	dsn := cfg.DatabaseURL
	if len(dsn) > len(prefix) && dsn[:len(prefix)] == prefix {
		return dsn[len(prefix):]
	}
	return dsn
}

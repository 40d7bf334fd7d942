package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	assert.Equal(t, "/scripts", cfg.ScriptRoot)
	assert.Equal(t, "python3", cfg.InterpreterPath)
}

func TestLoad_EnvVarOverridesDefault(t *testing.T) {
	t.Setenv("SCRIPT_ROOT", "/custom/scripts")
	v := viper.New()
	cfg, err := Load(v, "", "")
	require.NoError(t, err)
	assert.Equal(t, "/custom/scripts", cfg.ScriptRoot)
}

func TestLoad_YAMLFileOverridesDefault(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "scriptd.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("script_root: /from/yaml\n"), 0o644))

	v := viper.New()
	cfg, err := Load(v, yamlPath, "")
	require.NoError(t, err)
	assert.Equal(t, "/from/yaml", cfg.ScriptRoot)
}

func TestLoad_MissingYAMLFileIsNotAnError(t *testing.T) {
	v := viper.New()
	_, err := Load(v, filepath.Join(t.TempDir(), "missing.yaml"), "")
	require.NoError(t, err)
}

func TestLoad_EnvOverridesYAMLFile(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "scriptd.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("script_root: /from/yaml\n"), 0o644))

	t.Setenv("SCRIPT_ROOT", "/from/env")
	v := viper.New()
	cfg, err := Load(v, yamlPath, "")
	require.NoError(t, err)
	assert.Equal(t, "/from/env", cfg.ScriptRoot)
}

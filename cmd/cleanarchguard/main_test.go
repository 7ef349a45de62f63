package main

import (
	"bytes"
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "layers.yml")
	require.NoError(t, os.WriteFile(path, []byte("version: 1\nshared_modules: [milestones]\n"), 0o600))

	cfg, err := loadConfig(path)
	require.NoError(t, err)
	require.Equal(t, "modules", cfg.Root)
	require.True(t, cfg.IgnoreTests)
	require.Equal(t, []string{"milestones"}, cfg.SharedModules)
}

func TestViolationFilter(t *testing.T) {
	cfg := &config{
		SharedModules:     []string{" milestones ", ""},
		AllowedViolations: []string{"pkg/outbox"},
	}
	f := newViolationFilter(cfg)

	require.True(t, f.allows("cannot import between milestones and billing modules"))
	require.False(t, f.allows("cannot import between billing and hrm modules"))
	require.True(t, f.allows("services imports pkg/outbox"))
	require.False(t, f.allows("domain imports infrastructure"))
	require.False(t, newViolationFilter(&config{}).allows("between milestones and billing modules"))
}

func TestLayerAliases_ConfigOverridesDefaults(t *testing.T) {
	cfg := &config{}
	cfg.Aliases.Application = []string{"usecases"}

	aliases := layerAliases(cfg)
	require.Contains(t, aliases, "usecases")
	require.NotContains(t, aliases, "services")
	require.Contains(t, aliases, "domain")
	require.Contains(t, aliases, "handlers")
}

func TestRun_MissingConfig(t *testing.T) {
	var buf bytes.Buffer
	code := run(filepath.Join(t.TempDir(), "missing.yml"), "", log.New(&buf, "", 0))
	require.Equal(t, 2, code)
	require.Contains(t, buf.String(), "read config")
}

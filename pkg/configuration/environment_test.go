package configuration

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadEnv_FallsBackToGoModRoot(t *testing.T) {
	tmp := t.TempDir()

	requireWriteFile(t, filepath.Join(tmp, "go.mod"), "module example.com/test\n\ngo 1.22\n")
	requireWriteFile(t, filepath.Join(tmp, ".env.local"), "RECRUIT_SLA_TEST_ENV_LOAD=ok\n")

	sub := filepath.Join(tmp, "modules", "milestones")
	requireMkdirAll(t, sub)

	origWd, err := os.Getwd()
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.Chdir(origWd) })
	require.NoError(t, os.Chdir(sub))

	_ = os.Unsetenv("RECRUIT_SLA_TEST_ENV_LOAD")

	n, err := LoadEnv([]string{".env", ".env.local"})
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, "ok", os.Getenv("RECRUIT_SLA_TEST_ENV_LOAD"))
}

func TestMilestoneOptions_FrozenStatusList(t *testing.T) {
	opts := MilestoneOptions{FrozenStatuses: " Paused, cancelled ,,on_hold\n"}
	require.Equal(t, []string{"paused", "cancelled", "on_hold"}, opts.FrozenStatusList())
}

func TestMilestoneOptions_Validate(t *testing.T) {
	opts := MilestoneOptions{Timezone: "America/Santiago"}
	require.NoError(t, opts.Validate())
	require.Equal(t, "America/Santiago", opts.Location().String())

	bad := MilestoneOptions{Timezone: "Mars/Olympus"}
	require.Error(t, bad.Validate())

	negative := MilestoneOptions{Timezone: "UTC", StatusCacheTTL: -time.Second}
	require.Error(t, negative.Validate())

	capped := MilestoneOptions{Timezone: "UTC", StatusCacheTTL: MaxStatusCacheTTL}
	require.NoError(t, capped.Validate())

	tooLong := MilestoneOptions{Timezone: "UTC", StatusCacheTTL: time.Minute}
	require.ErrorContains(t, tooLong.Validate(), "MILESTONES_STATUS_CACHE_TTL")

	var zero MilestoneOptions
	require.Equal(t, time.UTC, zero.Location())
}

func requireWriteFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func requireMkdirAll(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(path, 0o755))
}

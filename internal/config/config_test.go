package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWithNoProfile(t *testing.T) {
	settings, logCfg, err := Load("")
	require.NoError(t, err)
	require.False(t, settings.StrictPaths)
	require.Greater(t, settings.PoolSize, 0)
	require.Equal(t, "info", logCfg.Level)
}

func TestLoadProfileFromYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "oks.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
repo_root: /srv/oks
strict_paths: true
pool_size: 4
allow_duplicate_class: true
verbose: true
`), 0o644))

	settings, logCfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "/srv/oks", settings.RepoRoot)
	require.True(t, settings.StrictPaths)
	require.Equal(t, 4, settings.PoolSize)
	require.True(t, settings.AllowDuplicateClass)
	require.Equal(t, "verbose", logCfg.Level)
}

func TestEnvOverridesProfile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "oks.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`pool_size: 4`), 0o644))

	t.Setenv(EnvPoolSize, "2")
	t.Setenv(EnvInheritedIDCheck, "true")

	settings, _, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 2, settings.PoolSize)
	require.True(t, settings.InheritedIDCheck)
}

func TestRepoRootExpandsEnvReference(t *testing.T) {
	t.Setenv("OKS_BASE", "/data/oks")
	dir := t.TempDir()
	path := filepath.Join(dir, "oks.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`repo_root: $(OKS_BASE)/repo`), 0o644))

	settings, _, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "/data/oks/repo", settings.RepoRoot)
}

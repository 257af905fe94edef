package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "config.toml")
	err := os.WriteFile(path, []byte(content), 0644)
	require.NoError(t, err)

	return path
}

func TestLoadConfig(t *testing.T) {
	t.Parallel()

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()

		cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
		require.Error(t, err)
		require.Nil(t, cfg)
	})

	t.Run("should work", func(t *testing.T) {
		t.Parallel()

		path := writeConfigFile(t, `
[Execution]
   NumWorkers = 8
   MaxIncarnations = 16
   StorageCacheCapacity = 1000
`)

		cfg, err := LoadConfig(path)
		require.NoError(t, err)
		require.Equal(t, 8, cfg.Execution.NumWorkers)
		require.Equal(t, uint32(16), cfg.Execution.MaxIncarnations)
		require.Equal(t, 1000, cfg.Execution.StorageCacheCapacity)
	})

	t.Run("zero workers defaults to the number of CPUs", func(t *testing.T) {
		t.Parallel()

		path := writeConfigFile(t, `
[Execution]
   NumWorkers = 0
`)

		cfg, err := LoadConfig(path)
		require.NoError(t, err)
		require.Equal(t, runtime.NumCPU(), cfg.Execution.NumWorkers)
	})

	t.Run("negative workers", func(t *testing.T) {
		t.Parallel()

		path := writeConfigFile(t, `
[Execution]
   NumWorkers = -1
`)

		cfg, err := LoadConfig(path)
		require.ErrorIs(t, err, ErrInvalidNumWorkers)
		require.Nil(t, cfg)
	})

	t.Run("negative cache capacity", func(t *testing.T) {
		t.Parallel()

		path := writeConfigFile(t, `
[Execution]
   NumWorkers = 2
   StorageCacheCapacity = -1
`)

		cfg, err := LoadConfig(path)
		require.ErrorIs(t, err, ErrInvalidStorageCacheCapacity)
		require.Nil(t, cfg)
	})
}

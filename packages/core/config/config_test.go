package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindAndLoadConfig_Defaults(t *testing.T) {
	cfg, err := FindAndLoadConfig(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
	assert.True(t, cfg.GetFollowRedirects())
	assert.False(t, cfg.GetParallel())
}

func TestFindAndLoadConfig_YAML(t *testing.T) {
	dir := t.TempDir()
	content := `timeout: 5000
parallel: true
concurrency: 8
headers:
  X-Team: qa
variables:
  userId: 1
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".contractkit.yaml"), []byte(content), 0644))

	cfg, err := FindAndLoadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, 5000, cfg.Timeout)
	assert.True(t, cfg.GetParallel())
	assert.Equal(t, 8, cfg.Concurrency)
	assert.Equal(t, "qa", cfg.Headers["X-Team"])
	assert.Equal(t, 1, cfg.Variables["userId"])
	assert.Equal(t, "schemas", cfg.SchemaDir, "unset fields keep their defaults")
}

func TestLoadConfig_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".contractkit.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"output": "junit", "bail": true}`), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "junit", cfg.Output)
	assert.True(t, cfg.GetBail())
}

func TestLoadConfig_Invalid(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
		var fatal *FatalError
		require.True(t, errors.As(err, &fatal))
		assert.Equal(t, "config", fatal.Component)
	})

	t.Run("negative concurrency", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "c.yaml")
		require.NoError(t, os.WriteFile(path, []byte("concurrency: -1\n"), 0644))
		_, err := LoadConfig(path)
		assert.ErrorContains(t, err, "concurrency must not be negative")
	})
}

func TestConfig_Merge(t *testing.T) {
	base := DefaultConfig()
	base.Headers = map[string]string{"A": "1"}

	merged := base.Merge(&Config{
		Parallel: BoolPtr(true),
		Headers:  map[string]string{"B": "2"},
		Output:   "json",
	})

	assert.True(t, merged.GetParallel())
	assert.Equal(t, "json", merged.Output)
	assert.Equal(t, map[string]string{"A": "1", "B": "2"}, merged.Headers)
	assert.Equal(t, map[string]string{"A": "1"}, base.Headers, "merge must not mutate the receiver")

	t.Run("unset flags do not override", func(t *testing.T) {
		cfg := (&Config{Bail: BoolPtr(true)}).Merge(&Config{})
		assert.True(t, cfg.GetBail())
	})

	t.Run("nil other", func(t *testing.T) {
		assert.Same(t, base, base.Merge(nil))
	})
}

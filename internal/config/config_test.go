package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	t.Run("hcl overrides defaults", func(t *testing.T) {
		path := writeFile(t, "lineage.hcl", `
data_dir  = "work"
log_level = "debug"

enrich {
  batch_size         = 5
  classifier_command = ["python3", "classify.py"]
  timeout            = "30s"
}
`)
		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "work", cfg.DataDir)
		assert.Equal(t, "debug", cfg.LogLevel)
		assert.Equal(t, "mapping.json", cfg.MappingFile)
		assert.Equal(t, "text", cfg.LogFormat)
		assert.Equal(t, 5, cfg.Enrich.BatchSize)
		assert.Equal(t, 1, cfg.Enrich.Concurrency)
		assert.Equal(t, []string{"python3", "classify.py"}, cfg.Enrich.ClassifierCommand)

		d, err := cfg.Enrich.TimeoutDuration()
		require.NoError(t, err)
		assert.Equal(t, 30*time.Second, d)
	})

	t.Run("json syntax", func(t *testing.T) {
		path := writeFile(t, "lineage.json", `{"data_dir": "j", "log_format": "json"}`)
		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "j", cfg.DataDir)
		assert.Equal(t, "json", cfg.LogFormat)
	})

	t.Run("absent default file yields defaults", func(t *testing.T) {
		t.Chdir(t.TempDir())
		cfg, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, Default(), cfg)
	})

	t.Run("explicit path must exist", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.hcl"))
		require.Error(t, err)
	})

	t.Run("unknown attribute", func(t *testing.T) {
		_, err := Load(writeFile(t, "lineage.hcl", `colour = "blue"`))
		require.Error(t, err)
	})

	t.Run("invalid values name the field", func(t *testing.T) {
		for body, field := range map[string]string{
			`log_level = "loud"`:               "log_level",
			`log_format = "xml"`:               "log_format",
			"enrich {\n concurrency = -1\n}":   "enrich.concurrency",
			"enrich {\n timeout = \"soon\"\n}": "enrich.timeout",
		} {
			_, err := Load(writeFile(t, "lineage.hcl", body))
			require.Error(t, err, body)
			assert.Contains(t, err.Error(), field)
		}
	})
}

package aliasing

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	configPath := filepath.Join(t.TempDir(), "roster.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0o600))

	return configPath
}

func TestLoadConfig_ValidYAML(t *testing.T) {
	configPath := writeConfig(t, `
dimension_aliases:
  technology:
    k8s: Kubernetes
    golang: Go
  language:
    norsk: Norwegian
dimension_patterns:
  - kind: technology
    pattern: "Java {version}"
    canonical: "Java"
`)

	cfg, err := LoadConfig(configPath)

	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Len(t, cfg.DimensionAliases, 2)
	assert.Equal(t, "Kubernetes", cfg.DimensionAliases["technology"]["k8s"])
	assert.Equal(t, "Norwegian", cfg.DimensionAliases["language"]["norsk"])
	require.Len(t, cfg.DimensionPatterns, 1)
	assert.Equal(t, "Java {version}", cfg.DimensionPatterns[0].Pattern)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	cfg, err := LoadConfig("/nonexistent/path/roster.yaml")

	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Empty(t, cfg.DimensionAliases)
	assert.Empty(t, cfg.DimensionPatterns)
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	configPath := writeConfig(t, `
dimension_aliases:
  technology: [invalid yaml
`)

	cfg, err := LoadConfig(configPath)

	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Empty(t, cfg.DimensionAliases)
}

func TestLoadConfig_EmptyFile(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, ""))

	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.NotNil(t, cfg.DimensionAliases)
	assert.NotNil(t, cfg.DimensionPatterns)
}

func TestLoadConfig_OnlyComments(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "# nothing configured yet\n"))

	require.NoError(t, err)
	assert.Empty(t, cfg.DimensionAliases)
}

func TestLoadConfig_EmptySections(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "dimension_aliases:\ndimension_patterns:\n"))

	require.NoError(t, err)
	assert.NotNil(t, cfg.DimensionAliases)
	assert.NotNil(t, cfg.DimensionPatterns)
}

func TestLoadConfigFromEnv_CustomPath(t *testing.T) {
	configPath := writeConfig(t, `
dimension_aliases:
  clearance:
    security check: SC
`)
	t.Setenv(ConfigPathEnvVar, configPath)

	cfg, err := LoadConfigFromEnv()

	require.NoError(t, err)
	assert.Equal(t, "SC", cfg.DimensionAliases["clearance"]["security check"])
}

func TestLoadConfigFromEnv_DefaultPath(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, "")

	cfg, err := LoadConfigFromEnv()

	require.NoError(t, err)
	require.NotNil(t, cfg)
}

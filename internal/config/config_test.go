package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pelletier/go-toml/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_DefaultsWhenMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"), true)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, BackendMemory, cfg.Storage.Backend)
	assert.Equal(t, 1.0, cfg.Detection.Options().Resolution)
}

func TestLoad_MissingFileIsErrorUnlessAllowed(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"), false)
	assert.Error(t, err)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
[storage]
backend = "memgraph"

[memgraph]
uri = "bolt://memgraph:7687"

[detection]
max_levels = 3
resolution = 0.8

[summary.prompts]
communities = "Summarize: %s"
`)

	cfg, err := Load(path, false)
	require.NoError(t, err)
	assert.Equal(t, BackendMemgraph, cfg.Storage.Backend)
	assert.Equal(t, "bolt://memgraph:7687", cfg.Memgraph.URI)
	assert.Equal(t, 3, cfg.Detection.MaxLevels)
	assert.Equal(t, 0.8, cfg.Detection.Resolution)
	// Untouched keys keep their defaults.
	assert.Equal(t, 100, cfg.Detection.MaxIterations)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "Summarize: %s", cfg.Summary.Prompts.Communities)
}

func TestLoad_EnvironmentOverridesFile(t *testing.T) {
	path := writeConfig(t, `
[server]
port = "9000"

[llm]
provider = "openai"
`)
	t.Setenv("PORT", "7000")
	t.Setenv("LLM_PROVIDER", "claude")
	t.Setenv("LLM_API_KEY", "sk-test")
	t.Setenv("DETECTION_MIN_COMMUNITY_SIZE", "4")

	cfg, err := Load(path, false)
	require.NoError(t, err)
	assert.Equal(t, "7000", cfg.Server.Port)
	assert.Equal(t, "claude", cfg.LLM.Provider)
	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
	assert.Equal(t, 4, cfg.Detection.MinCommunitySize)
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	tests := map[string]string{
		"unknown backend":      "[storage]\nbackend = \"sqlite\"\n",
		"postgres without url": "[storage]\nbackend = \"postgres\"\n",
		"unknown provider":     "[llm]\nprovider = \"parrot\"\n",
		"bad detection":        "[detection]\nmax_levels = 0\n",
		"malformed toml":       "[storage\n",
	}

	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, content), false)
			assert.Error(t, err)
		})
	}
}

func TestRepositoryConfigLoads(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "config", "config.toml"), false)
	require.NoError(t, err)
	assert.Contains(t, cfg.Summary.Prompts.Communities, "%s")
	assert.Contains(t, cfg.Summary.Prompts.CommunityName, "%s")
}

func TestRepositoryConfigHasNoStaleKeys(t *testing.T) {
	f, err := os.Open(filepath.Join("..", "..", "config", "config.toml"))
	require.NoError(t, err)
	defer f.Close()

	err = toml.NewDecoder(f).DisallowUnknownFields().Decode(Default())
	assert.NoError(t, err)
}

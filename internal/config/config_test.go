package config

import (
	"os"
	"path/filepath"
	"testing"

	"go-gallery-archiver/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// missingConfigFile points Initialize at a path that does not exist so only
// defaults, environment and flags apply.
func missingConfigFile(t *testing.T) *string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "does-not-exist.toml")
	return &path
}

func TestInitializeDefaults(t *testing.T) {
	cfg, transport, err := Initialize(CliFlags{ConfigFilePath: missingConfigFile(t)})
	require.NoError(t, err)
	require.NotNil(t, transport)

	assert.Equal(t, DefaultDownloadRoot, cfg.DownloadRoot)
	assert.Equal(t, models.ModeNew, cfg.Mode)
	assert.Equal(t, DefaultDuplicateThreshold, cfg.DuplicateThreshold)
	assert.Equal(t, DefaultUncategorizedFolder, cfg.UncategorizedFolder)
	assert.True(t, cfg.Headless)
	assert.False(t, cfg.IncludeSeedInHash)

	// Derived paths land next to the downloads.
	assert.Equal(t, filepath.Join(DefaultDownloadRoot, "gallery.db"), cfg.DatabasePath)
	assert.Equal(t, filepath.Join(DefaultDownloadRoot, "gallery.bleve"), cfg.IndexPath)
}

func TestInitializeFlagOverrides(t *testing.T) {
	root := t.TempDir()
	mode := models.ModeAll
	threshold := 7
	seedInHash := true

	cfg, _, err := Initialize(CliFlags{
		ConfigFilePath:     missingConfigFile(t),
		DownloadRoot:       &root,
		Mode:               &mode,
		DuplicateThreshold: &threshold,
		IncludeSeedInHash:  &seedInHash,
	})
	require.NoError(t, err)

	assert.Equal(t, root, cfg.DownloadRoot)
	assert.Equal(t, models.ModeAll, cfg.Mode)
	assert.Equal(t, 7, cfg.DuplicateThreshold)
	assert.True(t, cfg.IncludeSeedInHash)
	assert.Equal(t, filepath.Join(root, "gallery.db"), cfg.DatabasePath)
}

func TestInitializeFromConfigFile(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.toml")
	content := "DownloadRoot = \"" + filepath.ToSlash(filepath.Join(dir, "archive")) + "\"\nMode = \"all\"\nDuplicateThreshold = 9\n"
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0600))

	cfg, _, err := Initialize(CliFlags{ConfigFilePath: &configPath})
	require.NoError(t, err)

	assert.Equal(t, models.ModeAll, cfg.Mode)
	assert.Equal(t, 9, cfg.DuplicateThreshold)
}

func TestInitializeEnvironment(t *testing.T) {
	t.Setenv("GALLERY_MODE", models.ModeAll)
	t.Setenv("GALLERY_USERNAME", "operator")

	cfg, _, err := Initialize(CliFlags{ConfigFilePath: missingConfigFile(t)})
	require.NoError(t, err)

	assert.Equal(t, models.ModeAll, cfg.Mode)
	assert.Equal(t, "operator", cfg.Username)
}

func TestInitializeRejectsInvalidValues(t *testing.T) {
	t.Run("Bad Mode", func(t *testing.T) {
		mode := "sideways"
		_, _, err := Initialize(CliFlags{ConfigFilePath: missingConfigFile(t), Mode: &mode})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid mode")
	})

	t.Run("Bad Threshold", func(t *testing.T) {
		threshold := 0
		_, _, err := Initialize(CliFlags{ConfigFilePath: missingConfigFile(t), DuplicateThreshold: &threshold})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "duplicate threshold")
	})

	t.Run("Empty Root", func(t *testing.T) {
		root := ""
		_, _, err := Initialize(CliFlags{ConfigFilePath: missingConfigFile(t), DownloadRoot: &root})
		require.Error(t, err)
	})
}

func TestValidateCredentials(t *testing.T) {
	cfg := &models.Config{
		SiteURL:      "https://example.test",
		DashboardURL: "https://example.test/dashboard",
		Username:     "operator",
		Password:     "secret",
	}
	assert.NoError(t, ValidateCredentials(cfg))

	cfg.Password = ""
	err := ValidateCredentials(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GALLERY_PASSWORD")
}

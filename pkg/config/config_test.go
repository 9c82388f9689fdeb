package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadWithoutEnvFile(t *testing.T) {
	// No .env exists in the test working directory; env vars alone must be
	// enough to start.
	t.Setenv("PORT", "9090")
	t.Setenv("PDF_ENGINE", PDFEngineImage)

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 9090, cfg.Port)
	require.Equal(t, PDFEngineImage, cfg.PDF.Engine)
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, EnvDevelopment, cfg.Env)
	require.Equal(t, "/api/v1", cfg.APIPrefix)
	require.Equal(t, PDFEngineNative, cfg.PDF.Engine)
	require.False(t, cfg.Archive.Enabled)
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadRequiresJWTSecret(t *testing.T) {
	t.Setenv("TIMELINE_JWT_SECRET", "")
	t.Setenv("TIMELINE_MAPPINGS_FILE", "")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadDefaultsAllowedRoles(t *testing.T) {
	t.Setenv("TIMELINE_JWT_SECRET", "secret")
	t.Setenv("TIMELINE_MAPPINGS_FILE", "")
	t.Setenv("TIMELINE_AUTH_ROLES", "")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, []string{"admin", "auditor"}, cfg.AllowedRoles)
}

func TestLoadReadsEnvironmentAndMappings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "timeline.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleMappings), 0o600))

	t.Setenv("TIMELINE_JWT_SECRET", "secret")
	t.Setenv("TIMELINE_MAPPINGS_FILE", path)
	t.Setenv("TIMELINE_APP_PORT", "9090")
	t.Setenv("TIMELINE_AUTH_ROLES", " Admin , Compliance,,")
	t.Setenv("TIMELINE_CACHE_TTL", "45s")
	t.Setenv("TIMELINE_TIMEZONE", "UTC")
	t.Setenv("TIMELINE_LOCALE", "CS")

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, ":9090", cfg.HTTPAddress())
	require.Equal(t, []string{"admin", "compliance"}, cfg.AllowedRoles)
	require.Equal(t, 45*time.Second, cfg.Timeline.CacheTTL)
	require.Equal(t, "UTC", cfg.Timeline.Location.String())
	require.Equal(t, "cs", cfg.Timeline.Locale)
	require.Equal(t, "Y-m-d", cfg.Timeline.DateTimeFormat)
	require.Equal(t, 5, cfg.Timeline.Limit)
	require.Contains(t, cfg.Timeline.Subjects, "posts")
}

func TestLoadRejectsInvalidDurations(t *testing.T) {
	t.Setenv("TIMELINE_JWT_SECRET", "secret")
	t.Setenv("TIMELINE_MAPPINGS_FILE", "")
	t.Setenv("TIMELINE_CACHE_TTL", "soon")

	_, err := Load()
	require.Error(t, err)
}

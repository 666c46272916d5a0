package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"PORT", "REFRESH_INTERVAL", "CACHE_TTL", "HTTP_TIMEOUT", "UPSTREAM_MAX_RETRIES",
		"NBA_MAX_RECOMMENDATIONS", "FARMS", "FARMS_FILE", "STORE_MAX_AGE", "REDIS_URL", "NATS_URL"} {
		t.Setenv(k, "")
	}

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 5*time.Minute, cfg.RefreshInterval)
	assert.Equal(t, 5*time.Minute, cfg.CacheTTL)
	assert.Equal(t, 15*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, 0, cfg.UpstreamMaxRetries)
	assert.Equal(t, 5, cfg.MaxRecommendations)
	assert.Equal(t, 24*time.Hour, cfg.StoreMaxAge)
	assert.Empty(t, cfg.Farms)
}

func TestLoadOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "farms.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
farms:
  - id: farm-9
    name: River Bend
    address:
      city: Ames
      country: US
`), 0o600))

	t.Setenv("REFRESH_INTERVAL", "30s")
	t.Setenv("UPSTREAM_MAX_RETRIES", "2")
	t.Setenv("FARMS", "farm-123:41.6:-93.6, farm-7")
	t.Setenv("FARMS_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, cfg.RefreshInterval)
	assert.Equal(t, 2, cfg.UpstreamMaxRetries)
	require.Len(t, cfg.Farms, 3)
	assert.Equal(t, "farm-123", cfg.Farms[0].ID)
	assert.Equal(t, 41.6, *cfg.Farms[0].Latitude)
	assert.False(t, cfg.Farms[1].HasCoordinates())
	assert.Equal(t, "River Bend", cfg.Farms[2].Name)
	assert.Equal(t, "Ames", cfg.Farms[2].Address.City)
}

func TestLoadInvalidDuration(t *testing.T) {
	t.Setenv("CACHE_TTL", "soon")
	_, err := Load()
	assert.ErrorContains(t, err, "CACHE_TTL")
}

func TestParseFarmsErrors(t *testing.T) {
	for _, in := range []string{":1:2", "a:1", "a:x:2", "a:95:2", "a:1:200"} {
		_, err := ParseFarms(in)
		assert.Error(t, err, in)
	}
}

func TestLoadFarmsFileErrors(t *testing.T) {
	_, err := LoadFarmsFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "farms.yaml")
	require.NoError(t, os.WriteFile(path, []byte("farms:\n  - name: no id\n"), 0o600))
	_, err = LoadFarmsFile(path)
	assert.Error(t, err)
}

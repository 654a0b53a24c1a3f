package sql

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kasuganosora/odatacount/pkg/resource/domain"
)

func TestParseSQLConfig_Defaults(t *testing.T) {
	cfg, err := ParseSQLConfig(&domain.DataSourceConfig{})
	require.NoError(t, err)
	assert.Equal(t, 25, cfg.MaxOpenConns)
	assert.Equal(t, "utf8mb4_bin", cfg.Collation)
	assert.Equal(t, "public", cfg.Schema)
	require.NotNil(t, cfg.ParseTime)
	assert.True(t, *cfg.ParseTime)
	assert.Equal(t, 5*time.Minute, cfg.connMaxLifetime())
}

func TestParseSQLConfig_Overrides(t *testing.T) {
	cfg, err := ParseSQLConfig(&domain.DataSourceConfig{Options: map[string]interface{}{
		"max_open_conns": 4,
		"collation":      "utf8mb4_unicode_ci",
		"parse_time":     false,
		"schema":         "odata",
	}})
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.MaxOpenConns)
	assert.Equal(t, 5, cfg.MaxIdleConns)
	assert.Equal(t, "utf8mb4_unicode_ci", cfg.Collation)
	assert.False(t, *cfg.ParseTime)
	assert.Equal(t, "odata", cfg.Schema)

	_, err = ParseSQLConfig(&domain.DataSourceConfig{Options: map[string]interface{}{"max_open_conns": "many"}})
	assert.Error(t, err)
}

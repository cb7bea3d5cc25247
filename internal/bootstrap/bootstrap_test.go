package bootstrap

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/beneficiary-import/internal/config"
)

func TestConnectRedis_NotConfigured(t *testing.T) {
	assert.Nil(t, ConnectRedis(context.Background(), config.RedisConfig{}))
}

func TestConnectRedis_Connected(t *testing.T) {
	mr := miniredis.RunT(t)
	rc := ConnectRedis(context.Background(), config.RedisConfig{Addr: mr.Addr()})
	require.NotNil(t, rc)
	defer rc.Close()
	assert.NoError(t, rc.Ping(context.Background()).Err())
}

func TestConnectRedis_UnreachableFallsBack(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()
	assert.Nil(t, ConnectRedis(context.Background(), config.RedisConfig{Addr: addr}))
}

func TestOpenDatabase_RequiresURL(t *testing.T) {
	_, err := OpenDatabase(context.Background(), config.DatabaseConfig{})
	assert.ErrorContains(t, err, "DATABASE_URL")
}

func TestImportService_WiresMetrics(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	cfg := &config.Config{Import: config.ImportConfig{LockTTLSeconds: 60}}
	d := &Deps{Config: cfg, DB: db}
	reg := prometheus.NewRegistry()

	assert.NotNil(t, d.ImportService(reg))

	families, err := reg.Gather()
	require.NoError(t, err)
	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "beneficiary_import_rows_total")
}

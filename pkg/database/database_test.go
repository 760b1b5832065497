package database_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/byu0224-0001/fin-put-Backend-sub002/pkg/database"
	"github.com/byu0224-0001/fin-put-Backend-sub002/pkg/lifecycle"
)

// unreachable points at a closed local port; sql.Open is lazy, so New
// succeeds and only Ping touches the network.
func unreachable(t *testing.T) *database.Config {
	t.Helper()
	cfg := &database.Config{
		Host:         "127.0.0.1",
		Port:         1,
		MaxOpenConns: 3,
		MaxIdleConns: 1,
		ConnTimeout:  "2s",
	}
	require.NoError(t, cfg.Finalize(nil))
	return cfg
}

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewAppliesPool(t *testing.T) {
	sys, err := database.New(unreachable(t), quiet())
	require.NoError(t, err)

	conn := sys.Connection()
	require.NotNil(t, conn)
	defer conn.Close()

	assert.Equal(t, 3, conn.Stats().MaxOpenConnections)
}

func TestCollectorExportsPoolStats(t *testing.T) {
	sys, err := database.New(unreachable(t), quiet())
	require.NoError(t, err)
	defer sys.Connection().Close()

	reg := prometheus.NewPedanticRegistry()
	require.NoError(t, reg.Register(sys.Collector()))

	n, err := testutil.GatherAndCount(reg, "go_sql_max_open_connections")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestPingUnreachable(t *testing.T) {
	sys, err := database.New(unreachable(t), quiet())
	require.NoError(t, err)
	defer sys.Connection().Close()

	assert.ErrorIs(t, sys.Ping(context.Background()), database.ErrNotReady)
}

func TestStartFailsStartup(t *testing.T) {
	sys, err := database.New(unreachable(t), quiet())
	require.NoError(t, err)

	lc := lifecycle.New()
	require.NoError(t, sys.Start(lc))

	err = lc.WaitForStartup()
	assert.ErrorIs(t, err, database.ErrNotReady)
	assert.False(t, lc.Ready())

	require.NoError(t, lc.Shutdown(5*time.Second))
}

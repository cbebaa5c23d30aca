package db

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/urbanmap/tilesync/database"
	"github.com/urbanmap/tilesync/internal/config"
)

func TestPoolConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		cfg      *config.DatabaseConfig
		wantMax  int32
		wantMin  int32
		wantLife time.Duration
		wantErr  string
	}{
		{
			name: "nil config keeps defaults",
		},
		{
			name:     "limits applied",
			cfg:      &config.DatabaseConfig{MaxOpenConns: 12, MaxIdleConns: 3, ConnMaxLifetime: "45m"},
			wantMax:  12,
			wantMin:  3,
			wantLife: 45 * time.Minute,
		},
		{
			name:    "bad lifetime",
			cfg:     &config.DatabaseConfig{ConnMaxLifetime: "never"},
			wantErr: "failed to parse connMaxLifetime",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			pc, err := PoolConfig("postgres://sync:pw@localhost:5432/tiles?sslmode=disable", tt.cfg)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "localhost", pc.ConnConfig.Host)
			assert.Equal(t, "tiles", pc.ConnConfig.Database)
			if tt.wantMax > 0 {
				assert.Equal(t, tt.wantMax, pc.MaxConns)
				assert.Equal(t, tt.wantMin, pc.MinConns)
				assert.Equal(t, tt.wantLife, pc.MaxConnLifetime)
			}
		})
	}
}

func TestPoolConfig_InvalidConnString(t *testing.T) {
	t.Parallel()

	_, err := PoolConfig("postgres://%zz", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse database connection string")
}

func TestNewPool_NoConfig(t *testing.T) {
	t.Parallel()

	_, err := NewPool(context.Background(), nil)
	require.Error(t, err)
}

func TestConnect_Unreachable(t *testing.T) {
	t.Parallel()

	pc, err := PoolConfig("postgres://sync:pw@127.0.0.1:1/tiles?sslmode=disable&connect_timeout=1", nil)
	require.NoError(t, err)

	start := time.Now()
	_, err = Connect(context.Background(), pc,
		WithConnectTimeout(300*time.Millisecond),
		WithInitialBackoff(50*time.Millisecond))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database did not become ready")
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestConnect(t *testing.T) {
	t.Parallel()

	_, connStr := database.SetupTestDB(t)

	pc, err := PoolConfig(connStr, &config.DatabaseConfig{MaxOpenConns: 4})
	require.NoError(t, err)

	pool, err := Connect(context.Background(), pc)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	assert.Equal(t, int32(4), pool.Config().MaxConns)
	require.NoError(t, pool.Ping(context.Background()))
}

package database

import (
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/elskow/users-api/internal/config"
)

func TestDSN(t *testing.T) {
	dsn := DSN(&config.DatabaseConfig{
		Host:     "db",
		Port:     5432,
		User:     "users",
		Password: "secret",
		Name:     "users",
		SSLMode:  "disable",
	})
	assert.Equal(t, "host=db user=users password=secret dbname=users port=5432 sslmode=disable", dsn)
}

func mockOpener(t *testing.T) Opener {
	t.Helper()

	return func(_ string, cfg *gorm.Config) (*gorm.DB, error) {
		sqlDB, _, err := sqlmock.New()
		require.NoError(t, err)
		t.Cleanup(func() { sqlDB.Close() })
		return gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), cfg)
	}
}

func TestNewManager_Retries(t *testing.T) {
	tests := []struct {
		name      string
		retries   int
		failures  int
		wantErr   bool
		wantCalls int
		wantSleep int
	}{
		{name: "first attempt", retries: 3, wantCalls: 1},
		{name: "recovers", retries: 3, failures: 2, wantCalls: 3, wantSleep: 2},
		{name: "gives up", retries: 3, failures: 5, wantErr: true, wantCalls: 3, wantSleep: 2},
		{name: "zero retries still tries once", retries: 0, failures: 1, wantErr: true, wantCalls: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.DatabaseConfig{ConnectRetries: tt.retries, ConnectBackoff: time.Second, MaxOpenConns: 4}
			succeed := mockOpener(t)

			calls, sleeps := 0, 0
			open := func(dsn string, gcfg *gorm.Config) (*gorm.DB, error) {
				calls++
				if calls <= tt.failures {
					return nil, errors.New("connection refused")
				}
				return succeed(dsn, gcfg)
			}

			m, err := newManager(cfg, zaptest.NewLogger(t), open, func(d time.Duration) {
				assert.Equal(t, time.Second, d)
				sleeps++
			})
			if tt.wantErr {
				assert.ErrorContains(t, err, "connection refused")
				assert.Nil(t, m)
			} else {
				require.NoError(t, err)
				assert.NotNil(t, m.DB())
			}
			assert.Equal(t, tt.wantCalls, calls)
			assert.Equal(t, tt.wantSleep, sleeps)
		})
	}
}

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
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, 10*time.Second, cfg.Database.ConnectTimeout)
	assert.Equal(t, 0, cfg.Draws.MaxEntriesPerUser)
	assert.Equal(t, "@every 1m", cfg.Scheduler.SettleSpec)
	assert.False(t, cfg.Scheduler.Enabled)
}

func TestLoadFromFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	yaml := `
database:
  driver: memory
  port: 6543
account:
  initial_balance: 100
draws:
  max_entries_per_user: 3
checkin:
  timezone: Asia/Kolkata
admin:
  ids: ["admin-1", "admin-2"]
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o600))
	t.Setenv("SERVER_ADDR", ":9090")

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.Database.Driver)
	assert.Equal(t, 6543, cfg.Database.Port)
	assert.Equal(t, int64(100), cfg.Account.InitialBalance)
	assert.Equal(t, 3, cfg.Draws.MaxEntriesPerUser)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.True(t, cfg.IsAdmin("admin-2"))
	assert.False(t, cfg.IsAdmin("someone"))

	loc, err := cfg.CheckIn.Location()
	require.NoError(t, err)
	assert.Equal(t, "Asia/Kolkata", loc.String())
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := &Config{Database: DatabaseConfig{Driver: "mysql"}}
	assert.Error(t, cfg.Validate())

	cfg = &Config{Database: DatabaseConfig{Driver: "memory"}, CheckIn: CheckInConfig{Timezone: "Mars/Olympus"}}
	assert.Error(t, cfg.Validate())

	cfg = &Config{Database: DatabaseConfig{Driver: "memory"}, Account: AccountConfig{InitialBalance: -1}}
	assert.Error(t, cfg.Validate())
}

func TestDSN(t *testing.T) {
	d := DatabaseConfig{User: "u", Password: "p", Host: "db", Port: 5432, Name: "draws"}
	assert.Equal(t, "postgres://u:p@db:5432/draws?sslmode=disable", d.DSN())
}

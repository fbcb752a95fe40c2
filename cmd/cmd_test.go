package cmd

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"blogdesk/auth"
	"blogdesk/config"
	"blogdesk/models"
)

// writeConfig points a config file at a SQLite database in a temp dir.
func writeConfig(t *testing.T) (cfgPath, dbPath string) {
	t.Helper()
	dir := t.TempDir()
	dbPath = filepath.Join(dir, "blogdesk.db")
	cfgPath = filepath.Join(dir, "config.yaml")
	yaml := fmt.Sprintf("log_level: error\njwt_secret: cli-test-secret\ndatabase:\n  driver: sqlite\n  dsn: %s\n", dbPath)
	require.NoError(t, os.WriteFile(cfgPath, []byte(yaml), 0o600))
	return cfgPath, dbPath
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestMigrateCommands(t *testing.T) {
	cfgPath, _ := writeConfig(t)

	out, err := run(t, "--config", cfgPath, "migrate", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "create_users_table")
	assert.Contains(t, out, "Pending")

	out, err = run(t, "--config", cfgPath, "migrate", "up")
	require.NoError(t, err)
	assert.Contains(t, out, "Migrated: create_roles_and_permissions_tables")

	out, err = run(t, "--config", cfgPath, "migrate", "up")
	require.NoError(t, err)
	assert.Contains(t, out, "Nothing to do.")

	out, err = run(t, "--config", cfgPath, "migrate", "down", "--steps", "1")
	require.NoError(t, err)
	assert.Equal(t, "Rolled back: create_roles_and_permissions_tables\n", out)

	out, err = run(t, "--config", cfgPath, "migrate", "fresh")
	require.NoError(t, err)
	assert.Contains(t, out, "Migrated: create_users_table")

	out, err = run(t, "--config", cfgPath, "migrate", "status")
	require.NoError(t, err)
	assert.NotContains(t, out, "Pending")
}

func TestSeedCommand(t *testing.T) {
	cfgPath, dbPath := writeConfig(t)

	out, err := run(t, "--config", cfgPath, "seed", "--migrate", "--demo", "4", "--faker-seed", "42", "--admin-password", "s3cret-pass")
	require.NoError(t, err)
	assert.Contains(t, out, "Database seeded.")

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	defer sqlDB.Close()

	var posts, categories int64
	require.NoError(t, db.Model(&models.Post{}).Count(&posts).Error)
	require.NoError(t, db.Model(&models.Category{}).Count(&categories).Error)
	assert.EqualValues(t, 4, posts)
	assert.EqualValues(t, 10, categories)

	_, err = run(t, "--config", cfgPath, "seed")
	require.NoError(t, err, "seeding again keeps existing rows")
	require.NoError(t, db.Model(&models.Category{}).Count(&categories).Error)
	assert.EqualValues(t, 10, categories)
}

func TestUnknownDriverFailsBeforeRunning(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("database:\n  driver: oracle\n"), 0o600))

	_, err := run(t, "--config", cfgPath, "migrate", "status")
	assert.ErrorContains(t, err, "unsupported database driver")
}

func TestRevocationStoreSelection(t *testing.T) {
	ctx := context.Background()
	log := zaptest.NewLogger(t)

	store, closeFn, err := revocationStore(ctx, config.RedisConfig{}, log)
	require.NoError(t, err)
	closeFn()
	assert.IsType(t, &auth.MemoryRevocationStore{}, store)

	mr := miniredis.RunT(t)
	store, closeFn, err = revocationStore(ctx, config.RedisConfig{Enabled: true, Addr: mr.Addr()}, log)
	require.NoError(t, err)
	defer closeFn()
	assert.IsType(t, &auth.RedisRevocationStore{}, store)

	mr.Close()
	_, _, err = revocationStore(ctx, config.RedisConfig{Enabled: true, Addr: mr.Addr()}, log)
	assert.Error(t, err)
}

func TestConsulDisabledIsNoop(t *testing.T) {
	deregister, err := registerWithConsul(context.Background(), &config.Config{}, zaptest.NewLogger(t))
	require.NoError(t, err)
	deregister(context.Background())
}

func freePort(t *testing.T) int {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := lis.Addr().(*net.TCPAddr).Port
	require.NoError(t, lis.Close())
	return port
}

func TestServeStartupFailureShutsDownHTTP(t *testing.T) {
	busy, err := net.Listen("tcp", ":0")
	require.NoError(t, err)
	defer busy.Close()

	cases := []struct {
		name    string
		mutate  func(cfg *config.Config)
		wantErr string
	}{
		{
			name: "grpc port taken",
			mutate: func(cfg *config.Config) {
				cfg.GRPC.Enabled = true
				cfg.GRPCPort = busy.Addr().(*net.TCPAddr).Port
			},
			wantErr: "listen on grpc port",
		},
		{
			name: "consul unreachable",
			mutate: func(cfg *config.Config) {
				cfg.GRPC.Enabled = false
				cfg.Consul.Enabled = true
				cfg.Consul.Address = fmt.Sprintf("127.0.0.1:%d", freePort(t))
			},
			wantErr: "consul",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfgPath, _ := writeConfig(t)
			cfg, err := config.Load(cfgPath)
			require.NoError(t, err)
			cfg.HTTPPort = freePort(t)
			cfg.Storage.LocalRoot = t.TempDir()
			tc.mutate(cfg)

			a := &app{cfg: cfg, log: zaptest.NewLogger(t)}
			err = a.serve(context.Background(), true)
			require.Error(t, err)
			assert.Contains(t, strings.ToLower(err.Error()), tc.wantErr)

			lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.HTTPPort))
			require.NoError(t, err, "the HTTP port is released")
			require.NoError(t, lis.Close())
		})
	}
}

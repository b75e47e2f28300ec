package connector

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaibhaw-/BrokR/internal/brokr/config"
	"github.com/vaibhaw-/BrokR/internal/brokr/dberr"
)

func sqliteConnector(t *testing.T) Connector {
	t.Helper()
	local := NewLocal(config.PoolCfg{MaxConnsPerDB: 2, AcquireTimeout: time.Second})
	t.Cleanup(func() { _ = local.Close() })

	desc := config.DatabaseCfg{
		Alias:    "test",
		Mode:     "direct",
		Type:     "sqlite",
		Database: filepath.Join(t.TempDir(), "test.db"),
	}
	conn, err := local.Connector(desc)
	require.NoError(t, err)
	return conn
}

func TestLocalSQLiteRoundTrip(t *testing.T) {
	ctx := context.Background()
	conn := sqliteConnector(t)

	_, err := conn.Execute(ctx, "CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT, status TEXT)", nil)
	require.NoError(t, err)

	affected, err := conn.Execute(ctx,
		"INSERT INTO users (id, name, status) VALUES (:id, :name, :status)",
		map[string]interface{}{"id": 1, "name": "ada", "status": "active"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)

	_, err = conn.Execute(ctx,
		"INSERT INTO users (id, name, status) VALUES (:id, :name, :status)",
		map[string]interface{}{"id": 2, "name": "bob", "status": "inactive"})
	require.NoError(t, err)

	rows, err := conn.Query(ctx,
		"SELECT id, name FROM users WHERE status = :status ORDER BY id",
		map[string]interface{}{"status": "active"})
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name"}, rows.Columns)
	require.Len(t, rows.Rows, 1)
	assert.Equal(t, "ada", rows.Rows[0][1])
}

func TestLocalSQLiteSchema(t *testing.T) {
	ctx := context.Background()
	conn := sqliteConnector(t)

	_, err := conn.Execute(ctx, "CREATE TABLE orders (id INTEGER PRIMARY KEY, amount REAL)", nil)
	require.NoError(t, err)

	schema, err := conn.Schema(ctx, "orders")
	require.NoError(t, err)
	assert.Equal(t, "orders", schema.Table)
	require.Len(t, schema.Columns, 2)
	assert.Equal(t, "id", schema.Columns[0].ColumnName)
	assert.Equal(t, "orders", schema.Columns[0].TableName)
}

func TestLocalSQLiteSchemaNeedsTable(t *testing.T) {
	conn := sqliteConnector(t)
	_, err := conn.Schema(context.Background(), "")
	require.Error(t, err)
	assert.Equal(t, dberr.KindValidation, dberr.KindOf(err))

	_, err = conn.Schema(context.Background(), "users; DROP TABLE users")
	require.Error(t, err)
	assert.Equal(t, dberr.KindValidation, dberr.KindOf(err))
}

func TestLocalSyntaxErrorMapped(t *testing.T) {
	conn := sqliteConnector(t)
	_, err := conn.Query(context.Background(), "SELEKT wat", nil)
	require.Error(t, err)
	assert.Equal(t, dberr.KindSyntax, dberr.KindOf(err))
}

func TestLocalConstraintViolationMapped(t *testing.T) {
	ctx := context.Background()
	conn := sqliteConnector(t)

	_, err := conn.Execute(ctx, "CREATE TABLE uniq (id INTEGER PRIMARY KEY)", nil)
	require.NoError(t, err)
	_, err = conn.Execute(ctx, "INSERT INTO uniq (id) VALUES (:id)", map[string]interface{}{"id": 1})
	require.NoError(t, err)

	_, err = conn.Execute(ctx, "INSERT INTO uniq (id) VALUES (:id)", map[string]interface{}{"id": 1})
	require.Error(t, err)
	assert.Equal(t, dberr.KindConstraintViolation, dberr.KindOf(err))
}

func TestPoolAcquireTimesOut(t *testing.T) {
	p := &dbPool{sem: make(chan struct{}, 1)}
	require.NoError(t, p.acquire(context.Background(), 10*time.Millisecond))

	err := p.acquire(context.Background(), 10*time.Millisecond)
	require.Error(t, err)
	assert.Equal(t, dberr.KindTimeout, dberr.KindOf(err))

	p.release()
	require.NoError(t, p.acquire(context.Background(), 10*time.Millisecond))
}

func TestPoolAcquireHonorsCallerDeadline(t *testing.T) {
	p := &dbPool{sem: make(chan struct{}, 1)}
	require.NoError(t, p.acquire(context.Background(), time.Second))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := p.acquire(ctx, time.Minute)
	require.Error(t, err)
	assert.Equal(t, dberr.KindTimeout, dberr.KindOf(err))
}

func TestLocalPoolSharedPerConnectionString(t *testing.T) {
	local := NewLocal(config.PoolCfg{MaxConnsPerDB: 2, AcquireTimeout: time.Second})
	t.Cleanup(func() { _ = local.Close() })

	desc := config.DatabaseCfg{
		Alias: "shared", Mode: "direct", Type: "sqlite",
		Database: filepath.Join(t.TempDir(), "shared.db"),
	}
	a, err := local.Connector(desc)
	require.NoError(t, err)
	b, err := local.Connector(desc)
	require.NoError(t, err)
	assert.Same(t, a.(*localConn).pool, b.(*localConn).pool)
}

func TestLocalPoolRefreshedWhenDescriptorChanges(t *testing.T) {
	local := NewLocal(config.PoolCfg{MaxConnsPerDB: 2, AcquireTimeout: time.Second})
	t.Cleanup(func() { _ = local.Close() })

	dir := t.TempDir()
	desc := config.DatabaseCfg{
		Alias: "main", Mode: "direct", Type: "sqlite",
		Database: filepath.Join(dir, "before.db"),
	}
	a, err := local.Connector(desc)
	require.NoError(t, err)

	// Same alias, new connection target, as after a config reload. The old
	// pool must not be handed out for the new target.
	desc.Database = filepath.Join(dir, "after.db")
	b, err := local.Connector(desc)
	require.NoError(t, err)
	assert.NotSame(t, a.(*localConn).pool, b.(*localConn).pool)
}

func TestLocalRejectsUnknownEngine(t *testing.T) {
	local := NewLocal(config.PoolCfg{})
	_, err := local.Connector(config.DatabaseCfg{Alias: "x", Mode: "direct", Type: "mongodb"})
	require.Error(t, err)
	assert.Equal(t, dberr.KindValidation, dberr.KindOf(err))
}

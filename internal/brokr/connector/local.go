package connector

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/vaibhaw-/BrokR/internal/brokr/config"
	"github.com/vaibhaw-/BrokR/internal/brokr/dberr"
	"github.com/vaibhaw-/BrokR/internal/brokr/logger"
)

// Local owns one bounded pool of native connections per connection string,
// created lazily on first use. Keying by connection string rather than alias
// means a descriptor whose host, port, or database changed after a config
// reload gets a fresh pool instead of the stale one. It is safe for
// concurrent use; the per-pool semaphore is the only synchronization point,
// so requests against different databases never block each other.
type Local struct {
	cfg config.PoolCfg

	mu    sync.Mutex
	pools map[string]*dbPool // keyed by driver + DSN, never logged
}

type dbPool struct {
	db  *sql.DB
	sem chan struct{}
}

func NewLocal(cfg config.PoolCfg) *Local {
	if cfg.MaxConnsPerDB <= 0 {
		cfg.MaxConnsPerDB = 4
	}
	if cfg.AcquireTimeout <= 0 {
		cfg.AcquireTimeout = 5 * time.Second
	}
	return &Local{cfg: cfg, pools: make(map[string]*dbPool)}
}

// Connector returns the direct-mode connector for a descriptor. The pool
// behind it is shared across calls that resolve to the same connection
// string.
func (l *Local) Connector(db config.DatabaseCfg) (Connector, error) {
	spec, err := engineFor(db)
	if err != nil {
		return nil, err
	}
	pool, err := l.pool(db, spec)
	if err != nil {
		return nil, err
	}
	return &localConn{desc: db, spec: spec, pool: pool, wait: l.cfg.AcquireTimeout}, nil
}

// Close releases all pooled connections.
func (l *Local) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	var firstErr error
	for key, p := range l.pools {
		if err := p.db.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close pool: %w", err)
		}
		delete(l.pools, key)
	}
	return firstErr
}

func (l *Local) pool(db config.DatabaseCfg, spec engineSpec) (*dbPool, error) {
	key := spec.driver + "\x00" + spec.dsn(db)

	l.mu.Lock()
	defer l.mu.Unlock()
	if p, ok := l.pools[key]; ok {
		return p, nil
	}

	handle, err := sql.Open(spec.driver, spec.dsn(db))
	if err != nil {
		return nil, dberr.Wrap(dberr.KindConnection, err, fmt.Sprintf("open %s database %q", db.Type, db.Alias))
	}
	handle.SetMaxOpenConns(l.cfg.MaxConnsPerDB)
	handle.SetMaxIdleConns(l.cfg.MaxConnsPerDB)

	p := &dbPool{db: handle, sem: make(chan struct{}, l.cfg.MaxConnsPerDB)}
	l.pools[key] = p
	logger.L().Debugw("created connection pool", "db_alias", db.Alias, "type", db.Type, "max_conns", l.cfg.MaxConnsPerDB)
	return p, nil
}

// acquire claims a pool slot, waiting at most wait (or until the caller's
// deadline). It fails with a timeout instead of blocking indefinitely.
func (p *dbPool) acquire(ctx context.Context, wait time.Duration) error {
	select {
	case p.sem <- struct{}{}:
		return nil
	default:
	}
	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case p.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return dberr.Wrap(dberr.KindTimeout, ctx.Err(), "canceled while waiting for a connection")
	case <-t.C:
		return dberr.New(dberr.KindTimeout, "timed out waiting for a connection after %s", wait)
	}
}

func (p *dbPool) release() { <-p.sem }

// localConn is the direct-mode Connector for one descriptor.
//
// The request context is passed down to the driver, but cancellation of an
// already-dispatched native call is best-effort: not every driver can
// interrupt a statement in flight.
type localConn struct {
	desc config.DatabaseCfg
	spec engineSpec
	pool *dbPool
	wait time.Duration
}

func (c *localConn) Query(ctx context.Context, sqlText string, params map[string]interface{}) (*Rows, error) {
	bound, args, err := bindNamed(sqlText, params, c.spec.placeholder)
	if err != nil {
		return nil, err
	}
	if err := c.pool.acquire(ctx, c.wait); err != nil {
		return nil, err
	}
	defer c.pool.release()

	rows, err := c.pool.db.QueryContext(ctx, bound, args...)
	if err != nil {
		return nil, mapDriverError(err)
	}
	defer rows.Close()
	return scanRows(rows)
}

func (c *localConn) Execute(ctx context.Context, sqlText string, params map[string]interface{}) (int64, error) {
	bound, args, err := bindNamed(sqlText, params, c.spec.placeholder)
	if err != nil {
		return 0, err
	}
	if err := c.pool.acquire(ctx, c.wait); err != nil {
		return 0, err
	}
	defer c.pool.release()

	res, err := c.pool.db.ExecContext(ctx, bound, args...)
	if err != nil {
		return 0, mapDriverError(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		// Driver cannot report a count; the statement itself succeeded.
		logger.L().Warnw("rows affected unavailable", "db_alias", c.desc.Alias, "err", err)
		return 0, nil
	}
	return affected, nil
}

func (c *localConn) Schema(ctx context.Context, table string) (*Schema, error) {
	if c.spec.pragmaSchema {
		return c.pragmaSchema(ctx, table)
	}

	sqlText, params := c.spec.schemaSQL(table)
	rows, err := c.Query(ctx, sqlText, params)
	if err != nil {
		return nil, err
	}

	out := &Schema{DBAlias: c.desc.Alias, Table: table}
	for _, row := range rows.Rows {
		if len(row) < 3 {
			continue
		}
		out.Columns = append(out.Columns, Column{
			TableName:  asString(row[0]),
			ColumnName: asString(row[1]),
			DataType:   asString(row[2]),
		})
	}
	return out, nil
}

// pragmaSchema lists columns via PRAGMA table_info, which cannot bind the
// table name as a parameter, so the name is validated as a plain identifier
// before interpolation.
func (c *localConn) pragmaSchema(ctx context.Context, table string) (*Schema, error) {
	if table == "" {
		return nil, dberr.New(dberr.KindValidation, "sqlite schema lookup requires a table name")
	}
	if !isIdentifier(table) {
		return nil, dberr.New(dberr.KindValidation, "invalid table name %q", table)
	}

	rows, err := c.Query(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table), nil)
	if err != nil {
		return nil, err
	}

	nameIdx, typeIdx := indexOf(rows.Columns, "name"), indexOf(rows.Columns, "type")
	out := &Schema{DBAlias: c.desc.Alias, Table: table}
	for _, row := range rows.Rows {
		if nameIdx < 0 || nameIdx >= len(row) || typeIdx < 0 || typeIdx >= len(row) {
			continue
		}
		out.Columns = append(out.Columns, Column{
			TableName:  table,
			ColumnName: asString(row[nameIdx]),
			DataType:   asString(row[typeIdx]),
		})
	}
	return out, nil
}

// scanRows normalizes a driver result set into ordered columns and rows.
// Byte slices become strings so results serialize the same across engines.
func scanRows(rows *sql.Rows) (*Rows, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, mapDriverError(err)
	}

	out := &Rows{Columns: cols, Rows: [][]interface{}{}}
	for rows.Next() {
		values := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, mapDriverError(err)
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		out.Rows = append(out.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, mapDriverError(err)
	}
	return out, nil
}

func asString(v interface{}) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", s)
	}
}

func indexOf(cols []string, name string) int {
	for i, c := range cols {
		if strings.EqualFold(c, name) {
			return i
		}
	}
	return -1
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '_':
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

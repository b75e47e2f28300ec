// Package connector provides one capability contract for talking to a
// database and two implementations of it: a local pool holding native driver
// connections (direct mode) and an HTTP client forwarding to a remote
// gateway service (proxied mode). The broker picks one per request from the
// descriptor's mode and never branches on mode again.
package connector

import (
	"context"
)

// Rows is the engine-neutral result of a read: ordered column names and
// ordered rows of ordered values.
type Rows struct {
	Columns []string        `json:"columns"`
	Rows    [][]interface{} `json:"rows"`
}

// Column is one column in a schema listing, normalized across engines.
type Column struct {
	TableName  string `json:"table_name"`
	ColumnName string `json:"column_name"`
	DataType   string `json:"data_type"`
}

// Schema is the result of a schema lookup for one database (and optionally
// one table).
type Schema struct {
	DBAlias string   `json:"db_alias"`
	Table   string   `json:"table,omitempty"`
	Columns []Column `json:"columns"`
}

// Connector executes classified statements against one database. Both modes
// implement it; callers cannot tell them apart.
type Connector interface {
	// Schema lists columns for the database, or for one table if table is
	// non-empty.
	Schema(ctx context.Context, table string) (*Schema, error)

	// Query runs a read statement and returns normalized rows.
	Query(ctx context.Context, sql string, params map[string]interface{}) (*Rows, error)

	// Execute runs a write or destructive statement and returns the number
	// of affected rows.
	Execute(ctx context.Context, sql string, params map[string]interface{}) (int64, error)
}

package connector

import (
	"fmt"

	"github.com/go-sql-driver/mysql"

	"github.com/vaibhaw-/BrokR/internal/brokr/config"
	"github.com/vaibhaw-/BrokR/internal/brokr/dberr"
)

// engineSpec is one entry in the engine dispatch table. Adding an engine is
// a new entry here plus a blank driver import; nothing else changes.
type engineSpec struct {
	driver      string
	placeholder placeholderStyle
	dsn         func(db config.DatabaseCfg) string
	schemaSQL   func(table string) (sql string, params map[string]interface{})
	// pragmaSchema marks engines whose schema listing comes from PRAGMA
	// table_info rather than information_schema, and therefore needs its
	// rows reshaped and a table name up front.
	pragmaSchema bool
}

var engines = map[string]engineSpec{
	"postgres": {
		driver:      "postgres",
		placeholder: placeholderDollar,
		dsn:         postgresDSN,
		schemaSQL:   postgresSchemaSQL,
	},
	"kingbase": {
		driver:      "postgres",
		placeholder: placeholderDollar,
		dsn:         postgresDSN,
		schemaSQL:   postgresSchemaSQL,
	},
	"mysql": {
		driver:      "mysql",
		placeholder: placeholderQuestion,
		dsn:         mysqlDSN,
		schemaSQL:   mysqlSchemaSQL,
	},
	"mariadb": {
		driver:      "mysql",
		placeholder: placeholderQuestion,
		dsn:         mysqlDSN,
		schemaSQL:   mysqlSchemaSQL,
	},
	"sqlite": {
		driver:       "sqlite3",
		placeholder:  placeholderQuestion,
		dsn:          func(db config.DatabaseCfg) string { return db.Database },
		pragmaSchema: true,
	},
}

func engineFor(db config.DatabaseCfg) (engineSpec, error) {
	spec, ok := engines[db.Type]
	if !ok {
		return engineSpec{}, dberr.New(dberr.KindValidation, "unsupported engine type %q for direct mode", db.Type)
	}
	return spec, nil
}

func postgresDSN(db config.DatabaseCfg) string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		db.Host, db.PortOrDefault(), db.User, db.Password, db.Database)
}

func mysqlDSN(db config.DatabaseCfg) string {
	cfg := mysql.NewConfig()
	cfg.User = db.User
	cfg.Passwd = db.Password
	cfg.Net = "tcp"
	cfg.Addr = fmt.Sprintf("%s:%d", db.Host, db.PortOrDefault())
	cfg.DBName = db.Database
	cfg.ParseTime = true
	return cfg.FormatDSN()
}

func postgresSchemaSQL(table string) (string, map[string]interface{}) {
	sql := `SELECT table_name, column_name, data_type
FROM information_schema.columns
WHERE table_schema = 'public'`
	params := map[string]interface{}{}
	if table != "" {
		sql += ` AND table_name = :table_name`
		params["table_name"] = table
	}
	return sql + ` ORDER BY table_name, ordinal_position`, params
}

func mysqlSchemaSQL(table string) (string, map[string]interface{}) {
	sql := `SELECT table_name, column_name, data_type
FROM information_schema.columns
WHERE table_schema = DATABASE()`
	params := map[string]interface{}{}
	if table != "" {
		sql += ` AND table_name = :table_name`
		params["table_name"] = table
	}
	return sql + ` ORDER BY table_name, ordinal_position`, params
}

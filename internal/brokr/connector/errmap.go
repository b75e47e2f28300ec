package connector

import (
	"context"
	"database/sql/driver"
	"errors"
	"net"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/vaibhaw-/BrokR/internal/brokr/dberr"
)

// mapDriverError folds every driver-specific failure into the unified error
// kinds, so nothing above the connector needs engine knowledge. Messages
// come from the driver and never include credentials or parameter values.
func mapDriverError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return dberr.Wrap(dberr.KindTimeout, err, "statement canceled or timed out")
	case errors.Is(err, driver.ErrBadConn):
		return dberr.Wrap(dberr.KindConnection, err, "lost database connection")
	}

	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mapMySQLError(mysqlErr)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return mapPostgresError(pqErr)
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return mapSQLiteError(sqliteErr)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return dberr.Wrap(dberr.KindTimeout, err, "network timeout")
		}
		return dberr.Wrap(dberr.KindConnection, err, "network failure")
	}

	return dberr.Wrap(dberr.KindOther, err, err.Error())
}

func mapMySQLError(err *mysql.MySQLError) error {
	switch err.Number {
	case 1064: // ER_PARSE_ERROR
		return dberr.Wrap(dberr.KindSyntax, err, err.Message)
	case 1048, // ER_BAD_NULL_ERROR
		1062, // ER_DUP_ENTRY
		1216, // ER_NO_REFERENCED_ROW
		1217, // ER_ROW_IS_REFERENCED
		1451, // ER_ROW_IS_REFERENCED_2
		1452, // ER_NO_REFERENCED_ROW_2
		3819: // ER_CHECK_CONSTRAINT_VIOLATED
		return dberr.Wrap(dberr.KindConstraintViolation, err, err.Message)
	case 1205: // ER_LOCK_WAIT_TIMEOUT
		return dberr.Wrap(dberr.KindTimeout, err, err.Message)
	case 1045, // ER_ACCESS_DENIED_ERROR
		1044, // ER_DBACCESS_DENIED_ERROR
		1049: // ER_BAD_DB_ERROR
		return dberr.Wrap(dberr.KindConnection, err, "could not connect to database")
	}
	return dberr.Wrap(dberr.KindOther, err, err.Message)
}

func mapPostgresError(err *pq.Error) error {
	switch err.Code.Class() {
	case "42": // syntax error or access rule violation
		return dberr.Wrap(dberr.KindSyntax, err, err.Message)
	case "23": // integrity constraint violation
		return dberr.Wrap(dberr.KindConstraintViolation, err, err.Message)
	case "08": // connection exception
		return dberr.Wrap(dberr.KindConnection, err, "could not connect to database")
	case "28": // invalid authorization
		return dberr.Wrap(dberr.KindConnection, err, "could not connect to database")
	case "57": // operator intervention (includes query_canceled)
		return dberr.Wrap(dberr.KindTimeout, err, err.Message)
	}
	return dberr.Wrap(dberr.KindOther, err, err.Message)
}

func mapSQLiteError(err sqlite3.Error) error {
	switch err.Code {
	case sqlite3.ErrConstraint:
		return dberr.Wrap(dberr.KindConstraintViolation, err, err.Error())
	case sqlite3.ErrBusy, sqlite3.ErrLocked:
		return dberr.Wrap(dberr.KindTimeout, err, err.Error())
	case sqlite3.ErrCantOpen, sqlite3.ErrNotADB, sqlite3.ErrPerm, sqlite3.ErrAuth:
		return dberr.Wrap(dberr.KindConnection, err, "could not open database")
	case sqlite3.ErrError:
		// sqlite reports syntax problems under the generic error code.
		if strings.Contains(err.Error(), "syntax error") {
			return dberr.Wrap(dberr.KindSyntax, err, err.Error())
		}
	}
	return dberr.Wrap(dberr.KindOther, err, err.Error())
}

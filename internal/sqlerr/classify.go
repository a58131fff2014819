// Package sqlerr classifies SQL driver failures into smklog error types.
package sqlerr

import (
	"context"
	"database/sql/driver"
	"errors"
	"net"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/lemmego/smklog"
)

// Classify returns the error type for a driver error, falling back to
// message inspection and finally to ErrorTypeInternal.
func Classify(err error) smklog.ErrorType {
	if err == nil {
		return ""
	}
	if t := smklog.TypeOf(err); t != "" {
		return t
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return smklog.ErrorTypeTimeout
	case errors.Is(err, driver.ErrBadConn):
		return smklog.ErrorTypeConnection
	}

	if code, ok := postgresCode(err); ok {
		switch code {
		case "23505":
			return smklog.ErrorTypeDuplicate
		case "23503", "23502", "23514":
			return smklog.ErrorTypeConstraint
		case "40001", "40P01", "55P03":
			return smklog.ErrorTypeLocked
		case "57014":
			return smklog.ErrorTypeTimeout
		}
		if strings.HasPrefix(code, "08") {
			return smklog.ErrorTypeConnection
		}
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case 1062:
			return smklog.ErrorTypeDuplicate
		case 1451, 1452, 1048:
			return smklog.ErrorTypeConstraint
		case 1205, 1213:
			return smklog.ErrorTypeLocked
		}
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code {
		case sqlite3.ErrBusy, sqlite3.ErrLocked:
			return smklog.ErrorTypeLocked
		case sqlite3.ErrConstraint:
			if liteErr.ExtendedCode == sqlite3.ErrConstraintUnique || liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey {
				return smklog.ErrorTypeDuplicate
			}
			return smklog.ErrorTypeConstraint
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return smklog.ErrorTypeTimeout
		}
		return smklog.ErrorTypeConnection
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "duplicate"), strings.Contains(msg, "unique"):
		return smklog.ErrorTypeDuplicate
	case strings.Contains(msg, "foreign key"), strings.Contains(msg, "constraint"):
		return smklog.ErrorTypeConstraint
	case strings.Contains(msg, "database is locked"),
		strings.Contains(msg, "deadlock"),
		strings.Contains(msg, "serialization"),
		strings.Contains(msg, "lock wait"):
		return smklog.ErrorTypeLocked
	case strings.Contains(msg, "timeout"):
		return smklog.ErrorTypeTimeout
	case strings.Contains(msg, "connection refused"),
		strings.Contains(msg, "broken pipe"),
		strings.Contains(msg, "bad connection"),
		strings.Contains(msg, "connection reset"):
		return smklog.ErrorTypeConnection
	}
	return smklog.ErrorTypeInternal
}

func postgresCode(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return strings.TrimSpace(pgErr.Code), true
	}
	var bunErr pgdriver.Error
	if errors.As(err, &bunErr) {
		return bunErr.Field('C'), true
	}
	return "", false
}

var messages = map[smklog.ErrorType]string{
	smklog.ErrorTypeDuplicate:  "duplicate key violation",
	smklog.ErrorTypeConstraint: "constraint violation",
	smklog.ErrorTypeLocked:     "resource locked",
	smklog.ErrorTypeTimeout:    "operation timeout",
	smklog.ErrorTypeConnection: "connection error",
}

// Convert wraps err in a smklog.Error. Errors that already are one pass through.
func Convert(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := smklog.AsError(err); ok {
		return err
	}
	t := Classify(err)
	msg, ok := messages[t]
	if !ok {
		msg = "database operation failed"
	}
	return smklog.NewErrorWithCause(t, msg, err)
}

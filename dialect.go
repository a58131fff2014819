package smklog

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/lib/pq"
)

// Dialect names the SQL flavour a Database speaks.
type Dialect string

// Dialect constants
const (
	DialectSQLite Dialect = "sqlite"
	DialectMySQL  Dialect = "mysql"
	DialectPgSQL  Dialect = "pgsql"
	DialectMsSQL  Dialect = "mssql"
	DialectMongo  Dialect = "mongo"
)

// SupportedDialects is a list of all supported database dialects
var SupportedDialects = []Dialect{
	DialectSQLite,
	DialectMySQL,
	DialectPgSQL,
	DialectMsSQL,
	DialectMongo,
}

// IsDialectSupported checks if the given dialect is supported
func IsDialectSupported(dialect Dialect) bool {
	for _, d := range SupportedDialects {
		if d == dialect {
			return true
		}
	}
	return false
}

// DialectForDriver maps a configured driver name to its dialect.
func DialectForDriver(driver string) (Dialect, bool) {
	switch strings.ToLower(driver) {
	case "sqlite", "sqlite3":
		return DialectSQLite, true
	case "postgres", "postgresql", "pgsql":
		return DialectPgSQL, true
	case "mysql":
		return DialectMySQL, true
	case "sqlserver", "mssql":
		return DialectMsSQL, true
	case "mongo", "mongodb":
		return DialectMongo, true
	}
	return "", false
}

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

// ValidateIdentifier rejects anything that is not a plain table or column name.
func ValidateIdentifier(name string) error {
	if !identifierPattern.MatchString(name) {
		return InvalidArgument("identifier", fmt.Sprintf("%q is not a valid identifier", name))
	}
	return nil
}

// QuoteIdent validates name and quotes it for dialect.
func QuoteIdent(dialect Dialect, name string) (string, error) {
	if err := ValidateIdentifier(name); err != nil {
		return "", err
	}
	switch dialect {
	case DialectPgSQL:
		return pq.QuoteIdentifier(name), nil
	case DialectMySQL, DialectSQLite:
		// sqlite reads an unknown double-quoted name as a string literal
		return "`" + name + "`", nil
	case DialectMsSQL:
		return "[" + name + "]", nil
	case DialectMongo:
		return name, nil
	default:
		return `"` + name + `"`, nil
	}
}

// ColumnTypeSQL returns the DDL type for a portable column type.
func ColumnTypeSQL(dialect Dialect, columnType ColumnType) (string, error) {
	switch columnType {
	case ColumnBigInt:
		return "BIGINT", nil
	case ColumnInteger:
		if dialect == DialectMsSQL {
			return "INT", nil
		}
		return "INTEGER", nil
	case ColumnText:
		switch dialect {
		case DialectMsSQL:
			return "NVARCHAR(MAX)", nil
		}
		return "TEXT", nil
	case ColumnBoolean:
		switch dialect {
		case DialectMsSQL:
			return "BIT", nil
		case DialectMySQL:
			return "TINYINT(1)", nil
		}
		return "BOOLEAN", nil
	case ColumnTimestamp:
		switch dialect {
		case DialectMySQL, DialectMsSQL:
			return "DATETIME", nil
		case DialectPgSQL:
			return "TIMESTAMPTZ", nil
		}
		return "TIMESTAMP", nil
	case ColumnJSON:
		switch dialect {
		case DialectPgSQL:
			return "JSONB", nil
		case DialectMySQL:
			return "JSON", nil
		case DialectMsSQL:
			return "NVARCHAR(MAX)", nil
		}
		return "TEXT", nil
	}
	return "", InvalidArgument("column type", fmt.Sprintf("unknown column type %q", columnType))
}

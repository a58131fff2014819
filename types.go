package smklog

import "time"

// =====================================
// Core Types and Constants
// =====================================

// Config represents database connection configuration
type Config struct {
	// Connection details
	Driver        string `json:"driver" yaml:"driver" env:"DRIVER"`
	ConnectionURL string `json:"connection_url" yaml:"connection_url" env:"URL"`
	Host          string `json:"host" yaml:"host" env:"HOST"`
	Port          int    `json:"port" yaml:"port" env:"PORT"`
	Database      string `json:"database" yaml:"database" env:"NAME"`
	Username      string `json:"username" yaml:"username" env:"USER"`
	Password      string `json:"password" yaml:"password" env:"PASSWORD"`

	// Connection pool settings
	MaxOpenConns    int           `json:"max_open_conns" yaml:"max_open_conns" env:"MAX_OPEN_CONNS"`
	MaxIdleConns    int           `json:"max_idle_conns" yaml:"max_idle_conns" env:"MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime" yaml:"conn_max_lifetime" env:"CONN_MAX_LIFETIME"`
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time" yaml:"conn_max_idle_time" env:"CONN_MAX_IDLE_TIME"`

	// Additional options, keyed by adapter name ("gorm", "bun", "mongo")
	Options map[string]interface{} `json:"options" yaml:"options"`

	// SSL/TLS configuration
	SSL SSLConfig `json:"ssl" yaml:"ssl" envPrefix:"SSL_"`
}

// SSLConfig represents SSL/TLS configuration
type SSLConfig struct {
	Enabled  bool   `json:"enabled" yaml:"enabled" env:"ENABLED"`
	Mode     string `json:"mode" yaml:"mode" env:"MODE"`
	CertFile string `json:"cert_file" yaml:"cert_file" env:"CERT_FILE"`
	KeyFile  string `json:"key_file" yaml:"key_file" env:"KEY_FILE"`
	CAFile   string `json:"ca_file" yaml:"ca_file" env:"CA_FILE"`
}

// AdapterOptions returns the option map stored under the given adapter key.
func (c Config) AdapterOptions(adapter string) map[string]interface{} {
	if c.Options == nil {
		return nil
	}
	if opts, ok := c.Options[adapter].(map[string]interface{}); ok {
		return opts
	}
	return nil
}

// ProviderInfo contains information about the provider
type ProviderInfo struct {
	Name         string
	Version      string
	DatabaseType DatabaseType
	Dialect      Dialect
	Features     []Feature
}

// DatabaseType represents the type of database
type DatabaseType string

const (
	DatabaseTypeSQL      DatabaseType = "sql"
	DatabaseTypeDocument DatabaseType = "document"
	DatabaseTypeKV       DatabaseType = "key-value"
)

// Feature represents a database feature
type Feature string

const (
	FeatureTransactions    Feature = "transactions"
	FeatureSequences       Feature = "sequences"
	FeatureNativeSequences Feature = "native_sequences"
	FeatureAdditiveDDL     Feature = "additive_ddl"
	FeatureJSONQueries     Feature = "json_queries"
	FeatureTTL             Feature = "ttl"
	FeatureRawSQL          Feature = "raw_sql"
)

// Operator represents query operators
type Operator string

const (
	OpEqual              Operator = "="
	OpNotEqual           Operator = "!="
	OpGreaterThan        Operator = ">"
	OpGreaterThanOrEqual Operator = ">="
	OpLessThan           Operator = "<"
	OpLessThanOrEqual    Operator = "<="
	OpLike               Operator = "LIKE"
	OpIn                 Operator = "IN"
	OpNotIn              Operator = "NOT IN"
	OpIsNull             Operator = "IS NULL"
	OpIsNotNull          Operator = "IS NOT NULL"
)

// LogicOperator represents logic operators for combining conditions
type LogicOperator string

const (
	LogicAnd LogicOperator = "AND"
	LogicOr  LogicOperator = "OR"
	LogicNot LogicOperator = "NOT"
)

// Order represents sorting order
type Order struct {
	Field     string
	Direction OrderDirection
}

// OrderDirection represents sort direction
type OrderDirection string

const (
	OrderAsc  OrderDirection = "ASC"
	OrderDesc OrderDirection = "DESC"
)

// ColumnType is the portable type of a column added by a schema probe.
type ColumnType string

const (
	ColumnBigInt    ColumnType = "bigint"
	ColumnInteger   ColumnType = "integer"
	ColumnText      ColumnType = "text"
	ColumnBoolean   ColumnType = "boolean"
	ColumnTimestamp ColumnType = "timestamp"
	ColumnJSON      ColumnType = "json"
)

// ErrorType represents different types of errors that can occur
type ErrorType string

const (
	ErrorTypeInvalidInput    ErrorType = "invalid_input"
	ErrorTypeNotFound        ErrorType = "not_found"
	ErrorTypeMultipleResults ErrorType = "multiple_results"
	ErrorTypeInvalidArgument ErrorType = "invalid_argument"
	ErrorTypePersistence     ErrorType = "persistence"
	ErrorTypeMigration       ErrorType = "migration"
	ErrorTypeValidation      ErrorType = "validation"
	ErrorTypeDuplicate       ErrorType = "duplicate"
	ErrorTypeConstraint      ErrorType = "constraint"
	ErrorTypeConnection      ErrorType = "connection"
	ErrorTypeTimeout         ErrorType = "timeout"
	ErrorTypeLocked          ErrorType = "locked"
	ErrorTypeTransaction     ErrorType = "transaction"
	ErrorTypeUnsupported     ErrorType = "unsupported"
	ErrorTypeInternal        ErrorType = "internal"
)

package smklog

import "context"

// =====================================
// Storage Interfaces
// =====================================

// Session is the set of storage operations a repository needs. A Database is
// a Session; inside Database.Transaction the callback receives a Session
// bound to the open transaction.
type Session interface {
	// Insert persists a new entity. The entity's identifier must already be set.
	// Example: err := Insert(ctx, &realization)
	Insert(ctx context.Context, entity interface{}) error

	// Update replaces every column of an existing entity, matched by primary key.
	// Example: err := Update(ctx, &module)
	Update(ctx context.Context, entity interface{}) error

	// Delete removes an entity, matched by primary key.
	// Example: err := Delete(ctx, &module)
	Delete(ctx context.Context, entity interface{}) error

	// FindByID loads the entity with the given primary key into dest.
	// Returns ErrorTypeNotFound if no row exists.
	// Example: err := FindByID(ctx, 42, &specialization)
	FindByID(ctx context.Context, id interface{}, dest interface{}) error

	// Query loads all rows matching opts into dest, a pointer to a slice.
	// Example: err := Query(ctx, &rows, Where("specialization_id", OpEqual, 7), OrderBy("id", OrderAsc))
	Query(ctx context.Context, dest interface{}, opts ...QueryOption) error

	// Count returns the number of rows of model's table matching opts.
	// Example: n, err := Count(ctx, &Module{}, Where("specialization_id", OpEqual, 7))
	Count(ctx context.Context, model interface{}, opts ...QueryOption) (int64, error)

	// Exec runs a raw statement. Returns ErrorTypeUnsupported on engines
	// without SQL.
	Exec(ctx context.Context, query string, args ...interface{}) (Result, error)

	// Scalar runs a query producing a single value and scans it into dest.
	// Example: err := Scalar(ctx, &next, "SELECT nextval('realization_ids')")
	Scalar(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

// Database is a Session with a transaction boundary.
type Database interface {
	Session

	// Transaction runs fn inside one storage transaction. The transaction is
	// committed when fn returns nil and rolled back otherwise.
	Transaction(ctx context.Context, fn func(tx Session) error) error

	// Dialect identifies the query language spoken by this database.
	Dialect() Dialect

	Close() error
}

// Result represents the result of a raw statement
type Result interface {
	LastInsertId() (int64, error)
	RowsAffected() (int64, error)
}

// SchemaProbe detects and adds columns. It only ever adds structure.
type SchemaProbe interface {
	// ColumnExists attempts a minimal read of column and reports false when
	// the read fails. Tables outside the allow list yield ErrorTypeInvalidArgument.
	ColumnExists(ctx context.Context, table, column string) (bool, error)

	// AddColumnIfMissing adds column when absent and reports whether it did.
	// Calling it again is a no-op.
	AddColumnIfMissing(ctx context.Context, table, column string, columnType ColumnType) (bool, error)
}

// SequenceGenerator issues identifiers. Two calls for the same name never
// return the same value.
type SequenceGenerator interface {
	// Next returns the next value of the named sequence, creating it at 1.
	Next(ctx context.Context, name string) (int64, error)

	// EnsureAtLeast raises the named sequence so the next value is above floor.
	EnsureAtLeast(ctx context.Context, name string, floor int64) error
}

// =====================================
// Provider Interfaces
// =====================================

// Provider is one configured storage engine.
type Provider interface {
	// Database returns the shared database handle.
	Database() Database

	// SchemaProbe returns a probe restricted to the allowed tables.
	SchemaProbe(allow *TableAllowList) SchemaProbe

	// Sequences returns the identifier generator for this engine.
	Sequences() SequenceGenerator

	// CreateSchema creates missing tables for models. Existing tables are left alone.
	CreateSchema(ctx context.Context, models ...interface{}) error

	Health() error
	Close() error
	ProviderInfo() ProviderInfo
	SupportedFeatures() []Feature
}

// ProviderFactory creates providers from configuration
type ProviderFactory interface {
	Create(config Config) (Provider, error)
	SupportedDrivers() []string
}

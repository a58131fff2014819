// Package smkbun provides a Bun adapter for the smklog persistence layer
package smkbun

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"github.com/lemmego/smklog"
	"github.com/lemmego/smklog/internal/sqlerr"
)

// =====================================
// Provider Implementation
// =====================================

// Provider implements smklog.Provider using Bun
type Provider struct {
	db        *bun.DB
	database  *Database
	sequences *smklog.SQLSequences
	config    smklog.Config
}

// Factory implements smklog.ProviderFactory
type Factory struct{}

// Create creates a new Bun provider instance
func (f *Factory) Create(config smklog.Config) (smklog.Provider, error) {
	return New(config)
}

// New opens a Bun provider. It is Factory.Create with a concrete return type.
func New(config smklog.Config) (*Provider, error) {
	provider := &Provider{config: config}

	dialect, _ := smklog.DialectForDriver(config.Driver)

	// Initialize database connection
	var sqlDB *sql.DB
	var err error

	switch dialect {
	case smklog.DialectPgSQL:
		sqlDB = createPostgresConnection(config)
	case smklog.DialectMySQL:
		sqlDB, err = createMySQLConnection(config)
	case smklog.DialectSQLite:
		sqlDB, err = createSQLiteConnection(config)
	default:
		return nil, smklog.Error{
			Type:    smklog.ErrorTypeUnsupported,
			Message: fmt.Sprintf("unsupported driver: %s", config.Driver),
		}
	}

	if err != nil {
		return nil, smklog.Error{
			Type:    smklog.ErrorTypeConnection,
			Message: "failed to connect to database",
			Cause:   err,
		}
	}

	// Configure connection pool
	if config.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(config.MaxOpenConns)
	}
	if config.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(config.MaxIdleConns)
	}
	if config.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(config.ConnMaxLifetime)
	}
	if config.ConnMaxIdleTime > 0 {
		sqlDB.SetConnMaxIdleTime(config.ConnMaxIdleTime)
	}

	// Create Bun database instance
	var bunDB *bun.DB
	switch dialect {
	case smklog.DialectPgSQL:
		bunDB = bun.NewDB(sqlDB, pgdialect.New())
	case smklog.DialectMySQL:
		bunDB = bun.NewDB(sqlDB, mysqldialect.New())
	case smklog.DialectSQLite:
		bunDB = bun.NewDB(sqlDB, sqlitedialect.New())
	}

	// Add query hook for logging if enabled
	if bunOpts := config.AdapterOptions("bun"); bunOpts != nil {
		if logLevel, ok := bunOpts["log_level"].(string); ok && logLevel != "silent" {
			bunDB.AddQueryHook(bundebug.NewQueryHook(
				bundebug.WithVerbose(logLevel == "debug"),
			))
		}
	}

	provider.db = bunDB
	provider.database = &Database{db: bunDB, root: bunDB, dialect: dialect}
	provider.sequences = smklog.NewSQLSequences(provider.database)
	return provider, nil
}

// SupportedDrivers returns the list of supported database drivers
func (f *Factory) SupportedDrivers() []string {
	return []string{"postgres", "postgresql", "mysql", "sqlite", "sqlite3"}
}

// DB exposes the underlying Bun handle.
func (p *Provider) DB() *bun.DB {
	return p.db
}

// Database returns the shared database handle
func (p *Provider) Database() smklog.Database {
	return p.database
}

// SchemaProbe returns a column probe restricted to allow
func (p *Provider) SchemaProbe(allow *smklog.TableAllowList) smklog.SchemaProbe {
	return smklog.NewSQLSchemaProbe(p.database, allow)
}

// Sequences returns the identifier generator
func (p *Provider) Sequences() smklog.SequenceGenerator {
	return p.sequences
}

// CreateSchema creates the tables of models that do not exist yet
func (p *Provider) CreateSchema(ctx context.Context, models ...interface{}) error {
	for _, model := range models {
		if _, err := p.db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return smklog.Migration(fmt.Sprintf("failed to create table for %T", model), convertBunError(err))
		}
	}
	return nil
}

// Health checks the database connection health
func (p *Provider) Health() error {
	return convertBunError(p.db.DB.Ping())
}

// Close closes the database connection
func (p *Provider) Close() error {
	return p.db.Close()
}

// SupportedFeatures returns the list of supported features
func (p *Provider) SupportedFeatures() []smklog.Feature {
	features := []smklog.Feature{
		smklog.FeatureTransactions,
		smklog.FeatureSequences,
		smklog.FeatureAdditiveDDL,
		smklog.FeatureRawSQL,
	}
	if p.database.dialect == smklog.DialectPgSQL {
		features = append(features, smklog.FeatureNativeSequences, smklog.FeatureJSONQueries)
	}
	return features
}

// ProviderInfo returns information about this provider
func (p *Provider) ProviderInfo() smklog.ProviderInfo {
	return smklog.ProviderInfo{
		Name:         "Bun",
		Version:      "1.0.0",
		DatabaseType: smklog.DatabaseTypeSQL,
		Dialect:      p.database.dialect,
		Features:     p.SupportedFeatures(),
	}
}

// =====================================
// Database Implementation
// =====================================

// Database implements smklog.Database over a Bun handle. db is either the
// shared *bun.DB or an open bun.Tx.
type Database struct {
	db      bun.IDB
	root    *bun.DB
	dialect smklog.Dialect
}

// Insert persists a new entity
func (d *Database) Insert(ctx context.Context, entity interface{}) error {
	_, err := d.db.NewInsert().Model(entity).Exec(ctx)
	return convertBunError(err)
}

// Update writes every column of entity, matched by primary key
func (d *Database) Update(ctx context.Context, entity interface{}) error {
	result, err := d.db.NewUpdate().Model(entity).WherePK().Exec(ctx)
	if err != nil {
		return convertBunError(err)
	}
	if n, err := result.RowsAffected(); err == nil && n > 0 {
		return nil
	}
	// MySQL counts rows written with unchanged values as unaffected.
	exists, err := d.db.NewSelect().Model(entity).WherePK().Exists(ctx)
	if err != nil {
		return convertBunError(err)
	}
	if !exists {
		return smklog.NewError(smklog.ErrorTypeNotFound, fmt.Sprintf("%T not found", entity))
	}
	return nil
}

// Delete removes entity by primary key
func (d *Database) Delete(ctx context.Context, entity interface{}) error {
	_, err := d.db.NewDelete().Model(entity).WherePK().Exec(ctx)
	return convertBunError(err)
}

// FindByID loads the row with the given primary key
func (d *Database) FindByID(ctx context.Context, id interface{}, dest interface{}) error {
	err := d.db.NewSelect().Model(dest).Where("?PKs = ?", id).Limit(1).Scan(ctx)
	return convertBunError(err)
}

// Query loads every row matching opts into dest
func (d *Database) Query(ctx context.Context, dest interface{}, opts ...smklog.QueryOption) error {
	query, err := d.buildSelectQuery(dest, opts...)
	if err != nil {
		return err
	}
	return convertBunError(query.Scan(ctx))
}

// Count counts the rows of model's table matching opts
func (d *Database) Count(ctx context.Context, model interface{}, opts ...smklog.QueryOption) (int64, error) {
	query, err := d.buildSelectQuery(model, opts...)
	if err != nil {
		return 0, err
	}
	count, err := query.Count(ctx)
	if err != nil {
		return 0, convertBunError(err)
	}
	return int64(count), nil
}

// Exec runs a raw statement
func (d *Database) Exec(ctx context.Context, query string, args ...interface{}) (smklog.Result, error) {
	result, err := d.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, convertBunError(err)
	}
	return &Result{result: result}, nil
}

// Scalar runs a single-value query
func (d *Database) Scalar(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return convertBunError(d.db.QueryRowContext(ctx, query, args...).Scan(dest))
}

// Transaction runs fn in a Bun transaction
func (d *Database) Transaction(ctx context.Context, fn func(tx smklog.Session) error) error {
	err := d.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return fn(&Database{db: tx, root: d.root, dialect: d.dialect})
	})
	return convertBunError(err)
}

// Dialect returns the SQL dialect
func (d *Database) Dialect() smklog.Dialect {
	return d.dialect
}

// Close closes the underlying connection pool
func (d *Database) Close() error {
	return d.root.Close()
}

// Result implements smklog.Result
type Result struct {
	result sql.Result
}

// LastInsertId returns the last insert ID
func (r *Result) LastInsertId() (int64, error) {
	return r.result.LastInsertId()
}

// RowsAffected returns the number of affected rows
func (r *Result) RowsAffected() (int64, error) {
	return r.result.RowsAffected()
}

// =====================================
// Query Building Helpers
// =====================================

// buildSelectQuery builds a select query with options
func (d *Database) buildSelectQuery(dest interface{}, opts ...smklog.QueryOption) (*bun.SelectQuery, error) {
	query := smklog.NewQuery(opts...)
	selectQuery := d.db.NewSelect().Model(dest)

	// Apply conditions
	for _, condition := range query.Conditions {
		clause, args, err := smklog.RenderCondition(d.dialect, condition)
		if err != nil {
			return nil, err
		}
		selectQuery = selectQuery.Where(clause, args...)
	}

	// Apply ordering
	for _, order := range query.Orders {
		field, err := smklog.QuoteIdent(d.dialect, order.Field)
		if err != nil {
			return nil, err
		}
		selectQuery = selectQuery.OrderExpr(field + " " + string(order.Direction))
	}

	// Apply limit
	if query.Limit != nil {
		selectQuery = selectQuery.Limit(*query.Limit)
	}

	// Apply offset
	if query.Offset != nil {
		selectQuery = selectQuery.Offset(*query.Offset)
	}

	return selectQuery, nil
}

// =====================================
// Connection Helpers
// =====================================

// createPostgresConnection creates a PostgreSQL connection through pgdriver
func createPostgresConnection(config smklog.Config) *sql.DB {
	dsn := config.ConnectionURL
	if dsn == "" {
		dsn = fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
			config.Username, config.Password, config.Host, config.Port, config.Database)

		if config.SSL.Enabled {
			dsn = strings.Replace(dsn, "sslmode=disable", "sslmode="+config.SSL.Mode, 1)
		}
	}

	return sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
}

// createMySQLConnection creates a MySQL connection
func createMySQLConnection(config smklog.Config) (*sql.DB, error) {
	if config.ConnectionURL != "" {
		return sql.Open("mysql", config.ConnectionURL)
	}

	mysqlConfig := mysql.Config{
		User:      config.Username,
		Passwd:    config.Password,
		Net:       "tcp",
		Addr:      fmt.Sprintf("%s:%d", config.Host, config.Port),
		DBName:    config.Database,
		ParseTime: true,
	}
	if config.SSL.Enabled {
		mysqlConfig.TLSConfig = config.SSL.Mode
	}

	return sql.Open("mysql", mysqlConfig.FormatDSN())
}

// createSQLiteConnection creates a SQLite connection
func createSQLiteConnection(config smklog.Config) (*sql.DB, error) {
	return sql.Open("sqlite3", config.Database)
}

// =====================================
// Error Conversion
// =====================================

// convertBunError converts Bun errors to smklog errors
func convertBunError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := smklog.AsError(err); ok {
		return err
	}
	if errors.Is(err, sql.ErrNoRows) {
		return smklog.Error{
			Type:    smklog.ErrorTypeNotFound,
			Message: "record not found",
			Cause:   err,
		}
	}
	if errors.Is(err, sql.ErrTxDone) {
		return smklog.Error{
			Type:    smklog.ErrorTypeTransaction,
			Message: "transaction already closed",
			Cause:   err,
		}
	}
	return sqlerr.Convert(err)
}

// =====================================
// Registration
// =====================================

// init registers the Bun provider factory
func init() {
	_ = smklog.RegisterProvider("bun", &Factory{})
}

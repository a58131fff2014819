// Package smkgorm provides a GORM adapter for the smklog persistence layer
package smkgorm

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/driver/sqlserver"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"

	"github.com/lemmego/smklog"
	"github.com/lemmego/smklog/internal/sqlerr"
)

// =====================================
// Provider Implementation
// =====================================

// Provider implements smklog.Provider using GORM
type Provider struct {
	db        *gorm.DB
	database  *Database
	sequences *smklog.SQLSequences
	config    smklog.Config
}

// Factory implements smklog.ProviderFactory
type Factory struct{}

// Create creates a new GORM provider instance
func (f *Factory) Create(config smklog.Config) (smklog.Provider, error) {
	return New(config)
}

// New opens a GORM provider. It is Factory.Create with a concrete return type.
func New(config smklog.Config) (*Provider, error) {
	provider := &Provider{config: config}

	// Configure GORM
	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
		NamingStrategy: schema.NamingStrategy{
			SingularTable: false,
		},
	}

	tracing := false
	if gormOpts := config.AdapterOptions("gorm"); gormOpts != nil {
		if logLevel, ok := gormOpts["log_level"].(string); ok {
			switch logLevel {
			case "silent":
				gormConfig.Logger = logger.Default.LogMode(logger.Silent)
			case "error":
				gormConfig.Logger = logger.Default.LogMode(logger.Error)
			case "warn":
				gormConfig.Logger = logger.Default.LogMode(logger.Warn)
			case "info":
				gormConfig.Logger = logger.Default.LogMode(logger.Info)
			}
		}
		if enabled, ok := gormOpts["tracing"].(bool); ok {
			tracing = enabled
		}
	}

	dialect, ok := smklog.DialectForDriver(config.Driver)
	if !ok || dialect == smklog.DialectMongo {
		return nil, smklog.Error{
			Type:    smklog.ErrorTypeUnsupported,
			Message: fmt.Sprintf("unsupported driver: %s", config.Driver),
		}
	}

	var dialector gorm.Dialector
	switch dialect {
	case smklog.DialectPgSQL:
		dialector = postgres.Open(buildPostgresDSN(config))
	case smklog.DialectMySQL:
		dialector = mysql.Open(buildMySQLDSN(config))
	case smklog.DialectSQLite:
		dialector = sqlite.Open(config.Database)
	case smklog.DialectMsSQL:
		dialector = sqlserver.Open(buildSQLServerDSN(config))
	}

	db, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return nil, smklog.Error{
			Type:    smklog.ErrorTypeConnection,
			Message: "failed to connect to database",
			Cause:   err,
		}
	}

	if tracing {
		if err := db.Use(otelgorm.NewPlugin()); err != nil {
			return nil, smklog.NewErrorWithCause(smklog.ErrorTypeInternal, "failed to install tracing plugin", err)
		}
	}

	// Configure connection pool
	sqlDB, err := db.DB()
	if err != nil {
		return nil, smklog.Error{
			Type:    smklog.ErrorTypeConnection,
			Message: "failed to get underlying sql.DB",
			Cause:   err,
		}
	}

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

	provider.db = db
	provider.database = &Database{db: db, dialect: dialect}
	provider.sequences = smklog.NewSQLSequences(provider.database)
	return provider, nil
}

// SupportedDrivers returns the list of supported database drivers
func (f *Factory) SupportedDrivers() []string {
	return []string{"postgres", "postgresql", "mysql", "sqlite", "sqlite3", "sqlserver", "mssql"}
}

// DB exposes the underlying GORM handle.
func (p *Provider) DB() *gorm.DB {
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

// CreateSchema creates missing tables and columns for models
func (p *Provider) CreateSchema(ctx context.Context, models ...interface{}) error {
	return sqlerr.Convert(p.db.WithContext(ctx).AutoMigrate(models...))
}

// Health checks the database connection health
func (p *Provider) Health() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return smklog.Error{
			Type:    smklog.ErrorTypeConnection,
			Message: "failed to get underlying sql.DB",
			Cause:   err,
		}
	}
	return sqlerr.Convert(sqlDB.Ping())
}

// Close closes the database connection
func (p *Provider) Close() error {
	return p.database.Close()
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
		Name:         "GORM",
		Version:      "1.0.0",
		DatabaseType: smklog.DatabaseTypeSQL,
		Dialect:      p.database.dialect,
		Features:     p.SupportedFeatures(),
	}
}

// =====================================
// Database Implementation
// =====================================

// Database implements smklog.Database over a GORM handle. Inside a
// transaction the same type wraps the transaction handle.
type Database struct {
	db      *gorm.DB
	dialect smklog.Dialect
}

// Insert persists a new entity
func (d *Database) Insert(ctx context.Context, entity interface{}) error {
	return sqlerr.Convert(d.db.WithContext(ctx).Create(entity).Error)
}

// Update writes every column of entity, matched by primary key
func (d *Database) Update(ctx context.Context, entity interface{}) error {
	result := d.db.WithContext(ctx).Model(entity).Select("*").Updates(entity)
	if result.Error != nil {
		return sqlerr.Convert(result.Error)
	}
	if result.RowsAffected > 0 {
		return nil
	}
	return d.mustExist(ctx, entity)
}

// mustExist reports NotFound unless the row of entity is present. MySQL
// counts rows written with unchanged values as unaffected.
func (d *Database) mustExist(ctx context.Context, entity interface{}) error {
	stmt := &gorm.Statement{DB: d.db}
	if err := stmt.Parse(entity); err != nil {
		return convertGormError(err)
	}
	pk := stmt.Schema.PrioritizedPrimaryField
	if pk == nil {
		return nil
	}
	id, _ := pk.ValueOf(ctx, reflect.Indirect(reflect.ValueOf(entity)))

	var n int64
	err := d.db.WithContext(ctx).Table(stmt.Schema.Table).
		Where(clause.Eq{Column: clause.Column{Name: pk.DBName}, Value: id}).
		Count(&n).Error
	if err != nil {
		return sqlerr.Convert(err)
	}
	if n == 0 {
		return smklog.NotFound(stmt.Schema.Table, id)
	}
	return nil
}

// Delete removes entity by primary key
func (d *Database) Delete(ctx context.Context, entity interface{}) error {
	return sqlerr.Convert(d.db.WithContext(ctx).Delete(entity).Error)
}

// FindByID loads the row with the given primary key
func (d *Database) FindByID(ctx context.Context, id interface{}, dest interface{}) error {
	return convertGormError(d.db.WithContext(ctx).First(dest, id).Error)
}

// Query loads every row matching opts into dest
func (d *Database) Query(ctx context.Context, dest interface{}, opts ...smklog.QueryOption) error {
	db, err := d.buildQuery(ctx, opts...)
	if err != nil {
		return err
	}
	return convertGormError(db.Find(dest).Error)
}

// Count counts the rows of model's table matching opts
func (d *Database) Count(ctx context.Context, model interface{}, opts ...smklog.QueryOption) (int64, error) {
	db, err := d.buildQuery(ctx, opts...)
	if err != nil {
		return 0, err
	}
	var count int64
	if err := db.Model(model).Count(&count).Error; err != nil {
		return 0, convertGormError(err)
	}
	return count, nil
}

// Exec runs a raw statement
func (d *Database) Exec(ctx context.Context, query string, args ...interface{}) (smklog.Result, error) {
	result := d.db.WithContext(ctx).Exec(query, args...)
	if result.Error != nil {
		return nil, convertGormError(result.Error)
	}
	return &Result{rowsAffected: result.RowsAffected}, nil
}

// Scalar runs a single-value query
func (d *Database) Scalar(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return convertGormError(d.db.WithContext(ctx).Raw(query, args...).Row().Scan(dest))
}

// Transaction runs fn in a GORM transaction
func (d *Database) Transaction(ctx context.Context, fn func(tx smklog.Session) error) error {
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Database{db: tx, dialect: d.dialect})
	})
	return convertGormError(err)
}

// Dialect returns the SQL dialect
func (d *Database) Dialect() smklog.Dialect {
	return d.dialect
}

// Close closes the underlying connection pool
func (d *Database) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Result implements smklog.Result
type Result struct {
	rowsAffected int64
}

// LastInsertId is not reported by GORM
func (r *Result) LastInsertId() (int64, error) {
	return 0, smklog.NewError(smklog.ErrorTypeUnsupported, "last insert id not available")
}

// RowsAffected returns the number of affected rows
func (r *Result) RowsAffected() (int64, error) {
	return r.rowsAffected, nil
}

// =====================================
// Query Building Helpers
// =====================================

// buildQuery builds a GORM query from query options
func (d *Database) buildQuery(ctx context.Context, opts ...smklog.QueryOption) (*gorm.DB, error) {
	query := smklog.NewQuery(opts...)
	db := d.db.WithContext(ctx)

	// Apply conditions
	for _, condition := range query.Conditions {
		clause, args, err := smklog.RenderCondition(d.dialect, condition)
		if err != nil {
			return nil, err
		}
		db = db.Where(clause, args...)
	}

	// Apply ordering
	for _, order := range query.Orders {
		field, err := smklog.QuoteIdent(d.dialect, order.Field)
		if err != nil {
			return nil, err
		}
		db = db.Order(fmt.Sprintf("%s %s", field, order.Direction))
	}

	// Apply limit
	if query.Limit != nil {
		db = db.Limit(*query.Limit)
	}

	// Apply offset
	if query.Offset != nil {
		db = db.Offset(*query.Offset)
	}

	return db, nil
}

// =====================================
// Error Conversion
// =====================================

// convertGormError converts GORM errors to smklog errors
func convertGormError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := smklog.AsError(err); ok {
		return err
	}

	switch err {
	case gorm.ErrRecordNotFound:
		return smklog.Error{
			Type:    smklog.ErrorTypeNotFound,
			Message: "record not found",
			Cause:   err,
		}
	case gorm.ErrInvalidTransaction:
		return smklog.Error{
			Type:    smklog.ErrorTypeTransaction,
			Message: "invalid transaction",
			Cause:   err,
		}
	case gorm.ErrNotImplemented:
		return smklog.Error{
			Type:    smklog.ErrorTypeUnsupported,
			Message: "operation not implemented",
			Cause:   err,
		}
	case gorm.ErrMissingWhereClause, gorm.ErrPrimaryKeyRequired, gorm.ErrModelValueRequired, gorm.ErrInvalidData:
		return smklog.Error{
			Type:    smklog.ErrorTypeInvalidInput,
			Message: err.Error(),
			Cause:   err,
		}
	}
	if strings.Contains(err.Error(), "sql: no rows in result set") {
		return smklog.Error{
			Type:    smklog.ErrorTypeNotFound,
			Message: "no rows",
			Cause:   err,
		}
	}
	return sqlerr.Convert(err)
}

// =====================================
// DSN Builders
// =====================================

// buildPostgresDSN builds a PostgreSQL DSN
func buildPostgresDSN(config smklog.Config) string {
	if config.ConnectionURL != "" {
		return config.ConnectionURL
	}

	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s",
		config.Host, config.Port, config.Username, config.Password, config.Database)

	if config.SSL.Enabled {
		dsn += " sslmode=" + config.SSL.Mode
		if config.SSL.CertFile != "" {
			dsn += " sslcert=" + config.SSL.CertFile
		}
		if config.SSL.KeyFile != "" {
			dsn += " sslkey=" + config.SSL.KeyFile
		}
		if config.SSL.CAFile != "" {
			dsn += " sslrootcert=" + config.SSL.CAFile
		}
	} else {
		dsn += " sslmode=disable"
	}

	return dsn
}

// buildMySQLDSN builds a MySQL DSN
func buildMySQLDSN(config smklog.Config) string {
	if config.ConnectionURL != "" {
		return config.ConnectionURL
	}

	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		config.Username, config.Password, config.Host, config.Port, config.Database)

	if config.SSL.Enabled {
		dsn += "&tls=" + config.SSL.Mode
	}

	return dsn
}

// buildSQLServerDSN builds a SQL Server DSN
func buildSQLServerDSN(config smklog.Config) string {
	if config.ConnectionURL != "" {
		return config.ConnectionURL
	}

	return fmt.Sprintf("sqlserver://%s:%s@%s:%d?database=%s",
		config.Username, config.Password, config.Host, config.Port, config.Database)
}

// =====================================
// Registration
// =====================================

// init registers the GORM provider factory
func init() {
	_ = smklog.RegisterProvider("gorm", &Factory{})
}

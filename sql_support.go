package smklog

import (
	"context"
	"fmt"
	"sync"
)

// =====================================
// SQL Schema Probe
// =====================================

// SQLSchemaProbe implements SchemaProbe for any SQL Database.
type SQLSchemaProbe struct {
	db    Database
	allow *TableAllowList
	mu    sync.Mutex
}

// NewSQLSchemaProbe creates a probe restricted to allow.
func NewSQLSchemaProbe(db Database, allow *TableAllowList) *SQLSchemaProbe {
	return &SQLSchemaProbe{db: db, allow: allow}
}

// ColumnExists implements SchemaProbe.
func (p *SQLSchemaProbe) ColumnExists(ctx context.Context, table, column string) (bool, error) {
	if err := p.allow.Check(table, column); err != nil {
		return false, err
	}
	t, _ := QuoteIdent(p.db.Dialect(), table)
	c, _ := QuoteIdent(p.db.Dialect(), column)

	if _, err := p.db.Exec(ctx, fmt.Sprintf("SELECT %s FROM %s WHERE 1 = 0", c, t)); err != nil {
		return false, nil
	}
	return true, nil
}

// AddColumnIfMissing implements SchemaProbe.
func (p *SQLSchemaProbe) AddColumnIfMissing(ctx context.Context, table, column string, columnType ColumnType) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	exists, err := p.ColumnExists(ctx, table, column)
	if err != nil || exists {
		return false, err
	}

	sqlType, err := ColumnTypeSQL(p.db.Dialect(), columnType)
	if err != nil {
		return false, err
	}
	t, _ := QuoteIdent(p.db.Dialect(), table)
	c, _ := QuoteIdent(p.db.Dialect(), column)

	stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", t, c, sqlType)
	if p.db.Dialect() == DialectMsSQL {
		stmt = fmt.Sprintf("ALTER TABLE %s ADD %s %s", t, c, sqlType)
	}
	if _, err := p.db.Exec(ctx, stmt); err != nil {
		return false, WithContext(err, map[string]interface{}{"table": table, "column": column})
	}
	return true, nil
}

// =====================================
// SQL Sequences
// =====================================

// SequenceTable stores counters on engines without native sequences.
const SequenceTable = "smk_sequences"

// SQLSequences implements SequenceGenerator. PostgreSQL uses native
// sequences; every other dialect keeps counters in SequenceTable and bumps
// them inside a transaction. Calls are serialized within the process.
type SQLSequences struct {
	db      Database
	mu      sync.Mutex
	ready   bool
	created map[string]bool
}

// NewSQLSequences creates a sequence generator over db.
func NewSQLSequences(db Database) *SQLSequences {
	return &SQLSequences{db: db, created: make(map[string]bool)}
}

// Next implements SequenceGenerator.
func (s *SQLSequences) Next(ctx context.Context, name string) (int64, error) {
	if err := ValidateIdentifier(name); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db.Dialect() == DialectPgSQL {
		if err := s.createNative(ctx, name); err != nil {
			return 0, err
		}
		var next int64
		if err := s.db.Scalar(ctx, &next, "SELECT nextval(?)", name); err != nil {
			return 0, err
		}
		return next, nil
	}

	if err := s.createTable(ctx); err != nil {
		return 0, err
	}
	var next int64
	err := s.db.Transaction(ctx, func(tx Session) error {
		res, err := tx.Exec(ctx, "UPDATE "+SequenceTable+" SET seq_value = seq_value + 1 WHERE seq_name = ?", name)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			if _, err := tx.Exec(ctx, "INSERT INTO "+SequenceTable+" (seq_name, seq_value) VALUES (?, 1)", name); err != nil {
				return err
			}
		}
		return tx.Scalar(ctx, &next, "SELECT seq_value FROM "+SequenceTable+" WHERE seq_name = ?", name)
	})
	if err != nil {
		return 0, WithContext(err, map[string]interface{}{"sequence": name})
	}
	return next, nil
}

// EnsureAtLeast implements SequenceGenerator.
func (s *SQLSequences) EnsureAtLeast(ctx context.Context, name string, floor int64) error {
	if err := ValidateIdentifier(name); err != nil {
		return err
	}
	if floor < 1 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db.Dialect() == DialectPgSQL {
		if err := s.createNative(ctx, name); err != nil {
			return err
		}
		var last int64
		var called bool
		seq, _ := QuoteIdent(DialectPgSQL, name)
		if err := s.db.Scalar(ctx, &last, "SELECT last_value FROM "+seq); err != nil {
			return err
		}
		if err := s.db.Scalar(ctx, &called, "SELECT is_called FROM "+seq); err != nil {
			return err
		}
		if called && last >= floor {
			return nil
		}
		var ignored int64
		return s.db.Scalar(ctx, &ignored, "SELECT setval(?, ?, true)", name, floor)
	}

	if err := s.createTable(ctx); err != nil {
		return err
	}
	return s.db.Transaction(ctx, func(tx Session) error {
		res, err := tx.Exec(ctx, "UPDATE "+SequenceTable+" SET seq_value = ? WHERE seq_name = ? AND seq_value < ?", floor, name, floor)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n > 0 {
			return nil
		}
		var count int64
		if err := tx.Scalar(ctx, &count, "SELECT COUNT(*) FROM "+SequenceTable+" WHERE seq_name = ?", name); err != nil {
			return err
		}
		if count > 0 {
			return nil
		}
		_, err = tx.Exec(ctx, "INSERT INTO "+SequenceTable+" (seq_name, seq_value) VALUES (?, ?)", name, floor)
		return err
	})
}

func (s *SQLSequences) createNative(ctx context.Context, name string) error {
	if s.created[name] {
		return nil
	}
	seq, _ := QuoteIdent(DialectPgSQL, name)
	if _, err := s.db.Exec(ctx, "CREATE SEQUENCE IF NOT EXISTS "+seq); err != nil {
		return err
	}
	s.created[name] = true
	return nil
}

func (s *SQLSequences) createTable(ctx context.Context) error {
	if s.ready {
		return nil
	}
	ddl := "CREATE TABLE IF NOT EXISTS " + SequenceTable + " (seq_name VARCHAR(128) NOT NULL PRIMARY KEY, seq_value BIGINT NOT NULL)"
	if s.db.Dialect() == DialectMsSQL {
		ddl = "IF OBJECT_ID(N'" + SequenceTable + "', N'U') IS NULL CREATE TABLE " + SequenceTable + " (seq_name NVARCHAR(128) NOT NULL PRIMARY KEY, seq_value BIGINT NOT NULL)"
	}
	if _, err := s.db.Exec(ctx, ddl); err != nil {
		return err
	}
	s.ready = true
	return nil
}

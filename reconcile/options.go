package reconcile

import (
	"fmt"
	"strings"
	"time"

	"github.com/lemmego/smklog"
	"github.com/lemmego/smklog/domain"
	"github.com/lemmego/smklog/repos"
)

// ExpectedColumn is a column Phase A makes sure exists.
type ExpectedColumn struct {
	Table  string            `yaml:"table" env:"TABLE"`
	Column string            `yaml:"column" env:"COLUMN"`
	Type   smklog.ColumnType `yaml:"type" env:"TYPE"`
}

// Options tunes a reconciliation pass.
type Options struct {
	MaxAttempts  int           `yaml:"max_attempts" env:"MAX_ATTEMPTS"`
	RetryDelay   time.Duration `yaml:"retry_delay" env:"RETRY_DELAY"`
	SentinelName string        `yaml:"sentinel_name" env:"SENTINEL_NAME"`
	// PlaceholderNames are treated like a missing name. The sentinel always is.
	PlaceholderNames []string         `yaml:"placeholder_names" env:"PLACEHOLDER_NAMES" envSeparator:","`
	ExpectedColumns  []ExpectedColumn `yaml:"expected_columns" envPrefix:"EXPECTED_COLUMNS_"`
}

// DefaultOptions returns three attempts 800ms apart, the "Unnamed" sentinel
// and module_id on both realization tables.
func DefaultOptions() Options {
	return Options{
		MaxAttempts:  smklog.DefaultMaxAttempts,
		RetryDelay:   smklog.DefaultRetryDelay,
		SentinelName: "Unnamed",
		ExpectedColumns: []ExpectedColumn{
			{Table: domain.LegacyRealization{}.TableName(), Column: "module_id", Type: smklog.ColumnBigInt},
			{Table: domain.CurrentRealization{}.TableName(), Column: "module_id", Type: smklog.ColumnBigInt},
		},
	}
}

// Validate rejects options the engine cannot run with.
func (o Options) Validate() error {
	if o.MaxAttempts < 1 {
		return smklog.InvalidArgument("max_attempts", "must be at least 1")
	}
	if o.RetryDelay < 0 {
		return smklog.InvalidArgument("retry_delay", "cannot be negative")
	}
	if strings.TrimSpace(o.SentinelName) == "" {
		return smklog.InvalidArgument("sentinel_name", "cannot be blank")
	}

	allow := repos.KnownTables()
	for i, c := range o.ExpectedColumns {
		field := fmt.Sprintf("expected_columns[%d]", i)
		if !allow.Allowed(c.Table) {
			return smklog.InvalidArgument(field, fmt.Sprintf("unknown table %q", c.Table))
		}
		if err := smklog.ValidateIdentifier(c.Column); err != nil {
			return smklog.InvalidArgument(field, err.Error())
		}
		switch c.Type {
		case smklog.ColumnBigInt, smklog.ColumnInteger, smklog.ColumnText,
			smklog.ColumnBoolean, smklog.ColumnTimestamp, smklog.ColumnJSON:
		default:
			return smklog.InvalidArgument(field, fmt.Sprintf("unknown column type %q", c.Type))
		}
	}
	return nil
}

// placeholders returns the configured placeholders plus the sentinel.
func (o Options) placeholders() []string {
	out := make([]string, 0, len(o.PlaceholderNames)+1)
	out = append(out, o.PlaceholderNames...)
	return append(out, o.SentinelName)
}

func (o Options) retry(operation, message string, kv map[string]interface{}, log smklog.Logger) smklog.RetryOptions {
	return smklog.RetryOptions{
		Operation:   operation,
		UserMessage: message,
		Context:     kv,
		MaxAttempts: o.MaxAttempts,
		Delay:       o.RetryDelay,
		Logger:      log,
	}
}

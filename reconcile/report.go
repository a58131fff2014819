package reconcile

import "time"

// Report summarizes one reconciliation pass.
type Report struct {
	RunID      string    `json:"runId"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`

	Schema    SchemaResult    `json:"schema"`
	Inference InferenceResult `json:"inference"`
	Names     NameResult      `json:"names"`
	Migration MigrationResult `json:"migration"`
}

// SchemaResult counts Phase A outcomes per expected column.
type SchemaResult struct {
	Present int `json:"present"`
	Added   int `json:"added"`
	Failed  int `json:"failed"`
}

// InferenceResult counts Phase B outcomes per orphaned row.
type InferenceResult struct {
	Examined int `json:"examined"`
	Matched  int `json:"matched"`
	FellBack int `json:"fellBack"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
}

// NameResult counts Phase C outcomes per nameless row.
type NameResult struct {
	Examined  int `json:"examined"`
	Copied    int `json:"copied"`
	Defaulted int `json:"defaulted"`
	Unchanged int `json:"unchanged"`
	Failed    int `json:"failed"`
}

// MigrationResult counts Phase D outcomes per specialization, plus the rows written.
type MigrationResult struct {
	Migrated        int `json:"migrated"`
	AlreadyMigrated int `json:"alreadyMigrated"`
	NotCurrent      int `json:"notCurrent"`
	NoSource        int `json:"noSource"`
	Failed          int `json:"failed"`
	RowsCreated     int `json:"rowsCreated"`
	TemplatesKept   int `json:"templatesKept"`
}

func (r InferenceResult) add(o InferenceResult) InferenceResult {
	r.Examined += o.Examined
	r.Matched += o.Matched
	r.FellBack += o.FellBack
	r.Skipped += o.Skipped
	r.Failed += o.Failed
	return r
}

func (r NameResult) add(o NameResult) NameResult {
	r.Examined += o.Examined
	r.Copied += o.Copied
	r.Defaulted += o.Defaulted
	r.Unchanged += o.Unchanged
	r.Failed += o.Failed
	return r
}

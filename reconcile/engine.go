// Package reconcile repairs and migrates stored training records after the
// schema has evolved. A pass runs four ordered phases: schema backfill,
// module inference for orphaned rows, name repair and legacy to current
// migration. Every write is retried on transient failures and a failing row
// or specialization never stops the rest of the pass.
package reconcile

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lemmego/smklog"
	"github.com/lemmego/smklog/domain"
	"github.com/lemmego/smklog/internal/logger"
	"github.com/lemmego/smklog/repos"
)

// realization is the constraint satisfied by *LegacyRealization and *CurrentRealization
type realization[T any] interface {
	*T
	domain.Realization
}

// VersionSource supplies the active schema version of a specialization.
type VersionSource interface {
	Version(ctx context.Context, s *domain.Specialization) (domain.SmkVersion, error)
}

// VersionFunc adapts a function to VersionSource.
type VersionFunc func(ctx context.Context, s *domain.Specialization) (domain.SmkVersion, error)

func (f VersionFunc) Version(ctx context.Context, s *domain.Specialization) (domain.SmkVersion, error) {
	return f(ctx, s)
}

// StoredVersion reads the version recorded on the specialization itself.
var StoredVersion VersionSource = VersionFunc(func(_ context.Context, s *domain.Specialization) (domain.SmkVersion, error) {
	if !s.SmkVersion.Valid() {
		return "", smklog.InvalidInput(fmt.Sprintf("specialization %d has unknown version %q", s.ID, s.SmkVersion))
	}
	return s.SmkVersion, nil
})

// Engine runs reconciliation passes over one Store. It runs one pass at a time.
type Engine struct {
	store    *repos.Store
	probe    smklog.SchemaProbe
	log      *logger.Logger
	opts     Options
	versions VersionSource

	// Phase A findings, keyed by table.column
	columns map[string]bool
}

// NewEngine creates an engine. probe may be nil, which skips Phase A; log
// may be nil for silence.
func NewEngine(store *repos.Store, probe smklog.SchemaProbe, log *logger.Logger, opts Options) *Engine {
	if log == nil {
		log = logger.Nop()
	}
	return &Engine{
		store:    store,
		probe:    probe,
		log:      log.With("component", "reconcile"),
		opts:     opts,
		versions: StoredVersion,
		columns:  make(map[string]bool),
	}
}

// WithVersionSource replaces the source of each specialization's active version.
func (e *Engine) WithVersionSource(src VersionSource) *Engine {
	if src != nil {
		e.versions = src
	}
	return e
}

// Run executes phases A to D in order. Per-row and per-specialization
// failures are counted and logged; an error is returned only when a phase
// cannot start, and the phases after it are not run.
func (e *Engine) Run(ctx context.Context) (*Report, error) {
	report := &Report{RunID: uuid.NewString(), StartedAt: time.Now().UTC()}
	run := *e
	run.log = e.log.With("run", report.RunID)
	run.log.Info("reconciliation started")

	var err error
	report.Schema = run.BackfillSchema(ctx)
	if report.Inference, err = run.InferModules(ctx); err != nil {
		return run.finish(report, err)
	}
	if report.Names, err = run.RepairNames(ctx); err != nil {
		return run.finish(report, err)
	}
	report.Migration, err = run.MigrateLegacy(ctx)
	return run.finish(report, err)
}

func (e *Engine) finish(report *Report, err error) (*Report, error) {
	report.FinishedAt = time.Now().UTC()
	if err != nil {
		e.logFailure("reconciliation aborted", err)
		return report, err
	}
	e.log.Info("reconciliation finished", "duration", report.FinishedAt.Sub(report.StartedAt))
	return report, nil
}

// =====================================
// Phase A: schema backfill
// =====================================

// BackfillSchema adds every expected column that is missing. Failures are
// counted, never returned: later phases cope with an absent column.
func (e *Engine) BackfillSchema(ctx context.Context) SchemaResult {
	var res SchemaResult
	if e.probe == nil {
		e.log.Warn("no schema probe configured, skipping schema backfill")
		return res
	}

	for _, c := range e.opts.ExpectedColumns {
		key := c.Table + "." + c.Column
		kv := map[string]interface{}{"table": c.Table, "column": c.Column}
		added, err := smklog.ExecuteWithRetry(ctx, func(ctx context.Context) (bool, error) {
			exists, err := e.probe.ColumnExists(ctx, c.Table, c.Column)
			if err != nil || exists {
				return false, err
			}
			return e.probe.AddColumnIfMissing(ctx, c.Table, c.Column, c.Type)
		}, e.opts.retry("schema backfill", "The database schema could not be updated.", kv, e.log))

		switch {
		case err != nil:
			res.Failed++
			e.columns[key] = false
			e.logFailure("column could not be added", err)
		case added:
			res.Added++
			e.columns[key] = true
			e.log.Info("column added", "table", c.Table, "column", c.Column, "type", string(c.Type))
		default:
			res.Present++
			e.columns[key] = true
		}
	}

	e.log.Info("schema backfill finished", "present", res.Present, "added", res.Added, "failed", res.Failed)
	return res
}

// moduleColumn reports whether table can be queried by module_id.
func (e *Engine) moduleColumn(ctx context.Context, table string) bool {
	if ok, seen := e.columns[table+".module_id"]; seen {
		return ok
	}
	if e.probe == nil {
		return true
	}
	exists, err := e.probe.ColumnExists(ctx, table, "module_id")
	return err == nil && exists
}

// =====================================
// Phase B: module inference
// =====================================

type family[T any, PT realization[T]] struct {
	name  string
	table string
	repo  *repos.RealizationRepository[T, PT]
}

func (e *Engine) legacy() family[domain.LegacyRealization, *domain.LegacyRealization] {
	return family[domain.LegacyRealization, *domain.LegacyRealization]{
		name:  "legacy",
		table: domain.LegacyRealization{}.TableName(),
		repo:  e.store.Legacy,
	}
}

func (e *Engine) current() family[domain.CurrentRealization, *domain.CurrentRealization] {
	return family[domain.CurrentRealization, *domain.CurrentRealization]{
		name:  "current",
		table: domain.CurrentRealization{}.TableName(),
		repo:  e.store.Current,
	}
}

// InferModules assigns a module to every realization of both families that
// has none. Rows of specializations without modules are left untouched.
func (e *Engine) InferModules(ctx context.Context) (InferenceResult, error) {
	legacy, err := inferFamily(ctx, e, e.legacy())
	if err != nil {
		return legacy, err
	}
	current, err := inferFamily(ctx, e, e.current())
	res := legacy.add(current)
	if err == nil {
		e.log.Info("module inference finished", "examined", res.Examined, "matched", res.Matched,
			"fell_back", res.FellBack, "skipped", res.Skipped, "failed", res.Failed)
	}
	return res, err
}

func inferFamily[T any, PT realization[T]](ctx context.Context, e *Engine, f family[T, PT]) (InferenceResult, error) {
	var res InferenceResult
	pushable := e.moduleColumn(ctx, f.table)
	if !pushable {
		e.log.Warn("module column unavailable, treating every row as unassigned", "table", f.table)
	}

	owners, err := smklog.ExecuteWithRetry(ctx, f.repo.SpecializationIDs,
		e.opts.retry("list "+f.name+" realization owners", "Training entries could not be read.", map[string]interface{}{"table": f.table}, e.log))
	if err != nil {
		return res, err
	}

	for _, specializationID := range owners {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		inferSpecialization(ctx, e, f, specializationID, pushable, &res)
	}
	return res, nil
}

func inferSpecialization[T any, PT realization[T]](ctx context.Context, e *Engine, f family[T, PT], specializationID int64, pushable bool, res *InferenceResult) {
	kv := map[string]interface{}{"table": f.table, "specialization_id": specializationID}

	rows, err := smklog.ExecuteWithRetry(ctx, func(ctx context.Context) ([]*T, error) {
		if pushable {
			return f.repo.GetBySpecification(ctx, repos.InSpecialization[T, PT](specializationID).
				And(repos.Realized[T, PT]()).
				And(repos.Orphaned[T, PT]()))
		}
		all, err := f.repo.Realizations(ctx, specializationID)
		return keep[T](all, repos.OrphanedInMemory[T, PT]()), err
	}, e.opts.retry("load orphaned realizations", "Training entries could not be read.", kv, e.log))
	if err != nil {
		res.Failed++
		e.logFailure("orphaned realizations could not be loaded", err)
		return
	}
	if len(rows) == 0 {
		return
	}

	modules, err := smklog.ExecuteWithRetry(ctx, func(ctx context.Context) ([]domain.Module, error) {
		return e.store.Modules.ForSpecialization(ctx, specializationID)
	}, e.opts.retry("load modules", "Modules could not be read.", kv, e.log))
	if err != nil {
		res.Failed++
		e.logFailure("modules could not be loaded", err)
		return
	}
	if len(modules) == 0 {
		res.Skipped += len(rows)
		e.log.Warn("specialization has no modules, leaving rows unassigned",
			"table", f.table, "specialization_id", specializationID, "rows", len(rows))
		return
	}

	structures := ParseStructures(modules)
	for _, m := range modules {
		if _, ok := structures[m.ID]; !ok && HasStructure(m.Structure) {
			e.log.Warn("module structure unreadable, module covers nothing", "module_id", m.ID, "specialization_id", specializationID)
		}
	}

	for _, row := range rows {
		rec := PT(row).Record()
		res.Examined++
		module, matched := InferModule(modules, structures, rec.RequirementID)
		rec.AssignModule(module.ID)

		err := smklog.Execute(ctx, func(ctx context.Context) error {
			if err := f.repo.Update(ctx, row); err != nil {
				return err
			}
			return e.store.Commit(ctx)
		}, e.opts.retry("assign module", "A training entry could not be linked to its module.", map[string]interface{}{
			"table": f.table, "id": rec.ID, "module_id": module.ID,
		}, e.log))
		if err != nil {
			res.Failed++
			e.store.UoW.Rollback()
			e.logFailure("module assignment failed", err)
			continue
		}

		if matched {
			res.Matched++
		} else {
			res.FellBack++
			e.log.Debug("no module covers requirement, using first module",
				"table", f.table, "id", rec.ID, "requirement_id", rec.RequirementID, "module_id", module.ID)
		}
	}
}

// =====================================
// Phase C: name repair
// =====================================

// RepairNames gives every nameless realization of both families a name:
// the name of the first legacy requirement template of the same
// specialization with the same duration, or the sentinel.
func (e *Engine) RepairNames(ctx context.Context) (NameResult, error) {
	legacy, err := repairFamily(ctx, e, e.legacy())
	if err != nil {
		return legacy, err
	}
	current, err := repairFamily(ctx, e, e.current())
	res := legacy.add(current)
	if err == nil {
		e.log.Info("name repair finished", "examined", res.Examined, "copied", res.Copied,
			"defaulted", res.Defaulted, "unchanged", res.Unchanged, "failed", res.Failed)
	}
	return res, err
}

func repairFamily[T any, PT realization[T]](ctx context.Context, e *Engine, f family[T, PT]) (NameResult, error) {
	var res NameResult
	owners, err := smklog.ExecuteWithRetry(ctx, f.repo.SpecializationIDs,
		e.opts.retry("list "+f.name+" realization owners", "Training entries could not be read.", map[string]interface{}{"table": f.table}, e.log))
	if err != nil {
		return res, err
	}

	placeholders := e.opts.placeholders()
	for _, specializationID := range owners {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		kv := map[string]interface{}{"table": f.table, "specialization_id": specializationID}

		rows, err := smklog.ExecuteWithRetry(ctx, func(ctx context.Context) ([]*T, error) {
			all, err := f.repo.Realizations(ctx, specializationID)
			return keep[T](all, repos.MissingName[T, PT](placeholders...)), err
		}, e.opts.retry("load nameless realizations", "Training entries could not be read.", kv, e.log))
		if err != nil {
			res.Failed++
			e.logFailure("nameless realizations could not be loaded", err)
			continue
		}
		if len(rows) == 0 {
			continue
		}

		templates, err := smklog.ExecuteWithRetry(ctx, func(ctx context.Context) ([]*domain.LegacyRealization, error) {
			return e.store.Legacy.Templates(ctx, specializationID)
		}, e.opts.retry("load requirement templates", "Requirements could not be read.", kv, e.log))
		if err != nil {
			res.Failed++
			e.logFailure("requirement templates could not be loaded", err)
			continue
		}

		for _, row := range rows {
			rec := PT(row).Record()
			res.Examined++
			name, copied := nameFor(templates, rec.DurationDays, placeholders, e.opts.SentinelName)
			if rec.Name == name {
				res.Unchanged++
				continue
			}
			rec.Name = name

			err := smklog.Execute(ctx, func(ctx context.Context) error {
				if err := f.repo.Update(ctx, row); err != nil {
					return err
				}
				return e.store.Commit(ctx)
			}, e.opts.retry("repair name", "A training entry could not be renamed.", map[string]interface{}{
				"table": f.table, "id": rec.ID,
			}, e.log))
			if err != nil {
				res.Failed++
				e.store.UoW.Rollback()
				e.logFailure("name repair failed", err)
				continue
			}
			if copied {
				res.Copied++
			} else {
				res.Defaulted++
			}
		}
	}
	return res, nil
}

// nameFor returns the name of the first template lasting days that carries a
// real name, or sentinel when none does.
func nameFor(templates []*domain.LegacyRealization, days int, placeholders []string, sentinel string) (string, bool) {
	for _, t := range templates {
		if t.DurationDays == days && t.HasName(placeholders...) {
			return strings.TrimSpace(t.Name), true
		}
	}
	return sentinel, false
}

// =====================================
// Phase D: legacy to current migration
// =====================================

// MigrateLegacy copies the legacy realizations of every specialization on
// the current version into the current family. A specialization that
// already has current realizations is skipped, so the phase can run any
// number of times. Requirement templates are never copied.
func (e *Engine) MigrateLegacy(ctx context.Context) (MigrationResult, error) {
	var res MigrationResult
	specializations, err := smklog.ExecuteWithRetry(ctx, e.store.Specializations.GetAll,
		e.opts.retry("list specializations", "Specializations could not be read.", nil, e.log))
	if err != nil {
		return res, err
	}

	for _, s := range specializations {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if err := e.migrateSpecialization(ctx, s, &res); err != nil {
			res.Failed++
			e.store.UoW.Rollback()
			e.logFailure("specialization skipped", smklog.WithContext(
				smklog.Migration(fmt.Sprintf("legacy migration of specialization %d failed", s.ID), err),
				map[string]interface{}{"specialization_id": s.ID},
			))
		}
	}

	e.log.Info("legacy migration finished", "migrated", res.Migrated, "already_migrated", res.AlreadyMigrated,
		"not_current", res.NotCurrent, "no_source", res.NoSource, "failed", res.Failed, "rows_created", res.RowsCreated)
	return res, nil
}

func (e *Engine) migrateSpecialization(ctx context.Context, s *domain.Specialization, res *MigrationResult) error {
	version, err := e.versions.Version(ctx, s)
	if err != nil {
		return err
	}
	if version != domain.SmkCurrent {
		res.NotCurrent++
		return nil
	}

	kv := map[string]interface{}{"specialization_id": s.ID}
	migrated, err := smklog.ExecuteWithRetry(ctx, func(ctx context.Context) (bool, error) {
		return e.store.Current.HasRealizations(ctx, s.ID)
	}, e.opts.retry("check migration state", "Training entries could not be read.", kv, e.log))
	if err != nil {
		return err
	}
	if migrated {
		res.AlreadyMigrated++
		e.log.Debug("current realizations present, skipping migration", "specialization_id", s.ID)
		return nil
	}

	source, err := smklog.ExecuteWithRetry(ctx, func(ctx context.Context) ([]*domain.LegacyRealization, error) {
		return e.store.Legacy.ForSpecialization(ctx, s.ID)
	}, e.opts.retry("load legacy realizations", "Training entries could not be read.", kv, e.log))
	if err != nil {
		return err
	}

	rows := make([]*domain.CurrentRealization, 0, len(source))
	templates := 0
	for _, legacy := range source {
		if legacy.ID <= 0 {
			templates++
			continue
		}
		rows = append(rows, migrate(legacy, e.opts.SentinelName))
	}
	if len(rows) == 0 {
		res.NoSource++
		e.log.Info("no legacy realizations to migrate", "specialization_id", s.ID, "templates", templates)
		return nil
	}

	err = smklog.Execute(ctx, func(ctx context.Context) error {
		if err := e.store.Current.AddRange(ctx, rows); err != nil {
			return err
		}
		return e.store.Commit(ctx)
	}, e.opts.retry("migrate legacy realizations", "Training entries could not be converted.", kv, e.log))
	if err != nil {
		return err
	}

	res.Migrated++
	res.RowsCreated += len(rows)
	res.TemplatesKept += templates
	e.log.Info("specialization migrated", "specialization_id", s.ID, "rows", len(rows), "templates", templates)
	return nil
}

// migrate builds the current-format copy of a legacy realization. The copy
// has no id yet and always starts unsynced.
func migrate(legacy *domain.LegacyRealization, sentinel string) *domain.CurrentRealization {
	rec := legacy.RealizationRecord
	rec.ID = 0
	rec.SyncStatus = domain.NotSynced
	if rec.ModuleID != nil {
		moduleID := *rec.ModuleID
		rec.ModuleID = &moduleID
	}
	if strings.TrimSpace(rec.Name) == "" {
		rec.Name = sentinel
	}
	sourceID := legacy.ID
	return &domain.CurrentRealization{
		RealizationRecord: rec,
		Kind:              legacy.Kind,
		SourceLegacyID:    &sourceID,
	}
}

// =====================================
// Helpers
// =====================================

func keep[T any](rows []*T, spec smklog.Specification[T]) []*T {
	out := rows[:0]
	for _, row := range rows {
		if spec.IsSatisfiedBy(row) {
			out = append(out, row)
		}
	}
	return out
}

func (e *Engine) logFailure(msg string, err error) {
	kv := []interface{}{"error", err}
	if se, ok := smklog.AsError(err); ok {
		kv = append(kv, "type", string(se.Type))
		if len(se.Context) > 0 {
			kv = append(kv, "context", se.Context)
		}
	}
	e.log.Error(msg, kv...)
}

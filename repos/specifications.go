package repos

import (
	"github.com/lemmego/smklog"
	"github.com/lemmego/smklog/domain"
)

// =====================================
// Realization Specifications
// =====================================

// realization is the constraint satisfied by *LegacyRealization and *CurrentRealization
type realization[T any] interface {
	*T
	domain.Realization
}

func record[T any, PT realization[T]](e *T) *domain.RealizationRecord {
	return PT(e).Record()
}

// InSpecialization matches realizations owned by specializationID.
func InSpecialization[T any, PT realization[T]](specializationID int64) smklog.Spec[T] {
	return smklog.FieldSpec("specialization_id", smklog.OpEqual, specializationID, func(e *T) bool {
		return record[T, PT](e).SpecializationID == specializationID
	})
}

// Orphaned matches realizations without a module assignment.
func Orphaned[T any, PT realization[T]]() smklog.Spec[T] {
	return smklog.WithCondition(
		smklog.AnyOf(
			smklog.WhereCondition("module_id", smklog.OpIsNull, nil),
			smklog.WhereCondition("module_id", smklog.OpEqual, 0),
		),
		func(e *T) bool { return record[T, PT](e).IsOrphaned() },
	)
}

// OrphanedInMemory is Orphaned evaluated without touching module_id in
// storage, for tables where that column may not exist yet.
func OrphanedInMemory[T any, PT realization[T]]() smklog.Spec[T] {
	return smklog.Match(func(e *T) bool { return record[T, PT](e).IsOrphaned() })
}

// Templates matches requirement definitions (negative ids).
func Templates[T any, PT realization[T]]() smklog.Spec[T] {
	return smklog.FieldSpec("id", smklog.OpLessThan, 0, func(e *T) bool {
		return record[T, PT](e).IsTemplate()
	})
}

// Realized matches concrete realizations (positive ids).
func Realized[T any, PT realization[T]]() smklog.Spec[T] {
	return smklog.FieldSpec("id", smklog.OpGreaterThan, 0, func(e *T) bool {
		return record[T, PT](e).ID > 0
	})
}

// WithDuration matches rows lasting exactly days.
func WithDuration[T any, PT realization[T]](days int) smklog.Spec[T] {
	return smklog.FieldSpec("duration_days", smklog.OpEqual, days, func(e *T) bool {
		return record[T, PT](e).DurationDays == days
	})
}

// WithRequirement matches rows referencing requirementID.
func WithRequirement[T any, PT realization[T]](requirementID int64) smklog.Spec[T] {
	return smklog.FieldSpec("requirement_id", smklog.OpEqual, requirementID, func(e *T) bool {
		return record[T, PT](e).RequirementID == requirementID
	})
}

// MissingName matches rows whose name is blank or one of placeholders,
// ignoring case. It is evaluated in memory.
func MissingName[T any, PT realization[T]](placeholders ...string) smklog.Spec[T] {
	return smklog.Match(func(e *T) bool { return !record[T, PT](e).HasName(placeholders...) })
}

// Named matches rows carrying a real name.
func Named[T any, PT realization[T]](placeholders ...string) smklog.Spec[T] {
	return smklog.Not[T](MissingName[T, PT](placeholders...))
}

// NeedingSync matches rows the external system has not caught up with.
func NeedingSync[T any, PT realization[T]]() smklog.Spec[T] {
	return smklog.FieldSpec("sync_status", smklog.OpNotEqual, int(domain.Synced), func(e *T) bool {
		return record[T, PT](e).SyncStatus.NeedsSync()
	})
}

// =====================================
// Module and Specialization Specifications
// =====================================

// ModulesOf matches the modules of specializationID.
func ModulesOf(specializationID int64) smklog.Spec[domain.Module] {
	return smklog.FieldSpec("specialization_id", smklog.OpEqual, specializationID, func(m *domain.Module) bool {
		return m.SpecializationID == specializationID
	})
}

// ModulesOfType matches modules of the given type.
func ModulesOfType(t domain.ModuleType) smklog.Spec[domain.Module] {
	return smklog.FieldSpec("type", smklog.OpEqual, string(t), func(m *domain.Module) bool {
		return m.Type == t
	})
}

// OnVersion matches specializations reporting in version v.
func OnVersion(v domain.SmkVersion) smklog.Spec[domain.Specialization] {
	return smklog.FieldSpec("smk_version", smklog.OpEqual, string(v), func(s *domain.Specialization) bool {
		return s.SmkVersion == v
	})
}

// OwnedBy matches the specializations of userID.
func OwnedBy(userID int64) smklog.Spec[domain.Specialization] {
	return smklog.FieldSpec("user_id", smklog.OpEqual, userID, func(s *domain.Specialization) bool {
		return s.UserID == userID
	})
}

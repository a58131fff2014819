// Package domain holds the SMK training log entities.
package domain

import (
	"strings"
	"time"

	"github.com/uptrace/bun"
	"gorm.io/datatypes"

	"github.com/lemmego/smklog"
)

// SmkVersion is the schema generation a specialization reports in.
type SmkVersion string

const (
	SmkLegacy  SmkVersion = "legacy"
	SmkCurrent SmkVersion = "current"
)

// Valid reports whether v is a known version.
func (v SmkVersion) Valid() bool {
	return v == SmkLegacy || v == SmkCurrent
}

// ModuleType distinguishes the basic and specialistic parts of a training.
type ModuleType string

const (
	ModuleBasic        ModuleType = "basic"
	ModuleSpecialistic ModuleType = "specialistic"
)

// Specialization is the top-level scope of a resident's training.
type Specialization struct {
	bun.BaseModel `bun:"table:specializations" gorm:"-" bson:"-" json:"-"`

	ID         int64      `gorm:"primaryKey;autoIncrement:false" bun:"id,pk" bson:"_id" json:"id"`
	UserID     int64      `gorm:"index" bun:"user_id" bson:"user_id" json:"userId"`
	Name       string     `gorm:"size:200" bun:"name" bson:"name" json:"name"`
	SmkVersion SmkVersion `gorm:"size:16" bun:"smk_version" bson:"smk_version" json:"smkVersion"`
	StartDate  *time.Time `bun:"start_date" bson:"start_date,omitempty" json:"startDate,omitempty"`
}

func (Specialization) TableName() string { return "specializations" }

// Module is one part of a specialization. Structure is the JSON document
// describing which requirements the module covers; it may be empty or malformed.
type Module struct {
	bun.BaseModel `bun:"table:modules" gorm:"-" bson:"-" json:"-"`

	ID               int64          `gorm:"primaryKey;autoIncrement:false" bun:"id,pk" bson:"_id" json:"id"`
	SpecializationID int64          `gorm:"index" bun:"specialization_id" bson:"specialization_id" json:"specializationId"`
	Name             string         `gorm:"size:200" bun:"name" bson:"name" json:"name"`
	Type             ModuleType     `gorm:"size:16" bun:"type" bson:"type" json:"type"`
	Structure        datatypes.JSON `bun:"structure" bson:"structure,omitempty" json:"structure,omitempty"`
	StartDate        *time.Time     `bun:"start_date" bson:"start_date,omitempty" json:"startDate,omitempty"`
	EndDate          *time.Time     `bun:"end_date" bson:"end_date,omitempty" json:"endDate,omitempty"`
}

func (Module) TableName() string { return "modules" }

// RealizationRecord holds the columns shared by both realization families.
// A negative ID marks a requirement template; a positive ID a logged realization.
type RealizationRecord struct {
	ID               int64      `gorm:"primaryKey;autoIncrement:false" bun:"id,pk" bson:"_id" json:"id"`
	SpecializationID int64      `gorm:"index" bun:"specialization_id" bson:"specialization_id" json:"specializationId"`
	ModuleID         *int64     `bun:"module_id" bson:"module_id,omitempty" json:"moduleId,omitempty"`
	RequirementID    int64      `bun:"requirement_id" bson:"requirement_id" json:"requirementId"`
	Name             string     `gorm:"size:300" bun:"name" bson:"name" json:"name"`
	DurationDays     int        `bun:"duration_days" bson:"duration_days" json:"durationDays"`
	StartDate        *time.Time `bun:"start_date" bson:"start_date,omitempty" json:"startDate,omitempty"`
	EndDate          *time.Time `bun:"end_date" bson:"end_date,omitempty" json:"endDate,omitempty"`
	SyncStatus       SyncStatus `gorm:"not null;default:0" bun:"sync_status,notnull" bson:"sync_status" json:"syncStatus"`
}

// Record returns the shared columns.
func (r *RealizationRecord) Record() *RealizationRecord { return r }

// IsTemplate reports whether the row defines a requirement rather than logging one.
func (r *RealizationRecord) IsTemplate() bool { return r.ID < 0 }

// IsOrphaned reports whether no module has been assigned.
func (r *RealizationRecord) IsOrphaned() bool { return r.ModuleID == nil || *r.ModuleID == 0 }

// AssignModule sets the module reference.
func (r *RealizationRecord) AssignModule(moduleID int64) {
	r.ModuleID = &moduleID
}

// HasName reports whether the name is set and not one of placeholders.
func (r *RealizationRecord) HasName(placeholders ...string) bool {
	name := strings.TrimSpace(r.Name)
	if name == "" {
		return false
	}
	for _, p := range placeholders {
		if strings.EqualFold(name, p) {
			return false
		}
	}
	return true
}

// MarkModified records a local edit.
func (r *RealizationRecord) MarkModified() {
	r.SyncStatus = r.SyncStatus.AfterEdit()
}

// MarkSynced records a successful synchronization.
func (r *RealizationRecord) MarkSynced() error {
	return r.transition(Synced)
}

// MarkSyncFailed records a failed synchronization attempt.
func (r *RealizationRecord) MarkSyncFailed() error {
	return r.transition(SyncFailed)
}

func (r *RealizationRecord) transition(next SyncStatus) error {
	if !r.SyncStatus.CanTransitionTo(next) {
		return smklog.Error{
			Type:    smklog.ErrorTypeValidation,
			Message: "sync status cannot move from " + r.SyncStatus.String() + " to " + next.String(),
			Context: map[string]interface{}{"id": r.ID, "from": r.SyncStatus.String(), "to": next.String()},
		}
	}
	r.SyncStatus = next
	return nil
}

// Realization is implemented by both realization families.
type Realization interface {
	Record() *RealizationRecord
}

// LegacyRealization is a row in the flat legacy tracking format.
type LegacyRealization struct {
	bun.BaseModel `bun:"table:legacy_realizations" gorm:"-" bson:"-" json:"-"`

	RealizationRecord `bson:",inline"`
	// Kind is the activity family: internship, course, shift or procedure.
	Kind string `gorm:"size:32" bun:"kind" bson:"kind" json:"kind"`
}

func (LegacyRealization) TableName() string { return "legacy_realizations" }

// CurrentRealization is a row in the module-scoped current tracking format.
type CurrentRealization struct {
	bun.BaseModel `bun:"table:current_realizations" gorm:"-" bson:"-" json:"-"`

	RealizationRecord `bson:",inline"`
	Kind              string `gorm:"size:32" bun:"kind" bson:"kind" json:"kind"`
	// SourceLegacyID points at the legacy row this record was migrated from.
	SourceLegacyID *int64 `gorm:"index" bun:"source_legacy_id" bson:"source_legacy_id,omitempty" json:"sourceLegacyId,omitempty"`
}

func (CurrentRealization) TableName() string { return "current_realizations" }

// Tables lists every table owned by the domain.
func Tables() []string {
	return []string{
		Specialization{}.TableName(),
		Module{}.TableName(),
		LegacyRealization{}.TableName(),
		CurrentRealization{}.TableName(),
	}
}

// Models lists a zero value of every entity, for schema creation.
func Models() []interface{} {
	return []interface{}{
		&Specialization{},
		&Module{},
		&LegacyRealization{},
		&CurrentRealization{},
	}
}

package domain

import "fmt"

// SyncStatus tracks whether a realization has been propagated to the
// external reporting system.
type SyncStatus int

const (
	NotSynced SyncStatus = iota
	Synced
	Modified
	SyncFailed
)

func (s SyncStatus) String() string {
	switch s {
	case NotSynced:
		return "not_synced"
	case Synced:
		return "synced"
	case Modified:
		return "modified"
	case SyncFailed:
		return "sync_failed"
	}
	return fmt.Sprintf("sync_status(%d)", int(s))
}

// CanTransitionTo reports whether moving from s to next is allowed.
func (s SyncStatus) CanTransitionTo(next SyncStatus) bool {
	switch s {
	case NotSynced:
		return next == Synced || next == SyncFailed || next == NotSynced
	case Synced:
		return next == Modified || next == Synced
	case Modified:
		return next == Synced || next == SyncFailed || next == Modified
	case SyncFailed:
		return next == Synced || next == SyncFailed || next == Modified
	}
	return false
}

// AfterEdit is the status a record takes after a local change.
func (s SyncStatus) AfterEdit() SyncStatus {
	if s == Synced {
		return Modified
	}
	return s
}

// NeedsSync reports whether the external system is behind.
func (s SyncStatus) NeedsSync() bool {
	return s != Synced
}

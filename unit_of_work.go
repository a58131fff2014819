package smklog

import (
	"context"
	"sync"
)

// =====================================
// Unit of Work
// =====================================

// OperationKind is the kind of a staged mutation.
type OperationKind string

const (
	OpAdd    OperationKind = "add"
	OpUpdate OperationKind = "update"
	OpRemove OperationKind = "remove"
)

// StagedOperation is one mutation waiting for Commit.
type StagedOperation struct {
	Kind   OperationKind
	Entity interface{}
}

// UnitOfWork collects mutations from repositories and applies them
// atomically on Commit. Commits are serialized; a commit started while
// another is running waits for it.
type UnitOfWork struct {
	db Database

	commitMu sync.Mutex

	mu    sync.Mutex
	ops   []StagedOperation
	hooks []func(ctx context.Context)
}

// NewUnitOfWork creates a unit of work over db.
func NewUnitOfWork(db Database) *UnitOfWork {
	return &UnitOfWork{db: db}
}

// Database returns the database commits are applied to.
func (u *UnitOfWork) Database() Database {
	return u.db
}

// Stage appends a mutation to the pending batch.
func (u *UnitOfWork) Stage(kind OperationKind, entity interface{}) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.ops = append(u.ops, StagedOperation{Kind: kind, Entity: entity})
}

// AfterCommit registers fn to run once the pending batch commits. It is
// discarded if the batch fails or is rolled back.
func (u *UnitOfWork) AfterCommit(fn func(ctx context.Context)) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.hooks = append(u.hooks, fn)
}

// Pending returns the number of staged mutations.
func (u *UnitOfWork) Pending() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.ops)
}

// Rollback discards every staged mutation.
func (u *UnitOfWork) Rollback() {
	u.drain()
}

func (u *UnitOfWork) drain() ([]StagedOperation, []func(ctx context.Context)) {
	u.mu.Lock()
	defer u.mu.Unlock()
	ops, hooks := u.ops, u.hooks
	u.ops, u.hooks = nil, nil
	return ops, hooks
}

// Commit applies the pending batch in staging order inside one transaction.
// On failure nothing is persisted and the batch is dropped; callers re-stage
// before retrying.
func (u *UnitOfWork) Commit(ctx context.Context) error {
	hooks, err := u.commit(ctx)
	if err != nil {
		return err
	}
	runHooks(ctx, hooks)
	return nil
}

func (u *UnitOfWork) commit(ctx context.Context) ([]func(ctx context.Context), error) {
	u.commitMu.Lock()
	defer u.commitMu.Unlock()

	ops, hooks := u.drain()
	if len(ops) == 0 {
		return hooks, nil
	}

	err := u.db.Transaction(ctx, func(tx Session) error {
		for i, op := range ops {
			if err := apply(ctx, tx, op); err != nil {
				return WithContext(err, map[string]interface{}{
					"operation": string(op.Kind),
					"position":  i,
				})
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return hooks, nil
}

func apply(ctx context.Context, tx Session, op StagedOperation) error {
	switch op.Kind {
	case OpAdd:
		return tx.Insert(ctx, op.Entity)
	case OpUpdate:
		return tx.Update(ctx, op.Entity)
	case OpRemove:
		return tx.Delete(ctx, op.Entity)
	}
	return NewError(ErrorTypeUnsupported, "unknown staged operation "+string(op.Kind))
}

func runHooks(ctx context.Context, hooks []func(ctx context.Context)) {
	for _, fn := range hooks {
		fn(ctx)
	}
}

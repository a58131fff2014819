package smklog

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommitAppliesInStagingOrder(t *testing.T) {
	db := newFakeDB()
	uow := NewUnitOfWork(db)
	ctx := context.Background()

	w := &widget{ID: 1, Name: "first"}
	uow.Stage(OpAdd, w)
	uow.Stage(OpUpdate, &widget{ID: 1, Name: "second"})
	uow.Stage(OpRemove, &widget{ID: 1})
	uow.Stage(OpAdd, &widget{ID: 1, Name: "third"})

	require.NoError(t, uow.Commit(ctx))
	rows := db.snapshot()
	require.Len(t, rows, 1)
	assert.Equal(t, "third", rows[1].Name)
	assert.Equal(t, 0, uow.Pending())
}

func TestFailedCommitPersistsNothing(t *testing.T) {
	db := newFakeDB(widget{ID: 1, Name: "existing"})
	uow := NewUnitOfWork(db)
	ctx := context.Background()

	hookRan := false
	uow.Stage(OpAdd, &widget{ID: 2, Name: "new"})
	uow.Stage(OpAdd, &widget{ID: 1, Name: "duplicate"})
	uow.AfterCommit(func(context.Context) { hookRan = true })

	err := uow.Commit(ctx)
	require.Error(t, err)
	assert.True(t, IsDuplicate(err))

	e, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, 1, e.Context["position"])

	assert.Len(t, db.snapshot(), 1)
	assert.False(t, hookRan)
	assert.Equal(t, 0, uow.Pending(), "failed batch must be dropped")

	// re-staging after a failure commits cleanly
	uow.Stage(OpAdd, &widget{ID: 2, Name: "new"})
	require.NoError(t, uow.Commit(ctx))
	assert.Len(t, db.snapshot(), 2)
}

func TestTransactionFailureRollsBack(t *testing.T) {
	db := newFakeDB()
	db.failTx = 1
	db.txErr = NewError(ErrorTypeLocked, "database is locked")
	uow := NewUnitOfWork(db)

	uow.Stage(OpAdd, &widget{ID: 1})
	err := uow.Commit(context.Background())
	assert.True(t, IsTransient(err))
	assert.Empty(t, db.snapshot())
}

func TestAfterCommitHooksRunOnSuccess(t *testing.T) {
	uow := NewUnitOfWork(newFakeDB())
	var calls []string
	uow.Stage(OpAdd, &widget{ID: 5})
	uow.AfterCommit(func(context.Context) { calls = append(calls, "a") })
	uow.AfterCommit(func(context.Context) { calls = append(calls, "b") })

	require.NoError(t, uow.Commit(context.Background()))
	assert.Equal(t, []string{"a", "b"}, calls)

	require.NoError(t, uow.Commit(context.Background()))
	assert.Equal(t, []string{"a", "b"}, calls, "hooks belong to one batch")
}

func TestRollbackDiscardsBatch(t *testing.T) {
	db := newFakeDB()
	uow := NewUnitOfWork(db)
	uow.Stage(OpAdd, &widget{ID: 1})
	uow.Rollback()
	require.NoError(t, uow.Commit(context.Background()))
	assert.Empty(t, db.snapshot())
	assert.Equal(t, 0, db.txCalls)
}

func TestConcurrentCommitsAreSerialized(t *testing.T) {
	db := newFakeDB()
	uow := NewUnitOfWork(db)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 1; i <= 20; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			uow.Stage(OpAdd, &widget{ID: id})
			assert.NoError(t, uow.Commit(ctx))
		}(int64(i))
	}
	wg.Wait()
	assert.Len(t, db.snapshot(), 20)
}

// panickingDB panics inside the next n transactions, as gorm does when it
// re-panics after rolling back.
type panickingDB struct {
	*fakeDB
	n int
}

func (db *panickingDB) Transaction(ctx context.Context, fn func(tx Session) error) error {
	if db.n > 0 {
		db.n--
		panic("driver crashed")
	}
	return db.fakeDB.Transaction(ctx, fn)
}

func TestCommitRecoversAfterPanickingTransaction(t *testing.T) {
	db := &panickingDB{fakeDB: newFakeDB(), n: 1}
	uow := NewUnitOfWork(db)
	ctx := context.Background()

	uow.Stage(OpAdd, &widget{ID: 1, Name: "lost"})
	assert.Panics(t, func() { _ = uow.Commit(ctx) })

	uow.Stage(OpAdd, &widget{ID: 2, Name: "kept"})
	done := make(chan error, 1)
	go func() { done <- uow.Commit(ctx) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("commit blocked after a panicking transaction")
	}
	assert.Equal(t, "kept", db.snapshot()[2].Name)
}

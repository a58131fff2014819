package repos

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/lemmego/smklog"
	"github.com/lemmego/smklog/domain"
	"github.com/lemmego/smklog/smkgorm"
)

func int64p(v int64) *int64 { return &v }

type StoreTestSuite struct {
	suite.Suite
	provider *smkgorm.Provider
	store    *Store
	ctx      context.Context
}

func (suite *StoreTestSuite) SetupTest() {
	provider, err := smkgorm.New(smklog.Config{
		Driver:   "sqlite",
		Database: filepath.Join(suite.T().TempDir(), "smk.db") + "?_busy_timeout=5000&_txlock=immediate",
		Options: map[string]interface{}{
			"gorm": map[string]interface{}{"log_level": "silent"},
		},
	})
	require.NoError(suite.T(), err)
	suite.provider = provider
	suite.ctx = context.Background()
	require.NoError(suite.T(), provider.CreateSchema(suite.ctx, domain.Models()...))

	suite.store = NewStore(provider.Database(), provider.Sequences())
	require.NoError(suite.T(), suite.store.Init(suite.ctx))
}

func (suite *StoreTestSuite) TearDownTest() {
	suite.provider.Close()
}

func (suite *StoreTestSuite) specialization(version domain.SmkVersion) *domain.Specialization {
	s := &domain.Specialization{UserID: 1, Name: "Internal Medicine", SmkVersion: version}
	require.NoError(suite.T(), suite.store.Specializations.Add(suite.ctx, s))
	require.NoError(suite.T(), suite.store.Commit(suite.ctx))
	return s
}

func (suite *StoreTestSuite) TestInitSeedsSequencesAboveImportedRows() {
	db := suite.provider.Database()
	require.NoError(suite.T(), db.Insert(suite.ctx, &domain.Module{ID: 50, SpecializationID: 1, Type: domain.ModuleBasic}))

	store := NewStore(db, suite.provider.Sequences())
	require.NoError(suite.T(), store.Init(suite.ctx))

	m := &domain.Module{SpecializationID: 1, Name: "Cardiology", Type: domain.ModuleSpecialistic}
	require.NoError(suite.T(), store.Modules.Add(suite.ctx, m))
	assert.Equal(suite.T(), int64(51), m.ID)
	require.NoError(suite.T(), store.Commit(suite.ctx))
}

func (suite *StoreTestSuite) TestTemplatesKeepExplicitNegativeIDs() {
	s := suite.specialization(domain.SmkLegacy)
	rows := []*domain.LegacyRealization{
		{RealizationRecord: domain.RealizationRecord{ID: -1, SpecializationID: s.ID, Name: "Course A"}},
		{RealizationRecord: domain.RealizationRecord{ID: -3, SpecializationID: s.ID, Name: "Course B"}},
		{RealizationRecord: domain.RealizationRecord{SpecializationID: s.ID, RequirementID: 10}},
	}
	require.NoError(suite.T(), suite.store.Legacy.AddRange(suite.ctx, rows))
	require.NoError(suite.T(), suite.store.Commit(suite.ctx))
	assert.Equal(suite.T(), int64(1), rows[2].ID)

	templates, err := suite.store.Legacy.Templates(suite.ctx, s.ID)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), templates, 2)
	assert.Equal(suite.T(), int64(-1), templates[0].ID)

	realized, err := suite.store.Legacy.Realizations(suite.ctx, s.ID)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), realized, 1)

	has, err := suite.store.Legacy.HasRealizations(suite.ctx, s.ID)
	require.NoError(suite.T(), err)
	assert.True(suite.T(), has)

	has, err = suite.store.Current.HasRealizations(suite.ctx, s.ID)
	require.NoError(suite.T(), err)
	assert.False(suite.T(), has)
}

func (suite *StoreTestSuite) TestOrphanedSpecPushesDown() {
	s := suite.specialization(domain.SmkLegacy)
	rows := []*domain.LegacyRealization{
		{RealizationRecord: domain.RealizationRecord{SpecializationID: s.ID}},
		{RealizationRecord: domain.RealizationRecord{SpecializationID: s.ID, ModuleID: int64p(0)}},
		{RealizationRecord: domain.RealizationRecord{SpecializationID: s.ID, ModuleID: int64p(4)}},
	}
	require.NoError(suite.T(), suite.store.Legacy.AddRange(suite.ctx, rows))
	require.NoError(suite.T(), suite.store.Commit(suite.ctx))

	orphaned := Orphaned[domain.LegacyRealization]()
	assert.True(suite.T(), smklog.CanPushDown[domain.LegacyRealization](orphaned))

	n, err := suite.store.Legacy.Count(suite.ctx, orphaned)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), int64(2), n)

	inMemory, err := suite.store.Legacy.GetBySpecification(suite.ctx,
		InSpecialization[domain.LegacyRealization](s.ID).And(OrphanedInMemory[domain.LegacyRealization]()))
	require.NoError(suite.T(), err)
	assert.Len(suite.T(), inMemory, 2)

	ids, err := suite.store.Legacy.SpecializationIDs(suite.ctx)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), []int64{s.ID}, ids)
}

func (suite *StoreTestSuite) TestUpdateFlipsSyncedToModified() {
	s := suite.specialization(domain.SmkCurrent)
	row := &domain.CurrentRealization{RealizationRecord: domain.RealizationRecord{SpecializationID: s.ID, Name: "Shift"}}
	require.NoError(suite.T(), suite.store.Current.Add(suite.ctx, row))
	require.NoError(suite.T(), suite.store.Commit(suite.ctx))

	require.NoError(suite.T(), row.MarkSynced())
	require.NoError(suite.T(), suite.provider.Database().Update(suite.ctx, row))

	row.Name = "Night shift"
	require.NoError(suite.T(), suite.store.Current.Update(suite.ctx, row))
	require.NoError(suite.T(), suite.store.Commit(suite.ctx))

	got, err := suite.store.Current.GetByID(suite.ctx, row.ID)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), domain.Modified, got.SyncStatus)
	assert.Equal(suite.T(), "Night shift", got.Name)

	pending, err := suite.store.Current.Count(suite.ctx, NeedingSync[domain.CurrentRealization]())
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), int64(1), pending)
}

func (suite *StoreTestSuite) TestRejectedUpdateKeepsSyncStatus() {
	row := &domain.CurrentRealization{RealizationRecord: domain.RealizationRecord{SpecializationID: 1, Name: "Shift"}}
	require.NoError(suite.T(), row.MarkSynced())

	err := suite.store.Current.Update(suite.ctx, row)
	assert.True(suite.T(), smklog.IsInvalidInput(err))
	assert.Equal(suite.T(), domain.Synced, row.SyncStatus)

	legacy := &domain.LegacyRealization{RealizationRecord: domain.RealizationRecord{ID: 4, SpecializationID: 1, SyncStatus: domain.Synced}}
	err = suite.store.Legacy.UpdateRange(suite.ctx, []*domain.LegacyRealization{legacy, nil})
	assert.True(suite.T(), smklog.IsInvalidInput(err))
	assert.Equal(suite.T(), domain.Synced, legacy.SyncStatus)
	assert.Zero(suite.T(), suite.store.UoW.Pending())
}

func (suite *StoreTestSuite) TestValidationHookRejectsOwnerlessRows() {
	err := suite.store.Legacy.Add(suite.ctx, &domain.LegacyRealization{})
	assert.True(suite.T(), smklog.IsInvalidInput(err))
	assert.Zero(suite.T(), suite.store.UoW.Pending())
}

func (suite *StoreTestSuite) TestModuleCacheInvalidatedOnCommit() {
	s := suite.specialization(domain.SmkCurrent)
	m := &domain.Module{SpecializationID: s.ID, Name: "Basic", Type: domain.ModuleBasic}
	require.NoError(suite.T(), suite.store.Modules.Add(suite.ctx, m))
	require.NoError(suite.T(), suite.store.Commit(suite.ctx))

	modules, err := suite.store.Modules.ForSpecialization(suite.ctx, s.ID)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), modules, 1)

	m.Name = "Basic II"
	require.NoError(suite.T(), suite.store.Modules.Update(suite.ctx, m))

	modules, err = suite.store.Modules.ForSpecialization(suite.ctx, s.ID)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "Basic", modules[0].Name, "staged change is not visible before commit")

	require.NoError(suite.T(), suite.store.Commit(suite.ctx))
	modules, err = suite.store.Modules.ForSpecialization(suite.ctx, s.ID)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "Basic II", modules[0].Name)
}

func (suite *StoreTestSuite) TestSpecializationCache() {
	s := suite.specialization(domain.SmkLegacy)

	got, err := suite.store.Specializations.Get(suite.ctx, s.ID)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), domain.SmkLegacy, got.SmkVersion)

	s.SmkVersion = domain.SmkCurrent
	require.NoError(suite.T(), suite.store.Specializations.Update(suite.ctx, s))
	require.NoError(suite.T(), suite.store.Commit(suite.ctx))

	got, err = suite.store.Specializations.Get(suite.ctx, s.ID)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), domain.SmkCurrent, got.SmkVersion)

	missing, err := suite.store.Specializations.Get(suite.ctx, 999)
	require.NoError(suite.T(), err)
	assert.Nil(suite.T(), missing)

	onCurrent, err := suite.store.Specializations.Count(suite.ctx, OnVersion(domain.SmkCurrent).And(OwnedBy(1)))
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), int64(1), onCurrent)
}

func TestStoreSuite(t *testing.T) {
	suite.Run(t, new(StoreTestSuite))
}

func TestModuleCacheSharesConcurrentLoads(t *testing.T) {
	cache := NewModuleCache(nil)
	var loads int32
	load := func(ctx context.Context) ([]domain.Module, error) {
		atomic.AddInt32(&loads, 1)
		time.Sleep(50 * time.Millisecond)
		return []domain.Module{{ID: 1, SpecializationID: 7}}, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			modules, err := cache.Get(context.Background(), 7, load)
			assert.NoError(t, err)
			assert.Len(t, modules, 1)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), atomic.LoadInt32(&loads))

	modules, err := cache.Get(context.Background(), 7, load)
	require.NoError(t, err)
	modules[0].Name = "mutated"
	again, err := cache.Get(context.Background(), 7, load)
	require.NoError(t, err)
	assert.Empty(t, again[0].Name)
	assert.Equal(t, int32(1), atomic.LoadInt32(&loads))

	require.NoError(t, cache.Invalidate(context.Background(), 7))
	_, err = cache.Get(context.Background(), 7, load)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&loads))
}

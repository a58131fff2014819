// Package repos holds the entity repositories of the training log and the
// Store that binds them to one database and unit of work.
package repos

import (
	"context"

	"github.com/lemmego/smklog"
	"github.com/lemmego/smklog/domain"
)

// KnownTables returns the allow list of tables the schema probe may touch.
func KnownTables() *smklog.TableAllowList {
	return smklog.MustTableAllowList(domain.Tables()...)
}

// Option configures a Store.
type Option func(*Store)

// WithModuleCache backs the module cache with c.
func WithModuleCache(c smklog.Cache[[]domain.Module]) Option {
	return func(s *Store) { s.ModuleCache = NewModuleCache(c) }
}

// WithSpecializationCache backs the specialization cache with c.
func WithSpecializationCache(c smklog.Cache[domain.Specialization]) Option {
	return func(s *Store) { s.SpecializationCache = NewSpecializationCache(c) }
}

// Store groups the repositories sharing one UnitOfWork.
type Store struct {
	UoW             *smklog.UnitOfWork
	Specializations *SpecializationRepository
	Modules         *ModuleRepository
	Legacy          *LegacyRealizations
	Current         *CurrentRealizations

	ModuleCache         *ModuleCache
	SpecializationCache *SpecializationCache

	sequences smklog.SequenceGenerator
}

// NewStore wires the repositories to db. IDs are issued by seq.
func NewStore(db smklog.Database, seq smklog.SequenceGenerator, opts ...Option) *Store {
	s := &Store{
		UoW:       smklog.NewUnitOfWork(db),
		sequences: seq,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.ModuleCache == nil {
		s.ModuleCache = NewModuleCache(nil)
	}
	if s.SpecializationCache == nil {
		s.SpecializationCache = NewSpecializationCache(nil)
	}

	s.Specializations = newSpecializationRepository(s.UoW, seq, s.SpecializationCache, s.ModuleCache)
	s.Modules = newModuleRepository(s.UoW, seq, s.ModuleCache)
	s.Legacy = newRealizationRepository[domain.LegacyRealization](s.UoW, seq, "legacy realization", "legacy_realization_ids")
	s.Current = newRealizationRepository[domain.CurrentRealization](s.UoW, seq, "current realization", "current_realization_ids")
	return s
}

// Init raises every id sequence above the largest id already stored, so
// rows imported outside the repositories never collide with new ones.
func (s *Store) Init(ctx context.Context) error {
	seeds := []struct {
		sequence string
		max      func(ctx context.Context) (int64, error)
	}{
		{"specialization_ids", maxID(s.Specializations.BaseRepository)},
		{"module_ids", maxID(s.Modules.BaseRepository)},
		{"legacy_realization_ids", maxID(s.Legacy.BaseRepository)},
		{"current_realization_ids", maxID(s.Current.BaseRepository)},
	}
	for _, seed := range seeds {
		top, err := seed.max(ctx)
		if err != nil {
			return smklog.WithContext(err, map[string]interface{}{"sequence": seed.sequence})
		}
		if err := s.sequences.EnsureAtLeast(ctx, seed.sequence, top); err != nil {
			return err
		}
	}
	return nil
}

// Commit commits the shared unit of work.
func (s *Store) Commit(ctx context.Context) error {
	return s.UoW.Commit(ctx)
}

func maxID[T any](repo *smklog.BaseRepository[T]) func(ctx context.Context) (int64, error) {
	return func(ctx context.Context) (int64, error) {
		top, err := repo.GetPaged(ctx, 1, 1, nil, "id", false)
		if err != nil || len(top) == 0 {
			return 0, err
		}
		return repo.IDOf(top[0]), nil
	}
}

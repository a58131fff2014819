package repos

import (
	"context"
	"sort"

	"github.com/lemmego/smklog"
	"github.com/lemmego/smklog/domain"
)

// ModuleRepository stores modules and keeps the per-specialization module
// cache in step with committed changes.
type ModuleRepository struct {
	*smklog.BaseRepository[domain.Module]
	cache *ModuleCache
}

func newModuleRepository(uow *smklog.UnitOfWork, seq smklog.SequenceGenerator, cache *ModuleCache) *ModuleRepository {
	return &ModuleRepository{
		BaseRepository: smklog.NewRepository(uow, seq, smklog.RepositoryOptions[domain.Module]{
			Name:     "module",
			Sequence: "module_ids",
			ID:       func(m *domain.Module) *int64 { return &m.ID },
		}),
		cache: cache,
	}
}

// ForSpecialization returns the modules of specializationID in declaration
// (id) order, from cache when possible.
func (r *ModuleRepository) ForSpecialization(ctx context.Context, specializationID int64) ([]domain.Module, error) {
	return r.cache.Get(ctx, specializationID, func(ctx context.Context) ([]domain.Module, error) {
		rows, err := r.GetBySpecification(ctx, ModulesOf(specializationID))
		if err != nil {
			return nil, err
		}
		modules := make([]domain.Module, len(rows))
		for i, m := range rows {
			modules[i] = *m
		}
		return modules, nil
	})
}

// Add stages an insert and drops the owner's cached module list on commit.
func (r *ModuleRepository) Add(ctx context.Context, module *domain.Module) error {
	if err := r.BaseRepository.Add(ctx, module); err != nil {
		return err
	}
	r.invalidateOnCommit(module.SpecializationID)
	return nil
}

// AddRange stages inserts; nothing is staged if any module is rejected.
func (r *ModuleRepository) AddRange(ctx context.Context, modules []*domain.Module) error {
	if err := r.BaseRepository.AddRange(ctx, modules); err != nil {
		return err
	}
	r.invalidateOnCommit(owners(modules)...)
	return nil
}

// Update stages a full update and drops the owner's cached module list on commit.
func (r *ModuleRepository) Update(ctx context.Context, module *domain.Module) error {
	if err := r.BaseRepository.Update(ctx, module); err != nil {
		return err
	}
	r.invalidateOnCommit(module.SpecializationID)
	return nil
}

// UpdateRange stages updates; nothing is staged if any module is rejected.
func (r *ModuleRepository) UpdateRange(ctx context.Context, modules []*domain.Module) error {
	if err := r.BaseRepository.UpdateRange(ctx, modules); err != nil {
		return err
	}
	r.invalidateOnCommit(owners(modules)...)
	return nil
}

// Remove stages a delete and drops the owner's cached module list on commit.
func (r *ModuleRepository) Remove(ctx context.Context, module *domain.Module) error {
	if err := r.BaseRepository.Remove(ctx, module); err != nil {
		return err
	}
	r.invalidateOnCommit(module.SpecializationID)
	return nil
}

// RemoveRange stages deletes; nothing is staged if any module is rejected.
func (r *ModuleRepository) RemoveRange(ctx context.Context, modules []*domain.Module) error {
	if err := r.BaseRepository.RemoveRange(ctx, modules); err != nil {
		return err
	}
	r.invalidateOnCommit(owners(modules)...)
	return nil
}

func (r *ModuleRepository) invalidateOnCommit(specializationIDs ...int64) {
	r.UnitOfWork().AfterCommit(func(ctx context.Context) {
		for _, id := range specializationIDs {
			_ = r.cache.Invalidate(ctx, id)
		}
	})
}

func owners(modules []*domain.Module) []int64 {
	seen := make(map[int64]bool)
	var ids []int64
	for _, m := range modules {
		if m != nil && !seen[m.SpecializationID] {
			seen[m.SpecializationID] = true
			ids = append(ids, m.SpecializationID)
		}
	}
	return ids
}

func sortInt64s(ids []int64) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}

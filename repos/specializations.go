package repos

import (
	"context"

	"github.com/lemmego/smklog"
	"github.com/lemmego/smklog/domain"
)

// SpecializationRepository stores specializations. Changing or removing one
// drops it and its module list from the caches on commit.
type SpecializationRepository struct {
	*smklog.BaseRepository[domain.Specialization]
	cache   *SpecializationCache
	modules *ModuleCache
}

func newSpecializationRepository(uow *smklog.UnitOfWork, seq smklog.SequenceGenerator, cache *SpecializationCache, modules *ModuleCache) *SpecializationRepository {
	return &SpecializationRepository{
		BaseRepository: smklog.NewRepository(uow, seq, smklog.RepositoryOptions[domain.Specialization]{
			Name:     "specialization",
			Sequence: "specialization_ids",
			ID:       func(s *domain.Specialization) *int64 { return &s.ID },
		}),
		cache:   cache,
		modules: modules,
	}
}

// Get returns specialization id from cache, or nil when it does not exist.
func (r *SpecializationRepository) Get(ctx context.Context, id int64) (*domain.Specialization, error) {
	return r.cache.Get(ctx, id, func(ctx context.Context) (*domain.Specialization, error) {
		return r.GetByID(ctx, id)
	})
}

// Update stages a full update and invalidates the caches on commit.
func (r *SpecializationRepository) Update(ctx context.Context, s *domain.Specialization) error {
	if err := r.BaseRepository.Update(ctx, s); err != nil {
		return err
	}
	r.invalidateOnCommit(s.ID)
	return nil
}

// UpdateRange stages updates; nothing is staged if any specialization is rejected.
func (r *SpecializationRepository) UpdateRange(ctx context.Context, list []*domain.Specialization) error {
	if err := r.BaseRepository.UpdateRange(ctx, list); err != nil {
		return err
	}
	r.invalidateOnCommit(ids(list)...)
	return nil
}

// Remove stages a delete and invalidates the caches on commit.
func (r *SpecializationRepository) Remove(ctx context.Context, s *domain.Specialization) error {
	if err := r.BaseRepository.Remove(ctx, s); err != nil {
		return err
	}
	r.invalidateOnCommit(s.ID)
	return nil
}

// RemoveRange stages deletes; nothing is staged if any specialization is rejected.
func (r *SpecializationRepository) RemoveRange(ctx context.Context, list []*domain.Specialization) error {
	if err := r.BaseRepository.RemoveRange(ctx, list); err != nil {
		return err
	}
	r.invalidateOnCommit(ids(list)...)
	return nil
}

func (r *SpecializationRepository) invalidateOnCommit(specializationIDs ...int64) {
	r.UnitOfWork().AfterCommit(func(ctx context.Context) {
		for _, id := range specializationIDs {
			_ = r.cache.Invalidate(ctx, id)
			_ = r.modules.Invalidate(ctx, id)
		}
	})
}

func ids(list []*domain.Specialization) []int64 {
	out := make([]int64, 0, len(list))
	for _, s := range list {
		if s != nil {
			out = append(out, s.ID)
		}
	}
	return out
}

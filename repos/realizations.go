package repos

import (
	"context"

	"github.com/lemmego/smklog"
	"github.com/lemmego/smklog/domain"
)

// RealizationRepository stores one realization family. Every update of a
// synced row flips it to Modified.
type RealizationRepository[T any, PT realization[T]] struct {
	*smklog.BaseRepository[T]
}

// LegacyRealizations is the repository of the flat legacy format.
type LegacyRealizations = RealizationRepository[domain.LegacyRealization, *domain.LegacyRealization]

// CurrentRealizations is the repository of the module-scoped current format.
type CurrentRealizations = RealizationRepository[domain.CurrentRealization, *domain.CurrentRealization]

func newRealizationRepository[T any, PT realization[T]](uow *smklog.UnitOfWork, seq smklog.SequenceGenerator, name, sequence string) *RealizationRepository[T, PT] {
	return &RealizationRepository[T, PT]{
		BaseRepository: smklog.NewRepository(uow, seq, smklog.RepositoryOptions[T]{
			Name:     name,
			Sequence: sequence,
			ID:       func(e *T) *int64 { return &PT(e).Record().ID },
		}),
	}
}

// Update stages a full update and marks the row as locally modified. A
// rejected row keeps its status.
func (r *RealizationRepository[T, PT]) Update(ctx context.Context, entity *T) error {
	if err := r.BaseRepository.Update(ctx, entity); err != nil {
		return err
	}
	PT(entity).Record().MarkModified()
	return nil
}

// UpdateRange stages updates for every entity and marks them modified.
// Nothing is staged or marked if any entity is rejected.
func (r *RealizationRepository[T, PT]) UpdateRange(ctx context.Context, entities []*T) error {
	if err := r.BaseRepository.UpdateRange(ctx, entities); err != nil {
		return err
	}
	for _, entity := range entities {
		PT(entity).Record().MarkModified()
	}
	return nil
}

// ForSpecialization returns the rows owned by specializationID ordered by id.
func (r *RealizationRepository[T, PT]) ForSpecialization(ctx context.Context, specializationID int64) ([]*T, error) {
	return r.GetBySpecification(ctx, InSpecialization[T, PT](specializationID))
}

// Realizations returns the concrete (positive id) rows of specializationID.
func (r *RealizationRepository[T, PT]) Realizations(ctx context.Context, specializationID int64) ([]*T, error) {
	return r.GetBySpecification(ctx, InSpecialization[T, PT](specializationID).And(Realized[T, PT]()))
}

// Templates returns the requirement definitions of specializationID,
// nearest to zero first.
func (r *RealizationRepository[T, PT]) Templates(ctx context.Context, specializationID int64) ([]*T, error) {
	return r.Find(ctx, InSpecialization[T, PT](specializationID).And(Templates[T, PT]()),
		smklog.OrderBy("id", smklog.OrderDesc))
}

// HasRealizations reports whether specializationID owns any concrete row.
func (r *RealizationRepository[T, PT]) HasRealizations(ctx context.Context, specializationID int64) (bool, error) {
	return r.Exists(ctx, InSpecialization[T, PT](specializationID).And(Realized[T, PT]()))
}

// SpecializationIDs returns the distinct owners of the stored rows in ascending order.
func (r *RealizationRepository[T, PT]) SpecializationIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[int64]bool)
	var ids []int64
	for _, row := range rows {
		id := PT(row).Record().SpecializationID
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	sortInt64s(ids)
	return ids, nil
}

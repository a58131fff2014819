package smklog

import (
	"context"
	"fmt"
)

// =====================================
// Generic Repository
// =====================================

// Repository is the generic contract every entity repository is built on.
// Reads go straight to storage; mutations are staged on a UnitOfWork and
// persisted by its Commit.
type Repository[T any] interface {
	// GetByID returns the entity with the given id, or nil when it does not exist.
	// Example: m, err := GetByID(ctx, 12)
	GetByID(ctx context.Context, id int64) (*T, error)

	// GetAll returns every entity ordered by id.
	GetAll(ctx context.Context) ([]*T, error)

	// GetBySpecification returns the entities satisfying spec ordered by id.
	// Example: rows, err := GetBySpecification(ctx, OrphanedIn(specializationID))
	GetBySpecification(ctx context.Context, spec Specification[T]) ([]*T, error)

	// GetSingleBySpecification returns the only entity satisfying spec, nil when
	// none does, and ErrorTypeMultipleResults when more than one does.
	GetSingleBySpecification(ctx context.Context, spec Specification[T]) (*T, error)

	// Exists reports whether any entity satisfies spec.
	Exists(ctx context.Context, spec Specification[T]) (bool, error)

	// Count returns the number of entities satisfying spec; nil counts all.
	Count(ctx context.Context, spec Specification[T]) (int64, error)

	// Add stages an insert, issuing an id first when the entity has none.
	Add(ctx context.Context, entity *T) error
	AddRange(ctx context.Context, entities []*T) error

	// Update stages a full update of an existing entity.
	Update(ctx context.Context, entity *T) error
	UpdateRange(ctx context.Context, entities []*T) error

	// Remove stages a delete.
	Remove(ctx context.Context, entity *T) error
	RemoveRange(ctx context.Context, entities []*T) error

	// GetPaged returns one 1-indexed page of the entities satisfying spec
	// (nil for all), ordered by orderBy (default id). pageNumber or pageSize
	// below 1 yield ErrorTypeInvalidArgument.
	// Example: page, err := GetPaged(ctx, 2, 50, nil, "start_date", false)
	GetPaged(ctx context.Context, pageNumber, pageSize int, spec Specification[T], orderBy string, ascending bool) ([]*T, error)
}

// RepositoryOptions configures a BaseRepository.
type RepositoryOptions[T any] struct {
	// Name is the resource name used in error messages.
	Name string
	// IDColumn is the primary key column. Defaults to "id".
	IDColumn string
	// Sequence names the id sequence. Empty disables id issuance.
	Sequence string
	// ID returns a pointer to the entity's identifier.
	ID func(*T) *int64
}

// BaseRepository implements Repository over a UnitOfWork.
type BaseRepository[T any] struct {
	uow  *UnitOfWork
	seq  SequenceGenerator
	opts RepositoryOptions[T]
}

// NewRepository creates a BaseRepository. seq may be nil when opts.Sequence is empty.
func NewRepository[T any](uow *UnitOfWork, seq SequenceGenerator, opts RepositoryOptions[T]) *BaseRepository[T] {
	if opts.IDColumn == "" {
		opts.IDColumn = "id"
	}
	if opts.Name == "" {
		var zero T
		opts.Name = fmt.Sprintf("%T", zero)
	}
	if opts.ID == nil {
		panic("smklog: RepositoryOptions.ID is required")
	}
	return &BaseRepository[T]{uow: uow, seq: seq, opts: opts}
}

// UnitOfWork returns the unit of work mutations are staged on.
func (r *BaseRepository[T]) UnitOfWork() *UnitOfWork {
	return r.uow
}

// Name returns the resource name.
func (r *BaseRepository[T]) Name() string {
	return r.opts.Name
}

// IDOf returns the identifier of entity.
func (r *BaseRepository[T]) IDOf(entity *T) int64 {
	return *r.opts.ID(entity)
}

func (r *BaseRepository[T]) db() Database {
	return r.uow.Database()
}

// =====================================
// Reads
// =====================================

// GetByID implements Repository.
func (r *BaseRepository[T]) GetByID(ctx context.Context, id int64) (*T, error) {
	var entity T
	if err := r.db().FindByID(ctx, id, &entity); err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &entity, nil
}

// GetAll implements Repository.
func (r *BaseRepository[T]) GetAll(ctx context.Context) ([]*T, error) {
	var rows []*T
	if err := r.db().Query(ctx, &rows, OrderBy(r.opts.IDColumn, OrderAsc)); err != nil {
		return nil, err
	}
	return rows, nil
}

// GetBySpecification implements Repository.
func (r *BaseRepository[T]) GetBySpecification(ctx context.Context, spec Specification[T]) ([]*T, error) {
	if spec == nil {
		return nil, InvalidInput(r.opts.Name + " specification cannot be nil")
	}
	return r.find(ctx, spec, OrderBy(r.opts.IDColumn, OrderAsc))
}

// Find returns the entities satisfying spec with extra query options
// applied, such as ordering.
func (r *BaseRepository[T]) Find(ctx context.Context, spec Specification[T], opts ...QueryOption) ([]*T, error) {
	return r.find(ctx, spec, opts...)
}

func (r *BaseRepository[T]) find(ctx context.Context, spec Specification[T], extra ...QueryOption) ([]*T, error) {
	var opts []QueryOption
	if c := pushdown(spec); c != nil {
		opts = append(opts, Filter(c))
	}
	opts = append(opts, extra...)

	var rows []*T
	if err := r.db().Query(ctx, &rows, opts...); err != nil {
		return nil, err
	}
	if isAll(spec) {
		return rows, nil
	}

	matched := rows[:0]
	for _, row := range rows {
		if spec.IsSatisfiedBy(row) {
			matched = append(matched, row)
		}
	}
	return matched, nil
}

// GetSingleBySpecification implements Repository.
func (r *BaseRepository[T]) GetSingleBySpecification(ctx context.Context, spec Specification[T]) (*T, error) {
	rows, err := r.GetBySpecification(ctx, spec)
	if err != nil {
		return nil, err
	}
	switch len(rows) {
	case 0:
		return nil, nil
	case 1:
		return rows[0], nil
	}
	return nil, MultipleResults(r.opts.Name, len(rows))
}

// Exists implements Repository.
func (r *BaseRepository[T]) Exists(ctx context.Context, spec Specification[T]) (bool, error) {
	if spec == nil {
		return false, InvalidInput(r.opts.Name + " specification cannot be nil")
	}
	n, err := r.Count(ctx, spec)
	return n > 0, err
}

// Count implements Repository.
func (r *BaseRepository[T]) Count(ctx context.Context, spec Specification[T]) (int64, error) {
	if CanPushDown(spec) {
		var opts []QueryOption
		if c := pushdown(spec); c != nil {
			opts = append(opts, Filter(c))
		}
		return r.db().Count(ctx, new(T), opts...)
	}
	rows, err := r.find(ctx, spec)
	if err != nil {
		return 0, err
	}
	return int64(len(rows)), nil
}

// GetPaged implements Repository.
func (r *BaseRepository[T]) GetPaged(ctx context.Context, pageNumber, pageSize int, spec Specification[T], orderBy string, ascending bool) ([]*T, error) {
	if pageNumber < 1 {
		return nil, InvalidArgument("pageNumber", "must be at least 1")
	}
	if pageSize < 1 {
		return nil, InvalidArgument("pageSize", "must be at least 1")
	}
	if orderBy == "" {
		orderBy = r.opts.IDColumn
	}
	if err := ValidateIdentifier(orderBy); err != nil {
		return nil, err
	}

	direction := OrderAsc
	if !ascending {
		direction = OrderDesc
	}
	orders := []QueryOption{OrderBy(orderBy, direction)}
	if orderBy != r.opts.IDColumn {
		orders = append(orders, OrderBy(r.opts.IDColumn, direction))
	}
	offset := (pageNumber - 1) * pageSize

	if CanPushDown(spec) {
		opts := orders
		if c := pushdown(spec); c != nil {
			opts = append([]QueryOption{Filter(c)}, opts...)
		}
		opts = append(opts, Limit(pageSize), Offset(offset))

		var rows []*T
		if err := r.db().Query(ctx, &rows, opts...); err != nil {
			return nil, err
		}
		return rows, nil
	}

	rows, err := r.find(ctx, spec, orders...)
	if err != nil {
		return nil, err
	}
	if offset >= len(rows) {
		return []*T{}, nil
	}
	end := offset + pageSize
	if end > len(rows) {
		end = len(rows)
	}
	return rows[offset:end], nil
}

// =====================================
// Staged Mutations
// =====================================

// Add implements Repository.
func (r *BaseRepository[T]) Add(ctx context.Context, entity *T) error {
	if err := r.prepareAdd(ctx, entity); err != nil {
		return err
	}
	r.uow.Stage(OpAdd, entity)
	return nil
}

// AddRange implements Repository. Nothing is staged if any entity is rejected.
func (r *BaseRepository[T]) AddRange(ctx context.Context, entities []*T) error {
	for _, entity := range entities {
		if err := r.prepareAdd(ctx, entity); err != nil {
			return err
		}
	}
	for _, entity := range entities {
		r.uow.Stage(OpAdd, entity)
	}
	return nil
}

// Update implements Repository.
func (r *BaseRepository[T]) Update(ctx context.Context, entity *T) error {
	if err := r.prepare(ctx, OpUpdate, entity); err != nil {
		return err
	}
	r.uow.Stage(OpUpdate, entity)
	return nil
}

// UpdateRange implements Repository. Nothing is staged if any entity is rejected.
func (r *BaseRepository[T]) UpdateRange(ctx context.Context, entities []*T) error {
	for _, entity := range entities {
		if err := r.prepare(ctx, OpUpdate, entity); err != nil {
			return err
		}
	}
	for _, entity := range entities {
		r.uow.Stage(OpUpdate, entity)
	}
	return nil
}

// Remove implements Repository.
func (r *BaseRepository[T]) Remove(ctx context.Context, entity *T) error {
	if err := r.prepare(ctx, OpRemove, entity); err != nil {
		return err
	}
	r.uow.Stage(OpRemove, entity)
	return nil
}

// RemoveRange implements Repository. Nothing is staged if any entity is rejected.
func (r *BaseRepository[T]) RemoveRange(ctx context.Context, entities []*T) error {
	for _, entity := range entities {
		if err := r.prepare(ctx, OpRemove, entity); err != nil {
			return err
		}
	}
	for _, entity := range entities {
		r.uow.Stage(OpRemove, entity)
	}
	return nil
}

func (r *BaseRepository[T]) prepareAdd(ctx context.Context, entity *T) error {
	if entity == nil {
		return InvalidInput(r.opts.Name + " cannot be nil")
	}
	if err := runStageHooks(ctx, OpAdd, entity); err != nil {
		return err
	}
	id := r.opts.ID(entity)
	if *id != 0 || r.opts.Sequence == "" {
		return nil
	}
	if r.seq == nil {
		return NewError(ErrorTypeInternal, r.opts.Name+" has a sequence but no generator")
	}
	next, err := r.seq.Next(ctx, r.opts.Sequence)
	if err != nil {
		return err
	}
	*id = next
	return nil
}

func (r *BaseRepository[T]) prepare(ctx context.Context, kind OperationKind, entity *T) error {
	if entity == nil {
		return InvalidInput(r.opts.Name + " cannot be nil")
	}
	if *r.opts.ID(entity) == 0 {
		return InvalidInput(fmt.Sprintf("%s must have an id to %s", r.opts.Name, kind))
	}
	return runStageHooks(ctx, kind, entity)
}

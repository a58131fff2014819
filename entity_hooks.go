package smklog

import "context"

// =====================================
// Entity Hook Interfaces
// =====================================

// ValidationHook is called to validate an entity before it is staged for add or update
type ValidationHook interface {
	Validate(ctx context.Context) error
}

// BeforeAddHook is called before an entity is staged for insertion
type BeforeAddHook interface {
	BeforeAdd(ctx context.Context) error
}

// BeforeUpdateHook is called before an entity is staged for update
type BeforeUpdateHook interface {
	BeforeUpdate(ctx context.Context) error
}

// BeforeRemoveHook is called before an entity is staged for removal
type BeforeRemoveHook interface {
	BeforeRemove(ctx context.Context) error
}

func runStageHooks(ctx context.Context, kind OperationKind, entity interface{}) error {
	if kind != OpRemove {
		if v, ok := entity.(ValidationHook); ok {
			if err := v.Validate(ctx); err != nil {
				return hookError("validation", err)
			}
		}
	}

	var err error
	switch kind {
	case OpAdd:
		if h, ok := entity.(BeforeAddHook); ok {
			err = h.BeforeAdd(ctx)
		}
	case OpUpdate:
		if h, ok := entity.(BeforeUpdateHook); ok {
			err = h.BeforeUpdate(ctx)
		}
	case OpRemove:
		if h, ok := entity.(BeforeRemoveHook); ok {
			err = h.BeforeRemove(ctx)
		}
	}
	if err != nil {
		return hookError(string(kind), err)
	}
	return nil
}

func hookError(stage string, err error) error {
	if e, ok := AsError(err); ok {
		return e
	}
	return Error{
		Type:    ErrorTypeInvalidInput,
		Message: stage + " hook rejected entity",
		Display: err.Error(),
		Cause:   err,
	}
}

package smklog

// =====================================
// Specifications
// =====================================

// Specification is a reusable predicate over T. Condition returns the same
// predicate as a storage condition, or nil when it can only be evaluated in
// memory.
type Specification[T any] interface {
	IsSatisfiedBy(entity *T) bool
	Condition() Condition
}

// Spec is an immutable Specification. The zero value matches every entity.
type Spec[T any] struct {
	pred func(*T) bool
	cond Condition
	all  bool
}

// All matches every entity and pushes down as "no condition".
func All[T any]() Spec[T] {
	return Spec[T]{all: true}
}

// Match builds a specification evaluated in memory only.
func Match[T any](pred func(*T) bool) Spec[T] {
	return Spec[T]{pred: pred}
}

// FieldSpec builds a specification that pushes "field op value" to storage
// and evaluates pred in memory. Both must describe the same predicate.
func FieldSpec[T any](field string, op Operator, value interface{}, pred func(*T) bool) Spec[T] {
	return Spec[T]{pred: pred, cond: WhereCondition(field, op, value)}
}

// WithCondition builds a specification from an explicit condition and its
// in-memory equivalent.
func WithCondition[T any](cond Condition, pred func(*T) bool) Spec[T] {
	return Spec[T]{pred: pred, cond: cond}
}

// IsSatisfiedBy reports whether entity matches. A nil entity never matches.
func (s Spec[T]) IsSatisfiedBy(entity *T) bool {
	if entity == nil {
		return false
	}
	if s.pred == nil {
		return true
	}
	return s.pred(entity)
}

// Condition returns the push-down form, or nil.
func (s Spec[T]) Condition() Condition {
	return s.cond
}

// IsAll reports whether s is the match-everything specification.
func (s Spec[T]) IsAll() bool {
	return s.all || (s.pred == nil && s.cond == nil)
}

// And matches entities satisfying both s and other.
func (s Spec[T]) And(other Specification[T]) Spec[T] {
	return And[T](s, other)
}

// Or matches entities satisfying s or other.
func (s Spec[T]) Or(other Specification[T]) Spec[T] {
	return Or[T](s, other)
}

// Not matches entities that do not satisfy s.
func (s Spec[T]) Not() Spec[T] {
	return Not[T](s)
}

// And combines two specifications with short-circuit AND.
func And[T any](left, right Specification[T]) Spec[T] {
	s := Spec[T]{pred: func(e *T) bool {
		return satisfies(left, e) && satisfies(right, e)
	}}
	switch {
	case isAll(left) && isAll(right):
		s.all = true
	case isAll(left):
		s.cond = pushdown(right)
	case isAll(right):
		s.cond = pushdown(left)
	default:
		s.cond = join(LogicAnd, pushdown(left), pushdown(right))
	}
	return s
}

// Or combines two specifications with short-circuit OR.
func Or[T any](left, right Specification[T]) Spec[T] {
	s := Spec[T]{pred: func(e *T) bool {
		return satisfies(left, e) || satisfies(right, e)
	}}
	if isAll(left) || isAll(right) {
		s.all = true
	} else {
		s.cond = join(LogicOr, pushdown(left), pushdown(right))
	}
	return s
}

// Not negates a specification. Storage evaluates NOT over NULL as unknown,
// so a single field comparison pushes down as "NOT (c) OR field IS NULL" and
// any other condition pushes down only when it tests nullness alone.
func Not[T any](inner Specification[T]) Spec[T] {
	s := Spec[T]{pred: func(e *T) bool {
		return e != nil && !satisfies(inner, e)
	}}
	if isAll(inner) {
		s.cond = Negate()
	} else if c := pushdown(inner); c != nil {
		s.cond = negate(c)
	}
	return s
}

func negate(c Condition) Condition {
	if b, ok := c.(BasicCondition); ok && !testsNull(b) {
		return CompositeCondition{
			Conditions: []Condition{Negate(b), BasicCondition{FieldName: b.FieldName, Op: OpIsNull}},
			Logic:      LogicOr,
		}
	}
	if nullSafe(c) {
		return Negate(c)
	}
	return nil
}

func testsNull(b BasicCondition) bool {
	return b.Op == OpIsNull || b.Op == OpIsNotNull
}

func nullSafe(c Condition) bool {
	switch c := c.(type) {
	case BasicCondition:
		return testsNull(c)
	case CompositeCondition:
		for _, inner := range c.Conditions {
			if !nullSafe(inner) {
				return false
			}
		}
		return true
	}
	return false
}

// join returns nil when either side can only be evaluated in memory.
func join(logic LogicOperator, left, right Condition) Condition {
	if left == nil || right == nil {
		return nil
	}
	return CompositeCondition{Conditions: []Condition{left, right}, Logic: logic}
}

func satisfies[T any](spec Specification[T], e *T) bool {
	if spec == nil {
		return e != nil
	}
	return spec.IsSatisfiedBy(e)
}

func pushdown[T any](spec Specification[T]) Condition {
	if spec == nil {
		return nil
	}
	return spec.Condition()
}

func isAll[T any](spec Specification[T]) bool {
	if spec == nil {
		return true
	}
	if s, ok := spec.(Spec[T]); ok {
		return s.IsAll()
	}
	return false
}

// CanPushDown reports whether spec can be evaluated entirely by storage.
func CanPushDown[T any](spec Specification[T]) bool {
	return isAll(spec) || pushdown(spec) != nil
}

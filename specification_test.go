package smklog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sizeAtLeast(n int) Spec[widget] {
	return FieldSpec("size", OpGreaterThanOrEqual, n, func(w *widget) bool { return w.Size >= n })
}

func named(name string) Spec[widget] {
	return FieldSpec("name", OpEqual, name, func(w *widget) bool { return w.Name == name })
}

func evenSize() Spec[widget] {
	return Match(func(w *widget) bool { return w.Size%2 == 0 })
}

func TestSpecCompositionMatchesBooleanOperators(t *testing.T) {
	specs := []Spec[widget]{sizeAtLeast(3), named("bolt"), evenSize(), All[widget]()}
	entities := []*widget{
		{ID: 1, Name: "bolt", Size: 2},
		{ID: 2, Name: "bolt", Size: 3},
		{ID: 3, Name: "nut", Size: 4},
		{ID: 4, Name: "nut", Size: 1},
	}

	for _, a := range specs {
		for _, b := range specs {
			for _, e := range entities {
				assert.Equal(t, a.IsSatisfiedBy(e) && b.IsSatisfiedBy(e), a.And(b).IsSatisfiedBy(e))
				assert.Equal(t, a.IsSatisfiedBy(e) || b.IsSatisfiedBy(e), a.Or(b).IsSatisfiedBy(e))
				assert.Equal(t, !a.IsSatisfiedBy(e), a.Not().IsSatisfiedBy(e))
			}
		}
	}
}

func TestSpecAndIsAssociative(t *testing.T) {
	a, b, c := sizeAtLeast(2), named("bolt"), evenSize()
	left := a.And(b).And(c)
	right := a.And(b.And(c))

	for size := 0; size < 6; size++ {
		for _, name := range []string{"bolt", "nut"} {
			e := &widget{Name: name, Size: size}
			assert.Equal(t, left.IsSatisfiedBy(e), right.IsSatisfiedBy(e))
		}
	}
}

func TestSpecShortCircuits(t *testing.T) {
	calls := 0
	counting := Match(func(w *widget) bool { calls++; return true })
	never := Match(func(w *widget) bool { return false })
	always := Match(func(w *widget) bool { return true })

	never.And(counting).IsSatisfiedBy(&widget{})
	always.Or(counting).IsSatisfiedBy(&widget{})
	assert.Equal(t, 0, calls)
}

func TestSpecNilEntityNeverMatches(t *testing.T) {
	assert.False(t, All[widget]().IsSatisfiedBy(nil))
	assert.False(t, sizeAtLeast(1).IsSatisfiedBy(nil))
	assert.False(t, sizeAtLeast(1).Not().IsSatisfiedBy(nil))
	assert.False(t, evenSize().Or(All[widget]()).IsSatisfiedBy(nil))
}

func TestSpecIsReusable(t *testing.T) {
	spec := sizeAtLeast(3).And(named("bolt"))
	e := &widget{Name: "bolt", Size: 5}
	for i := 0; i < 3; i++ {
		assert.True(t, spec.IsSatisfiedBy(e))
	}
	assert.Equal(t, spec.Condition(), spec.Condition())
}

func TestSpecConditionPushDown(t *testing.T) {
	t.Run("field specs combine", func(t *testing.T) {
		cond := sizeAtLeast(3).And(named("bolt")).Condition()
		require.NotNil(t, cond)
		composite, ok := cond.(CompositeCondition)
		require.True(t, ok)
		assert.Equal(t, LogicAnd, composite.Logic)
		assert.Len(t, composite.Conditions, 2)
	})

	t.Run("memory only side disables push down", func(t *testing.T) {
		assert.Nil(t, sizeAtLeast(3).And(evenSize()).Condition())
		assert.Nil(t, sizeAtLeast(3).Or(evenSize()).Condition())
		assert.False(t, CanPushDown[widget](sizeAtLeast(3).Or(evenSize())))
	})

	t.Run("all is neutral for and", func(t *testing.T) {
		spec := All[widget]().And(named("nut"))
		assert.Equal(t, named("nut").Condition(), spec.Condition())
		assert.True(t, CanPushDown[widget](spec))
	})

	t.Run("all absorbs or", func(t *testing.T) {
		spec := All[widget]().Or(evenSize())
		assert.True(t, spec.IsAll())
		assert.True(t, CanPushDown[widget](spec))
	})

	t.Run("not keeps null rows of a field comparison", func(t *testing.T) {
		cond := named("nut").Not().Condition()
		composite, ok := cond.(CompositeCondition)
		require.True(t, ok)
		assert.Equal(t, LogicOr, composite.Logic)
		require.Len(t, composite.Conditions, 2)
		assert.Equal(t, LogicNot, composite.Conditions[0].(CompositeCondition).Logic)
		assert.Equal(t, BasicCondition{FieldName: "name", Op: OpIsNull}, composite.Conditions[1])
	})

	t.Run("not of a null test pushes down as is", func(t *testing.T) {
		untagged := WithCondition(WhereCondition("tag", OpIsNull, nil), func(w *widget) bool { return w.Tag == nil })
		composite, ok := untagged.Not().Condition().(CompositeCondition)
		require.True(t, ok)
		assert.Equal(t, LogicNot, composite.Logic)
	})

	t.Run("not of a composite comparison stays in memory", func(t *testing.T) {
		spec := named("nut").And(named("bolt")).Not()
		assert.Nil(t, spec.Condition())
		assert.False(t, CanPushDown[widget](spec))
	})
}

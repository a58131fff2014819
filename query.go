package smklog

import (
	"fmt"
	"reflect"
	"strings"
)

// =====================================
// Query Building
// =====================================

// QueryOption interface for building database queries
type QueryOption interface {
	Apply(query *Query)
}

// Query represents a database query
type Query struct {
	Conditions []Condition
	Orders     []Order
	Limit      *int
	Offset     *int
}

// Condition represents a query condition that a storage adapter can push down
type Condition interface {
	Field() string
	Operator() Operator
	Value() interface{}
	String() string
}

// BasicCondition implements Condition
type BasicCondition struct {
	FieldName string
	Op        Operator
	Val       interface{}
}

func (c BasicCondition) Field() string      { return c.FieldName }
func (c BasicCondition) Operator() Operator { return c.Op }
func (c BasicCondition) Value() interface{} { return c.Val }
func (c BasicCondition) String() string {
	switch c.Op {
	case OpIsNull, OpIsNotNull:
		return c.FieldName + " " + string(c.Op)
	}
	return c.FieldName + " " + string(c.Op) + " ?"
}

// CompositeCondition for AND/OR/NOT operations. A NOT composite negates the
// conjunction of its conditions.
type CompositeCondition struct {
	Conditions []Condition
	Logic      LogicOperator
}

func (c CompositeCondition) Field() string      { return "" }
func (c CompositeCondition) Operator() Operator { return "" }
func (c CompositeCondition) Value() interface{} { return nil }
func (c CompositeCondition) String() string {
	if len(c.Conditions) == 0 {
		return ""
	}

	var parts []string
	for _, cond := range c.Conditions {
		parts = append(parts, cond.String())
	}

	if c.Logic == LogicNot {
		return "NOT (" + strings.Join(parts, " AND ") + ")"
	}
	return "(" + strings.Join(parts, " "+string(c.Logic)+" ") + ")"
}

// =====================================
// Query Option Implementations
// =====================================

// ConditionOption implements QueryOption for conditions
type ConditionOption struct {
	Condition Condition
}

func (o ConditionOption) Apply(query *Query) {
	if o.Condition != nil {
		query.Conditions = append(query.Conditions, o.Condition)
	}
}

// OrderOption implements QueryOption for ordering
type OrderOption struct {
	Order Order
}

func (o OrderOption) Apply(query *Query) {
	query.Orders = append(query.Orders, o.Order)
}

// LimitOption implements QueryOption for limiting results
type LimitOption struct {
	Count int
}

func (o LimitOption) Apply(query *Query) {
	query.Limit = &o.Count
}

// OffsetOption implements QueryOption for offsetting results
type OffsetOption struct {
	Count int
}

func (o OffsetOption) Apply(query *Query) {
	query.Offset = &o.Count
}

// =====================================
// Query Builder Functions
// =====================================

// Where creates a basic WHERE condition
func Where(field string, operator Operator, value interface{}) QueryOption {
	return ConditionOption{Condition: WhereCondition(field, operator, value)}
}

// WhereCondition creates a basic condition
func WhereCondition(field string, operator Operator, value interface{}) Condition {
	return BasicCondition{
		FieldName: field,
		Op:        operator,
		Val:       value,
	}
}

// WhereIn creates a WHERE IN condition
func WhereIn(field string, values []interface{}) QueryOption {
	return Where(field, OpIn, values)
}

// WhereNull creates a WHERE IS NULL condition
func WhereNull(field string) QueryOption {
	return Where(field, OpIsNull, nil)
}

// WhereNotNull creates a WHERE IS NOT NULL condition
func WhereNotNull(field string) QueryOption {
	return Where(field, OpIsNotNull, nil)
}

// Filter wraps an arbitrary condition as a query option
func Filter(condition Condition) QueryOption {
	return ConditionOption{Condition: condition}
}

// AllOf joins conditions with AND
func AllOf(conditions ...Condition) Condition {
	return CompositeCondition{Conditions: conditions, Logic: LogicAnd}
}

// AnyOf joins conditions with OR
func AnyOf(conditions ...Condition) Condition {
	return CompositeCondition{Conditions: conditions, Logic: LogicOr}
}

// Negate negates the conjunction of conditions; Negate() matches nothing
func Negate(conditions ...Condition) Condition {
	return CompositeCondition{Conditions: conditions, Logic: LogicNot}
}

// OrderBy creates an ordering option
func OrderBy(field string, direction OrderDirection) QueryOption {
	return OrderOption{
		Order: Order{
			Field:     field,
			Direction: direction,
		},
	}
}

// Limit creates a limit option
func Limit(count int) QueryOption {
	return LimitOption{Count: count}
}

// Offset creates an offset option
func Offset(count int) QueryOption {
	return OffsetOption{Count: count}
}

// NewQuery applies opts to an empty query.
func NewQuery(opts ...QueryOption) *Query {
	query := &Query{}
	for _, opt := range opts {
		if opt != nil {
			opt.Apply(query)
		}
	}
	return query
}

// =====================================
// SQL Rendering
// =====================================

// RenderCondition renders a condition as a parameterized SQL fragment using
// "?" placeholders. Field names are validated and quoted for dialect. IN lists
// are expanded into one placeholder per element.
func RenderCondition(dialect Dialect, condition Condition) (string, []interface{}, error) {
	switch cond := condition.(type) {
	case BasicCondition:
		return renderBasic(dialect, cond)
	case CompositeCondition:
		return renderComposite(dialect, cond)
	default:
		return "", nil, NewError(ErrorTypeUnsupported, fmt.Sprintf("unsupported condition type %T", condition))
	}
}

func renderBasic(dialect Dialect, cond BasicCondition) (string, []interface{}, error) {
	field, err := QuoteIdent(dialect, cond.FieldName)
	if err != nil {
		return "", nil, err
	}

	switch cond.Op {
	case OpIsNull, OpIsNotNull:
		return fmt.Sprintf("%s %s", field, cond.Op), nil, nil
	case OpIn, OpNotIn:
		values := flatten(cond.Val)
		if len(values) == 0 {
			if cond.Op == OpIn {
				return "1 = 0", nil, nil
			}
			return "1 = 1", nil, nil
		}
		marks := strings.TrimSuffix(strings.Repeat("?, ", len(values)), ", ")
		return fmt.Sprintf("%s %s (%s)", field, cond.Op, marks), values, nil
	case OpEqual, OpNotEqual, OpGreaterThan, OpGreaterThanOrEqual,
		OpLessThan, OpLessThanOrEqual, OpLike:
		op := string(cond.Op)
		if cond.Op == OpNotEqual {
			op = "<>"
		}
		return fmt.Sprintf("%s %s ?", field, op), []interface{}{cond.Val}, nil
	default:
		return "", nil, NewError(ErrorTypeUnsupported, fmt.Sprintf("unsupported operator %q", cond.Op))
	}
}

func renderComposite(dialect Dialect, cond CompositeCondition) (string, []interface{}, error) {
	if len(cond.Conditions) == 0 {
		if cond.Logic == LogicAnd {
			return "1 = 1", nil, nil
		}
		return "1 = 0", nil, nil
	}

	parts := make([]string, 0, len(cond.Conditions))
	var args []interface{}
	for _, sub := range cond.Conditions {
		sql, subArgs, err := RenderCondition(dialect, sub)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, "("+sql+")")
		args = append(args, subArgs...)
	}

	switch cond.Logic {
	case LogicOr:
		return strings.Join(parts, " OR "), args, nil
	case LogicNot:
		return "NOT (" + strings.Join(parts, " AND ") + ")", args, nil
	default:
		return strings.Join(parts, " AND "), args, nil
	}
}

func flatten(value interface{}) []interface{} {
	if value == nil {
		return nil
	}
	if values, ok := value.([]interface{}); ok {
		return values
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return []interface{}{value}
	}
	out := make([]interface{}, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out
}

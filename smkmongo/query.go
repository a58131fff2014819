package smkmongo

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/lemmego/smklog"
)

// =====================================
// Query Building
// =====================================

// matchNone is a filter no document satisfies
var matchNone = bson.M{"_id": bson.M{"$exists": false}}

// buildQuery builds a MongoDB filter and find options from query options
func buildQuery(opts ...smklog.QueryOption) (bson.M, *options.FindOptions, error) {
	query := smklog.NewQuery(opts...)

	filter, err := buildConditions(query.Conditions)
	if err != nil {
		return nil, nil, err
	}

	findOpts := options.Find()

	// Apply sorting
	if len(query.Orders) > 0 {
		sort := bson.D{}
		for _, order := range query.Orders {
			direction := 1
			if order.Direction == smklog.OrderDesc {
				direction = -1
			}
			sort = append(sort, bson.E{Key: convertFieldName(order.Field), Value: direction})
		}
		findOpts.SetSort(sort)
	}

	// Apply limit
	if query.Limit != nil {
		findOpts.SetLimit(int64(*query.Limit))
	}

	// Apply skip (offset)
	if query.Offset != nil {
		findOpts.SetSkip(int64(*query.Offset))
	}

	return filter, findOpts, nil
}

// buildConditions combines conditions with AND
func buildConditions(conditions []smklog.Condition) (bson.M, error) {
	if len(conditions) == 0 {
		return bson.M{}, nil
	}
	if len(conditions) == 1 {
		return buildCondition(conditions[0])
	}
	return buildCondition(smklog.CompositeCondition{Conditions: conditions, Logic: smklog.LogicAnd})
}

// buildCondition builds a MongoDB filter from a single condition
func buildCondition(condition smklog.Condition) (bson.M, error) {
	switch cond := condition.(type) {
	case smklog.BasicCondition:
		return buildOperatorCondition(convertFieldName(cond.Field()), cond.Operator(), cond.Value())
	case smklog.CompositeCondition:
		return buildCompositeCondition(cond)
	default:
		return buildOperatorCondition(convertFieldName(condition.Field()), condition.Operator(), condition.Value())
	}
}

// buildCompositeCondition builds a MongoDB filter from a composite condition.
// NOT negates the conjunction of its parts.
func buildCompositeCondition(condition smklog.CompositeCondition) (bson.M, error) {
	if len(condition.Conditions) == 0 {
		if condition.Logic == smklog.LogicAnd {
			return bson.M{}, nil
		}
		return matchNone, nil
	}

	filters := make([]bson.M, 0, len(condition.Conditions))
	for _, sub := range condition.Conditions {
		filter, err := buildCondition(sub)
		if err != nil {
			return nil, err
		}
		filters = append(filters, filter)
	}

	switch condition.Logic {
	case smklog.LogicOr:
		return bson.M{"$or": filters}, nil
	case smklog.LogicNot:
		if len(filters) == 1 {
			return bson.M{"$nor": filters}, nil
		}
		return bson.M{"$nor": []bson.M{{"$and": filters}}}, nil
	default:
		return bson.M{"$and": filters}, nil
	}
}

// buildOperatorCondition builds a MongoDB filter for a specific operator
func buildOperatorCondition(field string, operator smklog.Operator, value interface{}) (bson.M, error) {
	switch operator {
	case smklog.OpEqual:
		return bson.M{field: value}, nil
	case smklog.OpNotEqual:
		return bson.M{field: bson.M{"$ne": value}}, nil
	case smklog.OpGreaterThan:
		return bson.M{field: bson.M{"$gt": value}}, nil
	case smklog.OpGreaterThanOrEqual:
		return bson.M{field: bson.M{"$gte": value}}, nil
	case smklog.OpLessThan:
		return bson.M{field: bson.M{"$lt": value}}, nil
	case smklog.OpLessThanOrEqual:
		return bson.M{field: bson.M{"$lte": value}}, nil
	case smklog.OpLike:
		return bson.M{field: bson.M{"$regex": likePattern(fmt.Sprintf("%v", value)), "$options": "i"}}, nil
	case smklog.OpIn:
		return bson.M{field: bson.M{"$in": toArray(value)}}, nil
	case smklog.OpNotIn:
		return bson.M{field: bson.M{"$nin": toArray(value)}}, nil
	case smklog.OpIsNull:
		return bson.M{field: nil}, nil
	case smklog.OpIsNotNull:
		return bson.M{field: bson.M{"$ne": nil}}, nil
	}
	return nil, smklog.NewError(smklog.ErrorTypeUnsupported, fmt.Sprintf("operator %q is not supported by MongoDB", operator))
}

// likePattern converts a SQL LIKE pattern to an anchored regular expression
func likePattern(like string) string {
	var b strings.Builder
	b.WriteString("^")
	for _, r := range like {
		switch r {
		case '%':
			b.WriteString(".*")
		case '_':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	return b.String()
}

// toArray converts a slice value to a BSON array; nil becomes an empty array
func toArray(value interface{}) bson.A {
	if value == nil {
		return bson.A{}
	}
	v := reflect.ValueOf(value)
	if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
		return bson.A{value}
	}
	out := make(bson.A, v.Len())
	for i := range out {
		out[i] = v.Index(i).Interface()
	}
	return out
}

// convertFieldName maps the id column onto the document key
func convertFieldName(fieldName string) string {
	if strings.EqualFold(fieldName, "id") {
		return "_id"
	}
	return fieldName
}

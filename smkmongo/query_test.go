package smkmongo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/lemmego/smklog"
	"github.com/lemmego/smklog/domain"
)

func TestBuildConditionOperators(t *testing.T) {
	tests := []struct {
		name string
		cond smklog.Condition
		want bson.M
	}{
		{"equal maps id", smklog.WhereCondition("id", smklog.OpEqual, int64(4)), bson.M{"_id": int64(4)}},
		{"not equal", smklog.WhereCondition("name", smklog.OpNotEqual, "x"), bson.M{"name": bson.M{"$ne": "x"}}},
		{"greater", smklog.WhereCondition("duration_days", smklog.OpGreaterThan, 3), bson.M{"duration_days": bson.M{"$gt": 3}}},
		{"null", smklog.WhereCondition("module_id", smklog.OpIsNull, nil), bson.M{"module_id": nil}},
		{"not null", smklog.WhereCondition("module_id", smklog.OpIsNotNull, nil), bson.M{"module_id": bson.M{"$ne": nil}}},
		{"in", smklog.WhereCondition("id", smklog.OpIn, []int64{1, 2}), bson.M{"_id": bson.M{"$in": bson.A{int64(1), int64(2)}}}},
		{"empty in", smklog.WhereCondition("id", smklog.OpIn, nil), bson.M{"_id": bson.M{"$in": bson.A{}}}},
		{"like", smklog.WhereCondition("name", smklog.OpLike, "a.b%"), bson.M{"name": bson.M{"$regex": `^a\.b.*$`, "$options": "i"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := buildCondition(tt.cond)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuildCompositeCondition(t *testing.T) {
	a := smklog.WhereCondition("a", smklog.OpEqual, 1)
	b := smklog.WhereCondition("b", smklog.OpEqual, 2)

	got, err := buildCondition(smklog.AnyOf(a, b))
	require.NoError(t, err)
	assert.Equal(t, bson.M{"$or": []bson.M{{"a": 1}, {"b": 2}}}, got)

	got, err = buildCondition(smklog.Negate(a, b))
	require.NoError(t, err)
	assert.Equal(t, bson.M{"$nor": []bson.M{{"$and": []bson.M{{"a": 1}, {"b": 2}}}}}, got)

	got, err = buildCondition(smklog.AllOf())
	require.NoError(t, err)
	assert.Equal(t, bson.M{}, got)

	got, err = buildCondition(smklog.AnyOf())
	require.NoError(t, err)
	assert.Equal(t, matchNone, got)
}

func TestBuildQueryOptions(t *testing.T) {
	filter, findOpts, err := buildQuery(
		smklog.Where("specialization_id", smklog.OpEqual, int64(7)),
		smklog.Where("module_id", smklog.OpIsNull, nil),
		smklog.OrderBy("id", smklog.OrderDesc),
		smklog.Limit(5),
		smklog.Offset(10),
	)
	require.NoError(t, err)
	assert.Equal(t, bson.M{"$and": []bson.M{{"specialization_id": int64(7)}, {"module_id": nil}}}, filter)
	assert.Equal(t, bson.D{{Key: "_id", Value: -1}}, findOpts.Sort)
	assert.Equal(t, int64(5), *findOpts.Limit)
	assert.Equal(t, int64(10), *findOpts.Skip)
}

func TestUnsupportedOperator(t *testing.T) {
	_, err := buildCondition(smklog.WhereCondition("a", smklog.Operator("~"), 1))
	assert.True(t, smklog.IsErrorType(err, smklog.ErrorTypeUnsupported))
}

func TestCollectionName(t *testing.T) {
	name, err := collectionName(&[]*domain.Module{})
	require.NoError(t, err)
	assert.Equal(t, "modules", name)

	name, err = collectionName(&domain.LegacyRealization{})
	require.NoError(t, err)
	assert.Equal(t, "legacy_realizations", name)

	_, err = collectionName(42)
	assert.True(t, smklog.IsInvalidArgument(err))
}

func TestDocumentID(t *testing.T) {
	id, err := documentID(&domain.Specialization{ID: 9})
	require.NoError(t, err)
	assert.Equal(t, int64(9), id.Int64())
}

func TestConvertMongoError(t *testing.T) {
	assert.True(t, smklog.IsNotFound(convertMongoError(mongo.ErrNoDocuments)))
	assert.Nil(t, convertMongoError(nil))
}

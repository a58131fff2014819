package smklog

import (
	"testing"
)

func TestNewQueryAppliesOptions(t *testing.T) {
	q := NewQuery(
		Where("size", OpGreaterThan, 3),
		WhereNull("tag"),
		OrderBy("name", OrderDesc),
		Limit(10),
		Offset(20),
		nil,
	)

	if len(q.Conditions) != 2 {
		t.Fatalf("Expected 2 conditions, got %d", len(q.Conditions))
	}
	if len(q.Orders) != 1 || q.Orders[0].Direction != OrderDesc {
		t.Errorf("Expected one descending order, got %+v", q.Orders)
	}
	if q.Limit == nil || *q.Limit != 10 {
		t.Errorf("Expected limit 10, got %v", q.Limit)
	}
	if q.Offset == nil || *q.Offset != 20 {
		t.Errorf("Expected offset 20, got %v", q.Offset)
	}
}

func TestRenderCondition(t *testing.T) {
	tests := []struct {
		name     string
		dialect  Dialect
		cond     Condition
		expected string
		args     int
	}{
		{"equal sqlite", DialectSQLite, WhereCondition("name", OpEqual, "x"), "`name` = ?", 1},
		{"equal postgres", DialectPgSQL, WhereCondition("name", OpEqual, "x"), `"name" = ?`, 1},
		{"not equal", DialectMySQL, WhereCondition("size", OpNotEqual, 1), "`size` <> ?", 1},
		{"is null", DialectMsSQL, WhereCondition("tag", OpIsNull, nil), "[tag] IS NULL", 0},
		{"in list", DialectPgSQL, WhereCondition("id", OpIn, []int64{1, 2, 3}), `"id" IN (?, ?, ?)`, 3},
		{"empty in", DialectPgSQL, WhereCondition("id", OpIn, []int64{}), "1 = 0", 0},
		{"empty not in", DialectPgSQL, WhereCondition("id", OpNotIn, nil), "1 = 1", 0},
		{
			"or of and",
			DialectPgSQL,
			AnyOf(WhereCondition("tag", OpIsNull, nil), AllOf(WhereCondition("tag", OpEqual, 0), WhereCondition("size", OpLessThan, 3))),
			`("tag" IS NULL) OR (("tag" = ?) AND ("size" < ?))`,
			2,
		},
		{"not", DialectPgSQL, Negate(WhereCondition("name", OpEqual, "x")), `NOT (("name" = ?))`, 1},
		{"empty not", DialectPgSQL, Negate(), "1 = 0", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args, err := RenderCondition(tt.dialect, tt.cond)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if sql != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, sql)
			}
			if len(args) != tt.args {
				t.Errorf("Expected %d args, got %d", tt.args, len(args))
			}
		})
	}
}

func TestRenderConditionRejectsBadIdentifiers(t *testing.T) {
	_, _, err := RenderCondition(DialectSQLite, WhereCondition("name; DROP TABLE x", OpEqual, 1))
	if !IsInvalidArgument(err) {
		t.Errorf("Expected invalid argument error, got %v", err)
	}
}

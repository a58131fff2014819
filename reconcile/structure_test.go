package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lemmego/smklog/domain"
)

func TestParseStructure(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		ok      bool
		covered []int64
	}{
		{name: "empty", raw: "", ok: false},
		{name: "blank", raw: "  \n", ok: false},
		{name: "null", raw: "null", ok: false},
		{name: "malformed", raw: `{"requirementIds": [1, 2`, ok: false},
		{name: "array", raw: `[1, 2, 3]`, ok: false},
		{name: "wrong element type", raw: `{"requirementIds": ["a"]}`, ok: false},
		{name: "requirement ids", raw: `{"requirementIds": [11, 10]}`, ok: true, covered: []int64{10, 11}},
		{name: "case insensitive", raw: `{"REQUIREMENTIDS": [3], "Courses": [{"Id": 4}]}`, ok: true, covered: []int64{3, 4}},
		{
			name: "comments and trailing commas",
			raw: `{
				/* basic module */
				"internships": [{"id": 1, "name": "Ward"},],
				"procedures": [{"id": 2},], // counted per procedure
				"shifts": [{"id": 5}],
			}`,
			ok:      true,
			covered: []int64{1, 2, 5},
		},
		{name: "union without duplicates", raw: `{"requirementIds": [7], "shifts": [{"id": 7}, {"id": 8}]}`, ok: true, covered: []int64{7, 8}},
		{name: "unknown fields ignored", raw: `{"title": "Basic", "version": 2}`, ok: true, covered: []int64{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, ok := ParseStructure([]byte(tt.raw))
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.covered, s.Covered())
			}
		})
	}
}

func TestParseStructureLeavesInputIntact(t *testing.T) {
	raw := []byte(`{"shifts": [{"id": 1},], // trailing
}`)
	before := string(raw)
	_, ok := ParseStructure(raw)
	require.True(t, ok)
	assert.Equal(t, before, string(raw))
}

func TestInferModule(t *testing.T) {
	modules := []domain.Module{
		{ID: 1, Structure: []byte(`{"requirementIds": [10, 11]}`)},
		{ID: 2},
		{ID: 3, Structure: []byte(`{"requirementIds": [11, 12]}`)},
		{ID: 4, Structure: []byte(`{broken`)},
	}
	structures := ParseStructures(modules)
	assert.Len(t, structures, 2)

	tests := []struct {
		requirementID int64
		want          int64
		matched       bool
	}{
		{requirementID: 10, want: 1, matched: true},
		{requirementID: 11, want: 1, matched: true},
		{requirementID: 12, want: 3, matched: true},
		{requirementID: 99, want: 1, matched: false},
	}
	for _, tt := range tests {
		for i := 0; i < 3; i++ {
			m, matched := InferModule(modules, structures, tt.requirementID)
			require.NotNil(t, m)
			assert.Equal(t, tt.want, m.ID, "requirement %d", tt.requirementID)
			assert.Equal(t, tt.matched, matched)
		}
	}

	m, matched := InferModule(nil, nil, 10)
	assert.Nil(t, m)
	assert.False(t, matched)
}

package reconcile

import (
	"bytes"
	"encoding/json"
	"sort"

	"github.com/tailscale/hujson"

	"github.com/lemmego/smklog/domain"
)

// =====================================
// Module Structure
// =====================================

// ModuleStructure is the decoded form of Module.Structure.
type ModuleStructure struct {
	RequirementIDs []int64 `json:"requirementIds"`
	Internships    []item  `json:"internships"`
	Courses        []item  `json:"courses"`
	Procedures     []item  `json:"procedures"`
	Shifts         []item  `json:"shifts"`

	covered map[int64]bool
}

type item struct {
	ID int64 `json:"id"`
}

// Covers reports whether requirementID belongs to the module.
func (s ModuleStructure) Covers(requirementID int64) bool {
	return s.covered[requirementID]
}

// Covered returns every covered requirement id in ascending order.
func (s ModuleStructure) Covered() []int64 {
	ids := make([]int64, 0, len(s.covered))
	for id := range s.covered {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// HasStructure reports whether raw holds anything besides blanks or null.
func HasStructure(raw []byte) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

// ParseStructure decodes raw. Comments and trailing commas are accepted and
// field names match regardless of case. It reports false when raw is empty,
// null or not a JSON object, in which case the module covers nothing.
func ParseStructure(raw []byte) (ModuleStructure, bool) {
	if !HasStructure(raw) {
		return ModuleStructure{}, false
	}
	// Standardize may reuse the buffer it is given.
	std, err := hujson.Standardize(append([]byte(nil), raw...))
	if err != nil {
		return ModuleStructure{}, false
	}

	var s ModuleStructure
	if err := json.Unmarshal(std, &s); err != nil {
		return ModuleStructure{}, false
	}

	s.covered = make(map[int64]bool)
	for _, id := range s.RequirementIDs {
		s.covered[id] = true
	}
	for _, group := range [][]item{s.Internships, s.Courses, s.Procedures, s.Shifts} {
		for _, it := range group {
			s.covered[it.ID] = true
		}
	}
	return s, true
}

// ParseStructures parses the structure of every module, keyed by module id.
// Modules without a usable structure are absent from the map.
func ParseStructures(modules []domain.Module) map[int64]ModuleStructure {
	out := make(map[int64]ModuleStructure, len(modules))
	for _, m := range modules {
		if s, ok := ParseStructure(m.Structure); ok {
			out[m.ID] = s
		}
	}
	return out
}

// InferModule picks the module a realization of requirementID belongs to:
// the first module, in the given order, whose structure covers it. When none
// does it falls back to the first module and reports false. It returns nil
// only when modules is empty.
func InferModule(modules []domain.Module, structures map[int64]ModuleStructure, requirementID int64) (*domain.Module, bool) {
	if len(modules) == 0 {
		return nil, false
	}
	for i := range modules {
		if s, ok := structures[modules[i].ID]; ok && s.Covers(requirementID) {
			return &modules[i], true
		}
	}
	return &modules[0], false
}

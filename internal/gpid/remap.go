// Package gpid translates piece identifiers between module releases.
//
// Releases sometimes renumber pieces. A Table holds one id→id map per release
// threshold; Forward folds every qualifying map over an id in ascending
// threshold order and Reverse undoes it in the opposite order.
package gpid

import (
	"sort"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Entry renumbers ids for modules declaring Threshold or later.
type Entry struct {
	Threshold string
	Map       map[string]string
}

type step struct {
	threshold string
	forward   map[string]string
	inverse   map[string]string
}

type Table struct {
	steps []step
}

// NewTable orders entries by threshold and derives each inverse map. When two
// ids renumber to the same target the inverse keeps the smallest source id.
func NewTable(entries []Entry) *Table {
	sorted := slices.Clone(entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return CompareVersions(sorted[i].Threshold, sorted[j].Threshold) < 0
	})
	t := &Table{steps: make([]step, 0, len(sorted))}
	for _, e := range sorted {
		fwd := make(map[string]string, len(e.Map))
		inv := make(map[string]string, len(e.Map))
		keys := maps.Keys(e.Map)
		slices.Sort(keys)
		for _, from := range keys {
			to := e.Map[from]
			fwd[from] = to
			if _, taken := inv[to]; !taken {
				inv[to] = from
			}
		}
		t.steps = append(t.steps, step{threshold: e.Threshold, forward: fwd, inverse: inv})
	}
	return t
}

// Qualifies reports whether the i'th entry (in threshold order) applies to a
// module declaring version. The earliest entry also applies to every version
// older than the second threshold, so it effectively always applies.
func (t *Table) Qualifies(i int, version string) bool {
	if i < 0 || i >= len(t.steps) {
		return false
	}
	if i == 0 && len(t.steps) > 1 && CompareVersions(version, t.steps[1].threshold) < 0 {
		return true
	}
	return CompareVersions(version, t.steps[i].threshold) >= 0
}

func (t *Table) Forward(version, id string) string {
	if t == nil {
		return id
	}
	for i, s := range t.steps {
		if !t.Qualifies(i, version) {
			continue
		}
		if to, ok := s.forward[id]; ok {
			id = to
		}
	}
	return id
}

func (t *Table) Reverse(version, id string) string {
	if t == nil {
		return id
	}
	for i := len(t.steps) - 1; i >= 0; i-- {
		if !t.Qualifies(i, version) {
			continue
		}
		if from, ok := t.steps[i].inverse[id]; ok {
			id = from
		}
	}
	return id
}

// Thresholds lists the entry thresholds in evaluation order.
func (t *Table) Thresholds() []string {
	out := make([]string, len(t.steps))
	for i, s := range t.steps {
		out[i] = s.threshold
	}
	return out
}

// Remappings is the renumbering history of the module.
var Remappings = []Entry{
	{Threshold: "6.5.0", Map: map[string]string{
		"1002": "1001",
		"1527": "1526",
		"2524": "2523",
	}},
	{Threshold: "6.6.0", Map: map[string]string{
		"3044": "3045",
		"7012": "7140",
	}},
	{Threshold: "6.6.2", Map: map[string]string{
		"11340": "12730",
		"11341": "12731",
	}},
}

// Default is the table built from Remappings.
var Default = NewTable(Remappings)

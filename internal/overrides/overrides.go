// Package overrides holds the hand-maintained corrections applied to pieces as
// they are loaded, and the list of pieces that are allowed to carry several
// images per face.
//
// A Table is consumed by one load: each rule is expected to match exactly one
// piece, and whatever is left over afterwards is reported.
package overrides

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/boardzilla/boardzilla-modreg/internal/diag"
	"github.com/stoewer/go-strcase"
	"github.com/tidwall/gjson"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

const (
	OverridesDir = "overrides"
	ExceptionDir = "expected-multiple-images"
)

// Fields is the part of a piece that rules read and write. Values use the JSON
// data model: string, bool, float64, []any or nil.
type Fields interface {
	Field(name string) (any, bool)
	SetField(name string, value any) error
	ImageCount(name string) (int, bool)
}

// Rule checks Expected against a piece and, only if every expectation holds,
// writes Replacement into it.
type Rule struct {
	GPID        string
	Expected    map[string]any
	Replacement map[string]any
}

type Table struct {
	rules          map[string]*Rule
	exceptions     map[string]map[string]any
	usedRules      map[string]bool
	usedExceptions map[string]bool
}

func NewTable(rules []*Rule, exceptions map[string]map[string]any) *Table {
	t := &Table{
		rules:          make(map[string]*Rule, len(rules)),
		exceptions:     make(map[string]map[string]any, len(exceptions)),
		usedRules:      map[string]bool{},
		usedExceptions: map[string]bool{},
	}
	for _, r := range rules {
		t.rules[r.GPID] = &Rule{
			GPID:        r.GPID,
			Expected:    normalizeKeys(r.Expected),
			Replacement: normalizeKeys(r.Replacement),
		}
	}
	for gpid, exp := range exceptions {
		t.exceptions[gpid] = normalizeKeys(exp)
	}
	return t
}

// Load reads the override and exception files for one canonical version from
// dataDir. Missing files, or an empty dataDir, yield an empty table.
func Load(dataDir, version string) (*Table, error) {
	if dataDir == "" {
		return NewTable(nil, nil), nil
	}
	overrideData, err := readOptional(filepath.Join(dataDir, OverridesDir, version+".json"))
	if err != nil {
		return nil, err
	}
	exceptionData, err := readOptional(filepath.Join(dataDir, ExceptionDir, version+".json"))
	if err != nil {
		return nil, err
	}
	return Parse(overrideData, exceptionData)
}

// Parse builds a table from the raw override and exception documents.
// Either may be empty.
func Parse(overrideData, exceptionData []byte) (*Table, error) {
	var rules []*Rule
	if len(overrideData) > 0 {
		if !gjson.ValidBytes(overrideData) {
			return nil, errors.New("overrides: invalid json")
		}
		var perr error
		gjson.ParseBytes(overrideData).ForEach(func(key, value gjson.Result) bool {
			if !value.IsObject() {
				perr = fmt.Errorf("overrides: entry %s is not an object", key.String())
				return false
			}
			rules = append(rules, &Rule{
				GPID:        key.String(),
				Expected:    objectValues(value.Get("expected")),
				Replacement: objectValues(value.Get("updated")),
			})
			return true
		})
		if perr != nil {
			return nil, perr
		}
	}

	exceptions := map[string]map[string]any{}
	if len(exceptionData) > 0 {
		if !gjson.ValidBytes(exceptionData) {
			return nil, errors.New("expected multiple images: invalid json")
		}
		gjson.ParseBytes(exceptionData).ForEach(func(key, value gjson.Result) bool {
			exceptions[key.String()] = objectValues(value)
			return true
		})
	}
	return NewTable(rules, exceptions), nil
}

func (t *Table) Len() int {
	return len(t.rules)
}

// Apply runs the rule for gpid, if there is one that has not been used yet.
// A failed expectation is reported once per mismatching field and blocks the
// whole rule: no replacement is written, not even for fields whose own
// expectation held. It reports whether replacements were written.
func (t *Table) Apply(gpid string, piece Fields, diags *diag.List) bool {
	r, ok := t.rules[gpid]
	if !ok || t.usedRules[gpid] {
		return false
	}
	t.usedRules[gpid] = true

	matched := true
	for _, field := range sortedKeys(r.Expected) {
		want := r.Expected[field]
		got, _ := piece.Field(field)
		if !equal(got, want) {
			diags.Warnf(diag.OverrideMismatch, gpid, "%s: expected %s, found %s", field, render(want), render(got))
			matched = false
		}
	}
	if !matched {
		return false
	}
	for _, field := range sortedKeys(r.Replacement) {
		if err := piece.SetField(field, r.Replacement[field]); err != nil {
			diags.Warnf(diag.OverrideInvalid, gpid, "%s: %v", field, err)
		}
	}
	return true
}

// ExpectMultiple reports whether gpid is allowed to carry several images on a
// face. The exception's own expectations are checked against the piece: a
// number is compared with the image count of the field, anything else with
// its value.
func (t *Table) ExpectMultiple(gpid string, piece Fields, diags *diag.List) bool {
	exp, ok := t.exceptions[gpid]
	if !ok {
		return false
	}
	t.usedExceptions[gpid] = true
	for _, field := range sortedKeys(exp) {
		want := exp[field]
		if n, isNum := want.(float64); isNum {
			if got, _ := piece.ImageCount(field); float64(got) != n {
				diags.Warnf(diag.ExceptionMismatch, gpid, "%s: expected %v images, found %d", field, n, got)
			}
			continue
		}
		if got, _ := piece.Field(field); !equal(got, want) {
			diags.Warnf(diag.ExceptionMismatch, gpid, "%s: expected %s, found %s", field, render(want), render(got))
		}
	}
	return true
}

// ReportUnused records every rule and exception that never matched a piece.
func (t *Table) ReportUnused(diags *diag.List) {
	for _, gpid := range sortedKeys(t.rules) {
		if !t.usedRules[gpid] {
			diags.Warnf(diag.UnusedOverride, gpid, "override was never applied")
		}
	}
	for _, gpid := range sortedKeys(t.exceptions) {
		if !t.usedExceptions[gpid] {
			diags.Warnf(diag.UnusedException, gpid, "multiple-images exception was never triggered")
		}
	}
}

// FieldName maps spellings such as "frontImages" or "Front-Images" onto the
// canonical snake_case field name.
func FieldName(s string) string {
	return strcase.SnakeCase(s)
}

func normalizeKeys(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[FieldName(k)] = v
	}
	return out
}

func objectValues(r gjson.Result) map[string]any {
	out := map[string]any{}
	if !r.IsObject() {
		return out
	}
	r.ForEach(func(key, value gjson.Result) bool {
		out[key.String()] = value.Value()
		return true
	})
	return out
}

func equal(a, b any) bool {
	return render(a) == render(b)
}

func render(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := maps.Keys(m)
	slices.Sort(keys)
	return keys
}

func readOptional(p string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Clean(p))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return data, nil
}

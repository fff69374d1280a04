package heuristics

import (
	"path"
	"strings"

	"github.com/boardzilla/boardzilla-modreg/internal/diag"
)

// VariantRule recognises an alternate-state image (a dismantled or limbered
// counter) appended to the end of both face lists.
type VariantRule struct {
	Name string
	// Prefix restricts the rule to images under one path prefix. Empty matches all.
	Prefix string
	Front  string
	Back   string
}

// DefaultVariantRules are checked in order. The first rule matching both the
// front and the back suffix trims the pair.
var DefaultVariantRules = []VariantRule{
	{Name: "dismantled", Front: "-dm", Back: "-dmb"},
	{Name: "limbered", Front: "-l", Back: "-lb"},
	{Name: "dismantled", Prefix: "ja/", Front: "dm", Back: "dmb"},
	{Name: "limbered", Prefix: "fr/", Front: "lim", Back: "limb"},
}

func (r VariantRule) MatchFront(img string) bool {
	return r.match(img, r.Front)
}

func (r VariantRule) MatchBack(img string) bool {
	return r.match(img, r.Back)
}

func (r VariantRule) match(img, suffix string) bool {
	lower := strings.ToLower(img)
	if r.Prefix != "" && !strings.HasPrefix(lower, r.Prefix) {
		return false
	}
	stem := strings.TrimSuffix(lower, path.Ext(lower))
	return strings.HasSuffix(stem, suffix)
}

// TrimVariants drops a trailing alternate-state image from both faces when the
// front and back carry a matching suffix pair. A front that matches some rule
// but pairs with none is reported and left untouched.
func TrimVariants(gpid string, front, back []string, rules []VariantRule, diags *diag.List) ([]string, []string) {
	if len(front) < 2 {
		return front, back
	}
	last := front[len(front)-1]
	var unpaired *VariantRule
	for i, r := range rules {
		if !r.MatchFront(last) {
			continue
		}
		if len(back) > 0 && r.MatchBack(back[len(back)-1]) {
			return front[:len(front)-1], back[:len(back)-1]
		}
		if unpaired == nil {
			unpaired = &rules[i]
		}
	}
	if unpaired != nil {
		partner := "<none>"
		if len(back) > 0 {
			partner = back[len(back)-1]
		}
		diags.Warnf(diag.UnpairedVariant, gpid, "%s front image %s has no %q back partner (got %s)", unpaired.Name, last, unpaired.Back, partner)
	}
	return front, back
}

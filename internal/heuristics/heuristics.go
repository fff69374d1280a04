// Package heuristics pulls face image references out of a piece descriptor.
//
// Descriptors are undocumented `;`-separated strings. Image paths are
// recognised by shape, and when two image fields are present the back face
// comes first.
package heuristics

import (
	"path"
	"strings"

	"github.com/boardzilla/boardzilla-modreg/internal/diag"
)

// DefaultExtension is appended to image references declared without one.
const DefaultExtension = ".gif"

var (
	imageSuffixes = []string{".gif", ".png"}

	nationalityPrefixes = []string{
		"al", "am", "ax", "br", "ch", "fi", "fr", "ge", "gr", "hu", "it",
		"ja", "nk", "po", "ro", "ru", "sk", "sw", "un", "us", "yu",
	}

	// Fields that look like images but never are.
	sentinels = map[string]bool{
		"null.gif":        true,
		"blank.gif":       true,
		"empty.png":       true,
		"transparent.gif": true,
	}

	// A field holding any of these is part of a broken or computed value.
	voidMarkers = []string{"\t", "$", "{", "}"}

	unescaper = strings.NewReplacer(`\\/`, "/", `\/`, "/")
)

// Result holds the ordered image references of each face. Back is nil for
// single-faced pieces.
type Result struct {
	Front []string
	Back  []string
}

func (r Result) Empty() bool {
	return len(r.Front) == 0 && len(r.Back) == 0
}

// Parse runs every heuristic over one descriptor. Problems are recorded in
// diags under gpid; they never stop the parse.
func Parse(gpid, descriptor string, diags *diag.List) Result {
	fields := Candidates(descriptor)
	var front, back string
	switch len(fields) {
	case 0:
		diags.Skipf(diag.NoImages, gpid, "no image fields in descriptor")
		return Result{}
	case 1:
		front = fields[0]
	default:
		if len(fields) > 2 {
			diags.Warnf(diag.TooManyImageFields, gpid, "%d image fields, keeping the first two: %s", len(fields), strings.Join(fields, " | "))
		}
		back, front = fields[0], fields[1]
	}

	res := Result{
		Front: SplitImages(front),
		Back:  SplitImages(back),
	}
	res.Front, res.Back = TrimVariants(gpid, res.Front, res.Back, DefaultVariantRules, diags)
	res.Front = withExtensions(res.Front)
	res.Back = withExtensions(res.Back)
	if len(res.Front) == 0 {
		diags.Skipf(diag.NoImages, gpid, "image fields are empty")
		return Result{}
	}
	return res
}

// Candidates splits a descriptor into fields and keeps the ones that look like
// image references, in their original order.
func Candidates(descriptor string) []string {
	var out []string
	for _, f := range strings.Split(unescaper.Replace(descriptor), ";") {
		f = strings.TrimSpace(f)
		if IsImageField(f) {
			out = append(out, f)
		}
	}
	return out
}

func IsImageField(f string) bool {
	if f == "" || sentinels[strings.ToLower(f)] {
		return false
	}
	for _, m := range voidMarkers {
		if strings.Contains(f, m) {
			return false
		}
	}
	lower := strings.ToLower(f)
	for _, s := range imageSuffixes {
		if strings.HasSuffix(lower, s) {
			return true
		}
	}
	for _, p := range nationalityPrefixes {
		if strings.HasPrefix(lower, p+"/") {
			return true
		}
	}
	return false
}

// SplitImages turns a comma-separated image field into an ordered list,
// dropping empty entries.
func SplitImages(field string) []string {
	var out []string
	for _, s := range strings.Split(field, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func withExtensions(images []string) []string {
	for i, img := range images {
		if path.Ext(img) == "" {
			images[i] = img + DefaultExtension
		}
	}
	return images
}

package extensions

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/boardzilla/boardzilla-modreg/internal/archive"
	"github.com/boardzilla/boardzilla-modreg/internal/buildfile"
	"github.com/boardzilla/boardzilla-modreg/internal/diag"
)

// DefaultPatterns are the extension file names considered when none are configured.
var DefaultPatterns = []string{"*.vmdx", "*.zip"}

// Resolved pairs an open extension archive with the release it was matched to.
// Several Resolved values may share one Archive.
type Resolved struct {
	Archive    *archive.Handle
	Descriptor Descriptor
}

type Resolver struct {
	catalog  *Catalog
	patterns []string
}

func NewResolver(catalog *Catalog, patterns []string) (*Resolver, error) {
	if catalog == nil {
		catalog = NewCatalog(nil)
	}
	if len(patterns) == 0 {
		patterns = DefaultPatterns
	}
	for _, p := range patterns {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid extension pattern %q", p)
		}
	}
	return &Resolver{catalog: catalog, patterns: patterns}, nil
}

func (r *Resolver) Matches(name string) bool {
	for _, p := range r.patterns {
		if ok, _ := doublestar.Match(p, name); ok {
			return true
		}
	}
	return false
}

// Resolve opens every candidate file in dir, in file name order, and returns
// the accepted ones. Files that are not archives or whose manifest cannot be
// parsed abort the whole resolve; anything else that does not fit is skipped
// with a diagnostic. On error every archive opened so far is closed.
func (r *Resolver) Resolve(dir string, diags *diag.List) ([]Resolved, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read extensions dir: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && r.Matches(e.Name()) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var out []Resolved
	fail := func(err error) ([]Resolved, error) {
		Close(out)
		return nil, err
	}
	for _, name := range names {
		p := filepath.Join(dir, name)
		h, err := archive.Open(p)
		if err != nil {
			return fail(err)
		}
		accepted, err := r.accept(h, diags)
		if err != nil {
			h.Close()
			return fail(fmt.Errorf("extension %s: %w", name, err))
		}
		if len(accepted) == 0 {
			h.Close()
			continue
		}
		out = append(out, accepted...)
	}
	return out, nil
}

func (r *Resolver) accept(h *archive.Handle, diags *diag.List) ([]Resolved, error) {
	data, err := h.Manifest()
	if err != nil {
		return nil, err
	}
	if err := buildfile.Validate(data); err != nil {
		return nil, err
	}
	hdr, err := buildfile.ReadHeader(data)
	if err != nil {
		return nil, err
	}
	name := h.Name()
	if !hdr.IsExtension() {
		diags.Skipf(diag.ExtensionSkipped, name, "unexpected root element %s", hdr.Root)
		return nil, nil
	}
	if hdr.ExtensionID == "" || hdr.Version == "" {
		diags.Skipf(diag.ExtensionSkipped, name, "missing extension id or version")
		return nil, nil
	}
	desc, ok := r.catalog.Lookup(hdr.ExtensionID, hdr.Version)
	if !ok {
		diags.Skipf(diag.ExtensionSkipped, name, "unknown extension %s version %s", hdr.ExtensionID, hdr.Version)
		return nil, nil
	}
	desc.Path = h.Path()
	out := []Resolved{{Archive: h, Descriptor: desc}}
	for _, child := range r.catalog.Children(desc.ID, desc.Version) {
		child.Path = h.Path()
		out = append(out, Resolved{Archive: h, Descriptor: child})
	}
	return out, nil
}

// Close closes every distinct archive in resolved.
func Close(resolved []Resolved) error {
	seen := map[*archive.Handle]bool{}
	var errs []error
	for _, r := range resolved {
		if seen[r.Archive] {
			continue
		}
		seen[r.Archive] = true
		if err := r.Archive.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

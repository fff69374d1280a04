package registry

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/boardzilla/boardzilla-modreg/internal/archive"
	"github.com/boardzilla/boardzilla-modreg/internal/buildfile"
	"github.com/boardzilla/boardzilla-modreg/internal/diag"
	"github.com/boardzilla/boardzilla-modreg/internal/extensions"
	"github.com/boardzilla/boardzilla-modreg/internal/gpid"
	"github.com/boardzilla/boardzilla-modreg/internal/heuristics"
	"github.com/boardzilla/boardzilla-modreg/internal/overrides"
)

var ErrNotAModule = errors.New("archive is not a module")

// SupportedVersions are the module releases the correction tables are kept for.
var SupportedVersions = []string{
	"6.6.0", "6.6.1", "6.6.2", "6.6.3", "6.6.3.1", "6.6.4", "6.6.5", "6.6.6", "6.6.7", "6.6.8",
}

type Options struct {
	ModulePath    string
	ExtensionsDir string
	// Patterns filters extension file names; empty means extensions.DefaultPatterns.
	Patterns []string
	// DataDir holds the version aliases, correction tables and extension catalog.
	DataDir string
	// Interest limits the load to the given piece ids. Nil loads every piece.
	Interest func(gpid string) bool
	// Remap defaults to gpid.Default.
	Remap     *gpid.Table
	Supported []string
}

type Builder struct {
	opts Options
}

func NewBuilder(opts Options) (*Builder, error) {
	if strings.TrimSpace(opts.ModulePath) == "" {
		return nil, errors.New("module path is required")
	}
	if opts.Remap == nil {
		opts.Remap = gpid.Default
	}
	if opts.Supported == nil {
		opts.Supported = SupportedVersions
	}
	return &Builder{opts: opts}, nil
}

// WatchedFiles lists the paths whose changes call for a rebuild.
func (b *Builder) WatchedFiles() []string {
	paths := []string{b.opts.ModulePath}
	for _, p := range []string{b.opts.ExtensionsDir, b.opts.DataDir} {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err == nil {
			paths = append(paths, p)
		}
	}
	return paths
}

type source struct {
	archive *archive.Handle
	label   string
}

// Build loads the module and its extensions from scratch. On error nothing is
// left open.
func (b *Builder) Build() (*ModuleRegistry, error) {
	diags := &diag.List{}

	mod, err := archive.Open(b.opts.ModulePath)
	if err != nil {
		return nil, fmt.Errorf("module: %w", err)
	}
	reg, err := b.build(mod, diags)
	if err != nil {
		mod.Close()
		return nil, err
	}
	return reg, nil
}

func (b *Builder) build(mod *archive.Handle, diags *diag.List) (*ModuleRegistry, error) {
	data, err := mod.Manifest()
	if err != nil {
		return nil, fmt.Errorf("module: %w", err)
	}
	hdr, err := buildfile.ReadHeader(data)
	if err != nil {
		return nil, fmt.Errorf("module %s: %w", mod.Name(), err)
	}
	if !hdr.IsModule() {
		return nil, fmt.Errorf("%s: %w (root element %s)", mod.Name(), ErrNotAModule, hdr.Root)
	}
	version := hdr.Version
	if !b.supported(version) {
		diags.Warnf(diag.UnsupportedVersion, mod.Name(), "module version %q is not supported", version)
	}

	aliases, err := overrides.LoadAliases(b.opts.DataDir)
	if err != nil {
		return nil, fmt.Errorf("version aliases: %w", err)
	}
	table, err := overrides.Load(b.opts.DataDir, aliases.Canonical(version))
	if err != nil {
		return nil, fmt.Errorf("corrections: %w", err)
	}

	var exts []extensions.Resolved
	if b.opts.ExtensionsDir != "" {
		catalog, err := extensions.LoadCatalog(b.opts.DataDir)
		if err != nil {
			return nil, err
		}
		resolver, err := extensions.NewResolver(catalog, b.opts.Patterns)
		if err != nil {
			return nil, err
		}
		exts, err = resolver.Resolve(b.opts.ExtensionsDir, diags)
		if err != nil {
			return nil, err
		}
	}

	reg := &ModuleRegistry{
		name:       hdr.Name,
		version:    version,
		module:     mod,
		extensions: exts,
		pieces:     map[string]*Piece{},
		remap:      b.opts.Remap,
	}
	sources := []source{{mod, mod.Name()}}
	seen := map[*archive.Handle]bool{mod: true}
	for _, e := range exts {
		if !seen[e.Archive] {
			seen[e.Archive] = true
			sources = append(sources, source{e.Archive, e.Archive.Name()})
		}
	}
	for _, src := range sources {
		if err := b.load(reg, src, table, diags); err != nil {
			extensions.Close(exts)
			return nil, err
		}
	}
	table.ReportUnused(diags)
	reg.diags = diags.Items()
	reg.refs.Store(1)
	return reg, nil
}

func (b *Builder) load(reg *ModuleRegistry, src source, table *overrides.Table, diags *diag.List) error {
	data, err := src.archive.Manifest()
	if err != nil {
		return err
	}
	consumed := map[string]bool{}
	for raw, err := range buildfile.Pieces(data, reg.version, b.opts.Interest) {
		if err != nil {
			return fmt.Errorf("%s: %w", src.label, err)
		}
		if consumed[raw.GPID] {
			continue
		}
		consumed[raw.GPID] = true

		images := heuristics.Parse(raw.GPID, raw.Descriptor, diags)
		p := &Piece{
			GPID:    raw.GPID,
			Name:    raw.Name,
			Small:   raw.Small,
			Front:   images.Front,
			Back:    images.Back,
			Archive: src.archive,
		}
		d := draft{p}
		table.Apply(raw.GPID, d, diags)
		if len(p.Front) > 1 || len(p.Back) > 1 {
			if !table.ExpectMultiple(raw.GPID, d, diags) {
				diags.Warnf(diag.UnexpectedMultiplicity, raw.GPID, "%d front / %d back images", len(p.Front), len(p.Back))
			}
		}

		id := reg.remap.Forward(reg.version, raw.GPID)
		p.GPID = id
		if prev, ok := reg.pieces[id]; ok {
			diags.Warnf(diag.DuplicateIdentifier, id, "%s replaces the piece from %s", src.label, prev.Archive.Name())
		} else {
			reg.order = append(reg.order, id)
		}
		reg.pieces[id] = p
	}
	return nil
}

func (b *Builder) supported(version string) bool {
	for _, v := range b.opts.Supported {
		if v == version {
			return true
		}
	}
	return false
}

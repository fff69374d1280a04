// Package registry assembles the pieces of a module and its extensions into an
// immutable snapshot and publishes it to concurrent readers.
package registry

import (
	"errors"
	"path"
	"sync/atomic"

	"github.com/boardzilla/boardzilla-modreg/internal/archive"
	"github.com/boardzilla/boardzilla-modreg/internal/diag"
	"github.com/boardzilla/boardzilla-modreg/internal/extensions"
	"github.com/boardzilla/boardzilla-modreg/internal/gpid"
)

// ImageDir is the archive folder piece images are stored under.
const ImageDir = "images"

// ModuleRegistry is one loaded module with its extensions. It owns the open
// archives and closes them once it has been replaced and every borrower has
// released it.
type ModuleRegistry struct {
	name       string
	version    string
	module     *archive.Handle
	extensions []extensions.Resolved
	pieces     map[string]*Piece
	order      []string
	remap      *gpid.Table
	diags      []diag.Diagnostic
	refs       atomic.Int64
}

// Extension is one accepted extension release and the archive it came from.
type Extension struct {
	ArchiveName string                `json:"archive"`
	Descriptor  extensions.Descriptor `json:"descriptor"`
}

func (r *ModuleRegistry) Name() string {
	return r.name
}

func (r *ModuleRegistry) Version() string {
	return r.version
}

func (r *ModuleRegistry) ModuleFile() string {
	return r.module.Path()
}

// Piece looks up a piece by id, renumbering the id for this module release first.
func (r *ModuleRegistry) Piece(id string) (*Piece, bool) {
	p, ok := r.pieces[r.remap.Forward(r.version, id)]
	return p, ok
}

// PieceImage returns the path and content of one face image. A missing piece,
// face or index yields an empty path and nil data without an error.
func (r *ModuleRegistry) PieceImage(id string, face Face, index int) (string, []byte, error) {
	p, ok := r.Piece(id)
	if !ok {
		return "", nil, nil
	}
	img, ok := p.Images(face).At(index)
	if !ok {
		return "", nil, nil
	}
	data, err := p.Archive.Read(path.Join(ImageDir, img))
	if err != nil {
		if errors.Is(err, archive.ErrNotFound) {
			return "", nil, nil
		}
		return "", nil, err
	}
	return img, data, nil
}

// PieceInfo summarises every piece. Renumbered pieces are also listed under
// the id they had before renumbering.
func (r *ModuleRegistry) PieceInfo() map[string]Summary {
	out := make(map[string]Summary, len(r.pieces))
	for id, p := range r.pieces {
		s := p.Summary()
		out[id] = s
		if old := r.remap.Reverse(r.version, id); old != id {
			if _, taken := r.pieces[old]; !taken {
				out[old] = s
			}
		}
	}
	return out
}

// Pieces lists the pieces in load order.
func (r *ModuleRegistry) Pieces() []*Piece {
	out := make([]*Piece, len(r.order))
	for i, id := range r.order {
		out[i] = r.pieces[id]
	}
	return out
}

func (r *ModuleRegistry) Extensions() []Extension {
	out := make([]Extension, len(r.extensions))
	for i, e := range r.extensions {
		out[i] = Extension{ArchiveName: e.Archive.Name(), Descriptor: e.Descriptor}
	}
	return out
}

// Diagnostics are the soft-skip and warning conditions raised by the load, in order.
func (r *ModuleRegistry) Diagnostics() []diag.Diagnostic {
	out := make([]diag.Diagnostic, len(r.diags))
	copy(out, r.diags)
	return out
}

func (r *ModuleRegistry) acquire() {
	r.refs.Add(1)
}

func (r *ModuleRegistry) release() {
	if r.refs.Add(-1) == 0 {
		r.close()
	}
}

func (r *ModuleRegistry) close() error {
	return errors.Join(r.module.Close(), extensions.Close(r.extensions))
}

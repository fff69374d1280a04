// Package archive gives random access to the files packed inside a module or
// extension archive.
//
// Every read from every open Handle goes through one process-wide lock: the
// decompressor state is not safe to drive concurrently, even across handles.
package archive

import (
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/zip"
)

var (
	ErrNotAnArchive    = errors.New("not an archive")
	ErrMissingManifest = errors.New("archive has no build manifest")
	ErrNotFound        = errors.New("file not found in archive")
	ErrClosed          = errors.New("archive is closed")
)

// ManifestNames lists the entries that may hold the build manifest, preferred first.
var ManifestNames = []string{"buildFile.xml", "buildFile"}

var readLock sync.Mutex

type Handle struct {
	path     string
	rc       *zip.ReadCloser
	files    map[string]*zip.File
	manifest string
}

func Open(p string) (*Handle, error) {
	readLock.Lock()
	defer readLock.Unlock()

	rc, err := zip.OpenReader(p)
	if err != nil {
		if errors.Is(err, zip.ErrFormat) || errors.Is(err, zip.ErrAlgorithm) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("open %s: %w", p, ErrNotAnArchive)
		}
		return nil, fmt.Errorf("open %s: %w", p, err)
	}
	h := &Handle{
		path:  p,
		rc:    rc,
		files: make(map[string]*zip.File, len(rc.File)),
	}
	for _, f := range rc.File {
		h.files[f.Name] = f
	}
	for _, n := range ManifestNames {
		if _, ok := h.files[n]; ok {
			h.manifest = n
			break
		}
	}
	if h.manifest == "" {
		rc.Close()
		return nil, fmt.Errorf("open %s: %w", p, ErrMissingManifest)
	}
	return h, nil
}

// Path is the file system path the handle was opened from.
func (h *Handle) Path() string {
	return h.path
}

// Name is the base file name of the archive.
func (h *Handle) Name() string {
	return filepath.Base(h.path)
}

func (h *Handle) Has(internalPath string) bool {
	_, ok := h.files[path.Clean(internalPath)]
	return ok
}

// Read returns the full contents of one entry.
func (h *Handle) Read(internalPath string) ([]byte, error) {
	readLock.Lock()
	defer readLock.Unlock()

	if h.rc == nil {
		return nil, fmt.Errorf("read %s from %s: %w", internalPath, h.Name(), ErrClosed)
	}
	f, ok := h.files[path.Clean(internalPath)]
	if !ok {
		return nil, fmt.Errorf("read %s from %s: %w", internalPath, h.Name(), ErrNotFound)
	}
	r, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("read %s from %s: %w", internalPath, h.Name(), err)
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read %s from %s: %w", internalPath, h.Name(), err)
	}
	return data, nil
}

func (h *Handle) Manifest() ([]byte, error) {
	return h.Read(h.manifest)
}

func (h *Handle) Close() error {
	readLock.Lock()
	defer readLock.Unlock()
	if h.rc == nil {
		return nil
	}
	err := h.rc.Close()
	h.rc = nil
	return err
}

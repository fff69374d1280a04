// Package extensions finds the add-on archives that belong to a module load.
package extensions

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tidwall/gjson"
)

// CatalogDir is the data directory subfolder holding one JSON file per known
// extension release.
const CatalogDir = "extensions"

// Descriptor identifies one accepted extension release.
type Descriptor struct {
	Path     string `json:"path,omitempty"`
	ID       string `json:"extensionId"`
	Version  string `json:"version"`
	ParentID string `json:"parentExtensionId,omitempty"`
	Name     string `json:"name,omitempty"`
}

func (d Descriptor) key() catalogKey {
	return catalogKey{d.ID, d.Version}
}

type catalogKey struct {
	id      string
	version string
}

// Catalog is the set of known (extension id, version) releases.
type Catalog struct {
	entries  map[catalogKey]Descriptor
	children map[catalogKey][]Descriptor
}

// NewCatalog indexes entries. A later entry with the same (id, version)
// replaces an earlier one.
func NewCatalog(entries []Descriptor) *Catalog {
	c := &Catalog{
		entries:  map[catalogKey]Descriptor{},
		children: map[catalogKey][]Descriptor{},
	}
	for _, e := range entries {
		e.Path = ""
		c.entries[e.key()] = e
	}
	// Children come from the deduplicated entries; a release declared twice
	// is listed once, as its last declaration.
	for _, e := range c.entries {
		if e.ParentID != "" {
			parent := catalogKey{e.ParentID, e.Version}
			c.children[parent] = append(c.children[parent], e)
		}
	}
	for k := range c.children {
		sort.SliceStable(c.children[k], func(i, j int) bool {
			return c.children[k][i].ID < c.children[k][j].ID
		})
	}
	return c
}

// LoadCatalog reads every *.json file in dataDir/extensions. A missing
// directory is an empty catalog.
func LoadCatalog(dataDir string) (*Catalog, error) {
	if dataDir == "" {
		return NewCatalog(nil), nil
	}
	dir := filepath.Join(dataDir, CatalogDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return NewCatalog(nil), nil
		}
		return nil, err
	}
	var descs []Descriptor
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		if !gjson.ValidBytes(data) {
			return nil, fmt.Errorf("extension catalog %s: invalid json", e.Name())
		}
		doc := gjson.ParseBytes(data)
		d := Descriptor{
			ID:       strings.TrimSpace(doc.Get("extensionId").String()),
			Version:  strings.TrimSpace(doc.Get("version").String()),
			ParentID: strings.TrimSpace(doc.Get("parentExtensionId").String()),
			Name:     doc.Get("name").String(),
		}
		if d.ID == "" || d.Version == "" {
			return nil, fmt.Errorf("extension catalog %s: extensionId and version are required", e.Name())
		}
		descs = append(descs, d)
	}
	return NewCatalog(descs), nil
}

func (c *Catalog) Lookup(id, version string) (Descriptor, bool) {
	d, ok := c.entries[catalogKey{id, version}]
	return d, ok
}

// Children lists the releases declaring (id, version) as their parent,
// ordered by extension id.
func (c *Catalog) Children(id, version string) []Descriptor {
	return c.children[catalogKey{id, version}]
}

func (c *Catalog) Len() int {
	return len(c.entries)
}

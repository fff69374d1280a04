package extensions_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/boardzilla/boardzilla-modreg/internal/archive/archivetest"
	"github.com/boardzilla/boardzilla-modreg/internal/diag"
	"github.com/boardzilla/boardzilla-modreg/internal/extensions"
	"github.com/stretchr/testify/require"
)

func extensionManifest(id, version string) map[string]string {
	return map[string]string{
		"buildFile.xml": `<VASSAL.build.module.ModuleExtension extensionId="` + id + `" version="` + version + `"/>`,
	}
}

func testCatalog() *extensions.Catalog {
	return extensions.NewCatalog([]extensions.Descriptor{
		{ID: "P", Version: "1", Name: "Parent"},
		{ID: "C", Version: "1", ParentID: "P", Name: "Child"},
		{ID: "B", Version: "1", ParentID: "P", Name: "Another child"},
		{ID: "X", Version: "2", Name: "Standalone"},
	})
}

func newResolver(t *testing.T, patterns ...string) *extensions.Resolver {
	t.Helper()
	r, err := extensions.NewResolver(testCatalog(), patterns)
	require.NoError(t, err)
	return r
}

func TestResolveParentPullsInChildren(t *testing.T) {
	dir := t.TempDir()
	p := archivetest.Write(t, dir, "parent.vmdx", extensionManifest("P", "1"))

	var diags diag.List
	got, err := newResolver(t).Resolve(dir, &diags)
	require.NoError(t, err)
	defer extensions.Close(got)

	require.Len(t, got, 3)
	require.Equal(t, "P", got[0].Descriptor.ID)
	require.Equal(t, "B", got[1].Descriptor.ID)
	require.Equal(t, "C", got[2].Descriptor.ID)
	for _, r := range got {
		require.Equal(t, p, r.Descriptor.Path)
		require.Same(t, got[0].Archive, r.Archive)
	}
	require.Zero(t, diags.Len())
}

func TestResolveSortedAndFiltered(t *testing.T) {
	dir := t.TempDir()
	archivetest.Write(t, dir, "b.vmdx", extensionManifest("P", "1"))
	archivetest.Write(t, dir, "a.zip", extensionManifest("X", "2"))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.vmdx"), 0o755))

	var diags diag.List
	got, err := newResolver(t).Resolve(dir, &diags)
	require.NoError(t, err)
	defer extensions.Close(got)

	ids := make([]string, len(got))
	for i, r := range got {
		ids[i] = r.Descriptor.ID
	}
	require.Equal(t, []string{"X", "P", "B", "C"}, ids)

	only, err := newResolver(t, "*.zip").Resolve(dir, &diags)
	require.NoError(t, err)
	defer extensions.Close(only)
	require.Len(t, only, 1)
}

func TestResolveSoftSkips(t *testing.T) {
	dir := t.TempDir()
	archivetest.Write(t, dir, "a-module.vmdx", map[string]string{"buildFile.xml": `<VASSAL.build.GameModule version="6.6.2"/>`})
	archivetest.Write(t, dir, "b-noid.vmdx", map[string]string{"buildFile.xml": `<VASSAL.build.module.ModuleExtension version="1"/>`})
	archivetest.Write(t, dir, "c-unknown.vmdx", extensionManifest("Q", "9"))
	archivetest.Write(t, dir, "d-good.vmdx", extensionManifest("X", "2"))

	var diags diag.List
	got, err := newResolver(t).Resolve(dir, &diags)
	require.NoError(t, err)
	defer extensions.Close(got)

	require.Len(t, got, 1)
	require.Equal(t, "X", got[0].Descriptor.ID)
	require.Equal(t, 1, diags.Count(diag.ExtensionSkipped, "a-module.vmdx"))
	require.Equal(t, 1, diags.Count(diag.ExtensionSkipped, "b-noid.vmdx"))
	require.Equal(t, 1, diags.Count(diag.ExtensionSkipped, "c-unknown.vmdx"))
}

func TestResolveFatalOnBrokenArchive(t *testing.T) {
	dir := t.TempDir()
	archivetest.Write(t, dir, "a.vmdx", extensionManifest("X", "2"))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.vmdx"), []byte("garbage"), 0o644))

	_, err := newResolver(t).Resolve(dir, nil)
	require.Error(t, err)
}

func TestResolveFatalOnMalformedManifest(t *testing.T) {
	dir := t.TempDir()
	archivetest.Write(t, dir, "a.vmdx", map[string]string{"buildFile.xml": `<VASSAL.build.module.ModuleExtension extensionId="X" version="2">`})

	_, err := newResolver(t).Resolve(dir, nil)
	require.Error(t, err)
}

func TestNewResolverRejectsBadPattern(t *testing.T) {
	_, err := extensions.NewResolver(nil, []string{"[abc"})
	require.Error(t, err)
}

func TestLoadCatalog(t *testing.T) {
	dataDir := t.TempDir()
	catDir := filepath.Join(dataDir, extensions.CatalogDir)
	require.NoError(t, os.MkdirAll(catDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(catDir, "bfp.json"), []byte(`{"extensionId": "bfp", "version": "4.1", "name": "Beyond the Valor"}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(catDir, "bfp-ma.json"), []byte(`{"extensionId": "bfp-ma", "version": "4.1", "parentExtensionId": "bfp"}`), 0o644))

	cat, err := extensions.LoadCatalog(dataDir)
	require.NoError(t, err)
	require.Equal(t, 2, cat.Len())
	d, ok := cat.Lookup("bfp", "4.1")
	require.True(t, ok)
	require.Equal(t, "Beyond the Valor", d.Name)
	require.Len(t, cat.Children("bfp", "4.1"), 1)
	_, ok = cat.Lookup("bfp", "4.0")
	require.False(t, ok)

	empty, err := extensions.LoadCatalog(t.TempDir())
	require.NoError(t, err)
	require.Zero(t, empty.Len())

	require.NoError(t, os.WriteFile(filepath.Join(catDir, "broken.json"), []byte(`{"version": "1"}`), 0o644))
	_, err = extensions.LoadCatalog(dataDir)
	require.Error(t, err)
}

func TestCatalogDuplicateChildListedOnce(t *testing.T) {
	cat := extensions.NewCatalog([]extensions.Descriptor{
		{ID: "P", Version: "1"},
		{ID: "C", Version: "1", ParentID: "P", Name: "first"},
		{ID: "C", Version: "1", ParentID: "P", Name: "second"},
	})
	require.Equal(t, 2, cat.Len())
	children := cat.Children("P", "1")
	require.Len(t, children, 1)
	require.Equal(t, "second", children[0].Name)

	dir := t.TempDir()
	archivetest.Write(t, dir, "parent.vmdx", extensionManifest("P", "1"))
	r, err := extensions.NewResolver(cat, nil)
	require.NoError(t, err)
	got, err := r.Resolve(dir, nil)
	require.NoError(t, err)
	defer extensions.Close(got)
	require.Len(t, got, 2)
	require.Equal(t, "C", got[1].Descriptor.ID)
}

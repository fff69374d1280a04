package buildfile_test

import (
	"testing"

	"github.com/boardzilla/boardzilla-modreg/internal/buildfile"
	"github.com/stretchr/testify/require"
)

const moduleDoc = `<?xml version="1.0" encoding="UTF-8" standalone="no"?>
<VASSAL.build.GameModule name="VASL" version="6.6.2">
  <VASSAL.build.widget.PieceWindow>
    <VASSAL.build.widget.ListWidget>
      <VASSAL.build.widget.PieceSlot entryName="Commissar" gpid="101" height="48" width="48">+/null/piece;;;ru/v:001.png;Commissar</VASSAL.build.widget.PieceSlot>
      <VASSAL.build.widget.PieceSlot entryName="T-34" gpid="102" height="60" width="60">piece;;;ru/v:t34.png,ru/v:t34b.png;ru/v:t34.png</VASSAL.build.widget.PieceSlot>
      <Unknown anything="goes"/>
    </VASSAL.build.widget.ListWidget>
  </VASSAL.build.widget.PieceWindow>
  <VASSAL.build.widget.PieceSlot entryName="No height" gpid="103">ge/v:002</VASSAL.build.widget.PieceSlot>
</VASSAL.build.GameModule>`

func collect(t *testing.T, data []byte, interest func(string) bool) []buildfile.RawPiece {
	t.Helper()
	var out []buildfile.RawPiece
	for p, err := range buildfile.Pieces(data, "6.6.2", interest) {
		require.NoError(t, err)
		out = append(out, p)
	}
	return out
}

func TestReadHeaderModule(t *testing.T) {
	h, err := buildfile.ReadHeader([]byte(moduleDoc))
	require.NoError(t, err)
	require.True(t, h.IsModule())
	require.False(t, h.IsExtension())
	require.Equal(t, "6.6.2", h.Version)
	require.Equal(t, "VASL", h.Name)
}

func TestReadHeaderExtension(t *testing.T) {
	h, err := buildfile.ReadHeader([]byte(`<VASSAL.build.module.ModuleExtension extensionId="bfp" version="4.1"/>`))
	require.NoError(t, err)
	require.True(t, h.IsExtension())
	require.Equal(t, "bfp", h.ExtensionID)
	require.Equal(t, "4.1", h.Version)
}

func TestReadHeaderEmpty(t *testing.T) {
	_, err := buildfile.ReadHeader([]byte("   "))
	require.ErrorIs(t, err, buildfile.ErrMalformed)
}

func TestPiecesAllDepths(t *testing.T) {
	pieces := collect(t, []byte(moduleDoc), nil)
	require.Len(t, pieces, 3)

	require.Equal(t, "101", pieces[0].GPID)
	require.Equal(t, "Commissar", pieces[0].Name)
	require.True(t, pieces[0].Small)
	require.Equal(t, "+/null/piece;;;ru/v:001.png;Commissar", pieces[0].Descriptor)
	require.Equal(t, "6.6.2", pieces[0].Version)

	require.False(t, pieces[1].Small)
	require.Equal(t, "103", pieces[2].GPID)
	require.False(t, pieces[2].Small)
}

func TestPiecesInterest(t *testing.T) {
	pieces := collect(t, []byte(moduleDoc), func(gpid string) bool { return gpid == "102" })
	require.Len(t, pieces, 1)
	require.Equal(t, "T-34", pieces[0].Name)
}

func TestPiecesMalformed(t *testing.T) {
	doc := `<VASSAL.build.GameModule version="6.6.2"><VASSAL.build.widget.PieceSlot gpid="1">x</VASSAL.build.GameModule>`
	var gotErr error
	for _, err := range buildfile.Pieces([]byte(doc), "6.6.2", nil) {
		if err != nil {
			gotErr = err
		}
	}
	require.ErrorIs(t, gotErr, buildfile.ErrMalformed)
	require.ErrorIs(t, buildfile.Validate([]byte(doc)), buildfile.ErrMalformed)
	require.NoError(t, buildfile.Validate([]byte(moduleDoc)))
}

func TestPiecesStopEarly(t *testing.T) {
	n := 0
	for range buildfile.Pieces([]byte(moduleDoc), "6.6.2", nil) {
		n++
		break
	}
	require.Equal(t, 1, n)
}

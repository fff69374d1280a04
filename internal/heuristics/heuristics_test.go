package heuristics_test

import (
	"testing"

	"github.com/boardzilla/boardzilla-modreg/internal/diag"
	"github.com/boardzilla/boardzilla-modreg/internal/heuristics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBackThenFront(t *testing.T) {
	var diags diag.List
	res := heuristics.Parse("101", "ru/v:001.png,ru/v:001b.png;ru/v:001.png", &diags)
	require.Equal(t, []string{"ru/v:001.png"}, res.Front)
	require.Equal(t, []string{"ru/v:001.png", "ru/v:001b.png"}, res.Back)
	require.Zero(t, diags.Len())
}

func TestParseFrontOnly(t *testing.T) {
	var diags diag.List
	res := heuristics.Parse("102", "+/null/piece;;;ge/v:squad;German squad", &diags)
	require.Equal(t, []string{"ge/v:squad.gif"}, res.Front)
	require.Nil(t, res.Back)
	require.Zero(t, diags.Len())
}

func TestParseEscapedSeparators(t *testing.T) {
	var diags diag.List
	res := heuristics.Parse("103", `am\/v:sherman.png`, &diags)
	require.Equal(t, []string{"am/v:sherman.png"}, res.Front)
}

func TestParseNoImages(t *testing.T) {
	var diags diag.List
	res := heuristics.Parse("104", "piece;;;Label;true", &diags)
	require.True(t, res.Empty())
	require.Equal(t, 1, diags.Count(diag.NoImages, "104"))
}

func TestParseTooManyFields(t *testing.T) {
	var diags diag.List
	res := heuristics.Parse("105", "a-back.gif;a-front.gif;a-extra.gif", &diags)
	require.Equal(t, []string{"a-front.gif"}, res.Front)
	require.Equal(t, []string{"a-back.gif"}, res.Back)
	require.Equal(t, 1, diags.Count(diag.TooManyImageFields, "105"))
}

func TestIsImageField(t *testing.T) {
	cases := map[string]bool{
		"ru/v:001":            true,
		"foo.PNG":             true,
		"counter.gif":         true,
		"blank.gif":           false,
		"Null.gif":            false,
		"piece":               false,
		"":                    false,
		"ru/v:001.png\tpiece": false,
		"$image$.gif":         false,
		"xx/v:001":            false,
	}
	for field, want := range cases {
		assert.Equal(t, want, heuristics.IsImageField(field), field)
	}
}

func TestSplitImages(t *testing.T) {
	require.Equal(t, []string{"a.gif", "b.gif"}, heuristics.SplitImages(" a.gif,, b.gif ,"))
	require.Nil(t, heuristics.SplitImages(""))
}

func TestTrimVariantsDismantled(t *testing.T) {
	var diags diag.List
	front, back := heuristics.TrimVariants("1",
		[]string{"a.png", "a-dm.png"},
		[]string{"b.png", "b-dmb.png"},
		heuristics.DefaultVariantRules, &diags)
	require.Equal(t, []string{"a.png"}, front)
	require.Equal(t, []string{"b.png"}, back)
	require.Zero(t, diags.Len())
}

func TestTrimVariantsLimbered(t *testing.T) {
	var diags diag.List
	front, back := heuristics.TrimVariants("2",
		[]string{"ge/v:pak40.gif", "ge/v:pak40-L.gif"},
		[]string{"ge/v:pak40b.gif", "ge/v:pak40-LB.gif"},
		heuristics.DefaultVariantRules, &diags)
	require.Equal(t, []string{"ge/v:pak40.gif"}, front)
	require.Equal(t, []string{"ge/v:pak40b.gif"}, back)
}

func TestTrimVariantsPrefixedRule(t *testing.T) {
	var diags diag.List
	front, back := heuristics.TrimVariants("3",
		[]string{"ja/v:70inf.gif", "ja/v:70infdm.gif"},
		[]string{"ja/v:70infb.gif", "ja/v:70infdmb.gif"},
		heuristics.DefaultVariantRules, &diags)
	require.Equal(t, []string{"ja/v:70inf.gif"}, front)
	require.Equal(t, []string{"ja/v:70infb.gif"}, back)

	// The same suffixes outside the prefix are not a variant pair.
	front, back = heuristics.TrimVariants("4",
		[]string{"ge/v:70inf.gif", "ge/v:70infdm.gif"},
		[]string{"ge/v:70infb.gif", "ge/v:70infdmb.gif"},
		heuristics.DefaultVariantRules, &diags)
	require.Len(t, front, 2)
	require.Len(t, back, 2)
	require.Zero(t, diags.Len())
}

func TestTrimVariantsTriesLaterRules(t *testing.T) {
	var diags diag.List
	front, back := heuristics.TrimVariants("9",
		[]string{"ja/v:gun.gif", "ja/v:gun-dm.gif"},
		[]string{"ja/v:gunb.gif", "ja/v:gundmb.gif"},
		heuristics.DefaultVariantRules, &diags)
	require.Equal(t, []string{"ja/v:gun.gif"}, front)
	require.Equal(t, []string{"ja/v:gunb.gif"}, back)
	require.Zero(t, diags.Len())
}

func TestTrimVariantsUnpaired(t *testing.T) {
	var diags diag.List
	front, back := heuristics.TrimVariants("5",
		[]string{"a.png", "a-dm.png"},
		[]string{"b.png", "b-other.png"},
		heuristics.DefaultVariantRules, &diags)
	require.Len(t, front, 2)
	require.Len(t, back, 2)
	require.Equal(t, 1, diags.Count(diag.UnpairedVariant, "5"))
}

func TestTrimVariantsSingleFront(t *testing.T) {
	var diags diag.List
	front, back := heuristics.TrimVariants("6", []string{"a-dm.png"}, []string{"b-dmb.png"}, heuristics.DefaultVariantRules, &diags)
	require.Equal(t, []string{"a-dm.png"}, front)
	require.Equal(t, []string{"b-dmb.png"}, back)
}

func TestParseTrimsVariantsAndAddsExtensions(t *testing.T) {
	var diags diag.List
	res := heuristics.Parse("7", "ge/v:gun,ge/v:gun-dmb;ge/v:gun,ge/v:gun-dm", &diags)
	require.Equal(t, []string{"ge/v:gun.gif"}, res.Front)
	require.Equal(t, []string{"ge/v:gun.gif"}, res.Back)
	require.Zero(t, diags.Len())
}

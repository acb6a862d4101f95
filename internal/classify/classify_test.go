package classify

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hunterpro/hunter-cli/internal/model"
)

func TestQuality(t *testing.T) {
	c := Default()

	tests := []struct {
		name string
		text string
		want model.QualityTier
	}{
		{"english demand", "Wanted apartment in Maadi, call 0101234 5678", model.QualityExcellent},
		{"arabic demand", "مطلوب شقة في التجمع", model.QualityExcellent},
		{"demand with hamza variant", "أبحث عن شقة", model.QualityExcellent},
		{"blacklist beats demand", "مطلوب سمسار لشقة للبيع", model.QualityTrash},
		{"english blacklist beats demand", "Apartment FOR SALE, buyers wanted", model.QualityTrash},
		{"inquiry", "الشقة دي بكام؟", model.QualityGood},
		{"inquiry english", "How much is the unit in Rehab", model.QualityGood},
		{"no signal", "Nice weather in Alexandria today", model.QualityTrash},
		{"case insensitive", "LOOKING FOR a flat", model.QualityExcellent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Quality(tt.text))
		})
	}
}

func TestSegment_PriceOverrides(t *testing.T) {
	c := Default()

	assert.Equal(t, model.SegmentLuxury, c.Segment("apartment", 3_500_000, "Cairo"))
	assert.Equal(t, model.SegmentSocial, c.Segment("apartment", 100_000, "Cairo"))
	// Price outside both bands falls through to terms.
	assert.Equal(t, model.SegmentNormal, c.Segment("apartment", 1_000_000, "Cairo"))
	// Price beats contrary terms.
	assert.Equal(t, model.SegmentSocial, c.Segment("luxury villa", 100_000, ""))
}

func TestSegment_AffluentCity(t *testing.T) {
	c := Default()

	assert.Equal(t, model.SegmentLuxury, c.Segment("شقة", 0, "New Cairo"))
	assert.Equal(t, model.SegmentLuxury, c.Segment("شقة", 0, "التجمع الخامس"))
	assert.Equal(t, model.SegmentNormal, c.Segment("شقة", 0, "Cairo"))
}

func TestClassify_AffluentArea(t *testing.T) {
	c := Default()
	item := model.ResultItem{Snippet: "مطلوب شقة 01012345678"}

	assert.Equal(t, model.SegmentLuxury, c.Classify(item, "القاهرة", "التجمع").Segment)
	assert.Equal(t, model.SegmentLuxury, c.Classify(item, "", "الزمالك").Segment)
	assert.Equal(t, model.SegmentNormal, c.Classify(item, "القاهرة", "مدينة نصر").Segment)
	assert.Equal(t, model.SegmentNormal, c.Classify(item).Segment)
}

func TestSegment_Terms(t *testing.T) {
	c := Default()

	tests := []struct {
		name string
		text string
		want model.SegmentLevel
	}{
		{"luxury", "Looking for a luxury villa with pool", model.SegmentLuxury},
		{"social", "مطلوب شقة إسكان شعبي", model.SegmentSocial},
		{"commercial", "need an office or shop downtown", model.SegmentCommercial},
		{"tie with commercial", "luxury affordable office", model.SegmentCommercial},
		{"tie without commercial", "luxury affordable", model.SegmentNormal},
		{"nothing", "Wanted apartment in Maadi, call 0101234 5678", model.SegmentNormal},
		{"alef maqsura variant", "محل تجارى", model.SegmentCommercial},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Segment(tt.text, 0, ""))
		})
	}
}

func TestPriceHint(t *testing.T) {
	tests := []struct {
		text string
		want float64
	}{
		{"budget 3.5 million", 3_500_000},
		{"الميزانية 2 مليون", 2_000_000},
		{"حوالي 750 ألف", 750_000},
		{"up to 2,500,000 EGP", 2_500_000},
		{"500k cash", 500_000},
		{"2 million or 900 thousand", 2_000_000},
		{"call 0101234 5678", 0},
		{"120 m2 flat, 5 km from the ring road", 0},
		{"٣ مليون", 3_000_000},
		{"", 0},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.InDelta(t, tt.want, PriceHint(tt.text), 0.5)
		})
	}
}

func TestClassify_EndToEndSnippet(t *testing.T) {
	c := Default()

	res := c.Classify(model.ResultItem{
		Title:   "Apartment wanted",
		Snippet: "Wanted apartment in Maadi, call 0101234 5678",
		Link:    "https://facebook.com/groups/x/posts/1",
	}, "Cairo")

	assert.Equal(t, model.QualityExcellent, res.Quality)
	assert.Equal(t, model.SegmentNormal, res.Segment)
	assert.Zero(t, res.PriceHint)
}

func TestClassify_PriceFromSnippet(t *testing.T) {
	c := Default()

	res := c.Classify(model.ResultItem{Snippet: "مطلوب شقة بميزانية 4 مليون"}, "Giza")
	assert.Equal(t, model.QualityExcellent, res.Quality)
	assert.Equal(t, model.SegmentLuxury, res.Segment)
	assert.InDelta(t, 4_000_000, res.PriceHint, 0.5)
}

func TestLoadTable(t *testing.T) {
	def, err := LoadTable("")
	require.NoError(t, err)
	assert.Equal(t, model.QualityTrash, def.DefaultQuality)
	assert.NotEmpty(t, def.Quality.Demand)

	path := filepath.Join(t.TempDir(), "terms.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
default_quality: good
quality:
  demand: [hiring]
`), 0o600))

	tbl, err := LoadTable(path)
	require.NoError(t, err)
	c := New(tbl)
	assert.Equal(t, model.QualityExcellent, c.Quality("We are HIRING"))
	assert.Equal(t, model.QualityGood, c.Quality("anything else"))
}

func TestLoadTable_Errors(t *testing.T) {
	_, err := LoadTable(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "classify: read table")

	_, err = ParseTable([]byte("default_quality: SUPERB"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown default quality")

	_, err = ParseTable([]byte("quality: [unclosed"))
	require.Error(t, err)
}

func TestFold(t *testing.T) {
	assert.Equal(t, "ابحث عن", Fold(" أبحث عن "))
	assert.Equal(t, "wanted", Fold("WANTED"))
	assert.Equal(t, "123", Fold("١٢٣"))
	assert.Equal(t, "تجاري", Fold("تجارى"))
}

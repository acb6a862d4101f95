package query

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hunterpro/hunter-cli/internal/model"
)

func TestAreas(t *testing.T) {
	e := DefaultExpander()

	assert.Equal(t, []string{"التجمع", "مدينة نصر", "المعادي", "الرحاب"}, e.Areas("Cairo"))
	assert.Equal(t, e.Areas("القاهرة"), e.Areas("cairo"))
	assert.Len(t, e.Areas("Alexandria"), 3)
	assert.Equal(t, []string{"Aswan"}, e.Areas(" Aswan "))

	// Hamza and case variants name the same city.
	assert.Equal(t, e.Areas("الإسكندرية"), e.Areas("الاسكندرية"))
	assert.Equal(t, e.Areas("Alexandria"), e.Areas("ALEXANDRIA"))
}

func TestPhrase(t *testing.T) {
	e := DefaultExpander()

	assert.Equal(t, "apartment wanted", e.Phrase("apartment wanted"))
	assert.Equal(t, "مطلوب شقة", e.Phrase("مطلوب شقة"))
	assert.Equal(t, "مطلوب شقة", e.Phrase("شقة"))
	assert.Equal(t, "Looking For villa", e.Phrase("Looking For villa"))
}

func TestExpand_KnownCity(t *testing.T) {
	e := DefaultExpander()

	qs := e.Expand(model.SearchIntent{Phrase: "apartment wanted", City: "Cairo", Recency: "qdr:w"})
	require.Len(t, qs, 12)

	// Area-major, template-minor.
	assert.Equal(t, `site:facebook.com "apartment wanted" "التجمع" "010"`, qs[0].Text)
	assert.Equal(t, `"apartment wanted" "التجمع" "مطلوب" "01"`, qs[1].Text)
	assert.Equal(t, `site:olx.com.eg "apartment wanted" "التجمع"`, qs[2].Text)
	assert.Equal(t, "مدينة نصر", qs[3].Area)
	assert.Equal(t, "facebook", qs[3].Template)

	for _, q := range qs {
		assert.Equal(t, "qdr:w", q.Recency)
		assert.Contains(t, q.Text, "apartment wanted")
	}
}

func TestExpand_CoversPlatformsAndHints(t *testing.T) {
	e := DefaultExpander()
	qs := e.Expand(model.SearchIntent{Phrase: "شقة", City: "Aswan"})
	require.Len(t, qs, 3)

	var sites, prefixHints, demand int
	for _, q := range qs {
		if strings.HasPrefix(q.Text, "site:") {
			sites++
		}
		if strings.Contains(q.Text, `"01`) {
			prefixHints++
		}
		if strings.Contains(q.Text, "مطلوب") {
			demand++
		}
		assert.Equal(t, model.DefaultRecency, q.Recency)
		assert.Equal(t, "Aswan", q.Area)
	}
	assert.Equal(t, 2, sites)
	assert.Equal(t, 2, prefixHints)
	assert.Equal(t, 3, demand)
}

func TestExpand_Deterministic(t *testing.T) {
	e := DefaultExpander()
	in := model.SearchIntent{Phrase: "villa", City: "Giza"}
	assert.Equal(t, e.Expand(in), e.Expand(in))
}

func TestExpand_MaxQueries(t *testing.T) {
	e := DefaultExpander(WithMaxQueries(5))
	qs := e.Expand(model.SearchIntent{Phrase: "wanted", City: "Cairo"})
	assert.Len(t, qs, 5)
}

func TestLoadTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "expand.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
locations:
  - names: [Luxor]
    areas: [East Bank, West Bank]
templates:
  - name: plain
    text: '"{intent}" "{area}"'
`), 0o600))

	tbl, err := LoadTable(path)
	require.NoError(t, err)

	qs := NewExpander(tbl).Expand(model.SearchIntent{Phrase: "flat", City: "luxor"})
	require.Len(t, qs, 2)
	assert.Equal(t, `"flat" "East Bank"`, qs[0].Text)
	assert.Equal(t, `"flat" "West Bank"`, qs[1].Text)
}

func TestParseTable_Errors(t *testing.T) {
	_, err := ParseTable([]byte("locations: []"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no templates")

	_, err = ParseTable([]byte(`templates: [{name: bad, text: "{area}"}]`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lacks {intent}")

	_, err = LoadTable(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

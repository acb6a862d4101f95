package classify

import (
	_ "embed"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"

	"github.com/hunterpro/hunter-cli/internal/model"
)

//go:embed terms.yaml
var defaultTerms []byte

// Table is the keyword table driving classification.
type Table struct {
	DefaultQuality model.QualityTier `yaml:"default_quality"`
	Quality        QualityTerms      `yaml:"quality"`
	Segment        SegmentTerms      `yaml:"segment"`
	Price          PriceThresholds   `yaml:"price"`
}

// QualityTerms holds the term lists for the quality pass, in precedence order.
type QualityTerms struct {
	Blacklist []string `yaml:"blacklist"`
	Demand    []string `yaml:"demand"`
	Inquiry   []string `yaml:"inquiry"`
}

// SegmentTerms holds the term lists for the segment pass.
type SegmentTerms struct {
	Luxury     []string `yaml:"luxury"`
	Social     []string `yaml:"social"`
	Commercial []string `yaml:"commercial"`
	Affluent   []string `yaml:"affluent"`
}

// PriceThresholds bound the price-based segment overrides (EGP).
type PriceThresholds struct {
	LuxuryAbove float64 `yaml:"luxury_above"`
	SocialBelow float64 `yaml:"social_below"`
}

// DefaultTable returns the built-in table.
func DefaultTable() Table {
	t, err := ParseTable(defaultTerms)
	if err != nil {
		panic(eris.Wrap(err, "classify: embedded table"))
	}
	return t
}

// ParseTable decodes a YAML term table.
func ParseTable(data []byte) (Table, error) {
	var t Table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return Table{}, eris.Wrap(err, "classify: parse table")
	}
	if t.DefaultQuality == "" {
		t.DefaultQuality = model.QualityTrash
	}
	q, ok := model.ParseQuality(string(t.DefaultQuality))
	if !ok {
		return Table{}, eris.Errorf("classify: unknown default quality %q", t.DefaultQuality)
	}
	t.DefaultQuality = q
	return t, nil
}

// LoadTable reads a term table from path. An empty path yields the
// built-in table.
func LoadTable(path string) (Table, error) {
	if path == "" {
		return DefaultTable(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Table{}, eris.Wrapf(err, "classify: read table %s", path)
	}
	return ParseTable(data)
}

// folded returns a copy with every term normalized for matching.
func (t Table) folded() Table {
	f := func(in []string) []string {
		out := make([]string, 0, len(in))
		for _, s := range in {
			if s = Fold(s); s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	t.Quality = QualityTerms{
		Blacklist: f(t.Quality.Blacklist),
		Demand:    f(t.Quality.Demand),
		Inquiry:   f(t.Quality.Inquiry),
	}
	t.Segment = SegmentTerms{
		Luxury:     f(t.Segment.Luxury),
		Social:     f(t.Segment.Social),
		Commercial: f(t.Segment.Commercial),
		Affluent:   f(t.Segment.Affluent),
	}
	return t
}

var arabicVariants = strings.NewReplacer(
	"أ", "ا", "إ", "ا", "آ", "ا",
	"ى", "ي",
	"ة", "ه",
	"ـ", "",
)

var asciiDigits = runes.Map(func(r rune) rune {
	switch {
	case r >= '٠' && r <= '٩':
		return '0' + (r - '٠')
	case r >= '۰' && r <= '۹':
		return '0' + (r - '۰')
	}
	return r
})

// Fold normalizes s for keyword matching: NFKC, Unicode case folding,
// ASCII digits, and a single form for common Arabic letter variants.
func Fold(s string) string {
	t := transform.Chain(norm.NFKC, cases.Fold(), asciiDigits)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = strings.ToLower(s)
	}
	return strings.TrimSpace(arabicVariants.Replace(out))
}

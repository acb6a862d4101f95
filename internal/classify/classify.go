// Package classify grades search-result text by buyer quality and market segment.
package classify

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/hunterpro/hunter-cli/internal/model"
)

// Result is the classification of one search result.
type Result struct {
	Quality   model.QualityTier  `json:"quality"`
	Segment   model.SegmentLevel `json:"segment"`
	PriceHint float64            `json:"price_hint,omitempty"`
}

// Classifier applies a term table to free text. It is immutable and safe
// for concurrent use.
type Classifier struct {
	t Table
}

// New creates a Classifier from t.
func New(t Table) *Classifier {
	return &Classifier{t: t.folded()}
}

// Default creates a Classifier over the built-in table.
func Default() *Classifier {
	return New(DefaultTable())
}

// Classify grades a result. Places are the hunt city and the area the
// result was searched under; any of them in the affluent list forces LUXURY.
func (c *Classifier) Classify(item model.ResultItem, places ...string) Result {
	text := Fold(item.Text())
	price := priceHint(text)
	return Result{
		Quality:   c.quality(text),
		Segment:   c.segment(text, price, foldAll(places)),
		PriceHint: price,
	}
}

// Quality grades text. Blacklisted terms win over demand terms, which win
// over inquiry terms.
func (c *Classifier) Quality(text string) model.QualityTier {
	return c.quality(Fold(text))
}

func (c *Classifier) quality(text string) model.QualityTier {
	switch {
	case containsAny(text, c.t.Quality.Blacklist):
		return model.QualityTrash
	case containsAny(text, c.t.Quality.Demand):
		return model.QualityExcellent
	case containsAny(text, c.t.Quality.Inquiry):
		return model.QualityGood
	default:
		return c.t.DefaultQuality
	}
}

// Segment assigns a market segment. A price hint outside the configured
// band or an affluent city or area decides directly; otherwise the axis with
// the most term occurrences wins, a tie with commercial terms present is
// COMMERCIAL, and anything else is NORMAL.
func (c *Classifier) Segment(text string, priceHint float64, places ...string) model.SegmentLevel {
	return c.segment(Fold(text), priceHint, foldAll(places))
}

func (c *Classifier) segment(text string, price float64, places []string) model.SegmentLevel {
	switch {
	case c.t.Price.LuxuryAbove > 0 && price > c.t.Price.LuxuryAbove:
		return model.SegmentLuxury
	case price > 0 && price < c.t.Price.SocialBelow:
		return model.SegmentSocial
	case c.affluent(places):
		return model.SegmentLuxury
	}

	lux := countAll(text, c.t.Segment.Luxury)
	soc := countAll(text, c.t.Segment.Social)
	com := countAll(text, c.t.Segment.Commercial)

	switch {
	case lux > soc && lux > com:
		return model.SegmentLuxury
	case soc > lux && soc > com:
		return model.SegmentSocial
	case com > lux && com > soc:
		return model.SegmentCommercial
	case com > 0:
		return model.SegmentCommercial
	default:
		return model.SegmentNormal
	}
}

// PriceHint extracts the largest amount stated with an explicit unit
// ("3.5 million", "750 ألف", "2,000,000 جنيه"). Bare digit runs are ignored
// so phone numbers never read as prices.
func PriceHint(text string) float64 {
	return priceHint(Fold(text))
}

var priceRe = regexp.MustCompile(`(\d+(?:[.,]\d+)*)\s*(million|mn|مليون|thousand|ألف|الف|k|جنيه|egp|le)`)

var unitMultiplier = map[string]float64{
	"million":  1e6,
	"mn":       1e6,
	"مليون":    1e6,
	"thousand": 1e3,
	"ألف":      1e3,
	"الف":      1e3,
	"k":        1e3,
	"جنيه":     1,
	"egp":      1,
	"le":       1,
}

func priceHint(text string) float64 {
	var best float64
	for _, m := range priceRe.FindAllStringSubmatchIndex(text, -1) {
		if r, _ := utf8.DecodeRuneInString(text[m[1]:]); m[1] < len(text) && unicode.IsLetter(r) {
			continue
		}
		n, ok := parseAmount(text[m[2]:m[3]])
		if !ok {
			continue
		}
		if v := n * unitMultiplier[text[m[4]:m[5]]]; v > best {
			best = v
		}
	}
	return best
}

// parseAmount reads "3,500,000", "3.5" or "2.500.000". Separators repeated
// more than once are thousands separators; a single dot is a decimal point.
func parseAmount(s string) (float64, bool) {
	s = strings.ReplaceAll(s, ",", "")
	if strings.Count(s, ".") > 1 {
		s = strings.ReplaceAll(s, ".", "")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func (c *Classifier) affluent(places []string) bool {
	for _, p := range places {
		if p != "" && containsAny(p, c.t.Segment.Affluent) {
			return true
		}
	}
	return false
}

func foldAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		out = append(out, Fold(s))
	}
	return out
}

func containsAny(text string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(text, t) {
			return true
		}
	}
	return false
}

func countAll(text string, terms []string) int {
	n := 0
	for _, t := range terms {
		n += strings.Count(text, t)
	}
	return n
}

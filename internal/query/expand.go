// Package query expands a search intent into provider queries across a
// city's sub-locations.
package query

import (
	_ "embed"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/hunterpro/hunter-cli/internal/classify"
	"github.com/hunterpro/hunter-cli/internal/model"
)

//go:embed expand.yaml
var defaultTable []byte

// Table holds the location and template data for expansion.
type Table struct {
	Locations     []City     `yaml:"locations"`
	Templates     []Template `yaml:"templates"`
	DemandMarkers []string   `yaml:"demand_markers"`
}

// City maps one or more city names to its ordered sub-locations.
type City struct {
	Names []string `yaml:"names"`
	Areas []string `yaml:"areas"`
}

// Template is a query pattern with {intent} and {area} placeholders.
type Template struct {
	Name string `yaml:"name"`
	Text string `yaml:"text"`
}

// ParseTable decodes a YAML expansion table.
func ParseTable(data []byte) (Table, error) {
	var t Table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return Table{}, eris.Wrap(err, "query: parse table")
	}
	if len(t.Templates) == 0 {
		return Table{}, eris.New("query: table has no templates")
	}
	for _, tpl := range t.Templates {
		if !strings.Contains(tpl.Text, "{intent}") {
			return Table{}, eris.Errorf("query: template %q lacks {intent}", tpl.Name)
		}
	}
	return t, nil
}

// LoadTable reads an expansion table from path; an empty path yields the
// built-in table.
func LoadTable(path string) (Table, error) {
	if path == "" {
		return ParseTable(defaultTable)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Table{}, eris.Wrapf(err, "query: read table %s", path)
	}
	return ParseTable(data)
}

// Expander turns an intent into provider queries.
type Expander struct {
	t          Table
	maxQueries int
}

// Option configures an Expander.
type Option func(*Expander)

// WithMaxQueries caps the number of queries per expansion. Zero means no cap.
func WithMaxQueries(n int) Option {
	return func(e *Expander) {
		e.maxQueries = n
	}
}

// NewExpander creates an Expander over t.
func NewExpander(t Table, opts ...Option) *Expander {
	e := &Expander{t: t}
	for _, o := range opts {
		o(e)
	}
	return e
}

// DefaultExpander creates an Expander over the built-in table.
func DefaultExpander(opts ...Option) *Expander {
	t, err := ParseTable(defaultTable)
	if err != nil {
		panic(err)
	}
	return NewExpander(t, opts...)
}

// Areas returns the sub-locations searched for city, or [city] when the
// city is unknown.
func (e *Expander) Areas(city string) []string {
	city = strings.TrimSpace(city)
	key := classify.Fold(city)
	for _, c := range e.t.Locations {
		for _, n := range c.Names {
			if classify.Fold(n) == key {
				return append([]string(nil), c.Areas...)
			}
		}
	}
	return []string{city}
}

// Phrase returns the intent as it appears in queries: trimmed, with the
// canonical demand marker prefixed when the intent carries none.
func (e *Expander) Phrase(intent string) string {
	intent = strings.TrimSpace(intent)
	if len(e.t.DemandMarkers) == 0 {
		return intent
	}
	lower := classify.Fold(intent)
	for _, m := range e.t.DemandMarkers {
		if strings.Contains(lower, classify.Fold(m)) {
			return intent
		}
	}
	return e.t.DemandMarkers[0] + " " + intent
}

// Expand builds the queries for intent in city, area-major then
// template-minor. The result depends only on its inputs.
func (e *Expander) Expand(intent model.SearchIntent) []model.ProviderQuery {
	phrase := e.Phrase(intent.Phrase)
	recency := intent.Recency
	if recency == "" {
		recency = model.DefaultRecency
	}

	var out []model.ProviderQuery
	for _, area := range e.Areas(intent.City) {
		for _, tpl := range e.t.Templates {
			if e.maxQueries > 0 && len(out) >= e.maxQueries {
				return out
			}
			text := strings.NewReplacer("{intent}", phrase, "{area}", area).Replace(tpl.Text)
			out = append(out, model.ProviderQuery{
				Text:     text,
				Recency:  recency,
				Area:     area,
				Template: tpl.Name,
			})
		}
	}
	return out
}

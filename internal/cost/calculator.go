// Package cost estimates search provider spend for hunt passes.
package cost

import "github.com/hunterpro/hunter-cli/internal/model"

// Rates holds per-provider pricing configuration.
type Rates struct {
	Serper SerperRate `yaml:"serper" mapstructure:"serper"`
}

// SerperRate holds search API pricing. A query asking for more than
// ResultsPerCredit results is billed two credits.
type SerperRate struct {
	PerCredit        float64 `yaml:"per_credit" mapstructure:"per_credit"`
	ResultsPerCredit int     `yaml:"results_per_credit" mapstructure:"results_per_credit"`
}

// Calculator computes costs for API usage.
type Calculator struct {
	rates Rates
}

// NewCalculator creates a Calculator with the given rates. Zero values fall
// back to DefaultRates.
func NewCalculator(rates Rates) *Calculator {
	def := DefaultRates()
	if rates.Serper.PerCredit <= 0 {
		rates.Serper.PerCredit = def.Serper.PerCredit
	}
	if rates.Serper.ResultsPerCredit <= 0 {
		rates.Serper.ResultsPerCredit = def.Serper.ResultsPerCredit
	}
	return &Calculator{rates: rates}
}

// CreditsPerQuery returns the credits one query for num results consumes.
func (c *Calculator) CreditsPerQuery(num int) int {
	if num > c.rates.Serper.ResultsPerCredit {
		return 2
	}
	return 1
}

// Credits returns the credits billed for a run. Failed queries are not billed.
func (c *Calculator) Credits(run model.HuntRun, num int) int {
	billed := run.QueriesIssued - run.QueriesFailed
	if billed < 0 {
		billed = 0
	}
	return billed * c.CreditsPerQuery(num)
}

// Run returns the estimated USD cost of a run.
func (c *Calculator) Run(run model.HuntRun, num int) float64 {
	return float64(c.Credits(run, num)) * c.rates.Serper.PerCredit
}

// DefaultRates returns the default pricing rates.
func DefaultRates() Rates {
	return Rates{
		Serper: SerperRate{PerCredit: 0.001, ResultsPerCredit: 10},
	}
}

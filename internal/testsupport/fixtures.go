package testsupport

import (
	"oracle/internal/domain/report"
)

// ValidPayload returns a payload that passes schema validation, for use as
// a store and pipeline fixture
func ValidPayload(summary string) report.ResearchPayload {
	return report.ResearchPayload{
		ExecutiveSummary: summary,
		Regime: report.Regime{
			Label:      report.RegimeRiskOn,
			Drivers:    []string{"easing financial conditions", "soft landing data"},
			Falsifiers: []string{"credit spreads widening past 150bp"},
		},
		Trades: []report.Trade{
			{
				Name:       "Long S&P futures",
				Instrument: "ES",
				Direction:  "LONG",
				Conviction: 7,
				Timeframe:  "2 weeks",
				Entry:      "5800-5820",
				Stop:       "5740",
				Target:     "5950",
				SizePct:    1.5,
				Catalyst:   "CPI print",
				Rationale:  "positioning light into benign inflation data",
			},
		},
		RiskFactors: []string{"geopolitical escalation"},
		Confidence:  0.7,
	}
}

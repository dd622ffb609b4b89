package report

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"

	"oracle/pkg/errors"
)

// Regime labels produced by synthesis
const (
	RegimeRiskOn       = "RISK_ON"
	RegimeRiskOff      = "RISK_OFF"
	RegimeTransitional = "TRANSITIONAL"
	RegimeCrisis       = "CRISIS"
)

var validRegimes = map[string]struct{}{
	RegimeRiskOn:       {},
	RegimeRiskOff:      {},
	RegimeTransitional: {},
	RegimeCrisis:       {},
}

// ResearchPayload is the validated structured output of the synthesis step
type ResearchPayload struct {
	ExecutiveSummary    string                 `json:"executive_summary"`
	Regime              Regime                 `json:"regime"`
	Trades              []Trade                `json:"trades"`
	RiskFactors         []string               `json:"risk_factors"`
	PositioningAnalysis map[string]Positioning `json:"positioning_analysis,omitempty"`
	Confidence          float64                `json:"confidence"`
	DataQualityIssues   []string               `json:"data_quality_issues,omitempty"`
	Sources             []string               `json:"sources,omitempty"`
}

// Regime is the market regime call with supporting evidence
type Regime struct {
	Label      string   `json:"label"`
	Drivers    []string `json:"drivers"`
	Falsifiers []string `json:"falsifiers"`
}

// Trade is a single trade idea
type Trade struct {
	Name       string  `json:"name"`
	Instrument string  `json:"instrument"`
	Direction  string  `json:"direction"` // LONG | SHORT
	Conviction int     `json:"conviction"`
	Timeframe  string  `json:"timeframe"`
	Entry      string  `json:"entry"`
	Stop       string  `json:"stop"`
	Target     string  `json:"target"`
	SizePct    float64 `json:"size_pct"`
	Catalyst   string  `json:"catalyst"`
	Rationale  string  `json:"rationale"`
}

// Positioning is per-asset positioning as synthesized from COT data
type Positioning struct {
	NetPct     float64 `json:"net_pct"`
	Percentile int     `json:"percentile"`
	Signal     string  `json:"signal"`
	WoWChange  string  `json:"wow_change"`
}

// Valid reports whether a trade carries every field required to be actionable
func (t Trade) Valid() bool {
	return t.Name != "" && t.Instrument != "" && t.Entry != "" && t.Stop != "" && t.Target != ""
}

// Validate checks the payload against the synthesis output schema.
// A validation failure maps to errors.ErrSchemaInvalid and is not retryable.
func (p *ResearchPayload) Validate() error {
	var problems []string

	if strings.TrimSpace(p.ExecutiveSummary) == "" {
		problems = append(problems, "executive_summary is empty")
	}
	if _, ok := validRegimes[p.Regime.Label]; !ok {
		problems = append(problems, fmt.Sprintf("regime.label %q is not a known regime", p.Regime.Label))
	}
	if p.Confidence < 0 || p.Confidence > 1 {
		problems = append(problems, fmt.Sprintf("confidence %.2f outside [0,1]", p.Confidence))
	}
	for i, tr := range p.Trades {
		if !tr.Valid() {
			problems = append(problems, fmt.Sprintf("trade %d (%q) missing required fields", i, tr.Name))
		}
		if tr.Direction != "" && tr.Direction != "LONG" && tr.Direction != "SHORT" {
			problems = append(problems, fmt.Sprintf("trade %d direction %q invalid", i, tr.Direction))
		}
	}

	if len(problems) > 0 {
		return errors.Wrapf(errors.ErrSchemaInvalid, "%s", strings.Join(problems, "; "))
	}
	return nil
}

// ValidTrades returns only the trades carrying all required fields
func (p *ResearchPayload) ValidTrades() []Trade {
	out := make([]Trade, 0, len(p.Trades))
	for _, t := range p.Trades {
		if t.Valid() {
			out = append(out, t)
		}
	}
	return out
}

// Value implements driver.Valuer so the payload is stored as JSONB
func (p ResearchPayload) Value() (driver.Value, error) {
	return json.Marshal(p)
}

// Scan implements sql.Scanner
func (p *ResearchPayload) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*p = ResearchPayload{}
		return nil
	case []byte:
		return json.Unmarshal(v, p)
	case string:
		return json.Unmarshal([]byte(v), p)
	default:
		return fmt.Errorf("cannot scan %T into ResearchPayload", src)
	}
}

package render

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"

	"oracle/internal/domain/report"
)

// Titles per report type
var titles = map[report.Type]string{
	report.TypePremarket:  "Premarket Macro Brief",
	report.TypePostmarket: "Postmarket Macro Review",
	report.TypeWeekly:     "Weekly Positioning Review",
}

// Markdown renders a complete report record as a markdown document.
// Failed records render a short failure notice instead of a report body.
func Markdown(rec *report.Record) string {
	var b strings.Builder

	title := titles[rec.Type]
	if title == "" {
		title = "Macro Research Report"
	}

	fmt.Fprintf(&b, "# %s — %s\n\n", title, rec.Date)
	fmt.Fprintf(&b, "_Generated %s (attempt %d)_\n\n", rec.GeneratedAt.Format("2006-01-02 15:04 MST"), rec.Attempt)

	if rec.Status != report.StatusComplete {
		fmt.Fprintf(&b, "**Generation failed:** %s\n", rec.RunError)
		return b.String()
	}

	p := rec.Payload

	b.WriteString("## Executive Summary\n\n")
	b.WriteString(strings.TrimSpace(p.ExecutiveSummary))
	b.WriteString("\n\n")

	writeRegime(&b, p.Regime, p.Confidence)
	writeTrades(&b, p.ValidTrades())
	writeRiskFactors(&b, p.RiskFactors)
	writePositioning(&b, p.PositioningAnalysis)
	writeDataQuality(&b, p.DataQualityIssues)
	writeSources(&b, p.Sources)

	return b.String()
}

func writeRegime(b *strings.Builder, regime report.Regime, confidence float64) {
	fmt.Fprintf(b, "## Regime: %s\n\n", regime.Label)
	fmt.Fprintf(b, "Confidence: %.0f%%\n\n", confidence*100)

	if len(regime.Drivers) > 0 {
		b.WriteString("**Drivers**\n\n")
		for _, d := range regime.Drivers {
			fmt.Fprintf(b, "- %s\n", d)
		}
		b.WriteString("\n")
	}
	if len(regime.Falsifiers) > 0 {
		b.WriteString("**What would change the call**\n\n")
		for _, f := range regime.Falsifiers {
			fmt.Fprintf(b, "- %s\n", f)
		}
		b.WriteString("\n")
	}
}

func writeTrades(b *strings.Builder, trades []report.Trade) {
	if len(trades) == 0 {
		return
	}

	b.WriteString("## Trade Ideas\n\n")
	b.WriteString("| # | Trade | Direction | Entry | Stop | Target | Conviction | Size |\n")
	b.WriteString("|---|-------|-----------|-------|------|--------|------------|------|\n")
	for i, t := range trades {
		fmt.Fprintf(b, "| %d | %s (%s) | %s | %s | %s | %s | %d/10 | %s%% |\n",
			i+1, t.Name, t.Instrument, t.Direction,
			t.Entry, t.Stop, t.Target, t.Conviction, humanize.Ftoa(t.SizePct))
	}
	b.WriteString("\n")

	for i, t := range trades {
		fmt.Fprintf(b, "**%d. %s**", i+1, t.Name)
		if t.Timeframe != "" {
			fmt.Fprintf(b, " _(%s)_", t.Timeframe)
		}
		b.WriteString("\n\n")
		if t.Catalyst != "" {
			fmt.Fprintf(b, "- Catalyst: %s\n", t.Catalyst)
		}
		if t.Rationale != "" {
			fmt.Fprintf(b, "- Rationale: %s\n", t.Rationale)
		}
		b.WriteString("\n")
	}
}

func writeRiskFactors(b *strings.Builder, risks []string) {
	if len(risks) == 0 {
		return
	}
	b.WriteString("## Risk Factors\n\n")
	for _, r := range risks {
		fmt.Fprintf(b, "- %s\n", r)
	}
	b.WriteString("\n")
}

func writePositioning(b *strings.Builder, positioning map[string]report.Positioning) {
	if len(positioning) == 0 {
		return
	}

	assets := make([]string, 0, len(positioning))
	for asset := range positioning {
		assets = append(assets, asset)
	}
	sort.Strings(assets)

	b.WriteString("## Positioning\n\n")
	b.WriteString("| Asset | Net % of OI | Signal | WoW |\n")
	b.WriteString("|-------|-------------|--------|-----|\n")
	for _, asset := range assets {
		pos := positioning[asset]
		fmt.Fprintf(b, "| %s | %s%% | %s | %s |\n",
			asset, humanize.FtoaWithDigits(pos.NetPct, 1), pos.Signal, pos.WoWChange)
	}
	b.WriteString("\n")
}

func writeDataQuality(b *strings.Builder, issues []string) {
	if len(issues) == 0 {
		return
	}
	b.WriteString("## Data Quality\n\n")
	b.WriteString("The following inputs were degraded or unavailable for this report:\n\n")
	for _, issue := range issues {
		fmt.Fprintf(b, "- %s\n", issue)
	}
	b.WriteString("\n")
}

func writeSources(b *strings.Builder, sources []string) {
	if len(sources) == 0 {
		return
	}
	b.WriteString("## Sources\n\n")
	for _, src := range sources {
		fmt.Fprintf(b, "- %s\n", src)
	}
	b.WriteString("\n")
}

// Filename returns the canonical on-disk name for a report
func Filename(rec *report.Record) string {
	return fmt.Sprintf("%s_%s.md", rec.Date, rec.Type)
}

// Summary renders a short plain-text digest suitable for chat notifications
func Summary(rec *report.Record) string {
	var b strings.Builder

	title := titles[rec.Type]
	if title == "" {
		title = "Macro Research Report"
	}

	if rec.Status != report.StatusComplete {
		fmt.Fprintf(&b, "%s %s: generation failed (%s)", title, rec.Date, rec.RunError)
		return b.String()
	}

	p := rec.Payload
	fmt.Fprintf(&b, "%s — %s\n", title, rec.Date)
	fmt.Fprintf(&b, "Regime: %s (%.0f%% confidence)\n", p.Regime.Label, p.Confidence*100)

	trades := p.ValidTrades()
	fmt.Fprintf(&b, "Trade ideas: %d\n", len(trades))
	for i, t := range trades {
		if i >= 3 {
			break
		}
		fmt.Fprintf(&b, "  %d. %s %s %s\n", i+1, t.Direction, t.Instrument, t.Name)
	}
	if n := len(p.DataQualityIssues); n > 0 {
		fmt.Fprintf(&b, "Data quality issues: %d\n", n)
	}
	return b.String()
}

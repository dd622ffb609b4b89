package synthesis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"oracle/internal/adapters/config"
	"oracle/internal/agents"
	"oracle/internal/domain/report"
	"oracle/pkg/errors"
	"oracle/pkg/logger"
)

// Ensure OpenAI implements the pipeline's synthesis contract
var _ agents.Synthesizer = (*OpenAI)(nil)

// OpenAI synthesizes the final research payload from agent results using
// the Chat Completions API in JSON mode
type OpenAI struct {
	client      openai.Client
	model       string
	temperature float64
	maxTokens   int64
	log         *logger.Logger
}

// NewOpenAI creates the synthesis client
func NewOpenAI(cfg config.AIConfig) (*OpenAI, error) {
	if cfg.OpenAIKey == "" {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "openai API key is required")
	}

	client := openai.NewClient(
		option.WithAPIKey(cfg.OpenAIKey),
	)

	return &OpenAI{
		client:      client,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   int64(cfg.MaxTokens),
		log:         logger.Get().With("component", "synthesis", "model", cfg.Model),
	}, nil
}

// Synthesize implements agents.Synthesizer. The model is asked for strict
// JSON; the decoded payload is validated against the report schema and a
// violation surfaces as ErrSchemaInvalid, which the pipeline treats as
// terminal rather than retryable.
func (s *OpenAI) Synthesize(ctx context.Context, runCtx *agents.Context) (*report.ResearchPayload, error) {
	userPrompt, err := buildUserPrompt(runCtx)
	if err != nil {
		return nil, errors.Wrap(err, "build synthesis prompt")
	}

	resp, err := s.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(s.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt),
		},
		Temperature:         openai.Float(s.temperature),
		MaxCompletionTokens: openai.Int(s.maxTokens),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &openai.ResponseFormatJSONObjectParam{},
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "chat completion")
	}
	if len(resp.Choices) == 0 {
		return nil, errors.Wrapf(errors.ErrSchemaInvalid, "model returned no choices")
	}

	payload, err := decodePayload(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}

	if err := payload.Validate(); err != nil {
		s.log.Warnw("Synthesis output failed schema validation",
			"report_type", runCtx.ReportType, "report_date", runCtx.Date, "error", err)
		return nil, err
	}

	return payload, nil
}

// decodePayload extracts and decodes the JSON object from the model output.
// Code fences are tolerated even in JSON mode.
func decodePayload(content string) (*report.ResearchPayload, error) {
	raw := strings.TrimSpace(content)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")

	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return nil, errors.Wrapf(errors.ErrSchemaInvalid, "no JSON object in model output")
	}

	var payload report.ResearchPayload
	if err := json.Unmarshal([]byte(raw[start:end+1]), &payload); err != nil {
		return nil, errors.Wrapf(errors.ErrSchemaInvalid, "decode model output: %v", err)
	}
	return &payload, nil
}

const systemPrompt = `You are the head of macro research at a global macro fund. You receive
research findings from a team of specialist analysts and synthesize them into
one actionable report.

Respond with a single JSON object and nothing else, using this schema:

{
  "executive_summary": "3-5 sentences on the market setup",
  "regime": {
    "label": "RISK_ON | RISK_OFF | TRANSITIONAL | CRISIS",
    "drivers": ["evidence supporting the regime call"],
    "falsifiers": ["what would invalidate the call"]
  },
  "trades": [
    {
      "name": "short descriptive name",
      "instrument": "ticker or contract",
      "direction": "LONG | SHORT",
      "conviction": 1-10,
      "timeframe": "holding period",
      "entry": "entry level or zone",
      "stop": "stop level",
      "target": "target level",
      "size_pct": 0.5,
      "catalyst": "what makes this work now",
      "rationale": "why the trade exists"
    }
  ],
  "risk_factors": ["key risks to the view"],
  "positioning_analysis": {
    "ASSET": {"net_pct": 12.3, "percentile": 80, "signal": "CROWDED LONG", "wow_change": "+2.1"}
  },
  "confidence": 0.0-1.0
}

Rules:
- Every trade must carry entry, stop and target. Omit trades you cannot level.
- Base positioning_analysis only on the flow analyst's data; omit it if that
  data is missing.
- Lower confidence when inputs are missing or degraded, and say so in the
  executive summary.
- Do not invent data. Work only from the findings provided.`

// buildUserPrompt serializes the run's agent results for the model
func buildUserPrompt(runCtx *agents.Context) (string, error) {
	var b strings.Builder

	fmt.Fprintf(&b, "Report type: %s\nReport date: %s\n\n", runCtx.ReportType, runCtx.Date)

	results := runCtx.Results()
	names := make([]string, 0, len(results))
	for name := range results {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		res := results[name]
		fmt.Fprintf(&b, "## Analyst: %s (outcome: %s)\n", name, res.Outcome)

		if res.Outcome == agents.OutcomeFailed {
			fmt.Fprintf(&b, "No data. Failure: %s\n\n", res.ErrText)
			continue
		}

		for _, caveat := range res.Caveats {
			fmt.Fprintf(&b, "Caveat: %s\n", caveat)
		}

		data, err := json.MarshalIndent(res.Data, "", "  ")
		if err != nil {
			return "", err
		}
		b.Write(data)
		b.WriteString("\n\n")
	}

	if issues := runCtx.DataQualityIssues(); len(issues) > 0 {
		b.WriteString("## Known data quality issues\n")
		for _, issue := range issues {
			fmt.Fprintf(&b, "- %s\n", issue)
		}
	}

	return b.String(), nil
}

package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/covenant-monitor/internal/model"
	"github.com/sells-group/covenant-monitor/internal/resilience"
	"github.com/sells-group/covenant-monitor/pkg/anthropic"
)

const analysisSystemPrompt = `You are a financial risk analyst specializing in loan covenant compliance.

Return ONLY a JSON object with these keys:
- "severity": "high", "medium" or "low"
- "impact": two or three sentences on the potential business impact
- "recommendations": a list of concrete actions, most urgent first
- "timeline": suggested number of days to resolve, as an integer`

// AnalyzerConfig configures an Analyzer.
type AnalyzerConfig struct {
	Model       string
	MaxTokens   int64
	Temperature float64
	Retry       resilience.RetryConfig
}

// Analyzer asks a model to assess a covenant in warning or breach.
type Analyzer struct {
	client anthropic.Client
	cfg    AnalyzerConfig
	now    func() time.Time
	log    *zap.Logger
}

// NewAnalyzer creates an Analyzer.
func NewAnalyzer(client anthropic.Client, cfg AnalyzerConfig) *Analyzer {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1024
	}
	if cfg.Retry.OnRetry == nil {
		cfg.Retry.OnRetry = resilience.RetryLogger("anthropic", "breach_analysis")
	}
	if cfg.Retry.ShouldRetry == nil {
		cfg.Retry.ShouldRetry = func(err error) bool {
			if resilience.IsTransient(err) {
				return true
			}
			code := anthropic.StatusCode(err)
			return code != 0 && resilience.IsTransientHTTPStatus(code)
		}
	}
	return &Analyzer{
		client: client,
		cfg:    cfg,
		now:    func() time.Time { return time.Now().UTC() },
		log:    zap.L().With(zap.String("component", "breach_analyzer")),
	}
}

// Analyze returns the model's assessment of c.
func (a *Analyzer) Analyze(ctx context.Context, c *model.Covenant) (*model.BreachAnalysis, error) {
	temp := a.cfg.Temperature
	req := anthropic.MessageRequest{
		Model:       a.cfg.Model,
		MaxTokens:   a.cfg.MaxTokens,
		System:      anthropic.BuildCachedSystemBlocks(analysisSystemPrompt, "5m"),
		Messages:    []anthropic.Message{{Role: "user", Content: analysisPrompt(c)}},
		Temperature: &temp,
	}

	resp, err := resilience.DoVal(ctx, a.cfg.Retry, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		return a.client.CreateMessage(ctx, req)
	})
	if err != nil {
		return nil, eris.Wrapf(err, "alert: analyze covenant %s", c.ID)
	}
	resp.Usage.LogCost(a.cfg.Model, "breach_analysis")

	analysis, err := parseAnalysis(resp.Text(), c.ComplianceStatus)
	if err != nil {
		a.log.Warn("unparseable breach analysis",
			zap.String("covenant_id", c.ID),
			zap.String("stop_reason", resp.StopReason),
			zap.Error(err),
		)
		return nil, eris.Wrapf(err, "alert: analyze covenant %s", c.ID)
	}
	analysis.AnalyzedAt = a.now()
	return analysis, nil
}

func analysisPrompt(c *model.Covenant) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Analyze this covenant %s:\n\n", c.ComplianceStatus)
	fmt.Fprintf(&sb, "Covenant: %s\n", c.Name)
	fmt.Fprintf(&sb, "Type: %s\n", c.Type)
	fmt.Fprintf(&sb, "Current value: %s\n", formatOptional(c.CurrentValue))
	fmt.Fprintf(&sb, "Threshold value: %s\n", formatOptional(c.ThresholdValue))
	fmt.Fprintf(&sb, "Direction: %s\n", c.Directionality)
	fmt.Fprintf(&sb, "Measured: %s\n", c.MeasurementFrequency)
	if c.Description != "" {
		fmt.Fprintf(&sb, "Description: %s\n", c.Description)
	}
	return sb.String()
}

func formatOptional(v *float64) string {
	if v == nil {
		return "unknown"
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

var leadingDays = regexp.MustCompile(`\d+`)

// parseAnalysis decodes the model's JSON. An unrecognized severity falls
// back to high for a breach and medium otherwise. The timeline may be a
// number or text such as "30 days".
func parseAnalysis(text string, status model.ComplianceStatus) (*model.BreachAnalysis, error) {
	var raw struct {
		Severity        string          `json:"severity"`
		Impact          string          `json:"impact"`
		Recommendations json.RawMessage `json:"recommendations"`
		Timeline        json.RawMessage `json:"timeline"`
	}
	cleaned := anthropic.CleanJSON(text)
	if !strings.HasPrefix(cleaned, "{") {
		return nil, eris.New("alert: analysis response has no JSON object")
	}
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		return nil, eris.Wrap(err, "alert: parse analysis")
	}

	out := &model.BreachAnalysis{
		Severity:        normalizeSeverity(raw.Severity, status),
		Impact:          strings.TrimSpace(raw.Impact),
		Recommendations: parseRecommendations(raw.Recommendations),
		TimelineDays:    parseTimeline(raw.Timeline),
	}
	if out.Impact == "" && len(out.Recommendations) == 0 {
		return nil, eris.New("alert: analysis has neither impact nor recommendations")
	}
	return out, nil
}

func normalizeSeverity(s string, status model.ComplianceStatus) model.Severity {
	switch model.Severity(strings.ToLower(strings.TrimSpace(s))) {
	case model.SeverityHigh:
		return model.SeverityHigh
	case model.SeverityMedium:
		return model.SeverityMedium
	case model.SeverityLow:
		return model.SeverityLow
	}
	if status == model.StatusBreach {
		return model.SeverityHigh
	}
	return model.SeverityMedium
}

func parseRecommendations(raw json.RawMessage) []string {
	var list []string
	if err := json.Unmarshal(raw, &list); err != nil {
		var single string
		if json.Unmarshal(raw, &single) != nil {
			return nil
		}
		list = []string{single}
	}
	out := list[:0]
	for _, r := range list {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	return out
}

func parseTimeline(raw json.RawMessage) int {
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		if n < 0 {
			return 0
		}
		return int(n)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0
	}
	d, err := strconv.Atoi(leadingDays.FindString(s))
	if err != nil {
		return 0
	}
	return d
}

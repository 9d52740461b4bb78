package extract

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/covenant-monitor/internal/resilience"
	"github.com/sells-group/covenant-monitor/pkg/anthropic"
)

const (
	defaultPromptChars = 8000
	describeChars      = 2000
)

const covenantSystemPrompt = `You are a financial analyst specializing in loan covenant analysis. Extract every financial covenant from the loan document you are given.

Return ONLY a JSON array. Each element must have:
- "type": snake_case identifier (e.g. "leverage_ratio", "interest_coverage_ratio", "minimum_net_worth")
- "name": short human-readable name
- "threshold": a number, a string exactly as written (e.g. "3.5:1.0", "$10M", "15%"), an object {"value": ..., <conditions>}, or an array of such objects for step-down schedules
- "description": one sentence explaining the requirement
- "measurement_frequency": how often it is tested (e.g. "quarterly")
- "directionality": "higher_is_better" for minimum requirements, "lower_is_better" for maximums
- "calculation_formula": arithmetic over snake_case metric names using only + - * / and parentheses (e.g. "total_debt / ebitda"), or "" if not stated

Rules:
- Only report covenants stated in the text
- Keep thresholds verbatim; do not convert units
- Return [] when the document has no financial covenants`

const describeSystemPrompt = `You classify financial legal documents. Return ONLY a JSON object {"document_type": "...", "parties": ["..."]}.
document_type is one of: loan agreement, bond indenture, credit agreement, amendment, other.
parties lists the main named parties (borrower, lender, agent, guarantor).`

// ClaudeConfig configures ClaudeService.
type ClaudeConfig struct {
	Model       string
	MaxTokens   int64
	Temperature float64
	// MaxTextChars caps how much document text is sent. Default 8000.
	MaxTextChars int
	// RatePerSec paces API calls; zero disables pacing.
	RatePerSec float64
	Retry      resilience.RetryConfig
}

// ClaudeService implements TextExtractionService and DocumentDescriber on
// the Anthropic Messages API.
type ClaudeService struct {
	client  anthropic.Client
	cfg     ClaudeConfig
	limiter *rate.Limiter
	log     *zap.Logger
}

// NewClaudeService creates a ClaudeService.
func NewClaudeService(client anthropic.Client, cfg ClaudeConfig) *ClaudeService {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 4096
	}
	if cfg.MaxTextChars <= 0 {
		cfg.MaxTextChars = defaultPromptChars
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RatePerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), 1)
	}
	if cfg.Retry.OnRetry == nil {
		cfg.Retry.OnRetry = resilience.RetryLogger("anthropic", "extract_covenants")
	}
	cfg.Retry.ShouldRetry = shouldRetryAnthropic
	return &ClaudeService{
		client:  client,
		cfg:     cfg,
		limiter: limiter,
		log:     zap.L().With(zap.String("component", "claude_extractor")),
	}
}

func shouldRetryAnthropic(err error) bool {
	if resilience.IsTransient(err) {
		return true
	}
	code := anthropic.StatusCode(err)
	return code != 0 && resilience.IsTransientHTTPStatus(code)
}

// ExtractCovenants implements TextExtractionService.
func (s *ClaudeService) ExtractCovenants(ctx context.Context, text string) ([]RawCandidate, error) {
	resp, err := s.call(ctx, "covenant_extraction", covenantSystemPrompt,
		fmt.Sprintf("Document text:\n%s", truncate(text, s.cfg.MaxTextChars)))
	if err != nil {
		return nil, err
	}

	candidates, err := parseCandidates(resp.Text())
	if err != nil {
		s.log.Warn("unparseable extraction response",
			zap.String("stop_reason", resp.StopReason),
			zap.Error(err),
		)
		return nil, err
	}
	return candidates, nil
}

// DescribeDocument implements DocumentDescriber.
func (s *ClaudeService) DescribeDocument(ctx context.Context, text string) (*DocumentDescription, error) {
	resp, err := s.call(ctx, "document_description", describeSystemPrompt,
		fmt.Sprintf("First part of document:\n%s", truncate(text, describeChars)))
	if err != nil {
		return nil, err
	}

	var desc DocumentDescription
	if err := json.Unmarshal([]byte(anthropic.CleanJSON(resp.Text())), &desc); err != nil {
		return nil, eris.Wrap(err, "extract: parse document description")
	}
	return &desc, nil
}

func (s *ClaudeService) call(ctx context.Context, phase, system, user string) (*anthropic.MessageResponse, error) {
	temp := s.cfg.Temperature
	req := anthropic.MessageRequest{
		Model:       s.cfg.Model,
		MaxTokens:   s.cfg.MaxTokens,
		System:      anthropic.BuildCachedSystemBlocks(system, "5m"),
		Messages:    []anthropic.Message{{Role: "user", Content: user}},
		Temperature: &temp,
	}

	resp, err := resilience.DoVal(ctx, s.cfg.Retry, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "extract: rate limit wait")
		}
		return s.client.CreateMessage(ctx, req)
	})
	if err != nil {
		return nil, eris.Wrapf(err, "extract: %s", phase)
	}

	resp.Usage.LogCost(s.cfg.Model, phase)
	return resp, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

package alert

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/covenant-monitor/internal/model"
	"github.com/sells-group/covenant-monitor/internal/resilience"
	"github.com/sells-group/covenant-monitor/pkg/anthropic"
)

type mockClient struct {
	mock.Mock
}

func (m *mockClient) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anthropic.MessageResponse), args.Error(1)
}

func textResponse(text string) *anthropic.MessageResponse {
	return &anthropic.MessageResponse{
		ID:         "msg_1",
		StopReason: "end_turn",
		Content:    []anthropic.ContentBlock{{Type: "text", Text: text}},
	}
}

func breachedCovenant() *model.Covenant {
	return &model.Covenant{
		ID: "cov-1", Name: "Leverage Ratio", Type: "leverage_ratio",
		Description:    "Total Debt to EBITDA not exceeding 3.5:1.0",
		ThresholdValue: v(3.5), CurrentValue: v(4.2),
		Directionality: model.LowerIsBetter, MeasurementFrequency: model.FrequencyQuarterly,
		ComplianceStatus: model.StatusBreach,
	}
}

func newTestAnalyzer(mc *mockClient) *Analyzer {
	a := NewAnalyzer(mc, AnalyzerConfig{
		Model: "claude-haiku-4-5-20251001",
		Retry: resilience.RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond},
	})
	a.now = func() time.Time { return t0 }
	return a
}

func TestAnalyzer_Analyze(t *testing.T) {
	mc := new(mockClient)
	mc.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		content := req.Messages[0].Content
		return req.Model == "claude-haiku-4-5-20251001" &&
			len(req.System) == 1 &&
			strings.Contains(content, "Covenant: Leverage Ratio") &&
			strings.Contains(content, "Current value: 4.2") &&
			strings.Contains(content, "Threshold value: 3.5") &&
			strings.Contains(content, "covenant breach")
	})).Return(textResponse("```json\n"+`{
		"severity": "High",
		"impact": "Lenders may accelerate the facility.",
		"recommendations": ["Request a waiver", " ", "Prepay revolver borrowings"],
		"timeline": 30
	}`+"\n```"), nil)

	got, err := newTestAnalyzer(mc).Analyze(context.Background(), breachedCovenant())
	require.NoError(t, err)
	assert.Equal(t, model.SeverityHigh, got.Severity)
	assert.Equal(t, "Lenders may accelerate the facility.", got.Impact)
	assert.Equal(t, []string{"Request a waiver", "Prepay revolver borrowings"}, got.Recommendations)
	assert.Equal(t, 30, got.TimelineDays)
	assert.Equal(t, t0, got.AnalyzedAt)
	mc.AssertExpectations(t)
}

func TestAnalyzer_RetriesTransient(t *testing.T) {
	mc := new(mockClient)
	mc.On("CreateMessage", mock.Anything, mock.Anything).
		Return(nil, resilience.NewTransientError(errors.New("overloaded"), 529)).Once()
	mc.On("CreateMessage", mock.Anything, mock.Anything).
		Return(textResponse(`{"severity": "low", "impact": "Minor.", "recommendations": [], "timeline": "45 days"}`), nil).Once()

	got, err := newTestAnalyzer(mc).Analyze(context.Background(), breachedCovenant())
	require.NoError(t, err)
	assert.Equal(t, model.SeverityLow, got.Severity)
	assert.Equal(t, 45, got.TimelineDays)
	mc.AssertNumberOfCalls(t, "CreateMessage", 2)
}

func TestAnalyzer_Errors(t *testing.T) {
	mc := new(mockClient)
	mc.On("CreateMessage", mock.Anything, mock.Anything).Return(nil, errors.New("invalid x-api-key"))
	_, err := newTestAnalyzer(mc).Analyze(context.Background(), breachedCovenant())
	require.Error(t, err)
	mc.AssertNumberOfCalls(t, "CreateMessage", 1)

	mc = new(mockClient)
	mc.On("CreateMessage", mock.Anything, mock.Anything).Return(textResponse("I cannot help with that."), nil)
	_, err = newTestAnalyzer(mc).Analyze(context.Background(), breachedCovenant())
	assert.Error(t, err)
}

func TestParseAnalysis(t *testing.T) {
	got, err := parseAnalysis(`{"severity": "critical", "impact": "x", "recommendations": "Call the agent", "timeline": "two weeks"}`, model.StatusWarning)
	require.NoError(t, err)
	assert.Equal(t, model.SeverityMedium, got.Severity)
	assert.Equal(t, []string{"Call the agent"}, got.Recommendations)
	assert.Zero(t, got.TimelineDays)

	got, err = parseAnalysis(`{"impact": "x"}`, model.StatusBreach)
	require.NoError(t, err)
	assert.Equal(t, model.SeverityHigh, got.Severity)
	assert.Nil(t, got.Recommendations)

	_, err = parseAnalysis(`{"severity": "high"}`, model.StatusBreach)
	assert.Error(t, err)
	_, err = parseAnalysis(`[1, 2]`, model.StatusBreach)
	assert.Error(t, err)
	_, err = parseAnalysis(`{"impact": }`, model.StatusBreach)
	assert.Error(t, err)
}

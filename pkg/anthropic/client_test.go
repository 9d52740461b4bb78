package anthropic

import (
	"context"
	"errors"
	"testing"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockClient implements Client for testing.
type MockClient struct {
	mock.Mock
}

func (m *MockClient) CreateMessage(ctx context.Context, req MessageRequest) (*MessageResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*MessageResponse), args.Error(1)
}

func TestCreateMessage_MockClient(t *testing.T) {
	mc := new(MockClient)
	ctx := context.Background()
	req := MessageRequest{
		Model:     "claude-haiku-4-5-20251001",
		MaxTokens: 256,
		Messages:  []Message{{Role: "user", Content: "extract"}},
	}
	mc.On("CreateMessage", ctx, req).Return(&MessageResponse{
		ID:      "msg_1",
		Content: []ContentBlock{{Type: "text", Text: "[]"}},
	}, nil)

	resp, err := mc.CreateMessage(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "[]", resp.Text())
	mc.AssertExpectations(t)
}

func TestMessageResponse_Text(t *testing.T) {
	resp := &MessageResponse{Content: []ContentBlock{
		{Type: "text", Text: "[{\"type\":"},
		{Type: "thinking", Text: "ignored"},
		{Type: "text", Text: "\"leverage\"}]"},
	}}
	assert.Equal(t, `[{"type":"leverage"}]`, resp.Text())
	assert.Empty(t, (&MessageResponse{}).Text())
}

func TestToSDKMessages(t *testing.T) {
	msgs := toSDKMessages([]Message{
		{Role: "user", Content: "hi"},
		{Role: "assistant", Content: "hello"},
		{Role: "system", Content: "defaults to user"},
	})
	require.Len(t, msgs, 3)
	assert.Equal(t, sdk.MessageParamRoleUser, msgs[0].Role)
	assert.Equal(t, sdk.MessageParamRoleAssistant, msgs[1].Role)
	assert.Equal(t, sdk.MessageParamRoleUser, msgs[2].Role)
	assert.Empty(t, toSDKMessages(nil))
}

func TestToSDKSystemBlocks(t *testing.T) {
	blocks := toSDKSystemBlocks([]SystemBlock{
		{Text: "plain"},
		{Text: "cached", CacheControl: &CacheControl{TTL: "1h"}},
	})
	require.Len(t, blocks, 2)
	assert.Equal(t, "plain", blocks[0].Text)
	assert.Equal(t, "cached", blocks[1].Text)
	assert.Equal(t, sdk.CacheControlEphemeralTTL("1h"), blocks[1].CacheControl.TTL)
}

func TestFromSDKMessage(t *testing.T) {
	msg := &sdk.Message{
		ID:         "msg_abc",
		Model:      "claude-sonnet-4-5-20250929",
		StopReason: "end_turn",
		Content:    []sdk.ContentBlockUnion{{Type: "text", Text: "ok"}},
		Usage: sdk.Usage{
			InputTokens:          100,
			OutputTokens:         20,
			CacheReadInputTokens: 900,
		},
	}
	resp := fromSDKMessage(msg)
	assert.Equal(t, "msg_abc", resp.ID)
	assert.Equal(t, "claude-sonnet-4-5-20250929", resp.Model)
	assert.Equal(t, "end_turn", resp.StopReason)
	assert.Equal(t, "ok", resp.Text())
	assert.Equal(t, int64(900), resp.Usage.CacheReadInputTokens)
}

func TestBuildCachedSystemBlocks(t *testing.T) {
	blocks := BuildCachedSystemBlocks("prompt", "")
	require.Len(t, blocks, 1)
	assert.Equal(t, "prompt", blocks[0].Text)
	require.NotNil(t, blocks[0].CacheControl)
	assert.Equal(t, "5m", blocks[0].CacheControl.TTL)

	assert.Equal(t, "1h", BuildCachedSystemBlocks("prompt", "1h")[0].CacheControl.TTL)
}

func TestEstimateCost(t *testing.T) {
	u := TokenUsage{InputTokens: 1_000_000, OutputTokens: 1_000_000}
	assert.InDelta(t, 4.80, u.EstimateCost("claude-haiku-4-5-20251001"), 0.0001)
	assert.InDelta(t, 18.0, u.EstimateCost("claude-sonnet-4-5-20250929"), 0.0001)
	assert.Zero(t, u.EstimateCost("unknown-model"))
	assert.Zero(t, TokenUsage{}.EstimateCost("claude-haiku-4-5-20251001"))

	cached := TokenUsage{CacheCreationInputTokens: 1_000_000, CacheReadInputTokens: 1_000_000}
	assert.InDelta(t, 3.00*1.25+3.00*0.1, cached.EstimateCost("claude-sonnet-4-5-20250929"), 0.0001)
}

func TestLogCost_DoesNotPanic(t *testing.T) {
	assert.NotPanics(t, func() {
		TokenUsage{InputTokens: 10}.LogCost("claude-haiku-4-5-20251001", "covenant_extraction")
	})
}

func TestStatusCode(t *testing.T) {
	assert.Zero(t, StatusCode(nil))
	assert.Zero(t, StatusCode(errors.New("plain")))

	apiErr := &sdk.Error{StatusCode: 529}
	assert.Equal(t, 529, StatusCode(apiErr))
}

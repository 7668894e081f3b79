package resumes

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/job-autopilot/internal/db"
	"github.com/jonathan/job-autopilot/internal/llm"
)

// MockLLMClient implements llm.Client for testing
type MockLLMClient struct {
	GenerateContentFunc func(ctx context.Context, prompt string, tier llm.ModelTier) (string, error)
	GenerateJSONFunc    func(ctx context.Context, prompt string, tier llm.ModelTier) (string, error)
	GetModelFunc        func(tier llm.ModelTier) string
	CloseFunc           func() error
}

func (m *MockLLMClient) GenerateContent(ctx context.Context, prompt string, tier llm.ModelTier) (string, error) {
	if m.GenerateContentFunc != nil {
		return m.GenerateContentFunc(ctx, prompt, tier)
	}
	return "", nil
}

func (m *MockLLMClient) GenerateJSON(ctx context.Context, prompt string, tier llm.ModelTier) (string, error) {
	if m.GenerateJSONFunc != nil {
		return m.GenerateJSONFunc(ctx, prompt, tier)
	}
	return `{"index": 0}`, nil
}

func (m *MockLLMClient) GetModel(tier llm.ModelTier) string {
	if m.GetModelFunc != nil {
		return m.GetModelFunc(tier)
	}
	return "mock-model"
}

func (m *MockLLMClient) Close() error {
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

func TestParseIndex(t *testing.T) {
	tests := []struct {
		name    string
		resp    string
		want    int
		wantErr bool
	}{
		{name: "object", resp: `{"index": 1}`, want: 1},
		{name: "bare integer", resp: "2", want: 2},
		{name: "code fence", resp: "```json\n{\"index\": 0}\n```", want: 0},
		{name: "prose wrapped", resp: `I'd choose {"index": 3} because it fits.`, want: 3},
		{name: "string index", resp: `{"index": "1"}`, want: 1},
		{name: "fractional index", resp: `{"index": 1.5}`, wantErr: true},
		{name: "missing index", resp: `{"choice": 1}`, wantErr: true},
		{name: "garbage", resp: "the second one", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseIndex(tt.resp)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLLMTiebreaker_Pick(t *testing.T) {
	var gotPrompt string
	var gotTier llm.ModelTier
	client := &MockLLMClient{
		GenerateJSONFunc: func(_ context.Context, prompt string, tier llm.ModelTier) (string, error) {
			gotPrompt = prompt
			gotTier = tier
			return `{"index": 1}`, nil
		},
	}

	job := &db.GlobalJob{Title: "Backend Engineer", Category: "engineering", Description: "Build APIs in Go."}
	a := resume("Backend CV", "go")
	a.Categories = []string{"engineering"}
	b := resume("Platform CV", "go", "kubernetes")

	idx, err := NewLLMTiebreaker(client).Pick(context.Background(), job, []db.Resume{a, b})
	require.NoError(t, err)
	assert.Equal(t, 1, idx)
	assert.Equal(t, llm.TierLite, gotTier)
	assert.Contains(t, gotPrompt, "Backend Engineer")
	assert.Contains(t, gotPrompt, "[0] Backend CV")
	assert.Contains(t, gotPrompt, "[1] Platform CV")
	assert.Contains(t, gotPrompt, "kubernetes")
	assert.NotContains(t, gotPrompt, "{{.")
}

func TestLLMTiebreaker_PickError(t *testing.T) {
	client := &MockLLMClient{
		GenerateJSONFunc: func(context.Context, string, llm.ModelTier) (string, error) {
			return "", errors.New("quota exceeded")
		},
	}
	_, err := NewLLMTiebreaker(client).Pick(context.Background(), &db.GlobalJob{}, []db.Resume{resume("A"), resume("B")})
	assert.ErrorContains(t, err, "quota exceeded")
}

func TestSelect_WithLLMTiebreakerMalformedReply(t *testing.T) {
	client := &MockLLMClient{
		GenerateJSONFunc: func(context.Context, string, llm.ModelTier) (string, error) {
			return "not sure", nil
		},
	}
	def := resume("Default", "go")
	def.IsDefault = true
	other := resume("Other", "go")

	sel := NewSelector(NewLLMTiebreaker(client), 0).Select(context.Background(), &db.GlobalJob{Skills: []string{"go"}}, []db.Resume{other, def})
	require.NotNil(t, sel)
	assert.Equal(t, TierFallback, sel.Tier)
	assert.Equal(t, def.ID, sel.Resume.ID)
}

package llm

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubConverse struct {
	input *bedrockruntime.ConverseInput
	out   *bedrockruntime.ConverseOutput
}

func (s *stubConverse) Converse(_ context.Context, params *bedrockruntime.ConverseInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
	s.input = params
	return s.out, nil
}

type stubInvoke struct {
	body []byte
}

func (s *stubInvoke) InvokeModel(_ context.Context, _ *bedrockruntime.InvokeModelInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error) {
	return &bedrockruntime.InvokeModelOutput{Body: s.body}, nil
}

func TestBedrockCompleteMapsRequest(t *testing.T) {
	api := &stubConverse{out: &bedrockruntime.ConverseOutput{
		Output: &brtypes.ConverseOutputMemberMessage{Value: brtypes.Message{
			Role:    brtypes.ConversationRoleAssistant,
			Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: " pricing \n"}},
		}},
		StopReason: brtypes.StopReasonEndTurn,
		Usage:      &brtypes.TokenUsage{InputTokens: aws.Int32(10), OutputTokens: aws.Int32(1), TotalTokens: aws.Int32(11)},
	}}

	resp, err := NewBedrock(api, "default-model").Complete(context.Background(), Request{
		System:      []string{"classify"},
		Messages:    []Message{{Role: RoleUser, Content: "сколько стоит"}},
		MaxTokens:   10,
		Temperature: 0.1,
	})
	require.NoError(t, err)
	assert.Equal(t, "pricing", resp.Text)
	assert.Equal(t, int32(11), resp.Usage.TotalTokens)

	require.NotNil(t, api.input)
	assert.Equal(t, "default-model", aws.ToString(api.input.ModelId))
	require.Len(t, api.input.System, 1)
	require.Len(t, api.input.Messages, 1)
	assert.Equal(t, int32(10), aws.ToInt32(api.input.InferenceConfig.MaxTokens))
}

func TestBedrockEmbedder(t *testing.T) {
	api := &stubInvoke{body: []byte(`{"embedding":[0.25,0.5]}`)}
	vectors, err := NewBedrockEmbedder(api, "amazon.titan-embed-text-v2:0").Embed(context.Background(), []string{"чистка"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{0.25, 0.5}}, vectors)
}

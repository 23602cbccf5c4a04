package bootstrap

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	appconfig "github.com/wolfman30/cosmetology-assistant/internal/config"
	"github.com/wolfman30/cosmetology-assistant/internal/conversation"
	"github.com/wolfman30/cosmetology-assistant/internal/llm"
	"github.com/wolfman30/cosmetology-assistant/pkg/logging"
)

// LLMStack is the generation client plus the model names to ask for.
type LLMStack struct {
	Client   llm.Client
	Models   conversation.Models
	Embedder llm.Embedder
	Retry    llm.RetryPolicy
	closers  []io.Closer
}

// Close releases provider connections.
func (s *LLMStack) Close() {
	for _, c := range s.closers {
		_ = c.Close()
	}
}

// RetryPolicy maps the LLM backoff settings.
func RetryPolicy(cfg *appconfig.Config) llm.RetryPolicy {
	p := llm.DefaultRetryPolicy()
	if cfg.LLMMaxAttempts > 0 {
		p.MaxAttempts = cfg.LLMMaxAttempts
	}
	if cfg.LLMInitialBackoff > 0 {
		p.InitialBackoff = cfg.LLMInitialBackoff
	}
	if cfg.LLMMaxBackoff > 0 {
		p.MaxBackoff = cfg.LLMMaxBackoff
	}
	return p
}

// BuildLLM selects Gemini or Bedrock as primary per LLM_PROVIDER and falls
// back to the other one when it is also configured. Embeddings always come
// from Bedrock.
func BuildLLM(ctx context.Context, cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger) (*LLMStack, error) {
	if logger == nil {
		logger = logging.Default()
	}
	stack := &LLMStack{Retry: RetryPolicy(cfg)}

	var gemini, bedrock llm.Client
	var geminiModels, bedrockModels conversation.Models
	if strings.TrimSpace(cfg.GeminiAPIKey) != "" {
		g, err := llm.NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: %w", err)
		}
		stack.closers = append(stack.closers, g)
		gemini = g
		geminiModels = conversation.Models{Full: cfg.GeminiModel, Fast: cfg.GeminiFastModel}
	}

	var runtime *bedrockruntime.Client
	if strings.TrimSpace(cfg.BedrockModelID) != "" || strings.TrimSpace(cfg.BedrockEmbeddingModelID) != "" {
		runtime = bedrockruntime.NewFromConfig(awsCfg)
	}
	if strings.TrimSpace(cfg.BedrockModelID) != "" {
		bedrock = llm.NewBedrock(runtime, cfg.BedrockModelID)
		bedrockModels = conversation.Models{Full: cfg.BedrockModelID, Fast: cfg.BedrockFastModelID}
	}
	if runtime != nil && strings.TrimSpace(cfg.BedrockEmbeddingModelID) != "" {
		stack.Embedder = llm.NewBedrockEmbedder(runtime, cfg.BedrockEmbeddingModelID)
	}

	primary, secondary := gemini, bedrock
	stack.Models = geminiModels
	if cfg.LLMProvider == "bedrock" || gemini == nil {
		primary, secondary = bedrock, gemini
		stack.Models = bedrockModels
	}
	if primary == nil {
		stack.Close()
		return nil, fmt.Errorf("bootstrap: no LLM provider configured (set GEMINI_API_KEY or BEDROCK_MODEL_ID)")
	}
	// The fallback provider gets the request without a model name so its
	// own default model is used.
	if secondary != nil {
		secondary = stripModel(secondary)
	}
	stack.Client = llm.NewFallback(primary, secondary, logger)
	logger.Info("llm configured", "provider", cfg.LLMProvider, "model", stack.Models.Full, "fallback", secondary != nil, "embeddings", stack.Embedder != nil)
	return stack, nil
}

func stripModel(next llm.Client) llm.Client {
	return llm.ClientFunc(func(ctx context.Context, req llm.Request) (llm.Response, error) {
		req.Model = ""
		return next.Complete(ctx, req)
	})
}

package generator

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/param"
	"github.com/rs/zerolog/log"

	"github.com/mltutor/backend/internal/config"
)

// LLMClient is the interface both generation backends satisfy.
type LLMClient interface {
	Generate(ctx context.Context, systemPrompt string, userPrompt string) (*LLMResponse, error)
}

// LLMResponse holds the raw response content and token usage.
type LLMResponse struct {
	Content      string
	PromptTokens int
	OutputTokens int
}

// ServiceError marks a failure of the generation service itself, as opposed
// to an unusable response. Callers treat it as transient.
type ServiceError struct {
	Op  string
	Err error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("generation service %s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// NewClient picks the backend from config: the Anthropic API in production,
// canned responses in mock mode.
func NewClient(cfg config.LLMConfig) LLMClient {
	if cfg.Mock {
		log.Info().Msg("generator using mock client")
		return NewMockClient()
	}
	log.Info().Str("model", cfg.Model).Msg("generator using Anthropic API")
	return NewAPIClient(cfg.Model, cfg.MaxTokens)
}

// ── APIClient — Anthropic SDK (Production) ─────────────────

type APIClient struct {
	client    *anthropic.Client
	model     string
	maxTokens int64
}

func NewAPIClient(model string, maxTokens int) *APIClient {
	client := anthropic.NewClient(
		option.WithAPIKey(os.Getenv("ANTHROPIC_API_KEY")),
	)
	return &APIClient{client: &client, model: model, maxTokens: int64(maxTokens)}
}

func (c *APIClient) Generate(ctx context.Context, systemPrompt string, userPrompt string) (*LLMResponse, error) {
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(c.model),
		MaxTokens:   c.maxTokens,
		Temperature: param.NewOpt(0.2),
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	}

	message, err := c.callWithRetry(ctx, params)
	if err != nil {
		return nil, &ServiceError{Op: "call", Err: err}
	}

	var responseText string
	for _, block := range message.Content {
		if block.Type == "text" {
			responseText = block.Text
			break
		}
	}

	if responseText == "" {
		return nil, &ServiceError{Op: "call", Err: fmt.Errorf("no text content in API response")}
	}

	return &LLMResponse{
		Content:      responseText,
		PromptTokens: int(message.Usage.InputTokens),
		OutputTokens: int(message.Usage.OutputTokens),
	}, nil
}

func (c *APIClient) callWithRetry(ctx context.Context, params anthropic.MessageNewParams) (*anthropic.Message, error) {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			sleepDuration := time.Duration(1<<uint(attempt)) * time.Second
			log.Warn().Dur("backoff", sleepDuration).Int("attempt", attempt+1).Msg("retrying Anthropic API call")
			select {
			case <-time.After(sleepDuration):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		message, err := c.client.Messages.New(ctx, params)
		if err == nil {
			return message, nil
		}
		lastErr = err
		log.Warn().Err(err).Int("attempt", attempt+1).Msg("Anthropic API call failed")
	}
	return nil, fmt.Errorf("anthropic API failed after retries: %w", lastErr)
}

// ── MockClient — Local Development ─────────────────────────

type MockClient struct{}

func NewMockClient() *MockClient {
	return &MockClient{}
}

// Generate fabricates a question consistent with the prompt: boolean prompts
// get the answer index the truth hint demands, choice prompts get four
// options.
func (m *MockClient) Generate(ctx context.Context, systemPrompt string, userPrompt string) (*LLMResponse, error) {
	var content string
	if strings.Contains(systemPrompt, "判断题") {
		idx := 0
		if strings.Contains(systemPrompt, "correct_answer_index 必须为 1") {
			idx = 1
		}
		content = fmt.Sprintf(`{"valid": true, "question": "[Mock] 梯度下降沿梯度正方向更新参数，该说法是否正确？", "type": "boolean", "options": ["正确", "错误"], "correct_answer_index": %d, "explanation": "[Mock] 梯度下降沿负梯度方向更新参数。"}`, idx)
	} else {
		content = `{"valid": true, "question": "[Mock] 下列关于梯度下降的说法中正确的是哪一项？", "type": "choice", "options": ["沿负梯度方向更新参数", "沿正梯度方向更新参数", "与梯度方向无关", "只能用于线性模型"], "correct_answer_index": 0, "explanation": "[Mock] 梯度下降通过沿负梯度方向迭代来最小化损失。"}`
	}
	return &LLMResponse{Content: content, PromptTokens: 800, OutputTokens: 200}, nil
}

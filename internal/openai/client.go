// Package openai shortens note content for alert messages.
package openai

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"go.uber.org/zap"
)

// MaxFallbackRunes bounds the summary when no model is configured.
const MaxFallbackRunes = 80

// Client wraps the OpenAI SDK. A Client without an API key summarises by
// truncation.
type Client struct {
	client *openai.Client
	model  openai.ChatModel
	logger *zap.Logger
}

// New returns a client for apiKey. Extra options are passed to the SDK.
func New(apiKey string, logger *zap.Logger, opts ...option.RequestOption) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if apiKey == "" {
		return &Client{logger: logger}
	}
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)}, opts...)
	client := openai.NewClient(opts...)
	return &Client{
		client: &client,
		model:  openai.ChatModelGPT4oMini,
		logger: logger,
	}
}

// Enabled reports whether summaries come from the model.
func (c *Client) Enabled() bool { return c.client != nil }

// Summarize returns a one-sentence summary of content. It falls back to
// truncation when the model is unavailable or fails.
func (c *Client) Summarize(ctx context.Context, content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", fmt.Errorf("content cannot be empty")
	}
	if c.client == nil {
		return Truncate(content, MaxFallbackRunes), nil
	}

	req := openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			{
				OfSystem: &openai.ChatCompletionSystemMessageParam{
					Content: openai.ChatCompletionSystemMessageParamContentUnion{
						OfString: openai.String("You turn personal notes into one short reminder sentence."),
					},
				},
			},
			{
				OfUser: &openai.ChatCompletionUserMessageParam{
					Content: openai.ChatCompletionUserMessageParamContentUnion{
						OfString: openai.String(fmt.Sprintf("Summarise this note as a reminder in one sentence: %s", content)),
					},
				},
			},
		},
		Temperature:         openai.Float(0.3),
		MaxCompletionTokens: openai.Int(60),
	}

	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	resp, err := c.client.Chat.Completions.New(ctx, req)
	if err != nil {
		c.logger.Debug("summary request failed, truncating", zap.Error(err))
		return Truncate(content, MaxFallbackRunes), nil
	}
	if len(resp.Choices) == 0 {
		return Truncate(content, MaxFallbackRunes), nil
	}
	summary := strings.TrimSpace(resp.Choices[0].Message.Content)
	if summary == "" {
		return Truncate(content, MaxFallbackRunes), nil
	}
	return summary, nil
}

// Truncate cuts s to at most n runes, marking the cut with an ellipsis.
func Truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}

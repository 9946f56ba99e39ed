package ai

import (
	"context"
	"log/slog"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
)

const defaultDeployment = "gpt-35-turbo"

// Client wraps an OpenAI compatible chat completion endpoint (Azure OpenAI
// in production). A nil or unconfigured Client reports Enabled() == false.
type Client struct {
	chat       *openai.Client
	deployment string
}

// NewClient returns nil when the endpoint or key is missing so callers can
// treat the AI narrative as optional.
func NewClient(endpoint, apiKey, deployment string) *Client {
	if endpoint == "" || apiKey == "" {
		slog.Info("AI service disabled, endpoint or api key not provided")
		return nil
	}
	if deployment == "" {
		deployment = defaultDeployment
	}
	chat := openai.NewClient(
		option.WithBaseURL(endpoint),
		option.WithAPIKey(apiKey),
	)
	slog.Info("AI service initialized", "deployment", deployment)
	return &Client{chat: &chat, deployment: deployment}
}

// Enabled returns whether the client can issue completions
func (c *Client) Enabled() bool {
	return c != nil && c.chat != nil
}

// complete sends one system + user message pair and returns the reply
func (c *Client) complete(ctx context.Context, systemMessage, userMessage string) (string, error) {
	if !c.Enabled() {
		return "", &AIError{Message: "AI service is not enabled"}
	}

	resp, err := c.chat.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.deployment),
		Messages: []openai.ChatCompletionMessageParamUnion{
			{
				OfSystem: &openai.ChatCompletionSystemMessageParam{
					Content: openai.ChatCompletionSystemMessageParamContentUnion{
						OfString: openai.String(systemMessage),
					},
				},
			},
			{
				OfUser: &openai.ChatCompletionUserMessageParam{
					Content: openai.ChatCompletionUserMessageParamContentUnion{
						OfString: openai.String(userMessage),
					},
				},
			},
		},
		MaxTokens:   openai.Int(800),
		Temperature: openai.Float(0.4),
	})
	if err != nil {
		return "", &AIError{Message: "Failed to generate AI response", Cause: err}
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", &AIError{Message: "AI returned empty response"}
	}

	return resp.Choices[0].Message.Content, nil
}

// AIError represents an AI service error
type AIError struct {
	Message string
	Cause   error
}

func (e *AIError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *AIError) Unwrap() error { return e.Cause }

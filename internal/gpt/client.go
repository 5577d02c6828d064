package gpt

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"aide/internal/assistant"
	"aide/internal/fault"
)

type Client struct {
	api    openai.Client
	model  string
	hasKey bool
}

// NewClient builds a chat-completions generator. baseURL may point at any
// OpenAI-compatible server; empty keeps the default endpoint.
func NewClient(apiKey, model, baseURL string, httpClient *http.Client, retries int) *Client {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(retries),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}

	return &Client{
		api:    openai.NewClient(opts...),
		model:  model,
		hasKey: apiKey != "",
	}
}

func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	if !c.hasKey {
		return "", fault.Fatalf("openai: OPENAI_API_KEY not set")
	}

	resp, err := c.api.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Model: openai.ChatModel(c.model),
	})
	if err != nil {
		return "", classify("chat completion", err)
	}

	if len(resp.Choices) == 0 {
		return "", fault.Service("chat completion", errors.New("no choices in response"))
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", fault.Service("chat completion", errors.New("empty message content"))
	}
	return text, nil
}

func (c *Client) ListModels(ctx context.Context) ([]assistant.ModelInfo, error) {
	if !c.hasKey {
		return nil, fault.Fatalf("openai: OPENAI_API_KEY not set")
	}

	iter := c.api.Models.ListAutoPaging(ctx)

	var models []assistant.ModelInfo
	for iter.Next() {
		m := iter.Current()
		models = append(models, assistant.ModelInfo{
			Name:    m.ID,
			Methods: []string{"chat.completions", "owned by " + m.OwnedBy},
		})
	}
	if err := iter.Err(); err != nil {
		return nil, classify("list models", err)
	}
	return models, nil
}

// classify maps SDK errors onto fault kinds. The SDK has already retried
// retryable statuses by the time an error gets here.
func classify(op string, err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return fault.FromStatus(op, apiErr.StatusCode, apiErr.Message)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return fault.Transient(op, fmt.Errorf("request failed: %w", err))
}

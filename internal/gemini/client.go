package gemini

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"aide/internal/assistant"
	"aide/internal/fault"
)

type Client struct {
	models *genai.Models
	model  string
	retry  fault.RetryConfig
	err    error
}

// NewClient builds a generator on the Gemini API. baseURL is empty for the
// public endpoint. A client built without a key fails every call with a Fatal
// error instead of failing construction.
func NewClient(apiKey, model, baseURL string, httpClient *http.Client, retry fault.RetryConfig) *Client {
	if model == "" {
		model = "gemini-2.0-flash"
	}
	c := &Client{model: model, retry: retry}
	if apiKey == "" {
		c.err = fault.Fatalf("gemini: GEMINI_API_KEY not set")
		return c
	}

	api, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:      apiKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPClient:  httpClient,
		HTTPOptions: genai.HTTPOptions{BaseURL: baseURL},
	})
	if err != nil {
		c.err = fault.Fatal("gemini client", err)
		return c
	}
	c.models = api.Models
	return c
}

// Generate sends a single-turn prompt and returns the text of the first
// candidate.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	if c.err != nil {
		return "", c.err
	}

	var resp *genai.GenerateContentResponse
	err := fault.WithRetry(ctx, c.retry, func(ctx context.Context) error {
		var err error
		resp, err = c.models.GenerateContent(ctx, c.model, genai.Text(prompt), &genai.GenerateContentConfig{
			Temperature: genai.Ptr[float32](0.7),
		})
		return classify("gemini generate", err)
	})
	if err != nil {
		return "", err
	}

	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return "", fault.Service("gemini generate", fmt.Errorf("prompt blocked: %s", resp.PromptFeedback.BlockReason))
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fault.Service("gemini generate", errors.New("empty response"))
	}
	return text, nil
}

// ListModels pages through every model visible to the API key.
func (c *Client) ListModels(ctx context.Context) ([]assistant.ModelInfo, error) {
	if c.err != nil {
		return nil, c.err
	}

	var page genai.Page[genai.Model]
	err := fault.WithRetry(ctx, c.retry, func(ctx context.Context) error {
		var err error
		page, err = c.models.List(ctx, &genai.ListModelsConfig{PageSize: 1000})
		return classify("gemini list models", err)
	})
	if err != nil {
		return nil, err
	}

	var models []assistant.ModelInfo
	for {
		for _, m := range page.Items {
			models = append(models, assistant.ModelInfo{Name: m.Name, Methods: m.SupportedActions})
		}

		next := page
		err := fault.WithRetry(ctx, c.retry, func(ctx context.Context) error {
			var err error
			next, err = page.Next(ctx)
			if errors.Is(err, genai.ErrPageDone) {
				return err
			}
			return classify("gemini list models", err)
		})
		if errors.Is(err, genai.ErrPageDone) {
			return models, nil
		}
		if err != nil {
			return nil, err
		}
		page = next
	}
}

func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code == 0 {
			return fault.Service(op, errors.New(apiErr.Message))
		}
		return fault.FromStatus(op, apiErr.Code, apiErr.Message)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return fault.Transient(op, err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fault.Service(op, err)
}

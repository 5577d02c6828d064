// Package speech talks to OpenAI-compatible transcription endpoints.
package speech

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"aide/internal/fault"
	"aide/pkg/audioconv"
)

type RemoteClient struct {
	model    string
	language string
	prompt   string
	hasKey   bool
	opts     []option.RequestOption
	retry    fault.RetryConfig
	api      openai.Client
}

type Option func(*RemoteClient)

func WithBaseURL(u string) Option {
	return func(c *RemoteClient) {
		if u != "" {
			c.opts = append(c.opts, option.WithBaseURL(u))
		}
	}
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *RemoteClient) {
		if h != nil {
			c.opts = append(c.opts, option.WithHTTPClient(h))
		}
	}
}

// WithPrompt passes vocabulary hints (names, jargon) to the model.
func WithPrompt(p string) Option {
	return func(c *RemoteClient) { c.prompt = p }
}

func WithRetry(r fault.RetryConfig) Option {
	return func(c *RemoteClient) { c.retry = r }
}

// NewRemoteClient builds a transcriber on the OpenAI audio API. Retries are
// driven by fault.WithRetry, so the SDK's own retries are off.
func NewRemoteClient(apiKey, model, language string, opts ...Option) *RemoteClient {
	if language == "auto" {
		language = ""
	}
	c := &RemoteClient{
		model:    model,
		language: language,
		hasKey:   apiKey != "",
		retry:    fault.DefaultRetryConfig(),
		opts: []option.RequestOption{
			option.WithAPIKey(apiKey),
			option.WithMaxRetries(0),
		},
	}
	for _, o := range opts {
		o(c)
	}
	c.api = openai.NewClient(c.opts...)
	return c
}

// Transcribe converts the voice file at path to a 16 kHz mono WAV next to it
// and uploads it.
func (c *RemoteClient) Transcribe(ctx context.Context, path string) (string, error) {
	if !c.hasKey {
		return "", fault.Fatalf("speech: OPENAI_API_KEY not set")
	}

	wav, err := os.CreateTemp(filepath.Dir(path), "voice-*.wav")
	if err != nil {
		return "", fmt.Errorf("creating wav file: %w", err)
	}
	wav.Close()
	defer os.Remove(wav.Name())

	if err := audioconv.TranscodeFile(ctx, path, wav.Name()); err != nil {
		return "", fault.Input("transcode voice", err)
	}

	audio, err := os.ReadFile(wav.Name())
	if err != nil {
		return "", fmt.Errorf("reading wav file: %w", err)
	}

	return c.TranscribeWAV(ctx, audio)
}

// TranscribeWAV uploads an already encoded WAV file.
func (c *RemoteClient) TranscribeWAV(ctx context.Context, audio []byte) (string, error) {
	if !c.hasKey {
		return "", fault.Fatalf("speech: OPENAI_API_KEY not set")
	}

	params := openai.AudioTranscriptionNewParams{Model: openai.AudioModel(c.model)}
	if c.language != "" {
		params.Language = openai.String(c.language)
	}
	if c.prompt != "" {
		params.Prompt = openai.String(c.prompt)
	}

	var text string
	err := fault.WithRetry(ctx, c.retry, func(ctx context.Context) error {
		params.File = openai.File(bytes.NewReader(audio), "voice.wav", "audio/wav")
		resp, err := c.api.Audio.Transcriptions.New(ctx, params)
		if err != nil {
			return classify(err)
		}
		text = resp.Text
		return nil
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func classify(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return fault.FromStatus("transcription", apiErr.StatusCode, apiErr.Message)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return fault.Transient("transcription", err)
}

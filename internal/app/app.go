// Package app builds the runtime components shared by the aide binaries
// from configuration.
package app

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/lmittmann/tint"

	"aide/internal/assistant"
	"aide/internal/calendar"
	"aide/internal/config"
	"aide/internal/fault"
	"aide/internal/gemini"
	"aide/internal/gpt"
	"aide/internal/mail"
	"aide/internal/session"
	"aide/internal/speech"
	"aide/pkg/audioconv"
	"aide/pkg/stt"
)

var levels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

func NewLogger(cfg config.LogConfig) *slog.Logger {
	level, ok := levels[cfg.Level]
	if !ok {
		level = slog.LevelInfo
	}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	}
	return slog.New(tint.NewHandler(os.Stdout, &tint.Options{Level: level}))
}

func RetryConfig(cfg config.RetryConfig) fault.RetryConfig {
	return fault.RetryConfig{
		MaxAttempts:  cfg.Attempts,
		InitialDelay: cfg.InitialDelay,
		MaxDelay:     cfg.MaxDelay,
		Multiplier:   2,
	}
}

func OpenStore(cfg config.SessionConfig) (session.Store, error) {
	if cfg.Backend == "sqlite" {
		return session.OpenSQLite(cfg.Path, cfg.TTL)
	}
	return session.NewMemoryStore(cfg.TTL), nil
}

func NewTranscriber(cfg config.SpeechConfig, httpClient *http.Client, retry fault.RetryConfig) (assistant.Transcriber, func() error, error) {
	if cfg.Backend == "openai" {
		opts := []speech.Option{
			speech.WithHTTPClient(httpClient),
			speech.WithRetry(retry),
			speech.WithPrompt(cfg.InitialPrompt),
		}
		if cfg.BaseURL != "" {
			opts = append(opts, speech.WithBaseURL(cfg.BaseURL))
		}
		return speech.NewRemoteClient(cfg.APIKey, cfg.APIModel, cfg.Language, opts...), func() error { return nil }, nil
	}

	t, err := stt.NewTranscriber(cfg.ModelPath, WhisperOptions(cfg))
	if err != nil {
		return nil, nil, err
	}
	return t, t.Close, nil
}

// WhisperOptions maps the speech section onto local inference options.
func WhisperOptions(cfg config.SpeechConfig) stt.Options {
	return stt.Options{
		Language:      cfg.Language,
		Threads:       cfg.Threads,
		TranslateToEn: cfg.Translate,
		BeamSize:      cfg.BeamSize,
		InitialPrompt: cfg.InitialPrompt,
		MaxSamples:    cfg.MaxSeconds * audioconv.SampleRate,
	}
}

type Generator interface {
	assistant.Generator
	assistant.ModelLister
}

func NewGenerator(cfg config.GenerationConfig, httpClient *http.Client, retry fault.RetryConfig) Generator {
	if cfg.Provider == "openai" {
		return gpt.NewClient(cfg.APIKey, cfg.Model, cfg.BaseURL, httpClient, max(retry.MaxAttempts-1, 0))
	}
	return gemini.NewClient(cfg.APIKey, cfg.Model, cfg.BaseURL, httpClient, retry)
}

// Missing mail or calendar credentials disable the feature, not the bot.
// Each request then fails with the construction error.

type unavailableMailer struct{ err error }

func (u unavailableMailer) Send(context.Context, session.Email) error { return u.err }

type unavailableCalendar struct{ err error }

func (u unavailableCalendar) CreateEvent(context.Context, assistant.Event) (string, error) {
	return "", u.err
}

func NewMailer(cfg config.MailConfig, logger *slog.Logger) assistant.Mailer {
	m, err := mail.NewSender(cfg, logger)
	if err != nil {
		logger.Warn("Email sending disabled", "err", err)
		return unavailableMailer{err}
	}
	return m
}

func NewCalendar(ctx context.Context, cfg config.CalendarConfig, httpClient *http.Client, logger *slog.Logger) assistant.Calendar {
	c, err := calendar.New(ctx, cfg, httpClient, logger)
	if err != nil {
		logger.Warn("Calendar disabled", "err", err)
		return unavailableCalendar{err}
	}
	return c
}

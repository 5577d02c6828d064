package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"aide/internal/fault"
)

type Config struct {
	Telegram   TelegramConfig   `yaml:"telegram"`
	Generation GenerationConfig `yaml:"generation"`
	Speech     SpeechConfig     `yaml:"speech"`
	Mail       MailConfig       `yaml:"mail"`
	Calendar   CalendarConfig   `yaml:"calendar"`
	Session    SessionConfig    `yaml:"session"`
	Voice      VoiceConfig      `yaml:"voice"`
	Assistant  AssistantConfig  `yaml:"assistant"`
	Chat       ChatConfig       `yaml:"chat"`
	Control    ControlConfig    `yaml:"control"`
	Proxy      ProxyConfig      `yaml:"proxy"`
	Retry      RetryConfig      `yaml:"retry"`
	Log        LogConfig        `yaml:"log"`
}

type TelegramConfig struct {
	Token        string        `yaml:"token"`
	PollTimeout  time.Duration `yaml:"poll_timeout"`
	AllowedUsers []int64       `yaml:"allowed_users"`
}

type GenerationConfig struct {
	Provider string        `yaml:"provider"` // gemini | openai
	APIKey   string        `yaml:"api_key"`
	Model    string        `yaml:"model"`
	BaseURL  string        `yaml:"base_url"`
	Timeout  time.Duration `yaml:"timeout"`
}

type SpeechConfig struct {
	Backend       string `yaml:"backend"` // whisper | openai
	ModelPath     string `yaml:"model_path"`
	Language      string `yaml:"language"`
	Threads       int    `yaml:"threads"`
	Translate     bool   `yaml:"translate"`
	BeamSize      int    `yaml:"beam_size"`
	InitialPrompt string `yaml:"initial_prompt"`
	// MaxSeconds truncates longer voice notes before local inference.
	MaxSeconds int    `yaml:"max_seconds"`
	APIKey     string `yaml:"api_key"`
	APIModel   string `yaml:"api_model"`
	BaseURL    string `yaml:"base_url"`
}

type MailConfig struct {
	Host        string        `yaml:"host"`
	Port        int           `yaml:"port"`
	Address     string        `yaml:"address"`
	Password    string        `yaml:"password"`
	ImplicitTLS bool          `yaml:"implicit_tls"`
	Timeout     time.Duration `yaml:"timeout"`
}

type CalendarConfig struct {
	CredentialsFile string        `yaml:"credentials_file"`
	TokenFile       string        `yaml:"token_file"`
	CalendarID      string        `yaml:"calendar_id"`
	TimeZone        string        `yaml:"time_zone"`
	EventDuration   time.Duration `yaml:"event_duration"`
}

type SessionConfig struct {
	Backend       string        `yaml:"backend"` // memory | sqlite
	Path          string        `yaml:"path"`
	TTL           time.Duration `yaml:"ttl"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

type VoiceConfig struct {
	SpoolDir string `yaml:"spool_dir"`
	MaxBytes int64  `yaml:"max_bytes"`
}

type AssistantConfig struct {
	TurnTimeout time.Duration `yaml:"turn_timeout"`
}

type ChatConfig struct {
	Addr string `yaml:"addr"`
	// Token is the shared secret web clients present as a bearer token or
	// ?token= query parameter.
	Token string `yaml:"token"`
	// AllowedOrigins lists browser origins besides the server's own host.
	AllowedOrigins []string `yaml:"allowed_origins"`
	// MaxFrameBytes caps a single websocket frame, voice audio included.
	MaxFrameBytes int64 `yaml:"max_frame_bytes"`
}

type ControlConfig struct {
	Socket string `yaml:"socket"`
}

type ProxyConfig struct {
	Socks string `yaml:"socks"`
}

type RetryConfig struct {
	Attempts     int           `yaml:"attempts"`
	InitialDelay time.Duration `yaml:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads the optional .env file, then the optional YAML config at path
// (with ${VAR} expansion), then fills defaults and unset secrets from the
// environment. A missing config file is not an error.
func Load(path, envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("loading env file: %w", err)
		}
	}

	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("reading config file: %w", err)
		default:
			expanded := os.ExpandEnv(string(data))
			if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
				return nil, fmt.Errorf("parsing config: %w", err)
			}
		}
	}

	cfg.applyEnv()
	cfg.setDefaults()

	return &cfg, nil
}

func (c *Config) applyEnv() {
	setIfEmpty(&c.Telegram.Token, "TELEGRAM_BOT_TOKEN")
	setIfEmpty(&c.Mail.Address, "EMAIL_ADDRESS")
	setIfEmpty(&c.Mail.Password, "EMAIL_PASSWORD")
	setIfEmpty(&c.Chat.Token, "AIDE_CHAT_TOKEN")

	if c.Generation.Provider == "openai" {
		setIfEmpty(&c.Generation.APIKey, "OPENAI_API_KEY")
	} else {
		setIfEmpty(&c.Generation.APIKey, "GEMINI_API_KEY")
	}
	setIfEmpty(&c.Speech.APIKey, "OPENAI_API_KEY")
}

func setIfEmpty(dst *string, env string) {
	if *dst == "" {
		*dst = os.Getenv(env)
	}
}

func (c *Config) setDefaults() {
	if c.Telegram.PollTimeout == 0 {
		c.Telegram.PollTimeout = 60 * time.Second
	}
	if c.Generation.Provider == "" {
		c.Generation.Provider = "gemini"
	}
	if c.Generation.Model == "" {
		switch c.Generation.Provider {
		case "openai":
			c.Generation.Model = "gpt-5-nano"
		default:
			c.Generation.Model = "gemini-2.0-flash"
		}
	}
	if c.Generation.Timeout == 0 {
		c.Generation.Timeout = 60 * time.Second
	}
	if c.Speech.Backend == "" {
		c.Speech.Backend = "whisper"
	}
	if c.Speech.ModelPath == "" {
		c.Speech.ModelPath = "models/ggml-base.bin"
	}
	if c.Speech.Language == "" {
		c.Speech.Language = "auto"
	}
	if c.Speech.MaxSeconds == 0 {
		c.Speech.MaxSeconds = 300
	}
	if c.Speech.APIModel == "" {
		c.Speech.APIModel = "whisper-1"
	}
	if c.Mail.Host == "" {
		c.Mail.Host = "smtp.gmail.com"
	}
	if c.Mail.Port == 0 {
		c.Mail.Port = 465
	}
	if c.Mail.Port == 465 {
		c.Mail.ImplicitTLS = true
	}
	if c.Mail.Timeout == 0 {
		c.Mail.Timeout = 30 * time.Second
	}
	if c.Calendar.CredentialsFile == "" {
		c.Calendar.CredentialsFile = "credentials.json"
	}
	if c.Calendar.TokenFile == "" {
		c.Calendar.TokenFile = "token.json"
	}
	if c.Calendar.CalendarID == "" {
		c.Calendar.CalendarID = "primary"
	}
	if c.Calendar.TimeZone == "" {
		c.Calendar.TimeZone = "UTC"
	}
	if c.Calendar.EventDuration == 0 {
		c.Calendar.EventDuration = time.Hour
	}
	if c.Session.Backend == "" {
		c.Session.Backend = "memory"
	}
	if c.Session.Path == "" {
		c.Session.Path = filepath.Join("data", "sessions.db")
	}
	if c.Session.TTL == 0 {
		c.Session.TTL = 30 * time.Minute
	}
	if c.Session.SweepInterval == 0 {
		c.Session.SweepInterval = 5 * time.Minute
	}
	if c.Voice.SpoolDir == "" {
		c.Voice.SpoolDir = filepath.Join(os.TempDir(), "aide")
	}
	if c.Voice.MaxBytes == 0 {
		c.Voice.MaxBytes = 20 << 20
	}
	if c.Chat.MaxFrameBytes == 0 {
		// base64 inflates the audio by a third
		c.Chat.MaxFrameBytes = c.Voice.MaxBytes*4/3 + 64<<10
	}
	if c.Assistant.TurnTimeout == 0 {
		c.Assistant.TurnTimeout = 2 * time.Minute
	}
	if c.Control.Socket == "" {
		c.Control.Socket = "/tmp/aide.sock"
	}
	if c.Retry.Attempts == 0 {
		c.Retry.Attempts = 3
	}
	if c.Retry.InitialDelay == 0 {
		c.Retry.InitialDelay = 200 * time.Millisecond
	}
	if c.Retry.MaxDelay == 0 {
		c.Retry.MaxDelay = 5 * time.Second
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Validate reports configuration that makes the bot unable to start.
// Missing service credentials are not fatal here: the affected feature fails
// per request with a configuration error instead.
func (c *Config) Validate() error {
	if c.Telegram.Token == "" && c.Chat.Addr == "" {
		return fault.Fatalf("TELEGRAM_BOT_TOKEN not set and web chat disabled: nothing to serve")
	}
	if c.Chat.Addr != "" && c.Chat.Token == "" {
		return fault.Fatalf("chat.addr is set but chat.token (AIDE_CHAT_TOKEN) is empty")
	}
	switch c.Generation.Provider {
	case "gemini", "openai":
	default:
		return fault.Fatalf("unknown generation provider %q", c.Generation.Provider)
	}
	switch c.Speech.Backend {
	case "whisper", "openai":
	default:
		return fault.Fatalf("unknown speech backend %q", c.Speech.Backend)
	}
	switch c.Session.Backend {
	case "memory", "sqlite":
	default:
		return fault.Fatalf("unknown session backend %q", c.Session.Backend)
	}
	if c.Speech.BeamSize < 0 || c.Speech.MaxSeconds < 0 {
		return fault.Fatalf("speech.beam_size and speech.max_seconds must not be negative")
	}
	if c.Calendar.EventDuration < 0 {
		return fault.Fatalf("calendar.event_duration must not be negative")
	}
	if _, err := time.LoadLocation(c.Calendar.TimeZone); err != nil {
		return fault.Fatalf("calendar.time_zone %q: %v", c.Calendar.TimeZone, err)
	}
	return nil
}

// Package telegram connects the assistant to the Telegram Bot API by long
// polling.
package telegram

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"aide/internal/assistant"
	"aide/internal/fault"
)

// API is the subset of *tgbotapi.BotAPI the bot uses.
type API interface {
	GetUpdates(config tgbotapi.UpdateConfig) ([]tgbotapi.Update, error)
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
}

type Handler interface {
	HandleCommand(ctx context.Context, userID, command string, out assistant.Replier) error
	HandleText(ctx context.Context, userID, text string, out assistant.Replier) error
	HandleVoice(ctx context.Context, userID string, audio io.Reader, ext string, out assistant.Replier) error
}

type Options struct {
	PollTimeout  time.Duration
	AllowedUsers []int64
	MaxBytes     int64
	// HTTPClient downloads voice files. Defaults to http.DefaultClient.
	HTTPClient *http.Client
	Logger     *slog.Logger
}

type Bot struct {
	api      API
	handler  Handler
	http     *http.Client
	allowed  map[int64]bool
	maxBytes int64
	timeout  int
	logger   *slog.Logger
}

// Connect logs in with token and returns the API handle.
func Connect(token string, httpClient *http.Client) (*tgbotapi.BotAPI, error) {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	api, err := tgbotapi.NewBotAPIWithClient(token, tgbotapi.APIEndpoint, httpClient)
	if err != nil {
		return nil, fault.Fatal("telegram login", err)
	}
	return api, nil
}

func NewBot(api API, handler Handler, opt Options) *Bot {
	b := &Bot{
		api:      api,
		handler:  handler,
		http:     opt.HTTPClient,
		maxBytes: opt.MaxBytes,
		timeout:  int(opt.PollTimeout / time.Second),
		logger:   opt.Logger,
	}
	if b.http == nil {
		b.http = http.DefaultClient
	}
	if b.logger == nil {
		b.logger = slog.Default()
	}
	if b.timeout <= 0 {
		b.timeout = 30
	}
	if len(opt.AllowedUsers) > 0 {
		b.allowed = make(map[int64]bool, len(opt.AllowedUsers))
		for _, id := range opt.AllowedUsers {
			b.allowed[id] = true
		}
	}
	return b
}

// Run polls for updates until ctx is cancelled. Updates are handled one at a
// time in arrival order.
func (b *Bot) Run(ctx context.Context) error {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = b.timeout
	cfg.AllowedUpdates = []string{"message"}

	b.logger.Info("telegram polling started", "timeout", b.timeout)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		updates, err := b.api.GetUpdates(cfg)
		if err != nil {
			b.logger.Warn("getting updates failed, retrying", "err", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(3 * time.Second):
			}
			continue
		}

		for _, u := range updates {
			if u.UpdateID >= cfg.Offset {
				cfg.Offset = u.UpdateID + 1
			}
			if u.Message != nil {
				b.handle(ctx, u.Message)
			}
		}
	}
}

func (b *Bot) handle(ctx context.Context, m *tgbotapi.Message) {
	if m.From == nil {
		return
	}
	if b.allowed != nil && !b.allowed[m.From.ID] {
		b.logger.Warn("ignoring message from unlisted user", "user", m.From.ID)
		return
	}

	userID := strconv.FormatInt(m.From.ID, 10)
	out := &chatReplier{bot: b, chatID: m.Chat.ID}
	log := b.logger.With("user", userID, "chat", m.Chat.ID)

	var err error
	switch {
	case m.IsCommand():
		err = b.handler.HandleCommand(ctx, userID, m.Command(), out)
	case m.Voice != nil:
		b.typing(m.Chat.ID)
		err = b.handleAudio(ctx, userID, m.Voice.FileID, int64(m.Voice.FileSize), ".ogg", out)
	case m.Audio != nil:
		b.typing(m.Chat.ID)
		err = b.handleAudio(ctx, userID, m.Audio.FileID, int64(m.Audio.FileSize), audioExt(m.Audio), out)
	case m.Text != "":
		b.typing(m.Chat.ID)
		err = b.handler.HandleText(ctx, userID, m.Text, out)
	default:
		return
	}
	if err != nil {
		log.Error("handling message failed", "err", err)
	}
}

func (b *Bot) handleAudio(ctx context.Context, userID, fileID string, size int64, ext string, out assistant.Replier) error {
	if b.maxBytes > 0 && size > b.maxBytes {
		return out.Reply(ctx, fmt.Sprintf("❌ Voice message is too large (%d bytes, limit %d).", size, b.maxBytes))
	}

	body, err := b.download(ctx, fileID)
	if err != nil {
		b.logger.Error("downloading voice failed", "user", userID, "err", err)
		return out.Reply(ctx, fmt.Sprintf("❌ Error processing voice message: %v", err))
	}
	defer body.Close()

	return b.handler.HandleVoice(ctx, userID, body, ext, out)
}

func (b *Bot) download(ctx context.Context, fileID string) (io.ReadCloser, error) {
	url, err := b.api.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fault.Transient("telegram getFile", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	resp, err := b.http.Do(req)
	if err != nil {
		return nil, fault.Transient("telegram download", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fault.FromStatus("telegram download", resp.StatusCode, resp.Status)
	}
	return resp.Body, nil
}

func (b *Bot) typing(chatID int64) {
	if _, err := b.api.Request(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)); err != nil {
		b.logger.Debug("sending chat action failed", "err", err)
	}
}

func audioExt(a *tgbotapi.Audio) string {
	if ext := path.Ext(a.FileName); ext != "" {
		return ext
	}
	return audioMIME[strings.ToLower(a.MimeType)]
}

var audioMIME = map[string]string{
	"audio/mpeg":  ".mp3",
	"audio/mp3":   ".mp3",
	"audio/ogg":   ".ogg",
	"audio/opus":  ".ogg",
	"audio/wav":   ".wav",
	"audio/x-wav": ".wav",
	"audio/wave":  ".wav",
}

type chatReplier struct {
	bot    *Bot
	chatID int64
}

func (r *chatReplier) Reply(_ context.Context, text string) error {
	for _, part := range Chunk(text, MaxMessageLength) {
		if _, err := r.bot.api.Send(tgbotapi.NewMessage(r.chatID, part)); err != nil {
			return fault.Transient("telegram send", err)
		}
	}
	return nil
}

// MaxMessageLength is the Telegram limit for a single text message.
const MaxMessageLength = 4096

// Chunk splits text into pieces of at most limit characters, preferring line
// boundaries.
func Chunk(text string, limit int) []string {
	if len([]rune(text)) <= limit {
		return []string{text}
	}

	var (
		chunks []string
		cur    strings.Builder
		n      int
	)
	flush := func() {
		if n > 0 {
			chunks = append(chunks, cur.String())
			cur.Reset()
			n = 0
		}
	}

	for _, line := range strings.SplitAfter(text, "\n") {
		runes := []rune(line)
		if n+len(runes) > limit {
			flush()
		}
		for len(runes) > limit {
			chunks = append(chunks, string(runes[:limit]))
			runes = runes[limit:]
		}
		cur.WriteString(string(runes))
		n += len(runes)
	}
	flush()
	return chunks
}

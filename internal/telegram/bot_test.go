package telegram

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"aide/internal/assistant"
)

type fakeAPI struct {
	mu      sync.Mutex
	batches [][]tgbotapi.Update
	offsets []int
	sent    []string
	fileURL string
	cancel  context.CancelFunc
}

func (f *fakeAPI) GetUpdates(cfg tgbotapi.UpdateConfig) ([]tgbotapi.Update, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.offsets = append(f.offsets, cfg.Offset)
	if len(f.batches) == 0 {
		f.cancel()
		return nil, nil
	}
	b := f.batches[0]
	f.batches = f.batches[1:]
	return b, nil
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, m.Text)
	}
	return tgbotapi.Message{}, nil
}

func (f *fakeAPI) Request(tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeAPI) GetFileDirectURL(string) (string, error) {
	if f.fileURL == "" {
		return "", errors.New("no file")
	}
	return f.fileURL, nil
}

type call struct {
	kind, user, arg, ext string
}

type fakeHandler struct {
	calls []call
	reply string
}

func (h *fakeHandler) HandleCommand(ctx context.Context, userID, command string, out assistant.Replier) error {
	h.calls = append(h.calls, call{kind: "command", user: userID, arg: command})
	return out.Reply(ctx, h.reply)
}

func (h *fakeHandler) HandleText(ctx context.Context, userID, text string, out assistant.Replier) error {
	h.calls = append(h.calls, call{kind: "text", user: userID, arg: text})
	return out.Reply(ctx, h.reply)
}

func (h *fakeHandler) HandleVoice(ctx context.Context, userID string, audio io.Reader, ext string, out assistant.Replier) error {
	b, err := io.ReadAll(audio)
	if err != nil {
		return err
	}
	h.calls = append(h.calls, call{kind: "voice", user: userID, arg: string(b), ext: ext})
	return out.Reply(ctx, h.reply)
}

func message(updateID int, userID int64, m tgbotapi.Message) tgbotapi.Update {
	m.From = &tgbotapi.User{ID: userID}
	m.Chat = &tgbotapi.Chat{ID: userID}
	return tgbotapi.Update{UpdateID: updateID, Message: &m}
}

func command(name string) tgbotapi.Message {
	text := "/" + name
	return tgbotapi.Message{
		Text:     text,
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(text)}},
	}
}

func runBot(t *testing.T, api *fakeAPI, h Handler, opt Options) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	api.cancel = cancel

	if err := NewBot(api, h, opt).Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run: %v", err)
	}
}

func TestBot_DispatchesInOrder(t *testing.T) {
	audio := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OggS-voice-bytes"))
	}))
	defer audio.Close()

	api := &fakeAPI{
		fileURL: audio.URL + "/file/voice.oga",
		batches: [][]tgbotapi.Update{
			{
				message(10, 42, command("email")),
				message(11, 42, tgbotapi.Message{Text: "bob@example.com\nLunch\nFriday"}),
			},
			{
				message(12, 42, tgbotapi.Message{Voice: &tgbotapi.Voice{FileID: "v1", FileSize: 16}}),
			},
		},
	}
	h := &fakeHandler{reply: "ok"}

	runBot(t, api, h, Options{HTTPClient: audio.Client()})

	want := []call{
		{kind: "command", user: "42", arg: "email"},
		{kind: "text", user: "42", arg: "bob@example.com\nLunch\nFriday"},
		{kind: "voice", user: "42", arg: "OggS-voice-bytes", ext: ".ogg"},
	}
	if len(h.calls) != len(want) {
		t.Fatalf("calls: got %+v", h.calls)
	}
	for i := range want {
		if h.calls[i] != want[i] {
			t.Errorf("call %d: got %+v, want %+v", i, h.calls[i], want[i])
		}
	}
	if len(api.sent) != 3 {
		t.Errorf("sent %d replies, want 3", len(api.sent))
	}
	if got := api.offsets; len(got) < 3 || got[0] != 0 || got[1] != 12 || got[2] != 13 {
		t.Errorf("offsets: %v", got)
	}
}

func TestBot_AllowList(t *testing.T) {
	api := &fakeAPI{batches: [][]tgbotapi.Update{{
		message(1, 7, tgbotapi.Message{Text: "hi"}),
		message(2, 8, tgbotapi.Message{Text: "hi"}),
	}}}
	h := &fakeHandler{reply: "ok"}

	runBot(t, api, h, Options{AllowedUsers: []int64{8}})

	if len(h.calls) != 1 || h.calls[0].user != "8" {
		t.Errorf("calls: %+v", h.calls)
	}
}

func TestBot_RefusesOversizedVoice(t *testing.T) {
	api := &fakeAPI{batches: [][]tgbotapi.Update{{
		message(1, 7, tgbotapi.Message{Voice: &tgbotapi.Voice{FileID: "v1", FileSize: 5000}}),
	}}}
	h := &fakeHandler{}

	runBot(t, api, h, Options{MaxBytes: 1000})

	if len(h.calls) != 0 {
		t.Errorf("handler should not run: %+v", h.calls)
	}
	if len(api.sent) != 1 || !strings.Contains(api.sent[0], "too large") {
		t.Errorf("replies: %q", api.sent)
	}
}

func TestBot_LongReplyIsChunked(t *testing.T) {
	api := &fakeAPI{batches: [][]tgbotapi.Update{{message(1, 7, command("models"))}}}
	h := &fakeHandler{reply: strings.Repeat(strings.Repeat("x", 99)+"\n", 100)}

	runBot(t, api, h, Options{})

	if len(api.sent) != 3 {
		t.Fatalf("sent %d messages, want 3", len(api.sent))
	}
	if strings.Join(api.sent, "") != h.reply {
		t.Error("chunks do not reassemble the reply")
	}
}

func TestChunk(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		limit int
		want  []string
	}{
		{"short", "hello", 10, []string{"hello"}},
		{"line boundaries", "aaa\nbbb\nccc", 8, []string{"aaa\nbbb\n", "ccc"}},
		{"long line split", "abcdefghij", 4, []string{"abcd", "efgh", "ij"}},
		{"runes", "ééééé", 2, []string{"éé", "éé", "é"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Chunk(tt.text, tt.limit)
			if len(got) != len(tt.want) {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("chunk %d: got %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestAudioExt(t *testing.T) {
	if got := audioExt(&tgbotapi.Audio{FileName: "song.MP3"}); got != ".MP3" {
		t.Errorf("file name: got %q", got)
	}
	if got := audioExt(&tgbotapi.Audio{MimeType: "audio/x-wav"}); got != ".wav" {
		t.Errorf("mime type: got %q", got)
	}
	if got := audioExt(&tgbotapi.Audio{}); got != "" {
		t.Errorf("empty: got %q", got)
	}
}

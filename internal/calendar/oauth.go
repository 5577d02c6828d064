package calendar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gcal "google.golang.org/api/calendar/v3"

	"aide/internal/fault"
)

// LoadOAuthConfig reads the installed-app client secrets downloaded from the
// Google Cloud console.
func LoadOAuthConfig(credentialsFile string) (*oauth2.Config, error) {
	b, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fault.Fatal("calendar credentials", err)
	}
	cfg, err := google.ConfigFromJSON(b, gcal.CalendarEventsScope)
	if err != nil {
		return nil, fault.Fatal("calendar credentials", err)
	}
	return cfg, nil
}

func LoadToken(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fault.Fatalf("calendar: no token at %s, run `aide-ctl calendar-auth` first", path)
		}
		return nil, fault.Fatal("calendar token", err)
	}
	defer f.Close()

	var tok oauth2.Token
	if err := json.NewDecoder(f).Decode(&tok); err != nil {
		return nil, fault.Fatal("calendar token", fmt.Errorf("decoding %s: %w", path, err))
	}
	return &tok, nil
}

func SaveToken(path string, tok *oauth2.Token) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("creating token dir: %w", err)
		}
	}

	tmp := path + ".tmp"
	b, err := json.MarshalIndent(tok, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding token: %w", err)
	}
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return fmt.Errorf("writing token: %w", err)
	}
	return os.Rename(tmp, path)
}

// AuthURL is the consent page the operator opens once to authorise the bot.
func AuthURL(cfg *oauth2.Config) string {
	return cfg.AuthCodeURL("aide", oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// Exchange trades the code shown after consent for a token and stores it.
func Exchange(ctx context.Context, cfg *oauth2.Config, code, tokenFile string) error {
	tok, err := cfg.Exchange(ctx, code)
	if err != nil {
		return fault.Fatal("calendar auth", err)
	}
	return SaveToken(tokenFile, tok)
}

// savingSource writes refreshed tokens back to disk so a restart does not
// need a new consent.
type savingSource struct {
	mu     sync.Mutex
	src    oauth2.TokenSource
	path   string
	access string
	onErr  func(error)
}

func newSavingSource(src oauth2.TokenSource, path string, initial *oauth2.Token, onErr func(error)) *savingSource {
	return &savingSource{src: src, path: path, access: initial.AccessToken, onErr: onErr}
}

func (s *savingSource) Token() (*oauth2.Token, error) {
	tok, err := s.src.Token()
	if err != nil {
		return nil, fault.Fatal("calendar token refresh", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if tok.AccessToken != s.access {
		s.access = tok.AccessToken
		if err := SaveToken(s.path, tok); err != nil && s.onErr != nil {
			s.onErr(err)
		}
	}
	return tok, nil
}

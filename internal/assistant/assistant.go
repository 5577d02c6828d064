// Package assistant drives a conversation with one user at a time: the email
// drafting flow, voice scheduling and the model listing command.
package assistant

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"aide/internal/fault"
	"aide/internal/session"
)

type Deps struct {
	Sessions    session.Store
	Spool       Spool
	Transcriber Transcriber
	Generator   Generator
	Models      ModelLister
	Mailer      Mailer
	Calendar    Calendar
	Events      EventExtractor
	Logger      *slog.Logger
	// TurnTimeout bounds a single user turn including every external call.
	TurnTimeout time.Duration
}

type Assistant struct {
	Deps
	locks *userLocks
}

func New(d Deps) *Assistant {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	return &Assistant{Deps: d, locks: newUserLocks()}
}

// HandleCommand runs a slash command. command is given without the slash.
func (a *Assistant) HandleCommand(ctx context.Context, userID, command string, out Replier) error {
	ctx, done := a.begin(ctx, userID)
	defer done()

	log := a.Logger.With("user", userID, "command", command)

	switch strings.ToLower(strings.TrimPrefix(command, "/")) {
	case "start":
		return out.Reply(ctx, msgWelcome)

	case "email":
		s := session.New(userID)
		s.StartEmail()
		if err := a.Sessions.Put(ctx, s); err != nil {
			return a.storeFailure(ctx, out, err)
		}
		log.Info("email flow started")
		return out.Reply(ctx, msgEmailInstructions)

	case "schedule":
		s := session.New(userID)
		s.StartSchedule()
		if err := a.Sessions.Put(ctx, s); err != nil {
			return a.storeFailure(ctx, out, err)
		}
		log.Info("schedule mode started")
		return out.Reply(ctx, msgScheduleInstructions)

	case "cancel":
		if err := a.Sessions.Delete(ctx, userID); err != nil {
			return a.storeFailure(ctx, out, err)
		}
		return out.Reply(ctx, msgCancelled)

	case "models":
		models, err := a.Models.ListModels(ctx)
		if err != nil {
			log.Error("listing models failed", "err", err, "kind", fault.KindOf(err))
			return out.Reply(ctx, failure("Error listing models", err))
		}
		return out.Reply(ctx, formatModels(models))

	default:
		return out.Reply(ctx, msgIdle)
	}
}

// HandleText routes a plain text message according to the user's mode.
func (a *Assistant) HandleText(ctx context.Context, userID, text string, out Replier) error {
	ctx, done := a.begin(ctx, userID)
	defer done()

	s, err := a.Sessions.Get(ctx, userID)
	if err != nil {
		return a.storeFailure(ctx, out, err)
	}

	switch s.Mode {
	case session.ModeEmail:
		return a.emailTurn(ctx, s, text, out)
	case session.ModeSchedule:
		return out.Reply(ctx, msgScheduleNeedsVoice)
	default:
		return out.Reply(ctx, msgIdle)
	}
}

// HandleVoice spools audio, transcribes it and feeds the transcription into
// the user's current mode. ext is the container hint, e.g. ".ogg".
func (a *Assistant) HandleVoice(ctx context.Context, userID string, audio io.Reader, ext string, out Replier) error {
	ctx, done := a.begin(ctx, userID)
	defer done()

	log := a.Logger.With("user", userID)

	f, err := a.Spool.Write(audio, ext)
	if err != nil {
		log.Warn("spooling voice failed", "err", err)
		return out.Reply(ctx, failure("Error processing voice message", err))
	}
	defer func() {
		if err := f.Remove(); err != nil {
			log.Warn("removing voice file failed", "path", f.Path, "err", err)
		}
	}()

	start := time.Now()
	text, err := a.Transcriber.Transcribe(ctx, f.Path)
	if err != nil {
		log.Error("transcription failed", "err", err, "kind", fault.KindOf(err))
		return out.Reply(ctx, failure("Error transcribing voice message", err))
	}
	text = strings.TrimSpace(text)
	log.Info("voice transcribed", "bytes", f.Size, "chars", len(text), "took", time.Since(start))
	if text == "" {
		return out.Reply(ctx, msgNothingHeard)
	}

	s, err := a.Sessions.Get(ctx, userID)
	if err != nil {
		return a.storeFailure(ctx, out, err)
	}

	switch s.Mode {
	case session.ModeEmail:
		return a.emailTurn(ctx, s, text, out)
	case session.ModeSchedule:
		return a.scheduleTurn(ctx, text, out)
	default:
		return out.Reply(ctx, "📝 Transcription:\n"+text)
	}
}

// begin serializes turns per user and applies the turn timeout.
func (a *Assistant) begin(ctx context.Context, userID string) (context.Context, func()) {
	unlock := a.locks.lock(userID)
	cancel := context.CancelFunc(func() {})
	if a.TurnTimeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, a.TurnTimeout)
	}
	return ctx, func() {
		cancel()
		unlock()
	}
}

func (a *Assistant) storeFailure(ctx context.Context, out Replier, err error) error {
	a.Logger.Error("session store failed", "err", err)
	if rerr := out.Reply(ctx, failure("Something went wrong", err)); rerr != nil {
		return rerr
	}
	return fmt.Errorf("session store: %w", err)
}

// userLocks is a keyed mutex. Entries are dropped once nobody holds or waits
// for them.
type userLocks struct {
	mu sync.Mutex
	m  map[string]*userLock
}

type userLock struct {
	mu   sync.Mutex
	refs int
}

func newUserLocks() *userLocks {
	return &userLocks{m: make(map[string]*userLock)}
}

func (l *userLocks) lock(key string) func() {
	l.mu.Lock()
	e, ok := l.m[key]
	if !ok {
		e = &userLock{}
		l.m[key] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		l.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(l.m, key)
		}
		l.mu.Unlock()
	}
}

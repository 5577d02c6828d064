package assistant

import (
	"context"
	"io"
	"time"

	"aide/internal/session"
	"aide/internal/spool"
)

// Replier delivers a message back to the user who sent the current input.
type Replier interface {
	Reply(ctx context.Context, text string) error
}

type ReplierFunc func(ctx context.Context, text string) error

func (f ReplierFunc) Reply(ctx context.Context, text string) error { return f(ctx, text) }

type Transcriber interface {
	// Transcribe returns the text spoken in the audio file at path.
	Transcribe(ctx context.Context, path string) (string, error)
}

type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type ModelInfo struct {
	Name    string
	Methods []string
}

type ModelLister interface {
	ListModels(ctx context.Context) ([]ModelInfo, error)
}

type Mailer interface {
	Send(ctx context.Context, email session.Email) error
}

type Event struct {
	Title string
	Start time.Time
	End   time.Time
}

type Calendar interface {
	// CreateEvent inserts ev and returns a link to it.
	CreateEvent(ctx context.Context, ev Event) (string, error)
}

type EventExtractor interface {
	Extract(ctx context.Context, transcript string) (Event, error)
}

type Spool interface {
	Write(r io.Reader, ext string) (*spool.File, error)
}

// Package schedule turns a spoken request into a calendar event.
package schedule

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"aide/internal/assistant"
	"aide/internal/fault"
)

const extractPrompt = `Extract a single calendar event from the request below.
The current time is %s (time zone %s).
Reply with JSON only, no prose and no code fences, in this exact shape:
{"title": "...", "start": "RFC 3339 timestamp", "end": "RFC 3339 timestamp"}
If no end time is mentioned leave "end" empty. If no date or time is mentioned use the current time.

Request: %s`

// Extractor asks the generation service for the event and falls back to
// Heuristic when the service fails or returns something unusable.
type Extractor struct {
	gen      assistant.Generator
	loc      *time.Location
	duration time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// NewExtractor builds an extractor. gen may be nil, in which case only the
// heuristic is used.
func NewExtractor(gen assistant.Generator, loc *time.Location, duration time.Duration, logger *slog.Logger) *Extractor {
	if loc == nil {
		loc = time.UTC
	}
	if duration <= 0 {
		duration = time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{gen: gen, loc: loc, duration: duration, logger: logger, now: time.Now}
}

func (e *Extractor) Extract(ctx context.Context, transcript string) (assistant.Event, error) {
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		return assistant.Event{}, fault.Inputf("no event details in transcription")
	}

	now := e.now().In(e.loc)
	if e.gen == nil {
		return Heuristic(transcript, now, e.duration), nil
	}

	prompt := fmt.Sprintf(extractPrompt, now.Format(time.RFC3339), e.loc, transcript)
	reply, err := e.gen.Generate(ctx, prompt)
	if err != nil {
		e.logger.Warn("event extraction unavailable, using heuristic", "err", err, "kind", fault.KindOf(err))
		return Heuristic(transcript, now, e.duration), nil
	}

	ev, err := parseEvent(reply, e.loc, e.duration)
	if err != nil {
		e.logger.Warn("unusable extraction reply, using heuristic", "err", err)
		return Heuristic(transcript, now, e.duration), nil
	}
	return ev, nil
}

type eventJSON struct {
	Title string `json:"title"`
	Start string `json:"start"`
	End   string `json:"end"`
}

var fence = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*(.*?)\\s*```$")

func parseEvent(reply string, loc *time.Location, duration time.Duration) (assistant.Event, error) {
	reply = strings.TrimSpace(reply)
	if m := fence.FindStringSubmatch(reply); m != nil {
		reply = m[1]
	}

	var raw eventJSON
	if err := json.Unmarshal([]byte(reply), &raw); err != nil {
		return assistant.Event{}, fmt.Errorf("decoding event: %w", err)
	}

	title := strings.TrimSpace(raw.Title)
	if title == "" {
		return assistant.Event{}, errors.New("event has no title")
	}

	start, err := parseTime(raw.Start, loc)
	if err != nil {
		return assistant.Event{}, fmt.Errorf("start: %w", err)
	}

	end := start.Add(duration)
	if strings.TrimSpace(raw.End) != "" {
		t, err := parseTime(raw.End, loc)
		if err != nil {
			return assistant.Event{}, fmt.Errorf("end: %w", err)
		}
		if t.After(start) {
			end = t
		}
	}

	return assistant.Event{Title: title, Start: start, End: end}, nil
}

// parseTime accepts RFC 3339 and, for replies that drop the offset, a local
// timestamp interpreted in loc.
func parseTime(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.In(loc), nil
	}
	for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02T15:04", "2006-01-02 15:04"} {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised time %q", s)
}

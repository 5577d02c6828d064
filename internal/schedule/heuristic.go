package schedule

import (
	"regexp"
	"strings"
	"time"

	"aide/internal/assistant"
)

var onWord = regexp.MustCompile(`(?i)\bon\b`)

// Heuristic titles the event with the text before the first standalone "on"
// and schedules it at now for duration. It does not parse dates.
func Heuristic(transcript string, now time.Time, duration time.Duration) assistant.Event {
	text := strings.TrimSpace(transcript)
	title := text
	if loc := onWord.FindStringIndex(text); loc != nil {
		if head := strings.TrimSpace(text[:loc[0]]); head != "" {
			title = head
		}
	}
	title = strings.TrimRight(title, " ,.;:")
	if title == "" {
		title = text
	}

	return assistant.Event{Title: title, Start: now, End: now.Add(duration)}
}

package assistant

import (
	"context"
	"fmt"

	"aide/internal/fault"
)

// scheduleTurn turns a transcription into a calendar event. Schedule mode
// stays active so the user can add more events.
func (a *Assistant) scheduleTurn(ctx context.Context, transcript string, out Replier) error {
	ev, err := a.Events.Extract(ctx, transcript)
	if err != nil {
		a.Logger.Warn("event extraction failed", "err", err, "kind", fault.KindOf(err))
		return out.Reply(ctx, failure("Error understanding event", err))
	}

	link, err := a.Calendar.CreateEvent(ctx, ev)
	if err != nil {
		a.Logger.Error("creating event failed", "err", err, "kind", fault.KindOf(err))
		return out.Reply(ctx, failure("Error creating calendar event", err))
	}

	a.Logger.Info("event created", "title", ev.Title, "start", ev.Start)
	return out.Reply(ctx, fmt.Sprintf("✅ Event created: %s\n📅 %s, %s",
		link, ev.Title, ev.Start.Format("Mon 2 Jan 2006 15:04 MST")))
}

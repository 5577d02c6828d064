package ipc

import (
	"context"
	"time"

	"aide/internal/session"
)

// Control answers the admin commands stats, reset <user> and purge against
// the session store.
func Control(store session.Store, started time.Time) HandlerFunc {
	return func(ctx context.Context, req Request) Response {
		switch req.Cmd {
		case "stats":
			n, err := store.Len(ctx)
			if err != nil {
				return Fail("counting sessions: %v", err)
			}
			return Response{OK: true, Data: map[string]any{
				"sessions": n,
				"uptime":   time.Since(started).Round(time.Second).String(),
			}}

		case "reset":
			if len(req.Args) != 1 || req.Args[0] == "" {
				return Fail("usage: reset <user>")
			}
			if err := store.Delete(ctx, req.Args[0]); err != nil {
				return Fail("resetting %s: %v", req.Args[0], err)
			}
			return Response{OK: true, Data: map[string]any{"user": req.Args[0]}}

		case "purge":
			n, err := store.Len(ctx)
			if err != nil {
				return Fail("counting sessions: %v", err)
			}
			if err := store.Purge(ctx); err != nil {
				return Fail("purging sessions: %v", err)
			}
			return Response{OK: true, Data: map[string]any{"removed": n}}

		default:
			return Fail("unknown command %q", req.Cmd)
		}
	}
}

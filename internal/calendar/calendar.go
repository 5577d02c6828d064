// Package calendar inserts events into a Google calendar.
package calendar

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"aide/internal/assistant"
	"aide/internal/config"
	"aide/internal/fault"
)

type Client struct {
	svc        *gcal.Service
	calendarID string
	timeZone   string
	logger     *slog.Logger
}

// New authorises with the stored OAuth token. httpClient is used as the base
// transport, e.g. for a SOCKS proxy, and may be nil.
func New(ctx context.Context, cfg config.CalendarConfig, httpClient *http.Client, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	oc, err := LoadOAuthConfig(cfg.CredentialsFile)
	if err != nil {
		return nil, err
	}
	tok, err := LoadToken(cfg.TokenFile)
	if err != nil {
		return nil, err
	}

	if httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, httpClient)
	}
	src := newSavingSource(oc.TokenSource(ctx, tok), cfg.TokenFile, tok, func(err error) {
		logger.Warn("saving refreshed calendar token failed", "err", err)
	})

	svc, err := gcal.NewService(ctx, option.WithHTTPClient(oauth2.NewClient(ctx, src)))
	if err != nil {
		return nil, fault.Fatal("calendar service", err)
	}
	return NewWithService(svc, cfg.CalendarID, cfg.TimeZone, logger), nil
}

func NewWithService(svc *gcal.Service, calendarID, timeZone string, logger *slog.Logger) *Client {
	if calendarID == "" {
		calendarID = "primary"
	}
	if timeZone == "" {
		timeZone = "UTC"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{svc: svc, calendarID: calendarID, timeZone: timeZone, logger: logger}
}

// CreateEvent inserts ev and returns its HTML link.
func (c *Client) CreateEvent(ctx context.Context, ev assistant.Event) (string, error) {
	if ev.End.Before(ev.Start) {
		return "", fault.Inputf("event ends before it starts")
	}

	created, err := c.svc.Events.Insert(c.calendarID, &gcal.Event{
		Summary: ev.Title,
		Start: &gcal.EventDateTime{
			DateTime: ev.Start.Format(time.RFC3339),
			TimeZone: c.timeZone,
		},
		End: &gcal.EventDateTime{
			DateTime: ev.End.Format(time.RFC3339),
			TimeZone: c.timeZone,
		},
	}).Context(ctx).Do()
	if err != nil {
		return "", classify(err)
	}

	c.logger.Info("calendar event inserted", "id", created.Id, "calendar", c.calendarID)
	return created.HtmlLink, nil
}

func classify(err error) error {
	const op = "calendar insert"
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return fault.FromStatus(op, gerr.Code, gerr.Message)
	}
	if fault.KindOf(err) == fault.KindFatal {
		return err
	}
	if fault.KindOf(err) == fault.KindTransient {
		return fault.Transient(op, err)
	}
	return fault.Service(op, err)
}

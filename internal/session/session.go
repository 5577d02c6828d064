// Package session holds per-user conversation state and the repositories that
// keep it between turns.
package session

import (
	"context"
	"time"
)

type Mode string

const (
	ModeNone     Mode = ""
	ModeEmail    Mode = "email"
	ModeSchedule Mode = "schedule"
)

type Step string

const (
	StepNone            Step = ""
	StepCollectAll      Step = "collect_all"
	StepConfirmOrChange Step = "confirm_or_change"
	StepChangeValue     Step = "change_value"
)

type Field string

const (
	FieldRecipient Field = "recipient"
	FieldSubject   Field = "subject"
	FieldBody      Field = "body"
)

// Fields lists the editable email fields in prompt order.
var Fields = []Field{FieldRecipient, FieldSubject, FieldBody}

// ParseField maps a user token onto a field.
func ParseField(s string) (Field, bool) {
	for _, f := range Fields {
		if string(f) == s {
			return f, true
		}
	}
	return "", false
}

type Email struct {
	Recipient string `json:"recipient"`
	Subject   string `json:"subject"`
	Body      string `json:"body"`
}

type Session struct {
	UserID      string           `json:"user_id"`
	Mode        Mode             `json:"mode"`
	Step        Step             `json:"email_step"`
	Fields      map[Field]string `json:"fields,omitempty"`
	ChangeField Field            `json:"change_field,omitempty"`
	Draft       *Email           `json:"drafted_email,omitempty"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

func New(userID string) *Session {
	return &Session{
		UserID: userID,
		Fields: make(map[Field]string),
	}
}

// Idle reports whether the session carries no conversation state.
func (s *Session) Idle() bool {
	return s.Mode == ModeNone && s.Step == StepNone && s.Draft == nil && len(s.Fields) == 0
}

// StartEmail resets the session into email collection.
func (s *Session) StartEmail() {
	s.Reset()
	s.Mode = ModeEmail
	s.Step = StepCollectAll
}

// StartSchedule resets the session into schedule mode.
func (s *Session) StartSchedule() {
	s.Reset()
	s.Mode = ModeSchedule
}

func (s *Session) Reset() {
	s.Mode = ModeNone
	s.Step = StepNone
	s.Fields = make(map[Field]string)
	s.ChangeField = ""
	s.Draft = nil
}

// Clone returns a deep copy so handlers can mutate state and only commit it
// once the external call succeeded.
func (s *Session) Clone() *Session {
	c := *s
	c.Fields = make(map[Field]string, len(s.Fields))
	for k, v := range s.Fields {
		c.Fields[k] = v
	}
	if s.Draft != nil {
		d := *s.Draft
		c.Draft = &d
	}
	return &c
}

// Store is a session repository keyed by user identity. Get never fails for
// an unknown or expired user: it returns a fresh idle session instead.
type Store interface {
	Get(ctx context.Context, userID string) (*Session, error)
	Put(ctx context.Context, s *Session) error
	Delete(ctx context.Context, userID string) error
	Len(ctx context.Context) (int, error)
	// Sweep drops expired sessions and reports how many were removed.
	Sweep(ctx context.Context) (int, error)
	// Purge drops every session.
	Purge(ctx context.Context) error
	Close() error
}

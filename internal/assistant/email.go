package assistant

import (
	"context"
	"strings"

	"aide/internal/fault"
	"aide/internal/session"
)

// emailTurn advances the email state machine by one user input. State is only
// committed after the external call for the step succeeded.
func (a *Assistant) emailTurn(ctx context.Context, s *session.Session, text string, out Replier) error {
	switch s.Step {
	case session.StepCollectAll:
		in, err := parseEmailInput(text)
		if err != nil {
			return out.Reply(ctx, msgNeedAllFields)
		}
		next := s.Clone()
		next.Fields[session.FieldRecipient] = in.Recipient
		next.Fields[session.FieldSubject] = in.Subject
		next.Fields[session.FieldBody] = in.Body
		return a.draft(ctx, next, out)

	case session.StepConfirmOrChange:
		answer := normalizeAnswer(text)
		switch answer {
		case "yes":
			return a.send(ctx, s, out)
		case "no":
			if err := a.Sessions.Delete(ctx, s.UserID); err != nil {
				return a.storeFailure(ctx, out, err)
			}
			return out.Reply(ctx, msgEmailCancelled)
		}
		f, ok := session.ParseField(answer)
		if !ok {
			return out.Reply(ctx, msgConfirmHint)
		}
		next := s.Clone()
		next.Step = session.StepChangeValue
		next.ChangeField = f
		if err := a.Sessions.Put(ctx, next); err != nil {
			return a.storeFailure(ctx, out, err)
		}
		return out.Reply(ctx, askNewValue(f))

	case session.StepChangeValue:
		f, ok := session.ParseField(string(s.ChangeField))
		if !ok {
			if err := a.Sessions.Delete(ctx, s.UserID); err != nil {
				return a.storeFailure(ctx, out, err)
			}
			return out.Reply(ctx, msgInvalidField)
		}
		value := strings.TrimSpace(text)
		if value == "" {
			return out.Reply(ctx, askNewValue(f))
		}
		next := s.Clone()
		next.Fields[f] = value
		return a.draft(ctx, next, out)

	default:
		if err := a.Sessions.Delete(ctx, s.UserID); err != nil {
			return a.storeFailure(ctx, out, err)
		}
		return out.Reply(ctx, msgBrokenState)
	}
}

// draft generates an email from next's fields. On success next moves to
// confirmation and is stored; on failure the stored session is left as is.
func (a *Assistant) draft(ctx context.Context, next *session.Session, out Replier) error {
	log := a.Logger.With("user", next.UserID)

	body, err := a.Generator.Generate(ctx, draftPrompt(next.Fields))
	if err != nil {
		log.Error("drafting email failed", "err", err, "kind", fault.KindOf(err))
		return out.Reply(ctx, failure("Error drafting email", err))
	}

	next.Draft = &session.Email{
		Recipient: next.Fields[session.FieldRecipient],
		Subject:   next.Fields[session.FieldSubject],
		Body:      body,
	}
	next.Step = session.StepConfirmOrChange
	next.ChangeField = ""
	if err := a.Sessions.Put(ctx, next); err != nil {
		return a.storeFailure(ctx, out, err)
	}

	log.Info("email drafted", "recipient", next.Draft.Recipient)
	return out.Reply(ctx, draftPreview(next.Draft))
}

func (a *Assistant) send(ctx context.Context, s *session.Session, out Replier) error {
	log := a.Logger.With("user", s.UserID)

	if s.Draft == nil {
		if err := a.Sessions.Delete(ctx, s.UserID); err != nil {
			return a.storeFailure(ctx, out, err)
		}
		return out.Reply(ctx, msgBrokenState)
	}

	if err := a.Mailer.Send(ctx, *s.Draft); err != nil {
		log.Error("sending email failed", "err", err, "kind", fault.KindOf(err))
		return out.Reply(ctx, failure("Error sending email", err))
	}

	if err := a.Sessions.Delete(ctx, s.UserID); err != nil {
		return a.storeFailure(ctx, out, err)
	}
	log.Info("email sent", "recipient", s.Draft.Recipient)
	return out.Reply(ctx, msgEmailSent)
}

// normalizeAnswer lowercases a confirmation reply and drops the trailing
// punctuation speech recognition tends to add ("Yes.").
func normalizeAnswer(text string) string {
	answer := strings.TrimRight(strings.TrimSpace(text), ".!?,")
	return strings.ToLower(strings.TrimSpace(answer))
}

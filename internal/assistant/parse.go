package assistant

import (
	"strings"

	"aide/internal/fault"
	"aide/internal/session"
)

// parseEmailInput splits one message into recipient, subject and body
// context. Newlines are tried first, then commas. Segments past the third are
// kept as part of the body context.
func parseEmailInput(text string) (session.Email, error) {
	parts, sep := segments(text, "\n"), "\n"
	if len(parts) < 3 {
		parts, sep = segments(text, ","), ", "
	}
	if len(parts) < 3 {
		return session.Email{}, fault.Inputf("expected recipient, subject and context, got %d part(s)", len(parts))
	}

	return session.Email{
		Recipient: parts[0],
		Subject:   parts[1],
		Body:      strings.Join(parts[2:], sep),
	}, nil
}

func segments(text, sep string) []string {
	var out []string
	for _, p := range strings.Split(text, sep) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

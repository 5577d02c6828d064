package assistant

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"aide/internal/session"
)

const (
	msgWelcome = "Welcome! I can help you with:\n" +
		"1. Drafting emails (use /email)\n" +
		"2. Setting calendar events (use /schedule)\n" +
		"Just send me a voice or text message after using these commands!"

	msgEmailInstructions = "Please provide the following details in one message, separated by a new line or comma:\n" +
		"1. Recipient's email address\n2. Subject\n3. Main points or context for your email\n\n" +
		"Example:\nrecipient@example.com\nSubject of the email\nMain points or context for the email."

	msgNeedAllFields = "Please provide all three details: recipient, subject, and main points/context, " +
		"separated by new lines or commas."

	msgConfirmHint = "Reply with 'yes' to send, 'no' to cancel, or type 'recipient', 'subject', or 'body' to change that field."

	msgScheduleInstructions = "Please send a voice message with your schedule details. Include event title, date, and time."
	msgScheduleNeedsVoice   = "Please use voice for scheduling for now."
	msgIdle                 = "Send /email to draft an email or /schedule to set a calendar event."

	msgEmailCancelled = "❌ Email cancelled. Use /email to start over."
	msgCancelled      = "Cancelled. Send /email or /schedule to begin again."
	msgEmailSent      = "✅ Email has been sent successfully!"
	msgInvalidField   = "Invalid field. Please type /email to start over."
	msgBrokenState    = "Something went wrong. Please start again with /email."
	msgNothingHeard   = "❌ I couldn't make out any words in that voice message. Please try again."

	// Telegram caps messages at 4096 characters; keep a buffer.
	maxModelsReply = 4000
	truncatedNote  = "\n... (Message truncated due to length limit)"
)

func failure(what string, err error) string {
	return fmt.Sprintf("❌ %s: %v", what, err)
}

func draftPrompt(fields map[session.Field]string) string {
	return fmt.Sprintf("Please draft a professional email with the following details:\n"+
		"Recipient: %s\nSubject: %s\nContext/Points to include: %s\n\n"+
		"Please format the email professionally, including appropriate greetings and closings.\n"+
		"Make sure the tone is professional and the content is clear and concise.",
		fields[session.FieldRecipient], fields[session.FieldSubject], fields[session.FieldBody])
}

func draftPreview(d *session.Email) string {
	return fmt.Sprintf("📧 Here's the drafted email:\n\nTo: %s\nSubject: %s\n\n%s\n\n"+
		"Would you like to send this email?\n%s",
		d.Recipient, d.Subject, d.Body, msgConfirmHint)
}

func askNewValue(f session.Field) string {
	return fmt.Sprintf("Please provide the new value for %s:", f)
}

func formatModels(models []ModelInfo) string {
	var sb strings.Builder
	sb.WriteString("🤖 Available Models:\n\n")
	for _, m := range models {
		fmt.Fprintf(&sb, "📌 Model: %s\nMethods: %s\n---\n", m.Name, strings.Join(m.Methods, ", "))
	}
	return truncate(sb.String(), maxModelsReply)
}

// truncate cuts s to at most n characters and appends a note when it does.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n]) + truncatedNote
}

package core

import (
	"strings"
	"unicode"

	"github.com/valter-silva-au/comms-triage/pkg/models"
)

var categoryReplies = map[models.Category]string{
	models.CategoryFinance: "Thank you for your email regarding financial matters. I've received your message and will review the details shortly. I'll get back to you as soon as possible.",
	models.CategoryLegal:   "I've received your message regarding legal matters. This requires careful review, and I'll get back to you shortly after I've had a chance to assess the details.",
	models.CategoryHR:      "Thank you for reaching out regarding HR matters. I've received your message and will review it promptly. I'll be in touch soon with any follow-up.",
	models.CategoryProject: "Thank you for the update regarding the project. I've received your message and will review the details. I'll follow up with you shortly if any action is needed on my part.",
	models.CategoryMeeting: "Thank you for reaching out. I'd be happy to schedule a meeting. Could you please share a few time slots that work well for you? I'll do my best to accommodate.",
	models.CategorySupport: "Thank you for reaching out for support. I've received your message and understand you need assistance with this matter. I'll look into it and get back to you shortly.",
}

// suggestReply drafts reply text for a message that needs one. The
// acknowledgment template is checked against the subject and the
// extracted action items, not the full body, so a long thread quoting an
// old "thanks" does not collapse into a one-liner.
func suggestReply(sender, subject string, category models.Category, actionItems []string) string {
	name := senderName(sender)

	probe := strings.ToLower(subject) + " " + strings.Join(actionItems, " ")
	if matchesAny(probe, safeAcknowledgments) {
		return "Hi " + name + ",\n\nThank you for your message. I've received it and appreciate you reaching out.\n\nBest regards"
	}

	if body, ok := categoryReplies[category]; ok {
		return "Hi " + name + ",\n\n" + body + "\n\nBest regards"
	}

	return "Hi " + name + ",\n\nThank you for your email. I've received your message and will review it shortly. I'll get back to you as soon as possible.\n\nBest regards"
}

// senderName extracts a display name from "Name <addr>" style senders and
// falls back to "there" when no name part is present.
func senderName(sender string) string {
	name := strings.TrimSpace(strings.SplitN(sender, "<", 2)[0])
	if name == "" {
		return "there"
	}
	return capitalize(name)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	r := []rune(strings.ToLower(s))
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

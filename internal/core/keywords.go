package core

import (
	"regexp"

	"github.com/valter-silva-au/comms-triage/pkg/models"
)

// weightedKeyword pairs a lowercase search term with its score contribution.
type weightedKeyword struct {
	term   string
	weight int
}

// priorityKeywords maps message terms to priority weights 1..5. Scoring
// takes the maximum matched weight.
var priorityKeywords = []weightedKeyword{
	// Urgent (5).
	{"urgent", 5}, {"emergency", 5}, {"critical", 5}, {"immediate", 5},
	{"asap", 5}, {"deadline today", 5}, {"now", 5}, {"right away", 5},

	// High (4).
	{"deadline", 4}, {"important", 4}, {"priority", 4}, {"time sensitive", 4},
	{"expiring", 4}, {"expiring soon", 4}, {"last chance", 4}, {"final notice", 4},
	{"overdue", 4}, {"payment due", 4}, {"contract", 4}, {"agreement", 4},
	{"legal", 4}, {"compliance", 4}, {"regulatory", 4}, {"audit", 4},

	// Medium-high (3).
	{"meeting", 3}, {"call", 3}, {"schedule", 3}, {"appointment", 3},
	{"interview", 3}, {"demo", 3}, {"presentation", 3}, {"review", 3},
	{"invoice", 3}, {"quote", 3}, {"proposal", 3}, {"estimate", 3},
	{"project", 3}, {"deliverable", 3}, {"milestone", 3}, {"release", 3},

	// Medium (2).
	{"update", 2}, {"status", 2}, {"progress", 2}, {"report", 2},
	{"question", 2}, {"inquiry", 2}, {"request", 2}, {"help", 2},
	{"support", 2}, {"assistance", 2}, {"guidance", 2}, {"advice", 2},
	{"feedback", 2}, {"input", 2}, {"thoughts", 2}, {"opinion", 2},
	{"discussion", 2}, {"consult", 2}, {"advise", 2}, {"confirm", 2},

	// Low (1).
	{"information", 1}, {"fyi", 1}, {"for your information", 1},
	{"newsletter", 1}, {"announcement", 1}, {"notification", 1},
	{"marketing", 1}, {"promotion", 1}, {"offer", 1},
}

// riskKeywords contribute additively to the 0-100 risk score.
var riskKeywords = []weightedKeyword{
	// Critical (100).
	{"lawsuit", 100}, {"legal action", 100}, {"court", 100}, {"litigation", 100},
	{"breach", 100}, {"violation", 100}, {"penalty", 100}, {"fine", 100},

	// High (75).
	{"complaint", 75}, {"dispute", 75}, {"conflict", 75}, {"escalation", 75},
	{"unhappy", 75}, {"dissatisfied", 75}, {"cancel", 75}, {"termination", 75},
	{"refund", 75}, {"chargeback", 75}, {"money back", 75},

	// Medium (50).
	{"confidential", 50}, {"secret", 50}, {"proprietary", 50}, {"sensitive", 50},
	{"nda", 50}, {"non-disclosure", 50}, {"private", 50},
	{"financial", 50}, {"bank", 50}, {"credit", 50}, {"payment", 50},
	{"salary", 50}, {"compensation", 50}, {"negotiate", 50}, {"bargain", 50},

	// Low (25).
	{"contract", 25}, {"agreement", 25}, {"terms", 25}, {"conditions", 25},
	{"commit", 25}, {"promise", 25}, {"guarantee", 25}, {"deadline", 25},
	{"delivery", 25}, {"shipment", 25}, {"launch", 25}, {"release", 25},
}

// businessCriticalTerms force human review whenever one appears, and each
// match adds 15 risk points.
var businessCriticalTerms = []string{
	"pricing", "price", "cost", "quote", "estimate", "proposal", "bid",
	"contract", "agreement", "nda", "sign", "signature", "execute",
	"commitment", "deliverable", "promise", "guarantee", "warranty",
	"payment", "invoice", "pay", "refund", "billing", "charge",
	"legal", "lawsuit", "attorney", "liability", "indemnify",
	"project", "service", "product", "feature", "specification", "scope",
	"attach", "attachment", "document", "file",
}

// categoryKeywords drives category detection; the first listed category
// wins score ties, so the order is part of the contract.
var categoryKeywords = []struct {
	category models.Category
	terms    []string
}{
	{models.CategoryFinance, []string{"invoice", "payment", "quote", "pricing", "cost", "budget", "financial", "billing"}},
	{models.CategoryLegal, []string{"contract", "agreement", "legal", "nda", "lawsuit", "attorney", "compliance"}},
	{models.CategoryHR, []string{"hiring", "firing", "recruit", "interview", "salary", "employment", "resume", "candidate"}},
	{models.CategoryProject, []string{"project", "deliverable", "milestone", "deadline", "scope", "timeline", "release"}},
	{models.CategoryMeeting, []string{"meeting", "call", "schedule", "appointment", "calendar", "zoom", "teams"}},
	{models.CategorySupport, []string{"help", "support", "issue", "problem", "error", "bug", "fix", "troubleshoot"}},
	{models.CategorySales, []string{"sales", "lead", "prospect", "customer", "client", "opportunity", "deal"}},
	{models.CategoryMarketing, []string{"marketing", "campaign", "promotion", "advertisement", "social media"}},
	{models.CategoryOperations, []string{"operations", "process", "workflow", "procedure", "logistics", "inventory"}},
	{models.CategoryTechnical, []string{"technical", "development", "engineering", "api", "integration", "code"}},
	{models.CategoryCommunication, []string{"update", "announcement", "newsletter", "notification", "fyi", "information"}},
}

// actionPatterns extract request phrases; matches of 5 bytes or fewer are
// noise and dropped.
var actionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`please\s+(\w+)`),
	regexp.MustCompile(`can you\s+(\w+)`),
	regexp.MustCompile(`could you\s+(\w+)`),
	regexp.MustCompile(`would you\s+(\w+)`),
	regexp.MustCompile(`need you to\s+(\w+)`),
	regexp.MustCompile(`requires?\s+(\w+)`),
	regexp.MustCompile(`looking for\s+(\w+)`),
	regexp.MustCompile(`i want\s+(\w+)`),
	regexp.MustCompile(`interested in\s+(\w+)`),
}

// safeAcknowledgments mark messages that can close out unattended as long
// as the risk score stays under 25.
var safeAcknowledgments = []string{
	"thank you", "thanks", "appreciate", "acknowledged", "received",
	"got it", "noted", "understood", "confirm receipt", "well received",
}

// requestWords flag sentences that ask the recipient to act.
var requestWords = []string{"please", "can you", "could you", "would you", "need to", "should"}

// replyIndicators make a message need a reply when present in the text.
var replyIndicators = []string{"please", "can you", "could you", "would you", "need", "help"}

// forwardMarkers mark forwarded or replied threads.
var forwardMarkers = []string{"fw:", "fwd:", "re:"}

// urgencyBoosters raise the priority score by one when present.
var urgencyBoosters = []string{"!", "urgent", "asap", "immediately"}

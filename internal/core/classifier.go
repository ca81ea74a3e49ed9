package core

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/valter-silva-au/comms-triage/pkg/models"
)

// Classifier scores an inbound message for priority, category, and risk,
// and decides whether a reply can go out without human review. It is a
// pure function of its input: no I/O and no shared state, so re-running
// it during retry or recovery always yields the same result.
type Classifier interface {
	Classify(sender, subject, body string, history []string) models.Classification
}

type keywordClassifier struct {
	companyTerms     []string
	historyThreshold int
}

// NewClassifier creates a keyword-table Classifier. Company terms raise
// matching messages to at least medium priority. historyThreshold caps how
// long a thread may grow before replies always require review; zero or
// negative means the default of 3.
func NewClassifier(companyTerms []string, historyThreshold int) Classifier {
	if historyThreshold <= 0 {
		historyThreshold = 3
	}
	terms := make([]string, 0, len(companyTerms))
	for _, t := range companyTerms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			terms = append(terms, t)
		}
	}
	return &keywordClassifier{companyTerms: terms, historyThreshold: historyThreshold}
}

func (c *keywordClassifier) Classify(sender, subject, body string, history []string) models.Classification {
	text := strings.ToLower(subject + " " + body)

	priority, priorityMatches := c.scorePriority(text)
	label := priorityLabel(priority)
	category, categoryConf := detectCategory(text)
	riskScore, riskLevel, riskFactors, businessTerms := assessRisk(text)
	actionItems := extractActionItems(text)
	replyNeeded := needsReply(text, actionItems)
	autoApprove := c.determineApproval(text, riskScore, businessTerms, actionItems, history)

	var reply string
	if replyNeeded {
		reply = suggestReply(sender, subject, category, actionItems)
	}

	return models.Classification{
		Priority:       priority,
		PriorityLabel:  label,
		Category:       category,
		RiskLevel:      riskLevel,
		RiskScore:      riskScore,
		RiskFactors:    riskFactors,
		BusinessTerms:  businessTerms,
		ActionItems:    actionItems,
		NeedsReply:     replyNeeded,
		AutoApprove:    autoApprove,
		SuggestedReply: reply,
		Confidence:     calculateConfidence(priority, riskScore, categoryConf),
		Reason:         buildReason(label, len(priorityMatches) > 0, category, len(riskFactors), len(actionItems)),
	}
}

// scorePriority returns the maximum matched keyword weight plus the
// urgency boost, clamped to 1..5, along with the matched terms.
func (c *keywordClassifier) scorePriority(text string) (int, []string) {
	score := 0
	var matched []string

	for _, kw := range priorityKeywords {
		if strings.Contains(text, kw.term) {
			if kw.weight > score {
				score = kw.weight
			}
			matched = append(matched, kw.term)
		}
	}

	for _, term := range c.companyTerms {
		if strings.Contains(text, term) {
			if score < 3 {
				score = 3
			}
			matched = append(matched, "company: "+term)
		}
	}

	for _, booster := range urgencyBoosters {
		if strings.Contains(text, booster) {
			if score < 5 {
				score++
			}
			break
		}
	}

	if score < 1 {
		score = 1
	}
	return score, matched
}

func priorityLabel(score int) string {
	switch score {
	case 5:
		return "urgent"
	case 4:
		return "high"
	case 3:
		return "medium"
	case 2:
		return "normal"
	default:
		return "low"
	}
}

// detectCategory picks the category with the most keyword hits. Ties go to
// the category declared first in categoryKeywords.
func detectCategory(text string) (models.Category, float64) {
	best := models.CategoryGeneral
	bestHits := 0

	for _, entry := range categoryKeywords {
		hits := 0
		for _, term := range entry.terms {
			if strings.Contains(text, term) {
				hits++
			}
		}
		if hits > bestHits {
			bestHits = hits
			best = entry.category
		}
	}

	if bestHits == 0 {
		return models.CategoryGeneral, 0.5
	}
	conf := float64(bestHits) * 0.3
	if conf > 1.0 {
		conf = 1.0
	}
	return best, conf
}

// assessRisk sums risk keyword weights and business-term surcharges, caps
// the score at 100, and maps it onto a level.
func assessRisk(text string) (int, models.RiskLevel, []string, []string) {
	score := 0
	var factors []string

	for _, kw := range riskKeywords {
		if strings.Contains(text, kw.term) {
			score += kw.weight
			factors = append(factors, fmt.Sprintf("'%s' detected", kw.term))
		}
	}

	var businessTerms []string
	for _, term := range businessCriticalTerms {
		if strings.Contains(text, term) {
			score += 15
			factors = append(factors, "Business-critical: "+term)
			businessTerms = append(businessTerms, term)
		}
	}

	if score > 100 {
		score = 100
	}
	return score, riskLevelFor(score), factors, businessTerms
}

func riskLevelFor(score int) models.RiskLevel {
	switch {
	case score >= 75:
		return models.RiskCritical
	case score >= 50:
		return models.RiskHigh
	case score >= 25:
		return models.RiskMedium
	case score >= 10:
		return models.RiskLow
	default:
		return models.RiskSafe
	}
}

var sentenceSplitRe = regexp.MustCompile(`[.!?]`)

// extractActionItems collects request phrases and request-bearing
// sentences, deduplicated in first-seen order and capped at 5.
func extractActionItems(text string) []string {
	var items []string
	seen := make(map[string]struct{})
	add := func(s string) {
		if _, dup := seen[s]; dup {
			return
		}
		seen[s] = struct{}{}
		items = append(items, s)
	}

	for _, re := range actionPatterns {
		for _, match := range re.FindAllString(text, -1) {
			if len(match) > 5 {
				add(match)
			}
		}
	}

	for _, sentence := range sentenceSplitRe.Split(text, -1) {
		for _, word := range requestWords {
			if strings.Contains(sentence, word) {
				if trimmed := strings.TrimSpace(sentence); len(trimmed) > 10 {
					add(trimmed)
				}
				break
			}
		}
	}

	if len(items) > 5 {
		items = items[:5]
	}
	return items
}

// needsReply reports whether the message warrants a response. Plain
// acknowledgments count too: a "thanks, got it" still gets a short
// close-out, which the approval rules then let go out unattended.
func needsReply(text string, actionItems []string) bool {
	if strings.Contains(text, "?") {
		return true
	}
	if len(actionItems) > 0 {
		return true
	}
	return matchesAny(text, replyIndicators) ||
		matchesAny(text, forwardMarkers) ||
		matchesAny(text, safeAcknowledgments)
}

// determineApproval decides review versus unattended send. Order matters:
// risk, business terms, workload, and thread length each veto before the
// safe paths are considered.
func (c *keywordClassifier) determineApproval(text string, riskScore int, businessTerms, actionItems, history []string) bool {
	if riskScore >= 50 {
		return false
	}
	if len(businessTerms) > 0 {
		return false
	}
	if len(actionItems) > 2 {
		return false
	}
	if len(history) > c.historyThreshold {
		return false
	}
	if matchesAny(text, safeAcknowledgments) && riskScore < 25 {
		return true
	}
	if len(actionItems) <= 1 && riskScore < 25 {
		return true
	}
	return false
}

func calculateConfidence(priority, riskScore int, categoryConf float64) float64 {
	if priority >= 4 || riskScore >= 50 {
		conf := categoryConf + 0.3
		if conf > 1.0 {
			conf = 1.0
		}
		return conf
	}
	if categoryConf > 0.7 {
		return 0.8
	}
	return 0.6
}

func buildReason(label string, priorityMatched bool, category models.Category, riskFactors, actionItems int) string {
	var parts []string
	if priorityMatched {
		parts = append(parts, "Priority: "+label)
	}
	if category != models.CategoryGeneral {
		parts = append(parts, "Category: "+string(category))
	}
	if riskFactors > 0 {
		parts = append(parts, fmt.Sprintf("%d risk factors", riskFactors))
	}
	if actionItems > 0 {
		parts = append(parts, fmt.Sprintf("%d action items", actionItems))
	}
	if len(parts) == 0 {
		return "General message analysis"
	}
	return strings.Join(parts, " | ")
}

func matchesAny(text string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(text, t) {
			return true
		}
	}
	return false
}

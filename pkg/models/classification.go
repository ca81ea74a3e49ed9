package models

// RiskLevel buckets a cumulative risk score.
type RiskLevel string

const (
	RiskSafe     RiskLevel = "safe"
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// Category is the fixed classification taxonomy for inbound messages.
type Category string

const (
	CategoryFinance       Category = "finance"
	CategoryLegal         Category = "legal"
	CategoryHR            Category = "hr"
	CategoryProject       Category = "project"
	CategoryMeeting       Category = "meeting"
	CategorySupport       Category = "support"
	CategorySales         Category = "sales"
	CategoryMarketing     Category = "marketing"
	CategoryOperations    Category = "operations"
	CategoryTechnical     Category = "technical"
	CategoryCommunication Category = "communication"
	CategoryGeneral       Category = "general"
)

// Classification is the classifier's full verdict for one message. It is
// derived data: recomputed on demand from the same input, never persisted
// as a source of truth. The workflow decision and any chosen reply text are
// what get written onto the item.
type Classification struct {
	Priority      int
	PriorityLabel string
	Category      Category
	RiskLevel     RiskLevel
	RiskScore     int
	RiskFactors   []string
	BusinessTerms []string
	ActionItems   []string
	NeedsReply    bool
	AutoApprove   bool
	// SuggestedReply is empty when no reply is needed.
	SuggestedReply string
	Confidence     float64
	// Reason is a short human-readable rationale for the verdict.
	Reason string
}

package models

import "time"

// Source identifies the kind of channel an item arrived from.
type Source string

const (
	SourceEmail Source = "email"
	SourceChat  Source = "chat"
)

// ItemState represents the workflow state of an item. Each state maps to a
// vault folder; an item's file lives in exactly one state folder at a time.
// Archived is recorded as a metadata status while the file itself rests in
// the Done folder.
type ItemState string

const (
	StatePending     ItemState = "pending"
	StateArchived    ItemState = "archived"
	StatePlanPending ItemState = "plan_pending"
	StateApproved    ItemState = "approved"
	StateRejected    ItemState = "rejected"
	StateDone        ItemState = "done"
	StateInbox       ItemState = "inbox"
)

// Frontmatter status values written onto item files as they progress.
const (
	ItemStatusPending   = "pending"
	ItemStatusArchived  = "archived"
	ItemStatusExecuted  = "executed"
	ItemStatusCompleted = "completed"
)

// RawItem is an inbound message exactly as a source poller returned it,
// before classification or persistence.
type RawItem struct {
	ID         string
	Source     Source
	Sender     string
	Subject    string
	Body       string
	ReceivedAt time.Time
	// History holds prior messages of the same thread, oldest first.
	History []string
}

// ItemSummary is the browse view of one item document: the frontmatter
// fields an operator scans when listing a state folder.
type ItemSummary struct {
	Name      string    `json:"name"`
	State     ItemState `json:"state"`
	MessageID string    `json:"message_id,omitempty"`
	Source    Source    `json:"source,omitempty"`
	From      string    `json:"from,omitempty"`
	Subject   string    `json:"subject,omitempty"`
	Category  string    `json:"category,omitempty"`
	Priority  string    `json:"priority,omitempty"`
	RiskLevel string    `json:"risk_level,omitempty"`
	Status    string    `json:"status,omitempty"`
	Received  string    `json:"received,omitempty"`
}

// DocMeta is the typed frontmatter header shared by vault documents.
// Item files and plan files populate different subsets of its fields; Type
// tells the kinds apart. Keys the engine does not know about round-trip
// through Extra untouched, so external annotations survive a patch.
// Timestamp fields are append-only: once written they may be overwritten
// with a newer value but are never cleared.
type DocMeta struct {
	Type            string         `yaml:"type,omitempty"`
	MessageID       string         `yaml:"message_id,omitempty"`
	Source          Source         `yaml:"source,omitempty"`
	From            string         `yaml:"from,omitempty"`
	Subject         string         `yaml:"subject,omitempty"`
	Received        string         `yaml:"received,omitempty"`
	Priority        string         `yaml:"priority,omitempty"`
	Category        string         `yaml:"category,omitempty"`
	RiskLevel       string         `yaml:"risk_level,omitempty"`
	NeedsReply      bool           `yaml:"needs_reply"`
	AutoApprove     bool           `yaml:"auto_approve"`
	Status          string         `yaml:"status,omitempty"`
	PlanID          string         `yaml:"plan_id,omitempty"`
	ItemFile        string         `yaml:"email_file,omitempty"`
	PlanRef         string         `yaml:"plan_ref,omitempty"`
	PlanLocation    string         `yaml:"plan_location,omitempty"`
	Created         string         `yaml:"created,omitempty"`
	ArchivedAt      string         `yaml:"archived_at,omitempty"`
	AutoSentAt      string         `yaml:"auto_sent_at,omitempty"`
	AutoSentTo      string         `yaml:"auto_sent_to,omitempty"`
	ExecutedAt      string         `yaml:"executed_at,omitempty"`
	ExecutedTo      string         `yaml:"executed_to,omitempty"`
	PlanExecutedAt  string         `yaml:"plan_executed_at,omitempty"`
	PlanCompletedAt string         `yaml:"plan_completed_at,omitempty"`
	RejectedAt      string         `yaml:"rejected_at,omitempty"`
	Recipient       string         `yaml:"recipient,omitempty"`
	SentAt          string         `yaml:"sent_at,omitempty"`
	Extra           map[string]any `yaml:",inline"`
}

// Document type values for DocMeta.Type.
const (
	DocTypeEmail     = "email"
	DocTypeChat      = "chat_message"
	DocTypeEmailPlan = "email_plan"
	DocTypeChatPlan  = "chat_plan"
	DocTypeAutoSent  = "auto_sent_email"
)

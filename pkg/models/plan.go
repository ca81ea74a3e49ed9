package models

// PlanStatus tracks a plan through the approval lifecycle. Approved and
// Rejected are reached only by a human moving the plan file; Executed only
// after the terminal send succeeds.
type PlanStatus string

const (
	PlanPendingApproval PlanStatus = "pending_approval"
	PlanApproved        PlanStatus = "approved"
	PlanRejected        PlanStatus = "rejected"
	PlanExecuted        PlanStatus = "executed"
)

// Plan frontmatter status values appended as the plan progresses.
const (
	PlanStatusAutoSent = "auto_sent"
	PlanStatusExecuted = "executed"
)

// Plan is the parsed view of a plan file: a proposed human-reviewable
// response tied to one item. The plan reflects the item's lifecycle, it
// does not own it.
type Plan struct {
	ID       string
	ItemFile string
	From     string
	Subject  string
	Reply    string
	Status   PlanStatus
	Meta     DocMeta
}

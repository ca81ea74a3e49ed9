package core

import (
	"fmt"
	"strings"

	"github.com/valter-silva-au/comms-triage/internal/storage"
	"github.com/valter-silva-au/comms-triage/pkg/models"
)

// TriageManager defines the browse and decide operations the interactive
// surfaces need: the CLI, the dashboard, and the MCP server. Approving or
// rejecting a plan is the same file move a human would make by hand; the
// approval executor picks the moved plan up on its next pass.
type TriageManager interface {
	ListItems(state models.ItemState) ([]models.ItemSummary, error)
	GetPlan(planID string) (*models.Plan, error)
	ListPlans(status models.PlanStatus) ([]*models.Plan, error)
	ApprovePlan(planID string) (*models.Plan, error)
	RejectPlan(planID string) (*models.Plan, error)
}

type triageManager struct {
	vault storage.Vault
}

// NewTriageManager creates a TriageManager over the given vault.
func NewTriageManager(vault storage.Vault) TriageManager {
	return &triageManager{vault: vault}
}

// itemStates are the folders that hold item documents. The remaining
// folders hold plans.
var itemStates = []models.ItemState{
	models.StatePending,
	models.StateInbox,
	models.StateDone,
}

// planStates are the folders a plan can rest in, in lifecycle order.
var planStates = []models.ItemState{
	models.StatePlanPending,
	models.StateApproved,
	models.StateRejected,
	models.StateDone,
}

// ListItems returns item documents in the given state folder, or across
// all item folders when state is empty. Plan files sharing a folder are
// filtered out by document type.
func (tm *triageManager) ListItems(state models.ItemState) ([]models.ItemSummary, error) {
	states := itemStates
	if state != "" {
		states = []models.ItemState{state}
	}

	var items []models.ItemSummary
	for _, s := range states {
		refs, err := tm.vault.List(s, "")
		if err != nil {
			return nil, fmt.Errorf("listing items in %s: %w", s, err)
		}
		for _, ref := range refs {
			meta, _, err := tm.vault.Read(ref)
			if err != nil {
				continue
			}
			if meta.Type != models.DocTypeEmail && meta.Type != models.DocTypeChat {
				continue
			}
			items = append(items, models.ItemSummary{
				Name:      ref.Name,
				State:     s,
				MessageID: meta.MessageID,
				Source:    meta.Source,
				From:      meta.From,
				Subject:   meta.Subject,
				Category:  meta.Category,
				Priority:  meta.Priority,
				RiskLevel: meta.RiskLevel,
				Status:    meta.Status,
				Received:  meta.Received,
			})
		}
	}
	return items, nil
}

// GetPlan returns a plan by ID, searching every folder a plan can rest in.
// The ID may be given with or without the .md suffix.
func (tm *triageManager) GetPlan(planID string) (*models.Plan, error) {
	ref, err := tm.findPlan(planID)
	if err != nil {
		return nil, fmt.Errorf("getting plan %s: %w", planID, err)
	}
	plan, err := tm.loadPlan(ref)
	if err != nil {
		return nil, fmt.Errorf("getting plan %s: %w", planID, err)
	}
	return plan, nil
}

// ListPlans returns plans filtered by lifecycle status, or all plans when
// status is empty. Pending, approved, and rejected are folder positions;
// executed plans live in Done.
func (tm *triageManager) ListPlans(status models.PlanStatus) ([]*models.Plan, error) {
	states := planStates
	switch status {
	case models.PlanPendingApproval:
		states = []models.ItemState{models.StatePlanPending}
	case models.PlanApproved:
		states = []models.ItemState{models.StateApproved}
	case models.PlanRejected:
		states = []models.ItemState{models.StateRejected}
	case models.PlanExecuted:
		states = []models.ItemState{models.StateDone}
	case "":
	default:
		return nil, fmt.Errorf("listing plans: unknown status %q", status)
	}

	var plans []*models.Plan
	for _, s := range states {
		refs, err := tm.vault.List(s, "PLAN_*.md")
		if err != nil {
			return nil, fmt.Errorf("listing plans in %s: %w", s, err)
		}
		for _, ref := range refs {
			plan, err := tm.loadPlan(ref)
			if err != nil {
				continue
			}
			plans = append(plans, plan)
		}
	}
	return plans, nil
}

// ApprovePlan moves a pending plan into the Approved folder. The next
// executor pass sends it.
func (tm *triageManager) ApprovePlan(planID string) (*models.Plan, error) {
	return tm.decidePlan(planID, models.StateApproved, "approving")
}

// RejectPlan moves a pending plan into the Rejected folder. The next
// executor pass notes the rejection on the item and retires the plan.
func (tm *triageManager) RejectPlan(planID string) (*models.Plan, error) {
	return tm.decidePlan(planID, models.StateRejected, "rejecting")
}

func (tm *triageManager) decidePlan(planID string, to models.ItemState, verb string) (*models.Plan, error) {
	ref, err := tm.findPlan(planID)
	if err != nil {
		return nil, fmt.Errorf("%s plan %s: %w", verb, planID, err)
	}
	if ref.State != models.StatePlanPending {
		return nil, fmt.Errorf("%s plan %s: plan is not awaiting approval (found in %s)", verb, planID, storage.FolderFor(ref.State))
	}

	moved, err := tm.vault.Move(ref, to)
	if err != nil {
		return nil, fmt.Errorf("%s plan %s: %w", verb, planID, err)
	}

	plan, err := tm.loadPlan(moved)
	if err != nil {
		return nil, fmt.Errorf("%s plan %s: %w", verb, planID, err)
	}
	return plan, nil
}

// findPlan locates a plan file by ID across the plan folders, checked in
// lifecycle order so an active copy shadows a retired one.
func (tm *triageManager) findPlan(planID string) (storage.Ref, error) {
	name := planID
	if !strings.HasSuffix(name, ".md") {
		name += ".md"
	}

	for _, s := range planStates {
		ref := storage.Ref{State: s, Name: name}
		if tm.vault.Exists(ref) {
			return ref, nil
		}
	}
	return storage.Ref{}, storage.ErrNotFound
}

// loadPlan reads and parses one plan document.
func (tm *triageManager) loadPlan(ref storage.Ref) (*models.Plan, error) {
	meta, body, err := tm.vault.Read(ref)
	if err != nil {
		return nil, err
	}

	reply, _ := extractReply(body)
	subject := meta.Subject
	if subject == "" {
		subject = titleSubject(body)
	}

	return &models.Plan{
		ID:       strings.TrimSuffix(ref.Name, ".md"),
		ItemFile: meta.ItemFile,
		From:     meta.From,
		Subject:  subject,
		Reply:    reply,
		Status:   planStatusFor(ref.State, meta),
		Meta:     meta,
	}, nil
}

// planStatusFor derives a plan's lifecycle status from where the file
// rests. The decision folders speak for themselves; only in Done does the
// frontmatter distinguish executed, rejected, and auto-sent plans.
func planStatusFor(state models.ItemState, meta models.DocMeta) models.PlanStatus {
	switch state {
	case models.StatePlanPending:
		return models.PlanPendingApproval
	case models.StateApproved:
		return models.PlanApproved
	case models.StateRejected:
		return models.PlanRejected
	default:
		if meta.Status != "" {
			return models.PlanStatus(meta.Status)
		}
		return models.PlanExecuted
	}
}

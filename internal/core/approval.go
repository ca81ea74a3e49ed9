package core

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/valter-silva-au/comms-triage/internal/storage"
	"github.com/valter-silva-au/comms-triage/pkg/models"
)

var (
	fencedReplyRe = regexp.MustCompile("(?s)## Suggested Reply\\s*```\\s*(.*?)\\s*```")
	bareReplyRe   = regexp.MustCompile(`(?s)## Suggested Reply\s*(.*?)\s*---`)
	planTitleRe   = regexp.MustCompile(`(?m)^# (.+)$`)
)

// ApprovalResult summarises one pass over the human decision folders.
type ApprovalResult struct {
	Executed int
	Rejected int
	Moved    int
	Errors   []string
}

// ApprovalExecutor drains the decision folders: it sends plans a human
// moved to Approved, notes plans moved to Rejected, and steers items whose
// plans reached Done into the Inbox.
//
// Send failures are retried on the next pass; the plan is only recorded as
// executed after a successful send, so delivery is at-least-once. Plans
// that cannot be parsed or lack the fields needed to send are recorded
// immediately, since retrying them cannot help.
type ApprovalExecutor interface {
	CheckAndExecute(ctx context.Context) (*ApprovalResult, error)
}

type approvalExecutor struct {
	vault    storage.Vault
	pollers  PollerRegistry
	executed storage.IdempotencyStore
	swept    storage.IdempotencyStore
	events   EventLogger
	now      func() time.Time
}

// NewApprovalExecutor creates an ApprovalExecutor. executed tracks plans
// whose send completed, swept tracks plans whose Done bookkeeping ran.
func NewApprovalExecutor(vault storage.Vault, pollers PollerRegistry, executed, swept storage.IdempotencyStore, events EventLogger) ApprovalExecutor {
	return &approvalExecutor{
		vault:    vault,
		pollers:  pollers,
		executed: executed,
		swept:    swept,
		events:   events,
		now:      time.Now,
	}
}

func (a *approvalExecutor) CheckAndExecute(ctx context.Context) (*ApprovalResult, error) {
	result := &ApprovalResult{}

	a.executeApproved(ctx, result)
	a.noteRejected(result)
	a.sweepDone(result)

	return result, nil
}

// executeApproved sends every plan in Approved that has not been sent yet.
func (a *approvalExecutor) executeApproved(ctx context.Context, result *ApprovalResult) {
	refs, err := a.vault.List(models.StateApproved, "PLAN_*.md")
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("listing approved plans: %s", err))
		return
	}

	flush := false
	for _, ref := range refs {
		planID := strings.TrimSuffix(ref.Name, ".md")
		if a.executed.Contains(planID) {
			continue
		}

		done, err := a.executePlan(ctx, ref, planID)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("executing plan %s: %s", planID, err))
		}
		if done {
			a.executed.Add(planID)
			flush = true
		}
		if err == nil && done {
			result.Executed++
		}
	}

	if flush {
		if err := a.executed.Flush(); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("saving executed plans: %s", err))
		}
	}
}

// executePlan sends one approved plan. The bool reports whether the plan
// should be recorded as handled: true on success and on malformed plans,
// false on send failure so the next pass retries.
func (a *approvalExecutor) executePlan(ctx context.Context, ref storage.Ref, planID string) (bool, error) {
	meta, body, err := a.vault.Read(ref)
	if err != nil {
		return true, fmt.Errorf("unreadable plan: %w", err)
	}
	if meta.From == "" || meta.ItemFile == "" {
		return true, fmt.Errorf("missing recipient or item reference")
	}

	reply, ok := extractReply(body)
	if !ok {
		return true, fmt.Errorf("no suggested reply section")
	}

	subject := meta.Subject
	if subject == "" {
		subject = titleSubject(body)
	}
	subject = replySubject(subject)

	poller, err := a.pollers.BySource(planSource(meta.Type))
	if err != nil {
		return false, err
	}
	if err := poller.Send(ctx, meta.From, subject, reply); err != nil {
		return false, fmt.Errorf("sending: %w", err)
	}

	now := a.now()

	// Plan moves to Done carrying the execution stamp.
	err = a.vault.PatchMeta(ref, func(m *models.DocMeta) {
		m.ExecutedAt = now.Format(time.RFC3339)
		m.ExecutedTo = meta.From
		m.Status = models.PlanStatusExecuted
	})
	if err != nil {
		return true, err
	}
	if _, err := a.vault.Move(ref, models.StateDone); err != nil {
		return true, err
	}

	// Item leaves Needs_Action for the Inbox. A missing item just means an
	// earlier pass already moved it.
	itemRef := storage.Ref{State: models.StatePending, Name: meta.ItemFile}
	if a.vault.Exists(itemRef) {
		err = a.vault.PatchMeta(itemRef, func(m *models.DocMeta) {
			m.PlanExecutedAt = now.Format(time.RFC3339)
			m.PlanID = planID
			m.Status = models.ItemStatusExecuted
		})
		if err != nil {
			return true, err
		}
		if _, err := a.vault.Move(itemRef, models.StateInbox); err != nil {
			return true, err
		}
	}

	a.logEvent("plan.executed", map[string]any{
		"plan_id": planID,
		"to":      meta.From,
		"subject": subject,
	})
	return true, nil
}

// noteRejected stamps plans a human moved to Rejected and retires them to
// Done. The item stays in Needs_Action; rejecting the draft does not
// resolve the message.
func (a *approvalExecutor) noteRejected(result *ApprovalResult) {
	refs, err := a.vault.List(models.StateRejected, "PLAN_*.md")
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("listing rejected plans: %s", err))
		return
	}

	for _, ref := range refs {
		planID := strings.TrimSuffix(ref.Name, ".md")

		meta, _, err := a.vault.Read(ref)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("reading rejected plan %s: %s", planID, err))
			continue
		}

		now := a.now()
		err = a.vault.PatchMeta(ref, func(m *models.DocMeta) {
			m.Status = string(models.PlanRejected)
			m.RejectedAt = now.Format(time.RFC3339)
		})
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("noting rejected plan %s: %s", planID, err))
			continue
		}
		if _, err := a.vault.Move(ref, models.StateDone); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("noting rejected plan %s: %s", planID, err))
			continue
		}

		if meta.ItemFile != "" {
			itemRef := storage.Ref{State: models.StatePending, Name: meta.ItemFile}
			if a.vault.Exists(itemRef) {
				note := fmt.Sprintf("Plan rejected: %s.md", planID)
				if err := a.vault.AppendNote(itemRef, notesSection, note, now); err != nil {
					result.Errors = append(result.Errors, fmt.Sprintf("noting rejected plan %s: %s", planID, err))
				}
			}
		}

		result.Rejected++
		a.logEvent("plan.rejected_noted", map[string]any{
			"plan_id":   planID,
			"item_file": meta.ItemFile,
		})
	}
}

// sweepDone moves items whose plans reached Done into the Inbox. This
// catches plans a human completed by hand; executed and auto-sent plans
// normally arrive here with their item already moved.
func (a *approvalExecutor) sweepDone(result *ApprovalResult) {
	refs, err := a.vault.List(models.StateDone, "PLAN_*.md")
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("listing done plans: %s", err))
		return
	}

	flush := false
	for _, ref := range refs {
		planID := strings.TrimSuffix(ref.Name, ".md")
		if a.swept.Contains(planID) {
			continue
		}
		a.swept.Add(planID)
		flush = true

		meta, _, err := a.vault.Read(ref)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("reading done plan %s: %s", planID, err))
			continue
		}
		// Rejected plans retire to Done without resolving their item.
		if meta.ItemFile == "" || meta.Status == string(models.PlanRejected) {
			continue
		}

		itemRef := storage.Ref{State: models.StatePending, Name: meta.ItemFile}
		if !a.vault.Exists(itemRef) {
			continue
		}

		now := a.now()
		err = a.vault.PatchMeta(itemRef, func(m *models.DocMeta) {
			m.PlanCompletedAt = now.Format(time.RFC3339)
			m.PlanID = planID
			m.Status = models.ItemStatusCompleted
		})
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("moving item for plan %s: %s", planID, err))
			continue
		}
		if _, err := a.vault.Move(itemRef, models.StateInbox); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("moving item for plan %s: %s", planID, err))
			continue
		}
		result.Moved++
	}

	if flush {
		if err := a.swept.Flush(); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("saving swept plans: %s", err))
		}
	}
}

// extractReply pulls the reply text out of the plan body: the fenced block
// under the Suggested Reply heading, or for hand-edited plans without a
// fence, the text up to the next rule.
func extractReply(body string) (string, bool) {
	if m := fencedReplyRe.FindStringSubmatch(body); m != nil {
		return strings.TrimSpace(m[1]), true
	}
	if m := bareReplyRe.FindStringSubmatch(body); m != nil {
		return strings.TrimSpace(m[1]), true
	}
	return "", false
}

// titleSubject recovers a subject from the plan's title line.
func titleSubject(body string) string {
	m := planTitleRe.FindStringSubmatch(body)
	if m == nil {
		return "(No Subject)"
	}
	title := m[1]
	for _, prefix := range []string{"Email Response Plan: ", "Chat Response Plan: "} {
		title = strings.TrimPrefix(title, prefix)
	}
	return strings.TrimSpace(title)
}

// planSource maps a plan document type back to its message source.
func planSource(docType string) models.Source {
	if docType == models.DocTypeChatPlan {
		return models.SourceChat
	}
	return models.SourceEmail
}

func (a *approvalExecutor) logEvent(eventType string, data map[string]any) {
	if a.events != nil {
		_ = a.events.LogEvent(eventType, data)
	}
}

package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/valter-silva-au/comms-triage/internal/storage"
	"github.com/valter-silva-au/comms-triage/pkg/models"
)

// notesSection is the body section that routing notes are appended to.
const notesSection = "Processing Notes"

// IngestAction describes the route an item took through Ingest.
type IngestAction string

const (
	// ActionNoOp means the item was already processed in an earlier cycle.
	ActionNoOp IngestAction = "no_op"
	// ActionArchived means no reply was needed and the item went to Done.
	ActionArchived IngestAction = "archived"
	// ActionAutoSent means the reply went out and the item reached Inbox.
	ActionAutoSent IngestAction = "auto_sent"
	// ActionPlanCreated means a draft reply awaits review in Plans.
	ActionPlanCreated IngestAction = "plan_created"
	// ActionHeld means an unattended send was sanctioned but failed, so
	// the plan stays in Plans for manual approval.
	ActionHeld IngestAction = "held"
)

// IngestResult summarises how one item was routed.
type IngestResult struct {
	Action         IngestAction
	ItemRef        storage.Ref
	PlanRef        storage.Ref
	PlanID         string
	Classification models.Classification
}

// Workflow routes inbound items through the vault: classify, persist to
// Needs_Action, then archive, auto-send, or draft a plan for review.
// Routing is idempotent per source message ID. Replaying an item rewrites
// the same deterministic files and stops before any second send, so a
// crash between the durable writes and the processed-ID flush is repaired
// by the next cycle.
type Workflow interface {
	// Ingest processes a single raw item. When the processed-ID flush
	// fails after routing, Ingest returns the completed result together
	// with the flush error; the caller decides whether to surface it.
	Ingest(ctx context.Context, item models.RawItem) (*IngestResult, error)
}

type workflow struct {
	vault      storage.Vault
	classifier Classifier
	pollers    PollerRegistry
	seen       map[models.Source]storage.IdempotencyStore
	events     EventLogger
	autoSend   bool
	now        func() time.Time
}

// NewWorkflow creates a Workflow. pollers and events may be nil; without a
// poller for a source, sanctioned sends are held for manual approval.
func NewWorkflow(vault storage.Vault, classifier Classifier, pollers PollerRegistry, seen map[models.Source]storage.IdempotencyStore, events EventLogger, autoSend bool) Workflow {
	return &workflow{
		vault:      vault,
		classifier: classifier,
		pollers:    pollers,
		seen:       seen,
		events:     events,
		autoSend:   autoSend,
		now:        time.Now,
	}
}

func (w *workflow) Ingest(ctx context.Context, item models.RawItem) (*IngestResult, error) {
	if store := w.seen[item.Source]; store != nil && store.Contains(item.ID) {
		return &IngestResult{Action: ActionNoOp}, nil
	}

	cls := w.classifier.Classify(item.Sender, item.Subject, item.Body, item.History)
	now := w.now()

	// 1. Always land the item in Needs_Action first, so every inbound
	// message has a durable record before any routing decision acts on it.
	name := storage.ItemFilename(item.Source, item.Subject, item.ID)
	itemRef, err := w.vault.Create(models.StatePending, name, itemMeta(item, cls), itemBody(item, cls))
	if err != nil {
		return nil, fmt.Errorf("ingesting %s: %w", item.ID, err)
	}

	w.logEvent("item.ingested", map[string]any{
		"item_id":  item.ID,
		"source":   string(item.Source),
		"subject":  item.Subject,
		"priority": cls.PriorityLabel,
		"category": string(cls.Category),
		"risk":     string(cls.RiskLevel),
	})

	result := &IngestResult{ItemRef: itemRef, Classification: cls}

	// 2. Route by classification.
	switch {
	case !cls.NeedsReply:
		err = w.archive(result, item, now)
	case cls.AutoApprove && w.autoSend:
		err = w.autoRespond(ctx, result, item, cls, now)
	default:
		err = w.draftPlan(result, item, cls, now)
	}
	if err != nil {
		return nil, err
	}

	// 3. Record the ID only after the routing writes are durable.
	return result, w.markSeen(item)
}

// archive closes out an item that needs no reply.
func (w *workflow) archive(result *IngestResult, item models.RawItem, now time.Time) error {
	err := w.vault.PatchMeta(result.ItemRef, func(m *models.DocMeta) {
		m.Status = models.ItemStatusArchived
		m.ArchivedAt = now.Format(time.RFC3339)
	})
	if err != nil {
		return fmt.Errorf("archiving %s: %w", item.ID, err)
	}

	ref, err := w.vault.Move(result.ItemRef, models.StateArchived)
	if err != nil {
		return fmt.Errorf("archiving %s: %w", item.ID, err)
	}

	result.Action = ActionArchived
	result.ItemRef = ref
	w.logEvent("item.archived", map[string]any{
		"item_id": item.ID,
		"source":  string(item.Source),
	})
	return nil
}

// autoRespond sends the suggested reply without review. The plan is
// written first for record-keeping; on any send problem it stays in Plans
// so a human can approve the reply manually.
func (w *workflow) autoRespond(ctx context.Context, result *IngestResult, item models.RawItem, cls models.Classification, now time.Time) error {
	if err := w.createPlan(result, item, cls, now); err != nil {
		return err
	}

	if sendErr := w.trySend(ctx, item, cls); sendErr != nil {
		result.Action = ActionHeld
		err := w.vault.PatchMeta(result.ItemRef, func(m *models.DocMeta) {
			m.PlanRef = result.PlanRef.Name
			m.PlanLocation = "Plans"
		})
		if err != nil {
			return fmt.Errorf("holding %s: %w", item.ID, err)
		}
		note := fmt.Sprintf("Auto-send failed, plan kept in Plans/: %s.md (%v)", result.PlanID, sendErr)
		if err := w.vault.AppendNote(result.ItemRef, notesSection, note, now); err != nil {
			return fmt.Errorf("holding %s: %w", item.ID, err)
		}
		return nil
	}

	if err := w.recordAutoSend(item, cls, now); err != nil {
		return err
	}

	// Plan moves to Done with the send stamped on it.
	err := w.vault.PatchMeta(result.PlanRef, func(m *models.DocMeta) {
		m.AutoSentAt = now.Format(time.RFC3339)
		m.AutoSentTo = item.Sender
		m.Status = models.PlanStatusAutoSent
	})
	if err != nil {
		return fmt.Errorf("completing auto-send for %s: %w", item.ID, err)
	}
	planRef, err := w.vault.Move(result.PlanRef, models.StateDone)
	if err != nil {
		return fmt.Errorf("completing auto-send for %s: %w", item.ID, err)
	}
	result.PlanRef = planRef

	// Item leaves Needs_Action for the Inbox.
	err = w.vault.PatchMeta(result.ItemRef, func(m *models.DocMeta) {
		m.PlanCompletedAt = now.Format(time.RFC3339)
		m.PlanID = result.PlanID
		m.Status = models.ItemStatusCompleted
	})
	if err != nil {
		return fmt.Errorf("completing auto-send for %s: %w", item.ID, err)
	}
	itemRef, err := w.vault.Move(result.ItemRef, models.StateInbox)
	if err != nil {
		return fmt.Errorf("completing auto-send for %s: %w", item.ID, err)
	}
	result.ItemRef = itemRef

	result.Action = ActionAutoSent
	w.logEvent("item.auto_sent", map[string]any{
		"item_id": item.ID,
		"source":  string(item.Source),
		"plan_id": result.PlanID,
		"to":      item.Sender,
	})
	return nil
}

// trySend delivers the reply through the poller serving the item's source.
func (w *workflow) trySend(ctx context.Context, item models.RawItem, cls models.Classification) error {
	if w.pollers == nil {
		return fmt.Errorf("no poller registry configured")
	}
	if cls.SuggestedReply == "" {
		return fmt.Errorf("no suggested reply to send")
	}
	poller, err := w.pollers.BySource(item.Source)
	if err != nil {
		return err
	}
	return poller.Send(ctx, item.Sender, replySubject(item.Subject), cls.SuggestedReply)
}

// draftPlan writes the reply draft to Plans and links it from the item.
func (w *workflow) draftPlan(result *IngestResult, item models.RawItem, cls models.Classification, now time.Time) error {
	if err := w.createPlan(result, item, cls, now); err != nil {
		return err
	}

	err := w.vault.PatchMeta(result.ItemRef, func(m *models.DocMeta) {
		m.PlanRef = result.PlanRef.Name
		m.PlanLocation = "Plans"
	})
	if err != nil {
		return fmt.Errorf("linking plan for %s: %w", item.ID, err)
	}

	note := fmt.Sprintf("Plan created: %s.md in Plans/", result.PlanID)
	if err := w.vault.AppendNote(result.ItemRef, notesSection, note, now); err != nil {
		return fmt.Errorf("linking plan for %s: %w", item.ID, err)
	}

	result.Action = ActionPlanCreated
	return nil
}

// createPlan writes the plan document into Plans and logs plan.created.
func (w *workflow) createPlan(result *IngestResult, item models.RawItem, cls models.Classification, now time.Time) error {
	planID := storage.PlanID(item.Subject, now)
	itemName := storage.ItemFilename(item.Source, item.Subject, item.ID)

	meta := models.DocMeta{
		Type:        planDocType(item.Source),
		PlanID:      planID,
		ItemFile:    itemName,
		Priority:    cls.PriorityLabel,
		RiskLevel:   string(cls.RiskLevel),
		NeedsReply:  cls.NeedsReply,
		AutoApprove: cls.AutoApprove,
		From:        item.Sender,
		Subject:     item.Subject,
		Created:     now.Format(time.RFC3339),
		Status:      string(models.PlanPendingApproval),
	}

	ref, err := w.vault.Create(models.StatePlanPending, planID+".md", meta, planBody(item, cls))
	if err != nil {
		return fmt.Errorf("creating plan for %s: %w", item.ID, err)
	}

	result.PlanID = planID
	result.PlanRef = ref
	w.logEvent("plan.created", map[string]any{
		"plan_id":      planID,
		"item_id":      item.ID,
		"source":       string(item.Source),
		"auto_approve": cls.AutoApprove,
		"risk":         string(cls.RiskLevel),
	})
	return nil
}

// recordAutoSend writes the audit document under Logs/Auto_Sent.
func (w *workflow) recordAutoSend(item models.RawItem, cls models.Classification, now time.Time) error {
	meta := models.DocMeta{
		Type:      models.DocTypeAutoSent,
		MessageID: item.ID,
		Recipient: item.Sender,
		Subject:   replySubject(item.Subject),
		RiskLevel: string(cls.RiskLevel),
		SentAt:    now.Format(time.RFC3339),
	}

	var b strings.Builder
	b.WriteString("# Auto-Sent Reply\n\n")
	fmt.Fprintf(&b, "**Message ID:** %s\n", item.ID)
	fmt.Fprintf(&b, "**To:** %s\n", item.Sender)
	fmt.Fprintf(&b, "**Subject:** %s\n", replySubject(item.Subject))
	fmt.Fprintf(&b, "**Risk Level:** %s\n", strings.ToUpper(string(cls.RiskLevel)))
	fmt.Fprintf(&b, "**Sent:** %s\n\n", now.Format("2006-01-02 15:04:05"))
	b.WriteString("---\n\n## Analysis\n\n")
	fmt.Fprintf(&b, "**Category:** %s\n", cls.Category)
	fmt.Fprintf(&b, "**Priority:** %s\n", cls.PriorityLabel)
	fmt.Fprintf(&b, "**Reason:** %s\n", cls.Reason)
	factors := "None"
	if len(cls.RiskFactors) > 0 {
		factors = strings.Join(cls.RiskFactors, ", ")
	}
	fmt.Fprintf(&b, "**Risk Factors:** %s\n\n", factors)
	b.WriteString("---\n\n## Sent Reply\n\n```\n")
	b.WriteString(cls.SuggestedReply)
	b.WriteString("\n```\n")

	name := "AUTO_SENT_" + now.Format("20060102_150405") + ".md"
	if err := w.vault.WriteRecord(storage.AutoSentFolder, name, meta, b.String()); err != nil {
		return fmt.Errorf("recording auto-send for %s: %w", item.ID, err)
	}
	return nil
}

func (w *workflow) markSeen(item models.RawItem) error {
	store := w.seen[item.Source]
	if store == nil {
		return nil
	}
	store.Add(item.ID)
	if err := store.Flush(); err != nil {
		return fmt.Errorf("ingesting %s: recording processed id: %w", item.ID, err)
	}
	return nil
}

// logEvent emits an event if an EventLogger is configured.
func (w *workflow) logEvent(eventType string, data map[string]any) {
	if w.events != nil {
		_ = w.events.LogEvent(eventType, data)
	}
}

func itemMeta(item models.RawItem, cls models.Classification) models.DocMeta {
	return models.DocMeta{
		Type:        itemDocType(item.Source),
		MessageID:   item.ID,
		Source:      item.Source,
		From:        item.Sender,
		Subject:     item.Subject,
		Received:    item.ReceivedAt.Format(time.RFC3339),
		Priority:    cls.PriorityLabel,
		Category:    string(cls.Category),
		RiskLevel:   string(cls.RiskLevel),
		NeedsReply:  cls.NeedsReply,
		AutoApprove: cls.AutoApprove,
		Status:      models.ItemStatusPending,
	}
}

func itemBody(item models.RawItem, cls models.Classification) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", item.Subject)
	fmt.Fprintf(&b, "**From:** %s\n", item.Sender)
	fmt.Fprintf(&b, "**Date:** %s\n", item.ReceivedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "**Priority:** %s\n\n", capitalize(cls.PriorityLabel))
	b.WriteString("---\n\n## Message Content\n\n")
	b.WriteString(item.Body)
	b.WriteString("\n\n---\n\n## Suggested Actions\n\n")
	b.WriteString("- [ ] Reply to sender\n")
	b.WriteString("- [ ] Forward to relevant party\n")
	b.WriteString("- [ ] Archive after processing\n")
	b.WriteString("- [ ] Move to Done when complete\n")
	return b.String()
}

func planBody(item models.RawItem, cls models.Classification) string {
	reply := cls.SuggestedReply
	if reply == "" {
		reply = "No reply suggested"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s Response Plan: %s\n\n", sourceTitle(item.Source), item.Subject)
	fmt.Fprintf(&b, "**Priority:** %s\n", strings.ToUpper(cls.PriorityLabel))
	fmt.Fprintf(&b, "**From:** %s\n", item.Sender)
	fmt.Fprintf(&b, "**Risk Level:** %s\n\n", strings.ToUpper(string(cls.RiskLevel)))
	b.WriteString("---\n\n## Analysis\n\n")
	fmt.Fprintf(&b, "**Reason:** %s\n", cls.Reason)
	fmt.Fprintf(&b, "**Category:** %s\n\n", cls.Category)
	b.WriteString("---\n\n## Suggested Reply\n\n```\n")
	b.WriteString(reply)
	b.WriteString("\n```\n\n---\n\n## Next Steps\n\n")
	b.WriteString("- [ ] Review the draft reply above\n")
	b.WriteString("- [ ] Edit as needed\n")
	b.WriteString("- [ ] To approve and send: move this file to `Approved/`\n")
	b.WriteString("- [ ] To reject: move to `Rejected/`\n\n")
	b.WriteString("---\n\n## Original Message\n\n")
	fmt.Fprintf(&b, "**From:** %s\n", item.Sender)
	fmt.Fprintf(&b, "**Subject:** %s\n", item.Subject)
	fmt.Fprintf(&b, "**Date:** %s\n\n", item.ReceivedAt.Format(time.RFC3339))
	b.WriteString(item.Body)
	b.WriteString("\n")
	return b.String()
}

// replySubject prefixes Re: unless the thread already carries it.
func replySubject(subject string) string {
	if subject != "" && !strings.HasPrefix(subject, "Re:") {
		return "Re: " + subject
	}
	return subject
}

func itemDocType(source models.Source) string {
	if source == models.SourceChat {
		return models.DocTypeChat
	}
	return models.DocTypeEmail
}

func planDocType(source models.Source) string {
	if source == models.SourceChat {
		return models.DocTypeChatPlan
	}
	return models.DocTypeEmailPlan
}

func sourceTitle(source models.Source) string {
	if source == models.SourceChat {
		return "Chat"
	}
	return "Email"
}

package core

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/valter-silva-au/comms-triage/internal/storage"
	"github.com/valter-silva-au/comms-triage/pkg/models"
)

var testClock = func() time.Time {
	return time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
}

func newTestVault(t *testing.T) storage.Vault {
	t.Helper()
	v := storage.NewVault(t.TempDir())
	if err := v.EnsureLayout(); err != nil {
		t.Fatalf("ensuring vault layout: %v", err)
	}
	return v
}

func newSeenStore(t *testing.T, v storage.Vault, source models.Source) map[models.Source]storage.IdempotencyStore {
	t.Helper()
	store, err := storage.NewIdempotencyStore(filepath.Join(v.Root(), ".test_processed.json"))
	if err != nil {
		t.Fatalf("creating idempotency store: %v", err)
	}
	return map[models.Source]storage.IdempotencyStore{source: store}
}

func newTestWorkflow(t *testing.T, v storage.Vault, reg PollerRegistry, seen map[models.Source]storage.IdempotencyStore, events EventLogger, autoSend bool) Workflow {
	t.Helper()
	wf := NewWorkflow(v, NewClassifier(nil, 0), reg, seen, events, autoSend)
	wf.(*workflow).now = testClock
	return wf
}

func ackItem() models.RawItem {
	return models.RawItem{
		ID:         "msg-ack-001",
		Source:     models.SourceEmail,
		Sender:     "Mira Voss <mira@client.example>",
		Subject:    "Thanks",
		Body:       "Thanks, got it!",
		ReceivedAt: testClock(),
	}
}

func contractItem() models.RawItem {
	return models.RawItem{
		ID:         "msg-contract-001",
		Source:     models.SourceEmail,
		Sender:     "Dana Reyes <dana@corp.example>",
		Subject:    "URGENT: Contract review needed",
		Body:       "Please review the attached contract by Friday. This is urgent!",
		ReceivedAt: testClock(),
	}
}

// --- Tests ---

func TestWorkflow_ArchivesNoReplyItem(t *testing.T) {
	v := newTestVault(t)
	logger := &fakeEventLogger{}
	wf := newTestWorkflow(t, v, nil, newSeenStore(t, v, models.SourceEmail), logger, false)

	item := models.RawItem{
		ID:         "msg-news-001",
		Source:     models.SourceEmail,
		Sender:     "news@corp.example",
		Subject:    "Weekly newsletter",
		Body:       "The cafeteria menu changed this week.",
		ReceivedAt: testClock(),
	}

	res, err := wf.Ingest(context.Background(), item)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.Action != ActionArchived {
		t.Fatalf("expected action %q, got %q", ActionArchived, res.Action)
	}
	if res.ItemRef.State != models.StateArchived {
		t.Errorf("expected item in state %q, got %q", models.StateArchived, res.ItemRef.State)
	}

	meta, _, err := v.Read(res.ItemRef)
	if err != nil {
		t.Fatalf("reading archived item: %v", err)
	}
	if meta.Status != models.ItemStatusArchived {
		t.Errorf("expected status %q, got %q", models.ItemStatusArchived, meta.Status)
	}
	if meta.ArchivedAt != "2026-03-14T09:30:00Z" {
		t.Errorf("expected archived_at %q, got %q", "2026-03-14T09:30:00Z", meta.ArchivedAt)
	}

	pending, err := v.List(models.StatePending, "")
	if err != nil {
		t.Fatalf("listing pending: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("expected Needs_Action empty, got %d files", len(pending))
	}

	if logger.count("item.ingested") != 1 {
		t.Errorf("expected 1 item.ingested event, got %d", logger.count("item.ingested"))
	}
	if logger.count("item.archived") != 1 {
		t.Errorf("expected 1 item.archived event, got %d", logger.count("item.archived"))
	}
}

func TestWorkflow_AutoSendsSafeAcknowledgment(t *testing.T) {
	v := newTestVault(t)
	logger := &fakeEventLogger{}
	poller := &fakePoller{name: "maildir", source: models.SourceEmail}
	reg := NewPollerRegistry()
	if err := reg.Register(poller); err != nil {
		t.Fatalf("registering poller: %v", err)
	}
	wf := newTestWorkflow(t, v, reg, newSeenStore(t, v, models.SourceEmail), logger, true)

	res, err := wf.Ingest(context.Background(), ackItem())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.Action != ActionAutoSent {
		t.Fatalf("expected action %q, got %q", ActionAutoSent, res.Action)
	}

	// The reply went out through the source poller.
	if len(poller.sent) != 1 {
		t.Fatalf("expected 1 sent reply, got %d", len(poller.sent))
	}
	sent := poller.sent[0]
	if sent.to != "Mira Voss <mira@client.example>" {
		t.Errorf("expected recipient %q, got %q", "Mira Voss <mira@client.example>", sent.to)
	}
	if sent.subject != "Re: Thanks" {
		t.Errorf("expected subject %q, got %q", "Re: Thanks", sent.subject)
	}
	if !strings.HasPrefix(sent.body, "Hi Mira voss,") {
		t.Errorf("expected reply to greet the sender, got %q", sent.body)
	}

	// The item reached the Inbox with the completion stamped on it.
	if res.ItemRef.State != models.StateInbox {
		t.Fatalf("expected item in state %q, got %q", models.StateInbox, res.ItemRef.State)
	}
	meta, _, err := v.Read(res.ItemRef)
	if err != nil {
		t.Fatalf("reading item: %v", err)
	}
	if meta.Status != models.ItemStatusCompleted {
		t.Errorf("expected item status %q, got %q", models.ItemStatusCompleted, meta.Status)
	}
	if meta.PlanID != "PLAN_20260314_093000_Thanks" {
		t.Errorf("expected plan id %q, got %q", "PLAN_20260314_093000_Thanks", meta.PlanID)
	}
	if meta.PlanCompletedAt == "" {
		t.Error("expected plan_completed_at to be set")
	}

	// The plan retired to Done as auto-sent.
	if res.PlanRef.State != models.StateDone {
		t.Fatalf("expected plan in state %q, got %q", models.StateDone, res.PlanRef.State)
	}
	planMeta, _, err := v.Read(res.PlanRef)
	if err != nil {
		t.Fatalf("reading plan: %v", err)
	}
	if planMeta.Status != models.PlanStatusAutoSent {
		t.Errorf("expected plan status %q, got %q", models.PlanStatusAutoSent, planMeta.Status)
	}
	if planMeta.AutoSentTo != "Mira Voss <mira@client.example>" {
		t.Errorf("expected auto_sent_to %q, got %q", "Mira Voss <mira@client.example>", planMeta.AutoSentTo)
	}

	// The audit record landed under Logs/Auto_Sent.
	auditMeta, auditBody, err := v.ReadRecord(storage.AutoSentFolder, "AUTO_SENT_20260314_093000.md")
	if err != nil {
		t.Fatalf("reading auto-send record: %v", err)
	}
	if auditMeta.Type != models.DocTypeAutoSent {
		t.Errorf("expected record type %q, got %q", models.DocTypeAutoSent, auditMeta.Type)
	}
	if !strings.Contains(auditBody, "## Sent Reply") {
		t.Errorf("expected record to carry the sent reply, got:\n%s", auditBody)
	}

	if logger.count("item.auto_sent") != 1 {
		t.Errorf("expected 1 item.auto_sent event, got %d", logger.count("item.auto_sent"))
	}
	if logger.count("plan.created") != 1 {
		t.Errorf("expected 1 plan.created event, got %d", logger.count("plan.created"))
	}
}

func TestWorkflow_AutoSendDisabledDraftsPlan(t *testing.T) {
	v := newTestVault(t)
	poller := &fakePoller{name: "maildir", source: models.SourceEmail}
	reg := NewPollerRegistry()
	if err := reg.Register(poller); err != nil {
		t.Fatalf("registering poller: %v", err)
	}
	wf := newTestWorkflow(t, v, reg, newSeenStore(t, v, models.SourceEmail), nil, false)

	res, err := wf.Ingest(context.Background(), ackItem())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.Action != ActionPlanCreated {
		t.Fatalf("expected action %q, got %q", ActionPlanCreated, res.Action)
	}
	if poller.attempts != 0 {
		t.Errorf("expected no send attempts, got %d", poller.attempts)
	}

	if res.PlanRef.State != models.StatePlanPending {
		t.Fatalf("expected plan in state %q, got %q", models.StatePlanPending, res.PlanRef.State)
	}
	planMeta, _, err := v.Read(res.PlanRef)
	if err != nil {
		t.Fatalf("reading plan: %v", err)
	}
	if planMeta.Status != string(models.PlanPendingApproval) {
		t.Errorf("expected plan status %q, got %q", models.PlanPendingApproval, planMeta.Status)
	}
	if !planMeta.AutoApprove {
		t.Error("expected auto_approve true on the plan")
	}
	if planMeta.ItemFile != res.ItemRef.Name {
		t.Errorf("expected plan item file %q, got %q", res.ItemRef.Name, planMeta.ItemFile)
	}

	// The item stays in Needs_Action, linked to its plan.
	if res.ItemRef.State != models.StatePending {
		t.Fatalf("expected item in state %q, got %q", models.StatePending, res.ItemRef.State)
	}
	itemMeta, itemBody, err := v.Read(res.ItemRef)
	if err != nil {
		t.Fatalf("reading item: %v", err)
	}
	if itemMeta.PlanRef != res.PlanRef.Name {
		t.Errorf("expected plan_ref %q, got %q", res.PlanRef.Name, itemMeta.PlanRef)
	}
	if itemMeta.PlanLocation != "Plans" {
		t.Errorf("expected plan_location %q, got %q", "Plans", itemMeta.PlanLocation)
	}
	if !strings.Contains(itemBody, "## Processing Notes") {
		t.Error("expected a Processing Notes section on the item")
	}
	if !strings.Contains(itemBody, "Plan created: PLAN_20260314_093000_Thanks.md in Plans/") {
		t.Errorf("expected plan creation note, got:\n%s", itemBody)
	}
}

func TestWorkflow_HoldsPlanWhenSendFails(t *testing.T) {
	v := newTestVault(t)
	logger := &fakeEventLogger{}
	poller := &fakePoller{name: "maildir", source: models.SourceEmail, sendErr: fmt.Errorf("smtp unavailable")}
	reg := NewPollerRegistry()
	if err := reg.Register(poller); err != nil {
		t.Fatalf("registering poller: %v", err)
	}
	wf := newTestWorkflow(t, v, reg, newSeenStore(t, v, models.SourceEmail), logger, true)

	res, err := wf.Ingest(context.Background(), ackItem())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.Action != ActionHeld {
		t.Fatalf("expected action %q, got %q", ActionHeld, res.Action)
	}
	if poller.attempts != 1 {
		t.Errorf("expected 1 send attempt, got %d", poller.attempts)
	}
	if len(poller.sent) != 0 {
		t.Errorf("expected no delivered replies, got %d", len(poller.sent))
	}

	// The plan stays behind for manual approval.
	if res.PlanRef.State != models.StatePlanPending {
		t.Errorf("expected plan in state %q, got %q", models.StatePlanPending, res.PlanRef.State)
	}
	if !v.Exists(res.PlanRef) {
		t.Error("expected plan file to remain in Plans")
	}

	// The item stays in Needs_Action, linked to the plan, with the
	// failure noted.
	if res.ItemRef.State != models.StatePending {
		t.Errorf("expected item in state %q, got %q", models.StatePending, res.ItemRef.State)
	}
	meta, body, err := v.Read(res.ItemRef)
	if err != nil {
		t.Fatalf("reading item: %v", err)
	}
	if meta.PlanRef != res.PlanRef.Name || meta.PlanLocation != "Plans" {
		t.Errorf("expected item linked to %s in Plans, got ref %q location %q", res.PlanRef.Name, meta.PlanRef, meta.PlanLocation)
	}
	want := "Auto-send failed, plan kept in Plans/: PLAN_20260314_093000_Thanks.md (smtp unavailable)"
	if !strings.Contains(body, want) {
		t.Errorf("expected note %q, got:\n%s", want, body)
	}

	// No audit record and no auto-send event for a failed send.
	if _, _, err := v.ReadRecord(storage.AutoSentFolder, "AUTO_SENT_20260314_093000.md"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected no auto-send record, got err %v", err)
	}
	if logger.count("item.auto_sent") != 0 {
		t.Errorf("expected no item.auto_sent event, got %d", logger.count("item.auto_sent"))
	}
}

func TestWorkflow_RiskyItemRequiresReview(t *testing.T) {
	v := newTestVault(t)
	poller := &fakePoller{name: "maildir", source: models.SourceEmail}
	reg := NewPollerRegistry()
	if err := reg.Register(poller); err != nil {
		t.Fatalf("registering poller: %v", err)
	}
	wf := newTestWorkflow(t, v, reg, newSeenStore(t, v, models.SourceEmail), nil, true)

	res, err := wf.Ingest(context.Background(), contractItem())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Auto-send is on, but the classification vetoes it.
	if res.Action != ActionPlanCreated {
		t.Fatalf("expected action %q, got %q", ActionPlanCreated, res.Action)
	}
	if poller.attempts != 0 {
		t.Errorf("expected no send attempts, got %d", poller.attempts)
	}

	planMeta, planBody, err := v.Read(res.PlanRef)
	if err != nil {
		t.Fatalf("reading plan: %v", err)
	}
	if planMeta.Priority != "urgent" {
		t.Errorf("expected priority %q, got %q", "urgent", planMeta.Priority)
	}
	if planMeta.RiskLevel != string(models.RiskHigh) {
		t.Errorf("expected risk level %q, got %q", models.RiskHigh, planMeta.RiskLevel)
	}
	if planMeta.AutoApprove {
		t.Error("expected auto_approve false on the plan")
	}

	for _, want := range []string{
		"# Email Response Plan: URGENT: Contract review needed",
		"**Priority:** URGENT",
		"**Risk Level:** HIGH",
		"## Suggested Reply",
		"- [ ] To approve and send: move this file to `Approved/`",
		"## Original Message",
	} {
		if !strings.Contains(planBody, want) {
			t.Errorf("expected plan body to contain %q", want)
		}
	}
}

func TestWorkflow_IngestTwiceIsNoOp(t *testing.T) {
	v := newTestVault(t)
	seen := newSeenStore(t, v, models.SourceEmail)
	wf := newTestWorkflow(t, v, nil, seen, nil, false)

	first, err := wf.Ingest(context.Background(), ackItem())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.Action != ActionPlanCreated {
		t.Fatalf("expected first action %q, got %q", ActionPlanCreated, first.Action)
	}

	second, err := wf.Ingest(context.Background(), ackItem())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second.Action != ActionNoOp {
		t.Errorf("expected second action %q, got %q", ActionNoOp, second.Action)
	}

	plans, err := v.List(models.StatePlanPending, "PLAN_*.md")
	if err != nil {
		t.Fatalf("listing plans: %v", err)
	}
	if len(plans) != 1 {
		t.Errorf("expected 1 plan, got %d", len(plans))
	}

	// A fresh workflow sharing the persisted store still skips the item.
	reloaded := newSeenStore(t, v, models.SourceEmail)
	wf2 := newTestWorkflow(t, v, nil, reloaded, nil, false)
	third, err := wf2.Ingest(context.Background(), ackItem())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if third.Action != ActionNoOp {
		t.Errorf("expected replay action %q, got %q", ActionNoOp, third.Action)
	}
}

func TestWorkflow_ChatItemUsesChatDocTypes(t *testing.T) {
	v := newTestVault(t)
	reg := NewPollerRegistry()
	if err := reg.Register(&fakePoller{name: "chatdir", source: models.SourceChat}); err != nil {
		t.Fatalf("registering poller: %v", err)
	}
	wf := newTestWorkflow(t, v, reg, newSeenStore(t, v, models.SourceChat), nil, false)

	item := models.RawItem{
		ID:         "msg-chat-001",
		Source:     models.SourceChat,
		Sender:     "Sam Ortiz",
		Subject:    "Deploy question",
		Body:       "Can you help with the deploy?",
		ReceivedAt: testClock(),
	}

	res, err := wf.Ingest(context.Background(), item)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Action != ActionPlanCreated {
		t.Fatalf("expected action %q, got %q", ActionPlanCreated, res.Action)
	}

	itemMeta, _, err := v.Read(res.ItemRef)
	if err != nil {
		t.Fatalf("reading item: %v", err)
	}
	if itemMeta.Type != models.DocTypeChat {
		t.Errorf("expected item type %q, got %q", models.DocTypeChat, itemMeta.Type)
	}
	if !strings.HasPrefix(res.ItemRef.Name, "CHAT - ") {
		t.Errorf("expected chat file name prefix, got %q", res.ItemRef.Name)
	}

	planMeta, planBody, err := v.Read(res.PlanRef)
	if err != nil {
		t.Fatalf("reading plan: %v", err)
	}
	if planMeta.Type != models.DocTypeChatPlan {
		t.Errorf("expected plan type %q, got %q", models.DocTypeChatPlan, planMeta.Type)
	}
	if !strings.Contains(planBody, "# Chat Response Plan: Deploy question") {
		t.Errorf("expected chat plan title, got:\n%s", planBody)
	}
}

// failingSeenStore accepts ids but cannot persist them.
type failingSeenStore struct {
	ids map[string]struct{}
}

func (s *failingSeenStore) Contains(id string) bool { _, ok := s.ids[id]; return ok }
func (s *failingSeenStore) Add(id string)           { s.ids[id] = struct{}{} }
func (s *failingSeenStore) Flush() error            { return fmt.Errorf("disk full") }
func (s *failingSeenStore) Len() int                { return len(s.ids) }

func TestWorkflow_FlushFailureStillRoutes(t *testing.T) {
	v := newTestVault(t)
	seen := map[models.Source]storage.IdempotencyStore{
		models.SourceEmail: &failingSeenStore{ids: make(map[string]struct{})},
	}
	wf := newTestWorkflow(t, v, nil, seen, nil, false)

	res, err := wf.Ingest(context.Background(), ackItem())
	if err == nil {
		t.Fatal("expected flush error, got nil")
	}
	if !strings.Contains(err.Error(), "recording processed id") {
		t.Errorf("expected processed-id error, got %q", err)
	}

	// Routing completed before the flush failed; the caller gets both.
	if res == nil {
		t.Fatal("expected a result alongside the flush error")
	}
	if res.Action != ActionPlanCreated {
		t.Errorf("expected action %q, got %q", ActionPlanCreated, res.Action)
	}
	if !v.Exists(res.PlanRef) {
		t.Error("expected plan file despite flush failure")
	}
}

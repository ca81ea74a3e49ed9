// Package mcp provides an MCP (Model Context Protocol) server that exposes
// the triage engine as MCP tools for AI assistants.
package mcp

import (
	"context"
	"fmt"
	"time"

	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/valter-silva-au/comms-triage/internal/core"
	"github.com/valter-silva-au/comms-triage/internal/observability"
	"github.com/valter-silva-au/comms-triage/pkg/models"
)

// Server wraps the triage services and exposes them as MCP tools.
type Server struct {
	server      *gomcp.Server
	triage      core.TriageManager
	classifier  core.Classifier
	supervisor  core.HealthSupervisor
	metricsCalc observability.MetricsCalculator
}

// NewServer creates a new MCP server with the given service dependencies.
// supervisor and metricsCalc may be nil if the corresponding surface is
// not available.
func NewServer(triage core.TriageManager, classifier core.Classifier, supervisor core.HealthSupervisor, metricsCalc observability.MetricsCalculator, version string) *Server {
	if version == "" {
		version = "dev"
	}

	s := &Server{
		triage:      triage,
		classifier:  classifier,
		supervisor:  supervisor,
		metricsCalc: metricsCalc,
	}

	s.server = gomcp.NewServer(
		&gomcp.Implementation{Name: "cte", Version: version},
		nil,
	)

	s.registerTools()

	return s
}

// Run starts the MCP server on stdio, blocking until the client
// disconnects or the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &gomcp.StdioTransport{})
}

// MCPServer returns the underlying mcp.Server for testing purposes.
func (s *Server) MCPServer() *gomcp.Server {
	return s.server
}

// --- Tool input/output types ---

type listItemsInput struct {
	State string `json:"state,omitempty" jsonschema:"filter items by workflow state (pending, inbox, done)"`
}

type itemOutput struct {
	Name      string `json:"name"`
	State     string `json:"state"`
	MessageID string `json:"message_id,omitempty"`
	Source    string `json:"source,omitempty"`
	From      string `json:"from,omitempty"`
	Subject   string `json:"subject,omitempty"`
	Category  string `json:"category,omitempty"`
	Priority  string `json:"priority,omitempty"`
	RiskLevel string `json:"risk_level,omitempty"`
	Status    string `json:"status,omitempty"`
	Received  string `json:"received,omitempty"`
}

type listItemsOutput struct {
	Items []itemOutput `json:"items"`
	Count int          `json:"count"`
}

type getPlanInput struct {
	PlanID string `json:"plan_id" jsonschema:"required,the plan identifier (e.g. PLAN_20260314_093000_Invoice)"`
}

type planOutput struct {
	ID         string `json:"id"`
	ItemFile   string `json:"item_file,omitempty"`
	From       string `json:"from,omitempty"`
	Subject    string `json:"subject,omitempty"`
	Reply      string `json:"reply,omitempty"`
	Status     string `json:"status"`
	Created    string `json:"created,omitempty"`
	ExecutedAt string `json:"executed_at,omitempty"`
	RejectedAt string `json:"rejected_at,omitempty"`
}

type listPlansInput struct {
	Status string `json:"status,omitempty" jsonschema:"filter plans by status (pending_approval, approved, rejected, executed)"`
}

type listPlansOutput struct {
	Plans []planOutput `json:"plans"`
	Count int          `json:"count"`
}

type decidePlanInput struct {
	PlanID string `json:"plan_id" jsonschema:"required,the plan identifier (e.g. PLAN_20260314_093000_Invoice)"`
}

type decidePlanOutput struct {
	Message string     `json:"message"`
	Plan    planOutput `json:"plan"`
}

type classifyMessageInput struct {
	Sender  string `json:"sender,omitempty" jsonschema:"the message sender address or name"`
	Subject string `json:"subject,omitempty" jsonschema:"the message subject line"`
	Body    string `json:"body,omitempty" jsonschema:"the message body text"`
}

type classificationOutput struct {
	Priority       int      `json:"priority"`
	PriorityLabel  string   `json:"priority_label"`
	Category       string   `json:"category"`
	RiskLevel      string   `json:"risk_level"`
	RiskScore      int      `json:"risk_score"`
	RiskFactors    []string `json:"risk_factors,omitempty"`
	ActionItems    []string `json:"action_items,omitempty"`
	NeedsReply     bool     `json:"needs_reply"`
	AutoApprove    bool     `json:"auto_approve"`
	SuggestedReply string   `json:"suggested_reply,omitempty"`
	Confidence     float64  `json:"confidence"`
	Reason         string   `json:"reason"`
}

type getHealthInput struct{}

type workerOutput struct {
	Name                string `json:"name"`
	Status              string `json:"status"`
	LastHeartbeat       string `json:"last_heartbeat"`
	ConsecutiveFailures int    `json:"consecutive_failures"`
	RestartAttempts     int    `json:"restart_attempts"`
	LastError           string `json:"last_error,omitempty"`
}

type healthOutput struct {
	GeneratedAt string         `json:"generated_at"`
	Workers     []workerOutput `json:"workers"`
	Healthy     int            `json:"healthy"`
	Degraded    int            `json:"degraded"`
	Failed      int            `json:"failed"`
	Recovering  int            `json:"recovering"`
}

type getMetricsInput struct {
	Since string `json:"since,omitempty" jsonschema:"time window for metrics (e.g. 24h, 7d). Defaults to 24h."`
}

type metricsOutput struct {
	ItemsIngested  int            `json:"items_ingested"`
	ItemsArchived  int            `json:"items_archived"`
	AutoSent       int            `json:"auto_sent"`
	PlansCreated   int            `json:"plans_created"`
	PlansExecuted  int            `json:"plans_executed"`
	PlansRejected  int            `json:"plans_rejected"`
	WorkerRestarts int            `json:"worker_restarts"`
	AlertsRaised   int            `json:"alerts_raised"`
	ByCategory     map[string]int `json:"by_category"`
	BySource       map[string]int `json:"by_source"`
	EventCount     int            `json:"event_count"`
	OldestEvent    string         `json:"oldest_event,omitempty"`
	NewestEvent    string         `json:"newest_event,omitempty"`
}

// --- Tool registration ---

func (s *Server) registerTools() {
	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "list_items",
		Description: "List triaged items with an optional workflow state filter (pending, inbox, done). Returns item summaries with classification fields.",
	}, s.handleListItems)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_plan",
		Description: "Get a response plan by ID. Returns the full plan including the suggested reply and lifecycle status.",
	}, s.handleGetPlan)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "list_plans",
		Description: "List response plans with an optional status filter (pending_approval, approved, rejected, executed).",
	}, s.handleListPlans)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "approve_plan",
		Description: "Approve a pending response plan. The plan file moves to the Approved folder and the next executor pass sends it.",
	}, s.handleApprovePlan)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "reject_plan",
		Description: "Reject a pending response plan. The plan file moves to the Rejected folder and the rejection is noted on the item.",
	}, s.handleRejectPlan)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "classify_message",
		Description: "Preview how a message would be classified: priority, category, risk, and whether a reply would be drafted or auto-sent.",
	}, s.handleClassifyMessage)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_health",
		Description: "Get the health report for all supervised workers, including failure streaks and restart attempts.",
	}, s.handleGetHealth)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_metrics",
		Description: "Get aggregated metrics from the event log, including ingest, auto-send, and plan execution counts.",
	}, s.handleGetMetrics)
}

// --- Tool handlers ---

func (s *Server) handleListItems(_ context.Context, _ *gomcp.CallToolRequest, input listItemsInput) (*gomcp.CallToolResult, listItemsOutput, error) {
	if input.State != "" {
		validStates := map[string]bool{"pending": true, "inbox": true, "done": true}
		if !validStates[input.State] {
			return errorResult(fmt.Sprintf("invalid state %q: must be one of pending, inbox, done", input.State)), listItemsOutput{}, nil
		}
	}

	items, err := s.triage.ListItems(models.ItemState(input.State))
	if err != nil {
		return errorResult(fmt.Sprintf("listing items: %s", err)), listItemsOutput{}, nil
	}

	out := listItemsOutput{
		Items: make([]itemOutput, len(items)),
		Count: len(items),
	}
	for i, item := range items {
		out.Items[i] = itemOutput{
			Name:      item.Name,
			State:     string(item.State),
			MessageID: item.MessageID,
			Source:    string(item.Source),
			From:      item.From,
			Subject:   item.Subject,
			Category:  item.Category,
			Priority:  item.Priority,
			RiskLevel: item.RiskLevel,
			Status:    item.Status,
			Received:  item.Received,
		}
	}

	return nil, out, nil
}

func (s *Server) handleGetPlan(_ context.Context, _ *gomcp.CallToolRequest, input getPlanInput) (*gomcp.CallToolResult, planOutput, error) {
	if input.PlanID == "" {
		return errorResult("plan_id is required"), planOutput{}, nil
	}

	plan, err := s.triage.GetPlan(input.PlanID)
	if err != nil {
		return errorResult(fmt.Sprintf("getting plan %s: %s", input.PlanID, err)), planOutput{}, nil
	}

	return nil, planToOutput(plan), nil
}

func (s *Server) handleListPlans(_ context.Context, _ *gomcp.CallToolRequest, input listPlansInput) (*gomcp.CallToolResult, listPlansOutput, error) {
	plans, err := s.triage.ListPlans(models.PlanStatus(input.Status))
	if err != nil {
		return errorResult(fmt.Sprintf("listing plans: %s", err)), listPlansOutput{}, nil
	}

	out := listPlansOutput{
		Plans: make([]planOutput, len(plans)),
		Count: len(plans),
	}
	for i, plan := range plans {
		out.Plans[i] = planToOutput(plan)
	}

	return nil, out, nil
}

func (s *Server) handleApprovePlan(_ context.Context, _ *gomcp.CallToolRequest, input decidePlanInput) (*gomcp.CallToolResult, decidePlanOutput, error) {
	if input.PlanID == "" {
		return errorResult("plan_id is required"), decidePlanOutput{}, nil
	}

	plan, err := s.triage.ApprovePlan(input.PlanID)
	if err != nil {
		return errorResult(fmt.Sprintf("approving plan %s: %s", input.PlanID, err)), decidePlanOutput{}, nil
	}

	out := decidePlanOutput{
		Message: fmt.Sprintf("plan %s approved; the reply to %s will be sent on the next executor pass", plan.ID, plan.From),
		Plan:    planToOutput(plan),
	}
	return nil, out, nil
}

func (s *Server) handleRejectPlan(_ context.Context, _ *gomcp.CallToolRequest, input decidePlanInput) (*gomcp.CallToolResult, decidePlanOutput, error) {
	if input.PlanID == "" {
		return errorResult("plan_id is required"), decidePlanOutput{}, nil
	}

	plan, err := s.triage.RejectPlan(input.PlanID)
	if err != nil {
		return errorResult(fmt.Sprintf("rejecting plan %s: %s", input.PlanID, err)), decidePlanOutput{}, nil
	}

	out := decidePlanOutput{
		Message: fmt.Sprintf("plan %s rejected; the item stays in Needs_Action for manual handling", plan.ID),
		Plan:    planToOutput(plan),
	}
	return nil, out, nil
}

func (s *Server) handleClassifyMessage(_ context.Context, _ *gomcp.CallToolRequest, input classifyMessageInput) (*gomcp.CallToolResult, classificationOutput, error) {
	if input.Subject == "" && input.Body == "" {
		return errorResult("subject or body is required"), classificationOutput{}, nil
	}

	cls := s.classifier.Classify(input.Sender, input.Subject, input.Body, nil)

	out := classificationOutput{
		Priority:       cls.Priority,
		PriorityLabel:  cls.PriorityLabel,
		Category:       string(cls.Category),
		RiskLevel:      string(cls.RiskLevel),
		RiskScore:      cls.RiskScore,
		RiskFactors:    cls.RiskFactors,
		ActionItems:    cls.ActionItems,
		NeedsReply:     cls.NeedsReply,
		AutoApprove:    cls.AutoApprove,
		SuggestedReply: cls.SuggestedReply,
		Confidence:     cls.Confidence,
		Reason:         cls.Reason,
	}
	return nil, out, nil
}

func (s *Server) handleGetHealth(_ context.Context, _ *gomcp.CallToolRequest, _ getHealthInput) (*gomcp.CallToolResult, healthOutput, error) {
	if s.supervisor == nil {
		return errorResult("health supervisor not available (no orchestrator running in this process)"), healthOutput{}, nil
	}

	report := s.supervisor.Report()

	out := healthOutput{
		GeneratedAt: report.GeneratedAt.Format(time.RFC3339),
		Workers:     make([]workerOutput, len(report.Workers)),
		Healthy:     report.Healthy,
		Degraded:    report.Degraded,
		Failed:      report.Failed,
		Recovering:  report.Recovering,
	}
	for i, w := range report.Workers {
		out.Workers[i] = workerOutput{
			Name:                w.Name,
			Status:              string(w.Status),
			LastHeartbeat:       w.LastHeartbeat.Format(time.RFC3339),
			ConsecutiveFailures: w.ConsecutiveFailures,
			RestartAttempts:     w.RestartAttempts,
			LastError:           w.LastError,
		}
	}

	return nil, out, nil
}

func (s *Server) handleGetMetrics(_ context.Context, _ *gomcp.CallToolRequest, input getMetricsInput) (*gomcp.CallToolResult, metricsOutput, error) {
	if s.metricsCalc == nil {
		return errorResult("metrics calculator not available (observability may be disabled)"), emptyMetricsOutput(), nil
	}

	sinceStr := input.Since
	if sinceStr == "" {
		sinceStr = "24h"
	}

	sinceTime, err := parseSince(sinceStr)
	if err != nil {
		return errorResult(fmt.Sprintf("parsing since duration: %s", err)), emptyMetricsOutput(), nil
	}

	metrics, err := s.metricsCalc.Calculate(sinceTime)
	if err != nil {
		return errorResult(fmt.Sprintf("calculating metrics: %s", err)), emptyMetricsOutput(), nil
	}

	out := metricsOutput{
		ItemsIngested:  metrics.ItemsIngested,
		ItemsArchived:  metrics.ItemsArchived,
		AutoSent:       metrics.AutoSent,
		PlansCreated:   metrics.PlansCreated,
		PlansExecuted:  metrics.PlansExecuted,
		PlansRejected:  metrics.PlansRejected,
		WorkerRestarts: metrics.WorkerRestarts,
		AlertsRaised:   metrics.AlertsRaised,
		ByCategory:     metrics.ByCategory,
		BySource:       metrics.BySource,
		EventCount:     metrics.EventCount,
	}
	if metrics.OldestEvent != nil {
		out.OldestEvent = metrics.OldestEvent.Format(time.RFC3339)
	}
	if metrics.NewestEvent != nil {
		out.NewestEvent = metrics.NewestEvent.Format(time.RFC3339)
	}

	return nil, out, nil
}

// --- Helpers ---

func planToOutput(p *models.Plan) planOutput {
	return planOutput{
		ID:         p.ID,
		ItemFile:   p.ItemFile,
		From:       p.From,
		Subject:    p.Subject,
		Reply:      p.Reply,
		Status:     string(p.Status),
		Created:    p.Meta.Created,
		ExecutedAt: p.Meta.ExecutedAt,
		RejectedAt: p.Meta.RejectedAt,
	}
}

func emptyMetricsOutput() metricsOutput {
	return metricsOutput{
		ByCategory: make(map[string]int),
		BySource:   make(map[string]int),
	}
}

func errorResult(msg string) *gomcp.CallToolResult {
	return &gomcp.CallToolResult{
		Content: []gomcp.Content{&gomcp.TextContent{Text: msg}},
		IsError: true,
	}
}

// parseSince parses a human-friendly duration string like "24h", "7d", or
// "30d" into the corresponding time in the past.
func parseSince(s string) (time.Time, error) {
	now := time.Now().UTC()

	if len(s) < 2 {
		return time.Time{}, fmt.Errorf("invalid duration %q", s)
	}

	suffix := s[len(s)-1]
	numStr := s[:len(s)-1]
	var num int
	if _, err := fmt.Sscanf(numStr, "%d", &num); err != nil {
		return time.Time{}, fmt.Errorf("invalid duration %q: %w", s, err)
	}

	switch suffix {
	case 'd':
		return now.AddDate(0, 0, -num), nil
	case 'h':
		return now.Add(-time.Duration(num) * time.Hour), nil
	default:
		return time.Time{}, fmt.Errorf("unsupported duration suffix %q (use d or h)", string(suffix))
	}
}

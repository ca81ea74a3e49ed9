package cli

import (
	"fmt"
	"sort"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/valter-silva-au/comms-triage/internal/storage"
	"github.com/valter-silva-au/comms-triage/pkg/models"
)

// Dashboard panel indices.
const (
	panelQueues = iota
	panelWorkers
	panelAlerts
	panelCount
)

type dashboardModel struct {
	activePanel int
	width       int
	height      int

	// Data.
	itemCounts map[string]int
	planCounts map[string]int
	workers    []workerSnapshot
	alerts     []alertSnapshot

	// State.
	loading bool
	err     error
}

type workerSnapshot struct {
	name     string
	status   string
	failures int
	restarts string
}

type alertSnapshot struct {
	severity string
	message  string
	time     string
}

// dataLoadedMsg carries loaded data back to the model.
type dataLoadedMsg struct {
	itemCounts map[string]int
	planCounts map[string]int
	workers    []workerSnapshot
	alerts     []alertSnapshot
	err        error
}

// Style definitions.
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	panelStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(1, 2)

	activePanelStyle = lipgloss.NewStyle().
				BorderStyle(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("62")).
				Padding(1, 2)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62")).
			MarginBottom(1)

	folderPending = lipgloss.NewStyle().Foreground(lipgloss.Color("226"))
	folderInbox   = lipgloss.NewStyle().Foreground(lipgloss.Color("69"))
	folderDone    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	planOpen      = lipgloss.NewStyle().Foreground(lipgloss.Color("141"))

	workerHealthy    = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	workerDegraded   = lipgloss.NewStyle().Foreground(lipgloss.Color("226"))
	workerFailed     = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	workerRecovering = lipgloss.NewStyle().Foreground(lipgloss.Color("141"))

	severityHigh   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	severityMedium = lipgloss.NewStyle().Foreground(lipgloss.Color("226"))
	severityLow    = lipgloss.NewStyle().Foreground(lipgloss.Color("69"))

	helpStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

func newDashboardModel() dashboardModel {
	return dashboardModel{
		activePanel: panelQueues,
		loading:     true,
		itemCounts:  make(map[string]int),
		planCounts:  make(map[string]int),
	}
}

func (m dashboardModel) Init() tea.Cmd {
	return loadData
}

func (m dashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		case "tab":
			m.activePanel = (m.activePanel + 1) % panelCount
			return m, nil
		case "shift+tab":
			m.activePanel = (m.activePanel - 1 + panelCount) % panelCount
			return m, nil
		case "r":
			m.loading = true
			return m, loadData
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case dataLoadedMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.itemCounts = msg.itemCounts
		m.planCounts = msg.planCounts
		m.workers = msg.workers
		m.alerts = msg.alerts
		m.err = nil
		return m, nil
	}

	return m, nil
}

func (m dashboardModel) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	title := titleStyle.Render(" CTE Dashboard ")
	help := helpStyle.Render("tab: switch panel | r: refresh | q: quit")

	if m.loading {
		return fmt.Sprintf("%s\n\n  Loading data...\n\n%s", title, help)
	}

	if m.err != nil {
		return fmt.Sprintf("%s\n\n  Error: %s\n\n%s", title, m.err, help)
	}

	queuesPanel := m.renderQueuesPanel()
	workersPanel := m.renderWorkersPanel()
	alertsPanel := m.renderAlertsPanel()

	// Available width for panels after accounting for margins.
	availableWidth := m.width - 2

	var body string
	if availableWidth > 120 {
		// Horizontal layout: three columns.
		colWidth := availableWidth / 3
		queuesPanel = m.applyPanelStyle(panelQueues, queuesPanel, colWidth-4)
		workersPanel = m.applyPanelStyle(panelWorkers, workersPanel, colWidth-4)
		alertsPanel = m.applyPanelStyle(panelAlerts, alertsPanel, colWidth-4)
		body = lipgloss.JoinHorizontal(lipgloss.Top, queuesPanel, workersPanel, alertsPanel)
	} else {
		// Vertical layout: stacked.
		panelWidth := availableWidth - 4
		if panelWidth < 20 {
			panelWidth = 20
		}
		queuesPanel = m.applyPanelStyle(panelQueues, queuesPanel, panelWidth)
		workersPanel = m.applyPanelStyle(panelWorkers, workersPanel, panelWidth)
		alertsPanel = m.applyPanelStyle(panelAlerts, alertsPanel, panelWidth)
		body = lipgloss.JoinVertical(lipgloss.Left, queuesPanel, workersPanel, alertsPanel)
	}

	return fmt.Sprintf("%s\n\n%s\n\n%s", title, body, help)
}

func (m dashboardModel) applyPanelStyle(panel int, content string, width int) string {
	style := panelStyle
	if m.activePanel == panel {
		style = activePanelStyle
	}
	return style.Width(width).Render(content)
}

func (m dashboardModel) renderQueuesPanel() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Queues"))
	b.WriteString("\n")

	// Display folders in workflow order.
	order := []string{"Needs_Action", "Inbox", "Done"}
	for _, folder := range order {
		label := fmt.Sprintf("  %-16s %d", folder, m.itemCounts[folder])
		b.WriteString(styleForFolder(folder).Render(label))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	planOrder := []string{"pending_approval", "approved", "rejected"}
	for _, status := range planOrder {
		label := fmt.Sprintf("  %-16s %d", status, m.planCounts[status])
		if status == "pending_approval" && m.planCounts[status] > 0 {
			b.WriteString(planOpen.Render(label))
		} else {
			b.WriteString(label)
		}
		b.WriteString("\n")
	}

	return b.String()
}

func (m dashboardModel) renderWorkersPanel() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Workers"))
	b.WriteString("\n")

	if len(m.workers) == 0 {
		b.WriteString("  No workers in this process.\n  Start the engine with cte run.")
		return b.String()
	}

	for _, w := range m.workers {
		label := fmt.Sprintf("  %-12s %s", w.name, w.status)
		if w.failures > 0 {
			label += fmt.Sprintf(" (%d fails, restarts %s)", w.failures, w.restarts)
		}
		b.WriteString(styleForWorker(w.status).Render(label))
		b.WriteString("\n")
	}

	return b.String()
}

func (m dashboardModel) renderAlertsPanel() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Alerts"))
	b.WriteString("\n")

	if len(m.alerts) == 0 {
		b.WriteString("  No active alerts.")
		return b.String()
	}

	for _, a := range m.alerts {
		sev := styleForSeverity(a.severity).Render(fmt.Sprintf("[%s]", strings.ToUpper(a.severity)))
		b.WriteString(fmt.Sprintf("  %s %s\n", sev, a.message))
	}

	b.WriteString(fmt.Sprintf("\n  Total: %d alert(s)", len(m.alerts)))

	return b.String()
}

func styleForFolder(folder string) lipgloss.Style {
	switch folder {
	case "Needs_Action":
		return folderPending
	case "Inbox":
		return folderInbox
	case "Done":
		return folderDone
	default:
		return lipgloss.NewStyle()
	}
}

func styleForWorker(status string) lipgloss.Style {
	switch status {
	case "healthy":
		return workerHealthy
	case "degraded":
		return workerDegraded
	case "failed":
		return workerFailed
	case "recovering":
		return workerRecovering
	default:
		return lipgloss.NewStyle()
	}
}

func styleForSeverity(severity string) lipgloss.Style {
	switch strings.ToLower(severity) {
	case "high":
		return severityHigh
	case "medium":
		return severityMedium
	case "low":
		return severityLow
	default:
		return lipgloss.NewStyle()
	}
}

func loadData() tea.Msg {
	result := dataLoadedMsg{
		itemCounts: make(map[string]int),
		planCounts: make(map[string]int),
	}

	// Load queue depths from the triage manager.
	if Triage != nil {
		for _, state := range []models.ItemState{models.StatePending, models.StateInbox, models.StateDone} {
			items, err := Triage.ListItems(state)
			if err != nil {
				result.err = fmt.Errorf("loading items: %w", err)
				return result
			}
			result.itemCounts[storage.FolderFor(state)] = len(items)
		}

		statuses := []models.PlanStatus{models.PlanPendingApproval, models.PlanApproved, models.PlanRejected}
		for _, status := range statuses {
			plans, err := Triage.ListPlans(status)
			if err != nil {
				result.err = fmt.Errorf("loading plans: %w", err)
				return result
			}
			result.planCounts[string(status)] = len(plans)
		}
	}

	// Load worker health from the supervisor.
	if Supervisor != nil {
		report := Supervisor.Report()
		result.workers = make([]workerSnapshot, 0, len(report.Workers))
		for _, w := range report.Workers {
			result.workers = append(result.workers, workerSnapshot{
				name:     w.Name,
				status:   string(w.Status),
				failures: w.ConsecutiveFailures,
				restarts: fmt.Sprintf("%d/%d", w.RestartAttempts, w.MaxRestartAttempts),
			})
		}
	}

	// Load alerts from AlertEngine.
	if AlertEngine != nil {
		alerts, err := AlertEngine.Evaluate()
		if err != nil {
			result.err = fmt.Errorf("loading alerts: %w", err)
			return result
		}
		result.alerts = make([]alertSnapshot, 0, len(alerts))

		// Sort alerts by severity: high first, then medium, then low.
		sort.Slice(alerts, func(i, j int) bool {
			return severityRank(string(alerts[i].Severity)) < severityRank(string(alerts[j].Severity))
		})

		for _, a := range alerts {
			result.alerts = append(result.alerts, alertSnapshot{
				severity: string(a.Severity),
				message:  a.Message,
				time:     a.TriggeredAt.Format("2006-01-02 15:04 UTC"),
			})
		}
	}

	return result
}

func severityRank(s string) int {
	switch s {
	case "high":
		return 0
	case "medium":
		return 1
	case "low":
		return 2
	default:
		return 3
	}
}

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Interactive TUI dashboard for queues, workers, and alerts",
	Long: `Launch an interactive terminal dashboard showing queue depths, worker
health, and active alerts in a live view.

Navigate between panels with Tab, refresh with r, quit with q.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Triage == nil {
			return fmt.Errorf("triage manager not initialized")
		}
		p := tea.NewProgram(newDashboardModel(), tea.WithAltScreen())
		_, err := p.Run()
		return err
	},
}

func init() {
	rootCmd.AddCommand(dashboardCmd)
}

package cli

import (
	"fmt"

	"github.com/valter-silva-au/comms-triage/pkg/models"
)

// triageMock implements core.TriageManager with per-method hooks. Tests set
// only the hooks they need; unset methods fail loudly.
type triageMock struct {
	listItemsFn   func(state models.ItemState) ([]models.ItemSummary, error)
	getPlanFn     func(planID string) (*models.Plan, error)
	listPlansFn   func(status models.PlanStatus) ([]*models.Plan, error)
	approvePlanFn func(planID string) (*models.Plan, error)
	rejectPlanFn  func(planID string) (*models.Plan, error)
}

func (m *triageMock) ListItems(state models.ItemState) ([]models.ItemSummary, error) {
	if m.listItemsFn != nil {
		return m.listItemsFn(state)
	}
	return nil, fmt.Errorf("not implemented")
}

func (m *triageMock) GetPlan(planID string) (*models.Plan, error) {
	if m.getPlanFn != nil {
		return m.getPlanFn(planID)
	}
	return nil, fmt.Errorf("not implemented")
}

func (m *triageMock) ListPlans(status models.PlanStatus) ([]*models.Plan, error) {
	if m.listPlansFn != nil {
		return m.listPlansFn(status)
	}
	return nil, fmt.Errorf("not implemented")
}

func (m *triageMock) ApprovePlan(planID string) (*models.Plan, error) {
	if m.approvePlanFn != nil {
		return m.approvePlanFn(planID)
	}
	return nil, fmt.Errorf("not implemented")
}

func (m *triageMock) RejectPlan(planID string) (*models.Plan, error) {
	if m.rejectPlanFn != nil {
		return m.rejectPlanFn(planID)
	}
	return nil, fmt.Errorf("not implemented")
}

// supervisorMock implements core.HealthSupervisor for report rendering tests.
type supervisorMock struct {
	reportFn func() models.HealthReport
}

func (m *supervisorMock) Register(_ string) {}

func (m *supervisorMock) Heartbeat(_ string, _ bool, _ error) {}

func (m *supervisorMock) CheckAll() []models.RestartDecision { return nil }

func (m *supervisorMock) Decide(_ string) models.RestartDecision {
	return models.RestartDecision{}
}

func (m *supervisorMock) Report() models.HealthReport {
	if m.reportFn != nil {
		return m.reportFn()
	}
	return models.HealthReport{}
}

package license

// Plan defines the entitlements a license carries
type Plan struct {
	Name            string `json:"name"`
	CreditsMonthly  int    `json:"credits_monthly"`
	ActivationLimit int    `json:"activation_limit"`
	TrialDays       int    `json:"trial_days,omitempty"` // Expiry for time-limited plans, 0 means no auto expiry
}

// Plan names
const (
	PlanTrial        = "trial"
	PlanStarter      = "starter"
	PlanProfessional = "professional"
	PlanAgency       = "agency"
)

var plans = map[string]Plan{
	PlanTrial:        {Name: PlanTrial, CreditsMonthly: 10, ActivationLimit: 1, TrialDays: 14},
	PlanStarter:      {Name: PlanStarter, CreditsMonthly: 100, ActivationLimit: 1},
	PlanProfessional: {Name: PlanProfessional, CreditsMonthly: 500, ActivationLimit: 3},
	PlanAgency:       {Name: PlanAgency, CreditsMonthly: 2000, ActivationLimit: 10},
}

// GetPlan looks up a plan by name
func GetPlan(name string) (Plan, bool) {
	p, ok := plans[name]
	return p, ok
}

// Plans returns the full plan catalog
func Plans() []Plan {
	return []Plan{plans[PlanTrial], plans[PlanStarter], plans[PlanProfessional], plans[PlanAgency]}
}

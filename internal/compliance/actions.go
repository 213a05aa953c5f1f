package compliance

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/propply/backend/internal/normalize"
	"github.com/propply/backend/internal/scoring"
)

// ActionViolationResolution is the only action type the plan currently
// generates; certification renewals ride on the same shape when a source
// for them lands.
const ActionViolationResolution = "VIOLATION_RESOLUTION"

// Action is one prioritized remediation item in the report's action plan.
type Action struct {
	ID               string               `json:"id"`
	Type             string               `json:"type"`
	Source           string               `json:"source"`
	Priority         scoring.RiskLevel    `json:"priority"`
	Category         scoring.RiskCategory `json:"category"`
	Title            string               `json:"title"`
	Description      string               `json:"description"`
	ViolationDate    string               `json:"violation_date"`
	EstimatedCostMin int                  `json:"estimated_cost_min"`
	EstimatedCostMax int                  `json:"estimated_cost_max"`
	Deadline         string               `json:"deadline"`
	RegulatoryImpact string               `json:"regulatory_impact"`
}

var priorityRank = map[scoring.RiskLevel]int{
	scoring.RiskCritical: 0,
	scoring.RiskHigh:     1,
	scoring.RiskMedium:   2,
	scoring.RiskLow:      3,
}

var actionDeadlineDays = map[scoring.RiskLevel]int{
	scoring.RiskCritical: 7,
	scoring.RiskHigh:     30,
	scoring.RiskMedium:   90,
	scoring.RiskLow:      180,
}

// BuildActionPlan turns the run's open HPD and DOB violations into a
// remediation plan ordered most urgent first, cheapest first within the
// same urgency.
func BuildActionPlan(hpd, dob []map[string]interface{}, now time.Time) []Action {
	actions := make([]Action, 0, len(hpd)+len(dob))
	actions = append(actions, violationActions("HPD", hpd, now)...)
	actions = append(actions, violationActions("DOB", dob, now)...)

	sort.SliceStable(actions, func(i, j int) bool {
		ri, rj := rank(actions[i].Priority), rank(actions[j].Priority)
		if ri != rj {
			return ri < rj
		}
		return actions[i].EstimatedCostMax < actions[j].EstimatedCostMax
	})
	return actions
}

func rank(level scoring.RiskLevel) int {
	if r, ok := priorityRank[level]; ok {
		return r
	}
	return priorityRank[scoring.RiskMedium]
}

func violationActions(source string, rows []map[string]interface{}, now time.Time) []Action {
	actions := make([]Action, 0, len(rows))
	for i, row := range rows {
		status := normalize.FirstString(row, "status", "violationstatus")
		if !scoring.IsOpenStatus(status) {
			continue
		}

		desc := normalize.FirstString(row,
			"novdescription", "violation_type", "description", "violation_category")
		cat := scoring.Categorize(desc)
		profile := scoring.Profile(cat)

		id := normalize.FirstString(row, "violationid", "isn_dob_bis_viol")
		if id == "" {
			id = fmt.Sprintf("%s_%d", strings.ToLower(source), i)
		}

		actions = append(actions, Action{
			ID:               "violation_" + id,
			Type:             ActionViolationResolution,
			Source:           source,
			Priority:         profile.Urgency,
			Category:         cat,
			Title:            fmt.Sprintf("Resolve %s Violation", titleWord(string(cat))),
			Description:      desc,
			ViolationDate:    normalize.FirstString(row, "inspectiondate", "issue_date", "violation_date"),
			EstimatedCostMin: profile.CostMin,
			EstimatedCostMax: profile.CostMax,
			Deadline:         now.AddDate(0, 0, deadlineDays(profile.Urgency)).Format("2006-01-02"),
			RegulatoryImpact: profile.Impact,
		})
	}
	return actions
}

func deadlineDays(level scoring.RiskLevel) int {
	if d, ok := actionDeadlineDays[level]; ok {
		return d
	}
	return actionDeadlineDays[scoring.RiskHigh]
}

func titleWord(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}

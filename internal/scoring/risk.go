package scoring

import "strings"

// RiskCategory buckets violation text by the hazard it describes.
type RiskCategory string

const (
	CategoryFire       RiskCategory = "FIRE"
	CategoryStructural RiskCategory = "STRUCTURAL"
	CategoryElectrical RiskCategory = "ELECTRICAL"
	CategoryMechanical RiskCategory = "MECHANICAL"
	CategoryPlumbing   RiskCategory = "PLUMBING"
	CategoryHousing    RiskCategory = "HOUSING"
	CategoryZoning     RiskCategory = "ZONING"
	CategoryOther      RiskCategory = "OTHER"
)

// CategoryProfile carries the remediation guidance attached to a category:
// how urgent the fix is, an indicative cost band in dollars, and the
// regulatory exposure of leaving it open.
type CategoryProfile struct {
	Keywords []string
	Urgency  RiskLevel
	CostMin  int
	CostMax  int
	Impact   string
}

// categoryOrder fixes match precedence; the first category with a keyword
// hit wins, so FIRE outranks ZONING when a description mentions both.
var categoryOrder = []RiskCategory{
	CategoryFire,
	CategoryStructural,
	CategoryElectrical,
	CategoryMechanical,
	CategoryPlumbing,
	CategoryHousing,
	CategoryZoning,
}

var categoryProfiles = map[RiskCategory]CategoryProfile{
	CategoryFire: {
		Keywords: []string{"FIRE", "SPRINKLER", "ALARM", "SMOKE", "EGRESS", "EMERGENCY"},
		Urgency:  RiskCritical,
		CostMin:  1000,
		CostMax:  5000,
		Impact:   "Potential building closure, heavy fines",
	},
	CategoryStructural: {
		Keywords: []string{"STRUCTURAL", "FOUNDATION", "WALL", "ROOF", "FLOOR"},
		Urgency:  RiskHigh,
		CostMin:  5000,
		CostMax:  25000,
		Impact:   "Evacuation order possible, liability issues",
	},
	CategoryElectrical: {
		Keywords: []string{"ELECTRICAL", "WIRING", "POWER", "ELECTRIC"},
		Urgency:  RiskHigh,
		CostMin:  500,
		CostMax:  3000,
		Impact:   "Safety hazard, potential utility disconnection",
	},
	CategoryMechanical: {
		Keywords: []string{"HVAC", "MECHANICAL", "HEATING", "VENTILATION", "COOLING"},
		Urgency:  RiskMedium,
		CostMin:  1000,
		CostMax:  8000,
		Impact:   "System failure risk, comfort/health issues",
	},
	CategoryPlumbing: {
		Keywords: []string{"PLUMBING", "WATER", "SEWER", "DRAIN", "PIPE"},
		Urgency:  RiskMedium,
		CostMin:  300,
		CostMax:  2000,
		Impact:   "Health code violations, tenant complaints",
	},
	CategoryHousing: {
		Keywords: []string{"HOUSING", "APARTMENT", "TENANT", "HABITABILITY"},
		Urgency:  RiskLow,
		CostMin:  200,
		CostMax:  1500,
		Impact:   "Habitability issues, rental license risk",
	},
	CategoryZoning: {
		Keywords: []string{"ZONING", "USE", "OCCUPANCY", "CERTIFICATE"},
		Urgency:  RiskLow,
		CostMin:  100,
		CostMax:  1000,
		Impact:   "Use restrictions, permit complications",
	},
	CategoryOther: {
		Urgency: RiskMedium,
		CostMin: 500,
		CostMax: 2000,
		Impact:  "Compliance issues, potential fines",
	},
}

// Categorize assigns violation text to the first risk category whose
// keyword appears in it.
func Categorize(text string) RiskCategory {
	upper := strings.ToUpper(text)
	for _, cat := range categoryOrder {
		for _, kw := range categoryProfiles[cat].Keywords {
			if strings.Contains(upper, kw) {
				return cat
			}
		}
	}
	return CategoryOther
}

// Profile returns the remediation guidance for a category; unknown
// categories get the OTHER profile.
func Profile(cat RiskCategory) CategoryProfile {
	if p, ok := categoryProfiles[cat]; ok {
		return p
	}
	return categoryProfiles[CategoryOther]
}

// openViolationStatuses are the status values that mean a violation still
// needs remediation.
var openViolationStatuses = []string{"OPEN", "ACTIVE", "IN VIOLATION", "PENDING"}

// IsOpenStatus reports whether a normalized violation status still counts
// as open.
func IsOpenStatus(status string) bool {
	upper := strings.ToUpper(strings.TrimSpace(status))
	for _, s := range openViolationStatuses {
		if upper == s {
			return true
		}
	}
	return false
}

// Package scoring turns collected compliance data into comparable 0-100
// scores per domain, a weighted overall score, and a risk level.
package scoring

import (
	"math"
	"strings"
	"time"

	"github.com/propply/backend/internal/devices"
)

// Domain weights for the overall score. They sum to 1.0.
const (
	WeightHPD        = 0.30
	WeightDOB        = 0.30
	WeightElevator   = 0.20
	WeightElectrical = 0.20
)

// RiskLevel buckets an overall score for triage.
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

// HPDScore maps the count of active HPD violations to a band score.
func HPDScore(active int) float64 {
	switch {
	case active == 0:
		return 100
	case active <= 5:
		return 85
	case active <= 15:
		return 70
	case active <= 30:
		return 50
	default:
		return 25
	}
}

// DOBScore maps the count of active DOB violations to a band score. DOB
// violations carry more weight per violation than HPD, so the bands are
// tighter.
func DOBScore(active int) float64 {
	switch {
	case active == 0:
		return 100
	case active <= 3:
		return 85
	case active <= 10:
		return 70
	case active <= 20:
		return 50
	default:
		return 25
	}
}

// ElevatorScore is the share of devices whose latest status is active,
// rounded to the nearest integer. A building with no devices scores 100.
func ElevatorScore(active, total int) float64 {
	if total == 0 {
		return 100
	}
	return math.Round(100 * float64(active) / float64(total))
}

// ElectricalScore rates permit activity. total is all permits on record,
// recent those filed in the last two calendar years, active those whose
// latest filing status indicates work in progress or approved. Rules apply
// top-down; the first match wins.
func ElectricalScore(total, recent, active int) float64 {
	switch {
	case total == 0:
		return 85
	case recent == 0:
		return 70
	case active > 0:
		return 90
	default:
		return 100
	}
}

// Overall combines the four domain scores, rounded to one decimal.
func Overall(hpd, dob, elevator, electrical float64) float64 {
	weighted := WeightHPD*hpd + WeightDOB*dob + WeightElevator*elevator + WeightElectrical*electrical
	return math.Round(weighted*10) / 10
}

// Risk buckets an overall score.
func Risk(overall float64) RiskLevel {
	switch {
	case overall >= 90:
		return RiskLow
	case overall >= 75:
		return RiskMedium
	case overall >= 50:
		return RiskHigh
	default:
		return RiskCritical
	}
}

// activeElectricalStatuses are the filing statuses counted as active permits.
var activeElectricalStatuses = []string{"Approved", "Job in Process", "Active", "Permit Issued"}

// CountActiveElevators counts devices whose latest status is ACTIVE.
func CountActiveElevators(devs []devices.DeviceRecord) int {
	n := 0
	for _, d := range devs {
		if strings.EqualFold(d.DeviceStatus, "ACTIVE") {
			n++
		}
	}
	return n
}

// CountActiveElectrical counts permits whose latest filing status marks the
// permit as live.
func CountActiveElectrical(devs []devices.DeviceRecord) int {
	n := 0
	for _, d := range devs {
		for _, status := range activeElectricalStatuses {
			if strings.EqualFold(d.FilingStatus, status) {
				n++
				break
			}
		}
	}
	return n
}

// CountRecentElectrical counts permits whose latest filing falls within the
// current and two previous calendar years.
func CountRecentElectrical(devs []devices.DeviceRecord, now time.Time) int {
	cutoff := now.Year() - 2
	n := 0
	for _, d := range devs {
		if len(d.LatestInspectionDate) < 4 {
			continue
		}
		t, err := time.Parse("2006-01-02", d.LatestInspectionDate)
		if err != nil {
			continue
		}
		if t.Year() >= cutoff {
			n++
		}
	}
	return n
}

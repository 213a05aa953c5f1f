package compliance

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const reportFilePrefix = "comprehensive_compliance_report_"

// MarshalReport renders the record as the stable indented JSON document.
// Every field is emitted; normalized nulls inside raw rows stay null.
func MarshalReport(rec *ComplianceRecord) ([]byte, error) {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal compliance report: %w", err)
	}
	return data, nil
}

// WriteReportFile writes the JSON report into dir, named for the run's
// processing time in UTC, and returns the file path.
func WriteReportFile(rec *ComplianceRecord, dir string) (string, error) {
	data, err := MarshalReport(rec)
	if err != nil {
		return "", err
	}
	name := fmt.Sprintf("%s%s.json", reportFilePrefix, rec.ProcessedAt.UTC().Format("20060102_150405"))
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write report file: %w", err)
	}
	return path, nil
}

// FormatSummary renders the human-readable run summary the CLI prints.
func FormatSummary(rec *ComplianceRecord) string {
	var b strings.Builder
	line := strings.Repeat("=", 72)

	fmt.Fprintln(&b, line)
	fmt.Fprintln(&b, "📊 PROPERTY COMPLIANCE REPORT")
	fmt.Fprintln(&b, line)
	fmt.Fprintf(&b, "Address:  %s\n", rec.Address)
	if rec.BIN != "" {
		fmt.Fprintf(&b, "BIN:      %s\n", rec.BIN)
	}
	if rec.BBL != "" {
		fmt.Fprintf(&b, "BBL:      %s\n", rec.BBL)
	}
	if rec.Borough != "" {
		fmt.Fprintf(&b, "Borough:  %s (block %s, lot %s)\n", rec.Borough, rec.Block, rec.Lot)
	}
	fmt.Fprintln(&b, line)
	fmt.Fprintf(&b, "Overall:     %5.1f/100  risk %s\n", rec.OverallComplianceScore, rec.RiskLevel)
	fmt.Fprintf(&b, "HPD:         %5.1f/100  (%d active violations)\n", rec.HPDComplianceScore, rec.HPDViolationsActive)
	fmt.Fprintf(&b, "DOB:         %5.1f/100  (%d active violations)\n", rec.DOBComplianceScore, rec.DOBViolationsActive)
	fmt.Fprintf(&b, "Elevators:   %5.1f/100  (%d of %d devices active)\n", rec.ElevatorComplianceScore, rec.ElevatorDevicesActive, rec.ElevatorDevicesTotal)
	fmt.Fprintf(&b, "Electrical:  %5.1f/100  (%d of %d permits active)\n", rec.ElectricalComplianceScore, rec.ElectricalPermitsActive, rec.ElectricalPermitsTotal)
	fmt.Fprintf(&b, "Boilers:     %d devices\n", rec.BoilerDevicesTotal)
	if rec.Complaints311Total > 0 {
		fmt.Fprintf(&b, "311:         %d complaints\n", rec.Complaints311Total)
	}
	if rec.FDNYViolationsTotal > 0 {
		fmt.Fprintf(&b, "FDNY:        %d violations\n", rec.FDNYViolationsTotal)
	}
	if len(rec.ActionPlan) > 0 {
		fmt.Fprintln(&b, line)
		fmt.Fprintf(&b, "Action plan (%d items):\n", len(rec.ActionPlan))
		for i, a := range rec.ActionPlan {
			if i == 10 {
				fmt.Fprintf(&b, "  … and %d more\n", len(rec.ActionPlan)-i)
				break
			}
			fmt.Fprintf(&b, "  [%s] %s ($%d-$%d, by %s)\n", a.Priority, a.Title, a.EstimatedCostMin, a.EstimatedCostMax, a.Deadline)
		}
	}
	fmt.Fprintf(&b, "Sources: %s\n", rec.DataSources)
	fmt.Fprintln(&b, line)
	return b.String()
}

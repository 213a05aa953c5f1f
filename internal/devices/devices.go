// Package devices reduces per-inspection dataset rows to per-device records
// with full inspection history. Elevators group on device_number, boilers on
// boiler_id, electrical permits on filing_number.
package devices

import (
	"sort"
	"time"

	"github.com/propply/backend/internal/normalize"
)

// DeviceRecord is one physical device (or permit filing) with its complete
// inspection history, newest first.
type DeviceRecord struct {
	DeviceID             string                   `json:"device_id"`
	DeviceName           string                   `json:"device_name,omitempty"`
	DeviceType           string                   `json:"device_type,omitempty"`
	DeviceStatus         string                   `json:"device_status,omitempty"`
	DefectsExist         string                   `json:"defects_exist,omitempty"`
	FilingStatus         string                   `json:"filing_status,omitempty"`
	HouseNumber          string                   `json:"house_number,omitempty"`
	StreetName           string                   `json:"street_name,omitempty"`
	BIN                  string                   `json:"bin,omitempty"`
	LatestInspectionDate string                   `json:"latest_inspection_date,omitempty"`
	Inspections          []map[string]interface{} `json:"inspections"`
	TotalInspections     int                      `json:"total_inspections"`
}

type datedRow struct {
	row    map[string]interface{}
	date   time.Time
	parsed bool
}

// Group partitions rows by deviceIDField and builds one DeviceRecord per
// device. Rows with a missing or empty device id are dropped. The latest
// parseable dateField value picks the snapshot row; a device's inspections
// are ordered newest first with unparseable dates last. Devices come back
// ordered by latest inspection date descending, device id breaking ties.
func Group(rows []map[string]interface{}, deviceIDField, dateField string) []DeviceRecord {
	partitions := make(map[string][]datedRow)
	var order []string

	for _, row := range rows {
		id := normalize.String(row, deviceIDField)
		if id == "" || normalize.IsNullSentinel(row[deviceIDField]) {
			continue
		}
		if _, seen := partitions[id]; !seen {
			order = append(order, id)
		}
		t, ok := normalize.ParseDate(row[dateField])
		partitions[id] = append(partitions[id], datedRow{row: row, date: t, parsed: ok})
	}

	records := make([]DeviceRecord, 0, len(order))
	for _, id := range order {
		records = append(records, buildRecord(id, partitions[id]))
	}

	sort.SliceStable(records, func(i, j int) bool {
		if records[i].LatestInspectionDate != records[j].LatestInspectionDate {
			return records[i].LatestInspectionDate > records[j].LatestInspectionDate
		}
		return records[i].DeviceID < records[j].DeviceID
	})
	return records
}

func buildRecord(id string, rows []datedRow) DeviceRecord {
	// Newest first; rows without a parseable date sink to the end.
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].parsed != rows[j].parsed {
			return rows[i].parsed
		}
		return rows[i].date.After(rows[j].date)
	})

	latest := rows[0]
	rec := DeviceRecord{
		DeviceID:         id,
		TotalInspections: len(rows),
		Inspections:      make([]map[string]interface{}, 0, len(rows)),
	}
	for _, dr := range rows {
		rec.Inspections = append(rec.Inspections, dr.row)
	}

	if latest.parsed {
		rec.LatestInspectionDate = latest.date.Format("2006-01-02")
	}

	rec.DeviceName = normalize.FirstString(latest.row, "device_number")
	if rec.DeviceName == "" {
		rec.DeviceName = id
	}
	rec.DeviceType = normalize.String(latest.row, "device_type")
	rec.DeviceStatus = normalize.String(latest.row, "device_status")
	rec.DefectsExist = normalize.String(latest.row, "defects_exist")
	rec.FilingStatus = normalize.String(latest.row, "filing_status")
	rec.HouseNumber = normalize.String(latest.row, "house_number")
	rec.StreetName = normalize.String(latest.row, "street_name")
	rec.BIN = normalize.FirstString(latest.row, "bin", "bin_number")
	return rec
}

// Ungroup flattens records back into their raw inspection rows, preserving
// device order and each device's newest-first ordering.
func Ungroup(records []DeviceRecord) []map[string]interface{} {
	var rows []map[string]interface{}
	for _, rec := range records {
		rows = append(rows, rec.Inspections...)
	}
	return rows
}

package devices

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func elevatorRow(device, date, status string) map[string]interface{} {
	return map[string]interface{}{
		"device_number": device,
		"status_date":   date,
		"device_status": status,
		"device_type":   "Passenger Elevator",
	}
}

func TestGroupTwoElevators(t *testing.T) {
	rows := []map[string]interface{}{
		elevatorRow("E1", "2023-01-10", "ACTIVE"),
		elevatorRow("E2", "2024-02-02", "ACTIVE"),
		elevatorRow("E1", "2024-05-01", "ACTIVE"),
		elevatorRow("E2", "2021-09-09", "OUT OF SERVICE"),
		elevatorRow("E1", "2022-07-15", "OUT OF SERVICE"),
		elevatorRow("E2", "2020-01-01", "ACTIVE"),
	}

	records := Group(rows, "device_number", "status_date")
	require.Len(t, records, 2)

	e1 := records[0]
	assert.Equal(t, "E1", e1.DeviceID)
	assert.Equal(t, "2024-05-01", e1.LatestInspectionDate)
	assert.Equal(t, 3, e1.TotalInspections)
	assert.Equal(t, "ACTIVE", e1.DeviceStatus)
	assert.Equal(t, "2024-05-01", e1.Inspections[0]["status_date"])
	assert.Equal(t, "2022-07-15", e1.Inspections[2]["status_date"])

	e2 := records[1]
	assert.Equal(t, "E2", e2.DeviceID)
	assert.Equal(t, "2024-02-02", e2.LatestInspectionDate)
	assert.Equal(t, 3, e2.TotalInspections)
}

func TestGroupSnapshotComesFromLatestRow(t *testing.T) {
	rows := []map[string]interface{}{
		elevatorRow("E1", "2022-07-15", "OUT OF SERVICE"),
		elevatorRow("E1", "2024-05-01", "ACTIVE"),
	}

	records := Group(rows, "device_number", "status_date")
	require.Len(t, records, 1)
	assert.Equal(t, "ACTIVE", records[0].DeviceStatus)
	assert.Equal(t, "Passenger Elevator", records[0].DeviceType)
}

func TestGroupDropsRowsWithoutDeviceID(t *testing.T) {
	rows := []map[string]interface{}{
		elevatorRow("E1", "2024-05-01", "ACTIVE"),
		{"status_date": "2024-01-01", "device_status": "ACTIVE"},
		{"device_number": "", "status_date": "2024-01-01"},
		{"device_number": nil, "status_date": "2024-01-01"},
	}

	records := Group(rows, "device_number", "status_date")
	require.Len(t, records, 1)
	assert.Equal(t, 1, records[0].TotalInspections)
}

func TestGroupCountsPartitionInputRows(t *testing.T) {
	rows := []map[string]interface{}{
		elevatorRow("E1", "2024-05-01", "ACTIVE"),
		elevatorRow("E2", "2024-02-02", "ACTIVE"),
		elevatorRow("E1", "2023-01-10", "ACTIVE"),
		elevatorRow("E3", "invalid date", "ACTIVE"),
	}

	records := Group(rows, "device_number", "status_date")
	total := 0
	for _, rec := range records {
		total += rec.TotalInspections
	}
	assert.Equal(t, len(rows), total)
}

func TestGroupUnparseableDatesSortLast(t *testing.T) {
	rows := []map[string]interface{}{
		{"device_number": "E1", "status_date": "nan", "device_status": "OUT"},
		{"device_number": "E1", "status_date": "2024-05-01", "device_status": "ACTIVE"},
	}

	records := Group(rows, "device_number", "status_date")
	require.Len(t, records, 1)
	assert.Equal(t, "2024-05-01", records[0].Inspections[0]["status_date"])
	assert.Equal(t, "ACTIVE", records[0].DeviceStatus)
	assert.Equal(t, "2024-05-01", records[0].LatestInspectionDate)
}

func TestGroupNoParseableDates(t *testing.T) {
	rows := []map[string]interface{}{
		{"device_number": "E1", "status_date": nil, "device_status": "ACTIVE"},
	}

	records := Group(rows, "device_number", "status_date")
	require.Len(t, records, 1)
	assert.Empty(t, records[0].LatestInspectionDate)
	assert.Equal(t, "ACTIVE", records[0].DeviceStatus)
}

func TestGroupBoilersByBoilerID(t *testing.T) {
	rows := []map[string]interface{}{
		{"boiler_id": "B-100", "inspection_date": "05/01/2024", "defects_exist": "No", "bin_number": "1058037"},
		{"boiler_id": "B-100", "inspection_date": "04/01/2023", "defects_exist": "Yes", "bin_number": "1058037"},
	}

	records := Group(rows, "boiler_id", "inspection_date")
	require.Len(t, records, 1)
	assert.Equal(t, "B-100", records[0].DeviceID)
	assert.Equal(t, "No", records[0].DefectsExist)
	assert.Equal(t, "1058037", records[0].BIN)
	assert.Equal(t, "2024-05-01", records[0].LatestInspectionDate)
}

func TestGroupUngroupRoundTrip(t *testing.T) {
	rows := []map[string]interface{}{
		elevatorRow("E1", "2024-05-01", "ACTIVE"),
		elevatorRow("E1", "2023-01-10", "ACTIVE"),
		elevatorRow("E2", "2024-02-02", "ACTIVE"),
	}

	grouped := Group(rows, "device_number", "status_date")
	flattened := Ungroup(grouped)
	regrouped := Group(flattened, "device_number", "status_date")

	assert.Equal(t, grouped, regrouped)
	assert.Len(t, flattened, 3)
}

func TestGroupDeviceOrdering(t *testing.T) {
	rows := []map[string]interface{}{
		elevatorRow("B", "2024-01-01", "ACTIVE"),
		elevatorRow("A", "2024-01-01", "ACTIVE"),
		elevatorRow("C", "2024-06-01", "ACTIVE"),
	}

	records := Group(rows, "device_number", "status_date")
	require.Len(t, records, 3)
	assert.Equal(t, "C", records[0].DeviceID)
	assert.Equal(t, "A", records[1].DeviceID)
	assert.Equal(t, "B", records[2].DeviceID)
}

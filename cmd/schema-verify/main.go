package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"github.com/propply/backend/internal/database"
)

// VerificationResult stores one table's verification outcome
type VerificationResult struct {
	Table   string
	Status  string
	Details string
}

// requiredColumns lists, per table, the columns the sync layer reads and
// writes. Missing columns fail verification; extra columns are ignored.
var requiredColumns = map[string][]string{
	"nyc_properties": {
		"id", "property_id", "bin", "bbl", "address", "last_synced_at",
	},
	"nyc_hpd_violations": {
		"id", "nyc_property_id", "violation_id", "bbl",
		"inspection_date", "violation_class", "violation_status",
	},
	"nyc_dob_violations": {
		"id", "nyc_property_id", "violation_id", "bin", "issue_date",
		"violation_type", "violation_category", "disposition_date",
	},
	"nyc_elevator_inspections": {
		"id", "nyc_property_id", "device_number", "bin",
		"device_type", "last_inspection_date", "device_status",
	},
	"nyc_boiler_inspections": {
		"id", "nyc_property_id", "device_number", "bin",
		"inspection_date", "status",
	},
	"nyc_311_complaints": {
		"id", "nyc_property_id", "unique_key", "created_date",
		"complaint_type", "descriptor", "status",
	},
	"nyc_compliance_summary": {
		"id", "nyc_property_id", "property_id", "compliance_score",
		"risk_level", "total_violations", "open_violations",
		"critical_issues", "equipment_status", "last_calculated",
	},
}

var tableOrder = []string{
	"nyc_properties",
	"nyc_hpd_violations",
	"nyc_dob_violations",
	"nyc_elevator_inspections",
	"nyc_boiler_inspections",
	"nyc_311_complaints",
	"nyc_compliance_summary",
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	fmt.Println("╔══════════════════════════════════════════════════════════════╗")
	fmt.Println("║       Propply Go Backend - NYC Schema Verification           ║")
	fmt.Println("╚══════════════════════════════════════════════════════════════╝")
	fmt.Println()

	dbURL := os.Getenv("DB_URL")
	if dbURL == "" {
		log.Fatalf("❌ DB_URL not set")
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		log.Fatalf("❌ Failed to open database: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("❌ Failed to connect: %v", err)
	}
	fmt.Println("✅ Connected to database")
	fmt.Println()
	fmt.Println("Verifying tables...")
	fmt.Println()

	results := []VerificationResult{}
	for _, table := range tableOrder {
		result := verifyTable(ctx, db, table, requiredColumns[table])
		results = append(results, result)
		printResult(result)
	}

	// api_keys only matters when key auth is enforced.
	result := verifyAPIKeysTable(ctx, db)
	results = append(results, result)
	printResult(result)

	// When the Supabase REST credentials are present, verify that path too;
	// the service talks to the tables through it, not through DB_URL.
	if os.Getenv("SUPABASE_URL") != "" {
		result = verifySupabaseREST(ctx)
		results = append(results, result)
		printResult(result)
	}

	fmt.Println()
	fmt.Println("═══════════════════════════════════════════════════════════════")
	passed := 0
	failed := 0
	for _, r := range results {
		switch r.Status {
		case "✅ PASS":
			passed++
		case "❌ FAIL":
			failed++
		}
	}
	fmt.Printf("Results: %d PASSED, %d FAILED\n", passed, failed)
	fmt.Println("═══════════════════════════════════════════════════════════════")

	if failed > 0 {
		os.Exit(1)
	}
}

func printResult(r VerificationResult) {
	fmt.Printf("  %-25s %s  %s\n", r.Table, r.Status, r.Details)
}

func verifyTable(ctx context.Context, db *sql.DB, table string, required []string) VerificationResult {
	rows, err := db.QueryContext(ctx,
		`SELECT column_name FROM information_schema.columns
		 WHERE table_schema = 'public' AND table_name = $1`, table)
	if err != nil {
		return VerificationResult{table, "❌ FAIL", err.Error()}
	}
	defer rows.Close()

	have := map[string]bool{}
	for rows.Next() {
		var col string
		if err := rows.Scan(&col); err != nil {
			return VerificationResult{table, "❌ FAIL", err.Error()}
		}
		have[col] = true
	}
	if err := rows.Err(); err != nil {
		return VerificationResult{table, "❌ FAIL", err.Error()}
	}
	if len(have) == 0 {
		return VerificationResult{table, "❌ FAIL", "table not found"}
	}

	var missing []string
	for _, col := range required {
		if !have[col] {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return VerificationResult{table, "❌ FAIL", "missing columns: " + strings.Join(missing, ", ")}
	}

	var count int
	if err := db.QueryRowContext(ctx, "SELECT count(*) FROM "+table).Scan(&count); err != nil {
		return VerificationResult{table, "❌ FAIL", err.Error()}
	}
	return VerificationResult{table, "✅ PASS", fmt.Sprintf("%d rows", count)}
}

func verifyAPIKeysTable(ctx context.Context, db *sql.DB) VerificationResult {
	var count int
	err := db.QueryRowContext(ctx, "SELECT count(*) FROM api_keys").Scan(&count)
	if err != nil {
		return VerificationResult{"api_keys", "⚠️ WARN", "not found — API key auth unavailable"}
	}
	return VerificationResult{"api_keys", "✅ PASS", fmt.Sprintf("%d keys", count)}
}

func verifySupabaseREST(ctx context.Context) VerificationResult {
	client, err := database.NewSupabaseClient()
	if err != nil {
		return VerificationResult{"supabase_rest", "❌ FAIL", err.Error()}
	}
	prop, err := client.GetProperty(ctx, "schema-verify-probe", "")
	if err != nil {
		return VerificationResult{"supabase_rest", "❌ FAIL", err.Error()}
	}
	if prop != nil {
		return VerificationResult{"supabase_rest", "✅ PASS", "Found probe property"}
	}
	return VerificationResult{"supabase_rest", "✅ PASS", "REST endpoint reachable"}
}

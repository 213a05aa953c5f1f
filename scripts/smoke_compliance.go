package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/propply/backend/pkg/sdk"
)

func main() {
	baseURL := os.Getenv("PROPPLY_API_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}

	client := sdk.NewClient(sdk.Config{
		BaseURL: baseURL,
		APIKey:  os.Getenv("PROPPLY_API_KEY"),
	})

	address := "1662 Park Avenue"
	borough := "Manhattan"
	if len(os.Args) > 1 {
		address = os.Args[1]
	}
	if len(os.Args) > 2 {
		borough = os.Args[2]
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	fmt.Printf("🏠 Smoke check: %s (%s)\n", address, borough)
	fmt.Printf("📡 API: %s\n\n", baseURL)

	// 1. Resolve identifiers only
	fmt.Println("1️⃣  Resolving identifiers...")
	ids, err := client.SearchProperty(ctx, address, borough)
	if err != nil {
		log.Fatalf("❌ Search failed: %v", err)
	}
	fmt.Printf("✅ BIN=%s BBL=%s (%s block %s lot %s)\n\n", ids.BIN, ids.BBL, ids.Borough, ids.Block, ids.Lot)

	// 2. Full compliance run
	fmt.Println("2️⃣  Running full compliance check...")
	started := time.Now()
	result, err := client.RunCompliance(ctx, sdk.RunRequest{Address: address, Borough: borough})
	if err != nil {
		log.Fatalf("❌ Run failed: %v", err)
	}
	rep := result.Report
	fmt.Printf("✅ Run %s finished in %.1fs\n", result.RunID, time.Since(started).Seconds())
	fmt.Printf("   Overall %.1f/100, risk %s, sources %s\n", rep.OverallComplianceScore, rep.RiskLevel, rep.DataSources)
	fmt.Printf("   HPD %d active | DOB %d active | elevators %d/%d | boilers %d | 311 %d\n",
		rep.HPDViolationsActive, rep.DOBViolationsActive,
		rep.ElevatorDevicesActive, rep.ElevatorDevicesTotal,
		rep.BoilerDevicesTotal, rep.Complaints311Total)
	if len(rep.ActionPlan) > 0 {
		fmt.Printf("   Action plan: %d items, first [%s] %s\n", len(rep.ActionPlan), rep.ActionPlan[0].Priority, rep.ActionPlan[0].Title)
	}
	if result.Warning != "" {
		fmt.Printf("⚠️  Warning: %s\n", result.Warning)
	}
	fmt.Println()

	// 3. Persist + read back, only when a property id was provided
	propertyID := os.Getenv("PROPPLY_SMOKE_PROPERTY_ID")
	if propertyID == "" {
		fmt.Println("3️⃣  Skipping persistence (PROPPLY_SMOKE_PROPERTY_ID not set)")
		fmt.Println("\n🎉 Smoke check passed")
		return
	}

	fmt.Printf("3️⃣  Syncing as property %s...\n", propertyID)
	syncRes, err := client.SyncProperty(ctx, sdk.SyncRequest{PropertyID: propertyID, Address: address, Borough: borough})
	if err != nil {
		log.Fatalf("❌ Sync failed: %v", err)
	}
	for table, counts := range syncRes.Results {
		fmt.Printf("   %-16s synced=%d skipped=%d\n", table, counts.Synced, counts.Skipped)
	}

	fmt.Println("4️⃣  Reading stored data back...")
	pkg, err := client.GetPropertyCompliance(ctx, propertyID)
	if err != nil {
		log.Fatalf("❌ Read-back failed: %v", err)
	}
	if pkg.Summary != nil {
		fmt.Printf("✅ Stored summary: score %d, risk %s, %d open violations\n",
			pkg.Summary.ComplianceScore, pkg.Summary.RiskLevel, pkg.Summary.OpenViolations)
	}

	fmt.Println("\n🎉 Smoke check passed")
}

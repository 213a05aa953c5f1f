package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/propply/backend/internal/cache"
	"github.com/propply/backend/internal/database"
	"github.com/propply/backend/internal/geocode"
	"github.com/propply/backend/internal/opendata"
)

// errSkipped marks checks whose backing service is not configured.
var errSkipped = errors.New("skipped")

type Component struct {
	Name string
	Test func() error
}

func main() {
	godotenv.Load()

	fmt.Println("\033[96mPropply Compliance Service - Pre-Flight Diagnostic v1.0\033[0m")
	fmt.Println("---------------------------------------------------------")

	creds := opendata.CredentialsFromEnv()
	fmt.Printf("Upstream rate tier: %.0f req/s\n", opendata.DefaultRate(creds))
	fmt.Println("---------------------------------------------------------")

	components := []Component{
		{"Open Data Portal (HPD)", checkOpenData},
		{"Geocoder (GeoSearch)", checkGeocoder},
		{"Cache Layer (Redis)", checkRedis},
		{"Storage Layer (Supabase)", checkSupabase},
		{"API Server (/health)", checkAPIServer},
	}

	failed := 0
	for _, c := range components {
		fmt.Printf("Checking %-25s ", c.Name+"...")
		err := c.Test()
		switch {
		case errors.Is(err, errSkipped):
			fmt.Println("\033[33m[SKIP]\033[0m")
			fmt.Printf("  >> %v\n", err)
		case err != nil:
			fmt.Println("\033[31m[FAIL]\033[0m")
			fmt.Printf("  >> Error: %v\n", err)
			failed++
		default:
			fmt.Println("\033[32m[OK]\033[0m")
		}
	}

	fmt.Println("---------------------------------------------------------")
	if failed > 0 {
		fmt.Printf("\033[31mStatus: %d check(s) failed.\033[0m\n", failed)
		os.Exit(1)
	}
	fmt.Println("\033[96mStatus: System Ready for Compliance Runs.\033[0m")
}

// --- Diagnostic Implementations ---

func checkOpenData() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client := opendata.NewClient(opendata.CredentialsFromEnv())
	rows, err := client.Fetch(ctx, opendata.MustLookup(opendata.HPDViolations), opendata.Query{Limit: 1})
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return fmt.Errorf("portal reachable but returned no rows")
	}
	return nil
}

func checkGeocoder() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client := opendata.NewClient(opendata.CredentialsFromEnv())
	geocoder := geocode.NewClient(client, cache.NewMemoryCache())
	ids, err := geocoder.Resolve(ctx, "1 Centre Street", "Manhattan")
	if err != nil {
		return err
	}
	if ids.BIN == "" && ids.BBL == "" {
		return fmt.Errorf("resolved without identifiers")
	}
	return nil
}

func checkRedis() error {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		return fmt.Errorf("%w: REDIS_ADDR not set (in-memory cache will be used)", errSkipped)
	}

	db := 0
	if v := os.Getenv("REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			db = n
		}
	}
	rc, err := cache.NewRedisCache(addr, os.Getenv("REDIS_PASSWORD"), db)
	if err != nil {
		return err
	}
	return rc.Close()
}

func checkSupabase() error {
	if os.Getenv("SUPABASE_URL") == "" {
		return fmt.Errorf("%w: SUPABASE_URL not set (persistence disabled)", errSkipped)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := database.NewSupabaseClient()
	if err != nil {
		return err
	}
	_, err = client.GetProperty(ctx, "preflight-probe", "")
	return err
}

func checkAPIServer() error {
	baseURL := os.Getenv("PROPPLY_API_URL")
	if baseURL == "" {
		return fmt.Errorf("%w: PROPPLY_API_URL not set", errSkipped)
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(baseURL + "/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health endpoint returned %d", resp.StatusCode)
	}
	return nil
}

package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/propply/backend/internal/cache"
	"github.com/propply/backend/internal/compliance"
	"github.com/propply/backend/internal/config"
	"github.com/propply/backend/internal/geocode"
	"github.com/propply/backend/internal/opendata"
	"github.com/propply/backend/internal/search"
)

const version = "1.0.0"

func main() {
	godotenv.Load()

	var (
		address   string
		borough   string
		domainCSV string
		outDir    string
		printJSON bool
		noFile    bool
	)

	args := os.Args[1:]
	positional := make([]string, 0, 2)
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--domains", "-d":
			i++
			if i < len(args) {
				domainCSV = args[i]
			}
		case "--out", "-o":
			i++
			if i < len(args) {
				outDir = args[i]
			}
		case "--json":
			printJSON = true
		case "--no-file":
			noFile = true
		case "version", "--version":
			fmt.Printf("propply-cli v%s\n", version)
			return
		case "help", "--help", "-h":
			printUsage()
			return
		default:
			positional = append(positional, args[i])
		}
	}

	if len(positional) == 0 {
		printUsage()
		os.Exit(1)
	}
	address = positional[0]
	if len(positional) > 1 {
		borough = positional[1]
	}

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}
	fileCfg := config.LoadOrDefault(cfgPath)
	if outDir == "" {
		outDir = fileCfg.Run.ReportDir
	}
	if os.Getenv("RUN_DEADLINE_SECONDS") == "" && fileCfg.Run.DeadlineSeconds > 0 {
		os.Setenv("RUN_DEADLINE_SECONDS", strconv.Itoa(fileCfg.Run.DeadlineSeconds))
	}

	runCfg := compliance.DefaultRunConfig()
	if domainCSV != "" {
		domains, err := parseDomainList(domainCSV)
		if err != nil {
			fmt.Fprintf(os.Stderr, "❌ %v\n", err)
			os.Exit(1)
		}
		runCfg.Domains = domains
	}

	// The CLI runs the pipeline directly with no database: it reports,
	// it never persists.
	odClient := opendata.NewClient(opendata.CredentialsFromEnv())
	cacheClient := cache.FromEnv()
	defer cacheClient.Close()
	geocoder := geocode.NewClient(odClient, cacheClient)
	orch := compliance.NewOrchestrator(geocoder, search.NewEngine(odClient))

	rec, runErr := orch.Run(context.Background(), address, borough, runCfg)
	if rec == nil || (rec.BIN == "" && rec.BBL == "") {
		detail := "property could not be resolved"
		if runErr != nil {
			detail = runErr.Error()
		}
		fmt.Fprintf(os.Stderr, "❌ %s\n", detail)
		os.Exit(1)
	}

	if printJSON {
		data, err := compliance.MarshalReport(rec)
		if err != nil {
			fmt.Fprintf(os.Stderr, "❌ %v\n", err)
			os.Exit(1)
		}
		fmt.Println(string(data))
	} else {
		fmt.Print(compliance.FormatSummary(rec))
	}

	if runErr != nil {
		fmt.Fprintf(os.Stderr, "⚠️ Partial data: %v\n", runErr)
	}

	if !noFile {
		path, err := compliance.WriteReportFile(rec, outDir)
		if err != nil {
			fmt.Fprintf(os.Stderr, "❌ %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("📄 Report written: %s\n", path)
	}
}

func parseDomainList(csv string) ([]compliance.Domain, error) {
	known := make(map[compliance.Domain]bool, len(compliance.AllDomains()))
	for _, d := range compliance.AllDomains() {
		known[d] = true
	}
	var domains []compliance.Domain
	for _, name := range strings.Split(csv, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		d := compliance.Domain(name)
		if !known[d] {
			return nil, fmt.Errorf("unknown domain %q (valid: %s)", name, domainNames())
		}
		domains = append(domains, d)
	}
	if len(domains) == 0 {
		return nil, fmt.Errorf("no domains given")
	}
	return domains, nil
}

func domainNames() string {
	names := make([]string, 0, len(compliance.AllDomains()))
	for _, d := range compliance.AllDomains() {
		names = append(names, string(d))
	}
	return strings.Join(names, ", ")
}

func printUsage() {
	fmt.Println(`Propply Compliance CLI v` + version + `

Usage: propply-cli [flags] "<address>" [borough]

Runs the full compliance pipeline for one NYC property, prints a summary,
and writes the JSON report file.

Flags:
  --domains, -d d1,d2   Limit the run to specific domains
  --out, -o <dir>       Report directory (default from config.yaml)
  --json                Print the full JSON report instead of the summary
  --no-file             Skip writing the report file
  version               Print version
  help                  Show this help

Environment:
  NYC_API_KEY_ID / NYC_API_KEY_SECRET   NYC Open Data basic auth (optional)
  NYC_APP_TOKEN                         NYC Open Data app token (optional)
  RUN_DEADLINE_SECONDS                  Per-run deadline (default: 120)
  REDIS_ADDR                            Geocode cache backend (optional)

Examples:
  propply-cli "1662 Park Avenue" Manhattan
  propply-cli --domains hpd_violations,dob_violations "350 5th Avenue"
  propply-cli --json --no-file "1 Centre Street"`)
}

package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"

	"github.com/okian/truthfuse/internal/domain/model"
	"github.com/okian/truthfuse/internal/loadgen"
	"github.com/okian/truthfuse/pkg/logger"
)

// Default configuration constants.
const (
	defaultHotspots    = 200
	defaultReports     = 25
	defaultWorkers     = 2 // multiplier for runtime.NumCPU()
	defaultTimeout     = 30 * time.Second
	defaultTestTimeout = 10 * time.Minute
)

func main() {
	var (
		baseURL    = flag.String("url", "http://localhost:9080", "Base URL of the service")
		hotspots   = flag.Int("hotspots", defaultHotspots, "Number of incident sites")
		reports    = flag.Int("reports", defaultReports, "Distinct reporters per site")
		duplicates = flag.Bool("duplicates", true, "Resubmit each site's first report from the same reporter")
		workers    = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent submitters")
		timeout    = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		seed       = flag.Uint64("seed", uint64(time.Now().UnixNano()), "Generator seed")
		lat        = flag.Float64("lat", 28.6139, "Latitude of the hotspot grid origin")
		lng        = flag.Float64("lng", 77.2090, "Longitude of the hotspot grid origin")
		outputFile = flag.String("output", "", "Write generated submissions to this JSON file")
		jsonLogs   = flag.Bool("json", false, "Emit JSON logs")
		verbose    = flag.Bool("verbose", false, "Log every hotspot and failure")
	)
	flag.Parse()

	format := logger.FormatText
	if *jsonLogs {
		format = logger.FormatJSON
	}
	if err := logger.InitWithFormat(format); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultTestTimeout)
	defer cancel()

	cfg := &loadgen.Config{
		BaseURL:           *baseURL,
		Hotspots:          *hotspots,
		ReportsPerHotspot: *reports,
		Duplicates:        *duplicates,
		Workers:           *workers,
		Timeout:           *timeout,
		Seed:              *seed,
		Origin:            model.Location{Lat: *lat, Lon: *lng},
		OutputFile:        *outputFile,
		Verbose:           *verbose,
	}

	if _, err := loadgen.Run(ctx, cfg, logger.Named("loadgen")); err != nil {
		logger.Get().Error(ctx, "load test failed", logger.Error(err))
		cancel()
		os.Exit(1)
	}
}

package loadgen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/truthfuse/pkg/logger"
)

// ErrVerification marks a run whose results broke a fusion invariant.
var ErrVerification = errors.New("verification failed")

const (
	directoryPermission  = 0o750
	percentageMultiplier = 100
)

// Run executes the complete load test: health check, generation, concurrent
// submission and verification.
func Run(ctx context.Context, cfg *Config, log logger.Logger) (*Stats, error) {
	stats := &Stats{StartTime: time.Now()}
	client := NewClient(cfg.BaseURL, cfg.Timeout)

	log.Info(ctx, "starting truthfuse load test",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("hotspots", cfg.Hotspots),
		logger.Int("reportsPerHotspot", cfg.ReportsPerHotspot),
		logger.Int("workers", cfg.Workers),
		logger.Bool("duplicates", cfg.Duplicates))

	if err := client.Health(ctx); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	subs := Generate(cfg)
	stats.Generated = len(subs)

	seen, err := submit(ctx, cfg, client, subs, stats, log)
	if err != nil {
		return stats, fmt.Errorf("submission failed: %w", err)
	}

	if err := verify(ctx, cfg, client, seen, stats, log); err != nil {
		return stats, err
	}

	if cfg.OutputFile != "" {
		if err := save(cfg.OutputFile, subs); err != nil {
			log.Warn(ctx, "failed to save submissions", logger.Error(err))
		}
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	report(ctx, stats, log)
	return stats, nil
}

// hotspotEvents records, per hotspot, how many accepted reports landed on
// each event id.
type hotspotEvents struct {
	mu sync.Mutex
	m  map[int]map[string]int
}

func (h *hotspotEvents) add(hotspot int, eventID string, accepted bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.m[hotspot] == nil {
		h.m[hotspot] = make(map[string]int)
	}
	n := 0
	if accepted {
		n = 1
	}
	h.m[hotspot][eventID] += n
}

func submit(ctx context.Context, cfg *Config, client *Client, subs []Submission, stats *Stats, log logger.Logger) (*hotspotEvents, error) {
	seen := &hotspotEvents{m: make(map[int]map[string]int)}
	var submitted, created, merged, duplicate, failed int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(cfg.Workers, 1))
	for _, s := range subs {
		g.Go(func() error {
			res, err := client.Submit(gctx, s)
			atomic.AddInt64(&submitted, 1)
			if err != nil {
				atomic.AddInt64(&failed, 1)
				if cfg.Verbose {
					log.Warn(gctx, "submission failed", logger.String("reporter", s.ReporterID), logger.Error(err))
				}
				return nil
			}
			switch res.Status {
			case "created":
				atomic.AddInt64(&created, 1)
			case "merged":
				atomic.AddInt64(&merged, 1)
			case "duplicate":
				atomic.AddInt64(&duplicate, 1)
			default:
				atomic.AddInt64(&failed, 1)
				return nil
			}
			seen.add(s.Hotspot, res.EventID, res.Status != "duplicate")
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stats.Submitted = int(submitted)
	stats.Created = int(created)
	stats.Merged = int(merged)
	stats.Duplicate = int(duplicate)
	stats.Failed = int(failed)
	log.Info(ctx, "submission completed",
		logger.Int("created", stats.Created),
		logger.Int("merged", stats.Merged),
		logger.Int("duplicate", stats.Duplicate),
		logger.Int("failed", stats.Failed))
	return seen, nil
}

// verify checks that each hotspot fused into one event that counts every
// accepted report.
func verify(ctx context.Context, cfg *Config, client *Client, seen *hotspotEvents, stats *Stats, log logger.Logger) error {
	var problems []error
	if stats.Failed > 0 {
		problems = append(problems, fmt.Errorf("%d submissions failed", stats.Failed))
	}
	if cfg.Duplicates && stats.Duplicate != cfg.Hotspots {
		problems = append(problems, fmt.Errorf("expected %d duplicates, got %d", cfg.Hotspots, stats.Duplicate))
	}

	for h := 0; h < cfg.Hotspots; h++ {
		events := seen.m[h]
		if len(events) != 1 {
			problems = append(problems, fmt.Errorf("hotspot %d split across %d events", h, len(events)))
			continue
		}
		for id, accepted := range events {
			ev, err := client.Event(ctx, id)
			if err != nil {
				problems = append(problems, fmt.Errorf("hotspot %d: %w", h, err))
				continue
			}
			if ev.ReportCount < accepted {
				problems = append(problems, fmt.Errorf("event %s counts %d reports, %d were accepted", id, ev.ReportCount, accepted))
				continue
			}
			stats.Verified++
			if cfg.Verbose {
				log.Info(ctx, "hotspot verified",
					logger.Int("hotspot", h),
					logger.String("event", ev.Name),
					logger.Int("reports", ev.ReportCount),
					logger.Float64("confidence", ev.ConfidenceScore),
					logger.String("status", ev.Status))
			}
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %w", ErrVerification, errors.Join(problems...))
	}
	log.Info(ctx, "all hotspots verified", logger.Int("hotspots", stats.Verified))
	return nil
}

func save(filename string, subs []Submission) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(subs); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write submissions: %w", err)
	}
	return f.Close()
}

func report(ctx context.Context, stats *Stats, log logger.Logger) {
	var acceptRate, perSecond float64
	if stats.Submitted > 0 {
		acceptRate = float64(stats.Created+stats.Merged) / float64(stats.Submitted) * percentageMultiplier
	}
	if stats.Duration > 0 {
		perSecond = float64(stats.Submitted) / stats.Duration.Seconds()
	}
	log.Info(ctx, "final statistics",
		logger.Int("generated", stats.Generated),
		logger.Int("submitted", stats.Submitted),
		logger.Int("created", stats.Created),
		logger.Int("merged", stats.Merged),
		logger.Int("duplicate", stats.Duplicate),
		logger.Int("failed", stats.Failed),
		logger.Int("verified", stats.Verified),
		logger.Duration("duration", stats.Duration),
		logger.Float64("acceptRate", acceptRate),
		logger.Float64("reportsPerSecond", perSecond))
}

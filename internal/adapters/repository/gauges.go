package repository

import (
	"context"
	"sync"
	"time"

	"github.com/okian/truthfuse/pkg/metrics"
)

// gaugeUpdater periodically publishes event counts until stopped.
type gaugeUpdater struct {
	wg       sync.WaitGroup
	stopOnce sync.Once
	stopChan chan struct{}
}

func newGaugeUpdater() *gaugeUpdater {
	return &gaugeUpdater{stopChan: make(chan struct{})}
}

// start launches the updater. counts is called once per tick.
func (g *gaugeUpdater) start(ctx context.Context, interval time.Duration, counts func(context.Context) (int, int, error)) {
	if interval <= 0 {
		return
	}
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-g.stopChan:
				return
			case <-ticker.C:
				if active, total, err := counts(ctx); err == nil {
					metrics.UpdateEventCounts(active, total)
				}
			}
		}
	}()
}

func (g *gaugeUpdater) stop() {
	g.stopOnce.Do(func() { close(g.stopChan) })
	g.wg.Wait()
}

func observe(op string, start time.Time) {
	metrics.RecordStoreLatency(op, float64(time.Since(start).Microseconds())/1000)
}

// Package buildutil holds small pieces of ambient machinery shared by every
// build phase: progress reporting, system RAM sizing, and the OSM-dialect
// config parsers (zoom levels, indexed keys) the orchestrator reads before
// the pipeline starts.
package buildutil

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// PhaseWeights gives each of the four build phases a share of overall
// progress, roughly proportional to how much work they tend to do: the
// sorter walks the primitive stream a second time and does the most
// per-feature writing, the validator does the least (it only reads back
// what the sorter already placed).
var PhaseWeights = map[string]int{
	"analyze":  15,
	"sort":     40,
	"validate": 20,
	"compile":  25,
}

// Bar reports one build phase's progress as a text bar logged through the
// zap logger at debug level, every 250ms, plus an info-level line on
// Finish. It supports concurrent Increment calls from multiple phase
// workers.
type Bar struct {
	log       *zap.SugaredLogger
	phase     string
	total     int64
	processed atomic.Int64
	barWidth  int
	start     time.Time
	done      chan struct{}
	mu        sync.Mutex
}

// NewBar starts a progress bar for phase, which should be a key of
// PhaseWeights, reporting against total items of work.
func NewBar(log *zap.SugaredLogger, phase string, total int64) *Bar {
	b := &Bar{
		log:      log,
		phase:    phase,
		total:    total,
		barWidth: 30,
		start:    time.Now(),
		done:     make(chan struct{}),
	}
	go b.run()
	return b
}

// Increment marks n more items processed. Safe for concurrent use.
func (b *Bar) Increment(n int64) {
	b.processed.Add(n)
}

// Finish stops the refresh loop and logs the final state.
func (b *Bar) Finish() {
	close(b.done)
	processed := b.processed.Load()
	b.log.Infow("phase complete",
		"phase", b.phase,
		"processed", processed,
		"total", b.total,
		"elapsed", formatDuration(time.Since(b.start)),
	)
}

func (b *Bar) run() {
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-b.done:
			return
		case <-ticker.C:
			b.draw()
		}
	}
}

func (b *Bar) draw() {
	b.mu.Lock()
	defer b.mu.Unlock()

	processed := b.processed.Load()
	frac := 0.0
	if b.total > 0 {
		frac = float64(processed) / float64(b.total)
	}
	if frac > 1 {
		frac = 1
	}

	filled := int(float64(b.barWidth) * frac)
	bar := strings.Repeat("#", filled) + strings.Repeat("-", b.barWidth-filled)

	b.log.Debugf("%-8s [%s] %3.0f%%  %d/%d  %s",
		b.phase, bar, frac*100, processed, b.total, formatDuration(time.Since(b.start)))
}

// OverallPercent combines per-phase fractional progress (0..1) into one
// 0-100 figure using PhaseWeights, for a status line spanning the whole
// build rather than a single phase.
func OverallPercent(phaseFractions map[string]float64) float64 {
	total := 0
	for _, w := range PhaseWeights {
		total += w
	}
	var sum float64
	for phase, frac := range phaseFractions {
		if frac > 1 {
			frac = 1
		}
		sum += frac * float64(PhaseWeights[phase])
	}
	return sum / float64(total) * 100
}

// formatDuration formats a duration concisely (e.g. "1m23s", "45s").
func formatDuration(d time.Duration) string {
	d = d.Truncate(time.Second)
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	m := int(d.Minutes())
	s := int(d.Seconds()) - m*60
	return fmt.Sprintf("%dm%02ds", m, s)
}

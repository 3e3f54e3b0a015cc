package buildutil

import (
	"runtime"

	"go.uber.org/zap"
)

// DefaultArenaPressurePercent is the fraction of total RAM the build is
// allowed to commit to worker arenas (§5 "Memory model") before the
// orchestrator should reduce worker count rather than risk the OS killing
// the process under memory pressure.
const DefaultArenaPressurePercent = 0.90

// EstimatedWorkerArenaBytes is the rough per-worker footprint (tile arena
// plus in-flight super-relation buffers) ComputeArenaBudget divides its
// total by to turn a RAM budget into a worker-count cap.
const EstimatedWorkerArenaBytes = 256 * 1024 * 1024

// ComputeArenaBudget returns the maximum bytes the build's arenas (one per
// worker, per tile, per super-relation — all bump allocators with no
// per-object frees) should collectively use. It takes a fraction of total
// system RAM and reserves headroom for the Go runtime itself plus the
// string/tile catalogs, which stay resident for the whole build.
//
// Returns 0 if RAM detection fails or the computed budget is unreasonably
// small, in which case the caller should fall back to a fixed worker count
// instead of sizing arenas off system RAM.
func ComputeArenaBudget(fraction float64, log *zap.SugaredLogger) int64 {
	totalRAM, err := totalSystemRAM()
	if err != nil {
		log.Warnw("cannot detect system RAM; using fixed worker count", "error", err)
		return 0
	}

	log.Debugw("system RAM detected", "bytes", totalRAM, "gb", gb(totalRAM))

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	overhead := m.Sys + 2*1024*1024*1024 // current usage + 2 GB headroom

	budget := int64(float64(totalRAM)*fraction) - int64(overhead)
	if budget < 512*1024*1024 {
		log.Warnw("computed arena budget too small; using fixed worker count",
			"budget_mb", budget/(1024*1024))
		return 0
	}

	log.Infow("arena budget computed",
		"budget_gb", gb(uint64(budget)),
		"fraction", fraction,
		"overhead_gb", gb(overhead),
	)

	return budget
}

func gb(bytes uint64) float64 {
	return float64(bytes) / (1024 * 1024 * 1024)
}

package pipeline

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/podforge/podforge/internal/config"
	"github.com/podforge/podforge/internal/fault"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"
)

// MemorySampler reads current memory pressure. Swapped for a fake in tests.
type MemorySampler interface {
	SystemMemoryPercent() (float64, error)
	ProcessRSSMB() (float64, error)
}

type systemSampler struct{}

func (systemSampler) SystemMemoryPercent() (float64, error) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return 0, fmt.Errorf("read system memory: %w", err)
	}
	return vm.UsedPercent, nil
}

func (systemSampler) ProcessRSSMB() (float64, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return 0, fmt.Errorf("open process: %w", err)
	}
	info, err := proc.MemoryInfo()
	if err != nil {
		return 0, fmt.Errorf("read process memory: %w", err)
	}
	return float64(info.RSS) / (1 << 20), nil
}

// Guard refuses to start or continue work when the host is under memory
// pressure. A refused job is retried later rather than crashing the worker
// midway through.
type Guard struct {
	sampler   MemorySampler
	startPct  float64
	scriptPct float64
	warnRSSMB float64
	logger    *slog.Logger
}

func NewGuard(cfg config.PipelineConfig, logger *slog.Logger) *Guard {
	return &Guard{
		sampler:   systemSampler{},
		startPct:  cfg.SystemMemoryHighPct,
		scriptPct: cfg.ScriptMemoryHighPct,
		warnRSSMB: cfg.ProcessRSSWarnMB,
		logger:    logger,
	}
}

// CheckStart gates job admission. Sampler failures are ignored: a host
// where memory cannot be read should still process episodes.
func (g *Guard) CheckStart() error {
	return g.check(g.startPct, "before starting, retry later")
}

// CheckBeforeScript gates the most memory-hungry stage with a looser
// threshold, since the job has already produced durable artifacts.
func (g *Guard) CheckBeforeScript() error {
	return g.check(g.scriptPct, "before script generation, retry later")
}

func (g *Guard) check(limitPct float64, when string) error {
	pct, err := g.sampler.SystemMemoryPercent()
	if err != nil {
		g.logger.Warn("memory sample failed, skipping guard check", "error", err)
		return nil
	}
	if pct > limitPct {
		return fault.Fatalf(fault.KindResource,
			"system memory too high (%.1f%%) %s", pct, when)
	}

	if rss, err := g.sampler.ProcessRSSMB(); err == nil && rss > g.warnRSSMB {
		g.logger.Warn("worker memory usage high", "rss_mb", rss, "threshold_mb", g.warnRSSMB)
	}
	return nil
}

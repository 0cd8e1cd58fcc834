package pipeline

import (
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/podforge/podforge/internal/config"
	"github.com/podforge/podforge/internal/fault"
)

type fakeSampler struct {
	systemPct float64
	rssMB     float64
	err       error
}

func (f *fakeSampler) SystemMemoryPercent() (float64, error) { return f.systemPct, f.err }
func (f *fakeSampler) ProcessRSSMB() (float64, error)        { return f.rssMB, nil }

func newTestGuard(s MemorySampler) *Guard {
	return &Guard{
		sampler:   s,
		startPct:  85,
		scriptPct: 90,
		warnRSSMB: 400,
		logger:    slog.New(slog.DiscardHandler),
	}
}

func TestNewGuardReadsPipelineConfig(t *testing.T) {
	g := NewGuard(config.PipelineConfig{
		SystemMemoryHighPct: 70,
		ScriptMemoryHighPct: 80,
		ProcessRSSWarnMB:    256,
	}, slog.New(slog.DiscardHandler))
	g.sampler = &fakeSampler{systemPct: 75}

	if err := g.CheckStart(); err == nil {
		t.Error("75% should fail the configured 70% start threshold")
	}
	if err := g.CheckBeforeScript(); err != nil {
		t.Errorf("75%% should pass the configured 80%% script threshold: %v", err)
	}
	if g.warnRSSMB != 256 {
		t.Errorf("warnRSSMB = %v, want 256", g.warnRSSMB)
	}
}

func TestGuardAllowsUnderThreshold(t *testing.T) {
	g := newTestGuard(&fakeSampler{systemPct: 60})
	if err := g.CheckStart(); err != nil {
		t.Errorf("CheckStart: %v", err)
	}
	if err := g.CheckBeforeScript(); err != nil {
		t.Errorf("CheckBeforeScript: %v", err)
	}
}

func TestGuardBlocksStartOverThreshold(t *testing.T) {
	g := newTestGuard(&fakeSampler{systemPct: 87.5})
	err := g.CheckStart()
	if err == nil {
		t.Fatal("want error at 87.5% with 85% threshold")
	}
	if !fault.IsFatal(err) || fault.KindOf(err) != fault.KindResource {
		t.Errorf("wrong fault tagging: %v", err)
	}
	if !strings.Contains(err.Error(), "retry later") {
		t.Errorf("error message not actionable: %v", err)
	}
}

func TestGuardScriptThresholdIsLooser(t *testing.T) {
	g := newTestGuard(&fakeSampler{systemPct: 87.5})
	if err := g.CheckBeforeScript(); err != nil {
		t.Errorf("87.5%% should pass the 90%% script threshold: %v", err)
	}

	g = newTestGuard(&fakeSampler{systemPct: 92})
	if err := g.CheckBeforeScript(); err == nil {
		t.Error("92% should fail the 90% script threshold")
	}
}

func TestGuardSkipsWhenSamplerUnavailable(t *testing.T) {
	g := newTestGuard(&fakeSampler{err: errors.New("procfs unavailable")})
	if err := g.CheckStart(); err != nil {
		t.Errorf("sampler failure must not block jobs: %v", err)
	}
}

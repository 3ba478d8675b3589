package retry

import (
	"fmt"
	"testing"
	"time"

	"github.com/mansaraysaheedalpha/neuralaunch-sub005/internal/models"
)

type recordingLogger struct {
	warnings []string
}

func (r *recordingLogger) Warnf(format string, args ...interface{}) {
	r.warnings = append(r.warnings, fmt.Sprintf(format, args...))
}

func TestConfigForBounds(t *testing.T) {
	policy := NewPolicy(nil, nil)

	tests := []struct {
		name          string
		tier          models.ComplexityTier
		estimatedSize int
		wantIters     int
	}{
		{"simple small", models.ComplexitySimple, 50, 3},
		{"simple at threshold", models.ComplexitySimple, 200, 3},
		{"simple above threshold", models.ComplexitySimple, 201, 4},
		{"simple huge", models.ComplexitySimple, 5000, 4},
		{"medium small", models.ComplexityMedium, 50, 4},
		{"medium huge", models.ComplexityMedium, 5000, 4},
		{"unknown tier treated as medium", models.ComplexityTier("extreme"), 100, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := policy.ConfigFor(tt.tier, tt.estimatedSize, "gpt-4o")
			if cfg.MaxIterations != tt.wantIters {
				t.Errorf("MaxIterations = %d, want %d", cfg.MaxIterations, tt.wantIters)
			}
			if cfg.MaxIterations < 3 || cfg.MaxIterations > AbsoluteMaxIterations {
				t.Errorf("MaxIterations = %d outside [3,%d]", cfg.MaxIterations, AbsoluteMaxIterations)
			}
			if cfg.CostPerIterationUSD <= 0 {
				t.Errorf("CostPerIterationUSD = %f, want > 0", cfg.CostPerIterationUSD)
			}
		})
	}
}

func TestConfigForMonotonicWithSize(t *testing.T) {
	policy := NewPolicy(nil, nil)
	prev := 0
	for _, size := range []int{10, 100, 200, 250, 1000} {
		cfg := policy.ConfigFor(models.ComplexitySimple, size, "gpt-4o")
		if cfg.MaxIterations < prev {
			t.Errorf("MaxIterations decreased with size %d: %d < %d", size, cfg.MaxIterations, prev)
		}
		prev = cfg.MaxIterations
	}
}

func TestConfigForUnknownModelFallsBack(t *testing.T) {
	logger := &recordingLogger{}
	policy := NewPolicy(nil, logger)

	cfg := policy.ConfigFor(models.ComplexitySimple, 50, "gpt-99-ultra")
	want := DefaultCostModel()[DefaultModel].CostPerIteration()
	if cfg.CostPerIterationUSD != want {
		t.Errorf("CostPerIterationUSD = %f, want default-model pricing %f", cfg.CostPerIterationUSD, want)
	}
	if len(logger.warnings) != 1 {
		t.Errorf("expected one warning for unknown model, got %v", logger.warnings)
	}
}

func TestShouldRetryIterationCeiling(t *testing.T) {
	cfg := Config{MaxIterations: 3, MaxCostUSD: 100, CostPerIterationUSD: 0.01, MaxDuration: time.Hour}

	for iter := 3; iter <= 10; iter++ {
		d := ShouldRetry(iter, time.Minute, cfg)
		if d.Retry {
			t.Errorf("ShouldRetry(iter=%d) = retry, want stop at ceiling %d", iter, cfg.MaxIterations)
		}
		if d.NextAction != ActionErrorRecovery {
			t.Errorf("NextAction = %s, want %s", d.NextAction, ActionErrorRecovery)
		}
	}

	d := ShouldRetry(2, time.Minute, cfg)
	if !d.Retry || d.NextIteration != 3 {
		t.Errorf("ShouldRetry(iter=2) = %+v, want retry with iteration 3", d)
	}
}

func TestShouldRetryCostBudget(t *testing.T) {
	cfg := Config{MaxIterations: 5, MaxCostUSD: 0.30, CostPerIterationUSD: 0.15, MaxDuration: time.Hour}

	if d := ShouldRetry(1, time.Minute, cfg); !d.Retry {
		t.Errorf("1 iteration × 0.15 < 0.30, should retry: %+v", d)
	}
	d := ShouldRetry(2, time.Minute, cfg)
	if d.Retry {
		t.Errorf("2 iterations × 0.15 >= 0.30, should stop: %+v", d)
	}
	if d.Reason != "cost budget exhausted" {
		t.Errorf("Reason = %q, want cost budget exhausted", d.Reason)
	}
}

func TestShouldRetryDurationBudget(t *testing.T) {
	cfg := Config{MaxIterations: 5, MaxCostUSD: 100, CostPerIterationUSD: 0.01, MaxDuration: 10 * time.Minute}

	if d := ShouldRetry(1, 9*time.Minute, cfg); !d.Retry {
		t.Errorf("under duration budget, should retry: %+v", d)
	}
	d := ShouldRetry(1, 10*time.Minute, cfg)
	if d.Retry {
		t.Errorf("at duration budget, should stop: %+v", d)
	}
	if d.Reason != "duration budget exhausted" {
		t.Errorf("Reason = %q, want duration budget exhausted", d.Reason)
	}
}

func TestShouldRetryPriorityOrder(t *testing.T) {
	// All three limits tripped at once: the iteration ceiling wins because
	// it is evaluated first.
	cfg := Config{MaxIterations: 1, MaxCostUSD: 0.01, CostPerIterationUSD: 1, MaxDuration: time.Second}
	d := ShouldRetry(1, time.Hour, cfg)
	if d.Reason != "iteration ceiling reached" {
		t.Errorf("Reason = %q, want iteration ceiling reached", d.Reason)
	}
}

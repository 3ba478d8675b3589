package recovery

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/mansaraysaheedalpha/neuralaunch-sub005/internal/models"
)

func TestDecideDecisionTable(t *testing.T) {
	tests := []struct {
		name     string
		analysis models.ErrorAnalysis
		want     models.RecoveryAction
	}{
		{
			name:     "critical severity always escalates",
			analysis: models.ErrorAnalysis{RootCause: "x", Category: models.CategorySyntax, Severity: models.SeverityCritical, CanAutoRecover: true},
			want:     models.ActionHumanReview,
		},
		{
			name:     "requires human always escalates",
			analysis: models.ErrorAnalysis{RootCause: "x", Category: models.CategoryDependency, Severity: models.SeverityLow, RequiresHuman: true, CanAutoRecover: true},
			want:     models.ActionHumanReview,
		},
		{
			name:     "simplification needed splits",
			analysis: models.ErrorAnalysis{RootCause: "x", Category: models.CategoryLogic, Severity: models.SeverityMedium, SimplificationNeeded: true, CanAutoRecover: true},
			want:     models.ActionSplit,
		},
		{
			name:     "complexity category splits",
			analysis: models.ErrorAnalysis{RootCause: "x", Category: models.CategoryComplexity, Severity: models.SeverityMedium},
			want:     models.ActionSplit,
		},
		{
			name:     "recoverable dependency retries",
			analysis: models.ErrorAnalysis{RootCause: "x", Category: models.CategoryDependency, Severity: models.SeverityLow, CanAutoRecover: true},
			want:     models.ActionRetry,
		},
		{
			name:     "recoverable syntax simplifies",
			analysis: models.ErrorAnalysis{RootCause: "x", Category: models.CategorySyntax, Severity: models.SeverityMedium, CanAutoRecover: true},
			want:     models.ActionSimplify,
		},
		{
			name:     "recoverable logic simplifies",
			analysis: models.ErrorAnalysis{RootCause: "x", Category: models.CategoryLogic, Severity: models.SeverityMedium, CanAutoRecover: true},
			want:     models.ActionSimplify,
		},
		{
			name:     "unrecoverable dependency escalates",
			analysis: models.ErrorAnalysis{RootCause: "x", Category: models.CategoryDependency, Severity: models.SeverityMedium},
			want:     models.ActionHumanReview,
		},
		{
			name:     "environment escalates by default",
			analysis: models.ErrorAnalysis{RootCause: "x", Category: models.CategoryEnvironment, Severity: models.SeverityMedium, CanAutoRecover: true},
			want:     models.ActionHumanReview,
		},
		{
			name:     "unknown escalates by default",
			analysis: models.ErrorAnalysis{RootCause: "x", Category: models.CategoryUnknown, Severity: models.SeverityHigh},
			want:     models.ActionHumanReview,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Generator failure forces every path onto its deterministic
			// fallback; the chosen action must not depend on AI availability.
			s := NewStrategist(&fakeGenerator{err: errors.New("down")}, nil)
			got := s.Decide(context.Background(), Input{Task: testTask(), Analysis: &tt.analysis})
			if got.Action != tt.want {
				t.Errorf("Decide() action = %s, want %s", got.Action, tt.want)
			}
			if got.Reason == "" {
				t.Error("Decide() must always give a reason")
			}
			if got.Severity != tt.analysis.Severity {
				t.Errorf("Decide() severity = %s, want %s", got.Severity, tt.analysis.Severity)
			}
		})
	}
}

func TestFallbackSplitProportions(t *testing.T) {
	task := testTask()
	task.EstimatedSize = 100

	subTasks := FallbackSplit(task)
	if len(subTasks) != 3 {
		t.Fatalf("sub-task count = %d, want 3", len(subTasks))
	}
	if subTasks[0].EstimatedSize != 30 || subTasks[1].EstimatedSize != 50 || subTasks[2].EstimatedSize != 20 {
		t.Errorf("sizes = %d/%d/%d, want 30/50/20", subTasks[0].EstimatedSize, subTasks[1].EstimatedSize, subTasks[2].EstimatedSize)
	}
	for _, st := range subTasks {
		if st.Title == "" || st.Description == "" {
			t.Errorf("sub-task missing title or description: %+v", st)
		}
	}
}

func TestSplitSizeBound(t *testing.T) {
	for _, size := range []int{1, 10, 100, 333, 1000} {
		task := testTask()
		task.EstimatedSize = size

		subTasks := FallbackSplit(task)
		if len(subTasks) < 1 || len(subTasks) > 4 {
			t.Errorf("size %d: sub-task count = %d, want 1-4", size, len(subTasks))
		}
		total := 0
		for _, st := range subTasks {
			total += st.EstimatedSize
		}
		limit := float64(task.EstimatedSize) * 1.1
		if task.EstimatedSize >= 3 && float64(total) > limit {
			t.Errorf("size %d: sub-task total %d exceeds %.0f", size, total, limit)
		}
	}
}

func TestDecomposeUsesGeneratedProposals(t *testing.T) {
	gen := &fakeGenerator{responses: []string{`{"subtasks":[
		{"title":"Schema","description":"design schema","estimated_size":40},
		{"title":"Handlers","description":"implement handlers","estimated_size":50}
	]}`}}
	s := NewStrategist(gen, nil)

	analysis := models.ErrorAnalysis{RootCause: "too big", Category: models.CategoryComplexity, Severity: models.SeverityMedium}
	strategy := s.Decide(context.Background(), Input{Task: testTask(), Analysis: &analysis})

	if len(strategy.SubTasks) != 2 {
		t.Fatalf("sub-task count = %d, want generated 2", len(strategy.SubTasks))
	}
	if strategy.SubTasks[0].Title != "Schema" {
		t.Errorf("first sub-task = %+v", strategy.SubTasks[0])
	}
}

func TestDecomposeRejectsOversizedProposals(t *testing.T) {
	// 200 units proposed for a 100-unit task: beyond the 1.1x slack.
	gen := &fakeGenerator{responses: []string{`{"subtasks":[
		{"title":"A","description":"a","estimated_size":100},
		{"title":"B","description":"b","estimated_size":100}
	]}`}}
	s := NewStrategist(gen, nil)

	analysis := models.ErrorAnalysis{RootCause: "too big", Category: models.CategoryComplexity, Severity: models.SeverityMedium}
	strategy := s.Decide(context.Background(), Input{Task: testTask(), Analysis: &analysis})

	if len(strategy.SubTasks) != 3 {
		t.Fatalf("oversized proposals should fall back to the 3-way split, got %d", len(strategy.SubTasks))
	}
	if !strings.HasPrefix(strategy.SubTasks[0].Title, "Setup:") {
		t.Errorf("fallback split expected, got %+v", strategy.SubTasks[0])
	}
}

func TestDecomposeRejectsWrongCount(t *testing.T) {
	gen := &fakeGenerator{responses: []string{`{"subtasks":[{"title":"Only","description":"one","estimated_size":10}]}`}}
	s := NewStrategist(gen, nil)

	analysis := models.ErrorAnalysis{RootCause: "too big", Category: models.CategoryComplexity, Severity: models.SeverityMedium}
	strategy := s.Decide(context.Background(), Input{Task: testTask(), Analysis: &analysis})

	if len(strategy.SubTasks) != 3 {
		t.Errorf("single proposal violates min=2, want fallback split, got %d", len(strategy.SubTasks))
	}
}

func TestSimplifyFallbackNamesFailurePattern(t *testing.T) {
	s := NewStrategist(&fakeGenerator{err: errors.New("down")}, nil)

	analysis := models.ErrorAnalysis{RootCause: "nil map access in cache layer", Category: models.CategoryLogic, Severity: models.SeverityMedium, CanAutoRecover: true}
	strategy := s.Decide(context.Background(), Input{Task: testTask(), Analysis: &analysis})

	if strategy.Action != models.ActionSimplify {
		t.Fatalf("action = %s, want simplify", strategy.Action)
	}
	if !strings.Contains(strategy.SimplifiedPrompt, "nil map access in cache layer") {
		t.Errorf("simplified prompt must name the failure pattern to avoid: %q", strategy.SimplifiedPrompt)
	}
	if !strings.Contains(strategy.SimplifiedPrompt, testTask().Description) {
		t.Errorf("simplified prompt should retain the original requirement: %q", strategy.SimplifiedPrompt)
	}
}

func TestSimplifyUsesGeneratedRewrite(t *testing.T) {
	gen := &fakeGenerator{responses: []string{"Implement only the payment happy path. Avoid touching refunds."}}
	s := NewStrategist(gen, nil)

	analysis := models.ErrorAnalysis{RootCause: "refund branch", Category: models.CategorySyntax, Severity: models.SeverityMedium, CanAutoRecover: true}
	strategy := s.Decide(context.Background(), Input{Task: testTask(), Analysis: &analysis})

	if strategy.SimplifiedPrompt != "Implement only the payment happy path. Avoid touching refunds." {
		t.Errorf("SimplifiedPrompt = %q", strategy.SimplifiedPrompt)
	}
}

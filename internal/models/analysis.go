package models

// ErrorCategory classifies the root cause of a task's failure history.
type ErrorCategory string

const (
	CategorySyntax      ErrorCategory = "syntax"
	CategoryLogic       ErrorCategory = "logic"
	CategoryDependency  ErrorCategory = "dependency"
	CategoryEnvironment ErrorCategory = "environment"
	CategoryComplexity  ErrorCategory = "complexity"
	CategoryUnknown     ErrorCategory = "unknown"
)

// Severity grades how badly a failure blocks progress.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// ErrorAnalysis is the structured diagnosis produced by the failure analyzer.
// The struct doubles as the JSON shape requested from the content generator;
// validator tags reject malformed generations before they reach the strategist.
type ErrorAnalysis struct {
	RootCause           string        `json:"root_cause" validate:"required"`
	Category            ErrorCategory `json:"category" validate:"required,oneof=syntax logic dependency environment complexity unknown"`
	Severity            Severity      `json:"severity" validate:"required,oneof=low medium high critical"`
	Suggestions         []string      `json:"suggestions"`
	CanAutoRecover      bool          `json:"can_auto_recover"`
	RequiresHuman       bool          `json:"requires_human"`
	SimplificationNeeded bool         `json:"simplification_needed"`
}

// FallbackAnalysis is the deterministic diagnosis used when the AI analysis
// step itself fails. It always escalates rather than risking a retry loop.
func FallbackAnalysis(rootCause string) *ErrorAnalysis {
	if rootCause == "" {
		rootCause = "automated diagnosis unavailable"
	}
	return &ErrorAnalysis{
		RootCause:     rootCause,
		Category:      CategoryUnknown,
		Severity:      SeverityHigh,
		RequiresHuman: true,
	}
}

// RecoveryAction is the next step chosen for a task that exhausted its retry budget.
type RecoveryAction string

const (
	ActionRetry       RecoveryAction = "retry"
	ActionSimplify    RecoveryAction = "simplify"
	ActionSplit       RecoveryAction = "split"
	ActionHumanReview RecoveryAction = "human_review"
	ActionEscalate    RecoveryAction = "escalate"
)

// SubTaskProposal describes one sub-task produced by decomposing a failed task.
type SubTaskProposal struct {
	Title         string `json:"title" validate:"required"`
	Description   string `json:"description" validate:"required"`
	EstimatedSize int    `json:"estimated_size" validate:"gt=0"`
}

// RecoveryStrategy is the strategist's decision plus the concrete mutation
// needed to carry it out.
type RecoveryStrategy struct {
	Action           RecoveryAction
	Reason           string
	Severity         Severity          // Carried from the diagnosis
	SimplifiedPrompt string            // Set for simplify
	SubTasks         []SubTaskProposal // Set for split, 2-4 entries
}

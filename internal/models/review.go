package models

import "time"

// Score weights used to combine category sub-scores into the overall score.
const (
	WeightQuality         = 0.30
	WeightSecurity        = 0.30
	WeightPerformance     = 0.20
	WeightMaintainability = 0.10
	WeightDocumentation   = 0.10
)

// CategoryScores holds per-category sub-scores on a 0-100 scale.
type CategoryScores struct {
	Quality         int `json:"quality" validate:"min=0,max=100"`
	Security        int `json:"security" validate:"min=0,max=100"`
	Performance     int `json:"performance" validate:"min=0,max=100"`
	Maintainability int `json:"maintainability" validate:"min=0,max=100"`
	Documentation   int `json:"documentation" validate:"min=0,max=100"`
}

// Overall combines the sub-scores using the fixed gate weights.
func (s CategoryScores) Overall() int {
	weighted := WeightQuality*float64(s.Quality) +
		WeightSecurity*float64(s.Security) +
		WeightPerformance*float64(s.Performance) +
		WeightMaintainability*float64(s.Maintainability) +
		WeightDocumentation*float64(s.Documentation)
	return int(weighted + 0.5)
}

// Issue is a single finding from the quality gate.
type Issue struct {
	Severity Severity `json:"severity" validate:"required,oneof=low medium high critical"`
	Category string   `json:"category"` // quality, security, performance, maintainability, documentation
	File     string   `json:"file"`
	Line     int      `json:"line"`
	Message  string   `json:"message" validate:"required"`
}

// ReviewReport is the quality gate's verdict on a wave's artifacts.
type ReviewReport struct {
	ID         string
	ProjectID  string
	WaveNumber int
	Overall    int // 0-100, weighted across categories
	Scores     CategoryScores
	MustFix    []Issue
	ShouldFix  []Issue
	Optional   []Issue
	Approved   bool
	Strict     bool // Whether strict thresholds applied
	CreatedAt  time.Time
}

// HasSeverity reports whether any issue in any bucket is at or above min.
func (r *ReviewReport) HasSeverity(min Severity) bool {
	rank := map[Severity]int{SeverityLow: 0, SeverityMedium: 1, SeverityHigh: 2, SeverityCritical: 3}
	for _, bucket := range [][]Issue{r.MustFix, r.ShouldFix, r.Optional} {
		for _, issue := range bucket {
			if rank[issue.Severity] >= rank[min] {
				return true
			}
		}
	}
	return false
}

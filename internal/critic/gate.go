// Package critic is the quality gate: it scores a wave's artifacts across
// five categories and decides whether the wave may complete.
package critic

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/mansaraysaheedalpha/neuralaunch-sub005/internal/genai"
	"github.com/mansaraysaheedalpha/neuralaunch-sub005/internal/models"
	"github.com/mansaraysaheedalpha/neuralaunch-sub005/internal/tools"
)

// Approval thresholds. Strict mode is a per-wave toggle.
const (
	minOverall       = 60
	minSecurity      = 80
	strictMinOverall = 80
	strictMinSec     = 90
)

// maxFileChars bounds how much of each file the holistic prompt carries.
const maxFileChars = 4000

// Logger is the logging surface the gate needs.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
}

// Gate runs the review pipeline: static analysis, pattern scans, and an
// AI holistic pass, merged into one report.
type Gate struct {
	gen    genai.Generator
	runner tools.Runner
	logger Logger
}

// NewGate creates a Gate. logger may be nil.
func NewGate(gen genai.Generator, runner tools.Runner, logger Logger) *Gate {
	return &Gate{gen: gen, runner: runner, logger: logger}
}

// holisticEnvelope is the JSON shape requested from the generator.
type holisticEnvelope struct {
	Scores models.CategoryScores `json:"scores"`
	Issues []models.Issue        `json:"issues" validate:"dive"`
}

// Review scores the given artifact files and returns the gate's verdict.
// Unreadable files and unavailable linters degrade the inputs, never the
// call itself; the only error source is an empty file set.
func (g *Gate) Review(ctx context.Context, projectID string, waveNumber int, files []string, strict bool) (*models.ReviewReport, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("review wave %d: no artifact files", waveNumber)
	}

	contents := g.readFiles(files)

	var issues []models.Issue
	issues = append(issues, RunStaticAnalysis(ctx, g.runner, files, g.logger)...)
	for _, file := range files {
		content, ok := contents[file]
		if !ok {
			continue
		}
		issues = append(issues, ScanSecurity(file, content)...)
		issues = append(issues, ScanPerformance(file, content)...)
	}

	scores, aiIssues := g.holisticReview(ctx, contents, issues)
	issues = append(issues, aiIssues...)

	report := &models.ReviewReport{
		ID:         uuid.NewString(),
		ProjectID:  projectID,
		WaveNumber: waveNumber,
		Scores:     scores,
		Overall:    scores.Overall(),
		Strict:     strict,
	}
	for _, issue := range issues {
		switch issue.Severity {
		case models.SeverityCritical, models.SeverityHigh:
			report.MustFix = append(report.MustFix, issue)
		case models.SeverityMedium:
			report.ShouldFix = append(report.ShouldFix, issue)
		default:
			report.Optional = append(report.Optional, issue)
		}
	}
	report.Approved = approve(report, strict)

	g.infof("wave %d review: overall %d, security %d, %d must-fix, approved=%t",
		waveNumber, report.Overall, report.Scores.Security, len(report.MustFix), report.Approved)
	return report, nil
}

// approve applies the gate thresholds. A critical finding is always fatal;
// strict mode additionally refuses high findings and raises the score bars.
func approve(report *models.ReviewReport, strict bool) bool {
	if report.HasSeverity(models.SeverityCritical) {
		return false
	}
	if strict {
		if report.HasSeverity(models.SeverityHigh) {
			return false
		}
		return report.Overall >= strictMinOverall && report.Scores.Security >= strictMinSec
	}
	return report.Overall >= minOverall && report.Scores.Security >= minSecurity
}

func (g *Gate) readFiles(files []string) map[string]string {
	contents := make(map[string]string, len(files))
	for _, file := range files {
		content, err := g.runner.ReadFile(file)
		if err != nil {
			g.warnf("review cannot read %s: %v", file, err)
			continue
		}
		contents[file] = content
	}
	return contents
}

// holisticReview asks the generator for scores and subtler findings. On any
// failure it derives scores from the deterministic findings alone.
func (g *Gate) holisticReview(ctx context.Context, contents map[string]string, found []models.Issue) (models.CategoryScores, []models.Issue) {
	prompt := buildReviewPrompt(contents, found)

	raw, err := g.gen.Generate(ctx, prompt)
	if err != nil {
		g.warnf("holistic review generation failed: %v", err)
		return scoresFromIssues(found), nil
	}

	var envelope holisticEnvelope
	if err := json.Unmarshal([]byte(genai.ExtractJSON(raw)), &envelope); err != nil {
		g.warnf("holistic review parse failed: %v", err)
		return scoresFromIssues(found), nil
	}
	if err := models.ValidateStruct(envelope); err != nil {
		g.warnf("holistic review validation failed: %v", err)
		return scoresFromIssues(found), nil
	}

	return envelope.Scores, envelope.Issues
}

// severityPenalty is the score deduction per finding in the fallback scorer.
var severityPenalty = map[models.Severity]int{
	models.SeverityCritical: 40,
	models.SeverityHigh:     20,
	models.SeverityMedium:   10,
	models.SeverityLow:      3,
}

// scoresFromIssues is the deterministic fallback: each category starts at
// 100 and findings deduct from the category they belong to.
func scoresFromIssues(issues []models.Issue) models.CategoryScores {
	deductions := make(map[string]int)
	for _, issue := range issues {
		category := issue.Category
		if category == "" {
			category = "quality"
		}
		deductions[category] += severityPenalty[issue.Severity]
	}
	score := func(category string) int {
		s := 100 - deductions[category]
		if s < 0 {
			s = 0
		}
		return s
	}
	return models.CategoryScores{
		Quality:         score("quality"),
		Security:        score("security"),
		Performance:     score("performance"),
		Maintainability: score("maintainability"),
		Documentation:   score("documentation"),
	}
}

func buildReviewPrompt(contents map[string]string, found []models.Issue) string {
	var sb strings.Builder
	sb.WriteString("Review the following code artifacts for quality, security, performance, maintainability, and documentation.\n")
	sb.WriteString("Score each category 0-100 and list concrete issues with file, line, severity, and message.\n\n")

	files := make([]string, 0, len(contents))
	for file := range contents {
		files = append(files, file)
	}
	sort.Strings(files)
	for _, file := range files {
		fmt.Fprintf(&sb, "=== %s ===\n%s\n\n", file, truncateContent(contents[file]))
	}

	if len(found) > 0 {
		sb.WriteString("Findings already detected by static analysis (factor them into the scores, do not repeat them):\n")
		for _, issue := range found {
			fmt.Fprintf(&sb, "- [%s] %s:%d %s\n", issue.Severity, issue.File, issue.Line, issue.Message)
		}
		sb.WriteString("\n")
	}

	sb.WriteString("Respond with ONLY a JSON object matching this schema:\n")
	sb.WriteString(models.HolisticReviewSchema())
	return sb.String()
}

func truncateContent(s string) string {
	if len(s) <= maxFileChars {
		return s
	}
	return s[:maxFileChars] + "\n... (truncated)"
}

func (g *Gate) infof(format string, args ...interface{}) {
	if g.logger != nil {
		g.logger.Infof(format, args...)
	}
}

func (g *Gate) warnf(format string, args ...interface{}) {
	if g.logger != nil {
		g.logger.Warnf(format, args...)
	}
}

package critic

import (
	"regexp"
	"strings"

	"github.com/mansaraysaheedalpha/neuralaunch-sub005/internal/models"
)

// loopWindow is how many lines after a loop header a blocking call still
// counts as loop-embedded.
const loopWindow = 12

var (
	loopHeaderRe   = regexp.MustCompile(`\bfor\s*[(\s]|\bwhile\s*\(|\.forEach\s*\(|\.map\s*\(\s*(async)?\s*(function|\()`)
	blockingCallRe = regexp.MustCompile(`\bfetch\s*\(|\baxios\.|http\.Get|http\.Post|\.query\s*\(|\bawait\b[^\n]*\(|ExecContext|QueryContext`)
	chainedPassRe  = regexp.MustCompile(`\.(filter|map)\s*\([^)]*\)\s*\.\s*(filter|map)\s*\(`)
	addListenerRe  = regexp.MustCompile(`\baddEventListener\s*\(`)
	rmListenerRe   = regexp.MustCompile(`\bremoveEventListener\s*\(`)
)

// ScanPerformance flags loop-embedded remote or database calls, listeners
// that are added but never removed, and redundant collection traversals.
func ScanPerformance(file, content string) []models.Issue {
	var issues []models.Issue
	lines := strings.Split(content, "\n")

	lastLoopLine := -1
	for i, line := range lines {
		if loopHeaderRe.MatchString(line) {
			lastLoopLine = i
		}
		if lastLoopLine >= 0 && i > lastLoopLine && i-lastLoopLine <= loopWindow && blockingCallRe.MatchString(line) {
			issues = append(issues, models.Issue{
				Severity: models.SeverityMedium,
				Category: "performance",
				File:     file,
				Line:     i + 1,
				Message:  "remote or database call inside a loop, batch it or move it out",
			})
			lastLoopLine = -1
		}
		if chainedPassRe.MatchString(line) {
			issues = append(issues, models.Issue{
				Severity: models.SeverityLow,
				Category: "performance",
				File:     file,
				Line:     i + 1,
				Message:  "chained traversals over the same collection, combine into one pass",
			})
		}
	}

	if addListenerRe.MatchString(content) && !rmListenerRe.MatchString(content) {
		issues = append(issues, models.Issue{
			Severity: models.SeverityMedium,
			Category: "performance",
			File:     file,
			Message:  "event listener added but never removed, possible leak",
		})
	}

	return issues
}

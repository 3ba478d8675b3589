package critic

import (
	"regexp"
	"strings"

	"github.com/mansaraysaheedalpha/neuralaunch-sub005/internal/models"
)

// scanPattern pairs a compiled regex with the finding it produces.
type scanPattern struct {
	re       *regexp.Regexp
	severity models.Severity
	message  string
}

// securityPatterns is the library of line-level security smells. Patterns are
// deliberately language-agnostic; the AI pass handles anything subtler.
var securityPatterns = []scanPattern{
	{
		re:       regexp.MustCompile(`(?i)(select|insert\s+into|update|delete\s+from)\b[^;\n]*['"` + "`" + `]\s*\+\s*\w`),
		severity: models.SeverityCritical,
		message:  "SQL query built by string concatenation, use parameterized queries",
	},
	{
		re:       regexp.MustCompile(`(?i)(select|insert\s+into|update|delete\s+from)\b[^;\n]*%[sdv]`),
		severity: models.SeverityCritical,
		message:  "SQL query built by string formatting, use parameterized queries",
	},
	{
		re:       regexp.MustCompile(`\.innerHTML\s*=|document\.write\s*\(|dangerouslySetInnerHTML`),
		severity: models.SeverityHigh,
		message:  "unescaped content written to the DOM, possible XSS",
	},
	{
		re:       regexp.MustCompile(`(?i)(api[_-]?key|secret|password|passwd|token)\s*[:=]\s*['"` + "`" + `][A-Za-z0-9+/_\-]{8,}['"` + "`" + `]`),
		severity: models.SeverityCritical,
		message:  "hardcoded credential, move it to configuration or a secret store",
	},
	{
		re:       regexp.MustCompile(`Math\.random\s*\(|math/rand`),
		severity: models.SeverityMedium,
		message:  "non-cryptographic randomness, unsafe for tokens or secrets",
	},
	{
		re:       regexp.MustCompile(`\beval\s*\(|new\s+Function\s*\(`),
		severity: models.SeverityHigh,
		message:  "dynamic code evaluation, avoid eval",
	},
	{
		re:       regexp.MustCompile(`(?i)\bmd5\s*\(|\bsha1\s*\(|crypto/md5|crypto/sha1|createHash\(['"](md5|sha1)['"]\)`),
		severity: models.SeverityHigh,
		message:  "weak hash algorithm, use SHA-256 or stronger",
	},
}

// ScanSecurity runs the security pattern library over one file's content and
// returns findings with line numbers.
func ScanSecurity(file, content string) []models.Issue {
	return scanLines(file, content, "security", securityPatterns)
}

func scanLines(file, content, category string, patterns []scanPattern) []models.Issue {
	var issues []models.Issue
	for i, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "//") || strings.HasPrefix(trimmed, "#") {
			continue
		}
		for _, p := range patterns {
			if p.re.MatchString(line) {
				issues = append(issues, models.Issue{
					Severity: p.severity,
					Category: category,
					File:     file,
					Line:     i + 1,
					Message:  p.message,
				})
			}
		}
	}
	return issues
}

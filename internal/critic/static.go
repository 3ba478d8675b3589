package critic

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/mansaraysaheedalpha/neuralaunch-sub005/internal/models"
	"github.com/mansaraysaheedalpha/neuralaunch-sub005/internal/tools"
)

// maxLintFindings caps how many findings one linter run may contribute so a
// noisy tool cannot drown the report.
const maxLintFindings = 20

// linter maps a file extension to the external tool that checks it.
type linter struct {
	name  string
	args  []string // file path is appended
	probe []string // cheap health-check invocation
}

var lintersByExt = map[string]linter{
	".go":  {name: "gofmt", args: []string{"-l"}},
	".py":  {name: "python3", args: []string{"-m", "pyflakes"}, probe: []string{"-m", "pyflakes", "--version"}},
	".js":  {name: "npx", args: []string{"--no-install", "eslint", "--format", "unix"}, probe: []string{"--no-install", "eslint", "--version"}},
	".jsx": {name: "npx", args: []string{"--no-install", "eslint", "--format", "unix"}, probe: []string{"--no-install", "eslint", "--version"}},
	".ts":  {name: "npx", args: []string{"--no-install", "eslint", "--format", "unix"}, probe: []string{"--no-install", "eslint", "--version"}},
	".tsx": {name: "npx", args: []string{"--no-install", "eslint", "--format", "unix"}, probe: []string{"--no-install", "eslint", "--version"}},
	".sh":  {name: "shellcheck", args: []string{"--format", "tty"}, probe: []string{"--version"}},
}

// RunStaticAnalysis lints each file with the tool registered for its
// extension. Each tool is probed once per run; an unavailable tool skips
// its files rather than failing the gate or polluting it with findings.
func RunStaticAnalysis(ctx context.Context, runner tools.Runner, files []string, logger Logger) []models.Issue {
	available := map[string]bool{}
	var issues []models.Issue
	for _, file := range files {
		lt, ok := lintersByExt[strings.ToLower(filepath.Ext(file))]
		if !ok {
			continue
		}

		key := lt.name + " " + strings.Join(lt.probe, " ")
		if avail, probed := available[key]; !probed {
			err := runner.Probe(ctx, lt.name, lt.probe...)
			available[key] = err == nil
			if err != nil {
				if logger != nil {
					logger.Debugf("linter %s unavailable: %v", lt.name, err)
				}
				continue
			}
		} else if !avail {
			continue
		}

		result, err := runner.Run(ctx, lt.name, append(append([]string{}, lt.args...), file))
		if err != nil {
			if logger != nil {
				logger.Debugf("linter %s unavailable for %s: %v", lt.name, file, err)
			}
			continue
		}
		if result.Success && strings.TrimSpace(result.Stdout) == "" {
			continue
		}

		issues = append(issues, lintFindings(file, result)...)
	}
	return issues
}

// lintFindings turns linter output lines into findings. Output format varies
// per tool, so each non-empty line becomes one medium quality issue.
func lintFindings(file string, result tools.Result) []models.Issue {
	output := result.Stdout
	if strings.TrimSpace(output) == "" {
		output = result.Stderr
	}

	var issues []models.Issue
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		issues = append(issues, models.Issue{
			Severity: models.SeverityMedium,
			Category: "quality",
			File:     file,
			Message:  line,
		})
		if len(issues) >= maxLintFindings {
			break
		}
	}
	return issues
}

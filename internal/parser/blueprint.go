// Package parser reads project blueprints: Markdown documents describing
// the waves of tasks an orchestrator run will execute.
package parser

import (
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/mansaraysaheedalpha/neuralaunch-sub005/internal/models"
)

// TaskDef is one task definition extracted from a blueprint.
type TaskDef struct {
	Title         string
	Description   string
	Agent         string
	Complexity    models.ComplexityTier
	EstimatedSize int
	Priority      int
}

// WaveDef groups the task definitions of one wave.
type WaveDef struct {
	Number int
	Title  string
	Tasks  []TaskDef
}

// Blueprint is the parsed document.
type Blueprint struct {
	ProjectName string
	Waves       []WaveDef
}

// BlueprintParser parses Markdown blueprints.
type BlueprintParser struct {
	markdown goldmark.Markdown
}

func NewBlueprintParser() *BlueprintParser {
	return &BlueprintParser{markdown: goldmark.New()}
}

var (
	waveHeadingRe = regexp.MustCompile(`^Wave\s+(\d+)\s*:?\s*(.*)$`)
	taskHeadingRe = regexp.MustCompile(`^Task\s*:?\s*(.+)$`)
	metadataRe    = regexp.MustCompile(`^[-*]\s*(Agent|Complexity|Size|Priority)\s*:\s*(.+)$`)
)

// Parse reads a blueprint document. The structure is validated through the
// Markdown AST; task bodies are then extracted line by line, which handles
// code blocks inside descriptions more reliably than AST segments.
func (p *BlueprintParser) Parse(r io.Reader) (*Blueprint, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read blueprint: %w", err)
	}

	bp := &Blueprint{}
	doc := p.markdown.Parser().Parse(text.NewReader(content))

	// The document title and the wave/task outline come from the AST.
	if err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		heading, ok := n.(*ast.Heading)
		if !ok {
			return ast.WalkContinue, nil
		}
		if heading.Level == 1 && bp.ProjectName == "" {
			bp.ProjectName = headingText(heading, content)
		}
		return ast.WalkContinue, nil
	}); err != nil {
		return nil, fmt.Errorf("walk blueprint: %w", err)
	}

	waves, err := extractWaves(content)
	if err != nil {
		return nil, err
	}
	bp.Waves = waves

	if err := bp.Validate(); err != nil {
		return nil, err
	}
	return bp, nil
}

// extractWaves walks the document line by line, tracking code-block state so
// fenced examples cannot masquerade as headings.
func extractWaves(content []byte) ([]WaveDef, error) {
	var waves []WaveDef
	var currentWave *WaveDef
	var currentTask *TaskDef
	var body strings.Builder
	inCodeBlock := false

	flushTask := func() {
		if currentTask == nil || currentWave == nil {
			return
		}
		finishTask(currentTask, body.String())
		currentWave.Tasks = append(currentWave.Tasks, *currentTask)
		currentTask = nil
		body.Reset()
	}
	flushWave := func() {
		flushTask()
		if currentWave != nil {
			waves = append(waves, *currentWave)
			currentWave = nil
		}
	}

	for _, line := range strings.Split(string(content), "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			inCodeBlock = !inCodeBlock
			if currentTask != nil {
				body.WriteString(line)
				body.WriteString("\n")
			}
			continue
		}
		if inCodeBlock {
			if currentTask != nil {
				body.WriteString(line)
				body.WriteString("\n")
			}
			continue
		}

		if strings.HasPrefix(line, "## ") && !strings.HasPrefix(line, "### ") {
			heading := strings.TrimSpace(strings.TrimPrefix(line, "## "))
			matches := waveHeadingRe.FindStringSubmatch(heading)
			if matches == nil {
				// Some other section ends the current wave.
				flushWave()
				continue
			}
			flushWave()
			number, err := strconv.Atoi(matches[1])
			if err != nil {
				return nil, fmt.Errorf("invalid wave number in %q: %w", heading, err)
			}
			currentWave = &WaveDef{Number: number, Title: strings.TrimSpace(matches[2])}
			continue
		}

		if strings.HasPrefix(line, "### ") {
			heading := strings.TrimSpace(strings.TrimPrefix(line, "### "))
			matches := taskHeadingRe.FindStringSubmatch(heading)
			if matches == nil || currentWave == nil {
				flushTask()
				continue
			}
			flushTask()
			currentTask = &TaskDef{Title: strings.TrimSpace(matches[1])}
			continue
		}

		if currentTask != nil {
			body.WriteString(line)
			body.WriteString("\n")
		}
	}
	flushWave()

	return waves, nil
}

// finishTask splits metadata bullets out of the body; whatever remains is
// the description.
func finishTask(task *TaskDef, body string) {
	var description []string
	for _, line := range strings.Split(body, "\n") {
		matches := metadataRe.FindStringSubmatch(strings.TrimSpace(line))
		if matches == nil {
			description = append(description, line)
			continue
		}
		value := strings.TrimSpace(matches[2])
		switch matches[1] {
		case "Agent":
			task.Agent = value
		case "Complexity":
			task.Complexity = models.ComplexityTier(strings.ToLower(value))
		case "Size":
			if n, err := strconv.Atoi(value); err == nil {
				task.EstimatedSize = n
			}
		case "Priority":
			if n, err := strconv.Atoi(value); err == nil {
				task.Priority = n
			}
		}
	}
	task.Description = strings.TrimSpace(strings.Join(description, "\n"))

	if task.Agent == "" {
		task.Agent = "general"
	}
	if task.Complexity == "" {
		task.Complexity = models.ComplexityMedium
	}
	if task.EstimatedSize == 0 {
		task.EstimatedSize = 50
	}
}

// Validate checks the structural rules a runnable blueprint must satisfy.
func (bp *Blueprint) Validate() error {
	if len(bp.Waves) == 0 {
		return fmt.Errorf("blueprint has no waves")
	}
	seen := make(map[int]bool)
	for _, wave := range bp.Waves {
		if wave.Number < 1 {
			return fmt.Errorf("wave number %d must be positive", wave.Number)
		}
		if seen[wave.Number] {
			return fmt.Errorf("duplicate wave number %d", wave.Number)
		}
		seen[wave.Number] = true
		if len(wave.Tasks) == 0 {
			return fmt.Errorf("wave %d has no tasks", wave.Number)
		}
		for _, task := range wave.Tasks {
			if task.Title == "" {
				return fmt.Errorf("wave %d has a task without a title", wave.Number)
			}
			if task.Description == "" {
				return fmt.Errorf("wave %d task %q has no description", wave.Number, task.Title)
			}
			if task.Complexity != models.ComplexitySimple && task.Complexity != models.ComplexityMedium {
				return fmt.Errorf("wave %d task %q has unknown complexity %q", wave.Number, task.Title, task.Complexity)
			}
		}
	}
	return nil
}

func headingText(n ast.Node, source []byte) string {
	var buf bytes.Buffer
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if t, ok := c.(*ast.Text); ok {
			buf.Write(t.Segment.Value(source))
		}
	}
	return strings.TrimSpace(buf.String())
}

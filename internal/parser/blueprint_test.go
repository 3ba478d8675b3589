package parser

import (
	"strings"
	"testing"

	"github.com/mansaraysaheedalpha/neuralaunch-sub005/internal/models"
)

const sampleBlueprint = `# Todo App

## Wave 1: Foundation

### Task: Project scaffolding
- Agent: backend
- Complexity: simple
- Size: 40
- Priority: 1

Create the project layout and build configuration.

### Task: Data model
- Agent: backend
- Complexity: medium
- Size: 120

Design the todo item schema.

` + "```" + `
### Task: this heading lives in a code block
` + "```" + `

## Wave 2: Features

### Task: REST endpoints
- Agent: backend
- Complexity: medium
- Size: 150
- Priority: 2

Implement CRUD endpoints over the data model.

## Notes

This section is not a wave.
`

func TestParseBlueprint(t *testing.T) {
	bp, err := NewBlueprintParser().Parse(strings.NewReader(sampleBlueprint))
	if err != nil {
		t.Fatal(err)
	}

	if bp.ProjectName != "Todo App" {
		t.Errorf("ProjectName = %q", bp.ProjectName)
	}
	if len(bp.Waves) != 2 {
		t.Fatalf("waves = %d, want 2", len(bp.Waves))
	}

	wave1 := bp.Waves[0]
	if wave1.Number != 1 || wave1.Title != "Foundation" {
		t.Errorf("wave 1 = %+v", wave1)
	}
	if len(wave1.Tasks) != 2 {
		t.Fatalf("wave 1 tasks = %d, want 2 (code-block heading must not count)", len(wave1.Tasks))
	}

	scaffold := wave1.Tasks[0]
	if scaffold.Title != "Project scaffolding" || scaffold.Agent != "backend" {
		t.Errorf("task = %+v", scaffold)
	}
	if scaffold.Complexity != models.ComplexitySimple || scaffold.EstimatedSize != 40 || scaffold.Priority != 1 {
		t.Errorf("metadata = %+v", scaffold)
	}
	if !strings.Contains(scaffold.Description, "project layout") {
		t.Errorf("description = %q", scaffold.Description)
	}
	if strings.Contains(scaffold.Description, "Agent:") {
		t.Errorf("metadata bullets leaked into description: %q", scaffold.Description)
	}

	if bp.Waves[1].Tasks[0].Title != "REST endpoints" {
		t.Errorf("wave 2 tasks = %+v", bp.Waves[1].Tasks)
	}
}

func TestParseAppliesDefaults(t *testing.T) {
	doc := `# P

## Wave 1: Only

### Task: Minimal

Just a description.
`
	bp, err := NewBlueprintParser().Parse(strings.NewReader(doc))
	if err != nil {
		t.Fatal(err)
	}

	task := bp.Waves[0].Tasks[0]
	if task.Agent != "general" {
		t.Errorf("Agent = %q, want default", task.Agent)
	}
	if task.Complexity != models.ComplexityMedium {
		t.Errorf("Complexity = %q, want default medium", task.Complexity)
	}
	if task.EstimatedSize != 50 {
		t.Errorf("EstimatedSize = %d, want default 50", task.EstimatedSize)
	}
}

func TestParseRejectsInvalidBlueprints(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"no waves", "# P\n\nJust prose.\n"},
		{"empty wave", "# P\n\n## Wave 1: Empty\n\nNo tasks here.\n"},
		{"duplicate wave", "# P\n\n## Wave 1: A\n\n### Task: T\n\nd\n\n## Wave 1: B\n\n### Task: U\n\nd\n"},
		{"task without description", "# P\n\n## Wave 1: A\n\n### Task: Bare\n- Agent: backend\n"},
		{"bad complexity", "# P\n\n## Wave 1: A\n\n### Task: T\n- Complexity: impossible\n\nd\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewBlueprintParser().Parse(strings.NewReader(tt.doc)); err == nil {
				t.Errorf("Parse accepted %s", tt.name)
			}
		})
	}
}

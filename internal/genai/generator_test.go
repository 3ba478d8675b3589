package genai

import "testing"

func TestNewOpenAIGeneratorRequiresKey(t *testing.T) {
	if _, err := NewOpenAIGenerator("", "gpt-4o"); err == nil {
		t.Error("expected error for empty API key")
	}
	g, err := NewOpenAIGenerator("sk-test", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.model == "" {
		t.Error("model should default when empty")
	}
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "plain json",
			input: `{"a":1}`,
			want:  `{"a":1}`,
		},
		{
			name:  "fenced json",
			input: "```json\n{\"a\":1}\n```",
			want:  `{"a":1}`,
		},
		{
			name:  "fenced without language",
			input: "```\n{\"a\":1}\n```",
			want:  `{"a":1}`,
		},
		{
			name:  "prose around json",
			input: "Here is the analysis:\n{\"a\":1}\nHope that helps!",
			want:  `{"a":1}`,
		},
		{
			name:  "nested braces",
			input: `{"a":{"b":2}}`,
			want:  `{"a":{"b":2}}`,
		},
		{
			name:  "no json at all",
			input: "sorry, I cannot do that",
			want:  "sorry, I cannot do that",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractJSON(tt.input); got != tt.want {
				t.Errorf("ExtractJSON(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

package tokens

import (
	"strings"
	"testing"
)

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected int
	}{
		{
			name:     "empty string",
			text:     "",
			expected: 0,
		},
		{
			name:     "single char",
			text:     "a",
			expected: 1, // (1+3)/4 = 1
		},
		{
			name:     "four chars = 1 token",
			text:     "test",
			expected: 1,
		},
		{
			name:     "five chars = 2 tokens",
			text:     "tests",
			expected: 2,
		},
		{
			name:     "typical sentence",
			text:     "The quick brown fox jumps over the lazy dog.",
			expected: 11, // 44 chars
		},
		{
			name:     "multibyte runes count once",
			text:     "Élodie",
			expected: 2, // 6 runes, 7 bytes
		},
		{
			name:     "4000 chars = 1000 tokens",
			text:     strings.Repeat("x", 4000),
			expected: 1000,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EstimateTokens(tt.text)
			if got != tt.expected {
				t.Errorf("EstimateTokens(%q) = %d, want %d", tt.name, got, tt.expected)
			}
		})
	}
}

func TestEstimatorStrategies(t *testing.T) {
	var e Estimator = CharEstimator{}
	if got := e.Estimate("abcdefgh"); got != 2 {
		t.Errorf("CharEstimator = %d, want 2", got)
	}

	words := EstimatorFunc(func(text string) int {
		return len(strings.Fields(text))
	})
	if got := words.Estimate("one two three"); got != 3 {
		t.Errorf("EstimatorFunc = %d, want 3", got)
	}

	if Default.Estimate("abcd") != 1 {
		t.Error("Default estimator should use the character heuristic")
	}
}

package clipboard

import (
	"errors"
	"testing"
)

func TestFormatAnswer(t *testing.T) {
	tests := []struct {
		q, a, want string
	}{
		{"What is X?", "X is Y.", "Q: What is X?\nA: X is Y.\n"},
		{"  padded ", "\tanswer\n", "Q: padded\nA: answer\n"},
		{"", "only answer", "only answer"},
		{"question", "", ""},
	}
	for _, tt := range tests {
		if got := FormatAnswer(tt.q, tt.a); got != tt.want {
			t.Errorf("FormatAnswer(%q, %q) = %q, want %q", tt.q, tt.a, got, tt.want)
		}
	}
}

func TestCopyAnswerEmpty(t *testing.T) {
	if err := CopyAnswer("q", "  "); !errors.Is(err, ErrNothingToCopy) {
		t.Errorf("got %v, want ErrNothingToCopy", err)
	}
}

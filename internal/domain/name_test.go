package domain

import "testing"

func TestNormalizePlayerName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lowercase", "jane doe", "Jane Doe"},
		{"uppercase", "JANE DOE", "Jane Doe"},
		{"mixed case", "jAnE dOe", "Jane Doe"},
		{"single word", "alice", "Alice"},
		{"surrounding whitespace", "  bob  ", "Bob"},
		{"internal whitespace run", "mary   jane\twatson", "Mary Jane Watson"},
		{"apostrophe", "o'brien", "O'brien"},
		{"hyphen", "jean-luc picard", "Jean-luc Picard"},
		{"period", "j. r. tolkien", "J. R. Tolkien"},
		{"max length", "abcdefghijabcdefghijabcdefghijabcdefghijabcdefghij", "Abcdefghijabcdefghijabcdefghijabcdefghijabcdefghij"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizePlayerName(tt.in)
			if err != nil {
				t.Fatalf("NormalizePlayerName(%q) error: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("NormalizePlayerName(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizePlayerNameRejects(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"empty", ""},
		{"whitespace only", "   "},
		{"no letters", "-.'"},
		{"digits", "player1"},
		{"emoji", "jane 🎲"},
		{"underscore", "jane_doe"},
		{"too long", "abcdefghijabcdefghijabcdefghijabcdefghijabcdefghijx"},
		{"html", "<script>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NormalizePlayerName(tt.in); err != ErrInvalidPlayerName {
				t.Errorf("NormalizePlayerName(%q) error = %v, want ErrInvalidPlayerName", tt.in, err)
			}
		})
	}
}

func TestNormalizePlayerNameIdempotent(t *testing.T) {
	inputs := []string{"jane doe", "  O'BRIEN  ", "j. r.  tolkien", "Jean-Luc"}
	for _, in := range inputs {
		once, err := NormalizePlayerName(in)
		if err != nil {
			t.Fatalf("NormalizePlayerName(%q) error: %v", in, err)
		}
		twice, err := NormalizePlayerName(once)
		if err != nil {
			t.Fatalf("NormalizePlayerName(%q) error: %v", once, err)
		}
		if once != twice {
			t.Errorf("normalization not idempotent: %q -> %q -> %q", in, once, twice)
		}
	}
}

func TestValidateDice(t *testing.T) {
	for a := 1; a <= 6; a++ {
		for b := 1; b <= 6; b++ {
			if err := ValidateDice(a, b); err != nil {
				t.Errorf("ValidateDice(%d, %d) = %v, want nil", a, b, err)
			}
		}
	}

	invalid := [][2]int{{0, 3}, {7, 3}, {3, 0}, {3, 7}, {-1, 4}, {4, -1}, {0, 0}, {13, 13}}
	for _, pair := range invalid {
		if err := ValidateDice(pair[0], pair[1]); err != ErrInvalidDice {
			t.Errorf("ValidateDice(%d, %d) = %v, want ErrInvalidDice", pair[0], pair[1], err)
		}
	}
}

func TestCode(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{ErrGameNotFound, CodeGameNotFound},
		{ErrAlreadyCompleted, CodeAlreadyCompleted},
		{ErrMaxRollsReached, CodeMaxRollsReached},
		{ErrGameIncomplete, CodeGameIncomplete},
		{ErrInvalidDice, CodeInvalidDice},
		{ErrInvalidPlayerName, CodeInvalidPlayerName},
		{ErrInvalidRequest, CodeInvalidInput},
		{ErrRateLimited, CodeRateLimited},
		{ErrInternalError, CodeInternalError},
	}
	for _, tt := range tests {
		if got := Code(tt.err); got != tt.want {
			t.Errorf("Code(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

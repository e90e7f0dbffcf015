package pattern

import "testing"

func TestIsMatch(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		pattern string
		want    bool
	}{
		{"star suffix", "report.jsonl", "*.jsonl", true},
		{"star suffix case-insensitive", "REPORT.JSONL", "*.jsonl", true},
		{"question mark", "a.txt", "?.txt", true},
		{"question mark no match", "ab.txt", "?.txt", false},
		{"char class", "file1.csv", "file[0-9].csv", true},
		{"char class no match", "fileA.csv", "file[0-9].csv", false},
		{"literal mismatch", "a.txt", "b.txt", false},
		{"empty pattern never matches", "a.txt", "", false},
		{"unclosed bracket treated as literal", "a[.txt", "a[.txt", true},
		{"unclosed bracket does not match without literal", "ax.txt", "a[.txt", false},
		{"anchored whole string", "a.txt.bak", "*.txt", false},
	}

	m := Default()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := m.IsMatch(tt.input, tt.pattern); got != tt.want {
				t.Errorf("IsMatch(%q, %q) = %v, want %v", tt.input, tt.pattern, got, tt.want)
			}
		})
	}
}

func TestTryMatchAny(t *testing.T) {
	m := Default()

	patterns := []string{"*.tmp", "*.jsonl", "*.log"}
	matched, ok := m.TryMatchAny("data.jsonl", patterns)
	if !ok || matched != "*.jsonl" {
		t.Errorf("TryMatchAny() = (%q, %v), want (*.jsonl, true)", matched, ok)
	}

	_, ok = m.TryMatchAny("data.csv", patterns)
	if ok {
		t.Errorf("TryMatchAny() matched unexpectedly for data.csv")
	}
}

func TestContainsWildcards(t *testing.T) {
	m := Default()

	if !m.ContainsWildcards("*.jsonl") {
		t.Error("expected wildcard detection on *.jsonl")
	}
	if !m.ContainsWildcards("file[0-9].csv") {
		t.Error("expected wildcard detection on char class")
	}
	if m.ContainsWildcards(".jsonl") {
		t.Error("did not expect wildcard detection on plain extension")
	}
}

func TestCacheOverflowClearsRatherThanErrors(t *testing.T) {
	m := New(Config{MaxCacheEntries: 2})

	for i := 0; i < 10; i++ {
		if !m.IsMatch("a.txt", "*.txt") {
			t.Fatalf("iteration %d: expected match to survive cache churn", i)
		}
	}
}

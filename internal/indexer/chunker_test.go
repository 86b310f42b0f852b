package indexer

import (
	"strings"
	"testing"
)

func TestChunk(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		maxChars int
		want     []string
	}{
		{"empty", "", 10, nil},
		{"whitespace only", "  \n\t\n  ", 10, nil},
		{"fits in one", "abc\ndef", 10, []string{"abc\ndef"}},
		{"exact fit", "abcd\nefgh", 9, []string{"abcd\nefgh"}},
		{"split on line boundary", "abcd\nefgh", 8, []string{"abcd", "efgh"}},
		{"oversized line alone", "ab\n" + strings.Repeat("x", 20) + "\ncd", 5, []string{"ab", strings.Repeat("x", 20), "cd"}},
		{"blank chunk dropped", "abcde\n\n\nfghij", 5, []string{"abcde", "fghij"}},
		{"counts runes not bytes", "ééé\nééé", 7, []string{"ééé\nééé"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Chunk(tt.content, tt.maxChars)
			if len(got) != len(tt.want) {
				t.Fatalf("Chunk() = %q, want %q", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("chunk %d = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestChunk_defaultMax(t *testing.T) {
	line := strings.Repeat("a", 99)
	content := strings.TrimSuffix(strings.Repeat(line+"\n", 30), "\n") // 30 lines of 100 chars with newline
	got := Chunk(content, 0)
	if len(got) != 2 {
		t.Fatalf("expected 2 chunks at default size, got %d", len(got))
	}
	for _, c := range got {
		if len([]rune(c)) > DefaultMaxChars {
			t.Errorf("chunk exceeds default max: %d", len(c))
		}
	}
}

func TestChunk_deterministicAndLossless(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 200; i++ {
		b.WriteString(strings.Repeat("word ", i%17))
		b.WriteString("\n")
	}
	content := b.String()
	first := Chunk(content, 120)
	second := Chunk(content, 120)
	if len(first) != len(second) {
		t.Fatalf("non-deterministic chunk count: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("chunk %d differs between runs", i)
		}
		if len(first[i]) > 120 {
			t.Errorf("chunk %d has %d chars", i, len(first[i]))
		}
	}
	if strings.Join(first, "") == "" {
		t.Error("expected content")
	}
	if got := strings.ReplaceAll(strings.Join(first, "\n"), "\n", ""); got != strings.ReplaceAll(content, "\n", "") {
		t.Error("chunks should preserve every non-newline character")
	}
}

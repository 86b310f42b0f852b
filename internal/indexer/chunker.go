// Package indexer keeps one named index in sync with the files it covers: it hashes,
// chunks and embeds files, and repairs drift between the hash cache and the tree.
package indexer

import (
	"strings"
	"unicode/utf8"
)

// DefaultMaxChars is the chunk size used when none is configured.
const DefaultMaxChars = 1500

// Chunk splits content into line-aligned chunks of at most maxChars characters.
// Lines are never split: a single line longer than maxChars becomes its own chunk.
// Whitespace-only chunks are dropped, so blank content yields no chunks.
func Chunk(content string, maxChars int) []string {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	if strings.TrimSpace(content) == "" {
		return nil
	}

	var (
		chunks  []string
		cur     strings.Builder
		curLen  int
		started bool
	)
	flush := func() {
		if s := cur.String(); strings.TrimSpace(s) != "" {
			chunks = append(chunks, s)
		}
		cur.Reset()
		curLen = 0
		started = false
	}

	for _, line := range strings.Split(content, "\n") {
		n := utf8.RuneCountInString(line)
		if started && curLen+1+n > maxChars {
			flush()
		}
		if started {
			cur.WriteByte('\n')
			curLen++
		}
		cur.WriteString(line)
		curLen += n
		started = true
	}
	flush()
	return chunks
}

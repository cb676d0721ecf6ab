package channel

import (
	"strings"
	"unicode/utf8"
)

// SplitText splits text into chunks of at most maxLen bytes. It prefers line
// boundaries and never cuts a UTF-8 sequence. A maxLen <= 0 disables
// splitting. Empty text yields a single empty chunk.
func SplitText(text string, maxLen int) []string {
	if maxLen <= 0 || len(text) <= maxLen {
		return []string{text}
	}

	var chunks []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			chunks = append(chunks, strings.TrimSuffix(current.String(), "\n"))
			current.Reset()
		}
	}

	for _, line := range strings.SplitAfter(text, "\n") {
		if current.Len()+len(line) <= maxLen {
			current.WriteString(line)
			continue
		}
		flush()

		if len(strings.TrimSuffix(line, "\n")) > maxLen {
			chunks = append(chunks, forceSplit(strings.TrimSuffix(line, "\n"), maxLen)...)
			continue
		}
		current.WriteString(line)
	}
	flush()

	return chunks
}

// forceSplit breaks a single long line into chunks of at most maxLen bytes,
// backing off to the previous rune start.
func forceSplit(line string, maxLen int) []string {
	var parts []string
	for len(line) > maxLen {
		cut := maxLen
		for cut > 0 && !utf8.RuneStart(line[cut]) {
			cut--
		}
		if cut == 0 {
			cut = maxLen
		}
		parts = append(parts, line[:cut])
		line = line[cut:]
	}
	if len(line) > 0 {
		parts = append(parts, line)
	}
	return parts
}

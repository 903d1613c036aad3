package richtext

import (
	"strings"
)

const wordsPerMinute = 200

// AsText returns the text of every text block, one block per line.
func AsText(body Body) string {
	lines := make([]string, 0, len(body))
	for _, n := range body {
		if n.Type == Image {
			continue
		}
		lines = append(lines, n.Text)
	}
	return strings.Join(lines, "\n")
}

func WordCount(text string) int {
	return len(strings.Fields(text))
}

// ReadingMinutes rounds up, so any non-empty text takes at least a minute.
func ReadingMinutes(words int) int {
	if words <= 0 {
		return 0
	}
	return (words + wordsPerMinute - 1) / wordsPerMinute
}

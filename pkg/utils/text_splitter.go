package utils

import "strings"

// SplitText splits a long string into chunks of approximately 'chunkSize'
// characters with 'overlap' characters repeated at boundaries to preserve
// context. When possible, a chunk ends at the last whitespace inside its
// window so words are not cut in half.
func SplitText(text string, chunkSize int, overlap int) []string {
	if len(text) <= chunkSize {
		return []string{text}
	}

	step := chunkSize - overlap
	if step <= 0 {
		step = chunkSize // fallback if overlap >= chunkSize
	}

	var chunks []string
	runes := []rune(text)
	totalLen := len(runes)

	for i := 0; i < totalLen; i += step {
		end := i + chunkSize
		if end > totalLen {
			end = totalLen
		} else if cut := lastBreak(runes[i:end]); cut > step {
			// Only move the cut back when it stays past the step, otherwise
			// the loop would stall or drop text.
			end = i + cut
		}

		chunk := strings.TrimSpace(string(runes[i:end]))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}

		if end == totalLen {
			break
		}
	}

	return chunks
}

// lastBreak returns the index just after the last whitespace rune in window,
// or -1 if the window has none.
func lastBreak(window []rune) int {
	for i := len(window) - 1; i >= 0; i-- {
		switch window[i] {
		case '\n', ' ', '\t':
			return i + 1
		}
	}
	return -1
}

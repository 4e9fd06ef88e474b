package ingestion

// Chunk splits text into character windows of at most size runes, with
// consecutive windows sharing overlap runes. Text that fits in one window is
// returned as a single chunk, the empty string included. A non-positive size
// falls back to 800; an overlap at or above size is clamped to size/10 so the
// window always advances.
func Chunk(text string, size, overlap int) []string {
	if size <= 0 {
		size = 800
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size / 10
	}

	runes := []rune(text)
	if len(runes) <= size {
		return []string{text}
	}

	step := size - overlap
	var chunks []string
	for start := 0; start < len(runes); start += step {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}

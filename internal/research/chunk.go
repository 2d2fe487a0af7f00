package research

import "fmt"

// SplitChunks slices text into overlapping chunks for summarization.
// Chunk i covers [i*(size-overlap), i*(size-overlap)+size); slicing stops
// once a chunk reaches the end of the text. Empty text yields no chunks,
// text shorter than size yields exactly one.
func SplitChunks(text string, size, overlap int) ([]string, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("chunk overlap %d must be in [0, %d)", overlap, size)
	}
	if text == "" {
		return []string{}, nil
	}

	stride := size - overlap
	var chunks []string
	for start := 0; start < len(text); start += stride {
		end := start + size
		if end >= len(text) {
			chunks = append(chunks, text[start:])
			break
		}
		chunks = append(chunks, text[start:end])
	}
	return chunks, nil
}

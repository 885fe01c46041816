package chunker

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Options bounds the sliding window used to split text.
type Options struct {
	ChunkSize    int
	ChunkOverlap int
}

// Validate rejects configurations that cannot make forward progress.
func (o Options) Validate() error {
	if o.ChunkSize <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", o.ChunkSize)
	}
	if o.ChunkOverlap < 0 {
		return fmt.Errorf("chunk overlap must be non-negative, got %d", o.ChunkOverlap)
	}
	if o.ChunkOverlap >= o.ChunkSize {
		return fmt.Errorf("chunk overlap %d must be smaller than chunk size %d", o.ChunkOverlap, o.ChunkSize)
	}
	return nil
}

// ChunkText splits text into overlapping, size-bounded segments. Text that
// fits in a single window is returned unchanged. Longer text is cut at the
// last whitespace inside the window when that boundary sits past the window
// midpoint, so words are only split when the alternative is a chunk less than
// half-sized. The window advances by the emitted chunk length minus the
// overlap, which makes overlap widths approximate near word boundaries.
func ChunkText(text string, opts Options) ([]string, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if len(text) <= opts.ChunkSize {
		return []string{text}, nil
	}

	var chunks []string
	start := 0
	for start < len(text) {
		end := start + opts.ChunkSize
		if end > len(text) {
			end = len(text)
		} else {
			// Window bounds are byte offsets; never cut inside a rune.
			for end > start && !utf8.RuneStart(text[end]) {
				end--
			}
		}
		chunk := text[start:end]
		if end < len(text) {
			lastSpace := strings.LastIndexFunc(chunk, unicode.IsSpace)
			if lastSpace > opts.ChunkSize/2 {
				chunk = chunk[:lastSpace]
			}
		}
		if trimmed := strings.TrimSpace(chunk); trimmed != "" {
			chunks = append(chunks, trimmed)
		}
		if end == len(text) {
			break
		}
		advance := len(chunk) - opts.ChunkOverlap
		if advance <= 0 {
			return nil, fmt.Errorf("chunking cannot advance: emitted chunk length %d does not exceed overlap %d", len(chunk), opts.ChunkOverlap)
		}
		start += advance
	}
	return chunks, nil
}

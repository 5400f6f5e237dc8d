// Package chunker splits transcripts into overlapping windows that prefer to
// end on a sentence boundary.
package chunker

import (
	"github.com/miso-46/AI-minutes/internal/apperr"
)

const (
	// DefaultSize is the nominal window length in characters.
	DefaultSize = 400
	// DefaultOverlap is the number of characters shared by adjacent windows.
	DefaultOverlap = 50
)

// ErrInvalidConfig is returned for a size/overlap pair that cannot make
// progress.
var ErrInvalidConfig = apperr.New(apperr.KindValidation, "chunker.Split", "overlap must be non-negative and smaller than size")

// Chunk is one window of the source text. Start and End are rune offsets,
// End exclusive.
type Chunk struct {
	Text  string
	Start int
	End   int
}

func isTerminator(r rune) bool {
	switch r {
	case '。', '．', '.', '!', '?', '！', '？':
		return true
	}
	return false
}

// Split returns the chunk texts of text.
func Split(text string, size, overlap int) ([]string, error) {
	chunks, err := SplitWithOffsets(text, size, overlap)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = c.Text
	}
	return out, nil
}

// SplitWithOffsets splits text into windows of at most size characters.
// A window that does not reach the end of the text is cut just after the last
// sentence terminator inside it. Terminators within the first overlap
// characters of a window are ignored, so the next window, which starts
// overlap characters before the cut, always starts later than this one.
// The final window runs to the end of the text.
func SplitWithOffsets(text string, size, overlap int) ([]Chunk, error) {
	if size <= 0 || overlap < 0 || overlap >= size {
		return nil, ErrInvalidConfig
	}

	runes := []rune(text)
	n := len(runes)
	chunks := []Chunk{}
	if n == 0 {
		return chunks, nil
	}

	start := 0
	for start+size < n {
		end := start + size
		for i := end - 1; i >= start+overlap; i-- {
			if isTerminator(runes[i]) {
				end = i + 1
				break
			}
		}
		chunks = append(chunks, Chunk{Text: string(runes[start:end]), Start: start, End: end})
		start = end - overlap
	}
	return append(chunks, Chunk{Text: string(runes[start:]), Start: start, End: n}), nil
}

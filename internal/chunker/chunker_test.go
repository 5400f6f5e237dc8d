package chunker

import (
	"strings"
	"testing"

	"github.com/miso-46/AI-minutes/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// reassemble rebuilds the source by appending, for each chunk, the part not
// already covered by its predecessor.
func reassemble(chunks []Chunk) string {
	var b strings.Builder
	covered := 0
	for _, c := range chunks {
		r := []rune(c.Text)
		if skip := covered - c.Start; skip > 0 {
			r = r[skip:]
		}
		b.WriteString(string(r))
		covered = c.End
	}
	return b.String()
}

func TestSplitEmpty(t *testing.T) {
	chunks, err := Split("", DefaultSize, DefaultOverlap)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestSplitRejectsInvalidConfig(t *testing.T) {
	testCases := []struct {
		name          string
		size, overlap int
	}{
		{"overlap equals size", 10, 10},
		{"overlap exceeds size", 10, 11},
		{"negative overlap", 10, -1},
		{"zero size", 0, 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Split("abc", tc.size, tc.overlap)
			assert.ErrorIs(t, err, ErrInvalidConfig)
			assert.True(t, apperr.Is(err, apperr.KindValidation))
		})
	}
}

func TestSplitShortTextIsOneChunk(t *testing.T) {
	chunks, err := Split("短い会議でした。", DefaultSize, DefaultOverlap)
	require.NoError(t, err)
	assert.Equal(t, []string{"短い会議でした。"}, chunks)
}

func TestSplitThousandCharsWithoutTerminators(t *testing.T) {
	text := strings.Repeat("あ", 1000)

	chunks, err := SplitWithOffsets(text, 400, 50)
	require.NoError(t, err)
	require.Len(t, chunks, 3)

	assert.Equal(t, 0, chunks[0].Start)
	assert.Equal(t, 400, chunks[0].End)
	assert.Equal(t, 350, chunks[1].Start)
	assert.Equal(t, 750, chunks[1].End)
	assert.Equal(t, 700, chunks[2].Start)
	assert.Equal(t, 1000, chunks[2].End)

	assert.Equal(t, text, reassemble(chunks))
}

func TestSplitPrefersSentenceBoundary(t *testing.T) {
	text := "今日は晴れ。明日は雨です。あさっては曇り"

	chunks, err := SplitWithOffsets(text, 10, 2)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	assert.Equal(t, "今日は晴れ。", chunks[0].Text)
	for _, c := range chunks[:len(chunks)-1] {
		last := []rune(c.Text)
		assert.True(t, isTerminator(last[len(last)-1]) || len(last) == 10, "chunk %q", c.Text)
	}
	assert.Equal(t, text, reassemble(chunks))
}

func TestSplitAlwaysAdvances(t *testing.T) {
	// A terminator right after the window start must not stall the loop.
	text := "a." + strings.Repeat("b", 30)

	chunks, err := SplitWithOffsets(text, 10, 5)
	require.NoError(t, err)
	for i := 1; i < len(chunks); i++ {
		assert.Greater(t, chunks[i].Start, chunks[i-1].Start)
	}
	assert.Equal(t, text, reassemble(chunks))
}

func TestSplitReconstructsMixedText(t *testing.T) {
	text := strings.Repeat("We reviewed the roadmap. Next steps were agreed! 次回は来週です。", 20)

	for _, cfg := range [][2]int{{400, 50}, {100, 10}, {37, 36}, {5, 0}} {
		chunks, err := SplitWithOffsets(text, cfg[0], cfg[1])
		require.NoError(t, err)
		for _, c := range chunks {
			assert.LessOrEqual(t, len([]rune(c.Text)), cfg[0])
		}
		assert.Equal(t, text, reassemble(chunks), "size=%d overlap=%d", cfg[0], cfg[1])
	}
}

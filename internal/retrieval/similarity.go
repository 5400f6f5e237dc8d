package retrieval

import (
	"math"
	"sort"

	"github.com/miso-46/AI-minutes/internal/apperr"
	"github.com/miso-46/AI-minutes/internal/domain"
)

const (
	DefaultThreshold  = 0.65
	DefaultMaxResults = 5
)

// Options bound a similarity search.
type Options struct {
	Threshold  float64
	MaxResults int
}

// DefaultOptions returns threshold 0.65 and at most 5 results.
func DefaultOptions() Options {
	return Options{Threshold: DefaultThreshold, MaxResults: DefaultMaxResults}
}

// Match is a chunk that passed the threshold. Rank 1 is the most similar.
type Match struct {
	Chunk      domain.TranscriptChunk
	Similarity float64
	Rank       int
}

// CosineSimilarity returns the cosine of the angle between a and b. Vectors
// of different length or with zero norm have similarity 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// FindSimilar scores every candidate against query, keeps those at or above
// the threshold and returns the best MaxResults ranked 1..k. Candidates with
// equal similarity keep their input order.
// Parameters:
//   - query: embedding of the question.
//   - candidates: chunks with their stored embeddings.
//   - opts: threshold and result bound.
// Returns:
//   - []Match: at most opts.MaxResults matches, most similar first.
//   - error: an embedding error if a stored vector cannot be decoded.
func FindSimilar(query []float32, candidates []domain.ChunkWithEmbedding, opts Options) ([]Match, error) {
	matches := make([]Match, 0, len(candidates))
	if opts.MaxResults <= 0 {
		return matches, nil
	}

	for _, c := range candidates {
		vec, err := ParseVector(c.Embedding)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindEmbedding, "retrieval.FindSimilar",
				apperr.New(apperr.KindEmbedding, "chunk", "chunk %d: %v", c.Chunk.ID, err))
		}
		sim := CosineSimilarity(query, vec)
		if sim >= opts.Threshold {
			matches = append(matches, Match{Chunk: c.Chunk, Similarity: sim})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})
	if len(matches) > opts.MaxResults {
		matches = matches[:opts.MaxResults]
	}
	for i := range matches {
		matches[i].Rank = i + 1
	}
	return matches, nil
}

// Package retrieval holds the vector codec and the similarity ranking used
// to ground chat answers in transcript chunks.
package retrieval

import (
	"encoding/json"
	"fmt"
	"math"
)

// SerializeVector encodes v as a JSON array. float32 values are written in
// their shortest exact form, so ParseVector(SerializeVector(v)) == v.
func SerializeVector(v []float32) (string, error) {
	for i, f := range v {
		if math.IsNaN(float64(f)) || math.IsInf(float64(f), 0) {
			return "", fmt.Errorf("vector component %d is not finite", i)
		}
	}
	if v == nil {
		v = []float32{}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode vector: %w", err)
	}
	return string(b), nil
}

// ParseVector decodes a vector written by SerializeVector.
func ParseVector(s string) ([]float32, error) {
	var v []float32
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, fmt.Errorf("failed to decode vector: %w", err)
	}
	if v == nil {
		return nil, fmt.Errorf("failed to decode vector: null")
	}
	return v, nil
}

package registry

import (
	"fmt"
	"math"
)

// Metric names accepted by NewDistanceFunc.
const (
	MetricEuclidean = "euclidean"
	MetricCosine    = "cosine"
)

// DistanceFunc measures dissimilarity between two embeddings.
type DistanceFunc func(a, b []float64) (float64, error)

// NewDistanceFunc returns the distance function for a metric name.
func NewDistanceFunc(metric string) (DistanceFunc, error) {
	switch metric {
	case "", MetricEuclidean:
		return EuclideanDistance, nil
	case MetricCosine:
		return CosineDistance, nil
	}
	return nil, fmt.Errorf("unknown metric %q", metric)
}

// EuclideanDistance is the L2 distance between two vectors of equal length.
func EuclideanDistance(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("embedding length mismatch: %d != %d", len(a), len(b))
	}
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum), nil
}

// CosineDistance is 1 - cosine similarity. Zero vectors are at distance 1.
func CosineDistance(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("embedding length mismatch: %d != %d", len(a), len(b))
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 1, nil
	}
	return 1 - dot/(math.Sqrt(normA)*math.Sqrt(normB)), nil
}

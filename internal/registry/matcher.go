package registry

import (
	"context"
	"errors"
	"fmt"

	"github.com/kozaktomas/face-registry/internal/faceapi"
	"github.com/kozaktomas/face-registry/internal/imageutil"
	"github.com/kozaktomas/face-registry/internal/store"
)

// Embedder extracts the embedding of the single face in a JPEG image.
type Embedder interface {
	Embed(ctx context.Context, jpeg []byte) ([]float64, error)
	Detect(ctx context.Context, jpeg []byte) (int, error)
}

// Verifier compares a query image with a stored reference image.
type Verifier interface {
	Verify(ctx context.Context, query []byte, referencePath string) (float64, error)
}

// Probe is the prepared form of a query image.
type Probe struct {
	Embedding []float64 // embedding pipeline
	JPEG      []byte    // verification pipeline
}

// Matcher is the part of a pipeline that differs between models.
type Matcher interface {
	Model() Model
	Threshold() float64
	// Enroll prepares a new registration and returns the embedding to store, if any.
	Enroll(ctx context.Context, img *imageutil.Image) ([]float64, error)
	// Probe prepares a query image.
	Probe(ctx context.Context, img *imageutil.Image) (Probe, error)
	// Compare returns the distance between the probe and a registered record.
	// Errors wrapping ErrComparisonFailed only disqualify that record.
	Compare(ctx context.Context, probe Probe, rec store.Record) (float64, error)
}

// EmbeddingMatcher compares stored embeddings with the query embedding.
type EmbeddingMatcher struct {
	embedder  Embedder
	distance  DistanceFunc
	threshold float64
}

// NewEmbeddingMatcher creates a matcher for the embedding pipeline.
func NewEmbeddingMatcher(embedder Embedder, metric string, threshold float64) (*EmbeddingMatcher, error) {
	distance, err := NewDistanceFunc(metric)
	if err != nil {
		return nil, err
	}
	return &EmbeddingMatcher{embedder: embedder, distance: distance, threshold: threshold}, nil
}

func (m *EmbeddingMatcher) Model() Model       { return ModelEmbedding }
func (m *EmbeddingMatcher) Threshold() float64 { return m.threshold }

func (m *EmbeddingMatcher) Enroll(ctx context.Context, img *imageutil.Image) ([]float64, error) {
	return m.embedder.Embed(ctx, img.JPEG)
}

func (m *EmbeddingMatcher) Probe(ctx context.Context, img *imageutil.Image) (Probe, error) {
	embedding, err := m.embedder.Embed(ctx, img.JPEG)
	if err != nil {
		return Probe{}, err
	}
	return Probe{Embedding: embedding}, nil
}

func (m *EmbeddingMatcher) Compare(_ context.Context, probe Probe, rec store.Record) (float64, error) {
	d, err := m.distance(probe.Embedding, rec.Embedding)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", ErrComparisonFailed, rec.Name, err)
	}
	return d, nil
}

// VerificationMatcher asks the verifier to compare the query with each reference image.
type VerificationMatcher struct {
	verifier    Verifier
	embedder    Embedder // only used when requireFace is set
	threshold   float64
	requireFace bool
}

// NewVerificationMatcher creates a matcher for the verification pipeline.
// With requireFace set, registration checks that the image holds exactly one
// face, as the embedding pipeline does.
func NewVerificationMatcher(verifier Verifier, embedder Embedder, threshold float64, requireFace bool) *VerificationMatcher {
	return &VerificationMatcher{
		verifier:    verifier,
		embedder:    embedder,
		threshold:   threshold,
		requireFace: requireFace,
	}
}

func (m *VerificationMatcher) Model() Model       { return ModelVerification }
func (m *VerificationMatcher) Threshold() float64 { return m.threshold }

func (m *VerificationMatcher) Enroll(ctx context.Context, img *imageutil.Image) ([]float64, error) {
	if !m.requireFace || m.embedder == nil {
		return nil, nil
	}
	n, err := m.embedder.Detect(ctx, img.JPEG)
	if err != nil {
		return nil, err
	}
	if err := checkFaceCount(n); err != nil {
		return nil, err
	}
	return nil, nil
}

func (m *VerificationMatcher) Probe(_ context.Context, img *imageutil.Image) (Probe, error) {
	return Probe{JPEG: img.JPEG}, nil
}

func (m *VerificationMatcher) Compare(ctx context.Context, probe Probe, rec store.Record) (float64, error) {
	if rec.ImagePath == "" {
		return 0, fmt.Errorf("%w: %s has no reference image", ErrComparisonFailed, rec.Name)
	}
	d, err := m.verifier.Verify(ctx, probe.JPEG, rec.ImagePath)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return 0, err
		}
		return 0, fmt.Errorf("%w: %s: %w", ErrComparisonFailed, rec.Name, err)
	}
	return d, nil
}

// Nearest scans all records and returns the closest one.
// Ties go to the lexicographically smallest name. Comparisons failing with
// ErrComparisonFailed are collected in skipped; any other error aborts the scan.
func Nearest(ctx context.Context, m Matcher, probe Probe, recs []store.Record) (best Match, skipped []error, err error) {
	found := false
	for _, rec := range recs {
		d, err := m.Compare(ctx, probe, rec)
		if err != nil {
			if errors.Is(err, ErrComparisonFailed) {
				skipped = append(skipped, err)
				continue
			}
			return Match{}, skipped, err
		}
		if !found || d < best.Distance || (d == best.Distance && rec.Name < best.Name) {
			best = Match{Name: rec.Name, Distance: d}
			found = true
		}
	}
	if found {
		decide(&best, m.Threshold())
	}
	return best, skipped, nil
}

func decide(match *Match, threshold float64) {
	match.Recognized = match.Distance <= threshold
	match.Confidence = clamp(1-match.Distance, 0, 1)
}

func clamp(v, lo, hi float64) float64 {
	return max(lo, min(v, hi))
}

func checkFaceCount(n int) error {
	switch {
	case n == 0:
		return faceapi.ErrNoFace
	case n > 1:
		return faceapi.ErrMultipleFaces
	}
	return nil
}

// IsDetectionError reports whether err means the image did not hold exactly one face.
func IsDetectionError(err error) bool {
	return errors.Is(err, faceapi.ErrNoFace) || errors.Is(err, faceapi.ErrMultipleFaces)
}

package registry

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"sync"
	"testing"

	"github.com/kozaktomas/face-registry/internal/store"
	"github.com/rs/zerolog"
)

// fakeEmbedder returns a fixed embedding or error for every image.
type fakeEmbedder struct {
	mu        sync.Mutex
	embedding []float64
	err       error
	faces     int
	calls     int
}

func (f *fakeEmbedder) Embed(_ context.Context, _ []byte) ([]float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.embedding, nil
}

func (f *fakeEmbedder) Detect(_ context.Context, _ []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.faces, f.err
}

// fakeVerifier returns distances keyed by reference path.
type fakeVerifier struct {
	mu        sync.Mutex
	distances map[string]float64
	errs      map[string]error
	calls     int
}

func (f *fakeVerifier) Verify(_ context.Context, _ []byte, referencePath string) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if err, ok := f.errs[referencePath]; ok {
		return 0, err
	}
	if d, ok := f.distances[referencePath]; ok {
		return d, nil
	}
	return 0, errors.New("unknown reference")
}

type testService struct {
	*Service
	embedder     *fakeEmbedder
	verifier     *fakeVerifier
	embeddings   *store.Memory
	verification *store.Memory
	embImages    *ImageDir
	verImages    *ImageDir
}

func newTestService(t *testing.T, requireFace bool) *testService {
	t.Helper()

	embedder := &fakeEmbedder{embedding: []float64{0, 0}, faces: 1}
	verifier := &fakeVerifier{distances: map[string]float64{}, errs: map[string]error{}}

	embMatcher, err := NewEmbeddingMatcher(embedder, MetricEuclidean, 0.6)
	if err != nil {
		t.Fatalf("NewEmbeddingMatcher() error = %v", err)
	}
	verMatcher := NewVerificationMatcher(verifier, embedder, 0.4, requireFace)

	ts := &testService{
		embedder:     embedder,
		verifier:     verifier,
		embeddings:   store.NewMemory(),
		verification: store.NewMemory(),
		embImages:    NewImageDir(t.TempDir()),
		verImages:    NewImageDir(t.TempDir()),
	}
	ts.Service = NewService(
		Pipeline{Matcher: embMatcher, Store: ts.embeddings, Images: ts.embImages},
		Pipeline{Matcher: verMatcher, Store: ts.verification, Images: ts.verImages},
		Options{Logger: zerolog.Nop(), MaxImageSize: 64, Metric: MetricEuclidean},
	)
	return ts
}

// testImage returns a small base64-encoded PNG.
func testImage(t *testing.T) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for x := range 8 {
		for y := range 8 {
			img.Set(x, y, color.RGBA{R: uint8(x * 30), G: uint8(y * 30), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode() error = %v", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func assertErrorIs(t *testing.T, err, target error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Fatalf("expected error %v, got %v", target, err)
	}
}

func assertFileCount(t *testing.T, dir string, expected int) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil && !os.IsNotExist(err) {
		t.Fatalf("ReadDir(%s) error = %v", dir, err)
	}
	if len(entries) != expected {
		t.Errorf("expected %d files in %s, got %d", expected, dir, len(entries))
	}
}

func mustCount(t *testing.T, s store.Store) int {
	t.Helper()
	n, err := s.Count(context.Background())
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	return n
}

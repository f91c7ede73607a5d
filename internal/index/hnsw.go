// Package index provides an in-memory HNSW graph over registered face embeddings.
package index

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/coder/hnsw"
	"github.com/kozaktomas/face-registry/internal/store"
)

// MaxNeighbors is the M parameter of the graph.
const MaxNeighbors = 16

// ErrUnknownName is returned by Neighbors when the name has no vector in the index.
var ErrUnknownName = errors.New("name not in index")

// Neighbor is one search hit.
type Neighbor struct {
	Name     string
	Distance float64
}

// Index wraps the HNSW graph keyed by registered name.
type Index struct {
	graph    *hnsw.Graph[string]
	distance hnsw.DistanceFunc
	vectors  map[string][]float32
	dim      int
	mu       sync.RWMutex
}

// New creates an empty index using the given metric ("euclidean" or "cosine").
func New(metric string) (*Index, error) {
	var distance hnsw.DistanceFunc
	switch metric {
	case "", "euclidean":
		distance = hnsw.EuclideanDistance
	case "cosine":
		distance = hnsw.CosineDistance
	default:
		return nil, fmt.Errorf("unknown metric %q", metric)
	}
	return &Index{
		distance: distance,
		vectors:  make(map[string][]float32),
	}, nil
}

func (x *Index) newGraph() *hnsw.Graph[string] {
	g := hnsw.NewGraph[string]()
	g.M = MaxNeighbors
	g.Ml = 1.0 / float64(MaxNeighbors) // standard HNSW formula
	g.Distance = x.distance
	return g
}

// Build replaces the index content with the embeddings of recs.
// Records without an embedding, or whose dimension differs from the
// first embedded record, are skipped. It returns the names of the
// embedded records left out because of their dimension.
func (x *Index) Build(recs []store.Record) []string {
	x.mu.Lock()
	defer x.mu.Unlock()

	x.graph = x.newGraph()
	x.vectors = make(map[string][]float32, len(recs))
	x.dim = 0

	var mismatched []string
	for _, rec := range recs {
		if len(rec.Embedding) == 0 {
			continue
		}
		if x.dim != 0 && len(rec.Embedding) != x.dim {
			mismatched = append(mismatched, rec.Name)
			continue
		}
		x.dim = len(rec.Embedding)

		vec := toFloat32(rec.Embedding)
		x.graph.Add(hnsw.MakeNode(rec.Name, vec))
		x.vectors[rec.Name] = vec
	}
	return mismatched
}

// Len returns the number of indexed names.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.vectors)
}

// Search finds the k nearest names to the query vector, closest first.
func (x *Index) Search(query []float64, k int) ([]Neighbor, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if len(x.vectors) == 0 || k <= 0 {
		return nil, nil
	}
	if len(query) != x.dim {
		return nil, fmt.Errorf("query dimension %d does not match index dimension %d", len(query), x.dim)
	}
	return x.search(toFloat32(query), k, ""), nil
}

// Neighbors returns the k nearest other names to a registered name.
func (x *Index) Neighbors(name string, k int) ([]Neighbor, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	vec, ok := x.vectors[name]
	if !ok {
		return nil, ErrUnknownName
	}
	if k <= 0 {
		return nil, nil
	}
	// One extra slot for the name itself.
	out := x.search(vec, k+1, name)
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

func (x *Index) search(query []float32, k int, exclude string) []Neighbor {
	nodes := x.graph.Search(query, k)

	out := make([]Neighbor, 0, len(nodes))
	for _, n := range nodes {
		if n.Key == exclude {
			continue
		}
		out = append(out, Neighbor{Name: n.Key, Distance: float64(x.distance(query, n.Value))})
	}
	slices.SortFunc(out, func(a, b Neighbor) int {
		if c := cmp.Compare(a.Distance, b.Distance); c != 0 {
			return c
		}
		return strings.Compare(a.Name, b.Name)
	})
	return out
}

func toFloat32(vec []float64) []float32 {
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = float32(v)
	}
	return out
}

// Package registry registers and recognizes faces against the two matching pipelines.
package registry

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kozaktomas/face-registry/internal/constants"
	"github.com/kozaktomas/face-registry/internal/imageutil"
	"github.com/kozaktomas/face-registry/internal/index"
	"github.com/kozaktomas/face-registry/internal/metrics"
	"github.com/kozaktomas/face-registry/internal/store"
	"github.com/rs/zerolog"
)

// DefaultSimilarK is the number of neighbors returned by Similar when k is not set.
const DefaultSimilarK = constants.DefaultSimilarK

// Pipeline bundles what the service needs for one model.
type Pipeline struct {
	Matcher Matcher
	Store   store.Store
	Images  *ImageDir
}

type Options struct {
	Logger       zerolog.Logger
	MaxImageSize int    // longest side, 0 disables downscaling
	Metric       string // distance metric of the similar-faces index
}

type Service struct {
	pipelines    map[Model]Pipeline
	maxImageSize int
	metric       string
	logger       zerolog.Logger
	now          func() time.Time
	newID        func() string
}

// RegisterRequest is the input of Register.
type RegisterRequest struct {
	Name  string
	Image string // base64, optionally with a data URI prefix
	Model string
}

// RecognizeRequest is the input of Recognize.
type RecognizeRequest struct {
	Image string
	Model string
}

func NewService(embedding, verification Pipeline, opts Options) *Service {
	return &Service{
		pipelines: map[Model]Pipeline{
			ModelEmbedding:    embedding,
			ModelVerification: verification,
		},
		maxImageSize: opts.MaxImageSize,
		metric:       opts.Metric,
		logger:       opts.Logger,
		now:          time.Now,
		newID:        uuid.NewString,
	}
}

// Register stores a new identity in the pipeline selected by req.Model.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*store.Record, error) {
	model, err := ParseModel(req.Model)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(req.Name)
	if name == "" || strings.TrimSpace(req.Image) == "" {
		return nil, ErrNameAndImageRequired
	}

	rec, err := s.register(ctx, model, name, req.Image)
	if err != nil {
		metrics.RegistrationsTotal.WithLabelValues(string(model), outcome(err)).Inc()
		return nil, err
	}
	metrics.RegistrationsTotal.WithLabelValues(string(model), "success").Inc()
	s.refreshCount(ctx, model)

	s.logger.Info().
		Str("model", string(model)).
		Str("name", rec.Name).
		Str("id", rec.ID).
		Msg("face registered")
	return rec, nil
}

func (s *Service) register(ctx context.Context, model Model, name, image string) (*store.Record, error) {
	p := s.pipelines[model]

	img, err := imageutil.DecodeBase64Image(image, s.maxImageSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidImage, err)
	}

	embedding, err := p.Matcher.Enroll(ctx, img)
	if err != nil {
		return nil, err
	}

	existing, err := p.Store.Get(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("checking registered faces: %w", err)
	}
	if existing != nil {
		return nil, ErrDuplicateName
	}

	rec := store.Record{
		ID:        s.newID(),
		Name:      name,
		Embedding: embedding,
		CreatedAt: s.now().UTC(),
	}
	rec.ImagePath, err = p.Images.Save(name, rec.ID, img.JPEG)
	if err != nil {
		return nil, err
	}

	if err := p.Store.Put(ctx, rec); err != nil {
		if rmErr := p.Images.Remove(rec.ImagePath); rmErr != nil {
			s.logger.Warn().Err(rmErr).Str("path", rec.ImagePath).Msg("failed to remove orphaned image")
		}
		if errors.Is(err, store.ErrExists) {
			return nil, ErrDuplicateName
		}
		return nil, fmt.Errorf("saving face: %w", err)
	}
	return &rec, nil
}

// Recognize finds the registered identity closest to the query image.
func (s *Service) Recognize(ctx context.Context, req RecognizeRequest) (Match, error) {
	model, err := ParseModel(req.Model)
	if err != nil {
		return Match{}, err
	}
	if strings.TrimSpace(req.Image) == "" {
		return Match{}, ErrImageRequired
	}

	match, err := s.recognize(ctx, model, req.Image)
	switch {
	case err != nil:
		metrics.RecognitionsTotal.WithLabelValues(string(model), outcome(err)).Inc()
		return Match{}, err
	case match.Recognized:
		metrics.RecognitionsTotal.WithLabelValues(string(model), "recognized").Inc()
	default:
		metrics.RecognitionsTotal.WithLabelValues(string(model), "unrecognized").Inc()
	}

	s.logger.Info().
		Str("model", string(model)).
		Str("best_match", match.Name).
		Float64("distance", match.Distance).
		Bool("recognized", match.Recognized).
		Msg("face recognition finished")
	return match, nil
}

func (s *Service) recognize(ctx context.Context, model Model, image string) (Match, error) {
	p := s.pipelines[model]

	img, err := imageutil.DecodeBase64Image(image, s.maxImageSize)
	if err != nil {
		return Match{}, fmt.Errorf("%w: %w", ErrInvalidImage, err)
	}

	probe, err := p.Matcher.Probe(ctx, img)
	if err != nil {
		return Match{}, err
	}

	recs, err := p.Store.List(ctx)
	if err != nil {
		return Match{}, fmt.Errorf("loading registered faces: %w", err)
	}
	if len(recs) == 0 {
		return Match{}, ErrNoRegisteredFaces
	}

	match, skipped, err := Nearest(ctx, p.Matcher, probe, recs)
	if err != nil {
		return Match{}, err
	}
	for _, skipErr := range skipped {
		metrics.ComparisonsSkippedTotal.WithLabelValues(string(model)).Inc()
		s.logger.Warn().Err(skipErr).Str("model", string(model)).Msg("skipping candidate")
	}
	if match.Name != "" {
		metrics.MatchDistance.WithLabelValues(string(model)).Observe(match.Distance)
	}
	return match, nil
}

// List returns the names registered in either pipeline, sorted and deduplicated.
func (s *Service) List(ctx context.Context) ([]string, error) {
	var names []string
	for _, model := range Models {
		recs, err := s.pipelines[model].Store.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing %s faces: %w", model, err)
		}
		for _, rec := range recs {
			names = append(names, rec.Name)
		}
	}
	slices.Sort(names)
	return slices.Compact(names), nil
}

// Delete removes the name from every pipeline that has it.
// It returns ErrNotFound only when no pipeline had the name.
func (s *Service) Delete(ctx context.Context, name string) error {
	removed := false
	for _, model := range Models {
		p := s.pipelines[model]
		rec, err := p.Store.Delete(ctx, name)
		if err != nil {
			return fmt.Errorf("deleting %s face: %w", model, err)
		}
		if rec == nil {
			continue
		}
		removed = true
		s.refreshCount(ctx, model)

		path := p.Images.ReferencePath(*rec)
		if err := p.Images.Remove(path); err != nil {
			s.logger.Warn().Err(err).Str("path", path).Msg("failed to remove reference image")
		}
		s.logger.Info().Str("model", string(model)).Str("name", name).Msg("face deleted")
	}
	if !removed {
		return ErrNotFound
	}
	return nil
}

// Similar returns up to k registered identities whose embeddings are closest
// to the embedding registered under name.
func (s *Service) Similar(ctx context.Context, name string, k int) ([]Similar, error) {
	if k <= 0 {
		k = DefaultSimilarK
	}
	recs, err := s.pipelines[ModelEmbedding].Store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading registered faces: %w", err)
	}

	idx, err := index.New(s.metric)
	if err != nil {
		return nil, err
	}
	mismatched := idx.Build(recs)
	if len(mismatched) > 0 {
		s.logger.Warn().Strs("names", mismatched).Msg("embeddings with a different dimension left out of similarity index")
	}

	neighbors, err := idx.Neighbors(name, k)
	if errors.Is(err, index.ErrUnknownName) {
		if slices.Contains(mismatched, name) {
			return nil, fmt.Errorf("%w: %s", ErrIncomparable, name)
		}
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	out := make([]Similar, len(neighbors))
	for i, n := range neighbors {
		out[i] = Similar{Name: n.Name, Distance: n.Distance}
	}
	return out, nil
}

// RefreshMetrics sets the registered faces gauge of every pipeline.
func (s *Service) RefreshMetrics(ctx context.Context) {
	for _, model := range Models {
		s.refreshCount(ctx, model)
	}
}

func (s *Service) refreshCount(ctx context.Context, model Model) {
	n, err := s.pipelines[model].Store.Count(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Str("model", string(model)).Msg("failed to count registered faces")
		return
	}
	metrics.RegisteredFaces.WithLabelValues(string(model)).Set(float64(n))
}

// outcome is the metrics label of a failed operation.
func outcome(err error) string {
	switch {
	case errors.Is(err, ErrValidation), errors.Is(err, ErrInvalidImage):
		return "invalid"
	case errors.Is(err, ErrDuplicateName):
		return "duplicate"
	case errors.Is(err, ErrNoRegisteredFaces):
		return "empty"
	case IsDetectionError(err):
		return "no_single_face"
	}
	return "error"
}

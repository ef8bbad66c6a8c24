package resolver

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/sirupsen/logrus"

	"facewatch/internal/event"
	"facewatch/internal/face"
)

type Mode string

const (
	ModeMatching Mode = "matching"
	ModeML       Mode = "ml"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeMatching, ModeML:
		return Mode(s), nil
	case "":
		return ModeMatching, nil
	}
	return "", fmt.Errorf("unknown mode %q", s)
}

const DefaultLabelFormat = "Student #%s"

type Config struct {
	SimilarityThreshold float64 `yaml:"similarityThreshold"`
	ConfidenceThreshold float64 `yaml:"confidenceThreshold"`
	Votes               int     `yaml:"votes"`
	LabelFormat         string  `yaml:"labelFormat"`
	GalleryPath         string  `yaml:"galleryPath"`
}

func DefaultConfig() Config {
	return Config{
		SimilarityThreshold: DefaultSimilarityThreshold,
		ConfidenceThreshold: DefaultConfidenceThreshold,
		Votes:               DefaultVotes,
		LabelFormat:         DefaultLabelFormat,
	}
}

// Resolver turns a face crop into an identity decision under one of the two
// strategies. Resolution failure is a Warning result, never an error.
type Resolver struct {
	embedder face.Embedder
	matcher  *Matcher
	voter    *Voter
	logger   *logrus.Entry
}

func New(embedder face.Embedder, matcher *Matcher, voter *Voter, logger *logrus.Entry) *Resolver {
	if voter == nil {
		logger.Warn("no classifier configured, ml mode will report every face as unknown")
	}
	return &Resolver{
		embedder: embedder,
		matcher:  matcher,
		voter:    voter,
		logger:   logger,
	}
}

func (r *Resolver) Voter() *Voter {
	return r.voter
}

// Resolve resolves crop with the strategy selected by mode.
func (r *Resolver) Resolve(ctx context.Context, mode Mode, crop image.Image) event.Result {
	if mode == ModeML {
		if r.voter == nil {
			r.logger.Debug("ml mode requested without a classifier")
			return event.Unknown(event.NoScore(event.MetricConfidence))
		}
		return r.voter.Vote(ctx, crop)
	}
	return r.ResolveSimilarity(ctx, crop)
}

// ResolveWith is Resolve with voter standing in for the resolver's own voter
// in ml mode, so the live path can run with a different vote count.
func (r *Resolver) ResolveWith(ctx context.Context, mode Mode, crop image.Image, voter *Voter) event.Result {
	if mode == ModeML && voter != nil {
		return voter.Vote(ctx, crop)
	}
	return r.Resolve(ctx, mode, crop)
}

func (r *Resolver) ResolveSimilarity(ctx context.Context, crop image.Image) event.Result {
	emb, err := r.embedder.Represent(ctx, crop)
	if err != nil || len(emb) == 0 {
		if err != nil && !errors.Is(err, face.ErrNoEmbedding) {
			r.logger.WithError(err).Warn("embedding failed")
		}
		return event.Unknown(event.NoScore(event.MetricSimilarity))
	}
	return r.matcher.Match(emb)
}

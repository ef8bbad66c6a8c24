package resolver

import (
	"context"
	"fmt"
	"image"

	"github.com/sirupsen/logrus"

	"facewatch/internal/event"
	"facewatch/internal/face"
)

const (
	DefaultConfidenceThreshold = 0.80
	DefaultVotes               = 5
)

type Vote struct {
	Label      string
	Confidence float64
}

// Tally returns the majority label of votes and the mean confidence of the
// votes agreeing with it. Ties go to the label that appeared first.
func Tally(votes []Vote) (string, float64, bool) {
	if len(votes) == 0 {
		return "", 0, false
	}

	counts := make(map[string]int)
	order := make([]string, 0, len(votes))
	for _, v := range votes {
		if _, seen := counts[v.Label]; !seen {
			order = append(order, v.Label)
		}
		counts[v.Label]++
	}

	winner := order[0]
	for _, label := range order[1:] {
		if counts[label] > counts[winner] {
			winner = label
		}
	}

	var sum float64
	for _, v := range votes {
		if v.Label == winner {
			sum += v.Confidence
		}
	}
	return winner, sum / float64(counts[winner]), true
}

// Voter classifies a crop K times under independent random augmentations and
// accepts the majority label when its mean confidence clears the threshold.
type Voter struct {
	embedder    face.Embedder
	classifier  face.Classifier
	augmenter   face.Augmenter
	votes       int
	threshold   float64
	labelFormat string
	logger      *logrus.Entry
}

func NewVoter(embedder face.Embedder, classifier face.Classifier, augmenter face.Augmenter,
	votes int, threshold float64, labelFormat string, logger *logrus.Entry) *Voter {
	if votes <= 0 {
		votes = DefaultVotes
	}
	if threshold <= 0 {
		threshold = DefaultConfidenceThreshold
	}
	if labelFormat == "" {
		labelFormat = DefaultLabelFormat
	}
	return &Voter{
		embedder:    embedder,
		classifier:  classifier,
		augmenter:   augmenter,
		votes:       votes,
		threshold:   threshold,
		labelFormat: labelFormat,
		logger:      logger,
	}
}

// WithVotes returns a copy of v casting n votes. With n == 1 the crop is
// classified once without augmentation.
func (v *Voter) WithVotes(n int) *Voter {
	c := *v
	if n > 0 {
		c.votes = n
	}
	return &c
}

func (v *Voter) Votes() int {
	return v.votes
}

func (v *Voter) collect(ctx context.Context, crop image.Image) []Vote {
	votes := make([]Vote, 0, v.votes)
	for i := 0; i < v.votes; i++ {
		if ctx.Err() != nil {
			break
		}
		img := crop
		if v.votes > 1 && v.augmenter != nil {
			img = v.augmenter.Augment(crop)
		}

		emb, err := v.embedder.Represent(ctx, img)
		if err != nil || len(emb) == 0 {
			v.logger.WithError(err).Debugf("vote %d: no embedding", i)
			continue
		}
		label, conf, err := v.classifier.Predict(ctx, emb)
		if err != nil {
			v.logger.WithError(err).Warnf("vote %d: classifier failed", i)
			continue
		}
		votes = append(votes, Vote{Label: label, Confidence: conf})
	}
	return votes
}

func (v *Voter) Decide(votes []Vote) event.Result {
	label, mean, ok := Tally(votes)
	if !ok {
		return event.Unknown(event.NoScore(event.MetricConfidence))
	}
	if mean < v.threshold {
		return event.Unknown(event.ConfidenceScore(mean))
	}
	return event.Success{
		Subject: fmt.Sprintf(v.labelFormat, label),
		Score:   event.ConfidenceScore(mean),
	}
}

func (v *Voter) Vote(ctx context.Context, crop image.Image) event.Result {
	votes := v.collect(ctx, crop)
	res := v.Decide(votes)
	v.logger.WithFields(logrus.Fields{
		"votes":  len(votes),
		"result": res.Type(),
	}).Debug("voting finished")
	return res
}

package resolver

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"

	"facewatch/internal/event"
)

const DefaultSimilarityThreshold = 0.75

// Gallery maps a subject id to its reference embeddings.
type Gallery map[string][][]float32

func LoadGallery(filename string) (Gallery, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("read gallery: %w", err)
	}
	g := Gallery{}
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("unmarshal gallery: %w", err)
	}
	if _, err := g.Dim(); err != nil {
		return nil, err
	}
	return g, nil
}

// Dim returns the embedding dimension shared by every reference in g. An
// empty gallery has dimension 0.
func (g Gallery) Dim() (int, error) {
	dim := 0
	for _, subject := range sortedSubjects(g) {
		for i, ref := range g[subject] {
			if len(ref) == 0 {
				return 0, fmt.Errorf("gallery subject %s reference %d is empty", subject, i)
			}
			if dim == 0 {
				dim = len(ref)
			} else if len(ref) != dim {
				return 0, fmt.Errorf("gallery subject %s reference %d has dimension %d, want %d",
					subject, i, len(ref), dim)
			}
		}
	}
	return dim, nil
}

// CosineSimilarity returns 0 for vectors of different length.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
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

// MeanSimilarity is the mean cosine similarity of e against refs, 0 when refs
// is empty.
func MeanSimilarity(e []float32, refs [][]float32) float64 {
	if len(refs) == 0 {
		return 0
	}
	var sum float64
	for _, r := range refs {
		sum += CosineSimilarity(e, r)
	}
	return sum / float64(len(refs))
}

// sortedSubjects lists gallery ids in a fixed order so equal scores resolve
// the same way every run.
func sortedSubjects(g Gallery) []string {
	ids := make([]string, 0, len(g))
	for id := range g {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

type Matcher struct {
	gallery     Gallery
	subjects    []string
	threshold   float64
	labelFormat string
}

func NewMatcher(gallery Gallery, threshold float64, labelFormat string) *Matcher {
	if threshold <= 0 {
		threshold = DefaultSimilarityThreshold
	}
	if labelFormat == "" {
		labelFormat = DefaultLabelFormat
	}
	return &Matcher{
		gallery:     gallery,
		subjects:    sortedSubjects(gallery),
		threshold:   threshold,
		labelFormat: labelFormat,
	}
}

func (m *Matcher) Len() int {
	return len(m.subjects)
}

// Best returns the subject with the highest mean similarity to e, regardless
// of the threshold.
func (m *Matcher) Best(e []float32) (string, float64) {
	bestId, bestScore := "", math.Inf(-1)
	for _, id := range m.subjects {
		if s := MeanSimilarity(e, m.gallery[id]); s > bestScore {
			bestId, bestScore = id, s
		}
	}
	return bestId, bestScore
}

func (m *Matcher) Match(e []float32) event.Result {
	id, score := m.Best(e)
	if id == "" || score < m.threshold {
		return event.Unknown(event.NoScore(event.MetricSimilarity))
	}
	return event.Success{
		Subject: fmt.Sprintf(m.labelFormat, id),
		Score:   event.SimilarityScore(score),
	}
}

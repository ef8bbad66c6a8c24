package track

import (
	"image"

	"facewatch/internal/face"
)

const DefaultIoUThreshold = 0.5

// IoU returns intersection-area / union-area of a and b, or 0 when the union
// is empty.
func IoU(a, b face.Box) float64 {
	ix1 := max(a.X1, b.X1)
	iy1 := max(a.Y1, b.Y1)
	ix2 := min(a.X2, b.X2)
	iy2 := min(a.Y2, b.Y2)

	inter := max(0, ix2-ix1) * max(0, iy2-iy1)
	union := a.Area() + b.Area() - inter
	if union <= 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// Track is one deduplicated face within a window. Crop is the crop of the
// first detection folded into it.
type Track struct {
	Box  face.Box
	Crop image.Image
}

// Tracker accumulates tracks for one processing window. No two tracks it
// holds overlap with IoU >= threshold. It is not safe for concurrent use.
type Tracker struct {
	threshold float64
	tracks    []Track
}

func NewTracker(threshold float64) *Tracker {
	if threshold <= 0 {
		threshold = DefaultIoUThreshold
	}
	return &Tracker{threshold: threshold}
}

// Consider folds det into an existing track when it overlaps one by at least
// the threshold (first seen wins) and reports false; otherwise it starts a
// new track and reports true.
func (t *Tracker) Consider(det face.Detection) bool {
	best := 0.0
	for _, tr := range t.tracks {
		if v := IoU(tr.Box, det.Box); v > best {
			best = v
		}
	}
	if best >= t.threshold {
		return false
	}
	t.tracks = append(t.tracks, Track{Box: det.Box, Crop: det.Crop})
	return true
}

func (t *Tracker) Tracks() []Track {
	out := make([]Track, len(t.tracks))
	copy(out, t.tracks)
	return out
}

func (t *Tracker) Len() int {
	return len(t.tracks)
}

// Reset discards all tracks, ending the window.
func (t *Tracker) Reset() {
	t.tracks = nil
}

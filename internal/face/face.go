// Package face declares the capabilities the pipeline consumes: a face
// detector, an embedding extractor, a classifier and an augmenter. The
// pipeline treats them as opaque; concrete backends live in internal/vision.
package face

import (
	"context"
	"errors"
	"image"
)

// ErrNoEmbedding is returned by an Embedder when the crop is too degenerate
// to produce a vector.
var ErrNoEmbedding = errors.New("no embedding for crop")

// Box is a bounding box in frame pixel coordinates, (X1,Y1) top-left and
// (X2,Y2) bottom-right.
type Box struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

func (b Box) Width() int {
	if b.X2 < b.X1 {
		return 0
	}
	return b.X2 - b.X1
}

func (b Box) Height() int {
	if b.Y2 < b.Y1 {
		return 0
	}
	return b.Y2 - b.Y1
}

func (b Box) Area() int {
	return b.Width() * b.Height()
}

func (b Box) Rect() image.Rectangle {
	return image.Rect(b.X1, b.Y1, b.X2, b.Y2)
}

// Detection is a single face found in a frame. It is never persisted.
type Detection struct {
	Crop       image.Image
	Box        Box
	Confidence float32
}

type Detector interface {
	FindFaces(ctx context.Context, frame image.Image) ([]Detection, error)
}

type Embedder interface {
	Represent(ctx context.Context, crop image.Image) ([]float32, error)
}

type Classifier interface {
	Predict(ctx context.Context, embedding []float32) (label string, confidence float64, err error)
}

type Augmenter interface {
	Augment(crop image.Image) image.Image
}

// Capabilities bundles the model backends constructed once at process start.
type Capabilities struct {
	Detector   Detector
	Embedder   Embedder
	Classifier Classifier
	Augmenter  Augmenter
}

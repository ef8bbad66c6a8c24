package vision

import (
	"context"
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"

	"facewatch/internal/face"
)

// CascadeDetector finds faces with an OpenCV Haar cascade. It needs no
// inference server and serves as the fallback detector.
type CascadeDetector struct {
	mu         sync.Mutex
	classifier gocv.CascadeClassifier
}

func NewCascadeDetector(file string) (*CascadeDetector, error) {
	classifier := gocv.NewCascadeClassifier()
	if !classifier.Load(file) {
		classifier.Close()
		return nil, fmt.Errorf("load cascade %s failed", file)
	}
	return &CascadeDetector{classifier: classifier}, nil
}

func (d *CascadeDetector) FindFaces(_ context.Context, frame image.Image) ([]face.Detection, error) {
	mat, err := toMat(frame)
	if err != nil {
		return nil, err
	}
	defer mat.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(mat, &gray, gocv.ColorBGRToGray)

	d.mu.Lock()
	rects := d.classifier.DetectMultiScale(gray)
	d.mu.Unlock()

	dets := make([]face.Detection, 0, len(rects))
	for _, r := range rects {
		dets = append(dets, face.Detection{
			Box:        face.Box{X1: r.Min.X, Y1: r.Min.Y, X2: r.Max.X, Y2: r.Max.Y},
			Confidence: 1,
		})
	}
	return cropDetections(frame, dets), nil
}

func (d *CascadeDetector) Close() error {
	return d.classifier.Close()
}

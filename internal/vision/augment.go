package vision

import (
	"image"
	"image/color"
	"math/rand"
	"sync"

	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

// Augmenter applies a random mix of flip, rotation, brightness/contrast,
// noise, hue/saturation and shadow to a crop. Each transform fires with its
// own probability.
type Augmenter struct {
	mu     sync.Mutex
	rnd    *rand.Rand
	logger *logrus.Entry
}

func NewAugmenter(seed int64, logger *logrus.Entry) *Augmenter {
	return &Augmenter{
		rnd:    rand.New(rand.NewSource(seed)),
		logger: logger,
	}
}

type augmentPlan struct {
	flip       bool
	angle      float64
	alpha      float32
	beta       float32
	noiseStd   float64
	hueShift   float32
	satShift   float32
	valShift   float32
	shadow     image.Rectangle
	shadowGain float64
}

func (a *Augmenter) plan(w, h int) augmentPlan {
	a.mu.Lock()
	defer a.mu.Unlock()

	p := augmentPlan{alpha: 1}
	r := a.rnd
	if r.Float64() < 0.5 {
		p.flip = true
	}
	if r.Float64() < 0.6 {
		p.angle = r.Float64()*30 - 15
	}
	if r.Float64() < 0.6 {
		p.alpha = 1 + float32(r.Float64()*0.4-0.2)
		p.beta = float32(r.Float64()*0.4-0.2) * 255
	}
	if r.Float64() < 0.2 {
		p.noiseStd = 3 + r.Float64()*5
	}
	if r.Float64() < 0.3 {
		p.hueShift = float32(r.Intn(21) - 10)
		p.satShift = float32(r.Intn(61) - 30)
		p.valShift = float32(r.Intn(41) - 20)
	}
	if r.Float64() < 0.2 && w > 1 && h > 1 {
		x1, y1 := r.Intn(w/2+1), r.Intn(h/2+1)
		p.shadow = image.Rect(x1, y1, x1+w/2, y1+h/2).Intersect(image.Rect(0, 0, w, h))
		p.shadowGain = 0.5 + r.Float64()*0.3
	}
	return p
}

// Augment returns a transformed copy of crop. On conversion failure the
// crop is returned unchanged.
func (a *Augmenter) Augment(crop image.Image) image.Image {
	src, err := toMat(crop)
	if err != nil {
		a.logger.WithError(err).Debug("augment: convert failed")
		return crop
	}
	defer src.Close()

	p := a.plan(src.Cols(), src.Rows())
	out := applyPlan(src, p)
	defer out.Close()

	img, err := fromMat(out)
	if err != nil {
		return crop
	}
	return img
}

func applyPlan(src gocv.Mat, p augmentPlan) gocv.Mat {
	cur := src.Clone()
	swap := func(next gocv.Mat) {
		cur.Close()
		cur = next
	}

	if p.flip {
		dst := gocv.NewMat()
		gocv.Flip(cur, &dst, 1)
		swap(dst)
	}

	if p.angle != 0 {
		center := image.Pt(cur.Cols()/2, cur.Rows()/2)
		m := gocv.GetRotationMatrix2D(center, p.angle, 1.0)
		dst := gocv.NewMat()
		gocv.WarpAffineWithParams(cur, &dst, m, image.Pt(cur.Cols(), cur.Rows()),
			gocv.InterpolationLinear, gocv.BorderReflect101, color.RGBA{})
		m.Close()
		swap(dst)
	}

	if p.alpha != 1 || p.beta != 0 {
		dst := gocv.NewMat()
		cur.ConvertToWithParams(&dst, gocv.MatTypeCV8UC3, p.alpha, p.beta)
		swap(dst)
	}

	if p.noiseStd > 0 {
		noise := gocv.NewMatWithSize(cur.Rows(), cur.Cols(), gocv.MatTypeCV16SC3)
		gocv.RandN(&noise, gocv.NewScalar(0, 0, 0, 0), gocv.NewScalar(p.noiseStd, p.noiseStd, p.noiseStd, 0))
		wide := gocv.NewMat()
		cur.ConvertTo(&wide, gocv.MatTypeCV16SC3)
		sum := gocv.NewMat()
		gocv.Add(wide, noise, &sum)
		dst := gocv.NewMat()
		sum.ConvertTo(&dst, gocv.MatTypeCV8UC3)
		noise.Close()
		wide.Close()
		sum.Close()
		swap(dst)
	}

	if p.hueShift != 0 || p.satShift != 0 || p.valShift != 0 {
		hsv := gocv.NewMat()
		gocv.CvtColor(cur, &hsv, gocv.ColorBGRToHSV)
		channels := gocv.Split(hsv)
		for i, shift := range []float32{p.hueShift, p.satShift, p.valShift} {
			if shift == 0 {
				continue
			}
			shifted := gocv.NewMat()
			channels[i].ConvertToWithParams(&shifted, gocv.MatTypeCV8U, 1, shift)
			channels[i].Close()
			channels[i] = shifted
		}
		gocv.Merge(channels, &hsv)
		for _, c := range channels {
			c.Close()
		}
		dst := gocv.NewMat()
		gocv.CvtColor(hsv, &dst, gocv.ColorHSVToBGR)
		hsv.Close()
		swap(dst)
	}

	if !p.shadow.Empty() {
		roi := cur.Region(p.shadow)
		gocv.AddWeighted(roi, p.shadowGain, roi, 0, 0, &roi)
		roi.Close()
	}

	return cur
}

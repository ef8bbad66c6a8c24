package vision

import (
	"context"
	"fmt"
	"image"
	"os"
	"path"

	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

const (
	ExtractedDir = "extracted"
	ResizedDir   = "resized"
)

type SamplerConfig struct {
	Stride int  `yaml:"stride"`
	Rotate bool `yaml:"rotate"`
	Width  int  `yaml:"width"`
	Height int  `yaml:"height"`
}

func DefaultSamplerConfig() SamplerConfig {
	return SamplerConfig{
		Stride: 60,
		Rotate: true,
		Width:  640,
		Height: 640,
	}
}

// Sampler reads every Stride-th frame of a video, optionally rotated 90
// degrees clockwise and resized, and keeps a copy of each stage on disk.
type Sampler struct {
	conf   SamplerConfig
	logger *logrus.Entry
}

func NewSampler(conf SamplerConfig, logger *logrus.Entry) *Sampler {
	if conf.Stride <= 0 {
		conf.Stride = 1
	}
	return &Sampler{conf: conf, logger: logger}
}

// Sample calls fn for each sampled frame in video order and returns how many
// frames were sampled. When workDir is set, every stage of each sampled frame
// is written below it.
func (s *Sampler) Sample(ctx context.Context, videoPath, workDir string, fn func(idx int, frame image.Image) error) (int, error) {
	if workDir != "" {
		for _, d := range []string{ExtractedDir, ResizedDir} {
			if err := os.MkdirAll(path.Join(workDir, d), 0755); err != nil {
				return 0, err
			}
		}
	}

	video, err := gocv.VideoCaptureFile(videoPath)
	if err != nil {
		return 0, fmt.Errorf("failed to open input video: %v", err)
	}
	defer video.Close()

	fps := video.Get(gocv.VideoCaptureFPS)
	width := int(video.Get(gocv.VideoCaptureFrameWidth))
	height := int(video.Get(gocv.VideoCaptureFrameHeight))
	s.logger.Infof("Video properties: %dx%d @ %.2f FPS", width, height, fps)

	frame := gocv.NewMat()
	defer frame.Close()

	sampled := 0
	for fid := 0; ; fid++ {
		if err := ctx.Err(); err != nil {
			return sampled, err
		}
		if ok := video.Read(&frame); !ok {
			break
		}
		if fid%s.conf.Stride != 0 || frame.Empty() {
			continue
		}

		img, err := s.process(frame, workDir, fmt.Sprintf("frame%d.jpg", fid))
		if err != nil {
			s.logger.WithError(err).Warnf("skip frame %d", fid)
			continue
		}
		sampled++
		if err := fn(fid, img); err != nil {
			return sampled, err
		}
	}

	s.logger.Infof("sampled %d frames", sampled)
	return sampled, nil
}

func (s *Sampler) process(frame gocv.Mat, workDir, name string) (image.Image, error) {
	rotated := frame.Clone()
	defer rotated.Close()
	if s.conf.Rotate {
		gocv.Rotate(frame, &rotated, gocv.Rotate90Clockwise)
	}
	if workDir != "" {
		gocv.IMWrite(path.Join(workDir, ExtractedDir, name), rotated)
	}

	if s.conf.Width <= 0 || s.conf.Height <= 0 {
		return fromMat(rotated)
	}
	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(rotated, &resized, image.Pt(s.conf.Width, s.conf.Height), 0, 0, gocv.InterpolationLinear)
	if workDir != "" {
		gocv.IMWrite(path.Join(workDir, ResizedDir, name), resized)
	}
	return fromMat(resized)
}

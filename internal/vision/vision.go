// Package vision provides the OpenCV and Triton backed implementations of
// the face capabilities, along with frame decoding and video sampling.
package vision

import (
	"context"
	"fmt"
	"time"

	"github.com/Trendyol/go-triton-client/base"
	"github.com/sirupsen/logrus"

	"facewatch/internal/face"
)

const (
	DetectorTriton  = "triton"
	DetectorCascade = "cascade"
)

type Config struct {
	Detector    string       `yaml:"detector"`
	CascadeFile string       `yaml:"cascadeFile"`
	Triton      TritonConfig `yaml:"triton"`
}

func DefaultConfig() Config {
	return Config{
		Detector:    DetectorTriton,
		CascadeFile: "haarcascade_frontalface_default.xml",
		Triton:      DefaultTritonConfig(),
	}
}

// Backends owns the model clients behind a face.Capabilities.
type Backends struct {
	face.Capabilities
	triton  base.Client
	cascade *CascadeDetector
}

// Load connects to Triton, checks the configured models are ready and builds
// the capability set. The classifier is only built when a label file is
// configured.
func Load(ctx context.Context, conf Config, logger *logrus.Entry) (*Backends, error) {
	cli, err := NewTritonClient(conf.Triton.ServerAddr)
	if err != nil {
		return nil, fmt.Errorf("create triton client: %w", err)
	}

	models := []string{conf.Triton.EmbedModel}
	if conf.Detector == DetectorTriton {
		models = append(models, conf.Triton.DetectModel)
	}
	if conf.Triton.LabelsPath != "" {
		models = append(models, conf.Triton.ClassifyModel)
	}
	checkCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := CheckReady(checkCtx, cli, models...); err != nil {
		return nil, err
	}

	b := &Backends{triton: cli}
	switch conf.Detector {
	case DetectorTriton:
		b.Detector = NewTritonDetector(cli, conf.Triton, logger.WithField("backend", "triton"))
	case DetectorCascade:
		b.cascade, err = NewCascadeDetector(conf.CascadeFile)
		if err != nil {
			return nil, err
		}
		b.Detector = b.cascade
	default:
		return nil, fmt.Errorf("unknown detector %q", conf.Detector)
	}

	b.Embedder = NewTritonEmbedder(cli, conf.Triton)
	b.Augmenter = NewAugmenter(time.Now().UnixNano(), logger.WithField("backend", "augment"))

	if conf.Triton.LabelsPath != "" {
		head, err := LoadHead(conf.Triton.ScalerPath, conf.Triton.LabelsPath)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.Classifier = NewTritonClassifier(cli, conf.Triton, head)
	} else {
		logger.Warn("no classifier labels configured, ml mode disabled")
	}

	logger.Infof("vision backends ready (detector=%s)", conf.Detector)
	return b, nil
}

func (b *Backends) Close() error {
	if b.cascade != nil {
		b.cascade.Close()
	}
	return nil
}

package vision

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/Trendyol/go-triton-client/base"
	tritonGrpc "github.com/Trendyol/go-triton-client/client/grpc"
	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"facewatch/internal/face"
)

type TritonConfig struct {
	ServerAddr string `yaml:"serverAddr"`

	DetectModel   string  `yaml:"detectModel"`
	MinConfidence float32 `yaml:"minConfidence"`

	EmbedModel  string `yaml:"embedModel"`
	EmbedInput  string `yaml:"embedInput"`
	EmbedOutput string `yaml:"embedOutput"`
	EmbedSize   int    `yaml:"embedSize"`

	ClassifyModel  string `yaml:"classifyModel"`
	ClassifyInput  string `yaml:"classifyInput"`
	ClassifyOutput string `yaml:"classifyOutput"`
	ScalerPath     string `yaml:"scalerPath"`
	LabelsPath     string `yaml:"labelsPath"`
}

func DefaultTritonConfig() TritonConfig {
	return TritonConfig{
		ServerAddr:     "localhost:8001",
		DetectModel:    "yolo_face",
		MinConfidence:  0.25,
		EmbedModel:     "facenet",
		EmbedInput:     "input",
		EmbedOutput:    "embedding",
		EmbedSize:      160,
		ClassifyModel:  "student_classifier",
		ClassifyInput:  "input",
		ClassifyOutput: "probabilities",
	}
}

func NewTritonClient(addr string) (base.Client, error) {
	return tritonGrpc.NewClient(
		addr,
		false, // verbose logging
		30,    // connection timeout in seconds
		30,    // network timeout in seconds
		false, // use SSL
		true,  // insecure connection
		nil,   // existing gRPC connection
		nil,   // logger
	)
}

// CheckReady fails unless the server and every named model are ready.
func CheckReady(ctx context.Context, cli base.Client, models ...string) error {
	if isLive, err := cli.IsServerLive(ctx, nil); err != nil {
		return err
	} else if !isLive {
		return errors.New("triton server is not live")
	}

	if isReady, err := cli.IsServerReady(ctx, nil); err != nil {
		return err
	} else if !isReady {
		return errors.New("triton server is not ready")
	}

	for _, m := range models {
		if m == "" {
			continue
		}
		if isReady, err := cli.IsModelReady(ctx, m, "1", nil); err != nil {
			return err
		} else if !isReady {
			return fmt.Errorf("triton model %s is not ready", m)
		}
	}
	return nil
}

func float32Bytes(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// TritonDetector runs a face detection model whose DETECTIONS output has
// shape [N, 6]: x1, y1, x2, y2, confidence, class.
type TritonDetector struct {
	cli           base.Client
	model         string
	minConfidence float32
	logger        *logrus.Entry
}

func NewTritonDetector(cli base.Client, conf TritonConfig, logger *logrus.Entry) *TritonDetector {
	return &TritonDetector{
		cli:           cli,
		model:         conf.DetectModel,
		minConfidence: conf.MinConfidence,
		logger:        logger,
	}
}

func (d *TritonDetector) FindFaces(ctx context.Context, frame image.Image) ([]face.Detection, error) {
	mat, err := toMat(frame)
	if err != nil {
		return nil, err
	}
	defer mat.Close()

	frameInput := tritonGrpc.NewInferInput("FRAME", "BYTES", []int64{int64(mat.Rows()), int64(mat.Cols()), 3}, nil)
	if err := frameInput.SetData(mat.ToBytes(), true); err != nil {
		return nil, fmt.Errorf("failed to set FRAME input data: %v", err)
	}
	frameInput.SetDatatype("UINT8")

	outputs := []base.InferOutput{
		tritonGrpc.NewInferOutput("DETECTIONS", map[string]any{"binary_data": false}),
	}

	response, err := d.cli.Infer(ctx, d.model, "1", []base.InferInput{frameInput}, outputs, nil)
	if err != nil {
		return nil, fmt.Errorf("inference failed: %v", err)
	}
	raw, err := response.AsFloat32Slice("DETECTIONS")
	if err != nil {
		return nil, fmt.Errorf("failed to get detection data: %v", err)
	}

	return cropDetections(frame, parseDetections(raw, d.minConfidence)), nil
}

// parseDetections decodes a flat [N, 6] detection tensor, dropping rows below
// minConfidence.
func parseDetections(raw []float32, minConfidence float32) []face.Detection {
	var dets []face.Detection
	for i := 0; i+5 < len(raw); i += 6 {
		conf := raw[i+4]
		if conf < minConfidence {
			continue
		}
		dets = append(dets, face.Detection{
			Box: face.Box{
				X1: int(math.Round(float64(raw[i]))),
				Y1: int(math.Round(float64(raw[i+1]))),
				X2: int(math.Round(float64(raw[i+2]))),
				Y2: int(math.Round(float64(raw[i+3]))),
			},
			Confidence: conf,
		})
	}
	return dets
}

// cropDetections attaches crops to dets and drops those whose box is empty
// inside the frame.
func cropDetections(frame image.Image, dets []face.Detection) []face.Detection {
	out := dets[:0]
	for _, det := range dets {
		crop, ok := face.Crop(frame, det.Box)
		if !ok {
			continue
		}
		det.Crop = crop
		out = append(out, det)
	}
	return out
}

// TritonEmbedder extracts face embeddings from size x size RGB crops scaled
// to [0, 1].
type TritonEmbedder struct {
	cli    base.Client
	model  string
	input  string
	output string
	size   int
}

func NewTritonEmbedder(cli base.Client, conf TritonConfig) *TritonEmbedder {
	size := conf.EmbedSize
	if size <= 0 {
		size = 160
	}
	return &TritonEmbedder{
		cli:    cli,
		model:  conf.EmbedModel,
		input:  conf.EmbedInput,
		output: conf.EmbedOutput,
		size:   size,
	}
}

func (e *TritonEmbedder) Represent(ctx context.Context, crop image.Image) ([]float32, error) {
	if crop == nil || crop.Bounds().Empty() {
		return nil, face.ErrNoEmbedding
	}
	mat, err := toMat(crop)
	if err != nil {
		return nil, err
	}
	defer mat.Close()

	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(mat, &resized, image.Pt(e.size, e.size), 0, 0, gocv.InterpolationLinear)
	rgb := gocv.NewMat()
	defer rgb.Close()
	gocv.CvtColor(resized, &rgb, gocv.ColorBGRToRGB)

	pixels := rgb.ToBytes()
	tensor := make([]float32, len(pixels))
	for i, p := range pixels {
		tensor[i] = float32(p) / 255
	}

	input := tritonGrpc.NewInferInput(e.input, "BYTES", []int64{1, int64(e.size), int64(e.size), 3}, nil)
	if err := input.SetData(float32Bytes(tensor), true); err != nil {
		return nil, fmt.Errorf("failed to set embedding input data: %v", err)
	}
	input.SetDatatype("FP32")

	outputs := []base.InferOutput{
		tritonGrpc.NewInferOutput(e.output, map[string]any{"binary_data": false}),
	}
	response, err := e.cli.Infer(ctx, e.model, "1", []base.InferInput{input}, outputs, nil)
	if err != nil {
		return nil, fmt.Errorf("embedding inference failed: %v", err)
	}
	emb, err := response.AsFloat32Slice(e.output)
	if err != nil {
		return nil, fmt.Errorf("failed to get embedding data: %v", err)
	}
	if len(emb) == 0 {
		return nil, face.ErrNoEmbedding
	}
	return emb, nil
}

// TritonClassifier standardizes an embedding with the fitted scaler, runs the
// classifier model and maps the arg-max class index to its label.
type TritonClassifier struct {
	cli    base.Client
	model  string
	input  string
	output string
	head   *Head
}

func NewTritonClassifier(cli base.Client, conf TritonConfig, head *Head) *TritonClassifier {
	return &TritonClassifier{
		cli:    cli,
		model:  conf.ClassifyModel,
		input:  conf.ClassifyInput,
		output: conf.ClassifyOutput,
		head:   head,
	}
}

func (c *TritonClassifier) Predict(ctx context.Context, embedding []float32) (string, float64, error) {
	scaled, err := c.head.Scale(embedding)
	if err != nil {
		return "", 0, err
	}

	input := tritonGrpc.NewInferInput(c.input, "BYTES", []int64{1, int64(len(scaled))}, nil)
	if err := input.SetData(float32Bytes(scaled), true); err != nil {
		return "", 0, fmt.Errorf("failed to set classifier input data: %v", err)
	}
	input.SetDatatype("FP32")

	outputs := []base.InferOutput{
		tritonGrpc.NewInferOutput(c.output, map[string]any{"binary_data": false}),
	}
	response, err := c.cli.Infer(ctx, c.model, "1", []base.InferInput{input}, outputs, nil)
	if err != nil {
		return "", 0, fmt.Errorf("classifier inference failed: %v", err)
	}
	probs, err := response.AsFloat32Slice(c.output)
	if err != nil {
		return "", 0, fmt.Errorf("failed to get classifier data: %v", err)
	}
	return c.head.Decode(probs)
}

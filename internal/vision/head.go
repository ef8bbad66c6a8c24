package vision

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// Head holds the feature scaler and label encoding the classifier model was
// trained with.
type Head struct {
	Mean   []float32 `json:"mean"`
	Scale  []float32 `json:"scale"`
	Labels []string  `json:"labels"`
}

func LoadHead(scalerPath, labelsPath string) (*Head, error) {
	h := &Head{}
	if scalerPath != "" {
		data, err := os.ReadFile(scalerPath)
		if err != nil {
			return nil, fmt.Errorf("read scaler: %w", err)
		}
		if err := json.Unmarshal(data, h); err != nil {
			return nil, fmt.Errorf("unmarshal scaler: %w", err)
		}
	}
	data, err := os.ReadFile(labelsPath)
	if err != nil {
		return nil, fmt.Errorf("read labels: %w", err)
	}
	if err := json.Unmarshal(data, &h.Labels); err != nil {
		return nil, fmt.Errorf("unmarshal labels: %w", err)
	}
	if len(h.Labels) == 0 {
		return nil, errors.New("empty label set")
	}
	return h, nil
}

// Scale applies (x - mean) / scale per feature. A head without a scaler
// passes the embedding through.
func (h *Head) Scale(emb []float32) ([]float32, error) {
	if len(h.Mean) == 0 {
		return emb, nil
	}
	if len(emb) != len(h.Mean) || len(h.Scale) != len(h.Mean) {
		return nil, fmt.Errorf("embedding has %d features, scaler expects %d", len(emb), len(h.Mean))
	}
	out := make([]float32, len(emb))
	for i, v := range emb {
		s := h.Scale[i]
		if s == 0 {
			s = 1
		}
		out[i] = (v - h.Mean[i]) / s
	}
	return out, nil
}

// Decode maps a probability vector to the arg-max label and its probability.
func (h *Head) Decode(probs []float32) (string, float64, error) {
	if len(probs) == 0 {
		return "", 0, errors.New("empty classifier output")
	}
	best := 0
	for i, p := range probs {
		if p > probs[best] {
			best = i
		}
	}
	if best >= len(h.Labels) {
		return "", 0, fmt.Errorf("class index %d has no label", best)
	}
	return h.Labels[best], float64(probs[best]), nil
}

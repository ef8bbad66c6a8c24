package event

import (
	"encoding/json"
	"math"
	"time"
)

const (
	TypeSuccess = "success"
	TypeWarning = "warning"
	TypeError   = "error"

	UnknownSubject = "Unknown"
	ReasonNoFace   = "no face"
)

// Metric names the key a score is reported under.
type Metric string

const (
	MetricSimilarity Metric = "score"
	MetricConfidence Metric = "confidence"
)

// Score is an optional numeric score together with the key it is reported
// under. A nil Value is encoded as JSON null.
type Score struct {
	Metric Metric
	Value  *float64
}

func SimilarityScore(v float64) Score {
	r := Round2(v)
	return Score{Metric: MetricSimilarity, Value: &r}
}

func ConfidenceScore(v float64) Score {
	r := Round2(v)
	return Score{Metric: MetricConfidence, Value: &r}
}

func NoScore(m Metric) Score {
	return Score{Metric: m}
}

// Result is the outcome of resolving one track. It is either Success or
// Warning.
type Result interface {
	Type() string
	isResult()
}

type Success struct {
	Subject string
	Score   Score
}

// Warning is a non-identification. An empty Reason means the face was seen but
// could not be matched ("Unknown"); otherwise Reason is a short human-readable
// message such as "no face".
type Warning struct {
	Reason string
	Score  Score
}

func (Success) Type() string { return TypeSuccess }
func (Warning) Type() string { return TypeWarning }
func (Success) isResult()    {}
func (Warning) isResult()    {}

func Unknown(score Score) Warning {
	return Warning{Score: score}
}

func NoFace() Warning {
	return Warning{Reason: ReasonNoFace}
}

// Event is a resolved event. AlertId and CreatedAt are assigned by the alert
// store; everything else is fixed at creation.
type Event struct {
	Result    Result
	Location  *string
	AlertId   int
	CreatedAt time.Time
}

func New(r Result, location string) Event {
	e := Event{Result: r}
	if location != "" {
		e.Location = &location
	}
	return e
}

func (e Event) IsSuccess() bool {
	_, ok := e.Result.(Success)
	return ok
}

func (e Event) Persisted() bool {
	return e.AlertId > 0
}

// Description is the human-readable label stored with an alert: the warning
// message if there is one, otherwise the subject label.
func (e Event) Description() string {
	switch r := e.Result.(type) {
	case Success:
		return r.Subject
	case Warning:
		if r.Reason != "" {
			return r.Reason
		}
		return UnknownSubject
	}
	return ""
}

// Time is CreatedAt formatted for display consumers.
func (e Event) Time() string {
	if e.CreatedAt.IsZero() {
		return ""
	}
	return e.CreatedAt.Format("15:04")
}

func (e Event) MarshalJSON() ([]byte, error) {
	out := map[string]any{
		"location": e.Location,
	}

	var score *Score
	switch r := e.Result.(type) {
	case Success:
		out["type"] = TypeSuccess
		out["student"] = r.Subject
		score = &r.Score
	case Warning:
		out["type"] = TypeWarning
		if r.Reason != "" {
			out["message"] = r.Reason
		} else {
			out["student"] = UnknownSubject
		}
		score = &r.Score
	}
	if score != nil && score.Metric != "" {
		out[string(score.Metric)] = score.Value
	}

	if e.AlertId > 0 {
		out["id"] = e.AlertId
		out["time"] = e.Time()
	}
	return json.Marshal(out)
}

// Ack is a generic reply to a client, carrying no internal detail.
type Ack struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func ErrorAck() Ack {
	return Ack{Type: TypeError, Message: "processing error"}
}

func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

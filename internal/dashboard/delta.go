package dashboard

import (
	"time"

	"facewatch/internal/event"
	"facewatch/internal/model"
)

const DateLayout = "2006-01-02"

// Delta is an increment to the counters of one UTC day.
type Delta struct {
	Date               string `json:"date" binding:"required,datetime=2006-01-02"`
	TotalFacesDetected int64  `json:"total_faces_detected" binding:"min=0"`
	RecognizedFaces    int64  `json:"recognized_faces" binding:"min=0"`
	UnrecognizedFaces  int64  `json:"unrecognized_faces" binding:"min=0"`
	TotalLoginAttempts int64  `json:"total_login_attempts" binding:"min=0"`
}

// ForResult is the delta emitted for one processed event: one face, counted
// as recognized on success and unrecognized otherwise.
func ForResult(r event.Result, now time.Time) Delta {
	d := Delta{
		Date:               now.UTC().Format(DateLayout),
		TotalFacesDetected: 1,
	}
	if _, ok := r.(event.Success); ok {
		d.RecognizedFaces = 1
	} else {
		d.UnrecognizedFaces = 1
	}
	return d
}

func (d Delta) Empty() bool {
	return d.TotalFacesDetected == 0 && d.RecognizedFaces == 0 &&
		d.UnrecognizedFaces == 0 && d.TotalLoginAttempts == 0
}

func (d Delta) toModel() *model.DashboardStat {
	return &model.DashboardStat{
		Date:               d.Date,
		TotalFacesDetected: d.TotalFacesDetected,
		RecognizedFaces:    d.RecognizedFaces,
		UnrecognizedFaces:  d.UnrecognizedFaces,
		TotalLoginAttempts: d.TotalLoginAttempts,
	}
}

// Outcome is the best-effort result of a report. Callers may log it but
// never propagate it.
type Outcome struct {
	Delivered bool
	Err       error
}

func Delivered() Outcome {
	return Outcome{Delivered: true}
}

func Failed(err error) Outcome {
	return Outcome{Err: err}
}

package dao

import "facewatch/internal/model"

type DashboardStatSpec struct {
	Date               string `json:"date"`
	TotalFacesDetected int64  `json:"total_faces_detected"`
	RecognizedFaces    int64  `json:"recognized_faces"`
	UnrecognizedFaces  int64  `json:"unrecognized_faces"`
	TotalLoginAttempts int64  `json:"total_login_attempts"`
}

func FromDashboardStat(s *model.DashboardStat) DashboardStatSpec {
	return DashboardStatSpec{
		Date:               s.Date,
		TotalFacesDetected: s.TotalFacesDetected,
		RecognizedFaces:    s.RecognizedFaces,
		UnrecognizedFaces:  s.UnrecognizedFaces,
		TotalLoginAttempts: s.TotalLoginAttempts,
	}
}

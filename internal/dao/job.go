package dao

import (
	"time"

	"facewatch/internal/jobs"
)

type UploadResponse struct {
	Status string `json:"status"`
	JobId  string `json:"job_id"`
}

type JobSpec struct {
	JobId      string `json:"job_id"`
	Status     string `json:"status"`
	Mode       string `json:"mode"`
	Frames     int    `json:"frames"`
	Tracks     int    `json:"tracks"`
	Events     int    `json:"events"`
	Error      string `json:"error,omitempty"`
	CreateTime string `json:"createTime"`
	UpdateTime string `json:"updateTime"`
}

func FromJob(j *jobs.Job) JobSpec {
	return JobSpec{
		JobId:      j.Id,
		Status:     string(j.Status),
		Mode:       j.Mode,
		Frames:     j.Frames,
		Tracks:     j.Tracks,
		Events:     j.Events,
		Error:      j.Error,
		CreateTime: j.CreateTime.Format(time.RFC3339),
		UpdateTime: j.UpdateTime.Format(time.RFC3339),
	}
}

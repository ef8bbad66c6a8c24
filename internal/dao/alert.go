package dao

import (
	"time"

	"facewatch/internal/model"
)

type AlertSpec struct {
	Id          int    `json:"id"`
	AlertType   string `json:"alert_type"`
	Description string `json:"description"`
	Location    string `json:"location"`
	IsActive    bool   `json:"is_active"`
	Timestamp   string `json:"timestamp"`
	Time        string `json:"time"`
}

func FromAlertModel(a *model.SecurityAlert) AlertSpec {
	return AlertSpec{
		Id:          a.Id,
		AlertType:   a.AlertType,
		Description: a.Description,
		Location:    a.Location,
		IsActive:    a.IsActive,
		Timestamp:   a.Timestamp.Format(time.RFC3339),
		Time:        a.Timestamp.Format("15:04"),
	}
}

type ListAlertsRequest struct {
	Start int `form:"start" binding:"min=0"`
	Limit int `form:"limit" binding:"min=0,max=100"`
}

type ListAlertsResponse struct {
	Items []AlertSpec `json:"items"`
	Total int64       `json:"total"`
}

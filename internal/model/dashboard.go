package model

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DashboardStat holds the accumulated counters for one day.
type DashboardStat struct {
	Id                 int       `json:"id" gorm:"primaryKey"`
	Date               string    `json:"date" gorm:"type:char(10);uniqueIndex"`
	TotalFacesDetected int64     `json:"total_faces_detected" gorm:"default:0"`
	RecognizedFaces    int64     `json:"recognized_faces" gorm:"default:0"`
	UnrecognizedFaces  int64     `json:"unrecognized_faces" gorm:"default:0"`
	TotalLoginAttempts int64     `json:"total_login_attempts" gorm:"default:0"`
	UpdateTime         time.Time `json:"update_time" gorm:"autoCreateTime;autoUpdateTime"`
}

func (DashboardStat) TableName() string {
	return "dashboard_stats"
}

// IncrDashboardStat adds the counters of delta to the row for delta.Date,
// creating it if needed.
func IncrDashboardStat(db *gorm.DB, delta *DashboardStat) error {
	return db.Transaction(func(tx *gorm.DB) error {
		row := &DashboardStat{Date: delta.Date}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(row).Error; err != nil {
			return err
		}
		return tx.Model(&DashboardStat{}).Where("date = ?", delta.Date).Updates(map[string]any{
			"total_faces_detected": gorm.Expr("total_faces_detected + ?", delta.TotalFacesDetected),
			"recognized_faces":     gorm.Expr("recognized_faces + ?", delta.RecognizedFaces),
			"unrecognized_faces":   gorm.Expr("unrecognized_faces + ?", delta.UnrecognizedFaces),
			"total_login_attempts": gorm.Expr("total_login_attempts + ?", delta.TotalLoginAttempts),
		}).Error
	})
}

func GetDashboardStat(db *gorm.DB, date string) (*DashboardStat, error) {
	var s DashboardStat
	if err := db.Where("date = ?", date).First(&s).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

package model

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

// SecurityAlert is the durable form of a resolved event. The pipeline only
// inserts rows; IsActive is cleared when an operator dismisses the alert.
type SecurityAlert struct {
	Id          int       `json:"id" gorm:"primaryKey"`
	AlertType   string    `json:"alert_type" gorm:"type:varchar(32);NOT NULL"`
	Description string    `json:"description" gorm:"type:varchar(255);NOT NULL"`
	Location    string    `json:"location" gorm:"type:varchar(255);NOT NULL;default:''"`
	IsActive    bool      `json:"is_active" gorm:"NOT NULL;default:true;index"`
	Timestamp   time.Time `json:"timestamp" gorm:"NOT NULL;autoCreateTime;index"`
}

func (SecurityAlert) TableName() string {
	return "security_alerts"
}

func AddAlert(db *gorm.DB, a *SecurityAlert) error {
	return db.Create(a).Error
}

func GetAlert(db *gorm.DB, id int) (*SecurityAlert, error) {
	var a SecurityAlert
	if err := db.Where("id = ?", id).First(&a).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}

// ListActiveAlerts returns active alerts, newest first.
func ListActiveAlerts(db *gorm.DB, start, limit int) ([]SecurityAlert, int64, error) {
	var alerts []SecurityAlert
	var total int64
	base := db.Model(&SecurityAlert{}).Where("is_active = ?", true)
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := base.Order("id desc").Offset(start).Limit(limit).Find(&alerts).Error; err != nil {
		return nil, 0, err
	}
	return alerts, total, nil
}

func DeactivateAlert(db *gorm.DB, a *SecurityAlert) error {
	a.IsActive = false
	return db.Model(a).Update("is_active", false).Error
}

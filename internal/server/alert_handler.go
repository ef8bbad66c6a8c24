package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"facewatch/internal/alert"
	"facewatch/internal/dao"
)

const alertIdKey = "alert_id"

func SetAlertIdToContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		alertId, err := strconv.Atoi(c.Param("alert_id"))
		if err != nil || alertId <= 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error": "invalid alert_id",
			})
			return
		}
		c.Set(alertIdKey, alertId)
		c.Next()
	}
}

type CreateAlertRequest struct {
	Type     string `json:"type" binding:"required,oneof=success warning error"`
	Message  string `json:"message" binding:"required,max=255"`
	Location string `json:"location" binding:"max=255"`
}

// handleListAlerts 列出告警
// @Summary 列出告警
// @Description 仅返回未解除的告警，按时间倒序
// @Tags alerts
// @Produce json
// @Param start query int false "offset" default(0)
// @Param limit query int false "page size" default(50)
// @Success 200 {object} dao.ListAlertsResponse
// @Router /api/v1/alerts [get]
func (s *Server) handleListAlerts(c *gin.Context) {
	req := &dao.ListAlertsRequest{}
	if err := c.ShouldBindQuery(req); err != nil {
		s.writeError(c, http.StatusBadRequest, err)
		return
	}
	if req.Limit == 0 {
		req.Limit = 50
	}

	alerts, total, err := s.deps.Alerts.ListActive(c.Request.Context(), req.Start, req.Limit)
	if err != nil {
		s.writeInternalError(c, err)
		return
	}

	items := make([]dao.AlertSpec, len(alerts))
	for i := range alerts {
		items[i] = dao.FromAlertModel(&alerts[i])
	}
	c.JSON(http.StatusOK, dao.ListAlertsResponse{
		Items: items,
		Total: total,
	})
}

// handleCreateAlert 创建告警
// @Summary 创建告警
// @Tags alerts
// @Accept json
// @Produce json
// @Param req body CreateAlertRequest true "alert"
// @Success 201 {object} dao.AlertSpec
// @Router /api/v1/alerts [post]
func (s *Server) handleCreateAlert(c *gin.Context) {
	var req CreateAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, http.StatusBadRequest, err)
		return
	}
	a, err := s.deps.Alerts.Create(c.Request.Context(), req.Type, req.Message, req.Location)
	if err != nil {
		s.writeInternalError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dao.FromAlertModel(a))
}

// handleGetAlert returns an active alert. Dismissed alerts are not found.
func (s *Server) handleGetAlert(c *gin.Context) {
	a, err := s.deps.Alerts.Get(c.Request.Context(), c.GetInt(alertIdKey))
	if errors.Is(err, alert.ErrNotFound) || (err == nil && !a.IsActive) {
		s.writeError(c, http.StatusNotFound, alert.ErrNotFound)
		return
	} else if err != nil {
		s.writeInternalError(c, err)
		return
	}
	c.JSON(http.StatusOK, dao.FromAlertModel(a))
}

// handleDismissAlert marks an alert inactive.
func (s *Server) handleDismissAlert(c *gin.Context) {
	a, err := s.deps.Alerts.Dismiss(c.Request.Context(), c.GetInt(alertIdKey))
	if errors.Is(err, alert.ErrNotFound) {
		s.writeError(c, http.StatusNotFound, err)
		return
	} else if err != nil {
		s.writeInternalError(c, err)
		return
	}
	c.JSON(http.StatusOK, dao.FromAlertModel(a))
}

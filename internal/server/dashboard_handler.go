package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"facewatch/internal/dao"
	"facewatch/internal/dashboard"
)

// handleDashboardUpdate accumulates one delta into the day's totals.
// @Summary Add a dashboard delta
// @Tags dashboard
// @Accept json
// @Produce json
// @Param req body dashboard.Delta true "delta"
// @Success 201
// @Router /api/dashboard/update [post]
func (s *Server) handleDashboardUpdate(c *gin.Context) {
	var d dashboard.Delta
	if err := c.ShouldBindJSON(&d); err != nil {
		s.writeError(c, http.StatusBadRequest, err)
		return
	}
	if err := s.deps.Aggregator.Accumulate(c.Request.Context(), d); err != nil {
		s.writeInternalError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Dashboard updated successfully"})
}

// handleGetDashboard returns the totals for a day; "today" means the current
// UTC date.
func (s *Server) handleGetDashboard(c *gin.Context) {
	date := c.Param("date")
	if date == "today" {
		date = time.Now().UTC().Format(dashboard.DateLayout)
	}
	if _, err := time.Parse(dashboard.DateLayout, date); err != nil {
		s.writeError(c, http.StatusBadRequest, errors.New("date must be YYYY-MM-DD"))
		return
	}

	stat, err := s.deps.Aggregator.Get(c.Request.Context(), date)
	if errors.Is(err, dashboard.ErrNotFound) {
		c.JSON(http.StatusOK, dao.DashboardStatSpec{Date: date})
		return
	} else if err != nil {
		s.writeInternalError(c, err)
		return
	}
	c.JSON(http.StatusOK, dao.FromDashboardStat(stat))
}

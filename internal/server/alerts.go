package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/spigell/job-aggregator/internal/alerts"
	"github.com/spigell/job-aggregator/internal/jobs"
)

func requireOwner() gin.HandlerFunc {
	return func(c *gin.Context) {
		owner := strings.TrimSpace(c.GetHeader(ownerHeader))
		if owner == "" {
			errorResponse(c, http.StatusUnauthorized, errors.New(ownerHeader+" header required"))
			return
		}
		c.Set(ownerKey, owner)
		c.Next()
	}
}

func (s *Server) listAlerts(c *gin.Context) {
	list, err := s.alerts.List(c.Request.Context(), c.GetString(ownerKey))
	if err != nil {
		s.alertError(c, err)
		return
	}
	if list == nil {
		list = []alerts.JobAlert{}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "alerts": list})
}

func (s *Server) createAlert(c *gin.Context) {
	var in alerts.Input
	if err := c.ShouldBindJSON(&in); err != nil {
		errorResponse(c, http.StatusBadRequest, err)
		return
	}

	a, err := s.alerts.Create(c.Request.Context(), c.GetString(ownerKey), in)
	if err != nil {
		s.alertError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "alert": a})
}

func (s *Server) updateAlert(c *gin.Context) {
	var in alerts.Input
	if err := c.ShouldBindJSON(&in); err != nil {
		errorResponse(c, http.StatusBadRequest, err)
		return
	}

	a, err := s.alerts.Update(c.Request.Context(), c.GetString(ownerKey), c.Param("id"), in)
	if err != nil {
		s.alertError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "alert": a})
}

func (s *Server) deleteAlert(c *gin.Context) {
	if err := s.alerts.Delete(c.Request.Context(), c.GetString(ownerKey), c.Param("id")); err != nil {
		s.alertError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) alertError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, jobs.ErrInvalidQuery):
		errorResponse(c, http.StatusBadRequest, err)
	case errors.Is(err, alerts.ErrNotFound):
		errorResponse(c, http.StatusNotFound, err)
	case errors.Is(err, alerts.ErrOwnerRequired):
		errorResponse(c, http.StatusUnauthorized, err)
	default:
		s.logger.Error("alert operation failed", zap.String("owner", c.GetString(ownerKey)), zap.Error(err))
		errorResponse(c, http.StatusInternalServerError, err)
	}
}

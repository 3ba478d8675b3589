// Package api exposes the human-facing control surface over HTTP: wave
// approval decisions and critical-failure triage.
package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mansaraysaheedalpha/neuralaunch-sub005/internal/models"
	"github.com/mansaraysaheedalpha/neuralaunch-sub005/internal/scheduler"
)

// WaveApprover is the scheduler surface the API calls for sign-off.
type WaveApprover interface {
	ApproveWave(ctx context.Context, projectID string, waveNumber int, req scheduler.ApprovalRequest) (*scheduler.ApprovalResult, error)
}

// FailureStore is the store surface for failure triage.
type FailureStore interface {
	ListCriticalFailures(ctx context.Context, status models.FailureStatus) ([]*models.CriticalFailure, error)
	GetCriticalFailure(ctx context.Context, id string) (*models.CriticalFailure, error)
	ResolveCriticalFailure(ctx context.Context, id string, to models.FailureStatus, resolution string) error
}

// Logger is the logging surface the API needs.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
}

// Handlers holds the API's dependencies.
type Handlers struct {
	approver WaveApprover
	failures FailureStore
	logger   Logger
}

// NewHandlers creates the handler set. logger may be nil.
func NewHandlers(approver WaveApprover, failures FailureStore, logger Logger) *Handlers {
	return &Handlers{approver: approver, failures: failures, logger: logger}
}

// NewRouter builds the engine with all routes registered.
func NewRouter(h *Handlers) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	v1 := r.Group("/v1")
	{
		v1.POST("/waves/:number/approval", h.HandleWaveApproval)
		v1.GET("/failures", h.HandleListFailures)
		v1.GET("/failures/:id", h.HandleGetFailure)
		v1.POST("/failures/:id/resolve", h.HandleResolveFailure)
		v1.GET("/health", h.HandleHealth)
	}
	return r
}

// waveApprovalBody is the sign-off request payload.
type waveApprovalBody struct {
	ProjectID          string `json:"projectId" binding:"required"`
	Approve            bool   `json:"approve"`
	MergeArtifact      bool   `json:"mergeArtifact"`
	ContinueToNextWave bool   `json:"continueToNextWave"`
}

// HandleWaveApproval applies a human approval decision to an active wave.
func (h *Handlers) HandleWaveApproval(c *gin.Context) {
	waveNumber, err := strconv.Atoi(c.Param("number"))
	if err != nil || waveNumber < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid wave number"})
		return
	}

	var body waveApprovalBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.approver.ApproveWave(c.Request.Context(), body.ProjectID, waveNumber, scheduler.ApprovalRequest{
		Approve:            body.Approve,
		MergeArtifact:      body.MergeArtifact,
		ContinueToNextWave: body.ContinueToNextWave,
	})
	if err != nil {
		h.warnf("wave %d approval failed: %v", waveNumber, err)
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}

	h.infof("wave %d approval applied: approve=%t", waveNumber, body.Approve)
	c.JSON(http.StatusOK, result)
}

// HandleListFailures lists critical failures, optionally filtered by status.
func (h *Handlers) HandleListFailures(c *gin.Context) {
	status := models.FailureStatus(c.Query("status"))
	switch status {
	case "", models.FailureOpen, models.FailureInReview, models.FailureResolved, models.FailureDismissed:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status filter"})
		return
	}

	failures, err := h.failures.ListCriticalFailures(c.Request.Context(), status)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if failures == nil {
		failures = []*models.CriticalFailure{}
	}
	c.JSON(http.StatusOK, gin.H{"failures": failures})
}

// HandleGetFailure returns one critical failure with its attempt history.
func (h *Handlers) HandleGetFailure(c *gin.Context) {
	cf, err := h.failures.GetCriticalFailure(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, cf)
}

// resolveBody is the manual-resolution payload.
type resolveBody struct {
	Status     models.FailureStatus `json:"status" binding:"required"`
	Resolution string               `json:"resolution"`
}

// HandleResolveFailure moves a failure out of its open state.
func (h *Handlers) HandleResolveFailure(c *gin.Context) {
	var body resolveBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id := c.Param("id")
	if err := h.failures.ResolveCriticalFailure(c.Request.Context(), id, body.Status, body.Resolution); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}

	h.infof("failure %s resolved to %s", id, body.Status)
	cf, err := h.failures.GetCriticalFailure(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, cf)
}

// HandleHealth reports liveness.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handlers) infof(format string, args ...interface{}) {
	if h.logger != nil {
		h.logger.Infof(format, args...)
	}
}

func (h *Handlers) warnf(format string, args ...interface{}) {
	if h.logger != nil {
		h.logger.Warnf(format, args...)
	}
}

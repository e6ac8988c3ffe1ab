package server

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/groupcart/payproof/internal/batch"
	"github.com/groupcart/payproof/internal/common"
	"github.com/groupcart/payproof/internal/core"
	"github.com/groupcart/payproof/internal/export"
	"github.com/groupcart/payproof/internal/repository"
)

// Server wires the engine's entrypoints to HTTP. Callers only ever see the
// five verification statuses and human-readable reasons; adapter and
// persistence details stay behind the boundary.
type Server struct {
	logger *slog.Logger
	proc   *core.Processor
	runner *batch.Runner
	export *export.Service
	pool   *pgxpool.Pool
}

func New(proc *core.Processor, runner *batch.Runner, exportSvc *export.Service, pool *pgxpool.Pool, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{logger: logger, proc: proc, runner: runner, export: exportSvc, pool: pool}
}

func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", s.healthz)

	v1 := r.Group("/api/v1")
	{
		v1.POST("/proofs/:id/process", s.processProof)
		v1.POST("/proofs/:id/review", s.reviewDecision)
		v1.POST("/sweeps/auto-verify", s.runAutoVerifySweep)
		v1.POST("/sweeps/flag", s.runFlagSweep)
		v1.GET("/ledger/export", s.exportLedger)
	}
	return r
}

func (s *Server) healthz(c *gin.Context) {
	if err := repository.HealthCheck(c.Request.Context(), s.pool, 3*time.Second, s.logger); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "down"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type processRequest struct {
	ImageRef    string `json:"image_ref,omitempty"`
	ContextHint string `json:"context_hint,omitempty"`
}

func (s *Server) processProof(c *gin.Context) {
	proofID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid proof id"})
		return
	}
	var req processRequest
	if c.Request.Body != nil && c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
	}

	res, err := s.proc.ProcessProof(c.Request.Context(), proofID, req.ImageRef, req.ContextHint)
	if err != nil {
		s.fail(c, err, "process proof failed")
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) reviewDecision(c *gin.Context) {
	proofID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid proof id"})
		return
	}
	var req core.ReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	res, err := s.proc.ReviewDecision(c.Request.Context(), proofID, req)
	if err != nil {
		s.fail(c, err, "review decision failed")
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) runAutoVerifySweep(c *gin.Context) {
	job, err := s.runner.RunAutoVerifySweep(c.Request.Context())
	if err != nil {
		s.fail(c, err, "auto-verify sweep failed")
		return
	}
	c.JSON(http.StatusOK, job)
}

func (s *Server) runFlagSweep(c *gin.Context) {
	job, err := s.runner.RunFlagSweep(c.Request.Context())
	if err != nil {
		s.fail(c, err, "flag sweep failed")
		return
	}
	c.JSON(http.StatusOK, job)
}

func (s *Server) exportLedger(c *gin.Context) {
	parseDate := func(name string) (*time.Time, bool) {
		v := c.Query(name)
		if v == "" {
			return nil, true
		}
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return nil, false
		}
		return &t, true
	}
	from, ok := parseDate("from")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid from date, use YYYY-MM-DD"})
		return
	}
	to, ok := parseDate("to")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid to date, use YYYY-MM-DD"})
		return
	}

	data, err := s.export.ExportLedgerXLSX(c.Request.Context(), from, to)
	if err != nil {
		s.fail(c, err, "ledger export failed")
		return
	}
	c.Header("Content-Disposition", `attachment; filename="verification-log.xlsx"`)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}

// fail maps internal errors to HTTP statuses without leaking detail.
func (s *Server) fail(c *gin.Context, err error, msg string) {
	s.logger.Warn(msg, "error", err)
	switch {
	case errors.Is(err, common.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, common.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "conflicting state"})
	case errors.Is(err, common.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

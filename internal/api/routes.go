// Package api is the thin REST/WebSocket shell around the role-mining
// engine: it accepts a contract address, runs the pipeline in the
// background, and streams stage-progress events while exposing the
// resulting roles and policies over HTTP.
//
// Grounded on the teacher's gin router setup (deleted routes.go) for
// the middleware chain shape (CORS -> rate limit -> auth) and on
// internal/heuristics/investigation.go's manager pattern for
// in-memory run tracking.
package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/spcon-go/rolemine/internal/abi"
	"github.com/spcon-go/rolemine/internal/crawler"
	"github.com/spcon-go/rolemine/internal/rolemine"
	"github.com/spcon-go/rolemine/internal/store"
	"github.com/spcon-go/rolemine/internal/workspace"
	"github.com/spcon-go/rolemine/pkg/models"
)

// Server holds the shared dependencies every handler needs.
type Server struct {
	cfg        rolemine.Config
	workspaceDir string
	bitquery   *crawler.Client
	store      *store.PostgresStore // nil when persistence is disabled
	hub        *Hub

	mu   sync.RWMutex
	runs map[string]*models.MiningRun
}

// NewServer builds a Server. store may be nil to run without persistence.
func NewServer(cfg rolemine.Config, workspaceDir string, bitquery *crawler.Client, st *store.PostgresStore) *Server {
	return &Server{
		cfg:          cfg,
		workspaceDir: workspaceDir,
		bitquery:     bitquery,
		store:        st,
		hub:          NewHub(),
		runs:         make(map[string]*models.MiningRun),
	}
}

// Router builds the gin engine with the full middleware chain and route
// table wired in.
func (s *Server) Router() *gin.Engine {
	r := gin.Default()
	r.Use(corsMiddleware())

	limiter := NewRateLimiter(30, 10)

	go s.hub.Run()

	r.GET("/ws", s.hub.Subscribe)

	protected := r.Group("/runs")
	protected.Use(limiter.Middleware(), AuthMiddleware())
	protected.POST("", s.handleCreateRun)
	protected.GET("/:id", s.handleGetRun)
	protected.GET("/:id/policies", s.handleGetPolicies)

	r.GET("/runs", s.handleListRuns) // read-only listing stays public

	return r
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

type createRunRequest struct {
	Address string `json:"address" binding:"required"`
	Date    string `json:"date"`
}

func (s *Server) handleCreateRun(c *gin.Context) {
	var req createRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	run := &models.MiningRun{
		ID:        uuid.NewString(),
		Address:   req.Address,
		Status:    "pending",
		StartedAt: time.Now(),
	}
	s.mu.Lock()
	s.runs[run.ID] = run
	s.mu.Unlock()

	go s.execute(run.ID, req.Address, req.Date)

	c.JSON(http.StatusAccepted, run)
}

func (s *Server) execute(runID, address, date string) {
	ctx := context.Background()
	s.hub.BroadcastProgress(ProgressEvent{RunID: runID, Stage: StageLoading})

	ws, err := workspace.For(s.workspaceDir, address)
	if err != nil {
		s.fail(runID, err)
		return
	}

	var doc models.CallHistoryDocument
	if s.bitquery != nil {
		result, err := s.bitquery.FetchHistory(ctx, address, date)
		if err != nil {
			s.fail(runID, err)
			return
		}
		doc = result.AllTxs
		_ = ws.WriteAllTxs(doc)
	} else {
		doc, err = ws.ReadAllTxs()
		if err != nil {
			s.fail(runID, err)
			return
		}
	}

	var resolver *abi.Resolver
	if abiBytes, err := ws.FindABI(); err == nil {
		resolver, _ = abi.Parse(abiBytes)
	}
	var resolve rolemine.SelectorResolver
	if resolver != nil {
		resolve = resolver.Resolve
	}

	records := rolemine.RecordsFromDocument(doc, resolve)
	history := rolemine.NewStaticHistorySource(records)
	rwSource := rolemine.NewStaticRWSummarySource(models.RWSummary{})

	s.hub.BroadcastProgress(ProgressEvent{RunID: runID, Stage: StageLattice})
	run, err := rolemine.Run(ctx, address, history, rwSource, s.cfg)
	if err != nil {
		s.fail(runID, err)
		return
	}
	run.ID = runID

	s.mu.Lock()
	s.runs[runID] = run
	s.mu.Unlock()

	_ = ws.WriteManifest(models.ResultManifest{
		Address:     address,
		GeneratedAt: time.Now(),
		Roles:       run.Roles,
		Policies:    run.Policies,
		Warnings:    run.Warnings,
	})

	if s.store != nil {
		_ = s.store.SaveMiningRun(ctx, run)
	}

	s.hub.BroadcastProgress(ProgressEvent{RunID: runID, Stage: StageDone})
}

func (s *Server) fail(runID string, err error) {
	s.mu.Lock()
	if run, ok := s.runs[runID]; ok {
		run.Status = "failed"
		run.Error = err.Error()
		run.FinishedAt = time.Now()
	}
	s.mu.Unlock()
	s.hub.BroadcastProgress(ProgressEvent{RunID: runID, Stage: StageFailed, Note: err.Error()})
}

func (s *Server) handleGetRun(c *gin.Context) {
	id := c.Param("id")
	s.mu.RLock()
	run, ok := s.runs[id]
	s.mu.RUnlock()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return
	}
	c.JSON(http.StatusOK, run)
}

func (s *Server) handleGetPolicies(c *gin.Context) {
	id := c.Param("id")
	s.mu.RLock()
	run, ok := s.runs[id]
	s.mu.RUnlock()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return
	}
	c.JSON(http.StatusOK, run.Policies)
}

func (s *Server) handleListRuns(c *gin.Context) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.MiningRun, 0, len(s.runs))
	for _, r := range s.runs {
		out = append(out, r)
	}
	c.JSON(http.StatusOK, out)
}

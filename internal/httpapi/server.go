// Package httpapi exposes the control plane over HTTP/JSON. It maps
// requests to GridController operations and control-plane errors to status
// codes; it holds no state of its own beyond the read-only toggle.
package httpapi

import (
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/gridsentry/gridchaos/internal/chaos"
	"github.com/gridsentry/gridchaos/internal/controller"
	"github.com/gridsentry/gridchaos/internal/logging"
	"github.com/gridsentry/gridchaos/internal/telemetry"
	"github.com/gridsentry/gridchaos/powergrid"
)

// Server wires the controller, scenario library, and telemetry sink behind
// the HTTP surface.
type Server struct {
	ctrl     *controller.GridController
	sink     telemetry.Sink
	bands    powergrid.HealthBands
	readOnly bool
	log      logging.Logger
}

// NewServer builds a Server. A nil sink disables telemetry forwarding.
func NewServer(ctrl *controller.GridController, sink telemetry.Sink, bands powergrid.HealthBands, readOnly bool, log logging.Logger) *Server {
	if sink == nil {
		sink = telemetry.Noop{}
	}
	if log == nil {
		log = logging.Noop()
	}
	return &Server{
		ctrl:     ctrl,
		sink:     sink,
		bands:    bands,
		readOnly: readOnly,
		log:      log,
	}
}

// Router assembles the gin engine. Extra middleware (metrics, tracing) runs
// before the API handlers.
func (s *Server) Router(extra ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestID())
	for _, mw := range extra {
		if mw != nil {
			r.Use(mw)
		}
	}

	r.GET("/", s.home)
	r.GET("/status", s.getStatus)
	r.GET("/scenarios", s.listScenarios)

	write := r.Group("/", s.readOnlyGuard())
	{
		write.POST("/experiment/begin", s.beginExperiment)
		write.POST("/experiment/end", s.endExperiment)
		write.POST("/inject/scenario/:key", s.injectScenario)
		write.POST("/inject/line_trip/:id", s.tripLine)
		write.POST("/inject/load_spike/:multiplier", s.loadSpike)
		write.POST("/reset", s.reset)
	}

	return r
}

func (s *Server) home(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "GridChaos control plane is online",
	})
}

type scenarioInfo struct {
	Key         string `json:"key"`
	DisplayName string `json:"display_name"`
	Target      string `json:"target"`
	Reversible  bool   `json:"reversible"`
}

func (s *Server) listScenarios(c *gin.Context) {
	specs := chaos.Scenarios()
	out := make([]scenarioInfo, 0, len(specs))
	for _, spec := range specs {
		out = append(out, scenarioInfo{
			Key:         spec.Key,
			DisplayName: spec.DisplayName,
			Target:      string(spec.Target),
			Reversible:  spec.Reversible,
		})
	}
	c.JSON(http.StatusOK, gin.H{"scenarios": out})
}

// statusResponse is the payload of GET /status. Solve failures and guardrail
// outcomes live inside the payload, never as transport errors.
type statusResponse struct {
	Status               string                      `json:"status"`
	Converged            bool                        `json:"converged"`
	MinVoltagePu         float64                     `json:"min_voltage_pu"`
	TotalLoadMw          float64                     `json:"total_load_mw"`
	GenerationMw         float64                     `json:"generation_mw"`
	SolveTimeMs          float64                     `json:"solve_time_ms"`
	Message              string                      `json:"message,omitempty"`
	EstimatedLoadLossPct *float64                    `json:"estimated_load_loss_pct,omitempty"`
	BlastRadiusTriggered bool                        `json:"blast_radius_triggered"`
	BlastRadiusReason    string                      `json:"blast_radius_reason,omitempty"`
	ContainmentAction    string                      `json:"containment_action,omitempty"`
	ExperimentStatus     controller.ExperimentStatus `json:"experiment_status"`
	ExperimentPhase      controller.Phase            `json:"experiment_phase"`
	Context              controller.Context          `json:"context"`
}

func (s *Server) getStatus(c *gin.Context) {
	rep := s.ctrl.Status(c.Request.Context())

	health := s.bands.Classify(powergrid.Snapshot{
		Converged:    rep.Converged,
		MinVoltagePu: rep.MinVoltagePu,
	})

	resp := statusResponse{
		Status:               string(health),
		Converged:            rep.Converged,
		MinVoltagePu:         round4(rep.MinVoltagePu),
		TotalLoadMw:          rep.TotalLoadMw,
		GenerationMw:         rep.GenerationMw,
		SolveTimeMs:          rep.SolveTimeMs,
		Message:              rep.Error,
		EstimatedLoadLossPct: rep.EstimatedLoadLossPct,
		BlastRadiusTriggered: rep.BlastRadiusTriggered,
		BlastRadiusReason:    rep.BlastRadiusReason,
		ContainmentAction:    rep.ContainmentAction,
		ExperimentStatus:     rep.ExperimentStatus,
		ExperimentPhase:      rep.ExperimentPhase,
		Context:              rep.Context,
	}

	// Forward after the controller released its lock; the sink must never
	// hold up or fail the status read.
	s.sink.RecordGridState(c.Request.Context(), telemetry.Observation{
		Status:       string(health),
		Converged:    rep.Converged,
		MinVoltagePu: rep.MinVoltagePu,
		TotalLoadMw:  rep.TotalLoadMw,
		GenerationMw: rep.GenerationMw,
		Context:      rep.Context,
	})

	c.JSON(http.StatusOK, resp)
}

type beginExperimentRequest struct {
	Scenario       string  `json:"scenario"`
	ExecutionMode  string  `json:"execution_mode"`
	MaxLoadLossPct float64 `json:"max_load_loss_pct"`
	Notes          string  `json:"notes"`
}

func (s *Server) beginExperiment(c *gin.Context) {
	var req beginExperimentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	if _, err := chaos.Lookup(req.Scenario); err != nil {
		writeError(c, err)
		return
	}

	mode := controller.ExecutionMode(req.ExecutionMode)
	if req.ExecutionMode == "" {
		mode = controller.ModeSandbox
	}

	exp, err := s.ctrl.BeginExperiment(c.Request.Context(), controller.BeginParams{
		Scenario:       req.Scenario,
		Notes:          req.Notes,
		Mode:           mode,
		MaxLoadLossPct: req.MaxLoadLossPct,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, exp)
}

func (s *Server) endExperiment(c *gin.Context) {
	s.ctrl.EndExperiment(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"message": "experiment ended"})
}

func (s *Server) injectScenario(c *gin.Context) {
	key := c.Param("key")
	spec, err := chaos.Lookup(key)
	if err != nil {
		writeError(c, err)
		return
	}

	ctx := c.Request.Context()
	s.ctrl.SetPhase(ctx, controller.PhaseChaos)
	if err := s.ctrl.Mutate(ctx, controller.SourceScenario, spec.Apply); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":  spec.DisplayName + " injected",
		"scenario": spec.Key,
		"target":   string(spec.Target),
	})
}

func (s *Server) tripLine(c *gin.Context) {
	lineID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "line id must be an integer"})
		return
	}

	if err := s.ctrl.Mutate(c.Request.Context(), controller.SourceManual, func(g *powergrid.Grid) error {
		return chaos.TripLine(g, lineID)
	}); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "line " + c.Param("id") + " has been tripped"})
}

func (s *Server) loadSpike(c *gin.Context) {
	mult, err := strconv.ParseFloat(c.Param("multiplier"), 64)
	if err != nil || mult <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "multiplier must be a positive number"})
		return
	}

	if err := s.ctrl.Mutate(c.Request.Context(), controller.SourceManual, func(g *powergrid.Grid) error {
		return chaos.LoadSpike(g, mult)
	}); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "load spiked by factor of " + c.Param("multiplier")})
}

func (s *Server) reset(c *gin.Context) {
	s.ctrl.Reset(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"message": "grid state has been reset to baseline"})
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package server

import (
	"net/http"
	"time"

	"github.com/db47h/hazsim"
	"github.com/db47h/hazsim/detect"
	"github.com/db47h/hazsim/store"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

// statusCode maps err to an HTTP status code.
//
func statusCode(err error) int {
	var (
		pe *hazsim.ParseError
		ve *hazsim.ValidationError
		ce *hazsim.CycleError
		ee *hazsim.EvaluationError
	)
	switch {
	case errors.As(err, &pe), errors.As(err, &ve), errors.As(err, &ce), errors.As(err, &ee):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func (s *Server) fail(c *gin.Context, err error) {
	code := statusCode(err)
	msg := err.Error()
	if code == http.StatusInternalServerError {
		s.log.ErrorContext(c.Request.Context(), "request failed", "path", c.FullPath(), "error", err)
		msg = "internal server error"
	} else {
		s.log.DebugContext(c.Request.Context(), "request rejected", "path", c.FullPath(), "error", err)
	}
	c.AbortWithStatusJSON(code, gin.H{"status": statusError, "message": msg})
}

func badRequest(msg string) error {
	return errors.WithStack(&hazsim.ValidationError{Msg: msg})
}

func (s *Server) handleIndex(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  statusSuccess,
		"message": "hazsim API service is running",
		"version": Version,
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type circuitSummary struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Expression string    `json:"expression,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type circuitView struct {
	circuitSummary
	Gates       []hazsim.GateDesc       `json:"gates"`
	Inputs      hazsim.InputList        `json:"inputs"`
	Outputs     hazsim.OutputList       `json:"outputs"`
	Connections []hazsim.ConnectionDesc `json:"connections"`
}

func summary(c *store.Circuit) circuitSummary {
	return circuitSummary{ID: c.ID, Name: c.Name, Expression: c.Expression, CreatedAt: c.CreatedAt}
}

func view(c *store.Circuit) circuitView {
	v := circuitView{circuitSummary: summary(c)}
	if d := c.Description; d != nil {
		v.Gates, v.Inputs, v.Outputs, v.Connections = d.Gates, d.Inputs, d.Outputs, d.Connections
	}
	return v
}

type parseRequest struct {
	Expression *string `json:"expression"`
}

func (s *Server) handleParse(c *gin.Context) {
	var req parseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, badRequest("invalid request body: "+err.Error()))
		return
	}
	if req.Expression == nil {
		s.fail(c, badRequest("missing circuit expression"))
		return
	}
	circ, err := hazsim.Parse(*req.Expression)
	if err != nil {
		s.fail(c, err)
		return
	}
	sc := &store.Circuit{
		Name:        "Circuit_" + s.now().Format("20060102_150405"),
		Expression:  *req.Expression,
		Description: circ.Description(),
	}
	if err := s.store.CreateCircuit(c.Request.Context(), sc); err != nil {
		s.fail(c, err)
		return
	}
	s.metrics.circuits.Inc()
	s.log.InfoContext(c.Request.Context(), "circuit stored", "id", sc.ID, "gates", len(sc.Description.Gates))
	c.JSON(http.StatusOK, gin.H{"status": statusSuccess, "circuit": view(sc)})
}

type detectRequest struct {
	CircuitID string              `json:"circuit_id"`
	Circuit   *hazsim.Description `json:"circuit"`
}

func (s *Server) handleDetect(c *gin.Context) {
	var req detectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, badRequest("invalid request body: "+err.Error()))
		return
	}
	if req.Circuit == nil {
		s.fail(c, badRequest("missing circuit"))
		return
	}
	req.Circuit.InferPorts()
	circ, err := hazsim.FromDescription(req.Circuit)
	if err != nil {
		s.fail(c, err)
		return
	}
	ctx := c.Request.Context()
	if req.CircuitID != "" {
		if _, err := s.store.GetCircuit(ctx, req.CircuitID); err != nil {
			s.fail(c, err)
			return
		}
	}

	rep, err := s.runDetect(c, circ)
	if err != nil {
		s.fail(c, err)
		return
	}
	if req.CircuitID != "" {
		if _, err := s.store.AddReport(ctx, req.CircuitID, rep); err != nil {
			s.fail(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": statusSuccess, "results": rep})
}

func (s *Server) runDetect(c *gin.Context, circ *hazsim.Circuit) (detect.Report, error) {
	ctx, span := tracer.Start(c.Request.Context(), "detect", trace.WithAttributes(
		attribute.String("circuit", circ.Name),
		attribute.Int("gates", len(circ.Gates())),
		attribute.Int("inputs", len(circ.Inputs())),
	))
	defer span.End()

	opts := s.detect
	start := time.Now()
	rep, err := detect.New(circ, &opts).Detect(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return rep, err
	}
	s.metrics.observe(rep, time.Since(start))
	span.SetAttributes(
		attribute.Int("race_conditions", len(rep.RaceConditions)),
		attribute.Int("hazards", len(rep.Hazards)),
	)
	s.log.InfoContext(ctx, "detection complete",
		"circuit", circ.Name,
		"race_conditions", len(rep.RaceConditions),
		"hazards", len(rep.Hazards))
	return rep, nil
}

type simulateRequest struct {
	CircuitID string              `json:"circuit_id"`
	Circuit   *hazsim.Description `json:"circuit"`
	Inputs    map[string]int      `json:"inputs"`
}

type simulateResponse struct {
	Status               string         `json:"status"`
	Results              map[string]int `json:"results"`
	Expression           *string        `json:"expression"`
	SimplifiedExpression *string        `json:"simplified_expression"`
	HazardType           *detect.Kind   `json:"hazard_type"`
}

func (s *Server) handleSimulate(c *gin.Context) {
	var req simulateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, badRequest("invalid request body: "+err.Error()))
		return
	}
	if req.Inputs == nil {
		s.fail(c, badRequest("missing input values"))
		return
	}
	ctx := c.Request.Context()
	desc := req.Circuit
	switch {
	case req.CircuitID != "":
		sc, err := s.store.GetCircuit(ctx, req.CircuitID)
		if err != nil {
			s.fail(c, err)
			return
		}
		desc = sc.Description
	case desc != nil:
		desc.InferPorts()
	default:
		s.fail(c, badRequest("either circuit_id or circuit is required"))
		return
	}
	circ, err := hazsim.FromDescription(desc)
	if err != nil {
		s.fail(c, err)
		return
	}
	values, err := circ.Compute(req.Inputs)
	if err != nil {
		s.fail(c, err)
		return
	}

	resp := simulateResponse{Status: statusSuccess, Results: values}
	if len(circ.Outputs()) > 0 {
		opts := s.detect
		hs, err := detect.New(circ, &opts).Symbolic(ctx)
		switch {
		case err != nil:
			s.log.WarnContext(ctx, "hazard summary failed", "circuit", circ.Name, "error", err)
		case len(hs) > 0:
			h := hs[0]
			expr := "detected " + string(h.Kind) + " hazard"
			simp := "variable " + h.Variable + " may cause a hazard: gate " + h.GateID + " receives complementary inputs"
			resp.Expression, resp.SimplifiedExpression, resp.HazardType = &expr, &simp, &h.Kind
		default:
			expr := "no hazard detected"
			simp := "no variable reaches a gate together with its complement"
			resp.Expression, resp.SimplifiedExpression = &expr, &simp
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleListCircuits(c *gin.Context) {
	cs, err := s.store.ListCircuits(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	list := make([]circuitSummary, len(cs))
	for i, sc := range cs {
		list[i] = summary(sc)
	}
	c.JSON(http.StatusOK, gin.H{"status": statusSuccess, "circuits": list})
}

func (s *Server) handleGetCircuit(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")
	sc, err := s.store.GetCircuit(ctx, id)
	if err != nil {
		s.fail(c, err)
		return
	}
	rs, err := s.store.Results(ctx, id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusSuccess, "circuit": view(sc), "results": rs})
}

func (s *Server) handleDeleteCircuit(c *gin.Context) {
	id := c.Param("id")
	if err := s.store.DeleteCircuit(c.Request.Context(), id); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusSuccess, "message": "circuit " + id + " deleted"})
}

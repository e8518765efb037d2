package http

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"go.ngs.io/pgw4era/internal/domain"
	"go.ngs.io/pgw4era/internal/usecase"
)

// Handler handles HTTP requests for the calendar and signal inspection endpoints.
type Handler struct {
	inspector *usecase.Inspector
}

// NewHandler creates a new HTTP handler.
func NewHandler(inspector *usecase.Inspector) *Handler {
	return &Handler{
		inspector: inspector,
	}
}

// BracketResponse describes the monthly signals surrounding a timestamp.
// Months are 1-based.
type BracketResponse struct {
	Time      string  `json:"time"`
	LowMonth  int     `json:"low_month"`
	HighMonth int     `json:"high_month"`
	Weight    float64 `json:"weight"`
	Exact     bool    `json:"exact"`
	From      string  `json:"from"`
	To        string  `json:"to"`
}

func newBracketResponse(t time.Time, b domain.Bracket) BracketResponse {
	return BracketResponse{
		Time:      t.UTC().Format(time.RFC3339),
		LowMonth:  b.Low + 1,
		HighMonth: b.High + 1,
		Weight:    b.Weight,
		Exact:     b.Exact,
		From:      b.From.Format(time.RFC3339),
		To:        b.To.Format(time.RFC3339),
	}
}

// GetMidpoints handles GET /v1/midpoints.
func (h *Handler) GetMidpoints(c *gin.Context) {
	yearStr := c.Query("year")
	if yearStr == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "year parameter is required"})
		return
	}
	year, err := strconv.Atoi(yearStr)
	if err != nil || year < 1 || year > 9998 {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid year %q", yearStr)})
		return
	}

	cal := domain.Midpoints(year)
	midpoints := make([]string, len(cal))
	for i, t := range cal {
		midpoints[i] = t.Format(time.RFC3339)
	}

	c.JSON(http.StatusOK, gin.H{
		"year":      year,
		"midpoints": midpoints,
	})
}

// GetBracket handles GET /v1/bracket.
func (h *Handler) GetBracket(c *gin.Context) {
	t, ok := parseTime(c)
	if !ok {
		return
	}
	b, err := domain.LocateTime(t)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, newBracketResponse(t, b))
}

// VariableResponse is one entry of the variable table.
type VariableResponse struct {
	Signal      string    `json:"signal,omitempty"`
	ERA5        []string  `json:"era5"`
	Output      string    `json:"output"`
	Units       string    `json:"units"`
	Description string    `json:"description"`
	PressureLev bool      `json:"pressure_levels"`
	Perturbed   bool      `json:"perturbed"`
	Clamp       []float64 `json:"clamp,omitempty"`
}

// GetVariables handles GET /v1/variables.
func (h *Handler) GetVariables(c *gin.Context) {
	vars := domain.AllVariables()

	response := make([]VariableResponse, len(vars))
	for i, v := range vars {
		response[i] = VariableResponse{
			Signal:      v.Signal,
			ERA5:        v.ERA5,
			Output:      v.Output,
			Units:       v.Units,
			Description: v.Desc,
			PressureLev: v.ThreeD,
			Perturbed:   v.Perturbed(),
		}
		if v.Clamp != nil {
			response[i].Clamp = []float64{v.Clamp.Min, v.Clamp.Max}
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"variables": response,
		"count":     len(response),
	})
}

// AnomalyResponse is the signal at a point.
type AnomalyResponse struct {
	Variable string          `json:"variable"`
	Units    string          `json:"units"`
	Lat      float64         `json:"lat"`
	Lon      float64         `json:"lon"`
	LevelPa  float64         `json:"level_pa,omitempty"`
	Bracket  BracketResponse `json:"bracket"`
	Low      float64         `json:"low"`
	High     float64         `json:"high"`
	Anomaly  float64         `json:"anomaly"`
}

// GetAnomaly handles GET /v1/anomaly.
func (h *Handler) GetAnomaly(c *gin.Context) {
	if h.inspector == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no signal directory configured"})
		return
	}

	varStr := c.Query("var")
	if varStr == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "var parameter is required"})
		return
	}
	kind, err := domain.ParseKind(varStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	lat, err := strconv.ParseFloat(c.Query("lat"), 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid latitude: %v", err)})
		return
	}
	lon, err := strconv.ParseFloat(c.Query("lon"), 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid longitude: %v", err)})
		return
	}

	t, ok := parseTime(c)
	if !ok {
		return
	}

	req := usecase.PointRequest{Kind: kind, Time: t, Lat: lat, Lon: lon}
	if levelStr := c.Query("level"); levelStr != "" {
		if req.Level, err = strconv.ParseFloat(levelStr, 64); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid level: %v", err)})
			return
		}
	} else if domain.MustLookup(kind).ThreeD {
		c.JSON(http.StatusBadRequest, gin.H{"error": "level parameter (Pa) is required for pressure-level variables"})
		return
	}

	// Execute use case.
	a, err := h.inspector.Anomaly(req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, AnomalyResponse{
		Variable: a.Variable,
		Units:    a.Units,
		Lat:      a.Lat,
		Lon:      a.Lon,
		LevelPa:  a.Level,
		Bracket:  newBracketResponse(a.Time, a.Bracket),
		Low:      a.Low,
		High:     a.High,
		Anomaly:  a.Value,
	})
}

// HealthCheck handles GET /health.
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"signals": h.inspector != nil,
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// parseTime reads the required RFC3339 time parameter, answering 400 when
// it is missing or invalid.
func parseTime(c *gin.Context) (time.Time, bool) {
	timeStr := c.Query("time")
	if timeStr == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "time parameter is required"})
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, timeStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid time (expected RFC3339): %v", err)})
		return time.Time{}, false
	}
	return t.UTC(), true
}

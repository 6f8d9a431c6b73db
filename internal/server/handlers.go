package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/rivalscan/rivalscan/config"
	core "github.com/rivalscan/rivalscan/internal/agent/core"
)

type ResearchHandler struct {
	Runner researchRunner
	Config *config.Config
}

func (h *ResearchHandler) Register(g *echo.Group) {
	g.POST("/research", h.research)
	g.GET("/validate", h.validate)
	g.GET("/workflows/:id", h.workflow)
	g.GET("/config", h.configSummary)
}

// ResearchRequest is the POST /api/research payload.
type ResearchRequest struct {
	Query              string   `json:"query"`
	ResearchDepth      string   `json:"research_depth,omitempty"`
	FocusAreas         []string `json:"focus_areas,omitempty"`
	ExcludeCompetitors []string `json:"exclude_competitors,omitempty"`
	MaxResults         int      `json:"max_results,omitempty"`
}

func (h *ResearchHandler) research(c echo.Context) error {
	var req ResearchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	query := core.ResearchQuery{
		Query:              req.Query,
		Depth:              core.ResearchDepth(req.ResearchDepth),
		FocusAreas:         req.FocusAreas,
		ExcludeCompetitors: req.ExcludeCompetitors,
		MaxResults:         req.MaxResults,
	}
	if err := query.Normalize(); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	outcome := h.Runner.ExecuteResearch(c.Request().Context(), query)
	if !outcome.Success {
		// failed runs still carry partial results in the body
		return c.JSON(http.StatusUnprocessableEntity, outcome)
	}
	return c.JSON(http.StatusOK, outcome)
}

func (h *ResearchHandler) validate(c echo.Context) error {
	report := h.Runner.ValidateSystem(c.Request().Context())
	return c.JSON(http.StatusOK, report)
}

func (h *ResearchHandler) workflow(c echo.Context) error {
	id := c.Param("id")
	wf, ok := h.Runner.GetWorkflowStatus(id)
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "workflow not found")
	}
	return c.JSON(http.StatusOK, wf)
}

func (h *ResearchHandler) configSummary(c echo.Context) error {
	return c.JSON(http.StatusOK, h.Config.Summary())
}

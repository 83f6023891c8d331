package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"leadscout/internal/index"
	"leadscout/internal/pipeline"
	"leadscout/internal/store"
)

const defaultRunTimeout = 5 * time.Minute

// PipelineRunner executes one lead pipeline invocation.
type PipelineRunner interface {
	Run(ctx context.Context, input pipeline.State) (pipeline.State, error)
}

// EvaluationStore serves the archived-run review endpoints.
type EvaluationStore interface {
	ListRuns(ctx context.Context, limit int) ([]store.RunSummary, error)
	ListRunsByCategory(ctx context.Context, category string) ([]store.RunSummary, error)
	UpdateCategory(ctx context.Context, runID, category string) error
	UpdateEvaluation(ctx context.Context, runID, status string, comment *string) error
}

// LeadSearcher queries the in-memory lead index.
type LeadSearcher interface {
	Search(q string, k int) ([]index.Hit, error)
}

// RunsHandler exposes the pipeline trigger, the evaluation review API and
// lead search.
type RunsHandler struct {
	Runner     PipelineRunner
	Store      EvaluationStore
	Leads      LeadSearcher
	RunTimeout time.Duration
}

func (h *RunsHandler) Register(api *echo.Group) {
	api.POST("/pipeline/run", h.runPipeline)

	ev := api.Group("/evaluation")
	ev.GET("/runs", h.listRuns)
	ev.GET("/runs/category/:category", h.listRunsByCategory)
	ev.POST("/update-category", h.updateCategory)
	ev.POST("/update-evaluation", h.updateEvaluation)

	api.GET("/leads/search", h.searchLeads)
}

// runPipeline validates the product fields, runs the pipeline with a
// request-scoped timeout and returns the final accumulated state.
func (h *RunsHandler) runPipeline(c echo.Context) error {
	var req RunPipelineRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(req.ProductName) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "product_name is required")
	}
	if strings.TrimSpace(req.Description) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "description is required")
	}

	timeout := h.RunTimeout
	if timeout <= 0 {
		timeout = defaultRunTimeout
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), timeout)
	defer cancel()

	input := pipeline.NewState(req.ProductName, req.Description, req.Features, req.Competitors)
	final, err := h.Runner.Run(ctx, input)
	if err != nil {
		if errors.Is(err, pipeline.ErrMissingProductName) || errors.Is(err, pipeline.ErrMissingDescription) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"status": "success",
		"result": final,
	})
}

func (h *RunsHandler) listRuns(c echo.Context) error {
	limit := 0
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be an integer")
		}
		limit = n
	}
	runs, err := h.Store.ListRuns(c.Request().Context(), limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, runs)
}

func (h *RunsHandler) listRunsByCategory(c echo.Context) error {
	category := c.Param("category")
	runs, err := h.Store.ListRunsByCategory(c.Request().Context(), category)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, runs)
}

func (h *RunsHandler) updateCategory(c echo.Context) error {
	var req UpdateCategoryRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.TraceID == "" || req.Category == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "trace_id and category are required")
	}
	if err := h.Store.UpdateCategory(c.Request().Context(), req.TraceID, req.Category); err != nil {
		if errors.Is(err, store.ErrRunNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "run not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, StatusResponse{Status: "success"})
}

func (h *RunsHandler) updateEvaluation(c echo.Context) error {
	var req UpdateEvaluationRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.TraceID == "" || req.EvaluationStatus == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "trace_id and evaluation_status are required")
	}
	if err := h.Store.UpdateEvaluation(c.Request().Context(), req.TraceID, req.EvaluationStatus, req.EvaluationComment); err != nil {
		if errors.Is(err, store.ErrRunNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "run not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, StatusResponse{Status: "success"})
}

func (h *RunsHandler) searchLeads(c echo.Context) error {
	q := strings.TrimSpace(c.QueryParam("q"))
	if q == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "q is required")
	}
	k := 10
	if v := c.QueryParam("k"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "k must be a positive integer")
		}
		k = n
	}
	hits, err := h.Leads.Search(q, k)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, hits)
}

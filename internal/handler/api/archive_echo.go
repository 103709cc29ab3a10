// Package api exposes the retrieval pipeline over HTTP. Handlers stay
// thin: bind and validate, call the usecase, translate domain errors
// onto HTTP statuses.
package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	models "HistPull/internal/domain/models"
	domrepo "HistPull/internal/domain/repository"
	"HistPull/internal/service/jobs"
	"HistPull/internal/service/ratelimit"
	"HistPull/internal/usecase"
	"HistPull/pkg/cache"
	xhttp "HistPull/pkg/http"
	xlogger "HistPull/pkg/logger"
	"HistPull/pkg/util"

	"github.com/labstack/echo/v4"
)

// Search endpoint token bucket, per client address.
const (
	searchBurst  = 5.0
	searchPerSec = 1.0
)

const defaultQueryCacheTTL = 30 * time.Second

var (
	errTooManyRequests = xhttp.NewAppError("ERR_RATE_LIMITED", "", "too many requests, slow down", http.StatusTooManyRequests)
	errJobsDisabled    = xhttp.NewAppError("ERR_UNAVAILABLE", "", "async jobs are not configured on this server", http.StatusServiceUnavailable)
)

// ArchiveEchoHandler implements Echo-based HTTP handlers following Clean Architecture.
type ArchiveEchoHandler struct {
	logger  *xlogger.Logger
	resolve *usecase.ResolveUseCase
	query   *usecase.QueryUseCase
	export  *usecase.ExportUseCase
	loc     *time.Location

	jobs     *jobs.Service
	recorder domrepo.Recorder
	archive  domrepo.Archive
	cache    cache.Service
	cacheTTL time.Duration
	limiter  *ratelimit.Limiter
}

// NewArchiveEchoHandler wires the required pipeline stages. Optional
// collaborators (jobs, recorder, caching, rate limiting, health probe)
// attach through the With helpers; endpoints degrade cleanly without them.
func NewArchiveEchoHandler(
	logger *xlogger.Logger,
	resolve *usecase.ResolveUseCase,
	query *usecase.QueryUseCase,
	export *usecase.ExportUseCase,
	loc *time.Location,
) *ArchiveEchoHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &ArchiveEchoHandler{
		logger:  logger,
		resolve: resolve,
		query:   query,
		export:  export,
		loc:     loc,
	}
}

// WithJobs enables the async export endpoints.
func (h *ArchiveEchoHandler) WithJobs(s *jobs.Service) *ArchiveEchoHandler {
	h.jobs = s
	return h
}

// WithRecorder enables the run history endpoint.
func (h *ArchiveEchoHandler) WithRecorder(r domrepo.Recorder) *ArchiveEchoHandler {
	h.recorder = r
	return h
}

// WithQueryCache caches query responses under a hashed request key.
func (h *ArchiveEchoHandler) WithQueryCache(c cache.Service, ttl time.Duration) *ArchiveEchoHandler {
	if ttl <= 0 {
		ttl = defaultQueryCacheTTL
	}
	h.cache = c
	h.cacheTTL = ttl
	return h
}

// WithRateLimiter throttles the search endpoint per client address.
func (h *ArchiveEchoHandler) WithRateLimiter(l *ratelimit.Limiter) *ArchiveEchoHandler {
	h.limiter = l
	return h
}

// WithArchiveProbe adds the archive backend to the health report.
func (h *ArchiveEchoHandler) WithArchiveProbe(a domrepo.Archive) *ArchiveEchoHandler {
	h.archive = a
	return h
}

func (h *ArchiveEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Health)

	g := e.Group("/api")
	g.POST("/search", h.Search)
	g.POST("/query", h.Query)
	g.POST("/export", h.Export)
	g.POST("/jobs", h.SubmitJob)
	g.GET("/jobs/:id", h.JobStatus)
	g.GET("/runs", h.Runs)
	g.GET("/stream", h.Stream)
}

func (h *ArchiveEchoHandler) Search(c echo.Context) error {
	if h.limiter != nil && !h.limiter.Allow(c.RealIP()+":search", searchBurst, searchPerSec) {
		return xhttp.AppErrorResponse(c, errTooManyRequests)
	}
	req := &models.SearchRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	matches, err := h.resolve.Resolve(c.Request().Context(), req.Patterns)
	if err != nil {
		h.logger.Error("search usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, appError(err))
	}
	return xhttp.SuccessResponse(c, &models.SearchResponse{
		Patterns: req.Patterns,
		Matches:  matches,
		Count:    len(matches),
	})
}

func (h *ArchiveEchoHandler) Query(c echo.Context) error {
	req := &models.QueryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	rng, aerr := h.parseRange(req.From, req.To)
	if aerr != nil {
		return xhttp.AppErrorResponse(c, aerr)
	}
	ctx := c.Request().Context()

	key := ""
	if h.cache != nil {
		key = queryCacheKey(req)
		var cached models.QueryResponse
		if err := h.cache.Get(ctx, key, &cached); err == nil {
			return xhttp.SuccessResponse(c, &cached)
		}
	}

	set, err := h.query.Query(ctx, usecase.QueryParams{
		Patterns: req.Patterns,
		Range:    rng,
		Interval: req.Interval,
		Backend:  req.Backend,
	})
	if err != nil {
		h.logger.Error("query usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, appError(err))
	}

	res := models.NewQueryResponse(set)
	if h.cache != nil {
		if err := h.cache.Set(ctx, key, *res, h.cacheTTL); err != nil {
			h.logger.Warn("query cache set failed", xlogger.Error(err))
		}
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *ArchiveEchoHandler) Export(c echo.Context) error {
	req := &models.ExportRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	rng, aerr := h.parseRange(req.From, req.To)
	if aerr != nil {
		return xhttp.AppErrorResponse(c, aerr)
	}

	res, err := h.export.Export(c.Request().Context(), usecase.ExportParams{
		QueryParams: usecase.QueryParams{
			Patterns: req.Patterns,
			Range:    rng,
			Interval: req.Interval,
			Backend:  req.Backend,
		},
		Mode:       "api",
		Target:     req.Target,
		OutputRoot: req.OutputRoot,
	})
	if err != nil {
		h.logger.Error("export usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, appError(err))
	}
	return xhttp.SuccessResponse(c, &models.ExportReport{
		Signals:  len(res.Set.Signals),
		Points:   res.Set.TotalPoints(),
		Failures: res.Set.Failures(),
		Target:   req.Target,
		Files:    res.Files,
		Errors:   res.Set.Errors,
	})
}

func (h *ArchiveEchoHandler) SubmitJob(c echo.Context) error {
	if h.jobs == nil {
		return xhttp.AppErrorResponse(c, errJobsDisabled)
	}
	req := &models.ExportRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	rng, aerr := h.parseRange(req.From, req.To)
	if aerr != nil {
		return xhttp.AppErrorResponse(c, aerr)
	}

	st, err := h.jobs.Submit(c.Request().Context(), jobs.ExportJobRequest{
		Patterns:   req.Patterns,
		From:       rng.Start,
		To:         rng.End,
		Interval:   req.Interval,
		Backend:    req.Backend,
		Target:     req.Target,
		OutputRoot: req.OutputRoot,
	})
	if err != nil {
		h.logger.Error("job submit error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, appError(err))
	}
	return xhttp.DataResponse(c, http.StatusAccepted, st)
}

func (h *ArchiveEchoHandler) JobStatus(c echo.Context) error {
	if h.jobs == nil {
		return xhttp.AppErrorResponse(c, errJobsDisabled)
	}
	id := c.Param("id")

	st, err := h.jobs.Status(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, jobs.ErrJobNotFound) {
			return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("job %s not found", id))
		}
		h.logger.Error("job status error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, st)
}

func (h *ArchiveEchoHandler) Runs(c echo.Context) error {
	if h.recorder == nil {
		return xhttp.ListResponse(c, []models.RunPayload{}, 0)
	}
	limit := util.ParseIntDefault(c.QueryParam("limit"), 20)

	recs, err := h.recorder.Recent(c.Request().Context(), limit)
	if err != nil {
		h.logger.Error("runs lookup error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	rows := models.NewRunPayloads(recs)
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

// Health reports per-component state. Degraded components turn the
// overall status to 503 so load balancers stop routing here.
func (h *ArchiveEchoHandler) Health(c echo.Context) error {
	ctx := c.Request().Context()
	status := http.StatusOK
	components := map[string]string{}

	if h.archive != nil {
		if err := h.archive.Health(ctx); err != nil {
			status = http.StatusServiceUnavailable
			components["archiver"] = err.Error()
		} else {
			components["archiver"] = "ok"
		}
	}
	if h.cache != nil {
		if _, err := h.cache.Exists(ctx, "health:ping"); err != nil {
			status = http.StatusServiceUnavailable
			components["cache"] = err.Error()
		} else {
			components["cache"] = "ok"
		}
	}

	return xhttp.DataResponse(c, status, map[string]interface{}{
		"status":     http.StatusText(status),
		"components": components,
	})
}

// parseRange turns the request's civil timestamps into a TimeRange in
// the configured input location.
func (h *ArchiveEchoHandler) parseRange(from, to string) (models.TimeRange, error) {
	start, ok := util.ParseCivil(from, h.loc)
	if !ok {
		return models.TimeRange{}, xhttp.BadRequestErrorf("bad from timestamp %q, want YYYY-MM-DDTHH:MM:SS", from)
	}
	end, ok := util.ParseCivil(to, h.loc)
	if !ok {
		return models.TimeRange{}, xhttp.BadRequestErrorf("bad to timestamp %q, want YYYY-MM-DDTHH:MM:SS", to)
	}
	if start.After(end) {
		return models.TimeRange{}, xhttp.BadRequestErrorf("range start %s is after end %s", from, to)
	}
	return models.TimeRange{Start: start, End: end}, nil
}

// appError maps domain errors onto HTTP statuses. Anything unknown
// falls through to the generic 500 handling.
func appError(err error) error {
	switch {
	case errors.Is(err, models.ErrNoMatch):
		return xhttp.NotFoundError(err.Error()).WithError(err)
	case errors.Is(err, models.ErrAmbiguousMatch):
		return xhttp.ConflictError(err.Error()).WithError(err)
	case errors.Is(err, models.ErrInvalidInterval):
		return xhttp.BadRequestError(err.Error()).WithError(err)
	case errors.Is(err, models.ErrBackendUnreachable):
		return xhttp.BadGatewayError(err.Error()).WithError(err)
	default:
		return err
	}
}

func queryCacheKey(req *models.QueryRequest) string {
	raw := strings.Join(req.Patterns, ",") + "|" + req.From + "|" + req.To + "|" + req.Interval + "|" + req.Backend
	return cache.GenerateKey("query", cache.HashKey(raw))
}

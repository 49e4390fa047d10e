package api

import (
	"errors"
	"time"

	"ClpWatch/internal/domain/models"
	domrepo "ClpWatch/internal/domain/repository"
	svcmetrics "ClpWatch/internal/service/metrics"
	"ClpWatch/internal/services/scoring"
	"ClpWatch/internal/usecase"
	xhttp "ClpWatch/pkg/http"
	xlogger "ClpWatch/pkg/logger"

	"github.com/labstack/echo/v4"
)

func init() {
	xhttp.RegisterValidation("sensitivity", func(v string) bool {
		_, ok := usecase.LookupSensitivity(v)
		return ok
	})
}

// Monitor is the watchlist state the API reads.
type Monitor interface {
	Latest() *models.CycleReport
	Flips() *usecase.FlipTracker
}

// InstrumentResponse is a single-instrument run with its insights.
type InstrumentResponse struct {
	Snapshot   models.Snapshot       `json:"snapshot"`
	Thresholds models.Thresholds     `json:"thresholds"`
	Params     usecase.RunParams     `json:"params"`
	Insights   usecase.FocusInsights `json:"insights"`
	Series     []models.Observation  `json:"series,omitempty"`
}

// PresetsResponse lists the sensitivity and watchlist presets.
type PresetsResponse struct {
	Sensitivities []usecase.Sensitivity `json:"sensitivities"`
	Watchlists    []usecase.Watchlist   `json:"watchlists"`
}

// ClpEchoHandler serves the CLP API.
type ClpEchoHandler struct {
	logger  *xlogger.Logger
	runner  usecase.InstrumentScorer
	monitor Monitor
	history *usecase.HistoryUseCase
}

func NewClpEchoHandler(logger *xlogger.Logger, runner usecase.InstrumentScorer, monitor Monitor, history *usecase.HistoryUseCase) *ClpEchoHandler {
	return &ClpEchoHandler{logger: logger, runner: runner, monitor: monitor, history: history}
}

func (h *ClpEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)
	g := e.Group("/api/v1")
	g.GET("/instruments/:symbol", h.Instrument)
	g.GET("/watchlist", h.Watchlist)
	g.GET("/history", h.History)
	g.GET("/flips", h.Flips)
	g.GET("/presets", h.Presets)
}

func (h *ClpEchoHandler) Health(c echo.Context) error {
	return xhttp.SuccessResponse(c, map[string]string{"status": "ok"})
}

func (h *ClpEchoHandler) Instrument(c echo.Context) error {
	defer observe("instrument", time.Now())
	req := &models.InstrumentRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	p, err := runParams(req)
	if err != nil {
		return h.fail(c, "instrument", err)
	}

	res, err := h.runner.Run(c.Request().Context(), req.Symbol, p)
	if err != nil {
		return h.fail(c, "instrument", err)
	}
	out := InstrumentResponse{
		Snapshot:   res.Snapshot,
		Thresholds: res.Thresholds,
		Params:     res.Params,
		Insights:   res.Insights(),
	}
	if c.QueryParam("series") == "true" {
		out.Series = res.Series.Tail(p.ShareLookback)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=15")
	return xhttp.SuccessResponse(c, out)
}

func (h *ClpEchoHandler) Watchlist(c echo.Context) error {
	defer observe("watchlist", time.Now())
	if h.monitor == nil {
		return h.fail(c, "watchlist", xhttp.UnavailableError("watchlist monitor disabled"))
	}
	rep := h.monitor.Latest()
	if rep == nil {
		return h.fail(c, "watchlist", xhttp.UnavailableError("no cycle completed yet"))
	}
	return xhttp.SuccessResponse(c, rep)
}

func (h *ClpEchoHandler) History(c echo.Context) error {
	defer observe("history", time.Now())
	req := &models.HistoryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	q := usecase.HistoryQuery{Symbol: req.Symbol, Limit: req.Limit, Pivot: req.Pivot}
	var ok bool
	if req.From != "" {
		if q.From, ok = xhttp.ParseTime(req.From); !ok {
			return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("invalid from %q", req.From).WithField("from"))
		}
	}
	if req.To != "" {
		if q.To, ok = xhttp.ParseTime(req.To); !ok {
			return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("invalid to %q", req.To).WithField("to"))
		}
	}
	res, err := h.history.Load(c.Request().Context(), q)
	if err != nil {
		return h.fail(c, "history", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *ClpEchoHandler) Flips(c echo.Context) error {
	req := &models.FlipsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if h.monitor == nil {
		return xhttp.ListResponse(c, []models.FlipEvent{}, 0)
	}
	flips := h.monitor.Flips().Recent(req.N)
	return xhttp.ListResponse(c, flips, int64(len(flips)))
}

func (h *ClpEchoHandler) Presets(c echo.Context) error {
	return xhttp.SuccessResponse(c, PresetsResponse{
		Sensitivities: usecase.Sensitivities(),
		Watchlists:    usecase.Watchlists(),
	})
}

// fail maps use case errors onto API errors.
func (h *ClpEchoHandler) fail(c echo.Context, endpoint string, err error) error {
	svcmetrics.APIErrors.WithLabelValues(endpoint).Inc()
	var appErr *xhttp.AppError
	switch {
	case errors.As(err, &appErr):
	case errors.Is(err, usecase.ErrZeroWeights),
		errors.Is(err, scoring.ErrUnknownPolicy),
		errors.Is(err, scoring.ErrInvalidThresholds):
		appErr = xhttp.BadRequestError(err.Error()).WithError(err)
	case errors.Is(err, usecase.ErrNoScoredObservations):
		appErr = xhttp.UnprocessableError(err.Error()).WithError(err)
	default:
		h.logger.Error(endpoint+" usecase error", xlogger.Error(err))
		appErr = xhttp.BadGatewayError(err.Error()).WithError(err)
	}
	return xhttp.AppErrorResponse(c, appErr)
}

func observe(endpoint string, start time.Time) {
	svcmetrics.APILatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}

// runParams turns a validated request into prepared run parameters. A
// sensitivity preset sets window, policy and threshold params; values given
// explicitly in the query win over it.
func runParams(req *models.InstrumentRequest) (usecase.RunParams, error) {
	p := usecase.DefaultRunParams()
	p.Interval = domrepo.Interval(req.Interval)
	p.Lookback = req.Lookback
	p.ShareLookback = req.ShareWindow
	p.Weights = scoring.Weights{
		Funding:   deref(req.WFunding, p.Weights.Funding),
		OI:        deref(req.WOI, p.Weights.OI),
		AbsReturn: deref(req.WAbsRet, p.Weights.AbsReturn),
	}
	p, err := p.Resolve(req.Sensitivity, usecase.Overrides{
		ZWindow:  req.ZWindow,
		Policy:   scoring.Policy(req.Policy),
		PStress:  req.PStress,
		PExtreme: req.PExtreme,
		KStress:  req.KStress,
		KExtreme: req.KExtreme,
	})
	if err != nil {
		return p, xhttp.BadRequestError(err.Error()).WithError(err)
	}
	return p.Prepare()
}

func deref(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

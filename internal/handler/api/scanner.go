package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"ORBScanner/internal/domain/models"
	domrepo "ORBScanner/internal/domain/repository"
	"ORBScanner/internal/service/ratelimit"
	"ORBScanner/internal/services/session"
	"ORBScanner/internal/services/sizing"
	xhttp "ORBScanner/pkg/http"
	xlogger "ORBScanner/pkg/logger"
)

// ScannerHandler serves the latest scan snapshots and the session clock.
type ScannerHandler struct {
	logger    *xlogger.Logger
	store     domrepo.SnapshotStore
	clock     session.Clock
	rl        *ratelimit.Limiter
	connected func() bool
}

// HandlerOption configures a ScannerHandler.
type HandlerOption func(*ScannerHandler)

// WithRateLimit caps requests per client IP.
func WithRateLimit(perSecond float64, burst int) HandlerOption {
	return func(h *ScannerHandler) { h.rl = ratelimit.New(perSecond, burst) }
}

// WithFeedStatus reports live feed state on /health.
func WithFeedStatus(fn func() bool) HandlerOption {
	return func(h *ScannerHandler) { h.connected = fn }
}

// WithClock overrides the wall clock.
func WithClock(c session.Clock) HandlerOption {
	return func(h *ScannerHandler) { h.clock = c }
}

func NewScannerHandler(logger *xlogger.Logger, store domrepo.SnapshotStore, opts ...HandlerOption) *ScannerHandler {
	h := &ScannerHandler{logger: logger, store: store, clock: session.SystemClock{}}
	for _, o := range opts {
		o(h)
	}
	if h.logger == nil {
		h.logger = xlogger.Nop()
	}
	return h
}

func (h *ScannerHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Health)
	g := e.Group("/api", h.limit)
	g.GET("/scanner/orb", h.ORB)
	g.GET("/scanner/index-lotto", h.IndexLotto)
	g.GET("/session", h.Session)
}

func (h *ScannerHandler) limit(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if h.rl != nil && !h.rl.Allow(c.RealIP()+":"+c.Path()) {
			h.logger.Warn("rate limited", xlogger.String("remote", c.RealIP()), xlogger.String("path", c.Path()))
			return xhttp.AppErrorResponse(c, xhttp.NewAppError("ERR_RATE_LIMITED", "", "rate limited", http.StatusTooManyRequests))
		}
		return next(c)
	}
}

// ORB returns the latest ORB snapshot, optionally narrowed to one symbol
// and timeframe.
func (h *ScannerHandler) ORB(c echo.Context) error {
	req := &models.ORBRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.store.LatestORB(c.Request().Context())
	if err != nil {
		return h.snapshotError(c, "orb", err)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "no-store")
	return xhttp.SuccessResponse(c, filterORB(res, strings.ToUpper(req.Symbol), models.Timeframe(req.Timeframe)))
}

// IndexLotto returns the latest index-lotto snapshot.
func (h *ScannerHandler) IndexLotto(c echo.Context) error {
	req := &models.IndexLottoRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.store.LatestIndexLotto(c.Request().Context())
	if err != nil {
		return h.snapshotError(c, "index-lotto", err)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "no-store")
	return xhttp.SuccessResponse(c, filterLotto(res, strings.ToUpper(req.Symbol)))
}

// Session returns the phase, countdown and current size advice.
func (h *ScannerHandler) Session(c echo.Context) error {
	out := models.SessionResponse{
		SessionStatus:  session.Status(h.clock.Now()),
		PositionSizing: sizing.Unavailable(),
	}
	if res, err := h.store.LatestORB(c.Request().Context()); err == nil {
		out.PositionSizing = res.PositionSizing
	} else if !errors.Is(err, models.ErrSnapshotNotReady) {
		h.logger.Warn("session sizing lookup", xlogger.Error(err))
	}
	return xhttp.SuccessResponse(c, out)
}

func (h *ScannerHandler) Health(c echo.Context) error {
	out := models.HealthResponse{Status: "ok"}
	if h.connected != nil {
		out.FeedConnected = h.connected()
	}
	if res, err := h.store.LatestORB(c.Request().Context()); err == nil {
		out.LastScan = res.Timestamp.UTC().Format(time.RFC3339)
	}
	return xhttp.SuccessResponse(c, out)
}

func (h *ScannerHandler) snapshotError(c echo.Context, kind string, err error) error {
	if errors.Is(err, models.ErrSnapshotNotReady) {
		return xhttp.AppErrorResponse(c, xhttp.UnavailableError(kind+" scan has not completed yet").WithError(err))
	}
	h.logger.Error("snapshot load", xlogger.String("kind", kind), xlogger.Error(err))
	return xhttp.AppErrorResponse(c, xhttp.UnavailableError("snapshot store unavailable").WithError(err))
}

// filterORB copies res keeping only entries that match symbol and tf.
// Empty filters match everything.
func filterORB(res *models.ORBScanResult, symbol string, tf models.Timeframe) *models.ORBScanResult {
	if symbol == "" && tf == "" {
		return res
	}
	match := func(s string, t models.Timeframe) bool {
		return (symbol == "" || s == symbol) && (tf == "" || t == tf)
	}
	out := *res
	out.Ranges = []models.OpeningRange{}
	for _, r := range res.Ranges {
		if match(r.Symbol, r.Timeframe) {
			out.Ranges = append(out.Ranges, r)
		}
	}
	out.Breakouts = []models.ORBBreakout{}
	for _, b := range res.Breakouts {
		if match(b.Symbol, b.Timeframe) {
			out.Breakouts = append(out.Breakouts, b)
		}
	}
	out.PendingSetups = []models.PendingSetup{}
	for _, p := range res.PendingSetups {
		if match(p.Symbol, p.Timeframe) {
			out.PendingSetups = append(out.PendingSetups, p)
		}
	}
	if symbol != "" && len(res.Errors) > 0 {
		out.Errors = nil
		if msg, ok := res.Errors[symbol]; ok {
			out.Errors = map[string]string{symbol: msg}
		}
	}
	return &out
}

func filterLotto(res *models.IndexLottoResult, symbol string) *models.IndexLottoResult {
	if symbol == "" {
		return res
	}
	out := *res
	out.IndexData = []models.IndexData{}
	for _, d := range res.IndexData {
		if d.Symbol == symbol {
			out.IndexData = append(out.IndexData, d)
		}
	}
	out.LottoPlays = []models.LottoPlay{}
	for _, p := range res.LottoPlays {
		if p.Symbol == symbol {
			out.LottoPlays = append(out.LottoPlays, p)
		}
	}
	if len(res.Errors) > 0 {
		out.Errors = nil
		if msg, ok := res.Errors[symbol]; ok {
			out.Errors = map[string]string{symbol: msg}
		}
	}
	return &out
}

var _ xhttp.Handler = (*ScannerHandler)(nil)

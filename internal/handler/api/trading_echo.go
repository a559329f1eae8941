package api

import (
	"context"
	"net/http"

	"SonicTrader/internal/domain/models"
	xhttp "SonicTrader/pkg/http"
	xlogger "SonicTrader/pkg/logger"
	"SonicTrader/pkg/util"

	"github.com/labstack/echo/v4"
)

// Session is the trading session surface the API drives.
type Session interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Active() bool
	Status() models.SessionStatus
	Signals() []models.PairSignal
	Pair(feedID string) (models.AssetPair, bool)
}

type PriceReader interface {
	Latest(ctx context.Context, feedIDs []string) ([]models.PriceUpdate, error)
}

type HistoryReader interface {
	Snapshot(feedID string) []models.PricePoint
}

type TradeJournal interface {
	Recent(limit int) []models.TradeEvent
}

// TradingEchoHandler exposes session control and read-only market views.
type TradingEchoHandler struct {
	logger  *xlogger.Logger
	session Session
	prices  PriceReader
	history HistoryReader
	journal TradeJournal
}

func NewTradingEchoHandler(logger *xlogger.Logger, session Session, prices PriceReader, history HistoryReader, journal TradeJournal) *TradingEchoHandler {
	return &TradingEchoHandler{logger: logger, session: session, prices: prices, history: history, journal: journal}
}

func (h *TradingEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)

	g := e.Group("/api/v1")
	g.GET("/session", h.Status)
	g.POST("/session/start", h.Start)
	g.POST("/session/stop", h.Stop)
	g.GET("/signals", h.Signals)
	g.GET("/history/:feed_id", h.History)
	g.GET("/prices", h.Prices)
	g.GET("/trades", h.Trades)
}

func (h *TradingEchoHandler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status": "ok",
		"active": h.session.Active(),
	})
}

func (h *TradingEchoHandler) Status(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.session.Status())
}

func (h *TradingEchoHandler) Start(c echo.Context) error {
	if err := h.session.Start(c.Request().Context()); err != nil {
		h.logger.Error("session start failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.UpstreamError("could not start trading session", err))
	}
	return xhttp.SuccessResponse(c, h.session.Status())
}

func (h *TradingEchoHandler) Stop(c echo.Context) error {
	if err := h.session.Stop(c.Request().Context()); err != nil {
		h.logger.Error("session stop failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("trading session did not stop cleanly").WithError(err))
	}
	return xhttp.SuccessResponse(c, h.session.Status())
}

func (h *TradingEchoHandler) Signals(c echo.Context) error {
	c.Response().Header().Set(echo.HeaderCacheControl, "no-store")
	return xhttp.SuccessResponse(c, h.session.Signals())
}

func (h *TradingEchoHandler) History(c echo.Context) error {
	req := &models.HistoryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if _, ok := h.session.Pair(req.FeedID); !ok {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("feed %s is not tracked", req.FeedID))
	}

	points := h.history.Snapshot(req.FeedID)
	if len(points) > req.Limit {
		points = points[len(points)-req.Limit:]
	}
	return xhttp.ListResponse(c, points, int64(len(points)))
}

func (h *TradingEchoHandler) Prices(c echo.Context) error {
	req := &models.PricesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	ids := util.SplitList(req.IDs...)
	if len(ids) == 0 {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("ids is required"))
	}

	res, err := h.prices.Latest(c.Request().Context(), ids)
	if err != nil {
		h.logger.Error("latest prices failed", xlogger.Error(err), xlogger.Strings("feed_ids", ids))
		return xhttp.AppErrorResponse(c, xhttp.UpstreamError("price oracle unavailable", err))
	}
	return xhttp.ListResponse(c, res, int64(len(res)))
}

func (h *TradingEchoHandler) Trades(c echo.Context) error {
	req := &models.TradesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	events := h.journal.Recent(req.Limit)
	return xhttp.ListResponse(c, events, int64(len(events)))
}

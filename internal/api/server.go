// Package api exposes the report and widget services over HTTP. The caller
// identity is taken from the X-User header; authentication happens in front
// of this server.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/wdm0006/nimbus/internal/generate"
	"github.com/wdm0006/nimbus/internal/service"
	"github.com/wdm0006/nimbus/internal/store"
	"github.com/wdm0006/nimbus/pkg/frame"
)

// UserHeader carries the authenticated user name.
const UserHeader = "X-User"

type Options struct {
	Reports *service.Reports
	Widgets *service.Widgets
	// Metrics is served at /metrics when set.
	Metrics http.Handler
	Logger  *slog.Logger
}

type Handler struct {
	reports *service.Reports
	widgets *service.Widgets
	metrics http.Handler
	log     *slog.Logger
}

func NewHandler(opts Options) *Handler {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Handler{reports: opts.Reports, widgets: opts.Widgets, metrics: opts.Metrics, log: log}
}

// New builds the echo server with middleware and routes.
func New(opts Options) *echo.Echo {
	h := NewHandler(opts)
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = h.handleError
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			level := slog.LevelInfo
			if v.Status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			attrs := []slog.Attr{
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
			}
			if v.Error != nil {
				attrs = append(attrs, slog.String("err", v.Error.Error()))
			}
			h.log.LogAttrs(c.Request().Context(), level, "request", attrs...)
			return nil
		},
	}))
	h.RegisterRoutes(e)
	return e
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	if h.metrics != nil {
		e.GET("/metrics", echo.WrapHandler(h.metrics))
	}

	api := e.Group("/api", requireUser)
	api.GET("/widgets", h.ListWidgets)
	api.POST("/widgets", h.CreateWidget)
	api.GET("/widgets/:id", h.GetWidget)
	api.PUT("/widgets/:id", h.EditWidget)
	api.DELETE("/widgets/:id", h.DeleteWidget)

	api.GET("/reports", h.ListReports)
	api.POST("/reports", h.CreateReport)
	api.GET("/reports/:id", h.GetReport)
	api.PUT("/reports/:id", h.EditReport)
	api.DELETE("/reports/:id", h.DeleteReport)
	api.POST("/reports/:id/preview", h.PreviewReport)
	api.GET("/reports/:id/download", h.DownloadReport)
	api.GET("/reports/:id/forecast", h.ForecastReport)

	api.POST("/uploads", h.InspectUpload)
}

func requireUser(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if user(c) == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "missing "+UserHeader+" header")
		}
		return next(c)
	}
}

func user(c echo.Context) string { return c.Request().Header.Get(UserHeader) }

type errorBody struct {
	Error string `json:"error"`
}

// statusOf maps service errors to a status code and a client message.
func statusOf(err error) (int, string) {
	var (
		he  *echo.HTTPError
		ae  *generate.APIError
		un  *generate.UnreachableError
		ea  *generate.EmptyAnswerError
	)
	switch {
	case errors.As(err, &he):
		return he.Code, fmt.Sprint(he.Message)
	case errors.Is(err, service.ErrNoData):
		return http.StatusNotFound, "No data to export."
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, service.ErrForbidden), errors.Is(err, service.ErrBuiltin):
		return http.StatusForbidden, err.Error()
	case errors.Is(err, service.ErrInvalid):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, frame.ErrLoad), errors.Is(err, frame.ErrSchema), errors.Is(err, frame.ErrNoValidData):
		return http.StatusUnprocessableEntity, err.Error()
	case errors.As(err, &ae), errors.As(err, &un), errors.As(err, &ea):
		return http.StatusBadGateway, err.Error()
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "request cancelled"
	}
	return http.StatusInternalServerError, "internal error"
}

func (h *Handler) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	status, msg := statusOf(err)
	if status == http.StatusInternalServerError {
		h.log.Error("request failed", "uri", c.Request().RequestURI, "err", err)
	}
	if c.Request().Method == http.MethodHead {
		err = c.NoContent(status)
	} else {
		err = c.JSON(status, errorBody{Error: msg})
	}
	if err != nil {
		h.log.Error("write error response", "err", err)
	}
}

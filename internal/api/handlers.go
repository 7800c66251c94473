package api

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/wdm0006/nimbus/internal/service"
)

// --- widgets ---

type widgetRequest struct {
	Name        string `json:"name" form:"name"`
	Description string `json:"description" form:"description"`
	Code        string `json:"code" form:"code"`
	// Generate asks the text generator for the code, from Description.
	Generate bool `json:"generate" form:"generate"`
}

func (h *Handler) ListWidgets(c echo.Context) error {
	ws, err := h.widgets.List(c.Request().Context())
	if err != nil {
		return err
	}
	if ws == nil {
		return c.JSON(http.StatusOK, []any{})
	}
	return c.JSON(http.StatusOK, ws)
}

func (h *Handler) GetWidget(c echo.Context) error {
	id, err := widgetID(c)
	if err != nil {
		return err
	}
	w, err := h.widgets.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, w)
}

func (h *Handler) CreateWidget(c echo.Context) error {
	var req widgetRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	ctx := c.Request().Context()
	if req.Generate {
		w, err := h.widgets.Generate(ctx, user(c), req.Name, req.Description)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusCreated, w)
	}
	w, err := h.widgets.Create(ctx, user(c), req.Name, req.Description, req.Code)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, w)
}

func (h *Handler) EditWidget(c echo.Context) error {
	id, err := widgetID(c)
	if err != nil {
		return err
	}
	var req widgetRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	w, err := h.widgets.Edit(c.Request().Context(), user(c), id, req.Name, req.Description)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, w)
}

func (h *Handler) DeleteWidget(c echo.Context) error {
	id, err := widgetID(c)
	if err != nil {
		return err
	}
	if err := h.widgets.Delete(c.Request().Context(), user(c), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// --- reports ---

func (h *Handler) ListReports(c echo.Context) error {
	rs, err := h.reports.List(c.Request().Context(), user(c))
	if err != nil {
		return err
	}
	if rs == nil {
		return c.JSON(http.StatusOK, []any{})
	}
	return c.JSON(http.StatusOK, rs)
}

func (h *Handler) GetReport(c echo.Context) error {
	id, err := reportID(c)
	if err != nil {
		return err
	}
	r, err := h.reports.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, r)
}

// CreateReport takes a form with title, information, widgets (comma
// separated ids, in order) and an optional csv_file.
func (h *Handler) CreateReport(c echo.Context) error {
	up, closeFn, err := formUpload(c, "csv_file")
	if err != nil {
		return err
	}
	defer closeFn()
	r, err := h.reports.Create(c.Request().Context(), service.CreateReport{
		Owner:       user(c),
		Title:       c.FormValue("title"),
		Information: c.FormValue("information"),
		WidgetIDs:   ParseIDs(c.FormValue("widgets")),
		CSV:         up,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, r)
}

// EditReport changes only the form fields that are present.
func (h *Handler) EditReport(c echo.Context) error {
	id, err := reportID(c)
	if err != nil {
		return err
	}
	params, err := c.FormParams()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	up, closeFn, err := formUpload(c, "csv_file")
	if err != nil {
		return err
	}
	defer closeFn()
	in := service.EditReport{ID: id, Owner: user(c), CSV: up}
	if v, ok := params["title"]; ok {
		in.Title = &v[0]
	}
	if v, ok := params["information"]; ok {
		in.Information = &v[0]
	}
	if v, ok := params["widgets"]; ok {
		in.WidgetIDs = ParseIDs(v[0])
	}
	r, err := h.reports.Edit(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, r)
}

func (h *Handler) DeleteReport(c echo.Context) error {
	id, err := reportID(c)
	if err != nil {
		return err
	}
	if err := h.reports.Delete(c.Request().Context(), user(c), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// PreviewReport traces the widgets form value over the report's data and
// answers {"preview": rows} or {"preview": {"error": ...}}.
func (h *Handler) PreviewReport(c echo.Context) error {
	id, err := reportID(c)
	if err != nil {
		return err
	}
	p, err := h.reports.Preview(c.Request().Context(), id, ParseIDs(c.FormValue("widgets")))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"preview": p})
}

// DownloadReport renders the whole export before answering, so a failed
// write is an error response rather than a truncated file.
func (h *Handler) DownloadReport(c echo.Context) error {
	id, err := reportID(c)
	if err != nil {
		return err
	}
	format, err := service.ParseFormat(c.QueryParam("format"))
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	name, err := h.reports.Download(c.Request().Context(), id, format, &buf)
	if err != nil {
		return err
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", name))
	return c.Blob(http.StatusOK, format.ContentType(), buf.Bytes())
}

func (h *Handler) ForecastReport(c echo.Context) error {
	id, err := reportID(c)
	if err != nil {
		return err
	}
	horizon := 0
	if v := c.QueryParam("horizon"); v != "" {
		if horizon, err = strconv.Atoi(v); err != nil || horizon < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "horizon must be a non-negative integer")
		}
	}
	res, err := h.reports.Forecast(c.Request().Context(), id, horizon)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

// InspectUpload stores csv_file and returns its profile and first rows.
func (h *Handler) InspectUpload(c echo.Context) error {
	up, closeFn, err := formUpload(c, "csv_file")
	if err != nil {
		return err
	}
	defer closeFn()
	if up == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "csv_file is required")
	}
	in, err := h.reports.Inspect(c.Request().Context(), *up)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, in)
}

// --- helpers ---

// ParseIDs reads a comma separated id list, skipping entries that are not
// plain digits.
func ParseIDs(s string) []int64 {
	ids := []int64{}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" || strings.TrimLeft(part, "0123456789") != "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

func widgetID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid widget id")
	}
	return id, nil
}

func reportID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid report id")
	}
	return id, nil
}

// formUpload opens the named multipart file. A missing file gives a nil
// upload.
func formUpload(c echo.Context, field string) (*service.Upload, func(), error) {
	fh, err := c.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return nil, func() {}, nil
	}
	if err != nil {
		return nil, nil, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	f, err := fh.Open()
	if err != nil {
		return nil, nil, err
	}
	return &service.Upload{Filename: fh.Filename, Body: f}, func() { _ = f.Close() }, nil
}

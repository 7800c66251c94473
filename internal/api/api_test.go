package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/wdm0006/nimbus/internal/filestore"
	"github.com/wdm0006/nimbus/internal/generate"
	"github.com/wdm0006/nimbus/internal/metrics"
	"github.com/wdm0006/nimbus/internal/service"
	"github.com/wdm0006/nimbus/internal/store"
	"github.com/wdm0006/nimbus/pkg/frame"
	"github.com/wdm0006/nimbus/pkg/pipeline"
	"github.com/wdm0006/nimbus/pkg/registry"
)

const customers = `Customer ID,First Name,Last Name,Email,Date
1,ann,lee,a@x.io,2024-09-05
1,ann,lee,a@x.io,2024-09-05
2,bob,kim,b@x.io,2024-10-20
`

type testServer struct {
	e   *echo.Echo
	ids map[string]int64
}

func newServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()
	st, err := store.Open(ctx, store.Config{Driver: "sqlite", DSN: filepath.Join(dir, "nimbus.db")})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = st.Close() })
	files, err := filestore.New(filepath.Join(dir, "uploads"))
	if err != nil {
		t.Fatal(err)
	}
	m, err := metrics.New()
	if err != nil {
		t.Fatal(err)
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	now := func() time.Time { return time.Date(2024, 9, 7, 9, 0, 0, 0, time.UTC) }
	exec := pipeline.New(registry.New(registry.Options{Now: now, Logger: log}), pipeline.Options{Logger: log, Observer: m})
	widgets := service.NewWidgets(service.WidgetOptions{Store: st, Logger: log})
	seeded, err := widgets.Seed(ctx)
	if err != nil {
		t.Fatal(err)
	}
	ts := &testServer{ids: map[string]int64{}}
	for _, w := range seeded {
		ts.ids[w.Name] = w.ID
	}
	ts.e = New(Options{
		Reports: service.NewReports(service.ReportOptions{Store: st, Files: files, Executor: exec, Runs: m, Logger: log}),
		Widgets: widgets,
		Metrics: m.Handler(),
		Logger:  log,
	})
	return ts
}

func (ts *testServer) do(t *testing.T, req *http.Request, user string) *httptest.ResponseRecorder {
	t.Helper()
	if user != "" {
		req.Header.Set(UserHeader, user)
	}
	rec := httptest.NewRecorder()
	ts.e.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) widgetList(names ...string) string {
	parts := make([]string, len(names))
	for i, n := range names {
		parts[i] = strconv.FormatInt(ts.ids[n], 10)
	}
	return strings.Join(parts, ",")
}

func multipartRequest(t *testing.T, method, target string, fields map[string]string, csv string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	if csv != "" {
		fw, err := mw.CreateFormFile("csv_file", "customers.csv")
		if err != nil {
			t.Fatal(err)
		}
		if _, err := io.WriteString(fw, csv); err != nil {
			t.Fatal(err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(method, target, &body)
	req.Header.Set(echo.HeaderContentType, mw.FormDataContentType())
	return req
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestParseIDs(t *testing.T) {
	cases := map[string][]int64{
		"":           {},
		"1,2,3":      {1, 2, 3},
		" 4 , x,5,":  {4, 5},
		"-1,2.5,007": {7},
		"3,3":        {3, 3},
	}
	for in, want := range cases {
		got := ParseIDs(in)
		if len(got) != len(want) {
			t.Fatalf("%q: got %v want %v", in, got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("%q: got %v want %v", in, got, want)
			}
		}
	}
}

func TestHealthAndAuth(t *testing.T) {
	ts := newServer(t)
	rec := ts.do(t, httptest.NewRequest(http.MethodGet, "/healthz", nil), "")
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("healthz: %d %q", rec.Code, rec.Body.String())
	}
	rec = ts.do(t, httptest.NewRequest(http.MethodGet, "/api/widgets", nil), "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestWidgetRoutes(t *testing.T) {
	ts := newServer(t)
	rec := ts.do(t, httptest.NewRequest(http.MethodGet, "/api/widgets", nil), "ann")
	if rec.Code != http.StatusOK {
		t.Fatalf("list: %d", rec.Code)
	}
	if list := decode[[]store.Widget](t, rec); len(list) != len(ts.ids) {
		t.Fatalf("expected %d widgets, got %d", len(ts.ids), len(list))
	}

	body := `{"name":"First Row","description":"keeps one row","code":"def transform(df):\n    return df[:1]\n"}`
	req := httptest.NewRequest(http.MethodPost, "/api/widgets", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec = ts.do(t, req, "ann")
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rec.Code, rec.Body.String())
	}
	w := decode[store.Widget](t, rec)
	path := "/api/widgets/" + strconv.FormatInt(w.ID, 10)

	req = httptest.NewRequest(http.MethodPut, path, strings.NewReader(`{"name":"First","description":"d"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if rec = ts.do(t, req, "bob"); rec.Code != http.StatusForbidden {
		t.Fatalf("edit by another user: %d", rec.Code)
	}
	builtin := "/api/widgets/" + strconv.FormatInt(ts.ids["Row Deduplicator"], 10)
	if rec = ts.do(t, httptest.NewRequest(http.MethodDelete, builtin, nil), "ann"); rec.Code != http.StatusForbidden {
		t.Fatalf("delete builtin: %d", rec.Code)
	}
	if rec = ts.do(t, httptest.NewRequest(http.MethodDelete, path, nil), "ann"); rec.Code != http.StatusNoContent {
		t.Fatalf("delete: %d %s", rec.Code, rec.Body.String())
	}
	if rec = ts.do(t, httptest.NewRequest(http.MethodGet, path, nil), "ann"); rec.Code != http.StatusNotFound {
		t.Fatalf("get deleted: %d", rec.Code)
	}
	if rec = ts.do(t, httptest.NewRequest(http.MethodGet, "/api/widgets/abc", nil), "ann"); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad id: %d", rec.Code)
	}
}

func TestReportFlow(t *testing.T) {
	ts := newServer(t)
	rec := ts.do(t, multipartRequest(t, http.MethodPost, "/api/reports", map[string]string{
		"title":   "Q3 customers",
		"widgets": ts.widgetList("Row Deduplicator", "Column Dropper"),
	}, customers), "ann")
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rec.Code, rec.Body.String())
	}
	r := decode[store.Report](t, rec)
	base := "/api/reports/" + r.ID.String()

	if list := decode[[]store.Report](t, ts.do(t, httptest.NewRequest(http.MethodGet, "/api/reports", nil), "ann")); len(list) != 1 {
		t.Fatalf("ann should see one report, got %d", len(list))
	}
	if list := decode[[]store.Report](t, ts.do(t, httptest.NewRequest(http.MethodGet, "/api/reports", nil), "bob")); len(list) != 0 {
		t.Fatalf("bob should see none, got %d", len(list))
	}

	rec = ts.do(t, multipartRequest(t, http.MethodPost, base+"/preview", map[string]string{
		"widgets": ts.widgetList("Row Deduplicator", "Column Dropper", "Uppercase Name Converter"),
	}, ""), "ann")
	if rec.Code != http.StatusOK {
		t.Fatalf("preview: %d %s", rec.Code, rec.Body.String())
	}
	want := `{"preview":[{"customer id":1,"first name":"ANN","last name":"LEE","date":"2024-09-05"},{"customer id":2,"first name":"BOB","last name":"KIM","date":"2024-10-20"}]}`
	if got := strings.TrimSpace(rec.Body.String()); got != want {
		t.Fatalf("preview\n got %s\nwant %s", got, want)
	}

	rec = ts.do(t, httptest.NewRequest(http.MethodGet, base+"/download?format=csv", nil), "ann")
	if rec.Code != http.StatusOK {
		t.Fatalf("download: %d %s", rec.Code, rec.Body.String())
	}
	if cd := rec.Header().Get(echo.HeaderContentDisposition); !strings.Contains(cd, "Q3_customers.csv") {
		t.Fatalf("content disposition: %q", cd)
	}
	if got := rec.Body.String(); got != "customer id,first name,last name,date\n1,ann,lee,2024-09-05\n2,bob,kim,2024-10-20\n" {
		t.Fatalf("download body: %q", got)
	}
	if rec = ts.do(t, httptest.NewRequest(http.MethodGet, base+"/download?format=xls", nil), "ann"); rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown format: %d", rec.Code)
	}

	rec = ts.do(t, multipartRequest(t, http.MethodPut, base, map[string]string{"title": "Renamed"}, ""), "bob")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("edit by another user: %d", rec.Code)
	}
	rec = ts.do(t, multipartRequest(t, http.MethodPut, base, map[string]string{"title": "Renamed"}, ""), "ann")
	if rec.Code != http.StatusOK {
		t.Fatalf("edit: %d %s", rec.Code, rec.Body.String())
	}
	edited := decode[store.Report](t, rec)
	if edited.Title != "Renamed" || len(edited.WidgetIDs) != 2 {
		t.Fatalf("edit should only change the title: %+v", edited)
	}

	if rec = ts.do(t, httptest.NewRequest(http.MethodDelete, base, nil), "ann"); rec.Code != http.StatusNoContent {
		t.Fatalf("delete: %d", rec.Code)
	}
	if rec = ts.do(t, httptest.NewRequest(http.MethodGet, base, nil), "ann"); rec.Code != http.StatusNotFound {
		t.Fatalf("get deleted: %d", rec.Code)
	}
	if rec = ts.do(t, httptest.NewRequest(http.MethodGet, "/api/reports/not-a-uuid", nil), "ann"); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad id: %d", rec.Code)
	}

	rec = ts.do(t, httptest.NewRequest(http.MethodGet, "/metrics", nil), "")
	if !strings.Contains(rec.Body.String(), `nimbus_runs_total{mode="trace",status="success"} 1`) {
		t.Fatalf("metrics missing trace run:\n%s", rec.Body.String())
	}
}

func TestDownloadWithoutData(t *testing.T) {
	ts := newServer(t)
	rec := ts.do(t, multipartRequest(t, http.MethodPost, "/api/reports", map[string]string{"title": "empty"}, ""), "ann")
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rec.Code, rec.Body.String())
	}
	r := decode[store.Report](t, rec)
	rec = ts.do(t, httptest.NewRequest(http.MethodGet, "/api/reports/"+r.ID.String()+"/download", nil), "ann")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if body := decode[errorBody](t, rec); body.Error != "No data to export." {
		t.Fatalf("error body: %+v", body)
	}
}

func TestDownloadIsBufferedAndFailsCleanly(t *testing.T) {
	ts := newServer(t)
	rec := ts.do(t, multipartRequest(t, http.MethodPost, "/api/reports", map[string]string{"title": "Q3"}, customers), "ann")
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rec.Code, rec.Body.String())
	}
	r := decode[store.Report](t, rec)
	base := "/api/reports/" + r.ID.String() + "/download"

	rec = ts.do(t, httptest.NewRequest(http.MethodGet, base+"?format=parquet", nil), "ann")
	if rec.Code != http.StatusOK {
		t.Fatalf("parquet download: %d %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get(echo.HeaderContentType); ct != "application/vnd.apache.parquet" {
		t.Fatalf("content type %q", ct)
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("PAR1")) {
		t.Fatal("body is not a parquet file")
	}

	// a source that can no longer be read must not produce a 200 with a partial body
	if err := os.Remove(r.CSVPath); err != nil {
		t.Fatal(err)
	}
	rec = ts.do(t, httptest.NewRequest(http.MethodGet, base+"?format=csv", nil), "ann")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	if cd := rec.Header().Get(echo.HeaderContentDisposition); cd != "" {
		t.Fatalf("error response carries an attachment header %q", cd)
	}
	if body := decode[errorBody](t, rec); body.Error == "" {
		t.Fatal("expected an error message")
	}
}

func TestCreateReportErrors(t *testing.T) {
	ts := newServer(t)
	rec := ts.do(t, multipartRequest(t, http.MethodPost, "/api/reports", map[string]string{"title": "bad"}, "a,b\n1,2,3\n"), "ann")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("malformed csv: %d %s", rec.Code, rec.Body.String())
	}
	rec = ts.do(t, multipartRequest(t, http.MethodPost, "/api/reports", map[string]string{"widgets": "1"}, ""), "ann")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing title: %d %s", rec.Code, rec.Body.String())
	}
}

func TestForecastAndInspect(t *testing.T) {
	ts := newServer(t)
	series := "date,value\n2024-01-01,1\n2024-01-02,2\n2024-01-03,3\n"
	rec := ts.do(t, multipartRequest(t, http.MethodPost, "/api/reports", map[string]string{"title": "series"}, series), "ann")
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rec.Code, rec.Body.String())
	}
	r := decode[store.Report](t, rec)
	rec = ts.do(t, httptest.NewRequest(http.MethodGet, "/api/reports/"+r.ID.String()+"/forecast?horizon=2", nil), "ann")
	if rec.Code != http.StatusOK {
		t.Fatalf("forecast: %d %s", rec.Code, rec.Body.String())
	}
	if got := strings.TrimSpace(rec.Body.String()); got != `{"2024-01-04":4,"2024-01-05":5}` {
		t.Fatalf("forecast body: %s", got)
	}
	rec = ts.do(t, httptest.NewRequest(http.MethodGet, "/api/reports/"+r.ID.String()+"/forecast?horizon=x", nil), "ann")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad horizon: %d", rec.Code)
	}

	rec = ts.do(t, multipartRequest(t, http.MethodPost, "/api/uploads", nil, series), "ann")
	if rec.Code != http.StatusOK {
		t.Fatalf("inspect: %d %s", rec.Code, rec.Body.String())
	}
	if rec = ts.do(t, multipartRequest(t, http.MethodPost, "/api/uploads", nil, ""), "ann"); rec.Code != http.StatusBadRequest {
		t.Fatalf("inspect without file: %d", rec.Code)
	}
}

func TestStatusOf(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{echo.NewHTTPError(http.StatusTeapot, "x"), http.StatusTeapot},
		{service.ErrNoData, http.StatusNotFound},
		{fmt.Errorf("get: %w", store.ErrNotFound), http.StatusNotFound},
		{service.ErrBuiltin, http.StatusForbidden},
		{fmt.Errorf("%w: bad", service.ErrInvalid), http.StatusBadRequest},
		{&frame.LoadError{Source: "x.csv", Err: io.ErrUnexpectedEOF}, http.StatusUnprocessableEntity},
		{fmt.Errorf("generate widget: %w", &generate.UnreachableError{Host: "h", Err: io.EOF}), http.StatusBadGateway},
		{io.ErrUnexpectedEOF, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got, _ := statusOf(tc.err); got != tc.want {
			t.Fatalf("%v: got %d want %d", tc.err, got, tc.want)
		}
	}
}

package httpapi

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/javajack/xlledger/internal/config"
)

type testServer struct {
	handler http.Handler
	reg     *prometheus.Registry
	dir     string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Server.BaseDir = dir
	reg := prometheus.NewRegistry()
	h, err := NewHandler(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), reg)
	require.NoError(t, err)
	return &testServer{handler: h, reg: reg, dir: dir}
}

// writeSheet saves a single-sheet workbook under the server's base directory.
func (s *testServer) writeSheet(t *testing.T, file, sheet string, rows [][]any) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetSheetName("Sheet1", sheet))
	for r, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, r+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}
	path := filepath.Join(s.dir, file)
	require.NoError(t, f.SaveAs(path))
	return path
}

func (s *testServer) purchaseRegister(t *testing.T) string {
	return s.writeSheet(t, "register.xlsx", "Sales PR Jan", [][]any{
		{"Date", "Particulars", "Amount", "CGST", "SGST", "IGST"},
		{"2023-01-01", "Widgets", 500, 0, 18, 0},
		{"2023-01-02", "Gadgets", 500, 9, 9, 0},
		{"Total", "", 1000, 9, 27, 0},
	})
}

func (s *testServer) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	return s.doWithHeaders(t, method, target, body, http.Header{"Content-Type": {"application/json"}})
}

func (s *testServer) doWithHeaders(t *testing.T, method, target string, body any, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestSheets(t *testing.T) {
	s := newTestServer(t)
	s.purchaseRegister(t)

	rec := s.do(t, http.MethodGet, "/api/v1/sheets?path=register.xlsx", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decodeBody[sheetsResponse](t, rec)
	assert.Equal(t, filepath.Join(s.dir, "register.xlsx"), resp.Path)
	require.Len(t, resp.Sheets, 1)
	assert.Equal(t, "Sales PR Jan", resp.Sheets[0].Name)
	assert.True(t, resp.Sheets[0].Matches)

	rec = s.do(t, http.MethodGet, "/api/v1/sheets", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION", decodeBody[problem](t, rec).Code)

	rec = s.do(t, http.MethodGet, "/api/v1/sheets?path=missing.xlsx", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPreview(t *testing.T) {
	s := newTestServer(t)
	s.purchaseRegister(t)

	rec := s.do(t, http.MethodPost, "/api/v1/preview", map[string]any{"path": "register.xlsx", "rows": 1})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decodeBody[previewResponse](t, rec)
	assert.NotEmpty(t, resp.Session)
	assert.Equal(t, "Sales PR Jan", resp.Sheet)
	assert.Equal(t, boundsDTO{HeaderRow: 1, DataStart: 2, DataEnd: 3}, resp.Bounds)
	assert.Equal(t, []string{"Date", "Particulars", "Amount", "CGST", "SGST", "IGST"}, resp.Columns)
	assert.Equal(t, 2, resp.Total)
	assert.Equal(t, [][]string{{"2023-01-01", "Widgets", "500", "0", "18", "0"}}, resp.Rows)
}

func TestPreview_AmbiguousHeader(t *testing.T) {
	s := newTestServer(t)
	s.writeSheet(t, "odd.xlsx", "PR", [][]any{{"alpha", "beta"}, {"gamma", "delta"}})

	rec := s.do(t, http.MethodPost, "/api/v1/preview", map[string]any{"path": "odd.xlsx"})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	pr := decodeBody[problem](t, rec)
	assert.Equal(t, "AMBIGUOUS_HEADER", pr.Code)
	assert.Equal(t, "/errors/ambiguous-header", pr.Type)
	assert.Equal(t, []int{1, 2}, pr.Candidates)
	assert.NotEmpty(t, pr.RequestID)
}

func TestProcess(t *testing.T) {
	s := newTestServer(t)
	s.purchaseRegister(t)

	rec := s.do(t, http.MethodPost, "/api/v1/process", map[string]any{
		"path":    "register.xlsx",
		"inspect": []string{"CGST", "SGST", "IGST"},
		"output":  "out/../register_processed.xlsx",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decodeBody[processResponse](t, rec)
	out := filepath.Join(s.dir, "register_processed.xlsx")
	assert.Equal(t, out, resp.Output)
	assert.Equal(t, 2, resp.Rows)
	assert.Equal(t, "LEDGER HEAD", resp.Columns[len(resp.Columns)-1])
	require.Len(t, resp.Diagnostics, 1)
	assert.Equal(t, diagnosticDTO{
		Severity: "INFO",
		Code:     "MULTIPLE_NONZERO",
		Row:      2,
		Cell:     "'Sales PR Jan'!G3",
		Message:  `CGST, SGST all non-zero; rule first-non-zero chose "CGST"`,
	}, resp.Diagnostics[0])

	_, err := os.Stat(out)
	require.NoError(t, err)

	rec = s.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `xlledger_http_requests_total{code="OK",route="process"} 1`)
	assert.Contains(t, rec.Body.String(), `xlledger_diagnostics_total{code="MULTIPLE_NONZERO"} 1`)
	assert.Contains(t, rec.Body.String(), `xlledger_stage_duration_seconds_count{outcome="ok",stage="write"} 1`)
}

func TestProcess_WithRuleAndBounds(t *testing.T) {
	s := newTestServer(t)
	s.writeSheet(t, "odd.xlsx", "PR", [][]any{
		{"alpha", "CGST", "IGST"},
		{"gamma", 9, 18},
	})

	rec := s.do(t, http.MethodPost, "/api/v1/process", map[string]any{
		"path":    "odd.xlsx",
		"bounds":  map[string]int{"header_row": 1, "data_start": 2, "data_end": 2},
		"inspect": []string{"CGST", "IGST"},
		"rule":    "largest",
		"output":  "odd_out.xlsx",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decodeBody[processResponse](t, rec)
	assert.Equal(t, boundsDTO{HeaderRow: 1, DataStart: 2, DataEnd: 2}, resp.Bounds)
	assert.Equal(t, 1, resp.Rows)
}

func TestProcess_WithRegion(t *testing.T) {
	s := newTestServer(t)
	s.writeSheet(t, "odd.xlsx", "Ledger", [][]any{
		{"prepared by accounts"},
		{"alpha", "CGST", "IGST"},
		{"gamma", 9, 0},
		{"delta", 0, 18},
	})

	rec := s.do(t, http.MethodPost, "/api/v1/process", map[string]any{
		"path":    "odd.xlsx",
		"region":  "Ledger!A2:C3",
		"inspect": []string{"CGST", "IGST"},
		"output":  "odd_out.xlsx",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decodeBody[processResponse](t, rec)
	assert.Equal(t, "Ledger", resp.Sheet)
	assert.Equal(t, boundsDTO{HeaderRow: 2, DataStart: 3, DataEnd: 3}, resp.Bounds)
	assert.Equal(t, 1, resp.Rows)

	rec = s.do(t, http.MethodPost, "/api/v1/process", map[string]any{
		"path":   "odd.xlsx",
		"region": "Ledger!A2:C3",
		"bounds": map[string]int{"header_row": 2, "data_start": 3, "data_end": 3},
		"output": "odd_out.xlsx",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION", decodeBody[problem](t, rec).Code)

	rec = s.do(t, http.MethodPost, "/api/v1/process", map[string]any{
		"path":   "odd.xlsx",
		"region": "Ledger!2A",
		"output": "odd_out.xlsx",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_BOUNDS", decodeBody[problem](t, rec).Code)
}

func TestProcess_Failures(t *testing.T) {
	s := newTestServer(t)
	s.purchaseRegister(t)

	cases := []struct {
		name   string
		body   any
		status int
		code   string
	}{
		{"malformed json", `{"path":`, http.StatusBadRequest, "VALIDATION"},
		{"missing output", map[string]any{"path": "register.xlsx"}, http.StatusBadRequest, "VALIDATION"},
		{"unknown rule", map[string]any{"path": "register.xlsx", "output": "o.xlsx", "rule": "random"}, http.StatusBadRequest, "VALIDATION"},
		{"expr without expression", map[string]any{"path": "register.xlsx", "output": "o.xlsx", "rule": "expr"}, http.StatusBadRequest, "VALIDATION"},
		{"unknown column", map[string]any{"path": "register.xlsx", "output": "o.xlsx", "add": []string{"CESS"}}, http.StatusBadRequest, "UNKNOWN_COLUMN"},
		{"missing designated column", map[string]any{"path": "register.xlsx", "output": "o.xlsx", "inspect": []string{"CESS"}}, http.StatusBadRequest, "COLUMN_NOT_FOUND"},
		{"escapes base dir", map[string]any{"path": "../register.xlsx", "output": "o.xlsx"}, http.StatusForbidden, "PATH_FORBIDDEN"},
		{"unsupported format", map[string]any{"path": "register.csv", "output": "o.xlsx"}, http.StatusUnsupportedMediaType, "UNSUPPORTED_FORMAT"},
		{"legacy output format", map[string]any{"path": "register.xlsx", "output": "o.xls"}, http.StatusInternalServerError, "WRITE_FAILURE"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, "/api/v1/process", tc.body)
			require.Equal(t, tc.status, rec.Code, rec.Body.String())
			pr := decodeBody[problem](t, rec)
			assert.Equal(t, tc.code, pr.Code)
			assert.Equal(t, tc.status, pr.Status)
		})
	}

	entries, err := os.ReadDir(s.dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasPrefix(e.Name(), "o."), "failed runs write nothing: %s", e.Name())
	}
}

func TestAPI_RequestGuards(t *testing.T) {
	s := newTestServer(t)
	s.purchaseRegister(t)
	body := map[string]any{"path": "register.xlsx"}

	rec := s.doWithHeaders(t, http.MethodPost, "/api/v1/preview", body, http.Header{"Content-Type": {"text/plain"}})
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)

	rec = s.doWithHeaders(t, http.MethodPost, "/api/v1/preview", body, http.Header{
		"Content-Type": {"application/json; charset=utf-8"},
		"Origin":       {"https://attacker.example"},
	})
	require.Equal(t, http.StatusForbidden, rec.Code, rec.Body.String())
	assert.Equal(t, "ORIGIN_FORBIDDEN", decodeBody[problem](t, rec).Code)

	rec = s.doWithHeaders(t, http.MethodGet, "/api/v1/sheets?path=register.xlsx", nil, http.Header{"Origin": {"null"}})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	for _, origin := range []string{"http://localhost:5173", "http://127.0.0.1:8080", "http://[::1]:3000"} {
		rec = s.doWithHeaders(t, http.MethodPost, "/api/v1/preview", body, http.Header{
			"Content-Type": {"application/json"},
			"Origin":       {origin},
		})
		assert.Equal(t, http.StatusOK, rec.Code, origin)
	}

	rec = s.doWithHeaders(t, http.MethodGet, "/api/v1/sheets?path=register.xlsx", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code, "bodiless requests need no content type")
}

func TestIsLocalOrigin(t *testing.T) {
	assert.True(t, isLocalOrigin("http://LOCALHOST:8080"))
	assert.True(t, isLocalOrigin("http://127.0.0.1"))
	assert.False(t, isLocalOrigin("http://localhost.example.com"))
	assert.False(t, isLocalOrigin("null"))
	assert.False(t, isLocalOrigin("file://"))
}

func TestResolvePath(t *testing.T) {
	h := &Handler{cfg: config.Default()}
	p, err := h.resolvePath("a/../b.xlsx")
	require.NoError(t, err)
	assert.Equal(t, "b.xlsx", p)

	base := t.TempDir()
	h.cfg.Server.BaseDir = base
	p, err = h.resolvePath("in/b.xlsx")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "in", "b.xlsx"), p)

	_, err = h.resolvePath(filepath.Join(base, "..", "elsewhere.xlsx"))
	assert.ErrorIs(t, err, errPathOutsideBase)
	_, err = h.resolvePath("..")
	assert.ErrorIs(t, err, errPathOutsideBase)
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	require.NoError(t, err)

	m.ObserveDiagnostics(map[string]int{"UNCLASSIFIED_ROW": 3})
	m.ObserveDiagnostics(map[string]int{"UNCLASSIFIED_ROW": 1, "NON_NUMERIC": 2})
	assert.Equal(t, 4.0, testutil.ToFloat64(m.diagnostics.WithLabelValues("UNCLASSIFIED_ROW")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.diagnostics.WithLabelValues("NON_NUMERIC")))

	m.observeRequest("preview", "")
	m.observeRequest("preview", "AMBIGUOUS_HEADER")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("preview", "OK")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.requests))

	_, err = NewMetrics(reg)
	assert.Error(t, err, "collectors register once per registry")
}

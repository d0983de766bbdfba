package web

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/USFAkbari/Excel-Tools/internal/config"
	"github.com/USFAkbari/Excel-Tools/internal/core"
)

const salesCSV = "Region,Amount\nNorth,10\nSouth,0\nNorth,5\n"

func newTestServer(t *testing.T, env map[string]string) *Server {
	t.Helper()
	cfg, err := config.LoadFrom(func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	})
	require.NoError(t, err)

	svc := core.NewService(core.Options{
		MaxConcurrent:     cfg.Ops.MaxConcurrent,
		MaxWait:           cfg.Ops.MaxWaitTime,
		MaxFileSize:       cfg.Upload.MaxFileSize,
		AllowedExtensions: cfg.Upload.AllowedExtensions,
	})
	return NewServer(svc, cfg)
}

func do(t *testing.T, s *Server, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func uploadRequest(t *testing.T, filename, body string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(body))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func postJSON(path string, body any) *http.Request {
	data, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func upload(t *testing.T, s *Server, body string) string {
	t.Helper()
	rec := do(t, s, uploadRequest(t, "sales.csv", body))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode[core.Result](t, rec)
	require.NotEmpty(t, res.FileID)
	return res.FileID
}

func TestRootAndHealth(t *testing.T) {
	s := newTestServer(t, nil)

	rec := do(t, s, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	root := decode[map[string]string](t, rec)
	assert.Equal(t, "Excel Tools API", root["message"])
	assert.Equal(t, "1.0.0", root["version"])
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, rec.Header().Get("Content-Security-Policy"))

	rec = do(t, s, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", decode[map[string]string](t, rec)["status"])
}

func TestUploadPreviewDownload(t *testing.T) {
	s := newTestServer(t, nil)

	rec := do(t, s, uploadRequest(t, "sales.csv", salesCSV))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode[core.Result](t, rec)
	assert.Equal(t, "File uploaded successfully", res.Message)
	assert.Equal(t, "sales.csv", res.Filename)
	id := res.FileID

	rec = do(t, s, httptest.NewRequest(http.MethodGet, "/api/preview/"+id+"?max_rows=2", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	preview := decode[map[string]any](t, rec)
	assert.Equal(t, []any{"Region", "Amount"}, preview["columns"])
	assert.EqualValues(t, 3, preview["total_rows"])
	assert.EqualValues(t, 2, preview["preview_rows"])

	rec = do(t, s, httptest.NewRequest(http.MethodGet, "/api/download/"+id+"?format=csv", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), id+".csv")
	assert.Contains(t, rec.Body.String(), "Region,Amount")
	assert.Contains(t, rec.Body.String(), "North,10")

	rec = do(t, s, httptest.NewRequest(http.MethodGet, "/api/download/"+id, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "spreadsheetml")

	rec = do(t, s, httptest.NewRequest(http.MethodGet, "/api/versions/"+id, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	version := decode[map[string]any](t, rec)
	assert.Equal(t, id, version["file_id"])
	assert.Equal(t, "upload", version["operation"])
}

func TestListVersions(t *testing.T) {
	s := newTestServer(t, nil)
	a := upload(t, s, salesCSV)
	b := upload(t, s, "x\n1\n")

	rec := do(t, s, httptest.NewRequest(http.MethodGet, "/api/versions", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	list := decode[struct {
		Versions []core.VersionInfo `json:"versions"`
	}](t, rec)
	require.Len(t, list.Versions, 2)
	ids := []string{list.Versions[0].ID, list.Versions[1].ID}
	assert.ElementsMatch(t, []string{a, b}, ids)
	for _, v := range list.Versions {
		assert.Equal(t, "upload", v.Operation)
		if v.ID == a {
			assert.Equal(t, 3, v.Rows)
			assert.Equal(t, []string{"Region", "Amount"}, v.Columns)
		}
	}

	rec = do(t, s, httptest.NewRequest(http.MethodGet, "/api/versions?limit=1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[map[string][]any](t, rec)["versions"], 1)

	rec = do(t, s, httptest.NewRequest(http.MethodGet, "/api/versions?limit=0", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPreviewPage(t *testing.T) {
	s := newTestServer(t, nil)
	id := upload(t, s, "Name,Score\n<b>x</b>,3\nplain,4\n")

	rec := do(t, s, httptest.NewRequest(http.MethodGet, "/preview/"+id, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, body, "<th>Score</th>")
	assert.Contains(t, body, "&lt;b&gt;x&lt;/b&gt;")
	assert.NotContains(t, body, "<b>x</b>")
	assert.Contains(t, body, "Numeric columns")
}

func TestUploadRejections(t *testing.T) {
	s := newTestServer(t, map[string]string{"UPLOAD_MAX_FILE_SIZE": "16"})

	rec := do(t, s, uploadRequest(t, "notes.txt", "hello"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "FILE002", decode[ErrorResponse](t, rec).Code)

	rec = do(t, s, uploadRequest(t, "big.csv", salesCSV))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "FILE001", decode[ErrorResponse](t, rec).Code)

	req := httptest.NewRequest(http.MethodPost, "/api/upload", strings.NewReader("not multipart"))
	rec = do(t, s, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "FILE003", decode[ErrorResponse](t, rec).Code)
}

func TestOperations(t *testing.T) {
	s := newTestServer(t, nil)
	id := upload(t, s, salesCSV)

	rec := do(t, s, postJSON("/api/sort", map[string]any{"file_id": id, "column": "Amount", "order": "desc"}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	sorted := decode[core.Result](t, rec)
	assert.Equal(t, "Data sorted successfully", sorted.Message)
	assert.Equal(t, "Amount", sorted.Metadata["sorted_by"])

	rec = do(t, s, postJSON("/api/filter", map[string]any{
		"file_id":    sorted.FileID,
		"conditions": []map[string]any{{"column": "Region", "operator": "equals", "value": "North"}},
	}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	filtered := decode[core.Result](t, rec)
	assert.EqualValues(t, 2, filtered.Metadata["filtered_rows"])

	rec = do(t, s, postJSON("/api/split", map[string]any{"file_id": id, "method": "by_row_count", "row_count": 2}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	split := decode[core.Result](t, rec)
	assert.Len(t, split.FileIDs, 2)
	assert.Equal(t, "Data split into 2 files", split.Message)

	rec = do(t, s, postJSON("/api/merge", map[string]any{"file_ids": split.FileIDs}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.EqualValues(t, 3, decode[core.Result](t, rec).Metadata["total_rows"])

	rec = do(t, s, httptest.NewRequest(http.MethodGet, "/api/audit-log?limit=2", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	audit := decode[map[string][]core.AuditEntry](t, rec)
	require.Len(t, audit["entries"], 2)
	assert.Equal(t, core.ActionMerge, audit["entries"][0].Action)
	assert.Equal(t, "192.0.2.1:1234", audit["entries"][0].IPAddress)

	rec = do(t, s, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 6, decode[core.Status](t, rec).StoredVersions)
}

func TestErrorMapping(t *testing.T) {
	s := newTestServer(t, nil)
	id := upload(t, s, salesCSV)

	tests := []struct {
		name       string
		req        *http.Request
		wantStatus int
		wantCode   string
	}{
		{"unknown file", postJSON("/api/sort", map[string]any{"file_id": "missing", "column": "Amount"}), http.StatusNotFound, "NF001"},
		{"unknown column", postJSON("/api/sort", map[string]any{"file_id": id, "column": "Nope"}), http.StatusBadRequest, "VAL001"},
		{"malformed body", httptest.NewRequest(http.MethodPost, "/api/sort", strings.NewReader("{")), http.StatusBadRequest, "VAL001"},
		{"empty body", httptest.NewRequest(http.MethodPost, "/api/sort", strings.NewReader("")), http.StatusBadRequest, "VAL001"},
		{"formula parse", postJSON("/api/calculated-column", map[string]any{"file_id": id, "new_column_name": "X", "formula": "Amount +"}), http.StatusBadRequest, "FML001"},
		{"division by zero", postJSON("/api/calculated-column", map[string]any{"file_id": id, "new_column_name": "X", "formula": "10 / Amount"}), http.StatusUnprocessableEntity, "FML002"},
		{"coercion", postJSON("/api/convert-types", map[string]any{"file_id": id, "conversions": map[string]string{"Region": "integer"}}), http.StatusUnprocessableEntity, "CNV001"},
		{"bad max_rows", httptest.NewRequest(http.MethodGet, "/api/preview/"+id+"?max_rows=abc", nil), http.StatusBadRequest, "VAL001"},
		{"bad format", httptest.NewRequest(http.MethodGet, "/api/download/"+id+"?format=pdf", nil), http.StatusBadRequest, "VAL001"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s, tt.req)
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			resp := decode[ErrorResponse](t, rec)
			assert.Equal(t, tt.wantCode, resp.Code)
			assert.NotEmpty(t, resp.Detail)
		})
	}
}

func TestStatusFor_Busy(t *testing.T) {
	assert.Equal(t, http.StatusTooManyRequests, statusFor(core.ErrTooManyOperations))
	assert.Equal(t, http.StatusInternalServerError, statusFor(assert.AnError))
}

func TestAPIKeyRequired(t *testing.T) {
	s := newTestServer(t, map[string]string{"REQUIRE_API_KEY": "true", "API_KEYS": "secret"})

	rec := do(t, s, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	req.Header.Set("X-API-Key", "secret")
	assert.Equal(t, http.StatusOK, do(t, s, req).Code)

	rec = do(t, s, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code, "health stays public")
}

func TestCORS(t *testing.T) {
	s := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/sort", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := do(t, s, req)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = do(t, s, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRateLimit(t *testing.T) {
	s := newTestServer(t, map[string]string{"RATE_LIMIT_REQUESTS_PER_MINUTE": "2"})

	for i := 0; i < 2; i++ {
		require.Equal(t, http.StatusOK, do(t, s, httptest.NewRequest(http.MethodGet, "/health", nil)).Code)
	}
	rec := do(t, s, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

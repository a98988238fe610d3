package v1

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"railcat/internal/client"
	"railcat/internal/model"
	"railcat/internal/schema"
	"railcat/internal/session"
	"railcat/internal/store"
	"railcat/internal/templates"
	"railcat/internal/wizard"
)

type stubParser struct{}

func (stubParser) Parse(_ context.Context, file model.File) (*model.ParseResult, error) {
	return &model.ParseResult{Filename: file.Name, Sheets: []model.SheetInfo{
		{Name: "品牌表", RowCount: 3, Columns: []string{"品牌名称", "网址"}},
	}}, nil
}

type stubBackend struct {
	executeErr error
}

func (stubBackend) Preview(context.Context, model.File, model.ImportConfig) (*model.PreviewResult, error) {
	return &model.PreviewResult{Success: true, CanProceed: true}, nil
}

func (b stubBackend) Execute(context.Context, model.File, model.ImportConfig) (*model.ExecuteResult, error) {
	if b.executeErr != nil {
		return nil, b.executeErr
	}
	return &model.ExecuteResult{Success: true, Summary: map[string]int{"brand": 3}}, nil
}

type response struct {
	Success    bool            `json:"success"`
	ID         string          `json:"id"`
	Error      string          `json:"error"`
	Violations []string        `json:"violations"`
	State      wizard.Snapshot `json:"state"`
}

type apiHarness struct {
	t      *testing.T
	router *gin.Engine
}

func newAPIHarness(t *testing.T, backend stubBackend) *apiHarness {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zaptest.NewLogger(t)
	reg := schema.Default()
	sessions := session.NewRegistry(func() *wizard.Wizard {
		return wizard.New(wizard.Options{
			Registry: reg,
			Parser:   stubParser{},
			Backend:  backend,
			Logger:   logger,
		})
	}, time.Minute, logger)
	t.Cleanup(sessions.Close)

	router := gin.New()
	NewHandler(sessions, reg, nil, logger).RegisterRoutes(router.Group("/api"))
	return &apiHarness{t: t, router: router}
}

func (h *apiHarness) do(method, path string, body any) (int, response) {
	h.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(h.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	return h.serve(req)
}

func (h *apiHarness) upload(id, filename string) (int, response) {
	h.t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(h.t, err)
	_, _ = fw.Write([]byte("PK fake workbook"))
	require.NoError(h.t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/wizards/"+id+"/file", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return h.serve(req)
}

func (h *apiHarness) serve(req *http.Request) (int, response) {
	h.t.Helper()
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	var resp response
	require.NoError(h.t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return rec.Code, resp
}

func TestWizardFlowOverHTTP(t *testing.T) {
	h := newAPIHarness(t, stubBackend{})

	code, resp := h.do(http.MethodPost, "/api/wizards", nil)
	require.Equal(t, http.StatusCreated, code)
	id := resp.ID
	require.NotEmpty(t, id)
	assert.Equal(t, wizard.StepFile, resp.State.State.CurrentStep)

	code, resp = h.do(http.MethodPost, "/api/wizards/"+id+"/next", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, []string{"请选择要导入的 Excel 文件"}, resp.Violations)

	code, resp = h.upload(id, "brands.xlsx")
	require.Equal(t, http.StatusOK, code, resp.Error)
	assert.True(t, resp.State.State.IsParsed)

	code, _ = h.do(http.MethodPost, "/api/wizards/"+id+"/next", nil)
	require.Equal(t, http.StatusOK, code)

	code, resp = h.do(http.MethodPut, "/api/wizards/"+id+"/sheets/0", map[string]string{"sheet": "品牌表", "table": "brand"})
	require.Equal(t, http.StatusOK, code, resp.Error)
	require.NotNil(t, resp.State.Sheets)
	assert.Equal(t, 1, resp.State.Sheets.Progress.Mapped)

	code, _ = h.do(http.MethodPost, "/api/wizards/"+id+"/next", nil)
	require.Equal(t, http.StatusOK, code)

	code, resp = h.do(http.MethodPut, "/api/wizards/"+id+"/columns/brand/rows/0", map[string]string{"column": "品牌名称", "field": "name"})
	require.Equal(t, http.StatusOK, code, resp.Error)
	require.Len(t, resp.State.Columns, 1)
	assert.Empty(t, resp.State.Columns[0].Progress.MissingRequired)

	code, resp = h.do(http.MethodPost, "/api/wizards/"+id+"/next", nil)
	require.Equal(t, http.StatusOK, code, resp.Error)
	assert.Equal(t, wizard.StepConfirm, resp.State.State.CurrentStep)

	code, resp = h.do(http.MethodPost, "/api/wizards/"+id+"/execute", nil)
	require.Equal(t, http.StatusOK, code, resp.Error)
	assert.True(t, resp.State.State.ImportCompleted)

	code, resp = h.do(http.MethodPost, "/api/wizards/"+id+"/execute", nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.False(t, resp.Success)

	code, _ = h.do(http.MethodDelete, "/api/wizards/"+id, nil)
	assert.Equal(t, http.StatusOK, code)
	code, _ = h.do(http.MethodGet, "/api/wizards/"+id, nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestEditErrors(t *testing.T) {
	h := newAPIHarness(t, stubBackend{})
	_, resp := h.do(http.MethodPost, "/api/wizards", nil)
	id := resp.ID

	code, resp := h.upload(id, "brands.csv")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, wizard.ErrUnsupportedFile.Error(), resp.Error)

	code, _ = h.do(http.MethodPut, "/api/wizards/"+id+"/sheets/0", map[string]string{"sheet": "品牌表"})
	assert.Equal(t, http.StatusBadRequest, code, "sheet editing requires step 3")

	code, _ = h.do(http.MethodPut, "/api/wizards/"+id+"/sheets/x", map[string]string{"sheet": "品牌表"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = h.do(http.MethodPut, "/api/wizards/"+id+"/template", map[string]int{"id": 1})
	assert.Equal(t, http.StatusBadRequest, code, "template step is skipped")

	code, resp = h.do(http.MethodPut, "/api/wizards/"+id+"/save-template", map[string]string{"mode": "new", "name": " "})
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, []string{"请输入模板名称"}, resp.Violations)
}

func TestExecuteFailureStatus(t *testing.T) {
	h := newAPIHarness(t, stubBackend{executeErr: &client.APIError{Op: "execute", Message: "数据错误", Summary: map[string]int{"brand": 1}}})
	_, resp := h.do(http.MethodPost, "/api/wizards", nil)
	id := resp.ID

	h.upload(id, "brands.xlsx")
	h.do(http.MethodPost, "/api/wizards/"+id+"/next", nil)
	h.do(http.MethodPut, "/api/wizards/"+id+"/sheets/0", map[string]string{"sheet": "品牌表", "table": "brand"})
	h.do(http.MethodPost, "/api/wizards/"+id+"/next", nil)
	h.do(http.MethodPut, "/api/wizards/"+id+"/columns/brand/rows/0", map[string]string{"column": "品牌名称", "field": "name"})
	code, _ := h.do(http.MethodPost, "/api/wizards/"+id+"/next", nil)
	require.Equal(t, http.StatusOK, code)

	code, resp = h.do(http.MethodPost, "/api/wizards/"+id+"/execute", nil)
	assert.Equal(t, http.StatusBadGateway, code)
	assert.Equal(t, "数据错误", resp.Error)
	assert.Equal(t, wizard.StepColumns, resp.State.State.CurrentStep)
	assert.Equal(t, "导入失败: 数据错误", resp.State.State.LastError)
}

func TestStatusOf(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{&wizard.ValidationError{Violations: []string{"x"}}, http.StatusUnprocessableEntity},
		{fmt.Errorf("wrap: %w", wizard.ErrBusy), http.StatusConflict},
		{wizard.ErrImportCompleted, http.StatusConflict},
		{session.ErrNotFound, http.StatusNotFound},
		{fmt.Errorf("template 1: %w", templates.ErrNotFound), http.StatusNotFound},
		{templates.ErrNameRequired, http.StatusBadRequest},
		{&client.TimeoutError{Op: "preview", Timeout: time.Second}, http.StatusGatewayTimeout},
		{&client.TransportError{Op: "parse", Err: fmt.Errorf("refused")}, http.StatusBadGateway},
		{&client.APIError{Op: "execute"}, http.StatusBadGateway},
		{fmt.Errorf("other"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		if got := statusOf(c.err); got != c.want {
			t.Fatalf("statusOf(%v) = %d, want %d", c.err, got, c.want)
		}
	}
}

func TestTablesAndHistoryDisabled(t *testing.T) {
	h := newAPIHarness(t, stubBackend{})

	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/tables", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Tables []model.TableInfo `json:"tables"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Tables, 16)

	code, _ := h.do(http.MethodGet, "/api/import-logs", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

type stubHistory struct {
	limits []int
}

func (s *stubHistory) ListImportLogs(_ context.Context, limit int) ([]store.ImportLog, error) {
	s.limits = append(s.limits, limit)
	return []store.ImportLog{{ID: 1, Filename: "models.xlsx", Status: store.ImportStatusSuccess}}, nil
}

func TestImportLogsLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logger := zaptest.NewLogger(t)
	sessions := session.NewRegistry(nil, time.Minute, logger)
	t.Cleanup(sessions.Close)
	history := &stubHistory{}

	router := gin.New()
	NewHandler(sessions, schema.Default(), history, logger).RegisterRoutes(router.Group("/api"))

	get := func(path string) int {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, get("/api/import-logs"))
	assert.Equal(t, http.StatusOK, get("/api/import-logs?limit=5"))
	assert.Equal(t, http.StatusBadRequest, get("/api/import-logs?limit=abc"))
	assert.Equal(t, http.StatusBadRequest, get("/api/import-logs?limit=0"))
	assert.Equal(t, []int{20, 5}, history.limits)
}

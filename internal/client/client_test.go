package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"railcat/internal/model"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Options{BaseURL: srv.URL + "/", Timeout: 2 * time.Second, ImportTimeout: 2 * time.Second})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func TestParseSendsMultipartFile(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != PathParse {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			t.Errorf("form file: %v", err)
			return
		}
		data, _ := io.ReadAll(f)
		if hdr.Filename != "models.xlsx" || string(data) != "xlsx-bytes" {
			t.Errorf("unexpected upload %q %q", hdr.Filename, data)
		}
		if r.FormValue("config") != "" {
			t.Errorf("parse must not send config")
		}
		writeJSON(w, 200, map[string]any{
			"success":  true,
			"filename": "models.xlsx",
			"sheets": []map[string]any{
				{"name": "Locomotives", "row_count": 12, "columns": []string{"Brand", "Scale"}},
			},
		})
	})

	got, err := c.Parse(context.Background(), model.File{Name: "models.xlsx", Data: []byte("xlsx-bytes")})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := &model.ParseResult{
		Filename: "models.xlsx",
		Sheets:   []model.SheetInfo{{Name: "Locomotives", RowCount: 12, Columns: []string{"Brand", "Scale"}}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("parse result mismatch (-want +got):\n%s", diff)
	}
}

func TestPreviewSendsConfigJSON(t *testing.T) {
	t.Parallel()

	cfg := model.ImportConfig{
		SheetMappings: []model.SheetMapping{{SheetName: "Locomotives", TableName: "locomotive"}},
		ColumnMappings: map[string]*model.ColumnMapping{
			"locomotive": {Columns: []model.ColumnPair{{Source: "Brand", Target: "品牌"}}, ConflictMode: model.ConflictSkip},
		},
	}

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var got model.ImportConfig
		if err := json.Unmarshal([]byte(r.FormValue("config")), &got); err != nil {
			t.Errorf("decode config: %v", err)
		}
		if diff := cmp.Diff(cfg, got); diff != "" {
			t.Errorf("config mismatch (-want +got):\n%s", diff)
		}
		writeJSON(w, 200, map[string]any{
			"success":     true,
			"can_proceed": true,
			"previews": []map[string]any{
				{"table_name": "locomotive", "display_name": "机车模型", "row_count": 3},
			},
		})
	})

	res, err := c.Preview(context.Background(), model.File{Name: "a.xlsx", Data: []byte("x")}, cfg)
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if !res.Success || !res.CanProceed || len(res.Previews) != 1 || res.Previews[0].RowCount != 3 {
		t.Fatalf("unexpected preview result: %+v", res)
	}
}

func TestBusinessErrorCarriesDetailsAndSummary(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 400, map[string]any{
			"success": false,
			"error":   "导入失败",
			"errors":  []any{"第 3 行：品牌不存在", map[string]string{"message": "第 5 行：比例为空"}},
			"summary": map[string]int{"brand": 4},
		})
	})

	_, err := c.Execute(context.Background(), model.File{Name: "a.xlsx"}, model.ImportConfig{})
	if !errors.Is(err, ErrBusiness) {
		t.Fatalf("expected business error, got %v", err)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T", err)
	}
	if apiErr.Status != 400 || apiErr.Summary["brand"] != 4 {
		t.Fatalf("unexpected api error: %+v", apiErr)
	}
	want := "导入失败：第 3 行：品牌不存在；第 5 行：比例为空"
	if err.Error() != want {
		t.Fatalf("message mismatch:\n got: %s\nwant: %s", err.Error(), want)
	}
}

func TestTimeoutIsDistinctKind(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})

	c := New(Options{BaseURL: srv.URL, Timeout: 50 * time.Millisecond})
	_, err := c.Tables(context.Background())
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected timeout, got %v", err)
	}
	if errors.Is(err, ErrTransport) {
		t.Fatalf("timeout must not be reported as transport error")
	}
}

func TestTransportError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := New(Options{BaseURL: url, Timeout: time.Second})
	_, err := c.ListTemplates(context.Background())
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("expected transport error, got %v", err)
	}
}

func TestNonJSONErrorResponse(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("<html>not found</html>"))
	})

	err := c.DeleteTemplate(context.Background(), 7)
	if !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestTemplateCRUD(t *testing.T) {
	t.Parallel()

	var (
		mu    sync.Mutex
		calls []string
	)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls = append(calls, r.Method+" "+r.URL.Path)
		mu.Unlock()
		switch {
		case r.Method == http.MethodGet:
			writeJSON(w, 200, map[string]any{
				"success": true,
				"templates": []map[string]any{
					{"id": 1, "name": "默认", "created_at": "2024-03-01T10:20:30.123456", "config": map[string]any{}},
				},
			})
		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/copy"):
			var body map[string]string
			_ = json.NewDecoder(r.Body).Decode(&body)
			writeJSON(w, 201, map[string]any{"success": true, "template": map[string]any{"id": 2, "name": body["name"]}})
		case r.Method == http.MethodPost:
			writeJSON(w, 201, map[string]any{"success": true, "template": map[string]any{"id": 3, "name": "新模板"}})
		case r.Method == http.MethodPut:
			var upd model.TemplateUpdate
			_ = json.NewDecoder(r.Body).Decode(&upd)
			if upd.Name == nil || *upd.Name != "改名" || upd.Config != nil {
				t.Errorf("unexpected update body: %+v", upd)
			}
			writeJSON(w, 200, map[string]any{"success": true})
		default:
			writeJSON(w, 200, map[string]any{"success": true})
		}
	})

	ctx := context.Background()
	list, err := c.ListTemplates(ctx)
	if err != nil || len(list) != 1 {
		t.Fatalf("list: %v %+v", err, list)
	}
	if list[0].CreatedAt.Display() != "2024/03/01 10:20" {
		t.Fatalf("unexpected created_at: %s", list[0].CreatedAt.Display())
	}

	copied, err := c.CopyTemplate(ctx, 1, "默认_副本")
	if err != nil || copied.ID != 2 || copied.Name != "默认_副本" {
		t.Fatalf("copy: %v %+v", err, copied)
	}
	created, err := c.CreateTemplate(ctx, "新模板", model.ImportConfig{})
	if err != nil || created.ID != 3 {
		t.Fatalf("create: %v %+v", err, created)
	}
	name := "改名"
	if err := c.UpdateTemplate(ctx, 3, model.TemplateUpdate{Name: &name}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := c.DeleteTemplate(ctx, 3); err != nil {
		t.Fatalf("delete: %v", err)
	}

	want := []string{
		"GET /api/import-templates",
		"POST /api/import-templates/1/copy",
		"POST /api/import-templates",
		"PUT /api/import-templates/3",
		"DELETE /api/import-templates/3",
	}
	mu.Lock()
	defer mu.Unlock()
	if diff := cmp.Diff(want, calls); diff != "" {
		t.Fatalf("calls mismatch (-want +got):\n%s", diff)
	}
}

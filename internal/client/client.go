// Package client 自定义导入后端接口客户端：文件解析、系统表、导入模板、预览与执行。
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"railcat/internal/model"
)

// 后端接口路径
const (
	PathParse     = "/api/custom-import/parse"
	PathTables    = "/api/custom-import/tables"
	PathPreview   = "/api/custom-import/preview"
	PathExecute   = "/api/custom-import/execute"
	PathTemplates = "/api/import-templates"
)

// maxResponseBytes 响应体读取上限
const maxResponseBytes = 32 << 20

// Options 客户端配置
type Options struct {
	BaseURL       string
	Timeout       time.Duration
	ImportTimeout time.Duration
	HTTPClient    *http.Client
	Logger        *zap.Logger
}

// Client 导入后端客户端
type Client struct {
	baseURL       string
	timeout       time.Duration
	importTimeout time.Duration
	http          *http.Client
	log           *zap.Logger
}

// New 创建客户端
func New(opts Options) *Client {
	c := &Client{
		baseURL:       strings.TrimRight(opts.BaseURL, "/"),
		timeout:       opts.Timeout,
		importTimeout: opts.ImportTimeout,
		http:          opts.HTTPClient,
		log:           opts.Logger,
	}
	if c.timeout <= 0 {
		c.timeout = 30 * time.Second
	}
	if c.importTimeout <= 0 {
		c.importTimeout = 120 * time.Second
	}
	if c.http == nil {
		c.http = &http.Client{}
	}
	if c.log == nil {
		c.log = zap.NewNop()
	}
	c.log = c.log.Named("client")
	return c
}

// envelope 所有接口共用的响应外壳
type envelope struct {
	Success bool              `json:"success"`
	Error   string            `json:"error"`
	Errors  []json.RawMessage `json:"errors"`
	Summary map[string]int    `json:"summary"`
}

func (e *envelope) details() []string {
	out := make([]string, 0, len(e.Errors))
	for _, raw := range e.Errors {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			out = append(out, s)
			continue
		}
		var obj struct {
			Message string `json:"message"`
			Error   string `json:"error"`
		}
		if err := json.Unmarshal(raw, &obj); err == nil && (obj.Message != "" || obj.Error != "") {
			if obj.Message != "" {
				out = append(out, obj.Message)
			} else {
				out = append(out, obj.Error)
			}
			continue
		}
		out = append(out, string(raw))
	}
	return out
}

// Parse 上传文件并解析工作表结构
func (c *Client) Parse(ctx context.Context, file model.File) (*model.ParseResult, error) {
	var out model.ParseResult
	err := c.doMultipart(ctx, "parse", PathParse, c.timeout, file, nil, &out)
	if err != nil {
		return nil, err
	}
	if out.Filename == "" {
		out.Filename = file.Name
	}
	if out.Sheets == nil {
		out.Sheets = []model.SheetInfo{}
	}
	return &out, nil
}

// Tables 获取可导入的系统表列表
func (c *Client) Tables(ctx context.Context) ([]model.TableInfo, error) {
	var out struct {
		Tables []model.TableInfo `json:"tables"`
	}
	if err := c.doJSON(ctx, "tables", http.MethodGet, PathTables, nil, &out); err != nil {
		return nil, err
	}
	return out.Tables, nil
}

// ListTemplates 获取导入模板列表
func (c *Client) ListTemplates(ctx context.Context) ([]model.Template, error) {
	var out struct {
		Templates []model.Template `json:"templates"`
	}
	if err := c.doJSON(ctx, "list templates", http.MethodGet, PathTemplates, nil, &out); err != nil {
		return nil, err
	}
	if out.Templates == nil {
		out.Templates = []model.Template{}
	}
	return out.Templates, nil
}

// CreateTemplate 新建模板
func (c *Client) CreateTemplate(ctx context.Context, name string, cfg model.ImportConfig) (*model.Template, error) {
	body := map[string]any{"name": name, "config": cfg}
	var out struct {
		Template *model.Template `json:"template"`
	}
	if err := c.doJSON(ctx, "create template", http.MethodPost, PathTemplates, body, &out); err != nil {
		return nil, err
	}
	if out.Template == nil {
		return nil, &TransportError{Op: "create template", Err: errors.New("response missing template")}
	}
	return out.Template, nil
}

// UpdateTemplate 更新模板名称和/或配置
func (c *Client) UpdateTemplate(ctx context.Context, id int64, upd model.TemplateUpdate) error {
	return c.doJSON(ctx, "update template", http.MethodPut, templatePath(id), upd, nil)
}

// DeleteTemplate 删除模板
func (c *Client) DeleteTemplate(ctx context.Context, id int64) error {
	return c.doJSON(ctx, "delete template", http.MethodDelete, templatePath(id), nil, nil)
}

// CopyTemplate 复制模板
func (c *Client) CopyTemplate(ctx context.Context, id int64, name string) (*model.Template, error) {
	var out struct {
		Template *model.Template `json:"template"`
	}
	body := map[string]string{"name": name}
	if err := c.doJSON(ctx, "copy template", http.MethodPost, templatePath(id)+"/copy", body, &out); err != nil {
		return nil, err
	}
	if out.Template == nil {
		return nil, &TransportError{Op: "copy template", Err: errors.New("response missing template")}
	}
	return out.Template, nil
}

// Preview 预览导入
func (c *Client) Preview(ctx context.Context, file model.File, cfg model.ImportConfig) (*model.PreviewResult, error) {
	var out model.PreviewResult
	if err := c.doMultipart(ctx, "preview", PathPreview, c.importTimeout, file, &cfg, &out); err != nil {
		return nil, err
	}
	out.Success = true
	return &out, nil
}

// Execute 执行导入；失败时返回的 *APIError 可能携带部分成功的 Summary
func (c *Client) Execute(ctx context.Context, file model.File, cfg model.ImportConfig) (*model.ExecuteResult, error) {
	var out model.ExecuteResult
	if err := c.doMultipart(ctx, "execute", PathExecute, c.importTimeout, file, &cfg, &out); err != nil {
		return nil, err
	}
	out.Success = true
	return &out, nil
}

func templatePath(id int64) string {
	return PathTemplates + "/" + strconv.FormatInt(id, 10)
}

func (c *Client) doJSON(ctx context.Context, op, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		reader = bytes.NewReader(data)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	return c.send(ctx, op, c.timeout, req, out)
}

func (c *Client) doMultipart(ctx context.Context, op, path string, timeout time.Duration, file model.File, cfg *model.ImportConfig, out any) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("file", file.Name)
	if err != nil {
		return fmt.Errorf("%s: build form: %w", op, err)
	}
	if _, err := part.Write(file.Data); err != nil {
		return fmt.Errorf("%s: build form: %w", op, err)
	}
	if cfg != nil {
		data, err := json.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("%s: encode config: %w", op, err)
		}
		if err := w.WriteField("config", string(data)); err != nil {
			return fmt.Errorf("%s: build form: %w", op, err)
		}
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("%s: build form: %w", op, err)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	return c.send(ctx, op, timeout, req, out)
}

func (c *Client) send(ctx context.Context, op string, timeout time.Duration, req *http.Request, out any) error {
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if isTimeout(ctx, err) {
			c.log.Warn("request timed out", zap.String("op", op), zap.Duration("timeout", timeout))
			return &TimeoutError{Op: op, Timeout: timeout}
		}
		c.log.Warn("request failed", zap.String("op", op), zap.Error(err))
		return &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		if isTimeout(ctx, err) {
			return &TimeoutError{Op: op, Timeout: timeout}
		}
		return &TransportError{Op: op, Err: fmt.Errorf("read response: %w", err)}
	}

	c.log.Debug("request done",
		zap.String("op", op),
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)))

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		if resp.StatusCode >= 400 {
			return &APIError{Op: op, Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		}
		return &TransportError{Op: op, Err: fmt.Errorf("invalid response: %w", err)}
	}
	if !env.Success {
		return &APIError{
			Op:      op,
			Status:  resp.StatusCode,
			Message: env.Error,
			Details: env.details(),
			Summary: env.Summary,
		}
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return &TransportError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
		}
	}
	return nil
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

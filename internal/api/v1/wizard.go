package v1

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"railcat/internal/model"
	"railcat/internal/wizard"
)

// ListTables 系统表配置
// GET /api/tables
func (h *Handler) ListTables(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"success": true, "tables": h.reg.Infos()})
}

// ListImportLogs 最近的导入记录
// GET /api/import-logs?limit=20
func (h *Handler) ListImportLogs(c *gin.Context) {
	if h.history == nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "未启用导入记录"})
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit <= 0 {
		badRequest(c, "limit 必须为正整数")
		return
	}
	logs, err := h.history.ListImportLogs(c.Request.Context(), limit)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "logs": logs})
}

// wizardOf 按路径中的 id 查找会话
func (h *Handler) wizardOf(c *gin.Context) (*wizard.Wizard, bool) {
	w, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		fail(c, err)
		return nil, false
	}
	return w, true
}

// respond 操作完成后返回最新快照
func respond(c *gin.Context, w *wizard.Wizard, err error) {
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "state": w.Snapshot()})
}

// intParam 解析路径中的整数参数
func intParam(c *gin.Context, name string) (int64, bool) {
	v, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil {
		badRequest(c, "参数错误: "+name)
		return 0, false
	}
	return v, true
}

// CreateWizard 新建向导会话
// POST /api/wizards
func (h *Handler) CreateWizard(c *gin.Context) {
	id, w, err := h.sessions.Create(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "id": id, "state": w.Snapshot()})
}

// GetWizard 当前快照
// GET /api/wizards/:id
func (h *Handler) GetWizard(c *gin.Context) {
	w, ok := h.wizardOf(c)
	if !ok {
		return
	}
	respond(c, w, nil)
}

// DeleteWizard 关闭会话
// DELETE /api/wizards/:id
func (h *Handler) DeleteWizard(c *gin.Context) {
	if err := h.sessions.Delete(c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Next 下一步（进入第 5 步时执行预览）
// POST /api/wizards/:id/next
func (h *Handler) Next(c *gin.Context) {
	w, ok := h.wizardOf(c)
	if !ok {
		return
	}
	respond(c, w, w.Advance(c.Request.Context()))
}

// Prev 上一步
// POST /api/wizards/:id/prev
func (h *Handler) Prev(c *gin.Context) {
	w, ok := h.wizardOf(c)
	if !ok {
		return
	}
	respond(c, w, w.Retreat())
}

// Restart 重新开始
// POST /api/wizards/:id/restart
func (h *Handler) Restart(c *gin.Context) {
	w, ok := h.wizardOf(c)
	if !ok {
		return
	}
	respond(c, w, w.Restart(c.Request.Context()))
}

// Execute 执行导入
// POST /api/wizards/:id/execute
func (h *Handler) Execute(c *gin.Context) {
	w, ok := h.wizardOf(c)
	if !ok {
		return
	}
	res, err := w.Execute(c.Request.Context())
	if err != nil {
		status := statusOf(err)
		_ = c.Error(err)
		c.JSON(status, gin.H{"success": false, "error": err.Error(), "result": res, "state": w.Snapshot()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "result": res, "state": w.Snapshot()})
}

// ---- 第 1 步 ----

// SelectTemplate 选择模板
// PUT /api/wizards/:id/template {"id": 1}
func (h *Handler) SelectTemplate(c *gin.Context) {
	w, ok := h.wizardOf(c)
	if !ok {
		return
	}
	var req struct {
		ID int64 `json:"id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "参数错误")
		return
	}
	respond(c, w, w.SelectTemplate(req.ID))
}

// SetSkipTemplate 设置跳过模板步骤
// PUT /api/wizards/:id/skip-template {"skip": true}
func (h *Handler) SetSkipTemplate(c *gin.Context) {
	w, ok := h.wizardOf(c)
	if !ok {
		return
	}
	var req struct {
		Skip bool `json:"skip"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "参数错误")
		return
	}
	respond(c, w, w.SetSkipTemplate(req.Skip))
}

// ListTemplates 模板列表
// GET /api/wizards/:id/templates
func (h *Handler) ListTemplates(c *gin.Context) {
	w, ok := h.wizardOf(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "templates": w.Templates()})
}

// CopyTemplate 复制模板
// POST /api/wizards/:id/templates/:tid/copy
func (h *Handler) CopyTemplate(c *gin.Context) {
	w, ok := h.wizardOf(c)
	if !ok {
		return
	}
	tid, ok := intParam(c, "tid")
	if !ok {
		return
	}
	t, err := w.CopyTemplate(c.Request.Context(), tid)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "template": t, "state": w.Snapshot()})
}

// RenameTemplate 重命名模板
// PUT /api/wizards/:id/templates/:tid {"name": "..."}
func (h *Handler) RenameTemplate(c *gin.Context) {
	w, ok := h.wizardOf(c)
	if !ok {
		return
	}
	tid, ok := intParam(c, "tid")
	if !ok {
		return
	}
	var req struct {
		Name string `json:"name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "参数错误")
		return
	}
	respond(c, w, w.RenameTemplate(c.Request.Context(), tid, req.Name))
}

// DeleteTemplate 删除模板
// DELETE /api/wizards/:id/templates/:tid
func (h *Handler) DeleteTemplate(c *gin.Context) {
	w, ok := h.wizardOf(c)
	if !ok {
		return
	}
	tid, ok := intParam(c, "tid")
	if !ok {
		return
	}
	respond(c, w, w.DeleteTemplate(c.Request.Context(), tid))
}

// ---- 第 2 步 ----

// UploadFile 上传并解析 Excel 文件
// POST /api/wizards/:id/file (multipart: file)
func (h *Handler) UploadFile(c *gin.Context) {
	w, ok := h.wizardOf(c)
	if !ok {
		return
	}
	fh, err := c.FormFile("file")
	if err != nil {
		badRequest(c, "未找到上传文件")
		return
	}
	if fh.Size > maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"success": false, "error": "文件过大"})
		return
	}
	f, err := fh.Open()
	if err != nil {
		fail(c, err)
		return
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, maxUploadBytes))
	if err != nil {
		fail(c, err)
		return
	}

	err = w.SelectFile(c.Request.Context(), model.File{Name: fh.Filename, Data: data})
	if err != nil {
		h.log.Debug("file rejected", zap.String("file", fh.Filename), zap.Error(err))
	}
	respond(c, w, err)
}

// ClearFile 取消文件选择
// DELETE /api/wizards/:id/file
func (h *Handler) ClearFile(c *gin.Context) {
	w, ok := h.wizardOf(c)
	if !ok {
		return
	}
	respond(c, w, w.ClearFile())
}

// ---- 第 3 步 ----

// SetSheetRow 修改工作表映射行；字段缺省表示不修改，空字符串表示清空
// PUT /api/wizards/:id/sheets/:row {"sheet": "...", "table": "..."}
func (h *Handler) SetSheetRow(c *gin.Context) {
	w, ok := h.wizardOf(c)
	if !ok {
		return
	}
	row, ok := intParam(c, "row")
	if !ok {
		return
	}
	var req struct {
		Sheet *string `json:"sheet"`
		Table *string `json:"table"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "参数错误")
		return
	}
	var err error
	if req.Sheet != nil {
		err = w.SetSheetSource(int(row), *req.Sheet)
	}
	if err == nil && req.Table != nil {
		err = w.SetSheetTable(int(row), *req.Table)
	}
	respond(c, w, err)
}

// RemoveSheetRow 删除工作表映射行
// DELETE /api/wizards/:id/sheets/:row
func (h *Handler) RemoveSheetRow(c *gin.Context) {
	w, ok := h.wizardOf(c)
	if !ok {
		return
	}
	row, ok := intParam(c, "row")
	if !ok {
		return
	}
	respond(c, w, w.RemoveSheetRow(int(row)))
}

// ---- 第 4 步 ----

// SwitchTab 切换列映射标签页
// PUT /api/wizards/:id/columns/:table/tab
func (h *Handler) SwitchTab(c *gin.Context) {
	w, ok := h.wizardOf(c)
	if !ok {
		return
	}
	respond(c, w, w.SwitchTab(c.Param("table")))
}

// SetColumnRow 修改列映射行
// PUT /api/wizards/:id/columns/:table/rows/:row {"column": "...", "field": "..."}
func (h *Handler) SetColumnRow(c *gin.Context) {
	w, ok := h.wizardOf(c)
	if !ok {
		return
	}
	row, ok := intParam(c, "row")
	if !ok {
		return
	}
	var req struct {
		Column *string `json:"column"`
		Field  *string `json:"field"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "参数错误")
		return
	}
	table := c.Param("table")
	var err error
	if req.Column != nil {
		err = w.SetColumnSource(table, int(row), *req.Column)
	}
	if err == nil && req.Field != nil {
		err = w.SetColumnField(table, int(row), *req.Field)
	}
	respond(c, w, err)
}

// RemoveColumnRow 删除列映射行
// DELETE /api/wizards/:id/columns/:table/rows/:row
func (h *Handler) RemoveColumnRow(c *gin.Context) {
	w, ok := h.wizardOf(c)
	if !ok {
		return
	}
	row, ok := intParam(c, "row")
	if !ok {
		return
	}
	respond(c, w, w.RemoveColumnRow(c.Param("table"), int(row)))
}

// SetColumnOptions 设置冲突处理方式和车厢选项
// PUT /api/wizards/:id/columns/:table/options
func (h *Handler) SetColumnOptions(c *gin.Context) {
	w, ok := h.wizardOf(c)
	if !ok {
		return
	}
	var req struct {
		ConflictMode    *model.ConflictMode    `json:"conflict_mode"`
		CarriageOptions *model.CarriageOptions `json:"carriage_options"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "参数错误")
		return
	}
	table := c.Param("table")
	var err error
	if req.ConflictMode != nil {
		err = w.SetConflictMode(table, *req.ConflictMode)
	}
	if err == nil && req.CarriageOptions != nil {
		err = w.SetCarriageOptions(table, *req.CarriageOptions)
	}
	respond(c, w, err)
}

// ---- 第 5 步 ----

// SetSaveTemplate 设置导入成功后的模板保存方式
// PUT /api/wizards/:id/save-template {"mode": "new", "name": "..."}
func (h *Handler) SetSaveTemplate(c *gin.Context) {
	w, ok := h.wizardOf(c)
	if !ok {
		return
	}
	var req wizard.SaveTemplate
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "参数错误")
		return
	}
	respond(c, w, w.SetSaveTemplate(req))
}

package v1

import (
	"context"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"railcat/internal/schema"
	"railcat/internal/session"
	"railcat/internal/store"
)

// maxUploadBytes 上传文件大小上限
const maxUploadBytes = 32 << 20

// HistoryLister 导入记录查询（可选）
type HistoryLister interface {
	ListImportLogs(ctx context.Context, limit int) ([]store.ImportLog, error)
}

// Handler 自定义导入 API 处理器
type Handler struct {
	sessions *session.Registry
	reg      *schema.Registry
	history  HistoryLister
	log      *zap.Logger
}

// NewHandler 创建处理器；history 为 nil 时不提供导入记录接口
func NewHandler(sessions *session.Registry, reg *schema.Registry, history HistoryLister, logger *zap.Logger) *Handler {
	if reg == nil {
		reg = schema.Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		sessions: sessions,
		reg:      reg,
		history:  history,
		log:      logger.Named("api"),
	}
}

// RegisterRoutes 注册路由
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	// 系统表配置
	router.GET("/tables", h.ListTables)
	// 导入记录
	router.GET("/import-logs", h.ListImportLogs)

	// 向导会话
	router.POST("/wizards", h.CreateWizard)
	router.GET("/wizards/:id", h.GetWizard)
	router.DELETE("/wizards/:id", h.DeleteWizard)

	// 步骤流转
	router.POST("/wizards/:id/next", h.Next)
	router.POST("/wizards/:id/prev", h.Prev)
	router.POST("/wizards/:id/restart", h.Restart)
	router.POST("/wizards/:id/execute", h.Execute)

	// 第 1 步：模板
	router.PUT("/wizards/:id/template", h.SelectTemplate)
	router.PUT("/wizards/:id/skip-template", h.SetSkipTemplate)
	router.GET("/wizards/:id/templates", h.ListTemplates)
	router.POST("/wizards/:id/templates/:tid/copy", h.CopyTemplate)
	router.PUT("/wizards/:id/templates/:tid", h.RenameTemplate)
	router.DELETE("/wizards/:id/templates/:tid", h.DeleteTemplate)

	// 第 2 步：文件
	router.POST("/wizards/:id/file", h.UploadFile)
	router.DELETE("/wizards/:id/file", h.ClearFile)

	// 第 3 步：工作表映射
	router.PUT("/wizards/:id/sheets/:row", h.SetSheetRow)
	router.DELETE("/wizards/:id/sheets/:row", h.RemoveSheetRow)

	// 第 4 步：列映射
	router.PUT("/wizards/:id/columns/:table/tab", h.SwitchTab)
	router.PUT("/wizards/:id/columns/:table/rows/:row", h.SetColumnRow)
	router.DELETE("/wizards/:id/columns/:table/rows/:row", h.RemoveColumnRow)
	router.PUT("/wizards/:id/columns/:table/options", h.SetColumnOptions)

	// 第 5 步：模板保存选项
	router.PUT("/wizards/:id/save-template", h.SetSaveTemplate)
}

package wizard

import (
	"errors"
	"strings"
)

var (
	ErrValidation      = errors.New("validation failed")
	ErrBusy            = errors.New("正在处理中，请稍候")
	ErrImportCompleted = errors.New("导入已完成")
	ErrCannotProceed   = errors.New("存在配置问题，无法导入。请返回上一步检查。")
	ErrClosed          = errors.New("向导已关闭")
	ErrStale           = errors.New("向导已重置，结果已丢弃")
	ErrUnsupportedFile = errors.New("请选择 .xlsx 或 .xls 格式的 Excel 文件")
	ErrWrongStep       = errors.New("当前步骤不支持该操作")
	ErrOptionTaken     = errors.New("该选项已被其他行使用")
	ErrUnknownOption   = errors.New("无效的选项")
	ErrRowOutOfRange   = errors.New("行号超出范围")
	ErrUnknownTable    = errors.New("该系统表未映射")
)

// ValidationError 步骤校验失败，列出全部问题
type ValidationError struct {
	Step       Step
	Violations []string
}

func (e *ValidationError) Error() string {
	if e.Step == StepColumns {
		return "列映射配置不完整：\n" + strings.Join(e.Violations, "\n")
	}
	return strings.Join(e.Violations, "\n")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Violations 提取校验问题列表，非校验错误返回 nil
func Violations(err error) []string {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Violations
	}
	return nil
}

package wizard

import (
	"fmt"

	"railcat/internal/schema"
)

// 校验提示
const (
	msgNoFile       = "请选择要导入的 Excel 文件"
	msgParsing      = "文件正在解析中，请稍候..."
	msgNotParsed    = "文件尚未解析完成，请稍候..."
	msgNoSheetMap   = "请至少映射一个工作表"
	msgNoColumns    = "%s: 未配置任何列映射"
	msgMissingField = "%s: 缺少必填字段 \"%s\""
)

// ValidateStep 校验离开 step 之前的状态，返回 *ValidationError
func ValidateStep(s *State, step Step, reg *schema.Registry) error {
	var violations []string

	switch step {
	case StepFile:
		switch {
		case s.FileName == "":
			violations = append(violations, msgNoFile)
		case s.IsParsing:
			violations = append(violations, msgParsing)
		case !s.IsParsed:
			violations = append(violations, msgNotParsed)
		}

	case StepSheets:
		mapped := 0
		for _, m := range s.SheetMappings {
			if m.TableName != "" {
				mapped++
			}
		}
		if mapped == 0 {
			violations = append(violations, msgNoSheetMap)
		}

	case StepColumns:
		for _, m := range s.SheetMappings {
			if m.TableName == "" {
				continue
			}
			table, ok := reg.Lookup(m.TableName)
			if !ok {
				continue
			}
			cm := s.ColumnMappings[m.TableName]
			if cm == nil || len(cm.Columns) == 0 {
				violations = append(violations, fmt.Sprintf(msgNoColumns, table.DisplayName))
				continue
			}
			mapped := make(map[string]bool, len(cm.Columns))
			for _, c := range cm.Columns {
				mapped[c.Target] = true
			}
			for _, f := range table.RequiredFields() {
				if !mapped[f.Name] {
					violations = append(violations, fmt.Sprintf(msgMissingField, table.DisplayName, f.Display))
				}
			}
		}
	}

	if len(violations) > 0 {
		return &ValidationError{Step: step, Violations: violations}
	}
	return nil
}

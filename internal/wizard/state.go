package wizard

import (
	"railcat/internal/model"
)

// Step 向导步骤
type Step int

const (
	StepTemplate Step = iota + 1 // 选择模板
	StepFile                     // 选择文件
	StepSheets                   // 工作表映射
	StepColumns                  // 列映射
	StepConfirm                  // 确认导入
)

// Title 步骤名称
func (s Step) Title() string {
	switch s {
	case StepTemplate:
		return "选择模板"
	case StepFile:
		return "选择文件"
	case StepSheets:
		return "工作表映射"
	case StepColumns:
		return "列映射"
	case StepConfirm:
		return "确认导入"
	}
	return ""
}

// NextStep 下一步：跳过模板时第一步直接到文件选择
func NextStep(step Step, skipTemplate bool) Step {
	if skipTemplate && step == StepTemplate {
		return StepFile
	}
	if step >= StepConfirm {
		return StepConfirm
	}
	return step + 1
}

// PrevStep 上一步；跳过模板时落在第一步会转到文件选择
func PrevStep(step Step, skipTemplate bool) Step {
	var prev Step
	switch {
	case step == StepFile && skipTemplate:
		prev = StepTemplate
	case step == StepSheets && skipTemplate:
		prev = StepFile
	default:
		prev = step - 1
		if prev < StepTemplate {
			prev = StepTemplate
		}
	}
	if prev == StepTemplate && skipTemplate {
		return StepFile
	}
	return prev
}

// Activity 正在进行的后台请求
type Activity string

const (
	ActivityIdle       Activity = ""
	ActivityParsing    Activity = "parsing"
	ActivityPreviewing Activity = "previewing"
	ActivityExecuting  Activity = "executing"
)

// SaveTemplateMode 导入成功后的模板保存方式
type SaveTemplateMode string

const (
	SaveTemplateNone   SaveTemplateMode = "none"
	SaveTemplateNew    SaveTemplateMode = "new"
	SaveTemplateUpdate SaveTemplateMode = "update"
)

// SaveTemplate 模板保存选项
type SaveTemplate struct {
	Mode       SaveTemplateMode `json:"mode"`
	Name       string           `json:"name,omitempty"`
	TemplateID int64            `json:"template_id,omitempty"`
}

// TemplateRef 已选择的模板
type TemplateRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// State 向导状态
type State struct {
	CurrentStep      Step                            `json:"current_step"`
	SkipTemplateStep bool                            `json:"skip_template_step"`
	IsParsing        bool                            `json:"is_parsing"`
	IsParsed         bool                            `json:"is_parsed"`
	ImportCompleted  bool                            `json:"import_completed"`
	Busy             Activity                        `json:"busy,omitempty"`
	FileName         string                          `json:"file_name,omitempty"`
	FileSize         int                             `json:"file_size,omitempty"`
	ParsedSheets     []model.SheetInfo               `json:"parsed_sheets"`
	SelectedTemplate *TemplateRef                    `json:"selected_template"`
	SheetMappings    []model.SheetMapping            `json:"sheet_mappings"`
	ColumnMappings   map[string]*model.ColumnMapping `json:"column_mappings"`
	Preview          *model.PreviewResult            `json:"preview,omitempty"`
	Result           *model.ExecuteResult            `json:"result,omitempty"`
	LastError        string                          `json:"last_error,omitempty"`
	SaveTemplate     SaveTemplate                    `json:"save_template"`
}

func newState(skip bool) State {
	step := StepTemplate
	if skip {
		step = StepFile
	}
	return State{
		CurrentStep:      step,
		SkipTemplateStep: skip,
		ParsedSheets:     []model.SheetInfo{},
		SheetMappings:    []model.SheetMapping{},
		ColumnMappings:   map[string]*model.ColumnMapping{},
		SaveTemplate:     SaveTemplate{Mode: SaveTemplateNone},
	}
}

// clone 深拷贝；预览和执行结果接收后不再修改，共享指针
func (s State) clone() State {
	out := s
	out.ParsedSheets = make([]model.SheetInfo, len(s.ParsedSheets))
	for i, sh := range s.ParsedSheets {
		sh.Columns = append([]string(nil), sh.Columns...)
		out.ParsedSheets[i] = sh
	}
	out.SheetMappings = append([]model.SheetMapping{}, s.SheetMappings...)
	out.ColumnMappings = make(map[string]*model.ColumnMapping, len(s.ColumnMappings))
	for k, v := range s.ColumnMappings {
		out.ColumnMappings[k] = v.Clone()
	}
	if s.SelectedTemplate != nil {
		ref := *s.SelectedTemplate
		out.SelectedTemplate = &ref
	}
	return out
}

// RowView 编辑器行视图
type RowView struct {
	Index         int      `json:"index"`
	Source        string   `json:"source"`
	Target        string   `json:"target"`
	Committed     bool     `json:"committed"`
	SourceOptions []Option `json:"source_options"`
	TargetOptions []Option `json:"target_options"`
}

// SheetView 工作表映射视图
type SheetView struct {
	Rows     []RowView     `json:"rows"`
	Progress SheetProgress `json:"progress"`
}

// ColumnView 单个系统表的列映射视图
type ColumnView struct {
	Table           string                 `json:"table"`
	DisplayName     string                 `json:"display_name"`
	Sheet           string                 `json:"sheet"`
	HasSetDetection bool                   `json:"has_set_detection"`
	ConflictMode    model.ConflictMode     `json:"conflict_mode"`
	CarriageOptions *model.CarriageOptions `json:"carriage_options,omitempty"`
	Rows            []RowView              `json:"rows"`
	Progress        ColumnProgress         `json:"progress"`
}

// Snapshot 某一时刻的完整向导视图，可直接渲染
type Snapshot struct {
	State     State            `json:"state"`
	StepTitle string           `json:"step_title"`
	Templates []model.Template `json:"templates"`
	Sheets    *SheetView       `json:"sheets,omitempty"`
	Columns   []ColumnView     `json:"columns,omitempty"`
	ActiveTab string           `json:"active_tab,omitempty"`
}

func rowViews(e *Editor) []RowView {
	rows := e.Rows()
	out := make([]RowView, len(rows))
	for i, r := range rows {
		out[i] = RowView{
			Index:         i,
			Source:        r.Source,
			Target:        r.Target,
			Committed:     r.Committed(),
			SourceOptions: e.SourceOptions(i),
			TargetOptions: e.TargetOptions(i),
		}
	}
	return out
}

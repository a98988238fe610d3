package wizard

import "fmt"

// Option 下拉选项
type Option struct {
	Value    string `json:"value"`
	Label    string `json:"label"`
	Group    string `json:"group,omitempty"`
	Hint     string `json:"hint,omitempty"`
	Disabled bool   `json:"disabled"`
}

// Row 映射行：来源（工作表/Excel 列） -> 目标（系统表/系统字段）
type Row struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// Committed 两侧都已选择
func (r Row) Committed() bool { return r.Source != "" && r.Target != "" }

// Empty 两侧都未选择
func (r Row) Empty() bool { return r.Source == "" && r.Target == "" }

// Editor 映射行编辑器。
//
// 行规则：
//   - 来源和目标在各行之间唯一，被其他行占用的选项不可选；
//   - 仍有未使用的来源时，末尾始终保留一个未完成的行；来源全部用完后不再保留空行；
//   - 非末尾的空行会被移除，但至少保留一行。
type Editor struct {
	sources []Option
	targets []Option
	rows    []Row
}

// NewEditor 创建编辑器，初始为一个空行
func NewEditor(sources, targets []Option) *Editor {
	e := &Editor{sources: sources, targets: targets}
	e.normalize()
	return e
}

// Load 按顺序填入已保存的映射，来源或目标无效、重复的行被丢弃
func (e *Editor) Load(rows []Row) {
	e.rows = e.rows[:0]
	usedSources := map[string]bool{}
	usedTargets := map[string]bool{}
	for _, r := range rows {
		if r.Source != "" && (!hasOption(e.sources, r.Source) || usedSources[r.Source]) {
			continue
		}
		if r.Target != "" && (!hasOption(e.targets, r.Target) || usedTargets[r.Target]) {
			continue
		}
		if r.Source == "" {
			continue
		}
		usedSources[r.Source] = true
		if r.Target != "" {
			usedTargets[r.Target] = true
		}
		e.rows = append(e.rows, r)
	}
	e.normalize()
}

// Rows 当前全部行（副本）
func (e *Editor) Rows() []Row {
	return append([]Row(nil), e.rows...)
}

// Len 行数
func (e *Editor) Len() int { return len(e.rows) }

// Committed 两侧都已选择的行
func (e *Editor) Committed() []Row {
	var out []Row
	for _, r := range e.rows {
		if r.Committed() {
			out = append(out, r)
		}
	}
	return out
}

// Selected 已选择来源的行（目标可能为空）
func (e *Editor) Selected() []Row {
	var out []Row
	for _, r := range e.rows {
		if r.Source != "" {
			out = append(out, r)
		}
	}
	return out
}

// SetSource 设置第 i 行的来源，空字符串表示清除
func (e *Editor) SetSource(i int, value string) error {
	if err := e.checkRow(i); err != nil {
		return err
	}
	if value != "" {
		if err := e.checkOption(e.sources, i, value, func(r Row) string { return r.Source }); err != nil {
			return err
		}
	}
	e.rows[i].Source = value
	e.normalize()
	return nil
}

// SetTarget 设置第 i 行的目标，空字符串表示清除
func (e *Editor) SetTarget(i int, value string) error {
	if err := e.checkRow(i); err != nil {
		return err
	}
	if value != "" {
		if err := e.checkOption(e.targets, i, value, func(r Row) string { return r.Target }); err != nil {
			return err
		}
	}
	e.rows[i].Target = value
	e.normalize()
	return nil
}

// Remove 删除第 i 行；只剩一行时清空该行
func (e *Editor) Remove(i int) error {
	if err := e.checkRow(i); err != nil {
		return err
	}
	if len(e.rows) == 1 {
		e.rows[0] = Row{}
	} else {
		e.rows = append(e.rows[:i], e.rows[i+1:]...)
	}
	e.normalize()
	return nil
}

// SourceOptions 第 i 行可见的来源选项，被其他行占用的标记为不可选
func (e *Editor) SourceOptions(i int) []Option {
	return e.options(e.sources, i, func(r Row) string { return r.Source })
}

// TargetOptions 第 i 行可见的目标选项
func (e *Editor) TargetOptions(i int) []Option {
	return e.options(e.targets, i, func(r Row) string { return r.Target })
}

// UnusedSources 未被任何行选择的来源数量
func (e *Editor) UnusedSources() int {
	used := 0
	for _, opt := range e.sources {
		for _, r := range e.rows {
			if r.Source == opt.Value {
				used++
				break
			}
		}
	}
	return len(e.sources) - used
}

func (e *Editor) options(all []Option, i int, get func(Row) string) []Option {
	out := make([]Option, len(all))
	for k, opt := range all {
		opt.Disabled = e.heldByOther(i, opt.Value, get)
		out[k] = opt
	}
	return out
}

func (e *Editor) heldByOther(i int, value string, get func(Row) string) bool {
	for j, r := range e.rows {
		if j != i && get(r) == value {
			return true
		}
	}
	return false
}

func (e *Editor) checkRow(i int) error {
	if i < 0 || i >= len(e.rows) {
		return fmt.Errorf("%w: %d", ErrRowOutOfRange, i)
	}
	return nil
}

func (e *Editor) checkOption(all []Option, i int, value string, get func(Row) string) error {
	if !hasOption(all, value) {
		return fmt.Errorf("%w: %s", ErrUnknownOption, value)
	}
	if e.heldByOther(i, value, get) {
		return fmt.Errorf("%w: %s", ErrOptionTaken, value)
	}
	return nil
}

func (e *Editor) normalize() {
	rows := e.rows[:0]
	for k, r := range e.rows {
		if r.Empty() && k != len(e.rows)-1 {
			continue
		}
		rows = append(rows, r)
	}
	e.rows = rows

	if e.UnusedSources() > 0 {
		if len(e.rows) == 0 || e.rows[len(e.rows)-1].Committed() {
			e.rows = append(e.rows, Row{})
		}
	} else {
		for len(e.rows) > 1 && e.rows[len(e.rows)-1].Empty() {
			e.rows = e.rows[:len(e.rows)-1]
		}
	}

	if len(e.rows) == 0 {
		e.rows = append(e.rows, Row{})
	}
}

func hasOption(all []Option, value string) bool {
	for _, opt := range all {
		if opt.Value == value {
			return true
		}
	}
	return false
}

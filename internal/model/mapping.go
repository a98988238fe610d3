package model

// ConflictMode 冲突处理方式
type ConflictMode string

const (
	ConflictSkip      ConflictMode = "skip"      // 跳过冲突（保留现有数据）
	ConflictOverwrite ConflictMode = "overwrite" // 覆盖冲突（更新现有数据）
)

// Valid 是否为合法的冲突处理方式
func (m ConflictMode) Valid() bool {
	return m == ConflictSkip || m == ConflictOverwrite
}

// SetDetectionMode 车厢套装识别方式
type SetDetectionMode string

const (
	SetDetectionMerged SetDetectionMode = "merged" // 按合并单元格识别套装
	SetDetectionRow    SetDetectionMode = "row"    // 每行作为一个独立套装
)

// UnmergedFieldValue 未合并公共字段取值方式
type UnmergedFieldValue string

const (
	UnmergedFirst UnmergedFieldValue = "first"
	UnmergedLast  UnmergedFieldValue = "last"
)

// CarriageOptions 车厢模型导入选项
type CarriageOptions struct {
	SetDetectionMode   SetDetectionMode   `json:"set_detection_mode"`
	UnmergedFieldValue UnmergedFieldValue `json:"unmerged_field_value"`
}

// DefaultCarriageOptions 默认车厢选项
func DefaultCarriageOptions() CarriageOptions {
	return CarriageOptions{
		SetDetectionMode:   SetDetectionMerged,
		UnmergedFieldValue: UnmergedFirst,
	}
}

// Valid 校验选项取值
func (o CarriageOptions) Valid() bool {
	switch o.SetDetectionMode {
	case SetDetectionMerged, SetDetectionRow:
	default:
		return false
	}
	switch o.UnmergedFieldValue {
	case UnmergedFirst, UnmergedLast:
	default:
		return false
	}
	return true
}

// SheetMapping 工作表 -> 系统表
type SheetMapping struct {
	SheetName string `json:"sheet_name"`
	TableName string `json:"table_name"`
}

// ColumnPair Excel 列 -> 系统字段
type ColumnPair struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// ColumnMapping 单个系统表的列映射配置
type ColumnMapping struct {
	Columns         []ColumnPair     `json:"columns"`
	ConflictMode    ConflictMode     `json:"conflict_mode"`
	CarriageOptions *CarriageOptions `json:"carriage_options,omitempty"`
}

// NewColumnMapping 创建默认列映射
func NewColumnMapping(withCarriageOptions bool) *ColumnMapping {
	m := &ColumnMapping{
		Columns:      []ColumnPair{},
		ConflictMode: ConflictSkip,
	}
	if withCarriageOptions {
		opts := DefaultCarriageOptions()
		m.CarriageOptions = &opts
	}
	return m
}

// Targets 已映射的系统字段
func (m *ColumnMapping) Targets() []string {
	if m == nil {
		return nil
	}
	targets := make([]string, 0, len(m.Columns))
	for _, c := range m.Columns {
		targets = append(targets, c.Target)
	}
	return targets
}

// Clone 深拷贝
func (m *ColumnMapping) Clone() *ColumnMapping {
	if m == nil {
		return nil
	}
	out := &ColumnMapping{
		Columns:      append([]ColumnPair{}, m.Columns...),
		ConflictMode: m.ConflictMode,
	}
	if m.CarriageOptions != nil {
		opts := *m.CarriageOptions
		out.CarriageOptions = &opts
	}
	return out
}

// ImportConfig 提交给预览/执行/模板接口的完整映射配置
type ImportConfig struct {
	SheetMappings  []SheetMapping            `json:"sheet_mappings"`
	ColumnMappings map[string]*ColumnMapping `json:"column_mappings"`
}

// Clone 深拷贝
func (c ImportConfig) Clone() ImportConfig {
	out := ImportConfig{
		SheetMappings:  append([]SheetMapping{}, c.SheetMappings...),
		ColumnMappings: make(map[string]*ColumnMapping, len(c.ColumnMappings)),
	}
	for table, m := range c.ColumnMappings {
		out.ColumnMappings[table] = m.Clone()
	}
	return out
}

// MappedTables 已映射到非空系统表的表名（按工作表顺序）
func (c ImportConfig) MappedTables() []string {
	tables := make([]string, 0, len(c.SheetMappings))
	for _, m := range c.SheetMappings {
		if m.TableName != "" {
			tables = append(tables, m.TableName)
		}
	}
	return tables
}

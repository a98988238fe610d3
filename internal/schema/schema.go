// Package schema 系统表配置：定义自定义导入可映射的系统信息表、模型数据表及其字段。
package schema

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/pelletier/go-toml/v2"

	"railcat/internal/model"
)

//go:embed system_tables.toml
var systemTablesTOML []byte

// Category 表类别
type Category string

const (
	CategorySystem Category = "system" // 系统信息（建议先导入）
	CategoryModel  Category = "model"  // 模型数据（依赖系统信息）
)

// GroupLabel 下拉菜单分组名称
func (c Category) GroupLabel() string {
	if c == CategorySystem {
		return "系统信息 (建议先导入)"
	}
	return "模型数据 (依赖系统信息)"
}

// Field 系统字段
type Field struct {
	Name          string `toml:"name" json:"name"`
	Display       string `toml:"display" json:"display"`
	Required      bool   `toml:"required" json:"required"`
	Unique        bool   `toml:"unique" json:"unique,omitempty"`
	UniqueInScale bool   `toml:"unique_in_scale" json:"unique_in_scale,omitempty"`
	Ref           string `toml:"ref" json:"ref,omitempty"`
	IsSetField    bool   `toml:"is_set_field" json:"is_set_field,omitempty"`
	IsItemField   bool   `toml:"is_item_field" json:"is_item_field,omitempty"`
}

// Table 系统表
type Table struct {
	Name            string   `toml:"name" json:"name"`
	DisplayName     string   `toml:"display_name" json:"display_name"`
	Category        Category `toml:"category" json:"category"`
	Tooltip         string   `toml:"tooltip" json:"tooltip,omitempty"`
	HasSetDetection bool     `toml:"has_set_detection" json:"has_set_detection,omitempty"`
	Fields          []Field  `toml:"fields" json:"fields"`
}

// Field 按名称查找字段
func (t *Table) Field(name string) (Field, bool) {
	for _, f := range t.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// RequiredFields 必填字段（保持配置顺序）
func (t *Table) RequiredFields() []Field {
	var out []Field
	for _, f := range t.Fields {
		if f.Required {
			out = append(out, f)
		}
	}
	return out
}

// FieldNames 全部字段名
func (t *Table) FieldNames() []string {
	names := make([]string, 0, len(t.Fields))
	for _, f := range t.Fields {
		names = append(names, f.Name)
	}
	return names
}

// Info 转换为下拉信息
func (t *Table) Info() model.TableInfo {
	return model.TableInfo{
		Name:            t.Name,
		DisplayName:     t.DisplayName,
		Category:        string(t.Category),
		Tooltip:         t.Tooltip,
		HasSetDetection: t.HasSetDetection,
	}
}

type document struct {
	Tables []Table `toml:"tables"`
}

// Registry 系统表注册表，只读
type Registry struct {
	tables []Table
	index  map[string]int
}

// Load 从 TOML 读取系统表配置
func Load(r io.Reader) (*Registry, error) {
	var doc document
	if err := toml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode system tables: %w", err)
	}
	return newRegistry(doc.Tables)
}

func newRegistry(tables []Table) (*Registry, error) {
	if len(tables) == 0 {
		return nil, errors.New("no system tables defined")
	}
	reg := &Registry{
		tables: tables,
		index:  make(map[string]int, len(tables)),
	}
	for i, t := range tables {
		if t.Name == "" {
			return nil, fmt.Errorf("table #%d has no name", i+1)
		}
		if _, dup := reg.index[t.Name]; dup {
			return nil, fmt.Errorf("duplicate table: %s", t.Name)
		}
		if t.Category != CategorySystem && t.Category != CategoryModel {
			return nil, fmt.Errorf("table %s: unknown category %q", t.Name, t.Category)
		}
		reg.index[t.Name] = i
	}
	for _, t := range tables {
		for _, f := range t.Fields {
			if f.Ref == "" {
				continue
			}
			if _, ok := reg.index[f.Ref]; !ok {
				return nil, fmt.Errorf("table %s field %s: unknown ref %s", t.Name, f.Name, f.Ref)
			}
		}
	}
	return reg, nil
}

var (
	defaultOnce sync.Once
	defaultReg  *Registry
)

// Default 内置系统表配置
func Default() *Registry {
	defaultOnce.Do(func() {
		reg, err := newRegistryFromEmbedded()
		if err != nil {
			panic(err)
		}
		defaultReg = reg
	})
	return defaultReg
}

func newRegistryFromEmbedded() (*Registry, error) {
	var doc document
	if err := toml.Unmarshal(systemTablesTOML, &doc); err != nil {
		return nil, fmt.Errorf("decode embedded system tables: %w", err)
	}
	return newRegistry(doc.Tables)
}

// Lookup 按表名查找
func (r *Registry) Lookup(name string) (*Table, bool) {
	i, ok := r.index[name]
	if !ok {
		return nil, false
	}
	return &r.tables[i], true
}

// DisplayName 表显示名称，未知表返回原名
func (r *Registry) DisplayName(name string) string {
	if t, ok := r.Lookup(name); ok {
		return t.DisplayName
	}
	return name
}

// Tables 全部系统表（配置顺序）
func (r *Registry) Tables() []*Table {
	out := make([]*Table, 0, len(r.tables))
	for i := range r.tables {
		out = append(out, &r.tables[i])
	}
	return out
}

// ByCategory 按类别筛选
func (r *Registry) ByCategory(c Category) []*Table {
	var out []*Table
	for i := range r.tables {
		if r.tables[i].Category == c {
			out = append(out, &r.tables[i])
		}
	}
	return out
}

// Ordered 系统信息表在前，模型数据表在后
func (r *Registry) Ordered() []*Table {
	return append(r.ByCategory(CategorySystem), r.ByCategory(CategoryModel)...)
}

// Infos 下拉菜单信息，顺序同 Ordered
func (r *Registry) Infos() []model.TableInfo {
	ordered := r.Ordered()
	out := make([]model.TableInfo, 0, len(ordered))
	for _, t := range ordered {
		out = append(out, t.Info())
	}
	return out
}

// Restrict 仅保留后端公布的表；names 为空时原样返回
func (r *Registry) Restrict(names []string) *Registry {
	if len(names) == 0 {
		return r
	}
	keep := make(map[string]bool, len(names))
	for _, n := range names {
		keep[n] = true
	}
	var tables []Table
	for _, t := range r.tables {
		if keep[t.Name] {
			tables = append(tables, t)
		}
	}
	reg := &Registry{tables: tables, index: make(map[string]int, len(tables))}
	for i, t := range tables {
		reg.index[t.Name] = i
	}
	return reg
}

// FieldLabel 字段下拉显示文字：必填加 *，引用字段注明引用表
func (r *Registry) FieldLabel(f Field) string {
	label := f.Display
	if label == "" {
		label = f.Name
	}
	if f.Required {
		label += " *"
	}
	if f.Ref != "" {
		label += " (引用: " + r.DisplayName(f.Ref) + ")"
	}
	return label
}

// FieldHint 引用字段的提示
func (r *Registry) FieldHint(f Field) string {
	if f.Ref == "" {
		return ""
	}
	return "此字段引用 " + r.DisplayName(f.Ref) + " 表，请确保该表已先导入"
}

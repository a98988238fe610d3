package model

// SheetInfo 工作表信息（由解析服务返回，接收后只读）
type SheetInfo struct {
	Name     string   `json:"name"`
	RowCount int      `json:"row_count"`
	Columns  []string `json:"columns"`
}

// HasColumn 判断工作表是否包含指定列
func (s SheetInfo) HasColumn(column string) bool {
	for _, c := range s.Columns {
		if c == column {
			return true
		}
	}
	return false
}

// ParseResult 文件解析结果
type ParseResult struct {
	Filename string      `json:"filename"`
	Sheets   []SheetInfo `json:"sheets"`
}

// FindSheet 按名称查找工作表
func (r *ParseResult) FindSheet(name string) (SheetInfo, bool) {
	return FindSheet(r.Sheets, name)
}

// FindSheet 在工作表列表中按名称查找
func FindSheet(sheets []SheetInfo, name string) (SheetInfo, bool) {
	for _, s := range sheets {
		if s.Name == name {
			return s, true
		}
	}
	return SheetInfo{}, false
}

// File 待导入的原始文件
type File struct {
	Name string
	Data []byte
}

// Size 文件字节数
func (f *File) Size() int {
	if f == nil {
		return 0
	}
	return len(f.Data)
}

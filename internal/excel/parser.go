// Package excel 本地工作簿解析：读取工作表名称、表头列和数据行数，供离线模式和命令行使用。
package excel

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"railcat/internal/model"
)

// ErrNoFile 尚未加载工作簿
var ErrNoFile = errors.New("no file loaded")

// Workbook 已加载的工作簿
type Workbook struct {
	file *excelize.File
}

// Open 从流中加载工作簿
func Open(reader io.Reader) (*Workbook, error) {
	file, err := excelize.OpenReader(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to open excel: %w", err)
	}
	return &Workbook{file: file}, nil
}

// Close 释放工作簿
func (w *Workbook) Close() error {
	if w == nil || w.file == nil {
		return nil
	}
	return w.file.Close()
}

// Sheets 所有工作表的结构信息（保持工作簿顺序）
func (w *Workbook) Sheets() ([]model.SheetInfo, error) {
	if w == nil || w.file == nil {
		return nil, ErrNoFile
	}

	names := w.file.GetSheetList()
	result := make([]model.SheetInfo, 0, len(names))
	for _, name := range names {
		rows, err := w.file.GetRows(name)
		if err != nil {
			return nil, fmt.Errorf("read sheet %s: %w", name, err)
		}
		result = append(result, sheetInfo(name, rows))
	}
	return result, nil
}

// Columns 表头列名，空白列跳过
func (w *Workbook) Columns(sheet string) ([]string, error) {
	if w == nil || w.file == nil {
		return nil, ErrNoFile
	}
	rows, err := w.file.GetRows(sheet)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return []string{}, nil
	}
	return headerColumns(rows[0]), nil
}

// PreviewRows 表头之后的前 limit 行数据
func (w *Workbook) PreviewRows(sheet string, limit int) ([][]string, error) {
	if w == nil || w.file == nil {
		return nil, ErrNoFile
	}

	rows, err := w.file.GetRows(sheet)
	if err != nil {
		return nil, err
	}
	if len(rows) <= 1 {
		return [][]string{}, nil
	}

	end := limit + 1
	if end > len(rows) {
		end = len(rows)
	}
	return rows[1:end], nil
}

func sheetInfo(name string, rows [][]string) model.SheetInfo {
	info := model.SheetInfo{Name: name, Columns: []string{}}
	if len(rows) == 0 {
		return info
	}
	info.Columns = headerColumns(rows[0])
	for _, row := range rows[1:] {
		if !blankRow(row) {
			info.RowCount++
		}
	}
	return info
}

func headerColumns(header []string) []string {
	columns := make([]string, 0, len(header))
	seen := make(map[string]bool, len(header))
	for _, cell := range header {
		col := strings.TrimSpace(cell)
		if col == "" || seen[col] {
			continue
		}
		seen[col] = true
		columns = append(columns, col)
	}
	return columns
}

func blankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// SupportedExt 是否为向导接受的 Excel 扩展名
func SupportedExt(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xls":
		return true
	}
	return false
}

// LocalParser 在本地解析文件，与后端 /parse 接口返回相同结构
type LocalParser struct {
	log *zap.Logger
}

// NewLocalParser 创建本地解析器
func NewLocalParser(logger *zap.Logger) *LocalParser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LocalParser{log: logger.Named("excel")}
}

// Parse 解析工作簿结构
func (p *LocalParser) Parse(ctx context.Context, file model.File) (*model.ParseResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.EqualFold(filepath.Ext(file.Name), ".xls") {
		return nil, fmt.Errorf("%s: 本地解析不支持 .xls 格式，请另存为 .xlsx", file.Name)
	}

	wb, err := Open(bytes.NewReader(file.Data))
	if err != nil {
		return nil, err
	}
	defer wb.Close()

	sheets, err := wb.Sheets()
	if err != nil {
		return nil, err
	}
	p.log.Debug("workbook parsed",
		zap.String("file", file.Name),
		zap.Int("size", file.Size()),
		zap.Int("sheets", len(sheets)))

	return &model.ParseResult{Filename: file.Name, Sheets: sheets}, nil
}

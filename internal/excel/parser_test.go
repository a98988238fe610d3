package excel_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/xuri/excelize/v2"

	"railcat/internal/excel"
	"railcat/internal/model"
)

func buildWorkbook(t *testing.T, sheets map[string][][]interface{}, order []string) []byte {
	t.Helper()

	wb := excelize.NewFile()
	defer wb.Close()

	for i, name := range order {
		if i == 0 {
			if err := wb.SetSheetName("Sheet1", name); err != nil {
				t.Fatalf("SetSheetName failed: %v", err)
			}
		} else if _, err := wb.NewSheet(name); err != nil {
			t.Fatalf("NewSheet failed: %v", err)
		}
		for r, row := range sheets[name] {
			cell, _ := excelize.CoordinatesToCellName(1, r+1)
			row := row
			if err := wb.SetSheetRow(name, cell, &row); err != nil {
				t.Fatalf("SetSheetRow failed: %v", err)
			}
		}
	}

	buf, err := wb.WriteToBuffer()
	if err != nil {
		t.Fatalf("WriteToBuffer failed: %v", err)
	}
	return buf.Bytes()
}

func TestLocalParserParse(t *testing.T) {
	data := buildWorkbook(t, map[string][][]interface{}{
		"品牌列表": {
			{"品牌名称", "官网地址"},
			{"百万城", "https://example.com"},
		},
		"机车数据": {
			{"品牌", "", "比例", "机车号"},
			{"百万城", nil, "N", "0001"},
			{nil, nil, nil, nil},
			{"长鸣", nil, "HO", "0002"},
		},
	}, []string{"品牌列表", "机车数据"})

	p := excel.NewLocalParser(nil)
	got, err := p.Parse(context.Background(), model.File{Name: "test.xlsx", Data: data})
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	want := &model.ParseResult{
		Filename: "test.xlsx",
		Sheets: []model.SheetInfo{
			{Name: "品牌列表", RowCount: 1, Columns: []string{"品牌名称", "官网地址"}},
			{Name: "机车数据", RowCount: 2, Columns: []string{"品牌", "比例", "机车号"}},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("parse result mismatch (-want +got):\n%s", diff)
	}
}

func TestLocalParserRejectsInvalidData(t *testing.T) {
	p := excel.NewLocalParser(nil)
	if _, err := p.Parse(context.Background(), model.File{Name: "bad.xlsx", Data: []byte("not a workbook")}); err == nil {
		t.Fatalf("expected error for invalid workbook")
	}
	if _, err := p.Parse(context.Background(), model.File{Name: "legacy.xls", Data: []byte{0xd0, 0xcf}}); err == nil {
		t.Fatalf("expected error for .xls in local mode")
	}
}

func TestWorkbookPreviewRows(t *testing.T) {
	data := buildWorkbook(t, map[string][][]interface{}{
		"数据": {
			{"A", "B"},
			{"1", "2"},
			{"3", "4"},
			{"5", "6"},
		},
	}, []string{"数据"})

	wb, err := excel.Open(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer wb.Close()

	rows, err := wb.PreviewRows("数据", 2)
	if err != nil {
		t.Fatalf("PreviewRows failed: %v", err)
	}
	if diff := cmp.Diff([][]string{{"1", "2"}, {"3", "4"}}, rows); diff != "" {
		t.Fatalf("preview rows mismatch (-want +got):\n%s", diff)
	}

	cols, err := wb.Columns("数据")
	if err != nil || len(cols) != 2 {
		t.Fatalf("Columns=%v err=%v", cols, err)
	}
}

func TestSupportedExt(t *testing.T) {
	cases := map[string]bool{
		"a.xlsx": true,
		"B.XLS":  true,
		"c.csv":  false,
		"noext":  false,
	}
	for name, want := range cases {
		if got := excel.SupportedExt(name); got != want {
			t.Errorf("SupportedExt(%q)=%v, want %v", name, got, want)
		}
	}
}

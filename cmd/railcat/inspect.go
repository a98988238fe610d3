package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"railcat/internal/excel"
	"railcat/internal/model"
	"railcat/internal/templates"
)

var inspectRows int

var inspectCmd = &cobra.Command{
	Use:   "inspect <file.xlsx>",
	Short: "在本地列出工作簿的工作表、表头列和数据行数",
	Args:  cobra.ExactArgs(1),
	RunE:  runInspect,
}

var tablesCmd = &cobra.Command{
	Use:   "tables",
	Short: "列出可导入的系统表及字段",
	RunE:  runTables,
}

func init() {
	inspectCmd.Flags().IntVarP(&inspectRows, "rows", "n", 0, "同时输出每个工作表的前 N 行数据")
}

func runInspect(cmd *cobra.Command, args []string) error {
	file, err := readFile(args[0])
	if err != nil {
		return err
	}
	res, err := excel.NewLocalParser(logger).Parse(cmd.Context(), file)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "工作表\t行数\t列")
	for _, s := range res.Sheets {
		fmt.Fprintf(tw, "%s\t%d\t%s\n", s.Name, s.RowCount, strings.Join(s.Columns, ", "))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if inspectRows <= 0 {
		return nil
	}

	wb, err := excel.Open(bytes.NewReader(file.Data))
	if err != nil {
		return err
	}
	defer wb.Close()
	for _, s := range res.Sheets {
		rows, err := wb.PreviewRows(s.Name, inspectRows)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "\n[%s]\n", s.Name)
		for _, r := range rows {
			fmt.Fprintln(out, strings.Join(r, "\t"))
		}
	}
	return nil
}

func runTables(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	out := cmd.OutOrStdout()
	for _, t := range a.registry.Ordered() {
		fmt.Fprintf(out, "%s (%s) [%s]\n", t.DisplayName, t.Name, t.Category.GroupLabel())
		for _, f := range t.Fields {
			fmt.Fprintf(out, "  %-20s %s\n", f.Name, a.registry.FieldLabel(f))
		}
	}
	return nil
}

// readFile 读取待导入文件
func readFile(path string) (model.File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.File{}, err
	}
	return model.File{Name: filepath.Base(path), Data: data}, nil
}

// templateStore 模板命令使用的存储
func templateStore(ctx context.Context) (*app, *templates.Catalog, error) {
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	catalog := templates.NewCatalog(a.templates, logger)
	if err := catalog.Refresh(ctx); err != nil {
		a.Close()
		return nil, nil, err
	}
	return a, catalog, nil
}

package main

import (
	"context"
	"fmt"
	"io"
	"maps"
	"slices"

	"github.com/spf13/cobra"

	"railcat/internal/model"
	"railcat/internal/schema"
	"railcat/internal/wizard"
)

// maxConflictLines 每个系统表最多输出的冲突条数
const maxConflictLines = 10

var importOpts struct {
	template       string
	sheets         []string
	columns        []string
	conflicts      []string
	carriageMode   string
	unmergedValue  string
	saveTemplate   string
	updateTemplate string
	dryRun         bool
}

var importCmd = &cobra.Command{
	Use:   "import <file.xlsx>",
	Short: "按映射配置导入 Excel 文件",
	Long: `以命令行方式走完导入向导：选择模板、解析文件、工作表映射、列映射、预览、执行。

示例:
  railcat import models.xlsx --sheet 机车=locomotive \
    --column locomotive:品牌=brand_id --column locomotive:比例=scale
  railcat import models.xlsx --template 我的模板 --dry-run`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	f := importCmd.Flags()
	f.StringVarP(&importOpts.template, "template", "t", "", "使用的模板（ID 或名称）")
	f.StringArrayVar(&importOpts.sheets, "sheet", nil, "工作表映射 工作表=系统表（系统表为空表示跳过），可重复")
	f.StringArrayVar(&importOpts.columns, "column", nil, "列映射 系统表:Excel列=字段，可重复")
	f.StringArrayVar(&importOpts.conflicts, "conflict", nil, "冲突处理 系统表=skip|overwrite，可重复")
	f.StringVar(&importOpts.carriageMode, "carriage-mode", "", "车厢套装识别方式 merged|row")
	f.StringVar(&importOpts.unmergedValue, "unmerged-value", "", "未合并公共字段取值 first|last")
	f.StringVar(&importOpts.saveTemplate, "save-template", "", "导入成功后保存为新模板")
	f.StringVar(&importOpts.updateTemplate, "update-template", "", "导入成功后更新已有模板（ID 或名称）")
	f.BoolVar(&importOpts.dryRun, "dry-run", false, "只预览，不执行导入")
	importCmd.MarkFlagsMutuallyExclusive("save-template", "update-template")
}

func runImport(cmd *cobra.Command, args []string) error {
	sheets, err := parseAssignments("sheet", importOpts.sheets, true)
	if err != nil {
		return err
	}
	columns, err := parseColumns(importOpts.columns)
	if err != nil {
		return err
	}
	conflicts, err := parseAssignments("conflict", importOpts.conflicts, false)
	if err != nil {
		return err
	}
	file, err := readFile(args[0])
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	w := a.newWizard()
	// Close 等待后台模板保存和导入记录完成
	defer w.Close()
	if err := w.Open(ctx); err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	// 第 1 步
	if err := applyTemplate(ctx, w); err != nil {
		return err
	}

	// 第 2 步
	if err := w.SelectFile(ctx, file); err != nil {
		return err
	}
	if err := w.Advance(ctx); err != nil {
		return err
	}

	// 第 3 步
	for _, s := range sheets {
		row := rowFor(w.Snapshot().Sheets.Rows, s.Key)
		if row < 0 {
			return fmt.Errorf("工作表 %s 无法映射：没有可用的行", s.Key)
		}
		if err := w.SetSheetSource(row, s.Key); err != nil {
			return fmt.Errorf("工作表 %s: %w", s.Key, err)
		}
		if err := w.SetSheetTable(row, s.Value); err != nil {
			return fmt.Errorf("工作表 %s -> %s: %w", s.Key, s.Value, err)
		}
	}
	fmt.Fprintln(out, w.Snapshot().Sheets.Progress.Text)
	if err := w.Advance(ctx); err != nil {
		return err
	}

	// 第 4 步
	if err := applyColumns(w, columns, conflicts); err != nil {
		return err
	}
	for _, v := range w.Snapshot().Columns {
		fmt.Fprintf(out, "%s: %s\n", v.DisplayName, v.Progress.Text)
	}
	if err := applySaveTemplate(w); err != nil {
		return err
	}

	// 第 5 步：进入时预览
	if err := w.Advance(ctx); err != nil {
		return err
	}
	preview := w.State().Preview
	printPreview(out, preview)
	if importOpts.dryRun {
		fmt.Fprintln(out, "预览完成（--dry-run，未执行导入）")
		return nil
	}

	res, err := w.Execute(ctx)
	printResult(out, a.registry, res)
	return err
}

// applyTemplate 选择模板后前进到文件步骤
func applyTemplate(ctx context.Context, w *wizard.Wizard) error {
	if importOpts.template != "" {
		t, err := findTemplate(w.Templates(), importOpts.template)
		if err != nil {
			return err
		}
		if err := w.SelectTemplate(t.ID); err != nil {
			return err
		}
	}
	if w.State().CurrentStep == wizard.StepTemplate {
		return w.Advance(ctx)
	}
	return nil
}

func applyColumns(w *wizard.Wizard, columns []columnAssignment, conflicts []assignment) error {
	for _, c := range columns {
		view, ok := columnView(w, c.Table)
		if !ok {
			return fmt.Errorf("系统表 %s 未映射到任何工作表", c.Table)
		}
		row := rowFor(view.Rows, c.Source)
		if row < 0 {
			return fmt.Errorf("列 %s 无法映射：没有可用的行", c.Source)
		}
		if err := w.SetColumnSource(c.Table, row, c.Source); err != nil {
			return fmt.Errorf("%s 列 %s: %w", c.Table, c.Source, err)
		}
		if err := w.SetColumnField(c.Table, row, c.Field); err != nil {
			return fmt.Errorf("%s 列 %s -> %s: %w", c.Table, c.Source, c.Field, err)
		}
	}

	for _, c := range conflicts {
		if err := w.SetConflictMode(c.Key, model.ConflictMode(c.Value)); err != nil {
			return fmt.Errorf("%s 冲突处理: %w", c.Key, err)
		}
	}

	if importOpts.carriageMode == "" && importOpts.unmergedValue == "" {
		return nil
	}
	for _, v := range w.Snapshot().Columns {
		if !v.HasSetDetection || v.CarriageOptions == nil {
			continue
		}
		opts := *v.CarriageOptions
		if importOpts.carriageMode != "" {
			opts.SetDetectionMode = model.SetDetectionMode(importOpts.carriageMode)
		}
		if importOpts.unmergedValue != "" {
			opts.UnmergedFieldValue = model.UnmergedFieldValue(importOpts.unmergedValue)
		}
		if err := w.SetCarriageOptions(v.Table, opts); err != nil {
			return err
		}
	}
	return nil
}

func columnView(w *wizard.Wizard, table string) (wizard.ColumnView, bool) {
	for _, v := range w.Snapshot().Columns {
		if v.Table == table {
			return v, true
		}
	}
	return wizard.ColumnView{}, false
}

func applySaveTemplate(w *wizard.Wizard) error {
	switch {
	case importOpts.saveTemplate != "":
		return w.SetSaveTemplate(wizard.SaveTemplate{Mode: wizard.SaveTemplateNew, Name: importOpts.saveTemplate})
	case importOpts.updateTemplate != "":
		t, err := findTemplate(w.Templates(), importOpts.updateTemplate)
		if err != nil {
			return err
		}
		return w.SetSaveTemplate(wizard.SaveTemplate{Mode: wizard.SaveTemplateUpdate, TemplateID: t.ID})
	}
	return nil
}

func printPreview(out io.Writer, p *model.PreviewResult) {
	if p == nil {
		return
	}
	fmt.Fprintln(out, "\n导入预览:")
	for _, t := range p.Previews {
		fmt.Fprintf(out, "  %s（%s）%d 行  %s\n", t.DisplayName, t.SheetName, t.RowCount, t.Status())
		for i, c := range t.Conflicts {
			if i == maxConflictLines {
				fmt.Fprintf(out, "    ... 共 %d 条冲突\n", len(t.Conflicts))
				break
			}
			fmt.Fprintf(out, "    第 %d 行 %s=%s: %s\n", c.Row, c.Field, c.Value, c.Message)
		}
		for _, warn := range t.Warnings {
			fmt.Fprintf(out, "    警告: %s\n", warn)
		}
	}
	if p.HasConflicts {
		fmt.Fprintln(out, "  存在冲突数据，将按各表的冲突处理方式导入")
	}
	if !p.CanProceed {
		fmt.Fprintln(out, "  "+wizard.ErrCannotProceed.Error())
	}
}

func printResult(out io.Writer, reg *schema.Registry, res *model.ExecuteResult) {
	if res == nil {
		return
	}
	switch {
	case res.Success:
		fmt.Fprintln(out, "\n导入成功")
	case res.PartialSuccess():
		fmt.Fprintln(out, "\n导入失败，部分数据已导入:")
	default:
		return
	}
	for _, table := range slices.Sorted(maps.Keys(res.Summary)) {
		fmt.Fprintf(out, "  %s: %d 条\n", reg.DisplayName(table), res.Summary[table])
	}
}

package main

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var templatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "管理导入模板",
}

var templatesListCmd = &cobra.Command{
	Use:   "list",
	Short: "列出导入模板",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, catalog, err := templateStore(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\t名称\t工作表\t更新时间")
		for _, t := range catalog.Templates() {
			fmt.Fprintf(tw, "%d\t%s\t%d\t%s\n", t.ID, t.Name, len(t.Config.MappedTables()), t.UpdatedAt.Display())
		}
		return tw.Flush()
	},
}

var templatesCopyCmd = &cobra.Command{
	Use:   "copy <id>",
	Short: "复制模板",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("无效的模板 ID: %s", args[0])
		}
		a, catalog, err := templateStore(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		t, err := catalog.Copy(cmd.Context(), id)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "已复制: %d %s\n", t.ID, t.Name)
		return nil
	},
}

var templatesRenameCmd = &cobra.Command{
	Use:   "rename <id> <name>",
	Short: "重命名模板",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("无效的模板 ID: %s", args[0])
		}
		a, catalog, err := templateStore(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		return catalog.Rename(cmd.Context(), id, args[1])
	},
}

var templatesDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "删除模板",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("无效的模板 ID: %s", args[0])
		}
		a, catalog, err := templateStore(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		return catalog.Delete(cmd.Context(), id)
	},
}

func init() {
	templatesCmd.AddCommand(templatesListCmd, templatesCopyCmd, templatesRenameCmd, templatesDeleteCmd)
}

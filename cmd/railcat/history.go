package main

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "查看最近的导入记录",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()
		if a.db == nil {
			return errors.New("未配置本地数据库（templates.sqlite_path）")
		}

		logs, err := a.db.ListImportLogs(cmd.Context(), historyLimit)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\t时间\t文件\t系统表\t状态\t条数")
		for _, l := range logs {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%d\n",
				l.ID, l.CreatedAt.Local().Format(time.DateTime), l.Filename, strings.Join(l.Tables, ","), l.Status, l.TotalRows)
		}
		return tw.Flush()
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "显示条数")
}

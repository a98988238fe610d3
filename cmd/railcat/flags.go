package main

import (
	"fmt"
	"strconv"
	"strings"

	"railcat/internal/model"
	"railcat/internal/wizard"
)

// assignment 形如 key=value 的参数
type assignment struct {
	Key   string
	Value string
}

// parseAssignments 解析 key=value 列表；allowEmpty 为 false 时 value 不能为空
func parseAssignments(flag string, values []string, allowEmpty bool) ([]assignment, error) {
	out := make([]assignment, 0, len(values))
	for _, v := range values {
		key, value, ok := strings.Cut(v, "=")
		key, value = strings.TrimSpace(key), strings.TrimSpace(value)
		if !ok || key == "" || (!allowEmpty && value == "") {
			return nil, fmt.Errorf("--%s 格式错误: %q（应为 key=value）", flag, v)
		}
		out = append(out, assignment{Key: key, Value: value})
	}
	return out, nil
}

// columnAssignment --column table:Excel列=字段
type columnAssignment struct {
	Table  string
	Source string
	Field  string
}

func parseColumns(values []string) ([]columnAssignment, error) {
	out := make([]columnAssignment, 0, len(values))
	for _, v := range values {
		table, rest, ok := strings.Cut(v, ":")
		i := strings.LastIndex(rest, "=")
		if !ok || i < 0 {
			return nil, fmt.Errorf("--column 格式错误: %q（应为 table:列名=字段）", v)
		}
		c := columnAssignment{
			Table:  strings.TrimSpace(table),
			Source: strings.TrimSpace(rest[:i]),
			Field:  strings.TrimSpace(rest[i+1:]),
		}
		if c.Table == "" || c.Source == "" || c.Field == "" {
			return nil, fmt.Errorf("--column 格式错误: %q（应为 table:列名=字段）", v)
		}
		out = append(out, c)
	}
	return out, nil
}

// rowFor 已选择 source 的行，否则为末尾空行；都没有返回 -1
func rowFor(rows []wizard.RowView, source string) int {
	for i, r := range rows {
		if r.Source == source {
			return i
		}
	}
	if n := len(rows); n > 0 && rows[n-1].Source == "" {
		return n - 1
	}
	return -1
}

// findTemplate 按 ID 或名称查找模板
func findTemplate(list []model.Template, ref string) (model.Template, error) {
	ref = strings.TrimSpace(ref)
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		for _, t := range list {
			if t.ID == id {
				return t, nil
			}
		}
	}
	for _, t := range list {
		if t.Name == ref {
			return t, nil
		}
	}
	return model.Template{}, fmt.Errorf("模板不存在: %s", ref)
}

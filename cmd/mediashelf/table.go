package main

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// column describes one table column. A positive maxWidth truncates longer
// cells with an ellipsis so long archive paths do not wrap the terminal.
type column struct {
	title    string
	right    bool
	maxWidth int
}

func renderTable(columns []column, rows [][]string, footer []string) string {
	if len(columns) == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(toRow(columns, nil, func(i int) string { return columns[i].title }))
	for _, row := range rows {
		tw.AppendRow(toRow(columns, row, nil))
	}
	if len(footer) > 0 {
		tw.AppendFooter(toRow(columns, footer, nil))
	}

	configs := make([]table.ColumnConfig, 0, len(columns))
	for i, col := range columns {
		cfg := table.ColumnConfig{Number: i + 1, Align: text.AlignLeft, AlignHeader: text.AlignLeft}
		if col.right {
			cfg.Align = text.AlignRight
			cfg.AlignFooter = text.AlignRight
		}
		if col.maxWidth > 0 {
			cfg.WidthMax = col.maxWidth
			cfg.WidthMaxEnforcer = ellipsize
		}
		configs = append(configs, cfg)
	}
	tw.SetColumnConfigs(configs)

	return tw.Render()
}

func ellipsize(s string, width int) string {
	if width < 2 || text.StringWidthWithoutEscSequences(s) <= width {
		return s
	}
	return text.Trim(s, width-1) + "…"
}

// toRow pads or truncates cells to the column count; cell, when set,
// supplies values instead of cells.
func toRow(columns []column, cells []string, cell func(int) string) table.Row {
	row := make(table.Row, len(columns))
	for i := range columns {
		switch {
		case cell != nil:
			row[i] = cell(i)
		case i < len(cells):
			row[i] = cells[i]
		default:
			row[i] = ""
		}
	}
	return row
}

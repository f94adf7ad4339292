package main

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

const (
	alignLeft  = text.AlignLeft
	alignRight = text.AlignRight
)

// renderTable lays rows out under headers. Short rows are padded; aligns
// beyond the header count are ignored and missing ones default to left.
func renderTable(headers []string, rows [][]string, aligns []text.Align) string {
	if len(headers) == 0 {
		return ""
	}
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(toRow(headers, len(headers)))
	for _, row := range rows {
		tw.AppendRow(toRow(row, len(headers)))
	}

	configs := make([]table.ColumnConfig, len(headers))
	for i := range configs {
		configs[i] = table.ColumnConfig{Number: i + 1, Align: alignLeft, AlignHeader: alignLeft}
		if i < len(aligns) && aligns[i] != text.AlignDefault {
			configs[i].Align = aligns[i]
		}
	}
	tw.SetColumnConfigs(configs)
	return tw.Render()
}

func toRow(cells []string, width int) table.Row {
	row := make(table.Row, width)
	for i := range row {
		row[i] = ""
		if i < len(cells) {
			row[i] = cells[i]
		}
	}
	return row
}

// printTable writes the rendered table, or the empty message when there
// are no rows. A blank empty message prints nothing.
func printTable(w io.Writer, empty string, headers []string, rows [][]string, aligns []text.Align) {
	switch {
	case len(rows) > 0:
		fmt.Fprintln(w, renderTable(headers, rows, aligns))
	case empty != "":
		fmt.Fprintln(w, empty)
	}
}

package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"dqmon/internal/monitor"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := 0; i < columns; i++ {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			}
		}
		tw.AppendRow(r)
	}

	columnConfigs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		columnConfigs = append(columnConfigs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(columnConfigs)

	return tw.Render()
}

// renderQueueTable lists every pipeline queue with its tallies by state.
func renderQueueTable(snap monitor.Snapshot) string {
	queues := make([]monitor.QueueStatus, 0, len(snap.Stages)+1)
	for _, stage := range snap.Stages {
		queues = append(queues, stage.Source)
	}
	queues = append(queues, snap.Final)

	rows := make([][]string, 0, len(queues))
	for _, q := range queues {
		c := q.Counts
		rows = append(rows, []string{
			q.Name,
			fmt.Sprint(c.Ready),
			fmt.Sprint(c.Failed),
			fmt.Sprint(c.Working),
			fmt.Sprint(c.Writing),
			fmt.Sprint(c.GaveUp),
			yesNo(c.Done),
		})
	}
	return renderTable(
		[]string{"Queue", "Ready", "Failed", "Working", "Writing", "Gave up", "Done"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight, alignLeft},
	)
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}

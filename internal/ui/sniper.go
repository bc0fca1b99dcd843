package ui

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/novadash/engine/internal/store"
)

var sniperHeaders = []string{"Token", "Preset", "Amount", "Status"}

// SniperView displays sniper tasks.
type SniperView struct {
	table *tview.Table
}

// NewSniperView creates a new sniper view.
func NewSniperView() *SniperView {
	table := tview.NewTable().
		SetBorders(false).
		SetFixed(1, 0)

	table.SetTitle(" Sniper ").SetBorder(true)
	setHeader(table, sniperHeaders)

	return &SniperView{table: table}
}

// Widget returns the tview primitive.
func (v *SniperView) Widget() tview.Primitive {
	return v.table
}

// Update redraws the task list.
func (v *SniperView) Update(tasks []store.SniperTask) {
	v.table.Clear()
	setHeader(v.table, sniperHeaders)

	active := 0
	for i, task := range tasks {
		row := i + 1
		if task.Status == store.SniperActive || task.Status == store.SniperPending {
			active++
		}

		v.table.SetCell(row, 0, tview.NewTableCell(truncateAddress(task.Mint)))
		v.table.SetCell(row, 1, tview.NewTableCell(task.Preset))
		v.table.SetCell(row, 2, tview.NewTableCell(fmt.Sprintf("%.2f SOL", task.AmountSOL)).SetAlign(tview.AlignRight))
		v.table.SetCell(row, 3, tview.NewTableCell(task.Status).SetTextColor(sniperColor(task.Status)))
	}

	v.table.SetTitle(fmt.Sprintf(" Sniper (%d active) ", active))
}

func sniperColor(status string) tcell.Color {
	switch status {
	case store.SniperFilled:
		return tcell.ColorGreen
	case store.SniperFailed:
		return tcell.ColorRed
	case store.SniperActive:
		return tcell.ColorYellow
	default:
		return tcell.ColorWhite
	}
}

package ui

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/novadash/engine/internal/store"
)

var holdingsHeaders = []string{"Token", "Balance", "Value", "PnL"}

// HoldingsView displays the positions of the selected wallets.
type HoldingsView struct {
	table *tview.Table
	limit int
}

// NewHoldingsView creates a new holdings view.
func NewHoldingsView() *HoldingsView {
	table := tview.NewTable().
		SetBorders(false).
		SetFixed(1, 0)

	table.SetTitle(" Holdings ").SetBorder(true)
	setHeader(table, holdingsHeaders)

	return &HoldingsView{table: table, limit: 25}
}

// Widget returns the tview primitive.
func (v *HoldingsView) Widget() tview.Primitive {
	return v.table
}

// Update refreshes the positions of the selected wallets. An empty selection
// shows every wallet.
func (v *HoldingsView) Update(hs *store.HoldingsStore, selected []string) {
	v.table.Clear()
	setHeader(v.table, holdingsHeaders)

	var positions []store.Holding
	if len(selected) == 0 {
		positions = hs.TopPositions(v.limit)
	} else {
		for _, h := range hs.For(selected) {
			positions = append(positions, h.Holdings...)
		}
		if len(positions) > v.limit {
			positions = positions[:v.limit]
		}
	}

	if len(positions) == 0 {
		cell := tview.NewTableCell("No positions yet...").
			SetAlign(tview.AlignCenter).
			SetExpansion(1)
		v.table.SetCell(1, 0, cell)
	}

	for i, p := range positions {
		row := i + 1

		name := p.Symbol
		if name == "" {
			name = truncateAddress(p.Mint)
		}

		pnlColor := tcell.ColorWhite
		if p.PnLPercent > 0 {
			pnlColor = tcell.ColorGreen
		} else if p.PnLPercent < 0 {
			pnlColor = tcell.ColorRed
		}

		v.table.SetCell(row, 0, tview.NewTableCell(name).SetAlign(tview.AlignLeft))
		v.table.SetCell(row, 1, tview.NewTableCell(fmt.Sprintf("%.2f", p.Balance)).SetAlign(tview.AlignRight))
		v.table.SetCell(row, 2, tview.NewTableCell(formatUSD(p.ValueUSD)).SetAlign(tview.AlignRight))
		v.table.SetCell(row, 3, tview.NewTableCell(fmt.Sprintf("%+.2f%%", p.PnLPercent)).
			SetAlign(tview.AlignRight).
			SetTextColor(pnlColor))
	}

	v.table.SetTitle(fmt.Sprintf(" Holdings (%s) ", formatUSD(hs.TotalValue(selected))))
}

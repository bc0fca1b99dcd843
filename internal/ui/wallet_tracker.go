package ui

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/novadash/engine/internal/store"
)

var walletHeaders = []string{"Time", "Wallet", "Side", "Amount", "Token", "Balance"}

// WalletTrackerView displays tracked wallets, most recently active first.
type WalletTrackerView struct {
	table   *tview.Table
	maxRows int
}

// NewWalletTrackerView creates a new wallet tracker view.
func NewWalletTrackerView() *WalletTrackerView {
	table := tview.NewTable().
		SetBorders(false).
		SetFixed(1, 0)

	table.SetTitle(" Wallet Tracker ").SetBorder(true)
	setHeader(table, walletHeaders)

	return &WalletTrackerView{
		table:   table,
		maxRows: 100,
	}
}

// Widget returns the tview primitive.
func (v *WalletTrackerView) Widget() tview.Primitive {
	return v.table
}

// Update redraws the table from the store list.
func (v *WalletTrackerView) Update(wallets []store.TrackedWallet) {
	v.table.Clear()
	setHeader(v.table, walletHeaders)

	if len(wallets) > v.maxRows {
		wallets = wallets[:v.maxRows]
	}

	for i, w := range wallets {
		row := i + 1

		name := w.Name
		if name == "" {
			name = truncateAddress(w.Wallet)
		}
		if w.Emoji != "" {
			name = w.Emoji + " " + name
		}

		side := w.LastSide
		sideColor := tcell.ColorWhite
		switch side {
		case "buy":
			sideColor = tcell.ColorGreen
		case "sell":
			sideColor = tcell.ColorRed
		case "":
			side = "?"
		}

		timeStr := "-"
		if w.LastActivity > 0 {
			timeStr = w.LastActive().Format("15:04:05")
		}

		v.table.SetCell(row, 0, tview.NewTableCell(timeStr))
		v.table.SetCell(row, 1, tview.NewTableCell(name))
		v.table.SetCell(row, 2, tview.NewTableCell(side).SetTextColor(sideColor))
		v.table.SetCell(row, 3, tview.NewTableCell(fmt.Sprintf("%.2f SOL", w.AmountSOL)).SetAlign(tview.AlignRight))
		v.table.SetCell(row, 4, tview.NewTableCell(truncateAddress(w.LastMint)))
		v.table.SetCell(row, 5, tview.NewTableCell(fmt.Sprintf("%.2f", w.BalanceSOL)).SetAlign(tview.AlignRight))
	}

	v.table.SetTitle(fmt.Sprintf(" Wallet Tracker (%d) ", len(wallets)))
}

// setHeader writes the header row of a table.
func setHeader(t *tview.Table, headers []string) {
	for col, header := range headers {
		cell := tview.NewTableCell(header).
			SetTextColor(tview.Styles.SecondaryTextColor).
			SetAlign(tview.AlignLeft).
			SetSelectable(false)
		t.SetCell(0, col, cell)
	}
}

// truncateAddress truncates a wallet or mint address for display.
func truncateAddress(addr string) string {
	if len(addr) <= 12 {
		return addr
	}
	return addr[:6] + "..." + addr[len(addr)-4:]
}

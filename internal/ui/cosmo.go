package ui

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/novadash/engine/internal/store"
)

// maxCosmoRows caps the rows of one cosmo column.
const maxCosmoRows = 40

// cosmoColumn is one rendered column of the cosmo feed.
type cosmoColumn struct {
	Title  string
	Tokens []store.CosmoToken
}

// groupColumns folds the three cosmo lists into n columns. Narrow layouts
// merge neighbouring lists.
func groupColumns(lists store.CosmoLists, n int) []cosmoColumn {
	switch {
	case n >= 3:
		return []cosmoColumn{
			{Title: "New Pairs", Tokens: lists.Created},
			{Title: "Final Stretch", Tokens: lists.AboutToGraduate},
			{Title: "Migrated", Tokens: lists.Graduated},
		}
	case n == 2:
		rest := make([]store.CosmoToken, 0, len(lists.AboutToGraduate)+len(lists.Graduated))
		rest = append(rest, lists.AboutToGraduate...)
		rest = append(rest, lists.Graduated...)
		return []cosmoColumn{
			{Title: "New Pairs", Tokens: lists.Created},
			{Title: "Final Stretch / Migrated", Tokens: rest},
		}
	default:
		all := make([]store.CosmoToken, 0, lists.Total())
		all = append(all, lists.Created...)
		all = append(all, lists.AboutToGraduate...)
		all = append(all, lists.Graduated...)
		return []cosmoColumn{{Title: "Pulse", Tokens: all}}
	}
}

// CosmoView displays the cosmo token feed in one to three columns.
type CosmoView struct {
	flex   *tview.Flex
	tables []*tview.Table
}

// NewCosmoView creates a new cosmo view.
func NewCosmoView() *CosmoView {
	flex := tview.NewFlex()
	flex.SetTitle(" Cosmo ").SetBorder(true)
	return &CosmoView{flex: flex}
}

// Widget returns the tview primitive.
func (v *CosmoView) Widget() tview.Primitive {
	return v.flex
}

// Columns returns the number of rendered columns.
func (v *CosmoView) Columns() int {
	return len(v.tables)
}

// Update refreshes the view with the latest lists.
func (v *CosmoView) Update(lists store.CosmoLists, status store.Status, columns int) {
	cols := groupColumns(lists, columns)

	if len(v.tables) != len(cols) {
		v.flex.Clear()
		v.tables = v.tables[:0]
		for range cols {
			t := tview.NewTable().SetBorders(false).SetFixed(1, 0)
			t.SetBorder(true)
			v.tables = append(v.tables, t)
			v.flex.AddItem(t, 0, 1, false)
		}
	}

	for i, col := range cols {
		fillCosmoTable(v.tables[i], col)
	}

	title := fmt.Sprintf(" Cosmo (%d tokens) ", lists.Total())
	if status != store.StatusReady {
		title = fmt.Sprintf(" Cosmo [%s] ", status)
	}
	v.flex.SetTitle(title)
}

func fillCosmoTable(t *tview.Table, col cosmoColumn) {
	t.Clear()
	t.SetTitle(fmt.Sprintf(" %s (%d) ", col.Title, len(col.Tokens)))

	headers := []string{"Token", "MC", "Vol", "Holders", "Bond"}
	for c, header := range headers {
		t.SetCell(0, c, tview.NewTableCell(header).
			SetTextColor(tview.Styles.SecondaryTextColor).
			SetAlign(tview.AlignLeft).
			SetSelectable(false).
			SetExpansion(1))
	}

	tokens := col.Tokens
	if len(tokens) > maxCosmoRows {
		tokens = tokens[:maxCosmoRows]
	}
	for i, tok := range tokens {
		row := i + 1
		name := tok.Symbol
		if name == "" {
			name = truncateAddress(tok.Mint)
		}

		bondColor := tcell.ColorWhite
		if tok.BondingProgress >= 90 {
			bondColor = tcell.ColorGreen
		}

		t.SetCell(row, 0, tview.NewTableCell(name).SetExpansion(1))
		t.SetCell(row, 1, tview.NewTableCell(formatUSD(tok.MarketCapUSD)).SetAlign(tview.AlignRight))
		t.SetCell(row, 2, tview.NewTableCell(formatUSD(tok.VolumeUSD)).SetAlign(tview.AlignRight))
		t.SetCell(row, 3, tview.NewTableCell(fmt.Sprintf("%d", tok.Holders)).SetAlign(tview.AlignRight))
		t.SetCell(row, 4, tview.NewTableCell(fmt.Sprintf("%.0f%%", tok.BondingProgress)).
			SetAlign(tview.AlignRight).
			SetTextColor(bondColor))
	}
}

// formatUSD renders a dollar amount with a K/M suffix.
func formatUSD(v float64) string {
	switch {
	case v >= 1_000_000:
		return fmt.Sprintf("$%.1fM", v/1_000_000)
	case v >= 1_000:
		return fmt.Sprintf("$%.1fK", v/1_000)
	default:
		return fmt.Sprintf("$%.0f", v)
	}
}

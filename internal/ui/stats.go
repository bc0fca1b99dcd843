package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/rivo/tview"

	"github.com/novadash/engine/internal/metrics"
	"github.com/novadash/engine/internal/store"
)

// SocketLine is the UI view of one socket.
type SocketLine struct {
	Name       string
	Status     string
	LastPingAt time.Time
	Reconnects int
}

// StatsView displays connection health and sync metrics.
type StatsView struct {
	textView *tview.TextView
}

// NewStatsView creates a new stats view.
func NewStatsView() *StatsView {
	textView := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(false)

	textView.SetTitle(" Sync Status ").SetBorder(true)

	return &StatsView{
		textView: textView,
	}
}

// Widget returns the tview primitive.
func (v *StatsView) Widget() tview.Primitive {
	return v.textView
}

// Update refreshes the stats display.
func (v *StatsView) Update(snap metrics.Snapshot, sockets []SocketLine, footer store.FooterCounts, loggedIn bool, columns int) {
	v.textView.Clear()
	fmt.Fprint(v.textView, renderStats(snap, sockets, footer, loggedIn, columns))
}

func renderStats(snap metrics.Snapshot, sockets []SocketLine, footer store.FooterCounts, loggedIn bool, columns int) string {
	var b strings.Builder

	session := "[green]logged in[-]"
	if !loggedIn {
		session = "[red]logged out[-]"
	}
	fmt.Fprintf(&b, "[yellow]System Status[-]\nUptime: %s\nSession: %s\n", formatDuration(snap.Uptime), session)

	for _, s := range sockets {
		color := "red"
		switch s.Status {
		case "connected":
			color = "green"
		case "connecting":
			color = "yellow"
		}
		fmt.Fprintf(&b, "%s: [%s]%s[-] ping %s", s.Name, color, s.Status, formatTimeAgo(s.LastPingAt))
		if s.Reconnects > 0 {
			fmt.Fprintf(&b, " (%d reconnects)", s.Reconnects)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "\n[yellow]Feed[-]\nItems: %d\nRate: %.2f items/sec\nMalformed: %d\n", snap.TotalItems(), snap.ItemRate, snap.Malformed)
	for _, c := range snap.Channels {
		fmt.Fprintf(&b, "  %s: %d frames / %d items\n", c.Channel, c.Frames, c.Items)
	}

	b.WriteString("\n[yellow]Queues[-]\n")
	for _, q := range snap.Queues {
		fmt.Fprintf(&b, "  %s: %d flushes, last %d", q.Queue, q.Flushes, q.LastBatch)
		if q.Dropped > 0 {
			fmt.Fprintf(&b, ", [red]%d dropped[-]", q.Dropped)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "\n[yellow]Footer[-]\nTracker: %d  Alerts: %d  Sniper: %d  Holdings: %d\nColumns: %d\n",
		footer.WalletTracker, footer.Alerts, footer.Sniper, footer.Holdings, columns)

	return b.String()
}

// formatDuration formats a duration in human-readable form.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.0fs", d.Seconds())
	}
	if d < time.Hour {
		return fmt.Sprintf("%.0fm", d.Minutes())
	}
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh %dm", hours, minutes)
}

// formatTimeAgo formats a time as "X ago".
func formatTimeAgo(t time.Time) string {
	if t.IsZero() {
		return "never"
	}

	elapsed := time.Since(t)

	if elapsed < time.Minute {
		return fmt.Sprintf("%.0fs ago", elapsed.Seconds())
	}
	if elapsed < time.Hour {
		return fmt.Sprintf("%.0fm ago", elapsed.Minutes())
	}
	if elapsed < 24*time.Hour {
		return fmt.Sprintf("%.0fh ago", elapsed.Hours())
	}
	return fmt.Sprintf("%.0fd ago", elapsed.Hours()/24)
}

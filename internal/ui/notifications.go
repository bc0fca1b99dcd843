package ui

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/novadash/engine/internal/notify"
)

// NotificationsView displays active notifications, newest first.
type NotificationsView struct {
	list  *tview.List
	items []notify.Notification
}

// NewNotificationsView creates a new notifications view.
func NewNotificationsView() *NotificationsView {
	list := tview.NewList().
		ShowSecondaryText(true)

	list.SetTitle(" Notifications ").SetBorder(true)
	list.SetMainTextColor(tcell.ColorWhite)

	return &NotificationsView{list: list}
}

// Widget returns the tview primitive.
func (v *NotificationsView) Widget() tview.Primitive {
	return v.list
}

// Selected returns the id of the highlighted notification.
func (v *NotificationsView) Selected() (string, bool) {
	i := v.list.GetCurrentItem()
	if i < 0 || i >= len(v.items) {
		return "", false
	}
	return v.items[i].ID, true
}

// Update rebuilds the list.
func (v *NotificationsView) Update(items []notify.Notification) {
	v.items = items
	v.list.Clear()

	if len(items) == 0 {
		v.list.AddItem("No notifications", "", 0, nil)
		v.list.SetTitle(" Notifications ")
		return
	}

	for _, n := range items {
		main, secondary := formatNotification(n)
		v.list.AddItem(main, secondary, 0, nil)
	}

	v.list.SetTitle(fmt.Sprintf(" Notifications (%d) ", len(items)))
}

// formatNotification formats a notification for display.
func formatNotification(n notify.Notification) (string, string) {
	var icon string
	switch n.Level {
	case notify.LevelError:
		icon = "[red]✖[-]"
	case notify.LevelWarning:
		icon = "[yellow]![-]"
	case notify.LevelSuccess:
		icon = "[green]✔[-]"
	default:
		icon = "[blue]i[-]"
	}

	main := fmt.Sprintf("%s %s %s", n.CreatedAt.Format("15:04:05"), icon, n.Title)
	secondary := n.Message
	if n.Source != "" {
		secondary = fmt.Sprintf("%s | %s", n.Source, n.Message)
	}
	return main, secondary
}

package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/rivo/tview"
)

// SessionData holds the daemon state shown in the header.
type SessionData struct {
	Session string
	Bot     string
	Status  string
	Cached  int
	Loaded  int
	Total   int
	Synced  time.Time
	Uptime  time.Duration
	Gate    string
}

// Header is the top bar: session info, key hints and the logo.
type Header struct {
	*tview.Flex
	theme *Theme
	info  *tview.TextView
	menu  *tview.TextView
	logo  *tview.TextView
}

// NewHeader creates the header.
func NewHeader(theme *Theme) *Header {
	mk := func() *tview.TextView {
		tv := tview.NewTextView().SetDynamicColors(true)
		tv.SetBackgroundColor(theme.BgColor)
		return tv
	}
	h := &Header{theme: theme, info: mk(), menu: mk(), logo: mk()}
	h.info.SetBorderPadding(0, 0, 1, 1)
	h.menu.SetBorderPadding(0, 0, 2, 0)
	h.logo.SetBorderPadding(1, 0, 1, 0)
	h.renderLogo()

	h.Flex = tview.NewFlex().
		AddItem(h.info, 40, 0, false).
		AddItem(h.menu, 0, 1, false).
		AddItem(h.logo, 22, 0, false)
	return h
}

// SetSession renders the session info panel.
func (h *Header) SetSession(d *SessionData) {
	h.info.Clear()
	if d == nil {
		return
	}
	fg := Tag(h.theme.FgColor)
	ct := Tag(h.theme.CounterColor)

	row := func(label, value string) {
		_, _ = fmt.Fprintf(h.info, "[%s::b]%-8s[-:-:-] [%s]%s[-]\n", fg, label+":", ct, tview.Escape(value))
	}
	row("Session", d.Session)
	row("Bot", dash(d.Bot))
	row("Status", d.Status)
	row("History", fmt.Sprintf("%d/%d", d.Loaded, d.Total))
	row("Cached", fmt.Sprintf("%d", d.Cached))
	synced := "-"
	if !d.Synced.IsZero() {
		synced = d.Synced.Format("15:04:05")
	}
	row("Synced", synced)
	row("Uptime", FormatDuration(d.Uptime))
	if d.Gate != "" {
		_, _ = fmt.Fprintf(h.info, "[%s::b]subscription required[-:-:-]", Tag(h.theme.FlashWarnColor))
	}
}

// SetHints renders key hints in two columns.
func (h *Header) SetHints(hints []MenuHint) {
	h.menu.Clear()
	kc := Tag(h.theme.MenuKeyColor)
	half := (len(hints) + 1) / 2
	for i := range half {
		left := formatHint(kc, hints[i])
		right := ""
		if j := i + half; j < len(hints) {
			right = formatHint(kc, hints[j])
		}
		_, _ = fmt.Fprintf(h.menu, "%s%s\n", left, right)
	}
}

func formatHint(kc string, h MenuHint) string {
	label := fmt.Sprintf("<%s> %s", h.Key, h.Description)
	pad := max(0, 24-len(label))
	return fmt.Sprintf("[%s::b]<%s>[-:-:-] %s%s", kc, h.Key, h.Description, strings.Repeat(" ", pad))
}

func (h *Header) renderLogo() {
	tc := Tag(h.theme.TitleColor)
	_, _ = fmt.Fprintf(h.logo,
		"[%s::b]╔╦╗╦ ╦╦╔╗╔[-:-:-]\n"+
			"[%s::b] ║ ║║║║║║║[-:-:-]\n"+
			"[%s::b] ╩ ╚╩╝╩╝╚╝[-:-:-]\n"+
			"[%s]digital twin chat[-:-:-]",
		tc, tc, tc, Tag(h.theme.FgColor),
	)
}

// Crumbs is a breadcrumb bar showing the page stack.
type Crumbs struct {
	*tview.TextView
	theme *Theme
}

// NewCrumbs creates a new breadcrumb bar.
func NewCrumbs(theme *Theme) *Crumbs {
	tv := tview.NewTextView().SetDynamicColors(true)
	tv.SetBackgroundColor(theme.BgColor)
	return &Crumbs{TextView: tv, theme: theme}
}

// Update renders the trail.
func (c *Crumbs) Update(stack []string) {
	c.Clear()
	parts := make([]string, 0, len(stack))
	for i, name := range stack {
		fg, bg := c.theme.CrumbInactiveFg, c.theme.CrumbInactiveBg
		if i == len(stack)-1 {
			fg, bg = c.theme.CrumbActiveFg, c.theme.CrumbActiveBg
		}
		parts = append(parts, fmt.Sprintf("[%s:%s:b] <%s> [-:-:-]", Tag(fg), Tag(bg), name))
	}
	_, _ = fmt.Fprint(c, strings.Join(parts, " "))
}

// FormatDuration renders d as "3h5m" or "42m".
func FormatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh%dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

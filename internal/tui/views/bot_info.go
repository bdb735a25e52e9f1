package views

import (
	"fmt"
	"time"

	"github.com/rivo/tview"

	"github.com/matheus3301/twin/internal/rpc"
	"github.com/matheus3301/twin/internal/tui/ui"
)

// BotInfo displays details about the bot and the open conversation.
type BotInfo struct {
	*tview.TextView
	theme *ui.Theme
}

// NewBotInfo creates a new bot info view.
func NewBotInfo(theme *ui.Theme) *BotInfo {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	tv.SetTitle(" Bot ")
	tv.SetTitleColor(theme.TitleColor)

	return &BotInfo{
		TextView: tv,
		theme:    theme,
	}
}

// Name implements Component.
func (bi *BotInfo) Name() string { return "Bot" }

// Hints implements Component.
func (bi *BotInfo) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Esc", Description: "Back"},
		{Key: ":", Description: "Command"},
	}
}

// Update renders status and transcript details.
func (bi *BotInfo) Update(st *rpc.GetStatusResponse, t *rpc.GetTranscriptResponse) {
	bi.Clear()
	if st == nil {
		return
	}

	fg := ui.Tag(bi.theme.FgColor)
	ct := ui.Tag(bi.theme.CounterColor)
	row := func(label string, value any) {
		_, _ = fmt.Fprintf(bi, " [%s::b]%-14s[-:-:-] [%s]%s[-]\n", fg, label+":", ct,
			tview.Escape(sanitizeForTerminal(fmt.Sprint(value))))
	}

	_, _ = fmt.Fprint(bi, "\n")
	row("Name", dashIfEmpty(st.BotName))
	row("Bot", st.BotCode)
	row("Conversation", dashIfEmpty(st.ConvCode))
	row("Status", st.Status)
	row("Cached", st.CachedMessages)
	if st.LastSyncedAtMs > 0 {
		row("Last sync", time.UnixMilli(st.LastSyncedAtMs).Format(time.DateTime))
	}
	if t != nil {
		row("Loaded", fmt.Sprintf("%d / %d", t.Cursor.Loaded, t.Cursor.Total))
		row("Avatar", dashIfEmpty(t.BotAvatar))
	}
	if st.Gate != "" {
		row("Gate", st.Gate)
	}

	if st.BotName != "" {
		bi.SetTitle(fmt.Sprintf(" %s ", sanitizeForTerminal(st.BotName)))
	}
}

func dashIfEmpty(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

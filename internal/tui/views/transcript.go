package views

import (
	"fmt"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/matheus3301/twin/internal/rpc"
	"github.com/matheus3301/twin/internal/segment"
	"github.com/matheus3301/twin/internal/tui/ui"
)

const draftDebounce = 400 * time.Millisecond

// TranscriptView shows the conversation, a link preview of the draft and
// the composer.
type TranscriptView struct {
	*tview.Flex
	theme    *ui.Theme
	body     *tview.TextView
	draft    *tview.TextView
	composer *tview.InputField

	onSend  func(text string)
	onDraft func(text string)
	onTop   func()

	botName  string
	firstID  int64
	lastID   int64
	lines    int
	debounce *time.Timer
}

// NewTranscriptView creates the transcript view.
func NewTranscriptView(theme *ui.Theme) *TranscriptView {
	body := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWordWrap(true)
	body.SetBorder(true)
	body.SetBorderColor(theme.BorderColor)
	body.SetBackgroundColor(theme.BgColor)
	body.SetTextColor(theme.FgColor)
	body.SetTitle(" Conversation ")
	body.SetTitleColor(theme.TitleColor)

	draft := tview.NewTextView().SetDynamicColors(true)
	draft.SetBackgroundColor(theme.BgColor)

	composer := tview.NewInputField().
		SetLabel(" > ").
		SetFieldWidth(0)
	composer.SetBorder(true)
	composer.SetBorderColor(theme.BorderColor)
	composer.SetBackgroundColor(theme.BgColor)
	composer.SetFieldBackgroundColor(theme.BgColor)
	composer.SetFieldTextColor(theme.FgColor)
	composer.SetLabelColor(theme.MenuKeyColor)
	composer.SetTitle(" Message (i to focus) ")
	composer.SetTitleColor(theme.TitleColor)

	flex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(body, 0, 1, true).
		AddItem(draft, 1, 0, false).
		AddItem(composer, 3, 0, false)

	tv := &TranscriptView{
		Flex:     flex,
		theme:    theme,
		body:     body,
		draft:    draft,
		composer: composer,
	}

	composer.SetDoneFunc(func(key tcell.Key) {
		if key != tcell.KeyEnter || tv.onSend == nil {
			return
		}
		text := composer.GetText()
		if strings.TrimSpace(text) == "" {
			return
		}
		tv.onSend(text)
		composer.SetText("")
	})
	composer.SetChangedFunc(tv.scheduleDraft)

	body.SetInputCapture(func(ev *tcell.EventKey) *tcell.EventKey {
		up := ev.Key() == tcell.KeyUp || ev.Key() == tcell.KeyPgUp ||
			(ev.Key() == tcell.KeyRune && ev.Rune() == 'k')
		if up && tv.AtTop() && tv.onTop != nil {
			tv.onTop()
		}
		return ev
	})

	return tv
}

// Name implements Component.
func (tv *TranscriptView) Name() string {
	if tv.botName != "" {
		return tv.botName
	}
	return "Conversation"
}

// Hints implements Component.
func (tv *TranscriptView) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "i", Description: "Compose"},
		{Key: "n/p", Description: "Select answer"},
		{Key: "1-5", Description: "Rate"},
		{Key: "f", Description: "Feedback"},
		{Key: "u", Description: "Older"},
		{Key: "d", Description: "Bot"},
	}
}

// SetOnSend sets the callback for a submitted message.
func (tv *TranscriptView) SetOnSend(fn func(text string)) { tv.onSend = fn }

// SetOnDraft sets the callback fired once typing pauses.
func (tv *TranscriptView) SetOnDraft(fn func(text string)) { tv.onDraft = fn }

// SetOnTop sets the callback fired when scrolling up past the first line.
func (tv *TranscriptView) SetOnTop(fn func()) { tv.onTop = fn }

// AtTop reports whether the first rendered line is visible.
func (tv *TranscriptView) AtTop() bool {
	row, _ := tv.body.GetScrollOffset()
	return row == 0
}

// Update re-renders the transcript. A page prepended above keeps the reader's
// place; otherwise the view follows the newest entry.
func (tv *TranscriptView) Update(t *rpc.GetTranscriptResponse, selected int) {
	if t == nil {
		return
	}
	tv.botName = t.BotName
	if t.BotName != "" {
		tv.body.SetTitle(fmt.Sprintf(" %s ", sanitizeForTerminal(t.BotName)))
	}

	text, lines := RenderTranscript(tv.theme, t, selected)
	row, col := tv.body.GetScrollOffset()

	var firstID, lastID int64
	if n := len(t.Entries); n > 0 {
		firstID, lastID = t.Entries[0].ID, t.Entries[n-1].ID
	}
	prepended := tv.lines > 0 && lastID == tv.lastID && firstID != tv.firstID

	tv.body.SetText(text)
	switch {
	case prepended:
		tv.body.ScrollTo(row+lines-tv.lines, col)
	case selected >= 0:
		tv.body.ScrollTo(row, col)
	default:
		tv.body.ScrollToEnd()
	}
	tv.firstID, tv.lastID, tv.lines = firstID, lastID, lines
}

// ShowDraftPreview renders the link preview line under the transcript.
func (tv *TranscriptView) ShowDraftPreview(resp *rpc.PreviewURLResponse) {
	tv.draft.Clear()
	if resp == nil || resp.URL == "" {
		return
	}
	pc := ui.Tag(tv.theme.PreviewColor)
	label := resp.URL
	if resp.Preview != nil && resp.Preview.Title != "" {
		label = resp.Preview.Title
	}
	_, _ = fmt.Fprintf(tv.draft, " [%s]↪ %s[-]", pc, tview.Escape(sanitizeForTerminal(label)))
}

// Body returns the transcript text view.
func (tv *TranscriptView) Body() *tview.TextView { return tv.body }

// Composer returns the composer input field.
func (tv *TranscriptView) Composer() *tview.InputField { return tv.composer }

func (tv *TranscriptView) scheduleDraft(text string) {
	if tv.debounce != nil {
		tv.debounce.Stop()
	}
	if tv.onDraft == nil {
		return
	}
	tv.debounce = time.AfterFunc(draftDebounce, func() { tv.onDraft(text) })
}

// RenderTranscript renders t as tview markup and returns it with its line count.
func RenderTranscript(theme *ui.Theme, t *rpc.GetTranscriptResponse, selected int) (string, int) {
	var sb strings.Builder

	if t.Cursor.Loading {
		fmt.Fprintf(&sb, "[%s::d]  loading older messages...[-:-:-]\n\n", ui.Tag(theme.PendingColor))
	} else if t.Cursor.HasMore {
		fmt.Fprintf(&sb, "[%s::d]  -- older messages (u) --[-:-:-]\n\n", ui.Tag(theme.PendingColor))
	}

	botName := sanitizeForTerminal(t.BotName)
	if botName == "" {
		botName = "Bot"
	}
	for _, turn := range t.Turns {
		renderTurn(&sb, theme, botName, turn, turn.Index == selected)
	}

	out := sb.String()
	return out, strings.Count(out, "\n")
}

func renderTurn(sb *strings.Builder, theme *ui.Theme, botName string, turn rpc.Turn, selected bool) {
	name, color := "You", theme.UserColor
	if turn.Role == "bot" {
		name, color = botName, theme.BotColor
	}

	marker := "  "
	if selected {
		marker = fmt.Sprintf("[%s]▶[-] ", ui.Tag(theme.SelectedColor))
	}
	fmt.Fprintf(sb, "%s[%s::b]%s[-:-:-]", marker, ui.Tag(color), tview.Escape(name))
	if turn.Rating > 0 {
		fmt.Fprintf(sb, " [%s]%s[-]", ui.Tag(theme.StarColor), Stars(turn.Rating))
	}
	sb.WriteString("\n")

	for _, e := range turn.Entries {
		renderEntry(sb, theme, e)
	}
	sb.WriteString("\n")
}

func renderEntry(sb *strings.Builder, theme *ui.Theme, e rpc.Entry) {
	if e.Transient && strings.TrimSpace(e.Content) == "" {
		fmt.Fprintf(sb, "  [%s::d]typing...[-:-:-]\n", ui.Tag(theme.PendingColor))
		return
	}

	text := tview.Escape(sanitizeForTerminal(e.Content))
	text = segment.Linkify(text, func(url string) string { return "[::u]" + url + "[::-]" })
	for _, line := range strings.Split(text, "\n") {
		switch {
		case e.Kind != "message":
			fmt.Fprintf(sb, "  [::i]%s[::-]\n", line)
		case e.Transient:
			fmt.Fprintf(sb, "  [%s]%s[-]\n", ui.Tag(theme.PendingColor), line)
		default:
			fmt.Fprintf(sb, "  %s\n", line)
		}
	}

	if p := e.Preview; p != nil {
		pc := ui.Tag(theme.PreviewColor)
		if p.Title != "" {
			fmt.Fprintf(sb, "  [%s]┃ [::b]%s[::-][-]\n", pc, tview.Escape(sanitizeForTerminal(p.Title)))
		}
		if p.Description != "" {
			fmt.Fprintf(sb, "  [%s]┃ %s[-]\n", pc, tview.Escape(sanitizeForTerminal(p.Description)))
		}
		if p.Embed != nil {
			fmt.Fprintf(sb, "  [%s]┃ ▶ %s %s[-]\n", pc, p.Embed.Platform, tview.Escape(p.Embed.URL))
		}
	}
}

// Stars renders a 1..5 rating.
func Stars(n int) string {
	n = min(max(n, 0), 5)
	return strings.Repeat("★", n) + strings.Repeat("☆", 5-n)
}

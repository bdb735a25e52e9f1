package views

import (
	"fmt"
	"strings"

	"github.com/rivo/tview"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/matheus3301/twin/internal/tui/ui"
)

// SubscriptionView explains why sending is blocked and shows the
// subscription link as a scannable QR code.
type SubscriptionView struct {
	*tview.TextView
	theme *ui.Theme
	url   string
}

// NewSubscriptionView creates the subscription view.
func NewSubscriptionView(theme *ui.Theme) *SubscriptionView {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	tv.SetTitle(" Subscription Required ")
	tv.SetTitleColor(theme.TitleColor)

	return &SubscriptionView{
		TextView: tv,
		theme:    theme,
	}
}

// Name implements Component.
func (sv *SubscriptionView) Name() string { return "Subscription" }

// Hints implements Component.
func (sv *SubscriptionView) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Esc", Description: "Back"},
	}
}

// URL returns the link currently shown.
func (sv *SubscriptionView) URL() string { return sv.url }

// Show renders the gate explanation, the link and its QR code.
func (sv *SubscriptionView) Show(gate, url string) {
	sv.url = url
	sv.Clear()

	_, _ = fmt.Fprintf(sv, "\n  %s\n\n", GateMessage(gate))
	if url == "" {
		return
	}
	_, _ = fmt.Fprintf(sv, "%s\n  [::u]%s[::-]\n", renderQR(url), tview.Escape(url))
}

// GateMessage describes a send gate to the user.
func GateMessage(gate string) string {
	switch gate {
	case "expired":
		return "Your subscription has expired. Renew it to keep chatting."
	case "start-subscription":
		return "You have used your free messages. Subscribe to keep chatting."
	default:
		return "Sending is paused for this conversation."
	}
}

// renderQR converts a string to a compact QR code using Unicode half-block
// characters, two bitmap rows per line.
func renderQR(content string) string {
	qr, err := qrcode.New(content, qrcode.Low)
	if err != nil {
		return "  (QR generation failed: " + err.Error() + ")"
	}
	qr.DisableBorder = false

	bitmap := qr.Bitmap()
	rows := len(bitmap)
	cols := 0
	if rows > 0 {
		cols = len(bitmap[0])
	}

	var sb strings.Builder
	for y := 0; y < rows; y += 2 {
		sb.WriteString("  ")
		for x := 0; x < cols; x++ {
			top := bitmap[y][x]
			bot := y+1 < rows && bitmap[y+1][x]
			switch {
			case top && bot:
				sb.WriteRune('█')
			case top:
				sb.WriteRune('▀')
			case bot:
				sb.WriteRune('▄')
			default:
				sb.WriteRune(' ')
			}
		}
		sb.WriteRune('\n')
	}
	return sb.String()
}

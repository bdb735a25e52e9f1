// Package tui is the terminal client of a session daemon.
package tui

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/matheus3301/twin/internal/bus"
	"github.com/matheus3301/twin/internal/rpc"
	"github.com/matheus3301/twin/internal/tui/keys"
	"github.com/matheus3301/twin/internal/tui/model"
	"github.com/matheus3301/twin/internal/tui/ui"
	"github.com/matheus3301/twin/internal/tui/views"
)

const (
	pageTranscript   = "transcript"
	pageSearch       = "search"
	pageBot          = "bot"
	pageHelp         = "help"
	pageSubscription = "subscription"

	refreshInterval = 5 * time.Second
	rpcTimeout      = 10 * time.Second
)

// App is the main TUI application shell.
type App struct {
	app      *tview.Application
	theme    *ui.Theme
	vm       *model.ViewModel
	registry *keys.Registry
	session  string

	root     *tview.Flex
	header   *ui.Header
	crumbs   *ui.Crumbs
	pages    *ui.Pages
	prompt   *ui.Prompt
	flash    *ui.FlashModel
	flashBar *ui.FlashBar

	transcript   *views.TranscriptView
	search       *views.SearchView
	botInfo      *views.BotInfo
	help         *views.HelpView
	subscription *views.SubscriptionView
	components   map[string]ui.Component

	ctx    context.Context
	cancel context.CancelFunc
}

// NewApp creates the TUI application.
func NewApp(b model.Backend, sessionName string) *App {
	ctx, cancel := context.WithCancel(context.Background())
	theme := ui.DefaultTheme()

	a := &App{
		app:          tview.NewApplication(),
		theme:        theme,
		vm:           model.NewViewModel(b),
		registry:     keys.NewRegistry(),
		session:      sessionName,
		header:       ui.NewHeader(theme),
		crumbs:       ui.NewCrumbs(theme),
		pages:        ui.NewPages(),
		prompt:       ui.NewPrompt(theme),
		flash:        ui.NewFlashModel(),
		flashBar:     ui.NewFlashBar(theme),
		transcript:   views.NewTranscriptView(theme),
		search:       views.NewSearchView(theme),
		botInfo:      views.NewBotInfo(theme),
		help:         views.NewHelpView(theme),
		subscription: views.NewSubscriptionView(theme),
		ctx:          ctx,
		cancel:       cancel,
	}
	a.components = map[string]ui.Component{
		pageTranscript:   a.transcript,
		pageSearch:       a.search,
		pageBot:          a.botInfo,
		pageHelp:         a.help,
		pageSubscription: a.subscription,
	}

	a.setupBindings()
	a.setupCallbacks()
	a.setupLayout()
	return a
}

func (a *App) setupBindings() {
	a.registry.AddGlobal(&keys.Action{Key: tcell.KeyRune, Rune: ':', Description: "Command",
		Handler: func() { a.showPrompt(ui.PromptCommand) }})
	a.registry.AddGlobal(&keys.Action{Key: tcell.KeyRune, Rune: '/', Description: "Search",
		Handler: func() { a.showPrompt(ui.PromptSearch) }})
	a.registry.AddGlobal(&keys.Action{Key: tcell.KeyRune, Rune: '?', Description: "Help",
		Handler: func() { a.pages.Push(pageHelp) }})
	a.registry.AddGlobal(&keys.Action{Key: tcell.KeyCtrlR, Label: "ctrl-r", Description: "Reconnect",
		Handler: func() { go a.reconnect() }})

	view := func(r rune, fn func()) {
		a.registry.AddView(pageTranscript, &keys.Action{Key: tcell.KeyRune, Rune: r, Hidden: true, Handler: fn})
	}
	view('i', func() { a.app.SetFocus(a.transcript.Composer()) })
	view('n', func() { a.moveSelection(1) })
	view('p', func() { a.moveSelection(-1) })
	view('u', func() { go a.loadOlder(true) })
	view('d', a.showBotInfo)
	view('f', func() {
		a.showPrompt(ui.PromptCommand)
		a.prompt.SetText("feedback ")
	})
	for v := 1; v <= 5; v++ {
		view(rune('0'+v), func() { go a.rate(v) })
	}
}

func (a *App) setupCallbacks() {
	a.transcript.SetOnSend(func(text string) { go a.send(text) })
	a.transcript.SetOnTop(func() { go a.loadOlder(true) })
	a.transcript.SetOnDraft(func(text string) { go a.previewDraft(text) })
	a.search.SetOnQuery(func(q string) { go a.runSearch(q) })

	a.prompt.SetOnSubmit(func(mode ui.PromptMode, text string) {
		a.hidePrompt()
		switch mode {
		case ui.PromptSearch:
			a.search.SetQuery(text)
			a.pages.Push(pageSearch)
			go a.runSearch(text)
		case ui.PromptCommand:
			a.runCommand(ParseCommand(text))
		}
	})
	a.prompt.SetOnCancel(a.hidePrompt)

	a.pages.SetOnChange(func(stack []string) {
		a.crumbs.Update(stack)
		a.refreshHints()
	})
}

func (a *App) setupLayout() {
	a.pages.AddPage(pageTranscript, a.transcript, true, false)
	a.pages.AddPage(pageSearch, a.search, true, false)
	a.pages.AddPage(pageBot, a.botInfo, true, false)
	a.pages.AddPage(pageHelp, a.help, true, false)
	a.pages.AddPage(pageSubscription, a.subscription, true, false)

	a.root = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.header, 7, 0, false).
		AddItem(a.prompt, 0, 0, false).
		AddItem(a.pages, 0, 1, true).
		AddItem(a.crumbs, 1, 0, false).
		AddItem(a.flashBar, 1, 0, false)
	a.app.SetRoot(a.root, true)
	a.pages.Reset(pageTranscript)

	a.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		focused := a.app.GetFocus()
		if event.Key() == tcell.KeyEscape {
			switch {
			case focused == a.prompt.InputField:
				return event
			case focused == a.transcript.Composer():
				a.app.SetFocus(a.transcript.Body())
				return nil
			case a.pages.Pop() != "":
				a.focusCurrent()
				return nil
			}
			if a.vm.Selected() >= 0 {
				a.vm.ClearSelection()
				a.transcript.Update(a.vm.Transcript(), -1)
				return nil
			}
		}

		if event.Key() == tcell.KeyTab && a.pages.Current() == pageSearch {
			if focused == a.search.Input() {
				a.app.SetFocus(a.search.Results())
			} else {
				a.app.SetFocus(a.search.Input())
			}
			return nil
		}

		// Text input widgets get every other key.
		if _, ok := focused.(*tview.InputField); ok {
			return event
		}
		if a.registry.HandleEvent(a.pages.Current(), event) {
			return nil
		}
		return event
	})
}

func (a *App) refreshHints() {
	var hints []ui.MenuHint
	if c, ok := a.components[a.pages.Current()]; ok {
		hints = append(hints, c.Hints()...)
	}
	hints = append(hints, a.registry.Hints("")...)
	a.header.SetHints(hints)
}

func (a *App) focusCurrent() {
	switch a.pages.Current() {
	case pageTranscript:
		a.app.SetFocus(a.transcript.Body())
	case pageSearch:
		a.app.SetFocus(a.search.Input())
	case pageBot:
		a.app.SetFocus(a.botInfo)
	case pageHelp:
		a.app.SetFocus(a.help)
	case pageSubscription:
		a.app.SetFocus(a.subscription)
	}
}

func (a *App) showPrompt(mode ui.PromptMode) {
	a.prompt.Activate(mode)
	a.root.ResizeItem(a.prompt, 3, 0)
	a.app.SetFocus(a.prompt.InputField)
}

func (a *App) hidePrompt() {
	a.root.ResizeItem(a.prompt, 0, 0)
	a.focusCurrent()
}

func (a *App) runCommand(cmd Command) {
	switch cmd.Name {
	case "search":
		a.search.SetQuery(cmd.Args)
		a.pages.Push(pageSearch)
		a.focusCurrent()
		if cmd.Args != "" {
			go a.runSearch(cmd.Args)
		}
	case "rate":
		v, err := ParseRating(cmd.Args)
		if err != nil {
			a.flash.Err(err.Error())
			return
		}
		go a.rate(v)
	case "feedback":
		if cmd.Args == "" {
			a.flash.Warn("usage: feedback <text>")
			return
		}
		go a.feedback(cmd.Args)
	case "older":
		go a.loadOlder(true)
	case "reconnect":
		go a.reconnect()
	case "subscribe":
		t := a.vm.Transcript()
		if t == nil || t.Gate == "" {
			a.flash.Info("no subscription required")
			return
		}
		a.showSubscription(t.Gate, t.SubscribeURL)
	case "bot":
		a.showBotInfo()
	case "help":
		a.pages.Push(pageHelp)
		a.focusCurrent()
	case "quit":
		a.Stop()
	default:
		a.flash.Warn(fmt.Sprintf("unknown command %q", cmd.Name))
	}
}

func (a *App) showBotInfo() {
	a.botInfo.Update(a.vm.Status(), a.vm.Transcript())
	a.pages.Push(pageBot)
	a.focusCurrent()
}

func (a *App) showSubscription(gate, url string) {
	a.subscription.Show(gate, url)
	a.pages.Push(pageSubscription)
	a.focusCurrent()
}

func (a *App) moveSelection(delta int) {
	sel := a.vm.Select(delta)
	if sel < 0 {
		a.flash.Info("no answer to select yet")
		return
	}
	a.transcript.Update(a.vm.Transcript(), sel)
}

func (a *App) call() (context.Context, context.CancelFunc) {
	return context.WithTimeout(a.ctx, rpcTimeout)
}

func (a *App) send(text string) {
	ctx, cancel := a.call()
	defer cancel()
	resp, err := a.vm.Send(ctx, text)
	switch {
	case err != nil:
		a.flash.Err("send failed: " + model.ErrorText(err))
	case !resp.Accepted:
		a.app.QueueUpdateDraw(func() { a.showSubscription(resp.Gate, resp.SubscribeURL) })
	}
}

func (a *App) rate(value int) {
	ctx, cancel := a.call()
	defer cancel()
	resp, err := a.vm.RateSelected(ctx, value)
	switch {
	case err != nil:
		a.flash.Err("rating failed: " + model.ErrorText(err))
	case len(resp.Failed) > 0:
		a.flash.Warn(fmt.Sprintf("rated %d of %d messages", resp.Rated, resp.Rated+len(resp.Failed)))
	default:
		a.flash.Info("rated " + views.Stars(value))
	}
}

func (a *App) feedback(text string) {
	ctx, cancel := a.call()
	defer cancel()
	resp, err := a.vm.Feedback(ctx, a.vm.Selected(), text, "")
	switch {
	case err != nil:
		a.flash.Err("feedback failed: " + model.ErrorText(err))
	case len(resp.Failed) > 0:
		a.flash.Warn(fmt.Sprintf("feedback sent for %d of %d messages", resp.Sent, resp.Sent+len(resp.Failed)))
	default:
		a.flash.Info("feedback sent, thank you")
	}
}

func (a *App) loadOlder(explicit bool) {
	ctx, cancel := a.call()
	defer cancel()
	loaded, reason, err := a.vm.LoadOlder(ctx)
	switch {
	case err != nil:
		a.flash.Err("history failed: " + model.ErrorText(err))
	case !loaded && explicit && reason == "exhausted":
		a.flash.Info("start of conversation")
	}
}

func (a *App) reconnect() {
	a.flash.Info("reconnecting...")
	ctx, cancel := a.call()
	defer cancel()
	st, err := a.vm.Reconnect(ctx)
	if err != nil {
		a.flash.Err("reconnect failed: " + model.ErrorText(err))
		return
	}
	a.flash.Info("session " + st)
}

func (a *App) runSearch(q string) {
	ctx, cancel := a.call()
	defer cancel()
	results, err := a.vm.Search(ctx, q, false)
	if err != nil {
		a.flash.Err("search failed: " + model.ErrorText(err))
		return
	}
	a.app.QueueUpdateDraw(func() {
		a.search.Update(results)
		if len(results) > 0 {
			a.app.SetFocus(a.search.Results())
		}
	})
}

func (a *App) previewDraft(text string) {
	ctx, cancel := a.call()
	defer cancel()
	resp, err := a.vm.Preview(ctx, text)
	if err != nil {
		resp = nil
	}
	a.app.QueueUpdateDraw(func() { a.transcript.ShowDraftPreview(resp) })
}

func (a *App) refreshStatus() {
	ctx, cancel := a.call()
	defer cancel()
	if err := a.vm.LoadStatus(ctx); err != nil {
		a.flash.Err("status failed: " + model.ErrorText(err))
		return
	}
	st := a.vm.Status()
	t := a.vm.Transcript()
	d := &ui.SessionData{
		Session: a.session,
		Bot:     st.BotName,
		Status:  st.Status,
		Cached:  st.CachedMessages,
		Uptime:  time.Duration(st.UptimeMs) * time.Millisecond,
		Gate:    st.Gate,
	}
	if st.LastSyncedAtMs > 0 {
		d.Synced = time.UnixMilli(st.LastSyncedAtMs)
	}
	if t != nil {
		d.Loaded, d.Total = t.Cursor.Loaded, t.Cursor.Total
	}
	a.app.QueueUpdateDraw(func() { a.header.SetSession(d) })
}

func (a *App) refreshTranscript() {
	ctx, cancel := a.call()
	defer cancel()
	changed, err := a.vm.LoadTranscript(ctx)
	if err != nil {
		a.flash.Err("transcript failed: " + model.ErrorText(err))
		return
	}
	if !changed {
		return
	}
	t, sel := a.vm.Transcript(), a.vm.Selected()
	a.app.QueueUpdateDraw(func() {
		a.transcript.Update(t, sel)
		if a.pages.Current() == pageTranscript && a.transcript.AtTop() && t.Cursor.HasMore {
			go a.loadOlder(false)
		}
	})
}

func (a *App) handleEvent(evt *rpc.Event) {
	switch evt.Kind {
	case bus.KindStatusChanged:
		a.refreshStatus()
	case bus.KindTranscriptChanged:
		a.refreshTranscript()
		a.refreshStatus()
	case bus.KindNotifyError, bus.KindNotifyInfo:
		var p rpc.NotifyPayload
		if err := json.Unmarshal(evt.Payload, &p); err != nil || p.Text == "" {
			return
		}
		if evt.Kind == bus.KindNotifyError {
			a.flash.Err(p.Text)
		} else {
			a.flash.Info(p.Text)
		}
	case bus.KindOutboxFailed:
		var p struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(evt.Payload, &p)
		a.flash.Err("message not delivered: " + p.Error)
	}
}

func (a *App) watchEvents() {
	backoff := time.Second
	for {
		err := a.vm.Watch(a.ctx, a.handleEvent)
		if a.ctx.Err() != nil {
			return
		}
		if err != nil {
			a.flash.Warn("event stream lost: " + model.ErrorText(err))
		}
		select {
		case <-a.ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, 15*time.Second)
		a.refreshStatus()
		a.refreshTranscript()
	}
}

func (a *App) watchFlash() {
	for {
		select {
		case <-a.ctx.Done():
			return
		case msg := <-a.flash.Watch():
			a.app.QueueUpdateDraw(func() { a.flashBar.Update(&msg) })
		}
	}
}

func (a *App) startRefreshLoop() {
	ticker := time.NewTicker(refreshInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				a.refreshStatus()
				a.app.QueueUpdateDraw(func() { a.flashBar.Update(a.flash.Current()) })
			case <-a.ctx.Done():
				return
			}
		}
	}()
}

// Run starts the TUI application.
func (a *App) Run() error {
	go func() {
		a.refreshTranscript()
		a.refreshStatus()
		a.app.QueueUpdateDraw(a.refreshHints)
		go a.watchFlash()
		go a.watchEvents()
		a.startRefreshLoop()
	}()
	return a.app.Run()
}

// Stop gracefully shuts down the TUI.
func (a *App) Stop() {
	a.cancel()
	a.app.Stop()
}

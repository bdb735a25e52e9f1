// Package history tracks backward pagination through a conversation.
package history

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"sync"
)

// State is the loader state.
type State string

const (
	Idle    State = "IDLE"
	Loading State = "LOADING"
)

var validTransitions = map[State][]State{
	Idle:    {Loading},
	Loading: {Idle},
}

var (
	// ErrBusy is returned while a page is already in flight.
	ErrBusy = errors.New("history: page load already in progress")
	// ErrExhausted is returned once the server has no older messages.
	ErrExhausted = errors.New("history: no older messages")
	// ErrNotVisible is returned when the load-older sentinel is off screen.
	ErrNotVisible = errors.New("history: sentinel not visible")
	// ErrStarted is returned by Begin after the initial page was requested.
	ErrStarted = errors.New("history: initial page already requested")
	// ErrStale is returned when a request was issued before the last Reset.
	ErrStale = errors.New("history: request belongs to a previous session")
)

// Cursor holds the opaque server tokens and the page counter.
type Cursor struct {
	Forward   string
	Backward  string
	PageIndex int
}

// Request describes the page to fetch.
type Request struct {
	Conversation string
	PageIndex    int
	Next         string
	Generation   uint64
}

// Manager is the per-conversation pagination state machine.
type Manager struct {
	mu           sync.Mutex
	generation   uint64
	conversation string
	cursor       Cursor
	state        State
	started      bool
	hasMore      bool
	exhausted    bool
	loaded       int
	total        int
}

// NewManager returns an idle manager with no conversation.
func NewManager() *Manager {
	return &Manager{state: Idle}
}

// Reset starts over for a new conversation identity. Requests issued before
// the reset can no longer settle, even when the conversation code repeats.
func (m *Manager) Reset(conversation string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.generation++
	m.conversation, m.cursor, m.state = conversation, Cursor{}, Idle
	m.started, m.hasMore, m.exhausted = false, false, false
	m.loaded, m.total = 0, 0
}

// Begin requests the initial page (index 0).
func (m *Manager) Begin() (Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return Request{}, ErrStarted
	}
	if err := m.transition(Loading); err != nil {
		return Request{}, ErrBusy
	}
	m.started = true
	return Request{Conversation: m.conversation, Generation: m.generation}, nil
}

// Trigger requests the next older page when the sentinel is visible, more
// history exists and nothing is in flight.
func (m *Manager) Trigger(sentinelVisible bool) (Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch {
	case !sentinelVisible:
		return Request{}, ErrNotVisible
	case m.state == Loading:
		return Request{}, ErrBusy
	case !m.hasMore:
		return Request{}, ErrExhausted
	}
	if err := m.transition(Loading); err != nil {
		return Request{}, err
	}
	m.cursor.PageIndex++
	return Request{
		Conversation: m.conversation,
		PageIndex:    m.cursor.PageIndex,
		Next:         m.cursor.Forward,
		Generation:   m.generation,
	}, nil
}

// Complete records the page received for req. received counts server
// messages, not display segments. An empty page ends pagination for good.
func (m *Manager) Complete(req Request, received, total int, prev, next string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if req.Generation != m.generation {
		return ErrStale
	}
	if err := m.transition(Idle); err != nil {
		return err
	}
	m.loaded += received
	m.total = total
	m.cursor.Backward = CursorFromLink(prev)
	m.cursor.Forward = CursorFromLink(next)
	if received == 0 {
		m.exhausted = true
	}
	m.hasMore = !m.exhausted && m.loaded < total
	return nil
}

// Fail returns to Idle and rolls back the page index of the failed request.
func (m *Manager) Fail(req Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if req.Generation != m.generation {
		return ErrStale
	}
	if err := m.transition(Idle); err != nil {
		return err
	}
	if m.cursor.PageIndex > 0 {
		m.cursor.PageIndex--
	} else {
		m.started = false
	}
	return nil
}

// Status is a read-only view of the manager.
type Status struct {
	Conversation string
	Cursor       Cursor
	State        State
	HasMore      bool
	Loaded       int
	Total        int
}

// Status returns the current state.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Status{
		Conversation: m.conversation,
		Cursor:       m.cursor,
		State:        m.state,
		HasMore:      m.hasMore,
		Loaded:       m.loaded,
		Total:        m.total,
	}
}

func (m *Manager) transition(to State) error {
	if !slices.Contains(validTransitions[m.state], to) {
		return fmt.Errorf("history: invalid transition from %s to %s", m.state, to)
	}
	m.state = to
	return nil
}

// CursorFromLink extracts the token from a pagination link. The server sends
// either a full URL carrying a "next" query parameter or the bare token.
func CursorFromLink(link string) string {
	if link == "" {
		return ""
	}
	u, err := url.Parse(link)
	if err != nil || (u.Scheme == "" && u.RawQuery == "") {
		return link
	}
	return u.Query().Get("next")
}

// Package transcript holds the ordered list of rendered chat entries for one conversation.
package transcript

import "github.com/matheus3301/twin/internal/preview"

// Role is the author of an entry.
type Role string

const (
	RoleUser Role = "user"
	RoleBot  Role = "bot"
)

// Kind tells server-backed entries from locally generated ones.
type Kind int

const (
	KindMessage Kind = iota
	KindWelcome
	KindApology
)

// Entry is one rendered bubble. A bot answer with several chunks becomes
// several entries sharing one SequenceCode.
type Entry struct {
	ID           int64
	Role         Role
	Kind         Kind
	Content      string
	HTML         string
	SequenceCode string
	Segment      int
	Transient    bool
	URL          string
	Preview      *preview.Preview
	Rating       int
}

// Synthetic reports whether the entry never came from the server.
func (e Entry) Synthetic() bool {
	return e.Kind != KindMessage
}

// Key is the dedup key. Entries without a sequence code have no key.
func (e Entry) Key() (Key, bool) {
	if e.SequenceCode == "" {
		return Key{}, false
	}
	return Key{Code: e.SequenceCode, Segment: e.Segment}, true
}

// Key identifies one chunk of one server message.
type Key struct {
	Code    string
	Segment int
}

// Welcome builds the synthetic greeting entry.
func Welcome(text string) Entry {
	return Entry{Role: RoleBot, Kind: KindWelcome, Content: text}
}

// Apology builds the local error entry appended after a failed send.
func Apology(text string) Entry {
	return Entry{Role: RoleBot, Kind: KindApology, Content: text}
}

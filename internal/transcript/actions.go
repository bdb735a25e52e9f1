package transcript

import (
	"slices"

	"github.com/matheus3301/twin/internal/preview"
)

// Action is a pure transformation of the entry list. The store hands each
// action a private copy and applies actions one at a time.
type Action func(entries []Entry) []Entry

// AppendTransient removes every transient entry of role and appends a new one.
func AppendTransient(role Role, placeholder string) Action {
	return AppendPending(Entry{Role: role, Content: placeholder})
}

// AppendPending is AppendTransient for a fully built entry, such as an
// optimistic user message carrying a link.
func AppendPending(e Entry) Action {
	return func(entries []Entry) []Entry {
		out := dropTransient(entries, e.Role)
		e.Transient = true
		return append(out, e)
	}
}

// AppendFinal resolves a trailing transient of the same role, then appends e.
// An entry whose key is already present replaces the existing one in place.
func AppendFinal(e Entry) Action {
	return func(entries []Entry) []Entry {
		out := entries
		if n := len(out); n > 0 && out[n-1].Transient && out[n-1].Role == e.Role {
			out = out[:n-1]
		}
		if key, ok := e.Key(); ok {
			if i := indexOfKey(out, key); i >= 0 {
				e.ID = out[i].ID
				out[i] = e
				return out
			}
		}
		return append(out, e)
	}
}

// PrependHistoryBlock inserts older entries, in chronological order, before the
// earliest server-backed entry. Entries already present are skipped.
func PrependHistoryBlock(block []Entry) Action {
	return func(entries []Entry) []Entry {
		seen := make(map[Key]struct{}, len(entries)+len(block))
		for _, e := range entries {
			if k, ok := e.Key(); ok {
				seen[k] = struct{}{}
			}
		}
		fresh := make([]Entry, 0, len(block))
		for _, e := range block {
			if k, ok := e.Key(); ok {
				if _, dup := seen[k]; dup {
					continue
				}
				seen[k] = struct{}{}
			}
			fresh = append(fresh, e)
		}
		if len(fresh) == 0 {
			return entries
		}
		at := 0
		for at < len(entries) && entries[at].Synthetic() {
			at++
		}
		return slices.Insert(entries, at, fresh...)
	}
}

// MarkRoleSettled clears the transient flag on the most recent entry of role.
func MarkRoleSettled(role Role) Action {
	return func(entries []Entry) []Entry {
		for i := len(entries) - 1; i >= 0; i-- {
			if entries[i].Role == role {
				entries[i].Transient = false
				break
			}
		}
		return entries
	}
}

// RemoveTransient drops every transient entry of role.
func RemoveTransient(role Role) Action {
	return func(entries []Entry) []Entry {
		return dropTransient(entries, role)
	}
}

// SeedWelcome inserts the greeting when the transcript is empty.
func SeedWelcome(text string) Action {
	return func(entries []Entry) []Entry {
		if len(entries) > 0 {
			return entries
		}
		return []Entry{Welcome(text)}
	}
}

// EnsureWelcomeHead places the greeting at the head once history is exhausted.
func EnsureWelcomeHead(text string) Action {
	return func(entries []Entry) []Entry {
		if len(entries) > 0 && entries[0].Kind == KindWelcome {
			return entries
		}
		out := slices.DeleteFunc(entries, func(e Entry) bool { return e.Kind == KindWelcome })
		return slices.Insert(out, 0, Welcome(text))
	}
}

// SetRating records value on every entry whose sequence code is in codes.
func SetRating(codes []string, value int) Action {
	return func(entries []Entry) []Entry {
		for i := range entries {
			if entries[i].SequenceCode != "" && slices.Contains(codes, entries[i].SequenceCode) {
				entries[i].Rating = value
			}
		}
		return entries
	}
}

// AttachPreview sets the link preview of the entry with the given local ID.
func AttachPreview(id int64, p *preview.Preview) Action {
	return func(entries []Entry) []Entry {
		for i := range entries {
			if entries[i].ID == id {
				entries[i].Preview = p
				break
			}
		}
		return entries
	}
}

// Reset clears the transcript.
func Reset() Action {
	return func([]Entry) []Entry { return nil }
}

func dropTransient(entries []Entry, role Role) []Entry {
	return slices.DeleteFunc(entries, func(e Entry) bool {
		return e.Transient && e.Role == role
	})
}

func indexOfKey(entries []Entry, key Key) int {
	for i, e := range entries {
		if k, ok := e.Key(); ok && k == key {
			return i
		}
	}
	return -1
}

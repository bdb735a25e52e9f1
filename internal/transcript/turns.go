package transcript

import "slices"

// Turn is a maximal run of consecutive entries by one role.
type Turn struct {
	Role    Role
	Entries []Entry
}

// Group partitions entries into turns. It is recomputed on every read.
func Group(entries []Entry) []Turn {
	var turns []Turn
	for _, e := range entries {
		if n := len(turns); n > 0 && turns[n-1].Role == e.Role {
			turns[n-1].Entries = append(turns[n-1].Entries, e)
			continue
		}
		turns = append(turns, Turn{Role: e.Role, Entries: []Entry{e}})
	}
	return turns
}

// Codes returns the distinct sequence codes of the turn in order.
func (t Turn) Codes() []string {
	return DistinctCodes(t.Entries)
}

// Rating returns the first non-zero rating in the turn.
func (t Turn) Rating() int {
	for _, e := range t.Entries {
		if e.Rating != 0 {
			return e.Rating
		}
	}
	return 0
}

// Pending reports whether any entry of the turn is still transient.
func (t Turn) Pending() bool {
	return slices.ContainsFunc(t.Entries, func(e Entry) bool { return e.Transient })
}

// DistinctCodes returns the server message codes present in entries, in order.
func DistinctCodes(entries []Entry) []string {
	var codes []string
	seen := make(map[string]struct{})
	for _, e := range entries {
		if e.SequenceCode == "" {
			continue
		}
		if _, ok := seen[e.SequenceCode]; ok {
			continue
		}
		seen[e.SequenceCode] = struct{}{}
		codes = append(codes, e.SequenceCode)
	}
	return codes
}

// CountRole counts server-backed or pending entries of role, ignoring synthetic ones.
func CountRole(entries []Entry, role Role) int {
	n := 0
	for _, e := range entries {
		if e.Role == role && !e.Synthetic() {
			n++
		}
	}
	return n
}

// Persisted returns the entries backed by a server message.
func Persisted(entries []Entry) []Entry {
	var out []Entry
	for _, e := range entries {
		if e.SequenceCode != "" {
			out = append(out, e)
		}
	}
	return out
}

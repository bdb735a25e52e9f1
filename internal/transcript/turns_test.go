package transcript

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGroup(t *testing.T) {
	entries := []Entry{
		Welcome("hi"),
		user("u1", "q"),
		bot("b1", 0, "a"),
		bot("b1", 1, "b"),
		bot("b2", 0, "c"),
		user("u2", "q2"),
	}
	turns := Group(entries)
	require.Len(t, turns, 4)
	assert.Equal(t, RoleBot, turns[0].Role)
	assert.Equal(t, RoleUser, turns[1].Role)
	assert.Len(t, turns[2].Entries, 3)
	assert.Equal(t, []string{"b1", "b2"}, turns[2].Codes())
}

func TestGroupEmpty(t *testing.T) {
	assert.Empty(t, Group(nil))
}

func TestTurnRatingAndPending(t *testing.T) {
	e := bot("b1", 1, "x")
	e.Rating = 3
	turn := Turn{Role: RoleBot, Entries: []Entry{bot("b1", 0, "a"), e}}
	assert.Equal(t, 3, turn.Rating())
	assert.False(t, turn.Pending())

	turn.Entries = append(turn.Entries, Entry{Role: RoleBot, Transient: true})
	assert.True(t, turn.Pending())
}

func TestCountRoleIgnoresSynthetic(t *testing.T) {
	entries := []Entry{Welcome("hi"), user("u1", "a"), {Role: RoleUser, Transient: true}, Apology("sorry")}
	assert.Equal(t, 2, CountRole(entries, RoleUser))
	assert.Equal(t, 0, CountRole(entries, RoleBot))
}

func TestPersisted(t *testing.T) {
	entries := []Entry{
		Welcome("hi"),
		{Role: RoleUser, Content: "q", SequenceCode: "u1"},
		{Role: RoleBot, Transient: true},
	}
	got := Persisted(entries)
	if len(got) != 1 || got[0].SequenceCode != "u1" {
		t.Errorf("Persisted = %+v, want only u1", got)
	}
}

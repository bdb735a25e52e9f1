package transcript

import (
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matheus3301/twin/internal/preview"
)

// ignoreIDs compares entries by content only.
var ignoreIDs = cmpopts.IgnoreFields(Entry{}, "ID")

func bot(code string, seg int, text string) Entry {
	return Entry{Role: RoleBot, SequenceCode: code, Segment: seg, Content: text}
}

func user(code, text string) Entry {
	return Entry{Role: RoleUser, SequenceCode: code, Content: text}
}

func transientCount(entries []Entry, role Role) int {
	n := 0
	for _, e := range entries {
		if e.Transient && e.Role == role {
			n++
		}
	}
	return n
}

func TestAppendTransientKeepsOnePerRole(t *testing.T) {
	s := NewStore(nil)
	s.Dispatch(AppendTransient(RoleBot, "..."))
	s.Dispatch(AppendTransient(RoleUser, "hi"))
	snap := s.Dispatch(AppendTransient(RoleBot, "..."))

	assert.Equal(t, 1, transientCount(snap.Entries, RoleBot))
	assert.Equal(t, 1, transientCount(snap.Entries, RoleUser))
	require.Len(t, snap.Entries, 2)
	assert.Equal(t, RoleUser, snap.Entries[0].Role)
}

func TestAppendPendingKeepsFields(t *testing.T) {
	s := NewStore(nil)
	s.Dispatch(AppendTransient(RoleUser, "old"))
	snap := s.Dispatch(AppendPending(Entry{Role: RoleUser, Content: "see https://x.io", URL: "https://x.io"}))

	require.Len(t, snap.Entries, 1)
	assert.True(t, snap.Entries[0].Transient)
	assert.Equal(t, "https://x.io", snap.Entries[0].URL)
}

func TestAppendFinalResolvesTrailingTransient(t *testing.T) {
	s := NewStore(nil)
	s.Dispatch(AppendTransient(RoleBot, "..."))
	snap := s.Dispatch(AppendFinal(bot("m1", 0, "Hi")))

	want := []Entry{bot("m1", 0, "Hi")}
	if diff := cmp.Diff(want, snap.Entries, ignoreIDs); diff != "" {
		t.Errorf("entries mismatch (-want +got):\n%s", diff)
	}
}

func TestAppendFinalLeavesOtherRoleTransient(t *testing.T) {
	s := NewStore(nil)
	s.Dispatch(AppendTransient(RoleUser, "sending"))
	snap := s.Dispatch(AppendFinal(bot("m1", 0, "Hi")))

	require.Len(t, snap.Entries, 2)
	assert.True(t, snap.Entries[0].Transient)
	assert.False(t, snap.Entries[1].Transient)
}

func TestAppendFinalDeduplicates(t *testing.T) {
	s := NewStore(nil)
	first := s.Dispatch(AppendFinal(bot("m1", 0, "Hi")))
	snap := s.Dispatch(AppendFinal(bot("m1", 0, "Hi again")))

	require.Len(t, snap.Entries, 1)
	assert.Equal(t, "Hi again", snap.Entries[0].Content)
	assert.Equal(t, first.Entries[0].ID, snap.Entries[0].ID, "replacement keeps render key")

	snap = s.Dispatch(AppendFinal(bot("m1", 1, "second chunk")))
	assert.Len(t, snap.Entries, 2)
}

func TestPrependHistoryBlock(t *testing.T) {
	s := NewStore(nil)
	s.Dispatch(AppendFinal(user("u3", "newest question")))
	s.Dispatch(AppendFinal(bot("b3", 0, "newest answer")))

	snap := s.Dispatch(PrependHistoryBlock([]Entry{
		user("u1", "old q"),
		bot("b1", 0, "old a"),
		bot("b3", 0, "dup of existing"),
	}))

	want := []Entry{
		user("u1", "old q"),
		bot("b1", 0, "old a"),
		user("u3", "newest question"),
		bot("b3", 0, "newest answer"),
	}
	if diff := cmp.Diff(want, snap.Entries, ignoreIDs); diff != "" {
		t.Errorf("entries mismatch (-want +got):\n%s", diff)
	}
}

func TestPrependGoesAfterWelcome(t *testing.T) {
	s := NewStore(nil)
	s.Dispatch(SeedWelcome("hello"))
	s.Dispatch(AppendFinal(user("u9", "q")))

	snap := s.Dispatch(PrependHistoryBlock([]Entry{bot("b1", 0, "older")}))
	require.Len(t, snap.Entries, 3)
	assert.Equal(t, KindWelcome, snap.Entries[0].Kind)
	assert.Equal(t, "b1", snap.Entries[1].SequenceCode)
	assert.Equal(t, "u9", snap.Entries[2].SequenceCode)
}

func TestPrependAllDuplicatesIsNoop(t *testing.T) {
	s := NewStore(nil)
	before := s.Dispatch(AppendFinal(bot("b1", 0, "a")))
	after := s.Dispatch(PrependHistoryBlock([]Entry{bot("b1", 0, "a")}))
	if diff := cmp.Diff(before.Entries, after.Entries); diff != "" {
		t.Errorf("entries changed (-before +after):\n%s", diff)
	}
}

func TestMarkRoleSettled(t *testing.T) {
	s := NewStore(nil)
	s.Dispatch(AppendTransient(RoleUser, "hi"), AppendTransient(RoleBot, "..."))
	snap := s.Dispatch(MarkRoleSettled(RoleUser))

	assert.False(t, snap.Entries[0].Transient)
	assert.True(t, snap.Entries[1].Transient)
}

func TestRemoveTransient(t *testing.T) {
	s := NewStore(nil)
	s.Dispatch(AppendFinal(bot("b1", 0, "a")), AppendTransient(RoleBot, "..."))
	snap := s.Dispatch(RemoveTransient(RoleBot))
	require.Len(t, snap.Entries, 1)
	assert.Equal(t, "b1", snap.Entries[0].SequenceCode)
}

func TestSeedWelcomeOnlyWhenEmpty(t *testing.T) {
	s := NewStore(nil)
	snap := s.Dispatch(SeedWelcome("hello"))
	require.Len(t, snap.Entries, 1)
	assert.True(t, snap.Entries[0].Synthetic())

	snap = s.Dispatch(SeedWelcome("hello"))
	assert.Len(t, snap.Entries, 1)
}

func TestEnsureWelcomeHead(t *testing.T) {
	s := NewStore(nil)
	s.Dispatch(AppendFinal(user("u1", "q")))
	snap := s.Dispatch(EnsureWelcomeHead("hello"), EnsureWelcomeHead("hello"))

	require.Len(t, snap.Entries, 2)
	assert.Equal(t, KindWelcome, snap.Entries[0].Kind)
	assert.Equal(t, "hello", snap.Entries[0].Content)
}

func TestSetRatingAndAttachPreview(t *testing.T) {
	s := NewStore(nil)
	snap := s.Dispatch(AppendFinal(bot("b1", 0, "a")), AppendFinal(bot("b1", 1, "b")), AppendFinal(bot("b2", 0, "c")))
	id := snap.Entries[1].ID

	p := &preview.Preview{Title: "Example"}
	snap = s.Dispatch(SetRating([]string{"b1"}, 4), AttachPreview(id, p))

	assert.Equal(t, 4, snap.Entries[0].Rating)
	assert.Equal(t, 4, snap.Entries[1].Rating)
	assert.Equal(t, 0, snap.Entries[2].Rating)
	assert.Same(t, p, snap.Entries[1].Preview)
}

func TestDispatchNotifiesAndVersions(t *testing.T) {
	var got []uint64
	s := NewStore(func(snap Snapshot) { got = append(got, snap.Version) })
	s.Dispatch(AppendTransient(RoleBot, "..."))
	s.Dispatch(RemoveTransient(RoleBot))
	assert.Equal(t, []uint64{1, 2}, got)
}

func TestSnapshotIsImmutable(t *testing.T) {
	s := NewStore(nil)
	snap := s.Dispatch(AppendFinal(bot("b1", 0, "a")))
	snap.Entries[0].Content = "mutated"
	assert.Equal(t, "a", s.Snapshot().Entries[0].Content)
}

func TestConcurrentDispatchKeepsInvariants(t *testing.T) {
	s := NewStore(nil)
	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			role := RoleBot
			if i%2 == 0 {
				role = RoleUser
			}
			s.Dispatch(AppendTransient(role, "..."))
		}()
	}
	wg.Wait()

	entries := s.Snapshot().Entries
	assert.Equal(t, 1, transientCount(entries, RoleBot))
	assert.Equal(t, 1, transientCount(entries, RoleUser))

	ids := make(map[int64]bool)
	for _, e := range entries {
		assert.False(t, ids[e.ID], "duplicate id %d", e.ID)
		ids[e.ID] = true
	}
}

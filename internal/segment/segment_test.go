package segment

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplit(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"single", "Hello", []string{"Hello"}},
		{"two chunks", "Hi\n\nVisit https://x.com", []string{"Hi", "Visit https://x.com"}},
		{"empty chunks dropped", "a\n\n\n\nb", []string{"a", "b"}},
		{"whitespace chunk dropped", "a\n\n  \n\nb", []string{"a", "b"}},
		{"single newline kept", "line1\nline2", []string{"line1\nline2"}},
		{"empty", "", []string{}},
		{"leading separator", "\n\nx", []string{"x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Split(tt.raw))
		})
	}
}

func TestSplitIdempotent(t *testing.T) {
	inputs := []string{
		"Hi\n\nthere",
		"a\n\n\n\nb\n\n",
		"\n\n \n\nonly\n\n\t",
		"one\ntwo\n\n\nthree",
		"",
	}
	for _, in := range inputs {
		first := Split(in)
		again := Split(strings.Join(first, Separator))
		assert.Equal(t, first, again, "input %q", in)
	}
}

func TestSegmentsCarryFirstURL(t *testing.T) {
	segs := Segments("Hi\n\nVisit https://x.com and http://y.org")
	require.Len(t, segs, 2)
	assert.Equal(t, Segment{Index: 0, Text: "Hi"}, segs[0])
	assert.Equal(t, 1, segs[1].Index)
	assert.Equal(t, "https://x.com", segs[1].URL)
}

func TestWholeIsNotSplit(t *testing.T) {
	s := Whole("a\n\nb https://z.io/p")
	assert.Equal(t, "a\n\nb https://z.io/p", s.Text)
	assert.Equal(t, "https://z.io/p", s.URL)
}

func TestFirstURL(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"no links here", ""},
		{"see HTTPS://Example.com/a?b=c.", "HTTPS://Example.com/a?b=c"},
		{"ftp://files.host/x.txt, then", "ftp://files.host/x.txt"},
		{"file:///tmp/a", "file:///tmp/a"},
		{"mailto:a@b.c", ""},
		{"(https://x.com/path)", "https://x.com/path"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FirstURL(tt.in), tt.in)
	}
}

func TestLinkify(t *testing.T) {
	got := Linkify("go https://a.io now", HTMLAnchor)
	assert.Equal(t,
		`go <a href="https://a.io" target="_blank" style="color:blue;text-decoration:underline;">https://a.io</a> now`,
		got)

	brackets := Linkify("x https://a.io y http://b.io", func(u string) string { return "[" + u + "]" })
	assert.Equal(t, "x [https://a.io] y [http://b.io]", brackets)
	assert.Equal(t, []string{"https://a.io", "http://b.io"}, URLs("x https://a.io y http://b.io"))

	assert.Equal(t, "plain", Linkify("plain", nil))
}

// Package segment splits bot answers into display chunks and finds the links in them.
package segment

import (
	"html"
	"regexp"
	"strings"
)

// Separator divides a raw answer into chunks.
const Separator = "\n\n"

var urlPattern = regexp.MustCompile(`(?i)\b(https?|ftp|file)://[-A-Z0-9+&@#/%?=~_|!:,.;]*[-A-Z0-9+&@#/%=~_|]`)

// Segment is one displayable chunk of a server message.
type Segment struct {
	Index int
	Text  string
	URL   string
}

// Split breaks raw on blank lines, dropping empty and whitespace-only chunks.
// Chunk text is kept as-is otherwise.
func Split(raw string) []string {
	parts := strings.Split(raw, Separator)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p) == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Segments splits raw and detects the first URL of each chunk.
func Segments(raw string) []Segment {
	chunks := Split(raw)
	out := make([]Segment, len(chunks))
	for i, c := range chunks {
		out[i] = Segment{Index: i, Text: c, URL: FirstURL(c)}
	}
	return out
}

// Whole wraps raw as a single segment. User messages are never split.
func Whole(raw string) Segment {
	return Segment{Text: raw, URL: FirstURL(raw)}
}

// FirstURL returns the first URL in text, or "".
func FirstURL(text string) string {
	return urlPattern.FindString(text)
}

// URLs returns every URL in text in order of appearance.
func URLs(text string) []string {
	return urlPattern.FindAllString(text, -1)
}

// LinkFormatter renders a detected URL.
type LinkFormatter func(url string) string

// HTMLAnchor renders url as an anchor opening in a new tab.
func HTMLAnchor(url string) string {
	u := html.EscapeString(url)
	return `<a href="` + u + `" target="_blank" style="color:blue;text-decoration:underline;">` + u + `</a>`
}

// Linkify replaces each URL in text with format(url).
func Linkify(text string, format LinkFormatter) string {
	if format == nil {
		return text
	}
	return urlPattern.ReplaceAllStringFunc(text, func(m string) string {
		return format(m)
	})
}

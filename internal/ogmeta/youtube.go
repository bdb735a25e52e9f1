package ogmeta

import (
	"net/url"
	"path"
	"strings"
)

const (
	defaultOEmbedURL = "https://www.youtube.com/oembed"
	thumbnailFormat  = "https://img.youtube.com/vi/%s/maxresdefault.jpg"
	fallbackTitle    = "YouTube Video"
)

// IsYouTube reports whether rawURL points at YouTube.
func IsYouTube(rawURL string) bool {
	return strings.Contains(rawURL, "youtube.com") || strings.Contains(rawURL, "youtu.be")
}

// YouTubeID extracts the video id from watch, shorts and youtu.be links.
func YouTubeID(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	if strings.Contains(u.Host, "youtu.be") {
		id := path.Base(strings.TrimSuffix(u.Path, "/"))
		if id == "." || id == "/" {
			return ""
		}
		return id
	}
	if rest, ok := strings.CutPrefix(u.Path, "/shorts/"); ok {
		id, _, _ := strings.Cut(rest, "/")
		return id
	}
	return u.Query().Get("v")
}

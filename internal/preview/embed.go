package preview

import (
	"net/url"
	"strings"

	"github.com/matheus3301/twin/internal/ogmeta"
)

// Video platforms with an embeddable player.
const (
	PlatformYouTube     = "youtube"
	PlatformVimeo       = "vimeo"
	PlatformDailymotion = "dailymotion"
	PlatformFacebook    = "facebook"
	PlatformTwitch      = "twitch"
	PlatformTikTok      = "tiktok"
	PlatformInstagram   = "instagram"
)

// twitchParent is the embedding host Twitch requires in player URLs.
const twitchParent = "localhost"

// Embed is a player URL shown instead of a static image.
type Embed struct {
	Platform string `json:"platform"`
	URL      string `json:"url"`
}

// Classify maps a video page URL to its embeddable player, or nil.
func Classify(raw string) *Embed {
	switch {
	case raw == "":
		return nil
	case ogmeta.IsYouTube(raw):
		return &Embed{PlatformYouTube, "https://www.youtube.com/embed/" + ogmeta.YouTubeID(raw)}
	case strings.Contains(raw, "vimeo.com"):
		return &Embed{PlatformVimeo, "https://player.vimeo.com/video/" + after(raw, "vimeo.com/")}
	case strings.Contains(raw, "dailymotion.com"):
		return &Embed{PlatformDailymotion, "https://www.dailymotion.com/embed/video/" + after(raw, "/video/")}
	case strings.Contains(raw, "facebook.com") && strings.Contains(raw, "/videos/"):
		return &Embed{PlatformFacebook, "https://www.facebook.com/plugins/video.php?href=" + url.QueryEscape(raw) + "&show_text=0&width=560"}
	case strings.Contains(raw, "twitch.tv"):
		return &Embed{PlatformTwitch, "https://player.twitch.tv/?channel=" + after(raw, "twitch.tv/") + "&parent=" + twitchParent + "&autoplay=false"}
	case strings.Contains(raw, "tiktok.com"):
		return &Embed{PlatformTikTok, "https://www.tiktok.com/embed/v2/" + after(raw, "/video/")}
	case strings.Contains(raw, "instagram.com/p/"):
		return &Embed{PlatformInstagram, "https://www.instagram.com/p/" + strings.TrimSuffix(after(raw, "/p/"), "/") + "/embed/"}
	}
	return nil
}

// after returns the part of s following sep, cut at the first query or fragment.
func after(s, sep string) string {
	_, rest, _ := strings.Cut(s, sep)
	if i := strings.IndexAny(rest, "?#"); i >= 0 {
		rest = rest[:i]
	}
	return rest
}

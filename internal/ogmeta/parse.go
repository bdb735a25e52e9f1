package ogmeta

import (
	"io"
	"strings"

	"golang.org/x/net/html"
)

// Parse extracts og:title (falling back to <title>), og:description (falling back
// to meta description) and og:image from an HTML document.
func Parse(r io.Reader) (Metadata, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return Metadata{}, err
	}

	var (
		md        Metadata
		title     string
		metaDesc  string
		seenTitle bool
	)
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "title":
				if !seenTitle {
					seenTitle = true
					title = strings.TrimSpace(textOf(n))
				}
			case "meta":
				content := attr(n, "content")
				switch {
				case attr(n, "property") == "og:title" && md.OgTitle == "":
					md.OgTitle = content
				case attr(n, "property") == "og:description" && md.OgDescription == "":
					md.OgDescription = content
				case attr(n, "property") == "og:image" && len(md.OgImage) == 0 && content != "":
					md.OgImage = Images{{URL: content}}
				case strings.EqualFold(attr(n, "name"), "description") && metaDesc == "":
					metaDesc = content
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	if md.OgTitle == "" {
		md.OgTitle = title
	}
	if md.OgDescription == "" {
		md.OgDescription = metaDesc
	}
	return md, nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func textOf(n *html.Node) string {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	}
	return b.String()
}

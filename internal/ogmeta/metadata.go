// Package ogmeta scrapes Open Graph metadata from web pages and serves it over HTTP.
package ogmeta

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Image is one og:image entry.
type Image struct {
	URL string `json:"url"`
}

// Images accepts either a bare URL string or a list of {url} objects on the wire.
type Images []Image

// UnmarshalJSON implements json.Unmarshaler.
func (im *Images) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*im = nil
		return nil
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if s == "" {
			*im = nil
		} else {
			*im = Images{{URL: s}}
		}
		return nil
	case len(b) > 0 && b[0] == '[':
		var list []Image
		if err := json.Unmarshal(b, &list); err != nil {
			return err
		}
		*im = list
		return nil
	case len(b) > 0 && b[0] == '{':
		var one Image
		if err := json.Unmarshal(b, &one); err != nil {
			return err
		}
		*im = Images{one}
		return nil
	}
	return fmt.Errorf("ogImage: unexpected value %s", b)
}

// Metadata is the wire shape of POST /api/metadata-url.
type Metadata struct {
	OgTitle       string `json:"ogTitle,omitempty"`
	OgDescription string `json:"ogDescription,omitempty"`
	OgImage       Images `json:"ogImage,omitempty"`
	OgURL         string `json:"ogUrl,omitempty"`
}

// ImageURL returns the first non-empty image URL.
func (m *Metadata) ImageURL() string {
	if m == nil {
		return ""
	}
	for _, im := range m.OgImage {
		if im.URL != "" {
			return im.URL
		}
	}
	return ""
}

// Empty reports whether nothing displayable was found.
func (m *Metadata) Empty() bool {
	return m == nil || (m.OgTitle == "" && m.OgDescription == "" && m.ImageURL() == "")
}

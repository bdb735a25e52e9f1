// Package live keeps one real-time subscription to the conversation channel.
package live

import (
	"bytes"
	"encoding/json"
)

// Params identifies a subscription. Any change requires a new connection.
type Params struct {
	Endpoint string
	Token    string
	Channel  string
}

// Complete reports whether all three parts are set.
func (p Params) Complete() bool {
	return p.Endpoint != "" && p.Token != "" && p.Channel != ""
}

type publication struct {
	Pub *struct {
		Data json.RawMessage `json:"data"`
	} `json:"pub"`
}

// Unwrap extracts pub.data from a channel payload. Blank, empty-object,
// malformed and publication-less payloads are rejected.
func Unwrap(raw []byte) (json.RawMessage, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, false
	}
	var p publication
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, false
	}
	if p.Pub == nil {
		return nil, false
	}
	data := bytes.TrimSpace(p.Pub.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, false
	}
	return data, true
}

func connectPayload(p Params) ([]byte, error) {
	return json.Marshal(struct {
		Token string              `json:"token"`
		Subs  map[string]struct{} `json:"subs"`
	}{
		Token: p.Token,
		Subs:  map[string]struct{}{p.Channel: {}},
	})
}

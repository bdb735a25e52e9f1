package store

import (
	"strings"
	"unicode/utf8"
)

const snippetRadius = 32

// SearchMessages performs a case-insensitive substring search on cached
// message content. convCode narrows the search to one conversation.
func (db *DB) SearchMessages(query string, convCode string, limit int) ([]SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}

	q := `
		SELECT id, conv_code, msg_code, sender_type, content, rating, sent_at
		FROM messages
		WHERE content LIKE ? ESCAPE '\'`

	args := []any{"%" + escapeLike(query) + "%"}
	if convCode != "" {
		q += " AND conv_code = ?"
		args = append(args, convCode)
	}
	q += " ORDER BY sent_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var results []SearchResult
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ConvCode, &m.MsgCode, &m.SenderType, &m.Content, &m.Rating, &m.SentAt); err != nil {
			return nil, err
		}
		results = append(results, SearchResult{Message: m, Snippet: snippet(m.Content, query)})
	}
	return results, rows.Err()
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// snippet marks the first match of query in content with << >> and trims
// the surroundings to a window around it.
func snippet(content, query string) string {
	idx := strings.Index(strings.ToLower(content), strings.ToLower(query))
	if idx < 0 || len(strings.ToLower(content)) != len(content) {
		// Lowercasing changed byte offsets; fall back to an exact match.
		idx = strings.Index(content, query)
	}
	if idx < 0 {
		return content
	}
	end := idx + len(query)

	start := idx
	for n := 0; start > 0 && n < snippetRadius; n++ {
		_, size := utf8.DecodeLastRuneInString(content[:start])
		start -= size
	}
	stop := end
	for n := 0; stop < len(content) && n < snippetRadius; n++ {
		_, size := utf8.DecodeRuneInString(content[stop:])
		stop += size
	}

	var b strings.Builder
	if start > 0 {
		b.WriteString("...")
	}
	b.WriteString(content[start:idx])
	b.WriteString("<<")
	b.WriteString(content[idx:end])
	b.WriteString(">>")
	b.WriteString(content[end:stop])
	if stop < len(content) {
		b.WriteString("...")
	}
	return b.String()
}

package store

import "time"

// UpsertMessage inserts or updates a message (idempotent on conv_code + msg_code).
// A zero rating never overwrites a stored one.
func (db *DB) UpsertMessage(m *Message) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO messages (conv_code, msg_code, sender_type, content, rating, sent_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(conv_code, msg_code) DO UPDATE SET
			sender_type = excluded.sender_type,
			content = excluded.content,
			rating = CASE WHEN excluded.rating != 0 THEN excluded.rating ELSE messages.rating END,
			sent_at = CASE WHEN excluded.sent_at != 0 THEN excluded.sent_at ELSE messages.sent_at END`,
		m.ConvCode, m.MsgCode, m.SenderType, m.Content, m.Rating, m.SentAt, now)
	return err
}

// SetRating records a rating on cached messages.
func (db *DB) SetRating(convCode string, msgCodes []string, value int) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	for _, code := range msgCodes {
		if _, err := tx.Exec(`UPDATE messages SET rating = ? WHERE conv_code = ? AND msg_code = ?`, value, convCode, code); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ListMessages returns the newest cached messages of a conversation, newest first.
func (db *DB) ListMessages(convCode string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(`
		SELECT id, conv_code, msg_code, sender_type, content, rating, sent_at
		FROM messages
		WHERE conv_code = ?
		ORDER BY sent_at DESC, id DESC
		LIMIT ?`, convCode, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var msgs []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ConvCode, &m.MsgCode, &m.SenderType, &m.Content, &m.Rating, &m.SentAt); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// CountMessages returns the number of cached messages of a conversation.
func (db *DB) CountMessages(convCode string) (int, error) {
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM messages WHERE conv_code = ?`, convCode).Scan(&n)
	return n, err
}

package services

import (
	"encoding/json"
	"fmt"
	"time"
)

// localConversation is one conversation exported from a client's local
// history. LocalID is the client-generated id; it becomes the dedup key once
// imported.
type localConversation struct {
	LocalID   string         `json:"local_id"`
	Title     string         `json:"title"`
	Mode      string         `json:"mode"`
	CreatedAt time.Time      `json:"created_at"`
	Messages  []localMessage `json:"messages"`
}

type localMessage struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// parseHistory decodes a local history export: either a bare JSON array of
// conversations or an object wrapping it under "conversations".
func parseHistory(payload []byte) ([]localConversation, error) {
	var items []localConversation
	if err := json.Unmarshal(payload, &items); err == nil {
		return items, nil
	}

	var wrapped struct {
		Conversations []localConversation `json:"conversations"`
	}
	if err := json.Unmarshal(payload, &wrapped); err != nil {
		return nil, fmt.Errorf("decoding history payload: %w", err)
	}
	return wrapped.Conversations, nil
}

// recoverObjects extracts every well-formed top-level JSON object from a
// corrupted payload by brace matching. Braces inside strings and escaped
// quotes are ignored; candidates that still fail to validate are dropped.
func recoverObjects(payload []byte) [][]byte {
	var objects [][]byte

	depth := 0
	start := -1
	inString := false
	escaped := false

	for i, b := range payload {
		if inString {
			switch {
			case escaped:
				escaped = false
			case b == '\\':
				escaped = true
			case b == '"':
				inString = false
			}
			continue
		}

		switch b {
		case '"':
			inString = true
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 && start >= 0 {
				candidate := payload[start : i+1]
				if json.Valid(candidate) {
					objects = append(objects, candidate)
				}
				start = -1
			}
		}
	}
	return objects
}

// recoverHistory rebuilds a parseable history array from a corrupted payload.
// Salvaged objects that do not decode as conversations are dropped.
func recoverHistory(payload []byte) []localConversation {
	var items []localConversation
	for _, obj := range recoverObjects(payload) {
		var c localConversation
		if err := json.Unmarshal(obj, &c); err != nil {
			continue
		}
		if c.LocalID == "" && len(c.Messages) == 0 {
			continue
		}
		items = append(items, c)
	}
	return items
}

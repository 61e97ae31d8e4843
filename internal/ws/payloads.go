package ws

import (
	"encoding/json"

	"magicpic_admin/internal/domain"
)

// Message is the frame sent in both directions.
type Message struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// client → server
type SetPagePayload struct {
	Page int `json:"page"`
}

type SetTypePayload struct {
	Type string `json:"type"`
}

type SetUserPayload struct {
	UserID int64 `json:"user_id"`
}

type SearchPayload struct {
	Query string `json:"query"`
}

type SelectPayload struct {
	Candidate domain.Candidate `json:"candidate"`
}

// server → client
type ToastPayload struct {
	Level   string `json:"level"` // success | error
	Message string `json:"message"`
}

type NavigatePayload struct {
	Path string `json:"path"`
}

type ErrorPayload struct {
	Message  string `json:"message"`
	Redirect string `json:"redirect,omitempty"`
}

func encode(msgType string, data any) []byte {
	m := Message{Type: msgType}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			raw, _ = json.Marshal(ErrorPayload{Message: "encode failed"})
			m.Type = MsgError
		}
		m.Data = raw
	}
	b, _ := json.Marshal(m)
	return b
}

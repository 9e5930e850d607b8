package gateway

import "github.com/chitti-game/chitti-server/internal/server"

// Inbound frame types.
const (
	frameCommand   = "command"
	frameCallback  = "callback"
	frameJoinChat  = "join_chat"
	frameLeaveChat = "leave_chat"
)

// Outbound frame types.
const (
	frameMessage = "message"
	frameEdit    = "edit"
	frameAnswer  = "answer"
	frameError   = "error"
)

// inbound is a client frame. ChatID 0 addresses the client's private chat
// with the bot; group chats have negative ids.
type inbound struct {
	Type       string `json:"type"`
	ChatID     int64  `json:"chat_id"`
	ChatTitle  string `json:"chat_title,omitempty"`
	Text       string `json:"text,omitempty"`
	MessageID  int64  `json:"message_id,omitempty"`
	CallbackID string `json:"callback_id,omitempty"`
	Data       string `json:"data,omitempty"`
}

// outbound is a server frame. ChatID 0 marks a direct message.
type outbound struct {
	Type       string          `json:"type"`
	ChatID     int64           `json:"chat_id"`
	MessageID  int64           `json:"message_id,omitempty"`
	Text       string          `json:"text,omitempty"`
	Buttons    server.Keyboard `json:"buttons,omitempty"`
	CallbackID string          `json:"callback_id,omitempty"`
	Alert      bool            `json:"alert,omitempty"`
}

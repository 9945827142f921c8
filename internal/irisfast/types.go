package irisfast

// Message is one chat event pushed by Iris over the WebSocket.
type Message struct {
    Msg    string       `json:"msg"`
    Room   string       `json:"room"`
    Sender *string      `json:"sender,omitempty"`
    JSON   *MessageJSON `json:"json,omitempty"`
}

// MessageJSON carries the raw chat log fields Iris forwards with each message.
type MessageJSON struct {
    UserID  string `json:"user_id"`
    ChatID  string `json:"chat_id,omitempty"`
    Message string `json:"message,omitempty"`
    Type    string `json:"type,omitempty"`
}

// SenderName returns the display name, falling back to the user id.
func (m *Message) SenderName() string {
    if m == nil { return "" }
    if m.Sender != nil && *m.Sender != "" { return *m.Sender }
    if m.JSON != nil { return m.JSON.UserID }
    return ""
}

// Config mirrors GET /config on the Iris server.
type Config struct {
    BotName           string `json:"bot_name"`
    Port              int    `json:"bot_http_port"`
    PollingSpeed      int    `json:"db_polling_rate"`
    MessageRate       int    `json:"message_send_rate"`
    BotID             int64  `json:"bot_id"`
    WebserverEndpoint string `json:"web_server_endpoint"`
}

// ReplyRequest is the /reply body and the WebSocket egress frame.
type ReplyRequest struct {
    Type string `json:"type"`
    Room string `json:"room"`
    Data string `json:"data"`
}

const (
    replyText  = "text"
    replyImage = "image"
)

type WebSocketState int

const (
    WSStateDisconnected WebSocketState = iota
    WSStateConnecting
    WSStateConnected
    WSStateReconnecting
    WSStateFailed
)

func (s WebSocketState) String() string {
    switch s {
    case WSStateConnecting:
        return "connecting"
    case WSStateConnected:
        return "connected"
    case WSStateReconnecting:
        return "reconnecting"
    case WSStateFailed:
        return "failed"
    default:
        return "disconnected"
    }
}

package irisfast

import "context"

type MessageCallback func(message *Message)

type StateCallback func(state WebSocketState)

// WSClient is the inbound side of Iris: chat events in, connection state changes out.
type WSClient interface {
    Connect(ctx context.Context) error
    OnMessage(cb MessageCallback) int
    RemoveMessageCallback(id int)
    OnStateChange(cb StateCallback) int
    RemoveStateCallback(id int)
    State() WebSocketState
    Close(ctx context.Context) error
}

var _ WSClient = (*WebSocket)(nil)

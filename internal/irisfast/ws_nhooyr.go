package irisfast

import (
    "context"
    "errors"
    "net/http"
    "strings"
    "sync"
    "sync/atomic"
    "time"

    "nhooyr.io/websocket"
    "nhooyr.io/websocket/wsjson"
)

var ErrNotConnected = errors.New("ws not connected")

type callbackEntry struct {
    id       int
    callback MessageCallback
}

type stateCallbackEntry struct {
    id       int
    callback StateCallback
}

// WebSocket keeps one Iris connection alive. The read loop owns the connection;
// a dropped connection is replaced by the reconnect loop and writes are serialized.
type WebSocket struct {
    wsURL string

    mu    sync.Mutex
    conn  *websocket.Conn
    state WebSocketState

    writeMu sync.Mutex

    cbM      sync.RWMutex
    nextCbID int
    msgCbs   []callbackEntry
    stateCbs []stateCallbackEntry

    maxReconnectAttempts int
    reconnectDelay       time.Duration
    reconnecting         atomic.Bool

    pingInterval time.Duration
    readLimit    int64

    stopCh   chan struct{}
    stopOnce sync.Once
    wg       sync.WaitGroup

    rootCtx    context.Context
    rootCancel context.CancelFunc

    // optional: inject headers at handshake (e.g., X-User-*)
    headerProvider HeaderProvider
}

func NewWebSocket(wsURL string, maxReconnectAttempts int, reconnectDelay time.Duration) *WebSocket {
    if reconnectDelay <= 0 {
        reconnectDelay = time.Second
    }
    rootCtx, rootCancel := context.WithCancel(context.Background())
    return &WebSocket{
        wsURL:                wsURL,
        state:                WSStateDisconnected,
        maxReconnectAttempts: maxReconnectAttempts,
        reconnectDelay:       reconnectDelay,
        pingInterval:         30 * time.Second,
        readLimit:            1 << 20,
        stopCh:               make(chan struct{}),
        rootCtx:              rootCtx,
        rootCancel:           rootCancel,
    }
}

// SetHeaderProvider allows injecting headers into the WS handshake.
func (ws *WebSocket) SetHeaderProvider(h HeaderProvider) {
    ws.headerProvider = h
}

// SetPingInterval must be called before Connect.
func (ws *WebSocket) SetPingInterval(d time.Duration) {
    if d > 0 {
        ws.pingInterval = d
    }
}

func (ws *WebSocket) Connect(ctx context.Context) error {
    ws.mu.Lock()
    if ws.state == WSStateConnected || ws.state == WSStateConnecting {
        ws.mu.Unlock()
        return nil
    }
    ws.mu.Unlock()
    if ws.isStopping() {
        return errors.New("ws closed")
    }

    ws.setState(WSStateConnecting)
    conn, err := ws.dial(ctx)
    if err != nil {
        ws.setState(WSStateFailed)
        ws.scheduleReconnect()
        return err
    }
    ws.attach(conn)
    return nil
}

func (ws *WebSocket) State() WebSocketState {
    ws.mu.Lock()
    defer ws.mu.Unlock()
    return ws.state
}

func (ws *WebSocket) Connected() bool {
    ws.mu.Lock()
    defer ws.mu.Unlock()
    return ws.conn != nil && ws.state == WSStateConnected
}

// WriteJSON sends one frame on the current connection.
func (ws *WebSocket) WriteJSON(ctx context.Context, v any) error {
    ws.mu.Lock()
    conn := ws.conn
    ws.mu.Unlock()
    if conn == nil {
        return ErrNotConnected
    }
    if _, ok := ctx.Deadline(); !ok {
        var cancel context.CancelFunc
        ctx, cancel = context.WithTimeout(ctx, 5*time.Second)
        defer cancel()
    }
    ws.writeMu.Lock()
    defer ws.writeMu.Unlock()
    return wsjson.Write(ctx, conn, v)
}

func (ws *WebSocket) dial(ctx context.Context) (*websocket.Conn, error) {
    dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
    defer cancel()
    conn, _, err := websocket.Dial(dialCtx, ws.wsURL, &websocket.DialOptions{
        CompressionMode: websocket.CompressionNoContextTakeover,
        HTTPHeader:      ws.buildHeaders(),
    })
    if err != nil {
        return nil, err
    }
    conn.SetReadLimit(ws.readLimit)
    return conn, nil
}

func (ws *WebSocket) attach(conn *websocket.Conn) {
    if ws.isStopping() {
        _ = conn.Close(websocket.StatusNormalClosure, "close")
        return
    }
    ws.mu.Lock()
    ws.conn = conn
    ws.mu.Unlock()
    ws.setState(WSStateConnected)

    ws.wg.Add(2)
    go ws.listen(conn)
    go ws.pingLoop(conn)
}

// drop retires conn once; whichever loop notices the failure first triggers the reconnect.
func (ws *WebSocket) drop(conn *websocket.Conn, reason string) {
    ws.mu.Lock()
    if ws.conn != conn {
        ws.mu.Unlock()
        return
    }
    ws.conn = nil
    ws.mu.Unlock()
    _ = conn.Close(websocket.StatusGoingAway, reason)
    if ws.isStopping() {
        return
    }
    ws.setState(WSStateDisconnected)
    ws.scheduleReconnect()
}

func (ws *WebSocket) listen(conn *websocket.Conn) {
    defer ws.wg.Done()
    for {
        var msg Message
        if err := wsjson.Read(ws.rootCtx, conn, &msg); err != nil {
            if ws.isStopping() {
                return
            }
            ws.drop(conn, "reconnect")
            return
        }
        ws.cbM.RLock()
        callbacks := append([]callbackEntry(nil), ws.msgCbs...)
        ws.cbM.RUnlock()
        for _, entry := range callbacks {
            if entry.callback != nil {
                m := msg
                entry.callback(&m)
            }
        }
    }
}

func (ws *WebSocket) pingLoop(conn *websocket.Conn) {
    defer ws.wg.Done()
    t := time.NewTicker(ws.pingInterval)
    defer t.Stop()
    failures := 0
    for {
        select {
        case <-ws.stopCh:
            return
        case <-t.C:
        }
        ws.mu.Lock()
        current := ws.conn == conn
        ws.mu.Unlock()
        if !current {
            return
        }
        ctx, cancel := context.WithTimeout(ws.rootCtx, 3*time.Second)
        err := conn.Ping(ctx)
        cancel()
        if err == nil {
            failures = 0
            continue
        }
        failures++
        if failures >= 2 {
            ws.drop(conn, "ping failure")
            return
        }
    }
}

func (ws *WebSocket) scheduleReconnect() {
    if ws.maxReconnectAttempts <= 0 || ws.isStopping() {
        return
    }
    if !ws.reconnecting.CompareAndSwap(false, true) {
        return
    }
    ws.setState(WSStateReconnecting)

    go func() {
        defer ws.reconnecting.Store(false)
        for attempt := 1; attempt <= ws.maxReconnectAttempts; attempt++ {
            select {
            case <-ws.stopCh:
                return
            case <-time.After(ws.reconnectBackoff(attempt)):
            }
            conn, err := ws.dial(ws.rootCtx)
            if err != nil {
                continue
            }
            ws.attach(conn)
            return
        }
        ws.setState(WSStateFailed)
    }()
}

func (ws *WebSocket) reconnectBackoff(attempt int) time.Duration {
    d := ws.reconnectDelay
    for i := 1; i < attempt && d < 30*time.Second; i++ {
        d *= 2
    }
    if d > 30*time.Second {
        d = 30 * time.Second
    }
    return d
}

func (ws *WebSocket) OnMessage(cb MessageCallback) int {
    ws.cbM.Lock()
    defer ws.cbM.Unlock()
    ws.nextCbID++
    ws.msgCbs = append(ws.msgCbs, callbackEntry{id: ws.nextCbID, callback: cb})
    return ws.nextCbID
}

func (ws *WebSocket) RemoveMessageCallback(id int) {
    ws.cbM.Lock()
    defer ws.cbM.Unlock()
    for i, cb := range ws.msgCbs {
        if cb.id == id {
            ws.msgCbs = append(ws.msgCbs[:i], ws.msgCbs[i+1:]...)
            break
        }
    }
}

func (ws *WebSocket) OnStateChange(cb StateCallback) int {
    ws.cbM.Lock()
    defer ws.cbM.Unlock()
    ws.nextCbID++
    ws.stateCbs = append(ws.stateCbs, stateCallbackEntry{id: ws.nextCbID, callback: cb})
    return ws.nextCbID
}

func (ws *WebSocket) RemoveStateCallback(id int) {
    ws.cbM.Lock()
    defer ws.cbM.Unlock()
    for i, cb := range ws.stateCbs {
        if cb.id == id {
            ws.stateCbs = append(ws.stateCbs[:i], ws.stateCbs[i+1:]...)
            break
        }
    }
}

func (ws *WebSocket) setState(state WebSocketState) {
    ws.mu.Lock()
    if ws.state == state {
        ws.mu.Unlock()
        return
    }
    ws.state = state
    ws.mu.Unlock()

    ws.cbM.RLock()
    callbacks := append([]stateCallbackEntry(nil), ws.stateCbs...)
    ws.cbM.RUnlock()
    for _, entry := range callbacks {
        if entry.callback != nil {
            entry.callback(state)
        }
    }
}

func (ws *WebSocket) Close(ctx context.Context) error {
    ws.stopOnce.Do(func() { close(ws.stopCh) })
    ws.mu.Lock()
    conn := ws.conn
    ws.conn = nil
    ws.mu.Unlock()
    if conn != nil {
        _ = conn.Close(websocket.StatusNormalClosure, "close")
    }

    done := make(chan struct{})
    go func() {
        ws.wg.Wait()
        close(done)
    }()
    defer ws.rootCancel()
    select {
    case <-ctx.Done():
        return ctx.Err()
    case <-done:
        ws.setState(WSStateDisconnected)
        return nil
    }
}

func (ws *WebSocket) isStopping() bool {
    select {
    case <-ws.stopCh:
        return true
    default:
        return false
    }
}

func (ws *WebSocket) buildHeaders() http.Header {
    hdr := http.Header{}
    if ws.headerProvider == nil {
        return hdr
    }
    for k, v := range ws.headerProvider() {
        if strings.TrimSpace(k) == "" || strings.TrimSpace(v) == "" {
            continue
        }
        hdr.Set(k, v)
    }
    return hdr
}

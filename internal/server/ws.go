package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// wsConn serializes writes to a gorilla connection, which allows only one
// concurrent writer. It satisfies hub.Conn.
type wsConn struct {
	conn         *websocket.Conn
	mu           sync.Mutex
	writeTimeout time.Duration
	closeOnce    sync.Once
}

func newWSConn(conn *websocket.Conn, writeTimeout time.Duration) *wsConn {
	return &wsConn{conn: conn, writeTimeout: writeTimeout}
}

func (w *wsConn) WriteJSON(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.conn.SetWriteDeadline(time.Now().Add(w.writeTimeout))
	return w.conn.WriteJSON(v)
}

func (w *wsConn) Close() error {
	var err error
	w.closeOnce.Do(func() {
		w.mu.Lock()
		w.conn.SetWriteDeadline(time.Now().Add(time.Second))
		w.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		w.mu.Unlock()
		err = w.conn.Close()
	})
	return err
}

func isUnexpectedClose(err error) bool {
	return websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived)
}

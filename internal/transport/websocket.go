package transport

import (
	"fmt"
	"io"
	"time"

	"github.com/gorilla/websocket"

	"github.com/andy6609/roomchat/internal/wire"
)

const (
	writeWait = 10 * time.Second
	// Frames above wire.MaxFrameSize or with embedded line breaks are dropped
	// softly; far larger ones make gorilla close the connection.
	wsReadLimit = 4 * wire.MaxFrameSize
)

// WebSocket carries one frame per text message.
type WebSocket struct {
	conn *websocket.Conn
}

func NewWebSocket(conn *websocket.Conn) *WebSocket {
	conn.SetReadLimit(wsReadLimit)
	return &WebSocket{conn: conn}
}

func (ws *WebSocket) ReadFrame() (string, error) {
	for {
		kind, data, err := ws.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return "", io.EOF
			}
			return "", fmt.Errorf("read message: %w", err)
		}
		if kind != websocket.TextMessage {
			continue
		}
		line := string(data)
		if err := wire.CheckFrame(line); err != nil {
			return "", err
		}
		return line, nil
	}
}

func (ws *WebSocket) WriteFrame(m wire.Message) error {
	line := m.Encode()
	if err := wire.CheckFrame(line); err != nil {
		return err
	}
	_ = ws.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := ws.conn.WriteMessage(websocket.TextMessage, []byte(line)); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	return nil
}

func (ws *WebSocket) Close() error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = ws.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	return ws.conn.Close()
}

func (ws *WebSocket) RemoteAddr() string {
	if addr := ws.conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}

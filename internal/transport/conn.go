// Package transport carries protocol frames over a byte stream (TCP, one line
// per frame) or a WebSocket (one text message per frame).
package transport

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/andy6609/roomchat/internal/wire"
)

// Conn is a bidirectional frame stream. ReadFrame and WriteFrame may be
// called from different goroutines, but each from one goroutine only.
type Conn interface {
	ReadFrame() (string, error)
	WriteFrame(m wire.Message) error
	Close() error
	RemoteAddr() string
}

// TCP frames a net.Conn as newline-terminated lines.
type TCP struct {
	conn net.Conn
	r    *wire.FrameReader
	w    *bufio.Writer

	// WriteTimeout bounds each WriteFrame; zero disables the deadline.
	WriteTimeout time.Duration
}

func NewTCP(conn net.Conn) *TCP {
	return &TCP{
		conn:         conn,
		r:            wire.NewFrameReader(conn),
		w:            bufio.NewWriter(conn),
		WriteTimeout: writeWait,
	}
}

func (t *TCP) ReadFrame() (string, error) {
	return t.r.ReadFrame()
}

func (t *TCP) WriteFrame(m wire.Message) error {
	if t.WriteTimeout > 0 {
		_ = t.conn.SetWriteDeadline(time.Now().Add(t.WriteTimeout))
	}
	if err := wire.WriteFrame(t.w, m); err != nil {
		return err
	}
	if err := t.w.Flush(); err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	return nil
}

func (t *TCP) Close() error {
	return t.conn.Close()
}

func (t *TCP) RemoteAddr() string {
	if addr := t.conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}

// IsExpectedCloseError reports whether err is the normal result of the peer
// or the server closing the connection.
func IsExpectedCloseError(err error) bool {
	if err == nil || errors.Is(err, net.ErrClosed) {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close") ||
		strings.Contains(errStr, "connection reset by peer") ||
		strings.Contains(errStr, "broken pipe")
}

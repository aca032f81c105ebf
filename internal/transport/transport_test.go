package transport

import (
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/andy6609/roomchat/internal/wire"
)

func TestTCPFrames(t *testing.T) {
	a, b := net.Pipe()
	left, right := NewTCP(a), NewTCP(b)
	defer left.Close()

	go func() {
		_ = left.WriteFrame(wire.Connect("alice_01"))
		_ = left.WriteFrame(wire.Say("hello"))
		_ = left.Close()
	}()

	for _, want := range []string{"connect;;;alice_01", "bdcast;;;hello"} {
		got, err := right.ReadFrame()
		if err != nil {
			t.Fatalf("ReadFrame: %v", err)
		}
		if got != want {
			t.Fatalf("got %q want %q", got, want)
		}
	}
	if _, err := right.ReadFrame(); !errors.Is(err, io.EOF) {
		t.Fatalf("expected EOF, got %v", err)
	}
}

func TestIsExpectedCloseError(t *testing.T) {
	if !IsExpectedCloseError(nil) || !IsExpectedCloseError(net.ErrClosed) {
		t.Fatal("nil and net.ErrClosed are expected")
	}
	if IsExpectedCloseError(errors.New("tls: bad record MAC")) {
		t.Fatal("unrelated error reported as expected")
	}
}

func TestTCPWriteTimeout(t *testing.T) {
	a, b := net.Pipe()
	defer b.Close()
	tcp := NewTCP(a)
	defer tcp.Close()
	tcp.WriteTimeout = 50 * time.Millisecond

	// Nobody reads b.
	errc := make(chan error, 1)
	go func() { errc <- tcp.WriteFrame(wire.Confirm(wire.ConfirmDisconnected, "bye")) }()
	select {
	case err := <-errc:
		if !errors.Is(err, os.ErrDeadlineExceeded) {
			t.Fatalf("WriteFrame to stalled peer = %v, want deadline exceeded", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("WriteFrame blocked past its timeout")
	}
}

type captureHandler struct {
	conns    chan Conn
	rejected chan error
}

func (h *captureHandler) Serve(conn Conn) {
	h.conns <- conn
	// Echo until the peer leaves.
	for {
		line, err := conn.ReadFrame()
		if wire.IsFrameError(err) {
			select {
			case h.rejected <- err:
			default:
			}
			continue
		}
		if err != nil {
			return
		}
		_ = conn.WriteFrame(wire.Decode(line))
	}
}

func TestGatewayWebSocketEcho(t *testing.T) {
	h := &captureHandler{conns: make(chan Conn, 1), rejected: make(chan error, 4)}
	ts := httptest.NewServer(NewGateway(h, nil))
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	ws := NewWebSocket(conn)
	defer ws.Close()

	select {
	case <-h.conns:
	case <-time.After(time.Second):
		t.Fatal("handler never received the connection")
	}

	// A text message with an embedded newline is rejected, not echoed.
	if err := conn.WriteMessage(websocket.TextMessage, []byte("bdcast;;;hi\nerror;;;connect-failed;;;x")); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}
	select {
	case err := <-h.rejected:
		if !errors.Is(err, wire.ErrLineBreak) {
			t.Fatalf("rejection = %v, want ErrLineBreak", err)
		}
	case <-time.After(time.Second):
		t.Fatal("frame with line break was not rejected")
	}

	if err := ws.WriteFrame(wire.Open("lounge")); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	got, err := ws.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if got != "open;;;lounge" {
		t.Fatalf("echo %q", got)
	}

	if err := ws.WriteFrame(wire.Say(strings.Repeat("x", wire.MaxFrameSize))); !errors.Is(err, wire.ErrFrameTooLong) {
		t.Fatalf("oversized write = %v", err)
	}
	if err := ws.WriteFrame(wire.Say("a\nb")); !errors.Is(err, wire.ErrLineBreak) {
		t.Fatalf("write with line break = %v", err)
	}
}

func TestGatewayHTTPEndpoints(t *testing.T) {
	ts := httptest.NewServer(NewGateway(&captureHandler{conns: make(chan Conn, 1)}, nil))
	defer ts.Close()

	for path, want := range map[string]int{
		"/healthz": http.StatusOK,
		"/metrics": http.StatusOK,
	} {
		resp, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != want {
			t.Errorf("GET %s = %d, want %d", path, resp.StatusCode, want)
		}
	}

	resp, err := http.Post(ts.URL+"/ws", "text/plain", nil)
	if err != nil {
		t.Fatalf("POST /ws: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("POST /ws = %d", resp.StatusCode)
	}
}

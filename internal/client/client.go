// Package client is the receiving and sending side of the chat protocol used
// by terminal front-ends: it sends typed requests and tracks the session
// state the server reports through confirm and error kinds.
package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"

	"github.com/andy6609/roomchat/internal/transport"
	"github.com/andy6609/roomchat/internal/wire"
)

// MaxTextSize mirrors the server's bound on whisper and broadcast text.
const MaxTextSize = 500

var (
	ErrNotConnected     = errors.New("client: not connected")
	ErrAlreadyConnected = errors.New("client: already connected")
	ErrTextTooLong      = errors.New("client: message is too long")
	ErrEmptyText        = errors.New("client: message is empty")
)

type Status int

const (
	Disconnected Status = iota
	Connecting
	Connected
)

func (s Status) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Client is one connection to a chat server.
type Client struct {
	conn transport.Conn

	mu     sync.Mutex
	login  string
	status Status
	room   string

	// Target of the last enter or leave, committed on room-entered.
	pending string

	writeMu   sync.Mutex
	incoming  chan wire.Message
	closing   chan struct{}
	closeOnce sync.Once
	done      chan struct{}
}

// Dial opens a TCP connection to addr.
func Dial(ctx context.Context, addr string) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return New(transport.NewTCP(conn)), nil
}

// New starts listening on conn. Server pushes are available on Messages
// after the client has applied them to its own state.
func New(conn transport.Conn) *Client {
	c := &Client{
		conn:     conn,
		incoming: make(chan wire.Message, 64),
		closing:  make(chan struct{}),
		done:     make(chan struct{}),
	}
	go c.listen()
	return c
}

func (c *Client) Messages() <-chan wire.Message { return c.incoming }

func (c *Client) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

func (c *Client) Login() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.login
}

// Room is the room the server last confirmed, or "" when not registered.
func (c *Client) Room() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.room
}

// Connect asks the server to register name.
func (c *Client) Connect(name string) error {
	c.mu.Lock()
	if c.status != Disconnected {
		c.mu.Unlock()
		return ErrAlreadyConnected
	}
	c.status = Connecting
	c.login = name
	c.mu.Unlock()
	return c.send(wire.Connect(name))
}

func (c *Client) Bye() error {
	if err := c.requireConnected(); err != nil {
		return err
	}
	return c.send(wire.Bye())
}

func (c *Client) Whisper(receiver, text string) error {
	if err := c.requireConnected(); err != nil {
		return err
	}
	text, err := checkText(text)
	if err != nil {
		return err
	}
	return c.send(wire.Whisper(c.Login(), receiver, text))
}

// Say broadcasts text in the current room.
func (c *Client) Say(text string) error {
	if err := c.requireConnected(); err != nil {
		return err
	}
	text, err := checkText(text)
	if err != nil {
		return err
	}
	return c.send(wire.Say(text))
}

func (c *Client) Open(room string) error { return c.roomRequest(wire.Open(room), room) }
func (c *Client) CloseRoom(room string) error { return c.roomRequest(wire.Close(room), room) }

// Enter asks to move into room. Room reports it once the server confirms.
func (c *Client) Enter(room string) error { return c.roomRequest(wire.Enter(room), room) }

// Leave returns to the welcome room, or ends the session when already there.
func (c *Client) Leave() error {
	if err := c.requireConnected(); err != nil {
		return err
	}
	c.setPending(wire.WelcomeRoom)
	return c.send(wire.Leave())
}

// Close drops the connection and waits for the listener to stop.
func (c *Client) Close() error {
	c.closeOnce.Do(func() { close(c.closing) })
	err := c.conn.Close()
	<-c.done
	return err
}

func (c *Client) roomRequest(m wire.Message, room string) error {
	if err := c.requireConnected(); err != nil {
		return err
	}
	if strings.TrimSpace(room) == "" {
		return fmt.Errorf("client: room name required")
	}
	if m.Type == wire.TypeEnter {
		c.setPending(strings.TrimLeft(room, " "))
	}
	return c.send(m)
}

func (c *Client) requireConnected() error {
	if c.Status() != Connected {
		return ErrNotConnected
	}
	return nil
}

func (c *Client) send(m wire.Message) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteFrame(m)
}

func checkText(text string) (string, error) {
	text = strings.TrimLeft(text, " ")
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyText
	}
	if len(text) > MaxTextSize {
		return "", ErrTextTooLong
	}
	return text, nil
}

func (c *Client) listen() {
	defer close(c.done)
	defer close(c.incoming)
	for {
		line, err := c.conn.ReadFrame()
		if err != nil {
			if wire.IsFrameError(err) {
				continue
			}
			c.setStatus(Disconnected)
			return
		}
		m := wire.Decode(line)
		if !m.Type.Known() {
			continue
		}
		c.apply(m)
		select {
		case c.incoming <- m:
		case <-c.closing:
			return
		}
	}
}

// apply updates local state from confirm and error kinds.
func (c *Client) apply(m wire.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch m.Type {
	case wire.TypeConfirm:
		switch m.Kind() {
		case wire.ConfirmRegistered:
			c.status = Connected
			c.room, c.pending = wire.WelcomeRoom, ""
		case wire.ConfirmRoomEntered:
			if c.pending != "" {
				c.room, c.pending = c.pending, ""
			}
		case wire.ConfirmDisconnected:
			c.status = Disconnected
			c.room, c.pending = "", ""
		}
	case wire.TypeError:
		if m.Kind() == wire.ErrorConnect {
			c.status = Disconnected
		}
	}
}

func (c *Client) setStatus(s Status) {
	c.mu.Lock()
	c.status = s
	if s == Disconnected {
		c.room, c.pending = "", ""
	}
	c.mu.Unlock()
}

func (c *Client) setPending(room string) {
	c.mu.Lock()
	c.pending = room
	c.mu.Unlock()
}

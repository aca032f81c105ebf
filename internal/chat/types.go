package chat

import (
	"sync"

	"github.com/andy6609/roomchat/internal/wire"
)

// State is the protocol state of one session.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateRegistered
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateRegistered:
		return "registered"
	default:
		return "disconnected"
	}
}

// User is one connected session. Its state is owned by the session goroutine;
// login, room and the outbound queue are read concurrently by other sessions.
type User struct {
	ID string

	mu     sync.Mutex
	login  string
	room   string
	out    chan wire.Message
	closed bool

	state State
}

func NewUser(id string, buffer int) *User {
	if buffer <= 0 {
		buffer = 32
	}
	return &User{
		ID:    id,
		out:   make(chan wire.Message, buffer),
		state: StateConnecting,
	}
}

func (u *User) Login() string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.login
}

// Room returns the name of the room the user is in, "" before registration.
func (u *User) Room() string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.room
}

func (u *User) State() State { return u.state }

// Outbound is drained by the session's writer.
func (u *User) Outbound() <-chan wire.Message { return u.out }

func (u *User) setLogin(login string) {
	u.mu.Lock()
	u.login = login
	u.mu.Unlock()
}

func (u *User) setRoom(room string) {
	u.mu.Lock()
	u.room = room
	u.mu.Unlock()
}

// Send queues m for delivery. It never blocks: a full queue or a closed
// session drops the message and reports false.
func (u *User) Send(m wire.Message) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.closed {
		return false
	}
	select {
	case u.out <- m:
		return true
	default:
		DroppedTotal.Inc()
		return false
	}
}

// close stops delivery; the writer exits once the queue is drained.
func (u *User) close() {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.closed {
		return
	}
	u.closed = true
	close(u.out)
}

var (
	ErrNameInvalid     = errorString("name_invalid")
	ErrNameTaken       = errorString("name_taken")
	ErrUserNotFound    = errorString("user_not_found")
	ErrRoomNotFound    = errorString("room_not_found")
	ErrRoomNotEmpty    = errorString("room_not_empty")
	ErrNotOwner        = errorString("not_owner")
	ErrMustLeaveFirst  = errorString("must_leave_current_first")
	ErrNowhereToLeave  = errorString("nowhere_to_leave")
	ErrNotConnected    = errorString("not_connected")
	ErrAlreadyLoggedIn = errorString("already_connected")
	ErrEmptyText       = errorString("empty_text")
	ErrTextTooLong     = errorString("text_too_long")
	ErrUnknownType     = errorString("unknown_type")
	ErrRateLimited     = errorString("rate_limited")
)

type errorString string

func (e errorString) Error() string { return string(e) }

package chat

import (
	"fmt"
	"testing"
	"time"

	"github.com/andy6609/roomchat/internal/wire"
)

func newTestDispatcher() *Dispatcher {
	return NewDispatcher(NewUserRegistry(nil), NewRoomRegistry(nil), nil, 0, nil)
}

var userSeq int

func newTestUser() *User {
	userSeq++
	return NewUser(fmt.Sprintf("session-%d", userSeq), 256)
}

// register connects a fresh user and drains its confirmation.
func register(t *testing.T, d *Dispatcher, login string) *User {
	t.Helper()
	u := newTestUser()
	if err := d.Handle(u, wire.Connect(login)); err != nil {
		t.Fatalf("connect(%s) error: %v", login, err)
	}
	m := waitFor(t, u.Outbound(), wire.TypeConfirm)
	if m.Kind() != wire.ConfirmRegistered {
		t.Fatalf("connect(%s): unexpected confirm kind %q", login, m.Kind())
	}
	return u
}

// waitFor returns the next message of type typ, skipping others.
func waitFor(t *testing.T, ch <-chan wire.Message, typ wire.Type) wire.Message {
	t.Helper()
	deadline := time.NewTimer(time.Second)
	defer deadline.Stop()
	for {
		select {
		case m, ok := <-ch:
			if !ok {
				t.Fatalf("channel closed waiting for %q", typ)
			}
			if m.Type == typ {
				return m
			}
		case <-deadline.C:
			t.Fatalf("timeout waiting for %q", typ)
		}
	}
}

// expectNone fails if anything is queued on ch.
func expectNone(t *testing.T, ch <-chan wire.Message) {
	t.Helper()
	select {
	case m := <-ch:
		t.Fatalf("unexpected message %q", m.Encode())
	default:
	}
}

package chat

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/andy6609/roomchat/internal/wire"
)

func TestDispatcher_ConnectFlow(t *testing.T) {
	d := newTestDispatcher()
	alice := register(t, d, "alice_01")

	if alice.State() != StateRegistered || alice.Room() != WelcomeRoom {
		t.Fatalf("state=%v room=%q", alice.State(), alice.Room())
	}

	second := newTestUser()
	if err := d.Handle(second, wire.Connect("alice_01")); !errors.Is(err, ErrNameTaken) {
		t.Fatalf("duplicate connect = %v, want ErrNameTaken", err)
	}
	m := waitFor(t, second.Outbound(), wire.TypeError)
	if m.Kind() != wire.ErrorConnect || m.Text() != "Name is already used." {
		t.Fatalf("unexpected reply %q", m.Encode())
	}
	if second.State() != StateConnecting {
		t.Fatalf("rejected session promoted to %v", second.State())
	}

	if err := d.Handle(second, wire.Connect("bob")); !errors.Is(err, ErrNameInvalid) {
		t.Fatalf("short connect = %v, want ErrNameInvalid", err)
	}
	m = waitFor(t, second.Outbound(), wire.TypeError)
	if m.Kind() != wire.ErrorConnect || m.Text() != "Name is not valid." {
		t.Fatalf("unexpected reply %q", m.Encode())
	}

	if err := d.Handle(alice, wire.Connect("alice_02")); !errors.Is(err, ErrAlreadyLoggedIn) {
		t.Fatalf("second connect = %v", err)
	}
}

func TestDispatcher_RequiresRegistration(t *testing.T) {
	d := newTestDispatcher()
	u := newTestUser()

	for _, m := range []wire.Message{
		wire.Bye(), wire.Whisper("x", "bobby_02", "hi"), wire.Open("lounge"),
		wire.Close("lounge"), wire.Enter("lounge"), wire.Leave(), wire.Say("hi"),
	} {
		if err := d.Handle(u, m); !errors.Is(err, ErrNotConnected) {
			t.Fatalf("%s before connect = %v", m.Type, err)
		}
		reply := waitFor(t, u.Outbound(), wire.TypeError)
		if reply.Kind() != wire.ErrorGeneral {
			t.Fatalf("unexpected kind %q", reply.Kind())
		}
	}

	// Unknown and server-only types are dropped without a reply.
	for _, line := range []string{"", ";;;", "hello;;;world", "confirm;;;general;;;x"} {
		if err := d.Handle(u, wire.Decode(line)); !errors.Is(err, ErrUnknownType) {
			t.Fatalf("Handle(%q) = %v", line, err)
		}
	}
	expectNone(t, u.Outbound())
	if u.State() != StateConnecting {
		t.Fatalf("state = %v", u.State())
	}
}

func TestDispatcher_RoomScenario(t *testing.T) {
	d := newTestDispatcher()
	alice := register(t, d, "alice_01")

	if err := d.Handle(alice, wire.Open("lounge")); err != nil {
		t.Fatalf("open: %v", err)
	}
	if m := waitFor(t, alice.Outbound(), wire.TypeConfirm); m.Kind() != wire.ConfirmGeneral {
		t.Fatalf("open reply %q", m.Encode())
	}

	if err := d.Handle(alice, wire.Enter("lounge")); err != nil {
		t.Fatalf("enter: %v", err)
	}
	if m := waitFor(t, alice.Outbound(), wire.TypeConfirm); m.Kind() != wire.ConfirmRoomEntered {
		t.Fatalf("enter reply %q", m.Encode())
	}
	if alice.Room() != "lounge" {
		t.Fatalf("room = %q", alice.Room())
	}

	if err := d.Handle(alice, wire.Close("lounge")); !errors.Is(err, ErrRoomNotEmpty) {
		t.Fatalf("close occupied = %v", err)
	}
	if m := waitFor(t, alice.Outbound(), wire.TypeError); m.Text() != "Room must be empty in order to be closed." {
		t.Fatalf("close reply %q", m.Encode())
	}

	if err := d.Handle(alice, wire.Enter("welcome")); !errors.Is(err, ErrMustLeaveFirst) {
		t.Fatalf("enter from lounge = %v", err)
	}
	waitFor(t, alice.Outbound(), wire.TypeError)

	if err := d.Handle(alice, wire.Leave()); err != nil {
		t.Fatalf("leave: %v", err)
	}
	waitFor(t, alice.Outbound(), wire.TypeConfirm)
	if alice.Room() != WelcomeRoom || alice.State() != StateRegistered {
		t.Fatalf("after leave: room=%q state=%v", alice.Room(), alice.State())
	}

	if err := d.Handle(alice, wire.Close("lounge")); err != nil {
		t.Fatalf("close empty: %v", err)
	}
	if m := waitFor(t, alice.Outbound(), wire.TypeConfirm); m.Kind() != wire.ConfirmRoomClosed {
		t.Fatalf("close reply %q", m.Encode())
	}
}

func TestDispatcher_OpenErrors(t *testing.T) {
	d := newTestDispatcher()
	alice := register(t, d, "alice_01")

	_ = d.Handle(alice, wire.Open("abc"))
	if m := waitFor(t, alice.Outbound(), wire.TypeError); m.Text() != "Invalid room name." {
		t.Fatalf("reply %q", m.Encode())
	}
	_ = d.Handle(alice, wire.Open(WelcomeRoom))
	if m := waitFor(t, alice.Outbound(), wire.TypeError); m.Text() != "Invalid room name: already used." {
		t.Fatalf("reply %q", m.Encode())
	}
}

func TestDispatcher_LeaveFromWelcomeDisconnects(t *testing.T) {
	d := newTestDispatcher()
	alice := register(t, d, "alice_01")

	if err := d.Handle(alice, wire.Leave()); err != nil {
		t.Fatalf("leave: %v", err)
	}
	if m := waitFor(t, alice.Outbound(), wire.TypeConfirm); m.Kind() != wire.ConfirmDisconnected {
		t.Fatalf("leave reply %q", m.Encode())
	}
	if alice.State() != StateDisconnected {
		t.Fatalf("state = %v", alice.State())
	}
	if _, ok := d.users.Find("alice_01"); ok {
		t.Fatal("user still registered")
	}
	if info, _ := d.rooms.Lookup(WelcomeRoom); len(info.Members) != 0 {
		t.Fatalf("welcome still holds %v", info.Members)
	}
}

func TestDispatcher_ByeReleasesName(t *testing.T) {
	d := newTestDispatcher()
	alice := register(t, d, "alice_01")

	_ = d.Handle(alice, wire.Bye())
	if m := waitFor(t, alice.Outbound(), wire.TypeConfirm); m.Kind() != wire.ConfirmDisconnected {
		t.Fatalf("bye reply %q", m.Encode())
	}
	d.Release(alice)

	register(t, d, "alice_01")
}

func TestDispatcher_Whisper(t *testing.T) {
	d := newTestDispatcher()
	bob := register(t, d, "bobby_02")
	alice := register(t, d, "alice_01")

	// The sender field is taken from the session, not the frame.
	if err := d.Handle(alice, wire.Whisper("mallory", "bobby_02", "  hi")); err != nil {
		t.Fatalf("whisper: %v", err)
	}
	m := waitFor(t, bob.Outbound(), wire.TypeWhisper)
	if m.Encode() != wire.Whisper("alice_01", "bobby_02", "hi").Encode() {
		t.Fatalf("unexpected whisper %q", m.Encode())
	}
	expectNone(t, alice.Outbound())

	if err := d.Handle(alice, wire.Whisper("alice_01", "carol_03", "hi")); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("whisper unknown = %v", err)
	}
	if m := waitFor(t, alice.Outbound(), wire.TypeError); m.Kind() != wire.ErrorUnknownUser {
		t.Fatalf("unexpected reply %q", m.Encode())
	}

	if err := d.Handle(alice, wire.Whisper("alice_01", "bobby_02", "   ")); !errors.Is(err, ErrEmptyText) {
		t.Fatalf("whisper empty = %v", err)
	}
	waitFor(t, alice.Outbound(), wire.TypeError)
	expectNone(t, bob.Outbound())
}

func TestDispatcher_Broadcast(t *testing.T) {
	d := newTestDispatcher()
	rec := &recordingRecorder{}
	d.recorder = rec
	alice := register(t, d, "alice_01")
	bob := register(t, d, "bobby_02")

	if err := d.Handle(alice, wire.Say("hello all")); err != nil {
		t.Fatalf("broadcast: %v", err)
	}
	for _, u := range []*User{alice, bob} {
		m := waitFor(t, u.Outbound(), wire.TypeBroadcast)
		if m.Encode() != "bdcast;;;hello all;;;welcome;;;alice_01" {
			t.Fatalf("unexpected push %q", m.Encode())
		}
	}
	if got := rec.entries(); len(got) != 1 || got[0] != "welcome/alice_01/hello all" {
		t.Fatalf("recorded %v", got)
	}

	if err := d.Handle(alice, wire.Say(strings.Repeat("x", DefaultMaxTextSize+1))); !errors.Is(err, ErrTextTooLong) {
		t.Fatalf("long broadcast = %v", err)
	}
	if m := waitFor(t, alice.Outbound(), wire.TypeError); m.Text() != "Message is too long." {
		t.Fatalf("reply %q", m.Encode())
	}
	if err := d.Handle(alice, wire.Say(" \t ")); !errors.Is(err, ErrEmptyText) {
		t.Fatalf("blank broadcast = %v", err)
	}
	waitFor(t, alice.Outbound(), wire.TypeError)
	expectNone(t, bob.Outbound())
}

func TestDispatcher_BroadcastPushFitsFrame(t *testing.T) {
	d := newTestDispatcher()
	login := strings.Repeat("l", LoginMaxSize)
	u := register(t, d, login)
	room := strings.Repeat("r", RoomMaxSize)
	_ = d.Handle(u, wire.Open(room))
	_ = d.Handle(u, wire.Enter(room))

	_ = d.Handle(u, wire.Say(strings.Repeat("x", DefaultMaxTextSize)))
	m := waitFor(t, u.Outbound(), wire.TypeBroadcast)
	if n := len(m.Encode()); n > wire.MaxFrameSize {
		t.Fatalf("push of %d bytes exceeds frame size", n)
	}
}

type recordingRecorder struct {
	mu  sync.Mutex
	got []string
}

func (r *recordingRecorder) Record(room, sender, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, room+"/"+sender+"/"+text)
}

func (r *recordingRecorder) entries() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.got...)
}

func TestClassify(t *testing.T) {
	cases := map[error]Class{
		nil:                  ClassNone,
		ErrUnknownType:       ClassProtocol,
		wire.ErrFrameTooLong: ClassProtocol,
		wire.ErrLineBreak:    ClassProtocol,
		ErrEmptyText:         ClassValidation,
		ErrNameInvalid:       ClassValidation,
		ErrNotConnected:      ClassState,
		ErrMustLeaveFirst:    ClassState,
		ErrNameTaken:         ClassConflict,
		ErrNotOwner:          ClassConflict,
		ErrUserNotFound:      ClassNotFound,
		ErrRoomNotFound:      ClassNotFound,
		errors.New("boom"):   ClassFatal,
	}
	for err, want := range cases {
		if got := Classify(err); got != want {
			t.Errorf("Classify(%v) = %v, want %v", err, got, want)
		}
	}
}

// Package wire implements the line protocol shared by the chat server and its
// clients: a type tag followed by positional fields, joined by Delimiter.
package wire

import "strings"

// Delimiter separates the type tag and every field of a frame.
const Delimiter = ";;;"

// MaxFrameSize bounds one encoded frame, line terminator excluded.
const MaxFrameSize = 600

// WelcomeRoom is the room every registered user starts in and returns to on
// leave.
const WelcomeRoom = "welcome"

type Type string

const (
	TypeConnect   Type = "connect"
	TypeBye       Type = "bye"
	TypeWhisper   Type = "whisper"
	TypeOpen      Type = "open"
	TypeClose     Type = "close"
	TypeEnter     Type = "enter"
	TypeLeave     Type = "leave"
	TypeBroadcast Type = "bdcast"
	TypeConfirm   Type = "confirm"
	TypeError     Type = "error"
)

// Known reports whether t is one of the protocol's type tags.
func (t Type) Known() bool {
	switch t {
	case TypeConnect, TypeBye, TypeWhisper, TypeOpen, TypeClose, TypeEnter,
		TypeLeave, TypeBroadcast, TypeConfirm, TypeError:
		return true
	}
	return false
}

// Kind is the first field of confirm and error frames. Receivers switch on it
// to update local state independently of the human-readable text.
type Kind string

const (
	ConfirmRegistered   Kind = "registered"
	ConfirmGeneral      Kind = "general"
	ConfirmRoomEntered  Kind = "room-entered"
	ConfirmRoomClosed   Kind = "room-closed"
	ConfirmDisconnected Kind = "disconnected"

	ErrorConnect     Kind = "connect-failed"
	ErrorUnknownUser Kind = "unknown-user"
	ErrorGeneral     Kind = "general"
)

// Message is one decoded frame.
type Message struct {
	Type   Type
	Fields []string
}

// Field returns the i-th field, or "" when the frame is shorter than that.
func (m Message) Field(i int) string {
	if i < 0 || i >= len(m.Fields) {
		return ""
	}
	return m.Fields[i]
}

// Kind returns the kind of a confirm or error frame.
func (m Message) Kind() Kind {
	return Kind(m.Field(0))
}

// Text returns the human-readable text of a confirm or error frame.
func (m Message) Text() string {
	return m.Field(1)
}

// WhisperParts returns sender, receiver and text of a whisper frame.
func (m Message) WhisperParts() (sender, receiver, text string) {
	return m.Field(0), m.Field(1), m.Field(2)
}

// BroadcastParts returns sender, room and text of a server-side bdcast frame.
// On the wire the order is text, room, sender.
func (m Message) BroadcastParts() (sender, room, text string) {
	return m.Field(2), m.Field(1), m.Field(0)
}

// Encode renders m as a frame without the line terminator.
func (m Message) Encode() string {
	return Encode(m.Type, m.Fields...)
}

// Encode joins the type tag and each field with Delimiter. Field content and
// total length are not checked here.
func Encode(t Type, fields ...string) string {
	var b strings.Builder
	b.WriteString(string(t))
	for _, f := range fields {
		b.WriteString(Delimiter)
		b.WriteString(f)
	}
	return b.String()
}

// Decode splits a frame into its type tag and fields. An empty or
// delimiter-only line decodes to a Message whose Type is not Known.
func Decode(line string) Message {
	line = strings.TrimRight(line, "\r\n")
	if strings.Trim(line, ";") == "" {
		return Message{}
	}
	parts := strings.Split(line, Delimiter)
	return Message{Type: Type(parts[0]), Fields: parts[1:]}
}

func Connect(name string) Message { return Message{Type: TypeConnect, Fields: []string{name}} }

func Bye() Message { return Message{Type: TypeBye} }

func Whisper(sender, receiver, text string) Message {
	return Message{Type: TypeWhisper, Fields: []string{sender, receiver, text}}
}

func Open(room string) Message { return Message{Type: TypeOpen, Fields: []string{room}} }

func Close(room string) Message { return Message{Type: TypeClose, Fields: []string{room}} }

func Enter(room string) Message { return Message{Type: TypeEnter, Fields: []string{room}} }

func Leave() Message { return Message{Type: TypeLeave} }

// Say is the client's broadcast request: the text only.
func Say(text string) Message { return Message{Type: TypeBroadcast, Fields: []string{text}} }

// Broadcast is the server's room push. Fields go on the wire as text, room,
// sender, which is not the argument order; existing clients depend on it.
func Broadcast(sender, room, text string) Message {
	return Message{Type: TypeBroadcast, Fields: []string{text, room, sender}}
}

func Confirm(kind Kind, text string) Message {
	return Message{Type: TypeConfirm, Fields: []string{string(kind), text}}
}

func Error(kind Kind, text string) Message {
	return Message{Type: TypeError, Fields: []string{string(kind), text}}
}

package chat

import (
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/andy6609/roomchat/internal/wire"
)

// DefaultMaxTextSize bounds whisper and broadcast text. With the longest login
// and room name a push still fits in wire.MaxFrameSize.
const DefaultMaxTextSize = 500

// Recorder receives every delivered room broadcast. Implementations must not
// block.
type Recorder interface {
	Record(room, sender, text string)
}

type nopRecorder struct{}

func (nopRecorder) Record(string, string, string) {}

// Dispatcher is the protocol state machine. It applies one decoded frame for
// one session against the shared registries and queues the replies.
type Dispatcher struct {
	users    *UserRegistry
	rooms    *RoomRegistry
	recorder Recorder
	maxText  int
	logger   *slog.Logger
}

func NewDispatcher(users *UserRegistry, rooms *RoomRegistry, recorder Recorder, maxText int, logger *slog.Logger) *Dispatcher {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	if maxText <= 0 {
		maxText = DefaultMaxTextSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		users:    users,
		rooms:    rooms,
		recorder: recorder,
		maxText:  maxText,
		logger:   logger,
	}
}

// Handle applies m for u. The returned error is the rejection, if any, that
// was already reported to the client; none of them ends the session.
func (d *Dispatcher) Handle(u *User, m wire.Message) error {
	start := time.Now()
	label := string(m.Type)
	if !m.Type.Known() {
		label = "unknown"
	}

	err := d.dispatch(u, m)

	MessagesTotal.WithLabelValues(label).Inc()
	EventProcessingDuration.WithLabelValues(label).Observe(time.Since(start).Seconds())
	if err != nil {
		class := Classify(err)
		RejectionsTotal.WithLabelValues(class.String()).Inc()
		d.logger.Debug("request rejected",
			"session", u.ID, "login", u.Login(), "type", label, "class", class.String(), "error", err)
	}
	return err
}

func (d *Dispatcher) dispatch(u *User, m wire.Message) error {
	switch u.state {
	case StateConnecting:
		switch m.Type {
		case wire.TypeConnect:
			return d.connect(u, m.Field(0))
		case wire.TypeBye, wire.TypeWhisper, wire.TypeOpen, wire.TypeClose,
			wire.TypeEnter, wire.TypeLeave, wire.TypeBroadcast:
			u.Send(wire.Error(wire.ErrorGeneral, "You must be connected first."))
			return ErrNotConnected
		}
		return ErrUnknownType

	case StateRegistered:
		switch m.Type {
		case wire.TypeConnect:
			u.Send(wire.Error(wire.ErrorGeneral, "You are already connected."))
			return ErrAlreadyLoggedIn
		case wire.TypeBye:
			d.disconnect(u)
			return nil
		case wire.TypeWhisper:
			_, receiver, text := m.WhisperParts()
			return d.whisper(u, receiver, text)
		case wire.TypeOpen:
			return d.open(u, m.Field(0))
		case wire.TypeClose:
			return d.close(u, m.Field(0))
		case wire.TypeEnter:
			return d.enter(u, m.Field(0))
		case wire.TypeLeave:
			return d.leave(u)
		case wire.TypeBroadcast:
			return d.broadcast(u, m.Field(0))
		}
		return ErrUnknownType
	}
	return ErrUnknownType
}

func (d *Dispatcher) connect(u *User, login string) error {
	if err := d.users.Add(u, login); err != nil {
		text := "Name is not valid."
		if errors.Is(err, ErrNameTaken) {
			text = "Name is already used."
		}
		u.Send(wire.Error(wire.ErrorConnect, text))
		return err
	}
	if err := d.rooms.Place(u); err != nil {
		_ = d.users.Remove(login)
		d.logger.Error("welcome room missing", "login", login)
		u.Send(wire.Error(wire.ErrorConnect, "An error occurred, please try again."))
		return err
	}
	u.state = StateRegistered
	u.Send(wire.Confirm(wire.ConfirmRegistered, "You have been successfully registered in server."))
	return nil
}

func (d *Dispatcher) disconnect(u *User) {
	login := u.Login()
	room := u.Room()
	d.Release(u)
	u.Send(wire.Confirm(wire.ConfirmDisconnected, "You have been successfully disconnected."))
	d.logger.Info("user disconnected", "login", login, "room", room)
}

// Release drops u from its room and from the user registry and marks the
// session disconnected. Safe to call more than once.
func (d *Dispatcher) Release(u *User) {
	if u.state == StateRegistered {
		d.rooms.Release(u)
		_ = d.users.Remove(u.Login())
	}
	u.state = StateDisconnected
}

func (d *Dispatcher) checkText(u *User, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		u.Send(wire.Error(wire.ErrorGeneral, "Message is empty."))
		return "", ErrEmptyText
	}
	text = strings.TrimLeft(text, " ")
	if len(text) > d.maxText {
		u.Send(wire.Error(wire.ErrorGeneral, "Message is too long."))
		return "", ErrTextTooLong
	}
	return text, nil
}

func (d *Dispatcher) whisper(u *User, receiver, text string) error {
	text, err := d.checkText(u, text)
	if err != nil {
		return err
	}
	target, ok := d.users.Find(receiver)
	if !ok {
		u.Send(wire.Error(wire.ErrorUnknownUser, "User doesn't exist."))
		return ErrUserNotFound
	}
	target.Send(wire.Whisper(u.Login(), receiver, text))
	return nil
}

func (d *Dispatcher) open(u *User, name string) error {
	switch err := d.rooms.Open(u.Login(), name); {
	case err == nil:
		u.Send(wire.Confirm(wire.ConfirmGeneral, "Room successfully created."))
		return nil
	case errors.Is(err, ErrNameTaken):
		u.Send(wire.Error(wire.ErrorGeneral, "Invalid room name: already used."))
		return err
	default:
		u.Send(wire.Error(wire.ErrorGeneral, "Invalid room name."))
		return err
	}
}

func (d *Dispatcher) close(u *User, name string) error {
	err := d.rooms.Close(u.Login(), name)
	switch {
	case err == nil:
		u.Send(wire.Confirm(wire.ConfirmRoomClosed, "Room successfully closed."))
	case errors.Is(err, ErrRoomNotFound):
		u.Send(wire.Error(wire.ErrorGeneral, "Room doesn't exist."))
	case errors.Is(err, ErrRoomNotEmpty):
		u.Send(wire.Error(wire.ErrorGeneral, "Room must be empty in order to be closed."))
	case errors.Is(err, ErrNotOwner):
		u.Send(wire.Error(wire.ErrorGeneral, "You must own this room."))
	default:
		u.Send(wire.Error(wire.ErrorGeneral, "Error occurred while closing."))
	}
	return err
}

func (d *Dispatcher) enter(u *User, name string) error {
	err := d.rooms.Enter(u, name)
	switch {
	case err == nil:
		u.Send(wire.Confirm(wire.ConfirmRoomEntered, "You successfully entered the room."))
	case errors.Is(err, ErrNameInvalid):
		u.Send(wire.Error(wire.ErrorGeneral, "Invalid room name."))
	case errors.Is(err, ErrMustLeaveFirst):
		u.Send(wire.Error(wire.ErrorGeneral, "You must leave your current room first."))
	default:
		u.Send(wire.Error(wire.ErrorGeneral, "Room doesn't exist."))
	}
	return err
}

// leave from the welcome room is a disconnect: there is nowhere else to go.
func (d *Dispatcher) leave(u *User) error {
	err := d.rooms.Leave(u)
	switch {
	case err == nil:
		u.Send(wire.Confirm(wire.ConfirmRoomEntered, "You successfully left the room."))
		return nil
	case errors.Is(err, ErrNowhereToLeave):
		d.disconnect(u)
		return nil
	default:
		u.Send(wire.Error(wire.ErrorGeneral, "Error occurred, unable to leave room."))
		return err
	}
}

func (d *Dispatcher) broadcast(u *User, text string) error {
	text, err := d.checkText(u, text)
	if err != nil {
		return err
	}
	room, delivered, err := d.rooms.Broadcast(u, text)
	if err != nil {
		u.Send(wire.Error(wire.ErrorGeneral, "Unable to send message in room."))
		return err
	}
	d.recorder.Record(room, u.Login(), text)
	d.logger.Debug("room broadcast", "room", room, "login", u.Login(), "delivered", delivered)
	return nil
}

package chat

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/andy6609/roomchat/internal/wire"
)

const (
	RoomMinSize = 4
	RoomMaxSize = 31

	// WelcomeRoom is created at startup and holds every newly registered user.
	WelcomeRoom = wire.WelcomeRoom
	// AdminLogin owns the welcome room. It is shorter than LoginMinSize, so no
	// client can ever register it.
	AdminLogin = "admin"
)

// NormalizeRoomName strips leading spaces. Trailing whitespace and control
// characters are kept.
func NormalizeRoomName(name string) string {
	return strings.TrimLeft(name, " ")
}

func ValidRoomName(name string) bool {
	n := len(NormalizeRoomName(name))
	return n >= RoomMinSize && n <= RoomMaxSize
}

// Room is a named, owned, ordered set of members. Its fields are guarded by
// the RoomRegistry that holds it.
type Room struct {
	name    string
	owner   string
	members []*User
}

func (rm *Room) has(login string) bool {
	for _, m := range rm.members {
		if m.Login() == login {
			return true
		}
	}
	return false
}

func (rm *Room) add(u *User) bool {
	if rm.has(u.Login()) {
		return false
	}
	rm.members = append(rm.members, u)
	u.setRoom(rm.name)
	return true
}

func (rm *Room) remove(u *User) bool {
	login := u.Login()
	for i, m := range rm.members {
		if m.Login() == login {
			rm.members = append(rm.members[:i], rm.members[i+1:]...)
			u.setRoom("")
			return true
		}
	}
	return false
}

func (rm *Room) snapshot() []*User {
	return append([]*User(nil), rm.members...)
}

// broadcast delivers text to every user in members, the sender included.
func (rm *Room) broadcast(members []*User, sender, text string) int {
	msg := wire.Broadcast(sender, rm.name, text)
	delivered := 0
	for _, m := range members {
		if m.Send(msg) {
			delivered++
		}
	}
	return delivered
}

// RoomInfo is a point-in-time copy of a room.
type RoomInfo struct {
	Name    string
	Owner   string
	Members []string
}

// RoomRegistry maps room names to rooms. One lock guards the map, every
// room's member set and each member's recorded room, so moves between rooms
// and broadcast snapshots are atomic with respect to each other.
type RoomRegistry struct {
	mu     sync.Mutex
	rooms  map[string]*Room
	logger *slog.Logger
}

func NewRoomRegistry(logger *slog.Logger) *RoomRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &RoomRegistry{
		rooms:  make(map[string]*Room),
		logger: logger,
	}
	r.rooms[WelcomeRoom] = &Room{name: WelcomeRoom, owner: AdminLogin}
	OpenRooms.Set(1)
	return r
}

func (r *RoomRegistry) Open(owner, name string) error {
	name = NormalizeRoomName(name)
	if !ValidRoomName(name) {
		return ErrNameInvalid
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.rooms[name]; exists {
		return ErrNameTaken
	}
	r.rooms[name] = &Room{name: name, owner: owner}
	OpenRooms.Set(float64(len(r.rooms)))

	r.logger.Info("room opened", "room", name, "owner", owner)
	return nil
}

// Close deletes an empty room owned by requester. Existence, emptiness and
// ownership are checked in that order.
func (r *RoomRegistry) Close(requester, name string) error {
	name = NormalizeRoomName(name)

	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[name]
	if !ok {
		return ErrRoomNotFound
	}
	if len(rm.members) > 0 {
		return ErrRoomNotEmpty
	}
	if rm.owner != requester {
		return ErrNotOwner
	}
	delete(r.rooms, name)
	OpenRooms.Set(float64(len(r.rooms)))

	r.logger.Info("room closed", "room", name, "owner", requester)
	return nil
}

// Place puts a freshly registered user into the welcome room.
func (r *RoomRegistry) Place(u *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	welcome, ok := r.rooms[WelcomeRoom]
	if !ok {
		return ErrRoomNotFound
	}
	welcome.add(u)
	return nil
}

// Enter moves u from the welcome room into name. Users in any other room must
// leave it first.
func (r *RoomRegistry) Enter(u *User, name string) error {
	name = NormalizeRoomName(name)
	if !ValidRoomName(name) {
		return ErrNameInvalid
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	current := u.Room()
	if current != WelcomeRoom {
		return ErrMustLeaveFirst
	}
	target, ok := r.rooms[name]
	if !ok {
		return ErrRoomNotFound
	}
	if name == current {
		return nil
	}
	if from, ok := r.rooms[current]; ok {
		from.remove(u)
	}
	target.add(u)

	r.logger.Info("room entered", "login", u.Login(), "from", current, "to", name)
	return nil
}

// Leave moves u back to the welcome room. ErrNowhereToLeave means u is
// already there.
func (r *RoomRegistry) Leave(u *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current := u.Room()
	if current == WelcomeRoom {
		return ErrNowhereToLeave
	}
	welcome, ok := r.rooms[WelcomeRoom]
	if !ok {
		return ErrRoomNotFound
	}
	if from, ok := r.rooms[current]; ok {
		from.remove(u)
	}
	welcome.add(u)

	r.logger.Info("room left", "login", u.Login(), "room", current)
	return nil
}

// Release removes u from whatever room it is in. It is safe to call more
// than once.
func (r *RoomRegistry) Release(u *User) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rm, ok := r.rooms[u.Room()]; ok {
		rm.remove(u)
	}
	u.setRoom("")
}

// Broadcast sends text from sender to every member of sender's current room,
// sender included. Membership is snapshotted under the lock; delivery happens
// after it is released.
func (r *RoomRegistry) Broadcast(sender *User, text string) (string, int, error) {
	r.mu.Lock()
	rm, ok := r.rooms[sender.Room()]
	if !ok {
		r.mu.Unlock()
		return "", 0, ErrRoomNotFound
	}
	members := rm.snapshot()
	r.mu.Unlock()

	return rm.name, rm.broadcast(members, sender.Login(), text), nil
}

func (r *RoomRegistry) Lookup(name string) (RoomInfo, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[name]
	if !ok {
		return RoomInfo{}, false
	}
	info := RoomInfo{Name: rm.name, Owner: rm.owner, Members: make([]string, 0, len(rm.members))}
	for _, m := range rm.members {
		info.Members = append(info.Members, m.Login())
	}
	return info, true
}

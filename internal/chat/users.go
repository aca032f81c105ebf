package chat

import (
	"log/slog"
	"sync"
)

const (
	LoginMinSize = 6
	LoginMaxSize = 32
)

func ValidLogin(login string) bool {
	return len(login) >= LoginMinSize && len(login) <= LoginMaxSize
}

// UserRegistry maps logins to live sessions.
type UserRegistry struct {
	mu     sync.RWMutex
	users  map[string]*User
	logger *slog.Logger
}

func NewUserRegistry(logger *slog.Logger) *UserRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &UserRegistry{
		users:  make(map[string]*User),
		logger: logger,
	}
}

// Add registers u under login. Validation, the uniqueness check and the
// insert happen under one lock, so concurrent adds of a name yield exactly
// one success.
func (r *UserRegistry) Add(u *User, login string) error {
	if !ValidLogin(login) {
		return ErrNameInvalid
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.users[login]; exists {
		return ErrNameTaken
	}
	u.setLogin(login)
	r.users[login] = u
	RegisteredUsers.Set(float64(len(r.users)))

	r.logger.Info("user registered", "login", login, "session", u.ID)
	return nil
}

func (r *UserRegistry) Remove(login string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[login]; !ok {
		return ErrUserNotFound
	}
	delete(r.users, login)
	RegisteredUsers.Set(float64(len(r.users)))

	r.logger.Info("user removed", "login", login)
	return nil
}

func (r *UserRegistry) Find(login string) (*User, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[login]
	return u, ok
}

func (r *UserRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users)
}

package fakeuserrepo

import (
	"sync"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-agent-chat/users"
)

var _ users.UserRepo = (*FakeUserRepo)(nil)

type FakeUserRepo struct {
	users       map[string]*users.User // keyed by username
	emailLookup map[string]string      // normalized email to username
	idLookup    map[string]string      // id to username
	lock        sync.RWMutex
}

func NewFakeUserRepo() *FakeUserRepo {
	return &FakeUserRepo{
		users:       make(map[string]*users.User),
		emailLookup: make(map[string]string),
		idLookup:    make(map[string]string),
	}
}

// Create stores a new user. The username must be unused. An email held by a
// confirmed account is taken; an unconfirmed holder is replaced.
func (ur *FakeUserRepo) Create(user *users.User) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	if _, ok := ur.users[user.Username]; ok {
		return users.ErrUsernameTaken
	}
	email := users.NormalizeEmail(user.Email)
	if holder, ok := ur.users[ur.emailLookup[email]]; ok {
		if holder.Confirmed {
			return users.ErrEmailTaken
		}
		delete(ur.users, holder.Username)
		delete(ur.idLookup, holder.ID)
	}
	if user.ID == "" {
		user.ID = uuid.New().String()
	}

	u := *user
	ur.users[u.Username] = &u
	ur.emailLookup[email] = u.Username
	ur.idLookup[u.ID] = u.Username
	return nil
}

func (ur *FakeUserRepo) Update(user *users.User) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	if _, ok := ur.users[user.Username]; !ok {
		return users.ErrNotFound
	}
	u := *user
	ur.users[u.Username] = &u
	return nil
}

func (ur *FakeUserRepo) GetByUsername(username string) (*users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	u, ok := ur.users[username]
	if !ok {
		return nil, users.ErrNotFound
	}
	userCopy := *u
	return &userCopy, nil
}

func (ur *FakeUserRepo) GetByEmail(email string) (*users.User, error) {
	ur.lock.RLock()
	username, ok := ur.emailLookup[users.NormalizeEmail(email)]
	ur.lock.RUnlock()
	if !ok {
		return nil, users.ErrNotFound
	}
	return ur.GetByUsername(username)
}

func (ur *FakeUserRepo) GetByID(id string) (*users.User, error) {
	ur.lock.RLock()
	username, ok := ur.idLookup[id]
	ur.lock.RUnlock()
	if !ok {
		return nil, users.ErrNotFound
	}
	return ur.GetByUsername(username)
}

func (ur *FakeUserRepo) Delete(username string) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	u, ok := ur.users[username]
	if !ok {
		return users.ErrNotFound
	}
	delete(ur.users, username)
	if email := users.NormalizeEmail(u.Email); ur.emailLookup[email] == username {
		delete(ur.emailLookup, email)
	}
	delete(ur.idLookup, u.ID)
	return nil
}

package auth

import (
	"sync"
	"time"

	"github.com/streamwatch/streamwatch/auth"
)

type UserCache interface {
	Get(username string) (auth.User, bool)
	Set(auth.User)
	Delete(username string)
}

// In memory implementation of UserCache.
// Entries expire lazily on access.
// All methods are goroutine safe.
type userCache struct {
	mu         sync.RWMutex
	users      map[string]cachedUser
	expiration time.Duration
}

type cachedUser struct {
	user      auth.User
	expiresAt time.Time
}

func newUserCache(expiration time.Duration) *userCache {
	return &userCache{
		users:      make(map[string]cachedUser),
		expiration: expiration,
	}
}

func (c *userCache) Get(username string) (auth.User, bool) {
	c.mu.RLock()
	entry, ok := c.users[username]
	c.mu.RUnlock()
	if !ok {
		return auth.User{}, false
	}
	if time.Now().After(entry.expiresAt) {
		c.Delete(username)
		return auth.User{}, false
	}
	return entry.user, true
}

func (c *userCache) Set(u auth.User) {
	c.mu.Lock()
	c.users[u.Name()] = cachedUser{
		user:      u,
		expiresAt: time.Now().Add(c.expiration),
	}
	c.mu.Unlock()
}

func (c *userCache) Delete(username string) {
	c.mu.Lock()
	delete(c.users, username)
	c.mu.Unlock()
}

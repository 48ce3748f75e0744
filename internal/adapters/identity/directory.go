package identity

import (
	"context"
	"sync"

	"github.com/skatehub/gateway/internal/domain"
)

// Directory is an in-memory user store for development and tests.
// With Provision set, unknown subjects are created active on first lookup.
type Directory struct {
	Provision bool

	mu    sync.RWMutex
	users map[string]domain.User
}

func NewDirectory(users ...domain.User) *Directory {
	d := &Directory{users: make(map[string]domain.User, len(users))}
	for _, u := range users {
		d.Put(u)
	}
	return d
}

func (d *Directory) Put(u domain.User) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if u.ID == "" {
		u.ID = domain.UserID(u.ExternalID)
	}
	d.users[u.ExternalID] = u
}

// SetActive flips the active flag and reports whether the user exists.
func (d *Directory) SetActive(externalID string, active bool) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.users[externalID]
	if !ok {
		return false
	}
	u.Active = active
	d.users[externalID] = u
	return true
}

func (d *Directory) LookupUser(_ context.Context, subject string) (domain.User, bool, error) {
	d.mu.RLock()
	u, ok := d.users[subject]
	d.mu.RUnlock()
	if ok || !d.Provision {
		return u, ok, nil
	}
	u = domain.User{ID: domain.UserID(subject), ExternalID: subject, Username: subject, Active: true}
	d.Put(u)
	return u, true, nil
}

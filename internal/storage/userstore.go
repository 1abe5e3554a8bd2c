package storage

import (
	"errors"
	"strings"
	"sync"

	"github.com/example/ride-hail/internal/models"
)

// ErrEmailTaken is returned by CreateUser when the email is already
// registered.
var ErrEmailTaken = errors.New("email already registered")

// UserStore keeps registered users in memory, looked up by id or email.
type UserStore struct {
	mu      sync.RWMutex
	byID    map[string]*models.User
	byEmail map[string]*models.User
}

func NewUserStore() *UserStore {
	return &UserStore{
		byID:    make(map[string]*models.User),
		byEmail: make(map[string]*models.User),
	}
}

func (s *UserStore) CreateUser(u *models.User) error {
	key := normalizeEmail(u.Email)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byEmail[key]; ok {
		return ErrEmailTaken
	}
	cp := *u
	s.byID[u.ID] = &cp
	s.byEmail[key] = &cp
	return nil
}

func (s *UserStore) GetUser(id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *UserStore) GetUserByEmail(email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.byEmail[normalizeEmail(email)]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

// UpdateUser applies a profile patch. Changing the email re-keys the email
// index and fails with ErrEmailTaken when the new address belongs to
// someone else.
func (s *UserStore) UpdateUser(id string, mutate func(*models.User) error) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	next := *u
	if err := mutate(&next); err != nil {
		return nil, err
	}
	oldEmail := normalizeEmail(u.Email)
	newEmail := normalizeEmail(next.Email)
	if newEmail != oldEmail {
		if other, ok := s.byEmail[newEmail]; ok && other.ID != id {
			return nil, ErrEmailTaken
		}
		delete(s.byEmail, oldEmail)
		s.byEmail[newEmail] = u
	}
	*u = next
	cp := next
	return &cp, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

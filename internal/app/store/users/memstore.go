package userstore

import (
	"context"
	"sort"
	"sync"

	"github.com/atlasevents/backend/internal/app/system/normalize"
	"github.com/atlasevents/backend/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
)

// MemStore is an in-memory Directory used in tests and anywhere a database is
// unavailable. Behavior mirrors Store: normalized keys, duplicate rejection,
// tolerant lookups.
type MemStore struct {
	mu    sync.RWMutex
	users map[string]models.User
}

func NewMem() *MemStore {
	return &MemStore{users: make(map[string]models.User)}
}

var _ Directory = (*MemStore)(nil)

func (m *MemStore) Add(_ context.Context, u models.User) (models.User, error) {
	u, err := prepareNew(u)
	if err != nil {
		return models.User{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.users[u.Email]; exists {
		return models.User{}, ErrDuplicateEmail
	}
	m.users[u.Email] = u
	return u, nil
}

func (m *MemStore) GetByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if u, ok := m.users[normalize.Email(email)]; ok {
		return &u, nil
	}
	return nil, nil
}

func (m *MemStore) GetByName(_ context.Context, name string) (*models.User, error) {
	want := text.Fold(normalize.Name(name))
	m.mu.RLock()
	defer m.mu.RUnlock()
	// Deterministic first match: scan in email order.
	for _, email := range m.sortedEmailsLocked() {
		u := m.users[email]
		if u.NameCI == want {
			return &u, nil
		}
	}
	return nil, nil
}

func (m *MemStore) GetOrganizer(ctx context.Context, email string) (*models.User, error) {
	return m.getByRole(ctx, email, models.RoleOrganizer)
}

func (m *MemStore) GetEntrant(ctx context.Context, email string) (*models.User, error) {
	return m.getByRole(ctx, email, models.RoleEntrant)
}

func (m *MemStore) getByRole(_ context.Context, email, role string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if u, ok := m.users[normalize.Email(email)]; ok && u.Role == role {
		return &u, nil
	}
	return nil, nil
}

func (m *MemStore) Replace(_ context.Context, email string, u models.User) (models.User, error) {
	oldEmail := normalize.Email(email)

	m.mu.Lock()
	defer m.mu.Unlock()

	var existing *models.User
	if old, ok := m.users[oldEmail]; ok {
		existing = &old
	}

	u, err := prepareReplacement(existing, u)
	if err != nil {
		return models.User{}, err
	}

	if u.Email != oldEmail {
		if _, taken := m.users[u.Email]; taken {
			return models.User{}, ErrDuplicateEmail
		}
		delete(m.users, oldEmail)
	}
	m.users[u.Email] = u
	return u, nil
}

func (m *MemStore) Delete(_ context.Context, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.users, normalize.Email(email))
	return nil
}

func (m *MemStore) List(_ context.Context, role string) ([]models.User, error) {
	r := normalize.Role(role)
	m.mu.RLock()
	defer m.mu.RUnlock()

	var users []models.User
	for _, email := range m.sortedEmailsLocked() {
		u := m.users[email]
		if r != "" && u.Role != r {
			continue
		}
		users = append(users, u)
	}
	sort.SliceStable(users, func(i, j int) bool {
		if users[i].NameCI != users[j].NameCI {
			return users[i].NameCI < users[j].NameCI
		}
		return users[i].Email < users[j].Email
	})
	return users, nil
}

func (m *MemStore) SetNotificationsEnabled(_ context.Context, email string, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[normalize.Email(email)]
	if !ok {
		return nil
	}
	u.NotificationsEnabled = &enabled
	m.users[u.Email] = u
	return nil
}

func (m *MemStore) BlockOrganizer(_ context.Context, email, organizerEmail string) error {
	org := normalize.Email(organizerEmail)
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[normalize.Email(email)]
	if !ok {
		return nil
	}
	if !u.HasBlocked(org) {
		u.BlockedOrganizers = append(append([]string(nil), u.BlockedOrganizers...), org)
		m.users[u.Email] = u
	}
	return nil
}

func (m *MemStore) UnblockOrganizer(_ context.Context, email, organizerEmail string) error {
	org := normalize.Email(organizerEmail)
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[normalize.Email(email)]
	if !ok {
		return nil
	}
	var kept []string
	for _, e := range u.BlockedOrganizers {
		if e != org {
			kept = append(kept, e)
		}
	}
	u.BlockedOrganizers = kept
	m.users[u.Email] = u
	return nil
}

func (m *MemStore) IsOrganizerBlocked(_ context.Context, email, organizerEmail string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if u, ok := m.users[normalize.Email(email)]; ok {
		return u.HasBlocked(normalize.Email(organizerEmail)), nil
	}
	return false, nil
}

func (m *MemStore) sortedEmailsLocked() []string {
	emails := make([]string, 0, len(m.users))
	for e := range m.users {
		emails = append(emails, e)
	}
	sort.Strings(emails)
	return emails
}

// Package session хранит состояние сессии покупателя: корзину, учётную запись,
// сессию администратора и язык интерфейса.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mmeshcher/soapyfy/internal/cart"
	"github.com/mmeshcher/soapyfy/internal/model"
)

// ErrNotFound возвращается хранилищем, если сессия отсутствует или истекла.
var ErrNotFound = errors.New("session not found")

// Account учётная запись, сохранённая в сессии. Хеш пароля в сессию не попадает.
type Account struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewAccount создаёт запись сессии из пользователя.
func NewAccount(u *model.User) *Account {
	return &Account{ID: u.ID, Email: u.Email, CreatedAt: u.CreatedAt}
}

// User возвращает пользователя без хеша пароля.
func (a *Account) User() *model.User {
	if a == nil {
		return nil
	}
	return &model.User{ID: a.ID, Email: a.Email, CreatedAt: a.CreatedAt}
}

// State состояние одной сессии. Слоты покупателя и администратора независимы.
type State struct {
	Cart      cart.Cart        `json:"cart"`
	User      *Account         `json:"user,omitempty"`
	Admin     *model.AdminUser `json:"admin,omitempty"`
	Language  model.Language   `json:"language"`
	UpdatedAt time.Time        `json:"updatedAt"`
}

// NewState возвращает пустую сессию с языком по умолчанию.
func NewState() *State {
	return &State{Language: model.DefaultLanguage}
}

// Clone возвращает независимую копию состояния.
func (s *State) Clone() *State {
	c := *s
	c.Cart = cart.Cart{Lines: s.Cart.Items()}
	if s.User != nil {
		u := *s.User
		c.User = &u
	}
	if s.Admin != nil {
		a := *s.Admin
		c.Admin = &a
	}
	return &c
}

// Store сохраняет состояние сессий.
type Store interface {
	Load(ctx context.Context, id string) (*State, error)
	Save(ctx context.Context, id string, st *State) error
	Delete(ctx context.Context, id string) error
}

// Listener получает копию состояния после каждого сохранённого изменения.
type Listener func(id string, st *State)

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager единственная точка доступа к сессиям. Изменения одной сессии
// выполняются строго последовательно.
type Manager struct {
	store Store
	now   func() time.Time

	mu    sync.Mutex
	locks map[string]*lockEntry

	listenersMu sync.RWMutex
	listeners   map[int]Listener
	nextID      int
}

// NewManager создаёт менеджер поверх хранилища.
func NewManager(store Store) *Manager {
	return &Manager{
		store:     store,
		now:       time.Now,
		locks:     make(map[string]*lockEntry),
		listeners: make(map[int]Listener),
	}
}

// NewID возвращает новый идентификатор сессии.
func NewID() string {
	return uuid.NewString()
}

// Get возвращает копию состояния сессии. Для неизвестной сессии возвращается пустое состояние.
func (m *Manager) Get(ctx context.Context, id string) (*State, error) {
	st, err := m.store.Load(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return NewState(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	return st, nil
}

// Update загружает состояние, применяет fn и сохраняет результат.
// Если fn вернула ошибку, состояние не сохраняется и ошибка возвращается как есть.
func (m *Manager) Update(ctx context.Context, id string, fn func(st *State) error) (*State, error) {
	unlock := m.lock(id)
	defer unlock()

	st, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := fn(st); err != nil {
		return nil, err
	}

	st.UpdatedAt = m.now().UTC()
	if err := m.store.Save(ctx, id, st); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}

	m.notify(id, st)
	return st.Clone(), nil
}

// Rotate переносит состояние сессии под новый идентификатор и удаляет старый.
// Старый идентификатор после этого указывает на пустую сессию.
func (m *Manager) Rotate(ctx context.Context, id string) (string, error) {
	unlock := m.lock(id)
	defer unlock()

	st, err := m.Get(ctx, id)
	if err != nil {
		return "", err
	}

	newID := NewID()
	st.UpdatedAt = m.now().UTC()
	if err := m.store.Save(ctx, newID, st); err != nil {
		return "", fmt.Errorf("save session: %w", err)
	}
	if err := m.store.Delete(ctx, id); err != nil {
		return "", fmt.Errorf("delete session: %w", err)
	}

	m.notify(newID, st)
	return newID, nil
}

// Destroy удаляет сессию.
func (m *Manager) Destroy(ctx context.Context, id string) error {
	unlock := m.lock(id)
	defer unlock()

	if err := m.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// Subscribe регистрирует слушателя изменений. Возвращает функцию отписки.
func (m *Manager) Subscribe(l Listener) func() {
	m.listenersMu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = l
	m.listenersMu.Unlock()

	return func() {
		m.listenersMu.Lock()
		delete(m.listeners, id)
		m.listenersMu.Unlock()
	}
}

func (m *Manager) notify(id string, st *State) {
	m.listenersMu.RLock()
	defer m.listenersMu.RUnlock()

	for _, l := range m.listeners {
		l(id, st.Clone())
	}
}

func (m *Manager) lock(id string) func() {
	m.mu.Lock()
	e, ok := m.locks[id]
	if !ok {
		e = &lockEntry{}
		m.locks[id] = e
	}
	e.refs++
	m.mu.Unlock()

	e.mu.Lock()

	return func() {
		e.mu.Unlock()

		m.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(m.locks, id)
		}
		m.mu.Unlock()
	}
}

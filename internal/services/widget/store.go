package widget

import (
	"context"
	"sync"

	"github.com/BearBump/DispatchBox/internal/models"
)

type StateStore interface {
	Get(ctx context.Context, controlID string) (models.ControlState, bool, error)
	Set(ctx context.Context, st models.ControlState) error
	Delete(ctx context.Context, controlID string) error
}

// MemoryStore: хранилище состояний в памяти процесса, когда redis не настроен.
type MemoryStore struct {
	mu sync.RWMutex
	m  map[string]models.ControlState
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{m: make(map[string]models.ControlState)}
}

func (s *MemoryStore) Get(_ context.Context, controlID string) (models.ControlState, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.m[controlID]
	return st, ok, nil
}

func (s *MemoryStore) Set(_ context.Context, st models.ControlState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[st.ControlID] = st
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, controlID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, controlID)
	return nil
}

// keyedLocks сериализует переходы состояний одного контрола.
type keyedLocks struct {
	mu sync.Mutex
	m  map[string]*keyedLock
}

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyedLocks() *keyedLocks {
	return &keyedLocks{m: make(map[string]*keyedLock)}
}

func (k *keyedLocks) Lock(key string) (unlock func()) {
	k.mu.Lock()
	l, ok := k.m[key]
	if !ok {
		l = &keyedLock{}
		k.m[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.m, key)
		}
		k.mu.Unlock()
	}
}

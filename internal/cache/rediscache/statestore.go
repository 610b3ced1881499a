package rediscache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/BearBump/DispatchBox/internal/cache"
	"github.com/BearBump/DispatchBox/internal/models"
	"github.com/pkg/errors"
)

// StateStore хранит состояние контролов в кэше, чтобы оно переживало рестарт
// и было общим у нескольких инстансов widget-api.
type StateStore struct {
	c   cache.BytesCache
	ttl time.Duration
}

func NewStateStore(c cache.BytesCache, ttl time.Duration) *StateStore {
	return &StateStore{c: c, ttl: ttl}
}

func (s *StateStore) Get(ctx context.Context, controlID string) (models.ControlState, bool, error) {
	b, ok, err := s.c.Get(ctx, stateKey(controlID))
	if err != nil || !ok {
		return models.ControlState{}, false, err
	}
	var st models.ControlState
	if err := json.Unmarshal(b, &st); err != nil {
		return models.ControlState{}, false, errors.Wrap(err, "decode control state")
	}
	return st, true, nil
}

func (s *StateStore) Set(ctx context.Context, st models.ControlState) error {
	b, err := json.Marshal(st)
	if err != nil {
		return errors.Wrap(err, "encode control state")
	}
	return s.c.Set(ctx, stateKey(st.ControlID), b, s.ttl)
}

func (s *StateStore) Delete(ctx context.Context, controlID string) error {
	return s.c.Delete(ctx, stateKey(controlID))
}

func stateKey(id string) string {
	return fmt.Sprintf("control:%s:state", id)
}

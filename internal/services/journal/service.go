package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/BearBump/DispatchBox/internal/broker/messages"
	"github.com/BearBump/DispatchBox/internal/cache"
	"github.com/BearBump/DispatchBox/internal/models"
	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
)

var ErrNotFound = errors.New("control has no journal records")

type Repository interface {
	SaveEvent(ctx context.Context, ev models.JournalEvent, points int) (bool, error)
	ListControlEvents(ctx context.Context, controlID string, limit, offset int) ([]*models.JournalEvent, error)
	ListSentOrders(ctx context.Context, limit, offset int) ([]*models.SentOrder, error)
}

type Service struct {
	repo    Repository
	cache   cache.BytesCache
	lastTTL time.Duration
}

func New(repo Repository, c cache.BytesCache, lastTTL time.Duration) *Service {
	return &Service{repo: repo, cache: c, lastTTL: lastTTL}
}

func (s *Service) cacheEnabled() bool {
	return s.cache != nil && s.lastTTL > 0
}

// ApplyEvent сохраняет событие из топика. Повторная доставка того же события
// ничего не меняет.
func (s *Service) ApplyEvent(ctx context.Context, msg messages.ControlStateChanged) error {
	if msg.EventID == "" {
		return errors.New("event_id is required")
	}
	if msg.ControlID == "" {
		return errors.New("control_id is required")
	}
	switch msg.State {
	case models.StateIdle, models.StateSending, models.StateSent, models.StateError:
	default:
		return errors.Errorf("unknown state %q", msg.State)
	}
	if msg.ChangedAt.IsZero() {
		msg.ChangedAt = time.Now().UTC()
	}

	ev := models.JournalEvent{
		EventID:   msg.EventID,
		ControlID: msg.ControlID,
		Kind:      models.ControlKind(msg.Kind),
		State:     msg.State,
		Title:     msg.Title,
		OrderID:   msg.OrderID,
		Matter:    msg.Matter,
		ChangedAt: msg.ChangedAt,
	}
	points := 0
	if len(msg.Order) > 0 {
		raw := string(msg.Order)
		ev.OrderJSON = &raw
		points = int(gjson.Get(raw, "point.#").Int())
	}

	inserted, err := s.repo.SaveEvent(ctx, ev, points)
	if err != nil {
		return err
	}
	if !inserted || !s.cacheEnabled() {
		return nil
	}

	st := models.ControlState{
		ControlID: ev.ControlID,
		Kind:      ev.Kind,
		State:     ev.State,
		Title:     ev.Title,
		UpdatedAt: ev.ChangedAt,
	}
	if ev.OrderID != nil {
		st.OrderID = *ev.OrderID
	}
	// Кэш не обязателен. При ошибке следующий LastState сходит в БД.
	if b, err := json.Marshal(st); err == nil {
		_ = s.cache.Set(ctx, lastKey(ev.ControlID), b, s.lastTTL)
	}
	return nil
}

func (s *Service) ListControlEvents(ctx context.Context, controlID string, limit, offset int) ([]*models.JournalEvent, error) {
	if controlID == "" {
		return nil, errors.New("control id is required")
	}
	return s.repo.ListControlEvents(ctx, controlID, limit, offset)
}

func (s *Service) ListSentOrders(ctx context.Context, limit, offset int) ([]*models.SentOrder, error) {
	return s.repo.ListSentOrders(ctx, limit, offset)
}

// LastState: последнее известное журналу состояние контрола.
func (s *Service) LastState(ctx context.Context, controlID string) (models.ControlState, error) {
	if s.cacheEnabled() {
		b, ok, err := s.cache.Get(ctx, lastKey(controlID))
		if err == nil && ok {
			var st models.ControlState
			if json.Unmarshal(b, &st) == nil {
				return st, nil
			}
		}
	}

	evs, err := s.repo.ListControlEvents(ctx, controlID, 1, 0)
	if err != nil {
		return models.ControlState{}, err
	}
	if len(evs) == 0 {
		return models.ControlState{}, ErrNotFound
	}
	ev := evs[0]
	st := models.ControlState{
		ControlID: ev.ControlID,
		Kind:      ev.Kind,
		State:     ev.State,
		Title:     ev.Title,
		UpdatedAt: ev.ChangedAt,
	}
	if ev.OrderID != nil {
		st.OrderID = *ev.OrderID
	}
	if s.cacheEnabled() {
		if b, err := json.Marshal(st); err == nil {
			_ = s.cache.Set(ctx, lastKey(controlID), b, s.lastTTL)
		}
	}
	return st, nil
}

func lastKey(controlID string) string {
	return fmt.Sprintf("journal:%s:last", controlID)
}

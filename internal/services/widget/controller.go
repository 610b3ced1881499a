package widget

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/BearBump/DispatchBox/internal/broker/messages"
	"github.com/BearBump/DispatchBox/internal/integrations/dispatch"
	"github.com/BearBump/DispatchBox/internal/markup"
	"github.com/BearBump/DispatchBox/internal/models"
	"github.com/BearBump/DispatchBox/internal/validation"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var (
	ErrNoAuth      = errors.New("set client id and token before submitting orders")
	ErrRateLimited = errors.New("too many orders, try again later")
)

type EventSink interface {
	Publish(ctx context.Context, ev messages.ControlStateChanged) error
}

type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error)
}

// Control: кликнутый контрол и элементы, из которых собирается заказ:
// одна кнопка или отмеченные позиции комбо.
type Control struct {
	ID    string
	Kind  models.ControlKind
	Items []markup.Element
}

// Outcome: итог одного клика.
type Outcome struct {
	State   models.ControlState
	OrderID string
	// Err: почему контрол перешёл в error (валидация, транспорт или коды API).
	Err error
	// Ignored: контрол отправляется или уже отправлен, клик ничего не сделал.
	Ignored bool
	// Reset: клик по контролу с ошибкой вернул его в idle без отправки.
	Reset bool
}

type Options struct {
	Dispatcher dispatch.Client
	Auth       models.AuthParams
	Store      StateStore
	Events     EventSink
	Limiter    RateLimiter
	// RateLimitPerMinute: сколько заказов клиент может отправить за минуту, 0 снимает ограничение.
	RateLimitPerMinute int64
	Hooks              Hooks
	Logger             *slog.Logger
	Debug              bool
}

type Controller struct {
	dispatcher dispatch.Client
	auth       atomic.Pointer[models.AuthParams]
	store      StateStore
	events     EventSink
	limiter    RateLimiter
	rlPerMin   int64
	hooks      Hooks
	logger     *slog.Logger
	debug      atomic.Bool
	locks      *keyedLocks
	now        func() time.Time

	stats counters
}

func New(opts Options) *Controller {
	c := &Controller{
		dispatcher: opts.Dispatcher,
		store:      opts.Store,
		events:     opts.Events,
		limiter:    opts.Limiter,
		rlPerMin:   opts.RateLimitPerMinute,
		hooks:      opts.Hooks,
		logger:     opts.Logger,
		locks:      newKeyedLocks(),
		now:        func() time.Time { return time.Now().UTC() },
	}
	if c.store == nil {
		c.store = NewMemoryStore()
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	c.debug.Store(opts.Debug)
	c.SetAuth(opts.Auth)
	return c
}

// SetAuth задаёт учётные данные клиента для следующих отправок.
func (c *Controller) SetAuth(auth models.AuthParams) {
	c.auth.Store(&auth)
}

func (c *Controller) Auth() models.AuthParams {
	return *c.auth.Load()
}

// SetDebug включает диагностические сообщения виджета.
// Пользовательские хуки вызываются независимо от этого флага.
func (c *Controller) SetDebug(on bool) {
	c.debug.Store(on)
}

func (c *Controller) Debug() bool {
	return c.debug.Load()
}

// diag: сообщения о клике для разработчика страницы, только в режиме отладки.
// Сбои инфраструктуры (хранилище, брокер, лимитер) логируются всегда.
func (c *Controller) diag(ctx context.Context, msg string, args ...any) {
	if c.debug.Load() {
		c.logger.ErrorContext(ctx, msg, args...)
	}
}

// State возвращает текущее состояние контрола; неизвестный контрол: idle.
func (c *Controller) State(ctx context.Context, id string, kind models.ControlKind) (models.ControlState, error) {
	st, ok, err := c.store.Get(ctx, id)
	if err != nil {
		return models.ControlState{}, errors.Wrap(err, "load control state")
	}
	if !ok {
		return models.IdleState(id, kind), nil
	}
	return st, nil
}

// Reset возвращает контрол в idle. Это единственный способ снова отправить
// заказ с уже отправленного контрола.
func (c *Controller) Reset(ctx context.Context, id string, kind models.ControlKind) (models.ControlState, error) {
	unlock := c.locks.Lock(id)
	defer unlock()
	c.stats.resets.Add(1)

	// idle не хранится: нет записи, значит контрол в idle
	st := models.IdleState(id, kind)
	st.UpdatedAt = c.now()
	ctx = context.WithoutCancel(ctx)
	if err := c.store.Delete(ctx, id); err != nil {
		return st, errors.Wrap(err, "delete control state")
	}
	c.publish(ctx, st, nil)
	return st, nil
}

// SelectionChanged вызывается, когда в комбо меняют отмеченные позиции. Кнопка отправки
// сбрасывается в idle. Идущую отправку не трогаем.
func (c *Controller) SelectionChanged(ctx context.Context, id string) (models.ControlState, error) {
	unlock := c.locks.Lock(id)
	defer unlock()

	cur, err := c.State(ctx, id, models.ControlCombo)
	if err != nil {
		return models.ControlState{}, err
	}
	if cur.State == models.StateSending || cur.State == models.StateIdle {
		return cur, nil
	}
	c.stats.resets.Add(1)
	return c.transition(ctx, Control{ID: id, Kind: models.ControlCombo}, models.StateIdle, "", nil)
}

// Click обрабатывает клик по контролу и возвращает итог.
// Ошибка возвращается только для проблем конфигурации и хранилища;
// ошибки заказа приходят в Outcome.Err вместе с состоянием error.
func (c *Controller) Click(ctx context.Context, ctl Control) (Outcome, error) {
	c.stats.clicks.Add(1)

	unlock := c.locks.Lock(ctl.ID)
	cur, err := c.State(ctx, ctl.ID, ctl.Kind)
	if err != nil {
		unlock()
		return Outcome{}, err
	}

	switch cur.State {
	case models.StateError:
		st, err := c.transition(ctx, ctl, models.StateIdle, "", nil)
		unlock()
		c.stats.resets.Add(1)
		return Outcome{State: st, Reset: true}, err
	case models.StateSending, models.StateSent:
		unlock()
		c.stats.ignored.Add(1)
		return Outcome{State: cur, Ignored: true}, nil
	}

	auth := c.Auth()
	if !auth.Valid() {
		unlock()
		c.diag(ctx, ErrNoAuth.Error(), "control", ctl.ID)
		return Outcome{State: cur}, ErrNoAuth
	}

	st, err := c.transition(ctx, ctl, models.StateSending, "", nil)
	unlock()
	if err != nil {
		return Outcome{State: st}, err
	}

	c.awaitBeforeSend(ctx, ctl)
	return c.submit(ctx, ctl, auth), nil
}

func (c *Controller) awaitBeforeSend(ctx context.Context, ctl Control) {
	if c.hooks.BeforeSend == nil {
		return
	}
	done := c.hooks.BeforeSend(ctx, ctl)
	if done == nil {
		c.diag(ctx, "before-send hook must return a completion channel", "control", ctl.ID)
		return
	}
	select {
	case <-done:
	case <-ctx.Done():
	}
}

func (c *Controller) submit(ctx context.Context, ctl Control, auth models.AuthParams) Outcome {
	order, asmErr := assemble(ctl)
	if err := validation.Validate(order, decodeProblems(asmErr)...); err != nil {
		c.diag(ctx, "order validation failed", "control", ctl.ID, "err", err)
		if ctl.Kind == models.ControlCombo && c.hooks.ComboError != nil {
			c.hooks.ComboError(ctx, ctl, err)
		}
		return c.fail(ctx, ctl, err)
	}

	if c.limiter != nil && c.rlPerMin > 0 {
		ok, _, err := c.limiter.Allow(ctx, "submit:"+auth.ClientID, c.rlPerMin, time.Minute)
		if err != nil {
			c.logger.WarnContext(ctx, "rate limiter unavailable", "err", err)
		} else if !ok {
			return c.sendFailed(ctx, ctl, ErrRateLimited)
		}
	}

	c.stats.submitted.Add(1)
	resp, err := c.dispatcher.Submit(ctx, order, auth)
	if err != nil {
		return c.sendFailed(ctx, ctl, err)
	}

	if c.hooks.SendSuccess != nil {
		c.hooks.SendSuccess(ctx, ctl, resp)
	}

	c.stats.sent.Add(1)
	st, err := c.transition(ctx, ctl, models.StateSent, SentTitle(resp.OrderID), &sentInfo{order: order, orderID: resp.OrderID})
	if err != nil {
		c.logger.WarnContext(ctx, "store control state", "control", ctl.ID, "err", err)
	}
	return Outcome{State: st, OrderID: resp.OrderID}
}

func SentTitle(orderID string) string {
	return fmt.Sprintf("Dispatch order ID: %s", orderID)
}

func (c *Controller) sendFailed(ctx context.Context, ctl Control, err error) Outcome {
	if c.hooks.SendError != nil {
		c.hooks.SendError(ctx, ctl, err)
	} else {
		c.diag(ctx, "order sending failed", "control", ctl.ID, "err", err)
	}
	return c.fail(ctx, ctl, err)
}

func (c *Controller) fail(ctx context.Context, ctl Control, cause error) Outcome {
	c.stats.failed.Add(1)
	st, err := c.transition(ctx, ctl, models.StateError, cause.Error(), nil)
	if err != nil {
		c.logger.WarnContext(ctx, "store control state", "control", ctl.ID, "err", err)
	}
	return Outcome{State: st, Err: cause}
}

func assemble(ctl Control) (models.Order, error) {
	if ctl.Kind == models.ControlCombo {
		return markup.MergeCombo(ctl.Items)
	}
	if len(ctl.Items) == 0 {
		return models.Order{}, errors.New("control has no markup")
	}
	return markup.ReadOrder(ctl.Items[0])
}

func decodeProblems(err error) []string {
	if err == nil {
		return nil
	}
	var de *markup.DecodeError
	if errors.As(err, &de) {
		return de.Messages()
	}
	return []string{err.Error()}
}

type sentInfo struct {
	order   models.Order
	orderID string
}

func (c *Controller) transition(ctx context.Context, ctl Control, state, title string, sent *sentInfo) (models.ControlState, error) {
	st := models.ControlState{
		ControlID: ctl.ID,
		Kind:      ctl.Kind,
		State:     state,
		Title:     title,
		UpdatedAt: c.now(),
	}
	if sent != nil {
		st.OrderID = sent.orderID
	}

	// Итог отправки записываем, даже если клиент уже ушёл: иначе контрол застрянет в sending.
	ctx = context.WithoutCancel(ctx)
	if err := c.store.Set(ctx, st); err != nil {
		return st, errors.Wrap(err, "save control state")
	}
	c.publish(ctx, st, sent)
	return st, nil
}

func (c *Controller) publish(ctx context.Context, st models.ControlState, sent *sentInfo) {
	if c.events == nil {
		return
	}
	ev := messages.ControlStateChanged{
		EventID:   uuid.NewString(),
		ControlID: st.ControlID,
		Kind:      string(st.Kind),
		State:     st.State,
		Title:     st.Title,
		ChangedAt: st.UpdatedAt,
	}
	if sent != nil {
		ev.OrderID = &sent.orderID
		ev.Matter = &sent.order.Matter
		if b, err := json.Marshal(sent.order); err == nil {
			ev.Order = b
		}
	}
	// Событие только уведомляет, его потеря не меняет исход клика.
	if err := c.events.Publish(ctx, ev); err != nil {
		c.logger.WarnContext(ctx, "publish control state", "control", st.ControlID, "state", st.State, "err", err)
	}
}

type counters struct {
	clicks    atomic.Int64
	submitted atomic.Int64
	sent      atomic.Int64
	failed    atomic.Int64
	ignored   atomic.Int64
	resets    atomic.Int64
}

type Stats struct {
	Clicks    int64 `json:"clicks"`
	Submitted int64 `json:"submitted"`
	Sent      int64 `json:"sent"`
	Failed    int64 `json:"failed"`
	Ignored   int64 `json:"ignored"`
	Resets    int64 `json:"resets"`
	Debug     bool  `json:"debug"`
}

func (c *Controller) Stats() Stats {
	return Stats{
		Clicks:    c.stats.clicks.Load(),
		Submitted: c.stats.submitted.Load(),
		Sent:      c.stats.sent.Load(),
		Failed:    c.stats.failed.Load(),
		Ignored:   c.stats.ignored.Load(),
		Resets:    c.stats.resets.Load(),
		Debug:     c.debug.Load(),
	}
}

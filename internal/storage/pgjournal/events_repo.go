package pgjournal

import (
	"context"
	"time"

	"github.com/BearBump/DispatchBox/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

// SaveEvent пишет событие смены состояния. Повтор того же event_id игнорируется.
// Для sent дополнительно появляется запись в sent_orders.
func (s *Storage) SaveEvent(ctx context.Context, ev models.JournalEvent, points int) (bool, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var payload any
	if ev.OrderJSON != nil && *ev.OrderJSON != "" {
		payload = *ev.OrderJSON
	}

	tag, err := tx.Exec(ctx, `
INSERT INTO control_events (
  event_id, control_id, kind, state, title, order_id, matter, payload, changed_at, created_at
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8::jsonb,$9, now())
ON CONFLICT (event_id) DO NOTHING
`, ev.EventID, ev.ControlID, string(ev.Kind), ev.State, ev.Title, ev.OrderID, ev.Matter, payload, ev.ChangedAt.UTC())
	if err != nil {
		return false, errors.Wrap(err, "insert control event")
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	if ev.State == models.StateSent && ev.OrderID != nil && *ev.OrderID != "" {
		matter := ""
		if ev.Matter != nil {
			matter = *ev.Matter
		}
		_, err := tx.Exec(ctx, `
INSERT INTO sent_orders (order_id, control_id, matter, points, payload, sent_at)
VALUES ($1,$2,$3,$4,$5::jsonb,$6)
ON CONFLICT (order_id, control_id) DO NOTHING
`, *ev.OrderID, ev.ControlID, matter, points, payload, ev.ChangedAt.UTC())
		if err != nil {
			return false, errors.Wrap(err, "insert sent order")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return false, errors.Wrap(err, "commit tx")
	}
	return true, nil
}

func (s *Storage) ListControlEvents(ctx context.Context, controlID string, limit, offset int) ([]*models.JournalEvent, error) {
	limit, offset = page(limit, offset)

	rows, err := s.db.Query(ctx, `
SELECT
  id, event_id, control_id, kind, state, title,
  order_id, matter, payload::text, changed_at, created_at
FROM control_events
WHERE control_id = $1
ORDER BY changed_at DESC, id DESC
LIMIT $2 OFFSET $3
`, controlID, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "select control events")
	}
	defer rows.Close()

	var out []*models.JournalEvent
	for rows.Next() {
		var e models.JournalEvent
		var kind string
		if err := rows.Scan(
			&e.ID, &e.EventID, &e.ControlID, &kind, &e.State, &e.Title,
			&e.OrderID, &e.Matter, &e.OrderJSON, &e.ChangedAt, &e.CreatedAt,
		); err != nil {
			return nil, errors.Wrap(err, "scan control event")
		}
		e.Kind = models.ControlKind(kind)
		out = append(out, &e)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

func (s *Storage) ListSentOrders(ctx context.Context, limit, offset int) ([]*models.SentOrder, error) {
	limit, offset = page(limit, offset)

	rows, err := s.db.Query(ctx, `
SELECT id, order_id, control_id, matter, points, COALESCE(payload::text, ''), sent_at
FROM sent_orders
ORDER BY sent_at DESC, id DESC
LIMIT $1 OFFSET $2
`, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "select sent orders")
	}
	defer rows.Close()

	var out []*models.SentOrder
	for rows.Next() {
		var o models.SentOrder
		var sentAt time.Time
		if err := rows.Scan(&o.ID, &o.OrderID, &o.ControlID, &o.Matter, &o.Points, &o.OrderJSON, &sentAt); err != nil {
			return nil, errors.Wrap(err, "scan sent order")
		}
		o.SentAt = sentAt.UTC()
		out = append(out, &o)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

func page(limit, offset int) (int, int) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

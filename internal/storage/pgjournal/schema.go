package pgjournal

import (
	"context"

	"github.com/pkg/errors"
)

func (s *Storage) initSchema(ctx context.Context) error {
	stmts := []string{
		`
CREATE TABLE IF NOT EXISTS control_events (
  id BIGSERIAL PRIMARY KEY,
  event_id TEXT NOT NULL,
  control_id TEXT NOT NULL,
  kind TEXT NOT NULL,
  state TEXT NOT NULL,
  title TEXT NOT NULL DEFAULT '',
  order_id TEXT NULL,
  matter TEXT NULL,
  payload JSONB NULL,
  changed_at TIMESTAMPTZ NOT NULL,
  created_at TIMESTAMPTZ NOT NULL
)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_control_events_event_id ON control_events(event_id)`,
		`CREATE INDEX IF NOT EXISTS idx_control_events_control_id_changed_at ON control_events(control_id, changed_at DESC)`,
		`
CREATE TABLE IF NOT EXISTS sent_orders (
  id BIGSERIAL PRIMARY KEY,
  order_id TEXT NOT NULL,
  control_id TEXT NOT NULL,
  matter TEXT NOT NULL DEFAULT '',
  points INT NOT NULL DEFAULT 0,
  payload JSONB NULL,
  sent_at TIMESTAMPTZ NOT NULL,
  UNIQUE (order_id, control_id)
)`,
		`CREATE INDEX IF NOT EXISTS idx_sent_orders_sent_at ON sent_orders(sent_at DESC)`,
	}

	for _, q := range stmts {
		if _, err := s.db.Exec(ctx, q); err != nil {
			return errors.Wrap(err, "init schema")
		}
	}
	return nil
}

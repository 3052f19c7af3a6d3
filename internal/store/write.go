package store

import (
	"context"
	"fmt"

	"github.com/roach88/procnet/internal/engine"
)

// CreateRun inserts a run record with status running.
// Uses ON CONFLICT(id) DO NOTHING for idempotency.
func (s *Store) CreateRun(ctx context.Context, run Run) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, network, network_hash, source, ir_version, status)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		run.ID,
		run.Network,
		run.NetworkHash,
		run.Source,
		run.IRVersion,
		string(StatusRunning),
	)
	if err != nil {
		return fmt.Errorf("write run: %w", err)
	}
	return nil
}

// FinishRun records the outcome of a run created with CreateRun.
// Only status, rounds, ticks, error and trace hash are updated.
func (s *Store) FinishRun(ctx context.Context, run Run) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE runs
		SET status = ?, rounds = ?, ticks = ?, error = ?, trace_hash = ?
		WHERE id = ?
	`,
		string(run.Status),
		run.Rounds,
		run.Ticks,
		run.Error,
		run.TraceHash,
		run.ID,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("finish run %s: %w", run.ID, ErrRunNotFound)
	}
	return nil
}

// WriteEvent inserts a channel event.
// Uses ON CONFLICT(run_id, seq) DO NOTHING: re-recording an event is a no-op.
//
// Note: The run referenced by ev.RunID must exist (foreign key constraint).
func (s *Store) WriteEvent(ctx context.Context, ev engine.ChannelEvent) error {
	value, typ, err := marshalValue(ev.Value)
	if err != nil {
		return fmt.Errorf("write event: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO channel_events
		(run_id, seq, round, kind, channel, proc, value, value_type, generated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, seq) DO NOTHING
	`,
		ev.RunID,
		ev.Seq,
		ev.Round,
		string(ev.Kind),
		ev.Channel,
		ev.Proc,
		value,
		typ,
		ev.Generated,
	)
	if err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	return nil
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/procnet/internal/engine"
	"github.com/roach88/procnet/internal/ir"
)

const runColumns = `id, network, network_hash, source, ir_version, status, rounds, ticks, error, trace_hash`

// ReadRun returns the run with the given ID.
// Returns an error wrapping ErrRunNotFound if there is none.
func (s *Store) ReadRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("read run %s: %w", id, ErrRunNotFound)
	}
	if err != nil {
		return Run{}, fmt.Errorf("read run %s: %w", id, err)
	}
	return run, nil
}

// ListRuns returns recorded runs ordered by ID. An empty network lists
// runs of every network.
//
// Returns an empty slice (not nil) if there are no runs.
func (s *Store) ListRuns(ctx context.Context, network string) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+runColumns+`
		FROM runs
		WHERE ? = '' OR network = ?
		ORDER BY id COLLATE BINARY ASC
	`, network, network)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ReadEvents returns every channel event of a run in seq order.
//
// Returns an empty slice (not nil) if the run has no events.
func (s *Store) ReadEvents(ctx context.Context, runID string) ([]engine.ChannelEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, seq, round, kind, channel, proc, value, value_type, generated
		FROM channel_events
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []engine.ChannelEvent{}
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// ReadChannelValues returns the values of one kind of event on one channel
// of a run, in seq order.
//
// Returns an empty slice (not nil) if there are none.
func (s *Store) ReadChannelValues(ctx context.Context, runID, channel string, kind engine.EventKind) ([]ir.Value, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT value, value_type
		FROM channel_events
		WHERE run_id = ? AND channel = ? AND kind = ?
		ORDER BY seq ASC
	`, runID, channel, string(kind))
	if err != nil {
		return nil, fmt.Errorf("query channel values: %w", err)
	}
	defer rows.Close()

	values := []ir.Value{}
	for rows.Next() {
		var data, typ string
		if err := rows.Scan(&data, &typ); err != nil {
			return nil, fmt.Errorf("scan channel value: %w", err)
		}
		v, err := unmarshalValue(data, typ)
		if err != nil {
			return nil, fmt.Errorf("channel %s: %w", channel, err)
		}
		values = append(values, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate channel values: %w", err)
	}
	return values, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (Run, error) {
	var run Run
	var status string
	err := sc.Scan(
		&run.ID,
		&run.Network,
		&run.NetworkHash,
		&run.Source,
		&run.IRVersion,
		&status,
		&run.Rounds,
		&run.Ticks,
		&run.Error,
		&run.TraceHash,
	)
	if err != nil {
		return Run{}, err
	}
	run.Status = RunStatus(status)
	return run, nil
}

func scanEvent(sc scanner) (engine.ChannelEvent, error) {
	var (
		ev        engine.ChannelEvent
		kind      string
		data, typ string
		generated bool
	)
	err := sc.Scan(
		&ev.RunID,
		&ev.Seq,
		&ev.Round,
		&kind,
		&ev.Channel,
		&ev.Proc,
		&data,
		&typ,
		&generated,
	)
	if err != nil {
		return engine.ChannelEvent{}, fmt.Errorf("scan event: %w", err)
	}
	v, err := unmarshalValue(data, typ)
	if err != nil {
		return engine.ChannelEvent{}, fmt.Errorf("event %d: %w", ev.Seq, err)
	}
	ev.Kind = engine.EventKind(kind)
	ev.Value = v
	ev.Generated = generated
	return ev, nil
}

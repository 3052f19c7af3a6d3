package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/procnet/internal/engine"
	"github.com/roach88/procnet/internal/ir"
)

// ErrNetworkMismatch is returned when a run is replayed against a network
// whose hash differs from the recorded one.
var ErrNetworkMismatch = errors.New("network does not match recorded run")

// ReplayRun replays a stored run against n and compares the traces.
//
// The network must hash identically to the one the run was recorded with.
// A run still marked running is replayed up to the rounds it recorded.
func (s *Store) ReplayRun(ctx context.Context, runID string, n *ir.Network, opts ...engine.Option) (*engine.ReplayResult, error) {
	run, err := s.ReadRun(ctx, runID)
	if err != nil {
		return nil, err
	}

	hash, err := ir.NetworkHash(n)
	if err != nil {
		return nil, fmt.Errorf("replay run %s: %w", runID, err)
	}
	if hash != run.NetworkHash {
		return nil, fmt.Errorf("replay run %s: %w: recorded %s (%s), got %s (%s)",
			runID, ErrNetworkMismatch, run.Network, short(run.NetworkHash), n.Name, short(hash))
	}

	events, err := s.ReadEvents(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("replay run %s: %w", runID, err)
	}

	rounds := run.Rounds
	if run.Status == StatusRunning {
		for _, ev := range events {
			rounds = max(rounds, ev.Round)
		}
	}
	return engine.Replay(ctx, n, events, rounds, opts...)
}

func short(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}

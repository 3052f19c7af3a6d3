package engine

import (
	"fmt"

	"github.com/roach88/procnet/internal/compiler"
	"github.com/roach88/procnet/internal/ir"
)

// procRunner is the execution unit of one proc: its saved state plus the
// record of the tick currently in flight.
type procRunner struct {
	proc       *ir.Proc
	order      []int          // node indices in evaluation order
	index      map[string]int // node name -> index
	stateIndex map[string]int // state element name -> index
	state      []ir.Value
	inflight   tickRecord
	ticks      int64 // completed ticks
}

// tickRecord holds the channel effects already committed by the tick in
// flight. A retried attempt replays them instead of touching the queues
// again.
type tickRecord struct {
	committed map[int]ir.Value // node index -> receive result or send token
	highWater int              // furthest order position reached
}

func newTickRecord() tickRecord {
	return tickRecord{committed: make(map[int]ir.Value)}
}

// stepResult is the outcome of one tick attempt.
type stepResult struct {
	completed bool
	progress  bool   // evaluated further than any earlier attempt of this tick
	blockedOn string // channel of the blocking receive when not completed
}

func newProcRunner(p *ir.Proc) (*procRunner, error) {
	order, err := compiler.NodeOrder(p)
	if err != nil {
		return nil, err
	}
	r := &procRunner{
		proc:       p,
		order:      order,
		index:      make(map[string]int, len(p.Nodes)),
		stateIndex: make(map[string]int, len(p.State)),
		state:      make([]ir.Value, len(p.State)),
		inflight:   newTickRecord(),
	}
	for i, n := range p.Nodes {
		r.index[n.Name] = i
	}
	for i, s := range p.State {
		r.stateIndex[s.Name] = i
		r.state[i] = s.Init
	}
	return r, nil
}

// step attempts the proc's current tick.
//
// Pure nodes are recomputed on every attempt. Receives and sends commit at
// most once per tick; a blocked attempt leaves the saved state untouched
// and keeps committed channel effects in the in-flight record.
func (r *procRunner) step(qm *QueueManager) (stepResult, error) {
	values := make([]ir.Value, len(r.proc.Nodes))
	stateOf := func(name string) (ir.Value, bool) {
		i, ok := r.stateIndex[name]
		if !ok {
			return nil, false
		}
		return r.state[i], true
	}

	for pos, idx := range r.order {
		node := r.proc.Nodes[idx]
		operands := node.Op.Operands()
		args := make([]ir.Value, len(operands))
		for i, name := range operands {
			args[i] = values[r.index[name]]
		}

		if !ir.IsSideEffecting(node.Op) {
			v, err := evalPure(node.Op, args, stateOf)
			if err != nil {
				return stepResult{}, newEvaluationError(r.proc.Name, node.Name, "%v", err)
			}
			values[idx] = v
			continue
		}

		if v, ok := r.inflight.committed[idx]; ok {
			values[idx] = v
			continue
		}

		v, blocked, err := r.channelOp(qm, node, args)
		if err != nil {
			return stepResult{}, err
		}
		if blocked {
			ch, _ := ir.ChannelOf(node.Op)
			progress := pos > r.inflight.highWater
			if progress {
				r.inflight.highWater = pos
			}
			return stepResult{progress: progress, blockedOn: ch}, nil
		}
		r.inflight.committed[idx] = v
		values[idx] = v
	}

	for i, s := range r.proc.State {
		r.state[i] = values[r.index[s.Next]]
	}
	r.inflight = newTickRecord()
	r.ticks++
	return stepResult{completed: true, progress: true}, nil
}

// channelOp performs a receive or send. blocked is true when a blocking
// receive found no value.
func (r *procRunner) channelOp(qm *QueueManager, node ir.Node, args []ir.Value) (ir.Value, bool, error) {
	switch o := node.Op.(type) {
	case ir.Receive:
		q, err := qm.Queue(o.Channel)
		if err != nil {
			return nil, false, newEvaluationError(r.proc.Name, node.Name, "%v", err)
		}
		enabled := true
		if o.Predicate != "" {
			enabled = truthy(args[1])
		}
		if !enabled {
			return receiveResult(o, ir.Zero(q.Channel().Type), false), false, nil
		}
		v, ok := q.Read()
		if err := q.Err(); err != nil {
			return nil, false, &RuntimeError{
				Code:    ErrCodeGenerator,
				Message: err.Error(),
				Proc:    r.proc.Name,
				Node:    node.Name,
				Err:     err,
			}
		}
		if ok {
			return receiveResult(o, v, true), false, nil
		}
		if o.NonBlocking {
			return receiveResult(o, ir.Zero(q.Channel().Type), false), false, nil
		}
		return nil, true, nil

	case ir.Send:
		q, err := qm.Queue(o.Channel)
		if err != nil {
			return nil, false, newEvaluationError(r.proc.Name, node.Name, "%v", err)
		}
		if o.Predicate != "" && !truthy(args[2]) {
			return ir.Token{}, false, nil
		}
		if err := q.Write(args[1]); err != nil {
			return nil, false, fmt.Errorf("proc %s: node %s: %w", r.proc.Name, node.Name, err)
		}
		return ir.Token{}, false, nil
	}
	return nil, false, newEvaluationError(r.proc.Name, node.Name, "operation %s has no channel", node.Op.Kind())
}

func receiveResult(o ir.Receive, data ir.Value, valid bool) ir.Value {
	if o.NonBlocking {
		return ir.NewTuple(ir.Token{}, data, ir.Bool(valid))
	}
	return ir.NewTuple(ir.Token{}, data)
}

func truthy(v ir.Value) bool {
	b, ok := v.(ir.Bits)
	return ok && !b.IsZero()
}

// snapshot returns the saved state keyed by element name.
func (r *procRunner) snapshot() map[string]ir.Value {
	out := make(map[string]ir.Value, len(r.state))
	for i, s := range r.proc.State {
		out[s.Name] = r.state[i]
	}
	return out
}

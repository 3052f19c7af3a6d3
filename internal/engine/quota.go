package engine

// tickBudget enforces the optional tick ceiling of one run-control call.
//
// A zero limit means no ceiling. The budget is checked before each round,
// so a call with limit n runs at most n rounds and fails when it would need
// round n+1.
type tickBudget struct {
	limit int64 // Maximum rounds for this call, 0 = unlimited
	used  int64 // Rounds run so far
}

func newTickBudget(limit int64) *tickBudget {
	return &tickBudget{limit: limit}
}

// Check reports *DeadlineExceededError when the next round would exceed
// the limit.
func (b *tickBudget) Check() error {
	if b.limit > 0 && b.used >= b.limit {
		return &DeadlineExceededError{Limit: b.limit}
	}
	return nil
}

// Spend records one round.
func (b *tickBudget) Spend() {
	b.used++
}

// Used returns the number of rounds run so far.
func (b *tickBudget) Used() int64 {
	return b.used
}

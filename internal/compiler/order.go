package compiler

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/procnet/internal/ir"
)

// DataflowCycleError reports nodes of a proc that can never be evaluated
// because they depend on each other.
type DataflowCycleError struct {
	Proc  string
	Nodes []string
}

func (e *DataflowCycleError) Error() string {
	return fmt.Sprintf("proc %s: dataflow cycle through nodes: %s", e.Proc, strings.Join(e.Nodes, ", "))
}

// NodeOrder returns the indices of p.Nodes in evaluation order: a
// topological order of the operand graph, ties broken by declaration order.
// Operands naming unknown nodes are ignored here and reported by
// ValidateNetwork.
func NodeOrder(p *ir.Proc) ([]int, error) {
	index := make(map[string]int, len(p.Nodes))
	for i, n := range p.Nodes {
		if _, dup := index[n.Name]; !dup {
			index[n.Name] = i
		}
	}

	indegree := make([]int, len(p.Nodes))
	users := make([][]int, len(p.Nodes))
	for i, n := range p.Nodes {
		for _, operand := range n.Op.Operands() {
			j, ok := index[operand]
			if !ok {
				continue
			}
			indegree[i]++
			users[j] = append(users[j], i)
		}
	}

	// ready is kept sorted so the lowest declaration index goes first.
	var ready []int
	for i := range p.Nodes {
		if indegree[i] == 0 {
			ready = append(ready, i)
		}
	}

	order := make([]int, 0, len(p.Nodes))
	for len(ready) > 0 {
		i := ready[0]
		ready = ready[1:]
		order = append(order, i)
		for _, u := range users[i] {
			indegree[u]--
			if indegree[u] == 0 {
				pos, _ := slices.BinarySearch(ready, u)
				ready = slices.Insert(ready, pos, u)
			}
		}
	}

	if len(order) != len(p.Nodes) {
		var stuck []string
		for i, n := range p.Nodes {
			if indegree[i] > 0 {
				stuck = append(stuck, n.Name)
			}
		}
		return nil, &DataflowCycleError{Proc: p.Name, Nodes: stuck}
	}
	return order, nil
}

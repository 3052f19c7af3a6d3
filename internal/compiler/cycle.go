package compiler

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/procnet/internal/ir"
)

// Cycle warning levels.
const (
	LevelWarning = "warning"
	LevelInfo    = "info"
)

// CycleWarning describes a feedback loop between procs.
//
// Feedback is legal and common (backedges, accumulators split across procs).
// It only deadlocks when no channel on the loop holds a value before the
// first tick, so cycles are reported, never rejected:
//   - Level "warning": no channel on the loop has initial values
//   - Level "info": the loop is primed by initial values
type CycleWarning struct {
	Path     []string `json:"path"`     // Proc path: ["a", "b", "a"]
	Channels []string `json:"channels"` // Channels carrying the loop, sorted
	Message  string   `json:"message"`
	Level    string   `json:"level"`
}

// procEdge is a dependency from a sending proc to a receiving proc.
type procEdge struct {
	to      string
	channel string
}

// procGraph maps a proc to the procs that receive what it sends.
type procGraph map[string][]procEdge

// AnalyzeCycles performs static cycle analysis on the channel graph.
//
// The algorithm:
//  1. Build a proc -> proc graph: an edge for every channel one proc sends on
//     and another (or the same) proc receives from
//  2. Use Tarjan's algorithm to find strongly connected components
//  3. Report each SCC with size > 1 or a self-loop
//
// Procs are visited in declaration order so results are deterministic.
// A network without feedback returns an empty list.
func AnalyzeCycles(n *ir.Network) []CycleWarning {
	graph, order := buildProcGraph(n)
	sccs := tarjanSCC(graph, order)

	warnings := []CycleWarning{}
	for _, scc := range sccs {
		if len(scc) > 1 || (len(scc) == 1 && hasSelfLoop(scc[0], graph)) {
			warnings = append(warnings, cycleSCCToWarning(n, scc, graph))
		}
	}
	return warnings
}

// buildProcGraph constructs the proc dependency graph and returns the procs
// in declaration order.
func buildProcGraph(n *ir.Network) (procGraph, []string) {
	graph := make(procGraph)
	order := make([]string, 0, len(n.Procs))

	receivers := make(map[string][]string)
	for _, p := range n.Procs {
		for _, node := range p.Nodes {
			if r, ok := node.Op.(ir.Receive); ok {
				receivers[r.Channel] = appendOnce(receivers[r.Channel], p.Name)
			}
		}
	}

	for _, p := range n.Procs {
		order = append(order, p.Name)
		if graph[p.Name] == nil {
			graph[p.Name] = []procEdge{}
		}
		seen := make(map[procEdge]bool)
		for _, node := range p.Nodes {
			s, ok := node.Op.(ir.Send)
			if !ok {
				continue
			}
			for _, to := range receivers[s.Channel] {
				e := procEdge{to: to, channel: s.Channel}
				if !seen[e] {
					seen[e] = true
					graph[p.Name] = append(graph[p.Name], e)
				}
			}
		}
	}
	return graph, order
}

// hasSelfLoop checks if a node has an edge to itself.
func hasSelfLoop(node string, graph procGraph) bool {
	for _, e := range graph[node] {
		if e.to == node {
			return true
		}
	}
	return false
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
//
// Returns a list of SCCs, where each SCC is a list of proc names.
// Single-node SCCs without self-loops are NOT cycles.
func tarjanSCC(graph procGraph, order []string) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		// Set the depth index for v
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		// Consider successors of v
		for _, e := range graph[v] {
			w := e.to
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		// If v is a root node, pop the stack and create an SCC
		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	for _, node := range order {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}

	return sccs
}

// cycleSCCToWarning converts an SCC to a CycleWarning.
func cycleSCCToWarning(n *ir.Network, scc []string, graph procGraph) CycleWarning {
	// Start the path at the earliest declared proc of the SCC.
	members := make(map[string]bool, len(scc))
	for _, p := range scc {
		members[p] = true
	}
	start := scc[0]
	for _, p := range n.Procs {
		if members[p.Name] {
			start = p.Name
			break
		}
	}

	var channels []string
	for _, p := range scc {
		for _, e := range graph[p] {
			if members[e.to] {
				channels = appendOnce(channels, e.channel)
			}
		}
	}
	slices.Sort(channels)

	var primed []string
	for _, name := range channels {
		if ch, ok := n.Channel(name); ok && len(ch.InitialValues) > 0 {
			primed = append(primed, name)
		}
	}

	var path []string
	if len(scc) == 1 {
		path = []string{start, start}
	} else {
		path = reconstructCyclePath(start, members, graph)
	}
	pathStr := strings.Join(path, " -> ")

	if len(primed) == 0 {
		return CycleWarning{
			Path:     path,
			Channels: channels,
			Message:  fmt.Sprintf("Feedback loop %s has no initial values on channels %s and may deadlock", pathStr, strings.Join(channels, ", ")),
			Level:    LevelWarning,
		}
	}
	return CycleWarning{
		Path:     path,
		Channels: channels,
		Message:  fmt.Sprintf("Feedback loop %s primed by initial values on %s", pathStr, strings.Join(primed, ", ")),
		Level:    LevelInfo,
	}
}

// reconstructCyclePath builds a cycle path through an SCC.
//
// Strategy: Start at the given node, follow edges to other SCC members,
// continue until we return to start node.
func reconstructCyclePath(start string, members map[string]bool, graph procGraph) []string {
	current := start
	path := []string{current}
	visited := make(map[string]bool)

	for {
		visited[current] = true

		var next string
		for _, e := range graph[current] {
			if members[e.to] && (!visited[e.to] || e.to == start) {
				next = e.to
				break
			}
		}

		if next == "" {
			break
		}

		path = append(path, next)

		if next == start {
			break
		}

		current = next
	}

	return path
}

package ir

import "fmt"

// ChannelOps is the direction capability of a channel, seen from the
// network. ReceiveOnly channels are network inputs, SendOnly channels are
// network outputs and SendReceive channels connect procs to each other.
type ChannelOps string

const (
	SendOnly    ChannelOps = "send_only"
	ReceiveOnly ChannelOps = "receive_only"
	SendReceive ChannelOps = "send_receive"
)

// CanSend reports whether procs may send on a channel with these ops.
func (o ChannelOps) CanSend() bool { return o == SendOnly || o == SendReceive }

// CanReceive reports whether procs may receive on a channel with these ops.
func (o ChannelOps) CanReceive() bool { return o == ReceiveOnly || o == SendReceive }

// Valid reports whether o is one of the declared constants.
func (o ChannelOps) Valid() bool {
	return o == SendOnly || o == ReceiveOnly || o == SendReceive
}

// FlowControl is the handshake discipline of a channel.
type FlowControl string

const (
	FlowControlNone       FlowControl = "none"
	FlowControlReadyValid FlowControl = "ready_valid"
)

// Valid reports whether f is one of the declared constants.
func (f FlowControl) Valid() bool {
	return f == FlowControlNone || f == FlowControlReadyValid
}

// Channel is an immutable channel declaration.
type Channel struct {
	Name          string
	Ops           ChannelOps
	FlowControl   FlowControl
	Type          Type
	Capacity      int     // 0 = unbounded
	InitialValues []Value // pre-populated into the queue before the first tick
}

// Bounded reports whether the channel declares a capacity.
func (c *Channel) Bounded() bool { return c.Capacity > 0 }

// Node is one named operation of a proc's dataflow graph.
type Node struct {
	Name string
	Op   Op
}

// StateElement is one element of a proc's state. Next names the node whose
// value becomes the element's value for the following tick.
type StateElement struct {
	Name string
	Type Type
	Init Value
	Next string
}

// Proc is a named computation with state and a dataflow graph.
//
// INVARIANTS (checked by compiler.ValidateNetwork):
//   - node names are unique within the proc
//   - every operand names a node of the same proc
//   - the graph is acyclic
//   - NextToken and every StateElement.Next name existing nodes
type Proc struct {
	Name      string
	Nodes     []Node
	State     []StateElement
	NextToken string
}

// Node returns the node with the given name.
func (p *Proc) Node(name string) (Node, bool) {
	for _, n := range p.Nodes {
		if n.Name == name {
			return n, true
		}
	}
	return Node{}, false
}

// Channels returns the names of channels referenced by the proc's send and
// receive nodes, in node order, without duplicates.
func (p *Proc) Channels() []string {
	var out []string
	seen := make(map[string]bool)
	for _, n := range p.Nodes {
		if ch, ok := ChannelOf(n.Op); ok && !seen[ch] {
			seen[ch] = true
			out = append(out, ch)
		}
	}
	return out
}

// Network is the full set of channels and procs.
// Topology is fixed after construction: the interpreter never adds or
// removes channels or procs.
type Network struct {
	Name     string
	Channels []*Channel
	Procs    []*Proc
}

// NewNetwork creates an empty network.
func NewNetwork(name string) *Network {
	return &Network{Name: name}
}

// AddChannel appends a channel declaration. Duplicate names are rejected.
func (n *Network) AddChannel(ch *Channel) (*Channel, error) {
	if _, ok := n.Channel(ch.Name); ok {
		return nil, fmt.Errorf("duplicate channel %q", ch.Name)
	}
	if ch.FlowControl == "" {
		ch.FlowControl = FlowControlNone
	}
	n.Channels = append(n.Channels, ch)
	return ch, nil
}

// MustAddChannel is like AddChannel but panics on error.
// Intended for tests and examples.
func (n *Network) MustAddChannel(ch *Channel) *Channel {
	c, err := n.AddChannel(ch)
	if err != nil {
		panic(err)
	}
	return c
}

// AddProc appends a proc. Duplicate names are rejected.
func (n *Network) AddProc(p *Proc) error {
	if _, ok := n.Proc(p.Name); ok {
		return fmt.Errorf("duplicate proc %q", p.Name)
	}
	n.Procs = append(n.Procs, p)
	return nil
}

// Channel returns the channel with the given name.
func (n *Network) Channel(name string) (*Channel, bool) {
	for _, c := range n.Channels {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}

// Proc returns the proc with the given name.
func (n *Network) Proc(name string) (*Proc, bool) {
	for _, p := range n.Procs {
		if p.Name == name {
			return p, true
		}
	}
	return nil, false
}

// Describe returns a JSON-friendly description of the network in
// declaration order. It is the input of NetworkHash and the output of
// the compile command.
func (n *Network) Describe() map[string]any {
	channels := make([]any, len(n.Channels))
	for i, c := range n.Channels {
		d := map[string]any{
			"name":         c.Name,
			"ops":          string(c.Ops),
			"flow_control": string(c.FlowControl),
			"type":         c.Type.String(),
			"capacity":     c.Capacity,
		}
		if len(c.InitialValues) > 0 {
			init := make([]any, len(c.InitialValues))
			for j, v := range c.InitialValues {
				init[j] = ToNative(v)
			}
			d["initial_values"] = init
		}
		channels[i] = d
	}

	procs := make([]any, len(n.Procs))
	for i, p := range n.Procs {
		nodes := make([]any, len(p.Nodes))
		for j, node := range p.Nodes {
			d := describeOp(node.Op)
			d["name"] = node.Name
			nodes[j] = d
		}
		state := make([]any, len(p.State))
		for j, s := range p.State {
			state[j] = map[string]any{
				"name": s.Name,
				"type": s.Type.String(),
				"init": ToNative(s.Init),
				"next": s.Next,
			}
		}
		procs[i] = map[string]any{
			"name":       p.Name,
			"nodes":      nodes,
			"state":      state,
			"next_token": p.NextToken,
		}
	}

	return map[string]any{
		"name":       n.Name,
		"ir_version": IRVersion,
		"channels":   channels,
		"procs":      procs,
	}
}

package testutil

import (
	"github.com/roach88/procnet/internal/ir"
)

// Canonical example networks shared by engine, harness and CLI tests.
// Every constructor returns a fresh network so tests never share state.

var (
	bits8  = ir.BitsType{Width: 8}
	bits32 = ir.BitsType{Width: 32}
)

func mustAddProc(n *ir.Network, p *ir.Proc) {
	if err := n.AddProc(p); err != nil {
		panic(err)
	}
}

// IotaNetwork is a single proc sending start, start+step, ... on the
// send_only channel "iota_out".
func IotaNetwork(start, step uint64) *ir.Network {
	n := ir.NewNetwork("iota")
	n.MustAddChannel(&ir.Channel{Name: "iota_out", Ops: ir.SendOnly, Type: bits32})
	mustAddProc(n, iotaProc("iota", "iota_out", start, step))
	return n
}

func iotaProc(name, out string, start, step uint64) *ir.Proc {
	pb := ir.NewProcBuilder(name)
	tok := pb.TokenParam("tok")
	st := pb.StateElement("st", ir.UBits(start, 32))
	snd := pb.Send(out, tok, st)
	next := pb.Add(st, pb.Literal(ir.UBits(step, 32)))
	return pb.MustBuild(snd, next)
}

// accumulatorProc receives from in, adds to its running sum and sends the
// new sum on out.
func accumulatorProc(name, in, out string) *ir.Proc {
	pb := ir.NewProcBuilder(name)
	tok := pb.TokenParam("tok")
	sum := pb.StateElement("sum", ir.UBits(0, 32))
	rcv := pb.Receive(in, tok)
	rcvTok := pb.TupleIndex(rcv, 0)
	data := pb.TupleIndex(rcv, 1)
	next := pb.Add(sum, data)
	snd := pb.Send(out, rcvTok, next)
	return pb.MustBuild(snd, next)
}

// IotaFeedingAccumulatorNetwork chains an iota proc (0, 1, 2, ...) into an
// accumulator. "accum_out" carries 0, 1, 3, 6, ...
func IotaFeedingAccumulatorNetwork() *ir.Network {
	n := ir.NewNetwork("iota_accum")
	n.MustAddChannel(&ir.Channel{Name: "iota_accum", Ops: ir.SendReceive, Type: bits32})
	n.MustAddChannel(&ir.Channel{Name: "accum_out", Ops: ir.SendOnly, Type: bits32})
	mustAddProc(n, iotaProc("iota", "iota_accum", 0, 1))
	mustAddProc(n, accumulatorProc("accum", "iota_accum", "accum_out"))
	return n
}

// InternalNetwork is IotaFeedingAccumulatorNetwork with every channel
// send_receive, so no value ever leaves the network.
func InternalNetwork() *ir.Network {
	n := ir.NewNetwork("internal")
	n.MustAddChannel(&ir.Channel{Name: "iota_accum", Ops: ir.SendReceive, Type: bits32})
	n.MustAddChannel(&ir.Channel{Name: "accum_out", Ops: ir.SendReceive, Type: bits32})
	mustAddProc(n, iotaProc("iota", "iota_accum", 0, 1))
	mustAddProc(n, accumulatorProc("accum", "iota_accum", "accum_out"))
	return n
}

// AccumulatorNetwork is a single accumulator reading the receive_only
// input "in" and writing running sums to "out".
func AccumulatorNetwork() *ir.Network {
	n := ir.NewNetwork("accumulator")
	n.MustAddChannel(&ir.Channel{Name: "in", Ops: ir.ReceiveOnly, Type: bits32})
	n.MustAddChannel(&ir.Channel{Name: "out", Ops: ir.SendOnly, Type: bits32})
	mustAddProc(n, accumulatorProc("accum", "in", "out"))
	return n
}

// DegenerateNetwork has one proc that only threads its token. It touches no
// channel and completes every tick.
func DegenerateNetwork() *ir.Network {
	n := ir.NewNetwork("degenerate")
	pb := ir.NewProcBuilder("degenerate")
	tok := pb.TokenParam("tok")
	mustAddProc(n, pb.MustBuild(tok))
	return n
}

// PassthroughNetwork has one proc that receives from "in" and forwards the
// value to "out" unchanged.
func PassthroughNetwork() *ir.Network {
	n := ir.NewNetwork("passthrough")
	n.MustAddChannel(&ir.Channel{Name: "in", Ops: ir.ReceiveOnly, Type: bits32})
	n.MustAddChannel(&ir.Channel{Name: "out", Ops: ir.SendOnly, Type: bits32})
	mustAddProc(n, passthroughProc("passthrough", "in", "out"))
	return n
}

func passthroughProc(name, in, out string) *ir.Proc {
	pb := ir.NewProcBuilder(name)
	tok := pb.TokenParam("tok")
	rcv := pb.Receive(in, tok)
	snd := pb.Send(out, pb.TupleIndex(rcv, 0), pb.TupleIndex(rcv, 1))
	return pb.MustBuild(snd)
}

// DeadlockedNetwork is a passthrough proc whose output feeds its own input
// through "my_channel", which starts empty. The proc can never receive.
func DeadlockedNetwork() *ir.Network {
	n := ir.NewNetwork("deadlocked")
	n.MustAddChannel(&ir.Channel{Name: "my_channel", Ops: ir.SendReceive, Type: bits32})
	mustAddProc(n, passthroughProc("feedback", "my_channel", "my_channel"))
	return n
}

// RelayNetwork has two passthrough procs feeding each other: "a" forwards
// "b2a" to "a2b" and "b" forwards "a2b" to "b2a". Both channels start
// empty, so neither proc can receive.
func RelayNetwork() *ir.Network {
	n := ir.NewNetwork("relay")
	n.MustAddChannel(&ir.Channel{Name: "a2b", Ops: ir.SendReceive, Type: bits32})
	n.MustAddChannel(&ir.Channel{Name: "b2a", Ops: ir.SendReceive, Type: bits32})
	mustAddProc(n, passthroughProc("a", "b2a", "a2b"))
	mustAddProc(n, passthroughProc("b", "a2b", "b2a"))
	return n
}

// RunLengthDecoderNetwork decodes (run_length, char) pairs from "in" into
// run_length copies of char on "out". Pairs with a zero run length produce
// nothing.
func RunLengthDecoderNetwork() *ir.Network {
	n := ir.NewNetwork("run_length_decoder")
	n.MustAddChannel(&ir.Channel{Name: "in", Ops: ir.ReceiveOnly, Type: ir.TupleType{Elems: []ir.Type{bits8, bits8}}})
	n.MustAddChannel(&ir.Channel{Name: "out", Ops: ir.SendOnly, Type: bits8})
	mustAddProc(n, runLengthDecoderProc("decoder", "in", "out"))
	return n
}

func runLengthDecoderProc(name, in, out string) *ir.Proc {
	pb := ir.NewProcBuilder(name)
	tok := pb.TokenParam("tok")
	// State is (last_char, num_remaining).
	st := pb.StateElement("last_char_remaining", ir.NewTuple(ir.UBits(0, 8), ir.UBits(0, 8)))
	lastChar := pb.TupleIndex(st, 0)
	numRemaining := pb.TupleIndex(st, 1)
	zero := pb.Literal(ir.UBits(0, 8))
	receiveNext := pb.Eq(numRemaining, zero)
	rcv := pb.ReceiveIf(in, tok, receiveNext)
	rcvData := pb.TupleIndex(rcv, 1)
	runLength := pb.Select(receiveNext, numRemaining, pb.TupleIndex(rcvData, 0))
	thisChar := pb.Select(receiveNext, lastChar, pb.TupleIndex(rcvData, 1))
	nonZero := pb.Ne(runLength, zero)
	snd := pb.SendIf(out, pb.TupleIndex(rcv, 0), nonZero, thisChar)
	decremented := pb.Sub(runLength, pb.Literal(ir.UBits(1, 8)))
	next := pb.Tuple(thisChar, pb.Select(nonZero, runLength, decremented))
	return pb.MustBuild(snd, next)
}

// RunLengthDecoderFilterNetwork feeds the run-length decoder into a filter
// that only forwards even characters to "out".
func RunLengthDecoderFilterNetwork() *ir.Network {
	n := ir.NewNetwork("run_length_decoder_filter")
	n.MustAddChannel(&ir.Channel{Name: "in", Ops: ir.ReceiveOnly, Type: ir.TupleType{Elems: []ir.Type{bits8, bits8}}})
	n.MustAddChannel(&ir.Channel{Name: "decoded", Ops: ir.SendReceive, Type: bits8})
	n.MustAddChannel(&ir.Channel{Name: "out", Ops: ir.SendOnly, Type: bits8})
	mustAddProc(n, runLengthDecoderProc("decoder", "in", "decoded"))

	pb := ir.NewProcBuilder("filter")
	tok := pb.TokenParam("tok")
	rcv := pb.Receive("decoded", tok)
	data := pb.TupleIndex(rcv, 1)
	even := pb.Not(pb.BitSlice(data, 0, 1))
	snd := pb.SendIf("out", pb.TupleIndex(rcv, 0), even, data)
	mustAddProc(n, pb.MustBuild(snd))
	return n
}

// RunLengthInputs is the input sequence used with the run-length decoder
// networks: it decodes to 42, 123, 123, 123, 20, 20.
func RunLengthInputs() []ir.Value {
	pair := func(n, c uint64) ir.Value { return ir.NewTuple(ir.UBits(n, 8), ir.UBits(c, 8)) }
	return []ir.Value{pair(1, 42), pair(3, 123), pair(0, 55), pair(0, 66), pair(2, 20)}
}

// BackedgeNetwork receives from "backedge", forwards the value to "out" and
// sends value+1 back on "backedge". The backedge starts with the given
// initial values.
func BackedgeNetwork(initial ...uint64) *ir.Network {
	init := make([]ir.Value, len(initial))
	for i, v := range initial {
		init[i] = ir.UBits(v, 32)
	}
	n := ir.NewNetwork("backedge")
	n.MustAddChannel(&ir.Channel{Name: "backedge", Ops: ir.SendReceive, Type: bits32, InitialValues: init})
	n.MustAddChannel(&ir.Channel{Name: "out", Ops: ir.SendOnly, Type: bits32})

	pb := ir.NewProcBuilder("backedge")
	tok := pb.TokenParam("tok")
	rcv := pb.Receive("backedge", tok)
	data := pb.TupleIndex(rcv, 1)
	outTok := pb.Send("out", pb.TupleIndex(rcv, 0), data)
	backTok := pb.Send("backedge", outTok, pb.Add(data, pb.Literal(ir.UBits(1, 32))))
	mustAddProc(n, pb.MustBuild(backTok))
	return n
}

// NonBlockingNetwork polls "in" without blocking and sends the received
// value, or 0xff when nothing was available, on "out".
func NonBlockingNetwork() *ir.Network {
	n := ir.NewNetwork("non_blocking")
	n.MustAddChannel(&ir.Channel{Name: "in", Ops: ir.ReceiveOnly, Type: bits8})
	n.MustAddChannel(&ir.Channel{Name: "out", Ops: ir.SendOnly, Type: bits8})

	pb := ir.NewProcBuilder("poller")
	tok := pb.TokenParam("tok")
	rcv := pb.ReceiveNonBlocking("in", tok)
	data := pb.TupleIndex(rcv, 1)
	valid := pb.TupleIndex(rcv, 2)
	value := pb.Select(valid, pb.Literal(ir.UBits(0xff, 8)), data)
	snd := pb.Send("out", pb.TupleIndex(rcv, 0), value)
	mustAddProc(n, pb.MustBuild(snd))
	return n
}

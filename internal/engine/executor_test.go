package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/procnet/internal/ir"
)

func noState(string) (ir.Value, bool) { return nil, false }

func TestEvalBinary(t *testing.T) {
	b8 := func(v uint64) ir.Value { return ir.UBits(v, 8) }

	tests := []struct {
		kind ir.BinaryKind
		lhs  ir.Value
		rhs  ir.Value
		want ir.Value
	}{
		{ir.BinAdd, b8(250), b8(10), b8(4)},
		{ir.BinSub, b8(0), b8(1), b8(255)},
		{ir.BinMul, b8(16), b8(17), b8(16)},
		{ir.BinAnd, b8(0xf0), b8(0x3c), b8(0x30)},
		{ir.BinOr, b8(0xf0), b8(0x0f), b8(0xff)},
		{ir.BinXor, b8(0xff), b8(0x0f), b8(0xf0)},
		{ir.BinShl, b8(1), b8(7), b8(0x80)},
		{ir.BinShl, b8(1), b8(8), b8(0)},
		{ir.BinShr, b8(0x80), ir.UBits(3, 4), b8(0x10)},
		{ir.BinEq, ir.NewTuple(b8(1)), ir.NewTuple(b8(1)), ir.Bool(true)},
		{ir.BinNe, b8(1), b8(2), ir.Bool(true)},
		{ir.BinUlt, b8(1), b8(2), ir.Bool(true)},
		{ir.BinUle, b8(2), b8(2), ir.Bool(true)},
		{ir.BinUgt, b8(1), b8(2), ir.Bool(false)},
		{ir.BinUge, b8(3), b8(2), ir.Bool(true)},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			got, err := evalBinary(tt.kind, tt.lhs, tt.rhs)
			require.NoError(t, err)
			assert.True(t, ir.Equal(tt.want, got), "got %s, want %s", got, tt.want)
		})
	}
}

func TestEvalPure(t *testing.T) {
	tuple := ir.NewTuple(ir.UBits(1, 8), ir.UBits(2, 8))

	tests := []struct {
		name string
		op   ir.Op
		args []ir.Value
		want ir.Value
	}{
		{"literal", ir.Literal{Value: ir.UBits(7, 3)}, nil, ir.UBits(7, 3)},
		{"token", ir.TokenParam{}, nil, ir.Token{}},
		{"after_all", ir.AfterAll{Tokens: []string{"a", "b"}}, []ir.Value{ir.Token{}, ir.Token{}}, ir.Token{}},
		{"tuple", ir.MakeTuple{Elems: []string{"a", "b"}}, []ir.Value{ir.UBits(1, 8), ir.UBits(2, 8)}, tuple},
		{"tuple_index", ir.TupleIndex{Operand: "t", Index: 1}, []ir.Value{tuple}, ir.UBits(2, 8)},
		{"not", ir.Unary{Op: ir.UnNot, Operand: "x"}, []ir.Value{ir.UBits(0b1010, 4)}, ir.UBits(0b0101, 4)},
		{"neg", ir.Unary{Op: ir.UnNeg, Operand: "x"}, []ir.Value{ir.UBits(1, 8)}, ir.UBits(255, 8)},
		{
			"select if false",
			ir.Select{Selector: "s", Cases: []string{"a", "b"}},
			[]ir.Value{ir.Bool(false), ir.UBits(10, 8), ir.UBits(20, 8)},
			ir.UBits(10, 8),
		},
		{
			"select default",
			ir.Select{Selector: "s", Cases: []string{"a"}, Default: "d"},
			[]ir.Value{ir.UBits(3, 2), ir.UBits(10, 8), ir.UBits(99, 8)},
			ir.UBits(99, 8),
		},
		{"bit_slice", ir.BitSlice{Operand: "x", Start: 4, Width: 4}, []ir.Value{ir.UBits(0xab, 8)}, ir.UBits(0xa, 4)},
		{"identity", ir.Identity{Operand: "x"}, []ir.Value{tuple}, tuple},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := evalPure(tt.op, tt.args, noState)
			require.NoError(t, err)
			assert.True(t, ir.Equal(tt.want, got), "got %s, want %s", got, tt.want)
		})
	}
}

func TestEvalPure_Errors(t *testing.T) {
	_, err := evalPure(ir.StateRead{Element: "missing"}, nil, noState)
	assert.ErrorContains(t, err, "unknown state element")

	_, err = evalPure(ir.Select{Selector: "s", Cases: []string{"a"}}, []ir.Value{ir.UBits(2, 2), ir.UBits(1, 8)}, noState)
	assert.ErrorContains(t, err, "no default")

	_, err = evalPure(ir.Receive{Channel: "c", Token: "t"}, nil, noState)
	assert.ErrorContains(t, err, "side effects")
}

func TestProcRunner_RetryReplaysCommittedReceive(t *testing.T) {
	n := ir.NewNetwork("two_receives")
	n.MustAddChannel(&ir.Channel{Name: "a", Ops: ir.ReceiveOnly, Type: ir.BitsType{Width: 32}})
	n.MustAddChannel(&ir.Channel{Name: "b", Ops: ir.ReceiveOnly, Type: ir.BitsType{Width: 32}})
	n.MustAddChannel(&ir.Channel{Name: "out", Ops: ir.SendOnly, Type: ir.BitsType{Width: 32}})

	pb := ir.NewProcBuilder("adder")
	tok := pb.TokenParam("tok")
	ra := pb.Receive("a", tok)
	rb := pb.Receive("b", pb.TupleIndex(ra, 0))
	sum := pb.Add(pb.TupleIndex(ra, 1), pb.TupleIndex(rb, 1))
	snd := pb.Send("out", pb.TupleIndex(rb, 0), sum)
	p := pb.MustBuild(snd)
	require.NoError(t, n.AddProc(p))

	qm := NewQueueManager(n)
	r, err := newProcRunner(p)
	require.NoError(t, err)

	require.NoError(t, qm.MustQueue("a").Write(u32(40)))
	res, err := r.step(qm)
	require.NoError(t, err)
	assert.False(t, res.completed)
	assert.True(t, res.progress)
	assert.Equal(t, "b", res.blockedOn)
	assert.True(t, qm.MustQueue("a").IsEmpty(), "receive on a committed")

	res, err = r.step(qm)
	require.NoError(t, err)
	assert.False(t, res.progress, "no new node reached")

	require.NoError(t, qm.MustQueue("a").Write(u32(1000)))
	require.NoError(t, qm.MustQueue("b").Write(u32(2)))
	res, err = r.step(qm)
	require.NoError(t, err)
	assert.True(t, res.completed)

	assert.Equal(t, u32s(42), qm.MustQueue("out").Values(), "committed receive value reused")
	assert.Equal(t, 1, qm.MustQueue("a").Size(), "a is not read twice in one tick")
	assert.Equal(t, int64(1), r.ticks)
}

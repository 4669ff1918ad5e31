package cil_test

import (
	"testing"

	"sharpcover/internal/cil"
)

// TestInsertBefore tests that splicing keeps order and Prev links intact.
func TestInsertBefore(t *testing.T) {
	a := cil.NewInstr(cil.OpNop)
	b := cil.NewInstr(cil.OpDup)
	c := cil.NewInstr(cil.OpRet)
	body := &cil.Body{}
	body.Append(a, b, c)

	p1 := cil.NewInstrToken(cil.OpLdstr, "prefix")
	p2 := cil.NewInstrI4(cil.OpLdcI4, 0)
	if err := body.InsertBefore(b, p1, p2); err != nil {
		t.Fatalf("InsertBefore: %v", err)
	}

	want := []*cil.Instruction{a, p1, p2, b, c}
	if len(body.Instrs) != len(want) {
		t.Fatalf("got %d instructions, want %d", len(body.Instrs), len(want))
	}
	for i, ins := range want {
		if body.Instrs[i] != ins {
			t.Errorf("instruction %d: got %s, want %s", i, body.Instrs[i], ins)
		}
	}

	if p1.Prev != a {
		t.Errorf("p1.Prev = %v, want a", p1.Prev)
	}
	if p2.Prev != p1 {
		t.Errorf("p2.Prev = %v, want p1", p2.Prev)
	}
	if b.Prev != p2 {
		t.Errorf("b.Prev = %v, want p2", b.Prev)
	}
	if c.Prev != b {
		t.Errorf("c.Prev = %v, want b", c.Prev)
	}
}

func TestInsertBeforeUnknownInstruction(t *testing.T) {
	body := &cil.Body{}
	body.Append(cil.NewInstr(cil.OpRet))

	stray := cil.NewInstr(cil.OpNop)
	err := body.InsertBefore(stray, cil.NewInstr(cil.OpNop))
	if err == nil {
		t.Fatal("expected an error inserting before a foreign instruction")
	}
}

// TestComputeOffsets tests encoded sizes across operand shapes.
func TestComputeOffsets(t *testing.T) {
	target := cil.NewInstr(cil.OpRet)
	instrs := []*cil.Instruction{
		cil.NewInstr(cil.OpNop),                    // 1 byte at 0
		cil.NewInstrI4(cil.OpLdcI4, 1000),          // 5 bytes at 1
		cil.NewInstrI4(cil.OpLdcI4S, 7),            // 2 bytes at 6
		cil.NewInstrToken(cil.OpCall, "T::M()"),    // 5 bytes at 8
		cil.NewInstrTarget(cil.OpBr, target),       // 5 bytes at 13
		cil.NewInstrTarget(cil.OpBrS, target),      // 2 bytes at 18
		cil.NewInstrSwitch(target, target, target), // 1+4+12 bytes at 20
		cil.NewInstr(cil.OpCeq),                    // 2 bytes at 37
		target,                                     // 1 byte at 39
	}
	body := &cil.Body{}
	body.Append(instrs...)
	body.ComputeOffsets()

	wantOffsets := []int32{0, 1, 6, 8, 13, 18, 20, 37, 39}
	for i, want := range wantOffsets {
		if got := instrs[i].Offset; got != want {
			t.Errorf("instruction %d (%s): offset %d, want %d", i, instrs[i], got, want)
		}
	}
}

// TestSnapshot tests that edits do not disturb an earlier snapshot.
func TestSnapshot(t *testing.T) {
	a := cil.NewInstr(cil.OpNop)
	b := cil.NewInstr(cil.OpRet)
	body := &cil.Body{}
	body.Append(a, b)

	snap := body.Snapshot()
	if err := body.InsertBefore(b, cil.NewInstr(cil.OpDup)); err != nil {
		t.Fatalf("InsertBefore: %v", err)
	}

	if len(snap) != 2 || snap[0] != a || snap[1] != b {
		t.Errorf("snapshot changed after edit: %v", snap)
	}
	if len(body.Instrs) != 3 {
		t.Errorf("body has %d instructions, want 3", len(body.Instrs))
	}
}

package cil_test

import (
	"testing"

	"sharpcover/internal/cil"
)

// TestSimplifyMacros tests that every macro form expands to its long form.
func TestSimplifyMacros(t *testing.T) {
	ret := cil.NewInstr(cil.OpRet)
	br := cil.NewInstrTarget(cil.OpBrS, ret)
	ldc := cil.NewInstrI4(cil.OpLdcI4S, 42)
	body := &cil.Body{}
	body.Append(br, ldc, ret)

	cil.SimplifyMacros(body)

	if br.Op != cil.OpBr {
		t.Errorf("br.s expanded to %s, want br", br.Op.Name())
	}
	if ldc.Op != cil.OpLdcI4 {
		t.Errorf("ldc.i4.s expanded to %s, want ldc.i4", ldc.Op.Name())
	}
	if br.Operand.Target != ret {
		t.Errorf("expansion changed the branch target")
	}
	// br(5) + ldc.i4(5) + ret(1)
	if ret.Offset != 10 {
		t.Errorf("ret at offset %d after simplify, want 10", ret.Offset)
	}
}

// TestOptimizeMacros tests that a near branch compacts and a far one stays
// long.
func TestOptimizeMacros(t *testing.T) {
	near := cil.NewInstr(cil.OpRet)
	nearBr := cil.NewInstrTarget(cil.OpBr, near)

	body := &cil.Body{}
	body.Append(nearBr, cil.NewInstr(cil.OpNop), near)
	cil.OptimizeMacros(body)

	if nearBr.Op != cil.OpBrS {
		t.Errorf("near branch is %s, want br.s", nearBr.Op.Name())
	}

	far := cil.NewInstr(cil.OpRet)
	farBr := cil.NewInstrTarget(cil.OpBr, far)
	body = &cil.Body{}
	body.Append(farBr)
	// 40 ldc.i4 instructions are 200 bytes, far beyond a one-byte
	// displacement even after every other macro compacts.
	for i := 0; i < 40; i++ {
		body.Append(cil.NewInstrI4(cil.OpLdcI4, 1000))
	}
	body.Append(far)
	cil.OptimizeMacros(body)

	if farBr.Op != cil.OpBr {
		t.Errorf("far branch compacted to %s, want br", farBr.Op.Name())
	}
}

// TestOptimizeAfterSimplifyRoundTrip tests that simplify/optimize is
// stable when nothing in between changes the body.
func TestOptimizeAfterSimplifyRoundTrip(t *testing.T) {
	ret := cil.NewInstr(cil.OpRet)
	br := cil.NewInstrTarget(cil.OpBrS, ret)
	ldc := cil.NewInstrI4(cil.OpLdcI4S, -5)
	body := &cil.Body{}
	body.Append(br, ldc, ret)

	cil.SimplifyMacros(body)
	cil.OptimizeMacros(body)

	if br.Op != cil.OpBrS {
		t.Errorf("branch ended as %s, want br.s", br.Op.Name())
	}
	if ldc.Op != cil.OpLdcI4S {
		t.Errorf("constant ended as %s, want ldc.i4.s", ldc.Op.Name())
	}
	if ret.Offset != 4 {
		t.Errorf("ret at offset %d, want 4", ret.Offset)
	}
}

package cil

// SimplifyMacros rewrites every macro (short-form) instruction to its long
// form and recomputes offsets. Rewriting passes require this normalization
// first so that insertions can never overflow a one-byte displacement
// mid-edit.
func SimplifyMacros(b *Body) {
	for _, ins := range b.Instrs {
		if long, ok := shortToLong[ins.Op]; ok {
			ins.Op = long
		}
	}
	b.ComputeOffsets()
}

// OptimizeMacros re-compacts long-form instructions back to their macro
// form wherever the operand fits, then recomputes offsets. Compaction only
// shrinks the body, so displacements decrease monotonically; the loop runs
// until no instruction changes form.
func OptimizeMacros(b *Body) {
	for {
		b.ComputeOffsets()
		changed := false
		for _, ins := range b.Instrs {
			short, ok := longToShort[ins.Op]
			if !ok {
				continue
			}
			switch ins.Operand.Kind {
			case OperandTarget:
				if fitsShortBranch(ins, short) {
					ins.Op = short
					changed = true
				}
			case OperandInt32:
				if v := ins.Operand.Int32; v >= -128 && v <= 127 {
					ins.Op = short
					changed = true
				}
			}
		}
		if !changed {
			break
		}
	}
	b.ComputeOffsets()
}

func fitsShortBranch(ins *Instruction, short Opcode) bool {
	// Displacement is measured from the end of the short encoding at the
	// instruction's current position.
	end := ins.Offset + short.info().size + 1
	disp := ins.Operand.Target.Offset - end
	return disp >= -128 && disp <= 127
}

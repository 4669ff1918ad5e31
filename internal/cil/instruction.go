// Package cil models compiled method bodies as editable instruction graphs.
//
// An instruction's identity is its pointer; offsets are derived from opcode
// and operand sizes and recomputed after every edit. Branch operands and
// exception handler boundaries hold instruction references, never offsets,
// so that edits cannot silently invalidate them.
package cil

import (
	"fmt"
	"strings"
)

// OperandKind tags the variant stored in an Operand.
type OperandKind uint8

const (
	// OperandNone marks an instruction without an operand.
	OperandNone OperandKind = iota
	// OperandInt32 holds a 32-bit (or smaller) integer constant.
	OperandInt32
	// OperandInt64 holds a 64-bit integer constant.
	OperandInt64
	// OperandFloat64 holds a floating point constant.
	OperandFloat64
	// OperandToken holds a metadata token rendered as text (string
	// literal, member reference, type reference).
	OperandToken
	// OperandTarget holds a single branch target.
	OperandTarget
	// OperandTargets holds a multi-way dispatch table.
	OperandTargets
)

// Operand is a tagged variant over the operand shapes an instruction can
// carry. Only the field selected by Kind is meaningful.
type Operand struct {
	Kind    OperandKind
	Int32   int32
	Int64   int64
	Float64 float64
	Token   string
	Target  *Instruction
	Targets []*Instruction
}

// SeqPoint locates the source statement an instruction was compiled from.
type SeqPoint struct {
	File string
	Line int32
}

// Instruction is a single bytecode instruction inside a Body.
type Instruction struct {
	Op      Opcode
	Operand Operand
	// Offset is the byte position within the method body. It is derived
	// state, valid only until the next edit.
	Offset int32
	// Seq is the originating source location, nil when the compiler
	// emitted no sequence point for this instruction.
	Seq *SeqPoint
	// Prev is the instruction immediately preceding this one in the
	// body, nil for the first instruction.
	Prev *Instruction
}

// NewInstr builds an operand-less instruction.
func NewInstr(op Opcode) *Instruction {
	return &Instruction{Op: op}
}

// NewInstrI4 builds an instruction with an integer operand.
func NewInstrI4(op Opcode, v int32) *Instruction {
	return &Instruction{Op: op, Operand: Operand{Kind: OperandInt32, Int32: v}}
}

// NewInstrToken builds an instruction with a token operand.
func NewInstrToken(op Opcode, token string) *Instruction {
	return &Instruction{Op: op, Operand: Operand{Kind: OperandToken, Token: token}}
}

// NewInstrTarget builds a branch instruction.
func NewInstrTarget(op Opcode, target *Instruction) *Instruction {
	return &Instruction{Op: op, Operand: Operand{Kind: OperandTarget, Target: target}}
}

// NewInstrSwitch builds a multi-way dispatch instruction.
func NewInstrSwitch(targets ...*Instruction) *Instruction {
	return &Instruction{Op: OpSwitch, Operand: Operand{Kind: OperandTargets, Targets: targets}}
}

// String renders the instruction as mnemonic plus operand, the form used
// in manifests and diagnostics.
func (ins *Instruction) String() string {
	name := ins.Op.Name()
	switch ins.Operand.Kind {
	case OperandNone:
		return name
	case OperandInt32:
		return fmt.Sprintf("%s %d", name, ins.Operand.Int32)
	case OperandInt64:
		return fmt.Sprintf("%s %d", name, ins.Operand.Int64)
	case OperandFloat64:
		return fmt.Sprintf("%s %g", name, ins.Operand.Float64)
	case OperandToken:
		if ins.Op == OpLdstr {
			return fmt.Sprintf("%s %q", name, ins.Operand.Token)
		}
		return fmt.Sprintf("%s %s", name, ins.Operand.Token)
	case OperandTarget:
		return fmt.Sprintf("%s IL_%04x", name, ins.Operand.Target.Offset)
	case OperandTargets:
		var b strings.Builder
		b.WriteString(name)
		b.WriteString(" [")
		for i, t := range ins.Operand.Targets {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "IL_%04x", t.Offset)
		}
		b.WriteString("]")
		return b.String()
	}
	return name
}

// HandlerKind distinguishes exception handler range kinds.
type HandlerKind uint8

const (
	// HandlerCatch is a typed catch clause.
	HandlerCatch HandlerKind = iota
	// HandlerFilter is a filtered catch clause.
	HandlerFilter
	// HandlerFinally runs on every exit from the try range.
	HandlerFinally
	// HandlerFault runs only on exceptional exit.
	HandlerFault
)

// Handler is an exception handler range. All boundary references must
// point at live instructions of the owning body; FilterStart is set only
// for HandlerFilter.
type Handler struct {
	Kind         HandlerKind
	CatchType    string
	FilterStart  *Instruction
	TryStart     *Instruction
	TryEnd       *Instruction
	HandlerStart *Instruction
	HandlerEnd   *Instruction
}

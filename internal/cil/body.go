package cil

import (
	"errors"
	"fmt"

	"fortio.org/safecast"
)

// ErrNotInBody is returned when an edit names an instruction that does not
// belong to the body.
var ErrNotInBody = errors.New("instruction not in body")

// Body is the executable part of a method: an ordered instruction
// sequence plus its exception handler ranges.
type Body struct {
	MaxStack int32
	Instrs   []*Instruction
	Handlers []*Handler
}

// Append adds instructions at the end of the body, maintaining Prev links.
func (b *Body) Append(instrs ...*Instruction) {
	for _, ins := range instrs {
		if n := len(b.Instrs); n > 0 {
			ins.Prev = b.Instrs[n-1]
		} else {
			ins.Prev = nil
		}
		b.Instrs = append(b.Instrs, ins)
	}
}

// InsertBefore splices instructions immediately before mark, maintaining
// Prev links. Mark is located by identity, never by offset.
func (b *Body) InsertBefore(mark *Instruction, instrs ...*Instruction) error {
	if len(instrs) == 0 {
		return nil
	}
	at := b.indexOf(mark)
	if at < 0 {
		return fmt.Errorf("insert before %s: %w", mark, ErrNotInBody)
	}
	instrs[0].Prev = mark.Prev
	for i := 1; i < len(instrs); i++ {
		instrs[i].Prev = instrs[i-1]
	}
	mark.Prev = instrs[len(instrs)-1]

	b.Instrs = append(b.Instrs, instrs...) // grow
	copy(b.Instrs[at+len(instrs):], b.Instrs[at:])
	copy(b.Instrs[at:], instrs)
	return nil
}

func (b *Body) indexOf(ins *Instruction) int {
	for i, cur := range b.Instrs {
		if cur == ins {
			return i
		}
	}
	return -1
}

// Contains reports whether ins currently belongs to the body.
func (b *Body) Contains(ins *Instruction) bool {
	return b.indexOf(ins) >= 0
}

// Snapshot returns a copy of the current instruction order. Edits to the
// body do not disturb the returned slice, which makes it safe to traverse
// while inserting.
func (b *Body) Snapshot() []*Instruction {
	out := make([]*Instruction, len(b.Instrs))
	copy(out, b.Instrs)
	return out
}

// ComputeOffsets reassigns every instruction's byte offset from the
// current order and encoding sizes.
func (b *Body) ComputeOffsets() {
	var offset int32 = 0
	for _, ins := range b.Instrs {
		ins.Offset = offset
		offset += encodedSize(ins)
	}
}

func encodedSize(ins *Instruction) int32 {
	info := ins.Op.info()
	size := info.size
	switch info.shape {
	case shapeNone:
	case shapeInt8, shapeTargetS:
		size++
	case shapeInt32, shapeToken, shapeTarget:
		size += 4
	case shapeInt64, shapeFloat64:
		size += 8
	case shapeSwitch:
		n, err := safecast.Conv[int32](len(ins.Operand.Targets))
		if err != nil {
			// A dispatch table this large cannot be encoded at all;
			// offsets past it are meaningless either way.
			n = 0
		}
		size += 4 + 4*n
	}
	return size
}

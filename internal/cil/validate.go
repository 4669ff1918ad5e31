package cil

import (
	"errors"
	"fmt"
)

// CheckReferences verifies that every branch target, dispatch table entry
// and exception handler boundary points at an instruction that currently
// belongs to the body. A violation means an edit relocated an instruction
// without retargeting its references; that is a defect in the editing
// pass, not a recoverable input error.
func CheckReferences(b *Body) error {
	live := make(map[*Instruction]struct{}, len(b.Instrs))
	for _, ins := range b.Instrs {
		live[ins] = struct{}{}
	}

	var errs []error
	for _, ins := range b.Instrs {
		switch ins.Operand.Kind {
		case OperandTarget:
			if err := checkRef(live, ins.Operand.Target, "branch target of %s at IL_%04x", ins.Op.Name(), ins.Offset); err != nil {
				errs = append(errs, err)
			}
		case OperandTargets:
			for i, t := range ins.Operand.Targets {
				if err := checkRef(live, t, "dispatch entry %d at IL_%04x", i, ins.Offset); err != nil {
					errs = append(errs, err)
				}
			}
		}
	}
	for i, h := range b.Handlers {
		boundaries := []struct {
			name string
			ref  *Instruction
		}{
			{"filter start", h.FilterStart},
			{"try start", h.TryStart},
			{"try end", h.TryEnd},
			{"handler start", h.HandlerStart},
			{"handler end", h.HandlerEnd},
		}
		for _, bd := range boundaries {
			if bd.ref == nil {
				continue
			}
			if err := checkRef(live, bd.ref, "handler %d %s", i, bd.name); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func checkRef(live map[*Instruction]struct{}, ref *Instruction, format string, args ...any) error {
	if ref == nil {
		return fmt.Errorf(format+": nil reference", args...)
	}
	if _, ok := live[ref]; !ok {
		return fmt.Errorf(format+": dangling reference to %s", append(args, ref)...)
	}
	return nil
}

// Package cover implements the coverage instrumentation pass: deciding
// which instructions are observable, injecting probe sequences, and
// keeping every structural reference in the method body valid while the
// instruction graph is edited underneath it.
package cover

import (
	"errors"
	"fmt"

	"fortio.org/safecast"

	"sharpcover/internal/cil"
)

// DefaultEntryPoint is the member token the injected call instruction
// names: the runtime hit-recording entry point.
const DefaultEntryPoint = "SharpCover.Recorder::Record(string,int32)"

// ErrRewriteDefect marks a broken rewrite invariant. It can only be
// produced by a bug in the rewriter itself, never by user input.
var ErrRewriteDefect = errors.New("rewrite invariant violated")

// Rewriter inserts probe sequences into method bodies. One Rewriter
// serves a whole instrumentation pass: the probe counter it owns is the
// global, strictly increasing probe index space, and the manifest it
// writes fixes that index space permanently.
type Rewriter struct {
	filter     *Filter
	manifest   *ManifestWriter
	src        *sourceCache
	hitPrefix  string
	entryPoint string
	// next is the index the next injected probe will take.
	next int
}

// NewRewriter wires a rewriter to its filter and manifest sink.
func NewRewriter(filter *Filter, manifest *ManifestWriter, hitPrefix string) *Rewriter {
	return &Rewriter{
		filter:     filter,
		manifest:   manifest,
		src:        newSourceCache(),
		hitPrefix:  hitPrefix,
		entryPoint: DefaultEntryPoint,
	}
}

// SetEntryPoint overrides the recording entry point token.
func (r *Rewriter) SetEntryPoint(token string) {
	r.entryPoint = token
}

// Count returns the number of probes injected so far.
func (r *Rewriter) Count() int {
	return r.next
}

// InstrumentMethod injects a probe before every eligible instruction of
// the method and returns the number of probes added. The method body is
// macro-simplified before editing and re-optimized after, so offset
// arithmetic inside the walk is exact.
func (r *Rewriter) InstrumentMethod(assembly string, m *cil.MethodDef) (int, error) {
	body := m.Body
	cil.SimplifyMacros(body)

	added := 0
	lastLine := ""
	var lastSeq *cil.SeqPoint

	// The live list is edited during the walk; traverse a snapshot of
	// the original instructions in offset order instead.
	for _, ins := range body.Snapshot() {
		if ins.Seq != nil {
			lastSeq = ins.Seq
			lastLine = r.src.line(ins.Seq)
		}
		if !r.filter.InstructionEligible(m, ins, lastLine) {
			continue
		}

		row := Row{
			Assembly: assembly,
			Method:   m.FullName,
			File:     UnknownFile,
			Line:     UnknownLine,
			Offset:   ins.Offset,
			Text:     ins.String(),
		}
		if lastSeq != nil {
			row.File = lastSeq.File
			row.Line = lastSeq.Line
		}
		if err := r.manifest.Write(row); err != nil {
			return added, err
		}

		index, err := safecast.Conv[int32](r.next)
		if err != nil {
			return added, fmt.Errorf("probe index %d: %w", r.next, err)
		}
		probe := []*cil.Instruction{
			cil.NewInstrToken(cil.OpLdstr, r.hitPrefix),
			cil.NewInstrI4(cil.OpLdcI4, index),
			cil.NewInstrToken(cil.OpCall, r.entryPoint),
		}
		if err := body.InsertBefore(ins, probe...); err != nil {
			return added, fmt.Errorf("%w: %s: %v", ErrRewriteDefect, m.FullName, err)
		}
		// Everything that jumped to the original instruction must now
		// reach the probe first. Repair runs to completion before the
		// next instruction is examined so later scans see patched state.
		retarget(body, ins, probe[0])

		r.next++
		added++
	}

	cil.OptimizeMacros(body)
	if err := cil.CheckReferences(body); err != nil {
		return added, fmt.Errorf("%w: %s: %v", ErrRewriteDefect, m.FullName, err)
	}
	return added, nil
}

// retarget replaces every reference to old — branch operands, dispatch
// tables, exception handler boundaries — with a reference to new.
func retarget(body *cil.Body, old, new *cil.Instruction) {
	for _, ins := range body.Instrs {
		switch ins.Operand.Kind {
		case cil.OperandTarget:
			if ins.Operand.Target == old {
				ins.Operand.Target = new
			}
		case cil.OperandTargets:
			for i, t := range ins.Operand.Targets {
				if t == old {
					ins.Operand.Targets[i] = new
				}
			}
		}
	}
	for _, h := range body.Handlers {
		if h.FilterStart == old {
			h.FilterStart = new
		}
		if h.TryStart == old {
			h.TryStart = new
		}
		if h.TryEnd == old {
			h.TryEnd = new
		}
		if h.HandlerStart == old {
			h.HandlerStart = new
		}
		if h.HandlerEnd == old {
			h.HandlerEnd = new
		}
	}
}

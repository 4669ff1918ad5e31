package cover

import (
	"regexp"
	"strings"

	"sharpcover/internal/cil"
	"sharpcover/internal/config"
)

// ExcludeAttribute marks a type or method as opted out of coverage. It
// wins over every include pattern.
const ExcludeAttribute = "ExcludeFromCoverageAttribute"

// moduleTypeName is the synthetic module-level pseudo-type emitted by
// compilers; it never represents user code.
const moduleTypeName = "<Module>"

// Filter decides which types, methods and instructions may receive
// probes. It is immutable for the duration of one instrumentation pass.
type Filter struct {
	rules *config.Config
}

// NewFilter builds a filter over a validated configuration.
func NewFilter(rules *config.Config) *Filter {
	return &Filter{rules: rules}
}

// TypeEligible reports whether any method of the type may be
// instrumented.
func (f *Filter) TypeEligible(t *cil.TypeDef) bool {
	if t.FullName == moduleTypeName {
		return false
	}
	if t.HasAttribute(ExcludeAttribute) {
		return false
	}
	return matches(f.rules.TypeInclude, f.rules.TypeExclude, t.FullName)
}

// MethodEligible reports whether the method may be instrumented. Methods
// without a body are never passed here; they are skipped outright.
func (f *Filter) MethodEligible(m *cil.MethodDef) bool {
	if m.HasAttribute(ExcludeAttribute) {
		return false
	}
	return matches(f.rules.MethodInclude, f.rules.MethodExclude, m.FullName)
}

// InstructionEligible reports whether a probe may be inserted before ins.
// lastLine is the most recently seen originating source line text while
// scanning the method in offset order; instructions without their own
// sequence point inherit it.
func (f *Filter) InstructionEligible(m *cil.MethodDef, ins *cil.Instruction, lastLine string) bool {
	// A prefix opcode and its successor are one unit; splitting them
	// produces invalid code.
	if ins.Prev != nil && ins.Prev.Op.IsPrefix() {
		return false
	}
	excl, ok := f.rules.ExclusionFor(m.FullName)
	if !ok {
		return true
	}
	if _, excluded := excl.Offsets[ins.Offset]; excluded {
		return false
	}
	if _, excluded := excl.Lines[strings.TrimSpace(lastLine)]; excluded {
		return false
	}
	return true
}

// matches applies the two-pattern policy: the name must match include (a
// nil include matches everything) and must not match exclude (a nil
// exclude matches nothing).
func matches(include, exclude *regexp.Regexp, name string) bool {
	if include != nil && !include.MatchString(name) {
		return false
	}
	if exclude != nil && exclude.MatchString(name) {
		return false
	}
	return true
}

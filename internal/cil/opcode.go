package cil

// Opcode identifies a bytecode instruction kind.
type Opcode uint16

const (
	OpNop Opcode = iota
	OpBreak
	OpDup
	OpPop
	OpRet
	OpAdd
	OpSub
	OpMul
	OpCeq
	OpClt
	OpLdnull
	OpThrow
	OpRethrow
	OpEndFinally
	OpEndFilter
	OpLdcI4
	OpLdcI4S
	OpLdcI8
	OpLdcR8
	OpLdstr
	OpCall
	OpCallvirt
	OpNewobj
	OpIsinst
	OpBr
	OpBrS
	OpBrtrue
	OpBrtrueS
	OpBrfalse
	OpBrfalseS
	OpBeq
	OpBeqS
	OpBlt
	OpBltS
	OpLeave
	OpLeaveS
	OpSwitch
	OpTail
	OpVolatile
	OpUnaligned
	OpConstrained
)

// operandShape describes the encoded operand layout of an opcode.
type operandShape uint8

const (
	shapeNone operandShape = iota
	shapeInt8
	shapeInt32
	shapeInt64
	shapeFloat64
	shapeToken   // 4-byte metadata token, rendered as text
	shapeTarget  // 4-byte branch displacement
	shapeTargetS // 1-byte branch displacement
	shapeSwitch  // 4-byte count followed by 4 bytes per target
)

type opcodeInfo struct {
	name   string
	size   int32 // encoded opcode length in bytes, without operand
	shape  operandShape
	prefix bool
}

var opcodes = map[Opcode]opcodeInfo{
	OpNop:        {name: "nop", size: 1, shape: shapeNone},
	OpBreak:      {name: "break", size: 1, shape: shapeNone},
	OpDup:        {name: "dup", size: 1, shape: shapeNone},
	OpPop:        {name: "pop", size: 1, shape: shapeNone},
	OpRet:        {name: "ret", size: 1, shape: shapeNone},
	OpAdd:        {name: "add", size: 1, shape: shapeNone},
	OpSub:        {name: "sub", size: 1, shape: shapeNone},
	OpMul:        {name: "mul", size: 1, shape: shapeNone},
	OpCeq:        {name: "ceq", size: 2, shape: shapeNone},
	OpClt:        {name: "clt", size: 2, shape: shapeNone},
	OpLdnull:     {name: "ldnull", size: 1, shape: shapeNone},
	OpThrow:      {name: "throw", size: 1, shape: shapeNone},
	OpRethrow:    {name: "rethrow", size: 2, shape: shapeNone},
	OpEndFinally: {name: "endfinally", size: 1, shape: shapeNone},
	OpEndFilter:  {name: "endfilter", size: 2, shape: shapeNone},
	OpLdcI4:      {name: "ldc.i4", size: 1, shape: shapeInt32},
	OpLdcI4S:     {name: "ldc.i4.s", size: 1, shape: shapeInt8},
	OpLdcI8:      {name: "ldc.i8", size: 1, shape: shapeInt64},
	OpLdcR8:      {name: "ldc.r8", size: 1, shape: shapeFloat64},
	OpLdstr:      {name: "ldstr", size: 1, shape: shapeToken},
	OpCall:       {name: "call", size: 1, shape: shapeToken},
	OpCallvirt:   {name: "callvirt", size: 1, shape: shapeToken},
	OpNewobj:     {name: "newobj", size: 1, shape: shapeToken},
	OpIsinst:     {name: "isinst", size: 1, shape: shapeToken},
	OpBr:         {name: "br", size: 1, shape: shapeTarget},
	OpBrS:        {name: "br.s", size: 1, shape: shapeTargetS},
	OpBrtrue:     {name: "brtrue", size: 1, shape: shapeTarget},
	OpBrtrueS:    {name: "brtrue.s", size: 1, shape: shapeTargetS},
	OpBrfalse:    {name: "brfalse", size: 1, shape: shapeTarget},
	OpBrfalseS:   {name: "brfalse.s", size: 1, shape: shapeTargetS},
	OpBeq:        {name: "beq", size: 1, shape: shapeTarget},
	OpBeqS:       {name: "beq.s", size: 1, shape: shapeTargetS},
	OpBlt:        {name: "blt", size: 1, shape: shapeTarget},
	OpBltS:       {name: "blt.s", size: 1, shape: shapeTargetS},
	OpLeave:      {name: "leave", size: 1, shape: shapeTarget},
	OpLeaveS:     {name: "leave.s", size: 1, shape: shapeTargetS},
	OpSwitch:     {name: "switch", size: 1, shape: shapeSwitch},
	OpTail:       {name: "tail.", size: 2, shape: shapeNone, prefix: true},
	OpVolatile:   {name: "volatile.", size: 2, shape: shapeNone, prefix: true},
	OpUnaligned:  {name: "unaligned.", size: 2, shape: shapeInt8, prefix: true},
	OpConstrained: {
		name: "constrained.", size: 2, shape: shapeToken, prefix: true,
	},
}

// shortToLong maps macro (short-form) opcodes to their long form.
var shortToLong = map[Opcode]Opcode{
	OpBrS:      OpBr,
	OpBrtrueS:  OpBrtrue,
	OpBrfalseS: OpBrfalse,
	OpBeqS:     OpBeq,
	OpBltS:     OpBlt,
	OpLeaveS:   OpLeave,
	OpLdcI4S:   OpLdcI4,
}

var longToShort = func() map[Opcode]Opcode {
	m := make(map[Opcode]Opcode, len(shortToLong))
	for s, l := range shortToLong {
		m[l] = s
	}
	return m
}()

// Name returns the textual mnemonic of the opcode.
func (op Opcode) Name() string {
	if info, ok := opcodes[op]; ok {
		return info.name
	}
	return "unknown"
}

// IsPrefix reports whether the opcode cannot be separated from the
// instruction that follows it.
func (op Opcode) IsPrefix() bool {
	return opcodes[op].prefix
}

func (op Opcode) info() opcodeInfo {
	return opcodes[op]
}

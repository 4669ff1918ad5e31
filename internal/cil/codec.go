package cil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"fortio.org/safecast"
	"github.com/vmihailenco/msgpack/v5"
)

// Current schema version - increment when the container format changes.
const moduleSchemaVersion uint16 = 1

// ErrBadModule is returned when a container file cannot be decoded into a
// consistent instruction graph.
var ErrBadModule = errors.New("malformed module file")

const noRef int32 = -1

type modulePayload struct {
	Schema     uint16
	Name       string
	HasSymbols bool
	Types      []typePayload
}

type typePayload struct {
	FullName   string
	Attributes []string
	Methods    []methodPayload
}

type methodPayload struct {
	FullName   string
	Attributes []string
	HasBody    bool
	MaxStack   int32
	Instrs     []instrPayload
	Handlers   []handlerPayload
}

// instrPayload flattens an instruction for serialization. Instruction
// references become indices into the owning method's instruction list.
type instrPayload struct {
	Op      uint16
	Kind    uint8
	Int32   int32
	Int64   int64
	Float64 float64
	Token   string
	Target  int32
	Targets []int32
	HasSeq  bool
	File    string
	Line    int32
}

type handlerPayload struct {
	Kind         uint8
	CatchType    string
	FilterStart  int32
	TryStart     int32
	TryEnd       int32
	HandlerStart int32
	HandlerEnd   int32
}

// DiskLoader is the Loader backed by msgpack container files on disk.
type DiskLoader struct{}

// Load reads and decodes an assembly container.
func (DiskLoader) Load(path string) (*Assembly, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open assembly %q: %w", path, err)
	}
	defer f.Close()

	var payload modulePayload
	if err := msgpack.NewDecoder(f).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode assembly %q: %w: %v", path, ErrBadModule, err)
	}
	if payload.Schema != moduleSchemaVersion {
		return nil, fmt.Errorf("assembly %q: %w: schema %d, want %d",
			path, ErrBadModule, payload.Schema, moduleSchemaVersion)
	}
	asm, err := inflate(&payload)
	if err != nil {
		return nil, fmt.Errorf("assembly %q: %w: %v", path, ErrBadModule, err)
	}
	return asm, nil
}

// Save encodes the assembly and replaces the file at path atomically.
func (DiskLoader) Save(asm *Assembly, path string) error {
	payload, err := deflate(asm)
	if err != nil {
		return fmt.Errorf("encode assembly %q: %w", path, err)
	}

	dir := filepath.Dir(path)
	f, err := os.CreateTemp(dir, "tmp-*")
	if err != nil {
		return fmt.Errorf("write assembly %q: %w", path, err)
	}
	tmp := f.Name()
	defer os.Remove(tmp)

	if err := msgpack.NewEncoder(f).Encode(payload); err != nil {
		f.Close()
		return fmt.Errorf("write assembly %q: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("write assembly %q: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("write assembly %q: %w", path, err)
	}
	return nil
}

func deflate(asm *Assembly) (*modulePayload, error) {
	payload := &modulePayload{
		Schema:     moduleSchemaVersion,
		Name:       asm.Name,
		HasSymbols: asm.HasSymbols,
		Types:      make([]typePayload, 0, len(asm.Types)),
	}
	for _, t := range asm.Types {
		tp := typePayload{
			FullName:   t.FullName,
			Attributes: t.Attributes,
			Methods:    make([]methodPayload, 0, len(t.Methods)),
		}
		for _, m := range t.Methods {
			mp, err := deflateMethod(m)
			if err != nil {
				return nil, fmt.Errorf("method %s: %w", m.FullName, err)
			}
			tp.Methods = append(tp.Methods, mp)
		}
		payload.Types = append(payload.Types, tp)
	}
	return payload, nil
}

func deflateMethod(m *MethodDef) (methodPayload, error) {
	mp := methodPayload{
		FullName:   m.FullName,
		Attributes: m.Attributes,
	}
	if m.Body == nil {
		return mp, nil
	}
	mp.HasBody = true
	mp.MaxStack = m.Body.MaxStack

	index := make(map[*Instruction]int32, len(m.Body.Instrs))
	for i, ins := range m.Body.Instrs {
		i32, err := safecast.Conv[int32](i)
		if err != nil {
			return mp, err
		}
		index[ins] = i32
	}
	ref := func(ins *Instruction) (int32, error) {
		if ins == nil {
			return noRef, nil
		}
		i, ok := index[ins]
		if !ok {
			return noRef, fmt.Errorf("reference to instruction outside body: %s", ins)
		}
		return i, nil
	}

	mp.Instrs = make([]instrPayload, 0, len(m.Body.Instrs))
	for _, ins := range m.Body.Instrs {
		ip := instrPayload{
			Op:      uint16(ins.Op),
			Kind:    uint8(ins.Operand.Kind),
			Int32:   ins.Operand.Int32,
			Int64:   ins.Operand.Int64,
			Float64: ins.Operand.Float64,
			Token:   ins.Operand.Token,
			Target:  noRef,
		}
		switch ins.Operand.Kind {
		case OperandTarget:
			t, err := ref(ins.Operand.Target)
			if err != nil {
				return mp, err
			}
			ip.Target = t
		case OperandTargets:
			ip.Targets = make([]int32, 0, len(ins.Operand.Targets))
			for _, target := range ins.Operand.Targets {
				t, err := ref(target)
				if err != nil {
					return mp, err
				}
				ip.Targets = append(ip.Targets, t)
			}
		}
		if ins.Seq != nil {
			ip.HasSeq = true
			ip.File = ins.Seq.File
			ip.Line = ins.Seq.Line
		}
		mp.Instrs = append(mp.Instrs, ip)
	}

	mp.Handlers = make([]handlerPayload, 0, len(m.Body.Handlers))
	for _, h := range m.Body.Handlers {
		hp := handlerPayload{Kind: uint8(h.Kind), CatchType: h.CatchType}
		var err error
		if hp.FilterStart, err = ref(h.FilterStart); err != nil {
			return mp, err
		}
		if hp.TryStart, err = ref(h.TryStart); err != nil {
			return mp, err
		}
		if hp.TryEnd, err = ref(h.TryEnd); err != nil {
			return mp, err
		}
		if hp.HandlerStart, err = ref(h.HandlerStart); err != nil {
			return mp, err
		}
		if hp.HandlerEnd, err = ref(h.HandlerEnd); err != nil {
			return mp, err
		}
		mp.Handlers = append(mp.Handlers, hp)
	}
	return mp, nil
}

func inflate(payload *modulePayload) (*Assembly, error) {
	asm := &Assembly{
		Name:       payload.Name,
		HasSymbols: payload.HasSymbols,
		Types:      make([]*TypeDef, 0, len(payload.Types)),
	}
	for _, tp := range payload.Types {
		t := &TypeDef{
			FullName:   tp.FullName,
			Attributes: tp.Attributes,
			Methods:    make([]*MethodDef, 0, len(tp.Methods)),
		}
		for _, mp := range tp.Methods {
			m, err := inflateMethod(&mp)
			if err != nil {
				return nil, fmt.Errorf("method %s: %w", mp.FullName, err)
			}
			t.Methods = append(t.Methods, m)
		}
		asm.Types = append(asm.Types, t)
	}
	return asm, nil
}

func inflateMethod(mp *methodPayload) (*MethodDef, error) {
	m := &MethodDef{FullName: mp.FullName, Attributes: mp.Attributes}
	if !mp.HasBody {
		return m, nil
	}
	body := &Body{MaxStack: mp.MaxStack}

	instrs := make([]*Instruction, len(mp.Instrs))
	for i := range mp.Instrs {
		instrs[i] = &Instruction{}
	}
	ref := func(i int32) (*Instruction, error) {
		if i == noRef {
			return nil, nil
		}
		if i < 0 || int(i) >= len(instrs) {
			return nil, fmt.Errorf("instruction reference %d out of range", i)
		}
		return instrs[i], nil
	}

	for i, ip := range mp.Instrs {
		ins := instrs[i]
		ins.Op = Opcode(ip.Op)
		ins.Operand = Operand{
			Kind:    OperandKind(ip.Kind),
			Int32:   ip.Int32,
			Int64:   ip.Int64,
			Float64: ip.Float64,
			Token:   ip.Token,
		}
		switch ins.Operand.Kind {
		case OperandTarget:
			t, err := ref(ip.Target)
			if err != nil {
				return nil, err
			}
			if t == nil {
				return nil, fmt.Errorf("branch at index %d has no target", i)
			}
			ins.Operand.Target = t
		case OperandTargets:
			ins.Operand.Targets = make([]*Instruction, 0, len(ip.Targets))
			for _, ti := range ip.Targets {
				t, err := ref(ti)
				if err != nil {
					return nil, err
				}
				if t == nil {
					return nil, fmt.Errorf("dispatch entry at index %d has no target", i)
				}
				ins.Operand.Targets = append(ins.Operand.Targets, t)
			}
		}
		if ip.HasSeq {
			ins.Seq = &SeqPoint{File: ip.File, Line: ip.Line}
		}
		body.Append(ins)
	}

	for _, hp := range mp.Handlers {
		h := &Handler{Kind: HandlerKind(hp.Kind), CatchType: hp.CatchType}
		var err error
		if h.FilterStart, err = ref(hp.FilterStart); err != nil {
			return nil, err
		}
		if h.TryStart, err = ref(hp.TryStart); err != nil {
			return nil, err
		}
		if h.TryEnd, err = ref(hp.TryEnd); err != nil {
			return nil, err
		}
		if h.HandlerStart, err = ref(hp.HandlerStart); err != nil {
			return nil, err
		}
		if h.HandlerEnd, err = ref(hp.HandlerEnd); err != nil {
			return nil, err
		}
		body.Handlers = append(body.Handlers, h)
	}

	body.ComputeOffsets()
	m.Body = body
	return m, nil
}

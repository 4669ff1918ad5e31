package cil_test

import (
	"path/filepath"
	"testing"

	"sharpcover/internal/cil"
)

// buildSampleAssembly builds one assembly with branches, a dispatch
// table, an exception handler and sequence points, exercising every
// reference shape the codec must preserve.
func buildSampleAssembly() *cil.Assembly {
	ret := cil.NewInstr(cil.OpRet)
	body := &cil.Body{MaxStack: 4}
	load := cil.NewInstrI4(cil.OpLdcI4, 3)
	load.Seq = &cil.SeqPoint{File: "program.cs", Line: 10}
	sw := cil.NewInstrSwitch(ret, load)
	pop := cil.NewInstr(cil.OpPop)
	leave := cil.NewInstrTarget(cil.OpLeave, ret)
	body.Append(load, sw, pop, leave, ret)
	body.Handlers = append(body.Handlers, &cil.Handler{
		Kind:         cil.HandlerCatch,
		CatchType:    "System.Exception",
		TryStart:     load,
		TryEnd:       pop,
		HandlerStart: pop,
		HandlerEnd:   ret,
	})
	body.ComputeOffsets()

	return &cil.Assembly{
		Name:       "App",
		HasSymbols: true,
		Types: []*cil.TypeDef{
			{
				FullName: "App.Program",
				Methods: []*cil.MethodDef{
					{FullName: "App.Program::Main(string[])", Body: body},
					{FullName: "App.Program::Extern()", Attributes: []string{"DllImportAttribute"}},
				},
			},
			{
				FullName:   "App.Skipped",
				Attributes: []string{"ExcludeFromCoverageAttribute"},
			},
		},
	}
}

func TestCodecRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.cmod")
	loader := cil.DiskLoader{}

	src := buildSampleAssembly()
	if err := loader.Save(src, path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := loader.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if got.Name != "App" || !got.HasSymbols {
		t.Errorf("assembly header = %q/%v, want App/true", got.Name, got.HasSymbols)
	}
	if len(got.Types) != 2 {
		t.Fatalf("got %d types, want 2", len(got.Types))
	}
	if !got.Types[1].HasAttribute("ExcludeFromCoverageAttribute") {
		t.Error("type attribute lost in round trip")
	}

	main := got.Types[0].Methods[0]
	if main.Body == nil {
		t.Fatal("main body lost in round trip")
	}
	if extern := got.Types[0].Methods[1]; extern.Body != nil {
		t.Error("bodyless method grew a body in round trip")
	}
	if err := cil.CheckReferences(main.Body); err != nil {
		t.Fatalf("decoded body failed validation: %v", err)
	}

	instrs := main.Body.Instrs
	if len(instrs) != 5 {
		t.Fatalf("got %d instructions, want 5", len(instrs))
	}
	load, sw, pop, leave, ret := instrs[0], instrs[1], instrs[2], instrs[3], instrs[4]
	if load.Seq == nil || load.Seq.File != "program.cs" || load.Seq.Line != 10 {
		t.Errorf("sequence point lost: %+v", load.Seq)
	}
	if sw.Operand.Kind != cil.OperandTargets || len(sw.Operand.Targets) != 2 {
		t.Fatalf("dispatch table lost: %+v", sw.Operand)
	}
	if sw.Operand.Targets[0] != ret || sw.Operand.Targets[1] != load {
		t.Error("dispatch entries point at the wrong instructions")
	}
	if leave.Operand.Target != ret {
		t.Error("branch target points at the wrong instruction")
	}
	h := main.Body.Handlers[0]
	if h.TryStart != load || h.TryEnd != pop || h.HandlerStart != pop || h.HandlerEnd != ret {
		t.Error("handler boundaries point at the wrong instructions")
	}
	if h.CatchType != "System.Exception" {
		t.Errorf("catch type = %q", h.CatchType)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := cil.DiskLoader{}.Load(filepath.Join(t.TempDir(), "absent.cmod"))
	if err == nil {
		t.Fatal("expected an error loading a missing file")
	}
}

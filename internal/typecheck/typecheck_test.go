package typecheck

import (
	"testing"

	"github.com/keurnel/uvmasm/internal/ast"
	"github.com/keurnel/uvmasm/internal/isa"
	"github.com/keurnel/uvmasm/internal/lexer"
	"github.com/keurnel/uvmasm/internal/parser"
	"github.com/keurnel/uvmasm/internal/sourceview"
)

func mustTable(t *testing.T) *isa.Table {
	t.Helper()
	table, err := isa.Load()
	if err != nil {
		t.Fatalf("isa.Load: %v", err)
	}
	return table
}

func mustParse(t *testing.T, src string) *ast.FileRoot {
	t.Helper()
	view := sourceview.New("t.uasm", src)
	toks := lexer.New(view).Lex()
	root, perr := parser.Parse(toks)
	if perr != nil {
		t.Fatalf("unexpected parse error: %s", perr.Error())
	}
	return root
}

// S1: happy path — push resolves to the i32 variant opcode, exit to 0x50.
func TestCheckHappyPath(t *testing.T) {
	root := mustParse(t, "code {\n@main\n  push i32, 42\n  exit\n}\n")
	c := NewChecker(mustTable(t))
	if !c.Check(root) {
		t.Fatalf("expected success, errors: %v", c.Errors())
	}
	push := root.Code.Body[1].(*ast.Instruction)
	if push.Opcode != 0x03 {
		t.Errorf("push opcode = 0x%02X, want 0x03", push.Opcode)
	}
	lit := push.Operands[1].(*ast.IntLiteral)
	if lit.DataType != isa.I32 {
		t.Errorf("literal DataType = %v, want I32", lit.DataType)
	}
	exit := root.Code.Body[2].(*ast.Instruction)
	if exit.Opcode != 0x50 {
		t.Errorf("exit opcode = 0x%02X, want 0x50", exit.Opcode)
	}
}

// S2: an unresolved label reference is a single error.
func TestCheckUnresolvedLabel(t *testing.T) {
	root := mustParse(t, "code {\n@main\n  jmp missing\n  exit\n}\n")
	c := NewChecker(mustTable(t))
	if c.Check(root) {
		t.Fatal("expected failure for unresolved label")
	}
	if len(c.Errors()) != 1 {
		t.Fatalf("expected exactly 1 error, got %d: %v", len(c.Errors()), c.Errors())
	}
}

func TestCheckResolvedLabel(t *testing.T) {
	root := mustParse(t, "code {\n@main\n  jmp loop\n@loop\n  exit\n}\n")
	c := NewChecker(mustTable(t))
	if !c.Check(root) {
		t.Fatalf("expected success, errors: %v", c.Errors())
	}
	jmp := root.Code.Body[1].(*ast.Instruction)
	ident := jmp.Operands[0].(*ast.Identifier)
	if ident.Resolved == nil {
		t.Fatal("expected label reference to resolve")
	}
	if lbl, ok := ident.Resolved.(*ast.LabelDef); !ok || lbl.Name != "loop" {
		t.Fatalf("resolved to %#v, want LabelDef{loop}", ident.Resolved)
	}
}

// S3: register-offset load — layout, base id, and immediate are all as
// parsed, type-check does not touch RegisterOffset structure.
func TestCheckRegisterOffsetLoad(t *testing.T) {
	root := mustParse(t, "code {\n@main\n  load i32, [bp - 4], r0\n  exit\n}\n")
	c := NewChecker(mustTable(t))
	if !c.Check(root) {
		t.Fatalf("expected success, errors: %v", c.Errors())
	}
	load := root.Code.Body[1].(*ast.Instruction)
	if load.Opcode != 133 {
		t.Errorf("load opcode = %d, want 133", load.Opcode)
	}
	ro := load.Operands[1].(*ast.RegisterOffset)
	if ro.Layout != 0xAF {
		t.Errorf("layout = 0x%02X, want 0xAF", ro.Layout)
	}
	if ro.Base.Id != 0x03 {
		t.Errorf("base id = 0x%02X, want 0x03", ro.Base.Id)
	}
	if ro.Imm != 4 {
		t.Errorf("imm = %d, want 4", ro.Imm)
	}
}

// S4: variable addressing via lea resolves RegisterOffset.Var.
func TestCheckVariableAddressing(t *testing.T) {
	root := mustParse(t, "static {\n  msg : i8 = \"hi\"\n}\ncode {\n@main\n  lea [msg], r0\n  exit\n}\n")
	c := NewChecker(mustTable(t))
	if !c.Check(root) {
		t.Fatalf("expected success, errors: %v", c.Errors())
	}
	lea := root.Code.Body[1].(*ast.Instruction)
	ro := lea.Operands[0].(*ast.RegisterOffset)
	if ro.Var.Resolved == nil {
		t.Fatal("expected Var to resolve")
	}
	v, ok := ro.Var.Resolved.(*ast.Variable)
	if !ok || v.Name != "msg" {
		t.Fatalf("resolved to %#v, want Variable{msg}", ro.Var.Resolved)
	}
	if ro.Layout != 0 {
		t.Errorf("layout = 0x%02X, want 0 for variable form", ro.Layout)
	}
}

// S5: duplicate @main labels fail with exactly one error.
func TestCheckDuplicateLabel(t *testing.T) {
	root := mustParse(t, "code {\n@main\n  exit\n@main\n  exit\n}\n")
	c := NewChecker(mustTable(t))
	if c.Check(root) {
		t.Fatal("expected failure for duplicate label")
	}
	if len(c.Errors()) != 1 {
		t.Fatalf("expected exactly 1 error, got %d: %v", len(c.Errors()), c.Errors())
	}
}

// S6: static overflow — x:i16 = 70000 does not fit.
func TestCheckIntegerOverflow(t *testing.T) {
	root := mustParse(t, "static {\n  x : i16 = 70000\n}\ncode {\n@main\n  exit\n}\n")
	c := NewChecker(mustTable(t))
	if c.Check(root) {
		t.Fatal("expected static { x : i16 = 70000 } to fail")
	}

	ok := mustParse(t, "static {\n  x : i16 = 65535\n}\ncode {\n@main\n  exit\n}\n")
	c2 := NewChecker(mustTable(t))
	if !c2.Check(ok) {
		t.Fatalf("expected static { x : i16 = 65535 } to succeed, errors: %v", c2.Errors())
	}
}

// Testable property 8: push i8, 256 fails (range); push i8, 255 succeeds.
func TestCheckIntRangeBoundary(t *testing.T) {
	failRoot := mustParse(t, "code {\n@main\n  push i8, 256\n  exit\n}\n")
	c := NewChecker(mustTable(t))
	if c.Check(failRoot) {
		t.Fatal("expected push i8, 256 to fail range check")
	}

	okRoot := mustParse(t, "code {\n@main\n  push i8, 255\n  exit\n}\n")
	c2 := NewChecker(mustTable(t))
	if !c2.Check(okRoot) {
		t.Fatalf("expected push i8, 255 to succeed, errors: %v", c2.Errors())
	}
}

// Testable property 10: register-class mismatches are rejected.
func TestCheckRegisterClassMismatch(t *testing.T) {
	ok := mustParse(t, "code {\n@main\n  add i32, r0, r1\n  exit\n}\n")
	if !NewChecker(mustTable(t)).Check(ok) {
		t.Fatal("expected add i32, r0, r1 to succeed")
	}

	wrongClass := mustParse(t, "code {\n@main\n  add f32, r0, r1\n  exit\n}\n")
	if NewChecker(mustTable(t)).Check(wrongClass) {
		t.Fatal("expected add f32, r0, r1 to fail (wrong register class)")
	}

	mixedClass := mustParse(t, "code {\n@main\n  add i32, f0, r1\n  exit\n}\n")
	if NewChecker(mustTable(t)).Check(mixedClass) {
		t.Fatal("expected add i32, f0, r1 to fail (mixed register class)")
	}
}

// Testable property 12: a file without a code section fails; a code
// section without a main label fails.
func TestCheckMissingCodeOrMain(t *testing.T) {
	noCode := mustParse(t, "static {\n  x : i8 = 1\n}\n")
	if NewChecker(mustTable(t)).Check(noCode) {
		t.Fatal("expected failure for missing code section")
	}

	noMain := mustParse(t, "code {\n@start\n  exit\n}\n")
	if NewChecker(mustTable(t)).Check(noMain) {
		t.Fatal("expected failure for missing main label")
	}
}

// spec.md §6's "Assembly syntax" example includes a bare `sys 0` — its
// IntLiteral operand must match SYS_INT, not INT_NUM, since SYS's only
// signature is `{"params": ["SYS_INT"]}`.
func TestCheckSysInstruction(t *testing.T) {
	root := mustParse(t, "code {\n@main\n  sys 0\n  exit\n}\n")
	c := NewChecker(mustTable(t))
	if !c.Check(root) {
		t.Fatalf("expected success, errors: %v", c.Errors())
	}
	sys := root.Code.Body[1].(*ast.Instruction)
	if sys.Opcode != 145 {
		t.Errorf("sys opcode = %d, want 145", sys.Opcode)
	}
	lit := sys.Operands[0].(*ast.IntLiteral)
	if lit.DataType != isa.I8 {
		t.Errorf("sys operand DataType = %v, want I8 (forced by SYS_INT)", lit.DataType)
	}
}

// sys's id argument is still range-checked against I8 once SYS_INT forces
// its DataType.
func TestCheckSysInstructionOutOfRange(t *testing.T) {
	root := mustParse(t, "code {\n@main\n  sys 256\n  exit\n}\n")
	c := NewChecker(mustTable(t))
	if c.Check(root) {
		t.Fatal("expected sys 256 to fail range check (I8 max is 255)")
	}
}

// Testable property 9: [bp - 0xFFFFFFFF] (the boundary value the parser's
// 32-bit immediate check accepts) type-checks cleanly end to end. The
// rejection side of this property — [bp - 0x100000000] failing to parse — is
// exercised in internal/parser, where the 32-bit overflow is actually
// detected (spec §4.1).
func TestCheckRegisterOffsetImmBoundary(t *testing.T) {
	root := mustParse(t, "code {\n@main\n  load i32, [bp - 0xFFFFFFFF], r0\n  exit\n}\n")
	c := NewChecker(mustTable(t))
	if !c.Check(root) {
		t.Fatalf("expected [bp - 0xFFFFFFFF] to type-check, errors: %v", c.Errors())
	}
}

// checkFloatRange (spec §4.3): a value within F32's range type-checks; one
// whose magnitude exceeds FLT_MAX does not.
func TestCheckFloatRangeBoundary(t *testing.T) {
	ok := mustParse(t, "code {\n@main\n  push f32, 3.14\n  exit\n}\n")
	if !NewChecker(mustTable(t)).Check(ok) {
		t.Fatal("expected push f32, 3.14 to succeed")
	}

	overflow := mustParse(t, "code {\n@main\n  push f32, 400000000000000000000000000000000000000.0\n  exit\n}\n")
	c := NewChecker(mustTable(t))
	if c.Check(overflow) {
		t.Fatal("expected push f32, 4e38 to fail range check (exceeds FLT_MAX)")
	}
}

// F64's range check never rejects a float64 value (spec §4.3: "float64
// already is the representation; nothing can overflow it").
func TestCheckFloatRangeF64NeverOverflows(t *testing.T) {
	root := mustParse(t, "code {\n@main\n  push f64, 400000000000000000000000000000000000000.0\n  exit\n}\n")
	c := NewChecker(mustTable(t))
	if !c.Check(root) {
		t.Fatalf("expected push f64, 4e38 to succeed, errors: %v", c.Errors())
	}
}

// Testable property 1: every instruction node has Opcode != 0, or is nop
// (opcode 0xA0).
func TestCheckNopOpcode(t *testing.T) {
	root := mustParse(t, "code {\n@main\n  nop\n  exit\n}\n")
	c := NewChecker(mustTable(t))
	if !c.Check(root) {
		t.Fatalf("expected success, errors: %v", c.Errors())
	}
	nop := root.Code.Body[1].(*ast.Instruction)
	if nop.Opcode != 0xA0 {
		t.Errorf("nop opcode = 0x%02X, want 0xA0", nop.Opcode)
	}
}

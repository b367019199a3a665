// Package typecheck implements the six-step validation pass that turns a
// parsed FileRoot into an encoding-ready AST: symbol-table collection,
// structural checks, per-instruction signature matching, and post-walk
// reference resolution (spec §4.4).
//
// Grounded on the teacher's v0/kasm/semantic.go Analyser: the
// collect-then-validate two-pass shape, the addError/errors accumulation
// style, and the duplicate-declaration-recorded-immediately strategy. The
// instruction-variant matching itself is replaced end to end by the trie
// walk in internal/isa (spec §9 REDESIGN), since the teacher's
// FindVariant/operandSemanticType/tryIdentifierSubstitution machinery
// assumes a different, string-keyed operand-type model.
package typecheck

import (
	"fmt"

	"github.com/keurnel/uvmasm/internal/ast"
	"github.com/keurnel/uvmasm/internal/diag"
	"github.com/keurnel/uvmasm/internal/isa"
)

// variableDecl tracks where a Static/Global variable was declared.
type variableDecl struct {
	node *ast.Variable
}

// labelDecl tracks where a Code-section label was declared.
type labelDecl struct {
	node *ast.LabelDef
}

// labelRef is a pending label reference gathered while matching
// instruction signatures (spec §4.2 "append to this function's
// label-reference list for later resolution").
type labelRef struct {
	ident *ast.Identifier
}

// varRef is a pending RegisterOffset.Var reference gathered during the
// instruction walk.
type varRef struct {
	ident *ast.RegisterOffset
}

// Checker runs the type-check pass over a single FileRoot. Its tables and
// error list exist only for the duration of one Check call; there is no
// persistent state across files (spec §5: single owner, no global mutable
// state beyond the immutable isa.Table).
type Checker struct {
	table *isa.Table

	variables map[string]variableDecl
	labels    map[string]labelDecl

	labelRefs []labelRef
	varRefs   []varRef

	errors diag.List
}

// NewChecker constructs a Checker against a loaded instruction table. table
// must be non-nil; it is treated as read-only for the lifetime of the
// Checker (spec §9 "the encoding table is immutable at build time").
func NewChecker(table *isa.Table) *Checker {
	return &Checker{
		table:     table,
		variables: make(map[string]variableDecl),
		labels:    make(map[string]labelDecl),
	}
}

// Check runs the full type-check pass over root and returns true iff zero
// errors were recorded (spec §4.4: "Return value: true iff zero errors
// were recorded"). The accumulated diagnostics are available via Errors.
func (c *Checker) Check(root *ast.FileRoot) bool {
	c.variables = make(map[string]variableDecl)
	c.labels = make(map[string]labelDecl)
	c.labelRefs = nil
	c.varRefs = nil
	c.errors = nil

	c.collectVariables(root)
	if !c.checkCodePresence(root) {
		return false
	}
	if !c.checkMainLabel(root) {
		return false
	}
	c.collectLabelsAndInstructions(root)
	c.resolveLabelRefs()
	c.resolveVarRefs()
	return len(c.errors) == 0
}

// Errors returns every diagnostic accumulated by the last Check call.
func (c *Checker) Errors() diag.List { return c.errors }

func (c *Checker) addError(message string, pos ast.Pos) {
	c.errors.Add(diag.StageTypeCheck, message, pos)
}

// ---------------------------------------------------------------------------
// Step 1 — variable collection (Static, Global)
// ---------------------------------------------------------------------------

// collectVariables walks Static then Global, recording every declaration
// into the variable table. A name already present is a redefinition error;
// the pass continues (spec §4.4 step 1).
func (c *Checker) collectVariables(root *ast.FileRoot) {
	if root.Static != nil {
		c.collectSectionVariables(root.Static)
	}
	if root.Global != nil {
		c.collectSectionVariables(root.Global)
	}
}

func (c *Checker) collectSectionVariables(sec *ast.Section) {
	for _, n := range sec.Body {
		v, ok := n.(*ast.Variable)
		if !ok {
			continue
		}
		if _, exists := c.variables[v.Name]; exists {
			c.addError(fmt.Sprintf("variable %q already declared", v.Name), v.Position())
			continue
		}
		c.variables[v.Name] = variableDecl{node: v}
		c.checkVariableValue(v)
	}
}

// checkVariableValue assigns the declared type to the variable's literal
// value and range-checks it (spec §4.1 "The integer must parse ... and fit
// the declared type (§4.3)"; S6).
func (c *Checker) checkVariableValue(v *ast.Variable) {
	if v.Type == nil {
		return
	}
	switch lit := v.Value.(type) {
	case *ast.IntLiteral:
		lit.DataType = v.Type.DataType
		c.checkIntRange(lit)
	case *ast.FloatLiteral:
		lit.DataType = v.Type.DataType
		c.checkFloatRange(lit)
	case *ast.StringLiteral:
		// No numeric range to check.
	}
}

// ---------------------------------------------------------------------------
// Steps 2-3 — Code section presence and main label
// ---------------------------------------------------------------------------

// checkCodePresence fails immediately with "missing main label" if the Code
// section is absent or empty (spec §4.4 step 2 — this check is fatal, not
// recoverable, since there is nothing further to walk).
func (c *Checker) checkCodePresence(root *ast.FileRoot) bool {
	if root.Code == nil || len(root.Code.Body) == 0 {
		c.addError("missing main label", root.Position())
		return false
	}
	return true
}

// checkMainLabel scans the Code section for a label named "main"; its
// absence is fatal (spec §4.4 step 3).
func (c *Checker) checkMainLabel(root *ast.FileRoot) bool {
	for _, n := range root.Code.Body {
		if lbl, ok := n.(*ast.LabelDef); ok && lbl.Name == "main" {
			return true
		}
	}
	c.addError("missing main label", root.Code.Position())
	return false
}

// ---------------------------------------------------------------------------
// Step 4 — label collection and instruction signature matching
// ---------------------------------------------------------------------------

func (c *Checker) collectLabelsAndInstructions(root *ast.FileRoot) {
	if root.Code == nil {
		return
	}
	for _, n := range root.Code.Body {
		switch node := n.(type) {
		case *ast.LabelDef:
			c.collectLabel(node)
		case *ast.Instruction:
			c.matchInstruction(node)
		}
	}
}

func (c *Checker) collectLabel(lbl *ast.LabelDef) {
	if _, exists := c.labels[lbl.Name]; exists {
		c.addError(fmt.Sprintf("label %q already defined", lbl.Name), lbl.Position())
		return
	}
	c.labels[lbl.Name] = labelDecl{node: lbl}
}

// matchInstruction walks the instruction's operand list against its
// mnemonic's compiled trie (spec §4.2). seenType holds the most recent
// TypeInfo operand, used to type subsequent int/float literals by
// look-behind (spec §9 "Numeric-type tagging via look-behind").
func (c *Checker) matchInstruction(instr *ast.Instruction) {
	trie := c.table.Lookup(instr.Mnemonic)
	if trie == nil {
		c.addError(fmt.Sprintf("unknown instruction %q", instr.Mnemonic), instr.Position())
		return
	}

	node := trie.Root
	var seenType *ast.TypeInfo

	for _, operand := range instr.Operands {
		cands := candidateCategories(operand)
		if cands == nil {
			c.addError("operand cannot be matched against any instruction signature", operand.Position())
			return
		}

		cat, next := matchChild(node, cands)
		if next == nil {
			c.addError(
				fmt.Sprintf("instruction %q does not accept a %s operand here", instr.Mnemonic, cands[0]),
				operand.Position(),
			)
			return
		}
		node = next

		if !c.applyCategory(cat, operand, &seenType) {
			return
		}
	}

	if node.Signature == nil {
		c.addError(fmt.Sprintf("instruction %q has too few operands", instr.Mnemonic), instr.Position())
		return
	}

	c.attachOpcode(instr, node.Signature, seenType)
}

// matchChild finds the single child edge out of node whose category accepts
// the operand, trying each of an operand's candidate categories in turn
// (spec §4.2 step 2: "find the single child edge whose category accepts
// it"). Returns the category that matched and the resulting node, or a zero
// category and a nil node if none of the candidates has an edge.
func matchChild(node *isa.TrieNode, cands []isa.Category) (isa.Category, *isa.TrieNode) {
	for _, cat := range cands {
		if next := node.Child(cat); next != nil {
			return cat, next
		}
	}
	return "", nil
}

// candidateCategories lists the isa.Category values an operand's AST variant
// could satisfy, in preference order. Most variants map to exactly one
// category; RegisterId is disambiguated up front by its id range (spec §4.2
// "Per-category acceptance rules"). IntLiteral is genuinely ambiguous
// between INT_NUM and SYS_INT — both are plain integer literals in the AST,
// and which one applies depends on which edge the mnemonic's trie actually
// has at this position (spec §4.2 step 2), not on anything the literal
// itself carries — so both are offered and matchChild picks whichever edge
// exists.
func candidateCategories(n ast.Node) []isa.Category {
	switch v := n.(type) {
	case *ast.TypeInfo:
		if v.DataType.IsInt() {
			return []isa.Category{isa.IntType}
		}
		return []isa.Category{isa.FloatType}
	case *ast.RegisterId:
		if isa.IsIntRegister(int(v.Id)) {
			return []isa.Category{isa.IntReg}
		}
		return []isa.Category{isa.FloatReg}
	case *ast.RegisterOffset:
		return []isa.Category{isa.RegOffset}
	case *ast.IntLiteral:
		return []isa.Category{isa.IntNum, isa.SysInt}
	case *ast.FloatLiteral:
		return []isa.Category{isa.FloatNum}
	case *ast.Identifier:
		return []isa.Category{isa.LabelID}
	default:
		return nil
	}
}

// applyCategory performs the per-category side effects from spec §4.2:
// remembering TypeInfo for look-behind, re-checking numeric range against
// the remembered type, forcing SYS_INT operands to I8, and queuing label
// references for post-walk resolution. Returns false if a range check failed
// or a numeric literal has no preceding type (the error has already been
// recorded); register-class mismatches never reach here, since matchChild
// finds no trie edge for them.
func (c *Checker) applyCategory(cat isa.Category, operand ast.Node, seenType **ast.TypeInfo) bool {
	switch cat {
	case isa.IntType, isa.FloatType:
		*seenType = operand.(*ast.TypeInfo)
		return true

	case isa.IntReg, isa.FloatReg:
		return true

	case isa.RegOffset:
		ro := operand.(*ast.RegisterOffset)
		if ro.Var != nil {
			c.varRefs = append(c.varRefs, varRef{ident: ro})
		}
		return true

	case isa.IntNum:
		lit := operand.(*ast.IntLiteral)
		if *seenType == nil {
			c.addError("integer literal has no preceding type", lit.Position())
			return false
		}
		lit.DataType = (*seenType).DataType
		return c.checkIntRange(lit)

	case isa.FloatNum:
		lit := operand.(*ast.FloatLiteral)
		if *seenType == nil {
			c.addError("float literal has no preceding type", lit.Position())
			return false
		}
		lit.DataType = (*seenType).DataType
		return c.checkFloatRange(lit)

	case isa.SysInt:
		lit := operand.(*ast.IntLiteral)
		lit.DataType = isa.I8
		return c.checkIntRange(lit)

	case isa.LabelID:
		ident := operand.(*ast.Identifier)
		c.labelRefs = append(c.labelRefs, labelRef{ident: ident})
		return true

	default:
		return true
	}
}

// checkIntRange validates lit's magnitude against its assigned type's
// magnitude bound (spec §4.3: "this is a magnitude bound, not the
// two's-complement range" — preserved verbatim, including its known
// over/under-acceptance near the signed minimums, per spec §9).
func (c *Checker) checkIntRange(lit *ast.IntLiteral) bool {
	var max uint64
	switch lit.DataType {
	case isa.I8:
		max = 0xFF
	case isa.I16:
		max = 0xFFFF
	case isa.I32:
		max = 0xFFFFFFFF
	case isa.I64:
		return true
	default:
		return true
	}
	if lit.Magnitude > max {
		c.addError(
			fmt.Sprintf("integer literal does not fit into %s", lit.DataType),
			lit.Position(),
		)
		return false
	}
	return true
}

// checkFloatRange validates lit's magnitude against its assigned type's
// maximum representable value (spec §4.3).
func (c *Checker) checkFloatRange(lit *ast.FloatLiteral) bool {
	v := lit.Value
	if v < 0 {
		v = -v
	}
	switch lit.DataType {
	case isa.F32:
		if v > maxFloat32 {
			c.addError("float literal does not fit into f32", lit.Position())
			return false
		}
	case isa.F64:
		// float64 already is the representation; nothing can overflow it.
	}
	return true
}

const maxFloat32 = 3.40282346638528859811704183484516925440e+38

// attachOpcode resolves the matched signature's opcode — via its type
// variant table when TYPE_VARIANTS is set, otherwise its base opcode — and
// attaches it to instr along with the signature's encoding flags (spec
// §4.2 "Opcode selection").
func (c *Checker) attachOpcode(instr *ast.Instruction, sig *isa.Signature, seenType *ast.TypeInfo) {
	instr.Signature = sig
	instr.Flags = sig.Flags

	if sig.Flags.Has(isa.TypeVariants) {
		if seenType == nil {
			c.addError(fmt.Sprintf("instruction %q requires a type operand to select its opcode", instr.Mnemonic), instr.Position())
			return
		}
		opcode, ok := sig.TypeVariants[seenType.DataType]
		if !ok {
			c.addError(fmt.Sprintf("instruction %q has no %s variant", instr.Mnemonic, seenType.DataType), instr.Position())
			return
		}
		instr.Opcode = opcode
		return
	}
	instr.Opcode = sig.Opcode
}

// ---------------------------------------------------------------------------
// Steps 5-6 — post-walk reference resolution
// ---------------------------------------------------------------------------

// resolveLabelRefs resolves every label reference queued during the
// instruction walk against the label table (spec §4.4 step 5).
func (c *Checker) resolveLabelRefs() {
	for _, ref := range c.labelRefs {
		decl, ok := c.labels[ref.ident.Name]
		if !ok {
			c.addError(fmt.Sprintf("unresolved label %q", ref.ident.Name), ref.ident.Position())
			continue
		}
		ref.ident.Resolved = decl.node
	}
}

// resolveVarRefs resolves every RegisterOffset.Var reference queued during
// the instruction walk against the variable table (spec §4.4 step 6).
func (c *Checker) resolveVarRefs() {
	for _, ref := range c.varRefs {
		name := ref.ident.Var.Name
		decl, ok := c.variables[name]
		if !ok {
			c.addError(fmt.Sprintf("unresolved variable %q", name), ref.ident.Var.Position())
			continue
		}
		ref.ident.Var.Resolved = decl.node
	}
}

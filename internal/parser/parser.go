// Package parser implements the recursive-descent grammar that turns a
// scanned token stream into a FileRoot AST (spec §4.1). It owns the
// register-offset bracketed sub-language and the sign-adjacency rule; it
// does not resolve symbols or select instruction signatures — that is the
// type checker's job (spec §4.4).
//
// Grounded on the teacher's v0/kasm/parsing.go: the Parser struct shape
// (Position/Tokens/errors), the current/peek/advance/expect/isAtEnd token
// helpers. Unlike the teacher, it does not recover: parsing stops at the
// first error (spec §7). The teacher's
// FuncBody parser state is omitted as vestigial (spec §9 design note); this
// parser's only states are "between sections" and "inside one of the three
// section bodies", which the recursive structure expresses directly rather
// than as an explicit state enum.
package parser

import (
	"strconv"
	"strings"

	"github.com/keurnel/uvmasm/internal/ast"
	"github.com/keurnel/uvmasm/internal/diag"
	"github.com/keurnel/uvmasm/internal/isa"
	"github.com/keurnel/uvmasm/internal/token"
)

// Parser holds the token slice and current cursor position. The cursor is
// monotonically non-decreasing; current/peek clamp at EOF rather than
// failing (spec §5).
type Parser struct {
	Position int
	Tokens   []token.Token

	err *diag.Diagnostic // set on the first error; the parser stops (spec §7)
}

// New constructs a Parser over tokens. New is infallible; a nil or empty
// slice is valid (the caller is expected to have at least appended an
// EndOfFile token, but New does not require it).
func New(tokens []token.Token) *Parser {
	return &Parser{Tokens: tokens}
}

// ---------------------------------------------------------------------------
// Token consumption helpers
// ---------------------------------------------------------------------------

func (p *Parser) current() token.Token {
	if p.Position >= len(p.Tokens) {
		return token.Token{Kind: token.EndOfFile}
	}
	return p.Tokens[p.Position]
}

func (p *Parser) peek() token.Token {
	if p.Position+1 >= len(p.Tokens) {
		return token.Token{Kind: token.EndOfFile}
	}
	return p.Tokens[p.Position+1]
}

func (p *Parser) advance() token.Token {
	tok := p.current()
	if p.Position < len(p.Tokens) {
		p.Position++
	}
	return tok
}

func (p *Parser) isAtEnd() bool {
	return p.current().Kind == token.EndOfFile
}

func (p *Parser) pos(tok token.Token) ast.Pos {
	return ast.Pos{Index: tok.Index, Size: tok.Size, Line: tok.Line, Column: tok.Column}
}

// fail records the first diagnostic. Subsequent calls are no-ops: the
// parser stops at its first error (spec §7 "the parser stops at first error
// and returns failure").
func (p *Parser) fail(message string, tok token.Token) {
	if p.err != nil {
		return
	}
	d := diag.New(diag.StageParser, message, p.pos(tok))
	p.err = &d
}

func (p *Parser) failed() bool { return p.err != nil }

// expect consumes the current token if it has the given kind, recording a
// diagnostic and leaving the cursor unmoved otherwise.
func (p *Parser) expect(kind token.Kind, context string) (token.Token, bool) {
	tok := p.current()
	if tok.Kind == kind {
		p.advance()
		return tok, true
	}
	p.fail("expected "+kind.String()+" "+context+", got "+describeToken(tok), tok)
	return tok, false
}

func describeToken(tok token.Token) string {
	if tok.Kind == token.EndOfFile {
		return "end of input"
	}
	if tok.Literal != "" {
		return tok.Kind.String() + " " + strconv.Quote(tok.Literal)
	}
	return tok.Kind.String()
}

func (p *Parser) skipEol() {
	for p.current().Kind == token.Eol {
		p.advance()
	}
}

// ---------------------------------------------------------------------------
// Parse — file := { NL } { section { NL } } EOF
// ---------------------------------------------------------------------------

// Parse consumes the entire token stream and returns a FileRoot, or nil and
// a Diagnostic on the first error (spec §4.1 contract: "build_ast(source,
// tokens) → FileRoot | ParseError").
func Parse(tokens []token.Token) (*ast.FileRoot, *diag.Diagnostic) {
	p := New(tokens)
	root := p.parseFile()
	if p.err != nil {
		return nil, p.err
	}
	return root, nil
}

func (p *Parser) parseFile() *ast.FileRoot {
	root := &ast.FileRoot{}
	if len(p.Tokens) > 0 {
		root.Pos = p.pos(p.Tokens[0])
	}

	p.skipEol()
	for !p.isAtEnd() && !p.failed() {
		sec := p.parseSection()
		if p.failed() {
			return root
		}
		p.attachSection(root, sec)
		p.skipEol()
	}
	return root
}

func (p *Parser) attachSection(root *ast.FileRoot, sec *ast.Section) {
	switch sec.Kind {
	case ast.SectionStatic:
		if root.Static != nil {
			p.fail("duplicate section: static", token.Token{Index: sec.Index, Size: sec.Size, Line: sec.Line, Column: sec.Column})
			return
		}
		root.Static = sec
	case ast.SectionGlobal:
		if root.Global != nil {
			p.fail("duplicate section: global", token.Token{Index: sec.Index, Size: sec.Size, Line: sec.Line, Column: sec.Column})
			return
		}
		root.Global = sec
	case ast.SectionCode:
		if root.Code != nil {
			p.fail("duplicate section: code", token.Token{Index: sec.Index, Size: sec.Size, Line: sec.Line, Column: sec.Column})
			return
		}
		root.Code = sec
	}
}

// ---------------------------------------------------------------------------
// Section — section := IDENT '{' NL (static_body | global_body | code_body) '}'
// ---------------------------------------------------------------------------

func (p *Parser) parseSection() *ast.Section {
	nameTok, ok := p.expect(token.Identifier, "as section name")
	if !ok {
		return nil
	}

	var kind ast.SectionKind
	switch strings.ToLower(nameTok.Literal) {
	case "static":
		kind = ast.SectionStatic
	case "global":
		kind = ast.SectionGlobal
	case "code":
		kind = ast.SectionCode
	default:
		p.fail("unknown section name: "+nameTok.Literal, nameTok)
		return nil
	}

	if _, ok := p.expect(token.LeftCurly, "after section name"); !ok {
		return nil
	}
	p.skipEol()

	sec := &ast.Section{Pos: p.pos(nameTok), Kind: kind, Name: nameTok.Literal}

	switch kind {
	case ast.SectionStatic, ast.SectionGlobal:
		sec.Body = p.parseVarBody(kind)
	case ast.SectionCode:
		sec.Body = p.parseCodeBody()
	}
	if p.failed() {
		return sec
	}

	if _, ok := p.expect(token.RightCurly, "to close section"); !ok {
		return nil
	}
	return sec
}

// ---------------------------------------------------------------------------
// static_body / global_body := { var_decl }
// ---------------------------------------------------------------------------

func (p *Parser) parseVarBody(kind ast.SectionKind) []ast.Node {
	var perm ast.SectionPerm
	switch kind {
	case ast.SectionStatic:
		perm = ast.PermRead
	case ast.SectionGlobal:
		perm = ast.PermRead | ast.PermWrite
	}

	var body []ast.Node
	for {
		p.skipEol()
		if p.failed() || p.current().Kind == token.RightCurly || p.isAtEnd() {
			return body
		}
		v := p.parseVarDecl(perm)
		if p.failed() {
			return body
		}
		body = append(body, v)
	}
}

// var_decl := IDENT ':' TYPE '=' [sign] literal NL
func (p *Parser) parseVarDecl(perm ast.SectionPerm) *ast.Variable {
	nameTok, ok := p.expect(token.Identifier, "as variable name")
	if !ok {
		return nil
	}
	if _, ok := p.expect(token.Colon, "after variable name"); !ok {
		return nil
	}
	typeTok, ok := p.expect(token.TypeInfo, "as variable type")
	if !ok {
		return nil
	}
	if _, ok := p.expect(token.Equals, "in variable declaration"); !ok {
		return nil
	}

	value := p.parseLiteralValue()
	if p.failed() {
		return nil
	}

	return &ast.Variable{
		Pos:  p.pos(nameTok),
		Name: nameTok.Literal,
		Type: &ast.TypeInfo{Pos: p.pos(typeTok), DataType: isa.UVMType(typeTok.Tag)},
		Value: value,
		Perm:  perm,
	}
}

// literal := STRING | [sign] (INT | FLOAT)
func (p *Parser) parseLiteralValue() ast.Node {
	if p.current().Kind == token.String {
		tok := p.advance()
		return &ast.StringLiteral{Pos: p.pos(tok), Bytes: expandEscapes(tok.Literal)}
	}
	return p.parseSignedNumber()
}

// ---------------------------------------------------------------------------
// code_body := { NL | label_def NL | instr NL }
// ---------------------------------------------------------------------------

func (p *Parser) parseCodeBody() []ast.Node {
	var body []ast.Node
	for {
		p.skipEol()
		if p.failed() || p.current().Kind == token.RightCurly || p.isAtEnd() {
			return body
		}

		var node ast.Node
		switch p.current().Kind {
		case token.LabelDef:
			node = p.parseLabelDef()
		case token.Instruction:
			node = p.parseInstruction()
		default:
			p.fail("expected label or instruction, got "+describeToken(p.current()), p.current())
			return body
		}
		if p.failed() {
			return body
		}
		body = append(body, node)
	}
}

// label_def := '@' IDENT — the lexer already folds '@' and the name into a
// single LabelDef token.
func (p *Parser) parseLabelDef() *ast.LabelDef {
	tok := p.advance()
	return &ast.LabelDef{Pos: p.pos(tok), Name: tok.Literal}
}

// instr := MNEMONIC [ operand_list ]
func (p *Parser) parseInstruction() *ast.Instruction {
	tok := p.advance()
	instr := &ast.Instruction{Pos: p.pos(tok), Mnemonic: strings.ToUpper(tok.Literal)}
	instr.Operands = p.parseOperandList()
	return instr
}

// operand_list := operand { ',' operand }
func (p *Parser) parseOperandList() []ast.Node {
	var operands []ast.Node
	if !p.operandStarts(p.current()) {
		return operands
	}
	for {
		op := p.parseOperand()
		if p.failed() {
			return operands
		}
		operands = append(operands, op)
		if p.current().Kind != token.Comma {
			return operands
		}
		p.advance()
	}
}

func (p *Parser) operandStarts(tok token.Token) bool {
	switch tok.Kind {
	case token.TypeInfo, token.RegisterDefinition, token.LeftSquare, token.Identifier,
		token.IntegerNumber, token.FloatNumber, token.Plus, token.Minus:
		return true
	default:
		return false
	}
}

// operand := TYPE | register | reg_offset | ident | [sign] number
func (p *Parser) parseOperand() ast.Node {
	tok := p.current()
	switch tok.Kind {
	case token.TypeInfo:
		p.advance()
		return &ast.TypeInfo{Pos: p.pos(tok), DataType: isa.UVMType(tok.Tag)}

	case token.RegisterDefinition:
		p.advance()
		return &ast.RegisterId{Pos: p.pos(tok), Id: byte(tok.Tag)}

	case token.LeftSquare:
		return p.parseRegisterOffset()

	case token.Identifier:
		p.advance()
		return &ast.Identifier{Pos: p.pos(tok), Name: tok.Literal}

	case token.IntegerNumber, token.FloatNumber, token.Plus, token.Minus:
		return p.parseSignedNumber()

	default:
		p.fail("unexpected token in operand position: "+describeToken(tok), tok)
		return nil
	}
}

// ---------------------------------------------------------------------------
// Signed numeric literals — sign := '+' | '-'; adjacency enforced.
// ---------------------------------------------------------------------------

func (p *Parser) parseSignedNumber() ast.Node {
	var signTok token.Token
	hasSign := false
	negative := false

	switch p.current().Kind {
	case token.Plus, token.Minus:
		signTok = p.advance()
		hasSign = true
		negative = signTok.Kind == token.Minus
	}

	numTok := p.current()
	if numTok.Kind != token.IntegerNumber && numTok.Kind != token.FloatNumber {
		if hasSign {
			p.fail("expected number after sign, got "+describeToken(numTok), numTok)
		} else {
			p.fail("expected number, got "+describeToken(numTok), numTok)
		}
		return nil
	}

	if hasSign && signTok.Index+signTok.Size != numTok.Index {
		p.fail("unexpected operator: sign is not adjacent to its number", signTok)
		return nil
	}
	p.advance()

	startPos := p.pos(numTok)
	if hasSign {
		startPos = p.pos(signTok)
		startPos.Size = numTok.Index + numTok.Size - signTok.Index
	}

	if numTok.Kind == token.FloatNumber {
		v, err := strconv.ParseFloat(numTok.Literal, 64)
		if err != nil {
			p.fail("invalid float literal: "+numTok.Literal, numTok)
			return nil
		}
		if negative {
			v = -v
		}
		return &ast.FloatLiteral{Pos: startPos, Value: v}
	}

	magnitude, err := parseIntMagnitude(numTok.Literal)
	if err != nil {
		p.fail("invalid integer literal: "+numTok.Literal, numTok)
		return nil
	}
	return &ast.IntLiteral{Pos: startPos, Magnitude: magnitude, Signed: negative}
}

func parseIntMagnitude(literal string) (uint64, error) {
	if strings.HasPrefix(literal, "0x") || strings.HasPrefix(literal, "0X") {
		return strconv.ParseUint(literal[2:], 16, 64)
	}
	return strconv.ParseUint(literal, 10, 64)
}

// ---------------------------------------------------------------------------
// Register-offset sub-parser
// ---------------------------------------------------------------------------

// reg_offset := '[' (ident | register | register ('+'|'-') (imm32 | register '*' imm16)) ']'
func (p *Parser) parseRegisterOffset() *ast.RegisterOffset {
	open := p.advance() // '['

	if p.current().Kind == token.Identifier {
		idTok := p.advance()
		if _, ok := p.expect(token.RightSquare, "to close register offset"); !ok {
			return nil
		}
		ro := &ast.RegisterOffset{Pos: p.pos(open)}
		ro.Var = &ast.Identifier{Pos: p.pos(idTok), Name: idTok.Literal}
		return ro
	}

	baseTok, ok := p.expect(token.RegisterDefinition, "as register-offset base")
	if !ok {
		return nil
	}
	if !isa.IsIntRegister(int(baseTok.Tag)) {
		p.fail("register offset base must be an integer register", baseTok)
		return nil
	}
	base := &ast.RegisterId{Pos: p.pos(baseTok), Id: byte(baseTok.Tag)}

	if p.current().Kind == token.RightSquare {
		p.advance()
		return &ast.RegisterOffset{Pos: p.pos(open), Layout: ast.LayoutRegisterOnly, Base: base}
	}

	var signTok token.Token
	negative := false
	switch p.current().Kind {
	case token.Plus, token.Minus:
		signTok = p.advance()
		negative = signTok.Kind == token.Minus
	default:
		p.fail("expected '+', '-' or ']' in register offset, got "+describeToken(p.current()), p.current())
		return nil
	}

	if p.current().Kind == token.RegisterDefinition {
		offTok := p.advance()
		if !isa.IsIntRegister(int(offTok.Tag)) {
			p.fail("register offset scale register must be an integer register", offTok)
			return nil
		}
		if _, ok := p.expect(token.Asterisk, "between offset register and scale"); !ok {
			return nil
		}
		immTok, ok := p.expect(token.IntegerNumber, "as register-offset scale")
		if !ok {
			return nil
		}
		imm, err := parseIntMagnitude(immTok.Literal)
		if err != nil || imm > 0xFFFF {
			p.fail("scale immediate does not fit in 16 bits: "+immTok.Literal, immTok)
			return nil
		}
		if _, ok := p.expect(token.RightSquare, "to close register offset"); !ok {
			return nil
		}
		layout := ast.LayoutRegisterPlusScaled
		if negative {
			layout |= ast.LayoutSignBit
		}
		return &ast.RegisterOffset{
			Pos: p.pos(open), Layout: layout, Base: base,
			Offset: &ast.RegisterId{Pos: p.pos(offTok), Id: byte(offTok.Tag)},
			HasImm: true, ImmBits: 16, Imm: uint32(imm), Negative: negative,
		}
	}

	immTok, ok := p.expect(token.IntegerNumber, "as register-offset immediate")
	if !ok {
		return nil
	}
	imm, err := parseIntMagnitude(immTok.Literal)
	if err != nil || imm > 0xFFFFFFFF {
		p.fail("immediate does not fit in 32 bits: "+immTok.Literal, immTok)
		return nil
	}
	if _, ok := p.expect(token.RightSquare, "to close register offset"); !ok {
		return nil
	}
	layout := ast.LayoutRegisterPlusImm32
	if negative {
		layout |= ast.LayoutSignBit
	}
	return &ast.RegisterOffset{
		Pos: p.pos(open), Layout: layout, Base: base,
		HasImm: true, ImmBits: 32, Imm: uint32(imm), Negative: negative,
	}
}

// ---------------------------------------------------------------------------
// String escape expansion
// ---------------------------------------------------------------------------

// expandEscapes recognises \t \v \0 \b \f \n \r \" \\ ; an unrecognised
// escape terminates expansion without copying further characters (spec
// §4.1 "unknown escapes terminate string parsing without adding further
// characters").
func expandEscapes(raw string) []byte {
	out := make([]byte, 0, len(raw))
	for i := 0; i < len(raw); i++ {
		ch := raw[i]
		if ch != '\\' {
			out = append(out, ch)
			continue
		}
		if i+1 >= len(raw) {
			return out
		}
		switch raw[i+1] {
		case 't':
			out = append(out, '\t')
		case 'v':
			out = append(out, '\v')
		case '0':
			out = append(out, 0)
		case 'b':
			out = append(out, '\b')
		case 'f':
			out = append(out, '\f')
		case 'n':
			out = append(out, '\n')
		case 'r':
			out = append(out, '\r')
		case '"':
			out = append(out, '"')
		case '\\':
			out = append(out, '\\')
		default:
			return out
		}
		i++
	}
	return out
}

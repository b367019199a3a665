// Package lexer scans UVM assembly source text into the token stream the
// parser consumes (spec §2.2, §6). The scanner is nominally an external
// collaborator (spec §1 "Out of scope"); this package supplies a concrete,
// conforming implementation so the pipeline and its tests are runnable
// end-to-end without a second repository.
//
// Grounded on the teacher's v0/kasm/lexer.go character-class scanning loop
// (readChar/peekChar/readWord/readNumber/readString), generalised from the
// x86-ish dialect to UVM's token kinds and its pre-resolved register/type
// tags (spec §6).
package lexer

import (
	"strings"

	"github.com/keurnel/uvmasm/internal/isa"
	"github.com/keurnel/uvmasm/internal/sourceview"
	"github.com/keurnel/uvmasm/internal/token"
)

// mnemonics is the set of recognised instruction spellings (lower-case). It
// mirrors internal/isa/data/instructions.json's key set; the two are kept in
// sync by hand, the same way the teacher's lexer.go hardcodes
// knownInstructions separately from the architecture package it eventually
// feeds.
var mnemonics = map[string]bool{
	"push": true, "pop": true,
	"add": true, "sub": true, "mul": true, "div": true,
	"and": true, "or": true, "xor": true, "not": true,
	"shl": true, "shr": true,
	"inc": true, "dec": true, "neg": true,
	"cmp": true, "mov": true,
	"load": true, "store": true, "lea": true,
	"jmp": true, "je": true, "jne": true, "jg": true, "jl": true, "jge": true, "jle": true,
	"call": true, "ret": true, "sys": true, "exit": true, "nop": true,
}

// Lexer scans a sourceview.View into a []token.Token.
type Lexer struct {
	src  sourceview.View
	pos  int
	line int
	col  int
}

// New constructs a Lexer over src. New is infallible.
func New(src sourceview.View) *Lexer {
	return &Lexer{src: src, pos: 0, line: 1, col: 1}
}

// Lex scans the entire source and returns its token stream, terminated by a
// single EndOfFile token.
func (l *Lexer) Lex() []token.Token {
	var out []token.Token
	for {
		tok := l.next()
		out = append(out, tok)
		if tok.Kind == token.EndOfFile {
			return out
		}
	}
}

func (l *Lexer) peekByte() byte {
	return l.src.CharAt(l.pos)
}

func (l *Lexer) peekByteAt(offset int) byte {
	return l.src.CharAt(l.pos + offset)
}

func (l *Lexer) advanceByte() byte {
	ch := l.src.CharAt(l.pos)
	l.pos++
	if ch == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	return ch
}

func (l *Lexer) skipSpacesAndTabs() {
	for {
		ch := l.peekByte()
		if ch == ' ' || ch == '\t' || ch == '\r' {
			l.advanceByte()
			continue
		}
		break
	}
}

// next scans and returns the single next token, advancing the cursor.
func (l *Lexer) next() token.Token {
	l.skipSpacesAndTabs()

	startIndex := l.pos
	startLine := l.line
	startCol := l.col
	ch := l.peekByte()

	make1 := func(kind token.Kind, size int) token.Token {
		lit := l.src.Substring(startIndex, size)
		for i := 0; i < size; i++ {
			l.advanceByte()
		}
		return token.Token{Kind: kind, Literal: lit, Index: startIndex, Size: size, Line: startLine, Column: startCol}
	}

	switch {
	case l.pos >= l.src.Len():
		return token.Token{Kind: token.EndOfFile, Index: startIndex, Size: 0, Line: startLine, Column: startCol}

	case ch == '\n':
		l.advanceByte()
		return token.Token{Kind: token.Eol, Literal: "\n", Index: startIndex, Size: 1, Line: startLine, Column: startCol}

	case ch == '{':
		return make1(token.LeftCurly, 1)
	case ch == '}':
		return make1(token.RightCurly, 1)
	case ch == '[':
		return make1(token.LeftSquare, 1)
	case ch == ']':
		return make1(token.RightSquare, 1)
	case ch == '+':
		return make1(token.Plus, 1)
	case ch == '-':
		return make1(token.Minus, 1)
	case ch == '*':
		return make1(token.Asterisk, 1)
	case ch == ':':
		return make1(token.Colon, 1)
	case ch == ',':
		return make1(token.Comma, 1)
	case ch == '=':
		return make1(token.Equals, 1)

	case ch == '@':
		l.advanceByte()
		nameStart := l.pos
		for isWordByte(l.peekByte()) {
			l.advanceByte()
		}
		name := l.src.Substring(nameStart, l.pos-nameStart)
		return token.Token{
			Kind: token.LabelDef, Literal: name,
			Index: startIndex, Size: l.pos - startIndex,
			Line: startLine, Column: startCol,
		}

	case ch == '"':
		return l.scanString(startIndex, startLine, startCol)

	case isDigitByte(ch):
		return l.scanNumber(startIndex, startLine, startCol)

	case isIdentStartByte(ch):
		return l.scanWord(startIndex, startLine, startCol)

	default:
		// Unrecognised byte: emit it as a one-byte identifier so the parser
		// can report a precise "unexpected token" diagnostic instead of the
		// scanner silently dropping input.
		return make1(token.Identifier, 1)
	}
}

func (l *Lexer) scanString(startIndex, startLine, startCol int) token.Token {
	l.advanceByte() // opening quote
	contentStart := l.pos
	for {
		ch := l.peekByte()
		if ch == 0 && l.pos >= l.src.Len() {
			break
		}
		if ch == '"' {
			break
		}
		l.advanceByte()
	}
	content := l.src.Substring(contentStart, l.pos-contentStart)
	if l.peekByte() == '"' {
		l.advanceByte() // closing quote
	}
	return token.Token{
		Kind: token.String, Literal: content,
		Index: startIndex, Size: l.pos - startIndex,
		Line: startLine, Column: startCol,
	}
}

func (l *Lexer) scanNumber(startIndex, startLine, startCol int) token.Token {
	if l.peekByte() == '0' && (l.peekByteAt(1) == 'x' || l.peekByteAt(1) == 'X') {
		l.advanceByte()
		l.advanceByte()
		for isHexByte(l.peekByte()) {
			l.advanceByte()
		}
		lit := l.src.Substring(startIndex, l.pos-startIndex)
		return token.Token{Kind: token.IntegerNumber, Literal: lit, Index: startIndex, Size: l.pos - startIndex, Line: startLine, Column: startCol}
	}

	isFloat := false
	for isDigitByte(l.peekByte()) {
		l.advanceByte()
	}
	if l.peekByte() == '.' && isDigitByte(l.peekByteAt(1)) {
		isFloat = true
		l.advanceByte()
		for isDigitByte(l.peekByte()) {
			l.advanceByte()
		}
	}

	lit := l.src.Substring(startIndex, l.pos-startIndex)
	kind := token.IntegerNumber
	if isFloat {
		kind = token.FloatNumber
	}
	return token.Token{Kind: kind, Literal: lit, Index: startIndex, Size: l.pos - startIndex, Line: startLine, Column: startCol}
}

func (l *Lexer) scanWord(startIndex, startLine, startCol int) token.Token {
	for isWordByte(l.peekByte()) {
		l.advanceByte()
	}
	word := l.src.Substring(startIndex, l.pos-startIndex)
	lower := strings.ToLower(word)

	if id, ok := isa.RegisterByName[lower]; ok {
		return token.Token{
			Kind: token.RegisterDefinition, Literal: word,
			Index: startIndex, Size: l.pos - startIndex,
			Line: startLine, Column: startCol, Tag: id,
		}
	}
	if t, ok := isa.TypeByName(lower); ok {
		return token.Token{
			Kind: token.TypeInfo, Literal: word,
			Index: startIndex, Size: l.pos - startIndex,
			Line: startLine, Column: startCol, Tag: int(t),
		}
	}
	if mnemonics[lower] {
		return token.Token{
			Kind: token.Instruction, Literal: word,
			Index: startIndex, Size: l.pos - startIndex,
			Line: startLine, Column: startCol,
		}
	}
	return token.Token{
		Kind: token.Identifier, Literal: word,
		Index: startIndex, Size: l.pos - startIndex,
		Line: startLine, Column: startCol,
	}
}

func isDigitByte(ch byte) bool { return ch >= '0' && ch <= '9' }
func isHexByte(ch byte) bool   { return isDigitByte(ch) || (ch >= 'a' && ch <= 'f') || (ch >= 'A' && ch <= 'F') }
func isAlphaByte(ch byte) bool { return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') }

func isIdentStartByte(ch byte) bool { return isAlphaByte(ch) || ch == '_' || ch == '.' }
func isWordByte(ch byte) bool       { return isAlphaByte(ch) || isDigitByte(ch) || ch == '_' || ch == '.' }
